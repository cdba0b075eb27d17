package keyedstore

import (
	"fmt"
	"strings"

	"pps/pkg/platform/sentinel"
)

// OpKind tags how an Op changes an attribute.
type OpKind int

const (
	// OpReplace replaces a whole top-level attribute.
	OpReplace OpKind = iota
	// OpReplacePath replaces a value addressed by a dotted path into map
	// attributes. The enclosing map must exist.
	OpReplacePath
	// OpIncrement adds a signed delta to a numeric attribute server-side. A
	// missing leaf starts from zero.
	OpIncrement
)

func (k OpKind) String() string {
	switch k {
	case OpReplace:
		return "replace"
	case OpReplacePath:
		return "replace-path"
	case OpIncrement:
		return "increment"
	}
	return fmt.Sprintf("OpKind(%d)", int(k))
}

// Op is one attribute change within an Update.
type Op struct {
	Kind  OpKind
	Path  string
	Value any
	Delta int64
}

// Replace sets a top-level attribute.
func Replace(field string, v any) Op {
	return Op{Kind: OpReplace, Path: field, Value: v}
}

// ReplacePath sets a nested attribute, e.g. "target.tasks".
func ReplacePath(path string, v any) Op {
	return Op{Kind: OpReplacePath, Path: path, Value: v}
}

// Increment adds delta to a numeric attribute, e.g. "score.corporality".
func Increment(path string, delta int64) Op {
	return Op{Kind: OpIncrement, Path: path, Delta: delta}
}

// Comparator is the predicate applied by a Condition.
type Comparator int

const (
	CmpEq Comparator = iota
	CmpNe
	CmpLt
	CmpLe
	CmpGt
	CmpGe
	CmpExists
	CmpNotExists
)

var comparatorNames = map[Comparator]string{
	CmpEq: "=", CmpNe: "<>", CmpLt: "<", CmpLe: "<=", CmpGt: ">", CmpGe: ">=",
	CmpExists: "exists", CmpNotExists: "not exists",
}

func (c Comparator) String() string {
	if s, ok := comparatorNames[c]; ok {
		return s
	}
	return fmt.Sprintf("Comparator(%d)", int(c))
}

// Condition is a predicate on the current item that must hold for a write to
// commit.
type Condition struct {
	Path  string
	Cmp   Comparator
	Value any
}

// Equals requires path to currently equal v. A nil v matches an attribute
// stored as null, not an absent one.
func Equals(path string, v any) Condition {
	return Condition{Path: path, Cmp: CmpEq, Value: v}
}

// AtLeast requires a numeric attribute to be >= v.
func AtLeast(path string, v int64) Condition {
	return Condition{Path: path, Cmp: CmpGe, Value: v}
}

func Exists(path string) Condition {
	return Condition{Path: path, Cmp: CmpExists}
}

func NotExists(path string) Condition {
	return Condition{Path: path, Cmp: CmpNotExists}
}

func Compare(path string, cmp Comparator, v any) Condition {
	return Condition{Path: path, Cmp: cmp, Value: v}
}

func (c Condition) String() string {
	if c.Cmp == CmpExists || c.Cmp == CmpNotExists {
		return fmt.Sprintf("%s %s", c.Path, c.Cmp)
	}
	return fmt.Sprintf("%s %s %v", c.Path, c.Cmp, c.Value)
}

// holds evaluates the condition. Absent attributes satisfy only CmpNotExists.
func (c Condition) holds(item Item) bool {
	v, ok := item.Lookup(c.Path)
	switch c.Cmp {
	case CmpExists:
		return ok
	case CmpNotExists:
		return !ok
	}
	if !ok {
		return false
	}
	want, err := normalize(c.Value)
	if err != nil {
		return false
	}
	switch c.Cmp {
	case CmpEq:
		return valuesEqual(v, want)
	case CmpNe:
		return !valuesEqual(v, want)
	}
	cmp, comparable := compareValues(v, want)
	if !comparable {
		return false
	}
	switch c.Cmp {
	case CmpLt:
		return cmp < 0
	case CmpLe:
		return cmp <= 0
	case CmpGt:
		return cmp > 0
	case CmpGe:
		return cmp >= 0
	}
	return false
}

// ReturnMode selects the snapshot an Update returns.
type ReturnMode int

const (
	ReturnNone ReturnMode = iota
	// ReturnAllOld returns the whole item as it was before the write.
	ReturnAllOld
	// ReturnUpdatedOld returns only the written paths, pre-write.
	ReturnUpdatedOld
	// ReturnAllNew returns the whole item after the write.
	ReturnAllNew
	// ReturnUpdatedNew returns only the written paths, post-write.
	ReturnUpdatedNew
)

// Update is one atomic conditional write. Equal lists fields that must
// currently equal the given values; Conditions carries any other predicates.
// Nothing is written unless every guard holds.
type Update struct {
	Ops        []Op
	Equal      map[string]any
	Conditions []Condition
	Return     ReturnMode
}

func (u Update) conditions() []Condition {
	out := make([]Condition, 0, len(u.Equal)+len(u.Conditions))
	for path, v := range u.Equal {
		out = append(out, Equals(path, v))
	}
	return append(out, u.Conditions...)
}

func (u Update) paths() []string {
	out := make([]string, len(u.Ops))
	for i, op := range u.Ops {
		out[i] = op.Path
	}
	return out
}

// validate rejects malformed ops before they reach a backend.
func (u Update) validate(s Schema) error {
	if len(u.Ops) == 0 {
		return fmt.Errorf("%w: update on %s has no operations", ErrInvalidRequest, s.Table)
	}
	for _, op := range u.Ops {
		if op.Path == "" {
			return fmt.Errorf("%w: empty attribute path", ErrInvalidRequest)
		}
		root, _, nested := strings.Cut(op.Path, pathSep)
		if root == s.Partition.Name || (s.Sort != nil && root == s.Sort.Name) {
			return fmt.Errorf("%w: key attribute %s cannot be updated", ErrInvalidRequest, root)
		}
		switch op.Kind {
		case OpReplace:
			if nested {
				return fmt.Errorf("%w: replace takes a top-level field, got %q", ErrInvalidRequest, op.Path)
			}
		case OpReplacePath:
			if !nested {
				return fmt.Errorf("%w: replace-path needs a nested path, got %q", ErrInvalidRequest, op.Path)
			}
		case OpIncrement:
		default:
			return fmt.Errorf("%w: unknown op %s", ErrInvalidRequest, op.Kind)
		}
	}
	return nil
}

// apply checks the guards against cur and returns the written item. cur is
// not modified.
func (u Update) apply(cur Item) (Item, error) {
	for _, c := range u.conditions() {
		if !c.holds(cur) {
			return nil, fmt.Errorf("%w: condition %s not met", sentinel.ErrConflict, c)
		}
	}
	next := cur.Clone()
	for _, op := range u.Ops {
		var err error
		switch op.Kind {
		case OpReplace, OpReplacePath:
			var v any
			v, err = normalize(op.Value)
			if err != nil {
				return nil, fmt.Errorf("%w: %s: %v", ErrInvalidRequest, op.Path, err)
			}
			err = next.setPath(op.Path, v)
		case OpIncrement:
			err = next.addPath(op.Path, op.Delta)
		}
		if err != nil {
			return nil, err
		}
	}
	return next, nil
}

func (u Update) result(old, next Item) Item {
	switch u.Return {
	case ReturnAllOld:
		return old
	case ReturnUpdatedOld:
		return old.project(u.paths())
	case ReturnAllNew:
		return next
	case ReturnUpdatedNew:
		return next.project(u.paths())
	}
	return nil
}
