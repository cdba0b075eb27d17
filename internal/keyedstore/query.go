package keyedstore

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
)

// DefaultPageSize bounds a Query page when Limit is zero.
const DefaultPageSize = 100

// SortOp is the range operator applied to the sort key of a query.
type SortOp int

const (
	SortBeginsWith SortOp = iota + 1
	SortLessThan
)

// SortCondition narrows a query by its sort key.
type SortCondition struct {
	Op    SortOp
	Value any
}

// BeginsWith matches string sort keys with the given prefix.
func BeginsWith(prefix string) *SortCondition {
	return &SortCondition{Op: SortBeginsWith, Value: prefix}
}

// LessThan matches sort keys strictly below v.
func LessThan(v any) *SortCondition {
	return &SortCondition{Op: SortLessThan, Value: v}
}

func (c *SortCondition) matches(v any) bool {
	if c == nil {
		return true
	}
	switch c.Op {
	case SortBeginsWith:
		s, ok := v.(string)
		prefix, _ := c.Value.(string)
		return ok && strings.HasPrefix(s, prefix)
	case SortLessThan:
		cmp, ok := compareValues(v, c.Value)
		return ok && cmp < 0
	}
	return false
}

// Query reads items sharing one partition, ascending by sort key. Index names
// a secondary index; empty means the primary key.
type Query struct {
	Index      string
	Partition  any
	Sort       *SortCondition
	Projection []string
	Limit      int
	Cursor     string
}

// Page is one slice of query results. Next is empty on the last page.
type Page struct {
	Items []Item
	Next  string
}

// resolvedQuery is a validated query with normalized key values.
type resolvedQuery struct {
	Query
	partitionDef KeyDef
	sortDef      *KeyDef
	after        *cursor
}

func (q Query) resolve(s Schema) (resolvedQuery, error) {
	pdef, sdef, err := s.index(q.Index)
	if err != nil {
		return resolvedQuery{}, err
	}
	pk, err := keyValue(pdef, q.Partition)
	if err != nil {
		return resolvedQuery{}, err
	}
	q.Partition = pk
	if q.Sort != nil {
		if sdef == nil {
			return resolvedQuery{}, fmt.Errorf("%w: sort condition on %s which has no sort key", ErrInvalidRequest, s.Table)
		}
		sc := *q.Sort
		switch sc.Op {
		case SortBeginsWith:
			if _, ok := sc.Value.(string); !ok || sdef.Type != KeyString {
				return resolvedQuery{}, fmt.Errorf("%w: begins-with needs a string sort key", ErrInvalidRequest)
			}
		case SortLessThan:
			if sc.Value, err = keyValue(*sdef, sc.Value); err != nil {
				return resolvedQuery{}, err
			}
		default:
			return resolvedQuery{}, fmt.Errorf("%w: unknown sort operator %d", ErrInvalidRequest, sc.Op)
		}
		q.Sort = &sc
	}
	if q.Limit <= 0 {
		q.Limit = DefaultPageSize
	}
	rq := resolvedQuery{Query: q, partitionDef: pdef, sortDef: sdef}
	if q.Cursor != "" {
		c, err := decodeCursor(q.Cursor)
		if err != nil {
			return resolvedQuery{}, err
		}
		rq.after = c
	}
	return rq, nil
}

// cursor records the position of the last item of a page: its query sort
// value and primary key, which break ties on secondary indexes.
type cursor struct {
	Sort      any    `json:"s,omitempty"`
	Partition string `json:"p"`
	SortKey   string `json:"k,omitempty"`
}

func (rq resolvedQuery) cursorFor(s Schema, item Item) string {
	c := cursor{Partition: keyText(item[s.Partition.Name])}
	if s.Sort != nil {
		c.SortKey = keyText(item[s.Sort.Name])
	}
	if rq.sortDef != nil {
		c.Sort = item[rq.sortDef.Name]
	}
	raw, _ := json.Marshal(c)
	return base64.RawURLEncoding.EncodeToString(raw)
}

func decodeCursor(token string) (*cursor, error) {
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return nil, fmt.Errorf("%w: malformed cursor", ErrInvalidRequest)
	}
	dec := json.NewDecoder(strings.NewReader(string(raw)))
	dec.UseNumber()
	var c cursor
	if err := dec.Decode(&c); err != nil {
		return nil, fmt.Errorf("%w: malformed cursor", ErrInvalidRequest)
	}
	if c.Sort, err = normalize(c.Sort); err != nil {
		return nil, fmt.Errorf("%w: malformed cursor", ErrInvalidRequest)
	}
	return &c, nil
}

// orderKey is the total order of query results: sort value, then primary key.
type orderKey struct {
	sort      any
	partition string
	sortKey   string
}

func (rq resolvedQuery) orderOf(s Schema, item Item) orderKey {
	k := orderKey{partition: keyText(item[s.Partition.Name])}
	if s.Sort != nil {
		k.sortKey = keyText(item[s.Sort.Name])
	}
	if rq.sortDef != nil {
		k.sort = item[rq.sortDef.Name]
	}
	return k
}

func (a orderKey) less(b orderKey) bool {
	if a.sort != nil || b.sort != nil {
		switch {
		case a.sort == nil:
			return true
		case b.sort == nil:
			return false
		}
		if c, ok := compareValues(a.sort, b.sort); ok && c != 0 {
			return c < 0
		}
	}
	if a.partition != b.partition {
		return a.partition < b.partition
	}
	return a.sortKey < b.sortKey
}

func (c *cursor) orderKey() orderKey {
	return orderKey{sort: c.Sort, partition: c.Partition, sortKey: c.SortKey}
}
