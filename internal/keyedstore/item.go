package keyedstore

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"strings"

	"pps/pkg/platform/sentinel"
)

// Item is a stored attribute snapshot. Values are normalized to string, bool,
// int64, float64, nil, []any or map[string]any.
type Item map[string]any

// pathSep separates segments of a nested attribute path ("score.corporality").
const pathSep = "."

// normalizeItem deep-copies item into canonical form.
func normalizeItem(item map[string]any) (Item, error) {
	out := make(Item, len(item))
	for k, v := range item {
		nv, err := normalize(v)
		if err != nil {
			return nil, fmt.Errorf("%w: attribute %s: %v", ErrInvalidRequest, k, err)
		}
		out[k] = nv
	}
	return out, nil
}

func normalize(v any) (any, error) {
	switch t := v.(type) {
	case nil, string, bool, int64:
		return t, nil
	case float64:
		return normalizeFloat(t), nil
	case float32:
		return normalizeFloat(float64(t)), nil
	case int:
		return int64(t), nil
	case int32:
		return int64(t), nil
	case json.Number:
		if n, err := t.Int64(); err == nil {
			return n, nil
		}
		f, err := t.Float64()
		if err != nil {
			return nil, err
		}
		return normalizeFloat(f), nil
	case Item:
		return normalizeMap(t)
	case map[string]any:
		return normalizeMap(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			ne, err := normalize(e)
			if err != nil {
				return nil, err
			}
			out[i] = ne
		}
		return out, nil
	}
	return normalizeReflect(reflect.ValueOf(v))
}

func normalizeMap(m map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(m))
	for k, e := range m {
		ne, err := normalize(e)
		if err != nil {
			return nil, err
		}
		out[k] = ne
	}
	return out, nil
}

func normalizeReflect(rv reflect.Value) (any, error) {
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int(), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32:
		return int64(rv.Uint()), nil
	case reflect.Float32, reflect.Float64:
		return normalizeFloat(rv.Float()), nil
	case reflect.String:
		return rv.String(), nil
	case reflect.Bool:
		return rv.Bool(), nil
	case reflect.Slice, reflect.Array:
		out := make([]any, rv.Len())
		for i := range out {
			ne, err := normalize(rv.Index(i).Interface())
			if err != nil {
				return nil, err
			}
			out[i] = ne
		}
		return out, nil
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return nil, fmt.Errorf("unsupported map key type %s", rv.Type().Key())
		}
		out := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			ne, err := normalize(iter.Value().Interface())
			if err != nil {
				return nil, err
			}
			out[iter.Key().String()] = ne
		}
		return out, nil
	case reflect.Pointer:
		if rv.IsNil() {
			return nil, nil
		}
		return normalize(rv.Elem().Interface())
	}
	return nil, fmt.Errorf("unsupported value type %s", rv.Type())
}

func normalizeFloat(f float64) any {
	if f == math.Trunc(f) && math.Abs(f) < 1<<53 {
		return int64(f)
	}
	return f
}

// Clone returns a deep copy of the item.
func (it Item) Clone() Item {
	if it == nil {
		return nil
	}
	out := make(Item, len(it))
	for k, v := range it {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = cloneValue(e)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = cloneValue(e)
		}
		return out
	default:
		return t
	}
}

// Lookup resolves a dotted path. The bool is false when any segment is absent.
func (it Item) Lookup(path string) (any, bool) {
	var cur any = map[string]any(it)
	for _, seg := range strings.Split(path, pathSep) {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[seg]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// String returns the string attribute at path, or "".
func (it Item) String(path string) string {
	v, _ := it.Lookup(path)
	s, _ := v.(string)
	return s
}

// Int returns the integer attribute at path, or 0.
func (it Item) Int(path string) int64 {
	v, _ := it.Lookup(path)
	n, _ := asInt(v)
	return n
}

// Map returns the map attribute at path, or nil.
func (it Item) Map(path string) map[string]any {
	v, _ := it.Lookup(path)
	m, _ := v.(map[string]any)
	return m
}

// parent walks to the map holding the last path segment. Intermediate maps
// must already exist: writes never create the enclosing document.
func (it Item) parent(path string) (map[string]any, string, error) {
	segs := strings.Split(path, pathSep)
	cur := map[string]any(it)
	for _, seg := range segs[:len(segs)-1] {
		next, ok := cur[seg].(map[string]any)
		if !ok {
			return nil, "", fmt.Errorf("%w: document path %q does not resolve to a map", sentinel.ErrInvalidState, path)
		}
		cur = next
	}
	return cur, segs[len(segs)-1], nil
}

func (it Item) setPath(path string, v any) error {
	m, leaf, err := it.parent(path)
	if err != nil {
		return err
	}
	m[leaf] = v
	return nil
}

func (it Item) addPath(path string, delta int64) error {
	m, leaf, err := it.parent(path)
	if err != nil {
		return err
	}
	cur, ok := m[leaf]
	if !ok || cur == nil {
		m[leaf] = delta
		return nil
	}
	switch n := cur.(type) {
	case int64:
		m[leaf] = n + delta
	case float64:
		m[leaf] = normalizeFloat(n + float64(delta))
	default:
		return fmt.Errorf("%w: attribute %q is %T, not a number", sentinel.ErrInvalidState, path, cur)
	}
	return nil
}

// project keeps only the given dotted paths, preserving nesting.
func (it Item) project(paths []string) Item {
	if len(paths) == 0 {
		return it
	}
	out := Item{}
	for _, p := range paths {
		v, ok := it.Lookup(p)
		if !ok {
			continue
		}
		segs := strings.Split(p, pathSep)
		cur := map[string]any(out)
		for _, seg := range segs[:len(segs)-1] {
			next, ok := cur[seg].(map[string]any)
			if !ok {
				next = map[string]any{}
				cur[seg] = next
			}
			cur = next
		}
		cur[segs[len(segs)-1]] = cloneValue(v)
	}
	return out
}

func asInt(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case float64:
		if n == math.Trunc(n) {
			return int64(n), true
		}
	case json.Number:
		i, err := n.Int64()
		return i, err == nil
	}
	return 0, false
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int64:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

// compareValues orders two normalized scalars. ok is false when the values
// are not comparable (different kinds or non-scalars).
func compareValues(a, b any) (cmp int, ok bool) {
	if as, isStr := a.(string); isStr {
		bs, isStr := b.(string)
		if !isStr {
			return 0, false
		}
		return strings.Compare(as, bs), true
	}
	af, aok := asFloat(a)
	bf, bok := asFloat(b)
	if !aok || !bok {
		return 0, false
	}
	switch {
	case af < bf:
		return -1, true
	case af > bf:
		return 1, true
	}
	return 0, true
}

// valuesEqual compares normalized values, numbers by value.
func valuesEqual(a, b any) bool {
	if c, ok := compareValues(a, b); ok {
		return c == 0
	}
	switch at := a.(type) {
	case nil:
		return b == nil
	case bool:
		bt, ok := b.(bool)
		return ok && at == bt
	case []any:
		bt, ok := b.([]any)
		if !ok || len(at) != len(bt) {
			return false
		}
		for i := range at {
			if !valuesEqual(at[i], bt[i]) {
				return false
			}
		}
		return true
	case map[string]any:
		bt, ok := b.(map[string]any)
		if !ok || len(at) != len(bt) {
			return false
		}
		for k, v := range at {
			bv, ok := bt[k]
			if !ok || !valuesEqual(v, bv) {
				return false
			}
		}
		return true
	}
	return false
}
