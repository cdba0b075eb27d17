package keyedstore

import (
	"fmt"
	"strconv"
)

// KeyType is the scalar type of a key attribute.
type KeyType int

const (
	KeyString KeyType = iota
	KeyNumber
)

// KeyDef names a key attribute and its type.
type KeyDef struct {
	Name string
	Type KeyType
}

// Index is a read-only secondary index that re-keys the same items by a
// different partition/sort pair. Items missing the index partition attribute
// are not visible through the index.
type Index struct {
	Name      string
	Partition KeyDef
	Sort      *KeyDef
}

// Schema describes one logical table.
type Schema struct {
	Table     string
	Partition KeyDef
	Sort      *KeyDef
	Indexes   []Index
}

// Key addresses one item. Sort must be nil for tables without a sort key.
type Key struct {
	Partition any
	Sort      any
}

// Validate checks that the schema is usable.
func (s Schema) Validate() error {
	if s.Table == "" {
		return fmt.Errorf("%w: table name is required", ErrInvalidRequest)
	}
	if s.Partition.Name == "" {
		return fmt.Errorf("%w: partition key is required for %s", ErrInvalidRequest, s.Table)
	}
	seen := make(map[string]bool, len(s.Indexes))
	for _, idx := range s.Indexes {
		if idx.Name == "" || idx.Partition.Name == "" {
			return fmt.Errorf("%w: index on %s needs a name and partition key", ErrInvalidRequest, s.Table)
		}
		if seen[idx.Name] {
			return fmt.Errorf("%w: duplicate index %s on %s", ErrInvalidRequest, idx.Name, s.Table)
		}
		seen[idx.Name] = true
	}
	return nil
}

// index resolves the key pair a query runs against. The empty name is the
// primary key.
func (s Schema) index(name string) (partition KeyDef, sort *KeyDef, err error) {
	if name == "" {
		return s.Partition, s.Sort, nil
	}
	for _, idx := range s.Indexes {
		if idx.Name == name {
			return idx.Partition, idx.Sort, nil
		}
	}
	return KeyDef{}, nil, fmt.Errorf("%w: unknown index %q on %s", ErrInvalidRequest, name, s.Table)
}

// normalizeKey checks key values against the schema and converts them to their
// canonical form (string or int64).
func (s Schema) normalizeKey(k Key) (Key, error) {
	pk, err := keyValue(s.Partition, k.Partition)
	if err != nil {
		return Key{}, err
	}
	out := Key{Partition: pk}
	switch {
	case s.Sort == nil && k.Sort != nil:
		return Key{}, fmt.Errorf("%w: sort key given but %s has no sort key", ErrInvalidRequest, s.Table)
	case s.Sort != nil:
		sk, err := keyValue(*s.Sort, k.Sort)
		if err != nil {
			return Key{}, err
		}
		out.Sort = sk
	}
	return out, nil
}

func keyValue(def KeyDef, v any) (any, error) {
	if v == nil {
		return nil, fmt.Errorf("%w: key %s cannot be empty", ErrInvalidRequest, def.Name)
	}
	switch def.Type {
	case KeyNumber:
		n, ok := asInt(v)
		if !ok {
			return nil, fmt.Errorf("%w: key %s must be an integer, got %T", ErrInvalidRequest, def.Name, v)
		}
		return n, nil
	default:
		str, ok := v.(string)
		if !ok || str == "" {
			return nil, fmt.Errorf("%w: key %s must be a non-empty string", ErrInvalidRequest, def.Name)
		}
		return str, nil
	}
}

// keyText renders a normalized key value the way backends persist it.
func keyText(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case int64:
		return strconv.FormatInt(t, 10)
	case string:
		return t
	default:
		return fmt.Sprint(t)
	}
}

// keyOf extracts the primary key of a stored item.
func (s Schema) keyOf(item Item) Key {
	k := Key{Partition: item[s.Partition.Name]}
	if s.Sort != nil {
		k.Sort = item[s.Sort.Name]
	}
	return k
}
