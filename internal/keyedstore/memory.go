package keyedstore

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"pps/pkg/platform/sentinel"
)

// MemoryBackend keeps tables in process memory. A single mutex serializes
// writes, which makes every conditional update atomic.
type MemoryBackend struct {
	mu     sync.RWMutex
	tables map[string]map[string]Item
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{tables: make(map[string]map[string]Item)}
}

func memoryKey(k Key) string {
	return fmt.Sprintf("%T:%s\x00%T:%s", k.Partition, keyText(k.Partition), k.Sort, keyText(k.Sort))
}

func (b *MemoryBackend) table(name string) map[string]Item {
	t, ok := b.tables[name]
	if !ok {
		t = make(map[string]Item)
		b.tables[name] = t
	}
	return t
}

func (b *MemoryBackend) Put(_ context.Context, s Schema, key Key, item Item, ifAbsent bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	t := b.table(s.Table)
	mk := memoryKey(key)
	if _, exists := t[mk]; exists && ifAbsent {
		return fmt.Errorf("%w: %s item %v", sentinel.ErrAlreadyUsed, s.Table, key)
	}
	t[mk] = item.Clone()
	return nil
}

func (b *MemoryBackend) Get(_ context.Context, s Schema, key Key) (Item, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	item, ok := b.tables[s.Table][memoryKey(key)]
	if !ok {
		return nil, nil
	}
	return item.Clone(), nil
}

func (b *MemoryBackend) Query(_ context.Context, s Schema, q resolvedQuery) (*Page, error) {
	b.mu.RLock()
	matched := make([]Item, 0)
	for _, item := range b.tables[s.Table] {
		pv, ok := item[q.partitionDef.Name]
		if !ok || !valuesEqual(pv, q.Partition) {
			continue
		}
		if q.sortDef != nil {
			sv, ok := item[q.sortDef.Name]
			if !ok || !q.Sort.matches(sv) {
				continue
			}
		}
		if q.after != nil && !q.after.orderKey().less(q.orderOf(s, item)) {
			continue
		}
		matched = append(matched, item)
	}
	b.mu.RUnlock()

	slices.SortFunc(matched, func(a, c Item) int {
		ka, kc := q.orderOf(s, a), q.orderOf(s, c)
		switch {
		case ka.less(kc):
			return -1
		case kc.less(ka):
			return 1
		}
		return 0
	})

	page := &Page{}
	if len(matched) > q.Limit {
		matched = matched[:q.Limit]
		page.Next = q.cursorFor(s, matched[len(matched)-1])
	}
	page.Items = make([]Item, len(matched))
	for i, it := range matched {
		page.Items[i] = it.Clone()
	}
	return page, nil
}

func (b *MemoryBackend) Update(_ context.Context, s Schema, key Key, mutate func(Item) (Item, error)) (Item, Item, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	t := b.table(s.Table)
	mk := memoryKey(key)
	cur, ok := t[mk]
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s item %v", sentinel.ErrNotFound, s.Table, key)
	}
	next, err := mutate(cur)
	if err != nil {
		return nil, nil, err
	}
	t[mk] = next
	return cur.Clone(), next.Clone(), nil
}

func (b *MemoryBackend) Delete(_ context.Context, s Schema, key Key) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.tables[s.Table], memoryKey(key))
	return nil
}
