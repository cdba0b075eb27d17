package keyedstore

import (
	"context"
	"fmt"
	"iter"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("pps/internal/keyedstore")

// Backend is the storage transport behind a Table. Implementations receive
// normalized keys and items and must make Update's mutate step atomic with
// respect to every other request on the same item.
type Backend interface {
	Put(ctx context.Context, s Schema, key Key, item Item, ifAbsent bool) error
	Get(ctx context.Context, s Schema, key Key) (Item, error)
	Query(ctx context.Context, s Schema, q resolvedQuery) (*Page, error)
	Update(ctx context.Context, s Schema, key Key, mutate func(Item) (Item, error)) (old, next Item, err error)
	Delete(ctx context.Context, s Schema, key Key) error
}

// KeyGuard names a key component that must be absent for Create to commit.
type KeyGuard int

const (
	GuardPartition KeyGuard = iota + 1
	GuardSort
)

// Table is a handle on one logical table.
type Table struct {
	schema  Schema
	backend Backend
}

// New builds a table handle. It panics on an invalid schema since schemas are
// static program data.
func New(schema Schema, backend Backend) *Table {
	if err := schema.Validate(); err != nil {
		panic(err)
	}
	return &Table{schema: schema, backend: backend}
}

// Schema returns the table's schema.
func (t *Table) Schema() Schema {
	return t.schema
}

func (t *Table) start(ctx context.Context, op string) (context.Context, trace.Span, time.Time) {
	ctx, span := tracer.Start(ctx, "keyedstore."+op, trace.WithAttributes(
		attribute.String("keyedstore.table", t.schema.Table),
	))
	return ctx, span, time.Now()
}

func (t *Table) finish(span trace.Span, op string, start time.Time, err error) {
	observe(t.schema.Table, op, start, err)
	if err != nil {
		span.SetStatus(codes.Error, outcome(err))
	}
	span.End()
}

// Create writes a new item under key. With guards, the write fails with
// ErrAlreadyExists when an item with the same key is present; without
// guards it overwrites.
func (t *Table) Create(ctx context.Context, key Key, item Item, guards ...KeyGuard) (err error) {
	ctx, span, start := t.start(ctx, "create")
	defer func() { t.finish(span, "create", start, err) }()

	nk, err := t.schema.normalizeKey(key)
	if err != nil {
		return err
	}
	for _, g := range guards {
		if g == GuardSort && t.schema.Sort == nil {
			return fmt.Errorf("%w: sort guard on %s which has no sort key", ErrInvalidRequest, t.schema.Table)
		}
	}
	stored, err := normalizeItem(item)
	if err != nil {
		return err
	}
	stored[t.schema.Partition.Name] = nk.Partition
	if t.schema.Sort != nil {
		stored[t.schema.Sort.Name] = nk.Sort
	}
	return t.backend.Put(ctx, t.schema, nk, stored, len(guards) > 0)
}

// Get reads one item. A missing item yields (nil, nil).
func (t *Table) Get(ctx context.Context, key Key, projection ...string) (item Item, err error) {
	ctx, span, start := t.start(ctx, "get")
	defer func() { t.finish(span, "get", start, err) }()

	nk, err := t.schema.normalizeKey(key)
	if err != nil {
		return nil, err
	}
	item, err = t.backend.Get(ctx, t.schema, nk)
	if err != nil || item == nil {
		return nil, err
	}
	return item.project(projection), nil
}

// Query returns one page of items in the requested partition.
func (t *Table) Query(ctx context.Context, q Query) (page *Page, err error) {
	ctx, span, start := t.start(ctx, "query")
	span.SetAttributes(attribute.String("keyedstore.index", q.Index))
	defer func() { t.finish(span, "query", start, err) }()

	rq, err := q.resolve(t.schema)
	if err != nil {
		return nil, err
	}
	page, err = t.backend.Query(ctx, t.schema, rq)
	if err != nil {
		return nil, err
	}
	for i, it := range page.Items {
		page.Items[i] = it.project(q.Projection)
	}
	return page, nil
}

// Scan lazily walks every page of q. Iteration stops at the first error,
// which is yielded once.
func (t *Table) Scan(ctx context.Context, q Query) iter.Seq2[Item, error] {
	return func(yield func(Item, error) bool) {
		for {
			page, err := t.Query(ctx, q)
			if err != nil {
				yield(nil, err)
				return
			}
			for _, it := range page.Items {
				if !yield(it, nil) {
					return
				}
			}
			if page.Next == "" {
				return
			}
			q.Cursor = page.Next
		}
	}
}

// Collect drains Scan into a slice.
func (t *Table) Collect(ctx context.Context, q Query) ([]Item, error) {
	var out []Item
	for it, err := range t.Scan(ctx, q) {
		if err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, nil
}

// Update applies u atomically. It fails with ErrConditionFailed when a guard
// does not hold and ErrNotFound when the item is missing; nothing is written
// in either case.
func (t *Table) Update(ctx context.Context, key Key, u Update) (result Item, err error) {
	ctx, span, start := t.start(ctx, "update")
	defer func() { t.finish(span, "update", start, err) }()

	nk, err := t.schema.normalizeKey(key)
	if err != nil {
		return nil, err
	}
	if err := u.validate(t.schema); err != nil {
		return nil, err
	}
	old, next, err := t.backend.Update(ctx, t.schema, nk, u.apply)
	if err != nil {
		return nil, err
	}
	return u.result(old, next), nil
}

// Delete removes an item unconditionally. Deleting a missing item is not an
// error.
func (t *Table) Delete(ctx context.Context, key Key) (err error) {
	ctx, span, start := t.start(ctx, "delete")
	defer func() { t.finish(span, "delete", start, err) }()

	nk, err := t.schema.normalizeKey(key)
	if err != nil {
		return err
	}
	return t.backend.Delete(ctx, t.schema, nk)
}
