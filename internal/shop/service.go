// Package shop stores the catalog of items beneficiaries can buy with their
// scores. Items are grouped by category and released in numbered batches.
package shop

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"pps/internal/keyedstore"
	"pps/internal/storage"
	dErrors "pps/pkg/domain-errors"
)

// ErrItemNotFound is returned when no item matches the requested key.
var ErrItemNotFound = dErrors.New(dErrors.CodeNotFound, "item not found")

// NewItem is the payload to add an item to a release.
type NewItem struct {
	Category    string
	Release     int64
	Name        string
	Description string
	Price       int64
}

type Service struct {
	items  *keyedstore.Table
	logger *slog.Logger
	now    func() time.Time
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithClock sets the time source used to derive new item ids.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

func New(items *keyedstore.Table, opts ...Option) *Service {
	s := &Service{
		items:  items,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ValidateCategory rejects categories that cannot be used as a key or as part
// of a bought_items entry.
func ValidateCategory(category string) error {
	if category == "" {
		return dErrors.New(dErrors.CodeValidation, "category is required")
	}
	if strings.ContainsAny(category, ".:") {
		return dErrors.New(dErrors.CodeValidation, "category cannot contain '.' or ':'")
	}
	return nil
}

// Create adds an item to a release. The item id is derived from the clock, so
// two items created in the same millisecond collide and the second fails with
// CodeConflict.
func (s *Service) Create(ctx context.Context, req NewItem) (*Item, error) {
	if err := ValidateCategory(req.Category); err != nil {
		return nil, err
	}
	switch {
	case req.Release < 0:
		return nil, dErrors.New(dErrors.CodeValidation, "release cannot be negative")
	case strings.TrimSpace(req.Name) == "":
		return nil, dErrors.New(dErrors.CodeValidation, "name is required")
	case req.Price <= 0:
		return nil, dErrors.New(dErrors.CodeValidation, "price must be positive")
	}

	item := Item{
		Category:    req.Category,
		ReleaseID:   ReleaseID(req.Release, s.now().UnixMilli()%ReleaseStride),
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
	}
	key := keyedstore.Key{Partition: item.Category, Sort: item.ReleaseID}
	err := s.items.Create(ctx, key, item.toItem(), keyedstore.GuardPartition, keyedstore.GuardSort)
	if errors.Is(err, keyedstore.ErrAlreadyExists) {
		return nil, dErrors.Wrap(err, dErrors.CodeConflict, "item id already taken, retry")
	}
	if err != nil {
		return nil, storage.Translate(err, "failed to create item")
	}

	s.logger.InfoContext(ctx, "shop item created",
		"category", item.Category,
		"release_id", item.ReleaseID,
	)
	return &item, nil
}

// Get loads one item.
func (s *Service) Get(ctx context.Context, category string, release, id int64) (*Item, error) {
	if id < 0 || id >= ReleaseStride {
		return nil, dErrors.New(dErrors.CodeValidation, "item id out of range")
	}
	it, err := s.items.Get(ctx, keyedstore.Key{Partition: category, Sort: ReleaseID(release, id)})
	if err != nil {
		return nil, storage.Translate(err, "failed to load item")
	}
	if it == nil {
		return nil, ErrItemNotFound
	}
	return itemFrom(it), nil
}

// ListRelease returns every item of category available at release, which
// includes items of all earlier releases, ordered by release-id.
func (s *Service) ListRelease(ctx context.Context, category string, release int64) ([]Item, error) {
	if err := ValidateCategory(category); err != nil {
		return nil, err
	}
	rows, err := s.items.Collect(ctx, keyedstore.Query{
		Partition: category,
		Sort:      keyedstore.LessThan(ReleaseID(release+1, 0)),
	})
	if err != nil {
		return nil, storage.Translate(err, "failed to list items")
	}
	out := make([]Item, 0, len(rows))
	for _, r := range rows {
		out = append(out, *itemFrom(r))
	}
	return out, nil
}
