package shop

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"pps/internal/storage"
	dErrors "pps/pkg/domain-errors"
)

type ServiceSuite struct {
	suite.Suite
	clock time.Time
	svc   *Service
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.clock = time.UnixMilli(1_700_000_012_345)
	tables := storage.NewMemory()
	s.svc = New(tables.Items, WithClock(func() time.Time { return s.clock }))
}

func (s *ServiceSuite) create(category string, release int64, name string, price int64) *Item {
	item, err := s.svc.Create(context.Background(), NewItem{
		Category: category,
		Release:  release,
		Name:     name,
		Price:    price,
	})
	s.Require().NoError(err)
	s.clock = s.clock.Add(time.Millisecond)
	return item
}

// =============================================================================
// Create
// =============================================================================

func (s *ServiceSuite) TestCreate() {
	s.Run("packs release and clock-derived id", func() {
		item := s.create("badges", 3, "Compass", 40)
		s.Equal(int64(3), item.Release())
		s.Equal(int64(12_345), item.ID())
		s.Equal("badges312345", item.PurchaseKey())
	})

	s.Run("same millisecond collides", func() {
		_, err := s.svc.Create(context.Background(), NewItem{Category: "hats", Release: 1, Name: "A", Price: 1})
		s.Require().NoError(err)
		_, err = s.svc.Create(context.Background(), NewItem{Category: "hats", Release: 1, Name: "B", Price: 1})
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})

	s.Run("validates payload", func() {
		cases := []NewItem{
			{Category: "", Release: 1, Name: "x", Price: 1},
			{Category: "a.b", Release: 1, Name: "x", Price: 1},
			{Category: "a", Release: -1, Name: "x", Price: 1},
			{Category: "a", Release: 1, Name: " ", Price: 1},
			{Category: "a", Release: 1, Name: "x", Price: 0},
		}
		for _, c := range cases {
			_, err := s.svc.Create(context.Background(), c)
			s.True(dErrors.HasCode(err, dErrors.CodeValidation), "%+v", c)
		}
	})
}

// =============================================================================
// Reads
// =============================================================================

func (s *ServiceSuite) TestGet() {
	created := s.create("badges", 2, "Knot", 25)

	got, err := s.svc.Get(context.Background(), "badges", 2, created.ID())
	s.Require().NoError(err)
	s.Equal(created, got)

	_, err = s.svc.Get(context.Background(), "badges", 3, created.ID())
	s.ErrorIs(err, ErrItemNotFound)

	_, err = s.svc.Get(context.Background(), "badges", 2, ReleaseStride)
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
}

func (s *ServiceSuite) TestListReleaseIncludesEarlierReleases() {
	r1 := s.create("badges", 1, "One", 10)
	r2 := s.create("badges", 2, "Two", 20)
	s.create("badges", 3, "Three", 30)
	s.create("hats", 1, "Other", 5)

	items, err := s.svc.ListRelease(context.Background(), "badges", 2)
	s.Require().NoError(err)
	s.Require().Len(items, 2)
	s.Equal(r1.ReleaseID, items[0].ReleaseID)
	s.Equal(r2.ReleaseID, items[1].ReleaseID)

	items, err = s.svc.ListRelease(context.Background(), "badges", 0)
	s.Require().NoError(err)
	s.Empty(items)
}
