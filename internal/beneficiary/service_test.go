package beneficiary

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"pps/internal/storage"
	"pps/pkg/domain"
	dErrors "pps/pkg/domain-errors"
)

type ServiceSuite struct {
	suite.Suite
	ctx context.Context
	svc *Service
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.ctx = context.Background()
	tables := storage.NewMemory()
	asOf := time.Date(2028, time.January, 1, 12, 0, 0, 0, time.UTC)
	s.svc = New(tables.Beneficiaries, WithClock(func() time.Time { return asOf }))
}

func (s *ServiceSuite) register(user, district, group string, unit domain.Unit, birth string) *Beneficiary {
	d, err := domain.ParseDate(birth)
	s.Require().NoError(err)
	b, err := s.svc.Create(s.ctx, Registration{
		User:      user,
		District:  district,
		Group:     group,
		Unit:      unit,
		FullName:  "Name " + user,
		Nickname:  user,
		Birthdate: d,
	})
	s.Require().NoError(err)
	return b
}

func users(list []Beneficiary) []string {
	out := make([]string, len(list))
	for i, b := range list {
		out[i] = b.User
	}
	return out
}

// =============================================================================
// Create / Get
// =============================================================================

func (s *ServiceSuite) TestCreate() {
	s.Run("zeroes every ledger and starts without a task", func() {
		b := s.register("u1", "d1", "g1", domain.UnitScouts, "01-01-2015")
		s.Equal("d1::g1", b.Group)
		s.Equal("scouts::u1", b.UnitUser)
		s.Equal("01-01-2015", b.Birthdate)
		s.Nil(b.Target)
		s.Len(b.Score, len(domain.Areas))
		s.Len(b.NTasks, len(domain.Areas))
		for _, a := range domain.Areas {
			s.Zero(b.Score[string(a)])
			s.Zero(b.NTasks[string(a)])
		}
		s.Empty(b.BoughtItems)

		got, err := s.svc.Get(s.ctx, "u1")
		s.Require().NoError(err)
		s.Equal(b, got)
	})

	s.Run("user id is unique", func() {
		d, _ := domain.ParseDate("01-01-2015")
		_, err := s.svc.Create(s.ctx, Registration{
			User: "u1", District: "d2", Group: "g2", Unit: domain.UnitGuides, FullName: "Other", Birthdate: d,
		})
		s.ErrorIs(err, ErrAlreadyExists)
	})

	s.Run("validates registration", func() {
		d, _ := domain.ParseDate("01-01-2015")
		bad := []Registration{
			{User: "", District: "d", Group: "g", Unit: domain.UnitScouts, FullName: "n", Birthdate: d},
			{User: "u", District: "d::x", Group: "g", Unit: domain.UnitScouts, FullName: "n", Birthdate: d},
			{User: "u", District: "d", Group: "g", Unit: "rovers", FullName: "n", Birthdate: d},
			{User: "u", District: "d", Group: "g", Unit: domain.UnitScouts, FullName: "n"},
		}
		for _, r := range bad {
			_, err := s.svc.Create(s.ctx, r)
			s.True(dErrors.HasCode(err, dErrors.CodeValidation), "%+v", r)
		}
	})
}

func (s *ServiceSuite) TestStageIsDerivedFromBirthdate() {
	older := s.register("u1", "d1", "g1", domain.UnitScouts, "01-01-2015")
	younger := s.register("u2", "d1", "g1", domain.UnitScouts, "02-01-2015")
	s.Equal(domain.StagePuberty, older.Stage)
	s.Equal(domain.StagePrepuberty, younger.Stage)
}

func (s *ServiceSuite) TestGetMissing() {
	_, err := s.svc.Get(s.ctx, "ghost")
	s.ErrorIs(err, ErrNotFound)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

// =============================================================================
// Group listings
// =============================================================================

func (s *ServiceSuite) TestListings() {
	s.register("zed", "d1", "g1", domain.UnitScouts, "01-01-2015")
	s.register("amy", "d1", "g1", domain.UnitScouts, "01-01-2015")
	s.register("bea", "d1", "g1", domain.UnitGuides, "01-01-2015")
	s.register("cal", "d1", "g2", domain.UnitScouts, "01-01-2015")
	s.register("dan", "d2", "g1", domain.UnitScouts, "01-01-2015")

	s.Run("group is ordered by unit-user", func() {
		list, err := s.svc.ListGroup(s.ctx, "d1", "g1")
		s.Require().NoError(err)
		s.Equal([]string{"bea", "amy", "zed"}, users(list))
	})

	s.Run("unit prefix keeps only that unit", func() {
		list, err := s.svc.ListUnit(s.ctx, "d1", "g1", domain.UnitScouts)
		s.Require().NoError(err)
		s.Equal([]string{"amy", "zed"}, users(list))
		for _, b := range list {
			s.Contains(b.UnitUser, "scouts::")
		}
	})

	s.Run("unit with no members is empty", func() {
		list, err := s.svc.ListUnit(s.ctx, "d1", "g2", domain.UnitGuides)
		s.Require().NoError(err)
		s.Empty(list)
	})

	s.Run("unknown unit is rejected", func() {
		_, err := s.svc.ListUnit(s.ctx, "d1", "g1", "rovers")
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("unknown group is empty", func() {
		list, err := s.svc.ListGroup(s.ctx, "d9", "g9")
		s.Require().NoError(err)
		s.Empty(list)
	})
}
