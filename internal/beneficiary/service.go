// Package beneficiary manages program participants: registration, point
// reads and group/unit listings through the ByGroup index.
package beneficiary

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"pps/internal/keyedstore"
	"pps/internal/storage"
	"pps/pkg/domain"
	dErrors "pps/pkg/domain-errors"
)

var (
	ErrNotFound      = dErrors.New(dErrors.CodeNotFound, "beneficiary not found")
	ErrAlreadyExists = dErrors.New(dErrors.CodeConflict, "beneficiary already exists")
)

type Service struct {
	beneficiaries *keyedstore.Table
	logger        *slog.Logger
	now           func() time.Time
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithClock sets the date stages are derived at.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

func New(beneficiaries *keyedstore.Table, opts ...Option) *Service {
	s := &Service{
		beneficiaries: beneficiaries,
		logger:        slog.Default(),
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func validPart(name, v string) error {
	if strings.TrimSpace(v) == "" {
		return dErrors.New(dErrors.CodeValidation, name+" is required")
	}
	if strings.Contains(v, domain.KeySeparator) {
		return dErrors.New(dErrors.CodeValidation, name+" cannot contain "+domain.KeySeparator)
	}
	return nil
}

// Create registers a beneficiary with zeroed ledgers and no active task.
func (s *Service) Create(ctx context.Context, r Registration) (*Beneficiary, error) {
	for _, part := range []struct{ name, value string }{
		{"user", r.User},
		{"district", r.District},
		{"group", r.Group},
		{"full name", r.FullName},
	} {
		if err := validPart(part.name, part.value); err != nil {
			return nil, err
		}
	}
	if _, err := domain.ParseUnit(string(r.Unit)); err != nil {
		return nil, err
	}
	if r.Birthdate.IsZero() {
		return nil, dErrors.New(dErrors.CodeValidation, "birthdate is required")
	}

	doc := r.document()
	err := s.beneficiaries.Create(ctx, keyedstore.Key{Partition: r.User}, doc, keyedstore.GuardPartition)
	if errors.Is(err, keyedstore.ErrAlreadyExists) {
		return nil, ErrAlreadyExists
	}
	if err != nil {
		return nil, storage.Translate(err, "failed to create beneficiary")
	}

	s.logger.InfoContext(ctx, "beneficiary created",
		"user", r.User,
		"group", doc.String(storage.AttrGroup),
		"unit", string(r.Unit),
	)
	doc[storage.AttrUser] = r.User
	return fromItem(doc, s.now())
}

// Get loads one beneficiary.
func (s *Service) Get(ctx context.Context, user string) (*Beneficiary, error) {
	it, err := s.beneficiaries.Get(ctx, keyedstore.Key{Partition: user})
	if err != nil {
		return nil, storage.Translate(err, "failed to load beneficiary")
	}
	if it == nil {
		return nil, ErrNotFound
	}
	b, err := fromItem(it, s.now())
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "stored beneficiary is malformed")
	}
	return b, nil
}

// ListGroup returns every beneficiary of a group ordered by unit then user.
func (s *Service) ListGroup(ctx context.Context, district, group string) ([]Beneficiary, error) {
	return s.list(ctx, district, group, "")
}

// ListUnit returns the beneficiaries of one unit of a group.
func (s *Service) ListUnit(ctx context.Context, district, group string, unit domain.Unit) ([]Beneficiary, error) {
	if _, err := domain.ParseUnit(string(unit)); err != nil {
		return nil, err
	}
	return s.list(ctx, district, group, domain.JoinKey(string(unit), ""))
}

func (s *Service) list(ctx context.Context, district, group, prefix string) ([]Beneficiary, error) {
	if err := validPart("district", district); err != nil {
		return nil, err
	}
	if err := validPart("group", group); err != nil {
		return nil, err
	}
	q := keyedstore.Query{Index: storage.IndexByGroup, Partition: domain.JoinKey(district, group)}
	if prefix != "" {
		q.Sort = keyedstore.BeginsWith(prefix)
	}

	now := s.now()
	out := []Beneficiary{}
	for it, err := range s.beneficiaries.Scan(ctx, q) {
		if err != nil {
			return nil, storage.Translate(err, "failed to list beneficiaries")
		}
		b, err := fromItem(it, now)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "stored beneficiary is malformed")
		}
		out = append(out, *b)
	}
	return out, nil
}
