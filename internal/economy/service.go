// Package economy maintains the per-area score ledger of each beneficiary.
// Every balance change is a single conditional write on the beneficiary item;
// debits carry their sufficiency check in the same request.
package economy

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"time"

	"pps/internal/keyedstore"
	"pps/internal/platform/events"
	"pps/internal/shop"
	"pps/internal/storage"
	"pps/pkg/domain"
	dErrors "pps/pkg/domain-errors"
)

var (
	// ErrInsufficientBalance is returned when a debit exceeds the area score.
	ErrInsufficientBalance = dErrors.New(dErrors.CodeConflict, "insufficient balance")
	// ErrBeneficiaryNotFound is returned for a user with no ledger.
	ErrBeneficiaryNotFound = dErrors.New(dErrors.CodeNotFound, "beneficiary not found")
	// ErrPurchaseTooLarge is returned when a quantity exceeds MaxPurchaseQuantity
	// or price*quantity does not fit the ledger.
	ErrPurchaseTooLarge = dErrors.New(dErrors.CodeValidation, "purchase quantity is too large")
)

// MaxPurchaseQuantity bounds the units of one item bought in a single request.
const MaxPurchaseQuantity = 1000

// ItemSource resolves shop items for purchases.
type ItemSource interface {
	Get(ctx context.Context, category string, release, id int64) (*shop.Item, error)
}

// Balance is the ledger state of one area after a write.
type Balance struct {
	Area   domain.Area `json:"area"`
	Score  int64       `json:"score"`
	NTasks int64       `json:"n_tasks,omitempty"`
	// Bought is the purchase counter of the debited item.
	Bought int64 `json:"bought,omitempty"`
}

// Debit describes one purchase charged to an area.
type Debit struct {
	User     string
	Area     domain.Area
	Amount   int64
	ItemKey  string
	Quantity int64
}

type Service struct {
	beneficiaries *keyedstore.Table
	items         ItemSource
	events        events.Publisher
	logger        *slog.Logger
	now           func() time.Time
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithEvents(p events.Publisher) Option {
	return func(s *Service) {
		s.events = p
	}
}

// WithItems sets the shop used by Buy.
func WithItems(items ItemSource) Option {
	return func(s *Service) {
		s.items = items
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

func New(beneficiaries *keyedstore.Table, opts ...Option) *Service {
	s := &Service{
		beneficiaries: beneficiaries,
		events:        events.Nop{},
		logger:        slog.Default(),
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func scorePath(area domain.Area) string {
	return storage.Path(storage.AttrScore, string(area))
}

func tasksPath(area domain.Area) string {
	return storage.Path(storage.AttrNTasks, string(area))
}

func boughtPath(key string) string {
	return storage.Path(storage.AttrBoughtItems, key)
}

// CreditOps are the ledger ops of a credit. Callers that must clear other
// state in the same atomic write append them to their own update.
func CreditOps(area domain.Area, amount int64) []keyedstore.Op {
	return []keyedstore.Op{
		keyedstore.Increment(scorePath(area), amount),
		keyedstore.Increment(tasksPath(area), 1),
	}
}

// Debit subtracts the amount from the area score and counts the purchase in
// one conditional write guarded by score >= amount.
func (s *Service) Debit(ctx context.Context, d Debit) (*Balance, error) {
	if !d.Area.IsValid() {
		return nil, dErrors.New(dErrors.CodeValidation, "invalid area: "+string(d.Area))
	}
	if d.Amount <= 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "amount must be positive")
	}
	if d.ItemKey == "" || d.Quantity <= 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "a debit must name the item and a positive quantity")
	}

	out, err := s.beneficiaries.Update(ctx, keyedstore.Key{Partition: d.User}, keyedstore.Update{
		Ops: []keyedstore.Op{
			keyedstore.Increment(scorePath(d.Area), -d.Amount),
			keyedstore.Increment(boughtPath(d.ItemKey), d.Quantity),
		},
		Conditions: []keyedstore.Condition{keyedstore.AtLeast(scorePath(d.Area), d.Amount)},
		Return:     keyedstore.ReturnUpdatedNew,
	})
	switch {
	case errors.Is(err, keyedstore.ErrConditionFailed):
		return nil, ErrInsufficientBalance
	case errors.Is(err, keyedstore.ErrNotFound):
		return nil, ErrBeneficiaryNotFound
	case err != nil:
		return nil, storage.Translate(err, "failed to debit score")
	}

	s.logger.InfoContext(ctx, "score debited",
		"user", d.User,
		"area", string(d.Area),
		"amount", d.Amount,
		"item", d.ItemKey,
	)
	return &Balance{
		Area:   d.Area,
		Score:  out.Int(scorePath(d.Area)),
		Bought: out.Int(boughtPath(d.ItemKey)),
	}, nil
}

// Credit adds amount to the area score and counts one more task for it. The
// write is unconditional.
func (s *Service) Credit(ctx context.Context, user string, area domain.Area, amount int64) (*Balance, error) {
	if !area.IsValid() {
		return nil, dErrors.New(dErrors.CodeValidation, "invalid area: "+string(area))
	}
	if amount < 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "amount cannot be negative")
	}
	out, err := s.beneficiaries.Update(ctx, keyedstore.Key{Partition: user}, keyedstore.Update{
		Ops:    CreditOps(area, amount),
		Return: keyedstore.ReturnUpdatedNew,
	})
	if errors.Is(err, keyedstore.ErrNotFound) {
		return nil, ErrBeneficiaryNotFound
	}
	if err != nil {
		return nil, storage.Translate(err, "failed to credit score")
	}
	return &Balance{
		Area:   area,
		Score:  out.Int(scorePath(area)),
		NTasks: out.Int(tasksPath(area)),
	}, nil
}

// Purchase is the payload of Buy.
type Purchase struct {
	User     string
	Area     domain.Area
	Category string
	Release  int64
	ItemID   int64
	Quantity int64
}

// Buy charges price*quantity of a shop item to an area. The total is checked
// for overflow before the guarded debit, so the sufficiency guard always
// compares against the real cost.
func (s *Service) Buy(ctx context.Context, p Purchase) (*Balance, error) {
	if s.items == nil {
		return nil, dErrors.New(dErrors.CodeInternal, "shop is not configured")
	}
	if p.Quantity <= 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "amount must be positive")
	}
	if p.Quantity > MaxPurchaseQuantity {
		return nil, ErrPurchaseTooLarge
	}
	item, err := s.items.Get(ctx, p.Category, p.Release, p.ItemID)
	if err != nil {
		return nil, err
	}
	total, err := purchaseTotal(item.Price, p.Quantity)
	if err != nil {
		return nil, err
	}
	bal, err := s.Debit(ctx, Debit{
		User:     p.User,
		Area:     p.Area,
		Amount:   total,
		ItemKey:  item.PurchaseKey(),
		Quantity: p.Quantity,
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, events.Event{
		Type:   events.ItemBought,
		User:   p.User,
		Area:   string(p.Area),
		Amount: total,
		Item:   item.PurchaseKey(),
	})
	return bal, nil
}

func purchaseTotal(price, quantity int64) (int64, error) {
	if price <= 0 {
		return 0, dErrors.New(dErrors.CodeInternal, "stored item has no price")
	}
	if quantity > math.MaxInt64/price {
		return 0, ErrPurchaseTooLarge
	}
	return price * quantity, nil
}

func (s *Service) publish(ctx context.Context, e events.Event) {
	e.At = s.now()
	if err := s.events.Publish(ctx, e); err != nil {
		s.logger.WarnContext(ctx, "event not published",
			"type", string(e.Type),
			"user", e.User,
			"error", err,
		)
	}
}
