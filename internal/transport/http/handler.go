package httptransport

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"pps/internal/beneficiary"
	"pps/internal/economy"
	"pps/internal/platform/middleware"
	"pps/internal/shop"
	"pps/internal/tasks"
	"pps/pkg/domain"
	dErrors "pps/pkg/domain-errors"
	"pps/pkg/platform/httputil"
)

// BeneficiaryService registers and reads beneficiary profiles.
type BeneficiaryService interface {
	Create(ctx context.Context, r beneficiary.Registration) (*beneficiary.Beneficiary, error)
	Get(ctx context.Context, user string) (*beneficiary.Beneficiary, error)
	ListGroup(ctx context.Context, district, group string) ([]beneficiary.Beneficiary, error)
	ListUnit(ctx context.Context, district, group string, unit domain.Unit) ([]beneficiary.Beneficiary, error)
}

// ShopService charges purchases against a beneficiary's score.
type ShopService interface {
	Buy(ctx context.Context, p economy.Purchase) (*economy.Balance, error)
}

// ItemService lists the shop's items.
type ItemService interface {
	ListRelease(ctx context.Context, category string, release int64) ([]shop.Item, error)
}

// TaskService drives the active task lifecycle and the archive.
type TaskService interface {
	Assign(ctx context.Context, a tasks.Assignment) (*tasks.ActiveTask, error)
	GetActive(ctx context.Context, user string) (*tasks.ActiveTask, error)
	Update(ctx context.Context, user string, u tasks.TaskUpdate) (*tasks.ActiveTask, error)
	Complete(ctx context.Context, user string) (*tasks.Completion, error)
	Clear(ctx context.Context, user string, credit bool) (*tasks.Completion, error)
	ListArchived(ctx context.Context, user string, f tasks.ArchiveFilter) ([]tasks.ArchivedTask, error)
	GetArchived(ctx context.Context, user, objective string) (*tasks.ArchivedTask, error)
}

// Handler serves the beneficiary, shop and task endpoints.
type Handler struct {
	beneficiaries BeneficiaryService
	shop          ShopService
	items         ItemService
	tasks         TaskService
	logger        *slog.Logger
}

// New constructs a Handler.
func New(beneficiaries BeneficiaryService, shop ShopService, items ItemService, tasks TaskService, logger *slog.Logger) *Handler {
	return &Handler{
		beneficiaries: beneficiaries,
		shop:          shop,
		items:         items,
		tasks:         tasks,
		logger:        logger,
	}
}

// Register mounts the endpoints on r. Callers are expected to have applied
// RequireAuth.
func (h *Handler) Register(r chi.Router) {
	r.Get("/beneficiaries/{sub}/", h.HandleGetBeneficiary)
	r.Post("/beneficiaries/{sub}/shop/{category}/{release}/{id}/", h.HandleBuy)
	r.Get("/shop/{category}/{release}/", h.HandleListItems)
	r.Post("/districts/{district}/groups/{group}/beneficiaries/", h.HandleRegister)
	r.Get("/districts/{district}/groups/{group}/beneficiaries/", h.HandleListGroup)
	r.Get("/districts/{district}/groups/{group}/beneficiaries/{unit}/", h.HandleListUnit)

	r.Get("/users/{sub}/tasks/", h.HandleListArchived)
	r.Get("/users/{sub}/tasks/active/", h.HandleGetActive)
	r.Put("/users/{sub}/tasks/active/", h.HandleUpdateActive)
	r.Delete("/users/{sub}/tasks/active/", h.HandleClearActive)
	r.Post("/users/{sub}/tasks/active/complete/", h.HandleCompleteActive)
	r.Get("/users/{sub}/tasks/{stage}/", h.HandleListArchived)
	r.Get("/users/{sub}/tasks/{stage}/{area}/", h.HandleListArchived)
	r.Get("/users/{sub}/tasks/{stage}/{area}/{subline}/", h.HandleGetArchived)
	r.Post("/users/{sub}/tasks/{stage}/{area}/{subline}/", h.HandleAssign)
}

// requireOwner returns the {sub} path parameter when it matches the
// authenticated subject, and writes the error response otherwise.
func (h *Handler) requireOwner(w http.ResponseWriter, r *http.Request) (string, bool) {
	ctx := r.Context()
	caller := middleware.GetSubject(ctx)
	if caller == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return "", false
	}
	sub := chi.URLParam(r, "sub")
	if sub != caller {
		h.logger.WarnContext(ctx, "caller does not own resource",
			"request_id", middleware.GetRequestID(ctx),
			"caller", caller,
			"sub", sub,
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeForbidden, "you can only access your own resources"))
		return "", false
	}
	return sub, true
}

// fail logs err at a level matching its status and writes the response.
func (h *Handler) fail(ctx context.Context, w http.ResponseWriter, msg string, err error, attrs ...any) {
	level := slog.LevelWarn
	if dErrors.ToHTTPStatus(dErrors.CodeOf(err)) >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	attrs = append(attrs, "request_id", middleware.GetRequestID(ctx), "error", err)
	h.logger.Log(ctx, level, msg, attrs...)
	httputil.WriteError(w, err)
}
