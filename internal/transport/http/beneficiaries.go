package httptransport

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"pps/internal/beneficiary"
	"pps/internal/economy"
	"pps/internal/platform/middleware"
	"pps/internal/shop"
	"pps/pkg/domain"
	dErrors "pps/pkg/domain-errors"
	"pps/pkg/platform/httputil"
)

// HandleGetBeneficiary handles GET /beneficiaries/{sub}/.
func (h *Handler) HandleGetBeneficiary(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sub, ok := h.requireOwner(w, r)
	if !ok {
		return
	}
	b, err := h.beneficiaries.Get(ctx, sub)
	if err != nil {
		h.fail(ctx, w, "get beneficiary failed", err, "user", sub)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, b)
}

// HandleRegister handles POST /districts/{district}/groups/{group}/beneficiaries/.
// The authenticated subject registers itself into the group.
func (h *Handler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sub := middleware.GetSubject(ctx)
	if sub == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}
	req, ok := httputil.DecodeAndPrepare[RegisterRequest](w, r, h.logger, ctx, middleware.GetRequestID(ctx))
	if !ok {
		return
	}

	district, group := chi.URLParam(r, "district"), chi.URLParam(r, "group")
	b, err := h.beneficiaries.Create(ctx, beneficiary.Registration{
		User:      sub,
		District:  district,
		Group:     group,
		Unit:      req.parsedUnit,
		FullName:  req.FullName,
		Nickname:  req.Nickname,
		Birthdate: req.parsedBirthdate,
	})
	if err != nil {
		h.fail(ctx, w, "register beneficiary failed", err, "user", sub, "district", district, "group", group)
		return
	}
	h.logger.InfoContext(ctx, "beneficiary registered",
		"request_id", middleware.GetRequestID(ctx),
		"user", sub,
		"district", district,
		"group", group,
	)
	httputil.WriteJSON(w, http.StatusCreated, b)
}

// HandleListGroup handles GET /districts/{district}/groups/{group}/beneficiaries/.
func (h *Handler) HandleListGroup(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	district, group := chi.URLParam(r, "district"), chi.URLParam(r, "group")
	items, err := h.beneficiaries.ListGroup(ctx, district, group)
	if err != nil {
		h.fail(ctx, w, "list group failed", err, "district", district, "group", group)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, newList(items))
}

// HandleListUnit handles GET /districts/{district}/groups/{group}/beneficiaries/{unit}/.
func (h *Handler) HandleListUnit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	district, group := chi.URLParam(r, "district"), chi.URLParam(r, "group")
	unit, err := domain.ParseUnit(chi.URLParam(r, "unit"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	items, err := h.beneficiaries.ListUnit(ctx, district, group, unit)
	if err != nil {
		h.fail(ctx, w, "list unit failed", err, "district", district, "group", group, "unit", unit)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, newList(items))
}

// HandleListItems handles GET /shop/{category}/{release}/. Items of earlier
// releases are included.
func (h *Handler) HandleListItems(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	category := chi.URLParam(r, "category")
	release, err := strconv.ParseInt(chi.URLParam(r, "release"), 10, 64)
	if err != nil || release < 0 {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "release must be a non-negative integer"))
		return
	}
	items, err := h.items.ListRelease(ctx, category, release)
	if err != nil {
		h.fail(ctx, w, "list shop items failed", err, "category", category, "release", release)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, newList(items))
}

// HandleBuy handles POST /beneficiaries/{sub}/shop/{category}/{release}/{id}/.
func (h *Handler) HandleBuy(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sub, ok := h.requireOwner(w, r)
	if !ok {
		return
	}
	category := chi.URLParam(r, "category")
	if err := shop.ValidateCategory(category); err != nil {
		httputil.WriteError(w, err)
		return
	}
	release, err := strconv.ParseInt(chi.URLParam(r, "release"), 10, 64)
	if err != nil || release < 0 {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "release must be a non-negative integer"))
		return
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id < 0 || id >= shop.ReleaseStride {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid item id"))
		return
	}

	req, ok := httputil.DecodeAndPrepare[BuyRequest](w, r, h.logger, ctx, middleware.GetRequestID(ctx))
	if !ok {
		return
	}

	bal, err := h.shop.Buy(ctx, economy.Purchase{
		User:     sub,
		Area:     req.ParsedArea(),
		Category: category,
		Release:  release,
		ItemID:   id,
		Quantity: req.Amount,
	})
	if err != nil {
		h.fail(ctx, w, "purchase failed", err,
			"user", sub,
			"category", category,
			"release", release,
			"item_id", id,
		)
		return
	}
	h.logger.InfoContext(ctx, "item bought",
		"request_id", middleware.GetRequestID(ctx),
		"user", sub,
		"category", category,
		"release", release,
		"item_id", id,
		"amount", req.Amount,
	)
	httputil.WriteJSON(w, http.StatusOK, bal)
}
