package httptransport

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"pps/internal/platform/middleware"
	"pps/internal/tasks"
	"pps/pkg/domain"
	dErrors "pps/pkg/domain-errors"
	"pps/pkg/platform/httputil"
)

// HandleListArchived handles GET /users/{sub}/tasks/ and its {stage}/ and
// {stage}/{area}/ refinements.
func (h *Handler) HandleListArchived(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sub, ok := h.requireOwner(w, r)
	if !ok {
		return
	}
	filter := tasks.ArchiveFilter{
		Stage: domain.Stage(chi.URLParam(r, "stage")),
		Area:  domain.Area(chi.URLParam(r, "area")),
	}
	items, err := h.tasks.ListArchived(ctx, sub, filter)
	if err != nil {
		h.fail(ctx, w, "list archived tasks failed", err, "user", sub)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, newList(items))
}

// HandleGetArchived handles GET /users/{sub}/tasks/{stage}/{area}/{subline}/.
func (h *Handler) HandleGetArchived(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sub, ok := h.requireOwner(w, r)
	if !ok {
		return
	}
	oid, err := domain.NewObjectiveID(chi.URLParam(r, "stage"), chi.URLParam(r, "area"), chi.URLParam(r, "subline"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	task, err := h.tasks.GetArchived(ctx, sub, oid.String())
	if err != nil {
		h.fail(ctx, w, "get archived task failed", err, "user", sub, "objective", oid.String())
		return
	}
	httputil.WriteJSON(w, http.StatusOK, task)
}

// HandleGetActive handles GET /users/{sub}/tasks/active/.
func (h *Handler) HandleGetActive(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sub, ok := h.requireOwner(w, r)
	if !ok {
		return
	}
	task, err := h.tasks.GetActive(ctx, sub)
	if err != nil {
		h.fail(ctx, w, "get active task failed", err, "user", sub)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, ActiveTaskResponse{Target: task})
}

// HandleAssign handles POST /users/{sub}/tasks/{stage}/{area}/{subline}/.
func (h *Handler) HandleAssign(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sub, ok := h.requireOwner(w, r)
	if !ok {
		return
	}
	oid, err := domain.NewObjectiveID(chi.URLParam(r, "stage"), chi.URLParam(r, "area"), chi.URLParam(r, "subline"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[AssignRequest](w, r, h.logger, ctx, middleware.GetRequestID(ctx))
	if !ok {
		return
	}

	task, err := h.tasks.Assign(ctx, tasks.Assignment{
		User:              sub,
		Objective:         oid.String(),
		PersonalObjective: req.Description,
		SubTasks:          req.SubTasks,
	})
	if err != nil {
		h.fail(ctx, w, "assign task failed", err, "user", sub, "objective", oid.String())
		return
	}
	h.logger.InfoContext(ctx, "task assigned",
		"request_id", middleware.GetRequestID(ctx),
		"user", sub,
		"objective", task.Objective,
	)
	httputil.WriteJSON(w, http.StatusCreated, task)
}

// HandleUpdateActive handles PUT /users/{sub}/tasks/active/.
func (h *Handler) HandleUpdateActive(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sub, ok := h.requireOwner(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[UpdateTaskRequest](w, r, h.logger, ctx, middleware.GetRequestID(ctx))
	if !ok {
		return
	}
	task, err := h.tasks.Update(ctx, sub, req.toUpdate())
	if err != nil {
		h.fail(ctx, w, "update active task failed", err, "user", sub)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, task)
}

// HandleCompleteActive handles POST /users/{sub}/tasks/active/complete/.
func (h *Handler) HandleCompleteActive(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sub, ok := h.requireOwner(w, r)
	if !ok {
		return
	}
	c, err := h.tasks.Complete(ctx, sub)
	if err != nil {
		h.fail(ctx, w, "complete task failed", err, "user", sub)
		return
	}
	h.logger.InfoContext(ctx, "task completed",
		"request_id", middleware.GetRequestID(ctx),
		"user", sub,
		"objective", c.Task.Objective,
		"credited", c.Credited,
		"archived", c.Archived != nil,
	)
	httputil.WriteJSON(w, http.StatusOK, fromCompletion(c))
}

// HandleClearActive handles DELETE /users/{sub}/tasks/active/. With
// ?credit=true the task's points are credited as on completion.
func (h *Handler) HandleClearActive(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sub, ok := h.requireOwner(w, r)
	if !ok {
		return
	}
	credit := false
	if raw := r.URL.Query().Get("credit"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "credit must be a boolean"))
			return
		}
		credit = v
	}
	c, err := h.tasks.Clear(ctx, sub, credit)
	if err != nil {
		h.fail(ctx, w, "clear task failed", err, "user", sub, "credit", credit)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, fromCompletion(c))
}
