package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/okian/scout/internal/discovery"
	"github.com/okian/scout/internal/domain/filter"
)

// SessionDependencies defines the interface for discovery session operations.
type SessionDependencies interface {
	CreateSession(ctx context.Context, spec *filter.Spec) (discovery.State, error)
	SessionState(ctx context.Context, id string, wait bool) (discovery.State, error)
	SetSessionFilters(ctx context.Context, id string, spec *filter.Spec) (discovery.State, error)
	LoadMore(ctx context.Context, id string) (discovery.State, error)
	CloseSession(ctx context.Context, id string) error
}

// SessionHandler handles discovery session requests.
type SessionHandler struct {
	deps SessionDependencies
}

// NewSessionHandler creates a new session handler.
func NewSessionHandler(deps SessionDependencies) *SessionHandler {
	return &SessionHandler{deps: deps}
}

// HandleCreate handles POST /discover/sessions. The body is an optional
// initial filter.
func (h *SessionHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	const op = "api.create_session"
	spec, err := decodeSpec(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	st, err := h.deps.CreateSession(r.Context(), spec)
	if err != nil {
		writeFailure(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusCreated, st)
}

// HandleGet handles GET /discover/sessions/{id}; ?wait=1 blocks until the
// session is idle.
func (h *SessionHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_session"
	wait, _ := strconv.ParseBool(r.URL.Query().Get("wait"))
	st, err := h.deps.SessionState(r.Context(), r.PathValue("id"), wait)
	if err != nil {
		writeFailure(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// HandleSetFilters handles PUT /discover/sessions/{id}/filters.
func (h *SessionHandler) HandleSetFilters(w http.ResponseWriter, r *http.Request) {
	const op = "api.set_session_filters"
	spec, err := decodeSpec(w, r)
	if err != nil || spec == nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	st, err := h.deps.SetSessionFilters(r.Context(), r.PathValue("id"), spec)
	if err != nil {
		writeFailure(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusAccepted, st)
}

// HandleLoadMore handles POST /discover/sessions/{id}/more.
func (h *SessionHandler) HandleLoadMore(w http.ResponseWriter, r *http.Request) {
	const op = "api.load_more"
	st, err := h.deps.LoadMore(r.Context(), r.PathValue("id"))
	if err != nil {
		writeFailure(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusAccepted, st)
}

// HandleClose handles DELETE /discover/sessions/{id}.
func (h *SessionHandler) HandleClose(w http.ResponseWriter, r *http.Request) {
	const op = "api.close_session"
	if err := h.deps.CloseSession(r.Context(), r.PathValue("id")); err != nil {
		writeFailure(w, Wrap(op, err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
