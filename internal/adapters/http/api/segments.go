package api

import (
	"context"
	"net/http"
	"strconv"

	service "github.com/okian/scout/internal/app"
	"github.com/okian/scout/internal/domain/filter"
	"github.com/okian/scout/internal/export"
)

// IdempotencyKeyHeader makes POST /segments/activate safe to retry.
const IdempotencyKeyHeader = "Idempotency-Key"

// ReplayedHeader marks a response answered from the idempotency cache.
const ReplayedHeader = "Idempotent-Replayed"

// SegmentDependencies defines the interface for segment operations.
type SegmentDependencies interface {
	ListSegments(ctx context.Context) ([]service.SegmentSummary, error)
	CreateSegment(ctx context.Context, name string, ids []string) (service.SegmentSummary, error)
	CreateFilterSegment(ctx context.Context, name string, rules *filter.Spec) (service.SegmentSummary, error)
	ActivateTemplate(ctx context.Context, templateID, idempotencyKey string) (service.SegmentSummary, bool, error)
	Segment(ctx context.Context, id, sortKey string, desc bool) (service.SegmentDetail, error)
	DeleteSegment(ctx context.Context, id string) error
	RemoveMembers(ctx context.Context, id string, ids []string) (service.SegmentSummary, error)
	MoveMembers(ctx context.Context, fromID, toID string, ids []string) (service.SegmentSummary, service.SegmentSummary, error)
	RegenerateSegment(ctx context.Context, id string) (service.SegmentSummary, error)
	ExportSegment(ctx context.Context, id string, format export.Format, sortKey string, desc bool) (service.Export, error)
}

// SegmentHandler handles segment requests.
type SegmentHandler struct {
	deps SegmentDependencies
}

// NewSegmentHandler creates a new segment handler.
func NewSegmentHandler(deps SegmentDependencies) *SegmentHandler {
	return &SegmentHandler{deps: deps}
}

type createSegmentRequest struct {
	Name        string       `json:"name" validate:"required"`
	MemberIDs   []string     `json:"memberIds" validate:"excluded_with=FilterRules"`
	FilterRules *filter.Spec `json:"filterRules"`
}

type activateRequest struct {
	TemplateID string `json:"templateId" validate:"required"`
}

type membersRequest struct {
	IDs []string `json:"ids" validate:"required,min=1,dive,required"`
}

type moveRequest struct {
	To  string   `json:"to" validate:"required"`
	IDs []string `json:"ids" validate:"required,min=1,dive,required"`
}

type moveResponse struct {
	From service.SegmentSummary `json:"from"`
	To   service.SegmentSummary `json:"to"`
}

// HandleList handles GET /segments.
func (h *SegmentHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	const op = "api.list_segments"
	segs, err := h.deps.ListSegments(r.Context())
	if err != nil {
		writeFailure(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, segs)
}

// HandleCreate handles POST /segments. A body with filterRules saves the
// filter's matches as a dynamic segment; otherwise memberIds are stored as a
// manual one.
func (h *SegmentHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	const op = "api.create_segment"
	var req createSegmentRequest
	if !h.bind(w, r, op, &req) {
		return
	}
	var (
		seg service.SegmentSummary
		err error
	)
	if req.FilterRules != nil {
		seg, err = h.deps.CreateFilterSegment(r.Context(), req.Name, req.FilterRules)
	} else {
		seg, err = h.deps.CreateSegment(r.Context(), req.Name, req.MemberIDs)
	}
	if err != nil {
		writeFailure(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusCreated, seg)
}

// HandleActivate handles POST /segments/activate.
func (h *SegmentHandler) HandleActivate(w http.ResponseWriter, r *http.Request) {
	const op = "api.activate_template"
	var req activateRequest
	if !h.bind(w, r, op, &req) {
		return
	}
	seg, replayed, err := h.deps.ActivateTemplate(r.Context(), req.TemplateID, r.Header.Get(IdempotencyKeyHeader))
	if err != nil {
		writeFailure(w, Wrap(op, err))
		return
	}
	if replayed {
		w.Header().Set(ReplayedHeader, "true")
		writeJSON(w, http.StatusOK, seg)
		return
	}
	writeJSON(w, http.StatusCreated, seg)
}

// HandleGet handles GET /segments/{id}?sort=&dir=asc|desc.
func (h *SegmentHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_segment"
	q := r.URL.Query()
	desc, ok := parseDir(q.Get("dir"))
	if !ok {
		writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
		return
	}
	detail, err := h.deps.Segment(r.Context(), r.PathValue("id"), q.Get("sort"), desc)
	if err != nil {
		writeFailure(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

// HandleDelete handles DELETE /segments/{id}.
func (h *SegmentHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	const op = "api.delete_segment"
	if err := h.deps.DeleteSegment(r.Context(), r.PathValue("id")); err != nil {
		writeFailure(w, Wrap(op, err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleRemove handles POST /segments/{id}/remove.
func (h *SegmentHandler) HandleRemove(w http.ResponseWriter, r *http.Request) {
	const op = "api.remove_members"
	var req membersRequest
	if !h.bind(w, r, op, &req) {
		return
	}
	seg, err := h.deps.RemoveMembers(r.Context(), r.PathValue("id"), req.IDs)
	if err != nil {
		writeFailure(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, seg)
}

// HandleMove handles POST /segments/{id}/move.
func (h *SegmentHandler) HandleMove(w http.ResponseWriter, r *http.Request) {
	const op = "api.move_members"
	var req moveRequest
	if !h.bind(w, r, op, &req) {
		return
	}
	from, to, err := h.deps.MoveMembers(r.Context(), r.PathValue("id"), req.To, req.IDs)
	if err != nil {
		writeFailure(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, moveResponse{From: from, To: to})
}

// HandleRegenerate handles POST /segments/{id}/regenerate.
func (h *SegmentHandler) HandleRegenerate(w http.ResponseWriter, r *http.Request) {
	const op = "api.regenerate_segment"
	seg, err := h.deps.RegenerateSegment(r.Context(), r.PathValue("id"))
	if err != nil {
		writeFailure(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, seg)
}

// HandleExport handles GET /segments/{id}/export?format=csv|xlsx&sort=&dir=.
// Rows follow the same order as the detail view for sort and dir.
func (h *SegmentHandler) HandleExport(w http.ResponseWriter, r *http.Request) {
	const op = "api.export_segment"
	q := r.URL.Query()
	format, err := export.ParseFormat(q.Get("format"))
	if err != nil {
		writeFailure(w, Wrap(op, err))
		return
	}
	desc, ok := parseDir(q.Get("dir"))
	if !ok {
		writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
		return
	}
	out, err := h.deps.ExportSegment(r.Context(), r.PathValue("id"), format, q.Get("sort"), desc)
	if err != nil {
		writeFailure(w, Wrap(op, err))
		return
	}
	w.Header().Set("Content-Type", out.ContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+out.Filename+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(len(out.Body)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(out.Body)
}

// parseDir maps the dir query parameter to a descending flag.
func parseDir(dir string) (desc, ok bool) {
	switch dir {
	case "", "asc":
		return false, true
	case "desc":
		return true, true
	}
	return false, false
}

// bind decodes and validates a JSON request body, answering 400 on failure.
func (h *SegmentHandler) bind(w http.ResponseWriter, r *http.Request, op string, v any) bool {
	if err := decodeJSON(w, r, v); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return false
	}
	if err := validateRequest(v); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return false
	}
	return true
}
