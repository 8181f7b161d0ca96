package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/okian/scout/internal/adapters/source"
	"github.com/okian/scout/internal/domain/affiliate"
	"github.com/okian/scout/internal/domain/filter"
	"github.com/okian/scout/internal/seed"
)

// maxDatasetBytes bounds PUT /affiliates uploads.
const maxDatasetBytes = 64 << 20

// QueryDependencies defines the interface for one-shot queries and dataset replacement.
type QueryDependencies interface {
	QueryPage(ctx context.Context, spec *filter.Spec, page int) (source.Page, error)
	ReplaceAffiliates(ctx context.Context, records []affiliate.Record) error
	PageSize() int
}

// QueryHandler handles affiliate query requests.
type QueryHandler struct {
	deps QueryDependencies
}

// NewQueryHandler creates a new query handler.
func NewQueryHandler(deps QueryDependencies) *QueryHandler {
	return &QueryHandler{deps: deps}
}

type pageResponse struct {
	Page       int                `json:"page"`
	Rows       []affiliate.Record `json:"rows"`
	TotalCount *int               `json:"totalCount"`
	HasMore    bool               `json:"hasMore"`
}

// HandleQuery handles POST /affiliates/query?page=N requests. An empty body
// queries the default filters.
func (h *QueryHandler) HandleQuery(w http.ResponseWriter, r *http.Request) {
	const op = "api.query_affiliates"
	page := 0
	if raw := r.URL.Query().Get("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
			return
		}
		page = n
	}
	spec, err := decodeSpec(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if spec == nil {
		d := filter.Default()
		spec = &d
	}
	p, err := h.deps.QueryPage(r.Context(), spec, page)
	if err != nil {
		writeFailure(w, Wrap(op, err))
		return
	}
	rows := p.Rows
	if rows == nil {
		rows = []affiliate.Record{}
	}
	writeJSON(w, http.StatusOK, pageResponse{
		Page:       page,
		Rows:       rows,
		TotalCount: p.TotalCount,
		HasMore:    len(rows) == h.deps.PageSize(),
	})
}

// HandleReplace handles PUT /affiliates with a JSON array of records.
func (h *QueryHandler) HandleReplace(w http.ResponseWriter, r *http.Request) {
	const op = "api.replace_affiliates"
	records, err := seed.Decode(http.MaxBytesReader(w, r.Body, maxDatasetBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if err := h.deps.ReplaceAffiliates(r.Context(), records); err != nil {
		writeFailure(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"count": len(records)})
}
