// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/okian/scout/internal/adapters/repository"
	"github.com/okian/scout/internal/adapters/source"
	service "github.com/okian/scout/internal/app"
	"github.com/okian/scout/internal/discovery"
	"github.com/okian/scout/internal/domain/filter"
	"github.com/okian/scout/internal/export"
)

// maxBodyBytes bounds JSON request bodies. Dataset uploads use their own limit.
const maxBodyBytes = 1 << 20

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	QueryDependencies
	SessionDependencies
	SegmentDependencies
	TemplateDependencies
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler    *HealthHandler
	statsHandler     *StatsHandler
	queryHandler     *QueryHandler
	sessionHandler   *SessionHandler
	segmentHandler   *SegmentHandler
	templatesHandler *TemplatesHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider) *Server {
	return &Server{
		healthHandler:    NewHealthHandler(),
		statsHandler:     NewStatsHandler(statsProvider),
		queryHandler:     NewQueryHandler(deps),
		sessionHandler:   NewSessionHandler(deps),
		segmentHandler:   NewSegmentHandler(deps),
		templatesHandler: NewTemplatesHandler(deps),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	route := func(pattern, endpoint string, h http.HandlerFunc) {
		mux.HandleFunc(pattern, MetricsMiddleware(h, endpoint))
	}

	route("GET /healthz", "healthz", s.healthHandler.HandleHealth)
	route("GET /stats", "stats", s.statsHandler.HandleStats)
	route("GET /templates", "templates", s.templatesHandler.HandleList)

	route("POST /affiliates/query", "affiliates_query", s.queryHandler.HandleQuery)
	route("PUT /affiliates", "affiliates_replace", s.queryHandler.HandleReplace)

	route("POST /discover/sessions", "sessions_create", s.sessionHandler.HandleCreate)
	route("GET /discover/sessions/{id}", "sessions_get", s.sessionHandler.HandleGet)
	route("PUT /discover/sessions/{id}/filters", "sessions_filters", s.sessionHandler.HandleSetFilters)
	route("POST /discover/sessions/{id}/more", "sessions_more", s.sessionHandler.HandleLoadMore)
	route("DELETE /discover/sessions/{id}", "sessions_close", s.sessionHandler.HandleClose)

	route("GET /segments", "segments_list", s.segmentHandler.HandleList)
	route("POST /segments", "segments_create", s.segmentHandler.HandleCreate)
	route("POST /segments/activate", "segments_activate", s.segmentHandler.HandleActivate)
	route("GET /segments/{id}", "segments_get", s.segmentHandler.HandleGet)
	route("DELETE /segments/{id}", "segments_delete", s.segmentHandler.HandleDelete)
	route("POST /segments/{id}/remove", "segments_remove", s.segmentHandler.HandleRemove)
	route("POST /segments/{id}/move", "segments_move", s.segmentHandler.HandleMove)
	route("POST /segments/{id}/regenerate", "segments_regenerate", s.segmentHandler.HandleRegenerate)
	route("GET /segments/{id}/export", "segments_export", s.segmentHandler.HandleExport)
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeFailure maps err onto a status code and error code.
func writeFailure(w http.ResponseWriter, err error) {
	status, code := classify(err)
	writeError(w, status, code, err)
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, repository.ErrNotFound),
		errors.Is(err, discovery.ErrSessionNotFound),
		errors.Is(err, discovery.ErrSessionClosed),
		errors.Is(err, service.ErrTemplateNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, ErrBadRequest),
		errors.Is(err, filter.ErrInvalidFilter),
		errors.Is(err, source.ErrInvalidPage),
		errors.Is(err, repository.ErrInvalidSegment),
		errors.Is(err, repository.ErrSameSegment),
		errors.Is(err, repository.ErrDuplicateID),
		errors.Is(err, service.ErrInvalidSort),
		errors.Is(err, export.ErrUnsupportedFormat):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, discovery.ErrBusy),
		errors.Is(err, discovery.ErrNoMorePages),
		errors.Is(err, repository.ErrNotDynamic),
		errors.Is(err, service.ErrRequestInProgress):
		return http.StatusConflict, "conflict"
	case errors.Is(err, ErrBackpressure),
		errors.Is(err, discovery.ErrBackpressure),
		errors.Is(err, discovery.ErrTooManySessions):
		return http.StatusTooManyRequests, "backpressure"
	case errors.Is(err, source.ErrFetch):
		return http.StatusBadGateway, "upstream_error"
	case errors.Is(err, service.ErrNotStarted):
		return http.StatusServiceUnavailable, "unavailable"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

// decodeJSON reads a JSON body into v, reporting io.EOF for an empty body.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		return err
	}
	if dec.More() {
		return errors.New("unexpected data after JSON body")
	}
	return nil
}

// decodeSpec reads an optional filter body. An empty body yields nil.
func decodeSpec(w http.ResponseWriter, r *http.Request) (*filter.Spec, error) {
	var spec filter.Spec
	if err := decodeJSON(w, r, &spec); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, err
	}
	return &spec, nil
}

// validateRequest checks a request DTO with the shared validator.
func validateRequest(v any) error {
	if err := filter.Validator().Struct(v); err != nil {
		return errors.New(filter.Describe(err))
	}
	return nil
}
