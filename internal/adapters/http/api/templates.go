package api

import (
	"net/http"

	"github.com/okian/scout/internal/domain/segment"
)

// TemplateDependencies defines the interface for template listing.
type TemplateDependencies interface {
	Templates() []segment.Template
}

// TemplatesHandler handles template requests.
type TemplatesHandler struct {
	deps TemplateDependencies
}

// NewTemplatesHandler creates a new templates handler.
func NewTemplatesHandler(deps TemplateDependencies) *TemplatesHandler {
	return &TemplatesHandler{deps: deps}
}

// HandleList handles GET /templates requests.
func (h *TemplatesHandler) HandleList(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.deps.Templates())
}
