// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/robojudge/scorecard/internal/domain/consistency"
)

// ConsistencyDependencies defines the interface for judge consistency checks.
type ConsistencyDependencies interface {
	CheckConsistency(ctx context.Context, teamID, scope string) (consistency.Report, error)
}

// ConsistencyHandler handles judge consistency requests.
type ConsistencyHandler struct {
	deps ConsistencyDependencies
}

// NewConsistencyHandler creates a new consistency handler.
func NewConsistencyHandler(deps ConsistencyDependencies) *ConsistencyHandler {
	return &ConsistencyHandler{deps: deps}
}

// HandleCheck handles GET /teams/{teamID}/consistency requests. An
// inconsistent panel is still a 200; the report carries the verdict.
func (h *ConsistencyHandler) HandleCheck(w http.ResponseWriter, r *http.Request) {
	report, err := h.deps.CheckConsistency(r.Context(),
		chi.URLParam(r, "teamID"), r.URL.Query().Get("scope"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}
