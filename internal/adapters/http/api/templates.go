// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/robojudge/scorecard/internal/domain/rubric"
)

// TemplateDependencies defines the interface for rubric template operations.
type TemplateDependencies interface {
	CreateTemplate(ctx context.Context, categoryCode string) (rubric.Template, error)
	Template(ctx context.Context, id string) (rubric.Template, error)
	ActiveTemplate(ctx context.Context, categoryCode string) (rubric.Template, error)
	ValidateTemplate(ctx context.Context, id string) (rubric.Report, error)
	UpdateCriterionMaxPoints(ctx context.Context, templateID, criterionID string, max float64, actor string) (rubric.Template, error)
}

// TemplatesHandler handles rubric template requests.
type TemplatesHandler struct {
	deps TemplateDependencies
}

// NewTemplatesHandler creates a new templates handler.
func NewTemplatesHandler(deps TemplateDependencies) *TemplatesHandler {
	return &TemplatesHandler{deps: deps}
}

// createTemplateRequest mirrors the body of POST /templates.
type createTemplateRequest struct {
	CategoryCode string `json:"category_code"`
}

func (req createTemplateRequest) validate() error {
	if strings.TrimSpace(req.CategoryCode) == "" {
		return errors.New("missing category_code")
	}
	return nil
}

// HandleCreate handles POST /templates requests. Creating a template for a
// category that already has one supersedes the previous version.
func (h *TemplatesHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	const op = "api.create_template"
	var req createTemplateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	t, err := h.deps.CreateTemplate(r.Context(), req.CategoryCode)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

// HandleGet handles GET /templates/{templateID} requests.
func (h *TemplatesHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	t, err := h.deps.Template(r.Context(), chi.URLParam(r, "templateID"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// HandleGetActive handles GET /templates/active?category= requests.
func (h *TemplatesHandler) HandleGetActive(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_active_template"
	category := r.URL.Query().Get("category")
	if category == "" {
		writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
		return
	}
	t, err := h.deps.ActiveTemplate(r.Context(), category)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// HandleValidate handles GET /templates/{templateID}/validation requests.
// The report is always 200; structural problems land in its error list.
func (h *TemplatesHandler) HandleValidate(w http.ResponseWriter, r *http.Request) {
	report, err := h.deps.ValidateTemplate(r.Context(), chi.URLParam(r, "templateID"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// updateMaxPointsRequest mirrors the body of PATCH
// /templates/{templateID}/criteria/{criterionID}.
type updateMaxPointsRequest struct {
	MaxPoints float64 `json:"max_points"`
	Actor     string  `json:"actor"`
}

// HandleUpdateMaxPoints handles criterion point cap updates. Levels are
// recomputed server-side; the call fails once the template has scores.
func (h *TemplatesHandler) HandleUpdateMaxPoints(w http.ResponseWriter, r *http.Request) {
	const op = "api.update_max_points"
	var req updateMaxPointsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	actor := req.Actor
	if actor == "" {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, errors.New("missing actor")))
		return
	}
	t, err := h.deps.UpdateCriterionMaxPoints(r.Context(),
		chi.URLParam(r, "templateID"), chi.URLParam(r, "criterionID"), req.MaxPoints, actor)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}
