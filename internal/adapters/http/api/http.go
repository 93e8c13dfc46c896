// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/robojudge/scorecard/internal/adapters/repository"
	service "github.com/robojudge/scorecard/internal/app"
	"github.com/robojudge/scorecard/internal/domain/audit"
	"github.com/robojudge/scorecard/internal/domain/consistency"
	"github.com/robojudge/scorecard/internal/domain/rubric"
	"github.com/robojudge/scorecard/internal/domain/scoring"
	"github.com/robojudge/scorecard/internal/domain/workflow"
	"github.com/robojudge/scorecard/pkg/metrics"
)

// RecordRequest mirrors the service-layer request for PUT /scores.
type RecordRequest = service.RecordRequest

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	CreateTemplate(ctx context.Context, categoryCode string) (rubric.Template, error)
	Template(ctx context.Context, id string) (rubric.Template, error)
	ActiveTemplate(ctx context.Context, categoryCode string) (rubric.Template, error)
	ValidateTemplate(ctx context.Context, id string) (rubric.Report, error)
	UpdateCriterionMaxPoints(ctx context.Context, templateID, criterionID string, max float64, actor string) (rubric.Template, error)

	RecordScore(ctx context.Context, req RecordRequest) (scoring.Score, error)
	SubmitScore(ctx context.Context, scoreID, actor string) (scoring.Score, error)
	ValidateScore(ctx context.Context, scoreID, actor string) (scoring.Score, error)
	FinalizeScore(ctx context.Context, scoreID, actor string) (scoring.Score, error)
	Score(ctx context.Context, id string) (scoring.Score, error)
	ScoreSummary(ctx context.Context, scoreID string) (scoring.Summary, error)

	AuditTrail(ctx context.Context, subjectID string) ([]audit.Entry, error)
	CheckConsistency(ctx context.Context, teamID, scope string) (consistency.Report, error)
}

// Server wires HTTP routes for the business API.
type Server struct {
	templatesHandler   *TemplatesHandler
	scoresHandler      *ScoresHandler
	consistencyHandler *ConsistencyHandler
	healthHandler      *HealthHandler
	statsHandler       *StatsHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider) *Server {
	return &Server{
		templatesHandler:   NewTemplatesHandler(deps),
		scoresHandler:      NewScoresHandler(deps),
		consistencyHandler: NewConsistencyHandler(deps),
		healthHandler:      NewHealthHandler(),
		statsHandler:       NewStatsHandler(statsProvider),
	}
}

// Routes builds the router for the business API.
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(MetricsMiddleware)

	r.Get("/healthz", s.healthHandler.HandleHealth)
	r.Get("/stats", s.statsHandler.HandleStats)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(metrics.GetRegistry(), promhttp.HandlerOpts{}))

	r.Route("/templates", func(r chi.Router) {
		r.Post("/", s.templatesHandler.HandleCreate)
		r.Get("/active", s.templatesHandler.HandleGetActive)
		r.Get("/{templateID}", s.templatesHandler.HandleGet)
		r.Get("/{templateID}/validation", s.templatesHandler.HandleValidate)
		r.Patch("/{templateID}/criteria/{criterionID}", s.templatesHandler.HandleUpdateMaxPoints)
	})

	r.Route("/scores", func(r chi.Router) {
		r.Put("/", s.scoresHandler.HandleRecord)
		r.Get("/{scoreID}", s.scoresHandler.HandleGet)
		r.Get("/{scoreID}/summary", s.scoresHandler.HandleSummary)
		r.Get("/{scoreID}/audit", s.scoresHandler.HandleAuditTrail)
		r.Post("/{scoreID}/submit", s.scoresHandler.HandleSubmit)
		r.Post("/{scoreID}/validate", s.scoresHandler.HandleValidate)
		r.Post("/{scoreID}/finalize", s.scoresHandler.HandleFinalize)
	})

	r.Get("/teams/{teamID}/consistency", s.consistencyHandler.HandleCheck)

	return r
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

// writeDomainError maps known sentinel errors onto HTTP statuses so handlers
// stay free of per-error branching.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, repository.ErrNotFound),
		errors.Is(err, rubric.ErrCriterionNotFound):
		writeError(w, http.StatusNotFound, "not_found", err)
	case errors.Is(err, repository.ErrStatusConflict),
		errors.Is(err, repository.ErrTemplateImmutable),
		errors.Is(err, workflow.ErrInvalidTransition),
		errors.Is(err, service.ErrScoreLocked):
		writeError(w, http.StatusConflict, "conflict", err)
	case errors.Is(err, workflow.ErrIncompleteScoring),
		errors.Is(err, workflow.ErrImplausibleScore):
		writeError(w, http.StatusUnprocessableEntity, "unprocessable", err)
	case errors.Is(err, service.ErrBadRequest),
		errors.Is(err, ErrBadRequest),
		errors.Is(err, rubric.ErrInvalidCategory),
		errors.Is(err, rubric.ErrInvalidMaxPoints),
		errors.Is(err, scoring.ErrUnknownCriterion),
		errors.Is(err, scoring.ErrDuplicateCriterion),
		errors.Is(err, scoring.ErrOutOfRangePoints),
		errors.Is(err, scoring.ErrLevelPointsMismatch):
		writeError(w, http.StatusBadRequest, "bad_request", err)
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err)
	}
}
