// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/robojudge/scorecard/internal/domain/audit"
	"github.com/robojudge/scorecard/internal/domain/scoring"
)

// ScoreDependencies defines the interface for score operations.
type ScoreDependencies interface {
	RecordScore(ctx context.Context, req RecordRequest) (scoring.Score, error)
	SubmitScore(ctx context.Context, scoreID, actor string) (scoring.Score, error)
	ValidateScore(ctx context.Context, scoreID, actor string) (scoring.Score, error)
	FinalizeScore(ctx context.Context, scoreID, actor string) (scoring.Score, error)
	Score(ctx context.Context, id string) (scoring.Score, error)
	ScoreSummary(ctx context.Context, scoreID string) (scoring.Summary, error)
	AuditTrail(ctx context.Context, subjectID string) ([]audit.Entry, error)
}

// ScoresHandler handles score recording and workflow requests.
type ScoresHandler struct {
	deps ScoreDependencies
}

// NewScoresHandler creates a new scores handler.
func NewScoresHandler(deps ScoreDependencies) *ScoresHandler {
	return &ScoresHandler{deps: deps}
}

// recordScoreRequest mirrors the body of PUT /scores. Entries replace the
// score's previous evaluations wholesale.
type recordScoreRequest struct {
	TeamID     string          `json:"team_id"`
	JudgeID    string          `json:"judge_id"`
	TemplateID string          `json:"template_id"`
	Scope      string          `json:"scope"`
	Entries    []scoring.Entry `json:"entries"`
	Bonus      float64         `json:"bonus"`
	Penalty    float64         `json:"penalty"`
}

func (req recordScoreRequest) validate() error {
	switch {
	case strings.TrimSpace(req.TeamID) == "":
		return errors.New("missing team_id")
	case strings.TrimSpace(req.JudgeID) == "":
		return errors.New("missing judge_id")
	case strings.TrimSpace(req.TemplateID) == "":
		return errors.New("missing template_id")
	}
	return nil
}

// HandleRecord handles PUT /scores requests.
func (h *ScoresHandler) HandleRecord(w http.ResponseWriter, r *http.Request) {
	const op = "api.record_score"
	var req recordScoreRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	sc, err := h.deps.RecordScore(r.Context(), RecordRequest{
		TeamID:     req.TeamID,
		JudgeID:    req.JudgeID,
		TemplateID: req.TemplateID,
		Scope:      req.Scope,
		Entries:    req.Entries,
		Bonus:      req.Bonus,
		Penalty:    req.Penalty,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sc)
}

// HandleGet handles GET /scores/{scoreID} requests.
func (h *ScoresHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	sc, err := h.deps.Score(r.Context(), chi.URLParam(r, "scoreID"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sc)
}

// HandleSummary handles GET /scores/{scoreID}/summary requests.
func (h *ScoresHandler) HandleSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.deps.ScoreSummary(r.Context(), chi.URLParam(r, "scoreID"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// HandleAuditTrail handles GET /scores/{scoreID}/audit requests.
func (h *ScoresHandler) HandleAuditTrail(w http.ResponseWriter, r *http.Request) {
	trail, err := h.deps.AuditTrail(r.Context(), chi.URLParam(r, "scoreID"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if trail == nil {
		trail = []audit.Entry{}
	}
	writeJSON(w, http.StatusOK, trail)
}

// actorRequest mirrors the body of the workflow transition endpoints.
type actorRequest struct {
	Actor string `json:"actor"`
}

func (h *ScoresHandler) handleTransition(w http.ResponseWriter, r *http.Request, op string,
	transition func(ctx context.Context, scoreID, actor string) (scoring.Score, error),
) {
	var req actorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if strings.TrimSpace(req.Actor) == "" {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, errors.New("missing actor")))
		return
	}
	sc, err := transition(r.Context(), chi.URLParam(r, "scoreID"), req.Actor)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sc)
}

// HandleSubmit handles POST /scores/{scoreID}/submit requests.
func (h *ScoresHandler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	h.handleTransition(w, r, "api.submit_score", h.deps.SubmitScore)
}

// HandleValidate handles POST /scores/{scoreID}/validate requests.
func (h *ScoresHandler) HandleValidate(w http.ResponseWriter, r *http.Request) {
	h.handleTransition(w, r, "api.validate_score", h.deps.ValidateScore)
}

// HandleFinalize handles POST /scores/{scoreID}/finalize requests.
func (h *ScoresHandler) HandleFinalize(w http.ResponseWriter, r *http.Request) {
	h.handleTransition(w, r, "api.finalize_score", h.deps.FinalizeScore)
}
