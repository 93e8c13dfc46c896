// Package service provides the core business service that implements
// the dependencies required by the HTTP API.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	repository "github.com/robojudge/scorecard/internal/adapters/repository"
	"github.com/robojudge/scorecard/internal/domain/audit"
	"github.com/robojudge/scorecard/internal/domain/consistency"
	"github.com/robojudge/scorecard/internal/domain/rubric"
	"github.com/robojudge/scorecard/internal/domain/scoring"
	"github.com/robojudge/scorecard/internal/domain/workflow"
	"github.com/robojudge/scorecard/pkg/logger"
	"github.com/robojudge/scorecard/pkg/metrics"
)

// Service orchestrates the scoring engine: rubric structure management,
// score recording, the submission workflow, consistency checks and the
// audit trail. All state lives behind the injected repository.Store.
type Service struct {
	store     repository.Store
	logger    logger.Logger
	clock     func() time.Time
	threshold float64

	// writeLocks serializes saves and submissions per (team, judge,
	// template) key so a full-overwrite save cannot interleave with
	// another save or with the submission gate.
	writeLocks keyedMutex
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithStore injects the persistence layer.
func WithStore(store repository.Store) Option {
	return func(s *Service) {
		if store != nil {
			s.store = store
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock overrides the time source, mainly for tests.
func WithClock(clock func() time.Time) Option {
	return func(s *Service) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithConsistencyThreshold sets the judge deviation threshold percentage.
func WithConsistencyThreshold(pct float64) Option {
	return func(s *Service) {
		if pct > 0 {
			s.threshold = pct
		}
	}
}

// New constructs a Service with default configuration: an in-memory store
// and the default consistency threshold.
func New(opts ...Option) *Service {
	s := &Service{
		store:     repository.NewMemStore(),
		clock:     time.Now,
		threshold: consistency.DefaultThresholdPct,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Get()
	}
	return s
}

// Close releases the underlying store.
func (s *Service) Close() error {
	return s.store.Close()
}

// scoreKey is the write-serialization key for a score.
func scoreKey(teamID, judgeID, templateID string) string {
	return teamID + "|" + judgeID + "|" + templateID
}

// CreateTemplate generates the predefined rubric structure for a category
// and persists it. An existing active template for the category is
// superseded: the new template takes the next version and the old one is
// deactivated.
func (s *Service) CreateTemplate(ctx context.Context, categoryCode string) (rubric.Template, error) {
	now := s.clock().UTC()

	version := 1
	prev, err := s.store.ActiveTemplate(ctx, categoryCode)
	switch {
	case err == nil:
		version = prev.Version + 1
	case errors.Is(err, repository.ErrNotFound):
		// First template for this category.
	default:
		return rubric.Template{}, err
	}

	t, err := rubric.BuildTemplate(categoryCode, version)
	if err != nil {
		return rubric.Template{}, err
	}
	if err := rubric.Check(t); err != nil {
		return rubric.Template{}, err
	}
	t.CreatedAt = now

	entry := audit.New(t.ID, workflow.SystemActor, audit.ActionTemplateCreated, nil, t, now)
	if err := s.store.PutTemplate(ctx, t, entry); err != nil {
		return rubric.Template{}, err
	}
	metrics.RecordTemplateCreated()
	metrics.RecordAuditEntry()

	if version > 1 {
		prev.Active = false
		supersede := audit.New(prev.ID, workflow.SystemActor, audit.ActionTemplateSuperseded, prev.Version, t.Version, now)
		if err := s.store.PutTemplate(ctx, prev, supersede); err != nil {
			return rubric.Template{}, err
		}
		metrics.RecordAuditEntry()
	}

	s.logger.Info(ctx, "rubric template created",
		logger.String("templateID", t.ID),
		logger.String("category", categoryCode),
		logger.String("family", string(t.Family)),
		logger.Int("version", version),
	)
	return t, nil
}

// Template returns the full nested template document.
func (s *Service) Template(ctx context.Context, id string) (rubric.Template, error) {
	return s.store.Template(ctx, id)
}

// ActiveTemplate returns the current active template for a category.
func (s *Service) ActiveTemplate(ctx context.Context, categoryCode string) (rubric.Template, error) {
	return s.store.ActiveTemplate(ctx, categoryCode)
}

// ValidateTemplate runs the structural smoke test over a stored template.
func (s *Service) ValidateTemplate(ctx context.Context, id string) (rubric.Report, error) {
	t, err := s.store.Template(ctx, id)
	if err != nil {
		return rubric.Report{}, err
	}
	return rubric.Validate(t), nil
}

// UpdateCriterionMaxPoints rewrites a criterion's point cap, recomputing
// its four level rows in the same transaction. Rejected once any score
// references the template.
func (s *Service) UpdateCriterionMaxPoints(ctx context.Context, templateID, criterionID string, max float64, actor string) (rubric.Template, error) {
	now := s.clock().UTC()

	before, err := s.store.Template(ctx, templateID)
	if err != nil {
		return rubric.Template{}, err
	}
	beforeCrit, _, ok := before.Criterion(criterionID)
	if !ok {
		return rubric.Template{}, fmt.Errorf("%w: %s", rubric.ErrCriterionNotFound, criterionID)
	}

	entry := audit.New(templateID, actor, audit.ActionMaxPointsUpdated, beforeCrit, max, now)
	updated, err := s.store.UpdateCriterionMaxPoints(ctx, templateID, criterionID, max, entry)
	if err != nil {
		return rubric.Template{}, err
	}
	metrics.RecordAuditEntry()

	s.logger.Info(ctx, "criterion max points updated",
		logger.String("templateID", templateID),
		logger.String("criterionID", criterionID),
		logger.Float64("maxPoints", max),
	)
	return updated, nil
}

// RecordRequest carries one full or partial set of criterion evaluations
// for a (team, judge, template) key.
type RecordRequest struct {
	TeamID     string
	JudgeID    string
	TemplateID string
	Scope      string
	Entries    []scoring.Entry
	Bonus      float64
	Penalty    float64
}

// RecordScore validates the entries against the rubric structure, computes
// totals, and persists the score with a full overwrite of its detail rows.
// All validation happens before any persistence side effect; the audit
// entry commits in the same transaction as the score.
func (s *Service) RecordScore(ctx context.Context, req RecordRequest) (scoring.Score, error) {
	if req.TeamID == "" || req.JudgeID == "" || req.TemplateID == "" {
		return scoring.Score{}, fmt.Errorf("%w: team, judge and template are required", ErrBadRequest)
	}

	start := s.clock()
	unlock := s.writeLocks.lock(scoreKey(req.TeamID, req.JudgeID, req.TemplateID))
	defer unlock()

	t, err := s.store.Template(ctx, req.TemplateID)
	if err != nil {
		return scoring.Score{}, err
	}

	evalStart := s.clock()
	totals, err := scoring.Evaluate(t, req.Entries, req.Bonus, req.Penalty)
	metrics.RecordEvaluationLatency(float64(s.clock().Sub(evalStart).Milliseconds()))
	if err != nil {
		metrics.RecordErrorByComponent("scoring", "evaluation")
		return scoring.Score{}, err
	}

	now := s.clock().UTC()
	var before *scoring.Score
	sc, err := s.store.ScoreByKey(ctx, req.TeamID, req.JudgeID, req.TemplateID)
	switch {
	case err == nil:
		if sc.Status != scoring.StatusInProgress {
			return scoring.Score{}, fmt.Errorf("%w: score %s is %s", ErrScoreLocked, sc.ID, sc.Status)
		}
		snapshot := sc
		before = &snapshot
	case errors.Is(err, repository.ErrNotFound):
		sc = scoring.Score{
			ID:         uuid.NewString(),
			TeamID:     req.TeamID,
			JudgeID:    req.JudgeID,
			TemplateID: req.TemplateID,
			Status:     scoring.StatusInProgress,
			CreatedAt:  now,
		}
	default:
		return scoring.Score{}, err
	}

	sc.Scope = req.Scope
	sc.Bonus = req.Bonus
	sc.Penalty = req.Penalty
	sc.Details = scoring.BuildDetails(req.Entries, now)
	sc.Apply(totals)
	sc.UpdatedAt = now

	entry := audit.New(sc.ID, req.JudgeID, audit.ActionScoreRecorded, before, sc, now)
	if err := s.store.SaveScore(ctx, sc, entry); err != nil {
		return scoring.Score{}, err
	}
	metrics.RecordScoreRecorded()
	metrics.RecordAuditEntry()
	metrics.RecordRecordLatency(float64(s.clock().Sub(start).Milliseconds()))

	if totals.OutOfRange {
		// Stored unmodified; submission will refuse it and a human has
		// to resolve the bonus/penalty discrepancy.
		s.logger.Warn(ctx, "score total outside possible range",
			logger.String("scoreID", sc.ID),
			logger.Float64("total", totals.Total),
		)
	}
	return sc, nil
}

// SubmitScore moves a complete, plausible score to submitted and attempts
// auto-validation. Both transitions commit in a single transaction with
// their audit entries.
func (s *Service) SubmitScore(ctx context.Context, scoreID, actor string) (scoring.Score, error) {
	sc, err := s.store.Score(ctx, scoreID)
	if err != nil {
		return scoring.Score{}, err
	}

	// Submission is a write on the same key as RecordScore. Serialize with
	// it and re-read so the gate evaluates the committed detail set.
	unlock := s.writeLocks.lock(scoreKey(sc.TeamID, sc.JudgeID, sc.TemplateID))
	defer unlock()

	sc, err = s.store.Score(ctx, scoreID)
	if err != nil {
		return scoring.Score{}, err
	}
	t, err := s.store.Template(ctx, sc.TemplateID)
	if err != nil {
		return scoring.Score{}, err
	}
	if err := workflow.CheckSubmit(t, sc); err != nil {
		metrics.RecordErrorByComponent("workflow", "submit_gate")
		return scoring.Score{}, err
	}

	now := s.clock().UTC()
	steps := []repository.Transition{{
		From:  scoring.StatusInProgress,
		To:    scoring.StatusSubmitted,
		At:    now,
		Entry: audit.New(sc.ID, actor, audit.ActionScoreSubmitted, sc.Status, scoring.StatusSubmitted, now),
	}}

	candidate := sc
	candidate.Status = scoring.StatusSubmitted
	if workflow.AutoValidateEligible(candidate) {
		steps = append(steps, repository.Transition{
			From:  scoring.StatusSubmitted,
			To:    scoring.StatusValidated,
			At:    now,
			Entry: audit.New(sc.ID, workflow.SystemActor, audit.ActionScoreValidated, scoring.StatusSubmitted, scoring.StatusValidated, now),
		})
	}

	updated, err := s.store.TransitionScore(ctx, scoreID, steps...)
	if err != nil {
		return scoring.Score{}, err
	}
	metrics.RecordScoreSubmitted()
	metrics.RecordAuditEntry()
	if updated.Status == scoring.StatusValidated {
		metrics.RecordScoreValidated(workflow.SystemActor)
		metrics.RecordAuditEntry()
	}

	s.logger.Info(ctx, "score submitted",
		logger.String("scoreID", scoreID),
		logger.String("judgeID", sc.JudgeID),
		logger.Float64("total", sc.TotalScore),
		logger.Bool("autoValidated", updated.Status == scoring.StatusValidated),
	)
	return updated, nil
}

// ValidateScore performs a manual submitted -> validated transition.
func (s *Service) ValidateScore(ctx context.Context, scoreID, actor string) (scoring.Score, error) {
	updated, err := s.transition(ctx, scoreID, actor, scoring.StatusSubmitted, scoring.StatusValidated, audit.ActionScoreValidated)
	if err != nil {
		return scoring.Score{}, err
	}
	metrics.RecordScoreValidated("human")
	return updated, nil
}

// FinalizeScore performs a manual submitted -> final transition.
func (s *Service) FinalizeScore(ctx context.Context, scoreID, actor string) (scoring.Score, error) {
	updated, err := s.transition(ctx, scoreID, actor, scoring.StatusSubmitted, scoring.StatusFinal, audit.ActionScoreFinalized)
	if err != nil {
		return scoring.Score{}, err
	}
	metrics.RecordScoreFinalized()
	return updated, nil
}

func (s *Service) transition(ctx context.Context, scoreID, actor string, from, to scoring.Status, action string) (scoring.Score, error) {
	if err := workflow.Transition(from, to); err != nil {
		return scoring.Score{}, err
	}
	sc, err := s.store.Score(ctx, scoreID)
	if err != nil {
		return scoring.Score{}, err
	}
	if sc.Status != from {
		return scoring.Score{}, fmt.Errorf("%w: %s -> %s", workflow.ErrInvalidTransition, sc.Status, to)
	}
	now := s.clock().UTC()
	updated, err := s.store.TransitionScore(ctx, scoreID, repository.Transition{
		From:  from,
		To:    to,
		At:    now,
		Entry: audit.New(scoreID, actor, action, from, to, now),
	})
	if err != nil {
		return scoring.Score{}, err
	}
	metrics.RecordAuditEntry()
	return updated, nil
}

// Score returns a stored score.
func (s *Service) Score(ctx context.Context, id string) (scoring.Score, error) {
	return s.store.Score(ctx, id)
}

// ScoreSummary builds the display summary for a score.
func (s *Service) ScoreSummary(ctx context.Context, scoreID string) (scoring.Summary, error) {
	sc, err := s.store.Score(ctx, scoreID)
	if err != nil {
		return scoring.Summary{}, err
	}
	t, err := s.store.Template(ctx, sc.TemplateID)
	if err != nil {
		return scoring.Summary{}, err
	}
	return scoring.Summarize(t, sc, s.clock().UTC()), nil
}

// AuditTrail returns the append-only trail for a score or template.
func (s *Service) AuditTrail(ctx context.Context, subjectID string) ([]audit.Entry, error) {
	return s.store.AuditTrail(ctx, subjectID)
}

// CheckConsistency compares all submitted, validated and final totals for
// a team within a scope. Inconsistency is flagged, never an error; the
// flag lands in the audit trail for the reconciliation tooling.
func (s *Service) CheckConsistency(ctx context.Context, teamID, scope string) (consistency.Report, error) {
	scores, err := s.store.TeamScores(ctx, teamID, scope, []scoring.Status{
		scoring.StatusSubmitted, scoring.StatusValidated, scoring.StatusFinal,
	})
	if err != nil {
		return consistency.Report{}, err
	}

	totals := make(map[string]float64, len(scores))
	for _, sc := range scores {
		totals[sc.JudgeID] = sc.TotalScore
	}
	report := consistency.Check(totals, consistency.WithThreshold(s.threshold))
	metrics.RecordConsistencyCheck()

	if !report.Consistent {
		metrics.RecordConsistencyFlag()
		now := s.clock().UTC()
		entry := audit.New(teamID, workflow.SystemActor, audit.ActionConsistencyFlagged, nil, report, now)
		if err := s.store.AppendAudit(ctx, entry); err != nil {
			return consistency.Report{}, err
		}
		metrics.RecordAuditEntry()
		s.logger.Warn(ctx, "inconsistent judging detected",
			logger.String("teamID", teamID),
			logger.Float64("maxDeviationPct", report.MaxDeviationPct),
			logger.Int("judges", report.JudgeCount),
		)
	}
	return report, nil
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	stats := map[string]interface{}{
		"consistencyThresholdPct": s.threshold,
	}
	st, err := s.store.Stats(context.Background())
	if err != nil {
		return stats
	}
	stats["templates"] = st.Templates
	stats["scores"] = st.Scores
	stats["auditEntries"] = st.AuditEntries

	metrics.UpdateStoredTemplates(st.Templates)
	metrics.UpdateStoredScores(st.Scores)
	return stats
}
