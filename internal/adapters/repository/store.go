// Package repository defines the persistence interface for rubric
// templates, scores and the audit log, plus SQL and in-memory
// implementations.
package repository

import (
	"context"
	"time"

	"github.com/robojudge/scorecard/internal/domain/audit"
	"github.com/robojudge/scorecard/internal/domain/rubric"
	"github.com/robojudge/scorecard/internal/domain/scoring"
)

// Transition is one CAS status change applied to a score. All steps passed
// to TransitionScore commit or roll back together.
type Transition struct {
	From  scoring.Status
	To    scoring.Status
	At    time.Time
	Entry audit.Entry
}

// Stats reports store sizes for monitoring.
type Stats struct {
	Templates    int `json:"templates"`
	Scores       int `json:"scores"`
	AuditEntries int `json:"audit_entries"`
}

// Store provides transactional access to the scoring state. Every mutation
// persists its audit entry in the same transaction; partial writes are
// never acceptable.
type Store interface {
	// PutTemplate persists a full template hierarchy.
	PutTemplate(ctx context.Context, t rubric.Template, entry audit.Entry) error
	// Template returns a template by id. Returns ErrNotFound when unknown.
	Template(ctx context.Context, id string) (rubric.Template, error)
	// ActiveTemplate returns the active template with the highest version
	// for a category code.
	ActiveTemplate(ctx context.Context, categoryCode string) (rubric.Template, error)
	// UpdateCriterionMaxPoints rewrites a criterion's cap and its four
	// level rows in one transaction. Fails with ErrTemplateImmutable once
	// any score references the template.
	UpdateCriterionMaxPoints(ctx context.Context, templateID, criterionID string, max float64, entry audit.Entry) (rubric.Template, error)

	// Score returns a score by id.
	Score(ctx context.Context, id string) (scoring.Score, error)
	// ScoreByKey returns the score for a (team, judge, template) key.
	ScoreByKey(ctx context.Context, teamID, judgeID, templateID string) (scoring.Score, error)
	// SaveScore upserts a score, replacing its full detail set, and
	// appends the audit entry in the same transaction.
	SaveScore(ctx context.Context, s scoring.Score, entry audit.Entry) error
	// TransitionScore applies one or more status changes atomically. Each
	// step checks the current status against From and fails with
	// ErrStatusConflict on mismatch.
	TransitionScore(ctx context.Context, id string, steps ...Transition) (scoring.Score, error)
	// TeamScores lists a team's scores within a scope, filtered to the
	// given statuses (all statuses when empty).
	TeamScores(ctx context.Context, teamID, scope string, statuses []scoring.Status) ([]scoring.Score, error)

	// AppendAudit records a standalone audit entry not tied to a score or
	// template mutation, such as a consistency flag.
	AppendAudit(ctx context.Context, entry audit.Entry) error
	// AuditTrail returns the append-only trail for a score or template.
	AuditTrail(ctx context.Context, subjectID string) ([]audit.Entry, error)

	// Stats reports store sizes.
	Stats(ctx context.Context) (Stats, error)

	Close() error
}

// applyTransition stamps the status change onto a score. Shared by both
// store implementations so the timestamp semantics cannot drift.
func applyTransition(s *scoring.Score, to scoring.Status, at time.Time) {
	s.Status = to
	s.UpdatedAt = at
	ts := at
	switch to {
	case scoring.StatusSubmitted:
		s.SubmittedAt = &ts
	case scoring.StatusValidated:
		s.ValidatedAt = &ts
	case scoring.StatusFinal:
		s.FinalizedAt = &ts
	}
}

// statusIn reports whether status is in the filter set; an empty filter
// matches everything.
func statusIn(status scoring.Status, filter []scoring.Status) bool {
	if len(filter) == 0 {
		return true
	}
	for _, f := range filter {
		if f == status {
			return true
		}
	}
	return false
}
