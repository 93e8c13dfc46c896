package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/robojudge/scorecard/internal/domain/audit"
	"github.com/robojudge/scorecard/internal/domain/rubric"
	"github.com/robojudge/scorecard/internal/domain/scoring"
)

// MemStore is a mutex-guarded in-memory Store. Used by unit tests and as
// the fallback when no database path is configured. Mutations are atomic
// under the store lock, mirroring the SQL store's transaction boundary.
type MemStore struct {
	mu        sync.RWMutex
	templates map[string]rubric.Template
	scores    map[string]scoring.Score
	scoreKeys map[string]string // team|judge|template -> score id
	trail     map[string][]audit.Entry
}

// NewMemStore constructs an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{
		templates: make(map[string]rubric.Template),
		scores:    make(map[string]scoring.Score),
		scoreKeys: make(map[string]string),
		trail:     make(map[string][]audit.Entry),
	}
}

func scoreKey(teamID, judgeID, templateID string) string {
	return teamID + "|" + judgeID + "|" + templateID
}

func (m *MemStore) PutTemplate(ctx context.Context, t rubric.Template, entry audit.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.templates[t.ID] = copyTemplate(t)
	m.trail[entry.SubjectID] = append(m.trail[entry.SubjectID], entry)
	return nil
}

func (m *MemStore) Template(ctx context.Context, id string) (rubric.Template, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.templates[id]
	if !ok {
		return rubric.Template{}, fmt.Errorf("%w: template %s", ErrNotFound, id)
	}
	return copyTemplate(t), nil
}

func (m *MemStore) ActiveTemplate(ctx context.Context, categoryCode string) (rubric.Template, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var best rubric.Template
	found := false
	for _, t := range m.templates {
		if t.CategoryCode != categoryCode || !t.Active {
			continue
		}
		if !found || t.Version > best.Version {
			best, found = t, true
		}
	}
	if !found {
		return rubric.Template{}, fmt.Errorf("%w: active template for category %q", ErrNotFound, categoryCode)
	}
	return copyTemplate(best), nil
}

func (m *MemStore) UpdateCriterionMaxPoints(ctx context.Context, templateID, criterionID string, max float64, entry audit.Entry) (rubric.Template, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.templates[templateID]
	if !ok {
		return rubric.Template{}, fmt.Errorf("%w: template %s", ErrNotFound, templateID)
	}
	for _, s := range m.scores {
		if s.TemplateID == templateID {
			return rubric.Template{}, fmt.Errorf("%w: %s", ErrTemplateImmutable, templateID)
		}
	}
	updated := copyTemplate(t)
	if err := rubric.SetCriterionMaxPoints(&updated, criterionID, max); err != nil {
		return rubric.Template{}, err
	}
	m.templates[templateID] = updated
	m.trail[entry.SubjectID] = append(m.trail[entry.SubjectID], entry)
	return copyTemplate(updated), nil
}

func (m *MemStore) Score(ctx context.Context, id string) (scoring.Score, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.scores[id]
	if !ok {
		return scoring.Score{}, fmt.Errorf("%w: score %s", ErrNotFound, id)
	}
	return copyScore(s), nil
}

func (m *MemStore) ScoreByKey(ctx context.Context, teamID, judgeID, templateID string) (scoring.Score, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.scoreKeys[scoreKey(teamID, judgeID, templateID)]
	if !ok {
		return scoring.Score{}, fmt.Errorf("%w: score for team %s judge %s", ErrNotFound, teamID, judgeID)
	}
	return copyScore(m.scores[id]), nil
}

func (m *MemStore) SaveScore(ctx context.Context, s scoring.Score, entry audit.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scores[s.ID] = copyScore(s)
	m.scoreKeys[scoreKey(s.TeamID, s.JudgeID, s.TemplateID)] = s.ID
	m.trail[entry.SubjectID] = append(m.trail[entry.SubjectID], entry)
	return nil
}

func (m *MemStore) TransitionScore(ctx context.Context, id string, steps ...Transition) (scoring.Score, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.scores[id]
	if !ok {
		return scoring.Score{}, fmt.Errorf("%w: score %s", ErrNotFound, id)
	}
	updated := copyScore(s)
	entries := make([]audit.Entry, 0, len(steps))
	for _, step := range steps {
		if updated.Status != step.From {
			return scoring.Score{}, fmt.Errorf("%w: score %s is %s, want %s", ErrStatusConflict, id, updated.Status, step.From)
		}
		applyTransition(&updated, step.To, step.At)
		entries = append(entries, step.Entry)
	}
	m.scores[id] = updated
	for _, e := range entries {
		m.trail[e.SubjectID] = append(m.trail[e.SubjectID], e)
	}
	return copyScore(updated), nil
}

func (m *MemStore) TeamScores(ctx context.Context, teamID, scope string, statuses []scoring.Status) ([]scoring.Score, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []scoring.Score
	for _, s := range m.scores {
		if s.TeamID != teamID {
			continue
		}
		if scope != "" && s.Scope != scope {
			continue
		}
		if !statusIn(s.Status, statuses) {
			continue
		}
		out = append(out, copyScore(s))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].JudgeID < out[j].JudgeID })
	return out, nil
}

func (m *MemStore) AppendAudit(ctx context.Context, entry audit.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.trail[entry.SubjectID] = append(m.trail[entry.SubjectID], entry)
	return nil
}

func (m *MemStore) AuditTrail(ctx context.Context, subjectID string) ([]audit.Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	trail := m.trail[subjectID]
	out := make([]audit.Entry, len(trail))
	copy(out, trail)
	return out, nil
}

func (m *MemStore) Stats(ctx context.Context) (Stats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	st := Stats{Templates: len(m.templates), Scores: len(m.scores)}
	for _, trail := range m.trail {
		st.AuditEntries += len(trail)
	}
	return st, nil
}

func (m *MemStore) Close() error { return nil }

// copyTemplate deep-copies the section/criterion/level hierarchy so callers
// cannot alias store-owned slices.
func copyTemplate(t rubric.Template) rubric.Template {
	out := t
	out.Sections = make([]rubric.Section, len(t.Sections))
	for i, s := range t.Sections {
		cs := s
		cs.Criteria = make([]rubric.Criterion, len(s.Criteria))
		for j, c := range s.Criteria {
			cc := c
			cc.Levels = append([]rubric.Level(nil), c.Levels...)
			cs.Criteria[j] = cc
		}
		out.Sections[i] = cs
	}
	return out
}

// copyScore deep-copies a score including its detail rows and timestamp
// pointers.
func copyScore(s scoring.Score) scoring.Score {
	out := s
	out.Details = append([]scoring.Detail(nil), s.Details...)
	out.SubmittedAt = copyTime(s.SubmittedAt)
	out.ValidatedAt = copyTime(s.ValidatedAt)
	out.FinalizedAt = copyTime(s.FinalizedAt)
	return out
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
