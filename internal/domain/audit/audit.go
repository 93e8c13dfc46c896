// Package audit models the immutable record of score mutations and
// workflow transitions. Entries are written in the same transaction as the
// mutation they describe and are never updated or deleted.
package audit

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Action names recorded in the trail.
const (
	ActionTemplateCreated    = "template.created"
	ActionTemplateSuperseded = "template.superseded"
	ActionMaxPointsUpdated   = "criterion.max_points_updated"
	ActionScoreRecorded      = "score.recorded"
	ActionScoreSubmitted     = "score.submitted"
	ActionScoreValidated     = "score.validated"
	ActionScoreFinalized     = "score.finalized"
	ActionConsistencyFlagged = "consistency.flagged"
)

// Entry is one immutable audit record. SubjectID is the score (or, for
// template actions, the template) the entry describes.
type Entry struct {
	ID        string          `json:"id"`
	SubjectID string          `json:"subject_id"`
	Actor     string          `json:"actor"`
	Action    string          `json:"action"`
	Before    json.RawMessage `json:"before,omitempty"`
	After     json.RawMessage `json:"after,omitempty"`
	At        time.Time       `json:"at"`
}

// New builds an entry with before/after snapshots of arbitrary values.
// Snapshot marshaling failures degrade to a null snapshot rather than
// blocking the mutation's audit record.
func New(subjectID, actor, action string, before, after any, at time.Time) Entry {
	return Entry{
		ID:        uuid.NewString(),
		SubjectID: subjectID,
		Actor:     actor,
		Action:    action,
		Before:    snapshot(before),
		After:     snapshot(after),
		At:        at,
	}
}

func snapshot(v any) json.RawMessage {
	if v == nil {
		return nil
	}
	buf, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return buf
}
