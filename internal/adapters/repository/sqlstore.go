package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // registers the "sqlite" driver

	"github.com/robojudge/scorecard/internal/domain/audit"
	"github.com/robojudge/scorecard/internal/domain/rubric"
	"github.com/robojudge/scorecard/internal/domain/scoring"
)

// SQLStore persists scoring state in SQLite via database/sql. Templates
// and scores are stored as JSON documents alongside the columns needed for
// lookups; the audit log is a plain append-only table. Every mutation runs
// inside a transaction with its audit entry.
type SQLStore struct {
	db *sql.DB
}

// SQLOption configures OpenSQLStore.
type SQLOption func(*sqlConfig)

type sqlConfig struct {
	busyTimeout  time.Duration
	maxOpenConns int
}

// WithBusyTimeout sets the SQLite busy timeout.
func WithBusyTimeout(d time.Duration) SQLOption {
	return func(c *sqlConfig) {
		if d > 0 {
			c.busyTimeout = d
		}
	}
}

// WithMaxOpenConns bounds the connection pool.
func WithMaxOpenConns(n int) SQLOption {
	return func(c *sqlConfig) {
		if n > 0 {
			c.maxOpenConns = n
		}
	}
}

const schema = `
CREATE TABLE IF NOT EXISTS rubric_templates (
	id            TEXT PRIMARY KEY,
	category_code TEXT NOT NULL,
	version       INTEGER NOT NULL,
	active        INTEGER NOT NULL,
	doc           TEXT NOT NULL,
	created_at    INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS scores (
	id          TEXT PRIMARY KEY,
	team_id     TEXT NOT NULL,
	judge_id    TEXT NOT NULL,
	template_id TEXT NOT NULL,
	scope       TEXT NOT NULL DEFAULT '',
	status      TEXT NOT NULL,
	total_score REAL NOT NULL,
	doc         TEXT NOT NULL,
	updated_at  INTEGER NOT NULL,
	UNIQUE (team_id, judge_id, template_id)
);
CREATE INDEX IF NOT EXISTS idx_scores_team ON scores (team_id, scope, status);
CREATE INDEX IF NOT EXISTS idx_scores_template ON scores (template_id);
CREATE TABLE IF NOT EXISTS audit_log (
	id          TEXT PRIMARY KEY,
	subject_id  TEXT NOT NULL,
	actor       TEXT NOT NULL,
	action      TEXT NOT NULL,
	before_json TEXT,
	after_json  TEXT,
	at          INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_audit_subject ON audit_log (subject_id, at);
`

// OpenSQLStore opens (creating if needed) the SQLite database at path and
// bootstraps the schema.
func OpenSQLStore(ctx context.Context, path string, opts ...SQLOption) (*SQLStore, error) {
	cfg := sqlConfig{busyTimeout: 5 * time.Second, maxOpenConns: 1}
	for _, opt := range opts {
		opt(&cfg)
	}

	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(%d)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)",
		path, cfg.busyTimeout.Milliseconds())
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(cfg.maxOpenConns)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("bootstrap schema: %w", err)
	}
	return &SQLStore{db: db}, nil
}

func (s *SQLStore) Close() error { return s.db.Close() }

// withTx runs fn inside a transaction, rolling back on any failure.
func (s *SQLStore) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func insertAudit(tx *sql.Tx, e audit.Entry) error {
	_, err := tx.Exec(`INSERT INTO audit_log (id, subject_id, actor, action, before_json, after_json, at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		e.ID, e.SubjectID, e.Actor, e.Action, nullableJSON(e.Before), nullableJSON(e.After), e.At.UnixNano())
	if err != nil {
		return fmt.Errorf("append audit entry: %w", err)
	}
	return nil
}

func nullableJSON(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}

func (s *SQLStore) PutTemplate(ctx context.Context, t rubric.Template, entry audit.Entry) error {
	doc, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("marshal template: %w", err)
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.Exec(`INSERT INTO rubric_templates (id, category_code, version, active, doc, created_at)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (id) DO UPDATE SET active=EXCLUDED.active, doc=EXCLUDED.doc`,
			t.ID, t.CategoryCode, t.Version, boolInt(t.Active), string(doc), t.CreatedAt.UnixNano())
		if err != nil {
			return fmt.Errorf("put template: %w", err)
		}
		return insertAudit(tx, entry)
	})
}

func (s *SQLStore) Template(ctx context.Context, id string) (rubric.Template, error) {
	row := s.db.QueryRowContext(ctx, `SELECT doc FROM rubric_templates WHERE id=$1`, id)
	return scanTemplate(row, "template "+id)
}

func (s *SQLStore) ActiveTemplate(ctx context.Context, categoryCode string) (rubric.Template, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT doc FROM rubric_templates WHERE category_code=$1 AND active=1 ORDER BY version DESC LIMIT 1`,
		categoryCode)
	return scanTemplate(row, "active template for category "+categoryCode)
}

func scanTemplate(row *sql.Row, what string) (rubric.Template, error) {
	var doc string
	if err := row.Scan(&doc); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return rubric.Template{}, fmt.Errorf("%w: %s", ErrNotFound, what)
		}
		return rubric.Template{}, fmt.Errorf("scan template: %w", err)
	}
	var t rubric.Template
	if err := json.Unmarshal([]byte(doc), &t); err != nil {
		return rubric.Template{}, fmt.Errorf("unmarshal template: %w", err)
	}
	return t, nil
}

func (s *SQLStore) UpdateCriterionMaxPoints(ctx context.Context, templateID, criterionID string, max float64, entry audit.Entry) (rubric.Template, error) {
	var updated rubric.Template
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var doc string
		if err := tx.QueryRow(`SELECT doc FROM rubric_templates WHERE id=$1`, templateID).Scan(&doc); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("%w: template %s", ErrNotFound, templateID)
			}
			return fmt.Errorf("load template: %w", err)
		}
		var scored int
		if err := tx.QueryRow(`SELECT COUNT(1) FROM scores WHERE template_id=$1`, templateID).Scan(&scored); err != nil {
			return fmt.Errorf("count template scores: %w", err)
		}
		if scored > 0 {
			return fmt.Errorf("%w: %s", ErrTemplateImmutable, templateID)
		}

		var t rubric.Template
		if err := json.Unmarshal([]byte(doc), &t); err != nil {
			return fmt.Errorf("unmarshal template: %w", err)
		}
		if err := rubric.SetCriterionMaxPoints(&t, criterionID, max); err != nil {
			return err
		}
		buf, err := json.Marshal(t)
		if err != nil {
			return fmt.Errorf("marshal template: %w", err)
		}
		if _, err := tx.Exec(`UPDATE rubric_templates SET doc=$1 WHERE id=$2`, string(buf), templateID); err != nil {
			return fmt.Errorf("update template: %w", err)
		}
		updated = t
		return insertAudit(tx, entry)
	})
	if err != nil {
		return rubric.Template{}, err
	}
	return updated, nil
}

func (s *SQLStore) Score(ctx context.Context, id string) (scoring.Score, error) {
	row := s.db.QueryRowContext(ctx, `SELECT doc FROM scores WHERE id=$1`, id)
	return scanScore(row, "score "+id)
}

func (s *SQLStore) ScoreByKey(ctx context.Context, teamID, judgeID, templateID string) (scoring.Score, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT doc FROM scores WHERE team_id=$1 AND judge_id=$2 AND template_id=$3`,
		teamID, judgeID, templateID)
	return scanScore(row, fmt.Sprintf("score for team %s judge %s", teamID, judgeID))
}

func scanScore(row *sql.Row, what string) (scoring.Score, error) {
	var doc string
	if err := row.Scan(&doc); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return scoring.Score{}, fmt.Errorf("%w: %s", ErrNotFound, what)
		}
		return scoring.Score{}, fmt.Errorf("scan score: %w", err)
	}
	var sc scoring.Score
	if err := json.Unmarshal([]byte(doc), &sc); err != nil {
		return scoring.Score{}, fmt.Errorf("unmarshal score: %w", err)
	}
	return sc, nil
}

func (s *SQLStore) SaveScore(ctx context.Context, sc scoring.Score, entry audit.Entry) error {
	doc, err := json.Marshal(sc)
	if err != nil {
		return fmt.Errorf("marshal score: %w", err)
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		// Replacing doc wholesale gives the full-overwrite detail
		// semantics: a save is never an incremental patch.
		_, err := tx.Exec(`INSERT INTO scores (id, team_id, judge_id, template_id, scope, status, total_score, doc, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			ON CONFLICT (id) DO UPDATE SET status=EXCLUDED.status, total_score=EXCLUDED.total_score,
				doc=EXCLUDED.doc, updated_at=EXCLUDED.updated_at`,
			sc.ID, sc.TeamID, sc.JudgeID, sc.TemplateID, sc.Scope, string(sc.Status), sc.TotalScore,
			string(doc), sc.UpdatedAt.UnixNano())
		if err != nil {
			return fmt.Errorf("save score: %w", err)
		}
		return insertAudit(tx, entry)
	})
}

func (s *SQLStore) TransitionScore(ctx context.Context, id string, steps ...Transition) (scoring.Score, error) {
	var out scoring.Score
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var doc string
		if err := tx.QueryRow(`SELECT doc FROM scores WHERE id=$1`, id).Scan(&doc); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("%w: score %s", ErrNotFound, id)
			}
			return fmt.Errorf("load score: %w", err)
		}
		var sc scoring.Score
		if err := json.Unmarshal([]byte(doc), &sc); err != nil {
			return fmt.Errorf("unmarshal score: %w", err)
		}
		for _, step := range steps {
			if sc.Status != step.From {
				return fmt.Errorf("%w: score %s is %s, want %s", ErrStatusConflict, id, sc.Status, step.From)
			}
			applyTransition(&sc, step.To, step.At)
			if err := insertAudit(tx, step.Entry); err != nil {
				return err
			}
		}
		buf, err := json.Marshal(sc)
		if err != nil {
			return fmt.Errorf("marshal score: %w", err)
		}
		if _, err := tx.Exec(`UPDATE scores SET status=$1, doc=$2, updated_at=$3 WHERE id=$4`,
			string(sc.Status), string(buf), sc.UpdatedAt.UnixNano(), id); err != nil {
			return fmt.Errorf("update score: %w", err)
		}
		out = sc
		return nil
	})
	if err != nil {
		return scoring.Score{}, err
	}
	return out, nil
}

func (s *SQLStore) TeamScores(ctx context.Context, teamID, scope string, statuses []scoring.Status) ([]scoring.Score, error) {
	query := `SELECT doc FROM scores WHERE team_id=$1`
	args := []any{teamID}
	if scope != "" {
		query += ` AND scope=$2`
		args = append(args, scope)
	}
	query += ` ORDER BY judge_id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list team scores: %w", err)
	}
	defer rows.Close()

	var out []scoring.Score
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("scan score: %w", err)
		}
		var sc scoring.Score
		if err := json.Unmarshal([]byte(doc), &sc); err != nil {
			return nil, fmt.Errorf("unmarshal score: %w", err)
		}
		if statusIn(sc.Status, statuses) {
			out = append(out, sc)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate scores: %w", err)
	}
	return out, nil
}

func (s *SQLStore) AppendAudit(ctx context.Context, entry audit.Entry) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		return insertAudit(tx, entry)
	})
}

func (s *SQLStore) AuditTrail(ctx context.Context, subjectID string) ([]audit.Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, subject_id, actor, action, before_json, after_json, at
		 FROM audit_log WHERE subject_id=$1 ORDER BY at, id`, subjectID)
	if err != nil {
		return nil, fmt.Errorf("list audit trail: %w", err)
	}
	defer rows.Close()

	var out []audit.Entry
	for rows.Next() {
		var e audit.Entry
		var before, after sql.NullString
		var at int64
		if err := rows.Scan(&e.ID, &e.SubjectID, &e.Actor, &e.Action, &before, &after, &at); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		if before.Valid {
			e.Before = json.RawMessage(before.String)
		}
		if after.Valid {
			e.After = json.RawMessage(after.String)
		}
		e.At = time.Unix(0, at).UTC()
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit trail: %w", err)
	}
	return out, nil
}

func (s *SQLStore) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM rubric_templates`).Scan(&st.Templates); err != nil {
		return Stats{}, fmt.Errorf("count templates: %w", err)
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM scores`).Scan(&st.Scores); err != nil {
		return Stats{}, fmt.Errorf("count scores: %w", err)
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM audit_log`).Scan(&st.AuditEntries); err != nil {
		return Stats{}, fmt.Errorf("count audit entries: %w", err)
	}
	return st, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
