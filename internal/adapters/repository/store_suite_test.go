package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	. "github.com/smartystreets/goconvey/convey"

	repository "github.com/robojudge/scorecard/internal/adapters/repository"
	"github.com/robojudge/scorecard/internal/domain/audit"
	"github.com/robojudge/scorecard/internal/domain/rubric"
	"github.com/robojudge/scorecard/internal/domain/scoring"
)

func newTestTemplate(t *testing.T, category string, version int) rubric.Template {
	t.Helper()
	tmpl, err := rubric.BuildTemplate(category, version)
	if err != nil {
		t.Fatalf("build template: %v", err)
	}
	return tmpl
}

func newTestScore(teamID, judgeID, templateID string) scoring.Score {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return scoring.Score{
		ID:         uuid.NewString(),
		TeamID:     teamID,
		JudgeID:    judgeID,
		TemplateID: templateID,
		Scope:      "spike",
		TotalScore: 180,
		Status:     scoring.StatusInProgress,
		Details: []scoring.Detail{
			{CriterionID: "c1", Points: 20, RecordedAt: now},
			{CriterionID: "c2", Points: 15, RecordedAt: now},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func testEntry(subjectID, action string) audit.Entry {
	return audit.New(subjectID, "judge-1", action, nil, nil, time.Now().UTC().Truncate(time.Microsecond))
}

// testStoreSuite exercises the Store contract shared by both implementations.
func testStoreSuite(t *testing.T, open func(t *testing.T) repository.Store) {
	ctx := context.Background()

	Convey("Given an empty store", t, func() {
		store := open(t)
		Reset(func() { _ = store.Close() })

		Convey("When fetching an unknown template", func() {
			_, err := store.Template(ctx, "missing")
			So(err, ShouldWrap, repository.ErrNotFound)
		})

		Convey("When fetching an unknown score", func() {
			_, err := store.Score(ctx, "missing")
			So(err, ShouldWrap, repository.ErrNotFound)

			_, err = store.ScoreByKey(ctx, "team-1", "judge-1", "tmpl-1")
			So(err, ShouldWrap, repository.ErrNotFound)
		})

		Convey("When storing a template", func() {
			tmpl := newTestTemplate(t, "spike", 1)
			So(store.PutTemplate(ctx, tmpl, testEntry(tmpl.ID, audit.ActionTemplateCreated)), ShouldBeNil)

			Convey("Then it should round-trip by id", func() {
				got, err := store.Template(ctx, tmpl.ID)
				So(err, ShouldBeNil)
				So(got.ID, ShouldEqual, tmpl.ID)
				So(got.CategoryCode, ShouldEqual, "spike")
				So(got.Sections, ShouldHaveLength, 2)
				So(got.Sections[0].Criteria, ShouldHaveLength, len(tmpl.Sections[0].Criteria))
			})

			Convey("Then the audit entry should land in its trail", func() {
				trail, err := store.AuditTrail(ctx, tmpl.ID)
				So(err, ShouldBeNil)
				So(trail, ShouldHaveLength, 1)
				So(trail[0].Action, ShouldEqual, audit.ActionTemplateCreated)
			})

			Convey("And a newer version is stored", func() {
				v2 := newTestTemplate(t, "spike", 2)
				So(store.PutTemplate(ctx, v2, testEntry(v2.ID, audit.ActionTemplateCreated)), ShouldBeNil)

				Convey("Then the active template should be the highest version", func() {
					got, err := store.ActiveTemplate(ctx, "spike")
					So(err, ShouldBeNil)
					So(got.Version, ShouldEqual, 2)
				})

				Convey("And the newer version is deactivated", func() {
					v2.Active = false
					So(store.PutTemplate(ctx, v2, testEntry(v2.ID, audit.ActionTemplateSuperseded)), ShouldBeNil)

					got, err := store.ActiveTemplate(ctx, "spike")
					So(err, ShouldBeNil)
					So(got.Version, ShouldEqual, 1)
				})
			})

			Convey("Then no active template should exist for other categories", func() {
				_, err := store.ActiveTemplate(ctx, "junior")
				So(err, ShouldWrap, repository.ErrNotFound)
			})
		})

		Convey("When updating a criterion's point cap", func() {
			tmpl := newTestTemplate(t, "spike", 1)
			So(store.PutTemplate(ctx, tmpl, testEntry(tmpl.ID, audit.ActionTemplateCreated)), ShouldBeNil)
			target := tmpl.Sections[0].Criteria[0]

			Convey("And no scores reference the template", func() {
				updated, err := store.UpdateCriterionMaxPoints(ctx, tmpl.ID, target.ID, 40, testEntry(tmpl.ID, audit.ActionMaxPointsUpdated))
				So(err, ShouldBeNil)

				Convey("Then the cap and levels should be rewritten and persisted", func() {
					c, _, ok := updated.Criterion(target.ID)
					So(ok, ShouldBeTrue)
					So(c.MaxPoints, ShouldEqual, 40.0)
					So(c.Levels[3].Points, ShouldEqual, 40.0)

					stored, err := store.Template(ctx, tmpl.ID)
					So(err, ShouldBeNil)
					sc, _, _ := stored.Criterion(target.ID)
					So(sc.MaxPoints, ShouldEqual, 40.0)
				})
			})

			Convey("And a score references the template", func() {
				sc := newTestScore("team-1", "judge-1", tmpl.ID)
				So(store.SaveScore(ctx, sc, testEntry(sc.ID, audit.ActionScoreRecorded)), ShouldBeNil)

				_, err := store.UpdateCriterionMaxPoints(ctx, tmpl.ID, target.ID, 40, testEntry(tmpl.ID, audit.ActionMaxPointsUpdated))
				So(err, ShouldWrap, repository.ErrTemplateImmutable)
			})

			Convey("And the template does not exist", func() {
				_, err := store.UpdateCriterionMaxPoints(ctx, "missing", target.ID, 40, testEntry("missing", audit.ActionMaxPointsUpdated))
				So(err, ShouldWrap, repository.ErrNotFound)
			})
		})

		Convey("When saving a score", func() {
			sc := newTestScore("team-1", "judge-1", "tmpl-1")
			So(store.SaveScore(ctx, sc, testEntry(sc.ID, audit.ActionScoreRecorded)), ShouldBeNil)

			Convey("Then it should round-trip by id and by key", func() {
				got, err := store.Score(ctx, sc.ID)
				So(err, ShouldBeNil)
				So(got.TeamID, ShouldEqual, "team-1")
				So(got.TotalScore, ShouldEqual, 180.0)
				So(got.Details, ShouldHaveLength, 2)

				byKey, err := store.ScoreByKey(ctx, "team-1", "judge-1", "tmpl-1")
				So(err, ShouldBeNil)
				So(byKey.ID, ShouldEqual, sc.ID)
			})

			Convey("And it is saved again with fewer details", func() {
				sc.Details = sc.Details[:1]
				sc.TotalScore = 60
				So(store.SaveScore(ctx, sc, testEntry(sc.ID, audit.ActionScoreRecorded)), ShouldBeNil)

				Convey("Then the detail set should be replaced wholesale", func() {
					got, err := store.Score(ctx, sc.ID)
					So(err, ShouldBeNil)
					So(got.Details, ShouldHaveLength, 1)
					So(got.TotalScore, ShouldEqual, 60.0)
				})

				Convey("Then both saves should appear in the audit trail", func() {
					trail, err := store.AuditTrail(ctx, sc.ID)
					So(err, ShouldBeNil)
					So(trail, ShouldHaveLength, 2)
				})
			})
		})

		Convey("When transitioning a score", func() {
			sc := newTestScore("team-1", "judge-1", "tmpl-1")
			So(store.SaveScore(ctx, sc, testEntry(sc.ID, audit.ActionScoreRecorded)), ShouldBeNil)
			at := time.Now().UTC().Truncate(time.Microsecond)

			Convey("And the step matches the current status", func() {
				updated, err := store.TransitionScore(ctx, sc.ID, repository.Transition{
					From:  scoring.StatusInProgress,
					To:    scoring.StatusSubmitted,
					At:    at,
					Entry: testEntry(sc.ID, audit.ActionScoreSubmitted),
				})
				So(err, ShouldBeNil)

				Convey("Then the status and timestamp should be stamped", func() {
					So(updated.Status, ShouldEqual, scoring.StatusSubmitted)
					So(updated.SubmittedAt, ShouldNotBeNil)
					So(updated.ValidatedAt, ShouldBeNil)
				})
			})

			Convey("And two steps are applied atomically", func() {
				updated, err := store.TransitionScore(ctx, sc.ID,
					repository.Transition{
						From:  scoring.StatusInProgress,
						To:    scoring.StatusSubmitted,
						At:    at,
						Entry: testEntry(sc.ID, audit.ActionScoreSubmitted),
					},
					repository.Transition{
						From:  scoring.StatusSubmitted,
						To:    scoring.StatusValidated,
						At:    at,
						Entry: testEntry(sc.ID, audit.ActionScoreValidated),
					},
				)
				So(err, ShouldBeNil)

				Convey("Then both stamps and both audit entries should exist", func() {
					So(updated.Status, ShouldEqual, scoring.StatusValidated)
					So(updated.SubmittedAt, ShouldNotBeNil)
					So(updated.ValidatedAt, ShouldNotBeNil)

					trail, err := store.AuditTrail(ctx, sc.ID)
					So(err, ShouldBeNil)
					So(trail, ShouldHaveLength, 3) // record + submit + validate
				})
			})

			Convey("And the step's From does not match", func() {
				_, err := store.TransitionScore(ctx, sc.ID, repository.Transition{
					From:  scoring.StatusSubmitted,
					To:    scoring.StatusValidated,
					At:    at,
					Entry: testEntry(sc.ID, audit.ActionScoreValidated),
				})
				So(err, ShouldWrap, repository.ErrStatusConflict)

				Convey("Then the score should be unchanged", func() {
					got, gerr := store.Score(ctx, sc.ID)
					So(gerr, ShouldBeNil)
					So(got.Status, ShouldEqual, scoring.StatusInProgress)
				})
			})

			Convey("And the score does not exist", func() {
				_, err := store.TransitionScore(ctx, "missing", repository.Transition{
					From: scoring.StatusInProgress,
					To:   scoring.StatusSubmitted,
					At:   at,
				})
				So(err, ShouldWrap, repository.ErrNotFound)
			})
		})

		Convey("When listing team scores", func() {
			a := newTestScore("team-1", "judge-b", "tmpl-1")
			b := newTestScore("team-1", "judge-a", "tmpl-1")
			b.Status = scoring.StatusValidated
			c := newTestScore("team-1", "judge-c", "tmpl-1")
			c.Scope = "junior"
			d := newTestScore("team-2", "judge-a", "tmpl-1")
			for _, sc := range []scoring.Score{a, b, c, d} {
				So(store.SaveScore(ctx, sc, testEntry(sc.ID, audit.ActionScoreRecorded)), ShouldBeNil)
			}

			Convey("Then scope and team should filter", func() {
				scores, err := store.TeamScores(ctx, "team-1", "spike", nil)
				So(err, ShouldBeNil)
				So(scores, ShouldHaveLength, 2)

				Convey("And results should be ordered by judge", func() {
					So(scores[0].JudgeID, ShouldEqual, "judge-a")
					So(scores[1].JudgeID, ShouldEqual, "judge-b")
				})
			})

			Convey("Then a status filter should apply", func() {
				scores, err := store.TeamScores(ctx, "team-1", "spike", []scoring.Status{scoring.StatusValidated})
				So(err, ShouldBeNil)
				So(scores, ShouldHaveLength, 1)
				So(scores[0].JudgeID, ShouldEqual, "judge-a")
			})

			Convey("Then an empty scope should match every scope", func() {
				scores, err := store.TeamScores(ctx, "team-1", "", nil)
				So(err, ShouldBeNil)
				So(scores, ShouldHaveLength, 3)
			})
		})

		Convey("When appending standalone audit entries", func() {
			first := testEntry("team-9", audit.ActionConsistencyFlagged)
			So(store.AppendAudit(ctx, first), ShouldBeNil)
			second := testEntry("team-9", audit.ActionConsistencyFlagged)
			second.At = first.At.Add(time.Second)
			So(store.AppendAudit(ctx, second), ShouldBeNil)

			Convey("Then the trail should preserve order", func() {
				trail, err := store.AuditTrail(ctx, "team-9")
				So(err, ShouldBeNil)
				So(trail, ShouldHaveLength, 2)
				So(trail[0].ID, ShouldEqual, first.ID)
				So(trail[1].ID, ShouldEqual, second.ID)
			})
		})

		Convey("When asking for stats", func() {
			tmpl := newTestTemplate(t, "junior", 1)
			So(store.PutTemplate(ctx, tmpl, testEntry(tmpl.ID, audit.ActionTemplateCreated)), ShouldBeNil)
			sc := newTestScore("team-1", "judge-1", tmpl.ID)
			So(store.SaveScore(ctx, sc, testEntry(sc.ID, audit.ActionScoreRecorded)), ShouldBeNil)

			st, err := store.Stats(ctx)
			So(err, ShouldBeNil)
			So(st.Templates, ShouldEqual, 1)
			So(st.Scores, ShouldEqual, 1)
			So(st.AuditEntries, ShouldEqual, 2)
		})
	})
}
