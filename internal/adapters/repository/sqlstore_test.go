package repository_test

import (
	"context"
	"path/filepath"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	repository "github.com/robojudge/scorecard/internal/adapters/repository"
	"github.com/robojudge/scorecard/internal/domain/audit"
	"github.com/robojudge/scorecard/internal/domain/scoring"
)

func TestSQLStore(t *testing.T) {
	testStoreSuite(t, func(t *testing.T) repository.Store {
		store, err := repository.OpenSQLStore(context.Background(), filepath.Join(t.TempDir(), "scores.db"))
		if err != nil {
			t.Fatalf("open sql store: %v", err)
		}
		return store
	})
}

func TestSQLStorePersistence(t *testing.T) {
	ctx := context.Background()

	Convey("Given a database file", t, func() {
		path := filepath.Join(t.TempDir(), "scores.db")

		store, err := repository.OpenSQLStore(ctx, path)
		So(err, ShouldBeNil)

		tmpl := newTestTemplate(t, "inventor", 1)
		So(store.PutTemplate(ctx, tmpl, testEntry(tmpl.ID, audit.ActionTemplateCreated)), ShouldBeNil)
		sc := newTestScore("team-1", "judge-1", tmpl.ID)
		So(store.SaveScore(ctx, sc, testEntry(sc.ID, audit.ActionScoreRecorded)), ShouldBeNil)
		So(store.Close(), ShouldBeNil)

		Convey("When reopening the store", func() {
			reopened, err := repository.OpenSQLStore(ctx, path)
			So(err, ShouldBeNil)
			Reset(func() { _ = reopened.Close() })

			Convey("Then templates, scores and audit entries should survive", func() {
				got, err := reopened.Template(ctx, tmpl.ID)
				So(err, ShouldBeNil)
				So(got.CategoryCode, ShouldEqual, "inventor")

				gotScore, err := reopened.Score(ctx, sc.ID)
				So(err, ShouldBeNil)
				So(gotScore.Status, ShouldEqual, scoring.StatusInProgress)
				So(gotScore.Details, ShouldHaveLength, 2)

				trail, err := reopened.AuditTrail(ctx, sc.ID)
				So(err, ShouldBeNil)
				So(trail, ShouldHaveLength, 1)
			})
		})
	})
}
