package repository_test

import (
	"context"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	repository "github.com/robojudge/scorecard/internal/adapters/repository"
	"github.com/robojudge/scorecard/internal/domain/audit"
)

func TestMemStore(t *testing.T) {
	testStoreSuite(t, func(t *testing.T) repository.Store {
		return repository.NewMemStore()
	})
}

func TestMemStoreCopies(t *testing.T) {
	ctx := context.Background()

	Convey("Given a stored template and score", t, func() {
		store := repository.NewMemStore()
		tmpl := newTestTemplate(t, "spike", 1)
		So(store.PutTemplate(ctx, tmpl, testEntry(tmpl.ID, audit.ActionTemplateCreated)), ShouldBeNil)
		sc := newTestScore("team-1", "judge-1", tmpl.ID)
		So(store.SaveScore(ctx, sc, testEntry(sc.ID, audit.ActionScoreRecorded)), ShouldBeNil)

		Convey("When a caller mutates a fetched template", func() {
			got, err := store.Template(ctx, tmpl.ID)
			So(err, ShouldBeNil)
			got.Sections[0].Criteria[0].MaxPoints = 999
			got.Sections[0].Criteria[0].Levels[0].Points = 999

			Convey("Then the stored copy should be unaffected", func() {
				fresh, err := store.Template(ctx, tmpl.ID)
				So(err, ShouldBeNil)
				So(fresh.Sections[0].Criteria[0].MaxPoints, ShouldNotEqual, 999.0)
				So(fresh.Sections[0].Criteria[0].Levels[0].Points, ShouldNotEqual, 999.0)
			})
		})

		Convey("When a caller mutates a fetched score's details", func() {
			got, err := store.Score(ctx, sc.ID)
			So(err, ShouldBeNil)
			got.Details[0].Points = 999

			Convey("Then the stored copy should be unaffected", func() {
				fresh, err := store.Score(ctx, sc.ID)
				So(err, ShouldBeNil)
				So(fresh.Details[0].Points, ShouldNotEqual, 999.0)
			})
		})
	})
}
