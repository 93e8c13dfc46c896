package audit_test

import (
	"encoding/json"
	"testing"
	"time"

	audit "github.com/robojudge/scorecard/internal/domain/audit"
	. "github.com/smartystreets/goconvey/convey"
)

func TestNew(t *testing.T) {
	Convey("Given a mutation to record", t, func() {
		now := time.Now().UTC()

		Convey("When building an entry with before and after values", func() {
			entry := audit.New("score-1", "judge-1", audit.ActionScoreRecorded,
				map[string]int{"total": 100}, map[string]int{"total": 120}, now)

			Convey("Then the entry should carry identity and snapshots", func() {
				So(entry.ID, ShouldNotBeEmpty)
				So(entry.SubjectID, ShouldEqual, "score-1")
				So(entry.Actor, ShouldEqual, "judge-1")
				So(entry.Action, ShouldEqual, audit.ActionScoreRecorded)
				So(entry.At, ShouldEqual, now)

				var before map[string]int
				So(json.Unmarshal(entry.Before, &before), ShouldBeNil)
				So(before["total"], ShouldEqual, 100)

				var after map[string]int
				So(json.Unmarshal(entry.After, &after), ShouldBeNil)
				So(after["total"], ShouldEqual, 120)
			})
		})

		Convey("When the before value is nil", func() {
			entry := audit.New("tmpl-1", "system", audit.ActionTemplateCreated, nil, "v1", now)

			Convey("Then the before snapshot should be absent", func() {
				So(entry.Before, ShouldBeNil)
				So(entry.After, ShouldNotBeNil)
			})
		})

		Convey("When a snapshot cannot be marshaled", func() {
			entry := audit.New("score-1", "judge-1", audit.ActionScoreRecorded, func() {}, nil, now)

			Convey("Then the snapshot should degrade to nil instead of failing", func() {
				So(entry.Before, ShouldBeNil)
				So(entry.ID, ShouldNotBeEmpty)
			})
		})

		Convey("When building two entries", func() {
			a := audit.New("s", "x", audit.ActionScoreSubmitted, nil, nil, now)
			b := audit.New("s", "x", audit.ActionScoreSubmitted, nil, nil, now)

			Convey("Then their IDs should be unique", func() {
				So(a.ID, ShouldNotEqual, b.ID)
			})
		})
	})
}
