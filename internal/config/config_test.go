package config_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/robojudge/scorecard/internal/config"
)

func TestLoad(t *testing.T) {
	ctx := context.Background()

	Convey("Given a clean environment", t, func() {
		t.Setenv("SCORECARD_CONFIG", "")
		t.Setenv("SCORECARD_ADDR", "")
		t.Setenv("SCORECARD_LOG_LEVEL", "")
		t.Setenv("SCORECARD_DATABASE_PATH", "")
		t.Setenv("SCORECARD_CONSISTENCY_THRESHOLD_PCT", "")
		os.Unsetenv("SCORECARD_CONFIG")
		os.Unsetenv("SCORECARD_ADDR")
		os.Unsetenv("SCORECARD_LOG_LEVEL")
		os.Unsetenv("SCORECARD_DATABASE_PATH")
		os.Unsetenv("SCORECARD_CONSISTENCY_THRESHOLD_PCT")

		Convey("When loading without overrides", func() {
			cfg, err := config.Load(ctx)
			So(err, ShouldBeNil)

			Convey("Then defaults should apply", func() {
				So(cfg.Addr, ShouldEqual, ":9090")
				So(cfg.LogLevel, ShouldEqual, "info")
				So(cfg.DatabasePath, ShouldBeEmpty)
				So(cfg.ConsistencyThresholdPct, ShouldEqual, 15.0)
				So(cfg.DatabaseBusyTimeoutMS, ShouldEqual, 5000)
			})
		})

		Convey("When environment variables override defaults", func() {
			t.Setenv("SCORECARD_ADDR", ":8181")
			t.Setenv("SCORECARD_LOG_LEVEL", "debug")
			t.Setenv("SCORECARD_DATABASE_PATH", "/tmp/scores.db")
			t.Setenv("SCORECARD_CONSISTENCY_THRESHOLD_PCT", "10")

			cfg, err := config.Load(ctx)
			So(err, ShouldBeNil)
			So(cfg.Addr, ShouldEqual, ":8181")
			So(cfg.LogLevel, ShouldEqual, "debug")
			So(cfg.DatabasePath, ShouldEqual, "/tmp/scores.db")
			So(cfg.ConsistencyThresholdPct, ShouldEqual, 10.0)
		})

		Convey("When a config file is provided", func() {
			path := filepath.Join(t.TempDir(), "config.yaml")
			err := os.WriteFile(path, []byte("addr: \":7070\"\nlog_level: warn\n"), 0600)
			So(err, ShouldBeNil)
			t.Setenv("SCORECARD_CONFIG", path)

			cfg, err := config.Load(ctx)
			So(err, ShouldBeNil)
			So(cfg.Addr, ShouldEqual, ":7070")
			So(cfg.LogLevel, ShouldEqual, "warn")

			Convey("Then environment variables should still win over the file", func() {
				t.Setenv("SCORECARD_ADDR", ":6060")

				cfg, err := config.Load(ctx)
				So(err, ShouldBeNil)
				So(cfg.Addr, ShouldEqual, ":6060")
				So(cfg.LogLevel, ShouldEqual, "warn")
			})
		})

		Convey("When the config file does not exist", func() {
			t.Setenv("SCORECARD_CONFIG", filepath.Join(t.TempDir(), "missing.yaml"))

			_, err := config.Load(ctx)
			So(err, ShouldWrap, config.ErrLoadConfig)
		})

		Convey("When the threshold is out of range", func() {
			t.Setenv("SCORECARD_CONSISTENCY_THRESHOLD_PCT", "150")

			_, err := config.Load(ctx)
			So(err, ShouldWrap, config.ErrInvalidConfig)
		})

		Convey("When the address is blanked out by the file", func() {
			path := filepath.Join(t.TempDir(), "config.yaml")
			err := os.WriteFile(path, []byte("addr: \"\"\n"), 0600)
			So(err, ShouldBeNil)
			t.Setenv("SCORECARD_CONFIG", path)

			_, err = config.Load(ctx)
			So(err, ShouldWrap, config.ErrInvalidConfig)
		})
	})
}
