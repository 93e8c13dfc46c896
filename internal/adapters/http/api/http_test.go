package api_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/robojudge/scorecard/internal/adapters/http/api"
	service "github.com/robojudge/scorecard/internal/app"
	"github.com/robojudge/scorecard/internal/domain/rubric"
	"github.com/robojudge/scorecard/internal/domain/scoring"
	"github.com/robojudge/scorecard/pkg/logger"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

type testAPI struct {
	t      *testing.T
	svc    *service.Service
	server *httptest.Server
	client *http.Client
}

func newTestAPI(t *testing.T) *testAPI {
	svc := service.New()
	server := httptest.NewServer(api.NewServer(svc, svc).Routes())
	t.Cleanup(func() {
		server.Close()
		_ = svc.Close()
	})
	return &testAPI{t: t, svc: svc, server: server, client: server.Client()}
}

func (a *testAPI) do(method, path string, body any) (*http.Response, []byte) {
	a.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			a.t.Fatalf("encode request body: %v", err)
		}
	}
	req, err := http.NewRequest(method, a.server.URL+path, &buf)
	if err != nil {
		a.t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := a.client.Do(req)
	if err != nil {
		a.t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	var out bytes.Buffer
	if _, err := out.ReadFrom(resp.Body); err != nil {
		a.t.Fatalf("read response body: %v", err)
	}
	return resp, out.Bytes()
}

func decode[T any](t *testing.T, body []byte) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(body, &v); err != nil {
		t.Fatalf("decode response: %v\n%s", err, body)
	}
	return v
}

// fullEntries scores every level-scored criterion of the template at the
// given level.
func fullEntries(t rubric.Template, number int) []scoring.Entry {
	var entries []scoring.Entry
	for _, s := range t.Sections {
		for _, c := range s.Criteria {
			if c.ScoringType != rubric.ScoringLevels {
				continue
			}
			l, _ := c.Level(number)
			n := number
			entries = append(entries, scoring.Entry{
				CriterionID:   c.ID,
				LevelSelected: &n,
				Points:        l.Points,
			})
		}
	}
	return entries
}

func (a *testAPI) createTemplate(category string) rubric.Template {
	a.t.Helper()
	resp, body := a.do(http.MethodPost, "/templates", map[string]string{"category_code": category})
	if resp.StatusCode != http.StatusCreated {
		a.t.Fatalf("create template: status %d: %s", resp.StatusCode, body)
	}
	return decode[rubric.Template](a.t, body)
}

func (a *testAPI) recordScore(team, judge string, tmpl rubric.Template, level int) scoring.Score {
	a.t.Helper()
	resp, body := a.do(http.MethodPut, "/scores", map[string]any{
		"team_id":     team,
		"judge_id":    judge,
		"template_id": tmpl.ID,
		"scope":       tmpl.CategoryCode,
		"entries":     fullEntries(tmpl, level),
	})
	if resp.StatusCode != http.StatusOK {
		a.t.Fatalf("record score: status %d: %s", resp.StatusCode, body)
	}
	return decode[scoring.Score](a.t, body)
}

func TestTemplateEndpoints(t *testing.T) {
	Convey("Given a running API", t, func() {
		a := newTestAPI(t)

		Convey("When creating a template", func() {
			resp, body := a.do(http.MethodPost, "/templates", map[string]string{"category_code": "spike"})
			So(resp.StatusCode, ShouldEqual, http.StatusCreated)

			tmpl := decode[rubric.Template](t, body)
			So(tmpl.ID, ShouldNotBeEmpty)
			So(tmpl.Version, ShouldEqual, 1)
			So(tmpl.Sections, ShouldHaveLength, 2)

			Convey("Then it should be fetchable by id and as the active version", func() {
				resp, body := a.do(http.MethodGet, "/templates/"+tmpl.ID, nil)
				So(resp.StatusCode, ShouldEqual, http.StatusOK)
				So(decode[rubric.Template](t, body).ID, ShouldEqual, tmpl.ID)

				resp, body = a.do(http.MethodGet, "/templates/active?category=spike", nil)
				So(resp.StatusCode, ShouldEqual, http.StatusOK)
				So(decode[rubric.Template](t, body).ID, ShouldEqual, tmpl.ID)
			})

			Convey("Then its validation report should be clean", func() {
				resp, body := a.do(http.MethodGet, "/templates/"+tmpl.ID+"/validation", nil)
				So(resp.StatusCode, ShouldEqual, http.StatusOK)
				So(decode[rubric.Report](t, body).Valid, ShouldBeTrue)
			})

			Convey("And a criterion cap is patched", func() {
				target := tmpl.Sections[0].Criteria[0]
				resp, body := a.do(http.MethodPatch,
					fmt.Sprintf("/templates/%s/criteria/%s", tmpl.ID, target.ID),
					map[string]any{"max_points": 40, "actor": "organizer-1"})
				So(resp.StatusCode, ShouldEqual, http.StatusOK)

				updated := decode[rubric.Template](t, body)
				c, _, ok := updated.Criterion(target.ID)
				So(ok, ShouldBeTrue)
				So(c.MaxPoints, ShouldEqual, 40.0)
				So(c.Levels[3].Points, ShouldEqual, 40.0)
			})

			Convey("And the cap patch omits the actor", func() {
				resp, _ := a.do(http.MethodPatch,
					fmt.Sprintf("/templates/%s/criteria/%s", tmpl.ID, tmpl.Sections[0].Criteria[0].ID),
					map[string]any{"max_points": 40})
				So(resp.StatusCode, ShouldEqual, http.StatusBadRequest)
			})
		})

		Convey("When the category is unknown", func() {
			resp, body := a.do(http.MethodPost, "/templates", map[string]string{"category_code": "hoverboard"})
			So(resp.StatusCode, ShouldEqual, http.StatusBadRequest)

			errResp := decode[map[string]string](t, body)
			So(errResp["code"], ShouldEqual, "bad_request")
		})

		Convey("When the category is missing", func() {
			resp, _ := a.do(http.MethodPost, "/templates", map[string]string{})
			So(resp.StatusCode, ShouldEqual, http.StatusBadRequest)

			resp, _ = a.do(http.MethodGet, "/templates/active", nil)
			So(resp.StatusCode, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When the template does not exist", func() {
			resp, body := a.do(http.MethodGet, "/templates/"+uuid.NewString(), nil)
			So(resp.StatusCode, ShouldEqual, http.StatusNotFound)
			So(decode[map[string]string](t, body)["code"], ShouldEqual, "not_found")
		})
	})
}

func TestScoreEndpoints(t *testing.T) {
	Convey("Given an API with a template", t, func() {
		a := newTestAPI(t)
		tmpl := a.createTemplate("junior")

		Convey("When recording a full evaluation", func() {
			sc := a.recordScore("team-1", "judge-1", tmpl, 3)

			So(sc.Status, ShouldEqual, scoring.StatusInProgress)
			So(sc.TotalScore, ShouldEqual, 243.75)

			Convey("Then it should be fetchable with its summary and trail", func() {
				resp, body := a.do(http.MethodGet, "/scores/"+sc.ID, nil)
				So(resp.StatusCode, ShouldEqual, http.StatusOK)
				So(decode[scoring.Score](t, body).ID, ShouldEqual, sc.ID)

				resp, body = a.do(http.MethodGet, "/scores/"+sc.ID+"/summary", nil)
				So(resp.StatusCode, ShouldEqual, http.StatusOK)
				summary := decode[scoring.Summary](t, body)
				So(summary.Totals.Total, ShouldEqual, 243.75)
				So(summary.Metadata.TeamID, ShouldEqual, "team-1")

				resp, body = a.do(http.MethodGet, "/scores/"+sc.ID+"/audit", nil)
				So(resp.StatusCode, ShouldEqual, http.StatusOK)
				So(string(body), ShouldStartWith, "[")
			})

			Convey("And the score is submitted", func() {
				resp, body := a.do(http.MethodPost, "/scores/"+sc.ID+"/submit", map[string]string{"actor": "judge-1"})
				So(resp.StatusCode, ShouldEqual, http.StatusOK)

				updated := decode[scoring.Score](t, body)
				So(updated.Status, ShouldEqual, scoring.StatusValidated)

				Convey("Then resubmitting should conflict", func() {
					resp, body := a.do(http.MethodPost, "/scores/"+sc.ID+"/submit", map[string]string{"actor": "judge-1"})
					So(resp.StatusCode, ShouldEqual, http.StatusConflict)
					So(decode[map[string]string](t, body)["code"], ShouldEqual, "conflict")
				})

				Convey("Then recording over it should conflict", func() {
					resp, _ := a.do(http.MethodPut, "/scores", map[string]any{
						"team_id":     "team-1",
						"judge_id":    "judge-1",
						"template_id": tmpl.ID,
						"entries":     fullEntries(tmpl, 2),
					})
					So(resp.StatusCode, ShouldEqual, http.StatusConflict)
				})
			})
		})

		Convey("When submitting an incomplete score", func() {
			resp, body := a.do(http.MethodPut, "/scores", map[string]any{
				"team_id":     "team-2",
				"judge_id":    "judge-1",
				"template_id": tmpl.ID,
				"entries":     fullEntries(tmpl, 3)[:2],
			})
			So(resp.StatusCode, ShouldEqual, http.StatusOK)
			sc := decode[scoring.Score](t, body)

			resp, body = a.do(http.MethodPost, "/scores/"+sc.ID+"/submit", map[string]string{"actor": "judge-1"})
			So(resp.StatusCode, ShouldEqual, http.StatusUnprocessableEntity)
			So(decode[map[string]string](t, body)["code"], ShouldEqual, "unprocessable")
		})

		Convey("When recording against an unknown template", func() {
			resp, _ := a.do(http.MethodPut, "/scores", map[string]any{
				"team_id":     "team-1",
				"judge_id":    "judge-1",
				"template_id": uuid.NewString(),
			})
			So(resp.StatusCode, ShouldEqual, http.StatusNotFound)
		})

		Convey("When recording with an unknown criterion", func() {
			resp, _ := a.do(http.MethodPut, "/scores", map[string]any{
				"team_id":     "team-1",
				"judge_id":    "judge-1",
				"template_id": tmpl.ID,
				"entries":     []map[string]any{{"criterion_id": "ghost", "points": 1}},
			})
			So(resp.StatusCode, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When the request body is missing identifiers", func() {
			resp, _ := a.do(http.MethodPut, "/scores", map[string]any{"team_id": "team-1"})
			So(resp.StatusCode, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When a transition body omits the actor", func() {
			sc := a.recordScore("team-3", "judge-1", tmpl, 3)
			resp, _ := a.do(http.MethodPost, "/scores/"+sc.ID+"/submit", map[string]string{})
			So(resp.StatusCode, ShouldEqual, http.StatusBadRequest)
		})
	})
}

func TestConsistencyEndpoint(t *testing.T) {
	Convey("Given an API with three judges scoring a team", t, func() {
		a := newTestAPI(t)
		tmpl := a.createTemplate("arduino")

		for _, judge := range []string{"judge-a", "judge-b"} {
			sc := a.recordScore("team-1", judge, tmpl, 3)
			resp, _ := a.do(http.MethodPost, "/scores/"+sc.ID+"/submit", map[string]string{"actor": judge})
			So(resp.StatusCode, ShouldEqual, http.StatusOK)
		}
		sc := a.recordScore("team-1", "judge-c", tmpl, 2)
		resp, _ := a.do(http.MethodPost, "/scores/"+sc.ID+"/submit", map[string]string{"actor": "judge-c"})
		So(resp.StatusCode, ShouldEqual, http.StatusOK)

		Convey("When checking consistency", func() {
			resp, body := a.do(http.MethodGet, "/teams/team-1/consistency?scope="+tmpl.CategoryCode, nil)
			So(resp.StatusCode, ShouldEqual, http.StatusOK)

			report := decode[map[string]any](t, body)
			So(report["judge_count"], ShouldEqual, 3)
			So(report["consistent"], ShouldEqual, false)
			So(report["outlier_judge"], ShouldEqual, "judge-c")
		})
	})
}

func TestOperationalEndpoints(t *testing.T) {
	Convey("Given a running API", t, func() {
		a := newTestAPI(t)

		Convey("When probing health", func() {
			resp, body := a.do(http.MethodGet, "/healthz", nil)
			So(resp.StatusCode, ShouldEqual, http.StatusOK)
			So(decode[map[string]string](t, body)["status"], ShouldEqual, "ok")
		})

		Convey("When fetching stats", func() {
			a.createTemplate("spike")
			resp, body := a.do(http.MethodGet, "/stats", nil)
			So(resp.StatusCode, ShouldEqual, http.StatusOK)

			stats := decode[map[string]any](t, body)
			So(stats["templates"], ShouldEqual, 1)
		})

		Convey("When scraping metrics", func() {
			resp, body := a.do(http.MethodGet, "/metrics", nil)
			So(resp.StatusCode, ShouldEqual, http.StatusOK)
			So(len(body), ShouldBeGreaterThan, 0)
		})
	})
}
