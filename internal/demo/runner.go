package demo

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robojudge/scorecard/internal/domain/consistency"
	"github.com/robojudge/scorecard/internal/domain/rubric"
	"github.com/robojudge/scorecard/internal/domain/scoring"
	"github.com/robojudge/scorecard/pkg/logger"
)

// Run executes the complete demo judging session: template creation, score
// recording by a panel of judges, submission, and consistency checks.
func Run(ctx context.Context, config *Config) error {
	stats := &Stats{
		StartTime: time.Now(),
	}

	logger.Get().Info(ctx, "starting demo judging session",
		logger.String("baseURL", config.BaseURL),
		logger.String("category", config.Category),
		logger.Int("teams", config.NumTeams),
		logger.Int("judgesPerTeam", config.JudgesPerTeam),
		logger.Int("workers", config.Workers),
		logger.String("timeout", config.Timeout.String()),
		logger.Bool("withBias", config.WithBias))

	client := newHTTPClient(config.Timeout)

	// Step 1: Check service health
	if err := checkServiceHealth(ctx, client, config); err != nil {
		return fmt.Errorf("service health check failed: %w", err)
	}

	// Step 2: Create the rubric template for the category
	t, err := createTemplate(ctx, client, config)
	if err != nil {
		return fmt.Errorf("template creation failed: %w", err)
	}
	stats.TemplatesCreated++

	// Step 3: Record scores concurrently
	plan := generatePlan(config)
	scores, err := recordScores(ctx, client, config, t, plan, stats)
	if err != nil {
		return fmt.Errorf("score recording failed: %w", err)
	}

	// Step 4: Submit every recorded score
	if err := submitScores(ctx, client, config, scores, stats); err != nil {
		return fmt.Errorf("score submission failed: %w", err)
	}

	// Step 5: Run consistency checks per team
	flagged, err := checkConsistency(ctx, client, config, stats)
	if err != nil {
		return fmt.Errorf("consistency check failed: %w", err)
	}

	// Step 6: Verify results
	if err := verifyResults(ctx, client, config, scores, flagged, stats); err != nil {
		return fmt.Errorf("result verification failed: %w", err)
	}

	// Final statistics
	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)

	displayFinalStats(stats)

	logger.Get().Info(ctx, "demo session completed successfully")
	return nil
}

// checkServiceHealth verifies the service is running.
func checkServiceHealth(ctx context.Context, client *HTTPClient, config *Config) error {
	logger.Get().Info(ctx, "checking service health")

	resp, err := client.Get(ctx, config.BaseURL+"/healthz")
	if err != nil {
		return fmt.Errorf("failed to connect to service: %w", err)
	}
	if err := decodeResponse(resp, nil); err != nil {
		return err
	}
	if resp.StatusCode != StatusOK {
		return fmt.Errorf("service health check failed with status: %d", resp.StatusCode)
	}

	logger.Get().Info(ctx, "service is healthy")
	return nil
}

// createTemplate creates the rubric template the whole session scores
// against.
func createTemplate(ctx context.Context, client *HTTPClient, config *Config) (rubric.Template, error) {
	resp, err := client.Post(ctx, config.BaseURL+"/templates", map[string]string{
		"category_code": config.Category,
	})
	if err != nil {
		return rubric.Template{}, fmt.Errorf("failed to create template: %w", err)
	}
	var t rubric.Template
	if err := decodeResponse(resp, &t); err != nil {
		return rubric.Template{}, err
	}
	if resp.StatusCode != StatusCreated {
		return rubric.Template{}, fmt.Errorf("template creation failed with status: %d", resp.StatusCode)
	}

	logger.Get().Info(ctx, "template created",
		logger.String("templateID", t.ID),
		logger.String("family", string(t.Family)),
		logger.Int("version", t.Version))
	return t, nil
}

// recordScores drives the judging plan through PUT /scores with a worker
// pool and returns the recorded scores.
func recordScores(ctx context.Context, client *HTTPClient, config *Config, t rubric.Template, plan []evaluation, stats *Stats) ([]scoring.Score, error) {
	logger.Get().Info(ctx, "recording scores",
		logger.Int("evaluations", len(plan)),
		logger.Int("workers", config.Workers))

	var (
		recorded int64
		failed   int64
	)

	evalChan := make(chan evaluation, config.Workers*2)
	var mu sync.Mutex
	var scores []scoring.Score
	var wg sync.WaitGroup

	for i := 0; i < config.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for ev := range evalChan {
				select {
				case <-ctx.Done():
					return
				default:
				}
				sc, err := recordSingleScore(ctx, client, config, t, ev)
				if err != nil {
					atomic.AddInt64(&failed, 1)
					if config.Verbose {
						logger.Get().Warn(ctx, "score recording failed",
							logger.String("teamID", ev.TeamID),
							logger.String("judgeID", ev.JudgeID),
							logger.Error(err))
					}
					continue
				}
				atomic.AddInt64(&recorded, 1)
				mu.Lock()
				scores = append(scores, sc)
				mu.Unlock()
			}
		}()
	}

	go func() {
		defer close(evalChan)
		for _, ev := range plan {
			select {
			case <-ctx.Done():
				return
			case evalChan <- ev:
			}
		}
	}()

	wg.Wait()

	stats.ScoresRecorded = int(atomic.LoadInt64(&recorded))
	stats.ScoresFailed = int(atomic.LoadInt64(&failed))

	logger.Get().Info(ctx, "score recording completed",
		logger.Int("recorded", stats.ScoresRecorded),
		logger.Int("failed", stats.ScoresFailed))
	return scores, nil
}

// recordSingleScore records one judge's full evaluation of one team.
func recordSingleScore(ctx context.Context, client *HTTPClient, config *Config, t rubric.Template, ev evaluation) (scoring.Score, error) {
	body := map[string]interface{}{
		"team_id":     ev.TeamID,
		"judge_id":    ev.JudgeID,
		"template_id": t.ID,
		"scope":       config.Category,
		"entries":     generateEntries(t, ev.Biased),
	}
	resp, err := client.Put(ctx, config.BaseURL+"/scores", body)
	if err != nil {
		return scoring.Score{}, err
	}
	var sc scoring.Score
	if err := decodeResponse(resp, &sc); err != nil {
		return scoring.Score{}, err
	}
	if resp.StatusCode != StatusOK {
		return scoring.Score{}, fmt.Errorf("record returned status %d", resp.StatusCode)
	}
	return sc, nil
}

// submitScores pushes every recorded score through the submission gate.
// Incomplete or implausible scores come back 422 and stay in progress.
func submitScores(ctx context.Context, client *HTTPClient, config *Config, scores []scoring.Score, stats *Stats) error {
	logger.Get().Info(ctx, "submitting scores", logger.Int("count", len(scores)))

	for _, sc := range scores {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		resp, err := client.Post(ctx, config.BaseURL+"/scores/"+sc.ID+"/submit", map[string]string{
			"actor": sc.JudgeID,
		})
		if err != nil {
			return fmt.Errorf("failed to submit score %s: %w", sc.ID, err)
		}
		var updated scoring.Score
		if err := decodeResponse(resp, &updated); err != nil {
			return err
		}
		switch resp.StatusCode {
		case StatusOK:
			stats.ScoresSubmitted++
			if updated.Status == scoring.StatusValidated {
				stats.ScoresAutoValidated++
			}
		case StatusUnprocessableEntity:
			stats.SubmissionsRejected++
			if config.Verbose {
				logger.Get().Warn(ctx, "submission rejected",
					logger.String("scoreID", sc.ID),
					logger.Float64("total", sc.TotalScore))
			}
		default:
			return fmt.Errorf("submit returned status %d for score %s", resp.StatusCode, sc.ID)
		}
	}

	logger.Get().Info(ctx, "score submission completed",
		logger.Int("submitted", stats.ScoresSubmitted),
		logger.Int("rejected", stats.SubmissionsRejected),
		logger.Int("autoValidated", stats.ScoresAutoValidated))
	return nil
}

// checkConsistency runs the judge consistency check for every team and
// returns the flagged team IDs.
func checkConsistency(ctx context.Context, client *HTTPClient, config *Config, stats *Stats) ([]string, error) {
	logger.Get().Info(ctx, "running consistency checks", logger.Int("teams", config.NumTeams))

	var flagged []string
	for team := 0; team < config.NumTeams; team++ {
		teamID := fmt.Sprintf("team-%03d", team+1)
		resp, err := client.Get(ctx, config.BaseURL+"/teams/"+teamID+"/consistency?scope="+config.Category)
		if err != nil {
			return nil, fmt.Errorf("failed to check team %s: %w", teamID, err)
		}
		var report consistency.Report
		if err := decodeResponse(resp, &report); err != nil {
			return nil, err
		}
		if resp.StatusCode != StatusOK {
			return nil, fmt.Errorf("consistency check returned status %d for team %s", resp.StatusCode, teamID)
		}

		stats.TeamsChecked++
		if !report.Consistent {
			stats.TeamsFlagged++
			flagged = append(flagged, teamID)
			logger.Get().Warn(ctx, "team flagged for inconsistent judging",
				logger.String("teamID", teamID),
				logger.Float64("maxDeviationPct", report.MaxDeviationPct),
				logger.String("outlierJudge", report.OutlierJudge))
		}
	}

	logger.Get().Info(ctx, "consistency checks completed",
		logger.Int("checked", stats.TeamsChecked),
		logger.Int("flagged", stats.TeamsFlagged))
	return flagged, nil
}

// displayFinalStats prints the final session statistics.
func displayFinalStats(stats *Stats) {
	var submitRate float64
	if stats.ScoresRecorded > 0 {
		submitRate = float64(stats.ScoresSubmitted) / float64(stats.ScoresRecorded) * PercentageMultiplier
	}

	logger.Get().Info(context.Background(), "final statistics",
		logger.Int("templatesCreated", stats.TemplatesCreated),
		logger.Int("scoresRecorded", stats.ScoresRecorded),
		logger.Int("scoresFailed", stats.ScoresFailed),
		logger.Int("scoresSubmitted", stats.ScoresSubmitted),
		logger.Int("submissionsRejected", stats.SubmissionsRejected),
		logger.Int("scoresAutoValidated", stats.ScoresAutoValidated),
		logger.Int("teamsChecked", stats.TeamsChecked),
		logger.Int("teamsFlagged", stats.TeamsFlagged),
		logger.String("duration", stats.Duration.String()),
		logger.Float64("submitRate", submitRate))
}
