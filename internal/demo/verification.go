package demo

import (
	"context"
	"fmt"
	"sort"

	"github.com/robojudge/scorecard/internal/domain/audit"
	"github.com/robojudge/scorecard/internal/domain/rubric"
	"github.com/robojudge/scorecard/internal/domain/scoring"
	"github.com/robojudge/scorecard/pkg/logger"
)

// verifyResults cross-checks the recorded scores against the engine's own
// arithmetic and spot-checks the audit trail.
func verifyResults(ctx context.Context, client *HTTPClient, config *Config, scores []scoring.Score, flagged []string, stats *Stats) error {
	logger.Get().Info(ctx, "verifying results")

	if len(scores) == 0 {
		return fmt.Errorf("no scores to verify")
	}

	// Every total must normalize against the fixed 250-point scale.
	for _, sc := range scores {
		want := sc.TotalScore / rubric.TotalPossiblePoints * PercentageMultiplier
		diff := sc.NormalizedScore - want
		if diff < -rubric.PointsTolerance || diff > rubric.PointsTolerance {
			return fmt.Errorf("score %s: normalized %.2f does not match total %.2f",
				sc.ID, sc.NormalizedScore, sc.TotalScore)
		}
	}

	// With a planted biased judge at least one team should be flagged.
	if config.WithBias && len(flagged) == 0 {
		logger.Get().Warn(ctx, "bias enabled but no team was flagged; distribution may have masked the outlier")
	}

	// Spot-check the audit trail of the top-scoring submission.
	if err := verifyAuditTrail(ctx, client, config, scores); err != nil {
		return err
	}

	displayTopTeams(ctx, scores, config.Verbose)

	logger.Get().Info(ctx, "result verification completed")
	return nil
}

// verifyAuditTrail ensures the highest-scoring score carries its recording
// history.
func verifyAuditTrail(ctx context.Context, client *HTTPClient, config *Config, scores []scoring.Score) error {
	top := scores[0]
	for _, sc := range scores[1:] {
		if sc.TotalScore > top.TotalScore {
			top = sc
		}
	}

	resp, err := client.Get(ctx, config.BaseURL+"/scores/"+top.ID+"/audit")
	if err != nil {
		return fmt.Errorf("failed to fetch audit trail: %w", err)
	}
	var trail []audit.Entry
	if err := decodeResponse(resp, &trail); err != nil {
		return err
	}
	if resp.StatusCode != StatusOK {
		return fmt.Errorf("audit trail returned status %d", resp.StatusCode)
	}
	if len(trail) == 0 {
		return fmt.Errorf("score %s has an empty audit trail", top.ID)
	}

	logger.Get().Info(ctx, "audit trail verified",
		logger.String("scoreID", top.ID),
		logger.Int("entries", len(trail)))
	return nil
}

// displayTopTeams shows the best team totals across the session.
func displayTopTeams(ctx context.Context, scores []scoring.Score, verbose bool) {
	best := make(map[string]float64)
	for _, sc := range scores {
		if sc.TotalScore > best[sc.TeamID] {
			best[sc.TeamID] = sc.TotalScore
		}
	}

	type teamTotal struct {
		TeamID string
		Total  float64
	}
	totals := make([]teamTotal, 0, len(best))
	for teamID, total := range best {
		totals = append(totals, teamTotal{TeamID: teamID, Total: total})
	}
	sort.Slice(totals, func(i, j int) bool { return totals[i].Total > totals[j].Total })

	topN := 5
	if len(totals) < topN {
		topN = len(totals)
	}
	for i := 0; i < topN; i++ {
		logger.Get().Info(ctx, "top team",
			logger.Int("rank", i+1),
			logger.String("teamID", totals[i].TeamID),
			logger.Float64("bestTotal", totals[i].Total))
	}

	if verbose && len(totals) > 0 {
		sum := 0.0
		for _, t := range totals {
			sum += t.Total
		}
		logger.Get().Info(ctx, "team total statistics",
			logger.Float64("average", rubric.Round2(sum/float64(len(totals)))),
			logger.Float64("maximum", totals[0].Total),
			logger.Float64("minimum", totals[len(totals)-1].Total))
	}
}
