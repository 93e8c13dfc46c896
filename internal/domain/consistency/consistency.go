// Package consistency detects scoring disagreement across judges for the
// same team, measured as maximum percentage deviation from the mean total.
package consistency

import (
	"math"
	"sort"

	"github.com/robojudge/scorecard/internal/domain/rubric"
)

// DefaultThresholdPct is the maximum tolerated deviation from the mean
// before a team's scores are flagged for manual reconciliation.
const DefaultThresholdPct = 15.0

// Option applies a configuration option to a check.
type Option func(*checker)

// WithThreshold overrides the deviation threshold percentage.
func WithThreshold(pct float64) Option {
	return func(c *checker) {
		if pct > 0 {
			c.threshold = pct
		}
	}
}

type checker struct {
	threshold float64
}

// Report is the outcome of a consistency check. Inconsistency is a flagged
// condition requiring manual review, not an error.
type Report struct {
	Consistent      bool               `json:"consistent"`
	JudgeCount      int                `json:"judge_count"`
	Mean            float64            `json:"mean"`
	Min             float64            `json:"min"`
	Max             float64            `json:"max"`
	MaxDeviationPct float64            `json:"max_deviation_pct"`
	OutlierJudge    string             `json:"outlier_judge,omitempty"`
	ThresholdPct    float64            `json:"threshold_pct"`
	ByJudge         map[string]float64 `json:"by_judge"`
}

// Check compares finalized totals per judge. With fewer than two scores the
// team is trivially consistent.
func Check(totalsByJudge map[string]float64, opts ...Option) Report {
	c := &checker{threshold: DefaultThresholdPct}
	for _, opt := range opts {
		opt(c)
	}

	r := Report{
		Consistent:   true,
		JudgeCount:   len(totalsByJudge),
		ThresholdPct: c.threshold,
		ByJudge:      totalsByJudge,
	}
	if len(totalsByJudge) < 2 {
		for _, total := range totalsByJudge {
			r.Mean, r.Min, r.Max = total, total, total
		}
		return r
	}

	// Deterministic iteration so the reported outlier does not depend on
	// map order when deviations tie.
	judges := make([]string, 0, len(totalsByJudge))
	for j := range totalsByJudge {
		judges = append(judges, j)
	}
	sort.Strings(judges)

	var sum float64
	r.Min, r.Max = math.Inf(1), math.Inf(-1)
	for _, j := range judges {
		total := totalsByJudge[j]
		sum += total
		r.Min = math.Min(r.Min, total)
		r.Max = math.Max(r.Max, total)
	}
	r.Mean = sum / float64(len(judges))

	if r.Mean == 0 {
		// All-zero totals cannot deviate; anything else against a zero
		// mean is maximally inconsistent.
		if r.Min != r.Max {
			r.MaxDeviationPct = 100
			r.Consistent = false
		}
		return r
	}

	for _, j := range judges {
		dev := math.Abs(totalsByJudge[j]-r.Mean) / r.Mean * 100
		if dev > r.MaxDeviationPct {
			r.MaxDeviationPct = dev
			r.OutlierJudge = j
		}
	}
	r.MaxDeviationPct = rubric.Round2(r.MaxDeviationPct)
	r.Consistent = r.MaxDeviationPct <= c.threshold
	return r
}
