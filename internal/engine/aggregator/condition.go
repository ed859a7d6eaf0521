// Package aggregator averages run metrics across repeated trials.
//
// Means are plain arithmetic means. A non-finite member poisons its mean and is left
// that way so callers can see which conditions had degenerate input.
package aggregator

import (
	"TrialStats/internal/core/model"
	"TrialStats/internal/engine/run"
)

// Summarize averages the metrics of runs recorded under one condition. An empty set of
// runs yields NaN metrics.
func Summarize(condition string, runs []*run.Run) model.ConditionSummary {
	var loss, overhead, perPacket, lost float64
	for _, r := range runs {
		loss += r.PayloadLoss()
		overhead += r.Overhead()
		perPacket += r.OverheadPerPacket()
		lost += float64(r.LostPayloadBytes())
	}

	n := float64(len(runs))
	return model.ConditionSummary{
		Condition:         condition,
		Runs:              len(runs),
		Loss:              loss / n,
		Overhead:          overhead / n,
		OverheadPerPacket: perPacket / n,
		LostPayloadBytes:  lost / n,
	}
}

// SummarizeGroups summarizes every condition group, keeping their order.
func SummarizeGroups(groups []run.Group) []model.ConditionSummary {
	out := make([]model.ConditionSummary, 0, len(groups))
	for _, g := range groups {
		out = append(out, Summarize(g.Condition, g.Runs))
	}
	return out
}
