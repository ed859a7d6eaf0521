package alerter

import (
	"TrialStats/internal/config"
	coremodel "TrialStats/internal/core/model"
	"TrialStats/internal/logger"
	"TrialStats/internal/model"
	"fmt"
	"math"
	"strings"
	"sync"

	"github.com/gomarkdown/markdown"
)

// Alerter evaluates condition summaries against predefined rules and triggers a
// notification if any rule is violated.
type Alerter struct {
	rules    []config.AlerterRule
	notifier model.Notifier
}

// NewAlerter creates a new Alerter instance.
func NewAlerter(cfg *config.AlerterConfig, notifier model.Notifier) *Alerter {
	return &Alerter{
		rules:    cfg.Rules,
		notifier: notifier,
	}
}

// Evaluate checks every report of the batch concurrently and returns the triggered
// messages as Markdown, in report order.
func (a *Alerter) Evaluate(batch *coremodel.Batch) []string {
	if batch == nil {
		return nil
	}

	var wg sync.WaitGroup
	results := make([][]string, len(batch.Reports))
	for i, report := range batch.Reports {
		wg.Add(1)
		go func(i int, r *coremodel.Report) {
			defer wg.Done()
			results[i] = a.evaluateReport(r)
		}(i, report)
	}
	wg.Wait()

	var all []string
	for _, msgs := range results {
		all = append(all, msgs...)
	}
	return all
}

func (a *Alerter) evaluateReport(r *coremodel.Report) []string {
	var msgs []string
	for _, rule := range a.rules {
		if rule.Protocol != "" && rule.Protocol != r.Protocol {
			continue
		}
		for _, s := range r.Conditions {
			if rule.Condition != "" && rule.Condition != s.Condition {
				continue
			}
			value := metricValue(s, rule.Metric)
			switch {
			case math.IsNaN(value) || math.IsInf(value, 0):
				msgs = append(msgs, fmt.Sprintf("**%s / %s**: %s is %v over %d runs (degenerate input)",
					r.Protocol, s.Condition, rule.Metric, value, s.Runs))
			case value > rule.Threshold:
				msgs = append(msgs, fmt.Sprintf("**%s / %s**: %s is %.2f%%, above the %.2f%% threshold (%d runs)",
					r.Protocol, s.Condition, rule.Metric, value*100, rule.Threshold*100, s.Runs))
			}
		}
	}
	return msgs
}

func metricValue(s coremodel.ConditionSummary, metric string) float64 {
	switch metric {
	case "loss":
		return s.Loss
	case "overhead":
		return s.Overhead
	}
	return math.NaN()
}

// Notify evaluates the batch and sends one consolidated notification if any rule fired.
// It returns the number of triggered alerts.
func (a *Alerter) Notify(batch *coremodel.Batch) (int, error) {
	msgs := a.Evaluate(batch)
	if len(msgs) == 0 {
		return 0, nil
	}
	logger.Infof("Alerter evaluation completed. %d alert(s) triggered.", len(msgs))

	if a.notifier == nil {
		return len(msgs), nil
	}

	var md strings.Builder
	md.WriteString("# TrialStats Alert Summary\n\n")
	fmt.Fprintf(&md, "The following rules were triggered by batch `%s`:\n\n", batch.ID)
	for _, m := range msgs {
		md.WriteString("- " + m + "\n")
	}
	body := string(markdown.ToHTML([]byte(md.String()), nil, nil))

	subject := fmt.Sprintf("TrialStats Alert Summary (%d Triggered)", len(msgs))
	if err := a.notifier.Send(subject, body); err != nil {
		return len(msgs), fmt.Errorf("failed to send consolidated alert notification: %w", err)
	}
	logger.Info("Consolidated alert notification sent successfully.")
	return len(msgs), nil
}
