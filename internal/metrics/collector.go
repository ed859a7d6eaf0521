// Package metrics exports the current analysis batch to Prometheus.
package metrics

import (
	"TrialStats/internal/core/model"

	"github.com/prometheus/client_golang/prometheus"
)

// BatchSource supplies the batch to export.
type BatchSource interface {
	Batch() *model.Batch
}

// Collector reads the current batch on every scrape.
type Collector struct {
	src BatchSource

	loss      *prometheus.Desc
	overhead  *prometheus.Desc
	runs      *prometheus.Desc
	bandwidth *prometheus.Desc
}

func NewCollector(src BatchSource) *Collector {
	return &Collector{
		src: src,
		loss: prometheus.NewDesc(
			"trialstats_payload_loss_ratio",
			"Mean fraction of payload bytes lost per protocol and condition",
			[]string{"protocol", "condition"},
			nil,
		),
		overhead: prometheus.NewDesc(
			"trialstats_overhead_ratio",
			"Mean fraction of traffic that was not payload per protocol and condition",
			[]string{"protocol", "condition"},
			nil,
		),
		runs: prometheus.NewDesc(
			"trialstats_runs",
			"Number of runs averaged per protocol and condition",
			[]string{"protocol", "condition"},
			nil,
		),
		bandwidth: prometheus.NewDesc(
			"trialstats_bandwidth_bytes",
			"Last point of the combined cumulative bandwidth curve",
			[]string{"protocol"},
			nil,
		),
	}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.loss
	ch <- c.overhead
	ch <- c.runs
	ch <- c.bandwidth
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	batch := c.src.Batch()
	if batch == nil {
		return
	}

	for _, r := range batch.Reports {
		for _, s := range r.Conditions {
			ch <- prometheus.MustNewConstMetric(c.loss, prometheus.GaugeValue, s.Loss, r.Protocol, s.Condition)
			ch <- prometheus.MustNewConstMetric(c.overhead, prometheus.GaugeValue, s.Overhead, r.Protocol, s.Condition)
			ch <- prometheus.MustNewConstMetric(c.runs, prometheus.GaugeValue, float64(s.Runs), r.Protocol, s.Condition)
		}
		if n := r.Bandwidth.Len(); n > 0 {
			ch <- prometheus.MustNewConstMetric(c.bandwidth, prometheus.GaugeValue, r.Bandwidth.Combined[n-1], r.Protocol)
		}
	}
}
