// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Package metrics exposes Prometheus counters for the tracking engine.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "dermtrack"

// Metrics holds the collectors on their own registry
type Metrics struct {
	registry *prometheus.Registry

	observations  *prometheus.CounterVec
	conflicts     prometheus.Counter
	reports       *prometheus.CounterVec
	reportErrors  *prometheus.CounterVec
	healingScores prometheus.Histogram
	narratives    *prometheus.CounterVec
}

// New creates and registers all collectors
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		observations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "observations_appended_total",
				Help:      "Observations appended, by baseline status",
			},
			[]string{"baseline"},
		),
		conflicts: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "baseline_conflicts_total",
				Help:      "Appends rejected because another baseline won the race",
			},
		),
		reports: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "reports_built_total",
				Help:      "Progress reports built, by trend",
			},
			[]string{"trend"},
		),
		reportErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "report_errors_total",
				Help:      "Progress reports that could not be built, by reason",
			},
			[]string{"reason"},
		),
		healingScores: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "healing_score",
				Help:      "Healing scores of individual comparisons",
				Buckets:   prometheus.LinearBuckets(10, 10, 10),
			},
		),
		narratives: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "narratives_total",
				Help:      "Narrative requests, by outcome",
			},
			[]string{"outcome"},
		),
	}

	m.registry.MustRegister(
		m.observations,
		m.conflicts,
		m.reports,
		m.reportErrors,
		m.healingScores,
		m.narratives,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

// ObservationAppended counts one append
func (m *Metrics) ObservationAppended(baseline bool) {
	if m == nil {
		return
	}
	m.observations.WithLabelValues(strconv.FormatBool(baseline)).Inc()
}

// BaselineConflict counts one rejected append
func (m *Metrics) BaselineConflict() {
	if m == nil {
		return
	}
	m.conflicts.Inc()
}

// ReportBuilt counts a report and records each comparison's score
func (m *Metrics) ReportBuilt(trend string, scores []float64) {
	if m == nil {
		return
	}
	m.reports.WithLabelValues(trend).Inc()
	for _, s := range scores {
		m.healingScores.Observe(s)
	}
}

// ReportFailed counts a report that could not be built
func (m *Metrics) ReportFailed(reason string) {
	if m == nil {
		return
	}
	m.reportErrors.WithLabelValues(reason).Inc()
}

// Narrative counts one narrative request
func (m *Metrics) Narrative(outcome string) {
	if m == nil {
		return
	}
	m.narratives.WithLabelValues(outcome).Inc()
}

// Registry returns the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
