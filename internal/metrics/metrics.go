// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package metrics provides Prometheus counters for a pipeline run and
// pushes them to a Pushgateway when one is configured.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"

	"github.com/pdiddy/paper-digest/pkg/types"
)

// Outcome labels.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeTimeout = "timeout"
	OutcomeSkipped = "skipped"
)

// Metrics holds the counters for one run. Each instance owns its registry,
// so tests and repeated runs do not collide.
type Metrics struct {
	Registry *prometheus.Registry

	// PapersTotal counts papers by terminal stage and outcome.
	PapersTotal *prometheus.CounterVec

	// DownloadAttemptsTotal counts retrieval attempts by outcome and proxy use.
	DownloadAttemptsTotal *prometheus.CounterVec

	// ImageUploadsTotal counts image rehosting by outcome.
	ImageUploadsTotal *prometheus.CounterVec

	// ConversionsTotal counts conversions by backend and outcome.
	ConversionsTotal *prometheus.CounterVec
}

// New creates and registers all counters on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		Registry: reg,
		PapersTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "paper_digest_papers_total",
				Help: "Papers processed, by terminal stage and outcome",
			},
			[]string{"stage", "outcome"},
		),
		DownloadAttemptsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "paper_digest_download_attempts_total",
				Help: "Document download attempts, by outcome and proxy use",
			},
			[]string{"outcome", "proxy"},
		),
		ImageUploadsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "paper_digest_image_uploads_total",
				Help: "Embedded image rehosting, by outcome",
			},
			[]string{"outcome"},
		),
		ConversionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "paper_digest_conversions_total",
				Help: "Document conversions, by backend and outcome",
			},
			[]string{"backend", "outcome"},
		),
	}
	reg.MustRegister(m.PapersTotal, m.DownloadAttemptsTotal, m.ImageUploadsTotal, m.ConversionsTotal)
	return m
}

// ObserveAttempt records one retrieval attempt.
func (m *Metrics) ObserveAttempt(outcome string, proxy bool) {
	if m == nil {
		return
	}
	m.DownloadAttemptsTotal.WithLabelValues(outcome, fmt.Sprint(proxy)).Inc()
}

// ObserveUpload records one image upload.
func (m *Metrics) ObserveUpload(outcome string) {
	if m == nil {
		return
	}
	m.ImageUploadsTotal.WithLabelValues(outcome).Inc()
}

// ObserveConversion records one conversion.
func (m *Metrics) ObserveConversion(backend types.ConversionBackend, outcome string) {
	if m == nil {
		return
	}
	m.ConversionsTotal.WithLabelValues(string(backend), outcome).Inc()
}

// ObservePaper records a paper reaching its terminal stage.
func (m *Metrics) ObservePaper(stage, outcome string) {
	if m == nil {
		return
	}
	m.PapersTotal.WithLabelValues(stage, outcome).Inc()
}

// Push sends the registry to the configured Pushgateway. It is a no-op when
// no URL is configured.
func (m *Metrics) Push(cfg types.MetricsConfig) error {
	if m == nil || cfg.PushgatewayURL == "" {
		return nil
	}
	job := cfg.Job
	if job == "" {
		job = "paper_digest"
	}
	if err := push.New(cfg.PushgatewayURL, job).Gatherer(m.Registry).Push(); err != nil {
		return fmt.Errorf("pushing metrics to %s: %w", cfg.PushgatewayURL, err)
	}
	return nil
}
