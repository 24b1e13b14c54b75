// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package telemetry provides metrics and logging setup.
package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Namespace prefixes every metric name.
const Namespace = "calmchat"

// =============================================================================
// METRICS
// =============================================================================

// Metrics groups all Prometheus instruments used by the client.
type Metrics struct {
	registry *prometheus.Registry

	Submissions     *prometheus.CounterVec
	BackendRequests *prometheus.CounterVec
	BackendLatency  *prometheus.HistogramVec
	KeepalivePings  *prometheus.CounterVec
	QuotaRemaining  prometheus.Gauge
}

// NewMetrics registers the instruments on a fresh registry, so several
// instances (tests) never collide.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		Submissions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "submissions_total",
			Help:      "Chat submissions by outcome.",
		}, []string{"outcome"}),
		BackendRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "backend_requests_total",
			Help:      "Backend requests by operation and result.",
		}, []string{"op", "result"}),
		BackendLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "backend_latency_ms",
			Help:      "Backend request latency in milliseconds.",
			Buckets:   []float64{50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000},
		}, []string{"op"}),
		KeepalivePings: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "keepalive_pings_total",
			Help:      "Keepalive pings by kind and result.",
		}, []string{"kind", "result"}),
		QuotaRemaining: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "quota_remaining",
			Help:      "Free messages left for the guest on this machine.",
		}),
	}
}

// Registry returns the registry the instruments live in.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveSubmission counts one controller submission.
func (m *Metrics) ObserveSubmission(outcome string) {
	m.Submissions.WithLabelValues(outcome).Inc()
}

// ObserveRequest counts one backend request and its latency.
func (m *Metrics) ObserveRequest(op, result string, elapsed time.Duration) {
	m.BackendRequests.WithLabelValues(op, result).Inc()
	m.BackendLatency.WithLabelValues(op).Observe(float64(elapsed.Milliseconds()))
}

// ObservePing counts one keepalive ping.
func (m *Metrics) ObservePing(kind, result string) {
	m.KeepalivePings.WithLabelValues(kind, result).Inc()
}

// SetQuotaRemaining records the guest's remaining free messages.
func (m *Metrics) SetQuotaRemaining(remaining int) {
	m.QuotaRemaining.Set(float64(remaining))
}
