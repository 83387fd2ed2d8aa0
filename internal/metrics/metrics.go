// Copyright ModelGate Authors
// SPDX-License-Identifier: Apache-2.0
// The full text of the Apache license is available in the LICENSE file at
// the root of the repo.

// Package metrics exposes the gateway's Prometheus metrics: request
// durations per route and status, plus GenAI token accounting named after
// https://opentelemetry.io/docs/specs/semconv/gen-ai/gen-ai-metrics/.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const operationChat = "chat"

// Metrics holds the gateway's metric set and the registry /metrics serves.
type Metrics struct {
	registry *prometheus.Registry

	// requestDuration is the wall time of each served HTTP request.
	requestDuration *prometheus.HistogramVec
	// tokenUsage is the number of tokens processed per exchange.
	// See: https://opentelemetry.io/docs/specs/semconv/gen-ai/gen-ai-metrics/#metric-gen_aiclienttokenusage
	tokenUsage *prometheus.HistogramVec
	// firstTokenLatency is the time to the first streamed delta.
	// See: https://opentelemetry.io/docs/specs/semconv/gen-ai/gen-ai-metrics/#metric-gen_aiservertime_to_first_token
	firstTokenLatency *prometheus.HistogramVec
	// outputTokenLatency is the gap between consecutive streamed deltas.
	// See: https://opentelemetry.io/docs/specs/semconv/gen-ai/gen-ai-metrics/#metric-gen_aiservertime_per_output_token
	outputTokenLatency *prometheus.HistogramVec
}

// New builds the metric set on a fresh registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	m := &Metrics{
		registry: registry,
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http.server.request.duration",
				Help:    "Time spent serving each request.",
				Buckets: []float64{0.01, 0.02, 0.04, 0.08, 0.16, 0.32, 0.64, 1.28, 2.56, 5.12, 10.24, 20.48, 40.96, 81.92},
			},
			[]string{"http.route", "http.response.status_code"},
		),
		tokenUsage: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "gen_ai.client.token.usage",
				Help:    "Number of tokens processed.",
				Buckets: []float64{1, 4, 16, 64, 256, 1024, 4096, 16384, 65536, 262144, 1048576, 4194304, 16777216, 67108864},
			},
			[]string{"gen_ai.operation.name", "gen_ai.token.type", "gen_ai.request.model"},
		),
		firstTokenLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "gen_ai.server.time_to_first_token",
				Help:    "Time to receive first token in streaming responses.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.02, 0.04, 0.06, 0.08, 0.1, 0.25, 0.5, 0.75, 1.0, 2.5, 5.0, 7.5, 10.0},
			},
			[]string{"gen_ai.operation.name", "gen_ai.request.model"},
		),
		outputTokenLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "gen_ai.server.time_per_output_token",
				Help:    "Time between consecutive tokens in streaming responses.",
				Buckets: []float64{0.01, 0.025, 0.05, 0.075, 0.1, 0.15, 0.2, 0.3, 0.4, 0.5, 0.75, 1.0, 2.5},
			},
			[]string{"gen_ai.operation.name", "gen_ai.request.model"},
		),
	}
	registry.MustRegister(m.requestDuration, m.tokenUsage, m.firstTokenLatency, m.outputTokenLatency)
	return m
}

// Registry returns the registry the /metrics endpoint serves.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveRequest records one served HTTP request.
func (m *Metrics) ObserveRequest(route string, status int, elapsed time.Duration) {
	m.requestDuration.WithLabelValues(route, strconv.Itoa(status)).Observe(elapsed.Seconds())
}
