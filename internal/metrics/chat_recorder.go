// Copyright ModelGate Authors
// SPDX-License-Identifier: Apache-2.0
// The full text of the Apache license is available in the LICENSE file at
// the root of the repo.

package metrics

import "time"

// ChatRecorder tracks token accounting and delta timings for one chat
// exchange. It belongs to a single request goroutine and is not safe for
// concurrent use.
type ChatRecorder struct {
	metrics *Metrics
	model   string

	requestStart   time.Time
	firstTokenSent bool
	lastTokenTime  time.Time
}

// StartChat returns a recorder for one exchange with the model.
func (m *Metrics) StartChat(model string) *ChatRecorder {
	return &ChatRecorder{
		metrics:      m,
		model:        model,
		requestStart: time.Now(),
	}
}

// RecordTokenUsage records the exchange's final token accounting.
func (r *ChatRecorder) RecordTokenUsage(input, output, total int) {
	r.metrics.tokenUsage.WithLabelValues(operationChat, "input", r.model).Observe(float64(input))
	r.metrics.tokenUsage.WithLabelValues(operationChat, "output", r.model).Observe(float64(output))
	r.metrics.tokenUsage.WithLabelValues(operationChat, "total", r.model).Observe(float64(total))
}

// RecordTokenLatency marks one streamed content delta. The first delta
// observes time-to-first-token; each later one observes the gap since the
// delta before it.
func (r *ChatRecorder) RecordTokenLatency() {
	now := time.Now()
	if !r.firstTokenSent {
		r.firstTokenSent = true
		r.metrics.firstTokenLatency.WithLabelValues(operationChat, r.model).Observe(now.Sub(r.requestStart).Seconds())
	} else {
		r.metrics.outputTokenLatency.WithLabelValues(operationChat, r.model).Observe(now.Sub(r.lastTokenTime).Seconds())
	}
	r.lastTokenTime = now
}
