// Copyright ModelGate Authors
// SPDX-License-Identifier: Apache-2.0
// The full text of the Apache license is available in the LICENSE file at
// the root of the repo.

// Package retry classifies upstream failures and reruns transient ones
// under a per-binding exponential backoff.
package retry

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/modelgate/modelgate/internal/adapter"
	"github.com/modelgate/modelgate/internal/modelconfig"
)

const (
	// randomizationFactor spreads concurrent retries so a failing backend
	// is not hit in lockstep.
	randomizationFactor = 0.25
	// logMessageLimit caps upstream error text in retry logs.
	logMessageLimit = 100
)

// errorClass buckets error-message keywords by retryability. Classes are
// checked in order; the first match decides.
type errorClass struct {
	retryable bool
	keywords  []string
}

var errorClasses = []errorClass{
	{retryable: true, keywords: []string{
		"connection", "network", "timeout", "refused", "reset", "dns", "unreachable", "socket",
	}},
	{retryable: true, keywords: []string{
		"rate limit", "too many requests", "429",
	}},
	{retryable: true, keywords: []string{
		"500", "502", "503", "504", "internal server error", "bad gateway",
		"service unavailable", "gateway timeout",
	}},
	{retryable: false, keywords: []string{
		"401", "403", "unauthorized", "forbidden", "authentication",
		"api_key", "api key", "invalid key", "invalid api",
	}},
	{retryable: false, keywords: []string{
		"400", "422", "invalid request", "bad request", "validation",
	}},
	{retryable: false, keywords: []string{
		"404", "not found", "model not found",
	}},
}

// Classify reports whether err is worth retrying. Typed errors are decided
// by their status or kind; everything else falls back to scanning the
// message for the vendor-agnostic keyword classes. Unknown errors are not
// retried.
func Classify(err error) bool {
	if err == nil {
		return false
	}

	var httpErr *adapter.HTTPError
	if errors.As(err, &httpErr) {
		switch {
		case httpErr.StatusCode == http.StatusTooManyRequests:
			return true
		case httpErr.StatusCode >= 500:
			return true
		case httpErr.StatusCode == http.StatusBadRequest,
			httpErr.StatusCode == http.StatusUnauthorized,
			httpErr.StatusCode == http.StatusForbidden,
			httpErr.StatusCode == http.StatusNotFound,
			httpErr.StatusCode == http.StatusUnprocessableEntity:
			return false
		}
		// Unlisted statuses are decided by the message.
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, class := range errorClasses {
		for _, kw := range class.keywords {
			if strings.Contains(msg, kw) {
				return class.retryable
			}
		}
	}
	return false
}

// Do runs op under the binding's retry policy. The first attempt is not a
// retry; non-retryable errors stop immediately and the last error surfaces
// unchanged.
func Do[T any](ctx context.Context, logger *slog.Logger, policy *modelconfig.RetryPolicy, op func() (T, error)) (T, error) {
	if policy == nil || !policy.IsEnabled() {
		return op()
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = policy.InitialInterval()
	b.MaxInterval = policy.MaxInterval()
	b.Multiplier = policy.ExponentialBase
	b.MaxElapsedTime = 0
	b.RandomizationFactor = 0
	if policy.HasJitter() {
		b.RandomizationFactor = randomizationFactor
	}
	b.Reset()

	attempt := func() (T, error) {
		v, err := op()
		if err != nil && !Classify(err) {
			var zero T
			return zero, backoff.Permanent(err)
		}
		return v, err
	}
	notify := func(err error, delay time.Duration) {
		logger.Warn("retrying after transient upstream error",
			slog.String("error", truncate(err.Error())),
			slog.String("delay", delay.String()))
	}
	return backoff.RetryNotifyWithData(
		attempt,
		backoff.WithContext(backoff.WithMaxRetries(b, uint64(policy.MaxRetries)), ctx),
		notify,
	)
}

func truncate(s string) string {
	if len(s) <= logMessageLimit {
		return s
	}
	return s[:logMessageLimit]
}
