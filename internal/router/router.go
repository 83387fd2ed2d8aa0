// Copyright ModelGate Authors
// SPDX-License-Identifier: Apache-2.0
// The full text of the Apache license is available in the LICENSE file at
// the root of the repo.

// Package router resolves model ids to registered adapters and runs unary
// exchanges under the binding's retry policy. Streaming exchanges are
// resolved here but pumped by the caller; a stream is never retried.
package router

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/modelgate/modelgate/internal/adapter"
	"github.com/modelgate/modelgate/internal/apischema/openai"
	"github.com/modelgate/modelgate/internal/registry"
	"github.com/modelgate/modelgate/internal/retry"
)

// NotFoundError reports a model id with no enabled binding.
type NotFoundError struct {
	Model string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("模型 %s 未找到或未启用", e.Model)
}

// EntryResolver resolves a model id to its registry entry.
type EntryResolver interface {
	Get(model string) (*registry.Entry, bool)
}

// Router dispatches chat requests to the adapter registered for the
// requested model.
type Router struct {
	resolver EntryResolver
	logger   *slog.Logger
}

// New builds a router over the given resolver.
func New(resolver EntryResolver, logger *slog.Logger) *Router {
	return &Router{resolver: resolver, logger: logger}
}

// Route performs one unary exchange with the adapter serving model,
// rerunning transient upstream failures per the binding's retry policy.
// The last error surfaces unchanged.
func (r *Router) Route(ctx context.Context, model string, req *openai.ChatCompletionRequest) (*openai.ChatCompletionResponse, error) {
	e, ok := r.resolver.Get(model)
	if !ok {
		return nil, &NotFoundError{Model: model}
	}
	logger := r.logger.With(slog.String("model", model))
	return retry.Do(ctx, logger, e.Binding.Retry, func() (*openai.ChatCompletionResponse, error) {
		return e.Adapter.Chat(ctx, req)
	})
}

// RouteStream opens a streaming exchange with the adapter serving model.
// The retry policy applies to unary exchanges only; a stream is attempted
// once.
func (r *Router) RouteStream(ctx context.Context, model string, req *openai.ChatCompletionRequest) (adapter.Stream, error) {
	e, ok := r.resolver.Get(model)
	if !ok {
		return nil, &NotFoundError{Model: model}
	}
	return e.Adapter.ChatStream(ctx, req)
}
