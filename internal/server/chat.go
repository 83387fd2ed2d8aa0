// Copyright ModelGate Authors
// SPDX-License-Identifier: Apache-2.0
// The full text of the Apache license is available in the LICENSE file at
// the root of the repo.

package server

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/modelgate/modelgate/internal/apischema/openai"
	"github.com/modelgate/modelgate/internal/json"
	"github.com/modelgate/modelgate/internal/metrics"
	"github.com/modelgate/modelgate/internal/router"
)

const (
	// routeTimeout is the hard ceiling on a unary exchange, over and above
	// any per-binding timeout.
	routeTimeout = 5 * time.Minute
	// streamHeartbeat is how long the stream writer waits for a frame
	// before emitting an SSE comment to keep the connection alive.
	streamHeartbeat = 30 * time.Second
	// maxStreamIterations caps the writer loop against runaway upstreams.
	maxStreamIterations = 10000

	doneFrame = "data: [DONE]\n\n"
)

func (s *Server) handleChatCompletions(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		writeError(c, http.StatusBadRequest, "Invalid request: "+sanitizeError(err.Error()))
		return
	}
	if len(body) == 0 {
		writeError(c, http.StatusBadRequest, "Request body is required")
		return
	}
	var req openai.ChatCompletionRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(c, http.StatusBadRequest, "Invalid request: "+sanitizeError(err.Error()))
		return
	}
	if req.Model == "" {
		writeError(c, http.StatusBadRequest, "Missing 'model' field")
		return
	}

	rec := s.metrics.StartChat(req.Model)
	if req.Stream {
		s.streamChatCompletion(c, &req, rec)
		return
	}
	s.unaryChatCompletion(c, &req, rec)
}

func (s *Server) unaryChatCompletion(c *gin.Context, req *openai.ChatCompletionRequest, rec *metrics.ChatRecorder) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), routeTimeout)
	defer cancel()

	resp, err := s.router.Route(ctx, req.Model, req)
	if err != nil {
		var notFound *router.NotFoundError
		switch {
		case errors.Is(err, context.DeadlineExceeded):
			writeError(c, http.StatusGatewayTimeout, "Request timeout")
		case errors.As(err, &notFound):
			writeError(c, http.StatusNotFound, err.Error())
		default:
			s.logger.Error("chat completion failed",
				slog.String("model", req.Model), slog.String("error", err.Error()))
			writeError(c, http.StatusInternalServerError, sanitizeError(err.Error()))
		}
		return
	}

	if resp.Usage != nil {
		rec.RecordTokenUsage(resp.Usage.PromptTokens, resp.Usage.CompletionTokens, resp.Usage.TotalTokens)
	}
	c.JSON(http.StatusOK, resp)
}

// streamItem is one Recv result carried from the reader goroutine to the
// writer loop.
type streamItem struct {
	chunk *openai.ChatCompletionChunk
	err   error
}

// streamChatCompletion serves the SSE side of the chat endpoint. The
// preamble goes out before the adapter is resolved, so every later failure
// is delivered as an SSE frame; each terminating path writes exactly one
// [DONE] marker unless the client is already gone.
func (s *Server) streamChatCompletion(c *gin.Context, req *openai.ChatCompletionRequest, rec *metrics.ChatRecorder) {
	h := c.Writer.Header()
	h.Set("Content-Type", "text/event-stream; charset=utf-8")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	c.Writer.WriteHeader(http.StatusOK)
	c.Writer.Flush()

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	stream, err := s.router.RouteStream(ctx, req.Model, req)
	if err != nil {
		s.writeStreamError(c, sanitizeError(err.Error()))
		return
	}
	defer func() { _ = stream.Close() }()

	items := make(chan streamItem)
	go func() {
		defer close(items)
		for {
			chunk, err := stream.Recv()
			select {
			case items <- streamItem{chunk: chunk, err: err}:
			case <-ctx.Done():
				return
			}
			if err != nil {
				return
			}
		}
	}()

	heartbeat := time.NewTimer(s.heartbeatInterval)
	defer heartbeat.Stop()

	for iteration := 0; iteration < maxStreamIterations; iteration++ {
		select {
		case item, ok := <-items:
			if !ok {
				// Reader exited on context cancellation: the client is
				// gone and there is nobody left to frame for.
				return
			}
			if item.err != nil {
				if errors.Is(item.err, io.EOF) {
					s.writeFrame(c, doneFrame)
					return
				}
				if errors.Is(item.err, context.Canceled) {
					return
				}
				s.logger.Error("stream failed",
					slog.String("model", req.Model), slog.String("error", item.err.Error()))
				s.writeErrorChunk(c, req.Model, sanitizeError(item.err.Error()))
				return
			}

			payload, err := json.Marshal(item.chunk)
			if err != nil {
				s.writeErrorChunk(c, req.Model, sanitizeError(err.Error()))
				return
			}
			if !s.writeFrame(c, "data: "+string(payload)+"\n\n") {
				cancel()
				for range items {
				}
				return
			}
			if len(item.chunk.Choices) > 0 && item.chunk.Choices[0].Delta.Content != "" {
				rec.RecordTokenLatency()
			}
			if item.chunk.Usage != nil {
				rec.RecordTokenUsage(item.chunk.Usage.PromptTokens,
					item.chunk.Usage.CompletionTokens, item.chunk.Usage.TotalTokens)
			}

			if !heartbeat.Stop() {
				select {
				case <-heartbeat.C:
				default:
				}
			}
			heartbeat.Reset(s.heartbeatInterval)

		case <-heartbeat.C:
			if !s.writeFrame(c, ": heartbeat\n\n") {
				cancel()
				for range items {
				}
				return
			}
			heartbeat.Reset(s.heartbeatInterval)
		}
	}

	// Runaway upstream: close the stream out rather than relay forever.
	s.logger.Warn("stream hit the iteration cap", slog.String("model", req.Model))
	s.writeFrame(c, doneFrame)
}

// writeFrame writes one SSE frame and reports whether the client is still
// connected.
func (s *Server) writeFrame(c *gin.Context, frame string) bool {
	if _, err := c.Writer.WriteString(frame); err != nil {
		s.logger.Info("client disconnected mid-stream", slog.String("error", err.Error()))
		return false
	}
	c.Writer.Flush()
	return true
}

// writeStreamError reports a failure that happened before any chunk could
// flow (the adapter could not be resolved or opened) as an error-envelope
// frame followed by the terminal marker.
func (s *Server) writeStreamError(c *gin.Context, message string) {
	payload, err := json.Marshal(openai.ErrorResponse{Error: openai.Error{
		Message: message,
		Type:    openai.ErrorTypeServer,
		Code:    "500",
	}})
	if err == nil {
		if !s.writeFrame(c, "data: "+string(payload)+"\n\n") {
			return
		}
	}
	s.writeFrame(c, doneFrame)
}

// writeErrorChunk surfaces a mid-stream failure to the client as one final
// delta carrying the error text, then terminates the stream.
func (s *Server) writeErrorChunk(c *gin.Context, model, message string) {
	chunk := &openai.ChatCompletionChunk{
		ID:      "error-" + uuid.NewString(),
		Object:  openai.ObjectChatCompletionChunk,
		Created: time.Now().Unix(),
		Model:   model,
		Choices: []openai.ChatCompletionChunkChoice{{
			Delta:        openai.ChunkDelta{Content: "\n\n[Error: " + message + "]"},
			FinishReason: openai.FinishReasonError,
		}},
	}
	payload, err := json.Marshal(chunk)
	if err == nil {
		if !s.writeFrame(c, "data: "+string(payload)+"\n\n") {
			return
		}
	}
	s.writeFrame(c, doneFrame)
}
