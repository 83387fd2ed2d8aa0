// Copyright ModelGate Authors
// SPDX-License-Identifier: Apache-2.0
// The full text of the Apache license is available in the LICENSE file at
// the root of the repo.

// Package server is the gateway's HTTP frontend: the OpenAI-compatible
// surface (/v1/chat/completions, /v1/models) plus health, reload and
// metrics endpoints. Every failure is answered with the OpenAI error
// envelope; no request may kill the process.
package server

import (
	"context"
	"log/slog"
	"net/http"
	"runtime/debug"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/modelgate/modelgate/internal/adapter"
	"github.com/modelgate/modelgate/internal/apischema/openai"
	"github.com/modelgate/modelgate/internal/metrics"
)

// sanitizedErrorLimit caps error text sent to clients.
const sanitizedErrorLimit = 200

// modelRegistry is the slice of the registry the frontend serves.
type modelRegistry interface {
	ListModels() []openai.Model
	Reload() error
}

// chatRouter dispatches chat exchanges to the adapter serving a model.
type chatRouter interface {
	Route(ctx context.Context, model string, req *openai.ChatCompletionRequest) (*openai.ChatCompletionResponse, error)
	RouteStream(ctx context.Context, model string, req *openai.ChatCompletionRequest) (adapter.Stream, error)
}

// Server is the gateway's HTTP frontend.
type Server struct {
	registry modelRegistry
	router   chatRouter
	metrics  *metrics.Metrics
	logger   *slog.Logger

	// heartbeatInterval is how long a stream may sit idle before an SSE
	// comment is emitted. Tests shorten it.
	heartbeatInterval time.Duration
}

// New builds the frontend over the registry and router.
func New(registry modelRegistry, router chatRouter, m *metrics.Metrics, logger *slog.Logger) *Server {
	return &Server{
		registry:          registry,
		router:            router,
		metrics:           m,
		logger:            logger,
		heartbeatInterval: streamHeartbeat,
	}
}

// Handler returns the engine serving the gateway's routes.
func (s *Server) Handler() http.Handler {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(s.metricsMiddleware(), s.recoveryMiddleware(), corsMiddleware())

	r.GET("/health", s.handleHealth)
	r.GET("/v1/models", s.handleListModels)
	r.GET("/reload", s.handleReload)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.metrics.Registry(), promhttp.HandlerOpts{})))
	r.POST("/v1/chat/completions", s.handleChatCompletions)
	r.NoRoute(func(c *gin.Context) {
		writeError(c, http.StatusNotFound, "Not Found")
	})
	return r
}

// metricsMiddleware observes the duration of every request by route and
// status. It is outermost so it sees the status the recovery middleware
// writes for panics.
func (s *Server) metricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		s.metrics.ObserveRequest(route, c.Writer.Status(), time.Since(start))
	}
}

// recoveryMiddleware turns a panic anywhere below it into a logged 500.
// The process survives any request.
func (s *Server) recoveryMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				s.logger.Error("panic while serving request",
					slog.Any("panic", r),
					slog.String("path", c.Request.URL.Path),
					slog.String("stack", string(debug.Stack())))
				if !c.Writer.Written() {
					writeError(c, http.StatusInternalServerError, "Internal server error")
				}
				c.Abort()
			}
		}()
		c.Next()
	}
}

// corsMiddleware answers preflights and stamps the permissive CORS headers
// on every response.
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Health-Check-Id, X-Health-Check-Time")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusOK)
			return
		}
		c.Next()
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleListModels(c *gin.Context) {
	c.JSON(http.StatusOK, openai.ModelList{
		Object: openai.ObjectList,
		Data:   s.registry.ListModels(),
	})
}

func (s *Server) handleReload(c *gin.Context) {
	if err := s.registry.Reload(); err != nil {
		s.logger.Error("config reload failed", slog.String("error", err.Error()))
		writeError(c, http.StatusInternalServerError, "重新加载配置失败: "+sanitizeError(err.Error()))
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "message": "配置已重新加载"})
}

// writeError answers with the OpenAI error envelope, typing the error by
// status class and carrying the status in code.
func writeError(c *gin.Context, status int, message string) {
	errType := openai.ErrorTypeInvalidRequest
	if status >= 500 {
		errType = openai.ErrorTypeServer
	}
	c.JSON(status, openai.ErrorResponse{Error: openai.Error{
		Message: message,
		Type:    errType,
		Code:    strconv.Itoa(status),
	}})
}

// sanitizeError makes an upstream error safe to send to a client: anything
// that may carry a credential ("key" also covers "api_key" and "api key")
// is replaced wholesale, and long messages are bounded.
func sanitizeError(msg string) string {
	if strings.Contains(strings.ToLower(msg), "key") {
		return "API configuration error"
	}
	if len(msg) > sanitizedErrorLimit {
		return msg[:sanitizedErrorLimit] + "..."
	}
	return msg
}
