// Copyright ModelGate Authors
// SPDX-License-Identifier: Apache-2.0
// The full text of the Apache license is available in the LICENSE file at
// the root of the repo.

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/modelgate/modelgate/internal/metrics"
	"github.com/modelgate/modelgate/internal/pprof"
	"github.com/modelgate/modelgate/internal/registry"
	"github.com/modelgate/modelgate/internal/router"
	"github.com/modelgate/modelgate/internal/server"
	"github.com/modelgate/modelgate/internal/version"
)

const (
	configWatchInterval = 10 * time.Second
	shutdownTimeout     = 10 * time.Second
)

// run wires the gateway together and serves it until ctx is cancelled.
// Request-time failures are answered over HTTP, never returned from here.
func run(ctx context.Context, c cmdRun, stderr io.Writer) error {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return fmt.Errorf("failed to parse log level %q: %w", c.LogLevel, err)
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))
	logger.Info("starting modelgate",
		slog.String("version", version.Version), slog.String("config", c.Config))

	reg, err := registry.Load(c.Config, logger)
	if err != nil {
		return fmt.Errorf("failed to load model registry: %w", err)
	}
	registry.StartConfigWatcher(ctx, c.Config, reg, logger, configWatchInterval)
	pprof.Run(ctx, logger)

	m := metrics.New()
	srv := server.New(reg, router.New(reg, logger), m, logger)

	// No WriteTimeout on the gateway listener: an SSE response stays open
	// for minutes.
	gateway := &http.Server{
		Addr:              c.Addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	var g errgroup.Group
	g.Go(func() error {
		logger.Info("gateway listening", slog.String("addr", c.Addr))
		if err := gateway.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("gateway server: %w", err)
		}
		return nil
	})

	var metricsServer *http.Server
	if c.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(m.Registry(), promhttp.HandlerOpts{}))
		metricsServer = &http.Server{
			Addr:              c.MetricsAddr,
			Handler:           mux,
			ReadTimeout:       5 * time.Second,
			ReadHeaderTimeout: 5 * time.Second,
			WriteTimeout:      10 * time.Second,
			IdleTimeout:       15 * time.Second,
		}
		g.Go(func() error {
			logger.Info("metrics listening", slog.String("addr", c.MetricsAddr))
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
	}

	g.Go(func() error {
		<-ctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if metricsServer != nil {
			_ = metricsServer.Shutdown(shutdownCtx)
		}
		return gateway.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
