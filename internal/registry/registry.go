// Copyright ModelGate Authors
// SPDX-License-Identifier: Apache-2.0
// The full text of the Apache license is available in the LICENSE file at
// the root of the repo.

// Package registry loads the models file and resolves model ids to ready
// adapters. The lookup table is swapped atomically on reload, so requests
// in flight keep the adapters they resolved and never observe a half-built
// table.
package registry

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"sync/atomic"

	"github.com/modelgate/modelgate/internal/adapter"
	"github.com/modelgate/modelgate/internal/apischema/openai"
	"github.com/modelgate/modelgate/internal/json"
	"github.com/modelgate/modelgate/internal/modelconfig"
	"github.com/modelgate/modelgate/internal/redaction"
)

// Entry is one registered model: the constructed adapter plus the binding
// it was built from (the router reads the retry policy off the binding).
type Entry struct {
	Adapter adapter.Adapter
	Binding *modelconfig.Binding
}

// table is one immutable generation of the registry.
type table struct {
	order   []string
	entries map[string]*Entry
	debug   bool
}

// Registry maps model ids to adapters, in models-file order.
type Registry struct {
	path   string
	logger *slog.Logger
	table  atomic.Pointer[table]
}

// Load builds a registry from the models file at path, writing the starter
// configuration first if the file does not exist. Per-binding problems are
// logged and skipped; only an unreadable or unparseable file is an error.
func Load(path string, logger *slog.Logger) (*Registry, error) {
	r := &Registry{path: path, logger: logger}
	if err := r.ensureConfig(); err != nil {
		return nil, err
	}
	if err := r.Reload(); err != nil {
		return nil, err
	}
	return r, nil
}

// ensureConfig writes the default models file when none exists, so a first
// run starts with something to edit rather than an error.
func (r *Registry) ensureConfig() error {
	_, err := os.Stat(r.path)
	if err == nil {
		return nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to stat model config %q: %w", r.path, err)
	}
	raw, err := json.MarshalIndent(modelconfig.Default(), "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal default model config: %w", err)
	}
	if err := os.WriteFile(r.path, raw, 0o644); err != nil {
		return fmt.Errorf("failed to write default model config: %w", err)
	}
	r.logger.Info("wrote default model config", slog.String("path", r.path))
	return nil
}

// Reload rebuilds the table from the models file and swaps it in. On error
// the previous table stays in place.
func (r *Registry) Reload() error {
	f, err := modelconfig.UnmarshalConfigFile(r.path)
	if err != nil {
		return err
	}
	t := r.build(f)
	r.table.Store(t)
	r.logger.Info("model registry loaded",
		slog.Int("models", len(t.order)), slog.String("path", r.path))
	return nil
}

// build registers every usable binding. A broken binding is logged and
// skipped; it never takes the rest of the file down with it.
func (r *Registry) build(f *modelconfig.File) *table {
	t := &table{
		entries: make(map[string]*Entry, len(f.Models)),
		debug:   f.Debug,
	}
	for i := range f.Models {
		b := &f.Models[i]
		// Entries without an id are comments.
		if b.ID == "" {
			continue
		}
		logger := r.logger.With(slog.String("model", b.ID), slog.String("adapter", b.Adapter))
		if !b.IsEnabled() {
			logger.Info("skipping disabled model")
			continue
		}
		a, err := adapter.New(b)
		if err != nil {
			logger.Error("failed to construct adapter", slog.String("error", err.Error()))
			continue
		}
		if err := a.Available(); err != nil {
			logger.Warn("model not available", slog.String("reason", err.Error()))
			continue
		}
		if _, dup := t.entries[b.ID]; dup {
			logger.Warn("duplicate model id, the later definition wins")
		} else {
			t.order = append(t.order, b.ID)
		}
		t.entries[b.ID] = &Entry{Adapter: a, Binding: b}
		logger.Info("registered model")
		if t.debug {
			logger.Debug("binding detail",
				slog.String("family", a.Family()),
				slog.String("base_url", b.BaseURL),
				slog.String("upstream_model", b.Model),
				slog.String("api_key", redaction.RedactString(b.APIKey)))
		}
	}
	return t
}

// Get returns the entry serving the model id.
func (r *Registry) Get(model string) (*Entry, bool) {
	e, ok := r.table.Load().entries[model]
	return e, ok
}

// ListModels lists the registered models in file order.
func (r *Registry) ListModels() []openai.Model {
	t := r.table.Load()
	models := make([]openai.Model, 0, len(t.order))
	for _, id := range t.order {
		models = append(models, openai.Model{
			ID:      id,
			Object:  openai.ObjectModel,
			OwnedBy: t.entries[id].Adapter.Family(),
		})
	}
	return models
}

// Debug reports the models file's debug flag as of the last load.
func (r *Registry) Debug() bool {
	return r.table.Load().debug
}
