// Copyright ModelGate Authors
// SPDX-License-Identifier: Apache-2.0
// The full text of the Apache license is available in the LICENSE file at
// the root of the repo.

package registry

import (
	"bytes"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

var testLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

// The watcher runs on its own goroutine; every test must leave none behind.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func writeConfig(t *testing.T, doc string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "models.json")
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `{
		"debug": true,
		"models": [
			{"_comment": "entries without an id are ignored"},
			{"id": "gpt-a", "adapter": "openai_compat", "base_url": "https://api.openai.com/v1", "api_key": "sk-1", "retry": {"max_retries": 5}},
			{"id": "local-echo", "adapter": "process", "command": "cat"},
			{"id": "spark", "adapter": "websocket", "api_key": "k", "config": {"app_id": "a", "api_secret": "s"}},
			{"id": "turned-off", "adapter": "openai_compat", "base_url": "https://api.example.com", "api_key": "k", "enabled": false},
			{"id": "no-url", "adapter": "openai_compat", "api_key": "k"},
			{"id": "bad-family", "adapter": "smoke_signals"},
			{"id": "bad-zhipu", "adapter": "custom_http", "request_format": "zhipu", "base_url": "https://open.bigmodel.cn", "api_key": "missing-dot"}
		]
	}`)

	reg, err := Load(path, testLogger)
	require.NoError(t, err)

	models := reg.ListModels()
	require.Len(t, models, 3)
	assert.Equal(t, "gpt-a", models[0].ID)
	assert.Equal(t, "openai_compat", models[0].OwnedBy)
	assert.Equal(t, "local-echo", models[1].ID)
	assert.Equal(t, "process", models[1].OwnedBy)
	assert.Equal(t, "spark", models[2].ID)
	assert.Equal(t, "websocket_xunfei", models[2].OwnedBy)
	for _, m := range models {
		assert.Equal(t, "model", m.Object)
		assert.Zero(t, m.Created)
	}

	e, ok := reg.Get("gpt-a")
	require.True(t, ok)
	assert.Equal(t, "openai_compat", e.Adapter.Family())
	require.NotNil(t, e.Binding.Retry)
	assert.Equal(t, 5, e.Binding.Retry.MaxRetries)

	_, ok = reg.Get("turned-off")
	assert.False(t, ok)
	_, ok = reg.Get("bad-family")
	assert.False(t, ok)

	assert.True(t, reg.Debug())
}

func TestLoad_debugRedactsCredentials(t *testing.T) {
	path := writeConfig(t, `{
		"debug": true,
		"models": [
			{"id": "gpt-a", "adapter": "openai_compat", "base_url": "https://api.openai.com/v1", "api_key": "sk-secret-123"}
		]
	}`)

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	_, err := Load(path, logger)
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "binding detail")
	assert.Contains(t, out, "REDACTED")
	assert.NotContains(t, out, "sk-secret-123")
}

func TestLoad_writesDefaultConfig(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-seeded")
	path := filepath.Join(t.TempDir(), "models.json")

	reg, err := Load(path, testLogger)
	require.NoError(t, err)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "gpt-3.5-turbo")
	assert.Contains(t, string(raw), "deepseek-chat")

	// The seeded key makes the OpenAI starter binding available; the
	// DeepSeek one stays out until its key exists.
	models := reg.ListModels()
	require.Len(t, models, 1)
	assert.Equal(t, "gpt-3.5-turbo", models[0].ID)
}

func TestLoad_badFile(t *testing.T) {
	path := writeConfig(t, `{"models": [`)
	_, err := Load(path, testLogger)
	require.Error(t, err)
}

func TestReload(t *testing.T) {
	path := writeConfig(t, `{"models": [{"id": "model-a", "adapter": "process", "command": "cat"}]}`)
	reg, err := Load(path, testLogger)
	require.NoError(t, err)
	_, ok := reg.Get("model-a")
	require.True(t, ok)

	require.NoError(t, os.WriteFile(path, []byte(
		`{"models": [{"id": "model-b", "adapter": "process", "command": "cat"}]}`), 0o644))
	require.NoError(t, reg.Reload())

	_, ok = reg.Get("model-a")
	assert.False(t, ok)
	_, ok = reg.Get("model-b")
	assert.True(t, ok)
}

func TestReload_keepsTableOnError(t *testing.T) {
	path := writeConfig(t, `{"models": [{"id": "model-a", "adapter": "process", "command": "cat"}]}`)
	reg, err := Load(path, testLogger)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte(`{"models": [`), 0o644))
	require.Error(t, reg.Reload())

	// The broken file never replaces the serving table.
	_, ok := reg.Get("model-a")
	assert.True(t, ok)
}

func TestReload_concurrentGet(t *testing.T) {
	path := writeConfig(t, `{"models": [{"id": "model-a", "adapter": "process", "command": "cat"}]}`)
	reg, err := Load(path, testLogger)
	require.NoError(t, err)

	done := make(chan struct{})
	var wg sync.WaitGroup
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-done:
					return
				default:
					reg.Get("model-a")
					reg.ListModels()
				}
			}
		}()
	}
	for range 50 {
		require.NoError(t, reg.Reload())
	}
	close(done)
	wg.Wait()

	_, ok := reg.Get("model-a")
	assert.True(t, ok)
}

func TestConfigWatcher(t *testing.T) {
	path := writeConfig(t, `{"models": [{"id": "model-a", "adapter": "process", "command": "cat"}]}`)
	reg, err := Load(path, testLogger)
	require.NoError(t, err)

	StartConfigWatcher(t.Context(), path, reg, testLogger, 10*time.Millisecond)

	require.NoError(t, os.WriteFile(path, []byte(
		`{"models": [{"id": "model-b", "adapter": "process", "command": "cat"}]}`), 0o644))
	// Push the mtime clearly past the watcher's seed; coarse filesystem
	// timestamps would otherwise hide the write.
	bumped := time.Now().Add(2 * time.Second)
	require.NoError(t, os.Chtimes(path, bumped, bumped))

	require.Eventually(t, func() bool {
		_, ok := reg.Get("model-b")
		return ok
	}, 2*time.Second, 10*time.Millisecond)
}
