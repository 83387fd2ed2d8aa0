// Copyright ModelGate Authors
// SPDX-License-Identifier: Apache-2.0
// The full text of the Apache license is available in the LICENSE file at
// the root of the repo.

package modelconfig

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnmarshal(t *testing.T) {
	raw := []byte(`{
  "models": [
    {
      "id": "claude-3-5-sonnet-latest",
      "adapter": "custom_http",
      "base_url": "https://api.anthropic.com",
      "endpoint": "/v1/messages",
      "api_key": "sk-ant-test",
      "request_format": "anthropic",
      "timeout": 30,
      "retry": {"max_retries": 5, "jitter": false}
    },
    {
      "id": "local-echo",
      "adapter": "process",
      "command": "/usr/local/bin/echo-model",
      "args": ["--json"],
      "enabled": false
    }
  ]
}`)
	f, err := Unmarshal(raw)
	require.NoError(t, err)
	require.Len(t, f.Models, 2)

	claude := f.Models[0]
	assert.True(t, claude.IsEnabled())
	assert.Equal(t, "claude-3-5-sonnet-latest", claude.Model, "model defaults to id")
	assert.Equal(t, 30*time.Second, claude.TimeoutDuration())
	require.NotNil(t, claude.Retry)
	assert.Equal(t, 5, claude.Retry.MaxRetries)
	assert.False(t, claude.Retry.HasJitter())
	assert.True(t, claude.Retry.IsEnabled())
	assert.Equal(t, time.Second, claude.Retry.InitialInterval(), "unset delays take defaults")
	assert.Equal(t, time.Minute, claude.Retry.MaxInterval())
	assert.Equal(t, 2.0, claude.Retry.ExponentialBase)

	echo := f.Models[1]
	assert.False(t, echo.IsEnabled())
	assert.Equal(t, 120*time.Second, echo.TimeoutDuration(), "process bindings get the longer default")
	require.NotNil(t, echo.Retry, "retry policy is always materialised")
	assert.Equal(t, 3, echo.Retry.MaxRetries)
}

func TestUnmarshal_invalidJSON(t *testing.T) {
	_, err := Unmarshal([]byte(`{"models": [`))
	require.ErrorContains(t, err, "failed to unmarshal model config")
}

func TestUnmarshalConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "models.json")
	_, err := UnmarshalConfigFile(path)
	require.ErrorContains(t, err, "failed to read model config")
}

func TestResolveEnv(t *testing.T) {
	t.Setenv("MODELGATE_TEST_KEY", "sk-resolved")
	assert.Equal(t, "sk-resolved", ResolveEnv("ENV:MODELGATE_TEST_KEY"))
	assert.Equal(t, "", ResolveEnv("ENV:MODELGATE_TEST_KEY_UNSET"))
	assert.Equal(t, "sk-literal", ResolveEnv("sk-literal"))
	assert.Equal(t, "", ResolveEnv(""))
}

func TestDefault(t *testing.T) {
	f := Default()
	require.Len(t, f.Models, 2)
	assert.Equal(t, "gpt-3.5-turbo", f.Models[0].ID)
	assert.Equal(t, "ENV:OPENAI_API_KEY", f.Models[0].APIKey)
	assert.Equal(t, "deepseek-chat", f.Models[1].ID)
	for _, b := range f.Models {
		assert.Equal(t, AdapterOpenAICompat, b.Adapter)
	}
}
