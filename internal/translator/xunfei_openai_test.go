// Copyright ModelGate Authors
// SPDX-License-Identifier: Apache-2.0
// The full text of the Apache license is available in the LICENSE file at
// the root of the repo.

package translator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modelgate/modelgate/internal/apischema/openai"
	"github.com/modelgate/modelgate/internal/json"
	"github.com/modelgate/modelgate/internal/modelconfig"
)

func xunfeiBinding() *modelconfig.Binding {
	b := &modelconfig.Binding{ID: "spark", Model: "spark", APIKey: "key"}
	b.Config.AppID = "app-1"
	return b
}

func TestXunfeiTranslator_RequestBody(t *testing.T) {
	tr := NewXunfei(xunfeiBinding())
	body, err := tr.RequestBody(&openai.ChatCompletionRequest{
		Model: "spark",
		Messages: []openai.Message{
			{Role: openai.MessageRoleSystem, Content: openai.MessageContent{Value: "be terse"}},
			{Role: openai.MessageRoleUser, Content: openai.MessageContent{Value: "hi"}},
		},
	})
	require.NoError(t, err)

	var req map[string]any
	require.NoError(t, json.Unmarshal(body, &req))
	assert.Equal(t, "app-1", req["header"].(map[string]any)["app_id"])
	chat := req["parameter"].(map[string]any)["chat"].(map[string]any)
	assert.Equal(t, "generalv3.5", chat["domain"])
	assert.InDelta(t, 0.7, chat["temperature"], 1e-9)
	assert.EqualValues(t, 2048, chat["max_tokens"])
	text := req["payload"].(map[string]any)["message"].(map[string]any)["text"].([]any)
	require.Len(t, text, 2)
	assert.Equal(t, map[string]any{"role": "system", "content": "be terse"}, text[0])
	assert.Equal(t, map[string]any{"role": "user", "content": "hi"}, text[1])
}

func TestXunfeiTranslator_versionDomain(t *testing.T) {
	binding := xunfeiBinding()
	binding.Config.APIVersion = "v1.1"
	tr := NewXunfei(binding)
	body, err := tr.RequestBody(&openai.ChatCompletionRequest{
		Model:    "spark",
		Messages: []openai.Message{{Role: openai.MessageRoleUser, Content: openai.MessageContent{Value: "hi"}}},
	})
	require.NoError(t, err)
	var req map[string]any
	require.NoError(t, json.Unmarshal(body, &req))
	assert.Equal(t, "general", req["parameter"].(map[string]any)["chat"].(map[string]any)["domain"])

	// An explicit domain wins over the version mapping.
	binding = xunfeiBinding()
	binding.Config.APIVersion = "v4.0"
	binding.Config.Domain = "custom-domain"
	tr = NewXunfei(binding)
	body, err = tr.RequestBody(&openai.ChatCompletionRequest{
		Model:    "spark",
		Messages: []openai.Message{{Role: openai.MessageRoleUser, Content: openai.MessageContent{Value: "hi"}}},
	})
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(body, &req))
	assert.Equal(t, "custom-domain", req["parameter"].(map[string]any)["chat"].(map[string]any)["domain"])
}

func TestXunfeiTranslator_RequestPath(t *testing.T) {
	tests := []struct {
		name    string
		baseURL string
		version string
		want    string
	}{
		{"default", "", "", "wss://spark-api.xf-yun.com/v3.5/chat"},
		{"versioned", "", "v4.0", "wss://spark-api.xf-yun.com/v4.0/chat"},
		{"custom host", "wss://spark.example.com", "", "wss://spark.example.com/v3.5/chat"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			binding := xunfeiBinding()
			binding.Config.APIVersion = tc.version
			tr := NewXunfei(binding)
			path, err := tr.RequestPath(tc.baseURL, "")
			require.NoError(t, err)
			assert.Equal(t, tc.want, path)
		})
	}
}

func TestXunfeiTranslator_ResponseBody(t *testing.T) {
	tr := NewXunfei(xunfeiBinding())
	_, err := tr.ResponseBody([]byte(`{}`))
	require.Error(t, err)
}

func TestXunfeiTranslator_ResponseChunk(t *testing.T) {
	tr := NewXunfei(xunfeiBinding())
	_, err := tr.RequestBody(&openai.ChatCompletionRequest{
		Model:    "spark",
		Messages: []openai.Message{{Role: openai.MessageRoleUser, Content: openai.MessageContent{Value: "hi"}}},
	})
	require.NoError(t, err)

	chunk, err := tr.ResponseChunk([]byte(`{
		"header": {"code": 0, "status": 0},
		"payload": {"choices": {"status": 0, "seq": 0, "text": [{"role": "assistant", "content": "你"}]}}
	}`))
	require.NoError(t, err)
	require.NotNil(t, chunk)
	assert.Equal(t, "你", chunk.Choices[0].Delta.Content)
	assert.Empty(t, chunk.Choices[0].FinishReason)

	chunk, err = tr.ResponseChunk([]byte(`{
		"header": {"code": 0, "status": 2},
		"payload": {
			"choices": {"status": 2, "seq": 1, "text": [{"role": "assistant", "content": "好"}]},
			"usage": {"text": {"prompt_tokens": 3, "completion_tokens": 4, "total_tokens": 7}}
		}
	}`))
	require.NoError(t, err)
	require.NotNil(t, chunk)
	assert.Equal(t, openai.FinishReasonStop, chunk.Choices[0].FinishReason)
	require.NotNil(t, chunk.Usage)
	assert.Equal(t, 7, chunk.Usage.TotalTokens)

	// Frames without text are skipped.
	chunk, err = tr.ResponseChunk([]byte(`{"header": {"code": 0, "status": 1}}`))
	require.NoError(t, err)
	assert.Nil(t, chunk)
}

func TestXunfeiTranslator_ResponseChunk_error(t *testing.T) {
	tr := NewXunfei(xunfeiBinding())
	_, err := tr.ResponseChunk([]byte(`{"header": {"code": 10013, "message": "input content audit failed"}}`))
	var upstream *UpstreamError
	require.ErrorAs(t, err, &upstream)
	assert.Equal(t, "xunfei", upstream.Vendor)
	assert.Equal(t, "10013", upstream.Code)
}
