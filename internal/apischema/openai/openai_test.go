// Copyright ModelGate Authors
// SPDX-License-Identifier: Apache-2.0
// The full text of the Apache license is available in the LICENSE file at
// the root of the repo.

package openai

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modelgate/modelgate/internal/json"
)

func TestMessageContent_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name      string
		data      string
		wantValue string
		wantParts int
		wantErr   bool
	}{
		{
			name:      "plain string content",
			data:      `"Hello, world"`,
			wantValue: "Hello, world",
		},
		{
			name:      "array content with text parts",
			data:      `[{"type":"text","text":"look at"},{"type":"text","text":"this"}]`,
			wantParts: 2,
		},
		{
			name:      "array content with image part",
			data:      `[{"type":"text","text":"describe"},{"type":"image_url","image_url":{"url":"https://example.com/cat.png"}}]`,
			wantParts: 2,
		},
		{
			name:      "unknown part types are kept but empty",
			data:      `[{"type":"input_audio","input_audio":{"data":"xx"}}]`,
			wantParts: 1,
		},
		{
			name:    "object content is rejected",
			data:    `{"text":"nope"}`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var mc MessageContent
			err := json.Unmarshal([]byte(tt.data), &mc)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantValue, mc.Value)
			assert.Len(t, mc.Parts, tt.wantParts)
		})
	}
}

func TestMessageContent_Text(t *testing.T) {
	tests := []struct {
		name    string
		content MessageContent
		want    string
	}{
		{
			name:    "string content returned verbatim",
			content: MessageContent{Value: "just text"},
			want:    "just text",
		},
		{
			name: "text parts joined with single space",
			content: MessageContent{Parts: []ContentPart{
				{Text: &TextPart{Type: "text", Text: "look at"}},
				{Text: &TextPart{Type: "text", Text: "this"}},
			}},
			want: "look at this",
		},
		{
			name: "image parts dropped",
			content: MessageContent{Parts: []ContentPart{
				{Text: &TextPart{Type: "text", Text: "describe"}},
				{ImageURL: &ImageURLPart{Type: "image_url", ImageURL: ImageURL{URL: "https://example.com/cat.png"}}},
			}},
			want: "describe",
		},
		{
			name:    "empty content",
			content: MessageContent{},
			want:    "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.content.Text())
		})
	}
}

func TestMessageContent_MarshalJSON(t *testing.T) {
	t.Run("string content", func(t *testing.T) {
		out, err := json.Marshal(MessageContent{Value: "hi"})
		require.NoError(t, err)
		assert.JSONEq(t, `"hi"`, string(out))
	})
	t.Run("array content", func(t *testing.T) {
		out, err := json.Marshal(MessageContent{Parts: []ContentPart{
			{Text: &TextPart{Type: "text", Text: "hi"}},
		}})
		require.NoError(t, err)
		assert.JSONEq(t, `[{"type":"text","text":"hi"}]`, string(out))
	})
	t.Run("empty content is a JSON string", func(t *testing.T) {
		out, err := json.Marshal(MessageContent{})
		require.NoError(t, err)
		assert.Equal(t, `""`, string(out))
	})
}

func TestStopSequences_RoundTrip(t *testing.T) {
	tests := []struct {
		name     string
		data     string
		wantSeqs []string
	}{
		{
			name:     "single string",
			data:     `"Human:"`,
			wantSeqs: []string{"Human:"},
		},
		{
			name:     "array of strings",
			data:     `["Human:","AI:"]`,
			wantSeqs: []string{"Human:", "AI:"},
		},
		{
			name:     "empty array",
			data:     `[]`,
			wantSeqs: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var s StopSequences
			require.NoError(t, json.Unmarshal([]byte(tt.data), &s))
			if tt.wantSeqs == nil {
				assert.Empty(t, s.Sequences())
			} else {
				assert.Equal(t, tt.wantSeqs, s.Sequences())
			}

			out, err := json.Marshal(s)
			require.NoError(t, err)
			assert.JSONEq(t, tt.data, string(out))
		})
	}

	t.Run("number is rejected", func(t *testing.T) {
		var s StopSequences
		require.Error(t, json.Unmarshal([]byte(`42`), &s))
	})

	t.Run("nil receiver yields no sequences", func(t *testing.T) {
		var s *StopSequences
		assert.Nil(t, s.Sequences())
	})
}

func TestChatCompletionRequest_UnmarshalJSON(t *testing.T) {
	body := `{
		"model": "my-claude",
		"messages": [
			{"role": "system", "content": "You are terse."},
			{"role": "user", "content": [{"type":"text","text":"hello"}]}
		],
		"temperature": 0.5,
		"max_tokens": 128,
		"stop": "END",
		"stream": true
	}`
	var req ChatCompletionRequest
	require.NoError(t, json.Unmarshal([]byte(body), &req))

	assert.Equal(t, "my-claude", req.Model)
	require.Len(t, req.Messages, 2)
	assert.Equal(t, MessageRoleSystem, req.Messages[0].Role)
	assert.Equal(t, "You are terse.", req.Messages[0].Content.Text())
	assert.Equal(t, "hello", req.Messages[1].Content.Text())
	require.NotNil(t, req.Temperature)
	assert.InDelta(t, 0.5, *req.Temperature, 1e-9)
	require.NotNil(t, req.MaxTokens)
	assert.Equal(t, int64(128), *req.MaxTokens)
	assert.Equal(t, []string{"END"}, req.Stop.Sequences())
	assert.True(t, req.Stream)
}

func TestNormalizeFinishReason(t *testing.T) {
	tests := []struct {
		reason string
		want   FinishReason
	}{
		{"stop", FinishReasonStop},
		{"end_turn", FinishReasonStop},
		{"stop_sequence", FinishReasonStop},
		{"COMPLETE", FinishReasonStop},
		{"max_tokens", FinishReasonLength},
		{"length", FinishReasonLength},
		{"tool_use", FinishReasonToolCalls},
		{"tool_calls", FinishReasonToolCalls},
		{"content_filter", FinishReason("content_filter")},
		{"SAFETY", FinishReason("SAFETY")},
	}

	for _, tt := range tests {
		t.Run(tt.reason, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeFinishReason(tt.reason))
		})
	}
}

func TestErrorResponse_Shape(t *testing.T) {
	out, err := json.Marshal(ErrorResponse{Error: Error{
		Message: "Missing 'model' field",
		Type:    ErrorTypeInvalidRequest,
		Code:    "400",
	}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"error":{"message":"Missing 'model' field","type":"invalid_request_error","code":"400"}}`, string(out))
}

func TestChatCompletionChunk_TerminalShape(t *testing.T) {
	chunk := ChatCompletionChunk{
		ID:      "chatcmpl-1",
		Object:  ObjectChatCompletionChunk,
		Created: 1700000000,
		Model:   "m",
		Choices: []ChatCompletionChunkChoice{{
			Delta:        ChunkDelta{},
			FinishReason: FinishReasonStop,
		}},
		Usage: &Usage{PromptTokens: 1, CompletionTokens: 2, TotalTokens: 3},
	}
	out, err := json.Marshal(chunk)
	require.NoError(t, err)

	var decoded ChatCompletionChunk
	require.NoError(t, json.Unmarshal(out, &decoded))
	require.Len(t, decoded.Choices, 1)
	assert.Equal(t, FinishReasonStop, decoded.Choices[0].FinishReason)
	require.NotNil(t, decoded.Usage)
	assert.Equal(t, 3, decoded.Usage.TotalTokens)
}
