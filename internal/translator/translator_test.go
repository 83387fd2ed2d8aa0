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
	"github.com/modelgate/modelgate/internal/modelconfig"
)

func TestNew(t *testing.T) {
	binding := &modelconfig.Binding{ID: "m", Model: "m", APIKey: "k"}

	formats := []string{
		"anthropic", "gemini", "zhipu", "baidu", "ali", "alibailian",
		"tencent", "cohere", "coze", "deepl", "moonshot", "minimax", "doubao",
	}
	for _, format := range formats {
		t.Run(format, func(t *testing.T) {
			tr, err := New(format, binding)
			require.NoError(t, err)
			require.NotNil(t, tr)
		})
	}

	t.Run("case insensitive", func(t *testing.T) {
		tr, err := New("Anthropic", binding)
		require.NoError(t, err)
		require.NotNil(t, tr)
	})

	t.Run("unknown format", func(t *testing.T) {
		_, err := New("smalltalk", binding)
		require.ErrorContains(t, err, `unknown request format "smalltalk"`)
	})
}

func TestSupportsStreaming(t *testing.T) {
	for _, format := range []string{"zhipu", "coze", "deepl", "Zhipu"} {
		assert.False(t, SupportsStreaming(format), format)
	}
	for _, format := range []string{"anthropic", "gemini", "baidu", "ali", "tencent", "cohere", "moonshot"} {
		assert.True(t, SupportsStreaming(format), format)
	}
}

func TestUpstreamError_Error(t *testing.T) {
	withCode := &UpstreamError{Vendor: "zhipu", Code: "1002", Message: "invalid token"}
	assert.Equal(t, "zhipu error 1002: invalid token", withCode.Error())

	withoutCode := &UpstreamError{Vendor: "deepl", Message: "quota exceeded"}
	assert.Equal(t, "deepl error: quota exceeded", withoutCode.Error())
}

func TestJoinPath(t *testing.T) {
	assert.Equal(t, "https://api.example.com/v1/chat", joinPath("https://api.example.com/", "/v1/chat"))
	assert.Equal(t, "https://api.example.com/v1/chat", joinPath("https://api.example.com", "v1/chat"))
}

func TestResolveEndpoint(t *testing.T) {
	assert.Equal(t, "/v1/messages", resolveEndpoint("", "/v1/messages", "claude-3"))
	assert.Equal(t, "/api/glm-4/invoke", resolveEndpoint("/api/{model}/invoke", "/fallback", "glm-4"))
}

func TestSplitSystem(t *testing.T) {
	system, rest := splitSystem([]openai.Message{
		{Role: openai.MessageRoleSystem, Content: openai.MessageContent{Value: "be terse"}},
		{Role: openai.MessageRoleUser, Content: openai.MessageContent{Value: "hi"}},
		{Role: openai.MessageRoleSystem, Content: openai.MessageContent{Value: "in English"}},
		{Role: openai.MessageRoleAssistant, Content: openai.MessageContent{Value: "hello"}},
	})
	assert.Equal(t, "be terse\nin English", system)
	require.Len(t, rest, 2)
	assert.Equal(t, openai.MessageRoleUser, rest[0].Role)
	assert.Equal(t, openai.MessageRoleAssistant, rest[1].Role)
}

func TestLastUserText(t *testing.T) {
	messages := []openai.Message{
		{Role: openai.MessageRoleUser, Content: openai.MessageContent{Value: "first"}},
		{Role: openai.MessageRoleAssistant, Content: openai.MessageContent{Value: "reply"}},
		{Role: openai.MessageRoleUser, Content: openai.MessageContent{Parts: []openai.ContentPart{
			{Text: &openai.TextPart{Type: "text", Text: "second"}},
			{Text: &openai.TextPart{Type: "text", Text: "part"}},
		}}},
	}
	assert.Equal(t, "second part", lastUserText(messages))
	assert.Empty(t, lastUserText(nil))
}

func TestUsageFromTokens(t *testing.T) {
	derived := usageFromTokens(3, 4, 0)
	assert.Equal(t, 7, derived.TotalTokens)

	reported := usageFromTokens(3, 4, 9)
	assert.Equal(t, 9, reported.TotalTokens)
}
