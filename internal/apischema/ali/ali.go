// Copyright ModelGate Authors
// SPDX-License-Identifier: Apache-2.0
// The full text of the Apache license is available in the LICENSE file at
// the root of the repo.

// Package ali holds the Alibaba DashScope text-generation API schema,
// shared by Qwen and the Bailian application endpoints.
package ali

import "github.com/modelgate/modelgate/internal/apischema/openai"

// GenerationRequest represents a request to the DashScope
// text-generation endpoint.
// https://help.aliyun.com/zh/dashscope/developer-reference/api-details
type GenerationRequest struct {
	Model      string     `json:"model"`
	Input      Input      `json:"input"`
	Parameters Parameters `json:"parameters"`
}

// Input wraps the conversation.
type Input struct {
	Messages []Message `json:"messages"`
}

// Message is one conversation turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Parameters carries sampling controls. ResultFormat is pinned to
// "message" so the output always arrives as chat choices.
type Parameters struct {
	ResultFormat string `json:"result_format"`

	// Temperature must stay strictly below 2.0 on DashScope.
	Temperature *float64 `json:"temperature,omitempty"`
	TopP        *float64 `json:"top_p,omitempty"`
	TopK        *int     `json:"top_k,omitempty"`
	MaxTokens   *int64   `json:"max_tokens,omitempty"`
	Seed        *int64   `json:"seed,omitempty"`

	// IncrementalOutput requests delta frames when streaming.
	IncrementalOutput bool `json:"incremental_output"`

	EnableSearch bool `json:"enable_search"`

	// Tools reuses the OpenAI tool declaration verbatim; DashScope accepts
	// the same {type, function} shape.
	Tools []openai.Tool `json:"tools,omitempty"`
}

// GenerationResponse is both the unary envelope and the SSE frame shape.
// A non-empty Code signals a vendor error.
type GenerationResponse struct {
	RequestID string  `json:"request_id,omitempty"`
	Code      string  `json:"code,omitempty"`
	Message   string  `json:"message,omitempty"`
	Output    *Output `json:"output,omitempty"`
	Usage     *Usage  `json:"usage,omitempty"`
}

// Output wraps the generated choices (result_format "message").
type Output struct {
	Choices []Choice `json:"choices"`

	// Text is set instead of choices by older result formats and by some
	// Bailian applications.
	Text string `json:"text,omitempty"`
}

// Choice is one generated alternative.
type Choice struct {
	Message      Message `json:"message"`
	FinishReason string  `json:"finish_reason,omitempty"`
}

// Usage is the token accounting block. DashScope reports input/output
// rather than prompt/completion.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
	TotalTokens  int `json:"total_tokens,omitempty"`
}
