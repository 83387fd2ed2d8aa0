// Copyright ModelGate Authors
// SPDX-License-Identifier: Apache-2.0
// The full text of the Apache license is available in the LICENSE file at
// the root of the repo.

// Package tencent holds the Tencent Hunyuan ChatCompletions API schema.
// The cloud API uses PascalCase field names on the wire.
package tencent

// Action and service constants used both in the request path and in the
// TC3-HMAC-SHA256 signature.
const (
	ActionChatCompletions = "ChatCompletions"
	Service               = "hunyuan"
	APIVersion            = "2023-09-01"
)

// ChatCompletionsRequest represents a request to the ChatCompletions
// action. https://cloud.tencent.com/document/api/1729/105701
type ChatCompletionsRequest struct {
	Model    string    `json:"Model"`
	Messages []Message `json:"Messages"`

	Temperature *float64 `json:"Temperature,omitempty"`
	TopP        *float64 `json:"TopP,omitempty"`

	Stream bool `json:"Stream"`
}

// Message is one conversation turn.
type Message struct {
	Role    string `json:"Role"`
	Content string `json:"Content"`
}

// ResponseEnvelope is the unary wrapper; the payload sits under
// "Response". SSE frames skip the wrapper and carry ChatCompletionsResponse
// directly.
type ResponseEnvelope struct {
	Response ChatCompletionsResponse `json:"Response"`
}

// ChatCompletionsResponse is the response payload shared by unary
// envelopes and stream frames.
type ChatCompletionsResponse struct {
	Error *Error `json:"Error,omitempty"`

	ID        string `json:"Id,omitempty"`
	RequestID string `json:"RequestId,omitempty"`
	Created   int64  `json:"Created,omitempty"`

	Choices []Choice `json:"Choices,omitempty"`
	Usage   *Usage   `json:"Usage,omitempty"`
}

// Error is the cloud API error block.
type Error struct {
	Code    string `json:"Code"`
	Message string `json:"Message"`
}

// Choice is one generated alternative. Unary responses fill Message;
// stream frames fill Delta.
type Choice struct {
	Message      *Message `json:"Message,omitempty"`
	Delta        *Message `json:"Delta,omitempty"`
	FinishReason string   `json:"FinishReason,omitempty"`
}

// Usage is the token accounting block.
type Usage struct {
	PromptTokens     int `json:"PromptTokens"`
	CompletionTokens int `json:"CompletionTokens"`
	TotalTokens      int `json:"TotalTokens"`
}
