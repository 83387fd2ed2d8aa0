// Copyright ModelGate Authors
// SPDX-License-Identifier: Apache-2.0
// The full text of the Apache license is available in the LICENSE file at
// the root of the repo.

// Package cohere holds the Cohere v1 chat API schema.
package cohere

// Chat history roles. Cohere uses its own capitalised role names.
const (
	RoleUser    = "USER"
	RoleChatbot = "CHATBOT"
	RoleSystem  = "SYSTEM"
)

// ChatRequest represents a request to the v1 chat endpoint.
// https://docs.cohere.com/reference/chat
type ChatRequest struct {
	Model string `json:"model"`

	// Message is the latest user turn; earlier turns go to ChatHistory.
	Message     string        `json:"message"`
	ChatHistory []ChatMessage `json:"chat_history,omitempty"`
	Preamble    string        `json:"preamble,omitempty"`

	Temperature      *float64 `json:"temperature,omitempty"`
	P                *float64 `json:"p,omitempty"`
	K                *int     `json:"k,omitempty"`
	MaxTokens        *int64   `json:"max_tokens,omitempty"`
	FrequencyPenalty *float64 `json:"frequency_penalty,omitempty"`
	PresencePenalty  *float64 `json:"presence_penalty,omitempty"`

	Stream bool `json:"stream"`

	// Connectors enables retrieval plugins; {"id": "web-search"} turns on
	// grounded web search for -internet model aliases.
	Connectors []Connector `json:"connectors,omitempty"`
}

// ChatMessage is one prior conversation turn.
type ChatMessage struct {
	Role    string `json:"role"`
	Message string `json:"message"`
}

// Connector names a retrieval plugin.
type Connector struct {
	ID string `json:"id"`
}

// ChatResponse is the non-streaming envelope.
type ChatResponse struct {
	ResponseID   string `json:"response_id,omitempty"`
	GenerationID string `json:"generation_id,omitempty"`
	Text         string `json:"text"`
	FinishReason string `json:"finish_reason,omitempty"`
	Meta         *Meta  `json:"meta,omitempty"`

	// Message is set on API errors alongside a non-2xx status.
	Message string `json:"message,omitempty"`
}

// Meta carries billing and token accounting.
type Meta struct {
	Tokens *Tokens `json:"tokens,omitempty"`
}

// Tokens is the token accounting block.
type Tokens struct {
	InputTokens  float64 `json:"input_tokens"`
	OutputTokens float64 `json:"output_tokens"`
}

// Stream event types. Each stream frame is a JSON object tagged with
// event_type. https://docs.cohere.com/reference/chat (stream=true)
const (
	StreamEventStreamStart    = "stream-start"
	StreamEventTextGeneration = "text-generation"
	StreamEventStreamEnd      = "stream-end"
)

// StreamEvent is one stream frame.
type StreamEvent struct {
	EventType string `json:"event_type"`

	// Text is set on text-generation events.
	Text string `json:"text,omitempty"`

	// FinishReason and Response are set on stream-end.
	FinishReason string        `json:"finish_reason,omitempty"`
	Response     *ChatResponse `json:"response,omitempty"`
}
