// Copyright ModelGate Authors
// SPDX-License-Identifier: Apache-2.0
// The full text of the Apache license is available in the LICENSE file at
// the root of the repo.

// Package openai holds the OpenAI-compatible chat completion wire schema
// that every vendor protocol is translated to and from.
package openai

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/modelgate/modelgate/internal/json"
)

// ChatCompletionRequest represents a request to the /v1/chat/completions endpoint.
// https://platform.openai.com/docs/api-reference/chat/create
type ChatCompletionRequest struct {
	// Model is the model binding id to route the request to.
	Model string `json:"model"`

	// Messages is the conversation so far.
	// https://platform.openai.com/docs/api-reference/chat/create#chat-create-messages
	Messages []Message `json:"messages"`

	// Temperature controls the randomness of the output.
	Temperature *float64 `json:"temperature,omitempty"`

	// TopP is the cumulative probability for nucleus sampling.
	TopP *float64 `json:"top_p,omitempty"`

	// TopK is the top-k sampling cutoff. Not part of the upstream OpenAI API
	// but accepted here because several vendors (DashScope, Gemini) take it.
	TopK *int `json:"top_k,omitempty"`

	// MaxTokens is the maximum number of tokens to generate.
	MaxTokens *int64 `json:"max_tokens,omitempty"`

	FrequencyPenalty *float64 `json:"frequency_penalty,omitempty"`
	PresencePenalty  *float64 `json:"presence_penalty,omitempty"`

	// Stop is up to four sequences where generation halts: a single string
	// or a list of strings.
	Stop *StopSequences `json:"stop,omitempty"`

	// Seed requests deterministic sampling where the vendor supports it.
	Seed *int64 `json:"seed,omitempty"`

	// User is an opaque end-user identifier for abuse tracking.
	User *string `json:"user,omitempty"`

	// Tools is the list of tools (functions) the model may call.
	Tools []Tool `json:"tools,omitempty"`

	// Stream selects SSE streaming delivery.
	Stream bool `json:"stream,omitempty"`
}

// Message is a single conversation turn.
// https://platform.openai.com/docs/api-reference/chat/create#chat-create-messages
type Message struct {
	// Role is one of "system", "user", "assistant" or "tool".
	Role MessageRole `json:"role"`

	// Content is the message content: a plain string or an array of typed parts.
	Content MessageContent `json:"content"`

	// Name optionally disambiguates participants sharing a role.
	Name string `json:"name,omitempty"`
}

// MessageRole represents the author of a message.
type MessageRole string

const (
	MessageRoleSystem    MessageRole = "system"
	MessageRoleUser      MessageRole = "user"
	MessageRoleAssistant MessageRole = "assistant"
	MessageRoleTool      MessageRole = "tool"
)

// MessageContent represents message content, which on the wire is either a
// JSON string or an array of content parts.
type MessageContent struct {
	Value string        // Non-empty if this is plain string content.
	Parts []ContentPart // Non-nil if this is array content.
}

func (m *MessageContent) UnmarshalJSON(data []byte) error {
	// Try to unmarshal as string first.
	var text string
	if err := json.Unmarshal(data, &text); err == nil {
		m.Value = text
		return nil
	}

	// Try to unmarshal as an array of parts.
	var parts []ContentPart
	if err := json.Unmarshal(data, &parts); err == nil {
		m.Parts = parts
		return nil
	}
	return errors.New("message content must be either a string or an array of parts")
}

func (m MessageContent) MarshalJSON() ([]byte, error) {
	if m.Parts != nil {
		return json.Marshal(m.Parts)
	}
	return json.Marshal(m.Value)
}

// Text flattens the content to plain text: string content is returned
// verbatim, array content becomes its text parts joined with a single
// space. Non-text parts are dropped.
func (m MessageContent) Text() string {
	if m.Parts == nil {
		return m.Value
	}
	texts := make([]string, 0, len(m.Parts))
	for _, p := range m.Parts {
		if p.Text != nil {
			texts = append(texts, p.Text.Text)
		}
	}
	return strings.Join(texts, " ")
}

type (
	// ContentPart represents an element of array message content.
	ContentPart struct {
		Text     *TextPart
		ImageURL *ImageURLPart
	}

	// TextPart is a text content part.
	TextPart struct {
		Type string `json:"type"` // Always "text".
		Text string `json:"text"`
	}

	// ImageURLPart is an image content part referencing a URL or data URI.
	ImageURLPart struct {
		Type     string   `json:"type"` // Always "image_url".
		ImageURL ImageURL `json:"image_url"`
	}

	// ImageURL is the image reference inside an ImageURLPart.
	ImageURL struct {
		URL    string `json:"url"`
		Detail string `json:"detail,omitempty"`
	}
)

func (p *ContentPart) UnmarshalJSON(data []byte) error {
	typ := gjson.GetBytes(data, "type")
	if !typ.Exists() {
		return errors.New("missing type field in content part")
	}
	switch typ.String() {
	case "text":
		var part TextPart
		if err := json.Unmarshal(data, &part); err != nil {
			return fmt.Errorf("failed to unmarshal text part: %w", err)
		}
		p.Text = &part
	case "image_url":
		var part ImageURLPart
		if err := json.Unmarshal(data, &part); err != nil {
			return fmt.Errorf("failed to unmarshal image part: %w", err)
		}
		p.ImageURL = &part
	default:
		// Ignore unknown part types for forward compatibility.
		return nil
	}
	return nil
}

func (p ContentPart) MarshalJSON() ([]byte, error) {
	if p.Text != nil {
		return json.Marshal(p.Text)
	}
	if p.ImageURL != nil {
		return json.Marshal(p.ImageURL)
	}
	return nil, errors.New("content part must have a defined type")
}

// StopSequences represents the "stop" union: a single string or a list of
// strings.
type StopSequences struct {
	Value  string   // Set if this is a single sequence.
	Values []string // Set if this is a list of sequences.
}

func (s *StopSequences) UnmarshalJSON(data []byte) error {
	v, err := unmarshalJSONStringOrStrings("stop", data)
	if err != nil {
		return err
	}
	switch v := v.(type) {
	case string:
		s.Value = v
	case []string:
		s.Values = v
	}
	return nil
}

func (s StopSequences) MarshalJSON() ([]byte, error) {
	if s.Values != nil {
		return json.Marshal(s.Values)
	}
	return json.Marshal(s.Value)
}

// Sequences returns the stop sequences as a slice regardless of which wire
// form was used.
func (s *StopSequences) Sequences() []string {
	if s == nil {
		return nil
	}
	if s.Values != nil {
		return s.Values
	}
	if s.Value != "" {
		return []string{s.Value}
	}
	return nil
}

type (
	// Tool describes a tool the model may call. Only functions exist today.
	// https://platform.openai.com/docs/api-reference/chat/create#chat-create-tools
	Tool struct {
		Type     string       `json:"type"` // Always "function".
		Function ToolFunction `json:"function"`
	}

	// ToolFunction is the function declaration inside a Tool.
	ToolFunction struct {
		Name        string         `json:"name"`
		Description string         `json:"description,omitempty"`
		Parameters  map[string]any `json:"parameters,omitempty"`
	}

	// ToolCall is a function invocation requested by the model.
	ToolCall struct {
		ID       string           `json:"id"`
		Type     string           `json:"type"` // Always "function".
		Function ToolCallFunction `json:"function"`
	}

	// ToolCallFunction carries the function name and its JSON-encoded arguments.
	ToolCallFunction struct {
		Name      string `json:"name"`
		Arguments string `json:"arguments"`
	}
)

// Object type discriminators used in responses.
const (
	ObjectChatCompletion      = "chat.completion"
	ObjectChatCompletionChunk = "chat.completion.chunk"
	ObjectModel               = "model"
	ObjectList                = "list"
)

// ChatCompletionResponse represents a unary response from the
// /v1/chat/completions endpoint.
// https://platform.openai.com/docs/api-reference/chat/object
type ChatCompletionResponse struct {
	ID      string `json:"id"`
	Object  string `json:"object"` // Always "chat.completion".
	Created int64  `json:"created"`
	Model   string `json:"model"`

	Choices []ChatCompletionChoice `json:"choices"`

	// Usage is omitted when the vendor reports no token accounting.
	Usage *Usage `json:"usage,omitempty"`
}

// ChatCompletionChoice is one completion alternative in a unary response.
type ChatCompletionChoice struct {
	Index        int                   `json:"index"`
	Message      ChatCompletionMessage `json:"message"`
	FinishReason FinishReason          `json:"finish_reason"`
}

// ChatCompletionMessage is the assistant message inside a choice.
type ChatCompletionMessage struct {
	Role      string     `json:"role"`
	Content   string     `json:"content"`
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
}

// ChatCompletionChunk represents one SSE frame of a streamed response.
// https://platform.openai.com/docs/api-reference/chat/streaming
type ChatCompletionChunk struct {
	ID      string `json:"id"`
	Object  string `json:"object"` // Always "chat.completion.chunk".
	Created int64  `json:"created"`
	Model   string `json:"model"`

	Choices []ChatCompletionChunkChoice `json:"choices"`

	// Usage appears on at most one frame, by convention the terminal one.
	Usage *Usage `json:"usage,omitempty"`
}

// ChatCompletionChunkChoice is one choice delta in a streamed frame. A
// non-empty FinishReason marks the stream's terminal chunk.
type ChatCompletionChunkChoice struct {
	Index        int          `json:"index"`
	Delta        ChunkDelta   `json:"delta"`
	FinishReason FinishReason `json:"finish_reason,omitempty"`
}

// ChunkDelta is the incremental message fragment inside a chunk choice.
type ChunkDelta struct {
	Role      string     `json:"role,omitempty"`
	Content   string     `json:"content,omitempty"`
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
}

// Usage reports token accounting for a completion.
// https://platform.openai.com/docs/api-reference/chat/object#chat/object-usage
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// FinishReason is the canonical reason a completion stopped.
type FinishReason string

const (
	FinishReasonStop      FinishReason = "stop"
	FinishReasonLength    FinishReason = "length"
	FinishReasonToolCalls FinishReason = "tool_calls"
	// FinishReasonError marks the synthetic terminal chunk emitted when a
	// stream fails mid-flight.
	FinishReasonError FinishReason = "error"
)

// NormalizeFinishReason maps a vendor stop reason onto the canonical set.
// Unknown reasons pass through verbatim so nothing is silently lost.
func NormalizeFinishReason(reason string) FinishReason {
	switch reason {
	case "end_turn", "stop_sequence", "COMPLETE", "stop":
		return FinishReasonStop
	case "max_tokens", "length":
		return FinishReasonLength
	case "tool_use", "tool_calls":
		return FinishReasonToolCalls
	default:
		return FinishReason(reason)
	}
}

// Error type discriminators in the error envelope.
const (
	ErrorTypeInvalidRequest = "invalid_request_error"
	ErrorTypeServer         = "server_error"
)

// Error is the error payload inside an ErrorResponse.
type Error struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    string `json:"code"`
}

// ErrorResponse is the OpenAI-style error envelope returned for every
// failure, with Code carrying the HTTP status as a string.
type ErrorResponse struct {
	Error Error `json:"error"`
}

// Model is one entry in the /v1/models listing.
// https://platform.openai.com/docs/api-reference/models/object
type Model struct {
	ID      string `json:"id"`
	Object  string `json:"object"` // Always "model".
	Created int64  `json:"created"`
	OwnedBy string `json:"owned_by"`
}

// ModelList is the /v1/models response.
type ModelList struct {
	Object string  `json:"object"` // Always "list".
	Data   []Model `json:"data"`
}
