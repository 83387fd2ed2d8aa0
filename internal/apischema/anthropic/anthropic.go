// Copyright ModelGate Authors
// SPDX-License-Identifier: Apache-2.0
// The full text of the Apache license is available in the LICENSE file at
// the root of the repo.

// Package anthropic holds the subset of the Anthropic Messages API schema
// the gateway speaks when dispatching to Claude backends.
package anthropic

import (
	"errors"
	"fmt"

	"github.com/tidwall/gjson"

	"github.com/modelgate/modelgate/internal/json"
)

// Version is the anthropic-version header value sent on every request.
const Version = "2023-06-01"

// Beta header values. BetaMaxTokens35Sonnet replaces the default when the
// upstream model is a claude-3-5-sonnet variant.
const (
	BetaMessages          = "messages-2023-12-15"
	BetaMaxTokens35Sonnet = "max-tokens-3-5-sonnet-2024-07-15"
)

// DefaultMaxTokens is used when the client omits max_tokens; the Messages
// API rejects requests without it.
const DefaultMaxTokens = 4096

// MessagesRequest represents a request to the Anthropic Messages API.
// https://docs.anthropic.com/en/api/messages
type MessagesRequest struct {
	Model string `json:"model"`

	// MaxTokens is mandatory on the Messages API.
	MaxTokens int64 `json:"max_tokens"`

	Messages []MessageParam `json:"messages"`

	// System is the system prompt, extracted from OpenAI "system" messages.
	System string `json:"system,omitempty"`

	StopSequences []string `json:"stop_sequences,omitempty"`

	Stream bool `json:"stream"`

	Temperature *float64 `json:"temperature,omitempty"`
	TopP        *float64 `json:"top_p,omitempty"`
	TopK        *int     `json:"top_k,omitempty"`

	Tools      []Tool      `json:"tools,omitempty"`
	ToolChoice *ToolChoice `json:"tool_choice,omitempty"`
}

// MessageParam is a single conversation turn. Roles are "user" or
// "assistant"; system content travels in MessagesRequest.System.
type MessageParam struct {
	Role    string         `json:"role"`
	Content []ContentBlock `json:"content"`
}

// ContentBlock is one typed part of a request message. Exactly one of the
// optional fields is set according to Type.
type ContentBlock struct {
	Type   string       `json:"type"` // "text" or "image".
	Text   string       `json:"text,omitempty"`
	Source *ImageSource `json:"source,omitempty"`
}

// ImageSource locates the image content of an image block.
type ImageSource struct {
	Type string `json:"type"` // Always "url".
	URL  string `json:"url"`
}

// Tool is a custom tool declaration.
// https://docs.anthropic.com/en/api/messages#body-tools
type Tool struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	InputSchema ToolInputSchema `json:"input_schema"`
}

// ToolInputSchema is the JSON-schema shape of a tool's input.
type ToolInputSchema struct {
	Type       string         `json:"type"` // Always "object".
	Properties map[string]any `json:"properties,omitempty"`
	Required   []string       `json:"required,omitempty"`
}

// ToolChoice indicates how the model may use tools.
type ToolChoice struct {
	Type string `json:"type"` // "auto".
}

// MessagesResponse represents a unary response from the Messages API.
// https://docs.anthropic.com/en/api/messages
type MessagesResponse struct {
	ID    string `json:"id"`
	Type  string `json:"type"` // Always "message".
	Role  string `json:"role"` // Always "assistant".
	Model string `json:"model"`

	Content []ResponseContentBlock `json:"content"`

	// StopReason is one of "end_turn", "max_tokens", "stop_sequence",
	// "tool_use", or absent while streaming.
	StopReason   string  `json:"stop_reason,omitempty"`
	StopSequence *string `json:"stop_sequence,omitempty"`

	Usage *Usage `json:"usage,omitempty"`
}

type (
	// ResponseContentBlock is one typed block of response content.
	ResponseContentBlock struct {
		Text    *TextBlock
		ToolUse *ToolUseBlock
	}

	// TextBlock is a text response block.
	TextBlock struct {
		Type string `json:"type"` // Always "text".
		Text string `json:"text"`
	}

	// ToolUseBlock is a tool invocation requested by the model.
	ToolUseBlock struct {
		Type  string         `json:"type"` // Always "tool_use".
		ID    string         `json:"id"`
		Name  string         `json:"name"`
		Input map[string]any `json:"input"`
	}
)

func (b *ResponseContentBlock) UnmarshalJSON(data []byte) error {
	typ := gjson.GetBytes(data, "type")
	if !typ.Exists() {
		return errors.New("missing type field in response content block")
	}
	switch typ.String() {
	case "text":
		var block TextBlock
		if err := json.Unmarshal(data, &block); err != nil {
			return fmt.Errorf("failed to unmarshal text block: %w", err)
		}
		b.Text = &block
	case "tool_use":
		var block ToolUseBlock
		if err := json.Unmarshal(data, &block); err != nil {
			return fmt.Errorf("failed to unmarshal tool use block: %w", err)
		}
		b.ToolUse = &block
	default:
		// Ignore unknown block types for forward compatibility.
		return nil
	}
	return nil
}

func (b ResponseContentBlock) MarshalJSON() ([]byte, error) {
	if b.Text != nil {
		return json.Marshal(b.Text)
	}
	if b.ToolUse != nil {
		return json.Marshal(b.ToolUse)
	}
	return nil, errors.New("response content block must have a defined type")
}

// Usage reports token accounting.
//
// The API declares these as numbers without an integer constraint, so
// float64 accepts both 1234 and 1234.0.
type Usage struct {
	InputTokens  float64 `json:"input_tokens"`
	OutputTokens float64 `json:"output_tokens"`
}

// Streaming event types.
// https://docs.anthropic.com/en/docs/build-with-claude/streaming
const (
	StreamEventMessageStart      = "message_start"
	StreamEventContentBlockStart = "content_block_start"
	StreamEventContentBlockDelta = "content_block_delta"
	StreamEventContentBlockStop  = "content_block_stop"
	StreamEventMessageDelta      = "message_delta"
	StreamEventMessageStop       = "message_stop"
	StreamEventPing              = "ping"
)

// StreamEvent is one SSE frame of a streaming Messages response. Only the
// sections matching Type are populated.
type StreamEvent struct {
	Type string `json:"type"`

	// Message is present on "message_start".
	Message *MessagesResponse `json:"message,omitempty"`

	// Index and Delta are present on "content_block_delta".
	Index int          `json:"index,omitempty"`
	Delta *StreamDelta `json:"delta,omitempty"`

	// Usage is present on "message_delta" and is cumulative.
	Usage *Usage `json:"usage,omitempty"`
}

// StreamDelta carries the incremental payload of a delta event. On
// content_block_delta it is a text fragment; on message_delta it carries
// the stop reason.
type StreamDelta struct {
	Type        string `json:"type,omitempty"`
	Text        string `json:"text,omitempty"`
	PartialJSON string `json:"partial_json,omitempty"`

	StopReason   string  `json:"stop_reason,omitempty"`
	StopSequence *string `json:"stop_sequence,omitempty"`
}

// ErrorResponse is the Messages API error envelope.
// https://docs.anthropic.com/en/api/errors
type ErrorResponse struct {
	Type  string      `json:"type"` // Always "error".
	Error ErrorDetail `json:"error"`
}

// ErrorDetail names the failure class and its human-readable message.
type ErrorDetail struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}
