// Copyright ModelGate Authors
// SPDX-License-Identifier: Apache-2.0
// The full text of the Apache license is available in the LICENSE file at
// the root of the repo.

package translator

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/modelgate/modelgate/internal/apischema/anthropic"
	"github.com/modelgate/modelgate/internal/apischema/openai"
	"github.com/modelgate/modelgate/internal/json"
	"github.com/modelgate/modelgate/internal/modelconfig"
)

// newAnthropicTranslator translates between the Anthropic Messages API and
// the OpenAI chat schema.
func newAnthropicTranslator(binding *modelconfig.Binding) *anthropicTranslator {
	return &anthropicTranslator{binding: binding}
}

type anthropicTranslator struct {
	binding *modelconfig.Binding
	stream  bool
	created int64

	// Stream bookkeeping, filled by message_start.
	id          string
	inputTokens int
}

// RequestBody implements [OpenAIChatTranslator.RequestBody].
func (a *anthropicTranslator) RequestBody(req *openai.ChatCompletionRequest) ([]byte, error) {
	a.stream = req.Stream
	a.created = time.Now().Unix()

	maxTokens := int64(anthropic.DefaultMaxTokens)
	if req.MaxTokens != nil {
		maxTokens = *req.MaxTokens
	}

	system, rest := splitSystem(req.Messages)
	messages := make([]anthropic.MessageParam, 0, len(rest))
	for i := range rest {
		messages = append(messages, anthropic.MessageParam{
			Role:    string(rest[i].Role),
			Content: anthropicContentBlocks(rest[i].Content),
		})
	}

	out := &anthropic.MessagesRequest{
		Model:       a.binding.Model,
		MaxTokens:   maxTokens,
		Stream:      req.Stream,
		System:      system,
		Messages:    messages,
		Temperature: req.Temperature,
		TopP:        req.TopP,
		TopK:        req.TopK,
	}
	if req.Stop != nil {
		out.StopSequences = req.Stop.Sequences()
	}
	if len(req.Tools) > 0 {
		tools := make([]anthropic.Tool, 0, len(req.Tools))
		for _, t := range req.Tools {
			schema := anthropic.ToolInputSchema{Type: "object"}
			if t.Function.Parameters != nil {
				if typ, ok := t.Function.Parameters["type"].(string); ok && typ != "" {
					schema.Type = typ
				}
				if props, ok := t.Function.Parameters["properties"].(map[string]any); ok {
					schema.Properties = props
				}
				if required, ok := t.Function.Parameters["required"].([]any); ok {
					for _, r := range required {
						if s, ok := r.(string); ok {
							schema.Required = append(schema.Required, s)
						}
					}
				}
			}
			tools = append(tools, anthropic.Tool{
				Name:        t.Function.Name,
				Description: t.Function.Description,
				InputSchema: schema,
			})
		}
		out.Tools = tools
		out.ToolChoice = &anthropic.ToolChoice{Type: "auto"}
	}

	body, err := json.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal anthropic request: %w", err)
	}
	return body, nil
}

// anthropicContentBlocks converts canonical message content into typed
// Anthropic blocks. String content becomes a single text block.
func anthropicContentBlocks(content openai.MessageContent) []anthropic.ContentBlock {
	if content.Parts == nil {
		return []anthropic.ContentBlock{{Type: "text", Text: content.Value}}
	}
	blocks := make([]anthropic.ContentBlock, 0, len(content.Parts))
	for _, p := range content.Parts {
		switch {
		case p.Text != nil:
			blocks = append(blocks, anthropic.ContentBlock{Type: "text", Text: p.Text.Text})
		case p.ImageURL != nil:
			blocks = append(blocks, anthropic.ContentBlock{
				Type:   "image",
				Source: &anthropic.ImageSource{Type: "url", URL: p.ImageURL.ImageURL.URL},
			})
		}
	}
	return blocks
}

// RequestPath implements [OpenAIChatTranslator.RequestPath].
func (a *anthropicTranslator) RequestPath(baseURL, endpoint string) (string, error) {
	return joinPath(baseURL, resolveEndpoint(endpoint, "/v1/messages", a.binding.Model)), nil
}

// RequestHeaders implements [OpenAIChatTranslator.RequestHeaders].
func (a *anthropicTranslator) RequestHeaders([]byte) (http.Header, error) {
	h := http.Header{}
	h.Set("Content-Type", "application/json")
	h.Set("x-api-key", a.binding.APIKey)
	h.Set("anthropic-version", anthropic.Version)
	beta := anthropic.BetaMessages
	if strings.Contains(a.binding.Model, "claude-3-5-sonnet") {
		beta = anthropic.BetaMaxTokens35Sonnet
	}
	h.Set("anthropic-beta", beta)
	return h, nil
}

// ResponseBody implements [OpenAIChatTranslator.ResponseBody].
func (a *anthropicTranslator) ResponseBody(body []byte) (*openai.ChatCompletionResponse, error) {
	if e := gjson.GetBytes(body, "error"); e.Exists() {
		var envelope anthropic.ErrorResponse
		if err := json.Unmarshal(body, &envelope); err != nil {
			return nil, fmt.Errorf("failed to unmarshal anthropic error: %w", err)
		}
		return nil, &UpstreamError{Vendor: "anthropic", Code: envelope.Error.Type, Message: envelope.Error.Message}
	}

	var resp anthropic.MessagesResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal anthropic response: %w", err)
	}

	var text strings.Builder
	var toolCalls []openai.ToolCall
	for i := range resp.Content {
		block := &resp.Content[i]
		switch {
		case block.Text != nil:
			text.WriteString(block.Text.Text)
		case block.ToolUse != nil:
			args, err := json.Marshal(block.ToolUse.Input)
			if err != nil {
				return nil, fmt.Errorf("failed to marshal tool_use input: %w", err)
			}
			toolCalls = append(toolCalls, openai.ToolCall{
				ID:   block.ToolUse.ID,
				Type: "function",
				Function: openai.ToolCallFunction{
					Name:      block.ToolUse.Name,
					Arguments: string(args),
				},
			})
		}
	}

	id := resp.ID
	if id == "" {
		id = "unknown"
	}
	out := &openai.ChatCompletionResponse{
		ID:     "chatcmpl-" + id,
		Object: openai.ObjectChatCompletion,
		Model:  a.binding.Model,
		Choices: []openai.ChatCompletionChoice{{
			Message: openai.ChatCompletionMessage{
				Role:      "assistant",
				Content:   text.String(),
				ToolCalls: toolCalls,
			},
			FinishReason: openai.NormalizeFinishReason(resp.StopReason),
		}},
	}
	if resp.Usage != nil {
		out.Usage = usageFromTokens(int(resp.Usage.InputTokens), int(resp.Usage.OutputTokens), 0)
	}
	return out, nil
}

// ResponseChunk implements [OpenAIChatTranslator.ResponseChunk] over the
// Messages API event stream.
func (a *anthropicTranslator) ResponseChunk(frame []byte) (*openai.ChatCompletionChunk, error) {
	var event anthropic.StreamEvent
	if err := json.Unmarshal(frame, &event); err != nil {
		return nil, fmt.Errorf("failed to unmarshal anthropic event: %w", err)
	}

	switch event.Type {
	case anthropic.StreamEventMessageStart:
		if event.Message != nil {
			a.id = event.Message.ID
			if event.Message.Usage != nil {
				a.inputTokens = int(event.Message.Usage.InputTokens)
			}
		}
		return a.newChunk(openai.ChunkDelta{Role: "assistant"}, "", nil), nil
	case anthropic.StreamEventContentBlockDelta:
		if event.Delta == nil || event.Delta.Text == "" {
			return nil, nil
		}
		return a.newChunk(openai.ChunkDelta{Content: event.Delta.Text}, "", nil), nil
	case anthropic.StreamEventMessageDelta:
		finish := openai.FinishReasonStop
		if event.Delta != nil && event.Delta.StopReason != "" {
			finish = openai.NormalizeFinishReason(event.Delta.StopReason)
		}
		var usage *openai.Usage
		if event.Usage != nil {
			usage = usageFromTokens(a.inputTokens, int(event.Usage.OutputTokens), 0)
		}
		return a.newChunk(openai.ChunkDelta{}, finish, usage), nil
	case "error":
		var envelope anthropic.ErrorResponse
		if err := json.Unmarshal(frame, &envelope); err != nil {
			return nil, fmt.Errorf("failed to unmarshal anthropic error event: %w", err)
		}
		return nil, &UpstreamError{Vendor: "anthropic", Code: envelope.Error.Type, Message: envelope.Error.Message}
	default:
		// content_block_start, content_block_stop, message_stop, ping.
		return nil, nil
	}
}

func (a *anthropicTranslator) newChunk(delta openai.ChunkDelta, finish openai.FinishReason, usage *openai.Usage) *openai.ChatCompletionChunk {
	id := a.id
	if id == "" {
		id = "chatcmpl-" + strconv.FormatInt(a.created, 10)
	}
	return &openai.ChatCompletionChunk{
		ID:      id,
		Object:  openai.ObjectChatCompletionChunk,
		Created: a.created,
		Model:   a.binding.Model,
		Choices: []openai.ChatCompletionChunkChoice{{
			Delta:        delta,
			FinishReason: finish,
		}},
		Usage: usage,
	}
}
