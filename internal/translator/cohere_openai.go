// Copyright ModelGate Authors
// SPDX-License-Identifier: Apache-2.0
// The full text of the Apache license is available in the LICENSE file at
// the root of the repo.

package translator

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/modelgate/modelgate/internal/apischema/cohere"
	"github.com/modelgate/modelgate/internal/apischema/openai"
	"github.com/modelgate/modelgate/internal/json"
	"github.com/modelgate/modelgate/internal/modelconfig"
)

// newCohereTranslator translates between the Cohere v1 chat API and the
// OpenAI chat schema.
func newCohereTranslator(binding *modelconfig.Binding) *cohereTranslator {
	return &cohereTranslator{binding: binding}
}

type cohereTranslator struct {
	binding *modelconfig.Binding
	stream  bool
	created int64
	id      string
}

// RequestBody implements [OpenAIChatTranslator.RequestBody]. The newest user
// turn becomes the prompt; every other turn becomes chat history in order.
func (c *cohereTranslator) RequestBody(req *openai.ChatCompletionRequest) ([]byte, error) {
	c.stream = req.Stream
	c.created = time.Now().Unix()
	c.id = newCompletionID()

	last := lastUserIndex(req.Messages)
	var message string
	var history []cohere.ChatMessage
	for i := range req.Messages {
		m := &req.Messages[i]
		text := m.Content.Text()
		if i == last {
			message = text
			continue
		}
		role := cohere.RoleUser
		switch m.Role {
		case openai.MessageRoleAssistant:
			role = cohere.RoleChatbot
		case openai.MessageRoleSystem:
			role = cohere.RoleSystem
		}
		history = append(history, cohere.ChatMessage{Role: role, Message: text})
	}

	model := c.binding.Model
	var connectors []cohere.Connector
	if strings.HasSuffix(model, "-internet") {
		model = strings.TrimSuffix(model, "-internet")
		connectors = []cohere.Connector{{ID: "web-search"}}
	}

	out := &cohere.ChatRequest{
		Model:            model,
		Message:          message,
		ChatHistory:      history,
		Stream:           req.Stream,
		Connectors:       connectors,
		Temperature:      req.Temperature,
		MaxTokens:        req.MaxTokens,
		P:                req.TopP,
		FrequencyPenalty: req.FrequencyPenalty,
		PresencePenalty:  req.PresencePenalty,
	}
	body, err := json.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal cohere request: %w", err)
	}
	return body, nil
}

// RequestPath implements [OpenAIChatTranslator.RequestPath].
func (c *cohereTranslator) RequestPath(baseURL, endpoint string) (string, error) {
	return joinPath(baseURL, resolveEndpoint(endpoint, "/v1/chat", c.binding.Model)), nil
}

// RequestHeaders implements [OpenAIChatTranslator.RequestHeaders].
func (c *cohereTranslator) RequestHeaders([]byte) (http.Header, error) {
	h := http.Header{}
	h.Set("Content-Type", "application/json")
	h.Set("Authorization", "Bearer "+c.binding.APIKey)
	return h, nil
}

// ResponseBody implements [OpenAIChatTranslator.ResponseBody].
func (c *cohereTranslator) ResponseBody(body []byte) (*openai.ChatCompletionResponse, error) {
	var resp cohere.ChatResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cohere response: %w", err)
	}
	// Errors carry a bare message without a response id.
	if resp.Message != "" && resp.ResponseID == "" {
		return nil, &UpstreamError{Vendor: "cohere", Message: resp.Message}
	}

	id := resp.ResponseID
	if id == "" {
		id = "unknown"
	}
	out := &openai.ChatCompletionResponse{
		ID:     "chatcmpl-" + id,
		Object: openai.ObjectChatCompletion,
		Model:  c.binding.Model,
		Choices: []openai.ChatCompletionChoice{{
			Message: openai.ChatCompletionMessage{
				Role:    "assistant",
				Content: resp.Text,
			},
			FinishReason: openai.NormalizeFinishReason(resp.FinishReason),
		}},
	}
	if resp.Meta != nil && resp.Meta.Tokens != nil {
		out.Usage = usageFromTokens(int(resp.Meta.Tokens.InputTokens), int(resp.Meta.Tokens.OutputTokens), 0)
	}
	return out, nil
}

// ResponseChunk implements [OpenAIChatTranslator.ResponseChunk] over the
// event_type-tagged stream frames.
func (c *cohereTranslator) ResponseChunk(frame []byte) (*openai.ChatCompletionChunk, error) {
	var event cohere.StreamEvent
	if err := json.Unmarshal(frame, &event); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cohere event: %w", err)
	}

	switch event.EventType {
	case cohere.StreamEventTextGeneration:
		return c.newChunk(openai.ChunkDelta{Content: event.Text}, "", nil), nil
	case cohere.StreamEventStreamEnd:
		finish := openai.NormalizeFinishReason(event.FinishReason)
		if finish == "" {
			finish = openai.FinishReasonStop
		}
		var usage *openai.Usage
		if event.Response != nil && event.Response.Meta != nil && event.Response.Meta.Tokens != nil {
			tokens := event.Response.Meta.Tokens
			usage = usageFromTokens(int(tokens.InputTokens), int(tokens.OutputTokens), 0)
		}
		return c.newChunk(openai.ChunkDelta{}, finish, usage), nil
	default:
		// stream-start and unrecognised event types carry no content.
		return nil, nil
	}
}

func (c *cohereTranslator) newChunk(delta openai.ChunkDelta, finish openai.FinishReason, usage *openai.Usage) *openai.ChatCompletionChunk {
	return &openai.ChatCompletionChunk{
		ID:      c.id,
		Object:  openai.ObjectChatCompletionChunk,
		Created: c.created,
		Model:   c.binding.Model,
		Choices: []openai.ChatCompletionChunkChoice{{
			Delta:        delta,
			FinishReason: finish,
		}},
		Usage: usage,
	}
}
