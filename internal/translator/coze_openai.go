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

	"github.com/modelgate/modelgate/internal/apischema/coze"
	"github.com/modelgate/modelgate/internal/apischema/openai"
	"github.com/modelgate/modelgate/internal/json"
	"github.com/modelgate/modelgate/internal/modelconfig"
)

// newCozeTranslator translates between the Coze v2 bot chat API and the
// OpenAI chat schema. Bots are addressed as "bot-<id>" model names.
func newCozeTranslator(binding *modelconfig.Binding) *cozeTranslator {
	return &cozeTranslator{binding: binding}
}

type cozeTranslator struct {
	binding *modelconfig.Binding
}

// RequestBody implements [OpenAIChatTranslator.RequestBody]. The newest turn
// becomes the query regardless of role; everything before it is history.
func (c *cozeTranslator) RequestBody(req *openai.ChatCompletionRequest) ([]byte, error) {
	var query string
	var history []coze.Message
	for i := range req.Messages {
		m := &req.Messages[i]
		text := m.Content.Text()
		if i == len(req.Messages)-1 {
			query = text
			continue
		}
		history = append(history, coze.Message{
			Role:    string(m.Role),
			Content: text,
		})
	}

	out := &coze.ChatRequest{
		BotID:       strings.TrimPrefix(c.binding.Model, "bot-"),
		Query:       query,
		ChatHistory: history,
		Stream:      req.Stream,
	}
	if req.User != nil {
		out.User = *req.User
	}
	body, err := json.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal coze request: %w", err)
	}
	return body, nil
}

// RequestPath implements [OpenAIChatTranslator.RequestPath].
func (c *cozeTranslator) RequestPath(baseURL, endpoint string) (string, error) {
	return joinPath(baseURL, resolveEndpoint(endpoint, "/open_api/v2/chat", c.binding.Model)), nil
}

// RequestHeaders implements [OpenAIChatTranslator.RequestHeaders].
func (c *cozeTranslator) RequestHeaders([]byte) (http.Header, error) {
	key := c.binding.APIKey
	if key == "not-needed" {
		key = ""
	}
	h := http.Header{}
	h.Set("Content-Type", "application/json")
	h.Set("Authorization", "Bearer "+key)
	return h, nil
}

// ResponseBody implements [OpenAIChatTranslator.ResponseBody]. The bot's
// reply is the first messages[] entry of type "answer"; follow-up
// suggestions and tool traffic are dropped.
func (c *cozeTranslator) ResponseBody(body []byte) (*openai.ChatCompletionResponse, error) {
	var resp coze.ChatResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal coze response: %w", err)
	}
	if resp.Code != 0 {
		return nil, &UpstreamError{
			Vendor:  "coze",
			Code:    strconv.Itoa(resp.Code),
			Message: resp.Msg,
		}
	}

	content := ""
	finish := openai.FinishReasonStop
	for i := range resp.Messages {
		m := &resp.Messages[i]
		if m.Type != coze.MessageTypeAnswer {
			continue
		}
		content = m.Content
		if m.StopReason == "max_tokens" {
			finish = openai.FinishReasonLength
		}
		break
	}

	id := resp.ConversationID
	if id == "" {
		id = "unknown"
	}
	return &openai.ChatCompletionResponse{
		ID:     id,
		Object: openai.ObjectChatCompletion,
		Model:  c.binding.Model,
		Choices: []openai.ChatCompletionChoice{{
			Message: openai.ChatCompletionMessage{
				Role:    "assistant",
				Content: content,
			},
			FinishReason: finish,
		}},
	}, nil
}

// ResponseChunk implements [OpenAIChatTranslator.ResponseChunk]. The v2 chat
// endpoint is driven unary here.
func (c *cozeTranslator) ResponseChunk([]byte) (*openai.ChatCompletionChunk, error) {
	return nil, ErrStreamingUnsupported
}
