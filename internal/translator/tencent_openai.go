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

	"github.com/modelgate/modelgate/internal/apischema/openai"
	"github.com/modelgate/modelgate/internal/apischema/tencent"
	"github.com/modelgate/modelgate/internal/json"
	"github.com/modelgate/modelgate/internal/modelconfig"
)

// newTencentTranslator translates between the Tencent Hunyuan
// ChatCompletions API and the OpenAI chat schema. The TC3-HMAC-SHA256
// Authorization and X-TC-Timestamp headers are computed over the rendered
// body by backendauth.
func newTencentTranslator(binding *modelconfig.Binding) *tencentTranslator {
	return &tencentTranslator{binding: binding}
}

type tencentTranslator struct {
	binding *modelconfig.Binding
	stream  bool
	created int64
	id      string
}

// RequestBody implements [OpenAIChatTranslator.RequestBody].
func (t *tencentTranslator) RequestBody(req *openai.ChatCompletionRequest) ([]byte, error) {
	t.stream = req.Stream
	t.created = time.Now().Unix()

	messages := make([]tencent.Message, 0, len(req.Messages))
	for i := range req.Messages {
		m := &req.Messages[i]
		messages = append(messages, tencent.Message{
			Role:    capitalize(string(m.Role)),
			Content: m.Content.Text(),
		})
	}

	out := &tencent.ChatCompletionsRequest{
		Model:       t.binding.Model,
		Messages:    messages,
		Stream:      req.Stream,
		Temperature: req.Temperature,
		TopP:        req.TopP,
	}
	body, err := json.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal tencent request: %w", err)
	}
	return body, nil
}

// capitalize upper-cases the first byte and lower-cases the rest, matching
// the PascalCase roles Hunyuan expects.
func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + strings.ToLower(s[1:])
}

// RequestPath implements [OpenAIChatTranslator.RequestPath]. The cloud API
// routes every action to the service root.
func (t *tencentTranslator) RequestPath(baseURL, endpoint string) (string, error) {
	return joinPath(baseURL, resolveEndpoint(endpoint, "/", t.binding.Model)), nil
}

// RequestHeaders implements [OpenAIChatTranslator.RequestHeaders].
func (t *tencentTranslator) RequestHeaders([]byte) (http.Header, error) {
	region := t.binding.Config.Region
	if region == "" {
		region = "ap-beijing"
	}
	version := t.binding.Config.APIVersion
	if version == "" {
		version = tencent.APIVersion
	}
	h := http.Header{}
	h.Set("Content-Type", "application/json")
	h.Set("X-TC-Action", tencent.ActionChatCompletions)
	h.Set("X-TC-Version", version)
	h.Set("X-TC-Region", region)
	return h, nil
}

// ResponseBody implements [OpenAIChatTranslator.ResponseBody].
func (t *tencentTranslator) ResponseBody(body []byte) (*openai.ChatCompletionResponse, error) {
	var envelope tencent.ResponseEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("failed to unmarshal tencent response: %w", err)
	}
	resp := &envelope.Response
	if resp.Error != nil && resp.Error.Code != "" {
		return nil, &UpstreamError{Vendor: "tencent", Code: resp.Error.Code, Message: resp.Error.Message}
	}

	choices := make([]openai.ChatCompletionChoice, 0, len(resp.Choices))
	for i := range resp.Choices {
		choice := &resp.Choices[i]
		message := choice.Message
		if message == nil {
			message = choice.Delta
		}
		role, content := "assistant", ""
		if message != nil {
			if message.Role != "" {
				role = strings.ToLower(message.Role)
			}
			content = message.Content
		}
		finish := choice.FinishReason
		if finish == "" {
			finish = "stop"
		}
		choices = append(choices, openai.ChatCompletionChoice{
			Index: i,
			Message: openai.ChatCompletionMessage{
				Role:    role,
				Content: content,
			},
			FinishReason: openai.FinishReason(finish),
		})
	}

	id := resp.RequestID
	if id == "" {
		id = resp.ID
	}
	if id == "" {
		id = "unknown"
	}
	created := resp.Created
	if created == 0 {
		created = time.Now().Unix()
	}
	out := &openai.ChatCompletionResponse{
		ID:      id,
		Object:  openai.ObjectChatCompletion,
		Created: created,
		Model:   t.binding.Model,
		Choices: choices,
	}
	if resp.Usage != nil {
		out.Usage = usageFromTokens(resp.Usage.PromptTokens, resp.Usage.CompletionTokens, resp.Usage.TotalTokens)
	}
	return out, nil
}

// ResponseChunk implements [OpenAIChatTranslator.ResponseChunk]. Stream
// frames carry the payload without the Response envelope.
func (t *tencentTranslator) ResponseChunk(frame []byte) (*openai.ChatCompletionChunk, error) {
	var resp tencent.ChatCompletionsResponse
	if err := json.Unmarshal(frame, &resp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal tencent frame: %w", err)
	}
	if resp.Error != nil && resp.Error.Code != "" {
		return nil, &UpstreamError{Vendor: "tencent", Code: resp.Error.Code, Message: resp.Error.Message}
	}
	if len(resp.Choices) == 0 {
		return nil, nil
	}

	if t.id == "" {
		t.id = resp.RequestID
		if t.id == "" {
			t.id = resp.ID
		}
	}
	choice := &resp.Choices[0]
	var content string
	if choice.Delta != nil {
		content = choice.Delta.Content
	}
	chunk := &openai.ChatCompletionChunk{
		ID:      t.id,
		Object:  openai.ObjectChatCompletionChunk,
		Created: t.created,
		Model:   t.binding.Model,
		Choices: []openai.ChatCompletionChunkChoice{{
			Delta: openai.ChunkDelta{Content: content},
		}},
	}
	if choice.FinishReason != "" {
		chunk.Choices[0].FinishReason = openai.NormalizeFinishReason(choice.FinishReason)
		if resp.Usage != nil {
			chunk.Usage = usageFromTokens(resp.Usage.PromptTokens, resp.Usage.CompletionTokens, resp.Usage.TotalTokens)
		}
	}
	return chunk, nil
}
