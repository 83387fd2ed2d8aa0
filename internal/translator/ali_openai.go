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

	"github.com/modelgate/modelgate/internal/apischema/ali"
	"github.com/modelgate/modelgate/internal/apischema/openai"
	"github.com/modelgate/modelgate/internal/json"
	"github.com/modelgate/modelgate/internal/modelconfig"
)

// newAliTranslator translates between the Alibaba DashScope text-generation
// API and the OpenAI chat schema. Bailian application endpoints share the
// same wire shape, so "alibailian" bindings reuse this translator.
func newAliTranslator(binding *modelconfig.Binding) *aliTranslator {
	return &aliTranslator{binding: binding}
}

type aliTranslator struct {
	binding *modelconfig.Binding
	stream  bool
	created int64
	id      string
}

// RequestBody implements [OpenAIChatTranslator.RequestBody].
func (a *aliTranslator) RequestBody(req *openai.ChatCompletionRequest) ([]byte, error) {
	a.stream = req.Stream
	a.created = time.Now().Unix()

	// A "-internet" model alias turns on DashScope web search.
	model := a.binding.Model
	enableSearch := false
	if strings.HasSuffix(model, "-internet") {
		enableSearch = true
		model = strings.TrimSuffix(model, "-internet")
	}

	messages := make([]ali.Message, 0, len(req.Messages))
	for i := range req.Messages {
		m := &req.Messages[i]
		messages = append(messages, ali.Message{
			Role:    strings.ToLower(string(m.Role)),
			Content: m.Content.Text(),
		})
	}

	params := ali.Parameters{
		ResultFormat:      "message",
		IncrementalOutput: req.Stream,
		EnableSearch:      enableSearch,
		Temperature:       req.Temperature,
		TopK:              req.TopK,
		MaxTokens:         req.MaxTokens,
		Seed:              req.Seed,
		Tools:             req.Tools,
	}
	if req.TopP != nil {
		topP := min(*req.TopP, 0.9999)
		params.TopP = &topP
	}

	out := &ali.GenerationRequest{
		Model:      model,
		Input:      ali.Input{Messages: messages},
		Parameters: params,
	}
	body, err := json.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal ali request: %w", err)
	}
	return body, nil
}

// RequestPath implements [OpenAIChatTranslator.RequestPath].
func (a *aliTranslator) RequestPath(baseURL, endpoint string) (string, error) {
	return joinPath(baseURL, resolveEndpoint(endpoint, "/api/v1/services/aigc/text-generation/generation", a.binding.Model)), nil
}

// RequestHeaders implements [OpenAIChatTranslator.RequestHeaders].
func (a *aliTranslator) RequestHeaders([]byte) (http.Header, error) {
	key := a.binding.APIKey
	if key == "not-needed" {
		key = ""
	}
	h := http.Header{}
	h.Set("Content-Type", "application/json")
	h.Set("Authorization", "Bearer "+key)
	if a.stream {
		h.Set("Accept", "text/event-stream")
		h.Set("X-DashScope-SSE", "enable")
	}
	if a.binding.Config.Plugin != "" {
		h.Set("X-DashScope-Plugin", a.binding.Config.Plugin)
	}
	return h, nil
}

// ResponseBody implements [OpenAIChatTranslator.ResponseBody].
func (a *aliTranslator) ResponseBody(body []byte) (*openai.ChatCompletionResponse, error) {
	var resp ali.GenerationResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal ali response: %w", err)
	}
	if resp.Code != "" {
		return nil, &UpstreamError{Vendor: "ali", Code: resp.Code, Message: resp.Message}
	}

	var choices []openai.ChatCompletionChoice
	if resp.Output != nil {
		choices = make([]openai.ChatCompletionChoice, 0, len(resp.Output.Choices))
		for i, c := range resp.Output.Choices {
			role := c.Message.Role
			if role == "" {
				role = "assistant"
			}
			finish := c.FinishReason
			if finish == "" {
				finish = "stop"
			}
			choices = append(choices, openai.ChatCompletionChoice{
				Index: i,
				Message: openai.ChatCompletionMessage{
					Role:    role,
					Content: c.Message.Content,
				},
				FinishReason: openai.FinishReason(finish),
			})
		}
	}

	id := resp.RequestID
	if id == "" {
		id = "unknown"
	}
	out := &openai.ChatCompletionResponse{
		ID:      id,
		Object:  openai.ObjectChatCompletion,
		Model:   a.binding.Model,
		Choices: choices,
	}
	if resp.Usage != nil {
		out.Usage = usageFromTokens(resp.Usage.InputTokens, resp.Usage.OutputTokens, 0)
	}
	return out, nil
}

// ResponseChunk implements [OpenAIChatTranslator.ResponseChunk]. DashScope
// sends the string "null" as finish_reason on intermediate frames.
func (a *aliTranslator) ResponseChunk(frame []byte) (*openai.ChatCompletionChunk, error) {
	var resp ali.GenerationResponse
	if err := json.Unmarshal(frame, &resp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal ali frame: %w", err)
	}
	if resp.Code != "" {
		return nil, &UpstreamError{Vendor: "ali", Code: resp.Code, Message: resp.Message}
	}
	if resp.Output == nil || len(resp.Output.Choices) == 0 {
		return nil, nil
	}

	if a.id == "" {
		a.id = resp.RequestID
	}
	choice := resp.Output.Choices[0]
	chunk := &openai.ChatCompletionChunk{
		ID:      a.id,
		Object:  openai.ObjectChatCompletionChunk,
		Created: a.created,
		Model:   a.binding.Model,
		Choices: []openai.ChatCompletionChunkChoice{{
			Delta: openai.ChunkDelta{Content: choice.Message.Content},
		}},
	}
	if choice.FinishReason != "" && choice.FinishReason != "null" {
		chunk.Choices[0].FinishReason = openai.NormalizeFinishReason(choice.FinishReason)
		if resp.Usage != nil {
			chunk.Usage = usageFromTokens(resp.Usage.InputTokens, resp.Usage.OutputTokens, 0)
		}
	}
	return chunk, nil
}
