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

	"github.com/modelgate/modelgate/internal/apischema/openai"
	"github.com/modelgate/modelgate/internal/apischema/zhipu"
	"github.com/modelgate/modelgate/internal/json"
	"github.com/modelgate/modelgate/internal/modelconfig"
)

// newZhipuTranslator translates between the Zhipu GLM invoke API and the
// OpenAI chat schema. The invoke endpoint is unary only; the JWT credential
// is minted by backendauth.
func newZhipuTranslator(binding *modelconfig.Binding) *zhipuTranslator {
	return &zhipuTranslator{binding: binding}
}

type zhipuTranslator struct {
	binding *modelconfig.Binding
}

// RequestBody implements [OpenAIChatTranslator.RequestBody].
func (z *zhipuTranslator) RequestBody(req *openai.ChatCompletionRequest) ([]byte, error) {
	prompt := make([]zhipu.Message, 0, len(req.Messages))
	for i := range req.Messages {
		m := &req.Messages[i]
		prompt = append(prompt, zhipu.Message{
			Role:    string(m.Role),
			Content: m.Content.Text(),
		})
	}
	out := &zhipu.InvokeRequest{
		Prompt:      prompt,
		Temperature: req.Temperature,
		TopP:        req.TopP,
	}
	body, err := json.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal zhipu request: %w", err)
	}
	return body, nil
}

// RequestPath implements [OpenAIChatTranslator.RequestPath].
func (z *zhipuTranslator) RequestPath(baseURL, endpoint string) (string, error) {
	return joinPath(baseURL, resolveEndpoint(endpoint, "/api/paas/v3/model-api/{model}/invoke", z.binding.Model)), nil
}

// RequestHeaders implements [OpenAIChatTranslator.RequestHeaders]. The
// Authorization JWT is minted per request by backendauth.
func (z *zhipuTranslator) RequestHeaders([]byte) (http.Header, error) {
	h := http.Header{}
	h.Set("Content-Type", "application/json")
	return h, nil
}

// ResponseBody implements [OpenAIChatTranslator.ResponseBody].
func (z *zhipuTranslator) ResponseBody(body []byte) (*openai.ChatCompletionResponse, error) {
	var resp zhipu.InvokeResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal zhipu response: %w", err)
	}
	if !resp.Success {
		return nil, &UpstreamError{
			Vendor:  "zhipu",
			Code:    strconv.Itoa(resp.Code),
			Message: resp.Msg,
		}
	}

	id := "unknown"
	var choices []openai.ChatCompletionChoice
	var usage *openai.Usage
	if resp.Data != nil {
		if resp.Data.TaskID != "" {
			id = resp.Data.TaskID
		}
		choices = make([]openai.ChatCompletionChoice, 0, len(resp.Data.Choices))
		for i, c := range resp.Data.Choices {
			role := c.Role
			if role == "" {
				role = "assistant"
			}
			var finish openai.FinishReason
			if i == len(resp.Data.Choices)-1 {
				finish = openai.FinishReasonStop
			}
			choices = append(choices, openai.ChatCompletionChoice{
				Index: i,
				Message: openai.ChatCompletionMessage{
					Role: role,
					// Some GLM models return the text JSON-quoted.
					Content: strings.Trim(c.Content, `"`),
				},
				FinishReason: finish,
			})
		}
		if resp.Data.Usage != nil {
			usage = usageFromTokens(resp.Data.Usage.PromptTokens, resp.Data.Usage.CompletionTokens, resp.Data.Usage.TotalTokens)
		}
	}

	return &openai.ChatCompletionResponse{
		ID:      id,
		Object:  openai.ObjectChatCompletion,
		Model:   z.binding.Model,
		Choices: choices,
		Usage:   usage,
	}, nil
}

// ResponseChunk implements [OpenAIChatTranslator.ResponseChunk]. The invoke
// endpoint has no stream dialect.
func (z *zhipuTranslator) ResponseChunk([]byte) (*openai.ChatCompletionChunk, error) {
	return nil, ErrStreamingUnsupported
}
