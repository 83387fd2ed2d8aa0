// Copyright ModelGate Authors
// SPDX-License-Identifier: Apache-2.0
// The full text of the Apache license is available in the LICENSE file at
// the root of the repo.

package translator

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/modelgate/modelgate/internal/apischema/baidu"
	"github.com/modelgate/modelgate/internal/apischema/openai"
	"github.com/modelgate/modelgate/internal/json"
	"github.com/modelgate/modelgate/internal/modelconfig"
)

// newBaiduTranslator translates between the Baidu Qianfan (ERNIE) API and
// the OpenAI chat schema. The access_token query parameter is appended by
// backendauth at request time.
func newBaiduTranslator(binding *modelconfig.Binding) *baiduTranslator {
	return &baiduTranslator{binding: binding}
}

type baiduTranslator struct {
	binding *modelconfig.Binding
	stream  bool
	created int64
	id      string
}

// RequestBody implements [OpenAIChatTranslator.RequestBody].
func (b *baiduTranslator) RequestBody(req *openai.ChatCompletionRequest) ([]byte, error) {
	b.stream = req.Stream
	b.created = time.Now().Unix()

	system, rest := splitSystem(req.Messages)
	messages := make([]baidu.Message, 0, len(rest))
	for i := range rest {
		messages = append(messages, baidu.Message{
			Role:    string(rest[i].Role),
			Content: rest[i].Content.Text(),
		})
	}

	out := &baidu.ChatRequest{
		Messages:        messages,
		System:          system,
		Stream:          req.Stream,
		Temperature:     req.Temperature,
		TopP:            req.TopP,
		PenaltyScore:    req.FrequencyPenalty,
		MaxOutputTokens: req.MaxTokens,
	}
	if req.User != nil {
		out.UserID = *req.User
	}

	body, err := json.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal baidu request: %w", err)
	}
	return body, nil
}

// RequestPath implements [OpenAIChatTranslator.RequestPath].
func (b *baiduTranslator) RequestPath(baseURL, endpoint string) (string, error) {
	return joinPath(baseURL, resolveEndpoint(endpoint, "/rpc/2.0/ai_custom/v1/wenxinworkshop/chat/{model}", b.binding.Model)), nil
}

// RequestHeaders implements [OpenAIChatTranslator.RequestHeaders].
func (b *baiduTranslator) RequestHeaders([]byte) (http.Header, error) {
	h := http.Header{}
	h.Set("Content-Type", "application/json")
	return h, nil
}

// ResponseBody implements [OpenAIChatTranslator.ResponseBody].
func (b *baiduTranslator) ResponseBody(body []byte) (*openai.ChatCompletionResponse, error) {
	var resp baidu.ChatResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal baidu response: %w", err)
	}
	if err := baiduError(&resp); err != nil {
		return nil, err
	}

	id := resp.ID
	if id == "" {
		id = "unknown"
	}
	out := &openai.ChatCompletionResponse{
		ID:      id,
		Object:  openai.ObjectChatCompletion,
		Created: resp.Created,
		Model:   b.binding.Model,
		Choices: []openai.ChatCompletionChoice{{
			Message: openai.ChatCompletionMessage{
				Role:    "assistant",
				Content: resp.Result,
			},
			FinishReason: openai.FinishReasonStop,
		}},
	}
	if resp.Usage != nil {
		out.Usage = usageFromTokens(resp.Usage.PromptTokens, resp.Usage.CompletionTokens, resp.Usage.TotalTokens)
	}
	return out, nil
}

// ResponseChunk implements [OpenAIChatTranslator.ResponseChunk]. Stream
// frames reuse the unary shape with is_end marking the terminal frame.
func (b *baiduTranslator) ResponseChunk(frame []byte) (*openai.ChatCompletionChunk, error) {
	var resp baidu.ChatResponse
	if err := json.Unmarshal(frame, &resp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal baidu frame: %w", err)
	}
	if err := baiduError(&resp); err != nil {
		return nil, err
	}

	if b.id == "" {
		b.id = resp.ID
	}
	chunk := &openai.ChatCompletionChunk{
		ID:      b.id,
		Object:  openai.ObjectChatCompletionChunk,
		Created: b.created,
		Model:   b.binding.Model,
		Choices: []openai.ChatCompletionChunkChoice{{
			Delta: openai.ChunkDelta{Content: resp.Result},
		}},
	}
	if resp.IsEnd {
		chunk.Choices[0].FinishReason = openai.FinishReasonStop
		if resp.Usage != nil {
			chunk.Usage = usageFromTokens(resp.Usage.PromptTokens, resp.Usage.CompletionTokens, resp.Usage.TotalTokens)
		}
	}
	return chunk, nil
}

func baiduError(resp *baidu.ChatResponse) error {
	if resp.ErrorCode == 0 && resp.ErrorMsg == "" {
		return nil
	}
	return &UpstreamError{
		Vendor:  "baidu",
		Code:    strconv.Itoa(resp.ErrorCode),
		Message: resp.ErrorMsg,
	}
}
