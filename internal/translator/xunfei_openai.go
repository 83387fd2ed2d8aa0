// Copyright ModelGate Authors
// SPDX-License-Identifier: Apache-2.0
// The full text of the Apache license is available in the LICENSE file at
// the root of the repo.

package translator

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/modelgate/modelgate/internal/apischema/openai"
	"github.com/modelgate/modelgate/internal/apischema/xunfei"
	"github.com/modelgate/modelgate/internal/json"
	"github.com/modelgate/modelgate/internal/modelconfig"
)

// xunfeiVersionDomains maps Spark API versions to their model domains.
var xunfeiVersionDomains = map[string]string{
	"v1.1": "general",
	"v2.1": "generalv2",
	"v3.1": "generalv3",
	"v3.5": "generalv3.5",
	"v4.0": "4.0Ultra",
}

const (
	xunfeiDefaultTemperature = 0.7
	xunfeiDefaultMaxTokens   = int64(2048)
)

// NewXunfei translates between the iFlytek Spark websocket API and the
// OpenAI chat schema. It is constructed directly by the websocket adapter
// rather than through the request-format factory: Spark frames only exist
// on a websocket, so the generic HTTP adapters can never drive it.
func NewXunfei(binding *modelconfig.Binding) *XunfeiTranslator {
	version := binding.Config.APIVersion
	if version == "" {
		version = "v3.5"
	}
	domain := binding.Config.Domain
	if domain == "" {
		domain = xunfeiVersionDomains[version]
		if domain == "" {
			domain = "generalv3.5"
		}
	}
	return &XunfeiTranslator{binding: binding, version: version, domain: domain}
}

// XunfeiTranslator converts Spark websocket frames. One instance serves one
// chat exchange.
type XunfeiTranslator struct {
	binding *modelconfig.Binding
	version string
	domain  string
	created int64
	id      string
}

// RequestBody implements [OpenAIChatTranslator.RequestBody]. The rendered
// body is the single websocket request frame.
func (x *XunfeiTranslator) RequestBody(req *openai.ChatCompletionRequest) ([]byte, error) {
	x.created = time.Now().Unix()
	x.id = fmt.Sprintf("chatcmpl-%d", x.created)

	appID := x.binding.Config.AppID
	if appID == "not-needed" {
		appID = ""
	}

	temperature := xunfeiDefaultTemperature
	if req.Temperature != nil {
		temperature = *req.Temperature
	}
	maxTokens := xunfeiDefaultMaxTokens
	if req.MaxTokens != nil {
		maxTokens = *req.MaxTokens
	}

	text := make([]xunfei.Message, 0, len(req.Messages))
	for i := range req.Messages {
		m := &req.Messages[i]
		text = append(text, xunfei.Message{
			Role:    string(m.Role),
			Content: m.Content.Text(),
		})
	}

	out := &xunfei.ChatRequest{
		Header: xunfei.RequestHeader{AppID: appID},
		Parameter: xunfei.Parameter{Chat: xunfei.Chat{
			Domain:      x.domain,
			Temperature: &temperature,
			TopK:        req.TopK,
			MaxTokens:   &maxTokens,
		}},
		Payload: xunfei.RequestLoad{Message: xunfei.MessageLoad{Text: text}},
	}
	body, err := json.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal xunfei request: %w", err)
	}
	return body, nil
}

// RequestPath implements [OpenAIChatTranslator.RequestPath]. The returned
// URL is unsigned; backendauth appends the HMAC query parameters.
func (x *XunfeiTranslator) RequestPath(baseURL, endpoint string) (string, error) {
	if baseURL == "" || baseURL == "ws://" || baseURL == "wss://" {
		baseURL = "wss://spark-api.xf-yun.com"
	}
	if endpoint == "" {
		endpoint = "/" + x.version + "/chat"
	}
	endpoint = resolveEndpoint(endpoint, "", x.binding.Model)
	return joinPath(baseURL, endpoint), nil
}

// RequestHeaders implements [OpenAIChatTranslator.RequestHeaders]. The
// websocket dial carries its credentials in the URL, not in headers.
func (x *XunfeiTranslator) RequestHeaders([]byte) (http.Header, error) {
	return http.Header{}, nil
}

// ResponseBody implements [OpenAIChatTranslator.ResponseBody]. Spark has no
// unary HTTP shape; the websocket adapter aggregates chunks instead.
func (x *XunfeiTranslator) ResponseBody([]byte) (*openai.ChatCompletionResponse, error) {
	return nil, errors.New("xunfei responses only arrive as websocket frames")
}

// ResponseChunk implements [OpenAIChatTranslator.ResponseChunk] over
// websocket frames. Status 2 marks the terminal frame.
func (x *XunfeiTranslator) ResponseChunk(frame []byte) (*openai.ChatCompletionChunk, error) {
	var resp xunfei.ChatResponse
	if err := json.Unmarshal(frame, &resp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal xunfei frame: %w", err)
	}
	if resp.Header.Code != 0 {
		return nil, &UpstreamError{
			Vendor:  "xunfei",
			Code:    strconv.Itoa(resp.Header.Code),
			Message: resp.Header.Message,
		}
	}
	if resp.Payload == nil || resp.Payload.Choices == nil || len(resp.Payload.Choices.Text) == 0 {
		return nil, nil
	}

	choices := resp.Payload.Choices
	chunk := &openai.ChatCompletionChunk{
		ID:      x.id,
		Object:  openai.ObjectChatCompletionChunk,
		Created: x.created,
		Model:   x.binding.Model,
		Choices: []openai.ChatCompletionChunkChoice{{
			Delta: openai.ChunkDelta{Content: choices.Text[0].Content},
		}},
	}
	if choices.Status == xunfei.StatusLast {
		chunk.Choices[0].FinishReason = openai.FinishReasonStop
	}
	if resp.Payload.Usage != nil {
		u := resp.Payload.Usage.Text
		chunk.Usage = usageFromTokens(u.PromptTokens, u.CompletionTokens, u.TotalTokens)
	}
	return chunk, nil
}
