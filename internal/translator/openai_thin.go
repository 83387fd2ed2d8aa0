// Copyright ModelGate Authors
// SPDX-License-Identifier: Apache-2.0
// The full text of the Apache license is available in the LICENSE file at
// the root of the repo.

package translator

import (
	"fmt"
	"net/http"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/modelgate/modelgate/internal/apischema/openai"
	"github.com/modelgate/modelgate/internal/json"
	"github.com/modelgate/modelgate/internal/modelconfig"
)

// thinDefaultEndpoints maps the OpenAI-shaped vendors to their chat paths.
var thinDefaultEndpoints = map[string]string{
	"moonshot": "/chat/completions",
	"minimax":  "/text/chatcompletion_v2",
	"doubao":   "/chat/completions",
}

// newThinOpenAITranslator serves vendors that speak the OpenAI chat shape
// verbatim (Moonshot, MiniMax, Doubao). Only the model name and transport
// details differ, so the body passes through with a model rewrite.
func newThinOpenAITranslator(vendor string, binding *modelconfig.Binding) *thinOpenAITranslator {
	return &thinOpenAITranslator{vendor: vendor, binding: binding}
}

type thinOpenAITranslator struct {
	vendor  string
	binding *modelconfig.Binding
}

// RequestBody implements [OpenAIChatTranslator.RequestBody].
func (t *thinOpenAITranslator) RequestBody(req *openai.ChatCompletionRequest) ([]byte, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s request: %w", t.vendor, err)
	}
	body, err = sjson.SetBytes(body, "model", t.binding.Model)
	if err != nil {
		return nil, fmt.Errorf("failed to rewrite model name: %w", err)
	}
	return body, nil
}

// RequestPath implements [OpenAIChatTranslator.RequestPath].
func (t *thinOpenAITranslator) RequestPath(baseURL, endpoint string) (string, error) {
	return joinPath(baseURL, resolveEndpoint(endpoint, thinDefaultEndpoints[t.vendor], t.binding.Model)), nil
}

// RequestHeaders implements [OpenAIChatTranslator.RequestHeaders].
func (t *thinOpenAITranslator) RequestHeaders([]byte) (http.Header, error) {
	key := t.binding.APIKey
	if key == "not-needed" {
		key = ""
	}
	h := http.Header{}
	h.Set("Content-Type", "application/json")
	h.Set("Authorization", "Bearer "+key)
	return h, nil
}

// ResponseBody implements [OpenAIChatTranslator.ResponseBody].
func (t *thinOpenAITranslator) ResponseBody(body []byte) (*openai.ChatCompletionResponse, error) {
	if e := gjson.GetBytes(body, "error"); e.Exists() {
		var envelope openai.ErrorResponse
		if err := json.Unmarshal(body, &envelope); err != nil {
			return nil, fmt.Errorf("failed to unmarshal %s error: %w", t.vendor, err)
		}
		return nil, &UpstreamError{
			Vendor:  t.vendor,
			Code:    envelope.Error.Type,
			Message: envelope.Error.Message,
		}
	}

	var resp openai.ChatCompletionResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal %s response: %w", t.vendor, err)
	}
	if resp.ID == "" {
		resp.ID = "unknown"
	}
	if resp.Object == "" {
		resp.Object = openai.ObjectChatCompletion
	}
	if resp.Model == "" {
		resp.Model = t.binding.Model
	}
	return &resp, nil
}

// ResponseChunk implements [OpenAIChatTranslator.ResponseChunk]. Frames are
// already OpenAI chunks; empty keepalives are skipped.
func (t *thinOpenAITranslator) ResponseChunk(frame []byte) (*openai.ChatCompletionChunk, error) {
	if e := gjson.GetBytes(frame, "error"); e.Exists() {
		var envelope openai.ErrorResponse
		if err := json.Unmarshal(frame, &envelope); err != nil {
			return nil, fmt.Errorf("failed to unmarshal %s error: %w", t.vendor, err)
		}
		return nil, &UpstreamError{
			Vendor:  t.vendor,
			Code:    envelope.Error.Type,
			Message: envelope.Error.Message,
		}
	}

	var chunk openai.ChatCompletionChunk
	if err := json.Unmarshal(frame, &chunk); err != nil {
		return nil, fmt.Errorf("failed to unmarshal %s frame: %w", t.vendor, err)
	}
	if len(chunk.Choices) == 0 && chunk.Usage == nil {
		return nil, nil
	}
	if chunk.Model == "" {
		chunk.Model = t.binding.Model
	}
	return &chunk, nil
}
