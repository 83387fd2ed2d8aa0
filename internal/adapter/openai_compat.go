// Copyright ModelGate Authors
// SPDX-License-Identifier: Apache-2.0
// The full text of the Apache license is available in the LICENSE file at
// the root of the repo.

package adapter

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/tidwall/sjson"

	"github.com/modelgate/modelgate/internal/apischema/openai"
	"github.com/modelgate/modelgate/internal/json"
	"github.com/modelgate/modelgate/internal/modelconfig"
)

// openAICompat forwards requests to backends that already speak the OpenAI
// chat dialect (OpenAI, DeepSeek, Ollama, vLLM, LM Studio, Groq, ...). The
// only translation is rewriting the routing id to the upstream model name.
type openAICompat struct {
	binding *modelconfig.Binding
	client  *http.Client
}

func newOpenAICompat(binding *modelconfig.Binding) *openAICompat {
	return &openAICompat{binding: binding, client: &http.Client{}}
}

// Family implements [Adapter.Family].
func (a *openAICompat) Family() string { return modelconfig.AdapterOpenAICompat }

// Available implements [Adapter.Available]. Local servers are recognised by
// base URL substring and need no key.
func (a *openAICompat) Available() error {
	if a.binding.BaseURL == "" {
		return errors.New("missing base_url")
	}
	if a.localBackend() {
		return nil
	}
	if resolveKey(a.binding.APIKey) == "" {
		return errors.New("missing api_key")
	}
	return nil
}

func (a *openAICompat) localBackend() bool {
	base := strings.ToLower(a.binding.BaseURL)
	return strings.Contains(base, "ollama") || strings.Contains(base, "lmstudio")
}

// requestBody renders the outbound body: the caller's request verbatim with
// the model field swapped for the configured upstream name.
func (a *openAICompat) requestBody(req *openai.ChatCompletionRequest, stream bool) ([]byte, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal chat request: %w", err)
	}
	body, err = sjson.SetBytes(body, "model", a.binding.Model)
	if err != nil {
		return nil, fmt.Errorf("failed to rewrite model name: %w", err)
	}
	if stream != req.Stream {
		if body, err = sjson.SetBytes(body, "stream", stream); err != nil {
			return nil, fmt.Errorf("failed to rewrite stream flag: %w", err)
		}
	}
	return body, nil
}

func (a *openAICompat) newRequest(ctx context.Context, body []byte) (*http.Request, error) {
	url := strings.TrimSuffix(a.binding.BaseURL, "/") + "/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if key := resolveKey(a.binding.APIKey); key != "" && !a.localBackend() {
		httpReq.Header.Set("Authorization", "Bearer "+key)
	}
	return httpReq, nil
}

// Chat implements [Adapter.Chat].
func (a *openAICompat) Chat(ctx context.Context, req *openai.ChatCompletionRequest) (*openai.ChatCompletionResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, a.binding.TimeoutDuration())
	defer cancel()

	body, err := a.requestBody(req, false)
	if err != nil {
		return nil, err
	}
	httpReq, err := a.newRequest(ctx, body)
	if err != nil {
		return nil, err
	}
	resp, err := a.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("upstream request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read upstream response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, newHTTPError(resp.StatusCode, raw)
	}

	var out openai.ChatCompletionResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("failed to unmarshal upstream response: %w", err)
	}
	if out.ID == "" {
		out.ID = "chatcmpl-" + uuid.NewString()
	}
	if out.Object == "" {
		out.Object = openai.ObjectChatCompletion
	}
	if out.Model == "" {
		out.Model = a.binding.Model
	}
	return &out, nil
}

// ChatStream implements [Adapter.ChatStream]. The binding timeout does not
// bound the stream: long generations outlive it legitimately, and the
// frontend guards stalls with its inter-frame heartbeat.
func (a *openAICompat) ChatStream(ctx context.Context, req *openai.ChatCompletionRequest) (Stream, error) {
	body, err := a.requestBody(req, true)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	httpReq, err := a.newRequest(ctx, body)
	if err != nil {
		cancel()
		return nil, err
	}
	httpReq.Header.Set("Accept", "text/event-stream")

	resp, err := a.client.Do(httpReq)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("upstream request failed: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, httpErrorBodyLimit))
		resp.Body.Close()
		cancel()
		return nil, newHTTPError(resp.StatusCode, raw)
	}
	return newSSEStream(resp.Body, cancel, a.parseChunk), nil
}

// parseChunk decodes one OpenAI-shaped frame. Choice-less frames without
// usage are keepalives and are skipped.
func (a *openAICompat) parseChunk(frame []byte) (*openai.ChatCompletionChunk, error) {
	var chunk openai.ChatCompletionChunk
	if err := json.Unmarshal(frame, &chunk); err != nil {
		return nil, fmt.Errorf("failed to unmarshal stream frame: %w", err)
	}
	if len(chunk.Choices) == 0 && chunk.Usage == nil {
		return nil, nil
	}
	if chunk.Model == "" {
		chunk.Model = a.binding.Model
	}
	return &chunk, nil
}
