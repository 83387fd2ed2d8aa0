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

	"github.com/modelgate/modelgate/internal/apischema/openai"
	"github.com/modelgate/modelgate/internal/backendauth"
	"github.com/modelgate/modelgate/internal/modelconfig"
	"github.com/modelgate/modelgate/internal/translator"
)

// customHTTP serves backends whose wire dialect differs from OpenAI's. A
// translator renders the outbound request and parses the reply; backendauth
// applies credentials that depend on the rendered bytes (Tencent signatures,
// Baidu access tokens, Zhipu JWTs).
type customHTTP struct {
	binding *modelconfig.Binding
	auth    backendauth.Handler
	client  *http.Client
}

func newCustomHTTP(binding *modelconfig.Binding) (*customHTTP, error) {
	// Constructing a throwaway translator validates the format up front so
	// a typo in request_format fails at load, not on the first request.
	if _, err := translator.New(binding.RequestFormat, binding); err != nil {
		return nil, err
	}
	auth, err := backendauth.NewHandler(binding)
	if err != nil {
		return nil, err
	}
	return &customHTTP{binding: binding, auth: auth, client: &http.Client{}}, nil
}

// Family implements [Adapter.Family].
func (a *customHTTP) Family() string { return modelconfig.AdapterCustomHTTP }

// Available implements [Adapter.Available]. Formats with an auth handler
// had their credentials validated when the handler was built; the rest
// authenticate with the plain api_key.
func (a *customHTTP) Available() error {
	if a.binding.BaseURL == "" {
		return errors.New("missing base_url")
	}
	if a.auth == nil && resolveKey(a.binding.APIKey) == "" {
		return errors.New("missing api_key")
	}
	return nil
}

// exchange renders the request through a fresh translator, applies auth and
// POSTs it. Callers own the response body.
func (a *customHTTP) exchange(ctx context.Context, tr translator.OpenAIChatTranslator, req *openai.ChatCompletionRequest) (*http.Response, error) {
	body, err := tr.RequestBody(req)
	if err != nil {
		return nil, err
	}
	url, err := tr.RequestPath(a.binding.BaseURL, a.binding.Endpoint)
	if err != nil {
		return nil, err
	}
	headers, err := tr.RequestHeaders(body)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	for name, values := range headers {
		for _, v := range values {
			httpReq.Header.Add(name, v)
		}
	}
	if httpReq.Header.Get("Content-Type") == "" {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if a.auth != nil {
		if err := a.auth.Do(ctx, httpReq, body); err != nil {
			return nil, err
		}
	}

	resp, err := a.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("upstream request failed: %w", err)
	}
	return resp, nil
}

// Chat implements [Adapter.Chat].
func (a *customHTTP) Chat(ctx context.Context, req *openai.ChatCompletionRequest) (*openai.ChatCompletionResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, a.binding.TimeoutDuration())
	defer cancel()

	// Translators render stream-specific fields and headers from the Stream
	// flag, so pin it to the exchange actually being made.
	unaryReq := *req
	unaryReq.Stream = false

	tr, err := translator.New(a.binding.RequestFormat, a.binding)
	if err != nil {
		return nil, err
	}
	resp, err := a.exchange(ctx, tr, &unaryReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read upstream response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// Prefer the vendor's typed envelope when the body parses as one;
		// otherwise keep the HTTP status for the retry classifier.
		if _, convErr := tr.ResponseBody(raw); convErr != nil {
			var upstream *translator.UpstreamError
			if errors.As(convErr, &upstream) {
				return nil, upstream
			}
		}
		return nil, newHTTPError(resp.StatusCode, raw)
	}
	return tr.ResponseBody(raw)
}

// ChatStream implements [Adapter.ChatStream]. Dialects without a stream
// wire format run the unary exchange and replay it as one terminal chunk.
func (a *customHTTP) ChatStream(ctx context.Context, req *openai.ChatCompletionRequest) (Stream, error) {
	if !translator.SupportsStreaming(a.binding.RequestFormat) {
		resp, err := a.Chat(ctx, req)
		if err != nil {
			return nil, err
		}
		return newUnaryStream(resp), nil
	}

	streamReq := *req
	streamReq.Stream = true

	tr, err := translator.New(a.binding.RequestFormat, a.binding)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithCancel(ctx)
	resp, err := a.exchange(ctx, tr, &streamReq)
	if err != nil {
		cancel()
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, httpErrorBodyLimit))
		resp.Body.Close()
		cancel()
		return nil, newHTTPError(resp.StatusCode, raw)
	}
	return newSSEStream(resp.Body, cancel, tr.ResponseChunk), nil
}
