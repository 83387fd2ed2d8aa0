// Copyright ModelGate Authors
// SPDX-License-Identifier: Apache-2.0
// The full text of the Apache license is available in the LICENSE file at
// the root of the repo.

package server

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/modelgate/modelgate/internal/adapter"
	"github.com/modelgate/modelgate/internal/apischema/openai"
	"github.com/modelgate/modelgate/internal/metrics"
)

var testLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

type fakeRegistry struct {
	models    []openai.Model
	reloadErr error
	reloads   int
}

func (f *fakeRegistry) ListModels() []openai.Model { return f.models }

func (f *fakeRegistry) Reload() error {
	f.reloads++
	return f.reloadErr
}

// fakeRouter delegates to per-test closures so each test scripts exactly
// the exchange it needs.
type fakeRouter struct {
	route       func(ctx context.Context, model string, req *openai.ChatCompletionRequest) (*openai.ChatCompletionResponse, error)
	routeStream func(ctx context.Context, model string, req *openai.ChatCompletionRequest) (adapter.Stream, error)
}

func (f *fakeRouter) Route(ctx context.Context, model string, req *openai.ChatCompletionRequest) (*openai.ChatCompletionResponse, error) {
	return f.route(ctx, model, req)
}

func (f *fakeRouter) RouteStream(ctx context.Context, model string, req *openai.ChatCompletionRequest) (adapter.Stream, error) {
	return f.routeStream(ctx, model, req)
}

func newTestServer(t *testing.T, reg modelRegistry, rt chatRouter) (*Server, string) {
	t.Helper()
	s := New(reg, rt, metrics.New(), testLogger)
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return s, ts.URL
}

func get(t *testing.T, url string) (*http.Response, string) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	return resp, string(body)
}

func postChat(t *testing.T, baseURL, body string) (*http.Response, string) {
	t.Helper()
	resp, err := http.Post(baseURL+"/v1/chat/completions", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	return resp, string(b)
}

func TestHealth(t *testing.T) {
	_, url := newTestServer(t, &fakeRegistry{}, &fakeRouter{})
	resp, body := get(t, url+"/health")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"ok"}`, body)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestListModels(t *testing.T) {
	reg := &fakeRegistry{models: []openai.Model{
		{ID: "gpt-a", Object: openai.ObjectModel, Created: 1736900000, OwnedBy: "openai_compat"},
		{ID: "spark", Object: openai.ObjectModel, Created: 1736900000, OwnedBy: "websocket_xunfei"},
		{ID: "local-llama", Object: openai.ObjectModel, Created: 1736900000, OwnedBy: "process"},
	}}
	_, url := newTestServer(t, reg, &fakeRouter{})

	resp, body := get(t, url+"/v1/models")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "list", gjson.Get(body, "object").String())
	require.Equal(t, int64(3), gjson.Get(body, "data.#").Int())
	// Definition order is preserved.
	assert.Equal(t, "gpt-a", gjson.Get(body, "data.0.id").String())
	assert.Equal(t, "spark", gjson.Get(body, "data.1.id").String())
	assert.Equal(t, "local-llama", gjson.Get(body, "data.2.id").String())
	assert.Equal(t, "websocket_xunfei", gjson.Get(body, "data.1.owned_by").String())
	assert.Equal(t, "model", gjson.Get(body, "data.0.object").String())
}

func TestReload(t *testing.T) {
	reg := &fakeRegistry{}
	_, url := newTestServer(t, reg, &fakeRouter{})

	resp, body := get(t, url+"/reload")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"ok","message":"配置已重新加载"}`, body)
	assert.Equal(t, 1, reg.reloads)
}

func TestReload_failure(t *testing.T) {
	reg := &fakeRegistry{reloadErr: errors.New("parse model config: unexpected end of JSON input")}
	_, url := newTestServer(t, reg, &fakeRouter{})

	resp, body := get(t, url+"/reload")
	require.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, "重新加载配置失败: parse model config: unexpected end of JSON input",
		gjson.Get(body, "error.message").String())
	assert.Equal(t, "server_error", gjson.Get(body, "error.type").String())
	assert.Equal(t, "500", gjson.Get(body, "error.code").String())
}

func TestReload_failureHidesCredentials(t *testing.T) {
	reg := &fakeRegistry{reloadErr: errors.New(`binding "gpt-a": invalid api_key sk-live-12345`)}
	_, url := newTestServer(t, reg, &fakeRouter{})

	resp, body := get(t, url+"/reload")
	require.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, "重新加载配置失败: API configuration error", gjson.Get(body, "error.message").String())
	assert.NotContains(t, body, "api_key")
	assert.NotContains(t, body, "sk-live")
}

func TestUnknownRoute(t *testing.T) {
	_, url := newTestServer(t, &fakeRegistry{}, &fakeRouter{})
	resp, body := get(t, url+"/v2/engines")
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.JSONEq(t, `{"error":{"message":"Not Found","type":"invalid_request_error","code":"404"}}`, body)
}

func TestPreflight(t *testing.T) {
	_, url := newTestServer(t, &fakeRegistry{}, &fakeRouter{})

	req, err := http.NewRequest(http.MethodOptions, url+"/v1/chat/completions", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "GET, POST, OPTIONS", resp.Header.Get("Access-Control-Allow-Methods"))
	assert.Equal(t, "Content-Type, Authorization, X-Health-Check-Id, X-Health-Check-Time",
		resp.Header.Get("Access-Control-Allow-Headers"))
}

func TestPanicIsolation(t *testing.T) {
	rt := &fakeRouter{route: func(context.Context, string, *openai.ChatCompletionRequest) (*openai.ChatCompletionResponse, error) {
		panic("adapter blew up")
	}}
	_, url := newTestServer(t, &fakeRegistry{}, rt)

	resp, body := postChat(t, url, `{"model":"gpt-a","messages":[{"role":"user","content":"hi"}]}`)
	require.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.JSONEq(t, `{"error":{"message":"Internal server error","type":"server_error","code":"500"}}`, body)

	// The process keeps serving after the panic.
	resp, body = get(t, url+"/health")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"ok"}`, body)
}

func TestMetricsEndpoint(t *testing.T) {
	_, url := newTestServer(t, &fakeRegistry{}, &fakeRouter{})

	// A first request gives the duration histogram a sample to expose.
	_, _ = get(t, url+"/health")

	resp, body := get(t, url+"/metrics")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/plain")
	// The exposition may escape dotted names depending on content negotiation.
	if !strings.Contains(body, "http.server.request.duration") &&
		!strings.Contains(body, "http_server_request_duration") {
		t.Fatalf("request duration histogram missing from exposition:\n%s", body)
	}
}

func TestSanitizeError(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "plain", in: "connection refused", want: "connection refused"},
		{name: "api key", in: "401 Unauthorized: invalid API key", want: "API configuration error"},
		{name: "api_key", in: "missing api_key in request", want: "API configuration error"},
		{name: "mixed case", in: "bad API Key provided", want: "API configuration error"},
		{name: "truncated", in: strings.Repeat("x", 250), want: strings.Repeat("x", 200) + "..."},
		{name: "at limit", in: strings.Repeat("y", 200), want: strings.Repeat("y", 200)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, sanitizeError(tt.in))
		})
	}
}
