// Copyright ModelGate Authors
// SPDX-License-Identifier: Apache-2.0
// The full text of the Apache license is available in the LICENSE file at
// the root of the repo.

package adapter

import (
	"encoding/base64"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/modelgate/modelgate/internal/apischema/openai"
	"github.com/modelgate/modelgate/internal/modelconfig"
	"github.com/modelgate/modelgate/internal/translator"
)

func sparkBinding(baseURL string) *modelconfig.Binding {
	return &modelconfig.Binding{
		ID:      "spark",
		Adapter: modelconfig.AdapterWebsocket,
		BaseURL: baseURL,
		Model:   "spark-3.5",
		APIKey:  "spark-key",
		Timeout: 30,
		Config: modelconfig.VendorConfig{
			AppID:     "app-1",
			APISecret: "spark-secret",
		},
	}
}

// sparkServer upgrades one connection, checks the signed URL and the request
// frame, then plays back the given response frames.
func sparkServer(t *testing.T, frames ...string) *httptest.Server {
	upgrader := websocket.Upgrader{}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v3.5/chat", r.URL.Path)
		q := r.URL.Query()
		assert.NotEmpty(t, q.Get("date"))
		assert.NotEmpty(t, q.Get("host"))
		origin, err := base64.StdEncoding.DecodeString(q.Get("authorization"))
		assert.NoError(t, err)
		assert.Contains(t, string(origin), `hmac username="spark-key"`)

		conn, err := upgrader.Upgrade(w, r, nil)
		if !assert.NoError(t, err) {
			return
		}
		defer conn.Close()

		_, frame, err := conn.ReadMessage()
		if !assert.NoError(t, err) {
			return
		}
		assert.Equal(t, "app-1", gjson.GetBytes(frame, "header.app_id").String())
		assert.Equal(t, "generalv3.5", gjson.GetBytes(frame, "parameter.chat.domain").String())
		assert.Equal(t, "hi", gjson.GetBytes(frame, "payload.message.text.0.content").String())

		for _, f := range frames {
			assert.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(f)))
		}
	}))
}

const (
	sparkFirstFrame = `{"header":{"code":0,"status":1},"payload":{"choices":{"status":0,"seq":0,"text":[{"role":"assistant","content":"He"}]}}}`
	// Spark reports running totals on interim frames.
	sparkInterimUsageFrame = `{"header":{"code":0,"status":1},"payload":{"choices":{"status":1,"seq":1,"text":[{"content":"llo"}]},"usage":{"text":{"prompt_tokens":2,"completion_tokens":1,"total_tokens":3}}}}`
	sparkLastFrame         = `{"header":{"code":0,"status":2},"payload":{"choices":{"status":2,"seq":2,"text":[{"content":"!"}]},"usage":{"text":{"prompt_tokens":2,"completion_tokens":4,"total_tokens":6}}}}`
	sparkErrorFrame        = `{"header":{"code":10013,"message":"input contains sensitive words","status":2}}`
)

func TestWebsocket_ChatStream(t *testing.T) {
	srv := sparkServer(t, sparkFirstFrame, sparkInterimUsageFrame, sparkLastFrame)
	defer srv.Close()

	a := newWebsocket(sparkBinding(srv.URL))
	stream, err := a.ChatStream(t.Context(), textRequest("spark", "hi"))
	require.NoError(t, err)
	defer stream.Close()

	chunk, err := stream.Recv()
	require.NoError(t, err)
	assert.Equal(t, "He", chunk.Choices[0].Delta.Content)
	assert.Empty(t, chunk.Choices[0].FinishReason)
	assert.Nil(t, chunk.Usage)

	// The interim running total is held back, not surfaced mid-stream.
	chunk, err = stream.Recv()
	require.NoError(t, err)
	assert.Equal(t, "llo", chunk.Choices[0].Delta.Content)
	assert.Nil(t, chunk.Usage)

	chunk, err = stream.Recv()
	require.NoError(t, err)
	assert.Equal(t, "!", chunk.Choices[0].Delta.Content)
	assert.Equal(t, openai.FinishReasonStop, chunk.Choices[0].FinishReason)
	require.NotNil(t, chunk.Usage)
	assert.Equal(t, 6, chunk.Usage.TotalTokens)

	_, err = stream.Recv()
	assert.Equal(t, io.EOF, err)
}

func TestWebsocket_Chat(t *testing.T) {
	srv := sparkServer(t, sparkFirstFrame, sparkInterimUsageFrame, sparkLastFrame)
	defer srv.Close()

	a := newWebsocket(sparkBinding(srv.URL))
	resp, err := a.Chat(t.Context(), textRequest("spark", "hi"))
	require.NoError(t, err)
	assert.NotEmpty(t, resp.ID)
	assert.Equal(t, "spark-3.5", resp.Model)
	require.Len(t, resp.Choices, 1)
	assert.Equal(t, "Hello!", resp.Choices[0].Message.Content)
	assert.Equal(t, openai.FinishReasonStop, resp.Choices[0].FinishReason)
	require.NotNil(t, resp.Usage)
	assert.Equal(t, 6, resp.Usage.TotalTokens)
}

func TestWebsocket_vendorError(t *testing.T) {
	srv := sparkServer(t, sparkErrorFrame)
	defer srv.Close()

	a := newWebsocket(sparkBinding(srv.URL))
	_, err := a.Chat(t.Context(), textRequest("spark", "hi"))
	var upstream *translator.UpstreamError
	require.ErrorAs(t, err, &upstream)
	assert.Equal(t, "10013", upstream.Code)
	assert.Equal(t, "input contains sensitive words", upstream.Message)
}

func TestWebsocket_dialRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "no websocket here", http.StatusForbidden)
	}))
	defer srv.Close()

	a := newWebsocket(sparkBinding(srv.URL))
	_, err := a.ChatStream(t.Context(), textRequest("spark", "hi"))
	require.ErrorContains(t, err, "websocket dial failed")
	require.ErrorContains(t, err, "(HTTP 403)")
}

func TestWebsocket_Available(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*modelconfig.Binding)
		errMsg string
	}{
		{name: "ready", mutate: func(*modelconfig.Binding) {}},
		{
			name:   "missing api key",
			mutate: func(b *modelconfig.Binding) { b.APIKey = "" },
			errMsg: "missing api_key",
		},
		{
			name:   "missing api secret",
			mutate: func(b *modelconfig.Binding) { b.Config.APISecret = "" },
			errMsg: "missing config.api_secret",
		},
		{
			name:   "missing app id",
			mutate: func(b *modelconfig.Binding) { b.Config.AppID = "" },
			errMsg: "missing config.app_id",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			binding := sparkBinding("wss://spark-api.xf-yun.com")
			tt.mutate(binding)
			err := newWebsocket(binding).Available()
			if tt.errMsg == "" {
				assert.NoError(t, err)
			} else {
				assert.ErrorContains(t, err, tt.errMsg)
			}
		})
	}
}

func TestToWebsocketURL(t *testing.T) {
	assert.Equal(t, "wss://spark-api.xf-yun.com", toWebsocketURL("https://spark-api.xf-yun.com"))
	assert.Equal(t, "ws://localhost:8080", toWebsocketURL("http://localhost:8080"))
	assert.Equal(t, "wss://spark-api.xf-yun.com", toWebsocketURL("wss://spark-api.xf-yun.com"))
}
