// Copyright ModelGate Authors
// SPDX-License-Identifier: Apache-2.0
// The full text of the Apache license is available in the LICENSE file at
// the root of the repo.

package adapter

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/modelgate/modelgate/internal/apischema/openai"
	"github.com/modelgate/modelgate/internal/backendauth"
	"github.com/modelgate/modelgate/internal/modelconfig"
	"github.com/modelgate/modelgate/internal/translator"
)

const (
	wsHandshakeTimeout = 30 * time.Second
	wsCloseGrace       = time.Second
)

// wsAdapter serves the Spark websocket protocol: one dialed connection per
// request carrying a single signed exchange. Connections are not pooled and
// no pings are sent; the vendor drives keepalives.
type wsAdapter struct {
	binding   *modelconfig.Binding
	appID     string
	apiKey    string
	apiSecret string
	dialer    *websocket.Dialer
}

func newWebsocket(binding *modelconfig.Binding) *wsAdapter {
	return &wsAdapter{
		binding:   binding,
		appID:     resolveKey(binding.Config.AppID),
		apiKey:    resolveKey(binding.APIKey),
		apiSecret: resolveKey(binding.Config.APISecret),
		dialer:    &websocket.Dialer{HandshakeTimeout: wsHandshakeTimeout},
	}
}

// Family implements [Adapter.Family].
func (a *wsAdapter) Family() string { return FamilyWebsocketXunfei }

// Available implements [Adapter.Available].
func (a *wsAdapter) Available() error {
	switch {
	case a.apiKey == "":
		return errors.New("missing api_key")
	case a.apiSecret == "":
		return errors.New("missing config.api_secret")
	case a.appID == "":
		return errors.New("missing config.app_id")
	}
	return nil
}

// Chat implements [Adapter.Chat] by draining the stream into one response.
func (a *wsAdapter) Chat(ctx context.Context, req *openai.ChatCompletionRequest) (*openai.ChatCompletionResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, a.binding.TimeoutDuration())
	defer cancel()

	stream, err := a.ChatStream(ctx, req)
	if err != nil {
		return nil, err
	}
	defer stream.Close()

	var content strings.Builder
	var usage *openai.Usage
	finishReason := openai.FinishReasonStop
	resp := &openai.ChatCompletionResponse{
		Object:  openai.ObjectChatCompletion,
		Created: time.Now().Unix(),
		Model:   a.binding.Model,
	}
	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		if resp.ID == "" {
			resp.ID = chunk.ID
		}
		if len(chunk.Choices) > 0 {
			content.WriteString(chunk.Choices[0].Delta.Content)
			if chunk.Choices[0].FinishReason != "" {
				finishReason = chunk.Choices[0].FinishReason
			}
		}
		if chunk.Usage != nil {
			usage = chunk.Usage
		}
	}

	if resp.ID == "" {
		resp.ID = fmt.Sprintf("chatcmpl-%d", time.Now().Unix())
	}
	resp.Choices = []openai.ChatCompletionChoice{{
		Message: openai.ChatCompletionMessage{
			Role:    "assistant",
			Content: content.String(),
		},
		FinishReason: finishReason,
	}}
	resp.Usage = usage
	return resp, nil
}

// ChatStream implements [Adapter.ChatStream]: sign the URL, dial, send the
// single request frame and hand the connection to the stream.
func (a *wsAdapter) ChatStream(ctx context.Context, req *openai.ChatCompletionRequest) (Stream, error) {
	tr := translator.NewXunfei(a.binding)
	frame, err := tr.RequestBody(req)
	if err != nil {
		return nil, err
	}
	rawURL, err := tr.RequestPath(toWebsocketURL(a.binding.BaseURL), a.binding.Endpoint)
	if err != nil {
		return nil, err
	}
	signedURL, err := backendauth.SignSparkURL(rawURL, a.apiKey, a.apiSecret, time.Now())
	if err != nil {
		return nil, err
	}

	conn, resp, err := a.dialer.DialContext(ctx, signedURL, nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("websocket dial failed: %w (HTTP %d)", err, resp.StatusCode)
		}
		return nil, fmt.Errorf("websocket dial failed: %w", err)
	}
	// The dial context stops mattering once the handshake is done, so the
	// caller's deadline and cancellation are re-applied to the connection.
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetReadDeadline(deadline)
	}
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })

	if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		stop()
		conn.Close()
		return nil, fmt.Errorf("websocket write failed: %w", err)
	}
	return &wsStream{conn: conn, translate: tr.ResponseChunk, stop: stop}, nil
}

// toWebsocketURL swaps an HTTP scheme for the websocket one so bindings may
// carry either form in base_url.
func toWebsocketURL(base string) string {
	if rest, ok := strings.CutPrefix(base, "https://"); ok {
		return "wss://" + rest
	}
	if rest, ok := strings.CutPrefix(base, "http://"); ok {
		return "ws://" + rest
	}
	return base
}

// wsStream adapts a dialed connection to the Stream contract. The vendor
// reports running usage totals on interim frames; the latest total is held
// back and surfaces only on the terminal chunk.
type wsStream struct {
	conn      *websocket.Conn
	translate func(frame []byte) (*openai.ChatCompletionChunk, error)
	stop      func() bool

	usage *openai.Usage
	done  bool
}

// Recv implements [Stream.Recv].
func (s *wsStream) Recv() (*openai.ChatCompletionChunk, error) {
	if s.done {
		return nil, io.EOF
	}
	for {
		_, frame, err := s.conn.ReadMessage()
		if err != nil {
			s.done = true
			return nil, fmt.Errorf("websocket read failed: %w", err)
		}
		chunk, err := s.translate(frame)
		if err != nil {
			s.done = true
			return nil, err
		}
		if chunk == nil {
			continue
		}
		if chunk.Usage != nil {
			s.usage = chunk.Usage
		}
		if len(chunk.Choices) > 0 && chunk.Choices[0].FinishReason != "" {
			s.done = true
			chunk.Usage = s.usage
			return chunk, nil
		}
		chunk.Usage = nil
		return chunk, nil
	}
}

// Close implements [Stream.Close]: a best-effort close frame, then the hard
// close.
func (s *wsStream) Close() error {
	if s.stop != nil {
		s.stop()
	}
	_ = s.conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(wsCloseGrace),
	)
	return s.conn.Close()
}
