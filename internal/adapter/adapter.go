// Copyright ModelGate Authors
// SPDX-License-Identifier: Apache-2.0
// The full text of the Apache license is available in the LICENSE file at
// the root of the repo.

// Package adapter dispatches canonical chat requests to one backend each.
// An adapter owns a transport (HTTP, child process or websocket) and, where
// the backend speaks a non-OpenAI dialect, drives a translator to convert
// the exchange. All adapters are safe for concurrent use.
package adapter

import (
	"context"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/modelgate/modelgate/internal/apischema/openai"
	"github.com/modelgate/modelgate/internal/modelconfig"
)

// FamilyWebsocketXunfei is the family the websocket adapter reports. Spark
// is the only websocket backend, so the family names the vendor.
const FamilyWebsocketXunfei = "websocket_xunfei"

// Adapter serves the chat contract for one model binding.
type Adapter interface {
	// Chat performs one unary exchange. The binding timeout applies as a
	// context deadline.
	Chat(ctx context.Context, req *openai.ChatCompletionRequest) (*openai.ChatCompletionResponse, error)
	// ChatStream starts a streaming exchange. The returned stream delivers
	// its terminal chunk and then reports io.EOF; the caller must Close it.
	ChatStream(ctx context.Context, req *openai.ChatCompletionRequest) (Stream, error)
	// Family names the adapter family for /v1/models ownership.
	Family() string
	// Available reports nil when the binding carries everything the
	// adapter needs; the error names the missing prerequisite.
	Available() error
}

// Stream is a finite, non-restartable sequence of chat chunks. Recv returns
// io.EOF after the terminal chunk; at most one chunk in the stream carries
// usage.
type Stream interface {
	Recv() (*openai.ChatCompletionChunk, error)
	Close() error
}

// New constructs the adapter for a binding's family.
func New(binding *modelconfig.Binding) (Adapter, error) {
	switch binding.Adapter {
	case modelconfig.AdapterOpenAICompat:
		return newOpenAICompat(binding), nil
	case modelconfig.AdapterCustomHTTP:
		return newCustomHTTP(binding)
	case modelconfig.AdapterProcess:
		return newProcess(binding), nil
	case modelconfig.AdapterWebsocket, FamilyWebsocketXunfei:
		return newWebsocket(binding), nil
	default:
		return nil, fmt.Errorf("unknown adapter family %q", binding.Adapter)
	}
}

// HTTPError is a non-2xx upstream status. The retry engine classifies it by
// code, so transported failures keep their HTTP semantics even when the
// vendor body is unreadable.
type HTTPError struct {
	StatusCode int
	Message    string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("upstream returned HTTP %d: %s", e.StatusCode, e.Message)
}

const httpErrorBodyLimit = 512

// newHTTPError extracts the most specific message the error body offers.
// The paths cover the OpenAI envelope, Tencent's Response wrapper and the
// flat message/error_msg variants before falling back to the raw body.
func newHTTPError(statusCode int, body []byte) *HTTPError {
	var msg string
	for _, path := range []string{"error.message", "Response.Error.Message", "error_msg", "message"} {
		if v := gjson.GetBytes(body, path); v.Exists() && v.String() != "" {
			msg = v.String()
			break
		}
	}
	if msg == "" {
		msg = strings.TrimSpace(string(body))
		if len(msg) > httpErrorBodyLimit {
			msg = msg[:httpErrorBodyLimit]
		}
	}
	if msg == "" {
		msg = "no response body"
	}
	return &HTTPError{StatusCode: statusCode, Message: msg}
}

// resolveKey expands an ENV: reference and clears the "not-needed"
// placeholder local backends use.
func resolveKey(key string) string {
	key = modelconfig.ResolveEnv(key)
	if key == "not-needed" {
		return ""
	}
	return key
}
