// Copyright ModelGate Authors
// SPDX-License-Identifier: Apache-2.0
// The full text of the Apache license is available in the LICENSE file at
// the root of the repo.

// Package translator converts between the canonical OpenAI chat schema and
// the wire dialects of the supported backends. One translator instance
// serves one request; RequestBody must run first since it records the
// request mode the other methods depend on.
package translator

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/modelgate/modelgate/internal/apischema/openai"
	"github.com/modelgate/modelgate/internal/modelconfig"
)

// ErrStreamingUnsupported is returned by ResponseChunk when the backend has
// no stream dialect; the adapter then folds the unary response into a
// single terminal chunk.
var ErrStreamingUnsupported = errors.New("streaming is not supported by this backend")

// UpstreamError is a vendor error envelope carried inside an otherwise
// successful HTTP exchange.
type UpstreamError struct {
	Vendor  string
	Code    string
	Message string
}

func (e *UpstreamError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("%s error: %s", e.Vendor, e.Message)
	}
	return fmt.Sprintf("%s error %s: %s", e.Vendor, e.Code, e.Message)
}

// OpenAIChatTranslator translates one chat completion exchange.
//
// Call order per request: RequestBody, then RequestPath and RequestHeaders,
// then ResponseBody (unary) or ResponseChunk per inbound frame (streaming).
type OpenAIChatTranslator interface {
	// RequestBody renders the backend request body and records whether the
	// exchange streams.
	RequestBody(req *openai.ChatCompletionRequest) ([]byte, error)
	// RequestPath resolves the full request URL from the binding's base URL
	// and optional endpoint override.
	RequestPath(baseURL, endpoint string) (string, error)
	// RequestHeaders returns the static vendor headers for the rendered
	// body. Credentials that require minting or signing are applied by
	// backendauth instead.
	RequestHeaders(body []byte) (http.Header, error)
	// ResponseBody parses a unary backend response. Vendor error envelopes
	// surface as *UpstreamError.
	ResponseBody(body []byte) (*openai.ChatCompletionResponse, error)
	// ResponseChunk parses one stream frame. A nil chunk with nil error
	// skips the frame; a chunk with a non-empty finish reason is terminal.
	ResponseChunk(frame []byte) (*openai.ChatCompletionChunk, error)
}

// New returns the translator for the given request format. The format
// normally comes from the binding's request_format field; it is split out
// so adapters can pin a dialect regardless of configuration.
func New(requestFormat string, binding *modelconfig.Binding) (OpenAIChatTranslator, error) {
	format := strings.ToLower(requestFormat)
	switch format {
	case "anthropic":
		return newAnthropicTranslator(binding), nil
	case "gemini":
		return newGeminiTranslator(binding), nil
	case "zhipu":
		return newZhipuTranslator(binding), nil
	case "baidu":
		return newBaiduTranslator(binding), nil
	case "ali", "alibailian":
		return newAliTranslator(binding), nil
	case "tencent":
		return newTencentTranslator(binding), nil
	case "cohere":
		return newCohereTranslator(binding), nil
	case "coze":
		return newCozeTranslator(binding), nil
	case "deepl":
		return newDeepLTranslator(binding), nil
	case "moonshot", "minimax", "doubao":
		return newThinOpenAITranslator(format, binding), nil
	default:
		return nil, fmt.Errorf("unknown request format %q", requestFormat)
	}
}

// unaryOnlyFormats have no streaming wire dialect; their ResponseChunk
// returns ErrStreamingUnsupported unconditionally.
var unaryOnlyFormats = map[string]bool{
	"zhipu": true,
	"coze":  true,
	"deepl": true,
}

// SupportsStreaming reports whether the format's backend can stream. The
// adapters fold unary responses into a single terminal chunk for the rest.
func SupportsStreaming(requestFormat string) bool {
	return !unaryOnlyFormats[strings.ToLower(requestFormat)]
}

// joinPath glues a base URL and a path without doubling the slash.
func joinPath(baseURL, path string) string {
	return strings.TrimSuffix(baseURL, "/") + "/" + strings.TrimPrefix(path, "/")
}

// resolveEndpoint picks the configured endpoint over the dialect default
// and substitutes the {model} placeholder.
func resolveEndpoint(endpoint, fallback, model string) string {
	if endpoint == "" {
		endpoint = fallback
	}
	return strings.ReplaceAll(endpoint, "{model}", model)
}
