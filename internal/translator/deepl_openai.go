// Copyright ModelGate Authors
// SPDX-License-Identifier: Apache-2.0
// The full text of the Apache license is available in the LICENSE file at
// the root of the repo.

package translator

import (
	"net/http"
	"strings"

	"github.com/modelgate/modelgate/internal/apischema/deepl"
	"github.com/modelgate/modelgate/internal/apischema/openai"
	"github.com/modelgate/modelgate/internal/json"
	"github.com/modelgate/modelgate/internal/modelconfig"
)

// newDeepLTranslator exposes the DeepL translation API as a chat backend:
// the newest message is translated into the language encoded in the model
// name ("deepl-<lang>").
func newDeepLTranslator(binding *modelconfig.Binding) *deeplTranslator {
	return &deeplTranslator{binding: binding}
}

type deeplTranslator struct {
	binding *modelconfig.Binding
}

// RequestBody implements [OpenAIChatTranslator.RequestBody]. The body is
// form-encoded rather than JSON.
func (d *deeplTranslator) RequestBody(req *openai.ChatCompletionRequest) ([]byte, error) {
	var text string
	if len(req.Messages) > 0 {
		text = req.Messages[len(req.Messages)-1].Content.Text()
	}
	out := &deepl.TranslateRequest{
		Text:       []string{text},
		TargetLang: deeplTargetLang(d.binding.Model),
	}
	return []byte(out.Values().Encode()), nil
}

// deeplTargetLang extracts the target language from a "deepl-<lang>" model
// name. Bare "EN" is ambiguous to DeepL and widened to "EN-US".
func deeplTargetLang(model string) string {
	lang, ok := strings.CutPrefix(model, "deepl-")
	if !ok {
		return "EN-US"
	}
	lang = strings.ToUpper(lang)
	if lang == "EN" {
		return "EN-US"
	}
	return lang
}

// RequestPath implements [OpenAIChatTranslator.RequestPath].
func (d *deeplTranslator) RequestPath(baseURL, endpoint string) (string, error) {
	return joinPath(baseURL, resolveEndpoint(endpoint, "/v2/translate", d.binding.Model)), nil
}

// RequestHeaders implements [OpenAIChatTranslator.RequestHeaders].
func (d *deeplTranslator) RequestHeaders([]byte) (http.Header, error) {
	key := d.binding.APIKey
	if key == "not-needed" {
		key = ""
	}
	h := http.Header{}
	h.Set("Content-Type", "application/x-www-form-urlencoded")
	h.Set("Authorization", "DeepL-Auth-Key "+key)
	return h, nil
}

// ResponseBody implements [OpenAIChatTranslator.ResponseBody]. A body that
// is not JSON is taken as the translated text itself; some DeepL-compatible
// servers answer in plain text.
func (d *deeplTranslator) ResponseBody(body []byte) (*openai.ChatCompletionResponse, error) {
	var content string
	var resp deepl.TranslateResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		content = string(body)
	} else {
		// Errors carry a bare message without translations.
		if resp.Message != "" && len(resp.Translations) == 0 {
			return nil, &UpstreamError{Vendor: "deepl", Message: resp.Message}
		}
		if len(resp.Translations) > 0 {
			content = resp.Translations[0].Text
		}
	}
	return &openai.ChatCompletionResponse{
		ID:     "deepl-translation",
		Object: openai.ObjectChatCompletion,
		Model:  d.binding.Model,
		Choices: []openai.ChatCompletionChoice{{
			Message: openai.ChatCompletionMessage{
				Role:    "assistant",
				Content: content,
			},
			FinishReason: openai.FinishReasonStop,
		}},
	}, nil
}

// ResponseChunk implements [OpenAIChatTranslator.ResponseChunk]. DeepL has
// no stream dialect.
func (d *deeplTranslator) ResponseChunk([]byte) (*openai.ChatCompletionChunk, error) {
	return nil, ErrStreamingUnsupported
}
