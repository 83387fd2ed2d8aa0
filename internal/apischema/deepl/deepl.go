// Copyright ModelGate Authors
// SPDX-License-Identifier: Apache-2.0
// The full text of the Apache license is available in the LICENSE file at
// the root of the repo.

// Package deepl holds the DeepL v2 translate API schema. The endpoint
// takes a form-encoded body rather than JSON.
package deepl

import "net/url"

// TranslateRequest represents a request to the v2/translate endpoint.
// https://developers.deepl.com/docs/api-reference/translate
type TranslateRequest struct {
	Text       []string `json:"text"`
	TargetLang string   `json:"target_lang"`
	SourceLang string   `json:"source_lang,omitempty"`
}

// Values renders the request as the form body DeepL expects. Repeated
// text keys carry multiple segments.
func (r *TranslateRequest) Values() url.Values {
	v := url.Values{}
	for _, t := range r.Text {
		v.Add("text", t)
	}
	v.Set("target_lang", r.TargetLang)
	if r.SourceLang != "" {
		v.Set("source_lang", r.SourceLang)
	}
	return v
}

// TranslateResponse is the success envelope.
type TranslateResponse struct {
	Translations []Translation `json:"translations"`

	// Message is set on API errors alongside a non-2xx status.
	Message string `json:"message,omitempty"`
}

// Translation is one translated segment.
type Translation struct {
	DetectedSourceLanguage string `json:"detected_source_language,omitempty"`
	Text                   string `json:"text"`
}
