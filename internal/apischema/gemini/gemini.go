// Copyright ModelGate Authors
// SPDX-License-Identifier: Apache-2.0
// The full text of the Apache license is available in the LICENSE file at
// the root of the repo.

// Package gemini holds the subset of the Google Generative Language API
// schema the gateway speaks when dispatching to Gemini backends.
package gemini

// Harm categories that are switched off on every request. The gateway
// delegates content policy to the caller, not to the vendor defaults.
// https://ai.google.dev/api/generate-content#harmcategory
var SafetyCategories = []string{
	"HARM_CATEGORY_HARASSMENT",
	"HARM_CATEGORY_HATE_SPEECH",
	"HARM_CATEGORY_SEXUALLY_EXPLICIT",
	"HARM_CATEGORY_DANGEROUS_CONTENT",
	"HARM_CATEGORY_CIVIC_INTEGRITY",
}

// ThresholdBlockNone disables blocking for a safety category.
const ThresholdBlockNone = "BLOCK_NONE"

// GenerateContentRequest represents a request to the generateContent and
// streamGenerateContent methods.
// https://ai.google.dev/api/generate-content
type GenerateContentRequest struct {
	Contents []Content `json:"contents"`

	SafetySettings []SafetySetting `json:"safety_settings,omitempty"`

	GenerationConfig GenerationConfig `json:"generation_config"`

	// SystemInstruction is only honoured by models that support it; for the
	// rest, system content is folded into Contents.
	SystemInstruction *SystemInstruction `json:"system_instruction,omitempty"`

	Tools []Tool `json:"tools,omitempty"`
}

// Content is one conversation turn. Roles are "user" and "model".
type Content struct {
	Role  string `json:"role,omitempty"`
	Parts []Part `json:"parts"`
}

// Part is a "oneof" on the wire; at most one field is set.
type Part struct {
	Text         string        `json:"text,omitempty"`
	InlineData   *Blob         `json:"inlineData,omitempty"`
	FunctionCall *FunctionCall `json:"functionCall,omitempty"`
}

// Blob is inline media content.
type Blob struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

// FunctionCall is a tool invocation produced by the model.
type FunctionCall struct {
	Name string         `json:"name"`
	Args map[string]any `json:"args,omitempty"`
}

// SafetySetting overrides the blocking threshold for one harm category.
type SafetySetting struct {
	Category  string `json:"category"`
	Threshold string `json:"threshold"`
}

// GenerationConfig carries the sampling parameters.
// https://ai.google.dev/api/generate-content#generationconfig
type GenerationConfig struct {
	Temperature     *float64 `json:"temperature,omitempty"`
	TopP            *float64 `json:"topP,omitempty"`
	TopK            *int     `json:"topK,omitempty"`
	MaxOutputTokens *int64   `json:"maxOutputTokens,omitempty"`
	StopSequences   []string `json:"stopSequences,omitempty"`
}

// SystemInstruction is the developer-set system prompt.
type SystemInstruction struct {
	Parts []Part `json:"parts"`
}

// Tool wraps function declarations, which reuse the OpenAI function shape
// ({name, description, parameters}) verbatim.
type Tool struct {
	FunctionDeclarations []FunctionDeclaration `json:"function_declarations"`
}

// FunctionDeclaration describes one callable function.
type FunctionDeclaration struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

// GenerateContentResponse represents a response frame. Unary responses and
// stream frames share this shape.
// https://ai.google.dev/api/generate-content#generatecontentresponse
type GenerateContentResponse struct {
	Candidates []Candidate `json:"candidates"`

	// Error is set instead of candidates when the API rejects the request.
	Error *Status `json:"error,omitempty"`
}

// Candidate is one generated alternative.
type Candidate struct {
	Content      Content `json:"content"`
	FinishReason string  `json:"finishReason,omitempty"`
	Index        int     `json:"index,omitempty"`
}

// Status is the google.rpc.Status error envelope.
type Status struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Status  string `json:"status,omitempty"`
}
