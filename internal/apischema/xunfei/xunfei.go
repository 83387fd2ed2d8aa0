// Copyright ModelGate Authors
// SPDX-License-Identifier: Apache-2.0
// The full text of the Apache license is available in the LICENSE file at
// the root of the repo.

// Package xunfei holds the iFlytek Spark websocket chat API schema.
package xunfei

// Frame status values carried in payload.choices.status.
const (
	StatusFirst    = 0
	StatusContinue = 1
	StatusLast     = 2
)

// ChatRequest is one websocket request frame.
// https://www.xfyun.cn/doc/spark/Web.html
type ChatRequest struct {
	Header    RequestHeader `json:"header"`
	Parameter Parameter     `json:"parameter"`
	Payload   RequestLoad   `json:"payload"`
}

// RequestHeader identifies the calling application.
type RequestHeader struct {
	AppID string `json:"app_id"`
	UID   string `json:"uid,omitempty"`
}

// Parameter wraps the chat tuning block.
type Parameter struct {
	Chat Chat `json:"chat"`
}

// Chat carries the model domain and sampling controls. Spark bounds
// temperature to (0, 1] and top_k to [1, 6].
type Chat struct {
	Domain      string   `json:"domain"`
	Temperature *float64 `json:"temperature,omitempty"`
	TopK        *int     `json:"top_k,omitempty"`
	MaxTokens   *int64   `json:"max_tokens,omitempty"`
}

// RequestLoad wraps the conversation.
type RequestLoad struct {
	Message MessageLoad `json:"message"`
}

// MessageLoad holds the conversation turns.
type MessageLoad struct {
	Text []Message `json:"text"`
}

// Message is one conversation turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
	Index   int    `json:"index,omitempty"`
}

// ChatResponse is one websocket response frame. A non-zero header code
// signals a vendor error; status StatusLast marks the terminal frame,
// which also carries usage.
type ChatResponse struct {
	Header  ResponseHeader `json:"header"`
	Payload *ResponseLoad  `json:"payload,omitempty"`
}

// ResponseHeader carries the frame status and error code.
type ResponseHeader struct {
	Code    int    `json:"code"`
	Message string `json:"message,omitempty"`
	SID     string `json:"sid,omitempty"`
	Status  int    `json:"status"`
}

// ResponseLoad wraps the generated text and, on the terminal frame,
// usage.
type ResponseLoad struct {
	Choices *Choices `json:"choices,omitempty"`
	Usage   *Usage   `json:"usage,omitempty"`
}

// Choices is the delta block of one frame.
type Choices struct {
	Status int       `json:"status"`
	Seq    int       `json:"seq,omitempty"`
	Text   []Message `json:"text"`
}

// Usage wraps the token accounting block.
type Usage struct {
	Text TokenUsage `json:"text"`
}

// TokenUsage is the token accounting block.
type TokenUsage struct {
	QuestionTokens   int `json:"question_tokens,omitempty"`
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}
