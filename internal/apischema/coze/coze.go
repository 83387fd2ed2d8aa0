// Copyright ModelGate Authors
// SPDX-License-Identifier: Apache-2.0
// The full text of the Apache license is available in the LICENSE file at
// the root of the repo.

// Package coze holds the Coze open API chat schema (v2).
package coze

// ChatRequest represents a request to the open_api/v2/chat endpoint.
// https://www.coze.com/docs/developer_guides/chat
type ChatRequest struct {
	// BotID is the bare bot identifier; "bot-" model-name prefixes are
	// stripped before this is filled.
	BotID string `json:"bot_id"`

	ConversationID string `json:"conversation_id,omitempty"`
	User           string `json:"user,omitempty"`

	// Query is the latest user turn; earlier turns go to ChatHistory.
	Query       string    `json:"query"`
	ChatHistory []Message `json:"chat_history,omitempty"`

	Stream bool `json:"stream"`
}

// Message is one conversation turn. Type distinguishes the bot's final
// answer from follow-up suggestions and tool traffic.
type Message struct {
	Role        string `json:"role"`
	Type        string `json:"type,omitempty"`
	Content     string `json:"content"`
	ContentType string `json:"content_type,omitempty"`
	StopReason  string `json:"stop_reason,omitempty"`
}

// Message types the gateway cares about.
const (
	MessageTypeAnswer = "answer"
)

// ChatResponse is the non-streaming envelope. Code 0 signals success.
type ChatResponse struct {
	ConversationID string    `json:"conversation_id,omitempty"`
	Messages       []Message `json:"messages"`
	Code           int       `json:"code"`
	Msg            string    `json:"msg,omitempty"`
}
