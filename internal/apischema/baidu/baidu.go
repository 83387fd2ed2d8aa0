// Copyright ModelGate Authors
// SPDX-License-Identifier: Apache-2.0
// The full text of the Apache license is available in the LICENSE file at
// the root of the repo.

// Package baidu holds the Baidu Qianfan (ERNIE) chat API schema.
package baidu

// ChatRequest represents a request to an ERNIE chat endpoint.
// https://cloud.baidu.com/doc/WENXINWORKSHOP/s/clntwmv7t
type ChatRequest struct {
	Messages []Message `json:"messages"`

	// System rides outside the message list, unlike OpenAI.
	System string `json:"system,omitempty"`

	Temperature *float64 `json:"temperature,omitempty"`
	TopP        *float64 `json:"top_p,omitempty"`

	// PenaltyScore maps from the OpenAI frequency penalty. Qianfan accepts
	// [1.0, 2.0].
	PenaltyScore *float64 `json:"penalty_score,omitempty"`

	MaxOutputTokens *int64 `json:"max_output_tokens,omitempty"`

	Stream bool `json:"stream"`

	UserID string `json:"user_id,omitempty"`
}

// Message is one conversation turn. Roles are "user" and "assistant";
// ERNIE requires strict alternation starting with "user".
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatResponse is both the unary envelope and the SSE frame shape.
// Errors surface as ErrorCode/ErrorMsg instead of an HTTP status.
type ChatResponse struct {
	ID               string `json:"id,omitempty"`
	Object           string `json:"object,omitempty"`
	Created          int64  `json:"created,omitempty"`
	Result           string `json:"result"`
	IsEnd            bool   `json:"is_end,omitempty"`
	IsTruncated      bool   `json:"is_truncated,omitempty"`
	NeedClearHistory bool   `json:"need_clear_history,omitempty"`
	Usage            *Usage `json:"usage,omitempty"`

	ErrorCode int    `json:"error_code,omitempty"`
	ErrorMsg  string `json:"error_msg,omitempty"`
}

// Usage is the token accounting block.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// TokenResponse is the OAuth2 client-credentials grant response.
// https://cloud.baidu.com/doc/WENXINWORKSHOP/s/Ilkkrb0i5
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`

	Error            string `json:"error,omitempty"`
	ErrorDescription string `json:"error_description,omitempty"`
}
