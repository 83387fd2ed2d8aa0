// Copyright ModelGate Authors
// SPDX-License-Identifier: Apache-2.0
// The full text of the Apache license is available in the LICENSE file at
// the root of the repo.

// Package zhipu holds the Zhipu GLM open-platform API schema
// (the pre-v4 SSE-less invoke endpoint).
package zhipu

// InvokeRequest represents a request to the model invoke endpoint.
// https://open.bigmodel.cn/dev/api
type InvokeRequest struct {
	Prompt []Message `json:"prompt"`

	Temperature *float64 `json:"temperature,omitempty"`
	TopP        *float64 `json:"top_p,omitempty"`

	// Incremental selects delta frames over cumulative ones. The invoke
	// endpoint is unary, so this is always sent as false.
	Incremental bool `json:"incremental"`
}

// Message is one conversation turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// InvokeResponse is the non-streaming envelope. Code 200 signals success;
// everything else carries a vendor error in Msg.
type InvokeResponse struct {
	Code    int    `json:"code"`
	Msg     string `json:"msg"`
	Success bool   `json:"success"`
	Data    *Data  `json:"data,omitempty"`
}

// Data wraps the generated choices and token accounting.
type Data struct {
	RequestID  string   `json:"request_id,omitempty"`
	TaskID     string   `json:"task_id,omitempty"`
	TaskStatus string   `json:"task_status,omitempty"`
	Choices    []Choice `json:"choices"`
	Usage      *Usage   `json:"usage,omitempty"`
}

// Choice is one generated alternative. Content arrives JSON-quoted from
// some GLM models, so consumers strip surrounding quotes before use.
type Choice struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Usage is the token accounting block.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}
