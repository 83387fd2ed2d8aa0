// Copyright ModelGate Authors
// SPDX-License-Identifier: Apache-2.0
// The full text of the Apache license is available in the LICENSE file at
// the root of the repo.

package anthropic

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modelgate/modelgate/internal/json"
)

func TestResponseContentBlock_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name        string
		jsonStr     string
		wantText    string
		wantToolUse string
		wantErr     bool
	}{
		{
			name:     "text block",
			jsonStr:  `{"type":"text","text":"Hello!"}`,
			wantText: "Hello!",
		},
		{
			name:        "tool use block",
			jsonStr:     `{"type":"tool_use","id":"toolu_1","name":"get_weather","input":{"city":"Tokyo"}}`,
			wantToolUse: "get_weather",
		},
		{
			name:    "unknown block type is ignored",
			jsonStr: `{"type":"thinking","thinking":"..."}`,
		},
		{
			name:    "missing type is an error",
			jsonStr: `{"text":"no type"}`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var block ResponseContentBlock
			err := json.Unmarshal([]byte(tt.jsonStr), &block)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			if tt.wantText != "" {
				require.NotNil(t, block.Text)
				assert.Equal(t, tt.wantText, block.Text.Text)
			}
			if tt.wantToolUse != "" {
				require.NotNil(t, block.ToolUse)
				assert.Equal(t, tt.wantToolUse, block.ToolUse.Name)
			}
		})
	}
}

func TestMessagesResponse_Unmarshal(t *testing.T) {
	body := `{
		"id": "msg_01XFDUDYJgAACzvnptvVoYEL",
		"type": "message",
		"role": "assistant",
		"model": "claude-3-5-sonnet-20240620",
		"content": [{"type": "text", "text": "Hi there."}],
		"stop_reason": "end_turn",
		"usage": {"input_tokens": 12, "output_tokens": 6}
	}`
	var resp MessagesResponse
	require.NoError(t, json.Unmarshal([]byte(body), &resp))

	assert.Equal(t, "msg_01XFDUDYJgAACzvnptvVoYEL", resp.ID)
	assert.Equal(t, "end_turn", resp.StopReason)
	require.Len(t, resp.Content, 1)
	require.NotNil(t, resp.Content[0].Text)
	assert.Equal(t, "Hi there.", resp.Content[0].Text.Text)
	require.NotNil(t, resp.Usage)
	assert.InDelta(t, 12.0, resp.Usage.InputTokens, 0)
	assert.InDelta(t, 6.0, resp.Usage.OutputTokens, 0)
}

func TestStreamEvent_Unmarshal(t *testing.T) {
	tests := []struct {
		name     string
		jsonStr  string
		wantType string
		check    func(t *testing.T, ev StreamEvent)
	}{
		{
			name:     "message_start carries the initial message",
			jsonStr:  `{"type":"message_start","message":{"id":"msg_1","type":"message","role":"assistant","model":"claude-3","content":[],"usage":{"input_tokens":25,"output_tokens":1}}}`,
			wantType: StreamEventMessageStart,
			check: func(t *testing.T, ev StreamEvent) {
				require.NotNil(t, ev.Message)
				assert.Equal(t, "msg_1", ev.Message.ID)
				require.NotNil(t, ev.Message.Usage)
				assert.InDelta(t, 25.0, ev.Message.Usage.InputTokens, 0)
			},
		},
		{
			name:     "content_block_delta carries a text fragment",
			jsonStr:  `{"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"Hel"}}`,
			wantType: StreamEventContentBlockDelta,
			check: func(t *testing.T, ev StreamEvent) {
				require.NotNil(t, ev.Delta)
				assert.Equal(t, "Hel", ev.Delta.Text)
			},
		},
		{
			name:     "message_delta carries stop reason and usage",
			jsonStr:  `{"type":"message_delta","delta":{"stop_reason":"end_turn","stop_sequence":null},"usage":{"output_tokens":15}}`,
			wantType: StreamEventMessageDelta,
			check: func(t *testing.T, ev StreamEvent) {
				require.NotNil(t, ev.Delta)
				assert.Equal(t, "end_turn", ev.Delta.StopReason)
				require.NotNil(t, ev.Usage)
				assert.InDelta(t, 15.0, ev.Usage.OutputTokens, 0)
			},
		},
		{
			name:     "ping",
			jsonStr:  `{"type":"ping"}`,
			wantType: StreamEventPing,
			check:    func(t *testing.T, ev StreamEvent) {},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var ev StreamEvent
			require.NoError(t, json.Unmarshal([]byte(tt.jsonStr), &ev))
			assert.Equal(t, tt.wantType, ev.Type)
			tt.check(t, ev)
		})
	}
}
