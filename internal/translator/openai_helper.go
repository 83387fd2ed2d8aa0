// Copyright ModelGate Authors
// SPDX-License-Identifier: Apache-2.0
// The full text of the Apache license is available in the LICENSE file at
// the root of the repo.

package translator

import (
	"strings"

	"github.com/google/uuid"

	"github.com/modelgate/modelgate/internal/apischema/openai"
)

// newCompletionID mints a response id for vendors that do not return one.
func newCompletionID() string {
	return "chatcmpl-" + uuid.NewString()
}

// splitSystem separates system turns from the conversation. The system
// contents are flattened to text and joined with newlines; the remaining
// messages keep their order.
func splitSystem(messages []openai.Message) (system string, rest []openai.Message) {
	var parts []string
	rest = make([]openai.Message, 0, len(messages))
	for _, m := range messages {
		if m.Role == openai.MessageRoleSystem {
			if t := m.Content.Text(); t != "" {
				parts = append(parts, t)
			}
			continue
		}
		rest = append(rest, m)
	}
	return strings.Join(parts, "\n"), rest
}

// lastUserIndex returns the index of the last user turn, or -1.
func lastUserIndex(messages []openai.Message) int {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == openai.MessageRoleUser {
			return i
		}
	}
	return -1
}

// lastUserText returns the flattened text of the last user turn.
func lastUserText(messages []openai.Message) string {
	if i := lastUserIndex(messages); i >= 0 {
		return messages[i].Content.Text()
	}
	return ""
}

// usageFromTokens builds a usage block, deriving the total when the vendor
// does not report one.
func usageFromTokens(prompt, completion, total int) *openai.Usage {
	if total == 0 {
		total = prompt + completion
	}
	return &openai.Usage{
		PromptTokens:     prompt,
		CompletionTokens: completion,
		TotalTokens:      total,
	}
}
