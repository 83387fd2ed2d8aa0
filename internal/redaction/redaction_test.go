// Copyright ModelGate Authors
// SPDX-License-Identifier: Apache-2.0
// The full text of the Apache license is available in the LICENSE file at
// the root of the repo.

package redaction

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedactString(t *testing.T) {
	assert.Empty(t, RedactString(""))

	got := RedactString("sk-live-12345")
	require.Regexp(t, regexp.MustCompile(`^\[REDACTED LENGTH=13 HASH=[0-9a-f]{8}\]$`), got)
	assert.NotContains(t, got, "sk-live")

	// Identical input redacts identically; different input differs.
	assert.Equal(t, got, RedactString("sk-live-12345"))
	assert.NotEqual(t, got, RedactString("sk-live-67890"))
}

func TestContentHash(t *testing.T) {
	a := ContentHash("alpha")
	assert.Len(t, a, 8)
	assert.Equal(t, a, ContentHash("alpha"))
	assert.NotEqual(t, a, ContentHash("beta"))
}
