// Copyright ModelGate Authors
// SPDX-License-Identifier: Apache-2.0
// The full text of the Apache license is available in the LICENSE file at
// the root of the repo.

// Package redaction masks credential values for debug logging.
package redaction

import (
	"fmt"
	"hash/crc32"
)

// ContentHash returns an 8-hex-character fingerprint of s. Identical
// values fingerprint identically across log lines, so redacted entries
// stay correlatable. CRC32, not cryptographic.
func ContentHash(s string) string {
	return fmt.Sprintf("%08x", crc32.ChecksumIEEE([]byte(s)))
}

// RedactString replaces s with a placeholder carrying only its length and
// fingerprint, in the form [REDACTED LENGTH=n HASH=xxxxxxxx]. An empty
// string stays empty.
func RedactString(s string) string {
	if s == "" {
		return ""
	}
	return fmt.Sprintf("[REDACTED LENGTH=%d HASH=%s]", len(s), ContentHash(s))
}
