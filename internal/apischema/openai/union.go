// Copyright ModelGate Authors
// SPDX-License-Identifier: Apache-2.0
// The full text of the Apache license is available in the LICENSE file at
// the root of the repo.

package openai

import (
	"fmt"
	"strconv"

	"github.com/modelgate/modelgate/internal/json"
)

// unmarshalJSONStringOrStrings decodes a union that is either a JSON string
// or an array of strings, without reflection on the hot path.
func unmarshalJSONStringOrStrings(typ string, data []byte) (interface{}, error) {
	idx, err := skipLeadingWhitespace(typ, data)
	if err != nil {
		return nil, err
	}

	switch data[idx] {
	case '"':
		return unquoteOrUnmarshalJSONString(typ, data)

	case '[':
		var strs []string
		if err := json.Unmarshal(data, &strs); err != nil {
			return nil, fmt.Errorf("cannot unmarshal %s as []string: %w", typ, err)
		}
		return strs, nil

	default:
		return nil, fmt.Errorf("invalid %s type (must be string or array)", typ)
	}
}

// skipLeadingWhitespace is unlikely to return anything except zero, but this
// allows us to use strconv.Unquote for the fast path.
func skipLeadingWhitespace(typ string, data []byte) (int, error) {
	idx := 0
	for idx < len(data) && (data[idx] == ' ' || data[idx] == '\t' || data[idx] == '\n' || data[idx] == '\r') {
		idx++
	}
	if idx >= len(data) {
		return 0, fmt.Errorf("empty %s data", typ)
	}
	return idx, nil
}

func unquoteOrUnmarshalJSONString(typ string, data []byte) (string, error) {
	// Fast-path parse normal quoted string.
	s, err := strconv.Unquote(string(data))
	if err == nil {
		return s, nil
	}

	// strconv.Unquote rejects some valid JSON escapes such as `\/`, so fall
	// back to the full decoder on failure.
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return "", fmt.Errorf("cannot unmarshal %s as string: %w", typ, err)
	}
	return str, nil
}
