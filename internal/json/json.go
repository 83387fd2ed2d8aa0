// Copyright ModelGate Authors
// SPDX-License-Identifier: Apache-2.0
// The full text of the Apache license is available in the LICENSE file at
// the root of the repo.

// Package json routes all JSON encoding through sonic. Tests run on the
// stdlib-compatible config so fixtures stay deterministic.
package json

import (
	"testing"

	sonicjson "github.com/bytedance/sonic"
)

var (
	Unmarshal     = sonicjson.ConfigDefault.Unmarshal
	Marshal       = sonicjson.ConfigDefault.Marshal
	Valid         = sonicjson.ConfigDefault.Valid
	MarshalIndent = sonicjson.ConfigDefault.MarshalIndent
)

func init() {
	if testing.Testing() {
		config := sonicjson.ConfigStd
		Unmarshal = config.Unmarshal
		Marshal = config.Marshal
	}
}
