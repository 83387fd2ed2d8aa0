// Copyright ModelGate Authors
// SPDX-License-Identifier: Apache-2.0
// The full text of the Apache license is available in the LICENSE file at
// the root of the repo.

// Package backendauth implements the per-vendor authentication schemes that
// cannot be expressed as static request headers: minted tokens (Zhipu JWT,
// Baidu OAuth), request signatures over the rendered body (Tencent TC3) and
// signed websocket URLs (Xunfei).
package backendauth

import (
	"context"
	"net/http"
	"strings"

	"github.com/modelgate/modelgate/internal/modelconfig"
)

// Handler decorates an outbound request with vendor credentials after the
// translator has rendered it. body is the final request body; handlers that
// sign the payload must see exactly the bytes that go on the wire.
type Handler interface {
	Do(ctx context.Context, req *http.Request, body []byte) error
}

// NewHandler returns the auth handler for the binding's request format. A
// nil Handler (with nil error) means the format carries its credentials in
// the translator-rendered headers and needs no post-processing.
func NewHandler(binding *modelconfig.Binding) (Handler, error) {
	switch strings.ToLower(binding.RequestFormat) {
	case "zhipu":
		return newZhipuHandler(binding)
	case "baidu":
		return newBaiduHandler(binding)
	case "tencent":
		return newTencentHandler(binding)
	default:
		return nil, nil
	}
}
