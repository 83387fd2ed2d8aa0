// Copyright ModelGate Authors
// SPDX-License-Identifier: Apache-2.0
// The full text of the Apache license is available in the LICENSE file at
// the root of the repo.

package backendauth

import (
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modelgate/modelgate/internal/modelconfig"
)

func TestBaiduHandler_Do(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "client_credentials", r.URL.Query().Get("grant_type"))
		assert.Equal(t, "my-client", r.URL.Query().Get("client_id"))
		assert.Equal(t, "my-secret", r.URL.Query().Get("client_secret"))
		_, _ = w.Write([]byte(`{"access_token": "tok-1", "expires_in": 7200}`))
	}))
	defer server.Close()

	h, err := newBaiduHandler(&modelconfig.Binding{APIKey: "my-client|my-secret"})
	require.NoError(t, err)
	h.tokenURL = server.URL
	frozen := time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)
	h.now = func() time.Time { return frozen }

	req, err := http.NewRequest(http.MethodPost, "https://aip.baidubce.com/rpc/2.0/ai_custom/v1/wenxinworkshop/chat/ernie-bot-4", nil)
	require.NoError(t, err)
	require.NoError(t, h.Do(t.Context(), req, nil))
	assert.Equal(t, "tok-1", req.URL.Query().Get("access_token"))
	assert.Equal(t, int32(1), calls.Load())

	// The cached token is reused until an hour before expiry.
	frozen = frozen.Add(30 * time.Minute)
	req2, err := http.NewRequest(http.MethodPost, "https://aip.baidubce.com/chat?alt=sse", nil)
	require.NoError(t, err)
	require.NoError(t, h.Do(t.Context(), req2, nil))
	assert.Equal(t, "tok-1", req2.URL.Query().Get("access_token"))
	// Existing query parameters survive the append.
	assert.Equal(t, "sse", req2.URL.Query().Get("alt"))
	assert.Equal(t, int32(1), calls.Load())

	// expires_in 7200 minus the hour of slack: refetch after two hours.
	frozen = frozen.Add(2 * time.Hour)
	req3, err := http.NewRequest(http.MethodPost, "https://aip.baidubce.com/chat", nil)
	require.NoError(t, err)
	require.NoError(t, h.Do(t.Context(), req3, nil))
	assert.Equal(t, int32(2), calls.Load())
}

func TestBaiduHandler_tokenError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"error": "invalid_client", "error_description": "unknown client id"}`))
	}))
	defer server.Close()

	h, err := newBaiduHandler(&modelconfig.Binding{APIKey: "bad|creds"})
	require.NoError(t, err)
	h.tokenURL = server.URL

	req, err := http.NewRequest(http.MethodPost, "https://aip.baidubce.com/chat", nil)
	require.NoError(t, err)
	err = h.Do(t.Context(), req, nil)
	require.ErrorContains(t, err, "invalid_client")
}

func TestBaiduHandler_defaultExpiry(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"access_token": "tok-long"}`))
	}))
	defer server.Close()

	h, err := newBaiduHandler(&modelconfig.Binding{APIKey: "c|s"})
	require.NoError(t, err)
	h.tokenURL = server.URL
	frozen := time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)
	h.now = func() time.Time { return frozen }

	req, err := http.NewRequest(http.MethodPost, "https://aip.baidubce.com/chat", nil)
	require.NoError(t, err)
	require.NoError(t, h.Do(t.Context(), req, nil))
	// Missing expires_in falls back to 30 days less the refresh hour.
	assert.Equal(t, frozen.Add(baiduDefaultExpiresIn*time.Second-time.Hour), h.expires)
}
