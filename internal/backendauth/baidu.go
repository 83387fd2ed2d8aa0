// Copyright ModelGate Authors
// SPDX-License-Identifier: Apache-2.0
// The full text of the Apache license is available in the LICENSE file at
// the root of the repo.

package backendauth

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/modelgate/modelgate/internal/json"
	"github.com/modelgate/modelgate/internal/modelconfig"
)

const (
	baiduTokenURL = "https://aip.baidubce.com/oauth/2.0/token"

	// baiduDefaultExpiresIn is assumed when the token response omits
	// expires_in; Baidu documents 30 days.
	baiduDefaultExpiresIn = 2592000

	baiduRefreshEarly = time.Hour
)

// baiduHandler exchanges the client credentials for an OAuth access token
// and appends it as the access_token query parameter Qianfan expects.
type baiduHandler struct {
	clientID     string
	clientSecret string
	tokenURL     string
	client       *http.Client
	now          func() time.Time

	mu      sync.Mutex
	token   string
	expires time.Time
}

func newBaiduHandler(binding *modelconfig.Binding) (*baiduHandler, error) {
	key := modelconfig.ResolveEnv(binding.APIKey)
	id, secret, ok := strings.Cut(key, "|")
	if !ok {
		return nil, errors.New(`invalid baidu api key, expected "client_id|client_secret"`)
	}
	return &baiduHandler{
		clientID:     id,
		clientSecret: secret,
		tokenURL:     baiduTokenURL,
		client:       &http.Client{Timeout: 30 * time.Second},
		now:          time.Now,
	}, nil
}

// Do implements [Handler.Do].
func (b *baiduHandler) Do(ctx context.Context, req *http.Request, _ []byte) error {
	token, err := b.getToken(ctx)
	if err != nil {
		return err
	}
	q := req.URL.Query()
	q.Set("access_token", token)
	req.URL.RawQuery = q.Encode()
	return nil
}

func (b *baiduHandler) getToken(ctx context.Context) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	now := b.now()
	if b.token != "" && now.Before(b.expires) {
		return b.token, nil
	}
	token, expiresIn, err := b.fetchToken(ctx)
	if err != nil {
		return "", err
	}
	b.token = token
	b.expires = now.Add(time.Duration(expiresIn)*time.Second - baiduRefreshEarly)
	return token, nil
}

// baiduTokenResponse is the OAuth token endpoint payload. error is set
// instead of access_token on rejection.
type baiduTokenResponse struct {
	AccessToken      string `json:"access_token"`
	ExpiresIn        int64  `json:"expires_in"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

func (b *baiduHandler) fetchToken(ctx context.Context) (string, int64, error) {
	q := url.Values{}
	q.Set("grant_type", "client_credentials")
	q.Set("client_id", b.clientID)
	q.Set("client_secret", b.clientSecret)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.tokenURL+"?"+q.Encode(), nil)
	if err != nil {
		return "", 0, fmt.Errorf("failed to build baidu token request: %w", err)
	}
	resp, err := b.client.Do(req)
	if err != nil {
		return "", 0, fmt.Errorf("failed to fetch baidu access token: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", 0, fmt.Errorf("failed to read baidu token response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", 0, fmt.Errorf("failed to fetch baidu access token: HTTP %d", resp.StatusCode)
	}

	var tok baiduTokenResponse
	if err := json.Unmarshal(body, &tok); err != nil {
		return "", 0, fmt.Errorf("failed to unmarshal baidu token response: %w", err)
	}
	if tok.Error != "" {
		return "", 0, fmt.Errorf("baidu token error: %s: %s", tok.Error, tok.ErrorDescription)
	}
	if tok.AccessToken == "" {
		return "", 0, errors.New("baidu token response carried no access_token")
	}
	if tok.ExpiresIn <= 0 {
		tok.ExpiresIn = baiduDefaultExpiresIn
	}
	return tok.AccessToken, tok.ExpiresIn, nil
}
