// Copyright ModelGate Authors
// SPDX-License-Identifier: Apache-2.0
// The full text of the Apache license is available in the LICENSE file at
// the root of the repo.

package backendauth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/modelgate/modelgate/internal/modelconfig"
)

// zhipuTokenTTL is the validity Zhipu grants a minted JWT. Cached tokens
// are refreshed an hour before that to keep in-flight requests valid.
const (
	zhipuTokenTTL     = 24 * time.Hour
	zhipuRefreshEarly = time.Hour
)

// zhipuHandler mints the HS256 JWT Zhipu expects in the Authorization
// header (no Bearer prefix) and caches it until close to expiry.
type zhipuHandler struct {
	apiKey string
	now    func() time.Time

	mu      sync.Mutex
	token   string
	expires time.Time
}

func newZhipuHandler(binding *modelconfig.Binding) (*zhipuHandler, error) {
	key := modelconfig.ResolveEnv(binding.APIKey)
	if !strings.Contains(key, ".") {
		return nil, errors.New(`invalid zhipu api key, expected "id.secret"`)
	}
	return &zhipuHandler{apiKey: key, now: time.Now}, nil
}

// Do implements [Handler.Do].
func (z *zhipuHandler) Do(_ context.Context, req *http.Request, _ []byte) error {
	token, err := z.getToken()
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", token)
	return nil
}

func (z *zhipuHandler) getToken() (string, error) {
	z.mu.Lock()
	defer z.mu.Unlock()
	now := z.now()
	if z.token != "" && now.Before(z.expires) {
		return z.token, nil
	}
	token, err := mintZhipuToken(z.apiKey, now)
	if err != nil {
		return "", err
	}
	z.token = token
	z.expires = now.Add(zhipuTokenTTL - zhipuRefreshEarly)
	return token, nil
}

// mintZhipuToken signs Zhipu's JWT: HS256 over millisecond exp/timestamp
// claims, with the non-standard sign_type header the API checks for.
// https://open.bigmodel.cn/dev/api (interface authentication)
func mintZhipuToken(apiKey string, now time.Time) (string, error) {
	id, secret, ok := strings.Cut(apiKey, ".")
	if !ok {
		return "", errors.New(`invalid zhipu api key, expected "id.secret"`)
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"api_key":   id,
		"exp":       now.Add(zhipuTokenTTL).UnixMilli(),
		"timestamp": now.UnixMilli(),
	})
	token.Header["sign_type"] = "SIGN"
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("failed to sign zhipu token: %w", err)
	}
	return signed, nil
}
