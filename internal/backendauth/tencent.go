// Copyright ModelGate Authors
// SPDX-License-Identifier: Apache-2.0
// The full text of the Apache license is available in the LICENSE file at
// the root of the repo.

package backendauth

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/modelgate/modelgate/internal/apischema/tencent"
	"github.com/modelgate/modelgate/internal/modelconfig"
)

const tencentHost = "hunyuan.tencentcloudapi.com"

// tencentHandler signs the rendered body with the cloud API's
// TC3-HMAC-SHA256 scheme. The Authorization and X-TC-Timestamp headers are
// derived from the same instant so the signature verifies.
// https://cloud.tencent.com/document/api/1729/101842
type tencentHandler struct {
	secretID  string
	secretKey string
	now       func() time.Time
}

func newTencentHandler(binding *modelconfig.Binding) (*tencentHandler, error) {
	key := modelconfig.ResolveEnv(binding.APIKey)
	if key == "not-needed" {
		key = ""
	}

	var secretID, secretKey string
	if strings.Contains(key, "|") {
		parts := strings.Split(key, "|")
		if len(parts) != 3 {
			return nil, errors.New(`invalid tencent api key, expected "app_id|secret_id|secret_key"`)
		}
		secretID, secretKey = parts[1], parts[2]
	} else {
		secretID = modelconfig.ResolveEnv(binding.Config.SecretID)
		if secretID == "" {
			secretID = key
		}
		secretKey = modelconfig.ResolveEnv(binding.Config.SecretKey)
	}
	if secretID == "" || secretKey == "" {
		return nil, errors.New("tencent binding is missing secret_id or secret_key")
	}
	return &tencentHandler{secretID: secretID, secretKey: secretKey, now: time.Now}, nil
}

// Do implements [Handler.Do].
func (t *tencentHandler) Do(_ context.Context, req *http.Request, body []byte) error {
	now := t.now()
	req.Header.Set("Authorization", tc3Authorization(t.secretID, t.secretKey, body, now))
	req.Header.Set("X-TC-Timestamp", strconv.FormatInt(now.Unix(), 10))
	return nil
}

// tc3Authorization derives the Authorization header value: canonical
// request over the fixed header set, a date-scoped HMAC key chain, and a
// hex signature of the string to sign.
func tc3Authorization(secretID, secretKey string, body []byte, now time.Time) string {
	canonicalHeaders := "content-type:application/json\nhost:" + tencentHost +
		"\nx-tc-action:" + strings.ToLower(tencent.ActionChatCompletions) + "\n"
	signedHeaders := "content-type;host;x-tc-action"
	canonicalRequest := strings.Join([]string{
		http.MethodPost,
		"/",
		"",
		canonicalHeaders,
		signedHeaders,
		sha256Hex(body),
	}, "\n")

	date := now.UTC().Format("2006-01-02")
	scope := date + "/" + tencent.Service + "/tc3_request"
	stringToSign := strings.Join([]string{
		"TC3-HMAC-SHA256",
		strconv.FormatInt(now.Unix(), 10),
		scope,
		sha256Hex([]byte(canonicalRequest)),
	}, "\n")

	secretDate := hmacSHA256([]byte("TC3"+secretKey), date)
	secretService := hmacSHA256(secretDate, tencent.Service)
	secretSigning := hmacSHA256(secretService, "tc3_request")
	signature := hex.EncodeToString(hmacSHA256(secretSigning, stringToSign))

	return fmt.Sprintf("TC3-HMAC-SHA256 Credential=%s/%s, SignedHeaders=%s, Signature=%s",
		secretID, scope, signedHeaders, signature)
}

func sha256Hex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func hmacSHA256(key []byte, data string) []byte {
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(data))
	return mac.Sum(nil)
}
