// Copyright ModelGate Authors
// SPDX-License-Identifier: Apache-2.0
// The full text of the Apache license is available in the LICENSE file at
// the root of the repo.

package backendauth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// SignSparkURL appends the HMAC query parameters the Spark websocket
// endpoint authenticates with: a base64 signature over "host date
// request-line" in an RFC 1123 GMT window. The websocket adapter signs
// every dial; Spark rejects stale dates.
// https://www.xfyun.cn/doc/spark/general_url_authentication.html
func SignSparkURL(rawURL, apiKey, apiSecret string, now time.Time) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("failed to parse websocket url %q: %w", rawURL, err)
	}

	date := now.UTC().Format(http.TimeFormat)
	signString := "host: " + u.Host + "\ndate: " + date + "\nGET " + u.Path + " HTTP/1.1"
	mac := hmac.New(sha256.New, []byte(apiSecret))
	mac.Write([]byte(signString))
	signature := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	origin := fmt.Sprintf(`hmac username="%s", algorithm="hmac-sha256", headers="host date request-line", signature="%s"`,
		apiKey, signature)

	q := u.Query()
	q.Set("authorization", base64.StdEncoding.EncodeToString([]byte(origin)))
	q.Set("date", date)
	q.Set("host", u.Host)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
