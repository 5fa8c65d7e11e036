package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
)

// url builds a complete URL by appending the path to the base URL.
func (c *Client) url(path string, query url.Values) string {
	u := c.BaseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

// doRequest performs an HTTP request with a JSON body (when body is non-nil)
// and a bearer credential (when ts yields one). Transport errors come back as
// KindNetwork failures.
func (c *Client) doRequest(
	ctx context.Context,
	method, path string,
	query url.Values,
	body any,
	ts TokenSource,
) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return nil, &Failure{Kind: KindValidation, Message: "request body could not be encoded", Err: err}
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.url(path, query), reader)
	if err != nil {
		return nil, networkFailure(fmt.Errorf("failed to create request: %w", err))
	}

	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	// Only a non-empty effective token is ever attached
	if ts != nil {
		if token := ts.EffectiveToken(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, networkFailure(err)
	}

	return resp, nil
}

// decodeJSON decodes a 2xx response into target, or parses the body into a
// Failure. A nil target or empty body accepts any 2xx response and leaves
// target untouched.
func decodeJSON(resp *http.Response, target any) error {
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return networkFailure(fmt.Errorf("failed to read response body: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return parseFailure(resp.StatusCode, bodyBytes)
	}

	if target == nil || len(bytes.TrimSpace(bodyBytes)) == 0 {
		return nil
	}

	if err := json.Unmarshal(bodyBytes, target); err != nil {
		return serverFailure(resp.StatusCode, "malformed response body", err)
	}

	return nil
}
