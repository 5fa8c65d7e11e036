package identity

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
)

// FetchProfile returns the user the credential belongs to. The identity
// service is the authority on whether the credential is still good.
func (c *Client) FetchProfile(ctx context.Context, ts TokenSource) (Profile, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, c.Paths.Profile, nil, nil, ts)
	if err != nil {
		return Profile{}, err
	}
	return readProfile(resp)
}

// UpdateProfile submits changed profile attributes and returns the stored
// profile.
func (c *Client) UpdateProfile(ctx context.Context, ts TokenSource, fields map[string]any) (Profile, error) {
	if len(fields) == 0 {
		return Profile{}, &Failure{Kind: KindValidation, Message: "no fields to update"}
	}

	resp, err := c.doRequest(ctx, http.MethodPost, c.Paths.UpdateProfile, nil, fields, ts)
	if err != nil {
		return Profile{}, err
	}
	return readProfile(resp)
}

// CheckPermission asks whether the user may perform action on resource.
// A 403 is a definite "no" and is not reported as a failure.
func (c *Client) CheckPermission(ctx context.Context, ts TokenSource, resource, action string) (bool, error) {
	query := url.Values{}
	query.Set("resource", resource)
	query.Set("action", action)

	resp, err := c.doRequest(ctx, http.MethodGet, c.Paths.CheckPermission, query, nil, ts)
	if err != nil {
		return false, err
	}

	if resp.StatusCode == http.StatusForbidden {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
		return false, nil
	}

	var raw json.RawMessage
	if err := decodeJSON(resp, &raw); err != nil {
		return false, err
	}

	var allowed bool
	if err := json.Unmarshal(raw, &allowed); err == nil {
		return allowed, nil
	}

	// Any 2xx without an explicit "allowed" is a plain yes
	var pr permissionResponse
	if err := json.Unmarshal(raw, &pr); err != nil || pr.Allowed == nil {
		return true, nil
	}
	return *pr.Allowed, nil
}

func readProfile(resp *http.Response) (Profile, error) {
	status := resp.StatusCode

	var raw json.RawMessage
	if err := decodeJSON(resp, &raw); err != nil {
		return Profile{}, err
	}

	p, err := decodeProfile(raw)
	if err != nil {
		return Profile{}, serverFailure(status, "malformed profile", err)
	}
	return p, nil
}
