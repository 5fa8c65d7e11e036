package identity

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// Credentials are the login payload.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RegisterRequest is the registration payload.
type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`

	// Phone and Hash (captcha) are optional and only sent when set.
	Phone string `json:"phone,omitempty"`
	Hash  string `json:"hash,omitempty"`
}

// Grant is an issued credential with an absolute expiry.
type Grant struct {
	Token     string
	ExpiresAt time.Time
}

// tokenResponse accepts both the "token" and OAuth2 "access_token" names.
type tokenResponse struct {
	Token       string    `json:"token"`
	AccessToken string    `json:"access_token"`
	ExpiresAt   Timestamp `json:"expires_at"`
	ExpiresIn   int64     `json:"expires_in"`
}

func (r tokenResponse) value() string {
	if r.Token != "" {
		return r.Token
	}
	return r.AccessToken
}

// Timestamp decodes an instant encoded as unix milliseconds (number or
// numeric string) or as an RFC 3339 string.
type Timestamp struct {
	time.Time
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		t.Time = time.Time{}
		return nil
	}

	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if s == "" {
			t.Time = time.Time{}
			return nil
		}
		if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
			t.Time = time.UnixMilli(ms)
			return nil
		}
		parsed, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return fmt.Errorf("identity: invalid timestamp %q", s)
		}
		t.Time = parsed
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("identity: invalid timestamp %s", data)
	}
	ms, err := n.Int64()
	if err != nil {
		f, ferr := n.Float64()
		if ferr != nil {
			return fmt.Errorf("identity: invalid timestamp %s", data)
		}
		ms = int64(f)
	}
	t.Time = time.UnixMilli(ms)
	return nil
}

// Profile is the authenticated user as reported by the identity service.
type Profile struct {
	ID       int64
	Name     string
	Email    string
	RoleID   int
	StatusID int
	Locale   string

	// Fields holds every attribute of the profile object, known or not.
	Fields map[string]any
}

// profileEnvelope accepts {"user": {...}} as well as a bare profile object.
type profileEnvelope struct {
	User json.RawMessage `json:"user"`
}

type profileBody struct {
	ID       json.RawMessage `json:"id"`
	Name     string          `json:"name"`
	Email    string          `json:"email"`
	RoleID   json.RawMessage `json:"role_id"`
	StatusID json.RawMessage `json:"status_id"`
	Role     json.RawMessage `json:"role"`
	Lang     string          `json:"lang"`
	Locale   string          `json:"locale"`
	Data     json.RawMessage `json:"data"`
}

// roleCodes maps role names some deployments send instead of role_id.
var roleCodes = map[string]int{
	"admin":     1,
	"moderator": 2,
	"manager":   3,
}

// looseInt reads a number or numeric string. Other values, such as UUID ids,
// report false and stay available through Profile.Fields.
func looseInt(raw json.RawMessage) (int64, bool) {
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		if v, err := n.Int64(); err == nil {
			return v, true
		}
		return 0, false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0, false
	}
	v, err := strconv.ParseInt(s, 10, 64)
	return v, err == nil
}

func decodeProfile(body []byte) (Profile, error) {
	obj := body
	var env profileEnvelope
	if err := json.Unmarshal(body, &env); err == nil && len(env.User) > 0 && !bytes.Equal(env.User, []byte("null")) {
		obj = env.User
	}

	var pb profileBody
	if err := json.Unmarshal(obj, &pb); err != nil {
		return Profile{}, err
	}

	var fields map[string]any
	if err := json.Unmarshal(obj, &fields); err != nil {
		return Profile{}, err
	}

	id, _ := looseInt(pb.ID)
	hasID := len(pb.ID) > 0 && !bytes.Equal(pb.ID, []byte("null"))
	if !hasID && pb.Email == "" {
		return Profile{}, fmt.Errorf("identity: profile has neither id nor email")
	}

	p := Profile{
		ID:     id,
		Name:   pb.Name,
		Email:  pb.Email,
		Fields: fields,
	}
	if v, ok := looseInt(pb.RoleID); ok {
		p.RoleID = int(v)
	} else {
		var role string
		if json.Unmarshal(pb.Role, &role) == nil {
			p.RoleID = roleCodes[role]
		}
	}
	if v, ok := looseInt(pb.StatusID); ok {
		p.StatusID = int(v)
	}

	switch {
	case pb.Locale != "":
		p.Locale = pb.Locale
	case pb.Lang != "":
		p.Locale = pb.Lang
	default:
		var data struct {
			Lang string `json:"lang"`
		}
		if json.Unmarshal(pb.Data, &data) == nil {
			p.Locale = data.Lang
		}
	}
	return p, nil
}

type permissionResponse struct {
	Allowed *bool `json:"allowed"`
}
