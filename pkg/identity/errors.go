package identity

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
)

// Kind is the normalized category of a failed identity call.
type Kind string

const (
	KindNetwork      Kind = "network"
	KindUnauthorized Kind = "unauthorized"
	KindValidation   Kind = "validation"
	KindServer       Kind = "server"
)

// Failure is the error returned by every Client operation.
type Failure struct {
	Kind Kind

	// StatusCode is the HTTP status, 0 when no response was received or the
	// failure was raised client-side.
	StatusCode int

	// Message is a human-readable description from the service or the client.
	Message string

	// Fields maps a request field to its violations. Only set for
	// KindValidation.
	Fields map[string][]string

	// Err is the underlying cause, if any.
	Err error
}

// Error implements the error interface.
func (f *Failure) Error() string {
	var b strings.Builder
	b.WriteString("identity: ")
	b.WriteString(string(f.Kind))
	if f.StatusCode != 0 {
		fmt.Fprintf(&b, " (%d)", f.StatusCode)
	}
	if f.Message != "" {
		b.WriteString(": ")
		b.WriteString(f.Message)
	}
	if len(f.Fields) > 0 {
		keys := make([]string, 0, len(f.Fields))
		for k := range f.Fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		fmt.Fprintf(&b, " [%s]", strings.Join(keys, ", "))
	}
	if f.Err != nil {
		b.WriteString(": ")
		b.WriteString(f.Err.Error())
	}
	return b.String()
}

func (f *Failure) Unwrap() error { return f.Err }

// Is matches another Failure by Kind, so the sentinels below work with
// errors.Is regardless of status or message.
func (f *Failure) Is(target error) bool {
	t, ok := target.(*Failure)
	if !ok {
		return false
	}
	return t.Kind == f.Kind
}

var (
	ErrNetwork      = &Failure{Kind: KindNetwork}
	ErrUnauthorized = &Failure{Kind: KindUnauthorized}
	ErrValidation   = &Failure{Kind: KindValidation}
	ErrServer       = &Failure{Kind: KindServer}
)

// KindOf reports the Kind of err. Errors that are not Failures (a cancelled
// context surfacing from the transport, for example) count as network.
func KindOf(err error) Kind {
	var f *Failure
	if errors.As(err, &f) {
		return f.Kind
	}
	return KindNetwork
}

// kindForStatus maps an HTTP status onto the four failure kinds.
func kindForStatus(code int) Kind {
	switch code {
	case http.StatusUnauthorized, http.StatusForbidden:
		return KindUnauthorized
	case http.StatusBadRequest, http.StatusConflict, http.StatusUnprocessableEntity:
		return KindValidation
	default:
		return KindServer
	}
}

func networkFailure(err error) *Failure {
	return &Failure{Kind: KindNetwork, Message: "no response from identity service", Err: err}
}

func serverFailure(code int, msg string, err error) *Failure {
	return &Failure{Kind: KindServer, StatusCode: code, Message: msg, Err: err}
}

// parseFailure turns a non-2xx response body into a Failure. It understands
// three body shapes:
//
//	{"message": "...", "errors": {"field": ["msg", ...]}}
//	{"code": "...", "message": "...", "details": {"field": "msg"}}
//	{"error": "...", "error_description": "..."}
//
// Anything else falls back to the HTTP status text.
func parseFailure(code int, body []byte) *Failure {
	f := &Failure{
		Kind:       kindForStatus(code),
		StatusCode: code,
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		f.Message = fmt.Sprintf("HTTP %d: %s", code, http.StatusText(code))
		return f
	}

	f.Message = firstString(raw, "message", "error_description", "error", "code")
	if f.Message == "" {
		f.Message = fmt.Sprintf("HTTP %d: %s", code, http.StatusText(code))
	}

	if f.Kind == KindValidation {
		f.Fields = parseFields(raw)
	}
	return f
}

func firstString(raw map[string]json.RawMessage, keys ...string) string {
	for _, k := range keys {
		v, ok := raw[k]
		if !ok {
			continue
		}
		var s string
		if err := json.Unmarshal(v, &s); err == nil && s != "" {
			return s
		}
	}
	return ""
}

func parseFields(raw map[string]json.RawMessage) map[string][]string {
	fields := make(map[string][]string)

	if v, ok := raw["errors"]; ok {
		var many map[string][]string
		if err := json.Unmarshal(v, &many); err == nil {
			for k, msgs := range many {
				fields[k] = append(fields[k], msgs...)
			}
		} else {
			var one map[string]string
			if err := json.Unmarshal(v, &one); err == nil {
				for k, msg := range one {
					fields[k] = append(fields[k], msg)
				}
			}
		}
	}

	if v, ok := raw["details"]; ok {
		var one map[string]string
		if err := json.Unmarshal(v, &one); err == nil {
			for k, msg := range one {
				fields[k] = append(fields[k], msg)
			}
		}
	}

	if len(fields) == 0 {
		return nil
	}
	return fields
}
