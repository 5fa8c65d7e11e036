package session

import (
	"errors"
	"sort"
	"strings"

	"github.com/mymindmap/shell/pkg/identity"
)

var (
	// ErrSuperseded is returned by an operation whose outcome was discarded
	// because a later login, register or logout moved the session on.
	ErrSuperseded = errors.New("session: superseded by a later operation")

	// ErrNoSession is returned when an authenticated call is attempted
	// without a live credential.
	ErrNoSession = errors.New("session: no active session")
)

// KindStorage marks a LastError raised by the token store rather than the
// identity service.
const KindStorage identity.Kind = "storage"

// ErrorInfo is the user-facing description of the last failed operation.
type ErrorInfo struct {
	Kind    identity.Kind
	Message string
	Fields  map[string][]string
}

var fieldLabels = map[string]string{
	"phone":    "Phone",
	"email":    "Email",
	"password": "Password",
	"hash":     "Captcha",
}

const fallbackSummary = "Something went wrong"

// Summary renders the field errors for display. Fields without a label are
// left out; with nothing to show the message (or a generic text) is used.
func (e ErrorInfo) Summary() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		if _, ok := fieldLabels[k]; ok {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		msgs := strings.ReplaceAll(strings.Join(e.Fields[k], ", "), ":", "")
		parts = append(parts, fieldLabels[k]+" "+msgs)
	}
	if len(parts) > 0 {
		return strings.Join(parts, "; ")
	}
	if e.Message != "" {
		return e.Message
	}
	return fallbackSummary
}

func errorInfo(err error) *ErrorInfo {
	var f *identity.Failure
	if errors.As(err, &f) {
		info := &ErrorInfo{Kind: f.Kind, Message: f.Message}
		if len(f.Fields) > 0 {
			info.Fields = make(map[string][]string, len(f.Fields))
			for k, v := range f.Fields {
				info.Fields[k] = append([]string(nil), v...)
			}
		}
		return info
	}
	return &ErrorInfo{Kind: identity.KindOf(err), Message: err.Error()}
}

func (e *ErrorInfo) clone() *ErrorInfo {
	if e == nil {
		return nil
	}
	out := *e
	if e.Fields != nil {
		out.Fields = make(map[string][]string, len(e.Fields))
		for k, v := range e.Fields {
			out.Fields[k] = append([]string(nil), v...)
		}
	}
	return &out
}
