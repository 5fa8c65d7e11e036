package router

import (
	"strings"

	"github.com/mymindmap/shell/internal/shell/domain"
)

// Route is one entry of the route table.
type Route struct {
	Name string

	// Path is a pattern; segments starting with ":" capture a parameter,
	// as in "/edit/:id".
	Path string

	// Public routes skip the session check entirely.
	Public bool

	// Roles limits the route to users holding one of them. Empty means any
	// authenticated user.
	Roles []domain.Role
}

// Match is a route resolved against a concrete path.
type Match struct {
	Route  Route
	Path   string
	Params map[string]string
}

// DefaultRoutes is the shell's route table.
func DefaultRoutes(landing, login string) []Route {
	if landing == "" {
		landing = "/"
	}
	if login == "" {
		login = "/login"
	}
	return []Route{
		{Name: "home", Path: landing},
		{Name: "index", Path: "/index"},
		{Name: "edit", Path: "/edit"},
		{Name: "edit-map", Path: "/edit/:id"},
		{Name: "login", Path: login, Public: true},
		{Name: "register", Path: "/register", Public: true},
	}
}

func splitPath(p string) []string {
	p = strings.Trim(p, "/")
	if p == "" {
		return nil
	}
	return strings.Split(p, "/")
}

// match reports whether path satisfies pattern and returns its parameters.
func match(pattern, path string) (map[string]string, bool) {
	want := splitPath(pattern)
	have := splitPath(path)
	if len(want) != len(have) {
		return nil, false
	}

	var params map[string]string
	for i, seg := range want {
		if name, ok := strings.CutPrefix(seg, ":"); ok && name != "" {
			if have[i] == "" {
				return nil, false
			}
			if params == nil {
				params = make(map[string]string)
			}
			params[name] = have[i]
			continue
		}
		if seg != have[i] {
			return nil, false
		}
	}
	return params, true
}

// stripQuery removes any query string or fragment from a navigation target.
func stripQuery(path string) string {
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		return path[:i]
	}
	return path
}
