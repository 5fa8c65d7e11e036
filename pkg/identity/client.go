package identity

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/mymindmap/shell/pkg/slogx"
	"golang.org/x/time/rate"
)

// Paths are the endpoint paths relative to the client's BaseURL.
type Paths struct {
	Login           string
	Register        string
	Profile         string
	Logout          string
	CheckPermission string
	UpdateProfile   string
}

// DefaultPaths matches the identity service routes.
var DefaultPaths = Paths{
	Login:           "/login",
	Register:        "/register",
	Profile:         "/user",
	Logout:          "/logout",
	CheckPermission: "/check-permission",
	UpdateProfile:   "/user/update",
}

// Client is a client for the identity service.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
	Paths      Paths

	// ValidateRequests determines whether Login and Register payloads are
	// validated before sending. Default: true
	ValidateRequests bool

	// AuthLimiter throttles the credential endpoints (login, register). Calls
	// wait for a token rather than failing. Nil disables throttling.
	AuthLimiter *rate.Limiter

	now func() time.Time

	// Applied to the HTTP client once every option has run
	timeout time.Duration
	logger  *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client. The client is copied, so
// timeout and logging options never modify hc itself. Nil is ignored.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.HTTPClient = hc
		}
	}
}

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// WithLogger routes outbound requests through the slogx logging transport.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// WithAuthRateLimit allows n credential requests per window with the given burst.
func WithAuthRateLimit(n int, window time.Duration, burst int) Option {
	return func(c *Client) {
		if n <= 0 || window <= 0 {
			c.AuthLimiter = nil
			return
		}
		if burst <= 0 {
			burst = n
		}
		c.AuthLimiter = rate.NewLimiter(rate.Every(window/time.Duration(n)), burst)
	}
}

// WithPaths overrides the endpoint paths.
func WithPaths(p Paths) Option {
	return func(c *Client) { c.Paths = p }
}

// WithValidation toggles client-side request validation.
func WithValidation(enabled bool) Option {
	return func(c *Client) { c.ValidateRequests = enabled }
}

// WithClock overrides the time source used to resolve relative expiries.
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// NewClient creates a new identity client with request validation enabled.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		Paths:            DefaultPaths,
		ValidateRequests: true,
		now:              time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}

	hc := *c.HTTPClient
	if c.timeout > 0 {
		hc.Timeout = c.timeout
	}
	if c.logger != nil {
		hc.Transport = slogx.Transport(hc.Transport, c.logger)
	}
	c.HTTPClient = &hc
	return c
}

// TokenSource yields the bearer credential for an authenticated call. An
// empty string means "send no credential".
type TokenSource interface {
	EffectiveToken() string
}

// StaticToken is a TokenSource for a fixed token value.
type StaticToken string

func (t StaticToken) EffectiveToken() string { return string(t) }
