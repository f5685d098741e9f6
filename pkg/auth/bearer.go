package auth

import (
	"net/http"
	"time"

	"golang.org/x/oauth2"
)

// DefaultTimeout is the ceiling applied to every request made with a client
// from NewClient.
const DefaultTimeout = 30 * time.Second

type options struct {
	timeout time.Duration
	headers map[string]string
	base    http.RoundTripper
}

// Option configures NewClient.
type Option func(*options)

// WithTimeout overrides DefaultTimeout.
func WithTimeout(d time.Duration) Option {
	return func(o *options) { o.timeout = d }
}

// WithHeader adds a header to every request.
func WithHeader(key, value string) Option {
	return func(o *options) { o.headers[key] = value }
}

// WithTransport replaces http.DefaultTransport underneath the token layer.
func WithTransport(rt http.RoundTripper) Option {
	return func(o *options) { o.base = rt }
}

// NewClient returns an *http.Client that sends token as a bearer credential.
// The token is long-lived (an integration secret or API key), so the source
// never refreshes it.
func NewClient(token string, opts ...Option) *http.Client {
	o := &options{
		timeout: DefaultTimeout,
		headers: make(map[string]string),
		base:    http.DefaultTransport,
	}
	for _, opt := range opts {
		opt(o)
	}

	src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "Bearer"})
	return &http.Client{
		Timeout: o.timeout,
		Transport: &oauth2.Transport{
			Source: src,
			Base:   &headerTransport{base: o.base, headers: o.headers},
		},
	}
}

type headerTransport struct {
	base    http.RoundTripper
	headers map[string]string
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if len(t.headers) == 0 {
		return t.base.RoundTrip(req)
	}
	// RoundTrippers must not modify the caller's request.
	req = req.Clone(req.Context())
	for k, v := range t.headers {
		req.Header.Set(k, v)
	}
	return t.base.RoundTrip(req)
}
