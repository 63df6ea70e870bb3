// Package httpclient configures the HTTP client used to call upstream services.
package httpclient

import (
	"net"
	"net/http"
	"net/url"
	"time"
)

type Option func(*http.Transport, *http.Client)

// WithProxy routes every request through proxy. A nil proxy keeps the
// environment settings.
func WithProxy(proxy *url.URL) Option {
	return func(t *http.Transport, _ *http.Client) {
		if proxy != nil {
			t.Proxy = http.ProxyURL(proxy)
		}
	}
}

// WithoutKeepAlives opens a fresh connection per request.
func WithoutKeepAlives() Option {
	return func(t *http.Transport, _ *http.Client) {
		t.DisableKeepAlives = true
	}
}

// WithTimeout bounds the whole exchange. Zero disables the bound, which
// callers that enforce their own stall detection rely on.
func WithTimeout(d time.Duration) Option {
	return func(_ *http.Transport, c *http.Client) {
		c.Timeout = d
	}
}

// NewOutbound creates a new outbound http client
func NewOutbound(opts ...Option) *http.Client {
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: 5 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
		MaxIdleConns:          256,
		MaxIdleConnsPerHost:   128,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	client := &http.Client{
		Transport: transport,
		Timeout:   30 * time.Second,
	}
	for _, o := range opts {
		o(transport, client)
	}
	return client
}
