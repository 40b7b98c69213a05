// Package httpclient builds the outbound HTTP client shared by provider
// adapters.
package httpclient

import (
	"net"
	"net/http"

	"github.com/elevare/server/internal/infra/config"
)

// Option customizes the client returned by New.
type Option func(*options)

type options struct {
	userAgent string
}

// WithUserAgent sets the User-Agent on requests that do not carry one.
func WithUserAgent(ua string) Option {
	return func(o *options) { o.userAgent = ua }
}

// New creates an HTTP client from cfg. Timeouts apply per request; long
// provider operations are bounded by the caller's context instead.
func New(cfg config.HTTPClientConfig, opts ...Option) *http.Client {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	var transport http.RoundTripper = &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   cfg.DialTimeout,
			KeepAlive: cfg.KeepAlive,
		}).DialContext,
		MaxIdleConns:        cfg.MaxIdleConns,
		MaxIdleConnsPerHost: cfg.MaxIdleConnsPerHost,
		MaxConnsPerHost:     cfg.MaxConnsPerHost,
		IdleConnTimeout:     cfg.IdleConnTimeout,
		TLSHandshakeTimeout: cfg.TLSHandshakeTimeout,
		ForceAttemptHTTP2:   true,
	}
	if o.userAgent != "" {
		transport = &userAgentTransport{next: transport, userAgent: o.userAgent}
	}

	return &http.Client{
		Transport: transport,
		Timeout:   cfg.ResponseTimeout,
	}
}

type userAgentTransport struct {
	next      http.RoundTripper
	userAgent string
}

func (t *userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get("User-Agent") != "" {
		return t.next.RoundTrip(req)
	}
	// RoundTrippers must not mutate the caller's request.
	r := req.Clone(req.Context())
	r.Header.Set("User-Agent", t.userAgent)
	return t.next.RoundTrip(r)
}
