package monitor

import (
	"net"
	"net/http"
	"time"
)

// HTTPClientConfig tunes the shared probe transport.
type HTTPClientConfig struct {
	UserAgent       string
	MaxIdleConns    int
	IdleConnTimeout time.Duration
}

// NewHTTPClient returns the client shared by all HTTP probes. It sets no dial, TLS or
// overall timeout of its own: each probe runs under a context bounded by the service's
// timeout_seconds, which covers connect, handshake and response alike. Redirects are
// followed.
func NewHTTPClient(cfg HTTPClientConfig) *http.Client {
	idle := cfg.IdleConnTimeout
	if idle <= 0 {
		idle = 90 * time.Second
	}
	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		DialContext:         (&net.Dialer{KeepAlive: 30 * time.Second}).DialContext,
		ForceAttemptHTTP2:   true,
		MaxIdleConns:        cfg.MaxIdleConns,
		MaxIdleConnsPerHost: 2,
		IdleConnTimeout:     idle,
	}
	return &http.Client{Transport: probeTransport{base: transport, userAgent: cfg.UserAgent}}
}

// probeTransport stamps the configured User-Agent on requests that carry none.
type probeTransport struct {
	base      http.RoundTripper
	userAgent string
}

func (t probeTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.userAgent == "" || req.Header.Get("User-Agent") != "" {
		return t.base.RoundTrip(req)
	}
	req = req.Clone(req.Context())
	req.Header.Set("User-Agent", t.userAgent)
	return t.base.RoundTrip(req)
}
