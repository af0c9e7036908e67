package api

import (
	"net"
	"net/http"
	"time"
)

// NewHTTPClient returns an http.Client with bounded dial/TLS/overall timeouts
// for outbound gateway calls. Gateways never retry beyond their documented
// provider-to-provider fallback hops, so the transport keeps no retry logic.
func NewHTTPClient(timeout time.Duration) *http.Client {
	tr := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		DialContext:         (&net.Dialer{Timeout: 5 * time.Second, KeepAlive: 60 * time.Second}).DialContext,
		MaxIdleConns:        100,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 5 * time.Second,
	}
	return &http.Client{Timeout: timeout, Transport: tr}
}
