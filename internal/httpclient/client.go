// Package httpclient builds the HTTP client used for streaming GraphQL requests.
package httpclient

import (
	"crypto/tls"
	"net"
	"net/http"
	"time"
)

// New creates a client tuned for long-lived streaming responses.
//
// headerTimeout bounds the wait for response headers only. The client has no
// overall timeout; callers bound the full exchange with a context.
func New(tlsConfig *tls.Config, headerTimeout time.Duration) *http.Client {
	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}

	transport := &http.Transport{
		Proxy:                  http.ProxyFromEnvironment,
		DialContext:            dialer.DialContext,
		TLSClientConfig:        tlsConfig,
		ForceAttemptHTTP2:      true,
		TLSHandshakeTimeout:    10 * time.Second,
		ResponseHeaderTimeout:  headerTimeout,
		ExpectContinueTimeout:  1 * time.Second,
		IdleConnTimeout:        90 * time.Second,
		MaxIdleConns:           100,
		MaxIdleConnsPerHost:    10,
		MaxResponseHeaderBytes: 1 << 20, // 1 MiB
		DisableCompression:     true,
	}

	return &http.Client{
		Transport: transport,
	}
}
