package httpclient

import (
	"crypto/tls"
	"net/http"
	"testing"
	"time"
)

func TestNew(t *testing.T) {
	t.Parallel()

	tlsConfig := &tls.Config{InsecureSkipVerify: true}
	client := New(tlsConfig, 5*time.Second)

	if client.Timeout != 0 {
		t.Errorf("Timeout = %v, want 0 for streaming responses", client.Timeout)
	}

	transport, ok := client.Transport.(*http.Transport)
	if !ok {
		t.Fatalf("Transport = %T, want *http.Transport", client.Transport)
	}
	if transport.ResponseHeaderTimeout != 5*time.Second {
		t.Errorf("ResponseHeaderTimeout = %v", transport.ResponseHeaderTimeout)
	}
	if transport.TLSClientConfig != tlsConfig {
		t.Error("TLS config not applied")
	}
	if !transport.DisableCompression {
		t.Error("compression should be disabled")
	}
}
