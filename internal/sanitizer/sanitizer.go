// Package sanitizer renders HTTP exchanges for debug output with secret
// values replaced by a salted hash marker.
package sanitizer

import (
	"bytes"
	"cmp"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/http/httputil"
	"slices"
	"strings"
)

// CredentialHeaders are always treated as secrets.
var CredentialHeaders = []string{"Authorization", "Proxy-Authorization", "Cookie"}

// Redactor replaces known secrets in dumped requests and responses.
type Redactor struct {
	salt    string
	targets []target
}

type target struct {
	needle      []byte
	replacement []byte
}

// New builds a Redactor for secrets. Empty secrets are ignored and longer
// secrets win over secrets they contain.
func New(salt string, secrets ...string) *Redactor {
	r := &Redactor{salt: salt}
	r.Add(secrets...)
	return r
}

// Add registers more secrets.
func (r *Redactor) Add(secrets ...string) {
	seen := make(map[string]bool, len(r.targets)+len(secrets))
	for _, t := range r.targets {
		seen[string(t.needle)] = true
	}

	for _, secret := range secrets {
		if secret == "" || seen[secret] {
			continue
		}
		seen[secret] = true
		r.targets = append(r.targets, target{
			needle:      []byte(secret),
			replacement: marker(secret, r.salt),
		})
	}

	slices.SortFunc(r.targets, func(a, b target) int {
		if c := cmp.Compare(len(b.needle), len(a.needle)); c != 0 {
			return c
		}
		return bytes.Compare(a.needle, b.needle)
	})
}

// AddHeaders registers the values of credential headers in h, including the
// token part of "Scheme token" authorization values.
func (r *Redactor) AddHeaders(h http.Header) {
	var secrets []string
	for _, name := range CredentialHeaders {
		for _, value := range h.Values(name) {
			secrets = append(secrets, value)
			if _, token, ok := strings.Cut(value, " "); ok {
				secrets = append(secrets, strings.TrimSpace(token))
			}
		}
	}
	r.Add(secrets...)
}

// Redact returns data with every registered secret replaced.
func (r *Redactor) Redact(data []byte) []byte {
	if r == nil || len(r.targets) == 0 || len(data) == 0 {
		return data
	}

	var out []byte
	for i := 0; i < len(data); {
		t := r.match(data[i:])
		if t == nil {
			if out != nil {
				out = append(out, data[i])
			}
			i++
			continue
		}

		if out == nil {
			out = make([]byte, 0, len(data))
			out = append(out, data[:i]...)
		}
		out = append(out, t.replacement...)
		i += len(t.needle)
	}

	if out == nil {
		return data
	}
	return out
}

func (r *Redactor) match(data []byte) *target {
	for i := range r.targets {
		if bytes.HasPrefix(data, r.targets[i].needle) {
			return &r.targets[i]
		}
	}
	return nil
}

// DumpRequest dumps an outgoing request, body included, with secrets redacted.
func (r *Redactor) DumpRequest(req *http.Request) ([]byte, error) {
	dump, err := httputil.DumpRequestOut(req, true)
	if err != nil {
		return nil, fmt.Errorf("failed to dump request: %w", err)
	}
	return r.Redact(dump), nil
}

// DumpResponseHead dumps the status line and headers of resp. The body is a
// live stream and is left untouched.
func (r *Redactor) DumpResponseHead(resp *http.Response) ([]byte, error) {
	dump, err := httputil.DumpResponse(resp, false)
	if err != nil {
		return nil, fmt.Errorf("failed to dump response: %w", err)
	}
	return r.Redact(dump), nil
}

func marker(secret, salt string) []byte {
	sum := sha256.Sum256([]byte(salt + secret))
	return []byte("[S256:" + hex.EncodeToString(sum[:8]) + "]")
}
