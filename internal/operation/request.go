package operation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"net/http"
	"net/url"
	"regexp"

	"github.com/google/uuid"
)

const (
	// AcceptIncremental asks the server for multipart/mixed incremental delivery.
	AcceptIncremental = "multipart/mixed; deferSpec=20220824, application/json"
	// AcceptJSON is used for operations without incremental directives.
	AcceptJSON = "application/json"

	RequestIDHeader = "X-Request-Id"
)

var incrementalDirective = regexp.MustCompile(`@(?:defer|stream)\b`)

// IsIncremental reports whether query uses @defer or @stream.
func IsIncremental(query string) bool {
	return incrementalDirective.MatchString(query)
}

type body struct {
	Query         string         `json:"query"`
	OperationName string         `json:"operationName,omitempty"`
	Variables     map[string]any `json:"variables,omitempty"`
}

// RequestOption customises requests built by NewRequest.
type RequestOption func(*requestOptions)

type requestOptions struct {
	variables map[string]any
	headers   Headers
	requestID func() string
}

// WithVariables overrides operation variables with the given values.
func WithVariables(variables map[string]any) RequestOption {
	return func(o *requestOptions) {
		o.variables = variables
	}
}

// WithHeaders adds headers after the operation's own, replacing same-named ones.
func WithHeaders(headers Headers) RequestOption {
	return func(o *requestOptions) {
		o.headers = append(o.headers, headers...)
	}
}

// WithRequestID replaces the request id generator.
func WithRequestID(fn func() string) RequestOption {
	return func(o *requestOptions) {
		o.requestID = fn
	}
}

// NewRequest builds the HTTP request for op. POST requests carry a JSON body;
// GET requests encode query, operationName and variables as URL parameters.
func NewRequest(ctx context.Context, op Operation, opts ...RequestOption) (*http.Request, error) {
	if err := op.Validate(); err != nil {
		return nil, err
	}

	options := requestOptions{requestID: uuid.NewString}
	for _, opt := range opts {
		opt(&options)
	}

	payload := body{
		Query:         op.Query,
		OperationName: op.OperationName,
		Variables:     mergeVariables(op.Variables, options.variables),
	}

	var req *http.Request
	switch op.method() {
	case http.MethodGet:
		target, err := getURL(op.URL, payload)
		if err != nil {
			return nil, err
		}
		req, err = http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
	default:
		encoded, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
		req, err = http.NewRequestWithContext(ctx, http.MethodPost, op.URL, bytes.NewReader(encoded))
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
	}

	if IsIncremental(op.Query) {
		req.Header.Set("Accept", AcceptIncremental)
	} else {
		req.Header.Set("Accept", AcceptJSON)
	}
	req.Header.Set(RequestIDHeader, options.requestID())

	// Each layer replaces the values of the names it sets.
	for _, layer := range []Headers{op.Headers, options.headers} {
		seen := make(map[string]bool, len(layer))
		for _, h := range layer {
			key := http.CanonicalHeaderKey(h.Name)
			if !seen[key] {
				req.Header.Del(key)
				seen[key] = true
			}
			req.Header.Add(key, h.Value)
		}
	}

	return req, nil
}

func mergeVariables(base, override map[string]any) map[string]any {
	if len(base) == 0 && len(override) == 0 {
		return nil
	}

	out := make(map[string]any, len(base)+len(override))
	maps.Copy(out, base)
	maps.Copy(out, override)
	return out
}

func getURL(raw string, payload body) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid url %q: %w", raw, err)
	}

	q := u.Query()
	q.Set("query", payload.Query)
	if payload.OperationName != "" {
		q.Set("operationName", payload.OperationName)
	}
	if payload.Variables != nil {
		encoded, err := json.Marshal(payload.Variables)
		if err != nil {
			return "", fmt.Errorf("failed to encode variables: %w", err)
		}
		q.Set("variables", string(encoded))
	}
	u.RawQuery = q.Encode()

	return u.String(), nil
}
