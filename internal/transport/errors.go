package transport

import (
	"errors"
	"fmt"

	"github.com/jacoelho/gqlstream/internal/graphql"
)

// ErrEmptyResponse is returned when a response body ends before any payload
// could be decoded.
var ErrEmptyResponse = errors.New("empty GraphQL response")

// NetworkError reports a failure to send the request or to read the body,
// including reads aborted by cancellation.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error during %s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// HTTPStatusError describes a non-2xx response. It is never returned to
// callers; Result turns it into a GraphQL result with a single error entry.
type HTTPStatusError struct {
	StatusCode int
	Status     string
	Body       string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("%d %s: %s", e.StatusCode, e.Status, e.Body)
}

// Result is the final result reported for the failed request. It has no data.
func (e *HTTPStatusError) Result() graphql.Result {
	return graphql.Result{
		Errors: []graphql.Error{{
			Message:    e.Error(),
			Extensions: map[string]any{"statusCode": e.StatusCode},
		}},
	}
}
