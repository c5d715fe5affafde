package multipart

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jacoelho/gqlstream/internal/graphql"
)

// ErrNoBody is returned for parts without a header/body separator, such as
// the closing delimiter suffix.
var ErrNoBody = errors.New("multipart part has no body")

// MalformedPartError reports a part whose body is not a valid GraphQL payload.
type MalformedPartError struct {
	Body string
	Err  error
}

func (e *MalformedPartError) Error() string {
	body := e.Body
	if len(body) > 64 {
		body = body[:64] + "..."
	}
	return fmt.Sprintf("malformed multipart payload %q: %v", body, e.Err)
}

func (e *MalformedPartError) Unwrap() error {
	return e.Err
}

// ParsePart strips the part headers and decodes the JSON body.
func ParsePart(part string) (graphql.Result, error) {
	body, ok := partBody(part)
	if !ok {
		return graphql.Result{}, ErrNoBody
	}

	result, err := graphql.DecodeString(body)
	if err != nil {
		return graphql.Result{}, &MalformedPartError{Body: body, Err: err}
	}
	return result, nil
}

func partBody(part string) (string, bool) {
	for _, separator := range []string{"\r\n\r\n", "\n\n"} {
		if i := strings.Index(part, separator); i >= 0 {
			return part[i+len(separator):], true
		}
	}
	return "", false
}
