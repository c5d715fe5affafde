// Package graphql holds the GraphQL response model used by the incremental
// transport and the merge rules that fold incremental payloads into a single
// cumulative result.
package graphql

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

var ErrTrailingData = errors.New("unexpected data after JSON document")

// Result is one GraphQL response payload. After merging it is the cumulative view.
type Result struct {
	Data        any            `json:"data,omitempty"`
	Errors      []Error        `json:"errors,omitempty"`
	Extensions  map[string]any `json:"extensions,omitempty"`
	Incremental []Patch        `json:"incremental,omitempty"`
	HasNext     *bool          `json:"hasNext,omitempty"`
}

// Final returns the view delivered to callers awaiting the whole response.
func (r Result) Final() Result {
	return Result{
		Data:       r.Data,
		Errors:     r.Errors,
		Extensions: r.Extensions,
	}
}

// Last reports whether the payload explicitly declares itself the last one.
func (r Result) Last() bool {
	return r.HasNext != nil && !*r.HasNext
}

// Patch is one entry of an incremental payload.
// Data and Items keep their raw encoding so an explicit null can be told apart
// from an absent field.
type Patch struct {
	Path       Path            `json:"path"`
	Data       json.RawMessage `json:"data,omitempty"`
	Items      json.RawMessage `json:"items,omitempty"`
	Errors     []Error         `json:"errors,omitempty"`
	Extensions map[string]any  `json:"extensions,omitempty"`
	Label      string          `json:"label,omitempty"`
}

// Error is a GraphQL error entry.
type Error struct {
	Message    string         `json:"message"`
	Locations  []Location     `json:"locations,omitempty"`
	Path       Path           `json:"path,omitempty"`
	Extensions map[string]any `json:"extensions,omitempty"`
}

func (e Error) Error() string {
	if len(e.Path) == 0 {
		return e.Message
	}
	return fmt.Sprintf("%s (path %s)", e.Message, e.Path)
}

type Location struct {
	Line   int `json:"line"`
	Column int `json:"column"`
}

// Bool returns a pointer to v, for HasNext literals.
func Bool(v bool) *bool {
	return &v
}

// Decode reads exactly one JSON document from r. Numbers are kept as json.Number.
func Decode(r io.Reader) (Result, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	var result Result
	if err := dec.Decode(&result); err != nil {
		return Result{}, err
	}

	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return Result{}, ErrTrailingData
	}

	return result, nil
}

// DecodeString is Decode over a string.
func DecodeString(s string) (Result, error) {
	return Decode(bytes.NewBufferString(s))
}

// decodeValue decodes a raw JSON fragment into the generic value set.
func decodeValue(raw json.RawMessage) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}
