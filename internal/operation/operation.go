// Package operation loads GraphQL operations from YAML files and turns them
// into HTTP requests ready for the incremental transport.
package operation

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"

	yaml "github.com/goccy/go-yaml"
)

var ErrInvalidOperation = errors.New("invalid operation")

// Operation is one GraphQL request as written in an operation file.
type Operation struct {
	Name          string         `yaml:"name"`
	URL           string         `yaml:"url"`
	Method        string         `yaml:"method,omitempty"`
	Query         string         `yaml:"query"`
	OperationName string         `yaml:"operation_name,omitempty"`
	Variables     map[string]any `yaml:"variables,omitempty"`
	Headers       Headers        `yaml:"headers,omitempty"`
}

// Validate checks the fields NewRequest depends on.
func (o Operation) Validate() error {
	if strings.TrimSpace(o.Query) == "" {
		return fmt.Errorf("%w: %s: query is required", ErrInvalidOperation, o.Label())
	}

	u, err := url.Parse(o.URL)
	if err != nil {
		return fmt.Errorf("%w: %s: url: %v", ErrInvalidOperation, o.Label(), err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: %s: url must be http or https, got %q", ErrInvalidOperation, o.Label(), o.URL)
	}

	switch o.method() {
	case http.MethodGet, http.MethodPost:
	default:
		return fmt.Errorf("%w: %s: unsupported method %q", ErrInvalidOperation, o.Label(), o.Method)
	}

	return nil
}

func (o Operation) method() string {
	if o.Method == "" {
		return http.MethodPost
	}
	return strings.ToUpper(o.Method)
}

// Label names the operation in output and errors.
func (o Operation) Label() string {
	if o.Name != "" {
		return o.Name
	}
	if o.OperationName != "" {
		return o.OperationName
	}
	return "unnamed operation"
}

// Parse decodes a YAML list of operations and validates each of them.
func Parse(r io.Reader) ([]Operation, error) {
	decoder := yaml.NewDecoder(r, yaml.DisallowUnknownField())

	var operations []Operation
	if err := decoder.Decode(&operations); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: no operations defined", ErrInvalidOperation)
		}
		return nil, fmt.Errorf("%w: failed to decode YAML: %v", ErrInvalidOperation, err)
	}

	if len(operations) == 0 {
		return nil, fmt.Errorf("%w: no operations defined", ErrInvalidOperation)
	}

	for i, op := range operations {
		if err := op.Validate(); err != nil {
			return nil, fmt.Errorf("operation %d: %w", i, err)
		}
	}

	return operations, nil
}

// ParseFile opens filename and parses it with Parse.
func ParseFile(filename string) ([]Operation, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open operation file %s: %w", filename, err)
	}
	defer f.Close()

	operations, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}
	return operations, nil
}
