package operation

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParse(t *testing.T) {
	t.Parallel()

	ops, err := Parse(strings.NewReader(`
- name: feed
  url: https://api.example.com/graphql
  query: |
    query Feed($first: Int) {
      feed(first: $first) @stream(initialCount: 1) { id }
    }
  operation_name: Feed
  variables:
    first: 3
  headers:
    X-Zeta: last
    X-Alpha: first
- name: viewer
  url: https://api.example.com/graphql
  method: get
  query: "{ viewer { id } }"
  headers:
    - name: Authorization
      value: Bearer abc
`))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if len(ops) != 2 {
		t.Fatalf("operations len = %d, want 2", len(ops))
	}

	feed := ops[0]
	if feed.OperationName != "Feed" {
		t.Errorf("OperationName = %q", feed.OperationName)
	}
	if len(feed.Variables) != 1 {
		t.Errorf("Variables = %v", feed.Variables)
	}
	if len(feed.Headers) != 2 || feed.Headers[0].Name != "X-Zeta" || feed.Headers[1].Name != "X-Alpha" {
		t.Errorf("Headers = %+v, want declaration order", feed.Headers)
	}

	viewer := ops[1]
	if viewer.method() != "GET" {
		t.Errorf("method() = %q, want GET", viewer.method())
	}
	if got, ok := viewer.Headers.Get("authorization"); !ok || got != "Bearer abc" {
		t.Errorf("Headers.Get() = %q, %v", got, ok)
	}
}

func TestParseErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		yaml string
	}{
		{name: "empty document", yaml: ""},
		{name: "empty list", yaml: "[]"},
		{name: "unknown field", yaml: "- url: https://x\n  query: '{a}'\n  body: x\n"},
		{name: "missing query", yaml: "- url: https://x\n"},
		{name: "bad scheme", yaml: "- url: ftp://x\n  query: '{a}'\n"},
		{name: "unsupported method", yaml: "- url: https://x\n  query: '{a}'\n  method: DELETE\n"},
		{name: "header without value", yaml: "- url: https://x\n  query: '{a}'\n  headers:\n    - name: X-A\n"},
		{name: "header with nested value", yaml: "- url: https://x\n  query: '{a}'\n  headers:\n    X-A: [1, 2]\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := Parse(strings.NewReader(tt.yaml))
			if !errors.Is(err, ErrInvalidOperation) {
				t.Fatalf("Parse() error = %v, want ErrInvalidOperation", err)
			}
		})
	}
}

func TestParseFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "ops.yaml")
	if err := os.WriteFile(path, []byte("- url: http://localhost/graphql\n  query: '{ a }'\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	ops, err := ParseFile(path)
	if err != nil {
		t.Fatalf("ParseFile() error = %v", err)
	}
	if len(ops) != 1 || ops[0].Label() != "unnamed operation" {
		t.Fatalf("ops = %+v", ops)
	}

	if _, err := ParseFile(filepath.Join(dir, "missing.yaml")); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("ParseFile() error = %v, want os.ErrNotExist", err)
	}
}
