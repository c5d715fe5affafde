package operation

import (
	"strings"
	"testing"
)

func TestHeadersScalarValues(t *testing.T) {
	t.Parallel()

	ops, err := Parse(strings.NewReader(`
- url: https://api.example.com/graphql
  query: "{ a }"
  headers:
    - name: X-Limit
      value: 10
    - name: X-Enabled
      value: true
    - name: X-Ratio
      value: 0.5
    - name: X-Empty
      value: null
`))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	want := Headers{
		{Name: "X-Limit", Value: "10"},
		{Name: "X-Enabled", Value: "true"},
		{Name: "X-Ratio", Value: "0.5"},
		{Name: "X-Empty", Value: ""},
	}
	got := ops[0].Headers
	if len(got) != len(want) {
		t.Fatalf("headers = %+v, want %+v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("headers[%d] = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestHeadersGetReturnsLastMatch(t *testing.T) {
	t.Parallel()

	h := Headers{{Name: "X-A", Value: "1"}, {Name: "x-a", Value: "2"}}
	if got, ok := h.Get("X-A"); !ok || got != "2" {
		t.Fatalf("Get() = %q, %v, want 2", got, ok)
	}
	if _, ok := h.Get("X-B"); ok {
		t.Fatal("Get() found a missing header")
	}
}

func TestHeadersRejectUnknownSequenceField(t *testing.T) {
	t.Parallel()

	_, err := Parse(strings.NewReader(`
- url: https://api.example.com/graphql
  query: "{ a }"
  headers:
    - name: X-A
      value: b
      extra: c
`))
	if err == nil || !strings.Contains(err.Error(), `unknown field "extra"`) {
		t.Fatalf("Parse() error = %v, want unknown field", err)
	}
}
