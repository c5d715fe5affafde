package graphql

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestDecode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   string
		wantErr error
		check   func(t *testing.T, r Result)
	}{
		{
			name:  "trailing whitespace accepted",
			input: "{\"data\":{\"a\":1},\"hasNext\":true}\r\n",
			check: func(t *testing.T, r Result) {
				if r.HasNext == nil || !*r.HasNext {
					t.Fatalf("hasNext = %v", r.HasNext)
				}
			},
		},
		{
			name:  "numbers kept as json.Number",
			input: `{"data":{"big":12345678901234567890}}`,
			check: func(t *testing.T, r Result) {
				data := r.Data.(map[string]any)
				if data["big"] != json.Number("12345678901234567890") {
					t.Fatalf("big = %#v", data["big"])
				}
			},
		},
		{
			name:  "empty incremental is not nil",
			input: `{"incremental":[],"hasNext":false}`,
			check: func(t *testing.T, r Result) {
				if r.Incremental == nil {
					t.Fatal("incremental = nil, want empty slice")
				}
			},
		},
		{
			name:  "explicit null data in patch is kept",
			input: `{"incremental":[{"path":["a"],"data":null}]}`,
			check: func(t *testing.T, r Result) {
				if string(r.Incremental[0].Data) != "null" {
					t.Fatalf("patch data = %q", r.Incremental[0].Data)
				}
				if r.Incremental[0].Items != nil {
					t.Fatalf("patch items = %q, want nil", r.Incremental[0].Items)
				}
			},
		},
		{
			name:    "trailing garbage rejected",
			input:   `{"data":{}}--`,
			wantErr: ErrTrailingData,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			r, err := DecodeString(tt.input)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("DecodeString() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("DecodeString() error = %v", err)
			}
			tt.check(t, r)
		})
	}
}

func TestDecodeMalformed(t *testing.T) {
	t.Parallel()

	for _, input := range []string{``, `{`, `{"data":`, `not json`} {
		if _, err := DecodeString(input); err == nil {
			t.Fatalf("DecodeString(%q) error = nil, want error", input)
		}
	}
}

func TestPathJSON(t *testing.T) {
	t.Parallel()

	var path Path
	if err := json.Unmarshal([]byte(`["users", 2, "name"]`), &path); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}

	if len(path) != 3 || path[0].Key() != "users" || !path[1].IsIndex() || path[1].Index() != 2 {
		t.Fatalf("path = %#v", path)
	}
	if got := path.String(); got != "[users,2,name]" {
		t.Fatalf("String() = %s", got)
	}

	out, err := json.Marshal(path)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	if string(out) != `["users",2,"name"]` {
		t.Fatalf("Marshal() = %s", out)
	}

	if err := json.Unmarshal([]byte(`[1.5]`), &path); err == nil {
		t.Fatal("Unmarshal([1.5]) error = nil, want error")
	}
}

func TestFinalDropsStreamingFields(t *testing.T) {
	t.Parallel()

	r := Result{
		Data:        map[string]any{"a": 1},
		Incremental: []Patch{{Path: Path{Key("a")}}},
		HasNext:     Bool(false),
	}

	final := r.Final()
	if final.Incremental != nil || final.HasNext != nil {
		t.Fatalf("Final() = %+v", final)
	}
	if final.Data == nil {
		t.Fatal("Final() dropped data")
	}
}
