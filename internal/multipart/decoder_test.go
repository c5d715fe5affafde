package multipart

import (
	"errors"
	"io"
	"iter"
	"strings"
	"testing"
	"testing/iotest"
)

func drain(t *testing.T, d *Decoder) (string, error) {
	t.Helper()

	var out strings.Builder
	for {
		chunk, err := d.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return out.String(), nil
			}
			return out.String(), err
		}
		if chunk == "" {
			t.Fatal("Next() returned an empty chunk")
		}
		out.WriteString(chunk)
	}
}

func seqOf(chunks ...[]byte) iter.Seq2[[]byte, error] {
	return func(yield func([]byte, error) bool) {
		for _, chunk := range chunks {
			if !yield(chunk, nil) {
				return
			}
		}
	}
}

func TestDecoderKeepsSplitRunes(t *testing.T) {
	t.Parallel()

	text := "héllo, 世界 🚀"
	raw := []byte(text)

	for split := 1; split < len(raw); split++ {
		d := NewSeqDecoder(seqOf(raw[:split], raw[split:]))
		got, err := drain(t, d)
		if err != nil {
			t.Fatalf("split %d: error = %v", split, err)
		}
		if got != text {
			t.Fatalf("split %d: got %q, want %q", split, got, text)
		}
	}
}

func TestDecoderOneByteReader(t *testing.T) {
	t.Parallel()

	text := "{\"data\":{\"greeting\":\"こんにちは\"}}"
	got, err := drain(t, NewDecoder(iotest.OneByteReader(strings.NewReader(text))))
	if err != nil {
		t.Fatalf("error = %v", err)
	}
	if got != text {
		t.Fatalf("got %q, want %q", got, text)
	}
}

func TestDecoderReplacesInvalidBytes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		chunks [][]byte
		want   string
	}{
		{name: "invalid byte", chunks: [][]byte{{'a', 0xff, 'b'}}, want: "a\ufffdb"},
		{name: "truncated rune at end", chunks: [][]byte{{'a'}, {0xe4, 0xb8}}, want: "a\ufffd"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := drain(t, NewSeqDecoder(seqOf(tt.chunks...)))
			if err != nil {
				t.Fatalf("error = %v", err)
			}
			if got != tt.want {
				t.Fatalf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDecoderPropagatesSourceErrors(t *testing.T) {
	t.Parallel()

	errBoom := errors.New("connection reset")

	t.Run("reader", func(t *testing.T) {
		t.Parallel()

		r := io.MultiReader(strings.NewReader("partial"), iotest.ErrReader(errBoom))
		got, err := drain(t, NewDecoder(r))
		if !errors.Is(err, errBoom) {
			t.Fatalf("error = %v, want %v", err, errBoom)
		}
		if got != "partial" {
			t.Fatalf("got %q before error", got)
		}
	})

	t.Run("sequence", func(t *testing.T) {
		t.Parallel()

		seq := func(yield func([]byte, error) bool) {
			if !yield([]byte("first"), nil) {
				return
			}
			yield(nil, errBoom)
		}

		d := NewSeqDecoder(seq)
		got, err := drain(t, d)
		if !errors.Is(err, errBoom) {
			t.Fatalf("error = %v, want %v", err, errBoom)
		}
		if got != "first" {
			t.Fatalf("got %q before error", got)
		}

		if _, err := d.Next(); !errors.Is(err, errBoom) {
			t.Fatalf("second Next() error = %v, want sticky %v", err, errBoom)
		}
	})
}

func TestDecoderCloseStopsSequence(t *testing.T) {
	t.Parallel()

	stopped := false
	seq := func(yield func([]byte, error) bool) {
		defer func() { stopped = true }()
		for {
			if !yield([]byte("x"), nil) {
				return
			}
		}
	}

	d := NewSeqDecoder(seq)
	if _, err := d.Next(); err != nil {
		t.Fatalf("Next() error = %v", err)
	}
	d.Close()

	if !stopped {
		t.Fatal("sequence not stopped after Close")
	}
	if _, err := d.Next(); !errors.Is(err, io.EOF) {
		t.Fatalf("Next() after Close error = %v, want io.EOF", err)
	}
}
