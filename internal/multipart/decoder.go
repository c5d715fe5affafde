// Package multipart reads GraphQL incremental responses framed as
// multipart/mixed: raw bytes are decoded to text, split on the boundary
// delimiter, and each part body is decoded as a GraphQL payload.
package multipart

import (
	"bytes"
	"errors"
	"io"
	"iter"
	"strings"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

const readSize = 32 * 1024

// Decoder turns a byte source into a sequence of UTF-8 text chunks.
// Multi-byte sequences split across source chunks are carried over to the next
// chunk; invalid bytes are replaced with U+FFFD.
type Decoder struct {
	read    func() ([]byte, error)
	stop    func()
	utf8    transform.Transformer
	pending []byte
	dst     []byte
	err     error
}

// NewDecoder reads chunks from r.
func NewDecoder(r io.Reader) *Decoder {
	buf := make([]byte, readSize)
	return newDecoder(func() ([]byte, error) {
		n, err := r.Read(buf)
		return buf[:n], err
	}, func() {})
}

// NewSeqDecoder consumes a push-style sequence of byte chunks.
// A non-nil error from the sequence ends decoding with that error.
func NewSeqDecoder(seq iter.Seq2[[]byte, error]) *Decoder {
	next, stop := iter.Pull2(seq)
	return newDecoder(func() ([]byte, error) {
		chunk, err, ok := next()
		if !ok {
			return nil, io.EOF
		}
		return chunk, err
	}, stop)
}

func newDecoder(read func() ([]byte, error), stop func()) *Decoder {
	return &Decoder{
		read: read,
		stop: stop,
		utf8: unicode.UTF8.NewDecoder(),
		dst:  make([]byte, readSize),
	}
}

// Next returns the next non-empty text chunk, or io.EOF once the source is exhausted.
func (d *Decoder) Next() (string, error) {
	for d.err == nil {
		chunk, err := d.read()
		if err != nil {
			d.err = err
			d.stop()
		}

		text, decodeErr := d.decode(chunk, errors.Is(err, io.EOF))
		if decodeErr != nil {
			d.err = decodeErr
			return "", decodeErr
		}
		if text != "" {
			return text, nil
		}
	}

	return "", d.err
}

// Close releases a push-style source that has not been drained.
func (d *Decoder) Close() {
	if d.err == nil {
		d.err = io.EOF
		d.stop()
	}
}

func (d *Decoder) decode(chunk []byte, atEOF bool) (string, error) {
	src := chunk
	if len(d.pending) > 0 {
		src = append(d.pending, chunk...)
		d.pending = nil
	}

	var out strings.Builder
	for {
		nDst, nSrc, err := d.utf8.Transform(d.dst, src, atEOF)
		out.Write(d.dst[:nDst])
		src = src[nSrc:]

		switch {
		case err == nil:
			return out.String(), nil
		case errors.Is(err, transform.ErrShortDst):
			continue
		case errors.Is(err, transform.ErrShortSrc):
			d.pending = bytes.Clone(src)
			return out.String(), nil
		default:
			return "", err
		}
	}
}
