package multipart

import (
	"bytes"
	"regexp"
	"strings"
)

// DefaultBoundary is used when the Content-Type carries no boundary parameter.
const DefaultBoundary = "-"

var boundaryParam = regexp.MustCompile(`(?i);\s*boundary=(?:'([^']+)'|"([^"]+)"|([^\s;"']+))`)

// Boundary extracts the boundary parameter from a Content-Type header value.
func Boundary(contentType string) string {
	match := boundaryParam.FindStringSubmatch(contentType)
	for _, value := range match[min(1, len(match)):] {
		if value != "" {
			return value
		}
	}
	return DefaultBoundary
}

// Delimiter returns the part delimiter for a Content-Type header value.
func Delimiter(contentType string) string {
	return "\r\n--" + Boundary(contentType)
}

// ChunkSource yields text chunks, returning io.EOF at the end.
type ChunkSource interface {
	Next() (string, error)
}

// Splitter buffers text chunks and yields the parts between delimiters.
// The preamble before the first delimiter is dropped, and so is whatever
// follows the last delimiter when the source ends. Delimiters framed with a
// bare line feed instead of CRLF are accepted too.
type Splitter struct {
	chunks    ChunkSource
	delimiter []byte
	buf       []byte
	from      int
	started   bool
}

// NewSplitter splits chunks on delimiter (see Delimiter).
func NewSplitter(chunks ChunkSource, delimiter string) *Splitter {
	return &Splitter{
		chunks:    chunks,
		delimiter: []byte(strings.TrimPrefix(delimiter, "\r")),
		// The first delimiter may start the body without a leading line break.
		buf: []byte("\n"),
	}
}

// Next returns the next complete part. Errors from the source, including
// io.EOF, are returned as is.
func (s *Splitter) Next() (string, error) {
	for {
		if i := bytes.Index(s.buf[s.from:], s.delimiter); i >= 0 {
			i += s.from
			part := string(bytes.TrimSuffix(s.buf[:i], []byte("\r")))
			s.buf = s.buf[:copy(s.buf, s.buf[i+len(s.delimiter):])]
			s.from = 0

			if !s.started {
				s.started = true
				continue
			}
			return part, nil
		}

		s.from = max(0, len(s.buf)-len(s.delimiter)+1)

		chunk, err := s.chunks.Next()
		if err != nil {
			s.buf = s.buf[:0]
			s.from = 0
			return "", err
		}
		s.buf = append(s.buf, chunk...)
	}
}
