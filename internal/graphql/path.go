package graphql

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Segment is one step of a response path: an object key or a list index.
type Segment struct {
	key     string
	index   int
	isIndex bool
}

// Key returns an object key segment.
func Key(key string) Segment {
	return Segment{key: key}
}

// Index returns a list index segment.
func Index(index int) Segment {
	return Segment{index: index, isIndex: true}
}

func (s Segment) IsIndex() bool {
	return s.isIndex
}

func (s Segment) Key() string {
	return s.key
}

func (s Segment) Index() int {
	return s.index
}

func (s Segment) String() string {
	if s.isIndex {
		return strconv.Itoa(s.index)
	}
	return s.key
}

func (s Segment) MarshalJSON() ([]byte, error) {
	if s.isIndex {
		return []byte(strconv.Itoa(s.index)), nil
	}
	return json.Marshal(s.key)
}

func (s *Segment) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var key string
		if err := json.Unmarshal(data, &key); err != nil {
			return err
		}
		*s = Key(key)
		return nil
	}

	index, err := strconv.Atoi(string(data))
	if err != nil {
		return fmt.Errorf("path segment must be a string or an integer, got %s", data)
	}
	*s = Index(index)
	return nil
}

// Path locates a value in a response tree.
type Path []Segment

func (p Path) String() string {
	parts := make([]string, len(p))
	for i, segment := range p {
		parts[i] = segment.String()
	}
	return "[" + strings.Join(parts, ",") + "]"
}
