// Package output renders snapshots, final results and run summaries as text
// or JSON.
package output

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/theory/jsonpath"

	"github.com/jacoelho/gqlstream/internal/graphql"
)

// Format represents the output format.
type Format int

const (
	FormatText Format = iota
	FormatJSON
)

// ParseFormat maps a --output value to a Format.
func ParseFormat(s string) (Format, error) {
	switch s {
	case "", "text":
		return FormatText, nil
	case "json":
		return FormatJSON, nil
	default:
		return FormatText, fmt.Errorf("unknown output format %q", s)
	}
}

// Printer writes results for concurrently running operations. Each call
// writes whole lines, so output from different operations never interleaves
// within a line.
type Printer struct {
	mu       sync.Mutex
	w        io.Writer
	format   Format
	selector *jsonpath.Path
}

// NewPrinter returns a Printer. A non-empty selectExpr is a JSONPath
// expression applied to each result; only the selected values are printed.
func NewPrinter(w io.Writer, format Format, selectExpr string) (*Printer, error) {
	p := &Printer{w: w, format: format}
	if selectExpr != "" {
		path, err := jsonpath.Parse(selectExpr)
		if err != nil {
			return nil, fmt.Errorf("invalid JSONPath %s: %w", selectExpr, err)
		}
		p.selector = path
	}
	return p, nil
}

// Entry is one printed result.
type Entry struct {
	Operation string
	// Sequence is the 1-based snapshot number; 0 for the final result.
	Sequence int
	Result   graphql.Result
}

func (e Entry) final() bool {
	return e.Sequence == 0
}

type jsonEntry struct {
	Operation string         `json:"operation"`
	Snapshot  int            `json:"snapshot,omitempty"`
	Final     bool           `json:"final"`
	Result    graphql.Result `json:"result,omitzero"`
	Selected  []any          `json:"selected,omitempty"`
}

// Print writes e in the configured format.
func (p *Printer) Print(e Entry) error {
	var selected []any
	if p.selector != nil {
		tree, err := toTree(e.Result)
		if err != nil {
			return err
		}
		selected = p.selector.Select(tree)
		if selected == nil {
			selected = []any{}
		}
	}

	var buf bytes.Buffer
	switch p.format {
	case FormatJSON:
		entry := jsonEntry{Operation: e.Operation, Snapshot: e.Sequence, Final: e.final()}
		if p.selector != nil {
			entry.Selected = selected
		} else {
			entry.Result = e.Result
		}
		if err := json.NewEncoder(&buf).Encode(entry); err != nil {
			return fmt.Errorf("encode result: %w", err)
		}
	default:
		if err := writeText(&buf, e, p.selector != nil, selected); err != nil {
			return err
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	_, err := p.w.Write(buf.Bytes())
	return err
}

func writeText(buf *bytes.Buffer, e Entry, selecting bool, selected []any) error {
	label := "final"
	if !e.final() {
		label = fmt.Sprintf("#%d", e.Sequence)
		if e.Result.HasNext != nil {
			label += fmt.Sprintf(" hasNext=%t", *e.Result.HasNext)
		}
	}
	fmt.Fprintf(buf, "[%s %s]", e.Operation, label)

	var values []any
	if selecting {
		values = selected
	} else {
		values = []any{e.Result}
	}

	if len(values) == 0 {
		buf.WriteString(" (no match)\n")
		return nil
	}
	for _, v := range values {
		encoded, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("encode result: %w", err)
		}
		buf.WriteByte(' ')
		buf.Write(encoded)
	}
	buf.WriteByte('\n')

	if e.final() {
		for _, gqlErr := range e.Result.Errors {
			fmt.Fprintf(buf, "  error: %s\n", gqlErr.Error())
		}
	}
	return nil
}

// toTree converts a result into the generic JSON tree JSONPath selects from.
func toTree(r graphql.Result) (any, error) {
	encoded, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("encode result: %w", err)
	}

	dec := json.NewDecoder(bytes.NewReader(encoded))
	dec.UseNumber()

	var tree any
	if err := dec.Decode(&tree); err != nil {
		return nil, fmt.Errorf("decode result: %w", err)
	}
	return tree, nil
}
