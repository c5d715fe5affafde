package operation

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/goccy/go-yaml/ast"
)

// Header is one request header entry.
type Header struct {
	Name  string `yaml:"name"`
	Value string `yaml:"value"`
}

// Headers preserves declaration order so repeated names are sent as written.
type Headers []Header

// Get returns the last value for a case-insensitive name match.
func (h Headers) Get(name string) (string, bool) {
	for i := len(h) - 1; i >= 0; i-- {
		if strings.EqualFold(h[i].Name, name) {
			return h[i].Value, true
		}
	}
	return "", false
}

// UnmarshalYAML accepts both mapping and sequence forms:
//
//	headers:
//	  Authorization: Bearer token
//
// or:
//
//	headers:
//	  - name: Authorization
//	    value: Bearer token
func (h *Headers) UnmarshalYAML(node ast.Node) error {
	switch n := node.(type) {
	case *ast.MappingNode:
		out := make(Headers, 0, len(n.Values))
		for _, pair := range n.Values {
			nameNode, ok := pair.Key.(*ast.StringNode)
			if !ok {
				return fmt.Errorf("%w: header name must be string", ErrInvalidOperation)
			}

			value, err := scalarString(pair.Value)
			if err != nil {
				return fmt.Errorf("%w: header %q: %v", ErrInvalidOperation, nameNode.Value, err)
			}
			out = append(out, Header{Name: nameNode.Value, Value: value})
		}
		*h = out
		return nil
	case *ast.SequenceNode:
		out := make(Headers, 0, len(n.Values))
		for index, item := range n.Values {
			entry, err := sequenceHeader(item)
			if err != nil {
				return fmt.Errorf("%w: header at index %d: %v", ErrInvalidOperation, index, err)
			}
			out = append(out, entry)
		}
		*h = out
		return nil
	case *ast.NullNode:
		*h = nil
		return nil
	default:
		return fmt.Errorf("%w: headers must be mapping or sequence", ErrInvalidOperation)
	}
}

func sequenceHeader(node ast.Node) (Header, error) {
	mapNode, ok := node.(*ast.MappingNode)
	if !ok {
		return Header{}, fmt.Errorf("entry must be mapping")
	}

	var (
		entry    Header
		hasName  bool
		hasValue bool
	)
	for _, pair := range mapNode.Values {
		field, ok := pair.Key.(*ast.StringNode)
		if !ok {
			return Header{}, fmt.Errorf("field name must be string")
		}

		value, err := scalarString(pair.Value)
		if err != nil {
			return Header{}, fmt.Errorf("field %q: %v", field.Value, err)
		}

		switch field.Value {
		case "name":
			entry.Name = value
			hasName = true
		case "value":
			entry.Value = value
			hasValue = true
		default:
			return Header{}, fmt.Errorf("unknown field %q", field.Value)
		}
	}

	switch {
	case !hasName || entry.Name == "":
		return Header{}, fmt.Errorf("missing name")
	case !hasValue:
		return Header{}, fmt.Errorf("missing value")
	}
	return entry, nil
}

func scalarString(node ast.Node) (string, error) {
	switch n := node.(type) {
	case *ast.NullNode:
		return "", nil
	case *ast.StringNode:
		return n.Value, nil
	case *ast.IntegerNode:
		switch v := n.Value.(type) {
		case int64:
			return strconv.FormatInt(v, 10), nil
		case uint64:
			return strconv.FormatUint(v, 10), nil
		default:
			return "", fmt.Errorf("unexpected integer value type %T", n.Value)
		}
	case *ast.FloatNode:
		return strconv.FormatFloat(n.Value, 'f', -1, 64), nil
	case *ast.BoolNode:
		return strconv.FormatBool(n.Value), nil
	default:
		return "", fmt.Errorf("value must be scalar, got %T", node)
	}
}
