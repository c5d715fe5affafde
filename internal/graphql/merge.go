package graphql

import (
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"slices"
)

var ErrInvalidPatch = errors.New("invalid incremental patch")

// Merger folds a sequence of payloads into one cumulative result.
// Every merge is copy-on-write: snapshots returned earlier are never modified.
type Merger struct {
	result Result
	merged int
	last   bool
}

// Result returns the current cumulative result.
func (m *Merger) Result() Result {
	return m.result
}

// Merged returns the number of payloads merged so far.
func (m *Merger) Merged() int {
	return m.merged
}

// Merge applies payload to the cumulative result and returns the new snapshot.
// On error the cumulative result is left untouched.
func (m *Merger) Merge(payload Result) (Result, error) {
	next := m.result

	if payload.Incremental == nil {
		if payload.Data != nil {
			next.Data = payload.Data
		}
		if payload.Errors != nil {
			next.Errors = payload.Errors
		}
	} else {
		for i, patch := range payload.Incremental {
			if len(patch.Errors) > 0 {
				next.Errors = slices.Concat(next.Errors, patch.Errors)
			}
			next.Extensions = mergeExtensions(next.Extensions, patch.Extensions)

			data, err := applyPatch(next.Data, patch)
			if err != nil {
				return Result{}, fmt.Errorf("incremental[%d] at %s: %w", i, patch.Path, err)
			}
			next.Data = data
		}
	}
	next.Incremental = payload.Incremental

	next.Extensions = mergeExtensions(next.Extensions, payload.Extensions)
	if payload.HasNext != nil {
		next.HasNext = Bool(*payload.HasNext)
		m.last = !*payload.HasNext
	}

	m.result = next
	m.merged++
	return next, nil
}

// Complete merges a synthetic {hasNext: false} when no payload declared itself
// the last one. It reports whether a terminal snapshot was produced.
func (m *Merger) Complete() (Result, bool) {
	if m.last {
		return m.result, false
	}

	snapshot, _ := m.Merge(Result{HasNext: Bool(false)})
	return snapshot, true
}

func mergeExtensions(dst, src map[string]any) map[string]any {
	if len(src) == 0 {
		return dst
	}

	out := make(map[string]any, len(dst)+len(src))
	maps.Copy(out, dst)
	maps.Copy(out, src)
	return out
}

func applyPatch(root any, patch Patch) (any, error) {
	path := patch.Path
	if len(path) > 0 && !path[0].IsIndex() && path[0].Key() == "data" && !hasField(root, "data") {
		path = path[1:]
	}

	switch {
	case patch.Items != nil:
		value, err := decodeValue(patch.Items)
		if err != nil {
			return nil, fmt.Errorf("%w: items: %v", ErrInvalidPatch, err)
		}
		items, ok := value.([]any)
		if !ok {
			return nil, fmt.Errorf("%w: items must be a list, got %s", ErrInvalidPatch, kindOf(value))
		}

		if n := len(path); n > 0 && path[n-1].IsIndex() {
			start := path[n-1].Index()
			return updateAt(root, path[:n-1], func(list any) (any, error) {
				return mergeItems(list, start, items)
			})
		}

		return updateAt(root, path, func(list any) (any, error) {
			existing, _ := list.([]any)
			return mergeItems(list, len(existing), items)
		})

	case patch.Data != nil:
		data, err := decodeValue(patch.Data)
		if err != nil {
			return nil, fmt.Errorf("%w: data: %v", ErrInvalidPatch, err)
		}

		return updateAt(root, path, func(current any) (any, error) {
			return DeepMerge(current, data), nil
		})
	}

	return root, nil
}

func hasField(node any, key string) bool {
	obj, ok := node.(map[string]any)
	if !ok {
		return false
	}
	_, ok = obj[key]
	return ok
}

// updateAt rebuilds the containers along path, replacing the addressed value
// with the result of fn. Missing containers are created.
func updateAt(node any, path Path, fn func(any) (any, error)) (any, error) {
	if len(path) == 0 {
		return fn(node)
	}

	segment := path[0]
	if segment.IsIndex() {
		var list []any
		switch v := node.(type) {
		case []any:
			list = v
		case nil:
		default:
			return nil, fmt.Errorf("%w: index %d on %s", ErrInvalidPatch, segment.Index(), kindOf(node))
		}

		index := segment.Index()
		if index < 0 {
			return nil, fmt.Errorf("%w: negative index %d", ErrInvalidPatch, index)
		}

		var child any
		if index < len(list) {
			child = list[index]
		}

		updated, err := updateAt(child, path[1:], fn)
		if err != nil {
			return nil, err
		}

		out := make([]any, max(len(list), index+1))
		copy(out, list)
		out[index] = updated
		return out, nil
	}

	var obj map[string]any
	switch v := node.(type) {
	case map[string]any:
		obj = v
	case nil:
	default:
		return nil, fmt.Errorf("%w: field %q on %s", ErrInvalidPatch, segment.Key(), kindOf(node))
	}

	updated, err := updateAt(obj[segment.Key()], path[1:], fn)
	if err != nil {
		return nil, err
	}

	out := make(map[string]any, len(obj)+1)
	maps.Copy(out, obj)
	out[segment.Key()] = updated
	return out, nil
}

func mergeItems(node any, start int, items []any) (any, error) {
	var list []any
	switch v := node.(type) {
	case []any:
		list = v
	case nil:
	default:
		return nil, fmt.Errorf("%w: items target is %s", ErrInvalidPatch, kindOf(node))
	}

	if start < 0 {
		return nil, fmt.Errorf("%w: negative start index %d", ErrInvalidPatch, start)
	}

	out := make([]any, max(len(list), start+len(items)))
	copy(out, list)
	for i, item := range items {
		out[start+i] = DeepMerge(out[start+i], item)
	}
	return out, nil
}

// DeepMerge merges incoming into target without modifying either.
//
//	object ← object  keys merged recursively into a clone of target
//	list   ← list    indexes merged recursively into a clone of target
//	object ← other   target kept
//	list   ← other   target kept
//	scalar ← any     incoming replaces target
func DeepMerge(target, incoming any) any {
	switch t := target.(type) {
	case map[string]any:
		src, ok := incoming.(map[string]any)
		if !ok {
			return t
		}

		out := make(map[string]any, len(t)+len(src))
		maps.Copy(out, t)
		for key, value := range src {
			out[key] = DeepMerge(out[key], value)
		}
		return out

	case []any:
		src, ok := incoming.([]any)
		if !ok {
			return t
		}

		out := make([]any, max(len(t), len(src)))
		copy(out, t)
		for i, value := range src {
			out[i] = DeepMerge(out[i], value)
		}
		return out

	default:
		return incoming
	}
}

func kindOf(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case bool:
		return "boolean"
	case json.Number, float64:
		return "number"
	case string:
		return "string"
	case []any:
		return "list"
	case map[string]any:
		return "object"
	default:
		return fmt.Sprintf("%T", v)
	}
}
