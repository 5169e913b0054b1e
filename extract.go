package jsonpoll

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrFieldNotFound is returned by [Lookup] when the path does not resolve.
var ErrFieldNotFound = errors.New("field not found")

// Lookup extracts a nested value from a JSON document using dot notation.
//
// Path segments name object keys; a segment that is a non-negative integer
// indexes into an array instead. An empty path returns the whole document.
// Numbers are returned as [json.Number] so that large integers survive.
//
// Example:
//
//	// For {"data": {"prices": [{"usd": 101.5}]}}
//	v, err := jsonpoll.Lookup(body, "data.prices.0.usd") // json.Number("101.5")
func Lookup(data []byte, path string) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, classifyJSONError(err)
	}

	if path == "" {
		return doc, nil
	}
	return walkPath(doc, strings.Split(path, "."))
}

// walkPath walks a decoded JSON structure one path segment at a time.
func walkPath(data any, parts []string) (any, error) {
	current := data

	for i, part := range parts {
		switch v := current.(type) {
		case map[string]any:
			next, ok := v[part]
			if !ok {
				return nil, fmt.Errorf("%w: %q", ErrFieldNotFound, strings.Join(parts[:i+1], "."))
			}
			current = next
		case []any:
			idx, err := strconv.Atoi(part)
			if err != nil || idx < 0 || idx >= len(v) {
				return nil, fmt.Errorf("%w: %q", ErrFieldNotFound, strings.Join(parts[:i+1], "."))
			}
			current = v[idx]
		default:
			return nil, fmt.Errorf("%w: %q is not an object or array", ErrFieldNotFound, strings.Join(parts[:i], "."))
		}
	}

	return current, nil
}
