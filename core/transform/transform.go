package transform

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// Transformer applies a declarative two-stage reshaping to a node's input or
// output payload: first Path selects a sub-document, then Selector maps output
// keys to paths within that sub-document.
//
// Paths use gjson syntax ("a.b.0.c"); a leading "$." or "$" is accepted and
// stripped for compatibility with JSONPath-style configuration. A missing
// path or selector target is a hard error: the node fails, it is not a
// recoverable condition.
//
// The zero Transformer is the identity.
type Transformer struct {
	// Path selects a sub-document of the payload before mapping.
	Path string `json:"path,omitempty"`

	// Selector maps output field names to source paths.
	Selector map[string]string `json:"selector,omitempty"`
}

// IsZero reports whether the transformer is the identity.
func (t Transformer) IsZero() bool {
	return t.Path == "" && len(t.Selector) == 0
}

// Apply runs path selection then selector mapping over data. The payload is
// round-tripped through JSON, so data must be JSON-serializable.
func (t Transformer) Apply(data any) (any, error) {
	if t.IsZero() {
		return data, nil
	}

	doc, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("transform: payload is not JSON-serializable: %w", err)
	}

	if t.Path != "" {
		selected := gjson.GetBytes(doc, normalizePath(t.Path))
		if !selected.Exists() {
			return nil, fmt.Errorf("transform: path %q not found in payload", t.Path)
		}
		doc = []byte(selected.Raw)
	}

	if len(t.Selector) > 0 {
		mapped, mapErr := t.applySelector(doc)
		if mapErr != nil {
			return nil, mapErr
		}
		doc = mapped
	}

	var result any
	if err := json.Unmarshal(doc, &result); err != nil {
		return nil, fmt.Errorf("transform: failed to decode transformed payload: %w", err)
	}
	return result, nil
}

// applySelector builds a fresh object with each selector key set to the value
// found at its source path. Keys are processed in sorted order so failures are
// deterministic.
func (t Transformer) applySelector(doc []byte) ([]byte, error) {
	keys := make([]string, 0, len(t.Selector))
	for key := range t.Selector {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	mapped := []byte(`{}`)
	for _, key := range keys {
		sourcePath := t.Selector[key]
		value := gjson.GetBytes(doc, normalizePath(sourcePath))
		if !value.Exists() {
			return nil, fmt.Errorf("transform: selector target %q (path %q) not found in payload", key, sourcePath)
		}

		var setErr error
		mapped, setErr = sjson.SetRawBytes(mapped, key, []byte(value.Raw))
		if setErr != nil {
			return nil, fmt.Errorf("transform: failed to set selector key %q: %w", key, setErr)
		}
	}
	return mapped, nil
}

// normalizePath strips a JSONPath-style "$." or "$" prefix.
func normalizePath(path string) string {
	if strings.HasPrefix(path, "$.") {
		return path[2:]
	}
	if path == "$" {
		return "@this"
	}
	return path
}
