// Package payload normalizes create/update bodies: it decodes JSON or
// multipart requests into one shape, drops keys outside a whitelist and
// decodes nested objects that multipart clients send as JSON strings.
package payload

import (
	"encoding/json"
	"fmt"
	"maps"

	dErrors "eshop/pkg/domain-errors"
)

// Fields is a decoded request body keyed by top-level field name.
type Fields map[string]any

// FilterObject returns the entries of fields whose keys are allowed.
// The input map is never modified.
func FilterObject(fields Fields, allowed ...string) Fields {
	out := make(Fields, len(allowed))
	for _, key := range allowed {
		if v, ok := fields[key]; ok {
			out[key] = v
		}
	}
	return out
}

// ParseJSONFields decodes the listed fields when they hold a JSON string.
// Non-string and absent fields pass through untouched. The first field that
// fails to decode aborts normalization.
func ParseJSONFields(fields Fields, names ...string) (Fields, error) {
	out := maps.Clone(fields)
	if out == nil {
		out = Fields{}
	}
	for _, name := range names {
		raw, ok := out[name].(string)
		if !ok {
			continue
		}
		var decoded any
		if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
			return nil, MalformedField(name, err)
		}
		out[name] = decoded
	}
	return out, nil
}

// MalformedField reports a field whose string value is not valid JSON.
func MalformedField(name string, err error) error {
	return dErrors.Wrap(err, dErrors.CodeMalformedField, fmt.Sprintf("Invalid JSON format for %s field", name))
}

// Normalize applies the whitelist first, then JSON decoding of nested fields.
func Normalize(fields Fields, allowed, jsonFields []string) (Fields, error) {
	return ParseJSONFields(FilterObject(fields, allowed...), jsonFields...)
}
