package docstore

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"eshop/internal/query"
)

// Document is one stored record. Values follow encoding/json conventions:
// numbers are float64, timestamps RFC 3339 strings, nested objects
// map[string]any and arrays []any.
type Document map[string]any

// ID returns the document's _id.
func (d Document) ID() string {
	s, _ := d[query.FieldID].(string)
	return s
}

// Get resolves a dotted path through nested objects.
func (d Document) Get(path string) (any, bool) {
	var cur any = map[string]any(d)
	for _, part := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// String returns the string at path, or "".
func (d Document) String(path string) string {
	v, _ := d.Get(path)
	s, _ := v.(string)
	return s
}

// Float returns the number at path, or 0.
func (d Document) Float(path string) float64 {
	v, _ := d.Get(path)
	f, _ := v.(float64)
	return f
}

// Bool returns the boolean at path, or false.
func (d Document) Bool(path string) bool {
	v, _ := d.Get(path)
	b, _ := v.(bool)
	return b
}

// Time parses the timestamp at path. The zero time means missing.
func (d Document) Time(path string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, d.String(path))
	if err != nil {
		return time.Time{}
	}
	return t
}

// Decode converts the document into a typed value through its JSON form.
func (d Document) Decode(dst any) error {
	raw, err := json.Marshal(d)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, dst)
}

// Normalize converts arbitrary Go values (structs, time.Time, ints) into the
// JSON-shaped form the stores keep, so both stores compare the same values.
func Normalize(v any) (Document, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	if doc == nil {
		doc = Document{}
	}
	return doc, nil
}

// merge applies a shallow update: top-level keys in changes replace the
// existing ones and nil values remove them. Identity and creation time are
// never overwritten.
func merge(existing, changes Document, now time.Time) Document {
	out := make(Document, len(existing)+len(changes))
	for k, v := range existing {
		out[k] = v
	}
	for k, v := range changes {
		switch k {
		case query.FieldID, query.FieldCreatedAt, query.FieldVersion:
			continue
		}
		if v == nil {
			delete(out, k)
			continue
		}
		out[k] = v
	}
	out[query.FieldUpdatedAt] = now.UTC().Format(time.RFC3339Nano)
	out[query.FieldVersion] = existing.Float(query.FieldVersion) + 1
	return out
}

// Project applies a projection to a document. _id is always kept by an
// inclusion projection.
func Project(doc Document, p query.Projection) Document {
	if len(p.Fields) == 0 {
		return doc
	}
	if p.Exclude {
		out := deepCopy(doc)
		for _, path := range p.Fields {
			removePath(out, strings.Split(path, "."))
		}
		return out
	}
	out := Document{}
	if id, ok := doc[query.FieldID]; ok {
		out[query.FieldID] = id
	}
	for _, path := range p.Fields {
		if v, ok := doc.Get(path); ok {
			setPath(out, strings.Split(path, "."), v)
		}
	}
	return out
}

func deepCopy(doc Document) Document {
	out, err := Normalize(doc)
	if err != nil {
		return doc
	}
	return out
}

func removePath(m map[string]any, parts []string) {
	if len(parts) == 1 {
		delete(m, parts[0])
		return
	}
	if child, ok := m[parts[0]].(map[string]any); ok {
		removePath(child, parts[1:])
	}
}

func setPath(m map[string]any, parts []string, v any) {
	if len(parts) == 1 {
		m[parts[0]] = v
		return
	}
	child, ok := m[parts[0]].(map[string]any)
	if !ok {
		child = map[string]any{}
		m[parts[0]] = child
	}
	setPath(child, parts[1:], v)
}
