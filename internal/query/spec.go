// Package query turns list-endpoint query strings into a store-agnostic
// Spec: filter predicates, free-text search, sort keys, projection and
// pagination.
package query

import (
	"regexp"
	"time"
)

// Kind is the declared type of a filterable field. It drives value
// conversion here and comparison semantics in the stores.
type Kind int

const (
	KindString Kind = iota
	KindNumber
	KindBool
	KindID
	KindTime
)

func (k Kind) String() string {
	switch k {
	case KindNumber:
		return "number"
	case KindBool:
		return "bool"
	case KindID:
		return "id"
	case KindTime:
		return "time"
	default:
		return "string"
	}
}

// Ranged reports whether gt/gte/lt/lte make sense for the kind.
func (k Kind) Ranged() bool {
	return k == KindNumber || k == KindTime
}

type Operator string

const (
	OpEq  Operator = "eq"
	OpGt  Operator = "gt"
	OpGte Operator = "gte"
	OpLt  Operator = "lt"
	OpLte Operator = "lte"
	// OpContains matches array fields holding an element equal to Value, or,
	// for object elements, an element carrying every key of Value.
	OpContains Operator = "contains"
)

// Predicate is one field comparison. A nil Value with OpEq matches documents
// where the field is missing or null.
type Predicate struct {
	Field string
	Kind  Kind
	Op    Operator
	Value any
}

// Eq builds an equality predicate for code-side constraints
// (ownership filters, tree lookups).
func Eq(field string, kind Kind, value any) Predicate {
	return Predicate{Field: field, Kind: kind, Op: OpEq, Value: value}
}

// IsNull matches documents where field is missing or null.
func IsNull(field string) Predicate {
	return Predicate{Field: field, Kind: KindString, Op: OpEq}
}

// Contains matches array fields with an element like value.
func Contains(field string, value any) Predicate {
	return Predicate{Field: field, Op: OpContains, Value: value}
}

// After matches time fields strictly later than t.
func After(field string, t time.Time) Predicate {
	return Predicate{Field: field, Kind: KindTime, Op: OpGt, Value: t}
}

type SortKey struct {
	Field string
	Kind  Kind
	Desc  bool
}

// Projection selects returned fields. With Exclude unset, only Fields
// (plus _id) are returned; with Exclude set, Fields are dropped.
type Projection struct {
	Fields  []string
	Exclude bool
}

type Search struct {
	Keyword string
	Fields  []string
}

type Spec struct {
	Filters    []Predicate
	Search     *Search
	Sort       []SortKey
	Projection Projection
	Page       int
	Limit      int
	Skip       int
}

const (
	DefaultPage  = 1
	DefaultLimit = 20
	MaxLimit     = 100

	FieldID        = "_id"
	FieldCreatedAt = "created_at"
	FieldUpdatedAt = "updated_at"
	FieldVersion   = "__v"
)

var fieldPath = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z0-9_]+)*$`)

// ValidPath reports whether s is a dotted field path safe to embed in a
// store query.
func ValidPath(s string) bool {
	return fieldPath.MatchString(s)
}
