package query

import (
	"errors"
	"fmt"
	"math"
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	dErrors "eshop/pkg/domain-errors"
)

const (
	ParamPage    = "page"
	ParamSort    = "sort"
	ParamLimit   = "limit"
	ParamFields  = "fields"
	ParamKeyword = "keyword"
)

var (
	reservedParams = map[string]bool{
		ParamPage:    true,
		ParamSort:    true,
		ParamLimit:   true,
		ParamFields:  true,
		ParamKeyword: true,
	}
	filterKey = regexp.MustCompile(`^([A-Za-z_][A-Za-z0-9_.]*)(?:\[([A-Za-z]+)\])?$`)
	rangeOps  = map[string]Operator{
		"gt":  OpGt,
		"gte": OpGte,
		"lt":  OpLt,
		"lte": OpLte,
	}
)

// Builder shapes one list request. Every stage mutates the builder and
// returns it, so stages chain in any order; failures are collected and
// reported by Build.
//
//	spec, err := query.New(schema, r.URL.Query()).
//		Filter().Search().Sort().LimitFields().Paginate().Build()
type Builder struct {
	schema Schema
	params url.Values
	spec   Spec
	errs   []error
}

// New starts a builder with the defaults every list response honours:
// first page of DefaultLimit, schema default sort, internal version hidden.
func New(schema Schema, params url.Values) *Builder {
	b := &Builder{
		schema: schema,
		params: params,
		spec: Spec{
			Page:       DefaultPage,
			Limit:      DefaultLimit,
			Projection: Projection{Fields: []string{FieldVersion}, Exclude: true},
		},
	}
	b.spec.Sort, _ = b.parseSort(schema.defaultSort())
	return b
}

// FromRequest runs every stage over params.
func FromRequest(schema Schema, params url.Values) (Spec, error) {
	return New(schema, params).Filter().Search().Sort().LimitFields().Paginate().Build()
}

// Filter turns every non-reserved parameter into predicates. Keys are either
// "field" (equality) or "field[op]" with op one of gt, gte, lt, lte.
func (b *Builder) Filter() *Builder {
	keys := make([]string, 0, len(b.params))
	for key := range b.params {
		if !reservedParams[key] {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)

	for _, key := range keys {
		m := filterKey.FindStringSubmatch(key)
		if m == nil || !ValidPath(m[1]) {
			b.fail(dErrors.New(dErrors.CodeBadRequest, fmt.Sprintf("Invalid filter field: %s", key)))
			continue
		}
		field, opName := m[1], m[2]

		kind, ok := b.schema.Kind(field)
		if !ok {
			b.fail(dErrors.New(dErrors.CodeBadRequest, fmt.Sprintf("Invalid filter field: %s", field)))
			continue
		}

		op := OpEq
		if opName != "" {
			op, ok = rangeOps[opName]
			if !ok {
				b.fail(dErrors.New(dErrors.CodeBadRequest, fmt.Sprintf("Unsupported operator: %s", opName)))
				continue
			}
			if !kind.Ranged() {
				b.fail(dErrors.New(dErrors.CodeBadRequest, fmt.Sprintf("Operator %s is not supported for field %s", opName, field)))
				continue
			}
		}

		for _, raw := range b.params[key] {
			value, err := Convert(kind, raw)
			if err != nil {
				b.fail(dErrors.Wrap(err, dErrors.CodeInvalidInput, fmt.Sprintf("Invalid %s: %s", field, raw)))
				continue
			}
			b.spec.Filters = append(b.spec.Filters, Predicate{Field: field, Kind: kind, Op: op, Value: value})
		}
	}
	return b
}

// Where appends predicates decided by the caller rather than the client.
func (b *Builder) Where(preds ...Predicate) *Builder {
	b.spec.Filters = append(b.spec.Filters, preds...)
	return b
}

// Search matches the keyword case-insensitively against the schema's search
// fields. Collections without search fields ignore the keyword.
func (b *Builder) Search() *Builder {
	keyword := strings.TrimSpace(b.params.Get(ParamKeyword))
	if keyword == "" || len(b.schema.SearchFields) == 0 {
		return b
	}
	b.spec.Search = &Search{Keyword: keyword, Fields: b.schema.SearchFields}
	return b
}

// Sort reads a comma-separated key list; a leading "-" sorts descending.
func (b *Builder) Sort() *Builder {
	raw := strings.Join(b.params[ParamSort], ",")
	if strings.TrimSpace(strings.ReplaceAll(raw, ",", "")) == "" {
		return b
	}
	keys, err := b.parseSort(raw)
	if err != nil {
		b.fail(err)
		return b
	}
	b.spec.Sort = keys
	return b
}

func (b *Builder) parseSort(raw string) ([]SortKey, error) {
	var keys []SortKey
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		desc := strings.HasPrefix(part, "-")
		field := strings.TrimPrefix(part, "-")
		kind, ok := b.schema.Kind(field)
		if !ok {
			return nil, dErrors.New(dErrors.CodeBadRequest, fmt.Sprintf("Invalid sort field: %s", field))
		}
		keys = append(keys, SortKey{Field: field, Kind: kind, Desc: desc})
	}
	return keys, nil
}

// LimitFields reads a comma-separated projection. All plain names include,
// all "-" names exclude; mixing the two is rejected.
func (b *Builder) LimitFields() *Builder {
	raw := strings.Join(b.params[ParamFields], ",")
	var include, exclude []string
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name := strings.TrimPrefix(part, "-")
		if !ValidPath(name) {
			b.fail(dErrors.New(dErrors.CodeBadRequest, fmt.Sprintf("Invalid field: %s", part)))
			return b
		}
		if strings.HasPrefix(part, "-") {
			exclude = append(exclude, name)
		} else {
			include = append(include, name)
		}
	}

	switch {
	case len(include) > 0 && len(exclude) > 0:
		b.fail(dErrors.New(dErrors.CodeBadRequest, "Cannot mix included and excluded fields"))
	case len(include) > 0:
		b.spec.Projection = Projection{Fields: include}
	case len(exclude) > 0:
		b.spec.Projection = Projection{Fields: exclude, Exclude: true}
	}
	return b
}

// Paginate derives page, limit and skip. Missing, non-numeric or
// non-positive values fall back to the defaults; limit is capped at MaxLimit
// and page so that skip cannot overflow.
func (b *Builder) Paginate() *Builder {
	limit := min(positiveInt(b.params.Get(ParamLimit), DefaultLimit), MaxLimit)
	page := min(positiveInt(b.params.Get(ParamPage), DefaultPage), math.MaxInt/limit+1)
	b.spec.Page = page
	b.spec.Limit = limit
	b.spec.Skip = (page - 1) * limit
	return b
}

// Build returns the compiled Spec or every stage failure joined together.
// The first failure decides the domain code.
func (b *Builder) Build() (Spec, error) {
	if len(b.errs) > 0 {
		if len(b.errs) == 1 {
			return Spec{}, b.errs[0]
		}
		return Spec{}, dErrors.Wrap(errors.Join(b.errs...), dErrors.CodeBadRequest, b.errs[0].Error())
	}
	return b.spec, nil
}

func (b *Builder) fail(err error) {
	b.errs = append(b.errs, err)
}

func positiveInt(raw string, fallback int) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n < 1 {
		return fallback
	}
	return n
}

// Convert parses a raw query or form value as kind.
func Convert(kind Kind, raw string) (any, error) {
	raw = strings.TrimSpace(raw)
	switch kind {
	case KindNumber:
		return strconv.ParseFloat(raw, 64)
	case KindBool:
		return strconv.ParseBool(raw)
	case KindID:
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, err
		}
		return id.String(), nil
	case KindTime:
		return ParseTime(raw)
	default:
		return raw, nil
	}
}

// ParseTime accepts RFC 3339 timestamps and bare dates.
func ParseTime(raw string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		return t, nil
	}
	return time.Parse(time.DateOnly, raw)
}
