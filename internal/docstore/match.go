package docstore

import (
	"cmp"
	"fmt"
	"strings"
	"time"

	"eshop/internal/query"
)

// matches evaluates predicates and search the way the Postgres compiler
// does, for the in-memory store.
func matches(doc Document, filters []query.Predicate, search *query.Search) bool {
	for _, p := range filters {
		if !matchPredicate(doc, p) {
			return false
		}
	}
	if search == nil {
		return true
	}
	needle := strings.ToLower(search.Keyword)
	for _, field := range search.Fields {
		if strings.Contains(strings.ToLower(doc.String(field)), needle) {
			return true
		}
	}
	return false
}

func matchPredicate(doc Document, p query.Predicate) bool {
	v, ok := doc.Get(p.Field)
	if p.Op == query.OpContains {
		list, isList := v.([]any)
		if !isList {
			return false
		}
		for _, elem := range list {
			if containsValue(elem, p.Value) {
				return true
			}
		}
		return false
	}
	if p.Value == nil {
		return !ok || v == nil
	}
	if !ok || v == nil {
		return false
	}

	// Equality against an array field matches any element.
	if list, isList := v.([]any); isList && p.Op == query.OpEq {
		for _, elem := range list {
			if c, ok := compareValues(p.Kind, elem, p.Value); ok && c == 0 {
				return true
			}
		}
		return false
	}

	c, ok := compareValues(p.Kind, v, p.Value)
	if !ok {
		return false
	}
	switch p.Op {
	case query.OpEq:
		return c == 0
	case query.OpGt:
		return c > 0
	case query.OpGte:
		return c >= 0
	case query.OpLt:
		return c < 0
	case query.OpLte:
		return c <= 0
	}
	return false
}

func containsValue(elem, want any) bool {
	wantMap, ok := want.(map[string]any)
	if !ok {
		return fmt.Sprint(elem) == fmt.Sprint(want)
	}
	elemMap, ok := elem.(map[string]any)
	if !ok {
		return false
	}
	for k, wv := range wantMap {
		if fmt.Sprint(elemMap[k]) != fmt.Sprint(wv) {
			return false
		}
	}
	return true
}

// compareValues orders a stored value against a predicate value by kind.
// ok is false when the stored value cannot be read as that kind.
func compareValues(kind query.Kind, stored, want any) (int, bool) {
	switch kind {
	case query.KindNumber:
		a, okA := toFloat(stored)
		b, okB := toFloat(want)
		if !okA || !okB {
			return 0, false
		}
		return cmp.Compare(a, b), true
	case query.KindBool:
		a, okA := stored.(bool)
		b, okB := want.(bool)
		if !okA || !okB {
			return 0, false
		}
		if a == b {
			return 0, true
		}
		if !a {
			return -1, true
		}
		return 1, true
	case query.KindTime:
		a, okA := toTime(stored)
		b, okB := toTime(want)
		if !okA || !okB {
			return 0, false
		}
		return a.Compare(b), true
	default:
		return strings.Compare(fmt.Sprint(stored), fmt.Sprint(want)), true
	}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

func toTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case string:
		parsed, err := query.ParseTime(t)
		return parsed, err == nil
	}
	return time.Time{}, false
}

// compareDocs orders two documents by sort keys; missing values sort first
// ascending and last descending. Ties fall back to _id.
func compareDocs(a, b Document, keys []query.SortKey) int {
	for _, k := range keys {
		av, aok := a.Get(k.Field)
		bv, bok := b.Get(k.Field)
		aok = aok && av != nil
		bok = bok && bv != nil

		var c int
		switch {
		case !aok && !bok:
			c = 0
		case !aok:
			c = -1
		case !bok:
			c = 1
		default:
			c, _ = compareValues(k.Kind, av, bv)
		}
		if k.Desc {
			c = -c
		}
		if c != 0 {
			return c
		}
	}
	return strings.Compare(a.ID(), b.ID())
}
