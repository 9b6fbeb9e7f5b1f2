package docstore

import (
	"encoding/json"
	"fmt"
	"strings"

	"eshop/internal/query"
)

// compiler renders predicates into a parameterised WHERE clause over the
// documents.data column. Field paths are validated before they are embedded
// as literals; every value travels as a bind argument.
type compiler struct {
	args []any
}

func (c *compiler) arg(v any) string {
	c.args = append(c.args, v)
	return fmt.Sprintf("$%d", len(c.args))
}

func jsonPath(field string) (string, error) {
	if !query.ValidPath(field) {
		return "", fmt.Errorf("invalid field path %q", field)
	}
	return "'{" + strings.ReplaceAll(field, ".", ",") + "}'", nil
}

func typedExpr(kind query.Kind, path string) string {
	text := "(data #>> " + path + ")"
	switch kind {
	case query.KindNumber:
		return text + "::numeric"
	case query.KindBool:
		return text + "::boolean"
	case query.KindTime:
		return text + "::timestamptz"
	default:
		return text
	}
}

var sqlOps = map[query.Operator]string{
	query.OpEq:  "=",
	query.OpGt:  ">",
	query.OpGte: ">=",
	query.OpLt:  "<",
	query.OpLte: "<=",
}

func (c *compiler) where(collection string, filters []query.Predicate, search *query.Search) (string, error) {
	clauses := []string{"collection = " + c.arg(collection)}
	for _, p := range filters {
		clause, err := c.predicate(p)
		if err != nil {
			return "", err
		}
		clauses = append(clauses, clause)
	}
	if search != nil && len(search.Fields) > 0 {
		pattern := c.arg("%" + escapeLike(search.Keyword) + "%")
		ors := make([]string, 0, len(search.Fields))
		for _, field := range search.Fields {
			path, err := jsonPath(field)
			if err != nil {
				return "", err
			}
			ors = append(ors, "data #>> "+path+" ILIKE "+pattern)
		}
		clauses = append(clauses, "("+strings.Join(ors, " OR ")+")")
	}
	return strings.Join(clauses, " AND "), nil
}

func (c *compiler) predicate(p query.Predicate) (string, error) {
	path, err := jsonPath(p.Field)
	if err != nil {
		return "", err
	}

	if p.Op == query.OpContains {
		raw, err := json.Marshal([]any{p.Value})
		if err != nil {
			return "", fmt.Errorf("encode contains value: %w", err)
		}
		return "data #> " + path + " @> " + c.arg(string(raw)) + "::jsonb", nil
	}

	if p.Value == nil {
		return "(data #> " + path + " IS NULL OR data #> " + path + " = 'null'::jsonb)", nil
	}

	op, ok := sqlOps[p.Op]
	if !ok {
		return "", fmt.Errorf("unsupported operator %q", p.Op)
	}

	// Scalar containment also matches array fields holding the value.
	if p.Op == query.OpEq && (p.Kind == query.KindString || p.Kind == query.KindID) {
		return "data #> " + path + " @> to_jsonb(" + c.arg(fmt.Sprint(p.Value)) + "::text)", nil
	}
	return typedExpr(p.Kind, path) + " " + op + " " + c.arg(p.Value), nil
}

func orderBy(keys []query.SortKey) (string, error) {
	parts := make([]string, 0, len(keys)+1)
	for _, k := range keys {
		path, err := jsonPath(k.Field)
		if err != nil {
			return "", err
		}
		dir := "ASC NULLS FIRST"
		if k.Desc {
			dir = "DESC NULLS LAST"
		}
		parts = append(parts, typedExpr(k.Kind, path)+" "+dir)
	}
	parts = append(parts, "id ASC")
	return strings.Join(parts, ", "), nil
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
