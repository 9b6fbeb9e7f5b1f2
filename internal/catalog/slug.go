package catalog

import (
	"context"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Slugify lower-cases s, folds accents and joins the remaining ASCII words
// with dashes. Other characters are dropped.
func Slugify(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}

	var b strings.Builder
	sep := false
	for _, r := range strings.ToLower(folded) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			if sep && b.Len() > 0 {
				b.WriteByte('-')
			}
			b.WriteRune(r)
			sep = false
		case unicode.IsSpace(r), r == '-', r == '_':
			sep = true
		}
	}
	return b.String()
}

// slugFrom derives slug from the English name on create and whenever the
// name changes.
func slugFrom(source string) Hook {
	return func(_ context.Context, m *Mutation) error {
		name, ok := m.Changes.Get(source)
		if !ok {
			return nil
		}
		s, _ := name.(string)
		if slug := Slugify(s); slug != "" {
			m.Changes["slug"] = slug
		}
		return nil
	}
}

// chain runs hooks in order.
func chain(hooks ...Hook) Hook {
	return func(ctx context.Context, m *Mutation) error {
		for _, h := range hooks {
			if err := h(ctx, m); err != nil {
				return err
			}
		}
		return nil
	}
}
