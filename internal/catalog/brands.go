package catalog

import (
	"context"

	"eshop/internal/docstore"
	"eshop/internal/query"
)

const Brands = "brands"

func (c *Catalog) brandResource() *Resource {
	return &Resource{
		Collection: Brands,
		Path:       "brands",
		Singular:   "brand",
		Plural:     "brands",
		NotFound:   "Brand not found",
		Schema: query.Schema{
			Fields: map[string]query.Kind{
				"name.en":     query.KindString,
				"name.ar":     query.KindString,
				"slug":        query.KindString,
				"is_featured": query.KindBool,
			},
			SearchFields: []string{"name.en", "name.ar"},
		},
		Writable:   []string{"name", "description", "is_featured"},
		JSONFields: []string{"name", "description"},
		Required:   []string{"name.en", "name.ar"},
		Defaults:   docstore.Document{"is_featured": false},
		Images:     []ImageSlot{{Form: "logo", Field: "logo_url", Folder: "brands"}},

		BeforeCreate: slugFrom("name.en"),
		BeforeUpdate: slugFrom("name.en"),
	}
}

// FeaturedBrands lists brands flagged is_featured, by name.
func (c *Catalog) FeaturedBrands(ctx context.Context) ([]docstore.Document, error) {
	docs, err := c.docs.Find(ctx, Brands, query.Spec{
		Filters:    []query.Predicate{query.Eq("is_featured", query.KindBool, true)},
		Sort:       []query.SortKey{{Field: "name.en", Kind: query.KindString}},
		Projection: query.Projection{Fields: []string{query.FieldVersion}, Exclude: true},
	})
	if err != nil {
		return nil, docstore.DomainError(err, c.brands.NotFound)
	}
	return docs, nil
}
