package catalog

import (
	"context"

	"eshop/internal/docstore"
	"eshop/internal/query"
	dErrors "eshop/pkg/domain-errors"
)

const (
	Regions         = "regions"
	Areas           = "areas"
	Sliders         = "sliders"
	ProductServices = "product_services"
)

var localizedName = map[string]query.Kind{
	"name.en": query.KindString,
	"name.ar": query.KindString,
}

func withName(fields map[string]query.Kind) map[string]query.Kind {
	out := make(map[string]query.Kind, len(fields)+len(localizedName))
	for k, v := range localizedName {
		out[k] = v
	}
	for k, v := range fields {
		out[k] = v
	}
	return out
}

func (c *Catalog) regionResource() *Resource {
	return &Resource{
		Collection: Regions,
		Path:       "regions",
		Singular:   "region",
		Plural:     "regions",
		NotFound:   "No region found with that ID",
		Schema: query.Schema{
			Fields: withName(map[string]query.Kind{
				"source_id":    query.KindString,
				"country_code": query.KindString,
				"is_active":    query.KindBool,
			}),
			SearchFields: []string{"name.en", "name.ar"},
			DefaultSort:  "name.en",
		},
		Writable:   []string{"name", "source_id", "country_code", "is_active"},
		JSONFields: []string{"name"},
		Required:   []string{"name.en", "name.ar", "source_id"},
		Defaults:   docstore.Document{"country_code": "EG", "is_active": true},
	}
}

func (c *Catalog) areaResource() *Resource {
	return &Resource{
		Collection: Areas,
		Path:       "areas",
		Singular:   "area",
		Plural:     "areas",
		NotFound:   "No area found with that ID",
		Schema: query.Schema{
			Fields: withName(map[string]query.Kind{
				"region_id":               query.KindID,
				"source_id":               query.KindString,
				"extra_shipping_fees":     query.KindNumber,
				"extra_installation_fees": query.KindNumber,
				"cod_unavailable":         query.KindBool,
				"is_active":               query.KindBool,
			}),
			SearchFields: []string{"name.en", "name.ar"},
			DefaultSort:  "name.en",
		},
		Writable: []string{
			"name", "region_id", "source_id", "extra_shipping_fees",
			"extra_installation_fees", "cod_unavailable", "is_active",
		},
		JSONFields: []string{"name"},
		Required:   []string{"name.en", "name.ar", "region_id", "source_id"},
		Defaults: docstore.Document{
			"extra_shipping_fees":     float64(0),
			"extra_installation_fees": float64(0),
			"cod_unavailable":         false,
			"is_active":               true,
		},

		BeforeCreate: c.checkRegion,
		BeforeUpdate: c.checkRegion,
	}
}

// checkRegion requires region_id to name an existing region.
func (c *Catalog) checkRegion(ctx context.Context, m *Mutation) error {
	id, _ := m.Changes["region_id"].(string)
	if id == "" {
		return nil
	}
	if _, err := c.docs.FindByID(ctx, Regions, id); err != nil {
		if err := docstore.DomainError(err, ""); dErrors.CodeOf(err) == dErrors.CodeInternal {
			return err
		}
		return dErrors.New(dErrors.CodeBadRequest, "Region not found")
	}
	return nil
}

func sliderResource() *Resource {
	return &Resource{
		Collection: Sliders,
		Path:       "sliders",
		Singular:   "slider",
		Plural:     "sliders",
		NotFound:   "No slider found with that ID",
		Schema: query.Schema{
			Fields: map[string]query.Kind{
				"title.en":   query.KindString,
				"sort_order": query.KindNumber,
				"is_active":  query.KindBool,
			},
			DefaultSort: "sort_order",
		},
		Writable:   []string{"title", "url", "image", "mobile_image", "sort_order", "is_active"},
		JSONFields: []string{"title", "image", "mobile_image"},
		Required:   []string{"url", "image.en", "image.ar"},
		Defaults:   docstore.Document{"sort_order": float64(0), "is_active": true},
	}
}

func productServiceResource() *Resource {
	return &Resource{
		Collection: ProductServices,
		Path:       "product-services",
		Singular:   "service",
		Plural:     "services",
		NotFound:   "No product service found with that ID",
		Schema: query.Schema{
			Fields: withName(map[string]query.Kind{
				"price":     query.KindNumber,
				"currency":  query.KindString,
				"is_active": query.KindBool,
			}),
			SearchFields: []string{"name.en", "name.ar"},
		},
		Writable:   []string{"name", "description", "price", "currency", "applicable_categories", "is_active"},
		JSONFields: []string{"name", "description", "applicable_categories"},
		Required:   []string{"name.en", "name.ar", "price"},
		Defaults:   docstore.Document{"currency": "SAR", "is_active": true},

		BeforeCreate: nonNegative("price"),
		BeforeUpdate: nonNegative("price"),
	}
}

func nonNegative(field string) Hook {
	return func(_ context.Context, m *Mutation) error {
		v, ok := m.Changes[field]
		if !ok {
			return nil
		}
		if n, isNum := v.(float64); !isNum || n < 0 {
			return dErrors.New(dErrors.CodeValidation, "Invalid Input Data. "+field+" must be a non-negative number")
		}
		return nil
	}
}
