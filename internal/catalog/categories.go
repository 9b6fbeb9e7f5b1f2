package catalog

import (
	"context"
	"slices"

	"eshop/internal/docstore"
	"eshop/internal/query"
	dErrors "eshop/pkg/domain-errors"
)

const (
	Categories = "categories"

	msgCategoryNotFound = "No category found with that ID"
	msgParentNotFound   = "Parent category not found"
	msgCategoryCycle    = "A category cannot be moved under itself or its descendants"
	fieldParent         = "parent_category_id"
	maxCategoryDepth    = 64
)

func (c *Catalog) categoryResource() *Resource {
	return &Resource{
		Collection: Categories,
		Path:       "categories",
		Singular:   "category",
		Plural:     "categories",
		NotFound:   msgCategoryNotFound,
		Schema: query.Schema{
			Fields: map[string]query.Kind{
				"name.en":    query.KindString,
				"name.ar":    query.KindString,
				"slug":       query.KindString,
				fieldParent:  query.KindID,
				"sort_order": query.KindNumber,
				"is_active":  query.KindBool,
			},
			SearchFields: []string{"name.en", "name.ar"},
		},
		Writable:   []string{"name", fieldParent, "sort_order", "is_active"},
		JSONFields: []string{"name"},
		Required:   []string{"name.en", "name.ar"},
		Defaults:   docstore.Document{"sort_order": float64(0), "is_active": true},
		Images:     []ImageSlot{{Form: "image", Field: "image_url", Folder: "categories"}},

		BeforeCreate: chain(slugFrom("name.en"), c.checkParent),
		BeforeUpdate: chain(slugFrom("name.en"), c.checkParent),
		AfterDelete:  c.orphanChildren,
	}
}

// checkParent rejects unknown parents and moves that would create a cycle.
func (c *Catalog) checkParent(ctx context.Context, m *Mutation) error {
	parent, _ := m.Changes[fieldParent].(string)
	if parent == "" {
		return nil
	}
	for depth := 0; parent != "" && depth < maxCategoryDepth; depth++ {
		if parent == m.ID {
			return dErrors.New(dErrors.CodeBadRequest, msgCategoryCycle)
		}
		doc, err := c.docs.FindByID(ctx, Categories, parent)
		if err != nil {
			if depth == 0 {
				return docstore.DomainError(err, msgParentNotFound)
			}
			return docstore.DomainError(err, msgCategoryNotFound)
		}
		parent = doc.String(fieldParent)
	}
	return nil
}

// orphanChildren moves the children of a deleted category to the root.
func (c *Catalog) orphanChildren(ctx context.Context, doc docstore.Document) error {
	n, err := c.docs.UpdateMany(ctx, Categories,
		[]query.Predicate{query.Eq(fieldParent, query.KindID, doc.ID())},
		docstore.Document{fieldParent: nil},
	)
	if err != nil {
		return err
	}
	if n > 0 {
		c.logger.InfoContext(ctx, "re-parented child categories", "category_id", doc.ID(), "children", n)
	}
	return nil
}

// CategoryTree returns the category forest, or the subtree rooted at
// parent. Each node carries its children under "children".
func (c *Catalog) CategoryTree(ctx context.Context, parent string) (any, error) {
	docs, err := c.docs.Find(ctx, Categories, query.Spec{
		Sort: []query.SortKey{
			{Field: "sort_order", Kind: query.KindNumber},
			{Field: "name.en", Kind: query.KindString},
		},
		Projection: query.Projection{Fields: []string{query.FieldVersion}, Exclude: true},
	})
	if err != nil {
		return nil, docstore.DomainError(err, msgCategoryNotFound)
	}

	children := make(map[string][]docstore.Document)
	byID := make(map[string]docstore.Document, len(docs))
	for _, doc := range docs {
		byID[doc.ID()] = doc
		p := doc.String(fieldParent)
		children[p] = append(children[p], doc)
	}

	seen := make(map[string]bool)
	var build func(id string) []docstore.Document
	build = func(id string) []docstore.Document {
		nodes := make([]docstore.Document, 0, len(children[id]))
		for _, child := range children[id] {
			if seen[child.ID()] {
				continue
			}
			seen[child.ID()] = true
			child["children"] = build(child.ID())
			nodes = append(nodes, child)
		}
		return nodes
	}

	if parent == "" {
		// Children of missing parents surface at the root. docs is already
		// in sort order, so the merged roots keep it.
		var roots []docstore.Document
		for _, doc := range docs {
			p := doc.String(fieldParent)
			if _, ok := byID[p]; p == "" || !ok {
				roots = append(roots, doc)
			}
		}
		children[""] = roots
		return build(""), nil
	}

	root, ok := byID[parent]
	if !ok {
		return nil, dErrors.New(dErrors.CodeNotFound, "Category not found")
	}
	seen[parent] = true
	root["children"] = build(parent)
	return root, nil
}

// categoryIDs lists the category ids a product document references.
func categoryIDs(doc docstore.Document) []string {
	list, _ := doc["categories"].([]any)
	var ids []string
	for _, item := range list {
		entry, _ := item.(map[string]any)
		if id, _ := entry["category_id"].(string); id != "" && !slices.Contains(ids, id) {
			ids = append(ids, id)
		}
	}
	return ids
}
