package catalog

import (
	"context"

	"eshop/internal/media"
	"eshop/internal/payload"
)

func firstFile(files map[string][]*payload.File, field string) *payload.File {
	if fs := files[field]; len(fs) > 0 {
		return fs[0]
	}
	return nil
}

func (c *Catalog) attachImages(ctx context.Context, res *Resource, m *Mutation) error {
	for _, slot := range res.Images {
		f := firstFile(m.Files, slot.Form)
		if f == nil {
			continue
		}
		objects, err := c.upload(ctx, m, slot.Folder, f)
		if err != nil {
			return err
		}
		if m.Existing != nil {
			m.Replace(m.Existing.String(slot.Field))
		}
		m.Changes[slot.Field] = objects[0].URL
	}
	return nil
}

// upload stores files for m. The objects are removed again if m is
// discarded.
func (c *Catalog) upload(ctx context.Context, m *Mutation, folder string, files ...*payload.File) ([]media.Object, error) {
	objects, err := media.UploadAll(ctx, c.media, folder, files)
	if err != nil {
		return nil, err
	}
	for _, obj := range objects {
		m.uploaded = append(m.uploaded, obj.Key)
	}
	return objects, nil
}

// discard removes objects uploaded for a write that did not happen.
func (c *Catalog) discard(ctx context.Context, m *Mutation) {
	ctx = context.WithoutCancel(ctx)
	for _, key := range m.uploaded {
		if err := c.media.Delete(ctx, key); err != nil {
			c.logger.WarnContext(ctx, "failed to discard upload", "key", key, "error", err)
		}
	}
	m.uploaded = nil
}

// settle deletes the objects a successful write replaced.
func (c *Catalog) settle(ctx context.Context, m *Mutation) {
	m.uploaded = nil
	if len(m.replaced) > 0 {
		c.removeMedia(ctx, "", m.replaced...)
	}
}

func (c *Catalog) removeMedia(ctx context.Context, collection string, urls ...string) {
	if err := media.DeleteURLs(context.WithoutCancel(ctx), c.media, urls...); err != nil {
		c.logger.WarnContext(ctx, "failed to delete media",
			"collection", collection,
			"error", err,
		)
	}
}
