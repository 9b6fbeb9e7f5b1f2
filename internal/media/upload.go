package media

import (
	"context"

	"golang.org/x/sync/errgroup"

	"eshop/internal/payload"
)

// uploadConcurrency bounds parallel uploads per request.
const uploadConcurrency = 4

// UploadAll uploads files concurrently and returns their objects in input
// order. If any upload fails, the ones that succeeded are deleted.
func UploadAll(ctx context.Context, storage Storage, folder string, files []*payload.File) ([]Object, error) {
	objects := make([]Object, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(uploadConcurrency)
	for i, f := range files {
		g.Go(func() error {
			obj, err := storage.Upload(gctx, folder, f)
			if err != nil {
				return err
			}
			objects[i] = obj
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		cleanup := context.WithoutCancel(ctx)
		for _, obj := range objects {
			if obj.Key != "" {
				_ = storage.Delete(cleanup, obj.Key)
			}
		}
		return nil, err
	}
	return objects, nil
}

// DeleteURLs removes the objects behind urls, skipping foreign ones. It
// returns the first error after attempting every delete.
func DeleteURLs(ctx context.Context, storage Storage, urls ...string) error {
	var first error
	for _, url := range urls {
		key := storage.KeyFromURL(url)
		if key == "" {
			continue
		}
		if err := storage.Delete(ctx, key); err != nil && first == nil {
			first = err
		}
	}
	return first
}
