// Package media stores uploaded images and videos in an object store and
// hands back their public URLs.
package media

import (
	"context"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"eshop/internal/payload"
)

// Object is a stored upload.
type Object struct {
	URL string `json:"url"`
	Key string `json:"key"`
}

// Storage is the object store boundary.
type Storage interface {
	Upload(ctx context.Context, folder string, f *payload.File) (Object, error)
	Delete(ctx context.Context, key string) error
	// KeyFromURL maps a URL returned by Upload back to its key. Foreign
	// URLs yield "".
	KeyFromURL(url string) string
}

// objectKey lays keys out as <folder>/<yyyy>/<mm>/<uuid><ext>.
func objectKey(folder, filename string, now time.Time) string {
	ext := strings.ToLower(path.Ext(filename))
	return path.Join(
		strings.Trim(folder, "/"),
		now.UTC().Format("2006"),
		now.UTC().Format("01"),
		uuid.NewString()+ext,
	)
}

func keyFromURL(base, url string) string {
	base = strings.TrimSuffix(base, "/") + "/"
	key, ok := strings.CutPrefix(url, base)
	if !ok {
		return ""
	}
	return key
}
