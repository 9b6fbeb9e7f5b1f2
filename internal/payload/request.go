package payload

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strings"

	dErrors "eshop/pkg/domain-errors"
)

const (
	// MaxFileSize is the largest accepted upload part.
	MaxFileSize = 5 << 20
	// multipartMemory is how much of a multipart body is held in memory
	// before parts spill to temporary files.
	multipartMemory = 32 << 20
)

// File is one uploaded part.
type File struct {
	Field       string
	Filename    string
	ContentType string
	Size        int64
	open        func() (io.ReadCloser, error)
}

// Open returns the file contents.
func (f *File) Open() (io.ReadCloser, error) {
	return f.open()
}

// NewFile wraps in-memory content, for seed tooling and tests.
func NewFile(field, filename, contentType string, data []byte) *File {
	return &File{
		Field:       field,
		Filename:    filename,
		ContentType: contentType,
		Size:        int64(len(data)),
		open: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(data)), nil
		},
	}
}

// Payload is a decoded request body: plain fields plus uploaded files
// grouped by form field.
type Payload struct {
	Fields Fields
	Files  map[string][]*File
}

// File returns the first upload for field, or nil.
func (p *Payload) File(field string) *File {
	if files := p.Files[field]; len(files) > 0 {
		return files[0]
	}
	return nil
}

// FromRequest decodes JSON, multipart and urlencoded bodies. Multipart
// values arrive as strings, so nested objects must go through
// ParseJSONFields afterwards.
func FromRequest(r *http.Request) (*Payload, error) {
	p := &Payload{Fields: Fields{}, Files: map[string][]*File{}}

	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil {
		mediaType = "application/json"
	}

	switch mediaType {
	case "multipart/form-data":
		if err := r.ParseMultipartForm(multipartMemory); err != nil {
			return nil, bodyError(err)
		}
		addValues(p.Fields, r.MultipartForm.Value)
		for field, headers := range r.MultipartForm.File {
			for _, h := range headers {
				f, err := fileFromHeader(field, h)
				if err != nil {
					return nil, err
				}
				p.Files[field] = append(p.Files[field], f)
			}
		}
	case "application/x-www-form-urlencoded":
		if err := r.ParseForm(); err != nil {
			return nil, bodyError(err)
		}
		addValues(p.Fields, r.PostForm)
	default:
		body, err := io.ReadAll(r.Body)
		if err != nil {
			return nil, bodyError(err)
		}
		if len(bytes.TrimSpace(body)) == 0 {
			return p, nil
		}
		if err := json.Unmarshal(body, &p.Fields); err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeBadRequest, "Invalid JSON in request body")
		}
	}
	return p, nil
}

func addValues(dst Fields, values map[string][]string) {
	for key, vs := range values {
		switch len(vs) {
		case 0:
		case 1:
			dst[key] = vs[0]
		default:
			list := make([]any, len(vs))
			for i, v := range vs {
				list[i] = v
			}
			dst[key] = list
		}
	}
}

func fileFromHeader(field string, h *multipart.FileHeader) (*File, error) {
	if h.Size > MaxFileSize {
		return nil, dErrors.New(dErrors.CodeBadRequest, fmt.Sprintf("File %s exceeds the 5MB limit", h.Filename))
	}
	contentType := h.Header.Get("Content-Type")
	if !AllowedContentType(contentType) {
		return nil, dErrors.New(dErrors.CodeBadRequest, "Only image and video files are allowed!")
	}
	return &File{
		Field:       field,
		Filename:    h.Filename,
		ContentType: contentType,
		Size:        h.Size,
		open: func() (io.ReadCloser, error) {
			return h.Open()
		},
	}, nil
}

// AllowedContentType accepts images and videos only.
func AllowedContentType(contentType string) bool {
	return strings.HasPrefix(contentType, "image/") || strings.HasPrefix(contentType, "video/")
}

// IsVideo reports whether the upload is a video.
func (f *File) IsVideo() bool {
	return strings.HasPrefix(f.ContentType, "video/")
}

func bodyError(err error) error {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return dErrors.Wrap(err, dErrors.CodeBadRequest, "Request body too large")
	}
	return dErrors.Wrap(err, dErrors.CodeBadRequest, "Invalid request body")
}
