package media

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"eshop/internal/payload"
)

const memoryBaseURL = "memory://media"

// Memory keeps objects in process. Used by tests and local development.
type Memory struct {
	mu      sync.RWMutex
	objects map[string][]byte
	now     func() time.Time
}

func NewMemory() *Memory {
	return &Memory{objects: map[string][]byte{}, now: time.Now}
}

func (m *Memory) Upload(_ context.Context, folder string, f *payload.File) (Object, error) {
	body, err := f.Open()
	if err != nil {
		return Object{}, fmt.Errorf("open upload %s: %w", f.Filename, err)
	}
	defer body.Close()
	data, err := io.ReadAll(body)
	if err != nil {
		return Object{}, fmt.Errorf("read upload %s: %w", f.Filename, err)
	}

	key := objectKey(folder, f.Filename, m.now())
	m.mu.Lock()
	m.objects[key] = data
	m.mu.Unlock()
	return Object{URL: memoryBaseURL + "/" + key, Key: key}, nil
}

func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.objects, key)
	m.mu.Unlock()
	return nil
}

func (m *Memory) KeyFromURL(url string) string {
	return keyFromURL(memoryBaseURL, url)
}

// Has reports whether key is stored.
func (m *Memory) Has(key string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.objects[key]
	return ok
}

// Len is the number of stored objects.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.objects)
}

var _ Storage = (*Memory)(nil)
