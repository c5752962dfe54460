package objectstore

import (
	"context"
	"maps"
	"sync"
)

// Compile-time interface satisfaction check.
var _ Store = (*MemoryStore)(nil)

// Object is a stored blob with its attributes.
type Object struct {
	Body        []byte
	ContentType string
	Metadata    map[string]string
}

type objectRef struct {
	bucket, key string
}

// MemoryStore keeps objects in process memory. It is safe for concurrent use.
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[objectRef]Object
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{objects: make(map[objectRef]Object)}
}

func (m *MemoryStore) Put(_ context.Context, bucket, key string, body []byte, contentType string, metadata map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[objectRef{bucket, key}] = Object{
		Body:        append([]byte(nil), body...),
		ContentType: contentType,
		Metadata:    maps.Clone(metadata),
	}
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, bucket, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, objectRef{bucket, key})
	return nil
}

// Get returns the object at (bucket, key) and whether it exists.
func (m *MemoryStore) Get(bucket, key string) (Object, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	obj, ok := m.objects[objectRef{bucket, key}]
	return obj, ok
}

// Len returns the number of stored objects.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.objects)
}
