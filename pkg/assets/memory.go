package assets

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// DefaultMemoryBaseURL is the URL prefix used by MemoryStore when none is set.
const DefaultMemoryBaseURL = "memory://assets"

type memoryObject struct {
	data        []byte
	contentType string
}

// MemoryStore keeps assets in process memory. It backs development servers
// without object storage and tests.
type MemoryStore struct {
	baseURL string

	mu      sync.Mutex
	objects map[Ref]memoryObject
}

// NewMemoryStore creates an empty MemoryStore. An empty baseURL selects
// DefaultMemoryBaseURL.
func NewMemoryStore(baseURL string) *MemoryStore {
	if baseURL == "" {
		baseURL = DefaultMemoryBaseURL
	}
	return &MemoryStore{
		baseURL: strings.TrimRight(baseURL, "/"),
		objects: make(map[Ref]memoryObject),
	}
}

func (m *MemoryStore) Put(ctx context.Context, namespace string, data []byte, contentType string) (Ref, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if len(data) == 0 {
		return "", ErrEmpty
	}
	ref := Ref(objectKey(namespace, contentType))

	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[ref] = memoryObject{data: append([]byte(nil), data...), contentType: contentType}
	return ref, nil
}

func (m *MemoryStore) Delete(ctx context.Context, ref Ref) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !validRef(ref) {
		return fmt.Errorf("%w: %q", ErrInvalidRef, ref)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, ref)
	return nil
}

func (m *MemoryStore) Exists(ctx context.Context, ref Ref) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.objects[ref]
	return ok, nil
}

func (m *MemoryStore) URL(ref Ref) string {
	return m.baseURL + "/" + string(ref)
}

func (m *MemoryStore) RefFromURL(u string) (Ref, bool) {
	return refFromURL(m.baseURL, u)
}

// Len returns the number of stored objects.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.objects)
}

// Get returns a copy of the stored object.
func (m *MemoryStore) Get(ref Ref) ([]byte, string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	obj, ok := m.objects[ref]
	if !ok {
		return nil, "", false
	}
	return append([]byte(nil), obj.data...), obj.contentType, true
}
