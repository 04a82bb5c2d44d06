package sink

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"sync"
)

// MemoryStore keeps files in memory. A file becomes visible to Open only
// after its writer is closed.
type MemoryStore struct {
	mu    sync.RWMutex
	files map[string][]byte
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{files: make(map[string][]byte)}
}

// Create returns a writer that commits its content under path on Close.
func (m *MemoryStore) Create(_ context.Context, path string) (io.WriteCloser, error) {
	return &memoryWriter{store: m, path: path}, nil
}

// Open returns a reader over a committed file.
func (m *MemoryStore) Open(_ context.Context, path string) (Source, error) {
	data, ok := m.Bytes(path)
	if !ok {
		return nil, fmt.Errorf("mem:%s: %w", path, os.ErrNotExist)
	}
	return newBytesSource(data), nil
}

// Bytes returns the committed content of path.
func (m *MemoryStore) Bytes(path string) ([]byte, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.files[path]
	return data, ok
}

// List returns the committed paths in sorted order.
func (m *MemoryStore) List() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	paths := make([]string, 0, len(m.files))
	for p := range m.files {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Delete removes path if present.
func (m *MemoryStore) Delete(path string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.files, path)
}

type memoryWriter struct {
	store  *MemoryStore
	path   string
	buf    bytes.Buffer
	closed bool
}

func (w *memoryWriter) Write(p []byte) (int, error) {
	if w.closed {
		return 0, os.ErrClosed
	}
	return w.buf.Write(p)
}

func (w *memoryWriter) Close() error {
	if w.closed {
		return os.ErrClosed
	}
	w.closed = true
	w.store.mu.Lock()
	w.store.files[w.path] = w.buf.Bytes()
	w.store.mu.Unlock()
	return nil
}

type bytesSource struct {
	*bytes.Reader
}

func newBytesSource(data []byte) *bytesSource {
	return &bytesSource{Reader: bytes.NewReader(data)}
}

func (bytesSource) Close() error { return nil }
