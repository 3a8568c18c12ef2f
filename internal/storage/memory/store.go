// Package memory keeps pipeline inputs and outputs in-memory for tests and dry runs.
package memory

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
)

// Store holds objects keyed by location.
type Store struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// New creates an empty Store.
func New() *Store {
	return &Store{data: make(map[string][]byte)}
}

// Put seeds location with data.
func (s *Store) Put(location string, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[location] = append([]byte(nil), data...)
}

// Get returns a copy of the object at location.
func (s *Store) Get(location string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.data[location]
	if !ok {
		return nil, false
	}
	return append([]byte(nil), data...), true
}

// OpenReader returns a reader over a snapshot of the object.
func (s *Store) OpenReader(_ context.Context, location string) (io.ReadCloser, error) {
	data, ok := s.Get(location)
	if !ok {
		return nil, fmt.Errorf("open %s: object not found", location)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

// OpenWriter returns a writer whose content replaces the object on Close.
func (s *Store) OpenWriter(_ context.Context, location string) (io.WriteCloser, error) {
	return &objectWriter{store: s, location: location}, nil
}

type objectWriter struct {
	store    *Store
	location string
	buf      bytes.Buffer
	closed   bool
}

func (w *objectWriter) Write(p []byte) (int, error) {
	if w.closed {
		return 0, fmt.Errorf("write %s: writer closed", w.location)
	}
	return w.buf.Write(p)
}

func (w *objectWriter) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	w.store.Put(w.location, w.buf.Bytes())
	return nil
}
