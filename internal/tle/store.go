package tle

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Store provides thread-safe access to the current catalog snapshot.
type Store struct {
	catalog atomic.Pointer[Catalog]
	mu      sync.Mutex // serializes refreshes
}

// NewStore creates a new empty Store.
func NewStore() *Store {
	return &Store{}
}

// Get returns the current catalog, or nil if none has been loaded.
func (s *Store) Get() *Catalog {
	return s.catalog.Load()
}

// Set atomically replaces the current catalog.
func (s *Store) Set(c *Catalog) {
	s.catalog.Store(c)
}

// AgeSeconds returns the age of the current catalog in seconds.
// Returns -1 if no catalog is loaded.
func (s *Store) AgeSeconds() float64 {
	c := s.catalog.Load()
	if c == nil {
		return -1
	}
	return time.Since(c.FetchedAt).Seconds()
}

// Refresh fetches a new catalog and swaps it in. Concurrent callers are
// serialized; the previous snapshot stays visible until the swap.
func (s *Store) Refresh(ctx context.Context, f *Fetcher) (*Catalog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := f.FetchCatalog(ctx)
	if err != nil {
		return nil, err
	}
	s.catalog.Store(c)
	return c, nil
}
