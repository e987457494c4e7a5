package tle

import (
	"sync/atomic"
	"time"
)

// Dataset is a catalog together with where and when it was obtained.
type Dataset struct {
	Source    string
	FetchedAt time.Time
	Catalog   *Catalog
}

// Store provides lock-free access to the current dataset. Reloads replace
// the dataset wholesale, so readers see either the old or the new catalog.
type Store struct {
	dataset atomic.Pointer[Dataset]
}

// NewStore creates a new empty Store.
func NewStore() *Store {
	return &Store{}
}

// Get returns the current dataset, or nil if none has been loaded.
func (s *Store) Get() *Dataset {
	return s.dataset.Load()
}

// Set atomically replaces the current dataset.
func (s *Store) Set(ds *Dataset) {
	s.dataset.Store(ds)
}

// Catalog returns the current catalog, or nil if none has been loaded.
func (s *Store) Catalog() *Catalog {
	if ds := s.dataset.Load(); ds != nil {
		return ds.Catalog
	}
	return nil
}

// Age returns how long ago the current dataset was fetched, relative to now.
// Returns -1 if no dataset is loaded.
func (s *Store) Age(now time.Time) time.Duration {
	ds := s.dataset.Load()
	if ds == nil {
		return -1
	}
	return now.Sub(ds.FetchedAt)
}
