package propagation

import (
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/riyagpt0251/SatTrackAI/internal/tle"
)

// Set holds initialised propagators for every entry of one catalog.
// Immutable after construction; safe for concurrent reads.
type Set struct {
	catalog *tle.Catalog
	props   map[string]*Propagator
	failed  map[string]error
}

// NewSet initialises a propagator for each element set in cat. Entries that
// fail initialisation are remembered so Get can report why.
func NewSet(cat *tle.Catalog) *Set {
	s := &Set{
		catalog: cat,
		props:   make(map[string]*Propagator, cat.Len()),
		failed:  make(map[string]error),
	}
	for _, es := range cat.Sets() {
		p, err := New(es)
		if err != nil {
			s.failed[es.Name] = err
			continue
		}
		s.props[es.Name] = p
	}
	return s
}

// Get returns the propagator for name: a *tle.NotFoundError if the catalog
// has no such entry, or the *PropagationError from initialisation.
func (s *Set) Get(name string) (*Propagator, error) {
	if p, ok := s.props[name]; ok {
		return p, nil
	}
	if err, ok := s.failed[name]; ok {
		return nil, err
	}
	return nil, &tle.NotFoundError{Name: name}
}

// Catalog returns the catalog the set was built from.
func (s *Set) Catalog() *tle.Catalog {
	return s.catalog
}

// Propagators returns the initialised propagators in catalog name order.
func (s *Set) Propagators() []*Propagator {
	out := make([]*Propagator, 0, len(s.props))
	for _, name := range s.catalog.Names() {
		if p, ok := s.props[name]; ok {
			out = append(out, p)
		}
	}
	return out
}

// Failed reports how many entries could not be initialised.
func (s *Set) Failed() int {
	return len(s.failed)
}

// Cache keeps the Sets of the two most recent catalogs, so that
// propagators are initialised once per catalog rather than per request.
// Requests still holding the previous catalog during a reload are served
// from the retained Set instead of forcing a rebuild.
type Cache struct {
	logger *slog.Logger
	sets   atomic.Pointer[cachedSets]
	mu     sync.Mutex // serializes rebuilds
}

type cachedSets struct {
	current, previous *Set
}

func (cs *cachedSets) lookup(cat *tle.Catalog) *Set {
	if cs == nil {
		return nil
	}
	if cs.current != nil && cs.current.catalog == cat {
		return cs.current
	}
	if cs.previous != nil && cs.previous.catalog == cat {
		return cs.previous
	}
	return nil
}

func NewCache(logger *slog.Logger) *Cache {
	return &Cache{logger: logger}
}

// For returns the Set for cat, building it if cat is neither the current
// nor the previous catalog (double-checked locking).
func (c *Cache) For(cat *tle.Catalog) *Set {
	if s := c.sets.Load().lookup(cat); s != nil {
		return s
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	old := c.sets.Load()
	if s := old.lookup(cat); s != nil {
		return s
	}

	s := NewSet(cat)
	for name, err := range s.failed {
		c.logger.Warn("sgp4 init failed", "name", name, "error", err)
	}
	c.logger.Info("propagator cache rebuilt",
		"cached", len(s.props),
		"skipped", len(s.failed),
	)
	next := &cachedSets{current: s}
	if old != nil {
		next.previous = old.current
	}
	c.sets.Store(next)
	return s
}
