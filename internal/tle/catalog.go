package tle

import (
	"sort"
	"time"
)

// EpochRange represents the minimum and maximum epoch times in a catalog.
type EpochRange struct {
	Min time.Time
	Max time.Time
}

// Catalog maps satellite names to element sets. It is read-only once built
// and therefore safe for concurrent use.
type Catalog struct {
	byName     map[string]ElementSet
	byNumber   map[int]ElementSet
	names      []string
	duplicates int
	epochs     EpochRange
	rejected   []*ParseError
}

// NewCatalog indexes sets by name and catalog number. When two sets share a
// name (or a number), the later one in the slice wins.
func NewCatalog(sets []ElementSet) *Catalog {
	c := &Catalog{
		byName:   make(map[string]ElementSet, len(sets)),
		byNumber: make(map[int]ElementSet, len(sets)),
	}
	for i, es := range sets {
		if _, ok := c.byName[es.Name]; ok {
			c.duplicates++
		}
		c.byName[es.Name] = es
		c.byNumber[es.CatalogNumber] = es

		if i == 0 || es.Epoch.Before(c.epochs.Min) {
			c.epochs.Min = es.Epoch
		}
		if i == 0 || es.Epoch.After(c.epochs.Max) {
			c.epochs.Max = es.Epoch
		}
	}

	c.names = make([]string, 0, len(c.byName))
	for name := range c.byName {
		c.names = append(c.names, name)
	}
	sort.Strings(c.names)
	return c
}

// Lookup returns the element set for an exact, case-sensitive name.
func (c *Catalog) Lookup(name string) (ElementSet, error) {
	if c != nil {
		if es, ok := c.byName[name]; ok {
			return es, nil
		}
	}
	return ElementSet{}, &NotFoundError{Name: name}
}

// ByNumber returns the element set with the given NORAD catalog number.
func (c *Catalog) ByNumber(n int) (ElementSet, error) {
	if c != nil {
		if es, ok := c.byNumber[n]; ok {
			return es, nil
		}
	}
	return ElementSet{}, &NotFoundError{Number: n}
}

// Names returns all satellite names in sorted order.
func (c *Catalog) Names() []string {
	if c == nil {
		return nil
	}
	out := make([]string, len(c.names))
	copy(out, c.names)
	return out
}

// Sets returns the element sets in name order.
func (c *Catalog) Sets() []ElementSet {
	if c == nil {
		return nil
	}
	out := make([]ElementSet, 0, len(c.names))
	for _, name := range c.names {
		out = append(out, c.byName[name])
	}
	return out
}

// Len returns the number of distinct names.
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.names)
}

// Duplicates reports how many entries were replaced by a later entry with
// the same name.
func (c *Catalog) Duplicates() int {
	if c == nil {
		return 0
	}
	return c.duplicates
}

// EpochRange returns the oldest and newest element set epochs.
func (c *Catalog) EpochRange() EpochRange {
	if c == nil {
		return EpochRange{}
	}
	return c.epochs
}

// Rejected lists the entries skipped while parsing.
func (c *Catalog) Rejected() []*ParseError {
	if c == nil {
		return nil
	}
	return c.rejected
}
