package propagation

import (
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/riyagpt0251/SatTrackAI/internal/tle"
	"github.com/riyagpt0251/SatTrackAI/internal/tle/tletest"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

// catalogWithBroken adds an entry whose elements cannot be initialised.
func catalogWithBroken(t *testing.T) *tle.Catalog {
	t.Helper()
	sets := tletest.Catalog(t).Sets()
	broken := tletest.ISS(t)
	broken.Name = "BROKEN"
	broken.CatalogNumber = 99999
	broken.Eccentricity = 1.5
	return tle.NewCatalog(append(sets, broken))
}

func TestSetGet(t *testing.T) {
	s := NewSet(catalogWithBroken(t))

	if s.Failed() != 1 {
		t.Errorf("Failed = %d, want 1", s.Failed())
	}
	p, err := s.Get(tletest.ISSName)
	if err != nil {
		t.Fatalf("Get(ISS): %v", err)
	}
	if p.Elements().CatalogNumber != 25544 {
		t.Errorf("CatalogNumber = %d", p.Elements().CatalogNumber)
	}

	_, err = s.Get("BROKEN")
	var pe *PropagationError
	if !errors.As(err, &pe) || pe.Reason != ReasonEccentricity {
		t.Errorf("Get(BROKEN) error = %v, want eccentricity PropagationError", err)
	}

	_, err = s.Get("iss (zarya)")
	var nf *tle.NotFoundError
	if !errors.As(err, &nf) {
		t.Errorf("Get(lowercase) error = %v, want *tle.NotFoundError", err)
	}
}

func TestSetPropagatorsOrder(t *testing.T) {
	s := NewSet(catalogWithBroken(t))
	props := s.Propagators()
	want := []string{tletest.ISSName, tletest.MolniyaName, tletest.StarlinkName, tletest.VanguardName, tletest.GEOName}
	if len(props) != len(want) {
		t.Fatalf("len = %d, want %d", len(props), len(want))
	}
	for i, p := range props {
		if p.Elements().Name != want[i] {
			t.Errorf("props[%d] = %q, want %q", i, p.Elements().Name, want[i])
		}
	}
}

func TestCacheReusesSetForSameCatalog(t *testing.T) {
	c := NewCache(testLogger())
	cat := tletest.Catalog(t)

	first := c.For(cat)
	if first.Catalog() != cat {
		t.Fatal("set built for the wrong catalog")
	}
	if again := c.For(cat); again != first {
		t.Error("For rebuilt the set for an unchanged catalog")
	}

	other := tletest.Catalog(t)
	rebuilt := c.For(other)
	if rebuilt == first {
		t.Error("For returned a stale set for a new catalog")
	}
	if rebuilt.Catalog() != other {
		t.Error("rebuilt set holds the wrong catalog")
	}
}

func TestCacheConcurrentFor(t *testing.T) {
	c := NewCache(testLogger())
	cat := tletest.Catalog(t)

	var wg sync.WaitGroup
	sets := make([]*Set, 32)
	for i := range sets {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sets[i] = c.For(cat)
		}(i)
	}
	wg.Wait()
	for i := 1; i < len(sets); i++ {
		if sets[i] != sets[0] {
			t.Fatal("concurrent callers saw different sets for one catalog")
		}
	}
}

func TestCacheKeepsPreviousCatalog(t *testing.T) {
	c := NewCache(testLogger())
	oldCat := tletest.Catalog(t)
	newCat := tletest.Catalog(t)

	oldSet := c.For(oldCat)
	newSet := c.For(newCat)

	// A request that loaded the old catalog before the reload must not
	// trigger a rebuild or displace the new set.
	if got := c.For(oldCat); got != oldSet {
		t.Error("old catalog was rebuilt instead of served from the retained set")
	}
	if got := c.For(newCat); got != newSet {
		t.Error("new catalog's set was displaced by a request for the old one")
	}

	// A third catalog evicts the oldest.
	third := tletest.Catalog(t)
	c.For(third)
	if got := c.For(newCat); got != newSet {
		t.Error("previous set should survive one reload")
	}
	if got := c.For(oldCat); got == oldSet {
		t.Error("set two catalogs back should have been evicted")
	}
}
