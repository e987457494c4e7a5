// Package tletest holds reference element sets shared by tests.
package tletest

import (
	"strings"
	"testing"

	"github.com/riyagpt0251/SatTrackAI/internal/tle"
)

// ISS (ZARYA), epoch 2025-02-14.
const (
	ISSName  = "ISS (ZARYA)"
	ISSLine1 = "1 25544U 98067A   25045.18032407  .00016717  00000+0  30099-3 0  9996"
	ISSLine2 = "2 25544  51.6412 193.5765 0003457 126.2851 233.8519 15.49874301495057"
)

// Starlink shell satellite, epoch 2024-04-09.
const (
	StarlinkName  = "STARLINK-1007"
	StarlinkLine1 = "1 44713U 19074A   24100.50000000  .00001000  00000-0  10000-4 0  9998"
	StarlinkLine2 = "2 44713  53.0000 200.0000 0001500  90.0000 270.0000 15.06000000    07"
)

// Vanguard 1 (00005), the first case of the SGP4 verification set.
// Reference TEME state at epoch, WGS-72.
const (
	VanguardName  = "VANGUARD 1"
	VanguardLine1 = "1 00005U 58002B   00179.78495062  .00000023  00000-0  28098-4 0  4753"
	VanguardLine2 = "2 00005  34.2682 348.7242 1859667 331.7664  19.3264 10.82419157413667"
)

// VanguardEpochState is the reference position (km) and velocity (km/s) at tsince = 0.
var VanguardEpochState = [6]float64{7022.46529266, -1400.08296755, 0.03995155, 1.893841015, 6.405893759, 4.534807250}

// Molniya 2-14 (08195): deep space, 12-hour resonance.
const (
	MolniyaName  = "MOLNIYA 2-14"
	MolniyaLine1 = "1 08195U 75081A   06176.33215444  .00000099  00000-0  11873-3 0   813"
	MolniyaLine2 = "2 08195  64.1586 279.0717 6877146 264.7651  20.2257  2.00491383225656"
)

// A geostationary satellite (28626): deep space, 24-hour resonance.
const (
	GEOName  = "XM-3"
	GEOLine1 = "1 28626U 05008A   06176.46683397 -.00000205  00000-0  10000-3 0  2190"
	GEOLine2 = "2 28626   0.0019 286.9433 0000335  13.7918  55.6504  1.00270176  4891"
)

// Text renders the reference sets in 3-line format.
func Text() string {
	var b strings.Builder
	for _, e := range [][3]string{
		{ISSName, ISSLine1, ISSLine2},
		{StarlinkName, StarlinkLine1, StarlinkLine2},
		{VanguardName, VanguardLine1, VanguardLine2},
		{MolniyaName, MolniyaLine1, MolniyaLine2},
		{GEOName, GEOLine1, GEOLine2},
	} {
		b.WriteString(e[0] + "\n" + e[1] + "\n" + e[2] + "\n")
	}
	return b.String()
}

// Elements parses one entry, failing the test on error.
func Elements(t testing.TB, name, line1, line2 string) tle.ElementSet {
	t.Helper()
	es, err := tle.ParseElements(name, line1, line2)
	if err != nil {
		t.Fatalf("parsing %s: %v", name, err)
	}
	return es
}

// ISS returns the parsed ISS element set.
func ISS(t testing.TB) tle.ElementSet {
	return Elements(t, ISSName, ISSLine1, ISSLine2)
}

// Catalog parses Text into a catalog.
func Catalog(t testing.TB) *tle.Catalog {
	t.Helper()
	cat, err := tle.ParseStrict(strings.NewReader(Text()))
	if err != nil {
		t.Fatalf("parsing reference catalog: %v", err)
	}
	return cat
}
