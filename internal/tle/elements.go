package tle

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// ElementSet is one satellite's parsed two-line element set.
// Angles are in degrees and mean motion in revolutions per day, as in the TLE.
type ElementSet struct {
	CatalogNumber  int
	Classification string
	IntlDesignator string
	Name           string

	EpochYear int     // four-digit year
	EpochDay  float64 // fractional day of year, 1-based
	Epoch     time.Time

	MeanMotionDot  float64 // first derivative / 2, rev/day²
	MeanMotionDDot float64 // second derivative / 6, rev/day³
	BStar          float64 // drag term, 1/earth radii
	ElementNumber  int

	Inclination  float64
	RAAN         float64
	Eccentricity float64
	ArgPerigee   float64
	MeanAnomaly  float64
	MeanMotion   float64
	RevNumber    int

	Line1 string
	Line2 string
}

// PeriodMinutes returns the nominal orbital period from the TLE mean motion.
func (es ElementSet) PeriodMinutes() float64 {
	return 1440.0 / es.MeanMotion
}

const lineLen = 69

// ParseElements parses a single entry. name may be empty, in which case the
// catalog number is used as the name.
func ParseElements(name, line1, line2 string) (ElementSet, error) {
	es, perr := parseElements(name, line1, line2)
	if perr != nil {
		return ElementSet{}, perr
	}
	return es, nil
}

func parseElements(name, line1, line2 string) (ElementSet, *ParseError) {
	line1 = strings.TrimRight(line1, "\r\n ")
	line2 = strings.TrimRight(line2, "\r\n ")
	name = cleanName(name)

	fail := func(field string, err error) (ElementSet, *ParseError) {
		return ElementSet{}, &ParseError{Name: name, Field: field, Err: err}
	}

	if len(line1) != lineLen {
		return fail("line 1", fmt.Errorf("%w: length %d, expected %d", ErrLayout, len(line1), lineLen))
	}
	if len(line2) != lineLen {
		return fail("line 2", fmt.Errorf("%w: length %d, expected %d", ErrLayout, len(line2), lineLen))
	}
	if line1[0] != '1' || line1[1] != ' ' {
		return fail("line 1", fmt.Errorf("%w: must start with \"1 \"", ErrLayout))
	}
	if line2[0] != '2' || line2[1] != ' ' {
		return fail("line 2", fmt.Errorf("%w: must start with \"2 \"", ErrLayout))
	}
	if err := verifyChecksum(line1); err != nil {
		return fail("line 1 checksum", err)
	}
	if err := verifyChecksum(line2); err != nil {
		return fail("line 2 checksum", err)
	}

	es := ElementSet{Line1: line1, Line2: line2}
	var err error

	if es.CatalogNumber, err = parseCatalogNumber(line1[2:7]); err != nil {
		return fail("catalog number", err)
	}
	num2, err := parseCatalogNumber(line2[2:7])
	if err != nil {
		return fail("line 2 catalog number", err)
	}
	if num2 != es.CatalogNumber {
		return fail("catalog number", fmt.Errorf("%w: line 1 has %d, line 2 has %d", ErrFormat, es.CatalogNumber, num2))
	}
	if name == "" {
		name = strconv.Itoa(es.CatalogNumber)
	}
	es.Name = name
	es.Classification = strings.TrimSpace(line1[7:8])
	es.IntlDesignator = strings.TrimSpace(line1[9:17])

	yy, err := parseInt(line1[18:20])
	if err != nil {
		return fail("epoch year", err)
	}
	// Two-digit years 57-99 are 1957-1999, 00-56 are 2000-2056.
	if yy < 57 {
		es.EpochYear = 2000 + yy
	} else {
		es.EpochYear = 1900 + yy
	}
	if es.EpochDay, err = parseFloat(line1[20:32]); err != nil {
		return fail("epoch day", err)
	}
	if es.EpochDay < 1 || es.EpochDay >= 367 {
		return fail("epoch day", fmt.Errorf("%w: %v", ErrRange, es.EpochDay))
	}
	es.Epoch = epochTime(es.EpochYear, es.EpochDay)

	if es.MeanMotionDot, err = parseFloat(line1[33:43]); err != nil {
		return fail("mean motion dot", err)
	}
	if es.MeanMotionDDot, err = parseExponent(line1[44:52]); err != nil {
		return fail("mean motion ddot", err)
	}
	if es.BStar, err = parseExponent(line1[53:61]); err != nil {
		return fail("bstar", err)
	}
	if s := strings.TrimSpace(line1[64:68]); s != "" {
		if es.ElementNumber, err = parseInt(s); err != nil {
			return fail("element number", err)
		}
	}

	if es.Inclination, err = parseFloat(line2[8:16]); err != nil {
		return fail("inclination", err)
	}
	if es.RAAN, err = parseFloat(line2[17:25]); err != nil {
		return fail("raan", err)
	}
	if es.Eccentricity, err = parseFloat("0." + strings.TrimSpace(line2[26:33])); err != nil {
		return fail("eccentricity", err)
	}
	if es.ArgPerigee, err = parseFloat(line2[34:42]); err != nil {
		return fail("argument of perigee", err)
	}
	if es.MeanAnomaly, err = parseFloat(line2[43:51]); err != nil {
		return fail("mean anomaly", err)
	}
	if es.MeanMotion, err = parseFloat(line2[52:63]); err != nil {
		return fail("mean motion", err)
	}
	if s := strings.TrimSpace(line2[63:68]); s != "" {
		if es.RevNumber, err = parseInt(s); err != nil {
			return fail("revolution number", err)
		}
	}

	if field, err := es.validate(); err != nil {
		return fail(field, err)
	}
	return es, nil
}

// validate enforces the physical ranges of the mean elements.
func (es ElementSet) validate() (string, error) {
	switch {
	case es.Eccentricity < 0 || es.Eccentricity >= 1:
		return "eccentricity", fmt.Errorf("%w: %v not in [0,1)", ErrRange, es.Eccentricity)
	case es.Inclination < 0 || es.Inclination > 180:
		return "inclination", fmt.Errorf("%w: %v not in [0,180]", ErrRange, es.Inclination)
	case es.RAAN < 0 || es.RAAN >= 360:
		return "raan", fmt.Errorf("%w: %v not in [0,360)", ErrRange, es.RAAN)
	case es.ArgPerigee < 0 || es.ArgPerigee >= 360:
		return "argument of perigee", fmt.Errorf("%w: %v not in [0,360)", ErrRange, es.ArgPerigee)
	case es.MeanAnomaly < 0 || es.MeanAnomaly >= 360:
		return "mean anomaly", fmt.Errorf("%w: %v not in [0,360)", ErrRange, es.MeanAnomaly)
	case es.MeanMotion <= 0 || math.IsInf(es.MeanMotion, 0):
		return "mean motion", fmt.Errorf("%w: %v must be positive", ErrRange, es.MeanMotion)
	}
	return "", nil
}

// epochTime converts a TLE epoch (year, 1-based fractional day) to UTC,
// rounded to the nearest microsecond.
func epochTime(year int, day float64) time.Time {
	whole := math.Floor(day)
	frac := day - whole
	base := time.Date(year, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, int(whole)-1)
	micros := math.Round(frac * 86400e6)
	return base.Add(time.Duration(micros) * time.Microsecond)
}

// verifyChecksum applies the modulo-10 rule: digits count at face value,
// '-' counts as one, everything else is ignored.
func verifyChecksum(line string) error {
	sum := 0
	for i := 0; i < lineLen-1; i++ {
		c := line[i]
		switch {
		case c >= '0' && c <= '9':
			sum += int(c - '0')
		case c == '-':
			sum++
		}
	}
	want := line[lineLen-1]
	if want < '0' || want > '9' {
		return fmt.Errorf("%w: check digit %q", ErrFormat, want)
	}
	if got := sum % 10; got != int(want-'0') {
		return fmt.Errorf("%w: computed %d, line says %c", ErrChecksum, got, want)
	}
	return nil
}

// parseCatalogNumber accepts plain five-digit numbers and the Alpha-5 scheme,
// where a leading letter (I and O excluded) stands for 10-33.
func parseCatalogNumber(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("%w: empty catalog number", ErrFormat)
	}
	if c := s[0]; c >= 'A' && c <= 'Z' {
		if c == 'I' || c == 'O' {
			return 0, fmt.Errorf("%w: invalid Alpha-5 prefix %q", ErrFormat, c)
		}
		lead := int(c-'A') + 10
		if c > 'I' {
			lead--
		}
		if c > 'O' {
			lead--
		}
		rest, err := parseInt(s[1:])
		if err != nil {
			return 0, err
		}
		return lead*10000 + rest, nil
	}
	return parseInt(s)
}

func parseInt(s string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not an integer", ErrFormat, s)
	}
	return n, nil
}

func parseFloat(s string) (float64, error) {
	s = strings.TrimSpace(s)
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) {
		return 0, fmt.Errorf("%w: %q is not a number", ErrFormat, s)
	}
	return v, nil
}

// parseExponent decodes the assumed-decimal notation used for B* and the
// second derivative of mean motion, e.g. " 10270-3" = 0.10270e-3.
func parseExponent(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	sign := 1.0
	switch s[0] {
	case '-':
		sign = -1
		s = s[1:]
	case '+':
		s = s[1:]
	}
	if len(s) < 3 {
		return 0, fmt.Errorf("%w: %q is too short", ErrFormat, s)
	}
	mantissa, exp := s[:len(s)-2], s[len(s)-2:]
	m, err := strconv.ParseFloat("0."+strings.TrimSpace(mantissa), 64)
	if err != nil {
		return 0, fmt.Errorf("%w: mantissa %q", ErrFormat, mantissa)
	}
	e, err := strconv.Atoi(strings.TrimPrefix(exp, "+"))
	if err != nil {
		return 0, fmt.Errorf("%w: exponent %q", ErrFormat, exp)
	}
	return sign * m * math.Pow(10, float64(e)), nil
}

// cleanName trims the name line and drops the "0 " prefix of the 3LE format.
func cleanName(name string) string {
	name = strings.TrimSpace(name)
	if strings.HasPrefix(name, "0 ") {
		name = strings.TrimSpace(name[2:])
	}
	return name
}
