package tle

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// Mode selects what Parse does with an entry it cannot read.
type Mode int

const (
	// SkipInvalid drops malformed entries, logs them, and records them in
	// Catalog.Rejected. The catalog keeps every entry that parsed.
	SkipInvalid Mode = iota
	// Strict fails the whole load on the first malformed entry.
	Strict
)

// Parse reads 3-line (name + two element lines) or bare 2-line TLE text
// from r. Malformed entries are skipped with a warning log.
func Parse(r io.Reader, logger *slog.Logger) (*Catalog, error) {
	return parse(r, SkipInvalid, logger)
}

// ParseStrict is Parse with the Strict policy: any malformed entry fails
// the load with a *ParseError.
func ParseStrict(r io.Reader) (*Catalog, error) {
	return parse(r, Strict, nil)
}

// ParseMode parses with an explicit policy.
func ParseMode(r io.Reader, mode Mode, logger *slog.Logger) (*Catalog, error) {
	return parse(r, mode, logger)
}

// maxLineLen bounds how much of one input line is kept. Element lines are
// 69 columns; anything past this limit is rejected as a layout error.
const maxLineLen = 1024

type numberedLine struct {
	n    int
	text string
	long bool
}

// readLine returns the next line without its terminator, cut to
// maxLineLen. long reports that the line was cut.
func readLine(br *bufio.Reader) (line string, long bool, err error) {
	var buf []byte
	total := 0
	for {
		chunk, isPrefix, err := br.ReadLine()
		if err != nil {
			return string(buf), total > maxLineLen, err
		}
		total += len(chunk)
		if room := maxLineLen - len(buf); room > 0 {
			buf = append(buf, chunk[:min(room, len(chunk))]...)
		}
		if !isPrefix {
			return string(buf), total > maxLineLen, nil
		}
	}
}

func parse(r io.Reader, mode Mode, logger *slog.Logger) (*Catalog, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	br := bufio.NewReader(r)
	var lines []numberedLine
	for n := 1; ; n++ {
		text, long, err := readLine(br)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading TLE data: %w", err)
		}
		line := strings.TrimRight(text, "\r\n ")
		if long || strings.TrimSpace(line) != "" {
			lines = append(lines, numberedLine{n: n, text: line, long: long})
		}
	}

	var (
		sets     []ElementSet
		rejected []*ParseError
	)
	reject := func(perr *ParseError) error {
		if mode == Strict {
			return perr
		}
		logger.Warn("skipping malformed TLE entry",
			"line", perr.Line,
			"name", perr.Name,
			"field", perr.Field,
			"error", perr.Err,
		)
		rejected = append(rejected, perr)
		return nil
	}

	for i := 0; i < len(lines); {
		cur := lines[i]

		if cur.long {
			perr := &ParseError{Line: cur.n, Err: fmt.Errorf("%w: line longer than %d bytes", ErrLayout, maxLineLen)}
			if err := reject(perr); err != nil {
				return nil, err
			}
			i++
			continue
		}

		// Bare two-line entry.
		if isElementLine(cur, '1') && i+1 < len(lines) && isElementLine(lines[i+1], '2') {
			es, perr := parseElements("", cur.text, lines[i+1].text)
			if perr != nil {
				perr.Line = cur.n
				if err := reject(perr); err != nil {
					return nil, err
				}
			} else {
				sets = append(sets, es)
			}
			i += 2
			continue
		}

		// Name line followed by two element lines.
		if !isElementLine(cur, '1') && !isElementLine(cur, '2') &&
			i+2 < len(lines) && isElementLine(lines[i+1], '1') && isElementLine(lines[i+2], '2') {
			es, perr := parseElements(cur.text, lines[i+1].text, lines[i+2].text)
			if perr != nil {
				perr.Line = lines[i+1].n
				if err := reject(perr); err != nil {
					return nil, err
				}
			} else {
				sets = append(sets, es)
			}
			i += 3
			continue
		}

		// Out of step: drop one line and try to resynchronise.
		perr := &ParseError{Line: cur.n, Name: cleanName(cur.text), Err: fmt.Errorf("%w: %q", ErrLayout, truncate(cur.text, 24))}
		if err := reject(perr); err != nil {
			return nil, err
		}
		i++
	}

	cat := NewCatalog(sets)
	cat.rejected = rejected
	if dup := cat.Duplicates(); dup > 0 {
		logger.Info("duplicate satellite names in TLE data, last entry wins", "replaced", dup)
	}
	return cat, nil
}

func isElementLine(l numberedLine, lineNo byte) bool {
	s := l.text
	return !l.long && len(s) >= 2 && s[0] == lineNo && s[1] == ' '
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
