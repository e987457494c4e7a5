package tle

import (
	"errors"
	"fmt"
	"strconv"
)

// Reasons carried by ParseError. Match them with errors.Is.
var (
	ErrChecksum = errors.New("checksum mismatch")
	ErrFormat   = errors.New("malformed field")
	ErrRange    = errors.New("value out of range")
	ErrLayout   = errors.New("unexpected line layout")
)

// ParseError describes a TLE entry that could not be turned into an ElementSet.
type ParseError struct {
	Line  int    // 1-based line number in the input, 0 when unknown
	Name  string // satellite name, if one was read
	Field string // offending field, e.g. "eccentricity"
	Err   error
}

func (e *ParseError) Error() string {
	msg := "tle"
	if e.Line > 0 {
		msg += " line " + strconv.Itoa(e.Line)
	}
	if e.Name != "" {
		msg += fmt.Sprintf(" (%s)", e.Name)
	}
	if e.Field != "" {
		msg += ": " + e.Field
	}
	return msg + ": " + e.Err.Error()
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// NotFoundError is returned when a satellite is not in the catalog.
type NotFoundError struct {
	Name   string
	Number int
}

func (e *NotFoundError) Error() string {
	if e.Name == "" {
		return fmt.Sprintf("satellite %d not found in catalog", e.Number)
	}
	return fmt.Sprintf("satellite %q not found in catalog", e.Name)
}
