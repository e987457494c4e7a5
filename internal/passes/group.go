package passes

import (
	"fmt"
	"strings"
	"time"
)

// PartialPolicy decides what Group does with passes cut by the window.
type PartialPolicy int

const (
	// IncludePartial keeps truncated passes and flags them.
	IncludePartial PartialPolicy = iota
	// DropPartial discards passes missing a rise or a set.
	DropPartial
)

func (p PartialPolicy) String() string {
	if p == DropPartial {
		return "drop"
	}
	return "include"
}

// ParsePartialPolicy accepts "include" or "drop".
func ParsePartialPolicy(s string) (PartialPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "include":
		return IncludePartial, nil
	case "drop":
		return DropPartial, nil
	}
	return IncludePartial, fmt.Errorf("unknown partial pass policy %q", s)
}

// Pass is one above-threshold segment. Start and End are the rise and set
// times, or the window edges for a truncated pass.
type Pass struct {
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
	Rise      *Event    `json:"rise,omitempty"`
	Culminate *Event    `json:"culminate,omitempty"`
	Set       *Event    `json:"set,omitempty"`
	Partial   bool      `json:"partial"`
}

func (p Pass) Duration() time.Duration {
	return p.End.Sub(p.Start)
}

// MaxElevation is the culmination elevation, or the higher endpoint
// elevation when the peak fell outside the window.
func (p Pass) MaxElevation() float64 {
	if p.Culminate != nil {
		return p.Culminate.Elevation
	}
	best := -90.0
	for _, e := range []*Event{p.Rise, p.Set} {
		if e != nil && e.Elevation > best {
			best = e.Elevation
		}
	}
	return best
}

// Group assembles time-ordered events from FindPasses over [start, end]
// into passes.
func Group(events []Event, start, end time.Time, policy PartialPolicy) []Pass {
	var (
		out []Pass
		cur *Pass
	)
	open := func(at time.Time) *Pass {
		return &Pass{Start: at}
	}
	closePass := func(p *Pass) {
		p.Partial = p.Rise == nil || p.Set == nil
		if p.Partial && policy == DropPartial {
			return
		}
		out = append(out, *p)
	}

	for i := range events {
		e := events[i]
		switch e.Kind {
		case Rise:
			if cur != nil {
				cur.End = e.Time
				closePass(cur)
			}
			cur = open(e.Time)
			cur.Rise = &e
		case Culminate:
			if cur == nil {
				cur = open(start)
			}
			cur.Culminate = &e
		case Set:
			if cur == nil {
				cur = open(start)
			}
			cur.Set = &e
			cur.End = e.Time
			closePass(cur)
			cur = nil
		}
	}
	if cur != nil {
		cur.End = end
		closePass(cur)
	}
	return out
}
