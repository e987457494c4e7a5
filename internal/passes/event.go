// Package passes finds rise, culmination and set events of a satellite
// over a ground observer and groups them into passes.
package passes

import (
	"fmt"
	"time"

	"github.com/riyagpt0251/SatTrackAI/internal/transform"
)

// EventKind is the type of a pass event.
type EventKind int

const (
	Rise EventKind = iota
	Culminate
	Set
)

func (k EventKind) String() string {
	switch k {
	case Rise:
		return "rise"
	case Culminate:
		return "culminate"
	case Set:
		return "set"
	}
	return fmt.Sprintf("EventKind(%d)", int(k))
}

func (k EventKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *EventKind) UnmarshalText(b []byte) error {
	switch string(b) {
	case "rise":
		*k = Rise
	case "culminate":
		*k = Culminate
	case "set":
		*k = Set
	default:
		return fmt.Errorf("unknown event kind %q", b)
	}
	return nil
}

// Event is a refined crossing of the elevation threshold (Rise, Set) or
// the highest point of an above-threshold segment (Culminate).
type Event struct {
	Time      time.Time `json:"time"`
	Kind      EventKind `json:"kind"`
	Azimuth   float64   `json:"azimuth"`
	Elevation float64   `json:"elevation"`
	Range     float64   `json:"range_km"`
}

func newEvent(kind EventKind, view transform.TopocentricView) Event {
	return Event{
		Time:      view.Time,
		Kind:      kind,
		Azimuth:   view.Azimuth,
		Elevation: view.Elevation,
		Range:     view.Range,
	}
}
