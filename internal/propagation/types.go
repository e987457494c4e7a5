package propagation

import "time"

// Model identifies which SGP4 branch a propagator runs.
type Model int

const (
	// NearEarth is plain SGP4, for orbital periods under 225 minutes.
	NearEarth Model = iota
	// DeepSpace is SDP4, adding lunar-solar and resonance terms.
	DeepSpace
)

func (m Model) String() string {
	switch m {
	case NearEarth:
		return "near-earth"
	case DeepSpace:
		return "deep-space"
	}
	return "unknown"
}

// StateVector is a position (km) and velocity (km/s) in the TEME frame.
type StateVector struct {
	Time     time.Time
	Position [3]float64
	Velocity [3]float64
}

// Minutes between epoch and t, the SGP4 time argument.
func minutesSince(epoch, t time.Time) float64 {
	return float64(t.Sub(epoch)) / float64(time.Minute)
}
