package propagation

import "fmt"

// Reason classifies why propagation failed.
type Reason string

const (
	ReasonEccentricity    Reason = "eccentricity"
	ReasonMeanMotion      Reason = "mean motion"
	ReasonSemiLatusRectum Reason = "semi-latus rectum"
	ReasonDecayed         Reason = "decayed"
	ReasonInvalidElements Reason = "invalid elements"
)

// PropagationError reports an initialisation or propagation failure.
// Minutes is the time since epoch at which the model broke down; it is
// zero for failures during initialisation.
type PropagationError struct {
	Reason        Reason
	CatalogNumber int
	Minutes       float64
	Detail        string
}

func (e *PropagationError) Error() string {
	msg := fmt.Sprintf("propagation of %d failed at %+.3f min: %s", e.CatalogNumber, e.Minutes, e.Reason)
	if e.Detail != "" {
		msg += " (" + e.Detail + ")"
	}
	return msg
}
