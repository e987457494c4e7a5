package tracking

import (
	"errors"
	"fmt"
)

// ErrNoCatalog is returned while no TLE catalog has been published.
var ErrNoCatalog = errors.New("no TLE catalog loaded")

// RequestError reports a request parameter outside its accepted range.
type RequestError struct {
	Field  string
	Reason string
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}
