package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/riyagpt0251/SatTrackAI/internal/passes"
	"github.com/riyagpt0251/SatTrackAI/internal/propagation"
	"github.com/riyagpt0251/SatTrackAI/internal/tle"
	"github.com/riyagpt0251/SatTrackAI/internal/tracking"
	"github.com/riyagpt0251/SatTrackAI/internal/transform"
)

// paramError reports a malformed query parameter.
type paramError struct {
	name string
	msg  string
}

func (e *paramError) Error() string {
	return "invalid " + e.name + ": " + e.msg
}

type errorBody struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

// classify maps an error to its HTTP status and a stable kind string.
func classify(err error) (int, string) {
	var (
		parseErr    *tle.ParseError
		notFound    *tle.NotFoundError
		observerErr *transform.InvalidObserverError
		requestErr  *tracking.RequestError
		paramErr    *paramError
		propErr     *propagation.PropagationError
	)
	switch {
	case errors.As(err, &notFound):
		return http.StatusNotFound, "not_found"
	case errors.As(err, &observerErr):
		return http.StatusBadRequest, "invalid_observer"
	case errors.As(err, &requestErr), errors.As(err, &paramErr), errors.Is(err, passes.ErrInvalidWindow):
		return http.StatusBadRequest, "bad_request"
	case errors.As(err, &parseErr):
		return http.StatusUnprocessableEntity, "parse"
	case errors.As(err, &propErr):
		return http.StatusUnprocessableEntity, "propagation"
	case errors.Is(err, tracking.ErrNoCatalog):
		return http.StatusServiceUnavailable, "no_catalog"
	case errors.Is(err, tle.ErrFetchDisabled):
		return http.StatusConflict, "fetch_disabled"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "timeout"
	case errors.Is(err, context.Canceled):
		// Client went away; the status is never seen.
		return 499, "canceled"
	}
	return http.StatusInternalServerError, "internal"
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	status, kind := classify(err)
	if status >= http.StatusInternalServerError {
		logger.Error("request failed",
			"component", "api",
			"path", r.URL.Path,
			"status", status,
			"error", err,
		)
	}
	writeJSON(w, status, errorBody{Error: err.Error(), Kind: kind})
}
