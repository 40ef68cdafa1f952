// Package handler exposes the reservation engine over HTTP.  Handlers
// assume JWT authentication has already run and translate engine
// rejections into distinct status codes with an actionable message.
package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/resort-reservation/internal/reservation"
)

// apiError is one row of the rejection table.
type apiError struct {
	status  int
	code    string
	message string
}

var rejections = []struct {
	target error
	apiError
}{
	{reservation.ErrMalformedInput, apiError{http.StatusBadRequest, "malformed_input", "check the date and time formats and the request fields"}},
	{reservation.ErrInvalidDuration, apiError{http.StatusBadRequest, "invalid_duration", "adjust the start and end to the booking rules of this service type"}},
	{reservation.ErrOverlap, apiError{http.StatusConflict, "overlap", "already booked for that time, choose another time or service"}},
	{reservation.ErrInsufficientSeats, apiError{http.StatusConflict, "insufficient_seats", "not enough seats left, reduce the number of participants"}},
	{reservation.ErrUnavailable, apiError{http.StatusConflict, "unavailable", "this service is under maintenance, choose another one"}},
	{reservation.ErrNotFound, apiError{http.StatusNotFound, "not_found", "no such resource"}},
	{reservation.ErrLedgerConflict, apiError{http.StatusConflict, "state_changed", "the record changed while processing, please retry"}},
}

// classify maps err to its response.  Unknown errors become 500.
func classify(err error) apiError {
	for _, r := range rejections {
		if errors.Is(err, r.target) {
			return r.apiError
		}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return apiError{http.StatusServiceUnavailable, "timeout", "the request was abandoned before it could run, please retry"}
	}
	return apiError{http.StatusInternalServerError, "internal", "internal error"}
}

// respondError writes err as a JSON error body.  Only 5xx outcomes are
// logged here; rejections are business outcomes and show up in the
// access log.
func respondError(c echo.Context, log *zap.Logger, err error) error {
	e := classify(err)
	body := echo.Map{"error": e.code, "message": e.message}
	if e.status < http.StatusInternalServerError {
		body["detail"] = err.Error()
	} else {
		log.Error("request failed", zap.String("path", c.Path()), zap.Error(err))
	}
	return c.JSON(e.status, body)
}

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, echo.Map{"error": "malformed_input", "message": msg})
}

func forbidden(c echo.Context, msg string) error {
	return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden", "message": msg})
}

func unauthorized(c echo.Context) error {
	return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized", "message": "authentication required"})
}
