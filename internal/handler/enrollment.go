package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/resort-reservation/internal/middleware"
	"github.com/iliyamo/resort-reservation/internal/queue"
	"github.com/iliyamo/resort-reservation/internal/reservation"
)

// EnrollmentHandler serves /v1/events.
type EnrollmentHandler struct {
	ledger *reservation.Ledger
	notify notifier
	log    *zap.Logger
}

// NewEnrollmentHandler builds the handler.  pub may be nil.
func NewEnrollmentHandler(l *reservation.Ledger, pub queue.Publisher, log *zap.Logger) *EnrollmentHandler {
	if l == nil {
		panic("nil ledger passed to NewEnrollmentHandler")
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &EnrollmentHandler{ledger: l, notify: notifier{pub: pub, log: log}, log: log}
}

type enrollRequest struct {
	Participants int    `json:"participants" validate:"required,min=1,max=1000"`
	UserID       uint64 `json:"user_id" validate:"lte=9223372036854775807"`
}

type enrollmentResponse struct {
	EnrollmentID   string    `json:"enrollment_id"`
	EventID        uint64    `json:"event_id"`
	UserID         uint64    `json:"user_id"`
	Participants   int       `json:"participants"`
	SeatsRemaining int       `json:"seats_remaining"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// subject resolves whose enrollment the request is about: the caller, or
// for STAFF an explicit user id.
func subject(caller middleware.Identity, requested uint64) (uint64, bool) {
	if requested == 0 || requested == caller.UserID {
		return caller.UserID, true
	}
	return requested, caller.IsStaff()
}

// Enroll handles POST /v1/events/:id/enrollments.  A repeat enroll adds
// participants to the caller's existing enrollment.  Responds 201 for a
// new enrollment, 200 when participants were added, and 409 when not
// enough seats remain.
func (h *EnrollmentHandler) Enroll(c echo.Context) error {
	caller, ok := middleware.IdentityFrom(c)
	if !ok {
		return unauthorized(c)
	}
	eventID, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid event id")
	}
	var body enrollRequest
	if err := bindAndValidate(c, &body); err != nil {
		return badRequest(c, err.Error())
	}
	userID, ok := subject(caller, body.UserID)
	if !ok {
		return forbidden(c, "only staff may act for another guest")
	}

	ctx := c.Request().Context()
	res, err := h.ledger.Enroll(ctx, eventID, userID, body.Participants)
	if err != nil {
		return respondError(c, h.log, err)
	}
	h.notify.publish(ctx, queue.EnrollmentChanged(res))

	status := http.StatusOK
	if res.Created {
		status = http.StatusCreated
	}
	return c.JSON(status, enrollmentResponse{
		EnrollmentID:   res.Enrollment.ID,
		EventID:        eventID,
		UserID:         userID,
		Participants:   res.Enrollment.Participants,
		SeatsRemaining: res.SeatsRemaining,
		UpdatedAt:      res.Enrollment.UpdatedAt,
	})
}

// Cancel handles DELETE /v1/events/:id/enrollments and returns every seat
// the enrollment held.  Without an enrollment the call is a no-op; an
// unknown event is 404.  STAFF may pass ?user_id=.
func (h *EnrollmentHandler) Cancel(c echo.Context) error {
	caller, ok := middleware.IdentityFrom(c)
	if !ok {
		return unauthorized(c)
	}
	eventID, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid event id")
	}
	requested, ok := queryID(c, "user_id")
	if !ok {
		return badRequest(c, "invalid user_id")
	}
	userID, ok := subject(caller, requested)
	if !ok {
		return forbidden(c, "only staff may act for another guest")
	}

	ctx := c.Request().Context()
	res, changed, err := h.ledger.Cancel(ctx, eventID, userID)
	if err != nil {
		return respondError(c, h.log, err)
	}
	if changed {
		h.notify.publish(ctx, queue.EnrollmentRemoved(res))
	}
	return c.NoContent(http.StatusNoContent)
}

// Get handles GET /v1/events/:id: the event's seat snapshot plus the
// caller's own participants.
func (h *EnrollmentHandler) Get(c echo.Context) error {
	caller, ok := middleware.IdentityFrom(c)
	if !ok {
		return unauthorized(c)
	}
	eventID, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid event id")
	}
	ctx := c.Request().Context()
	seats, err := h.ledger.Snapshot(ctx, eventID)
	if err != nil {
		return respondError(c, h.log, err)
	}
	mine := 0
	if en, ok, err := h.ledger.Enrollment(ctx, eventID, caller.UserID); err == nil && ok {
		mine = en.Participants
	}
	return c.JSON(http.StatusOK, echo.Map{
		"id":                seats.Event.ID,
		"name":              seats.Event.Name,
		"starts_at":         seats.Event.StartsAt,
		"seats_total":       seats.Event.SeatsTotal,
		"seats_remaining":   seats.Event.SeatsRemaining,
		"seats_held":        seats.Held,
		"enrollments":       seats.Enrollments,
		"your_participants": mine,
	})
}
