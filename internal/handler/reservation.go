package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/resort-reservation/internal/middleware"
	"github.com/iliyamo/resort-reservation/internal/model"
	"github.com/iliyamo/resort-reservation/internal/queue"
	"github.com/iliyamo/resort-reservation/internal/reservation"
)

// ReservationHandler serves /v1/reservations.
type ReservationHandler struct {
	manager *reservation.Manager
	notify  notifier
	log     *zap.Logger
}

// NewReservationHandler builds the handler.  pub may be nil.
func NewReservationHandler(m *reservation.Manager, pub queue.Publisher, log *zap.Logger) *ReservationHandler {
	if m == nil {
		panic("nil manager passed to NewReservationHandler")
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &ReservationHandler{manager: m, notify: notifier{pub: pub, log: log}, log: log}
}

type reservationItem struct {
	ServiceID uint64 `json:"service_id" validate:"required,lte=9223372036854775807"`
	Start     string `json:"start" validate:"required"`
	End       string `json:"end" validate:"required"`
}

// reservationRequest is either one item given inline or a list in Items.
type reservationRequest struct {
	ServiceID uint64            `json:"service_id" validate:"lte=9223372036854775807"`
	Start     string            `json:"start"`
	End       string            `json:"end"`
	Items     []reservationItem `json:"items" validate:"omitempty,max=20,dive"`
	OwnerID   uint64            `json:"owner_id" validate:"lte=9223372036854775807"`
}

type detailResponse struct {
	ID          string     `json:"id"`
	ServiceID   uint64     `json:"service_id"`
	Start       time.Time  `json:"start"`
	End         time.Time  `json:"end"`
	Status      string     `json:"status"`
	CancelledAt *time.Time `json:"cancelled_at,omitempty"`
}

type bookingResponse struct {
	BookingID       string           `json:"booking_id"`
	BookingDetailID string           `json:"booking_detail_id,omitempty"`
	OwnerID         uint64           `json:"owner_id"`
	CreatedAt       time.Time        `json:"created_at"`
	Details         []detailResponse `json:"details"`
}

func toDetailResponse(d model.BookingDetail) detailResponse {
	return detailResponse{
		ID:          d.ID,
		ServiceID:   d.ServiceID,
		Start:       d.Interval.Start,
		End:         d.Interval.End,
		Status:      string(d.Status),
		CancelledAt: d.CancelledAt,
	}
}

func toBookingResponse(b model.Booking) bookingResponse {
	out := bookingResponse{BookingID: b.ID, OwnerID: b.OwnerID, CreatedAt: b.CreatedAt}
	for _, d := range b.Details {
		out.Details = append(out.Details, toDetailResponse(d))
	}
	if len(b.Details) == 1 {
		out.BookingDetailID = b.Details[0].ID
	}
	return out
}

// Create handles POST /v1/reservations.  The body holds either one
// service_id/start/end triple or an items array; all items commit together
// or none does.  STAFF callers may book on behalf of owner_id.  Responds
// 201 with the booking, 409 on overlap, 400 on bad input and 404 for an
// unknown service.
func (h *ReservationHandler) Create(c echo.Context) error {
	caller, ok := middleware.IdentityFrom(c)
	if !ok {
		return unauthorized(c)
	}
	var body reservationRequest
	if err := bindAndValidate(c, &body); err != nil {
		return badRequest(c, err.Error())
	}
	items := body.Items
	if len(items) == 0 {
		single := reservationItem{ServiceID: body.ServiceID, Start: body.Start, End: body.End}
		if err := c.Validate(&single); err != nil {
			return badRequest(c, err.Error())
		}
		items = []reservationItem{single}
	}

	owner := caller.UserID
	if body.OwnerID != 0 && body.OwnerID != caller.UserID {
		if !caller.IsStaff() {
			return forbidden(c, "only staff may book for another guest")
		}
		owner = body.OwnerID
	}

	ctx := c.Request().Context()
	reqs := make([]reservation.DetailRequest, 0, len(items))
	for _, it := range items {
		svc, err := h.manager.Catalog().Get(ctx, it.ServiceID)
		if err != nil {
			return respondError(c, h.log, err)
		}
		iv, err := reservation.ParseInterval(svc.Type, it.Start, it.End)
		if err != nil {
			return respondError(c, h.log, err)
		}
		reqs = append(reqs, reservation.DetailRequest{ServiceID: it.ServiceID, Interval: iv})
	}

	booking, err := h.manager.ReserveBooking(ctx, owner, reqs)
	if err != nil {
		return respondError(c, h.log, err)
	}
	h.notify.publish(ctx, queue.BookingCreated(booking, caller.UserID))
	return c.JSON(http.StatusCreated, toBookingResponse(booking))
}

// Cancel handles DELETE /v1/reservations/:id.  Guests may only cancel
// details of their own bookings; staff may cancel any.  Cancelling an
// already cancelled detail is a no-op and still answers 204.
func (h *ReservationHandler) Cancel(c echo.Context) error {
	caller, ok := middleware.IdentityFrom(c)
	if !ok {
		return unauthorized(c)
	}
	detailID := c.Param("id")
	if detailID == "" {
		return badRequest(c, "invalid reservation id")
	}
	ctx := c.Request().Context()

	_, owner, err := h.manager.Detail(ctx, detailID)
	if err != nil {
		return respondError(c, h.log, err)
	}
	if owner != caller.UserID && !caller.IsStaff() {
		return forbidden(c, "reservation belongs to another guest")
	}
	d, changed, err := h.manager.Cancel(ctx, detailID)
	if err != nil {
		return respondError(c, h.log, err)
	}
	if changed {
		h.notify.publish(ctx, queue.DetailCancelled(d, owner, caller.UserID))
	}
	return c.NoContent(http.StatusNoContent)
}

// List handles GET /v1/reservations: the caller's bookings, newest first.
// STAFF may pass ?owner_id= to list another guest's bookings.
func (h *ReservationHandler) List(c echo.Context) error {
	caller, ok := middleware.IdentityFrom(c)
	if !ok {
		return unauthorized(c)
	}
	owner, ok := queryID(c, "owner_id")
	if !ok {
		return badRequest(c, "invalid owner_id")
	}
	switch {
	case owner == 0:
		owner = caller.UserID
	case owner != caller.UserID && !caller.IsStaff():
		return forbidden(c, "only staff may list another guest's bookings")
	}

	bookings, err := h.manager.Bookings(c.Request().Context(), owner)
	if err != nil {
		return respondError(c, h.log, err)
	}
	items := make([]bookingResponse, 0, len(bookings))
	for _, b := range bookings {
		items = append(items, toBookingResponse(b))
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}
