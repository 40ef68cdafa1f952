package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/resort-reservation/internal/handler"
)

// RegisterReservations registers the booking endpoints on an authenticated
// group.  Writes go through the rate limiter; ownership checks live in the
// handler because STAFF may act on any booking.
func RegisterReservations(g *echo.Group, h *handler.ReservationHandler, limit echo.MiddlewareFunc) {
	g.POST("/reservations", h.Create, limit)
	g.DELETE("/reservations/:id", h.Cancel, limit)
	g.GET("/reservations", h.List)
}
