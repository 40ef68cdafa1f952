package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/resort-reservation/internal/handler"
)

// RegisterEvents registers the event seat endpoints on an authenticated
// group.
func RegisterEvents(g *echo.Group, h *handler.EnrollmentHandler, limit echo.MiddlewareFunc) {
	g.GET("/events/:id", h.Get)
	g.POST("/events/:id/enrollments", h.Enroll, limit)
	g.DELETE("/events/:id/enrollments", h.Cancel, limit)
}
