// Package router wires handlers and middleware onto an Echo instance.
package router

import (
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/iliyamo/resort-reservation/internal/config"
	"github.com/iliyamo/resort-reservation/internal/handler"
	"github.com/iliyamo/resort-reservation/internal/middleware"
)

// Deps are the collaborators the routes need.  Redis may be nil, which
// disables rate limiting and response caching.
type Deps struct {
	Config       config.Config
	Log          *zap.Logger
	Redis        *redis.Client
	Reservations *handler.ReservationHandler
	Enrollments  *handler.EnrollmentHandler
	Services     *handler.ServiceHandler
	Ready        map[string]handler.Check
}

// New builds the Echo instance with the global middleware chain and every
// route registered.
func New(d Deps) *echo.Echo {
	log := d.Log
	if log == nil {
		log = zap.NewNop()
	}
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handler.NewRequestValidator()
	e.Use(echomw.Recover())
	e.Use(middleware.RequestID())
	e.Use(middleware.AccessLog(log.Named("http")))

	RegisterRoutes(e, d.Ready)
	RegisterPublic(e, d.Services, middleware.NewRedisCache(d.Config.Cache, d.Redis, log))

	auth := e.Group("/v1",
		middleware.JWTAuth(d.Config.JWTSecret),
		middleware.RequireRole(middleware.RoleGuest, middleware.RoleStaff),
	)
	limit := middleware.NewTokenBucket(d.Config.RateLimit, d.Redis, log)
	RegisterReservations(auth, d.Reservations, limit)
	RegisterEvents(auth, d.Enrollments, limit)
	return e
}

// RegisterRoutes registers the unauthenticated probes.
func RegisterRoutes(e *echo.Echo, ready map[string]handler.Check) {
	e.GET("/healthz", handler.Health)
	e.GET("/readyz", handler.Ready(ready))
}

// RegisterPublic registers the browse endpoints.  The catalog listing is
// served through the response cache; schedules change with every booking
// and are never cached.
func RegisterPublic(e *echo.Echo, s *handler.ServiceHandler, cache echo.MiddlewareFunc) {
	e.GET("/v1/services", s.List, cache)
	e.GET("/v1/services/:id/schedule", s.Schedule)
}
