package router

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/resort-reservation/internal/config"
	"github.com/iliyamo/resort-reservation/internal/handler"
	"github.com/iliyamo/resort-reservation/internal/queue"
	"github.com/iliyamo/resort-reservation/internal/repository"
	"github.com/iliyamo/resort-reservation/internal/reservation"
	"github.com/iliyamo/resort-reservation/internal/utils"
)

const secret = "router-secret"

func newTestDeps(ready map[string]handler.Check) Deps {
	store := repository.NewMemoryStore()
	store.Seed(repository.DemoServices(), repository.DemoEvents(time.Now().UTC()))
	mgr := reservation.NewManager(store, store)
	pub := queue.NopPublisher{}
	cfg := config.Config{JWTSecret: secret}
	cfg.RateLimit.Enabled = true
	cfg.Cache.Enabled = true
	return Deps{
		Config:       cfg,
		Reservations: handler.NewReservationHandler(mgr, pub, nil),
		Enrollments:  handler.NewEnrollmentHandler(reservation.NewLedger(store), pub, nil),
		Services:     handler.NewServiceHandler(mgr, nil),
		Ready:        ready,
	}
}

func do(t *testing.T, d Deps, method, path, token string) *httptest.ResponseRecorder {
	t.Helper()
	e := New(d)
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	rec := do(t, newTestDeps(nil), http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestReadyz(t *testing.T) {
	ok := newTestDeps(map[string]handler.Check{
		"store": func(context.Context) error { return nil },
	})
	assert.Equal(t, http.StatusOK, do(t, ok, http.MethodGet, "/readyz", "").Code)

	down := newTestDeps(map[string]handler.Check{
		"store": func(context.Context) error { return nil },
		"redis": func(context.Context) error { return errors.New("connection refused") },
	})
	rec := do(t, down, http.MethodGet, "/readyz", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "redis")
	assert.NotContains(t, rec.Body.String(), `"store"`)
}

func TestPublicCatalogWithoutRedis(t *testing.T) {
	rec := do(t, newTestDeps(nil), http.MethodGet, "/v1/services?type=room", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), `"ROOM"`))
	assert.False(t, strings.Contains(rec.Body.String(), `"POOL_CHAIR"`))
}

func TestAuthenticatedRoutes(t *testing.T) {
	d := newTestDeps(nil)

	rec := do(t, d, http.MethodGet, "/v1/reservations", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	tok, err := utils.NewAccessToken(secret, 7, "GUEST", time.Hour)
	require.NoError(t, err)
	rec = do(t, d, http.MethodGet, "/v1/reservations", tok.Token)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, d, http.MethodGet, "/v1/events/1", tok.Token)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "seats_remaining")

	other, err := utils.NewAccessToken("another-secret", 7, "GUEST", time.Hour)
	require.NoError(t, err)
	rec = do(t, d, http.MethodGet, "/v1/reservations", other.Token)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
