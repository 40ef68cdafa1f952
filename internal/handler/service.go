package handler

import (
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/resort-reservation/internal/model"
	"github.com/iliyamo/resort-reservation/internal/reservation"
)

// ServiceHandler serves the public catalog and instance schedules.
type ServiceHandler struct {
	manager *reservation.Manager
	log     *zap.Logger
}

// NewServiceHandler builds the handler.
func NewServiceHandler(m *reservation.Manager, log *zap.Logger) *ServiceHandler {
	if m == nil {
		panic("nil manager passed to NewServiceHandler")
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &ServiceHandler{manager: m, log: log}
}

// List handles GET /v1/services?type=.  Without type every instance is
// listed.
func (h *ServiceHandler) List(c echo.Context) error {
	var t model.ServiceType
	if raw := c.QueryParam("type"); raw != "" {
		var ok bool
		if t, ok = model.ParseServiceType(raw); !ok {
			return badRequest(c, "unknown service type "+raw)
		}
	}
	items, err := h.manager.Catalog().List(c.Request().Context(), t)
	if err != nil {
		return respondError(c, h.log, err)
	}
	if items == nil {
		items = []model.ServiceInstance{}
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

type slotResponse struct {
	DetailID string    `json:"detail_id"`
	Start    time.Time `json:"start"`
	End      time.Time `json:"end"`
}

// Schedule handles GET /v1/services/:id/schedule?from=&to=.  from and to
// accept RFC3339 or YYYY-MM-DD; when both are omitted every committed
// interval is returned.
func (h *ServiceHandler) Schedule(c echo.Context) error {
	serviceID, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid service id")
	}
	var window model.Interval
	if from, to := c.QueryParam("from"), c.QueryParam("to"); from != "" || to != "" {
		var err error
		if window, err = parseWindow(from, to); err != nil {
			return respondError(c, h.log, err)
		}
	}
	slots, err := h.manager.Schedule(c.Request().Context(), serviceID, window)
	if err != nil {
		return respondError(c, h.log, err)
	}
	out := make([]slotResponse, 0, len(slots))
	for _, s := range slots {
		out = append(out, slotResponse{DetailID: s.DetailID, Start: s.Interval.Start, End: s.Interval.End})
	}
	return c.JSON(http.StatusOK, echo.Map{"service_id": serviceID, "slots": out})
}

// parseWindow accepts both bounds as RFC3339 or as a date.  A bare date
// for to means the end of that day.
func parseWindow(from, to string) (model.Interval, error) {
	if from == "" || to == "" {
		return model.Interval{}, fmt.Errorf("%w: both from and to are required", reservation.ErrMalformedInput)
	}
	start, err := parseBound(from, false)
	if err != nil {
		return model.Interval{}, err
	}
	end, err := parseBound(to, true)
	if err != nil {
		return model.Interval{}, err
	}
	if !start.Before(end) {
		return model.Interval{}, fmt.Errorf("%w: from must be before to", reservation.ErrMalformedInput)
	}
	return model.Interval{Start: start, End: end}, nil
}

func parseBound(raw string, endOfDay bool) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UTC(), nil
	}
	d, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: unparsable bound %q", reservation.ErrMalformedInput, raw)
	}
	if endOfDay {
		d = d.AddDate(0, 0, 1)
	}
	return d, nil
}
