package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/studio-booking/internal/availability"
	"github.com/iliyamo/studio-booking/internal/calendar"
	"github.com/iliyamo/studio-booking/internal/model"
	"github.com/iliyamo/studio-booking/internal/pricing"
	"github.com/iliyamo/studio-booking/internal/repository"
)

// AvailabilityHandler answers the read side of the booking flow: the
// slot grid for a location and day, the next free slot, and price
// quotes.  All of it is advisory; the authoritative re-check happens
// inside the booking transaction.
type AvailabilityHandler struct {
	Settings  *repository.SettingsRepo
	Locations *repository.LocationRepo
	AddOns    *repository.AddOnRepo
	Inventory *repository.InventoryRepo
	Engine    *availability.Engine
}

func NewAvailabilityHandler(settings *repository.SettingsRepo, locations *repository.LocationRepo, addOns *repository.AddOnRepo, inv *repository.InventoryRepo, engine *availability.Engine) *AvailabilityHandler {
	return &AvailabilityHandler{Settings: settings, Locations: locations, AddOns: addOns, Inventory: inv, Engine: engine}
}

// Slots handles GET /v1/locations/:id/slots.  Query parameters: date
// (YYYY-MM-DD, required) and duration_minutes (defaults to the minimum
// booking duration).
func (h *AvailabilityHandler) Slots(c echo.Context) error {
	ctx := c.Request().Context()

	loc, err := h.Locations.GetByID(ctx, c.Param("id"))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "location not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	if !loc.IsActive {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "location not found"})
	}

	date, err := calendar.ParseDate(c.QueryParam("date"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid date, expected YYYY-MM-DD"})
	}

	cfg, err := h.Settings.Get(ctx)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}

	duration := cfg.MinDurationMinutes
	if c.QueryParam("duration_minutes") != "" {
		duration, err = intQueryParam(c, "duration_minutes")
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "duration_minutes must be an integer"})
		}
	}

	slots, err := h.Engine.FindFreeSlots(ctx, *cfg, loc.ID, date, duration)
	if err != nil {
		if handled, herr := validationResponse(c, err); handled {
			return herr
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}

	return c.JSON(http.StatusOK, echo.Map{
		"location_id":      loc.ID,
		"date":             date.Format("2006-01-02"),
		"duration_minutes": duration,
		"slots":            slots,
	})
}

// NextFree handles GET /v1/locations/:id/next-free.  It scans forward
// from the given date (default today) for the first slot that fits the
// requested duration, bounded by the advance booking window.
func (h *AvailabilityHandler) NextFree(c echo.Context) error {
	ctx := c.Request().Context()

	loc, err := h.Locations.GetByID(ctx, c.Param("id"))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "location not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	if !loc.IsActive {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "location not found"})
	}

	cfg, err := h.Settings.Get(ctx)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}

	from := calendar.Today()
	if fs := c.QueryParam("from"); fs != "" {
		from, err = calendar.ParseDate(fs)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid from, expected YYYY-MM-DD"})
		}
	}

	duration := cfg.MinDurationMinutes
	if c.QueryParam("duration_minutes") != "" {
		duration, err = intQueryParam(c, "duration_minutes")
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "duration_minutes must be an integer"})
		}
	}

	date, slot, err := h.Engine.NextFreeSlot(ctx, *cfg, loc.ID, from, duration, cfg.AdvanceBookingDays)
	if err != nil {
		if handled, herr := validationResponse(c, err); handled {
			return herr
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	if slot == nil {
		return c.JSON(http.StatusOK, echo.Map{"found": false})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"found":      true,
		"date":       date.Format("2006-01-02"),
		"start_time": slot.Start,
		"end_time":   slot.End,
	})
}

type quoteReq struct {
	LocationID      string              `json:"location_id"`
	DurationMinutes int                 `json:"duration_minutes"`
	AddOnIDs        []string            `json:"addon_ids"`
	Items           []model.ItemRequest `json:"items"`
}

// Quote handles POST /v1/quote.  It prices a prospective booking without
// reserving anything: base cost from the location's hourly rate, flat
// add-on prices and flat per-unit inventory prices, plus the deposit due.
func (h *AvailabilityHandler) Quote(c echo.Context) error {
	ctx := c.Request().Context()

	var req quoteReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if req.DurationMinutes <= 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "duration_minutes must be positive"})
	}

	loc, err := h.Locations.GetByID(ctx, req.LocationID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "location not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}

	addOns, err := h.AddOns.GetActiveByIDs(ctx, req.AddOnIDs)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	if len(addOns) != len(req.AddOnIDs) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "one or more add-ons not found"})
	}

	lines := make([]pricing.ItemLine, 0, len(req.Items))
	for _, line := range req.Items {
		if line.Quantity <= 0 {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "item quantity must be positive"})
		}
		item, err := h.Inventory.GetItem(ctx, line.ItemID)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "item " + line.ItemID + " not found"})
		}
		lines = append(lines, pricing.ItemLine{Item: item, Quantity: line.Quantity})
	}

	quote := pricing.Build(req.DurationMinutes, loc.HourlyRate, addOns, lines)
	return c.JSON(http.StatusOK, quote)
}
