package handler

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"github.com/iliyamo/studio-booking/internal/calendar"
	"github.com/iliyamo/studio-booking/internal/lifecycle"
	"github.com/iliyamo/studio-booking/internal/model"
	"github.com/iliyamo/studio-booking/internal/repository"
)

// OperatorHandler serves the staff dashboard: booking listing and
// lifecycle transitions, plus the studio-wide settings.  All routes
// sit behind JWTAuth and RequireRole("operator").
type OperatorHandler struct {
	Settings  *repository.SettingsRepo
	Bookings  *repository.BookingRepo
	Payments  *repository.PaymentRepo
	AddOns    *repository.AddOnRepo
	Inventory *repository.InventoryRepo
	UoW       *repository.UnitOfWork
}

func NewOperatorHandler(settings *repository.SettingsRepo, bookings *repository.BookingRepo, pays *repository.PaymentRepo, addOns *repository.AddOnRepo, inv *repository.InventoryRepo, uow *repository.UnitOfWork) *OperatorHandler {
	return &OperatorHandler{Settings: settings, Bookings: bookings, Payments: pays, AddOns: addOns, Inventory: inv, UoW: uow}
}

// ListBookings handles GET /v1/operator/bookings with optional date,
// status, limit and offset query parameters.
func (h *OperatorHandler) ListBookings(c echo.Context) error {
	ctx := c.Request().Context()

	opts := repository.ListOptions{Limit: 50}
	if ds := c.QueryParam("date"); ds != "" {
		date, err := calendar.ParseDate(ds)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid date, expected YYYY-MM-DD"})
		}
		opts.Date = &date
	}
	if st := c.QueryParam("status"); st != "" {
		if !lifecycle.Status(st).Valid() {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "unknown status"})
		}
		opts.Status = st
	}
	if c.QueryParam("limit") != "" {
		n, err := intQueryParam(c, "limit")
		if err != nil || n <= 0 || n > 200 {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "limit must be 1-200"})
		}
		opts.Limit = n
	}
	if c.QueryParam("offset") != "" {
		n, err := intQueryParam(c, "offset")
		if err != nil || n < 0 {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "offset must be non-negative"})
		}
		opts.Offset = n
	}

	bookings, err := h.Bookings.List(ctx, opts)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	out := make([]bookingResp, 0, len(bookings))
	for i := range bookings {
		out = append(out, bookingResponse(&bookings[i]))
	}
	return c.JSON(http.StatusOK, echo.Map{"bookings": out})
}

// GetBooking handles GET /v1/operator/bookings/:id with the full
// detail: customer notes, admin notes, payment and attached lines.
func (h *OperatorHandler) GetBooking(c echo.Context) error {
	ctx := c.Request().Context()

	b, err := h.Bookings.GetByID(ctx, c.Param("id"))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "booking not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}

	addOns, err := h.AddOns.ListByBooking(ctx, b.ID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	items, err := h.Inventory.ListByBooking(ctx, b.ID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}

	resp := echo.Map{
		"booking":     bookingResponse(b),
		"admin_notes": b.AdminNotes,
		"addons":      addOns,
		"items":       items,
	}
	if b.PaymentID != nil {
		if p, err := h.Payments.GetByID(ctx, *b.PaymentID); err == nil {
			resp["payment"] = paymentSummary(p)
		}
	}
	return c.JSON(http.StatusOK, resp)
}

// Confirm handles POST /v1/operator/bookings/:id/confirm.
func (h *OperatorHandler) Confirm(c echo.Context) error {
	return h.transition(c, lifecycle.StatusConfirmed, "confirmed by operator")
}

// Complete handles POST /v1/operator/bookings/:id/complete.
func (h *OperatorHandler) Complete(c echo.Context) error {
	return h.transition(c, lifecycle.StatusCompleted, "completed by operator")
}

type cancelReq struct {
	Reason string `json:"reason"`
}

// Cancel handles POST /v1/operator/bookings/:id/cancel.  The optional
// reason is appended to the booking's admin notes.
func (h *OperatorHandler) Cancel(c echo.Context) error {
	var req cancelReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	note := "cancelled by operator"
	if r := strings.TrimSpace(req.Reason); r != "" {
		note = "cancelled by operator: " + r
	}
	return h.transition(c, lifecycle.StatusCancelled, note)
}

// transition moves one booking to the target status under a row lock,
// verifying the step against the lifecycle graph.
func (h *OperatorHandler) transition(c echo.Context, to lifecycle.Status, note string) error {
	id := c.Param("id")
	var updated *model.Booking

	err := h.UoW.Within(c.Request().Context(), func(ctx context.Context, tx *sql.Tx) error {
		b, err := h.Bookings.GetForUpdateTx(ctx, tx, id)
		if err != nil {
			return err
		}
		next, err := lifecycle.Transition(lifecycle.Status(b.Status), to)
		if err != nil {
			return err
		}
		if err := h.Bookings.UpdateStatusTx(ctx, tx, b.ID, string(next), note); err != nil {
			return err
		}
		b.Status = string(next)
		updated = b
		return nil
	})
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "booking not found"})
		}
		var terr *lifecycle.InvalidTransitionError
		if errors.As(err, &terr) {
			return c.JSON(http.StatusConflict, echo.Map{"error": terr.Error()})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	return c.JSON(http.StatusOK, echo.Map{"booking": bookingResponse(updated)})
}

type settingsDTO struct {
	OpeningTime        string          `json:"opening_time"` // "HH:MM"
	ClosingTime        string          `json:"closing_time"`
	GranularityMinutes int             `json:"granularity_minutes"`
	MinDurationMinutes int             `json:"min_duration_minutes"`
	MaxDurationMinutes int             `json:"max_duration_minutes"`
	AdvanceBookingDays int             `json:"advance_booking_days"`
	DepositPercentage  decimal.Decimal `json:"deposit_percentage"`
	BookingEnabled     bool            `json:"is_booking_enabled"`
	RentalEnabled      bool            `json:"is_rental_enabled"`
	MaxItemsPerBooking int             `json:"max_items_per_booking"`
	MaintenanceMessage string          `json:"maintenance_message,omitempty"`
}

func settingsToDTO(s *model.Settings) settingsDTO {
	return settingsDTO{
		OpeningTime:        calendar.FormatClock(s.OpeningMinute),
		ClosingTime:        calendar.FormatClock(s.ClosingMinute),
		GranularityMinutes: s.GranularityMinutes,
		MinDurationMinutes: s.MinDurationMinutes,
		MaxDurationMinutes: s.MaxDurationMinutes,
		AdvanceBookingDays: s.AdvanceBookingDays,
		DepositPercentage:  s.DepositPercentage,
		BookingEnabled:     s.BookingEnabled,
		RentalEnabled:      s.RentalEnabled,
		MaxItemsPerBooking: s.MaxItemsPerBooking,
		MaintenanceMessage: s.MaintenanceMessage,
	}
}

// GetSettings handles GET /v1/operator/settings.
func (h *OperatorHandler) GetSettings(c echo.Context) error {
	s, err := h.Settings.Get(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	return c.JSON(http.StatusOK, settingsToDTO(s))
}

// UpdateSettings handles PUT /v1/operator/settings.  The full settings
// document is replaced; partial updates read the current values first.
func (h *OperatorHandler) UpdateSettings(c echo.Context) error {
	var req settingsDTO
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}

	opening, err := calendar.ParseClock(req.OpeningTime)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid opening_time, expected HH:MM"})
	}
	closing, err := calendar.ParseClock(req.ClosingTime)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid closing_time, expected HH:MM"})
	}
	if closing <= opening {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "closing_time must be after opening_time"})
	}
	if req.GranularityMinutes <= 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "granularity_minutes must be positive"})
	}
	if req.MinDurationMinutes <= 0 || req.MinDurationMinutes%req.GranularityMinutes != 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "min_duration_minutes must be a positive multiple of the granularity"})
	}
	if req.MaxDurationMinutes > 0 && req.MaxDurationMinutes < req.MinDurationMinutes {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "max_duration_minutes must be at least min_duration_minutes"})
	}
	if req.AdvanceBookingDays < 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "advance_booking_days must be non-negative"})
	}
	if req.DepositPercentage.IsNegative() || req.DepositPercentage.GreaterThan(decimal.NewFromInt(100)) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "deposit_percentage must be between 0 and 100"})
	}

	s := &model.Settings{
		OpeningMinute:      opening,
		ClosingMinute:      closing,
		GranularityMinutes: req.GranularityMinutes,
		MinDurationMinutes: req.MinDurationMinutes,
		MaxDurationMinutes: req.MaxDurationMinutes,
		AdvanceBookingDays: req.AdvanceBookingDays,
		DepositPercentage:  req.DepositPercentage,
		BookingEnabled:     req.BookingEnabled,
		RentalEnabled:      req.RentalEnabled,
		MaxItemsPerBooking: req.MaxItemsPerBooking,
		MaintenanceMessage: strings.TrimSpace(req.MaintenanceMessage),
	}
	if err := h.Settings.Update(c.Request().Context(), s); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	return c.JSON(http.StatusOK, settingsToDTO(s))
}
