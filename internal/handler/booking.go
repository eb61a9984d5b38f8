package handler

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"github.com/iliyamo/studio-booking/internal/availability"
	"github.com/iliyamo/studio-booking/internal/calendar"
	"github.com/iliyamo/studio-booking/internal/inventory"
	"github.com/iliyamo/studio-booking/internal/lifecycle"
	"github.com/iliyamo/studio-booking/internal/model"
	"github.com/iliyamo/studio-booking/internal/payments"
	"github.com/iliyamo/studio-booking/internal/pricing"
	"github.com/iliyamo/studio-booking/internal/repository"
)

// BookingHandler owns the booking creation flow and public booking
// reads.  Creation validates twice: once outside any transaction for a
// fast rejection, then again inside the transaction while holding the
// location row lock, which is what actually guarantees no double
// booking.
type BookingHandler struct {
	Settings  *repository.SettingsRepo
	Locations *repository.LocationRepo
	AddOns    *repository.AddOnRepo
	Inventory *repository.InventoryRepo
	Bookings  *repository.BookingRepo
	Payments  *repository.PaymentRepo
	UoW       *repository.UnitOfWork
	Engine    *availability.Engine
	Pool      *inventory.Pool
	Gateway   *payments.Gateway
}

func NewBookingHandler(settings *repository.SettingsRepo, locations *repository.LocationRepo, addOns *repository.AddOnRepo, inv *repository.InventoryRepo, bookings *repository.BookingRepo, pays *repository.PaymentRepo, uow *repository.UnitOfWork, engine *availability.Engine, pool *inventory.Pool, gw *payments.Gateway) *BookingHandler {
	return &BookingHandler{
		Settings: settings, Locations: locations, AddOns: addOns, Inventory: inv,
		Bookings: bookings, Payments: pays, UoW: uow, Engine: engine, Pool: pool, Gateway: gw,
	}
}

type createBookingReq struct {
	LocationID      string              `json:"location_id"`
	FirstName       string              `json:"first_name"`
	LastName        string              `json:"last_name"`
	PhoneNumber     string              `json:"phone_number"`
	Email           string              `json:"email"`
	Date            string              `json:"date"`       // YYYY-MM-DD
	StartTime       string              `json:"start_time"` // HH:MM
	DurationMinutes int                 `json:"duration_minutes"`
	AddOnIDs        []string            `json:"addon_ids"`
	Items           []model.ItemRequest `json:"items"`
	Notes           string              `json:"notes"`
}

type checkoutResp struct {
	Data        string `json:"data"`
	Signature   string `json:"signature"`
	CheckoutURL string `json:"checkout_url"`
}

// Create handles POST /v1/bookings.  On success it returns 201 with the
// new booking, the payment order and the signed checkout form the
// customer's browser posts to the payment provider.
func (h *BookingHandler) Create(c echo.Context) error {
	ctx := c.Request().Context()

	var req createBookingReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.FirstName = strings.TrimSpace(req.FirstName)
	req.LastName = strings.TrimSpace(req.LastName)
	req.PhoneNumber = strings.TrimSpace(req.PhoneNumber)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.FirstName == "" || req.LastName == "" || req.PhoneNumber == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "first_name, last_name and phone_number are required"})
	}

	date, err := calendar.ParseDate(req.Date)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	startMinute, err := calendar.ParseClock(req.StartTime)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}

	cfg, err := h.Settings.Get(ctx)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}

	cand := availability.Candidate{
		LocationID:      req.LocationID,
		Date:            date,
		StartMinute:     startMinute,
		DurationMinutes: req.DurationMinutes,
	}

	// Advisory pass without locks.  Most bad requests die here cheaply;
	// the transactional pass below repeats both checks under the
	// location lock and is the one that counts.
	if err := h.Engine.ValidateCandidate(ctx, *cfg, cand); err != nil {
		if handled, herr := validationResponse(c, err); handled {
			return herr
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	if err := h.Pool.ValidateBatch(ctx, *cfg, req.Items, date, startMinute, req.DurationMinutes, ""); err != nil {
		if handled, herr := validationResponse(c, err); handled {
			return herr
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}

	var (
		booking *model.Booking
		payment *model.Payment
	)
	err = h.UoW.Within(ctx, func(txCtx context.Context, tx *sql.Tx) error {
		loc, err := h.Locations.GetForUpdateTx(txCtx, tx, req.LocationID)
		if err != nil {
			return err
		}
		if !loc.IsActive {
			return repository.ErrNotFound
		}

		// Authoritative re-validation under the location lock.
		txEngine := availability.NewEngine(h.Bookings.TxSource(tx))
		if err := txEngine.ValidateCandidate(txCtx, *cfg, cand); err != nil {
			return err
		}
		txSource := h.Inventory.TxSource(tx)
		txPool := inventory.NewPool(txSource, txSource)
		if err := txPool.ValidateBatch(txCtx, *cfg, req.Items, date, startMinute, req.DurationMinutes, ""); err != nil {
			return err
		}

		addOns, err := h.AddOns.GetActiveByIDs(txCtx, req.AddOnIDs)
		if err != nil {
			return err
		}
		if len(addOns) != len(req.AddOnIDs) {
			return &availability.ValidationErrors{Errors: []availability.FieldError{
				{Field: "addon_ids", Message: "one or more add-ons not found"},
			}}
		}

		lines := make([]pricing.ItemLine, 0, len(req.Items))
		allocations := make([]model.ItemAllocation, 0, len(req.Items))
		for _, line := range req.Items {
			item, err := txSource.GetItem(txCtx, line.ItemID)
			if err != nil {
				return err
			}
			lines = append(lines, pricing.ItemLine{Item: item, Quantity: line.Quantity})
			allocations = append(allocations, model.ItemAllocation{
				ItemID:   item.ID,
				Quantity: line.Quantity,
				Price:    item.Price,
			})
		}

		quote := pricing.Build(req.DurationMinutes, loc.HourlyRate, addOns, lines)

		booking = &model.Booking{
			ID:              uuid.NewString(),
			LocationID:      loc.ID,
			FirstName:       req.FirstName,
			LastName:        req.LastName,
			PhoneNumber:     req.PhoneNumber,
			Email:           req.Email,
			Date:            date,
			StartMinute:     startMinute,
			DurationMinutes: req.DurationMinutes,
			HourlyRate:      loc.HourlyRate,
			AddOnsTotal:     quote.AddOnsCost,
			InventoryTotal:  quote.InventoryCost,
			TotalAmount:     quote.Total,
			DepositAmount:   quote.Deposit,
			Status:          string(lifecycle.StatusPendingPayment),
			Notes:           strings.TrimSpace(req.Notes),
		}
		if err := h.Bookings.CreateTx(txCtx, tx, booking); err != nil {
			return err
		}

		payment = &model.Payment{
			ID:          uuid.NewString(),
			Amount:      quote.Deposit,
			Description: paymentDescription(loc.Name, req.Date, req.StartTime),
		}
		if err := h.Payments.CreateTx(txCtx, tx, payment); err != nil {
			return err
		}
		if err := h.Bookings.AttachPaymentTx(txCtx, tx, booking.ID, payment.ID); err != nil {
			return err
		}
		booking.PaymentID = &payment.ID

		if err := h.AddOns.AttachTx(txCtx, tx, booking.ID, addOns); err != nil {
			return err
		}
		for i := range allocations {
			allocations[i].BookingID = booking.ID
		}
		if err := h.Inventory.AllocateTx(txCtx, tx, allocations); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		if handled, herr := validationResponse(c, err); handled {
			return herr
		}
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "location not found"})
		}
		if errors.Is(err, repository.ErrConflict) {
			return c.JSON(http.StatusConflict, echo.Map{"error": "booking conflict, please retry"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}

	checkout, err := h.Gateway.CreateCheckout(payment.ID, payment.Amount, payment.Description)
	if err != nil {
		// The booking is committed; the customer can still pay via the
		// status page, which rebuilds the checkout form.
		return c.JSON(http.StatusCreated, echo.Map{"booking": bookingResponse(booking), "payment": paymentSummary(payment)})
	}

	return c.JSON(http.StatusCreated, echo.Map{
		"booking":  bookingResponse(booking),
		"payment":  paymentSummary(payment),
		"checkout": checkoutResp{Data: checkout.Data, Signature: checkout.Signature, CheckoutURL: checkout.CheckoutURL},
	})
}

// Get handles GET /v1/bookings/:id.  Booking IDs are unguessable UUIDs
// handed out at creation, which is what gates this public read.
func (h *BookingHandler) Get(c echo.Context) error {
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

	resp := echo.Map{"booking": bookingResponse(b), "addons": addOns, "items": items}
	if b.PaymentID != nil {
		p, err := h.Payments.GetByID(ctx, *b.PaymentID)
		if err == nil {
			resp["payment"] = paymentSummary(p)
		}
	}
	return c.JSON(http.StatusOK, resp)
}

// Checkout handles GET /v1/bookings/:id/checkout.  It rebuilds the
// signed payment form for a booking that is still awaiting its deposit,
// so a customer who closed the payment page can resume.
func (h *BookingHandler) Checkout(c echo.Context) error {
	ctx := c.Request().Context()

	b, err := h.Bookings.GetByID(ctx, c.Param("id"))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "booking not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	if b.PaymentID == nil {
		return c.JSON(http.StatusConflict, echo.Map{"error": "booking has no payment"})
	}
	if b.Status != string(lifecycle.StatusPendingPayment) {
		return c.JSON(http.StatusConflict, echo.Map{"error": "booking is not awaiting payment"})
	}

	p, err := h.Payments.GetByID(ctx, *b.PaymentID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	if p.IsPaid {
		return c.JSON(http.StatusConflict, echo.Map{"error": "payment already completed"})
	}

	checkout, err := h.Gateway.CreateCheckout(p.ID, p.Amount, p.Description)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "checkout build failed"})
	}
	return c.JSON(http.StatusOK, checkoutResp{Data: checkout.Data, Signature: checkout.Signature, CheckoutURL: checkout.CheckoutURL})
}

func paymentDescription(locationName, date, startTime string) string {
	return fmt.Sprintf("Studio booking deposit: %s on %s at %s", locationName, date, startTime)
}

type bookingResp struct {
	ID              string          `json:"id"`
	LocationID      string          `json:"location_id"`
	FirstName       string          `json:"first_name"`
	LastName        string          `json:"last_name"`
	PhoneNumber     string          `json:"phone_number"`
	Email           string          `json:"email,omitempty"`
	Date            string          `json:"date"`
	StartTime       string          `json:"start_time"`
	EndTime         string          `json:"end_time"`
	DurationMinutes int             `json:"duration_minutes"`
	HourlyRate      decimal.Decimal `json:"hourly_rate"`
	AddOnsTotal     decimal.Decimal `json:"addons_total"`
	InventoryTotal  decimal.Decimal `json:"inventory_total"`
	TotalAmount     decimal.Decimal `json:"total_amount"`
	DepositAmount   decimal.Decimal `json:"deposit_amount"`
	Status          string          `json:"status"`
	Notes           string          `json:"notes,omitempty"`
}

func bookingResponse(b *model.Booking) bookingResp {
	return bookingResp{
		ID:              b.ID,
		LocationID:      b.LocationID,
		FirstName:       b.FirstName,
		LastName:        b.LastName,
		PhoneNumber:     b.PhoneNumber,
		Email:           b.Email,
		Date:            b.Date.Format("2006-01-02"),
		StartTime:       calendar.FormatClock(b.StartMinute),
		EndTime:         calendar.FormatClock(b.EndMinute()),
		DurationMinutes: b.DurationMinutes,
		HourlyRate:      b.HourlyRate,
		AddOnsTotal:     b.AddOnsTotal,
		InventoryTotal:  b.InventoryTotal,
		TotalAmount:     b.TotalAmount,
		DepositAmount:   b.DepositAmount,
		Status:          b.Status,
		Notes:           b.Notes,
	}
}

type paymentResp struct {
	ID             string          `json:"id"`
	Amount         decimal.Decimal `json:"amount"`
	IsPaid         bool            `json:"is_paid"`
	ProviderStatus string          `json:"provider_status,omitempty"`
	ReceiptID      string          `json:"receipt_id,omitempty"`
}

func paymentSummary(p *model.Payment) paymentResp {
	return paymentResp{
		ID: p.ID, Amount: p.Amount, IsPaid: p.IsPaid,
		ProviderStatus: p.ProviderStatus, ReceiptID: p.ReceiptID,
	}
}
