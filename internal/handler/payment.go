package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/studio-booking/internal/payments"
	"github.com/iliyamo/studio-booking/internal/queue"
	"github.com/iliyamo/studio-booking/internal/repository"
	taskqueue "github.com/iliyamo/studio-booking/internal/service"
)

// PaymentHandler receives provider callbacks and serves the customer
// polling endpoint.  Both paths go through the reconciler, which owns
// every consistency rule; the handler only translates outcomes and
// sentinel errors into HTTP statuses.
//
// Status mapping on the webhook follows what the provider's retry logic
// expects: any 2xx stops redelivery, so terminal rejections (stale,
// fraud suspected, unknown order) are acknowledged with 200 while
// only infrastructure failures return 5xx.
type PaymentHandler struct {
	Reconciler *payments.Reconciler
	Bookings   *repository.BookingRepo
	Publisher  *taskqueue.Publisher
	Log        *logrus.Logger
}

func NewPaymentHandler(rec *payments.Reconciler, bookings *repository.BookingRepo, pub *taskqueue.Publisher, log *logrus.Logger) *PaymentHandler {
	return &PaymentHandler{Reconciler: rec, Bookings: bookings, Publisher: pub, Log: log}
}

// Webhook handles POST /v1/payments/callback, the provider's
// server-to-server notification.  The body is a form with base64 "data"
// and its "signature".
func (h *PaymentHandler) Webhook(c echo.Context) error {
	data := c.FormValue("data")
	signature := c.FormValue("signature")
	if data == "" || signature == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "data and signature are required"})
	}

	outcome, orderID, err := h.Reconciler.HandleCallback(c.Request().Context(), data, signature)
	if err != nil {
		switch {
		case errors.Is(err, payments.ErrSignature):
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid signature"})
		case errors.Is(err, payments.ErrStaleNotification):
			return c.JSON(http.StatusOK, echo.Map{"status": "ignored_stale"})
		case errors.Is(err, payments.ErrFraudSuspected):
			return c.JSON(http.StatusOK, echo.Map{"status": "recorded"})
		case errors.Is(err, repository.ErrNotFound):
			return c.JSON(http.StatusOK, echo.Map{"status": "unknown_order"})
		default:
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "processing failed"})
		}
	}

	if outcome == payments.OutcomeApplied {
		h.publishPaid(c.Request().Context(), orderID)
	}
	return c.JSON(http.StatusOK, echo.Map{"status": string(outcome)})
}

// CheckStatus handles GET /v1/bookings/:id/payment/status.  It pulls
// the current order status from the provider (rate limited and cached
// by the reconciler) and reports the result.
func (h *PaymentHandler) CheckStatus(c echo.Context) error {
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

	res, err := h.Reconciler.CheckOrder(ctx, *b.PaymentID)
	if err != nil {
		switch {
		case errors.Is(err, payments.ErrCheckThrottled):
			return c.JSON(http.StatusTooManyRequests, echo.Map{"error": "status checked too frequently, try again shortly"})
		case errors.Is(err, payments.ErrProviderUnavailable):
			return c.JSON(http.StatusBadGateway, echo.Map{"error": "payment provider unavailable"})
		case errors.Is(err, payments.ErrFraudSuspected):
			return c.JSON(http.StatusConflict, echo.Map{"error": "payment amount mismatch, contact the studio"})
		default:
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "status check failed"})
		}
	}

	if res.Outcome == payments.OutcomeApplied {
		h.publishPaid(ctx, res.OrderID)
	}
	return c.JSON(http.StatusOK, res)
}

// publishPaid emits a BookingPaidEvent for downstream consumers.  Event
// delivery is best effort; the booking state is already committed.
func (h *PaymentHandler) publishPaid(ctx context.Context, orderID string) {
	if orderID == "" || h.Publisher == nil {
		return
	}
	b, err := h.Bookings.GetByPayment(ctx, orderID)
	if err != nil {
		h.Log.WithError(err).WithField("order_id", orderID).Warn("paid event: booking lookup failed")
		return
	}
	ev := queue.BookingPaidEvent{
		BookingID:     b.ID,
		OrderID:       orderID,
		LocationID:    b.LocationID,
		CustomerEmail: b.Email,
		Date:          b.Date.Format("2006-01-02"),
		StartMinute:   b.StartMinute,
		DepositAmount: b.DepositAmount.StringFixed(2),
		PaidAt:        time.Now().UTC().Format(time.RFC3339),
	}
	if err := h.Publisher.PublishBookingPaid(ctx, ev); err != nil {
		h.Log.WithError(err).WithField("booking_id", b.ID).Warn("paid event: publish failed")
	}
}
