package payments

import (
	"context"
	"math/rand"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/studio-booking/internal/lifecycle"
	"github.com/iliyamo/studio-booking/internal/lock"
	"github.com/iliyamo/studio-booking/internal/model"
)

// StatusFraudSuspected is stored as the payment's provider status when a
// notification carries an amount that does not match the expected one.
const StatusFraudSuspected = "fraud_suspected"

const (
	// orderLockTTL bounds how long one notification may exclusively
	// work on an order. The lock is advisory; the row lock inside the
	// transaction is the real guard.
	orderLockTTL = 30 * time.Second

	notificationMaxAge  = time.Hour
	notificationMaxSkew = 5 * time.Minute

	// MaxReceiptAttempts bounds the deferred fiscal receipt retries.
	MaxReceiptAttempts = 5
)

// Outcome summarizes what a reconciliation pass did.
type Outcome string

const (
	OutcomeApplied          Outcome = "applied"           // success status drove the booking to paid
	OutcomeCancelled        Outcome = "cancelled"         // failure status cancelled a pending booking
	OutcomeStatusRecorded   Outcome = "status_recorded"   // only the stored status changed
	OutcomeAlreadyProcessed Outcome = "already_processed" // idempotent short-circuit
	OutcomeDuplicate        Outcome = "duplicate"         // replayed payload, no new writes
	OutcomeInProgress       Outcome = "in_progress"       // another worker holds the order lock
)

// CheckResult is what a pull-based status check reports to the caller.
type CheckResult struct {
	OrderID string  `json:"order_id"`
	Status  string  `json:"status"`
	Paid    bool    `json:"paid"`
	Outcome Outcome `json:"outcome"`
}

// ReceiptRetry is the deferred task payload for a failed fiscal receipt.
type ReceiptRetry struct {
	OrderID     string          `json:"order_id"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
	Email       string          `json:"email"`
	Attempt     int             `json:"attempt"`
}

// RetryScheduler enqueues a receipt retry for later execution.
type RetryScheduler interface {
	ScheduleReceiptRetry(ctx context.Context, retry ReceiptRetry, delay time.Duration) error
}

// TxStore is the row-locked view of payment and booking state inside one
// transaction.
type TxStore interface {
	PaymentForUpdate(ctx context.Context, orderID string) (*model.Payment, error)
	BookingForUpdateByPayment(ctx context.Context, paymentID string) (*model.Booking, error)
	UpdatePayment(ctx context.Context, p *model.Payment) error
	UpdateBookingStatus(ctx context.Context, bookingID, status, adminNote string) error
}

// Store opens transactions and serves the few reads and writes the
// reconciler needs outside of one.
type Store interface {
	Within(ctx context.Context, fn func(ctx context.Context, tx TxStore) error) error
	Payment(ctx context.Context, orderID string) (*model.Payment, error)
	SaveReceipt(ctx context.Context, orderID string, rec *Receipt) error
}

// ReconcilerConfig wires the reconciler's collaborators.
type ReconcilerConfig struct {
	Gateway  *Gateway
	Store    Store
	Locker   lock.Locker
	Deduper  Deduper
	Receipts ReceiptIssuer
	Retries  RetryScheduler
	Limiter  PullLimiter
	Cache    StatusCache
	Log      *logrus.Logger
}

// Reconciler applies asynchronous payment provider notifications to
// local payment and booking state exactly once.
type Reconciler struct {
	gateway  *Gateway
	store    Store
	locker   lock.Locker
	deduper  Deduper
	receipts ReceiptIssuer
	retries  RetryScheduler
	limiter  PullLimiter
	cache    StatusCache
	log      *logrus.Logger
	now      func() time.Time
}

// NewReconciler builds a Reconciler from its collaborators.
func NewReconciler(cfg ReconcilerConfig) *Reconciler {
	log := cfg.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Reconciler{
		gateway:  cfg.Gateway,
		store:    cfg.Store,
		locker:   cfg.Locker,
		deduper:  cfg.Deduper,
		receipts: cfg.Receipts,
		retries:  cfg.Retries,
		limiter:  cfg.Limiter,
		cache:    cfg.Cache,
		log:      log,
		now:      time.Now,
	}
}

// WithClock overrides the reconciler's time source.
func (r *Reconciler) WithClock(now func() time.Time) *Reconciler {
	r.now = now
	return r
}

// HandleCallback processes one pushed provider notification end to end:
// verify, freshness, dedup, advisory lock, then the locked transactional
// apply. Signature, staleness and fraud failures are terminal for the
// payload and come back as their sentinel errors. The decoded order id
// is returned alongside the outcome so callers never have to unpack the
// payload a second time; it is empty only when decoding itself failed.
func (r *Reconciler) HandleCallback(ctx context.Context, data, signature string) (Outcome, string, error) {
	n, err := r.gateway.DecodeCallback(data, signature)
	if err != nil {
		r.log.WithError(err).Error("payment callback rejected")
		return "", "", err
	}

	logger := r.log.WithFields(logrus.Fields{"order_id": n.OrderID, "provider_status": n.Status})

	if n.Stale(r.now(), notificationMaxAge, notificationMaxSkew) {
		logger.WithField("create_date", n.CreateDate).Error("stale payment notification, suspected replay")
		return "", n.OrderID, ErrStaleNotification
	}

	dup := false
	if r.deduper != nil {
		dup, err = r.deduper.Seen(ctx, n.OrderID, signature)
		if err != nil {
			// Dedup is an optimization; the idempotent short-circuit
			// inside the transaction still holds without it.
			logger.WithError(err).Warn("dedup check unavailable, continuing")
			dup = false
		}
	}

	token, ok, err := r.locker.TryAcquire(ctx, "payment:"+n.OrderID, orderLockTTL)
	if err != nil {
		logger.WithError(err).Warn("order lock unavailable, relying on row locks")
	} else if !ok {
		logger.Info("order already being reconciled, acknowledging without reprocessing")
		return OutcomeInProgress, n.OrderID, nil
	} else {
		defer func() {
			if relErr := r.locker.Release(context.WithoutCancel(ctx), "payment:"+n.OrderID, token); relErr != nil {
				logger.WithError(relErr).Warn("failed to release order lock")
			}
		}()
	}

	outcome, err := r.apply(ctx, n, SuccessOnPush, dup)
	if err != nil {
		return "", n.OrderID, err
	}
	logger.WithField("outcome", outcome).Info("payment notification reconciled")
	return outcome, n.OrderID, nil
}

// CheckOrder is the pull-based companion to HandleCallback, used when a
// push notification never arrived. It is rate limited per order and its
// result is cached briefly.
func (r *Reconciler) CheckOrder(ctx context.Context, orderID string) (*CheckResult, error) {
	logger := r.log.WithField("order_id", orderID)

	if r.cache != nil {
		if res, hit, err := r.cache.Get(ctx, orderID); err != nil {
			logger.WithError(err).Warn("status cache unavailable")
		} else if hit {
			return res, nil
		}
	}

	if r.limiter != nil {
		allowed, err := r.limiter.Allow(ctx, orderID)
		if err != nil {
			logger.WithError(err).Warn("pull limiter unavailable, allowing check")
		} else if !allowed {
			return nil, ErrCheckThrottled
		}
	}

	n, err := r.gateway.PullStatus(ctx, orderID)
	if err != nil {
		logger.WithError(err).Warn("provider status pull failed")
		return nil, err
	}

	token, ok, err := r.locker.TryAcquire(ctx, "payment:"+orderID, orderLockTTL)
	if err != nil {
		logger.WithError(err).Warn("order lock unavailable, relying on row locks")
	} else if !ok {
		return &CheckResult{OrderID: orderID, Status: n.Status, Outcome: OutcomeInProgress}, nil
	} else {
		defer func() {
			if relErr := r.locker.Release(context.WithoutCancel(ctx), "payment:"+orderID, token); relErr != nil {
				logger.WithError(relErr).Warn("failed to release order lock")
			}
		}()
	}

	outcome, err := r.apply(ctx, n, SuccessOnPull, false)
	if err != nil {
		return nil, err
	}

	res := &CheckResult{
		OrderID: orderID,
		Status:  n.Status,
		Paid:    SuccessOnPull(n.Status),
		Outcome: outcome,
	}
	if r.cache != nil {
		if err := r.cache.Put(ctx, orderID, res); err != nil {
			logger.WithError(err).Warn("failed to cache status result")
		}
	}
	logger.WithField("outcome", outcome).Info("order status pulled and reconciled")
	return res, nil
}

// apply runs steps 5 through 9 of a reconciliation: load and lock the
// rows, short-circuit if already applied, cross-check the amount, apply
// the status outcome, and kick off the fiscal receipt on a new success.
func (r *Reconciler) apply(ctx context.Context, n *Notification, success func(string) bool, dup bool) (Outcome, error) {
	var (
		outcome    Outcome
		fraud      bool
		receiptReq *ReceiptRequest
	)

	err := r.store.Within(ctx, func(ctx context.Context, tx TxStore) error {
		p, err := tx.PaymentForUpdate(ctx, n.OrderID)
		if err != nil {
			return err
		}

		if p.IsPaid && p.ProviderStatus == n.Status {
			if dup {
				outcome = OutcomeDuplicate
			} else {
				outcome = OutcomeAlreadyProcessed
			}
			return nil
		}

		if !p.Amount.Equal(n.Amount) {
			fraud = true
			if p.IsPaid {
				// A settled payment keeps its stored status; the
				// incident is reported but a forged follow-up must not
				// scribble over it.
				return nil
			}
			// Persist the marker but never the paid flag. The commit is
			// deliberate: the incident must survive the rejected payload.
			p.ProviderStatus = StatusFraudSuspected
			return tx.UpdatePayment(ctx, p)
		}

		switch {
		case success(n.Status):
			wasPaid := p.IsPaid
			p.IsPaid = true
			p.ProviderStatus = n.Status
			if err := tx.UpdatePayment(ctx, p); err != nil {
				return err
			}
			b, err := tx.BookingForUpdateByPayment(ctx, p.ID)
			if err != nil {
				return err
			}
			if b.Status == string(lifecycle.StatusPendingPayment) {
				next, err := lifecycle.Transition(lifecycle.Status(b.Status), lifecycle.StatusPaid)
				if err != nil {
					return err
				}
				if err := tx.UpdateBookingStatus(ctx, b.ID, string(next), ""); err != nil {
					return err
				}
			}
			if !wasPaid && !p.HasReceipt() {
				email := n.PayerEmail
				if email == "" {
					email = b.Email
				}
				receiptReq = &ReceiptRequest{
					OrderID:     p.ID,
					Amount:      p.Amount,
					Description: p.Description,
					Email:       email,
				}
			}
			outcome = OutcomeApplied

		case Failed(n.Status):
			p.IsPaid = false
			p.ProviderStatus = n.Status
			if err := tx.UpdatePayment(ctx, p); err != nil {
				return err
			}
			b, err := tx.BookingForUpdateByPayment(ctx, p.ID)
			if err != nil {
				return err
			}
			outcome = OutcomeStatusRecorded
			if b.Status == string(lifecycle.StatusPendingPayment) {
				next, err := lifecycle.Transition(lifecycle.Status(b.Status), lifecycle.StatusCancelled)
				if err != nil {
					return err
				}
				note := "payment " + n.Status + " reported by provider"
				if err := tx.UpdateBookingStatus(ctx, b.ID, string(next), note); err != nil {
					return err
				}
				outcome = OutcomeCancelled
			}

		default:
			p.ProviderStatus = n.Status
			if err := tx.UpdatePayment(ctx, p); err != nil {
				return err
			}
			outcome = OutcomeStatusRecorded
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	if fraud {
		r.log.WithFields(logrus.Fields{
			"order_id":        n.OrderID,
			"provider_status": n.Status,
			"reported_amount": n.Amount.String(),
		}).Error("payment amount mismatch, marked fraud suspected")
		return "", ErrFraudSuspected
	}

	if receiptReq != nil {
		r.issueOrSchedule(ctx, *receiptReq)
	}
	return outcome, nil
}

// issueOrSchedule tries the fiscal receipt once inline and defers a
// bounded retry on failure. Receipt issuance never fails the
// reconciliation that triggered it.
func (r *Reconciler) issueOrSchedule(ctx context.Context, req ReceiptRequest) {
	// Deployments without a fiscal registrar leave the issuer unset.
	if r.receipts == nil {
		return
	}
	logger := r.log.WithField("order_id", req.OrderID)

	rec, err := r.receipts.IssueReceipt(ctx, req)
	if err == nil {
		if err := r.store.SaveReceipt(ctx, req.OrderID, rec); err != nil {
			logger.WithError(err).Error("failed to persist fiscal receipt reference")
		}
		return
	}

	logger.WithError(err).Warn("fiscal receipt issuance failed, scheduling retry")
	retry := ReceiptRetry{
		OrderID:     req.OrderID,
		Amount:      req.Amount,
		Description: req.Description,
		Email:       req.Email,
		Attempt:     1,
	}
	if err := r.retries.ScheduleReceiptRetry(ctx, retry, RetryBackoff(retry.Attempt)); err != nil {
		logger.WithError(err).Error("failed to schedule receipt retry")
	}
}

// RetryReceipt executes one deferred receipt attempt. A nil return means
// done (issued now, issued earlier, or no longer needed); an error means
// the caller may retry within the attempt budget.
func (r *Reconciler) RetryReceipt(ctx context.Context, retry ReceiptRetry) error {
	if r.receipts == nil {
		return nil
	}
	p, err := r.store.Payment(ctx, retry.OrderID)
	if err != nil {
		return err
	}
	if !p.IsPaid || p.HasReceipt() {
		return nil
	}
	rec, err := r.receipts.IssueReceipt(ctx, ReceiptRequest{
		OrderID:     retry.OrderID,
		Amount:      retry.Amount,
		Description: retry.Description,
		Email:       retry.Email,
	})
	if err != nil {
		return err
	}
	return r.store.SaveReceipt(ctx, retry.OrderID, rec)
}

// RetryBackoff returns the delay before the given attempt number is
// retried: exponential from one minute with jitter, capped at one hour.
func RetryBackoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if attempt > 10 {
		attempt = 10
	}
	delay := time.Minute << uint(attempt-1)
	delay += time.Duration(rand.Int63n(int64(delay / 4)))
	if delay > time.Hour {
		delay = time.Hour
	}
	return delay
}
