// Package queue defines the task envelope and event payloads exchanged
// over the message broker, plus the background consumer that executes
// deferred tasks.
package queue

import "encoding/json"

const (
	// TasksQueue receives tasks that are due now.
	TasksQueue = "tasks"
	// DelayedQueue parks tasks with a per-message TTL; expired messages
	// are dead-lettered back onto TasksQueue for execution.
	DelayedQueue = "tasks.delayed"
)

// TaskReceiptRetry retries a fiscal receipt that failed to issue inline.
const TaskReceiptRetry = "payment.receipt_retry"

// Task is the envelope for every deferred unit of work.  Payload is kept
// raw so each handler unmarshals its own type.
type Task struct {
	Name    string          `json:"name"`
	Payload json.RawMessage `json:"payload"`
}

// BookingPaidEvent is published when payment reconciliation moves a
// booking to paid.  It carries enough for downstream consumers to notify
// or log without querying the primary database.
type BookingPaidEvent struct {
	BookingID     string `json:"booking_id"`
	OrderID       string `json:"order_id"`
	LocationID    string `json:"location_id"`
	CustomerEmail string `json:"customer_email,omitempty"`
	Date          string `json:"date"`
	StartMinute   int    `json:"start_minute"`
	DepositAmount string `json:"deposit_amount"`
	PaidAt        string `json:"paid_at"`
}

// BookingPaidQueue receives BookingPaidEvent messages.
const BookingPaidQueue = "booking.paid"
