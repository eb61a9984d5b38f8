// Package lifecycle defines the booking status machine.  Transitions are
// pure guard checks; persistence and locking belong to the caller, which
// must perform every transition as an atomic read-modify-write.
package lifecycle

import "fmt"

// Status is a booking lifecycle state.
type Status string

const (
	StatusPendingPayment Status = "pending_payment"
	StatusPaid           Status = "paid"
	StatusConfirmed      Status = "confirmed"
	StatusCompleted      Status = "completed"
	StatusCancelled      Status = "cancelled"
)

// NonTerminal lists the statuses that consume location and inventory
// capacity.  Cancelled and completed bookings no longer block a slot.
var NonTerminal = []Status{StatusPendingPayment, StatusPaid, StatusConfirmed}

// NonTerminalStrings returns NonTerminal as plain strings for SQL IN
// clauses.
func NonTerminalStrings() []string {
	out := make([]string, len(NonTerminal))
	for i, s := range NonTerminal {
		out[i] = string(s)
	}
	return out
}

// Valid reports whether s is a known status value.
func (s Status) Valid() bool {
	switch s {
	case StatusPendingPayment, StatusPaid, StatusConfirmed, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// Terminal reports whether s is a final state.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// InvalidTransitionError is returned when a requested transition is not
// permitted by the state machine.  It is an operator or programming
// error, never a normal business outcome.
type InvalidTransitionError struct {
	From Status
	To   Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid booking transition %s -> %s", e.From, e.To)
}

// CanTransition reports whether the machine allows from -> to:
//
//	pending_payment -> paid        (payment reconciliation only)
//	paid            -> confirmed   (operator action)
//	confirmed       -> completed   (operator action, after the interval)
//	any non-terminal -> cancelled
func CanTransition(from, to Status) bool {
	if from.Terminal() {
		return false
	}
	switch to {
	case StatusPaid:
		return from == StatusPendingPayment
	case StatusConfirmed:
		return from == StatusPaid
	case StatusCompleted:
		return from == StatusConfirmed
	case StatusCancelled:
		return true // guarded above: from is non-terminal
	}
	return false
}

// Transition validates from -> to and returns the new status, or an
// *InvalidTransitionError when the guard rejects it.
func Transition(from, to Status) (Status, error) {
	if !from.Valid() || !to.Valid() {
		return from, &InvalidTransitionError{From: from, To: to}
	}
	if !CanTransition(from, to) {
		return from, &InvalidTransitionError{From: from, To: to}
	}
	return to, nil
}
