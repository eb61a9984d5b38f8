package availability

import (
	"fmt"
	"strings"
)

// FieldError scopes a validation message to the input field it concerns.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationErrors collects every applicable rejection so a caller can
// present all problems at once instead of fixing them one at a time.
type ValidationErrors struct {
	Errors []FieldError
	// Conflict is set when one of the errors is a slot collision; it
	// carries the colliding booking's identity for the caller.
	Conflict *ConflictError
}

func (v *ValidationErrors) Error() string {
	parts := make([]string, len(v.Errors))
	for i, fe := range v.Errors {
		parts[i] = fe.Field + ": " + fe.Message
	}
	return "booking validation failed: " + strings.Join(parts, "; ")
}

func (v *ValidationErrors) add(field, format string, args ...any) {
	v.Errors = append(v.Errors, FieldError{Field: field, Message: fmt.Sprintf(format, args...)})
}

func (v *ValidationErrors) empty() bool { return len(v.Errors) == 0 }

// ConflictError reports a collision with an existing non-terminal
// booking.  It intentionally exposes only the colliding interval, never
// the other customer's identity.
type ConflictError struct {
	BookingID string // id of the earliest-starting overlapping booking
	StartsAt  string // its start clock time, "HH:MM"
	EndsAt    string // its end clock time, "HH:MM"
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("time slot conflicts with an existing booking at %s", e.StartsAt)
}
