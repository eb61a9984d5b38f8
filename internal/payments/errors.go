package payments

import "errors"

// Terminal verification failures. A notification that trips one of these
// must never be retried by the provider, so the HTTP layer acknowledges
// it with a 2xx while we record the incident.
var (
	ErrSignature         = errors.New("payments: signature verification failed")
	ErrStaleNotification = errors.New("payments: notification outside freshness window")
	ErrFraudSuspected    = errors.New("payments: notification amount does not match expected amount")
)

// Infrastructure failures. These are the only conditions the provider is
// allowed to retry.
var (
	ErrProviderUnavailable = errors.New("payments: provider unavailable")
	ErrCheckThrottled      = errors.New("payments: status check rate limit reached, try later")
)
