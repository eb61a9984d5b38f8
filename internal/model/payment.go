package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Payment tracks the deposit charged for one booking.  Its UUID is the
// order id quoted to the payment provider, so provider notifications can
// be joined back without a mapping table.  The receipt fields may lag
// behind IsPaid: fiscal receipt issuance is best-effort and retried in
// the background.
type Payment struct {
	ID                string          // payments.id (UUID, provider order_id)
	Amount            decimal.Decimal // payments.amount (expected, UAH)
	Description       string          // payments.description
	IsPaid            bool            // payments.is_paid
	ProviderStatus    string          // payments.provider_status (last status string seen)
	ReceiptID         string          // payments.receipt_id (fiscal provider receipt)
	ReceiptFiscalCode string          // payments.receipt_fiscal_code
	ReceiptStatus     string          // payments.receipt_status
	CreatedAt         time.Time       // payments.created_at
	UpdatedAt         time.Time       // payments.updated_at
}

// HasReceipt reports whether a fiscal receipt was already issued.
func (p *Payment) HasReceipt() bool { return p.ReceiptID != "" }
