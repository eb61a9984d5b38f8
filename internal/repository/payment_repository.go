package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/studio-booking/internal/model"
)

// PaymentRepo provides access to the payments table.  A payment's ID is
// the order id quoted to the provider; reconciliation joins back on it.
type PaymentRepo struct {
	db *sql.DB
}

// NewPaymentRepo returns a new PaymentRepo bound to the given database.
func NewPaymentRepo(db *sql.DB) *PaymentRepo { return &PaymentRepo{db: db} }

const paymentColumns = `id, amount, description, is_paid, provider_status,
               receipt_id, receipt_fiscal_code, receipt_status, created_at, updated_at`

func scanPayment(row interface{ Scan(...any) error }) (*model.Payment, error) {
	var p model.Payment
	var providerStatus, receiptID, fiscalCode, receiptStatus sql.NullString
	err := row.Scan(
		&p.ID, &p.Amount, &p.Description, &p.IsPaid, &providerStatus,
		&receiptID, &fiscalCode, &receiptStatus, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	p.ProviderStatus = providerStatus.String
	p.ReceiptID = receiptID.String
	p.ReceiptFiscalCode = fiscalCode.String
	p.ReceiptStatus = receiptStatus.String
	return &p, nil
}

// CreateTx inserts a new unpaid payment within an existing transaction.
// The caller supplies the UUID and must commit or roll back.
func (r *PaymentRepo) CreateTx(ctx context.Context, tx *sql.Tx, p *model.Payment) error {
	const q = `INSERT INTO payments (id, amount, description, is_paid) VALUES (?, ?, ?, 0)`
	_, err := tx.ExecContext(ctx, q, p.ID, p.Amount, p.Description)
	return err
}

// GetByID returns one payment or ErrNotFound.
func (r *PaymentRepo) GetByID(ctx context.Context, id string) (*model.Payment, error) {
	const q = `SELECT ` + paymentColumns + ` FROM payments WHERE id = ?`
	p, err := scanPayment(r.db.QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return p, err
}

// GetForUpdateTx loads one payment under an exclusive row lock.  Every
// reconciliation pass starts here so concurrent notifications for the
// same order serialize at the database.
func (r *PaymentRepo) GetForUpdateTx(ctx context.Context, tx *sql.Tx, id string) (*model.Payment, error) {
	const q = `SELECT ` + paymentColumns + ` FROM payments WHERE id = ? FOR UPDATE`
	p, err := scanPayment(tx.QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return p, err
}

// UpdateTx persists the paid flag and provider status within an existing
// transaction.
func (r *PaymentRepo) UpdateTx(ctx context.Context, tx *sql.Tx, p *model.Payment) error {
	const q = `UPDATE payments SET is_paid = ?, provider_status = ? WHERE id = ?`
	_, err := tx.ExecContext(ctx, q, p.IsPaid, nullable(p.ProviderStatus), p.ID)
	return err
}

// SaveReceipt records the fiscal receipt reference issued for a paid
// payment.  Receipt issuance runs outside the reconciliation transaction
// so a receipt failure never rolls back a payment.
func (r *PaymentRepo) SaveReceipt(ctx context.Context, id, receiptID, fiscalCode, status string) error {
	const q = `UPDATE payments SET receipt_id = ?, receipt_fiscal_code = ?, receipt_status = ? WHERE id = ?`
	_, err := r.db.ExecContext(ctx, q, receiptID, nullable(fiscalCode), nullable(status), id)
	return err
}
