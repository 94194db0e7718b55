package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/iliyamo/event-ticketing/internal/model"
)

// PaymentRepo stores gateway transactions keyed by reference code.
type PaymentRepo struct {
	db *sql.DB
}

// NewPaymentRepo returns a new PaymentRepo bound to the given database.
func NewPaymentRepo(db *sql.DB) *PaymentRepo { return &PaymentRepo{db: db} }

const paymentColumns = `id, reference_code, transaction_id, status, raw_state, amount, currency, buyer_email, gateway, created_at, updated_at`

func scanPayment(row rowScanner) (model.PaymentTransaction, error) {
	var (
		p        model.PaymentTransaction
		txID     sql.NullString
		rawState sql.NullString
		email    sql.NullString
	)
	err := row.Scan(&p.ID, &p.ReferenceCode, &txID, &p.Status, &rawState, &p.Amount, &p.Currency, &email, &p.Gateway, &p.CreatedAt, &p.UpdatedAt)
	p.TransactionID = txID.String
	p.RawState = rawState.String
	p.BuyerEmail = email.String
	return p, err
}

// ListByEmail returns the transactions of a buyer, newest first.
func (r *PaymentRepo) ListByEmail(ctx context.Context, email string) ([]model.PaymentTransaction, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+paymentColumns+` FROM payment_transactions WHERE buyer_email = ? ORDER BY created_at DESC, id DESC`, email)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.PaymentTransaction, 0)
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *PaymentRepo) getByReference(ctx context.Context, tx sqlCommand, ref string) (model.PaymentTransaction, error) {
	p, err := scanPayment(tx.QueryRowContext(ctx, `SELECT `+paymentColumns+` FROM payment_transactions WHERE reference_code = ? FOR UPDATE`, ref))
	if err != nil {
		return model.PaymentTransaction{}, notFound(err)
	}
	return p, nil
}

// UpsertTx inserts p or, when its reference code already exists, updates
// the stored row in place.  p.ID is populated in both cases.
func (r *PaymentRepo) UpsertTx(ctx context.Context, tx sqlCommand, p *model.PaymentTransaction) error {
	now := time.Now().UTC()
	if p.Gateway == "" {
		p.Gateway = model.GatewayPayU
	}
	const q = `INSERT INTO payment_transactions
		(reference_code, transaction_id, status, raw_state, amount, currency, buyer_email, gateway, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE id = LAST_INSERT_ID(id),
			transaction_id = COALESCE(VALUES(transaction_id), transaction_id),
			status = VALUES(status), raw_state = VALUES(raw_state), amount = VALUES(amount),
			currency = VALUES(currency), buyer_email = COALESCE(VALUES(buyer_email), buyer_email),
			updated_at = VALUES(updated_at)`
	res, err := tx.ExecContext(ctx, q, p.ReferenceCode, nullString(p.TransactionID), p.Status, nullString(p.RawState),
		p.Amount.StringFixed(2), p.Currency, nullString(p.BuyerEmail), p.Gateway, now, now)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	p.ID = uint64(id)
	p.UpdatedAt = now
	return nil
}
