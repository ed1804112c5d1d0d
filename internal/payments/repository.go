package payments

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/verdant-pos/verdant-pos/internal/shared"
)

// PGTransactionRepository persists payment transactions in PostgreSQL.
type PGTransactionRepository struct {
	pool *pgxpool.Pool
}

// NewPGTransactionRepository constructs PGTransactionRepository.
func NewPGTransactionRepository(pool *pgxpool.Pool) *PGTransactionRepository {
	return &PGTransactionRepository{pool: pool}
}

const txColumns = `id, vendor_id, processor_id, session_id, order_id, kind, status, amount, tip_amount, total_amount, payment_method, auth_code, card_type, card_last4, reference_id, invoice_number, customer_id, message, gateway_ref, original_tx_id, created_at`

func scanTransaction(row pgx.Row) (Transaction, error) {
	var tx Transaction
	err := row.Scan(&tx.ID, &tx.VendorID, &tx.ProcessorID, &tx.SessionID, &tx.OrderID, &tx.Kind, &tx.Status,
		&tx.Amount, &tx.TipAmount, &tx.TotalAmount, &tx.PaymentMethod, &tx.AuthCode, &tx.CardType, &tx.CardLast4,
		&tx.ReferenceID, &tx.InvoiceNumber, &tx.CustomerID, &tx.Message, &tx.GatewayRef, &tx.OriginalTxID, &tx.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Transaction{}, shared.ErrNotFound
		}
		return Transaction{}, err
	}
	return tx, nil
}

// Insert stores a new transaction row and returns it with generated fields.
func (r *PGTransactionRepository) Insert(ctx context.Context, tx Transaction) (Transaction, error) {
	return scanTransaction(r.pool.QueryRow(ctx, `INSERT INTO payment_transactions
		(vendor_id, processor_id, session_id, order_id, kind, status, amount, tip_amount, total_amount, payment_method,
		 auth_code, card_type, card_last4, reference_id, invoice_number, customer_id, message, gateway_ref, original_tx_id)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19)
		RETURNING `+txColumns,
		tx.VendorID, tx.ProcessorID, tx.SessionID, tx.OrderID, tx.Kind, tx.Status, tx.Amount, tx.TipAmount,
		tx.TotalAmount, tx.PaymentMethod, tx.AuthCode, tx.CardType, tx.CardLast4, tx.ReferenceID,
		tx.InvoiceNumber, tx.CustomerID, tx.Message, tx.GatewayRef, tx.OriginalTxID))
}

// Get returns one transaction scoped to the vendor.
func (r *PGTransactionRepository) Get(ctx context.Context, vendorID, txID string) (Transaction, error) {
	return scanTransaction(r.pool.QueryRow(ctx, `SELECT `+txColumns+` FROM payment_transactions WHERE id=$1 AND vendor_id=$2`, txID, vendorID))
}

// UpdateStatus transitions a transaction to a new status.
func (r *PGTransactionRepository) UpdateStatus(ctx context.Context, vendorID, txID, status string) error {
	tag, err := r.pool.Exec(ctx, `UPDATE payment_transactions SET status=$3 WHERE id=$1 AND vendor_id=$2`, txID, vendorID, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// ListForSession returns all transactions tied to one POS session.
func (r *PGTransactionRepository) ListForSession(ctx context.Context, vendorID, sessionID string) ([]Transaction, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+txColumns+` FROM payment_transactions WHERE vendor_id=$1 AND session_id=$2 ORDER BY created_at`, vendorID, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, tx)
	}
	return out, rows.Err()
}
