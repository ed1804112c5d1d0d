package ledger

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/verdant-pos/verdant-pos/internal/platform/db"
)

// Repository persists ledger data in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes transactional operations used by service.
type TxRepository interface {
	GetRecordForUpdate(ctx context.Context, inventoryID string) (Record, error)
	GetRecordByPairForUpdate(ctx context.Context, productID, locationID string) (Record, error)
	CreateRecord(ctx context.Context, rec Record) (Record, error)
	UpdateRecordQuantity(ctx context.Context, inventoryID string, quantity decimal.Decimal) error
	InsertTransactions(ctx context.Context, txs []Transaction) error
	RecomputeRollup(ctx context.Context, productID string) (Rollup, error)
}

type txRepository struct {
	tx pgx.Tx
}

// ErrRecordNotFound indicates a missing inventory record.
var ErrRecordNotFound = errors.New("ledger: inventory record not found")

// WithTx executes the callback inside a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("ledger repository not initialised")
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

const recordColumns = `id, vendor_id, product_id, location_id, quantity, low_stock_threshold, created_at, updated_at`

func scanRecord(row pgx.Row) (Record, error) {
	var rec Record
	err := row.Scan(&rec.ID, &rec.VendorID, &rec.ProductID, &rec.LocationID, &rec.Quantity, &rec.LowStockThreshold, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Record{}, ErrRecordNotFound
		}
		return Record{}, err
	}
	return rec, nil
}

// GetRecord returns one inventory record.
func (r *Repository) GetRecord(ctx context.Context, inventoryID string) (Record, error) {
	return scanRecord(r.pool.QueryRow(ctx, `SELECT `+recordColumns+` FROM inventory_records WHERE id=$1`, inventoryID))
}

// GetRecordByPair returns the record for a (product, location) pair.
func (r *Repository) GetRecordByPair(ctx context.Context, productID, locationID string) (Record, error) {
	return scanRecord(r.pool.QueryRow(ctx, `SELECT `+recordColumns+` FROM inventory_records WHERE product_id=$1 AND location_id=$2`, productID, locationID))
}

// ListTransactions returns the audit trail for one record, oldest first.
func (r *Repository) ListTransactions(ctx context.Context, inventoryID string, limit int) ([]Transaction, error) {
	if limit <= 0 {
		limit = 200
	}
	rows, err := r.pool.Query(ctx, `SELECT id, inventory_id, vendor_id, product_id, location_id, tx_type, quantity_before, quantity_change, quantity_after, reason, reference_type, performed_by, created_at
FROM inventory_transactions
WHERE inventory_id=$1
ORDER BY created_at ASC, id ASC
LIMIT $2`, inventoryID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	txs := []Transaction{}
	for rows.Next() {
		var tx Transaction
		if err := rows.Scan(&tx.ID, &tx.InventoryID, &tx.VendorID, &tx.ProductID, &tx.LocationID, &tx.Type, &tx.QuantityBefore, &tx.QuantityChange, &tx.QuantityAfter, &tx.Reason, &tx.ReferenceType, &tx.PerformedBy, &tx.CreatedAt); err != nil {
			return nil, err
		}
		txs = append(txs, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return txs, nil
}

// RepairRollups rewrites any product rollup that drifted from the sum of
// its inventory records. Drift should not happen in normal operation, so
// the affected count is worth alerting on.
func (r *Repository) RepairRollups(ctx context.Context) (int64, error) {
	tag, err := r.pool.Exec(ctx, `UPDATE products p SET
	stock_quantity = agg.total,
	stock_status = CASE WHEN agg.total <= 0 THEN 'outofstock' ELSE 'instock' END,
	updated_at = NOW()
FROM (SELECT product_id, COALESCE(SUM(quantity), 0) AS total FROM inventory_records GROUP BY product_id) agg
WHERE p.id = agg.product_id AND p.stock_quantity IS DISTINCT FROM agg.total`)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *txRepository) GetRecordForUpdate(ctx context.Context, inventoryID string) (Record, error) {
	return scanRecord(r.tx.QueryRow(ctx, `SELECT `+recordColumns+` FROM inventory_records WHERE id=$1 FOR UPDATE`, inventoryID))
}

func (r *txRepository) GetRecordByPairForUpdate(ctx context.Context, productID, locationID string) (Record, error) {
	return scanRecord(r.tx.QueryRow(ctx, `SELECT `+recordColumns+` FROM inventory_records WHERE product_id=$1 AND location_id=$2 FOR UPDATE`, productID, locationID))
}

func (r *txRepository) CreateRecord(ctx context.Context, rec Record) (Record, error) {
	return scanRecord(r.tx.QueryRow(ctx, `INSERT INTO inventory_records (id, vendor_id, product_id, location_id, quantity, low_stock_threshold, created_at, updated_at)
VALUES (gen_random_uuid(), $1, $2, $3, $4, $5, NOW(), NOW())
RETURNING `+recordColumns, rec.VendorID, rec.ProductID, rec.LocationID, rec.Quantity, rec.LowStockThreshold))
}

func (r *txRepository) UpdateRecordQuantity(ctx context.Context, inventoryID string, quantity decimal.Decimal) error {
	tag, err := r.tx.Exec(ctx, `UPDATE inventory_records SET quantity=$2, updated_at=NOW() WHERE id=$1`, inventoryID, quantity)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrRecordNotFound
	}
	return nil
}

func (r *txRepository) InsertTransactions(ctx context.Context, txs []Transaction) error {
	for _, entry := range txs {
		if _, err := r.tx.Exec(ctx, `INSERT INTO inventory_transactions (id, inventory_id, vendor_id, product_id, location_id, tx_type, quantity_before, quantity_change, quantity_after, reason, reference_type, performed_by, created_at)
VALUES (gen_random_uuid(), $1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NOW())`,
			entry.InventoryID, entry.VendorID, entry.ProductID, entry.LocationID, string(entry.Type),
			entry.QuantityBefore, entry.QuantityChange, entry.QuantityAfter, entry.Reason, entry.ReferenceType, entry.PerformedBy); err != nil {
			return err
		}
	}
	return nil
}

func (r *txRepository) RecomputeRollup(ctx context.Context, productID string) (Rollup, error) {
	var rollup Rollup
	rollup.ProductID = productID
	err := r.tx.QueryRow(ctx, `UPDATE products SET
	stock_quantity = agg.total,
	stock_status = CASE WHEN agg.total <= 0 THEN 'outofstock' ELSE 'instock' END,
	updated_at = NOW()
FROM (SELECT COALESCE(SUM(quantity), 0) AS total FROM inventory_records WHERE product_id=$1) agg
WHERE id=$1
RETURNING stock_quantity, stock_status`, productID).Scan(&rollup.StockQuantity, &rollup.StockStatus)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Rollup{}, ErrRecordNotFound
		}
		return Rollup{}, err
	}
	return rollup, nil
}
