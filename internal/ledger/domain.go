package ledger

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// ErrInvalidQuantity indicates a zero or malformed quantity change.
var ErrInvalidQuantity = errors.New("ledger: quantity change must be non zero")

// QuantityScale is the rounding scale for gram quantities.
const QuantityScale = 2

// TransactionType enumerates supported inventory movements.
type TransactionType string

const (
	// TransactionTypeZeroOut clears a record to zero.
	TransactionTypeZeroOut TransactionType = "zero_out"
	// TransactionTypeAudit sets a record to a counted quantity.
	TransactionTypeAudit TransactionType = "audit"
	// TransactionTypeTransferOut decrements the source of a transfer.
	TransactionTypeTransferOut TransactionType = "transfer_out"
	// TransactionTypeTransferIn increments the destination of a transfer.
	TransactionTypeTransferIn TransactionType = "transfer_in"
	// TransactionTypeSale decrements stock for a completed sale.
	TransactionTypeSale TransactionType = "sale"
	// TransactionTypeRestock increments stock on intake.
	TransactionTypeRestock TransactionType = "restock"
)

// StockStatus is the derived availability flag on a product.
type StockStatus string

const (
	// StockStatusIn indicates the product has stock somewhere.
	StockStatusIn StockStatus = "instock"
	// StockStatusOut indicates the aggregate across locations is zero.
	StockStatusOut StockStatus = "outofstock"
)

// StatusFor derives the stock status from an aggregate quantity.
func StatusFor(total decimal.Decimal) StockStatus {
	if total.Sign() <= 0 {
		return StockStatusOut
	}
	return StockStatusIn
}

// Round normalises a quantity to gram precision.
func Round(q decimal.Decimal) decimal.Decimal {
	return q.Round(QuantityScale)
}

// Record is the mutable per-(product, location) quantity row. At most one
// active record exists per pair; it is only ever mutated through the ledger.
type Record struct {
	ID                string
	VendorID          string
	ProductID         string
	LocationID        string
	Quantity          decimal.Decimal
	LowStockThreshold decimal.Decimal
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Transaction is an append-only log entry. quantity_after must always equal
// quantity_before + quantity_change; replaying a record's transactions in
// created_at order reconstructs its current quantity.
type Transaction struct {
	ID             string
	InventoryID    string
	VendorID       string
	ProductID      string
	LocationID     string
	Type           TransactionType
	QuantityBefore decimal.Decimal
	QuantityChange decimal.Decimal
	QuantityAfter  decimal.Decimal
	Reason         string
	ReferenceType  string
	PerformedBy    string
	CreatedAt      time.Time
}

// Rollup is the recomputed product-level aggregate.
type Rollup struct {
	ProductID     string
	StockQuantity decimal.Decimal
	StockStatus   StockStatus
}

// Replay folds transactions over an opening quantity of zero. It is the
// verification counterpart of the append-only invariant.
func Replay(txs []Transaction) decimal.Decimal {
	total := decimal.Zero
	for _, tx := range txs {
		total = total.Add(tx.QuantityChange)
	}
	return Round(total)
}
