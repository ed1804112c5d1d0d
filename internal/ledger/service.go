package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/verdant-pos/verdant-pos/internal/shared"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetRecord(ctx context.Context, inventoryID string) (Record, error)
	GetRecordByPair(ctx context.Context, productID, locationID string) (Record, error)
	ListTransactions(ctx context.Context, inventoryID string, limit int) ([]Transaction, error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service coordinates ledger mutations. Every mutation updates the quantity
// row, appends the transaction log entry, and recomputes the product rollup
// inside one database transaction.
type Service struct {
	repo  RepositoryPort
	audit AuditPort
}

// NewService builds Service.
func NewService(repo RepositoryPort, audit AuditPort) *Service {
	return &Service{repo: repo, audit: audit}
}

// AdjustInput describes a signed quantity change against one record.
type AdjustInput struct {
	InventoryID   string
	VendorID      string
	Delta         decimal.Decimal
	Type          TransactionType
	Reason        string
	ReferenceType string
	PerformedBy   string
}

// AdjustResult reports the record state after an adjustment.
type AdjustResult struct {
	InventoryID string
	NewQuantity decimal.Decimal
	Rollup      Rollup
}

// Adjust applies a signed delta to an inventory record. The delta may be
// negative; the operation fails with shared.ErrInsufficientQuantity when the
// resulting quantity would go below zero.
func (s *Service) Adjust(ctx context.Context, input AdjustInput) (AdjustResult, error) {
	if input.InventoryID == "" || input.VendorID == "" {
		return AdjustResult{}, errors.New("ledger: inventory and vendor required")
	}
	if input.Type == "" {
		return AdjustResult{}, errors.New("ledger: transaction type required")
	}
	delta := Round(input.Delta)
	if delta.IsZero() {
		return AdjustResult{}, ErrInvalidQuantity
	}

	var result AdjustResult
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		rec, err := lockScoped(ctx, tx, input.InventoryID, input.VendorID)
		if err != nil {
			return err
		}
		applied, err := applyChange(ctx, tx, rec, delta, input.Type, input.Reason, input.ReferenceType, input.PerformedBy)
		if err != nil {
			return err
		}
		rollup, err := tx.RecomputeRollup(ctx, rec.ProductID)
		if err != nil {
			return err
		}
		result = AdjustResult{InventoryID: rec.ID, NewQuantity: applied, Rollup: rollup}
		return nil
	})
	if err != nil {
		return AdjustResult{}, err
	}
	s.recordAudit(ctx, input.VendorID, input.PerformedBy, input.Type, input.InventoryID, map[string]any{
		"delta":        delta.String(),
		"new_quantity": result.NewQuantity.String(),
		"reason":       input.Reason,
	})
	return result, nil
}

// SetInput describes an audit count that pins a record to a new quantity.
type SetInput struct {
	InventoryID string
	VendorID    string
	NewQuantity decimal.Decimal
	PerformedBy string
}

// SetResult reports the applied audit delta.
type SetResult struct {
	InventoryID string
	Delta       decimal.Decimal
	NewQuantity decimal.Decimal
	Rollup      Rollup
	NoOp        bool
}

// SetQuantity sets a record to a counted quantity. The delta is computed from
// the row-locked current value, so concurrent mutations cannot skew the count.
func (s *Service) SetQuantity(ctx context.Context, input SetInput) (SetResult, error) {
	if input.InventoryID == "" || input.VendorID == "" {
		return SetResult{}, errors.New("ledger: inventory and vendor required")
	}
	if input.NewQuantity.IsNegative() {
		return SetResult{}, ErrInvalidQuantity
	}

	var result SetResult
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		rec, err := lockScoped(ctx, tx, input.InventoryID, input.VendorID)
		if err != nil {
			return err
		}
		delta := Round(input.NewQuantity.Sub(rec.Quantity))
		if delta.IsZero() {
			result = SetResult{InventoryID: rec.ID, NewQuantity: rec.Quantity, NoOp: true}
			return nil
		}
		reason := fmt.Sprintf("Audit adjustment: %s", signed(delta))
		applied, err := applyChange(ctx, tx, rec, delta, TransactionTypeAudit, reason, "audit", input.PerformedBy)
		if err != nil {
			return err
		}
		rollup, err := tx.RecomputeRollup(ctx, rec.ProductID)
		if err != nil {
			return err
		}
		result = SetResult{InventoryID: rec.ID, Delta: delta, NewQuantity: applied, Rollup: rollup}
		return nil
	})
	if err != nil {
		return SetResult{}, err
	}
	if !result.NoOp {
		s.recordAudit(ctx, input.VendorID, input.PerformedBy, TransactionTypeAudit, input.InventoryID, map[string]any{
			"delta":        result.Delta.String(),
			"new_quantity": result.NewQuantity.String(),
		})
	}
	return result, nil
}

// ZeroOutInput clears one record.
type ZeroOutInput struct {
	InventoryID string
	VendorID    string
	PerformedBy string
}

// ZeroOutResult reports a cleared record. NoOp is true when the record was
// already at zero; no transaction row is written in that case.
type ZeroOutResult struct {
	InventoryID string
	Cleared     decimal.Decimal
	NoOp        bool
}

// ZeroOut clears a record to zero.
func (s *Service) ZeroOut(ctx context.Context, input ZeroOutInput) (ZeroOutResult, error) {
	if input.InventoryID == "" || input.VendorID == "" {
		return ZeroOutResult{}, errors.New("ledger: inventory and vendor required")
	}

	var result ZeroOutResult
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		rec, err := lockScoped(ctx, tx, input.InventoryID, input.VendorID)
		if err != nil {
			return err
		}
		if rec.Quantity.IsZero() {
			result = ZeroOutResult{InventoryID: rec.ID, NoOp: true}
			return nil
		}
		delta := rec.Quantity.Neg()
		reason := fmt.Sprintf("Zeroed out %s units", rec.Quantity.StringFixed(QuantityScale))
		if _, err := applyChange(ctx, tx, rec, delta, TransactionTypeZeroOut, reason, "zero_out", input.PerformedBy); err != nil {
			return err
		}
		if _, err := tx.RecomputeRollup(ctx, rec.ProductID); err != nil {
			return err
		}
		result = ZeroOutResult{InventoryID: rec.ID, Cleared: rec.Quantity}
		return nil
	})
	if err != nil {
		return ZeroOutResult{}, err
	}
	if !result.NoOp {
		s.recordAudit(ctx, input.VendorID, input.PerformedBy, TransactionTypeZeroOut, input.InventoryID, map[string]any{
			"cleared": result.Cleared.String(),
		})
	}
	return result, nil
}

// TransferInput moves stock between two locations of one product.
type TransferInput struct {
	VendorID       string
	ProductID      string
	FromLocationID string
	ToLocationID   string
	Quantity       decimal.Decimal
	PerformedBy    string
}

// TransferResult reports both sides of a completed transfer.
type TransferResult struct {
	SourceInventoryID      string
	DestinationInventoryID string
	SourceQuantity         decimal.Decimal
	DestinationQuantity    decimal.Decimal
}

// DefaultLowStockThreshold seeds destination records created by transfers.
var DefaultLowStockThreshold = decimal.NewFromInt(5)

// Transfer decrements the source record and upserts the destination record,
// writing the transfer_out/transfer_in pair in one batch insert and
// recomputing the product rollup once.
func (s *Service) Transfer(ctx context.Context, input TransferInput) (TransferResult, error) {
	if input.ProductID == "" || input.VendorID == "" {
		return TransferResult{}, errors.New("ledger: product and vendor required")
	}
	if input.FromLocationID == "" || input.ToLocationID == "" {
		return TransferResult{}, errors.New("ledger: source and destination location required")
	}
	if input.FromLocationID == input.ToLocationID {
		return TransferResult{}, errors.New("ledger: source and destination location must differ")
	}
	qty := Round(input.Quantity)
	if qty.Sign() <= 0 {
		return TransferResult{}, ErrInvalidQuantity
	}

	var result TransferResult
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		src, err := tx.GetRecordByPairForUpdate(ctx, input.ProductID, input.FromLocationID)
		if err != nil {
			return err
		}
		if src.VendorID != input.VendorID {
			return shared.ErrNotFound
		}
		if src.Quantity.LessThan(qty) {
			return shared.ErrInsufficientQuantity
		}

		dst, err := tx.GetRecordByPairForUpdate(ctx, input.ProductID, input.ToLocationID)
		if err == nil && dst.VendorID != input.VendorID {
			return shared.ErrNotFound
		}
		if errors.Is(err, ErrRecordNotFound) {
			dst, err = tx.CreateRecord(ctx, Record{
				VendorID:          input.VendorID,
				ProductID:         input.ProductID,
				LocationID:        input.ToLocationID,
				Quantity:          decimal.Zero,
				LowStockThreshold: DefaultLowStockThreshold,
			})
		}
		if err != nil {
			return err
		}

		newSrcQty := Round(src.Quantity.Sub(qty))
		newDstQty := Round(dst.Quantity.Add(qty))
		if err := tx.UpdateRecordQuantity(ctx, src.ID, newSrcQty); err != nil {
			return err
		}
		if err := tx.UpdateRecordQuantity(ctx, dst.ID, newDstQty); err != nil {
			return err
		}

		pair := []Transaction{
			{
				InventoryID:    src.ID,
				VendorID:       input.VendorID,
				ProductID:      input.ProductID,
				LocationID:     input.FromLocationID,
				Type:           TransactionTypeTransferOut,
				QuantityBefore: src.Quantity,
				QuantityChange: qty.Neg(),
				QuantityAfter:  newSrcQty,
				Reason:         fmt.Sprintf("Transfer of %s units to location %s", qty.StringFixed(QuantityScale), input.ToLocationID),
				ReferenceType:  "transfer",
				PerformedBy:    input.PerformedBy,
			},
			{
				InventoryID:    dst.ID,
				VendorID:       input.VendorID,
				ProductID:      input.ProductID,
				LocationID:     input.ToLocationID,
				Type:           TransactionTypeTransferIn,
				QuantityBefore: dst.Quantity,
				QuantityChange: qty,
				QuantityAfter:  newDstQty,
				Reason:         fmt.Sprintf("Transfer of %s units from location %s", qty.StringFixed(QuantityScale), input.FromLocationID),
				ReferenceType:  "transfer",
				PerformedBy:    input.PerformedBy,
			},
		}
		if err := tx.InsertTransactions(ctx, pair); err != nil {
			return err
		}
		if _, err := tx.RecomputeRollup(ctx, input.ProductID); err != nil {
			return err
		}
		result = TransferResult{
			SourceInventoryID:      src.ID,
			DestinationInventoryID: dst.ID,
			SourceQuantity:         newSrcQty,
			DestinationQuantity:    newDstQty,
		}
		return nil
	})
	if err != nil {
		return TransferResult{}, err
	}
	s.recordAudit(ctx, input.VendorID, input.PerformedBy, TransactionTypeTransferOut, input.ProductID, map[string]any{
		"from":     input.FromLocationID,
		"to":       input.ToLocationID,
		"quantity": qty.String(),
	})
	return result, nil
}

// GetRecord returns one inventory record.
func (s *Service) GetRecord(ctx context.Context, inventoryID string) (Record, error) {
	return s.repo.GetRecord(ctx, inventoryID)
}

// GetRecordByPair returns the record for a (product, location) pair.
func (s *Service) GetRecordByPair(ctx context.Context, productID, locationID string) (Record, error) {
	return s.repo.GetRecordByPair(ctx, productID, locationID)
}

// ListTransactions returns the audit trail for one record, oldest first.
func (s *Service) ListTransactions(ctx context.Context, inventoryID string, limit int) ([]Transaction, error) {
	return s.repo.ListTransactions(ctx, inventoryID, limit)
}

// lockScoped row-locks a record and hides rows owned by other vendors
// behind shared.ErrNotFound.
func lockScoped(ctx context.Context, tx TxRepository, inventoryID, vendorID string) (Record, error) {
	rec, err := tx.GetRecordForUpdate(ctx, inventoryID)
	if err != nil {
		return Record{}, err
	}
	if rec.VendorID != vendorID {
		return Record{}, shared.ErrNotFound
	}
	return rec, nil
}

// applyChange writes the quantity update plus its paired transaction row.
func applyChange(ctx context.Context, tx TxRepository, rec Record, delta decimal.Decimal, txType TransactionType, reason, refType, performedBy string) (decimal.Decimal, error) {
	newQty := Round(rec.Quantity.Add(delta))
	if newQty.IsNegative() {
		return decimal.Zero, shared.ErrInsufficientQuantity
	}
	if err := tx.UpdateRecordQuantity(ctx, rec.ID, newQty); err != nil {
		return decimal.Zero, err
	}
	entry := Transaction{
		InventoryID:    rec.ID,
		VendorID:       rec.VendorID,
		ProductID:      rec.ProductID,
		LocationID:     rec.LocationID,
		Type:           txType,
		QuantityBefore: rec.Quantity,
		QuantityChange: delta,
		QuantityAfter:  newQty,
		Reason:         reason,
		ReferenceType:  refType,
		PerformedBy:    performedBy,
	}
	if err := tx.InsertTransactions(ctx, []Transaction{entry}); err != nil {
		return decimal.Zero, err
	}
	return newQty, nil
}

func (s *Service) recordAudit(ctx context.Context, vendorID, actorID string, txType TransactionType, entityID string, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		VendorID: vendorID,
		ActorID:  actorID,
		Action:   fmt.Sprintf("ledger:%s", txType),
		Entity:   "inventory_record",
		EntityID: entityID,
		Meta:     meta,
	})
}

func signed(d decimal.Decimal) string {
	fixed := d.StringFixed(QuantityScale)
	if d.Sign() > 0 {
		return "+" + fixed
	}
	return fixed
}
