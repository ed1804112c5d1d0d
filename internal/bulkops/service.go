package bulkops

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/verdant-pos/verdant-pos/internal/ledger"
	"github.com/verdant-pos/verdant-pos/internal/observability"
	"github.com/verdant-pos/verdant-pos/internal/shared"
)

// Operation enumerates supported bulk inventory operations.
type Operation string

const (
	// OperationZeroOut clears each item's record to zero.
	OperationZeroOut Operation = "zero_out"
	// OperationAudit sets each item's record to a counted quantity.
	OperationAudit Operation = "audit"
	// OperationTransfer moves each item's quantity to one destination.
	OperationTransfer Operation = "transfer"
)

// Item is one (product, location) entry in a bulk request.
type Item struct {
	InventoryID      string
	ProductID        string
	ProductName      string
	LocationID       string
	NewQuantity      *decimal.Decimal
	TransferQuantity *decimal.Decimal
}

// Request is a full bulk operation.
type Request struct {
	Operation    Operation
	Items        []Item
	ToLocationID string
}

// Results summarises per-item outcomes. Items fail independently; one
// failure never rolls back the others. OperationID identifies the batch so
// partial failures can be referenced later.
type Results struct {
	OperationID string   `json:"operationId"`
	Success     int      `json:"success"`
	Failed      int      `json:"failed"`
	Errors      []string `json:"errors"`
}

// LedgerPort is the slice of the ledger service the operator uses.
type LedgerPort interface {
	ZeroOut(ctx context.Context, input ledger.ZeroOutInput) (ledger.ZeroOutResult, error)
	SetQuantity(ctx context.Context, input ledger.SetInput) (ledger.SetResult, error)
	Transfer(ctx context.Context, input ledger.TransferInput) (ledger.TransferResult, error)
}

// ProductNamer resolves display names for error reporting.
type ProductNamer interface {
	ProductName(ctx context.Context, productID string) (string, error)
}

// ErrMalformedRequest indicates a request shape problem, as opposed to a
// per-item business failure.
var ErrMalformedRequest = errors.New("bulkops: malformed request")

// Service executes bulk operations item by item.
type Service struct {
	ledger  LedgerPort
	namer   ProductNamer
	metrics *observability.Metrics
}

// NewService builds Service.
func NewService(ledgerSvc LedgerPort, namer ProductNamer, metrics *observability.Metrics) *Service {
	return &Service{ledger: ledgerSvc, namer: namer, metrics: metrics}
}

// Execute runs the operation over all items sequentially, in input order.
// It returns an error only for malformed request shape; business failures
// are collected into Results.
func (s *Service) Execute(ctx context.Context, vc shared.VendorContext, req Request) (Results, error) {
	if len(req.Items) == 0 {
		return Results{}, fmt.Errorf("%w: at least one item required", ErrMalformedRequest)
	}
	if req.Operation == OperationTransfer && req.ToLocationID == "" {
		return Results{}, fmt.Errorf("%w: toLocationId required for transfer", ErrMalformedRequest)
	}

	results := Results{OperationID: uuid.NewString(), Errors: []string{}}
	for _, item := range req.Items {
		var err error
		switch req.Operation {
		case OperationZeroOut:
			err = s.zeroOut(ctx, vc, item)
		case OperationAudit:
			err = s.auditCount(ctx, vc, item)
		case OperationTransfer:
			err = s.transfer(ctx, vc, item, req.ToLocationID)
		default:
			return Results{}, fmt.Errorf("%w: unknown operation %q", ErrMalformedRequest, req.Operation)
		}
		if err != nil {
			results.Failed++
			results.Errors = append(results.Errors, fmt.Sprintf("%s: %s", s.displayName(ctx, item), itemMessage(err)))
			s.metrics.ObserveBulkItem(string(req.Operation), "failed")
			continue
		}
		results.Success++
		s.metrics.ObserveBulkItem(string(req.Operation), "success")
	}
	return results, nil
}

func (s *Service) zeroOut(ctx context.Context, vc shared.VendorContext, item Item) error {
	if item.InventoryID == "" {
		return shared.ErrNotFound
	}
	_, err := s.ledger.ZeroOut(ctx, ledger.ZeroOutInput{
		InventoryID: item.InventoryID,
		VendorID:    vc.VendorID,
		PerformedBy: vc.UserID,
	})
	return err
}

func (s *Service) auditCount(ctx context.Context, vc shared.VendorContext, item Item) error {
	if item.InventoryID == "" {
		return shared.ErrNotFound
	}
	if item.NewQuantity == nil {
		return errMissingNewQuantity
	}
	_, err := s.ledger.SetQuantity(ctx, ledger.SetInput{
		InventoryID: item.InventoryID,
		VendorID:    vc.VendorID,
		NewQuantity: *item.NewQuantity,
		PerformedBy: vc.UserID,
	})
	return err
}

func (s *Service) transfer(ctx context.Context, vc shared.VendorContext, item Item, toLocationID string) error {
	if item.ProductID == "" || item.LocationID == "" {
		return shared.ErrNotFound
	}
	if item.TransferQuantity == nil || item.TransferQuantity.Sign() <= 0 {
		return errInvalidTransferQuantity
	}
	_, err := s.ledger.Transfer(ctx, ledger.TransferInput{
		VendorID:       vc.VendorID,
		ProductID:      item.ProductID,
		FromLocationID: item.LocationID,
		ToLocationID:   toLocationID,
		Quantity:       *item.TransferQuantity,
		PerformedBy:    vc.UserID,
	})
	return err
}

var (
	errMissingNewQuantity      = errors.New("newQuantity is required")
	errInvalidTransferQuantity = errors.New("transferQuantity must be greater than zero")
)

func itemMessage(err error) string {
	if errors.Is(err, errMissingNewQuantity) || errors.Is(err, errInvalidTransferQuantity) {
		return err.Error()
	}
	return shared.UserSafeMessage(err)
}

func (s *Service) displayName(ctx context.Context, item Item) string {
	if item.ProductName != "" {
		return item.ProductName
	}
	if s.namer != nil && item.ProductID != "" {
		if name, err := s.namer.ProductName(ctx, item.ProductID); err == nil && name != "" {
			return name
		}
	}
	if item.ProductID != "" {
		return item.ProductID
	}
	return item.InventoryID
}
