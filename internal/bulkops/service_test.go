package bulkops

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/verdant-pos/verdant-pos/internal/ledger"
	"github.com/verdant-pos/verdant-pos/internal/shared"
)

type fakeLedger struct {
	byID   map[string]decimal.Decimal
	byPair map[string]decimal.Decimal
	calls  []string
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{byID: map[string]decimal.Decimal{}, byPair: map[string]decimal.Decimal{}}
}

func pairKey(productID, locationID string) string {
	return productID + "/" + locationID
}

func (f *fakeLedger) ZeroOut(ctx context.Context, input ledger.ZeroOutInput) (ledger.ZeroOutResult, error) {
	f.calls = append(f.calls, "zero_out:"+input.InventoryID)
	qty, ok := f.byID[input.InventoryID]
	if !ok {
		return ledger.ZeroOutResult{}, shared.ErrNotFound
	}
	f.byID[input.InventoryID] = decimal.Zero
	return ledger.ZeroOutResult{InventoryID: input.InventoryID, Cleared: qty, NoOp: qty.IsZero()}, nil
}

func (f *fakeLedger) SetQuantity(ctx context.Context, input ledger.SetInput) (ledger.SetResult, error) {
	f.calls = append(f.calls, "audit:"+input.InventoryID)
	if _, ok := f.byID[input.InventoryID]; !ok {
		return ledger.SetResult{}, shared.ErrNotFound
	}
	f.byID[input.InventoryID] = input.NewQuantity
	return ledger.SetResult{InventoryID: input.InventoryID, NewQuantity: input.NewQuantity}, nil
}

func (f *fakeLedger) Transfer(ctx context.Context, input ledger.TransferInput) (ledger.TransferResult, error) {
	f.calls = append(f.calls, "transfer:"+input.ProductID)
	src := f.byPair[pairKey(input.ProductID, input.FromLocationID)]
	if src.LessThan(input.Quantity) {
		return ledger.TransferResult{}, shared.ErrInsufficientQuantity
	}
	f.byPair[pairKey(input.ProductID, input.FromLocationID)] = src.Sub(input.Quantity)
	dstKey := pairKey(input.ProductID, input.ToLocationID)
	f.byPair[dstKey] = f.byPair[dstKey].Add(input.Quantity)
	return ledger.TransferResult{
		SourceQuantity:      f.byPair[pairKey(input.ProductID, input.FromLocationID)],
		DestinationQuantity: f.byPair[dstKey],
	}, nil
}

func qty(s string) *decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return &d
}

var testVendor = shared.VendorContext{VendorID: "vendor-1", UserID: "user-1"}

func TestExecuteZeroOut(t *testing.T) {
	fl := newFakeLedger()
	fl.byID["inv-1"] = *qty("10.00")
	fl.byID["inv-2"] = decimal.Zero
	svc := NewService(fl, nil, nil)

	results, err := svc.Execute(context.Background(), testVendor, Request{
		Operation: OperationZeroOut,
		Items:     []Item{{InventoryID: "inv-1"}, {InventoryID: "inv-2"}},
	})
	require.NoError(t, err)
	require.NotEmpty(t, results.OperationID)
	require.Equal(t, 2, results.Success)
	require.Equal(t, 0, results.Failed)
	require.Empty(t, results.Errors)
}

func TestExecuteAuditMissingNewQuantityFailsItemOnly(t *testing.T) {
	fl := newFakeLedger()
	fl.byID["inv-1"] = *qty("10.00")
	fl.byID["inv-2"] = *qty("4.00")
	svc := NewService(fl, nil, nil)

	results, err := svc.Execute(context.Background(), testVendor, Request{
		Operation: OperationAudit,
		Items: []Item{
			{InventoryID: "inv-1", ProductName: "Blue Dream", NewQuantity: qty("12.00")},
			{InventoryID: "inv-2", ProductName: "OG Kush"},
		},
	})
	require.NoError(t, err)
	require.Equal(t, 1, results.Success)
	require.Equal(t, 1, results.Failed)
	require.Equal(t, []string{"OG Kush: newQuantity is required"}, results.Errors)
	require.True(t, fl.byID["inv-1"].Equal(*qty("12.00")))
}

func TestExecuteTransferPartialFailure(t *testing.T) {
	fl := newFakeLedger()
	fl.byPair[pairKey("prod-a", "loc-1")] = *qty("100.00")
	fl.byPair[pairKey("prod-b", "loc-1")] = *qty("10.00")
	fl.byPair[pairKey("prod-c", "loc-1")] = *qty("30.00")
	svc := NewService(fl, nil, nil)

	results, err := svc.Execute(context.Background(), testVendor, Request{
		Operation:    OperationTransfer,
		ToLocationID: "loc-2",
		Items: []Item{
			{ProductID: "prod-a", ProductName: "ProductA", LocationID: "loc-1", TransferQuantity: qty("20.00")},
			{ProductID: "prod-b", ProductName: "ProductB", LocationID: "loc-1", TransferQuantity: qty("50.00")},
			{ProductID: "prod-c", ProductName: "ProductC", LocationID: "loc-1", TransferQuantity: qty("5.00")},
		},
	})
	require.NoError(t, err)
	require.Equal(t, 2, results.Success)
	require.Equal(t, 1, results.Failed)
	require.Equal(t, []string{"ProductB: Insufficient quantity"}, results.Errors)

	// Other items applied despite the failure in the middle.
	require.True(t, fl.byPair[pairKey("prod-a", "loc-2")].Equal(*qty("20.00")))
	require.True(t, fl.byPair[pairKey("prod-c", "loc-2")].Equal(*qty("5.00")))
	require.True(t, fl.byPair[pairKey("prod-b", "loc-1")].Equal(*qty("10.00")))
}

func TestExecuteTransferRejectsNonPositiveQuantity(t *testing.T) {
	fl := newFakeLedger()
	svc := NewService(fl, nil, nil)

	results, err := svc.Execute(context.Background(), testVendor, Request{
		Operation:    OperationTransfer,
		ToLocationID: "loc-2",
		Items: []Item{
			{ProductID: "prod-a", ProductName: "ProductA", LocationID: "loc-1", TransferQuantity: qty("0")},
			{ProductID: "prod-b", ProductName: "ProductB", LocationID: "loc-1"},
		},
	})
	require.NoError(t, err)
	require.Equal(t, 0, results.Success)
	require.Equal(t, 2, results.Failed)
	require.Equal(t, []string{
		"ProductA: transferQuantity must be greater than zero",
		"ProductB: transferQuantity must be greater than zero",
	}, results.Errors)
	require.Empty(t, fl.calls, "invalid items never reach the ledger")
}

func TestExecuteTransferWithoutDestinationIsMalformed(t *testing.T) {
	svc := NewService(newFakeLedger(), nil, nil)

	_, err := svc.Execute(context.Background(), testVendor, Request{
		Operation: OperationTransfer,
		Items:     []Item{{ProductID: "prod-a", LocationID: "loc-1", TransferQuantity: qty("1.00")}},
	})
	require.ErrorIs(t, err, ErrMalformedRequest)
}

type stubNamer struct{ names map[string]string }

func (s *stubNamer) ProductName(ctx context.Context, productID string) (string, error) {
	return s.names[productID], nil
}

func TestErrorNameFallsBackToLookupThenID(t *testing.T) {
	fl := newFakeLedger()
	namer := &stubNamer{names: map[string]string{"prod-known": "Sour Diesel"}}
	svc := NewService(fl, namer, nil)

	results, err := svc.Execute(context.Background(), testVendor, Request{
		Operation:    OperationTransfer,
		ToLocationID: "loc-2",
		Items: []Item{
			{ProductID: "prod-known", LocationID: "loc-1", TransferQuantity: qty("1.00")},
			{ProductID: "prod-unknown", LocationID: "loc-1", TransferQuantity: qty("1.00")},
		},
	})
	require.NoError(t, err)
	require.Equal(t, []string{
		"Sour Diesel: Insufficient quantity",
		"prod-unknown: Insufficient quantity",
	}, results.Errors)
}
