package payments

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/verdant-pos/verdant-pos/internal/masterdata"
	"github.com/verdant-pos/verdant-pos/internal/shared"
)

type stubProcessor struct {
	kind      string
	saleRes   SaleResult
	saleErr   error
	refundRes RefundResult
	refundErr error
	voidRes   VoidResult
	voidErr   error

	gotSale   *SaleRequest
	gotRefund *RefundRequest
	gotVoid   *VoidRequest
}

func (p *stubProcessor) Kind() string { return p.kind }

func (p *stubProcessor) ProcessSale(_ context.Context, req SaleRequest) (SaleResult, error) {
	p.gotSale = &req
	return p.saleRes, p.saleErr
}

func (p *stubProcessor) ProcessRefund(_ context.Context, req RefundRequest) (RefundResult, error) {
	p.gotRefund = &req
	return p.refundRes, p.refundErr
}

func (p *stubProcessor) VoidTransaction(_ context.Context, req VoidRequest) (VoidResult, error) {
	p.gotVoid = &req
	return p.voidRes, p.voidErr
}

type stubResolver struct {
	proc      *stubProcessor
	cfg       masterdata.ProcessorConfig
	err       error
	saleCalls int
	byIDCalls []string
}

func (r *stubResolver) ForSale(_ context.Context, vendorID, registerID, locationID string) (Processor, masterdata.ProcessorConfig, error) {
	r.saleCalls++
	if r.err != nil {
		return nil, masterdata.ProcessorConfig{}, r.err
	}
	return r.proc, r.cfg, nil
}

func (r *stubResolver) ByID(_ context.Context, vendorID, processorID string) (Processor, masterdata.ProcessorConfig, error) {
	r.byIDCalls = append(r.byIDCalls, processorID)
	if r.err != nil {
		return nil, masterdata.ProcessorConfig{}, r.err
	}
	return r.proc, r.cfg, nil
}

type memTxRepo struct {
	rows   map[string]Transaction
	nextID int
}

func newMemTxRepo() *memTxRepo {
	return &memTxRepo{rows: make(map[string]Transaction)}
}

func (m *memTxRepo) Insert(_ context.Context, tx Transaction) (Transaction, error) {
	m.nextID++
	tx.ID = fmt.Sprintf("tx-%d", m.nextID)
	m.rows[tx.ID] = tx
	return tx, nil
}

func (m *memTxRepo) Get(_ context.Context, vendorID, txID string) (Transaction, error) {
	tx, ok := m.rows[txID]
	if !ok || tx.VendorID != vendorID {
		return Transaction{}, shared.ErrNotFound
	}
	return tx, nil
}

func (m *memTxRepo) UpdateStatus(_ context.Context, vendorID, txID, status string) error {
	tx, ok := m.rows[txID]
	if !ok || tx.VendorID != vendorID {
		return shared.ErrNotFound
	}
	tx.Status = status
	m.rows[txID] = tx
	return nil
}

func (m *memTxRepo) byStatus(status string) []Transaction {
	var out []Transaction
	for _, tx := range m.rows {
		if tx.Status == status {
			out = append(out, tx)
		}
	}
	return out
}

type memIdem struct {
	keys map[string]bool
}

func newMemIdem() *memIdem { return &memIdem{keys: make(map[string]bool)} }

func (m *memIdem) CheckAndInsert(_ context.Context, key, module string) error {
	if m.keys[key] {
		return shared.ErrIdempotencyConflict
	}
	m.keys[key] = true
	return nil
}

func (m *memIdem) Delete(_ context.Context, key string) error {
	delete(m.keys, key)
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testVendor() shared.VendorContext {
	return shared.VendorContext{VendorID: "vendor-1", UserID: "user-1"}
}

func newTestService(resolver *stubResolver, repo *memTxRepo, idem *memIdem) *Service {
	return NewService(resolver, repo, idem, nil, nil, testLogger())
}

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestProcessSaleCashSkipsProcessor(t *testing.T) {
	resolver := &stubResolver{err: errors.New("resolver must not be called")}
	repo := newMemTxRepo()
	svc := newTestService(resolver, repo, newMemIdem())

	res, err := svc.ProcessSale(context.Background(), testVendor(), SaleRequest{
		Amount:        dec("42.00"),
		TipAmount:     dec("5.00"),
		PaymentMethod: PaymentMethodCash,
		LocationID:    "loc-1",
	})
	require.NoError(t, err)
	require.True(t, res.Success)
	require.Equal(t, "47", res.TotalAmount.String())
	require.Equal(t, 0, resolver.saleCalls)

	row := repo.rows[res.TransactionID]
	require.Equal(t, StatusApproved, row.Status)
	require.Equal(t, PaymentMethodCash, row.PaymentMethod)
	require.Nil(t, row.ProcessorID)
}

func TestProcessSaleApproved(t *testing.T) {
	proc := &stubProcessor{kind: GatewayDejavoo, saleRes: SaleResult{
		Success:           true,
		AuthorizationCode: "AUTH42",
		Message:           "Approved",
		CardType:          "VISA",
		CardLast4:         "4242",
		ReceiptData:       map[string]string{"gatewayTransactionId": "gw-99"},
	}}
	resolver := &stubResolver{proc: proc, cfg: masterdata.ProcessorConfig{ID: "proc-1", Kind: GatewayDejavoo, Active: true}}
	repo := newMemTxRepo()
	svc := newTestService(resolver, repo, newMemIdem())

	res, err := svc.ProcessSale(context.Background(), testVendor(), SaleRequest{
		Amount:        dec("19.99"),
		PaymentMethod: "credit",
		LocationID:    "loc-1",
		RegisterID:    "reg-1",
	})
	require.NoError(t, err)
	require.True(t, res.Success)
	require.Equal(t, "AUTH42", res.AuthorizationCode)
	require.NotEmpty(t, res.TransactionID)

	row := repo.rows[res.TransactionID]
	require.Equal(t, StatusApproved, row.Status)
	require.Equal(t, "proc-1", *row.ProcessorID)
	require.Equal(t, "gw-99", row.GatewayRef)
}

func TestProcessSaleDecline(t *testing.T) {
	proc := &stubProcessor{saleErr: DeclinedError("51", "Insufficient funds")}
	resolver := &stubResolver{proc: proc, cfg: masterdata.ProcessorConfig{ID: "proc-1", Active: true}}
	repo := newMemTxRepo()
	idem := newMemIdem()
	svc := newTestService(resolver, repo, idem)

	res, err := svc.ProcessSale(context.Background(), testVendor(), SaleRequest{
		Amount:        dec("10.00"),
		PaymentMethod: "credit",
		LocationID:    "loc-1",
		ReferenceID:   "order-7",
	})
	require.NoError(t, err)
	require.False(t, res.Success)
	require.True(t, res.Declined)
	require.False(t, res.TerminalError)
	require.False(t, res.Timeout)
	require.Equal(t, "Insufficient funds", res.Message)
	require.Len(t, repo.byStatus(StatusDeclined), 1)
	// a retry with another card must be allowed
	require.Empty(t, idem.keys)
}

func TestProcessSaleTimeoutIsNotTerminal(t *testing.T) {
	proc := &stubProcessor{saleErr: TimeoutError(context.DeadlineExceeded)}
	resolver := &stubResolver{proc: proc, cfg: masterdata.ProcessorConfig{ID: "proc-1", Active: true}}
	repo := newMemTxRepo()
	idem := newMemIdem()
	svc := newTestService(resolver, repo, idem)

	res, err := svc.ProcessSale(context.Background(), testVendor(), SaleRequest{
		Amount:        dec("10.00"),
		PaymentMethod: "credit",
		LocationID:    "loc-1",
		ReferenceID:   "order-8",
	})
	require.NoError(t, err)
	require.False(t, res.Success)
	require.True(t, res.Timeout)
	require.False(t, res.Declined)
	require.False(t, res.TerminalError)
	require.Len(t, repo.byStatus(StatusTimeout), 1)
	// outcome unknown: the reference stays burned until reconciled
	require.True(t, idem.keys["sale:order-8"])
}

func TestProcessSaleTerminalFault(t *testing.T) {
	proc := &stubProcessor{saleErr: TerminalError(errors.New("connection refused"))}
	resolver := &stubResolver{proc: proc, cfg: masterdata.ProcessorConfig{ID: "proc-1", Active: true}}
	repo := newMemTxRepo()
	idem := newMemIdem()
	svc := newTestService(resolver, repo, idem)

	_, err := svc.ProcessSale(context.Background(), testVendor(), SaleRequest{
		Amount:        dec("10.00"),
		PaymentMethod: "credit",
		LocationID:    "loc-1",
		ReferenceID:   "order-9",
	})
	require.Error(t, err)
	pe, ok := AsError(err)
	require.True(t, ok)
	require.True(t, pe.Terminal)
	require.False(t, pe.Declined)
	require.Len(t, repo.byStatus(StatusFailed), 1)
	require.Empty(t, idem.keys)
}

func TestProcessSaleDuplicateReference(t *testing.T) {
	proc := &stubProcessor{saleRes: SaleResult{Success: true}}
	resolver := &stubResolver{proc: proc, cfg: masterdata.ProcessorConfig{ID: "proc-1", Active: true}}
	svc := newTestService(resolver, newMemTxRepo(), newMemIdem())

	req := SaleRequest{Amount: dec("10.00"), PaymentMethod: "credit", LocationID: "loc-1", ReferenceID: "order-1"}
	_, err := svc.ProcessSale(context.Background(), testVendor(), req)
	require.NoError(t, err)

	_, err = svc.ProcessSale(context.Background(), testVendor(), req)
	require.ErrorIs(t, err, shared.ErrIdempotencyConflict)
}

func TestProcessSaleRejectsNonPositiveAmount(t *testing.T) {
	svc := newTestService(&stubResolver{}, newMemTxRepo(), newMemIdem())
	_, err := svc.ProcessSale(context.Background(), testVendor(), SaleRequest{
		Amount:        dec("0"),
		PaymentMethod: "credit",
		LocationID:    "loc-1",
	})
	require.ErrorIs(t, err, ErrInvalidAmount)
}

func seedSale(repo *memTxRepo, processorID, gatewayRef string) Transaction {
	var pid *string
	method := PaymentMethodCash
	if processorID != "" {
		pid = &processorID
		method = "credit"
	}
	tx, _ := repo.Insert(context.Background(), Transaction{
		VendorID:      "vendor-1",
		ProcessorID:   pid,
		Kind:          KindSale,
		Status:        StatusApproved,
		Amount:        dec("50.00"),
		TotalAmount:   dec("50.00"),
		PaymentMethod: method,
		GatewayRef:    gatewayRef,
	})
	return tx
}

func TestProcessRefundUsesOriginalProcessor(t *testing.T) {
	proc := &stubProcessor{refundRes: RefundResult{Success: true, Message: "Refunded"}}
	resolver := &stubResolver{proc: proc, cfg: masterdata.ProcessorConfig{ID: "proc-7"}}
	repo := newMemTxRepo()
	svc := newTestService(resolver, repo, newMemIdem())
	orig := seedSale(repo, "proc-7", "gw-55")

	res, err := svc.ProcessRefund(context.Background(), testVendor(), RefundRequest{
		OriginalTransactionID: orig.ID,
	})
	require.NoError(t, err)
	require.True(t, res.Success)
	require.Equal(t, []string{"proc-7"}, resolver.byIDCalls)
	require.Equal(t, "gw-55", proc.gotRefund.OriginalTransactionID)
	require.Equal(t, "50", res.Amount.String())

	refunds := repo.byStatus(StatusApproved)
	var found bool
	for _, tx := range refunds {
		if tx.Kind == KindRefund {
			found = true
			require.Equal(t, orig.ID, *tx.OriginalTxID)
		}
	}
	require.True(t, found)
}

func TestProcessRefundCashNeedsNoProcessor(t *testing.T) {
	resolver := &stubResolver{err: errors.New("resolver must not be called")}
	repo := newMemTxRepo()
	svc := newTestService(resolver, repo, newMemIdem())
	orig := seedSale(repo, "", "")

	res, err := svc.ProcessRefund(context.Background(), testVendor(), RefundRequest{
		OriginalTransactionID: orig.ID,
	})
	require.NoError(t, err)
	require.True(t, res.Success)
	require.Empty(t, resolver.byIDCalls)
}

func TestProcessRefundRejectsOverRefund(t *testing.T) {
	repo := newMemTxRepo()
	svc := newTestService(&stubResolver{}, repo, newMemIdem())
	orig := seedSale(repo, "", "")

	over := dec("50.01")
	_, err := svc.ProcessRefund(context.Background(), testVendor(), RefundRequest{
		OriginalTransactionID: orig.ID,
		Amount:                &over,
	})
	require.ErrorIs(t, err, ErrInvalidAmount)
}

func TestProcessRefundRejectsNonSale(t *testing.T) {
	repo := newMemTxRepo()
	svc := newTestService(&stubResolver{}, repo, newMemIdem())
	orig := seedSale(repo, "", "")
	require.NoError(t, repo.UpdateStatus(context.Background(), "vendor-1", orig.ID, StatusVoided))

	_, err := svc.ProcessRefund(context.Background(), testVendor(), RefundRequest{
		OriginalTransactionID: orig.ID,
	})
	require.ErrorIs(t, err, ErrNotRefundable)
}

func TestProcessRefundWrongVendor(t *testing.T) {
	repo := newMemTxRepo()
	svc := newTestService(&stubResolver{}, repo, newMemIdem())
	orig := seedSale(repo, "", "")

	_, err := svc.ProcessRefund(context.Background(), shared.VendorContext{VendorID: "vendor-2"}, RefundRequest{
		OriginalTransactionID: orig.ID,
	})
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestVoidMarksOriginalVoided(t *testing.T) {
	proc := &stubProcessor{voidRes: VoidResult{Success: true, Message: "Voided"}}
	resolver := &stubResolver{proc: proc, cfg: masterdata.ProcessorConfig{ID: "proc-7"}}
	repo := newMemTxRepo()
	svc := newTestService(resolver, repo, newMemIdem())
	orig := seedSale(repo, "proc-7", "gw-55")

	res, err := svc.VoidTransaction(context.Background(), testVendor(), VoidRequest{TransactionID: orig.ID})
	require.NoError(t, err)
	require.True(t, res.Success)
	require.Equal(t, "gw-55", proc.gotVoid.TransactionID)
	require.Equal(t, StatusVoided, repo.rows[orig.ID].Status)

	// a voided sale cannot be refunded afterwards
	_, err = svc.ProcessRefund(context.Background(), testVendor(), RefundRequest{OriginalTransactionID: orig.ID})
	require.ErrorIs(t, err, ErrNotRefundable)
}
