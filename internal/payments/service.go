package payments

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/verdant-pos/verdant-pos/internal/masterdata"
	"github.com/verdant-pos/verdant-pos/internal/observability"
	"github.com/verdant-pos/verdant-pos/internal/shared"
)

// ErrInvalidAmount rejects non-positive or over-limit amounts.
var ErrInvalidAmount = errors.New("amount must be greater than zero")

// ErrNotRefundable rejects refunds against anything but an approved sale.
var ErrNotRefundable = errors.New("transaction cannot be refunded")

// ProcessorResolver resolves stored configurations into gateway clients.
type ProcessorResolver interface {
	ForSale(ctx context.Context, vendorID, registerID, locationID string) (Processor, masterdata.ProcessorConfig, error)
	ByID(ctx context.Context, vendorID, processorID string) (Processor, masterdata.ProcessorConfig, error)
}

// TransactionRepository persists payment_transactions rows.
type TransactionRepository interface {
	Insert(ctx context.Context, tx Transaction) (Transaction, error)
	Get(ctx context.Context, vendorID, txID string) (Transaction, error)
	UpdateStatus(ctx context.Context, vendorID, txID, status string) error
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// IdempotencyPort guards against duplicate charge submissions.
type IdempotencyPort interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Delete(ctx context.Context, key string) error
}

// Service orchestrates charges, refunds and voids. Cash never touches a
// processor; card traffic resolves a gateway per register or location, and
// reversals resolve strictly from the original transaction row.
type Service struct {
	resolver ProcessorResolver
	txs      TransactionRepository
	idem     IdempotencyPort
	audit    AuditPort
	metrics  *observability.Metrics
	logger   *slog.Logger
}

func NewService(resolver ProcessorResolver, txs TransactionRepository, idem IdempotencyPort, audit AuditPort, metrics *observability.Metrics, logger *slog.Logger) *Service {
	return &Service{resolver: resolver, txs: txs, idem: idem, audit: audit, metrics: metrics, logger: logger}
}

// ProcessSale runs one charge attempt. Declines and timeouts come back as a
// SaleResult with Success=false and the matching flag set; only terminal
// faults and infrastructure failures surface as errors.
func (s *Service) ProcessSale(ctx context.Context, vc shared.VendorContext, req SaleRequest) (SaleResult, error) {
	if !req.Amount.IsPositive() {
		return SaleResult{}, ErrInvalidAmount
	}
	if req.TipAmount.IsNegative() {
		return SaleResult{}, ErrInvalidAmount
	}

	if req.PaymentMethod == PaymentMethodCash {
		return s.recordCashSale(ctx, vc, req)
	}

	idemKey := ""
	if req.ReferenceID != "" && s.idem != nil {
		idemKey = "sale:" + req.ReferenceID
		if err := s.idem.CheckAndInsert(ctx, idemKey, "payments"); err != nil {
			return SaleResult{}, err
		}
	}

	proc, cfg, err := s.resolver.ForSale(ctx, vc.VendorID, req.RegisterID, req.LocationID)
	if err != nil {
		s.releaseKey(ctx, idemKey)
		return SaleResult{}, err
	}

	res, err := proc.ProcessSale(ctx, req)
	if err != nil {
		return s.handleSaleFailure(ctx, vc, req, cfg, idemKey, err)
	}

	row, err := s.txs.Insert(ctx, Transaction{
		VendorID:      vc.VendorID,
		ProcessorID:   &cfg.ID,
		SessionID:     req.SessionID,
		OrderID:       req.OrderID,
		Kind:          KindSale,
		Status:        StatusApproved,
		Amount:        req.Amount,
		TipAmount:     req.TipAmount,
		TotalAmount:   req.TotalAmount(),
		PaymentMethod: req.PaymentMethod,
		AuthCode:      res.AuthorizationCode,
		CardType:      res.CardType,
		CardLast4:     res.CardLast4,
		ReferenceID:   req.ReferenceID,
		InvoiceNumber: req.InvoiceNumber,
		CustomerID:    req.CustomerID,
		Message:       res.Message,
		GatewayRef:    res.ReceiptData["gatewayTransactionId"],
	})
	if err != nil {
		return SaleResult{}, fmt.Errorf("record approved sale: %w", err)
	}

	res.TransactionID = row.ID
	res.PaymentMethod = req.PaymentMethod
	res.Amount = req.Amount
	res.TipAmount = req.TipAmount
	res.TotalAmount = req.TotalAmount()
	res.Metadata = req.Metadata
	s.metrics.ObservePayment(KindSale, StatusApproved)
	s.recordAudit(ctx, vc, "payment_sale", row.ID, map[string]any{
		"amount":    req.Amount.String(),
		"processor": cfg.Kind,
		"status":    StatusApproved,
	})
	return res, nil
}

func (s *Service) recordCashSale(ctx context.Context, vc shared.VendorContext, req SaleRequest) (SaleResult, error) {
	row, err := s.txs.Insert(ctx, Transaction{
		VendorID:      vc.VendorID,
		SessionID:     req.SessionID,
		OrderID:       req.OrderID,
		Kind:          KindSale,
		Status:        StatusApproved,
		Amount:        req.Amount,
		TipAmount:     req.TipAmount,
		TotalAmount:   req.TotalAmount(),
		PaymentMethod: PaymentMethodCash,
		ReferenceID:   req.ReferenceID,
		InvoiceNumber: req.InvoiceNumber,
		CustomerID:    req.CustomerID,
		Message:       "Cash payment recorded",
	})
	if err != nil {
		return SaleResult{}, fmt.Errorf("record cash sale: %w", err)
	}
	s.metrics.ObservePayment(KindSale, "cash")
	s.recordAudit(ctx, vc, "payment_sale", row.ID, map[string]any{
		"amount": req.Amount.String(),
		"method": PaymentMethodCash,
	})
	return SaleResult{
		Success:       true,
		TransactionID: row.ID,
		Message:       "Cash payment recorded",
		PaymentMethod: PaymentMethodCash,
		Amount:        req.Amount,
		TipAmount:     req.TipAmount,
		TotalAmount:   req.TotalAmount(),
		Metadata:      req.Metadata,
	}, nil
}

func (s *Service) handleSaleFailure(ctx context.Context, vc shared.VendorContext, req SaleRequest, cfg masterdata.ProcessorConfig, idemKey string, err error) (SaleResult, error) {
	pe, ok := AsError(err)
	if !ok {
		s.releaseKey(ctx, idemKey)
		return SaleResult{}, err
	}

	status := StatusFailed
	switch {
	case pe.Declined:
		// The cardholder may retry the same order with another card.
		status = StatusDeclined
		s.releaseKey(ctx, idemKey)
	case pe.Timeout:
		// Outcome unknown: keep the idempotency key so the same
		// reference cannot be blindly re-submitted before reconciling.
		status = StatusTimeout
	default:
		// Nothing reached the terminal; a retry is safe.
		s.releaseKey(ctx, idemKey)
	}

	row, insErr := s.txs.Insert(ctx, Transaction{
		VendorID:      vc.VendorID,
		ProcessorID:   &cfg.ID,
		SessionID:     req.SessionID,
		OrderID:       req.OrderID,
		Kind:          KindSale,
		Status:        status,
		Amount:        req.Amount,
		TipAmount:     req.TipAmount,
		TotalAmount:   req.TotalAmount(),
		PaymentMethod: req.PaymentMethod,
		ReferenceID:   req.ReferenceID,
		InvoiceNumber: req.InvoiceNumber,
		CustomerID:    req.CustomerID,
		Message:       pe.Message,
	})
	if insErr != nil {
		s.logger.Error("record failed sale", slog.String("status", status), slog.String("error", insErr.Error()))
	}
	s.metrics.ObservePayment(KindSale, status)
	s.recordAudit(ctx, vc, "payment_sale", row.ID, map[string]any{
		"amount": req.Amount.String(),
		"status": status,
		"code":   pe.Code,
	})

	if pe.Terminal && !pe.Timeout {
		return SaleResult{}, pe
	}
	return SaleResult{
		Success:       false,
		TransactionID: row.ID,
		Message:       pe.Message,
		PaymentMethod: req.PaymentMethod,
		Amount:        req.Amount,
		TipAmount:     req.TipAmount,
		TotalAmount:   req.TotalAmount(),
		Declined:      pe.Declined,
		TerminalError: pe.Terminal,
		Timeout:       pe.Timeout,
	}, nil
}

// ProcessRefund reverses an approved sale, in full or in part. The gateway
// is chosen from the processor recorded on the original row.
func (s *Service) ProcessRefund(ctx context.Context, vc shared.VendorContext, req RefundRequest) (RefundResult, error) {
	orig, err := s.txs.Get(ctx, vc.VendorID, req.OriginalTransactionID)
	if err != nil {
		return RefundResult{}, err
	}
	if orig.Kind != KindSale || orig.Status != StatusApproved {
		return RefundResult{}, ErrNotRefundable
	}

	amount := orig.TotalAmount
	if req.Amount != nil {
		amount = *req.Amount
	}
	if !amount.IsPositive() || amount.GreaterThan(orig.TotalAmount) {
		return RefundResult{}, ErrInvalidAmount
	}

	if orig.PaymentMethod == PaymentMethodCash || orig.ProcessorID == nil {
		return s.recordRefund(ctx, vc, orig, amount, StatusApproved, "Cash refund recorded", nil)
	}

	proc, _, err := s.resolver.ByID(ctx, vc.VendorID, *orig.ProcessorID)
	if err != nil {
		return RefundResult{}, err
	}

	gwRef := orig.GatewayRef
	if gwRef == "" {
		gwRef = orig.ID
	}
	res, err := proc.ProcessRefund(ctx, RefundRequest{
		OriginalTransactionID: gwRef,
		Amount:                &amount,
		Reason:                req.Reason,
		UserID:                req.UserID,
	})
	if err != nil {
		pe, ok := AsError(err)
		if !ok || (pe.Terminal && !pe.Timeout) {
			s.metrics.ObservePayment(KindRefund, StatusFailed)
			return RefundResult{}, err
		}
		status := StatusDeclined
		if pe.Timeout {
			status = StatusTimeout
		}
		return s.recordRefund(ctx, vc, orig, amount, status, pe.Message, nil)
	}
	return s.recordRefund(ctx, vc, orig, amount, StatusApproved, res.Message, res.ReceiptData)
}

func (s *Service) recordRefund(ctx context.Context, vc shared.VendorContext, orig Transaction, amount decimal.Decimal, status, message string, receiptData map[string]string) (RefundResult, error) {
	row, err := s.txs.Insert(ctx, Transaction{
		VendorID:      vc.VendorID,
		ProcessorID:   orig.ProcessorID,
		SessionID:     orig.SessionID,
		OrderID:       orig.OrderID,
		Kind:          KindRefund,
		Status:        status,
		Amount:        amount,
		TotalAmount:   amount,
		PaymentMethod: orig.PaymentMethod,
		Message:       message,
		OriginalTxID:  &orig.ID,
	})
	if err != nil {
		return RefundResult{}, fmt.Errorf("record refund: %w", err)
	}
	s.metrics.ObservePayment(KindRefund, status)
	s.recordAudit(ctx, vc, "payment_refund", row.ID, map[string]any{
		"amount":   amount.String(),
		"original": orig.ID,
		"status":   status,
	})
	return RefundResult{
		Success:       status == StatusApproved,
		TransactionID: row.ID,
		Message:       message,
		Amount:        amount,
		ReceiptData:   receiptData,
	}, nil
}

// VoidTransaction cancels a same-batch sale. On success the original row is
// marked voided so it cannot be refunded afterwards.
func (s *Service) VoidTransaction(ctx context.Context, vc shared.VendorContext, req VoidRequest) (VoidResult, error) {
	orig, err := s.txs.Get(ctx, vc.VendorID, req.TransactionID)
	if err != nil {
		return VoidResult{}, err
	}
	if orig.Kind != KindSale || orig.Status != StatusApproved {
		return VoidResult{}, ErrNotRefundable
	}

	message := "Cash sale voided"
	if orig.PaymentMethod != PaymentMethodCash && orig.ProcessorID != nil {
		proc, _, rerr := s.resolver.ByID(ctx, vc.VendorID, *orig.ProcessorID)
		if rerr != nil {
			return VoidResult{}, rerr
		}
		gwRef := orig.GatewayRef
		if gwRef == "" {
			gwRef = orig.ID
		}
		res, verr := proc.VoidTransaction(ctx, VoidRequest{
			TransactionID: gwRef,
			UserID:        req.UserID,
			Reason:        req.Reason,
		})
		if verr != nil {
			pe, ok := AsError(verr)
			s.metrics.ObservePayment(KindVoid, StatusFailed)
			if ok && pe.Declined {
				return VoidResult{Success: false, TransactionID: orig.ID, Message: pe.Message}, nil
			}
			return VoidResult{}, verr
		}
		message = res.Message
	}

	if err := s.txs.UpdateStatus(ctx, vc.VendorID, orig.ID, StatusVoided); err != nil {
		return VoidResult{}, fmt.Errorf("mark transaction voided: %w", err)
	}
	s.metrics.ObservePayment(KindVoid, StatusApproved)
	s.recordAudit(ctx, vc, "payment_void", orig.ID, map[string]any{
		"amount": orig.TotalAmount.String(),
		"reason": req.Reason,
	})
	return VoidResult{Success: true, TransactionID: orig.ID, Message: message}, nil
}

// GetTransaction returns one stored transaction scoped to the vendor.
func (s *Service) GetTransaction(ctx context.Context, vc shared.VendorContext, txID string) (Transaction, error) {
	return s.txs.Get(ctx, vc.VendorID, txID)
}

func (s *Service) releaseKey(ctx context.Context, key string) {
	if key == "" || s.idem == nil {
		return
	}
	if err := s.idem.Delete(ctx, key); err != nil {
		s.logger.Warn("release idempotency key", slog.String("key", key), slog.String("error", err.Error()))
	}
}

func (s *Service) recordAudit(ctx context.Context, vc shared.VendorContext, action, entityID string, meta map[string]any) {
	if s.audit == nil || entityID == "" {
		return
	}
	actor := vc.UserID
	if actor == "" {
		actor = vc.APIKeyID
	}
	if err := s.audit.Record(ctx, shared.AuditLog{
		VendorID: vc.VendorID,
		ActorID:  actor,
		Action:   action,
		Entity:   "payment_transaction",
		EntityID: entityID,
		Meta:     meta,
	}); err != nil {
		s.logger.Warn("audit record failed", slog.String("action", action), slog.String("error", err.Error()))
	}
}
