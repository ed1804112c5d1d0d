package payments

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentMethodCash never touches a processor; cash sales short-circuit to a
// synthetic approval.
const PaymentMethodCash = "cash"

// Transaction kinds stored in payment_transactions.
const (
	KindSale   = "sale"
	KindRefund = "refund"
	KindVoid   = "void"
)

// Transaction statuses.
const (
	StatusApproved = "approved"
	StatusDeclined = "declined"
	StatusFailed   = "failed"
	// StatusTimeout marks an ambiguous outcome: the terminal may have
	// captured the charge. Must be reconciled before any retry.
	StatusTimeout = "timeout"
	StatusVoided  = "voided"
)

// SaleRequest describes one charge attempt.
type SaleRequest struct {
	Amount        decimal.Decimal
	TipAmount     decimal.Decimal
	PaymentMethod string
	LocationID    string
	RegisterID    string
	SessionID     string
	OrderID       string
	UserID        string
	ReferenceID   string
	InvoiceNumber string
	CustomerID    string
	Metadata      map[string]string
}

// TotalAmount is the charge amount including tip.
func (r SaleRequest) TotalAmount() decimal.Decimal {
	return r.Amount.Add(r.TipAmount)
}

// SaleResult mirrors the processor response plus recorded transaction id.
type SaleResult struct {
	Success           bool              `json:"success"`
	TransactionID     string            `json:"transactionId"`
	AuthorizationCode string            `json:"authorizationCode,omitempty"`
	Message           string            `json:"message"`
	PaymentMethod     string            `json:"paymentMethod"`
	CardType          string            `json:"cardType,omitempty"`
	CardLast4         string            `json:"cardLast4,omitempty"`
	Amount            decimal.Decimal   `json:"amount"`
	TipAmount         decimal.Decimal   `json:"tipAmount"`
	TotalAmount       decimal.Decimal   `json:"totalAmount"`
	ReceiptData       map[string]string `json:"receiptData,omitempty"`
	Metadata          map[string]string `json:"metadata,omitempty"`
	Declined          bool              `json:"declined"`
	TerminalError     bool              `json:"terminalError"`
	Timeout           bool              `json:"timeout"`
}

// RefundRequest reverses a captured sale, in full or in part.
type RefundRequest struct {
	OriginalTransactionID string
	Amount                *decimal.Decimal
	Reason                string
	UserID                string
}

// RefundResult reports the refund outcome.
type RefundResult struct {
	Success       bool              `json:"success"`
	TransactionID string            `json:"transactionId"`
	Message       string            `json:"message"`
	Amount        decimal.Decimal   `json:"amount"`
	ReceiptData   map[string]string `json:"receiptData,omitempty"`
}

// VoidRequest cancels a not-yet-settled transaction.
type VoidRequest struct {
	TransactionID string
	UserID        string
	Reason        string
}

// VoidResult reports the void outcome.
type VoidResult struct {
	Success       bool   `json:"success"`
	TransactionID string `json:"transactionId"`
	Message       string `json:"message"`
}

// Transaction is the persisted record of any processor interaction. Refunds
// and voids resolve their processor from the original row's processor id,
// never from the caller's context.
type Transaction struct {
	ID            string
	VendorID      string
	ProcessorID   *string
	SessionID     string
	OrderID       string
	Kind          string
	Status        string
	Amount        decimal.Decimal
	TipAmount     decimal.Decimal
	TotalAmount   decimal.Decimal
	PaymentMethod string
	AuthCode      string
	CardType      string
	CardLast4     string
	ReferenceID   string
	InvoiceNumber string
	CustomerID    string
	Message       string
	GatewayRef    string
	OriginalTxID  *string
	CreatedAt     time.Time
}
