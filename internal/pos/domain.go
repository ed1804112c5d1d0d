package pos

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// Session statuses.
const (
	StatusOpen   = "open"
	StatusClosed = "closed"
)

// ErrSessionNotFound indicates a missing or foreign session.
var ErrSessionNotFound = errors.New("pos: session not found")

// Session is one register's working period. At most one open session exists
// per register; the database enforces this with a partial unique index.
type Session struct {
	ID         string     `json:"sessionId"`
	VendorID   string     `json:"-"`
	RegisterID string     `json:"registerId"`
	LocationID string     `json:"locationId"`
	OpenedBy   string     `json:"openedBy,omitempty"`
	Status     string     `json:"status"`
	OpenedAt   time.Time  `json:"openedAt"`
	ClosedAt   *time.Time `json:"closedAt,omitempty"`
	ClosedBy   string     `json:"closedBy,omitempty"`

	// SessionNumber counts sessions per register, starting at 1.
	SessionNumber int64 `json:"sessionNumber"`
	// OpeningCash is the drawer float declared when the session opened.
	OpeningCash decimal.Decimal `json:"openingCash"`
	// ProcessorID is the card processor bound to the register at open
	// time; empty for cash-only registers.
	ProcessorID string `json:"paymentProcessorId,omitempty"`

	// ClosingCash is the drawer count declared at close time; zero until
	// the session is closed. SalesTotal and RefundsTotal are reconciled
	// from the session's payment rows when it closes.
	ClosingCash  decimal.Decimal `json:"closingCash"`
	SalesTotal   decimal.Decimal `json:"salesTotal"`
	RefundsTotal decimal.Decimal `json:"refundsTotal"`
	Notes        string          `json:"notes,omitempty"`
}

// Open reports whether the session still accepts sales.
func (s Session) Open() bool { return s.Status == StatusOpen }

// Totals summarizes the money that moved during a session. Refunds count
// negative, so GrandTotal is net.
type Totals struct {
	TransactionCount int             `json:"transactionCount"`
	CashTotal        decimal.Decimal `json:"cashTotal"`
	CardTotal        decimal.Decimal `json:"cardTotal"`
	RefundTotal      decimal.Decimal `json:"refundTotal"`
	GrandTotal       decimal.Decimal `json:"grandTotal"`
}
