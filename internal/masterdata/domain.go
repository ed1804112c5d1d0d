// Package masterdata holds reference data backing the POS: products,
// locations, registers, and payment processor configurations.
package masterdata

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product carries the catalog fields the POS core needs. stock_quantity and
// stock_status are derived rollups owned by the ledger, never edited here.
type Product struct {
	ID            string
	VendorID      string
	Name          string
	StockQuantity decimal.Decimal
	StockStatus   string
	UpdatedAt     time.Time
}

// Location is one physical store or warehouse of a vendor.
type Location struct {
	ID       string
	VendorID string
	Name     string
	Active   bool
}

// Register is one POS terminal at a location. A register may bind to one
// active payment processor; without a binding it runs cash-only.
type Register struct {
	ID                 string
	VendorID           string
	LocationID         string
	Name               string
	PaymentProcessorID *string
	Active             bool
}

// ProcessorConfig configures one physical terminal or gateway.
type ProcessorConfig struct {
	ID         string
	VendorID   string
	LocationID string
	Kind       string
	Name       string
	Endpoint   string
	TerminalID string
	APIKey     string
	Active     bool
}
