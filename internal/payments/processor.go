package payments

import (
	"context"
	"fmt"
	"net/http"

	"github.com/verdant-pos/verdant-pos/internal/masterdata"
)

// Processor is a card terminal gateway. Implementations translate between
// the neutral request types and one vendor's wire protocol.
type Processor interface {
	Kind() string
	ProcessSale(ctx context.Context, req SaleRequest) (SaleResult, error)
	ProcessRefund(ctx context.Context, req RefundRequest) (RefundResult, error)
	VoidTransaction(ctx context.Context, req VoidRequest) (VoidResult, error)
}

// Supported gateway kinds.
const (
	GatewayDejavoo = "dejavoo"
	GatewayPAX     = "pax"
)

// NewProcessor builds the gateway client for a stored processor config.
func NewProcessor(cfg masterdata.ProcessorConfig, client *http.Client) (Processor, error) {
	gw := newGatewayClient(cfg, client)
	switch cfg.Kind {
	case GatewayDejavoo:
		return &dejavooProcessor{gw: gw}, nil
	case GatewayPAX:
		return &paxProcessor{gw: gw}, nil
	default:
		return nil, fmt.Errorf("unsupported processor kind %q", cfg.Kind)
	}
}
