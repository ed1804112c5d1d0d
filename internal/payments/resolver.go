package payments

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/verdant-pos/verdant-pos/internal/masterdata"
	"github.com/verdant-pos/verdant-pos/internal/shared"
)

// ConfigSource supplies stored processor configurations.
type ConfigSource interface {
	GetProcessor(ctx context.Context, vendorID, processorID string) (masterdata.ProcessorConfig, error)
	GetProcessorForRegister(ctx context.Context, vendorID, registerID string) (masterdata.ProcessorConfig, error)
	GetProcessorForLocation(ctx context.Context, vendorID, locationID string) (masterdata.ProcessorConfig, error)
}

// Resolver turns register, location, or processor ids into live gateway
// clients. Resolution order for sales is register binding first, then the
// location default; refunds and voids resolve strictly by the processor id
// recorded on the original transaction.
type Resolver struct {
	source ConfigSource
	client *http.Client
}

func NewResolver(source ConfigSource, terminalTimeout time.Duration) *Resolver {
	return &Resolver{
		source: source,
		client: &http.Client{Timeout: terminalTimeout},
	}
}

// ForSale picks the processor for a new charge. Inactive configurations are
// rejected so a disabled terminal cannot take new sales.
func (r *Resolver) ForSale(ctx context.Context, vendorID, registerID, locationID string) (Processor, masterdata.ProcessorConfig, error) {
	var (
		cfg masterdata.ProcessorConfig
		err error
	)
	if registerID != "" {
		cfg, err = r.source.GetProcessorForRegister(ctx, vendorID, registerID)
	}
	if registerID == "" || errors.Is(err, shared.ErrProcessorNotFound) {
		cfg, err = r.source.GetProcessorForLocation(ctx, vendorID, locationID)
	}
	if err != nil {
		return nil, masterdata.ProcessorConfig{}, err
	}
	if !cfg.Active {
		return nil, masterdata.ProcessorConfig{}, shared.ErrProcessorInactive
	}
	proc, err := NewProcessor(cfg, r.client)
	if err != nil {
		return nil, masterdata.ProcessorConfig{}, err
	}
	return proc, cfg, nil
}

// ByID builds the processor a past transaction was captured on. Active is
// not required here: a refund must still reach the gateway that holds the
// funds even after the config was disabled for new sales.
func (r *Resolver) ByID(ctx context.Context, vendorID, processorID string) (Processor, masterdata.ProcessorConfig, error) {
	cfg, err := r.source.GetProcessor(ctx, vendorID, processorID)
	if err != nil {
		return nil, masterdata.ProcessorConfig{}, err
	}
	proc, err := NewProcessor(cfg, r.client)
	if err != nil {
		return nil, masterdata.ProcessorConfig{}, err
	}
	return proc, cfg, nil
}
