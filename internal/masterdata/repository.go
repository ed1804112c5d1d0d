package masterdata

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/verdant-pos/verdant-pos/internal/shared"
)

// Repository reads reference data from PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GetProduct returns one product.
func (r *Repository) GetProduct(ctx context.Context, id string) (Product, error) {
	var p Product
	err := r.pool.QueryRow(ctx, `SELECT id, vendor_id, name, stock_quantity, stock_status, updated_at FROM products WHERE id=$1`, id).
		Scan(&p.ID, &p.VendorID, &p.Name, &p.StockQuantity, &p.StockStatus, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Product{}, shared.ErrNotFound
		}
		return Product{}, err
	}
	return p, nil
}

// ProductName resolves a product display name.
func (r *Repository) ProductName(ctx context.Context, id string) (string, error) {
	p, err := r.GetProduct(ctx, id)
	if err != nil {
		return "", err
	}
	return p.Name, nil
}

// GetLocation returns one location.
func (r *Repository) GetLocation(ctx context.Context, id string) (Location, error) {
	var l Location
	err := r.pool.QueryRow(ctx, `SELECT id, vendor_id, name, active FROM locations WHERE id=$1`, id).
		Scan(&l.ID, &l.VendorID, &l.Name, &l.Active)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Location{}, shared.ErrNotFound
		}
		return Location{}, err
	}
	return l, nil
}

// GetRegister returns one register.
func (r *Repository) GetRegister(ctx context.Context, id string) (Register, error) {
	var reg Register
	err := r.pool.QueryRow(ctx, `SELECT id, vendor_id, location_id, name, payment_processor_id, active FROM registers WHERE id=$1`, id).
		Scan(&reg.ID, &reg.VendorID, &reg.LocationID, &reg.Name, &reg.PaymentProcessorID, &reg.Active)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Register{}, shared.ErrNotFound
		}
		return Register{}, err
	}
	return reg, nil
}

const processorColumns = `id, vendor_id, location_id, kind, name, endpoint, terminal_id, api_key, active`

func scanProcessor(row pgx.Row) (ProcessorConfig, error) {
	var pc ProcessorConfig
	err := row.Scan(&pc.ID, &pc.VendorID, &pc.LocationID, &pc.Kind, &pc.Name, &pc.Endpoint, &pc.TerminalID, &pc.APIKey, &pc.Active)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ProcessorConfig{}, shared.ErrProcessorNotFound
		}
		return ProcessorConfig{}, err
	}
	return pc, nil
}

// GetProcessor returns one processor config by id, scoped to the vendor.
func (r *Repository) GetProcessor(ctx context.Context, vendorID, id string) (ProcessorConfig, error) {
	return scanProcessor(r.pool.QueryRow(ctx, `SELECT `+processorColumns+` FROM payment_processors WHERE id=$1 AND vendor_id=$2`, id, vendorID))
}

// GetProcessorForRegister resolves the processor bound to a register.
func (r *Repository) GetProcessorForRegister(ctx context.Context, vendorID, registerID string) (ProcessorConfig, error) {
	return scanProcessor(r.pool.QueryRow(ctx, `SELECT p.id, p.vendor_id, p.location_id, p.kind, p.name, p.endpoint, p.terminal_id, p.api_key, p.active
FROM payment_processors p
JOIN registers reg ON reg.payment_processor_id = p.id
WHERE reg.id=$1 AND p.vendor_id=$2`, registerID, vendorID))
}

// GetProcessorForLocation resolves the oldest active processor at a
// location, which acts as the location default.
func (r *Repository) GetProcessorForLocation(ctx context.Context, vendorID, locationID string) (ProcessorConfig, error) {
	return scanProcessor(r.pool.QueryRow(ctx, `SELECT `+processorColumns+` FROM payment_processors
WHERE location_id=$1 AND vendor_id=$2 AND active
ORDER BY created_at ASC
LIMIT 1`, locationID, vendorID))
}
