package pos

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// Repository persists POS sessions in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const sessionColumns = `id, vendor_id, register_id, location_id, session_number, opened_by, status, opening_cash, payment_processor_id, opened_at, closed_at, closed_by, closing_cash, sales_total, refunds_total, notes`

func scanSession(row pgx.Row) (Session, error) {
	var (
		s           Session
		closedBy    *string
		processorID *string
	)
	err := row.Scan(&s.ID, &s.VendorID, &s.RegisterID, &s.LocationID, &s.SessionNumber, &s.OpenedBy, &s.Status, &s.OpeningCash, &processorID, &s.OpenedAt, &s.ClosedAt, &closedBy, &s.ClosingCash, &s.SalesTotal, &s.RefundsTotal, &s.Notes)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Session{}, ErrSessionNotFound
		}
		return Session{}, err
	}
	if closedBy != nil {
		s.ClosedBy = *closedBy
	}
	if processorID != nil {
		s.ProcessorID = *processorID
	}
	return s, nil
}

// GetOpenForRegister returns the register's open session, if any.
func (r *Repository) GetOpenForRegister(ctx context.Context, vendorID, registerID string) (Session, error) {
	return scanSession(r.pool.QueryRow(ctx,
		`SELECT `+sessionColumns+` FROM pos_sessions WHERE vendor_id=$1 AND register_id=$2 AND status='open'`,
		vendorID, registerID))
}

// Get returns one session scoped to the vendor.
func (r *Repository) Get(ctx context.Context, vendorID, sessionID string) (Session, error) {
	return scanSession(r.pool.QueryRow(ctx,
		`SELECT `+sessionColumns+` FROM pos_sessions WHERE id=$1 AND vendor_id=$2`,
		sessionID, vendorID))
}

// GetOrCreateOpen returns the register's open session, creating one when
// none exists. Two registers racing the insert collide on the partial
// unique index; the loser re-reads the winner's row.
func (r *Repository) GetOrCreateOpen(ctx context.Context, vendorID, registerID, locationID, openedBy string, openingCash decimal.Decimal, processorID string) (Session, bool, error) {
	s, err := r.GetOpenForRegister(ctx, vendorID, registerID)
	if err == nil {
		return s, false, nil
	}
	if !errors.Is(err, ErrSessionNotFound) {
		return Session{}, false, err
	}

	// session_number is per register. Concurrent opens for one register
	// collide on the partial unique index before they could reuse a
	// number, so the subselect needs no extra locking.
	s, err = scanSession(r.pool.QueryRow(ctx,
		`INSERT INTO pos_sessions (vendor_id, register_id, location_id, session_number, opened_by, status, opening_cash, payment_processor_id)
		 VALUES ($1, $2, $3,
		         COALESCE((SELECT MAX(session_number) FROM pos_sessions WHERE register_id=$2), 0) + 1,
		         $4, 'open', $5, NULLIF($6, '')) RETURNING `+sessionColumns,
		vendorID, registerID, locationID, openedBy, openingCash, processorID))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			s, err = r.GetOpenForRegister(ctx, vendorID, registerID)
			return s, false, err
		}
		return Session{}, false, err
	}
	return s, true, nil
}

// Close transitions an open session to closed. Closing an already closed
// session is a no-op returning the stored row, so close is idempotent.
func (r *Repository) Close(ctx context.Context, vendorID, sessionID, closedBy string, closingCash decimal.Decimal, notes string) (Session, bool, error) {
	s, err := scanSession(r.pool.QueryRow(ctx,
		`UPDATE pos_sessions SET status='closed', closed_at=NOW(), closed_by=$3, closing_cash=$4, notes=$5
		 WHERE id=$1 AND vendor_id=$2 AND status='open' RETURNING `+sessionColumns,
		sessionID, vendorID, closedBy, closingCash, notes))
	if err == nil {
		return s, true, nil
	}
	if !errors.Is(err, ErrSessionNotFound) {
		return Session{}, false, err
	}
	s, err = r.Get(ctx, vendorID, sessionID)
	if err != nil {
		return Session{}, false, err
	}
	return s, false, nil
}

// UpdateTotals stores the reconciled money movement on a session row.
func (r *Repository) UpdateTotals(ctx context.Context, vendorID, sessionID string, salesTotal, refundsTotal decimal.Decimal) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE pos_sessions SET sales_total=$3, refunds_total=$4 WHERE id=$1 AND vendor_id=$2`,
		sessionID, vendorID, salesTotal, refundsTotal)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrSessionNotFound
	}
	return nil
}

// ListStaleOpen returns open sessions older than maxAge, for the reaper.
func (r *Repository) ListStaleOpen(ctx context.Context, maxAge time.Duration, limit int) ([]Session, error) {
	if limit <= 0 {
		limit = 100
	}
	cutoff := time.Now().Add(-maxAge)
	rows, err := r.pool.Query(ctx,
		`SELECT `+sessionColumns+` FROM pos_sessions WHERE status='open' AND opened_at < $1 ORDER BY opened_at LIMIT $2`,
		cutoff, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
