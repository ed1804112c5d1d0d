package auth

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/verdant-pos/verdant-pos/internal/shared"
)

// PGRepository reads vendor API keys from PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs PGRepository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// FindKeyByPrefix returns the active key with the given lookup prefix.
func (r *PGRepository) FindKeyByPrefix(ctx context.Context, prefix string) (*APIKey, error) {
	var key APIKey
	err := r.pool.QueryRow(ctx, `SELECT k.id, k.vendor_id, k.prefix, k.key_hash, k.active, k.created_at
FROM vendor_api_keys k
JOIN vendors v ON v.id = k.vendor_id
WHERE k.prefix=$1 AND k.active AND v.active`, prefix).
		Scan(&key.ID, &key.VendorID, &key.Prefix, &key.KeyHash, &key.Active, &key.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrInvalidCredentials
		}
		return nil, err
	}
	return &key, nil
}
