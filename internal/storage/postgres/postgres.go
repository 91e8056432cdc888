// Package postgres implements the user and promo stores on PostgreSQL via
// pgx. Atomicity contracts are met with ON CONFLICT inserts, conditional
// UPDATEs, and a single transaction with a row lock for the redemption unit.
package postgres

import (
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store implements access.UserStore and promo.Store over a pgx pool.
type Store struct {
	pool *pgxpool.Pool
}

// New creates a Store. Panics if pool is nil to fail fast during wiring.
func New(pool *pgxpool.Pool) *Store {
	if pool == nil {
		panic("postgres: pgx pool is required")
	}
	return &Store{pool: pool}
}
