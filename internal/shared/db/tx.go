package db

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Tx is the transaction handle the application layer sees. Repositories unwrap
// it to the driver transaction; tests can substitute a trivial fake.
type Tx interface {
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// TxManager begins transactions without exposing the pool to use cases.
type TxManager interface {
	BeginTx(ctx context.Context) (Tx, error)
}

// PgxTx wraps a pgx.Tx; the embedded interface already provides
// Commit/Rollback.
type PgxTx struct {
	pgx.Tx
}

// Unwrap pulls the driver transaction back out of a Tx handle. Only the
// postgres repositories should call this.
func Unwrap(tx Tx) pgx.Tx {
	return tx.(*PgxTx).Tx
}

type PgxTxManager struct {
	pool *pgxpool.Pool
}

func NewPgxTxManager(pool *pgxpool.Pool) *PgxTxManager {
	return &PgxTxManager{pool: pool}
}

func (m *PgxTxManager) BeginTx(ctx context.Context) (Tx, error) {
	tx, err := m.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	return &PgxTx{Tx: tx}, nil
}
