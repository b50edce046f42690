package store

import (
	"context"
	"database/sql"
)

// DBTX abstracts the database handle so store implementations work the
// same against *sql.DB and *sql.Tx. Transactional service flows pass a
// *sql.Tx through WithTx; everything else uses the pooled connection.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	PrepareContext(ctx context.Context, query string) (*sql.Stmt, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}
