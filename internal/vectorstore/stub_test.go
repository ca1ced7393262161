package vectorstore

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// stubDB satisfies DB for tests exercising validation paths that must fail
// before any database call. Every method panics to prove the store never
// reached the database.
type stubDB struct{}

func (stubDB) Exec(context.Context, string, ...any) (pgconn.CommandTag, error) {
	panic("unexpected Exec")
}

func (stubDB) Query(context.Context, string, ...any) (pgx.Rows, error) {
	panic("unexpected Query")
}

func (stubDB) QueryRow(context.Context, string, ...any) pgx.Row {
	panic("unexpected QueryRow")
}

func (stubDB) Begin(context.Context) (pgx.Tx, error) {
	panic("unexpected Begin")
}
