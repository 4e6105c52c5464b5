package migrations

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

// Execer runs SQL. Satisfied by pgxpool.Pool, pgx.Conn and pgx.Tx.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// postgresTables lists the knowledge-base tables, dependents first.
var postgresTables = []string{"tokens", "wallets", "data_sources"}

// RunPostgresMigrations applies all embedded SQL files in lexical order.
// Every statement is IF NOT EXISTS, so running them on each bootstrap is safe.
func RunPostgresMigrations(ctx context.Context, db Execer) error {
	files, err := readMigrations(PostgresFS, "postgres")
	if err != nil {
		return err
	}
	for _, m := range files {
		if _, err := db.Exec(ctx, m.sql); err != nil {
			return fmt.Errorf("apply migration %s: %w", m.name, err)
		}
	}
	return nil
}

// DropPostgresTables drops every knowledge-base table and, with them, their
// indexes. Rows are not migrated.
func DropPostgresTables(ctx context.Context, db Execer) error {
	for _, table := range postgresTables {
		if _, err := db.Exec(ctx, "DROP TABLE IF EXISTS "+table+" CASCADE"); err != nil {
			return fmt.Errorf("drop table %s: %w", table, err)
		}
	}
	return nil
}
