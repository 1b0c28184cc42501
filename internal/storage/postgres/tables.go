package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"lakehouse/internal/schema"
	"lakehouse/internal/storage"
)

// LoadTable drops and recreates t.Name, then streams rows with COPY, all in
// one transaction. A failure leaves the previous table intact.
func (c *Catalog) LoadTable(ctx context.Context, t *schema.Table) (int64, error) {
	drop, create, err := tableDDL(t)
	if err != nil {
		return 0, err
	}

	tx, err := c.pool.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, drop); err != nil {
		return 0, fmt.Errorf("drop %s: %w", t.Name, err)
	}
	if _, err := tx.Exec(ctx, create); err != nil {
		return 0, fmt.Errorf("create %s: %w", t.Name, err)
	}

	n, err := tx.CopyFrom(ctx, pgx.Identifier{t.Name}, t.ColumnNames(), pgx.CopyFromRows(t.Rows))
	if err != nil {
		return 0, fmt.Errorf("copy into %s: %w", t.Name, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return n, nil
}

// tableDDL validates every identifier before anything reaches the server.
func tableDDL(t *schema.Table) (drop, create string, err error) {
	if t == nil {
		return "", "", fmt.Errorf("nil table")
	}
	if drop, err = storage.Postgres.DropTableSQL(t.Name); err != nil {
		return "", "", err
	}
	if create, err = storage.Postgres.CreateTableSQL(t); err != nil {
		return "", "", err
	}
	return drop, create, nil
}
