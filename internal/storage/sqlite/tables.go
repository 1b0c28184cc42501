package sqlite

import (
	"context"
	"fmt"

	"lakehouse/internal/schema"
	"lakehouse/internal/storage"
)

// LoadTable replaces t.Name inside one transaction using batched
// multi-row INSERTs. Timestamps are written as RFC3339Nano text and booleans
// as 0/1.
func (c *Catalog) LoadTable(ctx context.Context, t *schema.Table) (int64, error) {
	if t == nil {
		return 0, fmt.Errorf("nil table")
	}
	d := storage.SQLite
	drop, err := d.DropTableSQL(t.Name)
	if err != nil {
		return 0, err
	}
	create, err := d.CreateTableSQL(t)
	if err != nil {
		return 0, err
	}

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, drop); err != nil {
		return 0, fmt.Errorf("drop %s: %w", t.Name, err)
	}
	if _, err := tx.ExecContext(ctx, create); err != nil {
		return 0, fmt.Errorf("create %s: %w", t.Name, err)
	}

	cols := t.ColumnNames()
	batch := d.BatchRows(len(cols))
	var total int64
	for start := 0; start < len(t.Rows); start += batch {
		end := start + batch
		if end > len(t.Rows) {
			end = len(t.Rows)
		}
		stmt, err := d.InsertSQL(t.Name, cols, end-start)
		if err != nil {
			return 0, err
		}
		args := make([]any, 0, (end-start)*len(cols))
		for _, row := range t.Rows[start:end] {
			for j := range cols {
				var v any
				if j < len(row) {
					v = row[j]
				}
				args = append(args, d.BindValue(v))
			}
		}
		res, err := tx.ExecContext(ctx, stmt, args...)
		if err != nil {
			return 0, fmt.Errorf("insert into %s: %w", t.Name, err)
		}
		n, _ := res.RowsAffected()
		total += n
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return total, nil
}
