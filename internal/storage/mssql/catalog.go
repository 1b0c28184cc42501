package mssql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"lakehouse/internal/schema"
	"lakehouse/internal/storage"
)

// Catalog implements storage.Catalog for Microsoft SQL Server.
//
// Upserts are MERGE ... WITH (HOLDLOCK). LockHash takes a session-owned
// sp_getapplock on a pinned connection, so it also serializes separate
// processes sharing the database.
//
// This package does not blank-import a SQL Server driver; storage/all does.
type Catalog struct {
	db     dbConn
	schema storage.SchemaGuard
}

func init() {
	storage.Register("mssql", New)
}

// New opens cfg.DSN with the "sqlserver" driver and verifies connectivity.
func New(ctx context.Context, cfg storage.Config) (storage.Catalog, error) {
	raw, err := sql.Open("sqlserver", cfg.DSN)
	if err != nil {
		return nil, err
	}

	maxConns := 64
	if cfg.MaxConns > maxConns {
		maxConns = cfg.MaxConns
	}
	raw.SetMaxOpenConns(maxConns)
	raw.SetMaxIdleConns(maxConns)

	if err := raw.PingContext(ctx); err != nil {
		_ = raw.Close()
		return nil, err
	}
	return &Catalog{db: &sqlDB{db: raw}}, nil
}

func (c *Catalog) Close() {
	if c == nil || c.db == nil {
		return
	}
	_ = c.db.Close()
}

// EnsureSchema creates the catalog tables if absent, serialized by a
// transaction-owned app lock.
func (c *Catalog) EnsureSchema(ctx context.Context) error {
	return c.schema.Ensure(func() error {
		tx, err := c.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer tx.Rollback()

		if _, err := tx.ExecContext(ctx,
			`EXEC sp_getapplock @Resource = N'lakehouse-catalog-schema', @LockMode = 'Exclusive', @LockOwner = 'Transaction'`,
		); err != nil {
			return fmt.Errorf("lock catalog schema: %w", err)
		}
		for _, stmt := range schemaStatements {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("ensure catalog schema: %w", err)
			}
		}
		return tx.Commit()
	})
}

func (c *Catalog) HashKnown(ctx context.Context, hash string) (bool, error) {
	if err := c.EnsureSchema(ctx); err != nil {
		return false, err
	}
	var known int
	if err := c.db.QueryRowContext(ctx, hashKnownSQL, hash).Scan(&known); err != nil {
		return false, err
	}
	return known == 1, nil
}

// lockTimeoutMillis bounds a single sp_getapplock wait; ctx cancellation
// also ends the wait through the driver.
const lockTimeoutMillis = 10 * 60 * 1000

// LockHash takes a session-owned exclusive app lock named after the hash.
func (c *Catalog) LockHash(ctx context.Context, hash string) (func(), error) {
	sess, err := c.db.Session(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire lock connection: %w", err)
	}
	resource := "lakehouse:" + hash
	var rc int
	if err := sess.QueryRowContext(ctx, getAppLockSQL, resource, lockTimeoutMillis).Scan(&rc); err != nil {
		_ = sess.Close()
		return nil, fmt.Errorf("app lock %s: %w", hash, err)
	}
	if rc < 0 {
		_ = sess.Close()
		return nil, fmt.Errorf("app lock %s: sp_getapplock returned %d", hash, rc)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			uctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_, _ = sess.ExecContext(uctx, releaseAppLockSQL, resource)
			_ = sess.Close()
		})
	}, nil
}

func (c *Catalog) Upsert(ctx context.Context, e storage.Entry) error {
	if err := c.EnsureSchema(ctx); err != nil {
		return err
	}
	meta, err := storage.MetadataJSON(e.Metadata)
	if err != nil {
		return fmt.Errorf("encode metadata for %s: %w", e.ObjectPath, err)
	}
	_, err = c.db.ExecContext(ctx, upsertEntrySQL,
		e.Container, e.ObjectPath, e.SizeBytes, e.Format,
		storage.NullInt64(e.RowCount), e.TextExtracted,
		storage.NullString(e.ContentHash), storage.NullString(e.Owner), meta,
	)
	return err
}

func (c *Catalog) GetEntry(ctx context.Context, container, objectPath string) (*storage.Record, error) {
	if err := c.EnsureSchema(ctx); err != nil {
		return nil, err
	}
	var (
		rec                 storage.Record
		format, hash, owner sql.NullString
		rowCount            sql.NullInt64
		meta                sql.NullString
	)
	err := c.db.QueryRowContext(ctx, getEntrySQL, container, objectPath).Scan(
		&rec.ID, &rec.Container, &rec.ObjectPath, &rec.SizeBytes, &format, &rowCount,
		&rec.TextExtracted, &hash, &owner, &meta, &rec.CreatedAt, &rec.LastModified,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	rec.Format, rec.ContentHash, rec.Owner = format.String, hash.String, owner.String
	if rowCount.Valid {
		n := rowCount.Int64
		rec.RowCount = &n
	}
	if rec.Metadata, err = storage.ParseMetadata([]byte(meta.String)); err != nil {
		return nil, fmt.Errorf("decode metadata for %s: %w", objectPath, err)
	}
	return &rec, nil
}

func (c *Catalog) UpsertDocument(ctx context.Context, d storage.Document) error {
	if err := c.EnsureSchema(ctx); err != nil {
		return err
	}
	_, err := c.db.ExecContext(ctx, upsertDocumentSQL, d.ObjectPath, d.Kind, d.Text, d.ContentHash)
	return err
}

func (c *Catalog) UpsertImage(ctx context.Context, img storage.Image) error {
	if err := c.EnsureSchema(ctx); err != nil {
		return err
	}
	meta, err := storage.MetadataJSON(img.Metadata)
	if err != nil {
		return fmt.Errorf("encode image metadata for %s: %w", img.ObjectPath, err)
	}
	_, err = c.db.ExecContext(ctx, upsertImageSQL,
		img.ObjectPath, img.Format, img.Width, img.Height,
		storage.NullString(img.OCRText), img.ContentHash, meta)
	return err
}

// LoadTable replaces t.Name in one transaction with batched INSERTs kept
// under the 2100-parameter limit.
func (c *Catalog) LoadTable(ctx context.Context, t *schema.Table) (int64, error) {
	if t == nil {
		return 0, fmt.Errorf("nil table")
	}
	d := storage.SQLServer
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
		end := min(start+batch, len(t.Rows))
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
				args = append(args, v)
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

// likePattern also escapes '[', a wildcard in T-SQL LIKE.
func likePattern(q string) string {
	return strings.ReplaceAll(storage.LikePattern(q), "[", `\[`)
}

func (c *Catalog) Search(ctx context.Context, query string, limit int) ([]storage.SearchResult, error) {
	if err := c.EnsureSchema(ctx); err != nil {
		return nil, err
	}
	rows, err := c.db.QueryContext(ctx, searchSQL, likePattern(query), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []storage.SearchResult
	for rows.Next() {
		var r storage.SearchResult
		if err := rows.Scan(&r.ID, &r.ObjectPath, &r.Kind, &r.Preview, &r.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (c *Catalog) StorageStats(ctx context.Context, f storage.StatsFilter) ([]storage.FormatStats, error) {
	if err := c.EnsureSchema(ctx); err != nil {
		return nil, err
	}
	rows, err := c.db.QueryContext(ctx, storageStatsSQL, f.Owner)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []storage.FormatStats
	for rows.Next() {
		var s storage.FormatStats
		if err := rows.Scan(&s.Format, &s.Files, &s.TotalBytes, &s.AvgBytes); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (c *Catalog) ProcessingStats(ctx context.Context, f storage.StatsFilter) (*storage.ProcessingStats, error) {
	if err := c.EnsureSchema(ctx); err != nil {
		return nil, err
	}
	var st storage.ProcessingStats
	if err := c.db.QueryRowContext(ctx, extractionStatsSQL, f.Owner).
		Scan(&st.DocumentEntries, &st.TextExtracted); err != nil {
		return nil, err
	}
	st.ExtractionRate = storage.Rate(st.TextExtracted, st.DocumentEntries)

	if err := c.db.QueryRowContext(ctx, countDocumentsSQL).Scan(&st.Documents); err != nil {
		return nil, err
	}
	if err := c.db.QueryRowContext(ctx, countImagesSQL).Scan(&st.Images); err != nil {
		return nil, err
	}

	rows, err := c.db.QueryContext(ctx, dailyTrendSQL, storage.TrendDays, f.Owner)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var d storage.DailyCount
		if err := rows.Scan(&d.Day, &d.Format, &d.Count); err != nil {
			return nil, err
		}
		st.Daily = append(st.Daily, d)
	}
	return &st, rows.Err()
}
