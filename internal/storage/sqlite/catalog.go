package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"lakehouse/internal/identity"
	"lakehouse/internal/storage"
)

// Catalog implements storage.Catalog for SQLite.
//
// Key design points vs Postgres:
//   - Timestamps are stored as RFC3339Nano TEXT written by Go, never by
//     CURRENT_TIMESTAMP, so they round-trip exactly.
//   - metadata is JSON TEXT.
//   - The pool is limited to one connection: SQLite serializes writers anyway
//     and ":memory:" databases are per connection.
//   - LockHash is an in-process keyed mutex; there is no cross-process lock.
type Catalog struct {
	db     *sql.DB
	locks  *identity.LocalLocker
	schema storage.SchemaGuard
	now    func() time.Time
}

func init() {
	storage.Register("sqlite", New)
}

// New opens the database at cfg.DSN and verifies connectivity.
func New(ctx context.Context, cfg storage.Config) (storage.Catalog, error) {
	c, err := Open(ctx, cfg.DSN)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// Open is New with the concrete type, for tests and tools.
func Open(ctx context.Context, dsn string) (*Catalog, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Catalog{db: db, locks: identity.NewLocalLocker(), now: time.Now}, nil
}

func (c *Catalog) Close() { _ = c.db.Close() }

// EnsureSchema creates the catalog tables if absent.
func (c *Catalog) EnsureSchema(ctx context.Context) error {
	return c.schema.Ensure(func() error {
		tx, err := c.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer tx.Rollback()
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
	var known int64
	if err := c.db.QueryRowContext(ctx, hashKnownSQL, hash).Scan(&known); err != nil {
		return false, err
	}
	return known != 0, nil
}

func (c *Catalog) LockHash(ctx context.Context, hash string) (func(), error) {
	return c.locks.LockHash(ctx, hash)
}

// Upsert writes one catalog entry. created_at is bound only on insert.
func (c *Catalog) Upsert(ctx context.Context, e storage.Entry) error {
	if err := c.EnsureSchema(ctx); err != nil {
		return err
	}
	meta, err := storage.MetadataJSON(e.Metadata)
	if err != nil {
		return fmt.Errorf("encode metadata for %s: %w", e.ObjectPath, err)
	}
	now := formatTime(c.now())
	_, err = c.db.ExecContext(ctx, upsertEntrySQL,
		e.Container, e.ObjectPath, e.SizeBytes, e.Format,
		storage.NullInt64(e.RowCount), e.TextExtracted,
		storage.NullString(e.ContentHash), storage.NullString(e.Owner),
		meta, now, now,
	)
	return err
}

func (c *Catalog) GetEntry(ctx context.Context, container, objectPath string) (*storage.Record, error) {
	if err := c.EnsureSchema(ctx); err != nil {
		return nil, err
	}
	var (
		rec               storage.Record
		format, hash      sql.NullString
		owner             sql.NullString
		rowCount          sql.NullInt64
		meta              sql.NullString
		created, modified string
	)
	err := c.db.QueryRowContext(ctx, getEntrySQL, container, objectPath).Scan(
		&rec.ID, &rec.Container, &rec.ObjectPath, &rec.SizeBytes, &format, &rowCount,
		&rec.TextExtracted, &hash, &owner, &meta, &created, &modified,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	rec.Format = format.String
	rec.ContentHash = hash.String
	rec.Owner = owner.String
	if rowCount.Valid {
		n := rowCount.Int64
		rec.RowCount = &n
	}
	if rec.Metadata, err = storage.ParseMetadata([]byte(meta.String)); err != nil {
		return nil, fmt.Errorf("decode metadata for %s: %w", objectPath, err)
	}
	if rec.CreatedAt, err = parseTime(created); err != nil {
		return nil, err
	}
	if rec.LastModified, err = parseTime(modified); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (c *Catalog) UpsertDocument(ctx context.Context, d storage.Document) error {
	if err := c.EnsureSchema(ctx); err != nil {
		return err
	}
	_, err := c.db.ExecContext(ctx, upsertDocumentSQL,
		d.ObjectPath, d.Kind, d.Text, d.ContentHash, formatTime(c.now()))
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
		storage.NullString(img.OCRText), img.ContentHash, meta, formatTime(c.now()))
	return err
}
