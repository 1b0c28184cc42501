package postgres

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"lakehouse/internal/storage"
)

/*
Catalog implements storage.Catalog for Postgres.

It provides:
  - The object catalog with ON CONFLICT upserts keyed by (bucket_name, object_name)
  - Document and image side tables keyed by content_hash
  - Data table loads via COPY inside one transaction per table
  - Session advisory locks per content hash (see LockHash)
*/
type Catalog struct {
	pool   *pgxpool.Pool
	schema storage.SchemaGuard
}

func init() {
	storage.Register("postgres", New)
}

// New opens a pgx pool for cfg.DSN and verifies connectivity.
func New(ctx context.Context, cfg storage.Config) (storage.Catalog, error) {
	pcfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 && int32(cfg.MaxConns) > pcfg.MaxConns {
		pcfg.MaxConns = int32(cfg.MaxConns)
	}
	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return &Catalog{pool: pool}, nil
}

// Close closes the connection pool.
func (c *Catalog) Close() {
	c.pool.Close()
}

// schemaLockKey serializes concurrent EnsureSchema calls across processes;
// CREATE ... IF NOT EXISTS alone can still race on the system catalogs.
const schemaLockKey int64 = 0x6c616b65686f7573

// EnsureSchema creates the catalog tables and indexes if absent.
func (c *Catalog) EnsureSchema(ctx context.Context) error {
	return c.schema.Ensure(func() error {
		tx, err := c.pool.Begin(ctx)
		if err != nil {
			return err
		}
		defer tx.Rollback(ctx)

		if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock($1)", schemaLockKey); err != nil {
			return fmt.Errorf("lock catalog schema: %w", err)
		}
		for _, stmt := range schemaStatements {
			if _, err := tx.Exec(ctx, stmt); err != nil {
				return fmt.Errorf("ensure catalog schema: %w", err)
			}
		}
		return tx.Commit(ctx)
	})
}

// HashKnown reports whether any catalog row carries hash.
func (c *Catalog) HashKnown(ctx context.Context, hash string) (bool, error) {
	if err := c.EnsureSchema(ctx); err != nil {
		return false, err
	}
	var known bool
	err := c.pool.QueryRow(ctx, hashKnownSQL, hash).Scan(&known)
	return known, err
}

// Upsert writes one catalog entry.
func (c *Catalog) Upsert(ctx context.Context, e storage.Entry) error {
	if err := c.EnsureSchema(ctx); err != nil {
		return err
	}
	args, err := entryArgs(e)
	if err != nil {
		return err
	}
	_, err = c.pool.Exec(ctx, upsertEntrySQL, args...)
	return err
}

// entryArgs orders Entry fields for upsertEntrySQL.
func entryArgs(e storage.Entry) ([]any, error) {
	meta, err := storage.MetadataJSON(e.Metadata)
	if err != nil {
		return nil, fmt.Errorf("encode metadata for %s: %w", e.ObjectPath, err)
	}
	return []any{
		e.Container,
		e.ObjectPath,
		e.SizeBytes,
		e.Format,
		storage.NullInt64(e.RowCount),
		e.TextExtracted,
		storage.NullString(e.ContentHash),
		storage.NullString(e.Owner),
		meta,
	}, nil
}

// GetEntry loads one catalog row.
func (c *Catalog) GetEntry(ctx context.Context, container, objectPath string) (*storage.Record, error) {
	if err := c.EnsureSchema(ctx); err != nil {
		return nil, err
	}
	var (
		rec      storage.Record
		format   *string
		rowCount *int64
		hash     *string
		owner    *string
		meta     []byte
	)
	err := c.pool.QueryRow(ctx, getEntrySQL, container, objectPath).Scan(
		&rec.ID, &rec.Container, &rec.ObjectPath, &rec.SizeBytes, &format, &rowCount,
		&rec.TextExtracted, &hash, &owner, &meta, &rec.CreatedAt, &rec.LastModified,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if format != nil {
		rec.Format = *format
	}
	if hash != nil {
		rec.ContentHash = *hash
	}
	if owner != nil {
		rec.Owner = *owner
	}
	rec.RowCount = rowCount
	if rec.Metadata, err = storage.ParseMetadata(meta); err != nil {
		return nil, fmt.Errorf("decode metadata for %s: %w", objectPath, err)
	}
	return &rec, nil
}

// UpsertDocument writes extracted text keyed by content hash.
func (c *Catalog) UpsertDocument(ctx context.Context, d storage.Document) error {
	if err := c.EnsureSchema(ctx); err != nil {
		return err
	}
	_, err := c.pool.Exec(ctx, upsertDocumentSQL, d.ObjectPath, d.Kind, d.Text, d.ContentHash)
	return err
}

// UpsertImage writes image metadata keyed by content hash.
func (c *Catalog) UpsertImage(ctx context.Context, img storage.Image) error {
	if err := c.EnsureSchema(ctx); err != nil {
		return err
	}
	meta, err := storage.MetadataJSON(img.Metadata)
	if err != nil {
		return fmt.Errorf("encode image metadata for %s: %w", img.ObjectPath, err)
	}
	_, err = c.pool.Exec(ctx, upsertImageSQL,
		img.ObjectPath, img.Format, img.Width, img.Height,
		storage.NullString(img.OCRText), img.ContentHash, meta,
	)
	return err
}

// LockHash takes a session-level advisory lock on a dedicated pool
// connection. The connection is held until the returned func is called.
func (c *Catalog) LockHash(ctx context.Context, hash string) (func(), error) {
	conn, err := c.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire lock connection: %w", err)
	}
	key := storage.LockKey(hash)
	if _, err := conn.Exec(ctx, "SELECT pg_advisory_lock($1)", key); err != nil {
		conn.Release()
		return nil, fmt.Errorf("advisory lock %s: %w", hash, err)
	}

	var once sync.Once
	return func() {
		once.Do(func() { c.unlock(conn, key) })
	}, nil
}

// unlock runs on a fresh context: the caller's may already be done.
func (c *Catalog) unlock(conn *pgxpool.Conn, key int64) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if _, err := conn.Exec(ctx, "SELECT pg_advisory_unlock($1)", key); err != nil {
		// session locks die with the session; drop the connection
		_ = conn.Conn().Close(ctx)
	}
	conn.Release()
}
