package storage

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"lakehouse/internal/schema"
)

// ErrNotFound is returned by GetEntry when no catalog row matches the key.
var ErrNotFound = errors.New("catalog entry not found")

// Config is the minimal configuration needed to open a catalog backend.
//
// When to use:
//   - Use Config when constructing a Catalog via New.
//
// Edge cases:
//   - Kind must be non-empty and must match a registered backend kind.
//   - DSN is passed through to the backend factory; validation is backend-specific.
//   - MaxConns sizes the connection pool. Backends that hold a connection per
//     LockHash call need more connections than concurrent workers, or every
//     worker ends up holding a lock while waiting for a query connection;
//     zero keeps the backend default.
//
// Errors:
//   - New returns an error if Kind is empty or unsupported.
type Config struct {
	Kind     string
	DSN      string
	MaxConns int
}

// Catalog is the relational side of the lakehouse: the object catalog, the
// unstructured side tables and the derived data tables.
//
// Each backend implements these semantics in its own idiomatic way (Postgres
// ON CONFLICT, SQLite ON CONFLICT DO UPDATE, SQL Server MERGE).
type Catalog interface {
	// Close releases any backend resources (connections, pools).
	//
	// When to use:
	//   - Call Close once at process shutdown.
	Close()

	// EnsureSchema creates the catalog tables if they are absent.
	//
	// Edge cases:
	//   - Safe to call concurrently and repeatedly. The write methods below
	//     call it lazily, so callers only need it to fail fast at startup.
	EnsureSchema(ctx context.Context) error

	// HashKnown reports whether any catalog row carries hash, under any path.
	HashKnown(ctx context.Context, hash string) (bool, error)

	// LockHash serializes ingest of one content hash across workers (and,
	// where the backend supports it, across processes). The returned func
	// releases the lock and is safe to call more than once.
	LockHash(ctx context.Context, hash string) (func(), error)

	// Upsert inserts or updates the entry keyed by (Container, ObjectPath).
	//
	// Edge cases:
	//   - created_at and catalog_id are never changed by an update.
	//   - A nil RowCount, empty ContentHash or empty Owner is stored as NULL.
	Upsert(ctx context.Context, e Entry) error

	// GetEntry returns the catalog row for a key, or ErrNotFound.
	GetEntry(ctx context.Context, container, objectPath string) (*Record, error)

	// UpsertDocument records extracted text keyed by content hash. A second
	// call with the same hash updates object_name and text_content in place.
	UpsertDocument(ctx context.Context, d Document) error

	// UpsertImage records image metadata keyed by content hash.
	UpsertImage(ctx context.Context, img Image) error

	// LoadTable replaces the relational table t.Name with the rows of t in a
	// single transaction and returns the number of rows written.
	LoadTable(ctx context.Context, t *schema.Table) (int64, error)

	// Search returns documents whose text contains query, case-insensitively,
	// newest first.
	Search(ctx context.Context, query string, limit int) ([]SearchResult, error)

	// StorageStats aggregates catalog rows per format.
	StorageStats(ctx context.Context, f StatsFilter) ([]FormatStats, error)

	// ProcessingStats reports extraction success and recent activity.
	ProcessingStats(ctx context.Context, f StatsFilter) (*ProcessingStats, error)
}

type factory func(ctx context.Context, cfg Config) (Catalog, error)

var (
	mu        sync.RWMutex
	factories = map[string]factory{}
)

// Register registers a catalog backend under a kind (e.g. "postgres", "sqlite").
//
// When to use:
//   - Call Register from an init() function in a backend package.
//   - The `kind` string becomes the lookup key used by New.
//
// Panics:
//   - If kind is empty.
//   - If f is nil.
//   - If kind is already registered.
func Register(kind string, f factory) {
	mu.Lock()
	defer mu.Unlock()

	if kind == "" {
		panic("storage: Register called with empty kind")
	}
	if f == nil {
		panic("storage: Register called with nil factory")
	}
	if _, exists := factories[kind]; exists {
		panic(fmt.Sprintf("storage: factory already registered for kind=%q", kind))
	}
	factories[kind] = f
}

// New constructs a Catalog using the registered backend factory.
//
// Errors:
//   - Returns an error if cfg.Kind is empty or unsupported.
//   - Returns whatever error the registered factory returns.
func New(ctx context.Context, cfg Config) (Catalog, error) {
	if cfg.Kind == "" {
		return nil, fmt.Errorf("storage: missing catalog kind")
	}

	mu.RLock()
	f := factories[cfg.Kind]
	mu.RUnlock()

	if f == nil {
		return nil, fmt.Errorf("unsupported catalog kind=%s", cfg.Kind)
	}
	return f(ctx, cfg)
}

// Kinds lists the registered backend kinds.
func Kinds() []string {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]string, 0, len(factories))
	for k := range factories {
		out = append(out, k)
	}
	return out
}
