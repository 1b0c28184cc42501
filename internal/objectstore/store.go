// Package objectstore is the narrow object storage contract the ingest
// engine consumes, with a local filesystem implementation and a Google Cloud
// Storage implementation (which also talks to fake-gcs-server emulators).
package objectstore

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"path"
	"strings"
	"time"
)

// ErrNotFound is returned by Get and Stat for a missing object.
var ErrNotFound = errors.New("object not found")

// Info describes a stored object.
type Info struct {
	Path         string
	Size         int64
	LastModified time.Time
	ETag         string
	ContentType  string
	Metadata     map[string]string
}

// Store is the object storage contract. Paths are slash-separated and
// relative to the container.
type Store interface {
	// Container names the bucket or root directory; it is recorded in the catalog.
	Container() string
	Get(ctx context.Context, objectPath string) ([]byte, error)
	Put(ctx context.Context, objectPath string, data []byte, contentType string, metadata map[string]string) error
	Stat(ctx context.Context, objectPath string) (*Info, error)
	// Remove is best-effort: removing a missing object is not an error.
	Remove(ctx context.Context, objectPath string) error
	// List returns every object under prefix, sorted by path.
	List(ctx context.Context, prefix string) ([]Info, error)
}

// Config selects and configures a Store.
type Config struct {
	Kind string // "fs" or "gcs"

	// fs
	Root string

	// gcs
	Bucket       string
	EmulatorHost string
}

// New builds the Store named by cfg.Kind.
func New(ctx context.Context, cfg Config) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Kind)) {
	case "", "fs":
		return NewFS(cfg.Root)
	case "gcs":
		return NewGCS(ctx, cfg.Bucket, cfg.EmulatorHost)
	default:
		return nil, fmt.Errorf("unsupported objectstore kind=%s", cfg.Kind)
	}
}

// cleanPath normalizes an object path and rejects escapes from the container.
func cleanPath(p string) (string, error) {
	p = strings.TrimPrefix(path.Clean("/"+strings.ReplaceAll(p, "\\", "/")), "/")
	if p == "" || p == "." {
		return "", fmt.Errorf("empty object path")
	}
	return p, nil
}

// ContentType guesses a MIME type from the path extension, defaulting to
// application/octet-stream.
func ContentType(objectPath string) string {
	ext := strings.ToLower(path.Ext(objectPath))
	switch ext {
	case ".csv":
		return "text/csv"
	case ".json", ".ndjson", ".jsonl":
		return "application/json"
	case ".parquet", ".pq":
		return "application/vnd.apache.parquet"
	case ".txt":
		return "text/plain; charset=utf-8"
	case ".docx":
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	case ".pptx":
		return "application/vnd.openxmlformats-officedocument.presentationml.presentation"
	}
	if ct := mime.TypeByExtension(ext); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
