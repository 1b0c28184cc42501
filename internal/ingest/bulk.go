package ingest

import (
	"context"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"lakehouse/internal/format"
	"lakehouse/internal/logger"
	"lakehouse/internal/objectstore"
	"lakehouse/internal/storage"
)

// BulkSource is the default source tag on bulk uploads.
const BulkSource = "bulk_ingest"

// Bulk uploads a local folder into raw/<family>/<name>.
//
// When to use:
//   - Seeding a lakehouse from a directory of files, optionally followed by
//     a Runner pass over the uploaded paths.
//
// Edge cases:
//   - Files with unsupported extensions are skipped, not failed.
//   - Files from different subfolders with the same name overwrite each
//     other; the last one walked wins.
//   - When Catalog is set each upload is cataloged right away without a
//     content hash; processing fills the rest in later.
type Bulk struct {
	Store   objectstore.Store
	Catalog storage.Catalog
	Owner   string
	Source  string
	Log     *logger.Logger

	now func() time.Time
}

// Upload is one file copied into the object store.
type Upload struct {
	LocalPath  string
	ObjectPath string
	Family     format.Family
	Size       int64
}

// BulkReport is the outcome of UploadDir.
type BulkReport struct {
	BatchID  string
	Uploaded []Upload
	Skipped  []string
	Failed   []error
}

// Paths lists the uploaded object paths in walk order.
func (r *BulkReport) Paths() []string {
	out := make([]string, len(r.Uploaded))
	for i, u := range r.Uploaded {
		out[i] = u.ObjectPath
	}
	return out
}

func (b *Bulk) log() *logger.Logger {
	if b.Log == nil {
		return logger.Nop()
	}
	return b.Log
}

func (b *Bulk) clock() time.Time {
	if b.now != nil {
		return b.now()
	}
	return time.Now()
}

// UploadDir walks dir and uploads every supported file. Per-file failures
// are collected; only an unreadable dir or a done ctx stops the walk.
func (b *Bulk) UploadDir(ctx context.Context, dir string) (*BulkReport, error) {
	rep := &BulkReport{BatchID: uuid.NewString()}
	source := b.Source
	if source == "" {
		source = BulkSource
	}
	log := b.log().With("batch_id", rep.BatchID)

	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}
		name := d.Name()
		if _, err := format.Detect(name, nil); err != nil {
			rep.Skipped = append(rep.Skipped, p)
			return nil
		}

		data, err := os.ReadFile(p)
		if err != nil {
			rep.Failed = append(rep.Failed, fmt.Errorf("read %s: %w", p, err))
			return nil
		}
		family, err := format.Detect(name, data)
		if err != nil {
			rep.Skipped = append(rep.Skipped, p)
			return nil
		}

		objectPath := RawPrefix + string(family) + "/" + name
		meta := map[string]string{
			"original_filename": name,
			"mime_type":         http.DetectContentType(data),
			"ingest_time":       b.clock().UTC().Format(time.RFC3339),
			"source":            source,
			"batch_id":          rep.BatchID,
		}
		if b.Owner != "" {
			meta["uploaded_by"] = b.Owner
		}
		if err := b.Store.Put(ctx, objectPath, data, objectstore.ContentType(name), meta); err != nil {
			rep.Failed = append(rep.Failed, fmt.Errorf("put %s: %w", objectPath, err))
			return nil
		}
		up := Upload{LocalPath: p, ObjectPath: objectPath, Family: family, Size: int64(len(data))}
		rep.Uploaded = append(rep.Uploaded, up)
		log.Debug("uploaded", "object", objectPath, "family", family, "bytes", up.Size)

		if b.Catalog != nil {
			b.catalog(ctx, rep, up, meta)
		}
		return nil
	})
	log.Info("bulk upload finished", "uploaded", len(rep.Uploaded), "skipped", len(rep.Skipped), "failed", len(rep.Failed))
	if err != nil {
		return rep, fmt.Errorf("walk %s: %w", dir, err)
	}
	return rep, nil
}

func (b *Bulk) catalog(ctx context.Context, rep *BulkReport, up Upload, meta map[string]string) {
	m := make(map[string]any, len(meta))
	for k, v := range meta {
		m[k] = v
	}
	entry := storage.Entry{
		Container:  b.Store.Container(),
		ObjectPath: up.ObjectPath,
		SizeBytes:  up.Size,
		Format:     declaredFormat(up.ObjectPath, up.Family),
		Owner:      b.Owner,
		Metadata:   m,
	}
	if err := b.Catalog.Upsert(ctx, entry); err != nil {
		rep.Failed = append(rep.Failed, fmt.Errorf("%w: %s: %w", ErrCatalogWrite, up.ObjectPath, err))
	}
}
