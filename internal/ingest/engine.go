// Package ingest runs uploaded objects through the lakehouse: format
// detection, the content identity gate, per-modality extraction, table
// normalization and loading, and the catalog upsert that closes every run.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"lakehouse/internal/extract"
	"lakehouse/internal/format"
	"lakehouse/internal/identity"
	"lakehouse/internal/logger"
	"lakehouse/internal/metrics"
	"lakehouse/internal/objectstore"
	"lakehouse/internal/storage"
	"lakehouse/internal/tabular"
)

// Status is the outcome of one Process call.
type Status string

const (
	StatusProcessed   Status = "processed"
	StatusDuplicate   Status = "duplicate"
	StatusDegraded    Status = "degraded"
	StatusUnsupported Status = "unsupported"
	StatusFailed      Status = "failed"
)

// TableResult describes one relational table written for an object.
type TableResult struct {
	Path  string
	Table string
	Rows  int64
	Err   error
}

// Result reports what Process did with one object. Warnings collect the
// non-fatal errors (degraded extraction, skipped tables, catalog writes).
type Result struct {
	Path     string
	Family   format.Family
	Hash     string
	Status   Status
	Entry    *storage.Entry
	Tables   []TableResult
	Warnings []error
	Duration time.Duration
}

// Err joins the warnings, or returns nil.
func (r *Result) Err() error { return errors.Join(r.Warnings...) }

// Degraded reports whether any warning is an ErrExtractionDegraded.
func (r *Result) Degraded() bool {
	for _, w := range r.Warnings {
		if errors.Is(w, ErrExtractionDegraded) {
			return true
		}
	}
	return false
}

// Engine processes one object at a time; it is safe for concurrent use by
// many workers as long as its collaborators are.
//
// When to use:
//   - Build with NewEngine and override fields (extractors, OCR, Owner)
//     before the first Process call.
//
// Edge cases:
//   - Gate defaults to identity.NewGate(Catalog), which takes the catalog's
//     hash lock so concurrent duplicates serialize instead of racing.
//   - OCR is optional; without it images are cataloged as degraded.
type Engine struct {
	Store   objectstore.Store
	Catalog storage.Catalog
	Gate    *identity.Gate
	Reader  *tabular.Reader

	PDF    extract.PDF
	Office extract.Office
	Image  extract.Image
	OCR    extract.OCR

	// Owner is recorded as uploaded_by unless the object carries its own
	// uploaded_by metadata.
	Owner string
	// ParquetCopy writes a Parquet copy of CSV/JSON uploads next to the
	// loaded table.
	ParquetCopy bool

	Log *logger.Logger
}

// NewEngine wires the default extractors and gate.
func NewEngine(store objectstore.Store, catalog storage.Catalog, log *logger.Logger) *Engine {
	if log == nil {
		log = logger.Nop()
	}
	log = log.With("component", "ingest")
	return &Engine{
		Store:       store,
		Catalog:     catalog,
		Gate:        identity.NewGate(catalog),
		Reader:      &tabular.Reader{Log: log},
		PDF:         extract.PDFText{},
		Office:      extract.OOXML{},
		Image:       extract.ImageConfig{},
		ParquetCopy: true,
		Log:         log,
	}
}

func (e *Engine) log() *logger.Logger {
	if e.Log == nil {
		return logger.Nop()
	}
	return e.Log
}

// job carries one object through the adapter pipeline.
type job struct {
	path   string
	family format.Family
	data   []byte
	hash   string
	log    *logger.Logger
	res    *Result

	// entry is the primary catalog entry; adapters fill RowCount,
	// TextExtracted and Metadata before it is upserted last.
	entry storage.Entry
}

func (j *job) warn(err error) {
	j.res.Warnings = append(j.res.Warnings, err)
}

func (j *job) degraded(err error) {
	j.log.Warn("extraction degraded", "stage", StageExtract, "error", err)
	j.warn(fmt.Errorf("%w: %w", ErrExtractionDegraded, err))
}

func (j *job) meta(kv map[string]any) {
	for k, v := range kv {
		j.entry.Metadata[k] = v
	}
}

// Process ingests one object.
//
// Errors:
//   - *ObjectError wrapping ErrUnreadable: unsupported or unparseable
//     input; nothing was cataloged.
//   - *ObjectError wrapping ErrFetch: the object could not be read.
//   - *ObjectError wrapping ErrTableLoad: the table of a structured upload
//     could not be loaded; the primary entry was not written.
//   - Everything else non-fatal is in Result.Warnings.
func (e *Engine) Process(ctx context.Context, objectPath string) (*Result, error) {
	start := time.Now()
	res := &Result{Path: objectPath}
	log := e.log().With("object", objectPath)
	if id := RunID(ctx); id != "" {
		log = log.With("run_id", id)
	}

	err := e.process(ctx, objectPath, res, log)
	res.Duration = time.Since(start)

	switch {
	case err != nil && errors.Is(err, ErrUnreadable) && res.Family == "":
		res.Status = StatusUnsupported
	case err != nil:
		res.Status = StatusFailed
	}
	metrics.RecordObject(string(res.Family), string(res.Status), res.Duration)

	if err != nil {
		log.Error("object failed", "family", res.Family, "status", res.Status, "error", err)
		return res, err
	}
	log.Info("object done",
		"family", res.Family,
		"hash", res.Hash,
		"status", res.Status,
		"tables", len(res.Tables),
		"warnings", len(res.Warnings),
		"duration", res.Duration.Truncate(time.Millisecond),
	)
	return res, nil
}

func (e *Engine) process(ctx context.Context, objectPath string, res *Result, log *logger.Logger) error {
	// Unknown extensions are rejected before any I/O.
	if _, err := format.Detect(objectPath, nil); err != nil {
		return objectErr(objectPath, StageDetect, ErrUnreadable, err)
	}

	info, err := e.Store.Stat(ctx, objectPath)
	if err != nil {
		return objectErr(objectPath, StageFetch, ErrFetch, err)
	}
	data, err := e.Store.Get(ctx, objectPath)
	if err != nil {
		return objectErr(objectPath, StageFetch, ErrFetch, err)
	}

	family, err := format.Detect(objectPath, data)
	if err != nil {
		return objectErr(objectPath, StageDetect, ErrUnreadable, err)
	}
	res.Family = family
	log = log.With("family", family)

	if err := ctx.Err(); err != nil {
		return objectErr(objectPath, StageGate, nil, err)
	}
	decision, err := e.gate().Check(ctx, data)
	if err != nil {
		return objectErr(objectPath, StageGate, nil, err)
	}
	defer decision.Release()

	res.Hash = decision.Hash
	j := &job{
		path:   objectPath,
		family: family,
		data:   data,
		hash:   decision.Hash,
		log:    log.With("hash", decision.Hash),
		res:    res,
		entry:  e.baseEntry(ctx, objectPath, family, data, decision.Hash, info),
	}

	if decision.Known {
		return e.duplicate(ctx, j)
	}

	if err := e.adapt(ctx, j); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return objectErr(objectPath, StageCatalog, nil, err)
	}

	e.upsertPrimary(ctx, j)
	res.Status = StatusProcessed
	if res.Degraded() {
		res.Status = StatusDegraded
	}
	return nil
}

func (e *Engine) gate() *identity.Gate {
	if e.Gate != nil {
		return e.Gate
	}
	return identity.NewGate(e.Catalog)
}

func (e *Engine) reader() *tabular.Reader {
	if e.Reader != nil {
		return e.Reader
	}
	return &tabular.Reader{Log: e.log()}
}

func (e *Engine) baseEntry(ctx context.Context, objectPath string, family format.Family, data []byte, hash string, info *objectstore.Info) storage.Entry {
	owner := e.Owner
	meta := map[string]any{}
	if info != nil && len(info.Metadata) > 0 {
		if by := info.Metadata["uploaded_by"]; by != "" {
			owner = by
		}
		meta["upload"] = info.Metadata
	}
	if id := RunID(ctx); id != "" {
		meta["run_id"] = id
	}
	return storage.Entry{
		Container:   e.Store.Container(),
		ObjectPath:  objectPath,
		SizeBytes:   int64(len(data)),
		Format:      declaredFormat(objectPath, family),
		ContentHash: hash,
		Owner:       owner,
		Metadata:    meta,
	}
}

// declaredFormat is the catalog's file_format: the family for tabular data
// and PDF, the literal extension for Office files, "image" for images.
func declaredFormat(objectPath string, family format.Family) string {
	switch family {
	case format.DOCX, format.PPTX:
		return format.Extension(objectPath)
	}
	return string(family)
}

// duplicate records the current path for already-known content and stops.
// The stub carries row_count=0 regardless of what the first copy produced.
func (e *Engine) duplicate(ctx context.Context, j *job) error {
	zero := int64(0)
	j.entry.RowCount = &zero
	j.entry.TextExtracted = false
	j.entry.Metadata["duplicate"] = true

	j.log.Info("content already cataloged, writing stub", "stage", StageGate)
	e.upsertPrimary(ctx, j)
	j.res.Status = StatusDuplicate
	return nil
}

func (e *Engine) adapt(ctx context.Context, j *job) error {
	switch j.family {
	case format.CSV, format.JSON, format.Parquet:
		return e.ingestStructured(ctx, j)
	case format.PDF:
		return e.ingestPDF(ctx, j)
	case format.DOCX:
		return e.ingestDOCX(ctx, j)
	case format.PPTX:
		return e.ingestPPTX(ctx, j)
	case format.Image:
		return e.ingestImage(ctx, j)
	}
	return objectErr(j.path, StageDetect, ErrUnreadable, fmt.Errorf("no adapter for family %q", j.family))
}

// upsertPrimary writes the object's own catalog entry. A failure is a
// warning: derived artifacts are already in place and a re-run converges.
func (e *Engine) upsertPrimary(ctx context.Context, j *job) {
	entry := j.entry
	j.res.Entry = &entry
	if err := e.Catalog.Upsert(ctx, entry); err != nil {
		j.log.Warn("catalog upsert failed", "stage", StageCatalog, "error", err)
		j.warn(fmt.Errorf("%w: %s: %w", ErrCatalogWrite, j.path, err))
	}
}

func canceled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

type runIDKey struct{}

// WithRunID tags ctx so every entry written under it records run_id.
func WithRunID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, runIDKey{}, id)
}

// RunID returns the id set by WithRunID, or "".
func RunID(ctx context.Context) string {
	id, _ := ctx.Value(runIDKey{}).(string)
	return id
}
