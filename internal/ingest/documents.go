package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"lakehouse/internal/extract"
	"lakehouse/internal/format"
	"lakehouse/internal/objectstore"
	"lakehouse/internal/storage"
)

func (e *Engine) ingestPDF(ctx context.Context, j *job) error {
	doc, err := e.PDF.ExtractPDF(ctx, j.data)
	if err != nil {
		if canceled(err) {
			return objectErr(j.path, StageExtract, nil, err)
		}
		j.degraded(fmt.Errorf("pdf: %w", err))
		doc = &extract.Document{}
	}
	root := Root(j.path)
	text := e.persistText(ctx, j, "pdf", doc.Text)
	loaded, rows := e.loadTables(ctx, j, doc.Tables, func(t extract.Table) string {
		return PDFTablePath(root, t.Page, t.Index)
	})
	e.finishDocument(j, doc, text, loaded, rows)
	return nil
}

func (e *Engine) ingestDOCX(ctx context.Context, j *job) error {
	kind := declaredFormat(j.path, j.family)
	doc, err := e.office(ctx, j, kind, e.Office.ExtractDOCX)
	if err != nil {
		return err
	}
	root := Root(j.path)
	text := e.persistText(ctx, j, kind, doc.Text)
	loaded, rows := e.loadTables(ctx, j, doc.Tables, func(t extract.Table) string {
		return DOCXTablePath(root, t.Index)
	})
	e.finishDocument(j, doc, text, loaded, rows)
	return nil
}

func (e *Engine) ingestPPTX(ctx context.Context, j *job) error {
	kind := declaredFormat(j.path, j.family)
	doc, err := e.office(ctx, j, kind, e.Office.ExtractPPTX)
	if err != nil {
		return err
	}
	root := Root(j.path)
	text := e.persistText(ctx, j, kind, doc.Text)
	loaded, rows := e.loadTables(ctx, j, doc.Tables, func(t extract.Table) string {
		return PPTTablePath(root, t.Page, t.Index)
	})

	if len(doc.Slides) > 0 {
		if b, err := json.MarshalIndent(doc.Slides, "", "  "); err == nil {
			p := StructuredJSONPath("ppt", root)
			if err := e.Store.Put(ctx, p, b, "application/json", nil); err != nil {
				j.log.Warn("slide structure upload failed", "target", p, "error", err)
				j.warn(fmt.Errorf("put %s: %w", p, err))
			}
		}
	}
	images := e.persistMedia(ctx, j, root, doc.Media)

	e.finishDocument(j, doc, text, loaded, rows)
	j.entry.Metadata["image_count"] = images
	return nil
}

// office runs an OOXML extractor. Legacy binary formats and extractor
// failures degrade to an empty document instead of failing the object.
func (e *Engine) office(ctx context.Context, j *job, kind string, fn func(context.Context, []byte) (*extract.Document, error)) (*extract.Document, error) {
	if format.Legacy(j.path) {
		j.degraded(fmt.Errorf(".%s is a legacy binary format; only the catalog entry is written", kind))
		return &extract.Document{}, nil
	}
	doc, err := fn(ctx, j.data)
	if err != nil {
		if canceled(err) {
			return nil, objectErr(j.path, StageExtract, nil, err)
		}
		j.degraded(fmt.Errorf("%s: %w", kind, err))
		return &extract.Document{}, nil
	}
	return doc, nil
}

// persistText writes the text artifact and the unstructured_documents row.
// It reports whether there was any text to persist.
func (e *Engine) persistText(ctx context.Context, j *job, kind, text string) bool {
	if strings.TrimSpace(text) == "" {
		j.log.Warn("no text extracted", "stage", StageExtract)
		return false
	}
	p := TextPath(Root(j.path))
	if err := e.Store.Put(ctx, p, []byte(text), "text/plain; charset=utf-8", nil); err != nil {
		j.log.Warn("text artifact upload failed", "target", p, "error", err)
		j.warn(fmt.Errorf("put %s: %w", p, err))
	}
	doc := storage.Document{ContentHash: j.hash, ObjectPath: j.path, Kind: kind, Text: text}
	if err := e.Catalog.UpsertDocument(ctx, doc); err != nil {
		j.log.Warn("document upsert failed", "stage", StageCatalog, "error", err)
		j.warn(fmt.Errorf("%w: %s: %w", ErrCatalogWrite, storage.DocumentsTable, err))
	}
	return true
}

// persistMedia uploads embedded pictures and catalogs each as an image.
func (e *Engine) persistMedia(ctx context.Context, j *job, root string, media []extract.Media) int {
	saved := 0
	for _, m := range media {
		p := MediaPath(root, m.Name)
		if err := e.Store.Put(ctx, p, m.Data, objectstore.ContentType(m.Name), map[string]string{"source_object": j.path}); err != nil {
			j.log.Warn("embedded media upload failed", "target", p, "error", err)
			j.warn(fmt.Errorf("put %s: %w", p, err))
			continue
		}
		saved++

		meta := map[string]any{"source_object": j.path}
		if e.Image != nil {
			if info, err := e.Image.DecodeImage(ctx, m.Data); err == nil {
				meta["width"] = info.Width
				meta["height"] = info.Height
				meta["format"] = info.Format
			}
		}
		entry := storage.Entry{
			Container:  j.entry.Container,
			ObjectPath: p,
			SizeBytes:  int64(len(m.Data)),
			Format:     string(format.Image),
			Owner:      j.entry.Owner,
			Metadata:   meta,
		}
		if err := e.Catalog.Upsert(ctx, entry); err != nil {
			j.warn(fmt.Errorf("%w: %s: %w", ErrCatalogWrite, p, err))
		}
	}
	return saved
}

// finishDocument fills the primary entry for a document. row_count is the
// number of derived tables loaded; their total row count goes to metadata.
func (e *Engine) finishDocument(j *job, doc *extract.Document, text bool, loaded int, rows int64) {
	n := int64(loaded)
	j.entry.RowCount = &n
	j.entry.TextExtracted = text
	j.meta(doc.Metadata)
	j.entry.Metadata["table_count"] = loaded
	j.entry.Metadata["total_rows"] = rows

	if !text && loaded == 0 && !j.res.Degraded() {
		j.degraded(errors.New("no text or tables extracted"))
	}
}
