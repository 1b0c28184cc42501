package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"lakehouse/internal/storage"
)

// ingestImage records dimensions, EXIF and (when an OCR engine is set)
// recognized text. An image whose header cannot be decoded is unreadable.
func (e *Engine) ingestImage(ctx context.Context, j *job) error {
	info, err := e.Image.DecodeImage(ctx, j.data)
	if err != nil {
		if canceled(err) {
			return objectErr(j.path, StageExtract, nil, err)
		}
		return objectErr(j.path, StageExtract, ErrUnreadable, err)
	}

	var ocr string
	if e.OCR == nil {
		j.degraded(errors.New("no OCR engine configured"))
	} else {
		text, err := e.OCR.Recognize(ctx, j.data, info.Format)
		if err != nil {
			if canceled(err) {
				return objectErr(j.path, StageExtract, nil, err)
			}
			j.degraded(fmt.Errorf("ocr: %w", err))
		}
		ocr = text
	}
	hasText := strings.TrimSpace(ocr) != ""

	if hasText {
		p := TextPath(Root(j.path))
		if err := e.Store.Put(ctx, p, []byte(ocr), "text/plain; charset=utf-8", nil); err != nil {
			j.log.Warn("ocr text upload failed", "target", p, "error", err)
			j.warn(fmt.Errorf("put %s: %w", p, err))
		}
	}

	meta := map[string]any{
		"width":  info.Width,
		"height": info.Height,
		"format": info.Format,
		"mode":   info.Mode,
	}
	if len(info.EXIF) > 0 {
		meta["exif"] = info.EXIF
	}

	img := storage.Image{
		ContentHash: j.hash,
		ObjectPath:  j.path,
		Format:      info.Format,
		Width:       info.Width,
		Height:      info.Height,
		OCRText:     ocr,
		Metadata:    meta,
	}
	if err := e.Catalog.UpsertImage(ctx, img); err != nil {
		j.log.Warn("image upsert failed", "stage", StageCatalog, "error", err)
		j.warn(fmt.Errorf("%w: %s: %w", ErrCatalogWrite, storage.ImagesTable, err))
	}

	j.entry.RowCount = nil
	j.entry.TextExtracted = hasText
	j.meta(meta)
	return nil
}
