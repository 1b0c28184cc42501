package ingest

import (
	"context"
	"errors"
	"fmt"

	"lakehouse/internal/format"
	"lakehouse/internal/metrics"
	"lakehouse/internal/normalize"
	"lakehouse/internal/schema"
	"lakehouse/internal/storage"
	"lakehouse/internal/tabular"
)

// ingestStructured reads a CSV/JSON/Parquet upload into one relational
// table named after its path, then optionally writes a Parquet copy.
func (e *Engine) ingestStructured(ctx context.Context, j *job) error {
	t, err := e.reader().Read(j.data, j.family)
	if err != nil {
		return objectErr(j.path, StageExtract, ErrUnreadable, err)
	}

	st, stats := normalize.Normalize(t, normalize.TableName(j.path))
	if len(st.Rows) == 0 {
		return objectErr(j.path, StageExtract, ErrUnreadable, errors.New("no rows left after cleaning"))
	}
	if stats.DroppedRows > 0 || stats.Coerced > 0 {
		j.log.Debug("normalized with losses", "dropped_rows", stats.DroppedRows, "coerced", stats.Coerced)
	}

	rows, err := e.Catalog.LoadTable(ctx, st)
	if err != nil {
		metrics.RecordTable("failed", 0)
		j.res.Tables = append(j.res.Tables, TableResult{Path: j.path, Table: st.Name, Err: err})
		return objectErr(j.path, StageLoad, ErrTableLoad, err)
	}
	metrics.RecordTable("loaded", rows)
	j.res.Tables = append(j.res.Tables, TableResult{Path: j.path, Table: st.Name, Rows: rows})
	j.log.Info("table loaded", "stage", StageLoad, "table", st.Name, "rows", rows, "columns", len(st.Columns))

	if e.ParquetCopy && j.family != format.Parquet {
		e.parquetCopy(ctx, j, st, rows)
	}

	j.entry.RowCount = &rows
	j.entry.TextExtracted = false
	j.meta(tableMetadata(st, rows))
	if t.Encoding != "" {
		j.entry.Metadata["encoding"] = t.Encoding
	}
	if t.Delimiter != 0 {
		j.entry.Metadata["delimiter"] = string(t.Delimiter)
	}
	j.entry.Metadata["dropped_rows"] = stats.DroppedRows
	j.entry.Metadata["coerced_cells"] = stats.Coerced
	return nil
}

func tableMetadata(st *schema.Table, rows int64) map[string]any {
	types := make(map[string]string, len(st.Columns))
	for _, c := range st.Columns {
		types[c.Name] = string(c.Type)
	}
	return map[string]any{
		"table_name":   st.Name,
		"row_count":    rows,
		"column_count": len(st.Columns),
		"columns":      st.ColumnNames(),
		"data_types":   types,
	}
}

// parquetCopy stores the normalized table as Parquet under
// processed/structured/ and catalogs it. Failures are warnings.
func (e *Engine) parquetCopy(ctx context.Context, j *job, st *schema.Table, rows int64) {
	b, err := tabular.WriteParquet(st)
	if err != nil {
		j.log.Warn("parquet copy skipped", "stage", StageLoad, "error", err)
		j.warn(fmt.Errorf("parquet copy of %s: %w", j.path, err))
		return
	}
	p := ParquetCopyPath(j.path)
	if err := e.Store.Put(ctx, p, b, "application/vnd.apache.parquet", nil); err != nil {
		j.log.Warn("parquet copy upload failed", "stage", StageLoad, "target", p, "error", err)
		j.warn(fmt.Errorf("put %s: %w", p, err))
		return
	}
	entry := storage.Entry{
		Container:  j.entry.Container,
		ObjectPath: p,
		SizeBytes:  int64(len(b)),
		Format:     string(format.Parquet),
		RowCount:   &rows,
		Owner:      j.entry.Owner,
		Metadata:   map[string]any{"source_object": j.path, "table_name": st.Name},
	}
	if err := e.Catalog.Upsert(ctx, entry); err != nil {
		j.log.Warn("catalog upsert failed", "stage", StageCatalog, "target", p, "error", err)
		j.warn(fmt.Errorf("%w: %s: %w", ErrCatalogWrite, p, err))
	}
}
