package ingest

import (
	"context"
	"errors"
	"fmt"

	"lakehouse/internal/extract"
	"lakehouse/internal/metrics"
	"lakehouse/internal/normalize"
	"lakehouse/internal/storage"
	"lakehouse/internal/tabular"
)

// loadTables persists every extracted table. A failing table is logged and
// skipped. It returns how many tables loaded and their total row count.
func (e *Engine) loadTables(ctx context.Context, j *job, tables []extract.Table, pathFor func(extract.Table) string) (loaded int, rows int64) {
	for _, t := range tables {
		if ctx.Err() != nil {
			j.warn(fmt.Errorf("%w: %w", ErrTableLoad, ctx.Err()))
			return loaded, rows
		}
		p := pathFor(t)
		n, name, err := e.loadDerived(ctx, j, p, t)
		j.res.Tables = append(j.res.Tables, TableResult{Path: p, Table: name, Rows: n, Err: err})
		if err != nil {
			metrics.RecordTable("failed", 0)
			j.log.Warn("derived table skipped", "stage", StageLoad, "target", p, "error", err)
			j.warn(err)
			continue
		}
		metrics.RecordTable("loaded", n)
		loaded++
		rows += n
	}
	return loaded, rows
}

// loadDerived writes one extracted table as CSV, loads it into its own
// relational table and catalogs the CSV (format csv, no content hash).
// A catalog failure here is swallowed with a warning.
func (e *Engine) loadDerived(ctx context.Context, j *job, objectPath string, t extract.Table) (int64, string, error) {
	name := normalize.TableName(objectPath)

	csv, err := tabular.WriteCSV(t.Header, t.Rows)
	if err != nil {
		return 0, name, fmt.Errorf("%w: %s: render csv: %w", ErrTableLoad, objectPath, err)
	}
	if err := e.Store.Put(ctx, objectPath, csv, "text/csv", map[string]string{"source_object": j.path}); err != nil {
		return 0, name, fmt.Errorf("%w: %s: put: %w", ErrTableLoad, objectPath, err)
	}

	st, _ := normalize.Normalize(extractedTable(t), name)
	if len(st.Rows) == 0 {
		return 0, name, fmt.Errorf("%w: %s: %w", ErrTableLoad, objectPath, errors.New("no rows left after cleaning"))
	}
	n, err := e.Catalog.LoadTable(ctx, st)
	if err != nil {
		return 0, name, fmt.Errorf("%w: %s: %w", ErrTableLoad, objectPath, err)
	}

	meta := tableMetadata(st, n)
	meta["source_object"] = j.path
	entry := storage.Entry{
		Container:  j.entry.Container,
		ObjectPath: objectPath,
		SizeBytes:  int64(len(csv)),
		Format:     "csv",
		RowCount:   &n,
		Owner:      j.entry.Owner,
		Metadata:   meta,
	}
	if err := e.Catalog.Upsert(ctx, entry); err != nil {
		j.log.Warn("catalog upsert failed", "stage", StageCatalog, "target", objectPath, "error", err)
		j.warn(fmt.Errorf("%w: %s: %w", ErrCatalogWrite, objectPath, err))
	}
	return n, name, nil
}

// extractedTable adapts an extracted grid to the reader's table shape so it
// goes through the same normalizer as uploaded CSVs.
func extractedTable(t extract.Table) *tabular.Table {
	rows := make([][]any, len(t.Rows))
	for i, r := range t.Rows {
		cells := make([]any, len(r))
		for k, v := range r {
			cells[k] = v
		}
		rows[i] = cells
	}
	return &tabular.Table{Columns: t.Header, Rows: rows, Delimiter: ','}
}
