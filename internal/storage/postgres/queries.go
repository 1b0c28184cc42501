package postgres

import (
	"context"

	"lakehouse/internal/storage"
)

// Search matches text_content with ILIKE.
func (c *Catalog) Search(ctx context.Context, query string, limit int) ([]storage.SearchResult, error) {
	if err := c.EnsureSchema(ctx); err != nil {
		return nil, err
	}
	rows, err := c.pool.Query(ctx, searchSQL, storage.LikePattern(query), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []storage.SearchResult
	for rows.Next() {
		var r storage.SearchResult
		if err := rows.Scan(&r.ID, &r.ObjectPath, &r.Kind, &r.Preview, &r.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// StorageStats aggregates object counts and sizes per file_format.
func (c *Catalog) StorageStats(ctx context.Context, f storage.StatsFilter) ([]storage.FormatStats, error) {
	if err := c.EnsureSchema(ctx); err != nil {
		return nil, err
	}
	rows, err := c.pool.Query(ctx, storageStatsSQL, f.Owner)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []storage.FormatStats
	for rows.Next() {
		var s storage.FormatStats
		if err := rows.Scan(&s.Format, &s.Files, &s.TotalBytes, &s.AvgBytes); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// ProcessingStats reports extraction rate over document formats, side-table
// counts and the daily trend.
func (c *Catalog) ProcessingStats(ctx context.Context, f storage.StatsFilter) (*storage.ProcessingStats, error) {
	if err := c.EnsureSchema(ctx); err != nil {
		return nil, err
	}
	var st storage.ProcessingStats
	if err := c.pool.QueryRow(ctx, extractionStatsSQL, storage.DocumentFormats, f.Owner).
		Scan(&st.DocumentEntries, &st.TextExtracted); err != nil {
		return nil, err
	}
	st.ExtractionRate = storage.Rate(st.TextExtracted, st.DocumentEntries)

	if err := c.pool.QueryRow(ctx, countDocumentsSQL).Scan(&st.Documents); err != nil {
		return nil, err
	}
	if err := c.pool.QueryRow(ctx, countImagesSQL).Scan(&st.Images); err != nil {
		return nil, err
	}

	rows, err := c.pool.Query(ctx, dailyTrendSQL, int32(storage.TrendDays), f.Owner)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var d storage.DailyCount
		if err := rows.Scan(&d.Day, &d.Format, &d.Count); err != nil {
			return nil, err
		}
		st.Daily = append(st.Daily, d)
	}
	return &st, rows.Err()
}
