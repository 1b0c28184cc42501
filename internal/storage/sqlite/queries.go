package sqlite

import (
	"context"
	"time"

	"lakehouse/internal/storage"
)

// Search uses LIKE, which SQLite matches case-insensitively for ASCII only.
func (c *Catalog) Search(ctx context.Context, query string, limit int) ([]storage.SearchResult, error) {
	if err := c.EnsureSchema(ctx); err != nil {
		return nil, err
	}
	rows, err := c.db.QueryContext(ctx, searchSQL, storage.LikePattern(query), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []storage.SearchResult
	for rows.Next() {
		var (
			r       storage.SearchResult
			created string
		)
		if err := rows.Scan(&r.ID, &r.ObjectPath, &r.Kind, &r.Preview, &created); err != nil {
			return nil, err
		}
		if r.CreatedAt, err = parseTime(created); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (c *Catalog) StorageStats(ctx context.Context, f storage.StatsFilter) ([]storage.FormatStats, error) {
	if err := c.EnsureSchema(ctx); err != nil {
		return nil, err
	}
	rows, err := c.db.QueryContext(ctx, storageStatsSQL, f.Owner, f.Owner)
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

func (c *Catalog) ProcessingStats(ctx context.Context, f storage.StatsFilter) (*storage.ProcessingStats, error) {
	if err := c.EnsureSchema(ctx); err != nil {
		return nil, err
	}
	var st storage.ProcessingStats
	if err := c.db.QueryRowContext(ctx, extractionStatsSQL, f.Owner, f.Owner).
		Scan(&st.DocumentEntries, &st.TextExtracted); err != nil {
		return nil, err
	}
	st.ExtractionRate = storage.Rate(st.TextExtracted, st.DocumentEntries)

	if err := c.db.QueryRowContext(ctx, countDocumentsSQL).Scan(&st.Documents); err != nil {
		return nil, err
	}
	if err := c.db.QueryRowContext(ctx, countImagesSQL).Scan(&st.Images); err != nil {
		return nil, err
	}

	cutoff := c.now().UTC().AddDate(0, 0, -storage.TrendDays).Format("2006-01-02")
	rows, err := c.db.QueryContext(ctx, dailyTrendSQL, cutoff, f.Owner, f.Owner)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			d   storage.DailyCount
			day string
		)
		if err := rows.Scan(&day, &d.Format, &d.Count); err != nil {
			return nil, err
		}
		if d.Day, err = time.Parse("2006-01-02", day); err != nil {
			return nil, err
		}
		st.Daily = append(st.Daily, d)
	}
	return &st, rows.Err()
}
