package storage

import (
	"encoding/json"
	"strings"
	"time"
)

// Catalog table names. They are shared with other tools reading the lakehouse
// and must not change.
const (
	CatalogTable   = "minio_data_catalog"
	DocumentsTable = "unstructured_documents"
	ImagesTable    = "unstructured_images"
)

// Entry is one catalog row as written by an adapter.
type Entry struct {
	Container     string
	ObjectPath    string
	SizeBytes     int64
	Format        string
	RowCount      *int64
	TextExtracted bool
	ContentHash   string
	Owner         string
	Metadata      map[string]any
}

// Record is a stored catalog row.
type Record struct {
	ID int64
	Entry
	CreatedAt    time.Time
	LastModified time.Time
}

// Document is one row of extracted text, keyed by content hash.
type Document struct {
	ContentHash string
	ObjectPath  string
	Kind        string
	Text        string
}

// Image is one row of image metadata, keyed by content hash.
type Image struct {
	ContentHash string
	ObjectPath  string
	Format      string
	Width       int
	Height      int
	OCRText     string
	Metadata    map[string]any
}

// SearchResult is a document hit with a short preview of its text.
type SearchResult struct {
	ID         int64
	ObjectPath string
	Kind       string
	Preview    string
	CreatedAt  time.Time
}

// PreviewLen is the number of characters of text_content returned by Search.
const PreviewLen = 200

// StatsFilter narrows the stats queries. The zero value covers everything.
type StatsFilter struct {
	Owner string
}

// FormatStats is the per-format storage aggregate.
type FormatStats struct {
	Format     string
	Files      int64
	TotalBytes int64
	AvgBytes   float64
}

// DailyCount is the number of catalog rows created on one day for one format.
type DailyCount struct {
	Day    time.Time
	Format string
	Count  int64
}

// ProcessingStats summarizes text extraction over document formats plus
// recent catalog activity.
type ProcessingStats struct {
	DocumentEntries int64
	TextExtracted   int64
	// ExtractionRate is TextExtracted/DocumentEntries as a percentage, rounded
	// to two decimals.
	ExtractionRate float64
	Documents      int64
	Images         int64
	Daily          []DailyCount
}

// DocumentFormats are the catalog formats counted by ProcessingStats. Legacy
// .doc and .ppt uploads are cataloged under their literal extension.
var DocumentFormats = []string{"pdf", "docx", "doc", "pptx", "ppt"}

// TrendDays is the window of ProcessingStats.Daily.
const TrendDays = 30

// Rate computes ExtractionRate.
func Rate(extracted, total int64) float64 {
	if total == 0 {
		return 0
	}
	r := float64(extracted) / float64(total) * 100
	return float64(int64(r*100+0.5)) / 100
}

// MetadataJSON encodes catalog metadata; nil becomes "{}".
func MetadataJSON(m map[string]any) (string, error) {
	if m == nil {
		return "{}", nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// ParseMetadata decodes stored metadata. Empty input yields an empty map.
func ParseMetadata(raw []byte) (map[string]any, error) {
	out := map[string]any{}
	if len(raw) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Preview cuts s to PreviewLen runes.
func Preview(s string) string {
	r := []rune(s)
	if len(r) <= PreviewLen {
		return s
	}
	return string(r[:PreviewLen])
}

// LikePattern wraps q for a substring LIKE match, escaping the wildcard
// characters with a backslash. Statements must declare ESCAPE '\' where the
// dialect has no default escape.
func LikePattern(q string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(q) + "%"
}

// NullString maps "" to nil for nullable text columns.
func NullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// NullInt64 maps a nil pointer to nil for nullable integer columns.
func NullInt64(p *int64) any {
	if p == nil {
		return nil
	}
	return *p
}
