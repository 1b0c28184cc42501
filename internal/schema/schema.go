// Package schema holds the relational shapes shared by the normalizer and the
// storage backends, so neither has to import the other.
package schema

// Type is the coarse relational type inferred for a column.
type Type string

const (
	Integer   Type = "INTEGER"
	BigInt    Type = "BIGINT"
	Numeric   Type = "NUMERIC"
	Timestamp Type = "TIMESTAMP"
	Boolean   Type = "BOOLEAN"
	JSON      Type = "JSON"
	Text      Type = "TEXT"
)

// Column is a sanitized column name with its inferred type. Source keeps the
// header as it appeared in the input.
type Column struct {
	Name   string `json:"name"`
	Source string `json:"source,omitempty"`
	Type   Type   `json:"type"`
}

// Table is a normalized, typed table ready for loading.
//
// Rows hold Go values matching each column's Type:
//   - Integer, BigInt: int64
//   - Numeric: float64
//   - Timestamp: time.Time
//   - Boolean: bool
//   - JSON, Text: string
//
// A nil cell is SQL NULL.
type Table struct {
	Name    string   `json:"name"`
	Columns []Column `json:"columns"`
	Rows    [][]any  `json:"-"`
}

// ColumnNames returns the sanitized column names in order.
func (t *Table) ColumnNames() []string {
	out := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		out[i] = c.Name
	}
	return out
}
