// Package tabular decodes CSV, JSON/NDJSON and Parquet bytes into an untyped
// table, recovering from encoding, delimiter and quoting ambiguity.
package tabular

import (
	"errors"
)

// ErrUnreadable is returned when every recovery strategy is exhausted, or
// when the result would be an empty table.
var ErrUnreadable = errors.New("unreadable file")

// Table is an ordered column list plus rows. Cells are nil (missing), string
// (scalar rendered as text), or a nested value (map[string]any / []any) that
// the normalizer serializes before type inference.
type Table struct {
	Columns []string
	Rows    [][]any

	// Encoding and Delimiter record what the reader settled on (CSV only).
	Encoding  string
	Delimiter rune
}

func (t *Table) empty() bool {
	return t == nil || len(t.Columns) == 0 || len(t.Rows) == 0
}
