package tabular

import (
	"fmt"

	"lakehouse/internal/format"
	"lakehouse/internal/logger"
)

// DefaultMinConfidence is the detector confidence below which fallback
// encodings are tried.
const DefaultMinConfidence = 0.7

// Reader decodes tabular bytes. The zero value is usable.
type Reader struct {
	// MinConfidence overrides DefaultMinConfidence when > 0.
	MinConfidence float64

	Log *logger.Logger
}

func (r *Reader) log() *logger.Logger {
	if r == nil || r.Log == nil {
		return logger.Nop()
	}
	return r.Log
}

func (r *Reader) minConfidence() float64 {
	if r == nil || r.MinConfidence <= 0 {
		return DefaultMinConfidence
	}
	return r.MinConfidence
}

// Read decodes data as the given tabular family. Any failure, including an
// empty result, wraps ErrUnreadable.
func (r *Reader) Read(data []byte, family format.Family) (*Table, error) {
	var (
		t   *Table
		err error
	)
	switch family {
	case format.CSV:
		t, err = r.readCSV(data)
	case format.JSON:
		t, err = r.readJSON(data)
	case format.Parquet:
		t, err = r.readParquet(data)
	default:
		return nil, fmt.Errorf("%w: %s is not a tabular format", ErrUnreadable, family)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnreadable, err)
	}
	if t.empty() {
		return nil, fmt.Errorf("%w: no rows or columns", ErrUnreadable)
	}
	return t, nil
}

// readCSV walks encodings × quoting modes and returns the first non-empty table.
func (r *Reader) readCSV(data []byte) (*Table, error) {
	encodings := encodingCandidates(data, r.minConfidence())
	for _, enc := range encodings {
		text, ok := decode(data, enc)
		if !ok {
			r.log().Debug("csv decode failed", "encoding", enc)
			continue
		}
		delim := detectDelimiter(text)
		for _, mode := range quoteModes {
			header, rows, skipped, err := parseCSV(text, delim, mode)
			if err != nil {
				r.log().Debug("csv parse attempt failed", "encoding", enc, "quoting", mode.String(), "error", err)
				continue
			}
			if len(header) == 0 || len(rows) == 0 {
				continue
			}
			if skipped > 0 {
				r.log().Warn("csv rows skipped", "encoding", enc, "quoting", mode.String(), "skipped", skipped)
			}
			return &Table{Columns: header, Rows: rows, Encoding: enc, Delimiter: delim}, nil
		}
	}
	return nil, fmt.Errorf("csv: no encoding/delimiter/quoting combination produced rows (tried %v)", encodings)
}

func (r *Reader) readJSON(data []byte) (*Table, error) {
	cols, rows, err := parseJSON(data, func(line int, err error) {
		r.log().Warn("skipping malformed json line", "line", line, "error", err)
	})
	if err != nil {
		return nil, err
	}
	return &Table{Columns: cols, Rows: rows, Encoding: "utf-8"}, nil
}

func (r *Reader) readParquet(data []byte) (*Table, error) {
	cols, rows, err := parseParquet(data)
	if err != nil {
		return nil, err
	}
	return &Table{Columns: cols, Rows: rows}, nil
}
