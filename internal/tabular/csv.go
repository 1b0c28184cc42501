package tabular

import (
	"bytes"
	"encoding/csv"
	"errors"
	"io"
	"strings"
)

// quoteMode is one parse attempt in the CSV retry ladder.
type quoteMode int

const (
	quoteStrict quoteMode = iota
	quotePermissive
	quoteNone
)

func (m quoteMode) String() string {
	switch m {
	case quoteStrict:
		return "strict"
	case quotePermissive:
		return "permissive"
	default:
		return "none"
	}
}

var quoteModes = []quoteMode{quoteStrict, quotePermissive, quoteNone}

// parseCSV parses decoded text with one quoting mode. The first record is the
// header. Records with more fields than the header are skipped; shorter ones
// are padded with nulls. Malformed records are skipped, not fatal.
func parseCSV(text string, delimiter rune, mode quoteMode) (header []string, rows [][]any, skipped int, err error) {
	records, skipped, err := readRecords(text, delimiter, mode)
	if err != nil || len(records) == 0 {
		return nil, nil, skipped, err
	}

	header = records[0]
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	rows = make([][]any, 0, len(records)-1)
	for _, rec := range records[1:] {
		if len(rec) > len(header) {
			skipped++
			continue
		}
		if len(rec) == 1 && strings.TrimSpace(rec[0]) == "" && len(header) > 1 {
			continue
		}
		row := make([]any, len(header))
		for i := range header {
			if i < len(rec) {
				row[i] = rec[i]
			}
		}
		rows = append(rows, row)
	}
	return header, rows, skipped, nil
}

func readRecords(text string, delimiter rune, mode quoteMode) ([][]string, int, error) {
	if mode == quoteNone {
		return splitRecords(text, delimiter), 0, nil
	}

	if mode == quotePermissive {
		// backslash-escaped quotes become csv-doubled quotes
		text = strings.ReplaceAll(text, `\"`, `""`)
	}

	r := csv.NewReader(strings.NewReader(text))
	r.Comma = delimiter
	r.FieldsPerRecord = -1
	r.LazyQuotes = mode == quotePermissive
	r.ReuseRecord = false

	var (
		out     [][]string
		skipped int
	)
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			var pe *csv.ParseError
			if errors.As(err, &pe) {
				skipped++
				continue
			}
			return out, skipped, err
		}
		out = append(out, rec)
	}
	return out, skipped, nil
}

// splitRecords treats quote characters as data.
func splitRecords(text string, delimiter rune) [][]string {
	var out [][]string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimRight(line, "\r")
		if line == "" {
			continue
		}
		out = append(out, strings.Split(line, string(delimiter)))
	}
	return out
}

// WriteCSV renders a header and string rows as RFC 4180 CSV. It is used for
// tables extracted from documents before they are stored and loaded.
func WriteCSV(header []string, rows [][]string) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(header); err != nil {
		return nil, err
	}
	for _, r := range rows {
		rec := make([]string, len(header))
		copy(rec, r)
		if err := w.Write(rec); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
