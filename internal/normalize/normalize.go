package normalize

import (
	"encoding/json"
	"strconv"
	"strings"

	"lakehouse/internal/schema"
	"lakehouse/internal/tabular"
)

// nullTokens are cell values treated as missing after trimming.
var nullTokens = map[string]struct{}{
	"": {}, "nan": {}, "NaN": {}, "NA": {}, "N/A": {},
	"null": {}, "NULL": {}, "None": {},
}

// Stats reports what normalization changed beyond the type assignment.
type Stats struct {
	DroppedRows int
	// Coerced counts cells outside the inference sample that did not parse
	// as the column type and were stored as NULL.
	Coerced int
}

// Normalize sanitizes, cleans, infers and converts t into a typed table named
// tableName. Every row of the result has one cell per column.
func Normalize(t *tabular.Table, tableName string) (*schema.Table, Stats) {
	var st Stats
	names := SanitizeColumns(t.Columns)

	rows := Clean(t.Rows, len(names))
	st.DroppedRows = len(t.Rows) - len(rows)

	out := &schema.Table{
		Name:    tableName,
		Columns: make([]schema.Column, len(names)),
		Rows:    make([][]any, len(rows)),
	}
	for i := range rows {
		out.Rows[i] = make([]any, len(names))
	}

	for ci, name := range names {
		var nonNull []any
		for _, r := range rows {
			if r[ci] != nil {
				nonNull = append(nonNull, r[ci])
			}
		}
		typ := Infer(nonNull)
		out.Columns[ci] = schema.Column{Name: name, Source: t.Columns[ci], Type: typ}

		for ri, r := range rows {
			v, ok := convert(r[ci], typ)
			if !ok {
				st.Coerced++
			}
			out.Rows[ri][ci] = v
		}
	}
	return out, st
}

// Clean trims string cells, maps null tokens to nil and drops rows that are
// entirely nil. Rows are padded or cut to width. The input is not modified.
func Clean(rows [][]any, width int) [][]any {
	out := make([][]any, 0, len(rows))
	for _, r := range rows {
		row := make([]any, width)
		empty := true
		for i := 0; i < width && i < len(r); i++ {
			v := r[i]
			if s, ok := v.(string); ok {
				s = strings.TrimSpace(s)
				if _, isNull := nullTokens[s]; isNull {
					v = nil
				} else {
					v = s
				}
			}
			row[i] = v
			if v != nil {
				empty = false
			}
		}
		if !empty {
			out = append(out, row)
		}
	}
	return out
}

// convert renders a cleaned cell as the Go value for typ. A value that does
// not parse becomes nil and ok is false.
func convert(v any, typ schema.Type) (any, bool) {
	if v == nil {
		return nil, true
	}
	if typ == schema.JSON {
		return jsonText(v), true
	}
	s, isString := v.(string)
	if !isString {
		s = jsonText(v)
	}
	switch typ {
	case schema.Integer, schema.BigInt:
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return i, true
		}
		if f, ok := parseDecimal(s); ok {
			return int64(f), true
		}
	case schema.Numeric:
		if f, ok := parseDecimal(s); ok {
			return f, true
		}
	case schema.Timestamp:
		if ts, ok := parseTime(s); ok {
			return ts, true
		}
	case schema.Boolean:
		if b, ok := boolTokens[strings.ToLower(s)]; ok {
			return b, true
		}
	default:
		return s, true
	}
	return nil, false
}

// jsonText renders nested values as compact JSON. Strings that are already
// JSON pass through; other strings are encoded as JSON strings.
func jsonText(v any) string {
	if s, ok := v.(string); ok {
		if json.Valid([]byte(s)) {
			return s
		}
		b, _ := json.Marshal(s)
		return string(b)
	}
	b, err := json.Marshal(v)
	if err != nil {
		b, _ = json.Marshal(err.Error())
	}
	return string(b)
}
