package tabular

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
)

// parseJSON accepts a single object (one row), an array (one row per
// element), or newline-delimited JSON (one row per line). Malformed NDJSON
// lines are reported through warn and skipped. Columns keep the key order of
// the document.
func parseJSON(data []byte, warn func(line int, err error)) ([]string, [][]any, error) {
	data = bytes.TrimSpace(bytes.TrimPrefix(data, utf8BOM))
	if len(data) == 0 {
		return nil, nil, nil
	}

	var records []gjson.Result

	dec := json.NewDecoder(bytes.NewReader(data))
	var root json.RawMessage
	rootErr := dec.Decode(&root)
	single := rootErr == nil && !hasMoreValues(dec)

	switch {
	case single:
		doc := gjson.ParseBytes(root)
		if doc.IsArray() {
			records = doc.Array()
		} else {
			records = append(records, doc)
		}
	default:
		records = parseNDJSON(data, warn)
	}

	return flattenRecords(records)
}

func hasMoreValues(dec *json.Decoder) bool {
	var next json.RawMessage
	return dec.Decode(&next) != io.EOF
}

func parseNDJSON(data []byte, warn func(line int, err error)) []gjson.Result {
	var out []gjson.Result
	for i, line := range bytes.Split(data, []byte("\n")) {
		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}
		if !gjson.ValidBytes(line) {
			if warn != nil {
				warn(i+1, fmt.Errorf("invalid json"))
			}
			continue
		}
		out = append(out, gjson.ParseBytes(line))
	}
	return out
}

// flattenRecords joins nested object keys with "." and collects the union of
// columns in first-seen order. Arrays stay nested. Non-object records land in
// a single "value" column.
func flattenRecords(records []gjson.Result) ([]string, [][]any, error) {
	if len(records) == 0 {
		return nil, nil, nil
	}

	flat := make([]map[string]any, len(records))
	index := map[string]int{}
	var columns []string
	for i, rec := range records {
		out := map[string]any{}
		var order []string
		if rec.IsObject() {
			order = flattenRecord("", rec, out, nil)
		} else {
			out["value"] = jsonValue(rec)
			order = []string{"value"}
		}
		for _, k := range order {
			if _, ok := index[k]; !ok {
				index[k] = len(columns)
				columns = append(columns, k)
			}
		}
		flat[i] = out
	}

	rows := make([][]any, len(flat))
	for i, rec := range flat {
		row := make([]any, len(columns))
		for k, v := range rec {
			row[index[k]] = scalarCell(v)
		}
		rows[i] = row
	}
	return columns, rows, nil
}

// flattenRecord writes dotted keys into out and returns them in document
// order. A repeated key keeps its first position and its last value.
func flattenRecord(prefix string, obj gjson.Result, out map[string]any, order []string) []string {
	obj.ForEach(func(k, v gjson.Result) bool {
		key := k.String()
		if prefix != "" {
			key = prefix + "." + key
		}
		if v.IsObject() && hasKeys(v) {
			order = flattenRecord(key, v, out, order)
			return true
		}
		if _, seen := out[key]; !seen {
			order = append(order, key)
		}
		out[key] = jsonValue(v)
		return true
	})
	return order
}

func hasKeys(obj gjson.Result) bool {
	found := false
	obj.ForEach(func(_, _ gjson.Result) bool {
		found = true
		return false
	})
	return found
}

// jsonValue converts a leaf to the values encoding/json produces with
// UseNumber, so number text survives untouched.
func jsonValue(v gjson.Result) any {
	switch v.Type {
	case gjson.Null:
		return nil
	case gjson.True:
		return true
	case gjson.False:
		return false
	case gjson.Number:
		return json.Number(v.Raw)
	case gjson.String:
		return v.String()
	default:
		dec := json.NewDecoder(strings.NewReader(v.Raw))
		dec.UseNumber()
		var out any
		if err := dec.Decode(&out); err != nil {
			return v.Raw
		}
		return out
	}
}

// scalarCell renders JSON scalars as text; nested values and nulls pass through.
func scalarCell(v any) any {
	switch t := v.(type) {
	case nil:
		return nil
	case string:
		return t
	case json.Number:
		return t.String()
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return v
	}
}
