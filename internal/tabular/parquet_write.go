package tabular

import (
	"bytes"
	"fmt"
	"sort"
	"time"

	"github.com/parquet-go/parquet-go"

	"lakehouse/internal/schema"
)

// WriteParquet encodes a normalized table as a single-row-group Parquet file.
// Every column is optional; the physical type follows the inferred type.
func WriteParquet(t *schema.Table) ([]byte, error) {
	if t == nil || len(t.Columns) == 0 {
		return nil, fmt.Errorf("write parquet: table has no columns")
	}

	group := parquet.Group{}
	for _, c := range t.Columns {
		group[c.Name] = parquet.Optional(parquetNode(c.Type))
	}
	sch := parquet.NewSchema(t.Name, group)

	// Group fields are laid out in name order; map each table column to its leaf index.
	names := t.ColumnNames()
	sorted := append([]string(nil), names...)
	sort.Strings(sorted)
	leaf := make(map[string]int, len(sorted))
	for i, n := range sorted {
		leaf[n] = i
	}

	var buf bytes.Buffer
	w := parquet.NewWriter(&buf, sch)

	batch := make([]parquet.Row, 0, parquetReadBatch)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if _, err := w.WriteRows(batch); err != nil {
			return err
		}
		batch = batch[:0]
		return nil
	}

	for _, r := range t.Rows {
		row := make(parquet.Row, len(names))
		for i, c := range t.Columns {
			idx := leaf[c.Name]
			var cell any
			if i < len(r) {
				cell = r[i]
			}
			row[idx] = parquetValue(cell).Level(0, definitionLevel(cell), idx)
		}
		batch = append(batch, row)
		if len(batch) == cap(batch) {
			if err := flush(); err != nil {
				return nil, fmt.Errorf("write parquet rows: %w", err)
			}
		}
	}
	if err := flush(); err != nil {
		return nil, fmt.Errorf("write parquet rows: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("close parquet writer: %w", err)
	}
	return buf.Bytes(), nil
}

func parquetNode(t schema.Type) parquet.Node {
	switch t {
	case schema.Integer, schema.BigInt:
		return parquet.Int(64)
	case schema.Numeric:
		return parquet.Leaf(parquet.DoubleType)
	case schema.Boolean:
		return parquet.Leaf(parquet.BooleanType)
	case schema.Timestamp:
		return parquet.Timestamp(parquet.Microsecond)
	default:
		return parquet.String()
	}
}

func definitionLevel(cell any) int {
	if cell == nil {
		return 0
	}
	return 1
}

func parquetValue(cell any) parquet.Value {
	if cell == nil {
		return parquet.NullValue()
	}
	switch v := cell.(type) {
	case int64:
		return parquet.Int64Value(v)
	case float64:
		return parquet.DoubleValue(v)
	case bool:
		return parquet.BooleanValue(v)
	case time.Time:
		return parquet.Int64Value(v.UTC().UnixMicro())
	case string:
		return parquet.ByteArrayValue([]byte(v))
	default:
		return parquet.ByteArrayValue([]byte(fmt.Sprint(v)))
	}
}
