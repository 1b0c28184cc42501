package tabular

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/parquet-go/parquet-go"
	"github.com/parquet-go/parquet-go/format"
)

const parquetReadBatch = 256

// parseParquet decodes every row group. Leaf columns are named by their
// dotted path; repeated leaves become nested []any cells. Cells are rendered
// through the column's logical type, so decimals, timestamps and dates reach
// the normalizer in the same textual form a CSV would carry them.
func parseParquet(data []byte) ([]string, [][]any, error) {
	f, err := parquet.OpenFile(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, nil, fmt.Errorf("open parquet: %w", err)
	}

	paths := f.Schema().Columns()
	columns := make([]string, len(paths))
	render := make([]cellRenderer, len(paths))
	for i, p := range paths {
		columns[i] = strings.Join(p, ".")
		render[i] = parquetScalar
		if leaf, ok := f.Schema().Lookup(p...); ok && leaf.Node != nil {
			render[i] = rendererFor(leaf.Node.Type().LogicalType())
		}
	}

	var rows [][]any
	buf := make([]parquet.Row, parquetReadBatch)
	for _, rg := range f.RowGroups() {
		rr := rg.Rows()
		for {
			n, err := rr.ReadRows(buf)
			for _, r := range buf[:n] {
				rows = append(rows, parquetRow(r, render))
			}
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				_ = rr.Close()
				return nil, nil, fmt.Errorf("read parquet rows: %w", err)
			}
			if n == 0 {
				break
			}
		}
		if err := rr.Close(); err != nil {
			return nil, nil, fmt.Errorf("close parquet rows: %w", err)
		}
	}
	return columns, rows, nil
}

func parquetRow(r parquet.Row, render []cellRenderer) []any {
	out := make([]any, len(render))
	for _, v := range r {
		col := v.Column()
		if col < 0 || col >= len(render) || v.IsNull() {
			continue
		}
		cell := render[col](v)
		switch prev := out[col].(type) {
		case nil:
			out[col] = cell
		case []any:
			out[col] = append(prev, cell)
		default:
			out[col] = []any{prev, cell}
		}
	}
	return out
}

type cellRenderer func(parquet.Value) string

// rendererFor picks the text rendering of one leaf column. Columns without a
// logical type (or with one that changes nothing, like STRING) fall back to
// the physical value.
func rendererFor(lt *format.LogicalType) cellRenderer {
	switch {
	case lt == nil:
		return parquetScalar
	case lt.Decimal != nil:
		scale := int(lt.Decimal.Scale)
		return func(v parquet.Value) string { return decimalString(unscaled(v), scale) }
	case lt.Timestamp != nil:
		unit, utc := lt.Timestamp.Unit, lt.Timestamp.IsAdjustedToUTC
		return func(v parquet.Value) string {
			t := fromEpoch(v.Int64(), unit)
			if utc {
				return t.Format(time.RFC3339Nano)
			}
			return t.Format(localTimestampLayout)
		}
	case lt.Date != nil:
		return func(v parquet.Value) string {
			return time.Unix(int64(v.Int32())*secondsPerDay, 0).UTC().Format(time.DateOnly)
		}
	case lt.Time != nil:
		unit := lt.Time.Unit
		return func(v parquet.Value) string {
			var since int64
			if v.Kind() == parquet.Int32 {
				since = int64(v.Int32())
			} else {
				since = v.Int64()
			}
			return fromEpoch(since, unit).Format("15:04:05.999999999")
		}
	case lt.UUID != nil:
		return func(v parquet.Value) string {
			id, err := uuid.FromBytes(v.ByteArray())
			if err != nil {
				return parquetScalar(v)
			}
			return id.String()
		}
	case lt.Integer != nil && !lt.Integer.IsSigned:
		return func(v parquet.Value) string {
			if v.Kind() == parquet.Int32 {
				return strconv.FormatUint(uint64(uint32(v.Int32())), 10)
			}
			return strconv.FormatUint(uint64(v.Int64()), 10)
		}
	default:
		return parquetScalar
	}
}

const (
	secondsPerDay = 24 * 60 * 60
	// julianUnixEpoch is the Julian day number of 1970-01-01, the day base of
	// legacy INT96 timestamps.
	julianUnixEpoch = 2440588

	localTimestampLayout = "2006-01-02T15:04:05.999999999"
)

func fromEpoch(n int64, unit format.TimeUnit) time.Time {
	switch {
	case unit.Millis != nil:
		return time.UnixMilli(n).UTC()
	case unit.Micros != nil:
		return time.UnixMicro(n).UTC()
	default:
		return time.Unix(0, n).UTC()
	}
}

// unscaled returns the integer a DECIMAL value stores. Byte-array decimals
// are big-endian two's complement.
func unscaled(v parquet.Value) *big.Int {
	switch v.Kind() {
	case parquet.Int32:
		return big.NewInt(int64(v.Int32()))
	case parquet.Int64:
		return big.NewInt(v.Int64())
	default:
		b := v.ByteArray()
		n := new(big.Int).SetBytes(b)
		if len(b) > 0 && b[0]&0x80 != 0 {
			n.Sub(n, new(big.Int).Lsh(big.NewInt(1), uint(8*len(b))))
		}
		return n
	}
}

// decimalString renders n * 10^-scale exactly.
func decimalString(n *big.Int, scale int) string {
	neg := n.Sign() < 0
	digits := new(big.Int).Abs(n).String()
	switch {
	case scale <= 0:
		digits += strings.Repeat("0", -scale)
	default:
		if len(digits) <= scale {
			digits = strings.Repeat("0", scale-len(digits)+1) + digits
		}
		digits = digits[:len(digits)-scale] + "." + digits[len(digits)-scale:]
	}
	if neg {
		return "-" + digits
	}
	return digits
}

func parquetScalar(v parquet.Value) string {
	switch v.Kind() {
	case parquet.Boolean:
		return strconv.FormatBool(v.Boolean())
	case parquet.Int32:
		return strconv.FormatInt(int64(v.Int32()), 10)
	case parquet.Int64:
		return strconv.FormatInt(v.Int64(), 10)
	case parquet.Int96:
		// Legacy Spark/Impala timestamps: nanoseconds of day plus Julian day.
		w := v.Int96()
		nanos := int64(w[1])<<32 | int64(w[0])
		days := int64(w[2]) - julianUnixEpoch
		return time.Unix(days*secondsPerDay, nanos).UTC().Format(time.RFC3339Nano)
	case parquet.Float:
		return strconv.FormatFloat(float64(v.Float()), 'f', -1, 32)
	case parquet.Double:
		return strconv.FormatFloat(v.Double(), 'f', -1, 64)
	case parquet.ByteArray, parquet.FixedLenByteArray:
		return string(v.ByteArray())
	default:
		return v.String()
	}
}
