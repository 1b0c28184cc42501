// Package probe samples a tabular file and reports what the ingest engine
// would make of it: detected format, encoding, delimiter, the sanitized
// columns with inferred types, and per-column uniqueness.
//
// Probing has no side effects: nothing is uploaded and no catalog is touched.
package probe

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"

	"lakehouse/internal/format"
	"lakehouse/internal/normalize"
	"lakehouse/internal/schema"
	"lakehouse/internal/tabular"
)

// DefaultMaxBytes bounds how much of a source is read when Options.MaxBytes
// is not set.
const DefaultMaxBytes = 64 << 20

// ErrNotTabular is returned for documents and images; only CSV, JSON and
// Parquet sources produce a table.
var ErrNotTabular = errors.New("not a tabular format")

// Options controls a probe run.
type Options struct {
	// Source is a local path, a file:// URL or an http(s):// URL.
	Source string
	// MaxBytes to read from the start of the source. CSV and JSON samples
	// are cut back to the last complete line; Parquet must fit entirely.
	MaxBytes int
	// MinConfidence is passed to the tabular reader.
	MinConfidence float64
	// AllowInsecureTLS skips certificate verification for https sources.
	AllowInsecureTLS bool
}

// Report is the outcome of a probe.
type Report struct {
	Source      string          `json:"source"`
	Family      format.Family   `json:"format"`
	Encoding    string          `json:"encoding,omitempty"`
	Delimiter   string          `json:"delimiter,omitempty"`
	Truncated   bool            `json:"truncated"`
	Table       string          `json:"table_name"`
	Columns     []schema.Column `json:"columns"`
	Rows        int             `json:"row_count"`
	DroppedRows int             `json:"dropped_rows"`
	Coerced     int             `json:"coerced_cells"`
	Uniqueness  []Uniqueness    `json:"uniqueness"`
	// KeyCandidates are columns whose sampled values are all present and
	// distinct.
	KeyCandidates []string `json:"key_candidates"`
}

// peekFn fetches at most n bytes of src and reports whether more remained.
// Tests replace it to avoid real I/O.
var peekFn = peek

// Run probes opt.Source.
func Run(ctx context.Context, opt Options) (*Report, error) {
	if strings.TrimSpace(opt.Source) == "" {
		return nil, errors.New("probe: empty source")
	}
	n := opt.MaxBytes
	if n <= 0 {
		n = DefaultMaxBytes
	}

	data, truncated, err := peekFn(ctx, opt.Source, n, opt.AllowInsecureTLS)
	if err != nil {
		return nil, fmt.Errorf("probe: fetch %s: %w", opt.Source, err)
	}

	name := sourceName(opt.Source)
	fam, err := format.Detect(name, data)
	if err != nil {
		return nil, fmt.Errorf("probe: %w", err)
	}
	if !fam.Tabular() {
		return nil, fmt.Errorf("probe: %s is %s: %w", name, fam, ErrNotTabular)
	}
	if truncated {
		if fam == format.Parquet {
			return nil, fmt.Errorf("probe: parquet source larger than %d bytes cannot be sampled", n)
		}
		data = cutToLastNewline(data)
	}

	r := &tabular.Reader{MinConfidence: opt.MinConfidence}
	t, err := r.Read(data, fam)
	if err != nil {
		return nil, fmt.Errorf("probe: %w", err)
	}
	typed, st := normalize.Normalize(t, normalize.TableName(name))

	rep := &Report{
		Source:      opt.Source,
		Family:      fam,
		Encoding:    t.Encoding,
		Truncated:   truncated,
		Table:       typed.Name,
		Columns:     typed.Columns,
		Rows:        len(typed.Rows),
		DroppedRows: st.DroppedRows,
		Coerced:     st.Coerced,
	}
	if t.Delimiter != 0 {
		rep.Delimiter = string(t.Delimiter)
	}
	rep.Uniqueness = uniqueness(typed)
	rep.KeyCandidates = keyCandidates(rep.Uniqueness, rep.Rows)
	return rep, nil
}

// sourceName is the object-style name used for detection and table naming.
func sourceName(src string) string {
	if i := strings.Index(src, "://"); i >= 0 {
		src = src[i+3:]
		if j := strings.IndexAny(src, "?#"); j >= 0 {
			src = src[:j]
		}
	}
	return path.Base(strings.ReplaceAll(src, "\\", "/"))
}

func cutToLastNewline(b []byte) []byte {
	if i := bytes.LastIndexByte(b, '\n'); i > 0 {
		return b[:i+1]
	}
	return b
}

func peek(ctx context.Context, src string, n int, insecure bool) ([]byte, bool, error) {
	switch {
	case strings.HasPrefix(src, "http://"), strings.HasPrefix(src, "https://"):
		return peekHTTP(ctx, src, n, insecure)
	default:
		f, err := os.Open(strings.TrimPrefix(src, "file://"))
		if err != nil {
			return nil, false, err
		}
		defer f.Close()
		return readLimited(f, n)
	}
}

// readLimited reads up to n bytes and reports whether the reader had more.
func readLimited(r io.Reader, n int) ([]byte, bool, error) {
	b, err := io.ReadAll(io.LimitReader(r, int64(n)+1))
	if err != nil {
		return nil, false, err
	}
	if len(b) > n {
		return b[:n], true, nil
	}
	return b, false, nil
}

type statusError struct{ code int }

func (e statusError) Error() string { return fmt.Sprintf("http status %d", e.code) }

func peekHTTP(ctx context.Context, url string, n int, insecure bool) ([]byte, bool, error) {
	tr := http.DefaultTransport.(*http.Transport).Clone()
	if insecure {
		tr.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // opt-in flag
	}
	client := &http.Client{Transport: tr, Timeout: 60 * time.Second}

	type result struct {
		data      []byte
		truncated bool
	}
	res, err := retry.DoWithData(func() (result, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return result{}, retry.Unrecoverable(err)
		}
		req.Header.Set("Range", fmt.Sprintf("bytes=0-%d", n))
		resp, err := client.Do(req)
		if err != nil {
			return result{}, err
		}
		defer resp.Body.Close()
		if resp.StatusCode >= 300 {
			err := statusError{resp.StatusCode}
			if resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
				return result{}, retry.Unrecoverable(err)
			}
			return result{}, err
		}
		b, more, err := readLimited(resp.Body, n)
		return result{b, more}, err
	},
		retry.Context(ctx),
		retry.Attempts(3),
		retry.Delay(500*time.Millisecond),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return nil, false, err
	}
	return res.data, res.truncated, nil
}

// Uniqueness is the distinct-value profile of one column.
type Uniqueness struct {
	Column   string  `json:"column"`
	Present  int     `json:"present"`
	Distinct int     `json:"distinct"`
	Ratio    float64 `json:"ratio"`
	Capped   bool    `json:"capped"`
}

const distinctCap = 10000

// uniqueness counts non-null and distinct values per column. Distinct
// counting stops at distinctCap to bound memory on high-cardinality columns.
func uniqueness(t *schema.Table) []Uniqueness {
	out := make([]Uniqueness, len(t.Columns))
	for ci, c := range t.Columns {
		u := Uniqueness{Column: c.Name}
		seen := make(map[string]struct{})
		for _, row := range t.Rows {
			v := row[ci]
			if v == nil {
				continue
			}
			u.Present++
			if u.Capped {
				continue
			}
			seen[cellKey(v)] = struct{}{}
			if len(seen) >= distinctCap {
				u.Capped = true
				seen = nil
			}
		}
		u.Distinct = len(seen)
		if u.Capped {
			u.Distinct = distinctCap
		}
		if u.Present > 0 {
			u.Ratio = float64(u.Distinct) / float64(u.Present)
		}
		out[ci] = u
	}
	return out
}

func cellKey(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case time.Time:
		return x.UTC().Format(time.RFC3339Nano)
	default:
		return fmt.Sprint(v)
	}
}

func keyCandidates(us []Uniqueness, rows int) []string {
	var out []string
	for _, u := range us {
		if rows > 1 && u.Present == rows && u.Distinct == rows && !u.Capped {
			out = append(out, u.Column)
		}
	}
	return out
}

// Text renders the report for terminals.
func (r *Report) Text() string {
	var b strings.Builder
	fmt.Fprintf(&b, "source:    %s\n", r.Source)
	fmt.Fprintf(&b, "format:    %s", r.Family)
	if r.Encoding != "" {
		fmt.Fprintf(&b, " (encoding=%s", r.Encoding)
		if r.Delimiter != "" {
			fmt.Fprintf(&b, " delimiter=%q", r.Delimiter)
		}
		b.WriteString(")")
	}
	b.WriteString("\n")
	fmt.Fprintf(&b, "table:     %s\n", r.Table)
	fmt.Fprintf(&b, "rows:      %d (dropped=%d coerced=%d truncated=%t)\n\n", r.Rows, r.DroppedRows, r.Coerced, r.Truncated)

	fmt.Fprintf(&b, "%-30s\t%-10s\t%s\n", "column", "type", "source")
	for _, c := range r.Columns {
		fmt.Fprintf(&b, "%-30s\t%-10s\t%s\n", c.Name, c.Type, c.Source)
	}

	rows := append([]Uniqueness(nil), r.Uniqueness...)
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].Ratio == rows[j].Ratio {
			return rows[i].Column < rows[j].Column
		}
		return rows[i].Ratio < rows[j].Ratio
	})
	fmt.Fprintf(&b, "\nuniqueness report:\tsampled_rows=%d\n", r.Rows)
	fmt.Fprintf(&b, "%-30s\t%-7s\t%-7s\tratio\tcapped\n", "column", "unique", "rows")
	for _, u := range rows {
		if u.Present == 0 {
			continue
		}
		fmt.Fprintf(&b, "%-30s\t%-7d\t%-7d\t%.1f%%\t%t\n", u.Column, u.Distinct, u.Present, u.Ratio*100, u.Capped)
	}
	if len(r.KeyCandidates) > 0 {
		fmt.Fprintf(&b, "\nkey candidates: %s\n", strings.Join(r.KeyCandidates, ", "))
	}
	return b.String()
}
