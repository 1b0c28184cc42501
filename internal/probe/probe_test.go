package probe

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"lakehouse/internal/format"
	"lakehouse/internal/schema"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(p, []byte(body), 0o600); err != nil {
		t.Fatalf("write %s: %v", p, err)
	}
	return p
}

// TestRun_CSV verifies detection, typing and the uniqueness profile of a
// small semicolon-delimited CSV.
func TestRun_CSV(t *testing.T) {
	t.Parallel()

	src := writeFile(t, "Sales 2024.csv", strings.Join([]string{
		"Order ID;Region;Amount;Shipped",
		"1;north;10.5;true",
		"2;north;11.25;false",
		"3;south;12;true",
		"4;;13;false",
		"",
	}, "\n"))

	rep, err := Run(context.Background(), Options{Source: src})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if rep.Family != format.CSV || rep.Delimiter != ";" {
		t.Fatalf("format = %s delimiter = %q, want csv ;", rep.Family, rep.Delimiter)
	}
	if rep.Table != "data_sales_2024" {
		t.Fatalf("table = %q, want %q", rep.Table, "data_sales_2024")
	}
	if rep.Rows != 4 {
		t.Fatalf("rows = %d, want 4", rep.Rows)
	}

	want := []schema.Column{
		{Name: "order_id", Source: "Order ID", Type: schema.Integer},
		{Name: "region", Source: "Region", Type: schema.Text},
		{Name: "amount", Source: "Amount", Type: schema.Numeric},
		{Name: "shipped", Source: "Shipped", Type: schema.Boolean},
	}
	if len(rep.Columns) != len(want) {
		t.Fatalf("columns = %+v", rep.Columns)
	}
	for i, c := range want {
		if rep.Columns[i] != c {
			t.Fatalf("column %d = %+v, want %+v", i, rep.Columns[i], c)
		}
	}

	region := rep.Uniqueness[1]
	if region.Present != 3 || region.Distinct != 2 {
		t.Fatalf("region uniqueness = %+v, want present=3 distinct=2", region)
	}
	if len(rep.KeyCandidates) != 2 || rep.KeyCandidates[0] != "order_id" || rep.KeyCandidates[1] != "amount" {
		t.Fatalf("key candidates = %q, want [order_id amount]", rep.KeyCandidates)
	}
	if !strings.Contains(rep.Text(), "uniqueness report:") {
		t.Fatalf("Text() missing uniqueness section:\n%s", rep.Text())
	}
}

// TestRun_TruncatedSample ensures a bounded read drops the partial last line.
func TestRun_TruncatedSample(t *testing.T) {
	t.Parallel()

	body := "id,name\n1,alpha\n2,beta\n3,gamma\n"
	src := writeFile(t, "names.csv", body)

	// Stop in the middle of "3,gamma".
	rep, err := Run(context.Background(), Options{Source: "file://" + src, MaxBytes: len(body) - 4})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !rep.Truncated || rep.Rows != 2 {
		t.Fatalf("truncated=%t rows=%d, want true 2", rep.Truncated, rep.Rows)
	}
}

// TestRun_Errors checks the failure modes that never reach the reader.
func TestRun_Errors(t *testing.T) {
	t.Parallel()

	pdf := writeFile(t, "report.pdf", "%PDF-1.4")
	exe := writeFile(t, "tool.exe", "MZ")

	tests := []struct {
		name string
		src  string
		want error
	}{
		{"document", pdf, ErrNotTabular},
		{"unsupported", exe, format.ErrUnsupported},
		{"missing", filepath.Join(t.TempDir(), "nope.csv"), os.ErrNotExist},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := Run(context.Background(), Options{Source: tt.src})
			if !errors.Is(err, tt.want) {
				t.Fatalf("Run(%q) = %v, want %v", tt.src, err, tt.want)
			}
		})
	}
}

// TestRun_HTTP covers URL sources, including a retried 5xx response.
func TestRun_HTTP(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			http.Error(w, "busy", http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`[{"id": 1, "tags": {"a": 1}}, {"id": 2, "tags": {"a": 2}}]`))
	}))
	defer srv.Close()

	rep, err := Run(context.Background(), Options{Source: srv.URL + "/export/items.json?token=x"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if rep.Family != format.JSON || rep.Table != "data_items" || rep.Rows != 2 {
		t.Fatalf("report = %+v", rep)
	}
	if calls.Load() != 2 {
		t.Fatalf("calls = %d, want 2", calls.Load())
	}
}

// TestSourceName validates name extraction from paths and URLs.
func TestSourceName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in, want string
	}{
		{"data/sales.csv", "sales.csv"},
		{`C:\exports\sales.csv`, "sales.csv"},
		{"file:///tmp/x.json", "x.json"},
		{"https://host/a/b.parquet?sig=1#frag", "b.parquet"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			if got := sourceName(tt.in); got != tt.want {
				t.Fatalf("sourceName(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
