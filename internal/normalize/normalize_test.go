package normalize

import (
	"reflect"
	"strings"
	"testing"
	"time"

	"lakehouse/internal/schema"
	"lakehouse/internal/storage"
	"lakehouse/internal/tabular"
)

// TestSanitizeIdentifier covers the header rules and their idempotence.
func TestSanitizeIdentifier(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"Order #2023", "order__2023"},
		{"  First Name ", "first_name"},
		{"2023 total", "col_2023_total"},
		{"price($)", "price"},
		{"a\t\tb", "a_b"},
		{"Größe", "größe"},
		{"", "unnamed_column"},
		{"###", "unnamed_column"},
		{"already_clean", "already_clean"},
		{"²nd pass", "col_²nd_pass"},
		{"İD", "id"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			got := SanitizeIdentifier(tt.in)
			if got != tt.want {
				t.Fatalf("SanitizeIdentifier(%q) = %q, want %q", tt.in, got, tt.want)
			}
			if again := SanitizeIdentifier(got); again != got {
				t.Fatalf("SanitizeIdentifier(%q) = %q, not idempotent", got, again)
			}
		})
	}
}

// TestSanitizeColumns verifies collisions get first-seen numeric suffixes and
// never collide with an existing column.
func TestSanitizeColumns(t *testing.T) {
	t.Parallel()

	got := SanitizeColumns([]string{"Name", "name", "NAME ", "name_1", "", "?"})
	want := []string{"name", "name_1", "name_2", "name_1_1", "unnamed_column", "unnamed_column_1"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("SanitizeColumns = %v, want %v", got, want)
	}
}

// TestSanitizeColumns_AlwaysValidIdentifiers verifies every generated column
// name is accepted by the catalog's identifier check, including long headers,
// collisions that need a suffix at the length limit, and headers that start
// with a non-decimal digit.
func TestSanitizeColumns_AlwaysValidIdentifiers(t *testing.T) {
	t.Parallel()

	long := "How satisfied were you with the onboarding experience during your first week"
	tests := []struct {
		name    string
		headers []string
	}{
		{"long header", []string{long}},
		{"long collisions", []string{long, long + "?", long + "!", long + " (again)"}},
		{"multibyte at the cut", []string{strings.Repeat("é", 40), strings.Repeat("é", 41)}},
		{"non-decimal digits", []string{"²nd pass", "Ⅻ chapter", "٣ items"}},
		{"dotted capital i", []string{"İstanbul", "DİL"}},
		{"flattened nested key", []string{"customer.billing_address.secondary_contact.preferred_language_code"}},
		{"ten collisions", []string{long, long, long, long, long, long, long, long, long, long, long}},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := SanitizeColumns(tt.headers)
			seen := map[string]bool{}
			for i, name := range got {
				if err := storage.ValidIdentifier(name); err != nil {
					t.Fatalf("SanitizeColumns(%q)[%d] = %q: %v", tt.headers, i, name, err)
				}
				if seen[name] {
					t.Fatalf("SanitizeColumns(%q) repeats %q", tt.headers, name)
				}
				seen[name] = true
			}
		})
	}
}

// TestSanitizeIdentifier_Truncates verifies long names are cut to the limit on
// a rune boundary and stay idempotent.
func TestSanitizeIdentifier_Truncates(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{strings.Repeat("a", 70), strings.Repeat("a", 63)},
		{strings.Repeat("a", 62) + " b", strings.Repeat("a", 62)},
		{strings.Repeat("ß", 40), strings.Repeat("ß", 31)},
	}
	for _, tt := range tests {
		got := SanitizeIdentifier(tt.in)
		if got != tt.want {
			t.Fatalf("SanitizeIdentifier(%q) = %q, want %q", tt.in, got, tt.want)
		}
		if again := SanitizeIdentifier(got); again != got {
			t.Fatalf("SanitizeIdentifier(%q) = %q, not idempotent", got, again)
		}
	}
}

func TestTableName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"raw/structured/Sales Report 2024.csv", "data_sales_report_2024"},
		{"processed/structured/report_x_table_1.csv", "data_report_x_table_1"},
		{"noext", "data_noext"},
		{"dir/archive.tar.gz", "data_archive_tar"},
		{"raw/" + strings.Repeat("é", 40) + ".csv", "data_" + strings.Repeat("é", 29)},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			got := TableName(tt.in)
			if got != tt.want {
				t.Fatalf("TableName(%q) = %q, want %q", tt.in, got, tt.want)
			}
			if len(got) > MaxIdentifierLen {
				t.Fatalf("TableName(%q) has %d bytes", tt.in, len(got))
			}
		})
	}
}

// TestInfer walks the predicate chain in order.
func TestInfer(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   []any
		want schema.Type
	}{
		{"empty", nil, schema.Text},
		{"nested", []any{"x", map[string]any{"a": 1}}, schema.JSON},
		{"json-like strings", []any{`{"a":1}`, `[1]`, `{"b":2}`, `[]`, "plain"}, schema.JSON},
		{"json-like below ratio", []any{`{"a":1}`, "x", "y", "z", "w"}, schema.Text},
		{"int32", []any{"1", "-20", "300"}, schema.Integer},
		{"integral floats", []any{"1.0", "2"}, schema.Integer},
		{"bigint", []any{"1", "3000000000"}, schema.BigInt},
		{"numeric", []any{"1.5", "2"}, schema.Numeric},
		{"exponent", []any{"1e3", "2.5E-2"}, schema.Numeric},
		{"numbers beat booleans", []any{"1", "0"}, schema.Integer},
		{"iso dates", []any{"2024-01-02", "2024-02-03T04:05:06Z"}, schema.Timestamp},
		{"booleans", []any{"True", "false", "TRUE"}, schema.Boolean},
		{"yes no", []any{"yes", "no"}, schema.Boolean},
		{"three bool tokens", []any{"yes", "no", "t"}, schema.Text},
		{"text", []any{"alice", "bob"}, schema.Text},
		{"inf is text", []any{"inf"}, schema.Text},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := Infer(tt.in); got != tt.want {
				t.Fatalf("Infer(%v) = %s, want %s", tt.in, got, tt.want)
			}
		})
	}
}

// TestClean verifies null tokens, trimming and all-null row removal.
func TestClean(t *testing.T) {
	t.Parallel()

	in := [][]any{
		{" a ", "NULL"},
		{"N/A", " "},
		{"nan", nil},
		{"x"},
	}
	got := Clean(in, 2)
	want := [][]any{{"a", nil}, {"x", nil}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Clean = %v, want %v", got, want)
	}
	if in[0][0] != " a " {
		t.Fatalf("Clean modified its input")
	}
}

// TestNormalize checks names, types and converted cells end to end.
func TestNormalize(t *testing.T) {
	t.Parallel()

	in := &tabular.Table{
		Columns: []string{"Order #", "Amount", "Paid", "When", "Tags", "Note"},
		Rows: [][]any{
			{"1", "10.5", "yes", "2024-01-02", []any{"a"}, "hi"},
			{"2", "NA", "no", "2024-01-03 10:00:00", nil, " there "},
			{"", "", "", "", nil, "None"},
		},
	}
	out, st := Normalize(in, "data_orders")

	if out.Name != "data_orders" {
		t.Fatalf("Name = %q", out.Name)
	}
	if st.DroppedRows != 1 || st.Coerced != 0 {
		t.Fatalf("Stats = %+v, want 1 dropped and 0 coerced", st)
	}
	wantCols := []schema.Column{
		{Name: "order", Source: "Order #", Type: schema.Integer},
		{Name: "amount", Source: "Amount", Type: schema.Numeric},
		{Name: "paid", Source: "Paid", Type: schema.Boolean},
		{Name: "when", Source: "When", Type: schema.Timestamp},
		{Name: "tags", Source: "Tags", Type: schema.JSON},
		{Name: "note", Source: "Note", Type: schema.Text},
	}
	if !reflect.DeepEqual(out.Columns, wantCols) {
		t.Fatalf("Columns = %+v, want %+v", out.Columns, wantCols)
	}
	if len(out.Rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(out.Rows))
	}
	r0, r1 := out.Rows[0], out.Rows[1]
	if r0[0] != int64(1) || r0[1] != 10.5 || r0[2] != true || r0[4] != `["a"]` || r0[5] != "hi" {
		t.Fatalf("row0 = %#v", r0)
	}
	if !r0[3].(time.Time).Equal(time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("row0 when = %v", r0[3])
	}
	if r1[1] != nil || r1[2] != false || r1[4] != nil || r1[5] != "there" {
		t.Fatalf("row1 = %#v", r1)
	}
}

// TestNormalize_CoercesOutOfSampleTimestamps verifies values past the
// inference sample that do not parse become NULL and are counted.
func TestNormalize_CoercesOutOfSampleTimestamps(t *testing.T) {
	t.Parallel()

	in := &tabular.Table{Columns: []string{"d"}}
	for i := 0; i < 10; i++ {
		in.Rows = append(in.Rows, []any{"2024-01-01"})
	}
	in.Rows = append(in.Rows, []any{"not a date"})

	out, st := Normalize(in, "data_d")
	if out.Columns[0].Type != schema.Timestamp {
		t.Fatalf("type = %s, want TIMESTAMP", out.Columns[0].Type)
	}
	if st.Coerced != 1 || out.Rows[10][0] != nil {
		t.Fatalf("Coerced = %d, last cell = %v", st.Coerced, out.Rows[10][0])
	}
}

func TestJSONText(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   any
		want string
	}{
		{`{"a":1}`, `{"a":1}`},
		{"plain", `"plain"`},
		{map[string]any{"b": 1, "a": []any{true}}, `{"a":[true],"b":1}`},
	}
	for _, tt := range tests {
		if got := jsonText(tt.in); got != tt.want {
			t.Fatalf("jsonText(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
