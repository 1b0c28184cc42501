package storage

import (
	"errors"
	"strings"
	"testing"

	"lakehouse/internal/schema"
)

var errTest = errors.New("test failure")

// TestQuoteIdent verifies validation and per-dialect quoting.
func TestQuoteIdent(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		d       Dialect
		in      string
		want    string
		wantErr bool
	}{
		{"postgres", Postgres, "data_sales", `"data_sales"`, false},
		{"sqlite", SQLite, "größe", `"größe"`, false},
		{"mssql", SQLServer, "col_2023", "[col_2023]", false},
		{"quote injection", Postgres, `a"b`, "", true},
		{"bracket injection", SQLServer, "a]b", "", true},
		{"space", SQLite, "a b", "", true},
		{"leading digit", Postgres, "1abc", "", true},
		{"empty", Postgres, "", "", true},
		{"too long", Postgres, strings.Repeat("a", 64), "", true},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := tt.d.QuoteIdent(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("QuoteIdent(%q) err = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Fatalf("QuoteIdent(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

// TestInsertSQL verifies placeholder numbering is row-major per dialect.
func TestInsertSQL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		d    Dialect
		want string
	}{
		{Postgres, `INSERT INTO "t" ("a", "b") VALUES ($1, $2), ($3, $4)`},
		{SQLite, `INSERT INTO "t" ("a", "b") VALUES (?, ?), (?, ?)`},
		{SQLServer, `INSERT INTO [t] ([a], [b]) VALUES (@p1, @p2), (@p3, @p4)`},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.d.String(), func(t *testing.T) {
			t.Parallel()
			got, err := tt.d.InsertSQL("t", []string{"a", "b"}, 2)
			if err != nil {
				t.Fatalf("InsertSQL: %v", err)
			}
			if got != tt.want {
				t.Fatalf("InsertSQL = %q, want %q", got, tt.want)
			}
		})
	}

	if _, err := Postgres.InsertSQL("t", nil, 1); err == nil {
		t.Fatalf("InsertSQL with no columns: err = nil")
	}
}

// TestCreateTableSQL_TypeMapping verifies inferred types map per dialect.
func TestCreateTableSQL_TypeMapping(t *testing.T) {
	t.Parallel()

	tbl := &schema.Table{Name: "data_x", Columns: []schema.Column{
		{Name: "i", Type: schema.Integer},
		{Name: "n", Type: schema.Numeric},
		{Name: "b", Type: schema.Boolean},
		{Name: "j", Type: schema.JSON},
	}}
	tests := []struct {
		d    Dialect
		want string
	}{
		{Postgres, `CREATE TABLE "data_x" ("i" INTEGER NULL, "n" NUMERIC NULL, "b" BOOLEAN NULL, "j" JSONB NULL)`},
		{SQLite, `CREATE TABLE "data_x" ("i" INTEGER NULL, "n" REAL NULL, "b" INTEGER NULL, "j" TEXT NULL)`},
		{SQLServer, `CREATE TABLE [data_x] ([i] INT NULL, [n] FLOAT NULL, [b] BIT NULL, [j] NVARCHAR(MAX) NULL)`},
	}
	for _, tt := range tests {
		got, err := tt.d.CreateTableSQL(tbl)
		if err != nil {
			t.Fatalf("%s CreateTableSQL: %v", tt.d, err)
		}
		if got != tt.want {
			t.Fatalf("%s CreateTableSQL = %q, want %q", tt.d, got, tt.want)
		}
	}
}

func TestBatchRows(t *testing.T) {
	t.Parallel()

	if got := SQLServer.BatchRows(1); got != 1000 {
		t.Fatalf("SQLServer.BatchRows(1) = %d, want 1000", got)
	}
	if got := SQLServer.BatchRows(7); got*7 > 2100 {
		t.Fatalf("SQLServer.BatchRows(7) = %d exceeds the parameter limit", got)
	}
	if got := Postgres.BatchRows(100000); got != 1 {
		t.Fatalf("Postgres.BatchRows(100000) = %d, want 1", got)
	}
}

// TestSchemaGuard_RetriesAfterFailure verifies a failed attempt is not cached.
func TestSchemaGuard_RetriesAfterFailure(t *testing.T) {
	t.Parallel()

	var g SchemaGuard
	calls := 0
	fail := true
	fn := func() error {
		calls++
		if fail {
			return errTest
		}
		return nil
	}
	if err := g.Ensure(fn); err == nil {
		t.Fatalf("first Ensure err = nil")
	}
	fail = false
	for i := 0; i < 3; i++ {
		if err := g.Ensure(fn); err != nil {
			t.Fatalf("Ensure: %v", err)
		}
	}
	if calls != 2 {
		t.Fatalf("calls = %d, want 2", calls)
	}
}

func TestLikePatternAndRate(t *testing.T) {
	t.Parallel()

	if got := LikePattern(`50%_off\`); got != `%50\%\_off\\%` {
		t.Fatalf("LikePattern = %q", got)
	}
	if got := Rate(1, 3); got != 33.33 {
		t.Fatalf("Rate(1,3) = %v, want 33.33", got)
	}
	if got := Rate(0, 0); got != 0 {
		t.Fatalf("Rate(0,0) = %v, want 0", got)
	}
	if got := Preview(strings.Repeat("é", PreviewLen+5)); len([]rune(got)) != PreviewLen {
		t.Fatalf("Preview kept %d runes", len([]rune(got)))
	}
}
