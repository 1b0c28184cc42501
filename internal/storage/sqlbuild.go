package storage

import (
	"fmt"
	"hash/fnv"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"lakehouse/internal/schema"
)

// Dialect selects identifier quoting, placeholders and column types for the
// dynamically named data tables. Catalog tables use fixed SQL per backend;
// everything built here binds values and validates identifiers.
type Dialect int

const (
	Postgres Dialect = iota
	SQLite
	SQLServer
)

func (d Dialect) String() string {
	switch d {
	case Postgres:
		return "postgres"
	case SQLite:
		return "sqlite"
	case SQLServer:
		return "mssql"
	default:
		return "dialect(" + strconv.Itoa(int(d)) + ")"
	}
}

// maxParams is the bind-parameter limit per statement.
func (d Dialect) maxParams() int {
	switch d {
	case SQLServer:
		return 2000
	case SQLite:
		return 32000
	default:
		return 65000
	}
}

var identPattern = regexp.MustCompile(`^[\p{L}_][\p{L}\p{N}_]*$`)

// ValidIdentifier rejects anything that is not a sanitized table or column
// name: letters, digits and underscores, not starting with a digit, at most
// 63 bytes.
func ValidIdentifier(name string) error {
	if name == "" {
		return fmt.Errorf("empty identifier")
	}
	if len(name) > 63 {
		return fmt.Errorf("identifier %q exceeds 63 bytes", name)
	}
	if !identPattern.MatchString(name) {
		return fmt.Errorf("identifier %q contains disallowed characters", name)
	}
	return nil
}

// QuoteIdent validates and quotes a single identifier.
func (d Dialect) QuoteIdent(name string) (string, error) {
	if err := ValidIdentifier(name); err != nil {
		return "", err
	}
	if d == SQLServer {
		return "[" + name + "]", nil
	}
	return `"` + name + `"`, nil
}

// Placeholder returns the n-th (1-based) bind marker.
func (d Dialect) Placeholder(n int) string {
	switch d {
	case Postgres:
		return "$" + strconv.Itoa(n)
	case SQLServer:
		return "@p" + strconv.Itoa(n)
	default:
		return "?"
	}
}

// ColumnType maps an inferred type to the dialect's column type.
func (d Dialect) ColumnType(t schema.Type) string {
	switch d {
	case SQLite:
		switch t {
		case schema.Integer, schema.BigInt, schema.Boolean:
			return "INTEGER"
		case schema.Numeric:
			return "REAL"
		default:
			return "TEXT"
		}
	case SQLServer:
		switch t {
		case schema.Integer:
			return "INT"
		case schema.BigInt:
			return "BIGINT"
		case schema.Numeric:
			return "FLOAT"
		case schema.Timestamp:
			return "DATETIME2"
		case schema.Boolean:
			return "BIT"
		default:
			return "NVARCHAR(MAX)"
		}
	default:
		switch t {
		case schema.JSON:
			return "JSONB"
		case "":
			return "TEXT"
		default:
			return string(t)
		}
	}
}

// DropTableSQL builds DROP TABLE IF EXISTS for a data table.
func (d Dialect) DropTableSQL(table string) (string, error) {
	q, err := d.QuoteIdent(table)
	if err != nil {
		return "", err
	}
	return "DROP TABLE IF EXISTS " + q, nil
}

// CreateTableSQL builds CREATE TABLE for a normalized table. Every column
// is nullable.
func (d Dialect) CreateTableSQL(t *schema.Table) (string, error) {
	if len(t.Columns) == 0 {
		return "", fmt.Errorf("table %q has no columns", t.Name)
	}
	q, err := d.QuoteIdent(t.Name)
	if err != nil {
		return "", err
	}
	defs := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		cq, err := d.QuoteIdent(c.Name)
		if err != nil {
			return "", err
		}
		defs[i] = cq + " " + d.ColumnType(c.Type) + " NULL"
	}
	return "CREATE TABLE " + q + " (" + strings.Join(defs, ", ") + ")", nil
}

// InsertSQL builds a multi-row INSERT for nrows rows of the given columns.
// Placeholders are numbered row-major starting at 1.
func (d Dialect) InsertSQL(table string, columns []string, nrows int) (string, error) {
	q, err := d.QuoteIdent(table)
	if err != nil {
		return "", err
	}
	if len(columns) == 0 || nrows <= 0 {
		return "", fmt.Errorf("insert into %q: no columns or rows", table)
	}

	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(q)
	b.WriteString(" (")
	for i, c := range columns {
		cq, err := d.QuoteIdent(c)
		if err != nil {
			return "", err
		}
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(cq)
	}
	b.WriteString(") VALUES ")

	p := 1
	for r := 0; r < nrows; r++ {
		if r > 0 {
			b.WriteString(", ")
		}
		b.WriteString("(")
		for j := range columns {
			if j > 0 {
				b.WriteString(", ")
			}
			b.WriteString(d.Placeholder(p))
			p++
		}
		b.WriteString(")")
	}
	return b.String(), nil
}

// BatchRows is the largest row count per INSERT that stays under the
// dialect's parameter limit.
func (d Dialect) BatchRows(ncols int) int {
	if ncols <= 0 {
		return 1
	}
	n := d.maxParams() / ncols
	if n < 1 {
		return 1
	}
	if n > 1000 && d == SQLServer {
		// T-SQL VALUES lists cap at 1000 rows
		n = 1000
	}
	return n
}

// BindValue adapts a typed cell for the dialect's driver.
func (d Dialect) BindValue(v any) any {
	if d != SQLite {
		return v
	}
	switch t := v.(type) {
	case time.Time:
		return t.UTC().Format(time.RFC3339Nano)
	case bool:
		if t {
			return int64(1)
		}
		return int64(0)
	default:
		return v
	}
}

// LockKey maps a content hash to the signed 64-bit key used by advisory locks.
func LockKey(hash string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(hash))
	return int64(h.Sum64())
}

// SchemaGuard runs a schema-creation func until it succeeds once. Concurrent
// callers wait for the in-flight attempt; a failed attempt is retried by the
// next caller.
type SchemaGuard struct {
	mu   sync.Mutex
	done bool
}

// Ensure calls fn unless a previous call succeeded.
func (g *SchemaGuard) Ensure(fn func() error) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.done {
		return nil
	}
	if err := fn(); err != nil {
		return err
	}
	g.done = true
	return nil
}
