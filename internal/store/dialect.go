package store

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	_ "github.com/denisenkom/go-mssqldb"
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// BindStyle is how a driver spells positional parameters.
type BindStyle int

const (
	BindQuestion BindStyle = iota // ?
	BindDollar                    // $1
	BindAt                        // @p1
)

// Dialect captures the SQL differences between the supported drivers.
type Dialect struct {
	// Name is the database/sql driver name.
	Name string
	Bind BindStyle
	// NameType and TextType are the column types for short names and cell values.
	NameType string
	TextType string
	// SingleConn limits the pool to one connection (embedded databases).
	SingleConn bool

	createTable func(table, body string) string
	limit       func(n int) string
	// upsertCell writes one cell whether or not it exists. Arguments are
	// row id, column id and value.
	upsertCell string
}

var dialects = map[string]Dialect{}

// Register makes a Dialect available under its driver name.
func Register(d Dialect) {
	dialects[strings.ToLower(d.Name)] = d
}

// RegisteredDialects returns the registered driver names, sorted.
func RegisteredDialects() []string {
	keys := make([]string, 0, len(dialects))
	for k := range dialects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Lookup returns the dialect for a driver name or alias.
func Lookup(driver string) (Dialect, error) {
	name := NormalizeDriver(driver)
	d, ok := dialects[name]
	if !ok {
		return Dialect{}, fmt.Errorf("dialect not registered: %q (available: %v)", driver, RegisteredDialects())
	}
	return d, nil
}

// NormalizeDriver maps common aliases to canonical driver names.
func NormalizeDriver(d string) string {
	switch strings.ToLower(strings.TrimSpace(d)) {
	case "", "sqlite", "sqlite3":
		return "sqlite"
	case "postgresql", "pg", "postgres":
		return "postgres"
	case "mysql", "mariadb":
		return "mysql"
	case "mssql", "sqlserver":
		return "sqlserver"
	default:
		return strings.ToLower(strings.TrimSpace(d))
	}
}

// Rebind rewrites ? placeholders into the dialect's bind style. Question
// marks inside single-quoted literals are left alone.
func (d Dialect) Rebind(query string) string {
	if d.Bind == BindQuestion {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 16)
	n := 0
	quoted := false
	for _, r := range query {
		switch {
		case r == '\'':
			quoted = !quoted
			b.WriteRune(r)
		case r == '?' && !quoted:
			n++
			if d.Bind == BindDollar {
				b.WriteString("$")
			} else {
				b.WriteString("@p")
			}
			b.WriteString(strconv.Itoa(n))
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Limit appends a row limit to an ordered query.
func (d Dialect) Limit(query string, n int) string {
	return query + d.limit(n)
}

// UpsertCell returns the statement that inserts or overwrites one cell.
func (d Dialect) UpsertCell() string {
	return d.upsertCell
}

// Schema returns the DDL that creates the storage tables.
func (d Dialect) Schema() []string {
	out := make([]string, 0, len(schemaTables))
	for _, t := range schemaTables {
		out = append(out, d.createTable(t.name, fmt.Sprintf(t.body, d.NameType, d.TextType)))
	}
	return out
}

// schemaTables bodies take the name type and the text type as arguments.
var schemaTables = []struct {
	name string
	body string
}{
	{"kvgrid_tables", "id VARCHAR(64) NOT NULL PRIMARY KEY, name %[1]s NOT NULL UNIQUE, created_at BIGINT NOT NULL"},
	{"kvgrid_columns", "id VARCHAR(64) NOT NULL PRIMARY KEY, table_id VARCHAR(64) NOT NULL, name %[1]s NOT NULL, type VARCHAR(16) NOT NULL, position INTEGER NOT NULL"},
	{"kvgrid_rows", "id VARCHAR(64) NOT NULL PRIMARY KEY, table_id VARCHAR(64) NOT NULL, seq BIGINT NOT NULL, UNIQUE (table_id, seq)"},
	{"kvgrid_cells", "row_id VARCHAR(64) NOT NULL, column_id VARCHAR(64) NOT NULL, value %[2]s NOT NULL, PRIMARY KEY (row_id, column_id)"},
}

const upsertOnConflict = `INSERT INTO kvgrid_cells (row_id, column_id, value) VALUES (?, ?, ?)
ON CONFLICT (row_id, column_id) DO UPDATE SET value = excluded.value`

func createIfNotExists(table, body string) string {
	return "CREATE TABLE IF NOT EXISTS " + table + " (" + body + ")"
}

func limitClause(n int) string {
	return " LIMIT " + strconv.Itoa(n)
}

func init() {
	Register(Dialect{
		Name:        "sqlite",
		Bind:        BindQuestion,
		NameType:    "TEXT",
		TextType:    "TEXT",
		SingleConn:  true,
		createTable: createIfNotExists,
		limit:       limitClause,
		upsertCell:  upsertOnConflict,
	})
	Register(Dialect{
		Name:        "postgres",
		Bind:        BindDollar,
		NameType:    "VARCHAR(255)",
		TextType:    "TEXT",
		createTable: createIfNotExists,
		limit:       limitClause,
		upsertCell:  upsertOnConflict,
	})
	Register(Dialect{
		Name:        "mysql",
		Bind:        BindQuestion,
		NameType:    "VARCHAR(255)",
		TextType:    "TEXT",
		createTable: createIfNotExists,
		limit:       limitClause,
		// VALUES() keeps MariaDB working; MySQL 8 still accepts it.
		upsertCell: `INSERT INTO kvgrid_cells (row_id, column_id, value) VALUES (?, ?, ?)
ON DUPLICATE KEY UPDATE value = VALUES(value)`,
	})
	Register(Dialect{
		Name:     "sqlserver",
		Bind:     BindAt,
		NameType: "NVARCHAR(255)",
		TextType: "NVARCHAR(MAX)",
		createTable: func(table, body string) string {
			return fmt.Sprintf("IF OBJECT_ID(N'%s', N'U') IS NULL CREATE TABLE %s (%s)", table, table, body)
		},
		limit: func(n int) string {
			return " OFFSET 0 ROWS FETCH NEXT " + strconv.Itoa(n) + " ROWS ONLY"
		},
		upsertCell: `MERGE kvgrid_cells WITH (HOLDLOCK) AS t
USING (SELECT ? AS row_id, ? AS column_id, ? AS value) AS s
ON t.row_id = s.row_id AND t.column_id = s.column_id
WHEN MATCHED THEN UPDATE SET value = s.value
WHEN NOT MATCHED THEN INSERT (row_id, column_id, value) VALUES (s.row_id, s.column_id, s.value);`,
	})
}
