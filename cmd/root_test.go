package cmd

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"io"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oakwood-commons/kvgrid/internal/config"
	"github.com/oakwood-commons/kvgrid/internal/grid"
	"github.com/oakwood-commons/kvgrid/internal/store"
)

// resetCommandState restores every flag of the command tree to its default
// so package-level flag vars do not leak between tests.
func resetCommandState(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		} else {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetCommandState(sub)
	}
}

// runCLI executes the CLI isolated from the user's config and environment.
func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetCommandState(rootCmd)
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("KVGRID_DRIVER", "")
	t.Setenv("KVGRID_DSN", "")

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(io.Discard)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})
	err := Execute()
	return out.String(), err
}

// testDB returns a runner bound to a fresh sqlite database.
func testDB(t *testing.T) func(args ...string) (string, error) {
	t.Helper()
	dsn := "file:" + filepath.Join(t.TempDir(), "grid.db") + "?_pragma=busy_timeout(5000)"
	return func(args ...string) (string, error) {
		return runCLI(t, append(args, "--driver", "sqlite", "--dsn", dsn, "--no-color")...)
	}
}

func mustRun(t *testing.T, run func(...string) (string, error), args ...string) string {
	t.Helper()
	out, err := run(args...)
	require.NoError(t, err, strings.Join(args, " "))
	return out
}

// seedPeople creates a people table with n empty rows and returns the row ids.
func seedPeople(t *testing.T, run func(...string) (string, error), n int) []string {
	t.Helper()
	mustRun(t, run, "tables", "create", "people", "--column", "Name", "--column", "Age:NUMBER")
	if n == 0 {
		return nil
	}
	out := mustRun(t, run, "rows", "add", "people", "-n", strconv.Itoa(n))
	ids := strings.Fields(out)
	require.Len(t, ids, n)
	return ids
}

func readCSV(t *testing.T, out string) [][]string {
	t.Helper()
	recs, err := csv.NewReader(strings.NewReader(out)).ReadAll()
	require.NoError(t, err)
	return recs
}

func TestTablesCreateAndList(t *testing.T) {
	run := testDB(t)

	out := mustRun(t, run, "tables", "create", "people", "--column", "Name", "--column", "Age:NUMBER")
	assert.Equal(t, "created table people with 2 columns\n", out)
	mustRun(t, run, "tables", "create", "empty")

	out = mustRun(t, run, "tables")
	assert.Contains(t, out, "people\t0 rows\tName:TEXT, Age:NUMBER\n")
	assert.Contains(t, out, "empty\t0 rows\t\n")

	out = mustRun(t, run, "tables", "-o", "json")
	var tables []store.Table
	require.NoError(t, json.Unmarshal([]byte(out), &tables))
	require.Len(t, tables, 2)
	assert.Equal(t, "empty", tables[0].Name)
	assert.Equal(t, "people", tables[1].Name)
	require.Len(t, tables[1].Columns, 2)
	assert.Equal(t, grid.ColumnNumber, tables[1].Columns[1].Type)

	assert.Contains(t, mustRun(t, run, "tables", "-o", "tree"), "people")
	assert.Contains(t, mustRun(t, run, "tables", "-o", "mermaid"), "erDiagram")

	_, err := run("tables", "-o", "xml")
	assert.Error(t, err)
	_, err = run("tables", "create", "people")
	assert.ErrorIs(t, err, grid.ErrValidation)
	_, err = run("tables", "create", "bad", "--column", "When:DATE")
	assert.ErrorIs(t, err, grid.ErrValidation)
}

func TestRowsAddSetAndDump(t *testing.T) {
	run := testDB(t)
	ids := seedPeople(t, run, 3)

	out := mustRun(t, run, "rows", "set", "people", ids[0], "name", "Jane")
	assert.Equal(t, ids[0]+".Name = Jane\n", out)
	mustRun(t, run, "rows", "set", "people", ids[0], "Age", "42")
	mustRun(t, run, "rows", "set", "people", ids[2], "Name", "Bob")

	_, err := run("rows", "set", "people", ids[1], "Age", "old")
	assert.ErrorIs(t, err, grid.ErrInvalidNumber)
	_, err = run("rows", "set", "people", ids[1], "Height", "1")
	assert.ErrorIs(t, err, grid.ErrNotFound)
	_, err = run("rows", "add", "people", "-n", "0")
	assert.Error(t, err)

	recs := readCSV(t, mustRun(t, run, "dump", "people", "-o", "csv"))
	assert.Equal(t, [][]string{
		{"Name", "Age"},
		{"Jane", "42"},
		{"", ""},
		{"Bob", ""},
	}, recs)

	out = mustRun(t, run, "dump", "people", "-o", "json")
	var rows []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &rows))
	require.Len(t, rows, 3)
	assert.Equal(t, "Jane", rows[0]["Name"])
	assert.InDelta(t, 42.0, rows[0]["Age"], 0.001)
	assert.Nil(t, rows[1]["Age"])

	out = mustRun(t, run, "dump", "people")
	assert.Contains(t, out, "Name")
	assert.Contains(t, out, "Jane")
}

func TestDumpLimiting(t *testing.T) {
	run := testDB(t)
	ids := seedPeople(t, run, 60)

	recs := readCSV(t, mustRun(t, run, "dump", "people", "-o", "csv", "--ids", "--offset", "2", "--limit", "5"))
	require.Len(t, recs, 6)
	assert.Equal(t, []string{"_id", "Name", "Age"}, recs[0])
	assert.Equal(t, ids[2], recs[1][0])
	assert.Equal(t, ids[6], recs[5][0])

	recs = readCSV(t, mustRun(t, run, "dump", "people", "-o", "csv", "--ids", "--tail", "3"))
	require.Len(t, recs, 4)
	assert.Equal(t, ids[57], recs[1][0])
	assert.Equal(t, ids[59], recs[3][0])

	_, err := run("dump", "people", "--limit", "1", "--tail", "1")
	assert.Error(t, err)
	_, err = run("dump", "people", "-o", "xml")
	assert.Error(t, err)
}

func TestDumpSearch(t *testing.T) {
	run := testDB(t)
	ids := seedPeople(t, run, 3)
	mustRun(t, run, "rows", "set", "people", ids[0], "Name", "Jane")
	mustRun(t, run, "rows", "set", "people", ids[0], "Age", "42")
	mustRun(t, run, "rows", "set", "people", ids[1], "Name", "Janet")
	mustRun(t, run, "rows", "set", "people", ids[1], "Age", "19")
	mustRun(t, run, "rows", "set", "people", ids[2], "Name", "Bob")

	recs := readCSV(t, mustRun(t, run, "dump", "people", "-o", "csv", "--search", "JAN"))
	assert.Equal(t, [][]string{{"Name", "Age"}, {"Jane", "42"}, {"Janet", "19"}}, recs)

	recs = readCSV(t, mustRun(t, run, "dump", "people", "-o", "csv", "--search", "=_.Age > 30.0"))
	assert.Equal(t, [][]string{{"Name", "Age"}, {"Jane", "42"}}, recs)
}

func TestColumnsAdd(t *testing.T) {
	run := testDB(t)
	seedPeople(t, run, 2)

	out := mustRun(t, run, "columns", "add", "people", "Score", "--type", "number")
	assert.Equal(t, "added column Score (NUMBER) to people\n", out)

	recs := readCSV(t, mustRun(t, run, "dump", "people", "-o", "csv"))
	assert.Equal(t, []string{"Name", "Age", "Score"}, recs[0])
	assert.Equal(t, []string{"", "", ""}, recs[1])

	_, err := run("columns", "add", "people", "score")
	assert.ErrorIs(t, err, grid.ErrValidation)
	_, err = run("columns", "add", "people", "When", "--type", "date")
	assert.ErrorIs(t, err, grid.ErrValidation)
}

func TestMissingTable(t *testing.T) {
	run := testDB(t)

	_, err := run("dump", "ghost")
	assert.ErrorIs(t, err, grid.ErrNotFound)
	_, err = run("dump")
	assert.ErrorIs(t, err, errNoTable)
}

func TestSnapshotRendersGrid(t *testing.T) {
	run := testDB(t)
	ids := seedPeople(t, run, 3)
	mustRun(t, run, "rows", "set", "people", ids[1], "Name", "Jane")

	out := mustRun(t, run, "people", "--snapshot", "--width", "50", "--height", "8")
	lines := strings.Split(strings.TrimSuffix(out, "\n"), "\n")
	require.Len(t, lines, 8)
	assert.Equal(t, "people", lines[0])
	assert.Contains(t, lines[1], "Name")
	assert.Contains(t, lines[1], "Age")
	assert.Contains(t, out, "Jane")
	assert.Contains(t, lines[7], "3 records")
	assert.NotContains(t, out, "\x1b[", "--no-color output has no escape codes")

	out = mustRun(t, run, "people", "--snapshot", "--width", "50", "--height", "8", "--search", "jane")
	assert.Contains(t, out, "1 matching record")
}

func TestConfigGetAndInit(t *testing.T) {
	run := testDB(t)

	out := mustRun(t, run, "config", "get", "-o", "json")
	var cfg map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &cfg))
	db, ok := cfg["database"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "sqlite", db["type"])

	out = mustRun(t, run, "config", "get")
	assert.Contains(t, out, "page_size: 50")

	path := filepath.Join(t.TempDir(), "kvgrid.yaml")
	out = mustRun(t, run, "config", "init", path)
	assert.Equal(t, "wrote "+path+"\n", out)
	_, err := run("config", "init", path)
	assert.ErrorIs(t, err, config.ErrConfigExists)
	mustRun(t, run, "config", "init", path, "--force")

	_, err = run("config", "get", "--config-file", filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, config.ErrConfigFileNotFound)
}

func TestVersionCommand(t *testing.T) {
	out, err := runCLI(t, "version")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "kvgrid "), out)

	out, err = runCLI(t, "version", "-o", "json")
	require.NoError(t, err)
	var v map[string]string
	require.NoError(t, json.Unmarshal([]byte(out), &v))
	assert.Contains(t, v, "version")
}

func TestFlagOverrides(t *testing.T) {
	resetCommandState(rootCmd)
	t.Cleanup(func() { resetCommandState(rootCmd) })
	assert.Equal(t, config.Config{}, flagOverrides())

	driverName, dataSource, debug, noColor = "pg", "postgres://x", true, true
	o := flagOverrides()
	assert.Equal(t, "pg", o.Database.Type)
	assert.Equal(t, "postgres://x", o.Database.DSN)
	assert.Equal(t, "debug", o.Log.Level)
	require.NotNil(t, o.UI.NoColor)
	assert.True(t, *o.UI.NoColor)
}
