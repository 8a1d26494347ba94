package main

import (
	"bytes"
	"database/sql"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/coregx/eager/internal/cli"
)

const testSchema = `
entities:
  - name: Authors
    table: authors
    attributes: [id, name]
  - name: Books
    table: books
    attributes: [id, authors_id, title]
relations:
  - {owner: Authors, kind: has_many, related: Books}
  - {owner: Books, kind: belongs_to, related: Authors, as: author}
`

const testQuery = `
entity: Authors
include:
  - relation: books
    required: true
    where: {title: Dune}
order: [id]
`

func init() {
	color.NoColor = true
}

// setup writes config, schema and query into an in-memory filesystem and
// seeds a SQLite database file. It returns the filesystem.
func setup(t *testing.T, driver string) afero.Fs {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "library.db")
	sqlDB, err := sql.Open("sqlite", dbPath)
	require.NoError(t, err)
	for _, stmt := range []string{
		`CREATE TABLE authors (id INTEGER PRIMARY KEY, name TEXT)`,
		`CREATE TABLE books (id INTEGER PRIMARY KEY, authors_id INTEGER, title TEXT)`,
		`INSERT INTO authors VALUES (1, 'Ann'), (2, 'Bob')`,
		`INSERT INTO books VALUES (10, 1, 'Dune'), (11, 2, 'Emma')`,
	} {
		_, err := sqlDB.Exec(stmt)
		require.NoError(t, err)
	}
	require.NoError(t, sqlDB.Close())

	fs := afero.NewMemMapFs()
	files := map[string]string{
		"/proj/eager.yaml":        "schema: schema.yaml\ndatabase:\n  driver: " + driver + "\n  dsn: " + dbPath + "\n",
		"/proj/schema.yaml":       testSchema,
		"/proj/queries/dune.yaml": testQuery,
	}
	for path, content := range files {
		require.NoError(t, afero.WriteFile(fs, path, []byte(content), 0o644))
	}
	return fs
}

func execute(t *testing.T, fs afero.Fs, args ...string) (string, error) {
	t.Helper()

	appFs = fs
	t.Cleanup(func() { appFs = afero.NewOsFs() })

	cfgFile, schemaFlag, driverFlag, dsnFlag, dialectFlag = "", "", "", "", ""
	quiet, compileCount, compileColumns, runOne, explainCount, configShowSource = false, false, false, false, false, false

	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestCompile(t *testing.T) {
	fs := setup(t, "sqlite")

	out, err := execute(t, fs, "--config", "/proj/eager.yaml", "compile", "/proj/queries/dune.yaml")
	require.NoError(t, err)
	assert.Contains(t, out, `INNER JOIN "books" AS "books" ON "books"."authors_id" = "authors"."id"`)
	assert.Contains(t, out, "Params\n[Dune]\n")

	out, err = execute(t, fs, "--config", "/proj/eager.yaml", "--dialect", "mysql", "compile", "--columns", "/proj/queries/dune.yaml")
	require.NoError(t, err)
	assert.Contains(t, out, "INNER JOIN `books` AS `books`")
	assert.Contains(t, out, "Columns\n")
	assert.Contains(t, out, "books.title")

	out, err = execute(t, fs, "--config", "/proj/eager.yaml", "compile", "--count", "/proj/queries/dune.yaml")
	require.NoError(t, err)
	assert.Contains(t, out, `SELECT COUNT(DISTINCT "authors"."id")`)
}

func TestRun(t *testing.T) {
	fs := setup(t, "sqlite")

	out, err := execute(t, fs, "--config", "/proj/eager.yaml", "run", "/proj/queries/dune.yaml")
	require.NoError(t, err)
	assert.JSONEq(t, `[{"id": 1, "name": "Ann", "books": [{"id": 10, "authors_id": 1, "title": "Dune"}]}]`, out)

	out, err = execute(t, fs, "--config", "/proj/eager.yaml", "run", "--one", "/proj/queries/dune.yaml")
	require.NoError(t, err)
	assert.JSONEq(t, `[{"id": 1, "name": "Ann", "books": [{"id": 10, "authors_id": 1, "title": "Dune"}]}]`, out)
}

func TestCount(t *testing.T) {
	fs := setup(t, "sqlite")

	out, err := execute(t, fs, "--config", "/proj/eager.yaml", "count", "/proj/queries/dune.yaml")
	require.NoError(t, err)
	assert.Equal(t, "1\n", out)
}

func TestExplain(t *testing.T) {
	fs := setup(t, "sqlite")

	out, err := execute(t, fs, "--config", "/proj/eager.yaml", "-q", "explain", "/proj/queries/dune.yaml")
	require.NoError(t, err)
	assert.Contains(t, out, "Plan (sqlite)")
	assert.Contains(t, out, "authors")
	assert.NotContains(t, out, "SQL\n")
}

func TestSchema(t *testing.T) {
	fs := setup(t, "sqlite")

	out, err := execute(t, fs, "--config", "/proj/eager.yaml", "schema")
	require.NoError(t, err)
	assert.Contains(t, out, "Authors (authors)")
	assert.Contains(t, out, "Books (books)")
	assert.Contains(t, out, "belongs_to")
}

func TestCheck(t *testing.T) {
	fs := setup(t, "sqlite")

	out, err := execute(t, fs, "--config", "/proj/eager.yaml", "check")
	require.NoError(t, err)
	assert.Contains(t, out, "connection")
	assert.Contains(t, out, "Authors")
	assert.NotContains(t, out, "no such")

	drifted := strings.Replace(testSchema, "[id, authors_id, title]", "[id, authors_id, title, isbn]", 1)
	require.NoError(t, afero.WriteFile(fs, "/proj/schema.yaml", []byte(drifted), 0o644))

	out, err = execute(t, fs, "--config", "/proj/eager.yaml", "check")
	assert.Equal(t, cli.ExitSchema, cli.ExitCode(err))
	assert.ErrorContains(t, err, "Books")
	assert.Contains(t, out, "isbn")
}

func TestConfigShow(t *testing.T) {
	fs := setup(t, "sqlite")

	out, err := execute(t, fs, "--config", "/proj/eager.yaml", "config", "show", "--source")
	require.NoError(t, err)
	assert.Contains(t, out, "Config file: /proj/eager.yaml")
	assert.Contains(t, out, "driver: sqlite")
	assert.Contains(t, out, "***")
	assert.NotContains(t, out, "library.db")
	assert.Contains(t, out, "schema: /proj/schema.yaml")
}

func TestErrors(t *testing.T) {
	fs := setup(t, "sqlite")

	_, err := execute(t, fs, "--config", "/proj/eager.yaml", "compile", "/proj/queries/missing.yaml")
	assert.Equal(t, cli.ExitQuery, cli.ExitCode(err))

	_, err = execute(t, fs, "--config", "/proj/eager.yaml", "--schema", "/nope.yaml", "schema")
	assert.Equal(t, cli.ExitSchema, cli.ExitCode(err))

	_, err = execute(t, fs, "--config", "/missing/eager.yaml", "schema")
	assert.Equal(t, cli.ExitConfig, cli.ExitCode(err))

	require.NoError(t, afero.WriteFile(fs, "/proj/queries/bad.yaml", []byte("entity: Authors\ninclude: [{relation: publishers}]\n"), 0o644))
	_, err = execute(t, fs, "--config", "/proj/eager.yaml", "compile", "/proj/queries/bad.yaml")
	assert.Equal(t, cli.ExitQuery, cli.ExitCode(err))

	_, err = execute(t, fs, "--config", "/proj/eager.yaml", "compile")
	assert.Error(t, err)
}
