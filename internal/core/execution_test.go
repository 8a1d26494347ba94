package core

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	_ "modernc.org/sqlite"

	"github.com/coregx/eager/internal/logger"
	"github.com/coregx/eager/internal/schema"
	"github.com/coregx/eager/internal/tracer"
)

var librarySchema = []string{
	`CREATE TABLE authors (id INTEGER PRIMARY KEY, name TEXT, created_at TEXT, updated_at TEXT)`,
	`CREATE TABLE books (id INTEGER PRIMARY KEY, authors_id INTEGER, title TEXT, year INTEGER)`,
	`CREATE TABLE reviews (id INTEGER PRIMARY KEY, books_id INTEGER, resource TEXT, content TEXT)`,
	`CREATE TABLE profiles (id INTEGER PRIMARY KEY, authors_id INTEGER, bio TEXT)`,
	`CREATE TABLE categories (id INTEGER PRIMARY KEY, parent_id INTEGER, name TEXT)`,
	`CREATE TABLE users (id INTEGER PRIMARY KEY, email TEXT, password TEXT)`,

	`INSERT INTO authors (id, name) VALUES (1, 'Ann'), (2, 'Bob'), (3, 'Cid')`,
	`INSERT INTO books (id, authors_id, title, year) VALUES (10, 1, 'Dune', 1965), (11, 1, 'Emma', 1815), (12, 3, 'Ulysses', 1922)`,
	`INSERT INTO reviews (id, books_id, resource) VALUES (100, 10, 'web'), (101, 10, 'print'), (102, 12, 'web')`,
	`INSERT INTO profiles (id, authors_id, bio) VALUES (5, 1, 'likes sand')`,
	`INSERT INTO categories (id, parent_id, name) VALUES (1, NULL, 'Root'), (2, 1, 'A'), (3, 1, 'B'), (4, 2, 'A1')`,
	`INSERT INTO users (id, email, password) VALUES (1, 'ann@example.com', 'hunter2')`,
}

func openLibraryDB(t *testing.T, opts ...Option) *DB {
	t.Helper()

	reg := newLibrary(t)
	_, err := reg.Define(schema.Entity{Name: "Ghosts", Attributes: []schema.Attribute{{Name: "name"}}})
	require.NoError(t, err)

	db, err := Open("sqlite", ":memory:", reg, append([]Option{WithMaxOpenConns(1)}, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	ctx := context.Background()
	for _, stmt := range librarySchema {
		_, err := db.ExecContext(ctx, stmt)
		require.NoError(t, err)
	}
	return db
}

func TestDB_FindAll(t *testing.T) {
	db := openLibraryDB(t)

	authors, err := db.Find("Authors").
		Include(Include{Relation: "books"}, Include{Relation: "profile"}).
		OrderBy(Asc("name"), Order{Alias: "books", Attr: "id"}).
		All()
	require.NoError(t, err)

	require.Len(t, authors, 3)
	assert.Equal(t, []interface{}{int64(1), int64(2), int64(3)}, pks(authors))
	assert.Equal(t, []interface{}{int64(10), int64(11)}, pks(authors[0].Collection("books")))
	assert.Equal(t, "likes sand", authors[0].Related("profile").Value("bio"))
	assert.Empty(t, authors[1].Collection("books"))
	assert.Nil(t, authors[1].Related("profile"))
	assert.Equal(t, "Ulysses", authors[2].Collection("books")[0].Value("title"))
}

func TestDB_RequiredIncludes(t *testing.T) {
	db := openLibraryDB(t)

	authors, err := db.Find("Authors").
		Include(Include{Relation: "books", Required: true}).
		OrderBy(Asc("id")).
		All()
	require.NoError(t, err)
	assert.Equal(t, []interface{}{int64(1), int64(3)}, pks(authors))

	n, err := db.Count("Authors").Include(Include{Relation: "books", Required: true}).Value()
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestDB_CountMatchesFind(t *testing.T) {
	db := openLibraryDB(t)

	tests := []struct {
		name     string
		where    Filter
		includes []Include
		want     int64
	}{
		{
			name: "Optional includes do not change the count",
			includes: []Include{
				{Relation: "books", Include: []Include{{Relation: "reviews"}}},
			},
			want: 3,
		},
		{
			name: "Required leaf under optional parent",
			includes: []Include{
				{Relation: "books", Include: []Include{{Relation: "reviews", Required: true}}},
			},
			want: 2,
		},
		{
			name: "Required leaf with filter",
			includes: []Include{
				{Relation: "books", Include: []Include{{Relation: "reviews", Required: true, Where: Eq("resource", "print")}}},
			},
			want: 1,
		},
		{
			name:     "Filtered optional include",
			includes: []Include{{Relation: "books", Where: GreaterThan("year", 1900)}},
			want:     2,
		},
		{
			name: "Filtered leaf under optional parent",
			includes: []Include{
				{Relation: "books", Include: []Include{{Relation: "reviews", Where: Eq("resource", "web")}}},
			},
			want: 2,
		},
		{
			name:  "Root filter",
			where: Or(Eq("name", "Bob"), Eq("name", "Cid")),
			want:  2,
		},
		{
			name:     "Required include matching nothing",
			includes: []Include{{Relation: "books", Required: true, Where: GreaterThan("year", 3000)}},
			want:     0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, err := db.Count("Authors").Where(tt.where).Include(tt.includes...).Value()
			require.NoError(t, err)
			assert.Equal(t, tt.want, n)

			authors, err := db.Find("Authors").Where(tt.where).Include(tt.includes...).All()
			require.NoError(t, err)
			assert.Len(t, authors, int(tt.want))
		})
	}
}

func TestDB_RequiredLeafPrunesSiblings(t *testing.T) {
	db := openLibraryDB(t)

	authors, err := db.Find("Authors").
		Include(Include{Relation: "books", Include: []Include{
			{Relation: "reviews", Required: true, Where: Eq("resource", "print")},
		}}).
		All()
	require.NoError(t, err)

	require.Len(t, authors, 1)
	books := authors[0].Collection("books")
	require.Len(t, books, 1)
	assert.Equal(t, int64(10), books[0].PrimaryKey())
	assert.Equal(t, []interface{}{int64(101)}, pks(books[0].Collection("reviews")))
}

func TestDB_One(t *testing.T) {
	db := openLibraryDB(t)

	ann, err := db.Find("Authors").Include(Include{Relation: "books"}).OrderBy(Asc("name")).One()
	require.NoError(t, err)
	assert.Equal(t, "Ann", ann.Value("name"))
	// The limit applies to authors, not to joined rows.
	assert.Len(t, ann.Collection("books"), 2)

	_, err = db.Find("Authors").Where(Eq("name", "Zed")).One()
	assert.ErrorIs(t, err, ErrNoRows)
}

func TestDB_FindByID(t *testing.T) {
	db := openLibraryDB(t)

	cid, err := db.FindByID("Authors", 3).Include(Include{Relation: "books", Include: []Include{{Relation: "reviews"}}}).One()
	require.NoError(t, err)
	assert.Equal(t, "Cid", cid.Value("name"))
	books := cid.Collection("books")
	require.Len(t, books, 1)
	assert.Equal(t, []interface{}{int64(102)}, pks(books[0].Collection("reviews")))

	_, err = db.FindByID("Nope", 1).All()
	assert.ErrorIs(t, err, ErrUnknownEntity)
}

func TestDB_LimitOffsetWithFanOut(t *testing.T) {
	db := openLibraryDB(t)

	authors, err := db.Find("Authors").
		Include(Include{Relation: "books"}).
		OrderBy(Asc("name")).
		Limit(2).
		Offset(1).
		All()
	require.NoError(t, err)
	assert.Equal(t, []interface{}{int64(2), int64(3)}, pks(authors))
}

func TestDB_PaginationWithFilteredInclude(t *testing.T) {
	db := openLibraryDB(t)
	old := Include{Relation: "books", Where: LessThan("year", 1900)}

	all, err := db.Find("Authors").Include(old).OrderBy(Desc("id")).All()
	require.NoError(t, err)
	require.Len(t, all, 1)

	one, err := db.Find("Authors").Include(old).OrderBy(Desc("id")).One()
	require.NoError(t, err)
	assert.Equal(t, "Ann", one.Value("name"))
	assert.Equal(t, []interface{}{int64(11)}, pks(one.Collection("books")))

	modern := Include{Relation: "books", Where: GreaterThan("year", 1900)}
	authors, err := db.Find("Authors").Include(modern).OrderBy(Desc("id")).Limit(2).All()
	require.NoError(t, err)
	assert.Equal(t, []interface{}{int64(3), int64(1)}, pks(authors))
	assert.Equal(t, []interface{}{int64(10)}, pks(authors[1].Collection("books")))
}

func TestDB_PaginationOrderedByUnselectedColumn(t *testing.T) {
	db := openLibraryDB(t)

	authors, err := db.Find("Authors").
		Select("id").
		Include(Include{Relation: "books"}).
		OrderBy(Desc("name")).
		Limit(2).
		All()
	require.NoError(t, err)
	assert.Equal(t, []interface{}{int64(3), int64(2)}, pks(authors))
	assert.Nil(t, authors[0].Value("name"))
	assert.Len(t, authors[0].Collection("books"), 1)
}

func TestDB_SelfNesting(t *testing.T) {
	db := openLibraryDB(t)

	roots, err := db.Find("Categories").
		Where(Eq("parent_id", nil)).
		Include(Include{Relation: "children", Include: []Include{{Relation: "children"}}}).
		OrderBy(Order{Alias: "children", Attr: "id"}).
		All()
	require.NoError(t, err)

	require.Len(t, roots, 1)
	children := roots[0].Collection("children")
	assert.Equal(t, []interface{}{int64(2), int64(3)}, pks(children))
	assert.Equal(t, []interface{}{int64(4)}, pks(children[0].Collection("children")))
	assert.Empty(t, children[1].Collection("children"))
}

func TestDB_MySQLTextOnSQLite(t *testing.T) {
	db := openLibraryDB(t, WithDialect("mysql"))

	q, err := db.Find("Books").Where(Eq("id", 10)).Include(Include{Relation: "author"}).Build()
	require.NoError(t, err)
	assert.Contains(t, q.SQL(), "LEFT JOIN `authors` AS `author` ON `author`.`id` = `books`.`authors_id`")

	book, err := db.Find("Books").Where(Eq("id", 10)).Include(Include{Relation: "author"}).One()
	require.NoError(t, err)
	assert.Equal(t, "Ann", book.Related("author").Value("name"))
}

func TestDB_DriverError(t *testing.T) {
	db := openLibraryDB(t)

	_, err := db.Find("Ghosts").All()
	require.Error(t, err)

	var driverErr *DriverError
	require.True(t, errors.As(err, &driverErr))
	assert.Equal(t, "prepare", driverErr.Op)
	assert.Contains(t, driverErr.SQL, "ghosts")
	assert.NotNil(t, errors.Unwrap(err))
}

func TestDB_ContextCanceled(t *testing.T) {
	db := openLibraryDB(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := db.WithContext(ctx).Find("Authors").All()
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDB_LoggingMasksSensitiveParams(t *testing.T) {
	var buf bytes.Buffer
	log := logger.NewSlogAdapter(slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	db := openLibraryDB(t, WithLogger(log))

	users, err := db.Find("Users").Where(And(Eq("email", "ann@example.com"), Eq("password", "hunter2"))).All()
	require.NoError(t, err)
	require.Len(t, users, 1)

	out := buf.String()
	assert.Contains(t, out, `"msg":"query executed"`)
	assert.Contains(t, out, `"query_id":`)
	assert.Contains(t, out, "ann@example.com")
	assert.Contains(t, out, "***REDACTED***")
	assert.NotContains(t, out, "hunter2")
	assert.Contains(t, out, `"records":1`)
}

func TestDB_LoggingCustomSensitiveFields(t *testing.T) {
	var buf bytes.Buffer
	log := logger.NewSlogAdapter(slog.New(slog.NewTextHandler(&buf, nil)))
	db := openLibraryDB(t, WithLogger(log), WithSensitiveFields("email"))

	_, err := db.Find("Users").Where(Eq("email", "ann@example.com")).All()
	require.NoError(t, err)
	assert.NotContains(t, buf.String(), "ann@example.com")
}

func TestDB_LoggingFailure(t *testing.T) {
	var buf bytes.Buffer
	log := logger.NewSlogAdapter(slog.New(slog.NewTextHandler(&buf, nil)))
	db := openLibraryDB(t, WithLogger(log))

	_, err := db.Find("Ghosts").All()
	require.Error(t, err)
	assert.Contains(t, buf.String(), "query preparation failed")
}

func TestDB_Tracing(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	db := openLibraryDB(t, WithTracer(tracer.NewOtelTracer(tp.Tracer("test"))))

	_, err := db.Count("Authors").Include(Include{Relation: "books", Required: true}).Value()
	require.NoError(t, err)
	_, err = db.Find("Authors").One()
	require.NoError(t, err)

	spans := exporter.GetSpans()
	require.Len(t, spans, 2)
	assert.Equal(t, tracer.SpanCount, spans[0].Name)
	assert.Equal(t, tracer.SpanFindOne, spans[1].Name)

	attrs := make(map[string]interface{})
	for _, a := range spans[0].Attributes {
		attrs[string(a.Key)] = a.Value.AsInterface()
	}
	assert.Equal(t, "count", attrs["eager.operation"])
	assert.Equal(t, int64(1), attrs["eager.joins"])
	assert.Equal(t, "authors", attrs["db.table"])
	assert.Equal(t, "sqlite", attrs["db.system"])
}

func TestDB_StatementCache(t *testing.T) {
	db := openLibraryDB(t)

	for i := 0; i < 3; i++ {
		_, err := db.Find("Authors").Where(Eq("id", i)).All()
		require.NoError(t, err)
	}
	stats := db.StmtCacheStats()
	assert.Equal(t, 1, stats.Size)
	assert.Equal(t, uint64(2), stats.Hits)
}

func TestDB_Transaction(t *testing.T) {
	db := openLibraryDB(t)
	ctx := context.Background()

	tx, err := db.Begin(ctx)
	require.NoError(t, err)

	authors, err := tx.Find("Authors").Include(Include{Relation: "books"}).All()
	require.NoError(t, err)
	assert.Len(t, authors, 3)

	n, err := tx.Count("Books").Value()
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	require.NoError(t, tx.Commit())
	assert.Equal(t, 0, db.StmtCacheStats().Size)
}

func TestTx_Rollback(t *testing.T) {
	db := openLibraryDB(t)

	tx, err := db.Begin(context.Background())
	require.NoError(t, err)
	require.NoError(t, tx.Rollback())

	err = tx.Rollback()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rollback transaction")
}

func TestDB_FindWithOptions(t *testing.T) {
	db := openLibraryDB(t)

	authors, err := db.FindWith(FindOptions{
		Entity: "Authors",
		Include: []Include{{
			Relation: "books",
			Required: true,
			Where:    GreaterThan("year", 1900),
		}},
		Order: []Order{Desc("id")},
	}).All()
	require.NoError(t, err)
	require.Len(t, authors, 2)
	assert.Equal(t, []interface{}{int64(3), int64(1)}, pks(authors))
	assert.Equal(t, []interface{}{int64(10)}, pks(authors[1].Collection("books")))

	n, err := db.CountWith(CountOptions{
		Entity:  "Authors",
		Include: []Include{{Relation: "books", Required: true}},
	}).Value()
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

type recordingInvalidator struct {
	tables []string
}

func (r *recordingInvalidator) Invalidate(_ context.Context, table string) error {
	r.tables = append(r.tables, table)
	return nil
}

func TestDB_Invalidate(t *testing.T) {
	inv := &recordingInvalidator{}
	db := openLibraryDB(t, WithInvalidator(inv))

	require.NoError(t, db.Invalidate(context.Background(), "Books"))
	assert.Equal(t, []string{"books"}, inv.tables)

	err := db.Invalidate(context.Background(), "Nope")
	assert.ErrorIs(t, err, ErrUnknownEntity)
}
