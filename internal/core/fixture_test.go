package core

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/coregx/eager/internal/schema"
)

// newLibrary registers the schema shared by the core tests:
//
//	Authors  has_many   Books      (books)
//	Authors  has_one    Profiles   (profile)
//	Books    belongs_to Authors    (author)
//	Books    has_many   Reviews    (reviews)
//	Categories belongs_to / has_many Categories (parent / children)
//	Users    no relations, sensitive columns
func newLibrary(t testing.TB) *schema.Registry {
	t.Helper()

	reg := schema.NewRegistry()
	define := func(e schema.Entity) {
		_, err := reg.Define(e)
		require.NoError(t, err)
	}

	define(schema.Entity{Name: "Authors", Attributes: []schema.Attribute{
		{Name: "id", Type: schema.Integer},
		{Name: "name"},
		{Name: "created_at", Type: schema.Date},
		{Name: "updated_at", Type: schema.Date},
	}})
	define(schema.Entity{Name: "Books", Attributes: []schema.Attribute{
		{Name: "authors_id", Type: schema.Integer},
		{Name: "title"},
		{Name: "year", Type: schema.Integer},
	}})
	define(schema.Entity{Name: "Reviews", Attributes: []schema.Attribute{
		{Name: "books_id", Type: schema.Integer},
		{Name: "resource"},
		{Name: "content", Type: schema.Text},
	}})
	define(schema.Entity{Name: "Profiles", Attributes: []schema.Attribute{
		{Name: "authors_id", Type: schema.Integer},
		{Name: "bio", Type: schema.Text},
	}})
	define(schema.Entity{Name: "Categories", Attributes: []schema.Attribute{
		{Name: "parent_id", Type: schema.Integer},
		{Name: "name"},
	}})
	define(schema.Entity{Name: "Users", Attributes: []schema.Attribute{
		{Name: "email"},
		{Name: "password"},
	}})

	relate := func(_ *schema.Relation, err error) {
		require.NoError(t, err)
	}
	relate(reg.HasMany("Authors", "Books"))
	relate(reg.HasOne("Authors", "Profiles", schema.As("profile")))
	relate(reg.BelongsTo("Books", "Authors", schema.As("author")))
	relate(reg.HasMany("Books", "Reviews"))
	relate(reg.BelongsTo("Categories", "Categories", schema.As("parent"), schema.WithForeignKey("parent_id")))
	relate(reg.HasMany("Categories", "Categories", schema.As("children"), schema.WithForeignKey("parent_id")))

	return reg
}

func newTestCompiler(t testing.TB) *Compiler {
	t.Helper()
	return NewCompiler(newLibrary(t))
}
