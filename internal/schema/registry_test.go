package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLibrary(t *testing.T) *Registry {
	t.Helper()

	reg := NewRegistry()
	_, err := reg.Define(Entity{
		Name: "Authors",
		Attributes: []Attribute{
			{Name: "id", Type: Integer},
			{Name: "name"},
			{Name: "created_at", Type: Date},
			{Name: "updated_at", Type: Date},
		},
	})
	require.NoError(t, err)
	_, err = reg.Define(Entity{
		Name:       "Books",
		Attributes: []Attribute{{Name: "authors_id", Type: Integer}, {Name: "title"}},
	})
	require.NoError(t, err)
	return reg
}

func TestRegistry_Define(t *testing.T) {
	reg := newLibrary(t)

	authors, err := reg.Entity("Authors")
	require.NoError(t, err)
	assert.Equal(t, "authors", authors.Table)
	assert.Equal(t, "id", authors.PrimaryKey)
	assert.Equal(t, []string{"id", "name", "created_at", "updated_at"}, authors.AttributeNames())

	attr, ok := authors.Attribute("name")
	require.True(t, ok)
	assert.Equal(t, String, attr.Type)

	// Primary key is prepended when not declared.
	books, err := reg.Entity("Books")
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "authors_id", "title"}, books.AttributeNames())

	_, err = reg.Entity("Nope")
	assert.ErrorIs(t, err, ErrUnknownEntity)
}

func TestRegistry_DefineErrors(t *testing.T) {
	reg := newLibrary(t)

	_, err := reg.Define(Entity{Name: "Authors"})
	assert.ErrorIs(t, err, ErrInvalidSchema)

	_, err = reg.Define(Entity{})
	assert.ErrorIs(t, err, ErrInvalidSchema)

	_, err = reg.Define(Entity{Name: "Dup", Attributes: []Attribute{{Name: "a"}, {Name: "a"}}})
	assert.ErrorIs(t, err, ErrInvalidSchema)
}

func TestRegistry_Relations(t *testing.T) {
	reg := newLibrary(t)

	books, err := reg.HasMany("Authors", "Books")
	require.NoError(t, err)
	assert.Equal(t, "books", books.Name)
	assert.Equal(t, "authors_id", books.ForeignKey)
	assert.Equal(t, "id", books.RelatedKey)
	assert.True(t, books.Kind.FansOut())

	author, err := reg.BelongsTo("Books", "Authors", As("author"))
	require.NoError(t, err)
	assert.Equal(t, "author", author.Name)
	assert.Equal(t, "authors_id", author.ForeignKey)
	assert.Equal(t, "id", author.RelatedKey)
	assert.False(t, author.Kind.FansOut())

	got, err := reg.RelationNamed("Books", "author")
	require.NoError(t, err)
	assert.Same(t, author, got)

	_, err = reg.RelationNamed("Books", "publisher")
	assert.ErrorIs(t, err, ErrUnknownRelation)

	_, err = reg.RelationNamed("Nope", "books")
	assert.ErrorIs(t, err, ErrUnknownEntity)

	assert.Len(t, reg.Relations("Authors"), 1)
}

func TestRegistry_RelationErrors(t *testing.T) {
	reg := newLibrary(t)

	tests := []struct {
		name string
		fn   func() (*Relation, error)
		want error
	}{
		{
			name: "unknown owner",
			fn:   func() (*Relation, error) { return reg.HasMany("Nope", "Books") },
			want: ErrUnknownEntity,
		},
		{
			name: "missing foreign key attribute",
			fn:   func() (*Relation, error) { return reg.HasOne("Books", "Authors") },
			want: ErrInvalidSchema,
		},
		{
			name: "missing related key attribute",
			fn: func() (*Relation, error) {
				return reg.HasMany("Authors", "Books", WithRelatedKey("uuid"))
			},
			want: ErrInvalidSchema,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.fn()
			assert.ErrorIs(t, err, tt.want)
		})
	}

	_, err := reg.HasMany("Authors", "Books")
	require.NoError(t, err)
	_, err = reg.HasMany("Authors", "Books")
	assert.ErrorIs(t, err, ErrInvalidSchema, "duplicate relation name")
}

func TestParseKinds(t *testing.T) {
	for in, want := range map[string]RelationKind{
		"belongs_to": BelongsTo,
		"hasOne":     HasOne,
		"HAS_MANY":   HasMany,
	} {
		got, err := ParseRelationKind(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseRelationKind("many_to_many")
	assert.ErrorIs(t, err, ErrInvalidSchema)

	typ, err := ParseAttrType("")
	require.NoError(t, err)
	assert.Equal(t, String, typ)
	_, err = ParseAttrType("blob")
	assert.ErrorIs(t, err, ErrInvalidSchema)
}
