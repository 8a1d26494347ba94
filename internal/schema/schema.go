// Package schema describes entity types and the associations between them.
// It is the schema provider and relation registry consumed by the query compiler:
// every table, primary key, attribute and relation the compiler emits is resolved here.
package schema

import (
	"errors"
	"fmt"
	"strings"
)

// Errors returned by schema registration and lookup.
var (
	// ErrUnknownEntity is returned when an entity name is not registered.
	ErrUnknownEntity = errors.New("unknown entity")
	// ErrUnknownRelation is returned when a relation name is not defined on the owner entity.
	ErrUnknownRelation = errors.New("unknown relation")
	// ErrInvalidSchema is returned when an entity or relation definition is inconsistent.
	ErrInvalidSchema = errors.New("invalid schema")
)

// DefaultPrimaryKey is the primary key attribute assumed when none is declared.
const DefaultPrimaryKey = "id"

// AttrType is the declared data type of an attribute.
type AttrType string

// Supported attribute types.
const (
	Integer AttrType = "integer"
	Boolean AttrType = "boolean"
	String  AttrType = "string"
	Text    AttrType = "text"
	Float   AttrType = "float"
	Date    AttrType = "date"
	Enum    AttrType = "enum"
)

// ParseAttrType converts a type name into an AttrType.
// An empty name means String.
func ParseAttrType(s string) (AttrType, error) {
	switch t := AttrType(strings.ToLower(strings.TrimSpace(s))); t {
	case "":
		return String, nil
	case Integer, Boolean, String, Text, Float, Date, Enum:
		return t, nil
	}
	return "", fmt.Errorf("%w: attribute type %q", ErrInvalidSchema, s)
}

// Attribute is a selectable column of an entity.
type Attribute struct {
	Name string
	Type AttrType
}

// Entity is a registered root type: a table with a primary key and an
// ordered, closed list of selectable attributes.
type Entity struct {
	Name       string
	Table      string
	PrimaryKey string
	Attributes []Attribute
}

// AttributeNames returns the attribute names in declaration order.
func (e *Entity) AttributeNames() []string {
	names := make([]string, len(e.Attributes))
	for i, a := range e.Attributes {
		names[i] = a.Name
	}
	return names
}

// Attribute returns the named attribute.
func (e *Entity) Attribute(name string) (Attribute, bool) {
	for _, a := range e.Attributes {
		if a.Name == name {
			return a, true
		}
	}
	return Attribute{}, false
}

// HasAttribute reports whether name is one of the entity's attributes.
func (e *Entity) HasAttribute(name string) bool {
	_, ok := e.Attribute(name)
	return ok
}

// RelationKind is the cardinality of a relation.
type RelationKind int

// Relation kinds.
const (
	BelongsTo RelationKind = iota
	HasOne
	HasMany
)

// String returns the snake_case name of the kind.
func (k RelationKind) String() string {
	switch k {
	case BelongsTo:
		return "belongs_to"
	case HasOne:
		return "has_one"
	case HasMany:
		return "has_many"
	}
	return fmt.Sprintf("RelationKind(%d)", int(k))
}

// FansOut reports whether joining the relation can multiply parent rows.
func (k RelationKind) FansOut() bool {
	return k == HasMany
}

// ParseRelationKind converts "belongs_to", "has_one" or "has_many" into a RelationKind.
// camelCase spellings are accepted too.
func ParseRelationKind(s string) (RelationKind, error) {
	switch strings.ToLower(strings.ReplaceAll(strings.TrimSpace(s), "_", "")) {
	case "belongsto":
		return BelongsTo, nil
	case "hasone":
		return HasOne, nil
	case "hasmany":
		return HasMany, nil
	}
	return 0, fmt.Errorf("%w: relation kind %q", ErrInvalidSchema, s)
}

// Relation is a directed association from Owner to Related.
//
// For BelongsTo the foreign key is an attribute of Owner and RelatedKey is an
// attribute of Related. For HasOne and HasMany the foreign key lives on Related
// and RelatedKey is an attribute of Owner.
type Relation struct {
	Kind       RelationKind
	Name       string
	Owner      *Entity
	Related    *Entity
	ForeignKey string
	RelatedKey string
	As         string
}

// RelationOption customizes a relation definition.
type RelationOption func(*Relation)

// WithForeignKey overrides the default foreign key.
func WithForeignKey(key string) RelationOption {
	return func(r *Relation) { r.ForeignKey = key }
}

// WithRelatedKey overrides the default referenced key.
func WithRelatedKey(key string) RelationOption {
	return func(r *Relation) { r.RelatedKey = key }
}

// As names the relation. Needed when the same entity is related more than once.
func As(alias string) RelationOption {
	return func(r *Relation) { r.As = alias }
}
