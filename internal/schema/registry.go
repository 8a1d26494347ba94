package schema

import (
	"fmt"
	"strings"
	"sync"
)

// Registry stores entities and their relations.
// It is safe for concurrent use; registered entities and relations are never mutated.
type Registry struct {
	mu        sync.RWMutex
	entities  map[string]*Entity
	order     []string
	relations map[string][]*Relation
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		entities:  make(map[string]*Entity),
		relations: make(map[string][]*Relation),
	}
}

// Define registers an entity.
// Table defaults to the lowercased name and PrimaryKey to "id". When the primary key
// is not among the attributes it is prepended as an integer attribute.
func (r *Registry) Define(e Entity) (*Entity, error) {
	if e.Name == "" {
		return nil, fmt.Errorf("%w: entity name is empty", ErrInvalidSchema)
	}
	if e.Table == "" {
		e.Table = strings.ToLower(e.Name)
	}
	if e.PrimaryKey == "" {
		e.PrimaryKey = DefaultPrimaryKey
	}

	attrs := make([]Attribute, 0, len(e.Attributes)+1)
	seen := make(map[string]bool, len(e.Attributes))
	for _, a := range e.Attributes {
		if a.Name == "" {
			return nil, fmt.Errorf("%w: entity %s has an unnamed attribute", ErrInvalidSchema, e.Name)
		}
		if seen[a.Name] {
			return nil, fmt.Errorf("%w: entity %s declares attribute %q twice", ErrInvalidSchema, e.Name, a.Name)
		}
		seen[a.Name] = true
		if a.Type == "" {
			a.Type = String
		}
		attrs = append(attrs, a)
	}
	if !seen[e.PrimaryKey] {
		attrs = append([]Attribute{{Name: e.PrimaryKey, Type: Integer}}, attrs...)
	}
	e.Attributes = attrs

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entities[e.Name]; exists {
		return nil, fmt.Errorf("%w: entity %s is already defined", ErrInvalidSchema, e.Name)
	}
	ent := &e
	r.entities[e.Name] = ent
	r.order = append(r.order, e.Name)
	return ent, nil
}

// BelongsTo declares that owner holds a foreign key referencing related.
// The foreign key defaults to "<related table>_id".
func (r *Registry) BelongsTo(owner, related string, opts ...RelationOption) (*Relation, error) {
	return r.relate(BelongsTo, owner, related, opts)
}

// HasOne declares that related holds a foreign key referencing owner, at most once.
// The foreign key defaults to "<owner table>_id".
func (r *Registry) HasOne(owner, related string, opts ...RelationOption) (*Relation, error) {
	return r.relate(HasOne, owner, related, opts)
}

// HasMany declares that related holds a foreign key referencing owner.
// The foreign key defaults to "<owner table>_id".
func (r *Registry) HasMany(owner, related string, opts ...RelationOption) (*Relation, error) {
	return r.relate(HasMany, owner, related, opts)
}

func (r *Registry) relate(kind RelationKind, ownerName, relatedName string, opts []RelationOption) (*Relation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	owner, ok := r.entities[ownerName]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownEntity, ownerName)
	}
	related, ok := r.entities[relatedName]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownEntity, relatedName)
	}

	rel := &Relation{Kind: kind, Owner: owner, Related: related}
	for _, opt := range opts {
		opt(rel)
	}

	// fkSide holds the foreign key, keySide holds the referenced key.
	fkSide, keySide := related, owner
	if kind == BelongsTo {
		fkSide, keySide = owner, related
	}
	if rel.ForeignKey == "" {
		rel.ForeignKey = keySide.Table + "_id"
	}
	if rel.RelatedKey == "" {
		rel.RelatedKey = keySide.PrimaryKey
	}
	if !fkSide.HasAttribute(rel.ForeignKey) {
		return nil, fmt.Errorf("%w: %s %s→%s: foreign key %q is not an attribute of %s",
			ErrInvalidSchema, kind, ownerName, relatedName, rel.ForeignKey, fkSide.Name)
	}
	if !keySide.HasAttribute(rel.RelatedKey) {
		return nil, fmt.Errorf("%w: %s %s→%s: key %q is not an attribute of %s",
			ErrInvalidSchema, kind, ownerName, relatedName, rel.RelatedKey, keySide.Name)
	}

	rel.Name = rel.As
	if rel.Name == "" {
		rel.Name = related.Table
	}
	for _, existing := range r.relations[ownerName] {
		if existing.Name == rel.Name {
			return nil, fmt.Errorf("%w: %s already has a relation named %q", ErrInvalidSchema, ownerName, rel.Name)
		}
	}

	r.relations[ownerName] = append(r.relations[ownerName], rel)
	return rel, nil
}

// Entity returns the registered entity with the given name.
func (r *Registry) Entity(name string) (*Entity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entities[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownEntity, name)
	}
	return e, nil
}

// EntityByTable returns the entity mapped to table.
func (r *Registry) EntityByTable(table string) (*Entity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, name := range r.order {
		if e := r.entities[name]; e.Table == table {
			return e, nil
		}
	}
	return nil, fmt.Errorf("%w: table %s", ErrUnknownEntity, table)
}

// RelationNamed looks up a relation by name on the owner entity.
func (r *Registry) RelationNamed(owner, name string) (*Relation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if _, ok := r.entities[owner]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownEntity, owner)
	}
	for _, rel := range r.relations[owner] {
		if rel.Name == name {
			return rel, nil
		}
	}
	return nil, fmt.Errorf("%w: %s has no relation %q", ErrUnknownRelation, owner, name)
}

// Entities returns all entities in registration order.
func (r *Registry) Entities() []*Entity {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Entity, len(r.order))
	for i, name := range r.order {
		out[i] = r.entities[name]
	}
	return out
}

// Relations returns the relations owned by the entity, in definition order.
func (r *Registry) Relations(owner string) []*Relation {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return append([]*Relation(nil), r.relations[owner]...)
}
