package core

import (
	"fmt"

	"github.com/coregx/eager/internal/dialects"
	"github.com/coregx/eager/internal/schema"
)

// Provider resolves entities and relations by name.
// *schema.Registry implements it.
type Provider interface {
	Entity(name string) (*schema.Entity, error)
	RelationNamed(owner, name string) (*schema.Relation, error)
}

// Include requests eager loading of one relation of the parent entity.
//
// Example:
//
//	eager.Include{
//	    Relation: "books",
//	    Where:    eager.GreaterThan("year", 1900),
//	    Include:  []eager.Include{{Relation: "reviews", Required: true}},
//	}
type Include struct {
	// Relation is the relation name on the parent entity.
	Relation string
	// Required turns the join into an INNER JOIN.
	Required bool
	// Where filters the included rows. A filtered include is required:
	// parents without a matching row are excluded.
	Where Filter
	// Attributes limits the selected columns. The primary key is always selected.
	Attributes []string
	// Include lists nested includes.
	Include []Include
}

// Node is one resolved include in a Tree. The root node has no relation.
type Node struct {
	ID         int
	Entity     *schema.Entity
	Relation   *schema.Relation
	Parent     *Node
	Children   []*Node
	Required   bool
	Alias      string
	Depth      int
	Attributes []string

	where compiledFilter
}

// IsRoot reports whether n is the synthetic root node.
func (n *Node) IsRoot() bool {
	return n.Parent == nil
}

// FansOut reports whether joining n can multiply its parent's rows.
func (n *Node) FansOut() bool {
	return n.Relation != nil && n.Relation.Kind.FansOut()
}

// Path returns the nodes from the root down to n.
func (n *Node) Path() []*Node {
	var path []*Node
	for cur := n; cur != nil; cur = cur.Parent {
		path = append([]*Node{cur}, path...)
	}
	return path
}

// Column is one entry of the tree's column layout.
type Column struct {
	Node *Node
	Attr string
}

type span struct {
	start, end int
	pk         int // absolute index of the primary key column
}

// Tree is an immutable, resolved include tree with its column layout.
// The layout is the root's attributes followed by every include node's
// attributes in depth-first order.
type Tree struct {
	Root *Node

	nodes   []*Node
	columns []Column
	spans   []span
}

// Nodes returns every node in depth-first pre-order, root first.
func (t *Tree) Nodes() []*Node {
	out := make([]*Node, len(t.nodes))
	copy(out, t.nodes)
	return out
}

// Columns returns the column layout rows must follow.
func (t *Tree) Columns() []Column {
	out := make([]Column, len(t.columns))
	copy(out, t.columns)
	return out
}

// Width is the number of columns in a result row.
func (t *Tree) Width() int {
	return len(t.columns)
}

// HasIncludes reports whether the tree has any include node.
func (t *Tree) HasIncludes() bool {
	return len(t.Root.Children) > 0
}

// FansOut reports whether any join in the tree is has-many.
func (t *Tree) FansOut() bool {
	for _, n := range t.nodes {
		if n.FansOut() {
			return true
		}
	}
	return false
}

type treeBuilder struct {
	provider Provider
	dialect  dialects.Dialect
	tree     *Tree
	aliases  map[string]bool
}

// buildTree resolves includes against the provider and compiles every
// node's filter.
func buildTree(p Provider, d dialects.Dialect, entity string, where Filter, attrs []string, includes []Include) (*Tree, error) {
	root, err := p.Entity(entity)
	if err != nil {
		return nil, err
	}

	b := &treeBuilder{
		provider: p,
		dialect:  d,
		tree:     &Tree{},
		aliases:  map[string]bool{root.Table: true},
	}

	node := &Node{
		Entity:   root,
		Required: true,
		Alias:    root.Table,
	}
	if err := b.finishNode(node, where, attrs); err != nil {
		return nil, err
	}
	b.tree.Root = node

	if err := b.addChildren(node, includes); err != nil {
		return nil, err
	}
	b.layout()
	return b.tree, nil
}

func (b *treeBuilder) addChildren(parent *Node, includes []Include) error {
	seen := make(map[string]bool, len(includes))
	for _, inc := range includes {
		rel, err := b.provider.RelationNamed(parent.Entity.Name, inc.Relation)
		if err != nil {
			return fmt.Errorf("include %q on %s: %w", inc.Relation, parent.Entity.Name, err)
		}
		// Records hold one value per relation name.
		if seen[rel.Name] {
			return fmt.Errorf("%w: %q included twice under %s", ErrAliasCollision, rel.Name, parent.Alias)
		}
		seen[rel.Name] = true

		alias, err := b.alias(parent, rel)
		if err != nil {
			return err
		}

		node := &Node{
			Entity:   rel.Related,
			Relation: rel,
			Parent:   parent,
			Required: inc.Required,
			Alias:    alias,
			Depth:    parent.Depth + 1,
		}
		if err := b.finishNode(node, inc.Where, inc.Attributes); err != nil {
			return fmt.Errorf("include %q on %s: %w", inc.Relation, parent.Entity.Name, err)
		}
		if node.where.sql != "" {
			node.Required = true
		}
		parent.Children = append(parent.Children, node)

		if err := b.addChildren(node, inc.Include); err != nil {
			return err
		}
	}
	return nil
}

// alias picks the relation name, falling back to "<parent alias>.<relation>"
// when the name is already taken somewhere in the tree.
func (b *treeBuilder) alias(parent *Node, rel *schema.Relation) (string, error) {
	for _, candidate := range []string{rel.Name, parent.Alias + "." + rel.Name} {
		if !b.aliases[candidate] {
			b.aliases[candidate] = true
			return candidate, nil
		}
	}
	return "", fmt.Errorf("%w: %s.%s", ErrAliasCollision, parent.Alias, rel.Name)
}

// finishNode assigns the node id, resolves its attributes and compiles its filter.
func (b *treeBuilder) finishNode(n *Node, where Filter, attrs []string) error {
	n.ID = len(b.tree.nodes)
	b.tree.nodes = append(b.tree.nodes, n)

	selected, err := selectAttributes(n.Entity, attrs)
	if err != nil {
		return err
	}
	n.Attributes = selected

	n.where, err = compileFilter(where, n.Alias, n.Entity, b.dialect)
	return err
}

// selectAttributes validates the requested attributes and makes sure the
// primary key leads the list. An empty request selects every attribute.
func selectAttributes(e *schema.Entity, attrs []string) ([]string, error) {
	if len(attrs) == 0 {
		return e.AttributeNames(), nil
	}

	seen := make(map[string]bool, len(attrs)+1)
	selected := make([]string, 0, len(attrs)+1)
	for _, a := range attrs {
		if !e.HasAttribute(a) {
			return nil, fmt.Errorf("%w: %s has no attribute %q", ErrMalformedFilter, e.Name, a)
		}
		if seen[a] {
			continue
		}
		seen[a] = true
		selected = append(selected, a)
	}
	if !seen[e.PrimaryKey] {
		selected = append([]string{e.PrimaryKey}, selected...)
	}
	return selected, nil
}

func (b *treeBuilder) layout() {
	t := b.tree
	t.spans = make([]span, len(t.nodes))
	for _, n := range t.nodes {
		s := span{start: len(t.columns), pk: -1}
		for _, attr := range n.Attributes {
			if attr == n.Entity.PrimaryKey {
				s.pk = len(t.columns)
			}
			t.columns = append(t.columns, Column{Node: n, Attr: attr})
		}
		s.end = len(t.columns)
		t.spans[n.ID] = s
	}
}
