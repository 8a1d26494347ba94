package core

import (
	"fmt"
)

// Hydrate rebuilds the object graph from flat rows laid out as t.Columns().
//
// Roots are returned in first-seen order and each child is attached once
// per distinct primary key under its parent instance. A child whose columns
// are all NULL, or whose primary key is NULL, is an absent optional row and
// is skipped together with its subtree. The input rows are not modified.
func Hydrate(t *Tree, rows [][]interface{}) ([]*Record, error) {
	h := &hydrator{
		tree:  t,
		roots: make([]*Record, 0),
		index: make(map[interface{}]*Record),
	}
	for i, row := range rows {
		if len(row) != t.Width() {
			return nil, fmt.Errorf("%w: row %d has %d values, want %d", ErrRowShape, i, len(row), t.Width())
		}
		h.row(row)
	}
	for _, r := range h.created {
		r.children = nil
	}
	return h.roots, nil
}

// HydrateOne returns the first root entity, or nil when rows is empty.
func HydrateOne(t *Tree, rows [][]interface{}) (*Record, error) {
	records, err := Hydrate(t, rows)
	if err != nil || len(records) == 0 {
		return nil, err
	}
	return records[0], nil
}

type hydrator struct {
	tree    *Tree
	roots   []*Record
	index   map[interface{}]*Record
	created []*Record
}

func (h *hydrator) row(row []interface{}) {
	root := h.tree.Root
	values, pk, ok := h.slice(root, row)
	if !ok {
		return
	}

	rec := h.index[pk]
	if rec == nil {
		rec = h.record(root, values)
		h.index[pk] = rec
		h.roots = append(h.roots, rec)
	}
	h.attach(rec, root, row)
}

func (h *hydrator) attach(parent *Record, n *Node, row []interface{}) {
	for _, child := range n.Children {
		values, pk, ok := h.slice(child, row)
		if !ok {
			continue
		}

		if parent.children == nil {
			parent.children = make(map[int]map[interface{}]*Record)
		}
		byKey := parent.children[child.ID]
		if byKey == nil {
			byKey = make(map[interface{}]*Record)
			parent.children[child.ID] = byKey
		}

		rec := byKey[pk]
		if rec == nil {
			rec = h.record(child, values)
			byKey[pk] = rec
			name := child.Relation.Name
			if child.FansOut() {
				parent.collections[name] = append(parent.collections[name], rec)
			} else {
				parent.setRelated(name, rec)
			}
		}
		h.attach(rec, child, row)
	}
}

func (h *hydrator) record(n *Node, values []interface{}) *Record {
	rec := newRecord(n, values)
	h.created = append(h.created, rec)
	return rec
}

// slice copies the node's columns out of row. ok is false when the node is
// absent from this row.
func (h *hydrator) slice(n *Node, row []interface{}) ([]interface{}, interface{}, bool) {
	s := h.tree.spans[n.ID]
	pk := normalizeValue(row[s.pk])
	if pk == nil {
		return nil, nil, false
	}

	values := make([]interface{}, s.end-s.start)
	for i := range values {
		values[i] = normalizeValue(row[s.start+i])
	}
	return values, pk, true
}
