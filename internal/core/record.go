package core

import (
	"bytes"
	"encoding/json"

	"github.com/coregx/eager/internal/schema"
)

// Record is one hydrated entity: its selected attribute values in column
// order plus its eager-loaded relations.
type Record struct {
	entity *schema.Entity
	names  []string
	values []interface{}

	relations   []string // relation names in include order
	related     map[string]*Record
	collections map[string][]*Record

	// children indexes hydrated children by node id and primary key.
	// It only lives during hydration.
	children map[int]map[interface{}]*Record
}

func newRecord(n *Node, values []interface{}) *Record {
	r := &Record{
		entity: n.Entity,
		names:  n.Attributes,
		values: values,
	}
	for _, child := range n.Children {
		name := child.Relation.Name
		r.relations = append(r.relations, name)
		if child.FansOut() {
			if r.collections == nil {
				r.collections = make(map[string][]*Record)
			}
			r.collections[name] = []*Record{}
		}
	}
	return r
}

// Entity returns the record's entity.
func (r *Record) Entity() *schema.Entity {
	return r.entity
}

// Attributes returns the selected attribute names in column order.
func (r *Record) Attributes() []string {
	out := make([]string, len(r.names))
	copy(out, r.names)
	return out
}

// Get returns the value of attr and whether it was selected.
func (r *Record) Get(attr string) (interface{}, bool) {
	for i, name := range r.names {
		if name == attr {
			return r.values[i], true
		}
	}
	return nil, false
}

// Value returns the value of attr, or nil when it was not selected.
func (r *Record) Value(attr string) interface{} {
	v, _ := r.Get(attr)
	return v
}

// PrimaryKey returns the primary key value.
func (r *Record) PrimaryKey() interface{} {
	return r.Value(r.entity.PrimaryKey)
}

// Pick returns the named attributes that were selected.
func (r *Record) Pick(attrs ...string) map[string]interface{} {
	out := make(map[string]interface{}, len(attrs))
	for _, a := range attrs {
		if v, ok := r.Get(a); ok {
			out[a] = v
		}
	}
	return out
}

// Related returns the has-one or belongs-to record loaded under name,
// or nil when nothing matched.
func (r *Record) Related(name string) *Record {
	return r.related[name]
}

// Collection returns the has-many records loaded under name. A relation
// that was included but matched nothing yields an empty, non-nil slice.
func (r *Record) Collection(name string) []*Record {
	return r.collections[name]
}

// Relations returns the names of the relations loaded on the record.
func (r *Record) Relations() []string {
	out := make([]string, len(r.relations))
	copy(out, r.relations)
	return out
}

// MarshalJSON encodes attributes in column order followed by relations in
// include order.
func (r *Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')

	first := true
	field := func(name string, v interface{}) error {
		if !first {
			buf.WriteByte(',')
		}
		first = false
		key, err := json.Marshal(name)
		if err != nil {
			return err
		}
		val, err := json.Marshal(v)
		if err != nil {
			return err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
		return nil
	}

	for i, name := range r.names {
		if err := field(name, r.values[i]); err != nil {
			return nil, err
		}
	}
	for _, name := range r.relations {
		var v interface{}
		if list, ok := r.collections[name]; ok {
			v = list
		} else if rel := r.related[name]; rel != nil {
			v = rel
		}
		if err := field(name, v); err != nil {
			return nil, err
		}
	}

	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (r *Record) setRelated(name string, child *Record) {
	if r.related == nil {
		r.related = make(map[string]*Record)
	}
	if _, ok := r.related[name]; !ok {
		r.related[name] = child
	}
}
