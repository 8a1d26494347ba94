package schema

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// File is the YAML representation of a schema.
//
//	entities:
//	  - name: Authors
//	    table: authors
//	    attributes: [id, name, {name: created_at, type: date}]
//	relations:
//	  - {owner: Authors, kind: has_many, related: Books}
type File struct {
	Entities  []EntityDoc   `yaml:"entities"`
	Relations []RelationDoc `yaml:"relations"`
}

// EntityDoc describes one entity in a schema file.
type EntityDoc struct {
	Name       string         `yaml:"name"`
	Table      string         `yaml:"table"`
	PrimaryKey string         `yaml:"primary_key"`
	Attributes []AttributeDoc `yaml:"attributes"`
}

// AttributeDoc is either a bare attribute name or a {name, type} mapping.
type AttributeDoc struct {
	Name string `yaml:"name"`
	Type string `yaml:"type"`
}

// UnmarshalYAML accepts the scalar shorthand.
func (a *AttributeDoc) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		a.Name = value.Value
		return nil
	}
	type plain AttributeDoc
	return value.Decode((*plain)(a))
}

// RelationDoc describes one relation in a schema file.
type RelationDoc struct {
	Owner      string `yaml:"owner"`
	Kind       string `yaml:"kind"`
	Related    string `yaml:"related"`
	ForeignKey string `yaml:"foreign_key"`
	RelatedKey string `yaml:"related_key"`
	As         string `yaml:"as"`
}

// LoadFile reads a YAML schema file into a new Registry.
func LoadFile(path string) (*Registry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open schema: %w", err)
	}
	defer func() { _ = f.Close() }()

	return LoadYAML(f)
}

// LoadYAML decodes a YAML schema into a new Registry.
// Unknown keys are rejected.
func LoadYAML(r io.Reader) (*Registry, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var doc File
	if err := dec.Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSchema, err)
	}
	return doc.Registry()
}

// Registry builds a Registry from the document.
// Entities are defined before relations, so relation order in the file is free.
func (d *File) Registry() (*Registry, error) {
	reg := NewRegistry()

	for _, ed := range d.Entities {
		attrs := make([]Attribute, 0, len(ed.Attributes))
		for _, ad := range ed.Attributes {
			typ, err := ParseAttrType(ad.Type)
			if err != nil {
				return nil, fmt.Errorf("entity %s attribute %s: %w", ed.Name, ad.Name, err)
			}
			attrs = append(attrs, Attribute{Name: ad.Name, Type: typ})
		}
		if _, err := reg.Define(Entity{
			Name:       ed.Name,
			Table:      ed.Table,
			PrimaryKey: ed.PrimaryKey,
			Attributes: attrs,
		}); err != nil {
			return nil, err
		}
	}

	for _, rd := range d.Relations {
		kind, err := ParseRelationKind(rd.Kind)
		if err != nil {
			return nil, fmt.Errorf("relation %s→%s: %w", rd.Owner, rd.Related, err)
		}
		var opts []RelationOption
		if rd.ForeignKey != "" {
			opts = append(opts, WithForeignKey(rd.ForeignKey))
		}
		if rd.RelatedKey != "" {
			opts = append(opts, WithRelatedKey(rd.RelatedKey))
		}
		if rd.As != "" {
			opts = append(opts, As(rd.As))
		}
		if _, err := reg.relate(kind, rd.Owner, rd.Related, opts); err != nil {
			return nil, err
		}
	}

	return reg, nil
}
