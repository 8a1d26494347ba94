package cli

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"github.com/coregx/eager/internal/core"
)

// QueryFile is the YAML form of a find or count request.
//
//	entity: Authors
//	where: {name: {like: "A%"}}
//	include:
//	  - relation: books
//	    required: true
//	    where: {year: {">": 1900}}
//	    include: [{relation: reviews}]
//	order: [name, -books.year]
//	limit: 10
//
// where blocks use the map form accepted by core.ParseFilter. Order terms
// are "attr" or "alias.attr", prefixed with "-" for descending.
type QueryFile struct {
	Entity     string                 `yaml:"entity"`
	Where      map[string]interface{} `yaml:"where"`
	Attributes []string               `yaml:"attributes"`
	Include    []IncludeDoc           `yaml:"include"`
	Order      []string               `yaml:"order"`
	Limit      int                    `yaml:"limit"`
	Offset     int                    `yaml:"offset"`
}

// IncludeDoc is one include in a query file.
type IncludeDoc struct {
	Relation   string                 `yaml:"relation"`
	Required   bool                   `yaml:"required"`
	Where      map[string]interface{} `yaml:"where"`
	Attributes []string               `yaml:"attributes"`
	Include    []IncludeDoc           `yaml:"include"`
}

// LoadQueryFile reads a query file.
func LoadQueryFile(fs afero.Fs, path string) (*QueryFile, error) {
	f, err := fs.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open query: %w", err)
	}
	defer func() { _ = f.Close() }()

	return DecodeQuery(f)
}

// DecodeQuery decodes a query document. Unknown keys are rejected.
func DecodeQuery(r io.Reader) (*QueryFile, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var q QueryFile
	if err := dec.Decode(&q); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("query: empty document")
		}
		return nil, fmt.Errorf("query: %w", err)
	}
	if q.Entity == "" {
		return nil, fmt.Errorf("query: entity is required")
	}
	return &q, nil
}

// FindOptions converts the document into compiler input.
func (q *QueryFile) FindOptions() (core.FindOptions, error) {
	where, err := core.ParseFilter(q.Where)
	if err != nil {
		return core.FindOptions{}, fmt.Errorf("where: %w", err)
	}
	includes, err := convertIncludes(q.Include)
	if err != nil {
		return core.FindOptions{}, err
	}
	orders, err := ParseOrders(q.Order)
	if err != nil {
		return core.FindOptions{}, err
	}
	return core.FindOptions{
		Entity:     q.Entity,
		Where:      where,
		Include:    includes,
		Attributes: q.Attributes,
		Order:      orders,
		Limit:      q.Limit,
		Offset:     q.Offset,
	}, nil
}

// CountOptions converts the document into compiler input. Attributes,
// order and pagination do not apply to counts and are ignored.
func (q *QueryFile) CountOptions() (core.CountOptions, error) {
	where, err := core.ParseFilter(q.Where)
	if err != nil {
		return core.CountOptions{}, fmt.Errorf("where: %w", err)
	}
	includes, err := convertIncludes(q.Include)
	if err != nil {
		return core.CountOptions{}, err
	}
	return core.CountOptions{Entity: q.Entity, Where: where, Include: includes}, nil
}

func convertIncludes(docs []IncludeDoc) ([]core.Include, error) {
	if len(docs) == 0 {
		return nil, nil
	}
	out := make([]core.Include, 0, len(docs))
	for _, d := range docs {
		if d.Relation == "" {
			return nil, fmt.Errorf("include: relation is required")
		}
		where, err := core.ParseFilter(d.Where)
		if err != nil {
			return nil, fmt.Errorf("include %q: where: %w", d.Relation, err)
		}
		nested, err := convertIncludes(d.Include)
		if err != nil {
			return nil, fmt.Errorf("include %q: %w", d.Relation, err)
		}
		out = append(out, core.Include{
			Relation:   d.Relation,
			Required:   d.Required,
			Where:      where,
			Attributes: d.Attributes,
			Include:    nested,
		})
	}
	return out, nil
}

// ParseOrders parses "attr", "alias.attr" and their "-" prefixed
// descending forms.
func ParseOrders(terms []string) ([]core.Order, error) {
	var out []core.Order
	for _, term := range terms {
		o := core.Order{}
		s := strings.TrimSpace(term)
		if strings.HasPrefix(s, "-") {
			o.Desc = true
			s = s[1:]
		}
		if alias, attr, ok := strings.Cut(s, "."); ok {
			o.Alias, o.Attr = alias, attr
		} else {
			o.Attr = s
		}
		if o.Attr == "" || (o.Alias == "" && strings.Contains(s, ".")) {
			return nil, fmt.Errorf("order: malformed term %q", term)
		}
		out = append(out, o)
	}
	return out, nil
}
