package core

import (
	"fmt"
	"reflect"
	"strings"
)

// ParseFilter converts a generic mapping, as decoded from YAML or JSON, into
// a Filter.
//
// Accepted forms:
//
//	{"name": "Ann"}                      name = 'Ann'
//	{"name": nil}                        name IS NULL
//	{"year": {"gte": 1900, "lt": 2000}}  year >= 1900 AND year < 2000
//	{"id": [1, 2, 3]}                    id IN (1, 2, 3)
//	{"$or": [{...}, {...}]}              (... OR ...)
//	{"$and": [{...}, {...}]}             (... AND ...)
//
// Keys are processed in sorted order so equal mappings compile to equal SQL.
func ParseFilter(m map[string]interface{}) (Filter, error) {
	if len(m) == 0 {
		return nil, nil
	}

	parts := make([]Filter, 0, len(m))
	for _, key := range getKeys(m) {
		value := m[key]

		switch key {
		case "$and", "$or":
			children, err := parseFilterList(key, value)
			if err != nil {
				return nil, err
			}
			if key == "$and" {
				parts = append(parts, And(children...))
			} else {
				parts = append(parts, Or(children...))
			}
			continue
		}

		if strings.HasPrefix(key, "$") {
			return nil, fmt.Errorf("%w: unknown combinator %q", ErrMalformedFilter, key)
		}

		f, err := parseAttrFilter(key, value)
		if err != nil {
			return nil, err
		}
		parts = append(parts, f)
	}

	if len(parts) == 1 {
		return parts[0], nil
	}
	return And(parts...), nil
}

func parseFilterList(key string, value interface{}) ([]Filter, error) {
	items, ok := value.([]interface{})
	if !ok {
		return nil, fmt.Errorf("%w: %s expects a list, got %T", ErrMalformedFilter, key, value)
	}
	children := make([]Filter, 0, len(items))
	for i, item := range items {
		sub, ok := item.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("%w: %s[%d] expects a mapping, got %T", ErrMalformedFilter, key, i, item)
		}
		f, err := ParseFilter(sub)
		if err != nil {
			return nil, err
		}
		if f != nil {
			children = append(children, f)
		}
	}
	return children, nil
}

func parseAttrFilter(attr string, value interface{}) (Filter, error) {
	switch v := value.(type) {
	case map[string]interface{}:
		if len(v) == 0 {
			return nil, fmt.Errorf("%w: %s has an empty operator mapping", ErrMalformedFilter, attr)
		}
		exps := make([]Filter, 0, len(v))
		for _, opName := range getKeys(v) {
			op, err := ParseOperator(opName)
			if err != nil {
				return nil, err
			}
			operand := v[opName]
			if op == OpIn {
				operand = toList(operand)
			}
			exps = append(exps, &CompareExp{Attr: attr, Op: op, Value: operand})
		}
		if len(exps) == 1 {
			return exps[0], nil
		}
		return And(exps...), nil
	case []interface{}:
		return In(attr, v...), nil
	default:
		return Eq(attr, value), nil
	}
}

// toList widens typed slices to []interface{}; other values pass through
// and are rejected when compiled.
func toList(v interface{}) interface{} {
	if list, ok := v.([]interface{}); ok {
		return list
	}
	rv := reflect.ValueOf(v)
	if v == nil || rv.Kind() != reflect.Slice || rv.Type().Elem().Kind() == reflect.Uint8 {
		return v
	}
	list := make([]interface{}, rv.Len())
	for i := range list {
		list[i] = rv.Index(i).Interface()
	}
	return list
}
