package core

import (
	"sort"
	"strconv"
	"strings"
)

// getKeys returns sorted map keys for deterministic SQL generation.
func getKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// renumberPlaceholders rewrites ? placeholders as $1, $2, ... for dialects
// with numbered parameters. Placeholders are only ever emitted as bare ?,
// never inside literals, so a linear scan is sufficient.
func renumberPlaceholders(sql string) string {
	if !strings.Contains(sql, "?") {
		return sql
	}
	var sb strings.Builder
	sb.Grow(len(sql) + 8)
	n := 0
	for i := 0; i < len(sql); i++ {
		if sql[i] == '?' {
			n++
			sb.WriteByte('$')
			sb.WriteString(strconv.Itoa(n))
			continue
		}
		sb.WriteByte(sql[i])
	}
	return sb.String()
}

// normalizeValue converts driver byte slices to strings so hydrated values
// are comparable and printable.
func normalizeValue(v interface{}) interface{} {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}
