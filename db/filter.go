// ABOUTME: Equality filters over top-level and dotted document fields
// ABOUTME: Renders filters to SQLite json_extract clauses and matches decoded documents in memory
package db

import (
	"encoding/json"
	"regexp"
	"sort"
	"strings"

	"github.com/google/go-cmp/cmp"
)

// Filter matches documents whose fields equal the given values. Keys may be
// dotted paths into nested objects. An empty filter matches everything.
type Filter map[string]interface{}

var filterKey = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)*$`)

func (f Filter) keys() ([]string, error) {
	keys := make([]string, 0, len(f))
	for k := range f {
		if !filterKey.MatchString(k) {
			return nil, Error.New("invalid filter key %q", k)
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

// sqlWhere renders the filter as AND-ed json_extract comparisons.
func (f Filter) sqlWhere() (string, []interface{}, error) {
	keys, err := f.keys()
	if err != nil {
		return "", nil, err
	}

	var clauses []string
	var args []interface{}
	for _, k := range keys {
		path := "$." + k
		v, err := sqlValue(f[k])
		if err != nil {
			return "", nil, err
		}
		if v == nil {
			clauses = append(clauses, "json_extract(body, ?) IS NULL")
			args = append(args, path)
			continue
		}
		clauses = append(clauses, "json_extract(body, ?) = ?")
		args = append(args, path, v)
	}
	return strings.Join(clauses, " AND "), args, nil
}

// sqlValue converts a filter value to what json_extract returns for it.
func sqlValue(v interface{}) (interface{}, error) {
	switch x := v.(type) {
	case nil:
		return nil, nil
	case bool:
		if x {
			return int64(1), nil
		}
		return int64(0), nil
	case int:
		return int64(x), nil
	case int32:
		return int64(x), nil
	case int64:
		return x, nil
	case float64:
		return x, nil
	case string:
		return x, nil
	default:
		return nil, Error.New("unsupported filter value %T", v)
	}
}

// match reports whether the JSON document satisfies the filter.
func (f Filter) match(doc []byte) (bool, error) {
	if len(f) == 0 {
		return true, nil
	}
	keys, err := f.keys()
	if err != nil {
		return false, err
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal(doc, &decoded); err != nil {
		return false, Error.Wrap(err)
	}

	for _, k := range keys {
		got, ok := lookup(decoded, k)
		want := normalizeValue(f[k])
		if !ok {
			if want == nil {
				continue
			}
			return false, nil
		}
		if !cmp.Equal(got, want) {
			return false, nil
		}
	}
	return true, nil
}

func lookup(doc map[string]interface{}, path string) (interface{}, bool) {
	var cur interface{} = doc
	for _, part := range strings.Split(path, ".") {
		m, ok := cur.(map[string]interface{})
		if !ok {
			return nil, false
		}
		cur, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

func normalizeValue(v interface{}) interface{} {
	data, err := json.Marshal(v)
	if err != nil {
		return v
	}
	var out interface{}
	if err := json.Unmarshal(data, &out); err != nil {
		return v
	}
	return out
}
