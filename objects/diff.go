// ABOUTME: Field diff engine for configuration item objects
// ABOUTME: Compares two field lists by name and reports changed, added, and removed names
package objects

import (
	"encoding/json"
	"sort"

	"github.com/google/go-cmp/cmp"

	"github.com/harperreed/cistore/models"
)

// FieldDiff is the set difference between two field collections.
// Each slice is sorted so the result does not depend on input order.
type FieldDiff struct {
	Changed []string `json:"changed"`
	Added   []string `json:"added"`
	Removed []string `json:"removed"`
}

// Empty reports whether nothing changed, was added, or was removed.
func (d FieldDiff) Empty() bool {
	return len(d.Changed) == 0 && len(d.Added) == 0 && len(d.Removed) == 0
}

// Diff compares old and new by field name. A name in both with a different
// value is changed, a name only in new is added, a name only in old is removed.
func Diff(old, new []models.Field) FieldDiff {
	before := indexFields(old)
	after := indexFields(new)

	d := FieldDiff{
		Changed: []string{},
		Added:   []string{},
		Removed: []string{},
	}

	for name, value := range after {
		prev, ok := before[name]
		if !ok {
			d.Added = append(d.Added, name)
			continue
		}
		if !ValuesEqual(prev, value) {
			d.Changed = append(d.Changed, name)
		}
	}
	for name := range before {
		if _, ok := after[name]; !ok {
			d.Removed = append(d.Removed, name)
		}
	}

	sort.Strings(d.Changed)
	sort.Strings(d.Added)
	sort.Strings(d.Removed)
	return d
}

// indexFields keys fields by name; a duplicated name keeps its last value.
func indexFields(fields []models.Field) map[string]interface{} {
	m := make(map[string]interface{}, len(fields))
	for _, f := range fields {
		m[f.Name] = f.Value
	}
	return m
}

// ValuesEqual compares two field values after normalizing them through JSON,
// so an int 1 read from a patch equals a float64 1 read from the store.
func ValuesEqual(a, b interface{}) bool {
	return cmp.Equal(normalize(a), normalize(b))
}

func normalize(v interface{}) interface{} {
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
