// ABOUTME: Tests for the field diff engine
// ABOUTME: Covers changed/added/removed detection, order independence, and value normalization
package objects

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/harperreed/cistore/models"
)

func TestDiffDetectsChangedAddedRemoved(t *testing.T) {
	old := []models.Field{
		{Name: "hostname", Value: "db01"},
		{Name: "ip", Value: "10.0.0.1"},
		{Name: "rack", Value: "r1"},
	}
	new := []models.Field{
		{Name: "hostname", Value: "db01"},
		{Name: "ip", Value: "10.0.0.2"},
		{Name: "owner", Value: "ops"},
	}

	d := Diff(old, new)

	assert.Equal(t, []string{"ip"}, d.Changed)
	assert.Equal(t, []string{"owner"}, d.Added)
	assert.Equal(t, []string{"rack"}, d.Removed)
	assert.False(t, d.Empty())
}

func TestDiffIsOrderIndependent(t *testing.T) {
	a := []models.Field{{Name: "a", Value: 1}, {Name: "b", Value: 2}, {Name: "c", Value: 3}}
	b := []models.Field{{Name: "c", Value: 30}, {Name: "a", Value: 10}, {Name: "b", Value: 2}}
	reversed := []models.Field{b[2], b[1], b[0]}

	assert.Equal(t, Diff(a, b), Diff(a, reversed))
	assert.Equal(t, []string{"a", "c"}, Diff(a, b).Changed)
}

func TestDiffIdenticalFieldsIsEmpty(t *testing.T) {
	fields := []models.Field{{Name: "a", Value: "x"}, {Name: "b", Value: nil}}

	d := Diff(fields, fields)

	assert.True(t, d.Empty())
	assert.Empty(t, d.Changed)
}

func TestDiffNormalizesNumericValues(t *testing.T) {
	old := []models.Field{{Name: "cpus", Value: float64(4)}}
	new := []models.Field{{Name: "cpus", Value: 4}}

	assert.True(t, Diff(old, new).Empty())
}

func TestDiffComparesNestedValues(t *testing.T) {
	old := []models.Field{{Name: "tags", Value: []interface{}{"a", "b"}}}
	same := []models.Field{{Name: "tags", Value: []string{"a", "b"}}}
	other := []models.Field{{Name: "tags", Value: []string{"b", "a"}}}

	assert.True(t, Diff(old, same).Empty())
	assert.Equal(t, []string{"tags"}, Diff(old, other).Changed)
}

func TestDiffHandlesEmptyInputs(t *testing.T) {
	d := Diff(nil, []models.Field{{Name: "a", Value: 1}})
	assert.Equal(t, []string{"a"}, d.Added)

	d = Diff([]models.Field{{Name: "a", Value: 1}}, nil)
	assert.Equal(t, []string{"a"}, d.Removed)

	assert.True(t, Diff(nil, nil).Empty())
}
