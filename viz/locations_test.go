// ABOUTME: Tests for the location graph renderer
// ABOUTME: Renders small forests to DOT and checks nodes and edges
package viz

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harperreed/cistore/locations"
	"github.com/harperreed/cistore/models"
)

func sampleTree() *locations.Tree {
	return locations.NewTree([]models.Location{
		{PublicID: 1, ObjectID: 10, Parent: models.RootParent, Name: "dc"},
		{PublicID: 2, ObjectID: 20, Parent: 1, Name: "rack"},
		{PublicID: 3, ObjectID: 30, Parent: 2},
		{PublicID: 4, ObjectID: 40, Parent: models.RootParent, Name: "lab"},
	})
}

func TestRenderWholeForest(t *testing.T) {
	out, err := NewLocationGraph(sampleTree()).Render(context.Background(), models.RootParent, Formats["dot"])
	require.NoError(t, err)

	dot := string(out)
	for _, name := range []string{"loc1", "loc2", "loc3", "loc4"} {
		assert.Contains(t, dot, name)
	}
	assert.Contains(t, dot, "loc1 -> loc2")
	assert.Contains(t, dot, "loc2 -> loc3")
	assert.Contains(t, dot, "location 3")
}

func TestRenderSubtree(t *testing.T) {
	out, err := NewLocationGraph(sampleTree()).Render(context.Background(), 2, Formats["dot"])
	require.NoError(t, err)

	dot := string(out)
	assert.Contains(t, dot, "loc2")
	assert.Contains(t, dot, "loc3")
	assert.NotContains(t, dot, "loc1")
	assert.NotContains(t, dot, "loc4")
}

func TestRenderUnknownRoot(t *testing.T) {
	_, err := NewLocationGraph(sampleTree()).Render(context.Background(), 99, Formats["dot"])
	assert.Error(t, err)
}
