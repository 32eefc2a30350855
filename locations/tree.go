// ABOUTME: In-memory parent/child index over a flat list of locations
// ABOUTME: Answers direct-children and transitive-descendant queries with a cycle guard
package locations

import (
	"github.com/harperreed/cistore/models"
)

// Tree groups locations by parent. It is built once per request and never
// mutated afterwards.
type Tree struct {
	byID     map[int64]models.Location
	children map[int64][]models.Location
}

// NewTree indexes all in a single pass. Input order is preserved within each
// group of siblings.
func NewTree(all []models.Location) *Tree {
	t := &Tree{
		byID:     make(map[int64]models.Location, len(all)),
		children: make(map[int64][]models.Location),
	}
	for _, loc := range all {
		t.byID[loc.PublicID] = loc
		t.children[loc.Parent] = append(t.children[loc.Parent], loc)
	}
	return t
}

// Len returns the number of indexed locations.
func (t *Tree) Len() int {
	return len(t.byID)
}

// Get returns the location with id.
func (t *Tree) Get(id int64) (models.Location, bool) {
	loc, ok := t.byID[id]
	return loc, ok
}

// Roots returns the locations that hang off the root sentinel.
func (t *Tree) Roots() []models.Location {
	return t.ChildrenOf(models.RootParent)
}

// ChildrenOf returns the direct children of id.
func (t *Tree) ChildrenOf(id int64) []models.Location {
	return append([]models.Location(nil), t.children[id]...)
}

// DescendantsOf returns every location reachable below id in breadth-first
// order. The start node is never included, and each node is visited at most
// once even if the stored parent links form a cycle.
func (t *Tree) DescendantsOf(id int64) []models.Location {
	visited := map[int64]bool{id: true}
	var out []models.Location

	queue := []int64{id}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, child := range t.children[cur] {
			if visited[child.PublicID] {
				continue
			}
			visited[child.PublicID] = true
			out = append(out, child)
			queue = append(queue, child.PublicID)
		}
	}
	return out
}

// ChildrenOf is a convenience for one-off lookups over a flat list.
func ChildrenOf(id int64, all []models.Location) []models.Location {
	return NewTree(all).ChildrenOf(id)
}

// DescendantsOf is a convenience for one-off lookups over a flat list.
func DescendantsOf(id int64, all []models.Location) []models.Location {
	return NewTree(all).DescendantsOf(id)
}

// IDs returns the public ids of locs in order.
func IDs(locs []models.Location) []int64 {
	ids := make([]int64, len(locs))
	for i, l := range locs {
		ids[i] = l.PublicID
	}
	return ids
}
