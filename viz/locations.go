// ABOUTME: Graphviz rendering of the location forest
// ABOUTME: Draws one node per location and an edge from each parent to its children
package viz

import (
	"bytes"
	"context"
	"fmt"

	"github.com/goccy/go-graphviz"
	"github.com/goccy/go-graphviz/cgraph"

	"github.com/harperreed/cistore/locations"
	"github.com/harperreed/cistore/models"
)

// Formats accepted by LocationGraph.Render, keyed by name.
var Formats = map[string]graphviz.Format{
	"dot": graphviz.XDOT,
	"svg": graphviz.SVG,
	"png": graphviz.PNG,
}

// LocationGraph renders a location tree.
type LocationGraph struct {
	tree *locations.Tree
}

func NewLocationGraph(tree *locations.Tree) *LocationGraph {
	return &LocationGraph{tree: tree}
}

// Render draws the subtree below root (models.RootParent for the whole
// forest). A non-root start node is drawn too.
func (g *LocationGraph) Render(ctx context.Context, root int64, format graphviz.Format) ([]byte, error) {
	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create graphviz instance: %w", err)
	}
	defer gv.Close()

	graph, err := gv.Graph()
	if err != nil {
		return nil, fmt.Errorf("failed to create graph: %w", err)
	}
	defer graph.Close()

	graph.SetRankDir(cgraph.TBRank)

	var nodesToDraw []models.Location
	if root != models.RootParent {
		start, ok := g.tree.Get(root)
		if !ok {
			return nil, fmt.Errorf("location %d not found", root)
		}
		nodesToDraw = append(nodesToDraw, start)
	}
	nodesToDraw = append(nodesToDraw, g.tree.DescendantsOf(root)...)

	nodes := make(map[int64]*cgraph.Node, len(nodesToDraw))
	for _, loc := range nodesToDraw {
		n, err := graph.CreateNodeByName(nodeName(loc.PublicID))
		if err != nil {
			return nil, fmt.Errorf("failed to create node: %w", err)
		}
		n.SetLabel(nodeLabel(loc))
		n.SetShape(cgraph.BoxShape)
		nodes[loc.PublicID] = n
	}

	for _, loc := range nodesToDraw {
		parent, ok := nodes[loc.Parent]
		if !ok {
			continue
		}
		if _, err := graph.CreateEdgeByName("", parent, nodes[loc.PublicID]); err != nil {
			return nil, fmt.Errorf("failed to create edge: %w", err)
		}
	}

	var buf bytes.Buffer
	if err := gv.Render(ctx, graph, format, &buf); err != nil {
		return nil, fmt.Errorf("failed to render graph: %w", err)
	}
	return buf.Bytes(), nil
}

func nodeName(id int64) string {
	return fmt.Sprintf("loc%d", id)
}

func nodeLabel(loc models.Location) string {
	name := loc.Name
	if name == "" {
		name = fmt.Sprintf("location %d", loc.PublicID)
	}
	return fmt.Sprintf("%s\nobject %d", name, loc.ObjectID)
}
