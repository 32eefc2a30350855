// ABOUTME: Terminal rendering for objects, locations, and cascade results
// ABOUTME: Uses lipgloss styles for humans and plain JSON with --json
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/harperreed/cistore/locations"
	"github.com/harperreed/cistore/models"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("170"))

	labelStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("245")).
			Width(16)

	valueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252"))

	inactiveStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("9"))

	failureStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("9")).
			Bold(true)

	mutedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("8"))
)

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func row(w io.Writer, label, value string) {
	fmt.Fprintf(w, "%s %s\n", labelStyle.Render(label), valueStyle.Render(value))
}

func printObject(w io.Writer, obj *models.Object) error {
	if jsonOutput {
		return writeJSON(w, obj)
	}

	fmt.Fprintln(w, titleStyle.Render(fmt.Sprintf("Object %d", obj.PublicID)))
	row(w, "type", fmt.Sprintf("%d", obj.TypeID))
	row(w, "version", obj.Version)
	if obj.Active {
		row(w, "active", "yes")
	} else {
		fmt.Fprintf(w, "%s %s\n", labelStyle.Render("active"), inactiveStyle.Render("no"))
	}
	row(w, "author", fmt.Sprintf("%d", obj.AuthorID))
	row(w, "created", obj.CreationTime.Format("2006-01-02 15:04:05"))
	if obj.EditorID != nil {
		row(w, "editor", fmt.Sprintf("%d", *obj.EditorID))
	}
	if obj.LastEditTime != nil {
		row(w, "last edit", obj.LastEditTime.Format("2006-01-02 15:04:05"))
	}
	if len(obj.Fields) > 0 {
		fmt.Fprintln(w, mutedStyle.Render("fields"))
		for _, f := range obj.Fields {
			row(w, "  "+f.Name, fmt.Sprintf("%v", f.Value))
		}
	}
	return nil
}

func printObjects(w io.Writer, objs []models.Object) error {
	if jsonOutput {
		return writeJSON(w, objs)
	}
	if len(objs) == 0 {
		fmt.Fprintln(w, mutedStyle.Render("no objects"))
		return nil
	}
	for i := range objs {
		if err := printObject(w, &objs[i]); err != nil {
			return err
		}
	}
	return nil
}

func printFailures(w io.Writer, failed []models.FailureRecord) {
	for _, f := range failed {
		fmt.Fprintln(w, failureStyle.Render(fmt.Sprintf("✗ %s %d [%d] %s", f.Collection, f.PublicID, f.Status, f.Message)))
	}
}

func printUpdateResult(w io.Writer, res *models.UpdateResult) error {
	if jsonOutput {
		return writeJSON(w, res)
	}
	for _, obj := range res.Results {
		fmt.Fprintf(w, "✓ %d -> %s\n", obj.PublicID, obj.Version)
	}
	printFailures(w, res.Failed)
	return nil
}

func printCascade(w io.Writer, res *models.CascadeResult) error {
	if jsonOutput {
		return writeJSON(w, res)
	}
	fmt.Fprintln(w, titleStyle.Render(fmt.Sprintf("Deleted object %d", res.ObjectID)))
	row(w, "locations", joinIDs(res.DeletedLocations))
	row(w, "objects", joinIDs(res.DeletedObjects))
	printFailures(w, res.Failed)
	return nil
}

func printLocation(w io.Writer, loc *models.Location) error {
	if jsonOutput {
		return writeJSON(w, loc)
	}
	fmt.Fprintln(w, titleStyle.Render(fmt.Sprintf("Location %d", loc.PublicID)))
	row(w, "object", fmt.Sprintf("%d", loc.ObjectID))
	row(w, "parent", fmt.Sprintf("%d", loc.Parent))
	if loc.Name != "" {
		row(w, "name", loc.Name)
	}
	row(w, "type", loc.Type)
	return nil
}

// printTree renders the forest below root as an indented outline.
func printTree(w io.Writer, tree *locations.Tree, root int64) error {
	var start []models.Location
	if root == models.RootParent {
		start = tree.Roots()
	} else {
		loc, ok := tree.Get(root)
		if !ok {
			return fmt.Errorf("location %d not found", root)
		}
		start = []models.Location{loc}
	}
	if jsonOutput {
		out := append([]models.Location(nil), start...)
		for _, loc := range start {
			out = append(out, tree.DescendantsOf(loc.PublicID)...)
		}
		return writeJSON(w, out)
	}
	if len(start) == 0 {
		fmt.Fprintln(w, mutedStyle.Render("no locations"))
		return nil
	}

	seen := make(map[int64]bool)
	var walk func(loc models.Location, depth int)
	walk = func(loc models.Location, depth int) {
		if seen[loc.PublicID] {
			return
		}
		seen[loc.PublicID] = true
		label := fmt.Sprintf("%d", loc.PublicID)
		if loc.Name != "" {
			label += " " + loc.Name
		}
		fmt.Fprintf(w, "%s%s %s\n", strings.Repeat("  ", depth), valueStyle.Render(label),
			mutedStyle.Render(fmt.Sprintf("(object %d)", loc.ObjectID)))
		for _, child := range tree.ChildrenOf(loc.PublicID) {
			walk(child, depth+1)
		}
	}
	for _, loc := range start {
		walk(loc, 0)
	}
	return nil
}

func joinIDs(ids []int64) string {
	if len(ids) == 0 {
		return "-"
	}
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = fmt.Sprintf("%d", id)
	}
	return strings.Join(parts, ", ")
}
