// ABOUTME: Location subcommands
// ABOUTME: Place objects in the location tree and inspect subtrees
package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/harperreed/cistore/models"
)

var (
	locationParent int64
	locationName   string
	locationRoot   int64
)

var locationCmd = &cobra.Command{
	Use:     "location",
	Aliases: []string{"loc"},
	Short:   "Manage the location tree",
}

var locationAddCmd = &cobra.Command{
	Use:   "add <object_id>",
	Short: "Place an object in the location tree",
	Long: `Create the location of an object. Without --parent the location is a
top-level node. An object has at most one location.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		objectID, err := parseID(args[0])
		if err != nil {
			return err
		}
		loc, err := rt.engine.Locations.Place(cmd.Context(), objectID, locationParent, locationName)
		if err != nil {
			return err
		}
		return printLocation(stdout(cmd), loc)
	},
}

var locationGetCmd = &cobra.Command{
	Use:   "get <object_id>",
	Short: "Show the location of an object",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		objectID, err := parseID(args[0])
		if err != nil {
			return err
		}
		loc, err := rt.engine.Locations.ForObject(cmd.Context(), objectID)
		if err != nil {
			return err
		}
		return printLocation(stdout(cmd), loc)
	},
}

var locationDescendantsCmd = &cobra.Command{
	Use:   "descendants <location_id>",
	Short: "List every location below a location",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		locs, err := rt.engine.Locations.Descendants(cmd.Context(), id)
		if err != nil {
			return err
		}
		w := stdout(cmd)
		if jsonOutput {
			return writeJSON(w, locs)
		}
		if len(locs) == 0 {
			fmt.Fprintln(w, mutedStyle.Render("no descendants"))
			return nil
		}
		for i := range locs {
			fmt.Fprintf(w, "%d %s\n", locs[i].PublicID,
				mutedStyle.Render(fmt.Sprintf("(object %d, parent %d)", locs[i].ObjectID, locs[i].Parent)))
		}
		return nil
	},
}

var locationTreeCmd = &cobra.Command{
	Use:   "tree",
	Short: "Print the location tree",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		tree, err := rt.engine.Locations.Tree(cmd.Context())
		if err != nil {
			return err
		}
		return printTree(stdout(cmd), tree, locationRoot)
	},
}

func init() {
	locationAddCmd.Flags().Int64Var(&locationParent, "parent", models.RootParent, "Parent location id (0 for top level)")
	locationAddCmd.Flags().StringVar(&locationName, "name", "", "Location name")
	locationTreeCmd.Flags().Int64Var(&locationRoot, "root", models.RootParent, "Start at this location")

	locationCmd.AddCommand(locationAddCmd, locationGetCmd, locationDescendantsCmd, locationTreeCmd)
	rootCmd.AddCommand(locationCmd)
}
