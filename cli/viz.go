// ABOUTME: Visualization subcommand
// ABOUTME: Renders the location tree with graphviz to stdout or a file
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/harperreed/cistore/viz"
)

var (
	vizFormat string
	vizOutput string
	vizRoot   int64
)

var vizCmd = &cobra.Command{
	Use:   "viz",
	Short: "Render the location tree (dot, svg, or png)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		format, ok := viz.Formats[vizFormat]
		if !ok {
			return fmt.Errorf("unknown format %q: use dot, svg, or png", vizFormat)
		}
		tree, err := rt.engine.Locations.Tree(cmd.Context())
		if err != nil {
			return err
		}
		if vizRoot != 0 {
			if _, ok := tree.Get(vizRoot); !ok {
				return fmt.Errorf("location %d not found", vizRoot)
			}
		}

		out, err := viz.NewLocationGraph(tree).Render(cmd.Context(), vizRoot, format)
		if err != nil {
			return err
		}
		if vizOutput != "" {
			return os.WriteFile(vizOutput, out, 0644)
		}
		_, err = stdout(cmd).Write(out)
		return err
	},
}

func init() {
	vizCmd.Flags().StringVar(&vizFormat, "format", "dot", "Output format: dot, svg, png")
	vizCmd.Flags().StringVarP(&vizOutput, "output", "o", "", "Output file (default: stdout)")
	vizCmd.Flags().Int64Var(&vizRoot, "root", 0, "Render only the subtree at this location")
	rootCmd.AddCommand(vizCmd)
}
