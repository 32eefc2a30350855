// ABOUTME: Type subcommands
// ABOUTME: Declare object types and reconcile objects that drifted from their type
package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/harperreed/cistore/models"
)

var (
	typeLabel    string
	typeFields   []string
	typeInactive bool
	cleanDryRun  bool
)

var typeCmd = &cobra.Command{
	Use:   "type",
	Short: "Manage object types",
}

var typeAddCmd = &cobra.Command{
	Use:   "add <name> [--field name[=default] ...]",
	Short: "Declare a type",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		typ := &models.Type{
			Name:     args[0],
			Label:    typeLabel,
			Active:   !typeInactive,
			AuthorID: actingUserID,
		}
		for _, raw := range typeFields {
			name, value, hasDefault := strings.Cut(raw, "=")
			name = strings.TrimSpace(name)
			if name == "" {
				return fmt.Errorf("invalid field %q", raw)
			}
			tf := models.TypeField{Name: name}
			if hasDefault {
				tf.Value = parseValue(value)
			}
			typ.Fields = append(typ.Fields, tf)
		}

		if err := rt.repo.InsertType(cmd.Context(), typ); err != nil {
			return err
		}
		w := stdout(cmd)
		if jsonOutput {
			return writeJSON(w, typ)
		}
		fmt.Fprintf(w, "✓ type %d %s (%s)\n", typ.PublicID, typ.Name, strings.Join(typ.FieldNames(), ", "))
		return nil
	},
}

var typeListCmd = &cobra.Command{
	Use:   "list",
	Short: "List types",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		types, err := rt.repo.FindTypes(cmd.Context(), nil)
		if err != nil {
			return err
		}
		w := stdout(cmd)
		if jsonOutput {
			return writeJSON(w, types)
		}
		if len(types) == 0 {
			fmt.Fprintln(w, mutedStyle.Render("no types"))
			return nil
		}
		for _, t := range types {
			line := fmt.Sprintf("%d %s", t.PublicID, t.Name)
			if !t.Active {
				line += inactiveStyle.Render(" (inactive)")
			}
			fmt.Fprintf(w, "%s %s\n", line, mutedStyle.Render(strings.Join(t.FieldNames(), ", ")))
		}
		return nil
	},
}

var typeUnstructuredCmd = &cobra.Command{
	Use:   "unstructured <type_id>",
	Short: "List objects whose fields differ from their type",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		typeID, err := parseID(args[0])
		if err != nil {
			return err
		}
		objs, err := rt.engine.Mutations.UnstructuredObjects(cmd.Context(), typeID)
		if err != nil {
			return err
		}
		return printObjects(stdout(cmd), objs)
	},
}

var typeCleanCmd = &cobra.Command{
	Use:   "clean <type_id>",
	Short: "Reconcile objects to their type's declared fields",
	Long: `Remove undeclared fields and add missing declared fields (with the type's
default) on every unstructured object of the type. Each cleaned object gets a
new version.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		typeID, err := parseID(args[0])
		if err != nil {
			return err
		}
		if cleanDryRun {
			objs, err := rt.engine.Mutations.UnstructuredObjects(cmd.Context(), typeID)
			if err != nil {
				return err
			}
			w := stdout(cmd)
			if jsonOutput {
				return writeJSON(w, objs)
			}
			fmt.Fprintf(w, "[DRY RUN] would clean %d objects\n", len(objs))
			for _, o := range objs {
				fmt.Fprintf(w, "  %d\n", o.PublicID)
			}
			return nil
		}

		res, err := rt.engine.Mutations.CleanType(cmd.Context(), typeID, actingUserID)
		if err != nil {
			return err
		}
		return printUpdateResult(stdout(cmd), res)
	},
}

func init() {
	typeAddCmd.Flags().StringVar(&typeLabel, "label", "", "Display label")
	typeAddCmd.Flags().StringArrayVarP(&typeFields, "field", "f", nil, "Declared field as name or name=default (repeatable)")
	typeAddCmd.Flags().BoolVar(&typeInactive, "inactive", false, "Declare the type inactive")
	typeCleanCmd.Flags().BoolVar(&cleanDryRun, "dry-run", false, "Only list the objects that would change")

	typeCmd.AddCommand(typeAddCmd, typeListCmd, typeUnstructuredCmd, typeCleanCmd)
	rootCmd.AddCommand(typeCmd)
}
