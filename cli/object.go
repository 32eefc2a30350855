// ABOUTME: Object subcommands
// ABOUTME: Insert, read, patch, activate, run, and delete configuration items
package cli

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/harperreed/cistore/engine"
	"github.com/harperreed/cistore/models"
)

var (
	objectAddType     int64
	objectAddID       int64
	objectAddInactive bool
	objectFields      []string

	objectUpdateType    int64
	objectUpdateVersion string
	objectUpdateActive  string
	objectUpdateComment string

	objectDeleteCascade string
)

var objectCmd = &cobra.Command{
	Use:     "object",
	Aliases: []string{"obj"},
	Short:   "Manage objects",
}

var objectAddCmd = &cobra.Command{
	Use:   "add --type <type_id> [--field name=value ...]",
	Short: "Insert an object",
	Long: `Insert an object of an existing type. Field values are parsed as JSON
when possible, so --field port=22 stores a number and --field os=linux a string.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		fields, err := parseFields(objectFields)
		if err != nil {
			return err
		}
		in := models.NewObject{TypeID: objectAddType, Fields: fields}
		if cmd.Flags().Changed("id") {
			in.PublicID = &objectAddID
		}
		if objectAddInactive {
			active := false
			in.Active = &active
		}
		obj, err := rt.engine.Mutations.Insert(cmd.Context(), in, actingUserID)
		if err != nil {
			return err
		}
		return printObject(stdout(cmd), obj)
	},
}

var objectGetCmd = &cobra.Command{
	Use:   "get <id>",
	Short: "Show an object",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		obj, err := rt.engine.Mutations.Get(cmd.Context(), id)
		if err != nil {
			return err
		}
		return printObject(stdout(cmd), obj)
	},
}

var objectUpdateCmd = &cobra.Command{
	Use:   "update <id> [id...]",
	Short: "Patch one or more objects",
	Long: `Apply one patch to each id. Named fields are replaced or added; fields not
named are kept. The version is bumped from the number of changed fields unless
--version rebases it.

With several ids every object is attempted; failures are reported per id.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ids, err := parseIDs(args)
		if err != nil {
			return err
		}
		patch, err := buildPatch(cmd)
		if err != nil {
			return err
		}

		if len(ids) == 1 {
			obj, err := rt.engine.Mutations.Update(cmd.Context(), ids[0], patch, actingUserID)
			if err != nil {
				return err
			}
			return printObject(stdout(cmd), obj)
		}

		res := rt.engine.Mutations.UpdateMany(cmd.Context(), ids, patch, actingUserID)
		if err := printUpdateResult(stdout(cmd), res); err != nil {
			return err
		}
		if len(res.Failed) > 0 {
			return fmt.Errorf("%d of %d updates failed", len(res.Failed), len(ids))
		}
		return nil
	},
}

var objectStateCmd = &cobra.Command{
	Use:   "state <id> [true|false]",
	Short: "Show or set whether an object is active",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		w := stdout(cmd)

		if len(args) == 1 {
			active, err := rt.engine.Mutations.GetState(cmd.Context(), id)
			if err != nil {
				return err
			}
			if jsonOutput {
				return writeJSON(w, active)
			}
			fmt.Fprintln(w, active)
			return nil
		}

		active, err := engine.ParseActiveState([]byte(args[1]))
		if err != nil {
			return err
		}
		changed, err := rt.engine.Mutations.SetActive(cmd.Context(), id, active, actingUserID)
		if err != nil {
			return err
		}
		if jsonOutput {
			return writeJSON(w, map[string]bool{"active": active, "changed": changed})
		}
		if !changed {
			fmt.Fprintln(w, mutedStyle.Render(fmt.Sprintf("object %d already active=%t", id, active)))
			return nil
		}
		fmt.Fprintf(w, "✓ object %d active=%t\n", id, active)
		return nil
	},
}

var objectRunCmd = &cobra.Command{
	Use:   "run <id>",
	Short: "Request an immediate job run for an object",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		if err := rt.engine.Mutations.RunManual(cmd.Context(), id, actingUserID); err != nil {
			return err
		}
		fmt.Fprintf(stdout(cmd), "✓ run requested for object %d\n", id)
		return nil
	},
}

var objectDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete an object",
	Long: `Delete an object and its own location.

  --cascade locations   also delete every location below it
  --cascade children    also delete those locations and the objects placed in them`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		w := stdout(cmd)

		var res *models.CascadeResult
		switch objectDeleteCascade {
		case "":
			res, err = rt.engine.Cascades.DeleteObject(cmd.Context(), id, actingUserID)
		case "locations":
			res, err = rt.engine.Cascades.DeleteObjectWithLocationSubtree(cmd.Context(), id, actingUserID)
		case "children":
			res, err = rt.engine.Cascades.DeleteObjectWithChildObjects(cmd.Context(), id, actingUserID)
		default:
			return fmt.Errorf("invalid --cascade %q: use locations or children", objectDeleteCascade)
		}
		if err != nil {
			return err
		}
		if err := printCascade(w, res); err != nil {
			return err
		}
		if len(res.Failed) > 0 {
			return fmt.Errorf("%d cascade steps failed", len(res.Failed))
		}
		return nil
	},
}

var objectDeleteManyCmd = &cobra.Command{
	Use:   "delete-many <id> [id...]",
	Short: "Delete objects that have no location",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ids, err := parseIDs(args)
		if err != nil {
			return err
		}
		deleted, err := rt.engine.Cascades.DeleteMany(cmd.Context(), ids, actingUserID)
		w := stdout(cmd)
		if jsonOutput {
			if werr := writeJSON(w, map[string][]int64{"deleted": deleted}); werr != nil {
				return werr
			}
		} else if len(deleted) > 0 {
			fmt.Fprintf(w, "✓ deleted %s\n", joinIDs(deleted))
		}
		return err
	},
}

func init() {
	objectAddCmd.Flags().Int64Var(&objectAddType, "type", 0, "Type id (required)")
	objectAddCmd.Flags().Int64Var(&objectAddID, "id", 0, "Explicit public id")
	objectAddCmd.Flags().BoolVar(&objectAddInactive, "inactive", false, "Insert as inactive")
	objectAddCmd.Flags().StringArrayVarP(&objectFields, "field", "f", nil, "Field as name=value (repeatable)")
	_ = objectAddCmd.MarkFlagRequired("type")

	objectUpdateCmd.Flags().StringArrayVarP(&objectFields, "field", "f", nil, "Field as name=value (repeatable)")
	objectUpdateCmd.Flags().Int64Var(&objectUpdateType, "type", 0, "Move to another type")
	objectUpdateCmd.Flags().StringVar(&objectUpdateVersion, "version", "", "Rebase the version before bumping")
	objectUpdateCmd.Flags().StringVar(&objectUpdateActive, "active", "", "Set active (true or false)")
	objectUpdateCmd.Flags().StringVar(&objectUpdateComment, "comment", "", "Change comment")

	objectDeleteCmd.Flags().StringVar(&objectDeleteCascade, "cascade", "", "Cascade mode: locations or children")

	objectCmd.AddCommand(objectAddCmd, objectGetCmd, objectUpdateCmd, objectStateCmd,
		objectRunCmd, objectDeleteCmd, objectDeleteManyCmd)
	rootCmd.AddCommand(objectCmd)
}

func buildPatch(cmd *cobra.Command) (models.ObjectPatch, error) {
	var patch models.ObjectPatch
	fields, err := parseFields(objectFields)
	if err != nil {
		return patch, err
	}
	patch.Fields = fields
	patch.Comment = objectUpdateComment

	if cmd.Flags().Changed("type") {
		typeID := objectUpdateType
		patch.TypeID = &typeID
	}
	if cmd.Flags().Changed("version") {
		v := objectUpdateVersion
		patch.Version = &v
	}
	if cmd.Flags().Changed("active") {
		active, err := strconv.ParseBool(objectUpdateActive)
		if err != nil {
			return patch, fmt.Errorf("invalid --active %q", objectUpdateActive)
		}
		patch.Active = &active
	}
	return patch, nil
}

// parseFields turns name=value pairs into fields. Values that parse as JSON
// keep their JSON type; anything else is a string.
func parseFields(raw []string) ([]models.Field, error) {
	fields := make([]models.Field, 0, len(raw))
	for _, kv := range raw {
		name, value, ok := strings.Cut(kv, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid field %q: want name=value", kv)
		}
		fields = append(fields, models.Field{Name: name, Value: parseValue(value)})
	}
	return fields, nil
}

func parseValue(raw string) interface{} {
	var v interface{}
	if err := json.Unmarshal([]byte(raw), &v); err == nil {
		return v
	}
	return raw
}

func parseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid id %q", raw)
	}
	return id, nil
}

func parseIDs(raw []string) ([]int64, error) {
	ids := make([]int64, 0, len(raw))
	for _, r := range raw {
		for _, part := range strings.Split(r, ",") {
			if part = strings.TrimSpace(part); part == "" {
				continue
			}
			id, err := parseID(part)
			if err != nil {
				return nil, err
			}
			ids = append(ids, id)
		}
	}
	return ids, nil
}
