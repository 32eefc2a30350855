// ABOUTME: Root cobra command and shared process wiring
// ABOUTME: Loads config, builds the logger, store, event pipeline, and engine before subcommands run
package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/harperreed/cistore/config"
)

var (
	// Global flags
	configPath   string
	envFiles     []string
	storeBackend string
	storePath    string
	actingUserID int64
	jsonOutput   bool

	version = "dev"

	// Resolved for the running command
	cfg *config.Config
	rt  *app
)

var rootCmd = &cobra.Command{
	Use:   "cistore",
	Short: "cistore - configuration item store",
	Long: `cistore keeps configuration items (objects), the location tree they are
placed in, and the types that declare their fields.

Updates are versioned automatically, deletes can cascade through the
location tree, and every lifecycle change is published as an event.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		switch cmd.Name() {
		case "init", "help", "version", "completion":
			return nil
		}
		if cmd.Parent() != nil && cmd.Parent().Name() == "completion" {
			return nil
		}

		loaded, err := loadConfig()
		if err != nil {
			return err
		}
		cfg = loaded

		rt, err = newApp(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if rt == nil {
			return nil
		}
		err := rt.Close()
		rt = nil
		return err
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "cistore version %s\n", version)
	},
}

// Execute runs the CLI with the given build version.
func Execute(v string) error {
	version = v
	err := rootCmd.Execute()
	if rt != nil {
		_ = rt.Close()
		rt = nil
	}
	return err
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file (default: $XDG_CONFIG_HOME/cistore/config.toml)")
	rootCmd.PersistentFlags().StringSliceVar(&envFiles, "env-file", []string{".env"}, "Env files loaded before config")
	rootCmd.PersistentFlags().StringVar(&storeBackend, "backend", "", "Store backend override (sqlite or badger)")
	rootCmd.PersistentFlags().StringVar(&storePath, "db-path", "", "Store path override")
	rootCmd.PersistentFlags().Int64Var(&actingUserID, "user", 0, "Acting user id recorded on changes")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")

	rootCmd.AddCommand(versionCmd)
}

// loadConfig applies env files, the config file, then command-line overrides.
func loadConfig() (*config.Config, error) {
	if err := config.LoadEnvFiles(envFiles...); err != nil {
		return nil, err
	}
	loaded, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if storeBackend != "" {
		loaded.Store.Backend = storeBackend
	}
	if storePath != "" {
		loaded.Store.Path = storePath
	}
	if err := loaded.Validate(); err != nil {
		return nil, err
	}
	return loaded, nil
}

func stdout(cmd *cobra.Command) io.Writer {
	if cmd == nil {
		return os.Stdout
	}
	return cmd.OutOrStdout()
}
