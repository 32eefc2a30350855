// ABOUTME: Init subcommand
// ABOUTME: Writes a default config file and creates the data directory
package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/harperreed/cistore/config"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default config file",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path := configPath
		if path == "" {
			path = config.DefaultPath()
		}
		if _, err := os.Stat(path); err == nil && !initForce {
			return fmt.Errorf("config already exists at %s (use --force to overwrite)", path)
		}

		c := config.Default()
		if storeBackend != "" {
			c.Store.Backend = storeBackend
		}
		if storePath != "" {
			c.Store.Path = storePath
		}
		if err := c.Validate(); err != nil {
			return err
		}
		if err := os.MkdirAll(filepath.Dir(c.Store.Path), 0755); err != nil {
			return fmt.Errorf("failed to create data directory: %w", err)
		}
		if err := config.Save(c, path); err != nil {
			return fmt.Errorf("failed to write config: %w", err)
		}
		fmt.Fprintf(stdout(cmd), "✓ wrote %s\n", path)
		return nil
	},
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite an existing config")
	rootCmd.AddCommand(initCmd)
}
