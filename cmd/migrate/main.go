// ABOUTME: Migration utility that moves stored collections between backends.
// ABOUTME: Provides dry-run and backup capabilities for safe data moves.

package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/harperreed/cistore/db"
	"github.com/harperreed/cistore/models"
)

var (
	fromBackend string
	fromPath    string
	toBackend   string
	toPath      string
	dryRun      bool
	backup      bool
)

var rootCmd = &cobra.Command{
	Use:   "cistore-migrate",
	Short: "Copy objects, locations, and types from one store to another",
	Long: `Copy every document of the objects, locations, and types collections from
the source store into the destination store. Documents whose id already exists
in the destination are skipped, so the tool can be re-run safely.`,
	Args:         cobra.NoArgs,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		log, err := zap.NewDevelopment()
		if err != nil {
			return err
		}
		defer func() { _ = log.Sync() }()
		return migrate(cmd.Context(), log)
	},
}

func main() {
	rootCmd.Flags().StringVar(&fromBackend, "from-backend", db.BackendSQLite, "Source backend (sqlite or badger)")
	rootCmd.Flags().StringVar(&fromPath, "from", "", "Source store path (required)")
	rootCmd.Flags().StringVar(&toBackend, "to-backend", db.BackendBadger, "Destination backend (sqlite or badger)")
	rootCmd.Flags().StringVar(&toPath, "to", "", "Destination store path (required)")
	rootCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Show what would happen without making changes")
	rootCmd.Flags().BoolVar(&backup, "backup", true, "Back up a SQLite destination before writing")
	_ = rootCmd.MarkFlagRequired("from")
	_ = rootCmd.MarkFlagRequired("to")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Migration failed: %v\n", err)
		os.Exit(1)
	}
}

func migrate(ctx context.Context, log *zap.Logger) error {
	if fromBackend == toBackend && fromPath == toPath {
		return fmt.Errorf("source and destination are the same store")
	}
	if _, err := os.Stat(fromPath); os.IsNotExist(err) {
		return fmt.Errorf("source store does not exist: %s", fromPath)
	}

	if backup && !dryRun && toBackend == db.BackendSQLite {
		if err := backupFile(toPath, log); err != nil {
			return err
		}
	}

	src, err := db.Open(fromBackend, fromPath, log)
	if err != nil {
		return fmt.Errorf("failed to open source: %w", err)
	}
	defer func() { _ = src.Close() }()

	dst, err := db.Open(toBackend, toPath, log)
	if err != nil {
		return fmt.Errorf("failed to open destination: %w", err)
	}
	defer func() { _ = dst.Close() }()

	collections := []string{models.CollectionTypes, models.CollectionObjects, models.CollectionLocations}
	stats, err := db.Copy(ctx, src, dst, collections, dryRun, log)
	if err != nil {
		return err
	}

	prefix := ""
	if dryRun {
		prefix = "[DRY RUN] would copy "
	}
	for _, c := range collections {
		fmt.Printf("%s%s: %d copied, %d skipped\n", prefix, c, stats[c].Copied, stats[c].Skipped)
	}
	return nil
}

// backupFile copies an existing SQLite file next to itself. A missing file
// needs no backup.
func backupFile(path string, log *zap.Logger) error {
	input, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read database: %w", err)
	}

	backupPath := fmt.Sprintf("%s.backup.%s", path, time.Now().Format("20060102-150405"))
	if err := os.WriteFile(backupPath, input, 0644); err != nil {
		return fmt.Errorf("failed to create backup: %w", err)
	}
	log.Info("backup created", zap.String("path", backupPath))
	return nil
}
