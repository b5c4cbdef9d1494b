// Command indexctl runs archive maintenance tasks outside the server
// process. Its run subcommand executes one full scan and reconcile pass
// and exits 0 on success, 1 on failure.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"insta-archive/internal/database"
	"insta-archive/internal/indexer"
	"insta-archive/internal/scanner"
	"insta-archive/internal/startup"
)

var (
	dataDir string
	dbPath  string
)

func main() {
	root := &cobra.Command{
		Use:          "indexctl",
		Short:        "Archive index maintenance",
		SilenceUsage: true,
	}

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run one full index pass and exit",
		RunE:  runOnce,
	}
	runCmd.Flags().StringVar(&dataDir, "data-dir", "/data", "export tree to index")
	runCmd.Flags().StringVar(&dbPath, "db", "/database/archive.db", "SQLite database path")

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Run: func(cmd *cobra.Command, _ []string) {
			info := startup.GetBuildInfo()
			fmt.Printf("indexctl %s (%s, built %s, %s)\n",
				info.Version, info.Commit, info.BuildTime, info.GoVersion)
		},
	}

	root.AddCommand(runCmd, versionCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func runOnce(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	db, err := database.New(ctx, dbPath)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			fmt.Fprintf(os.Stderr, "failed to close database: %v\n", closeErr)
		}
	}()

	start := time.Now()

	snap, err := scanner.New(dataDir).ScanRoot()
	if err != nil {
		return fmt.Errorf("scan failed: %w", err)
	}

	counts, err := indexer.Reconcile(db, snap, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("reconcile failed: %w", err)
	}

	fmt.Printf("indexed %d accounts in %v: %d accounts, %d posts, %d media, %d profile pics, %d tags, %d highlights created\n",
		len(snap.Accounts), time.Since(start).Round(time.Millisecond),
		counts.AccountsCreated, counts.PostsCreated, counts.MediaCreated,
		counts.ProfilePicsCreated, counts.TagsCreated, counts.HighlightsCreated)
	return nil
}
