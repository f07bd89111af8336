// Package cmd provides command-line interface commands for browserd.
package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"browserd/config"
	"browserd/session"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// CLI output formatters
var (
	successColor = color.New(color.FgGreen, color.Bold)
	errorColor   = color.New(color.FgRed, color.Bold)
	infoColor    = color.New(color.FgCyan)
	headerColor  = color.New(color.FgBlue, color.Bold)
)

// Global flags for sessions commands
var (
	outputJSON bool
	noColor    bool
	quiet      bool
)

const defaultTimeout = 30 * time.Second

// NewSessionsCmd creates the root sessions command with all subcommands.
func NewSessionsCmd() *cobra.Command {
	sessionsCmd := &cobra.Command{
		Use:   "sessions",
		Short: "Inspect stored session snapshots",
		Long: `Inspect the session snapshot database: list stored snapshots, show their
contents, export them as JSON and prune old history.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if noColor {
				color.NoColor = true
			}
		},
	}

	sessionsCmd.PersistentFlags().BoolVar(&outputJSON, "json", false, "Output in JSON format")
	sessionsCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")
	sessionsCmd.PersistentFlags().BoolVar(&quiet, "quiet", false, "Suppress progress output")

	sessionsCmd.AddCommand(newListCmd())
	sessionsCmd.AddCommand(newShowCmd())
	sessionsCmd.AddCommand(newExportCmd())
	sessionsCmd.AddCommand(newPruneCmd())

	return sessionsCmd
}

// openStorage opens the snapshot database from the active configuration.
func openStorage() (*session.Storage, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return session.NewStorage(cfg.GetSessionDBPath(), zap.NewNop().Sugar())
}

func newListCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored snapshots, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			storage, err := openStorage()
			if err != nil {
				return err
			}
			defer storage.Close()

			ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
			defer cancel()

			infos, err := storage.List(ctx, limit)
			if err != nil {
				return err
			}

			if outputJSON {
				return json.NewEncoder(os.Stdout).Encode(infos)
			}

			if len(infos) == 0 {
				infoColor.Println("No snapshots stored")
				return nil
			}

			headerColor.Printf("%-8s %-25s %s\n", "ID", "SAVED AT", "SIZE")
			for _, info := range infos {
				fmt.Printf("%-8d %-25s %d bytes\n",
					info.ID, info.SavedAt.Format(time.RFC3339), info.Bytes)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum snapshots to list")
	return cmd
}

func newShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one snapshot's tabs",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid snapshot ID %q", args[0])
			}

			storage, err := openStorage()
			if err != nil {
				return err
			}
			defer storage.Close()

			ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
			defer cancel()

			snap, err := storage.Load(ctx, id)
			if err != nil {
				return err
			}

			if outputJSON {
				return json.NewEncoder(os.Stdout).Encode(snap)
			}

			headerColor.Printf("Snapshot %d (saved %s)\n", id, snap.SavedAt.Format(time.RFC3339))
			for _, tab := range snap.Tabs {
				marker := "  "
				if tab.ID == snap.SelectedTabID {
					marker = successColor.Sprint("* ")
				}
				fmt.Printf("%s%s  %s\n", marker, tab.ID, tab.URL)
			}
			return nil
		},
	}
}

func newExportCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the latest snapshot as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			storage, err := openStorage()
			if err != nil {
				return err
			}
			defer storage.Close()

			ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
			defer cancel()

			var sp *spinner.Spinner
			if !quiet && !outputJSON {
				sp = spinner.New(spinner.CharSets[14], 100*time.Millisecond)
				sp.Suffix = " Exporting latest snapshot..."
				sp.Start()
			}

			snap, err := storage.LoadLatest(ctx)
			if sp != nil {
				sp.Stop()
			}
			if err != nil {
				return err
			}

			data, err := json.MarshalIndent(snap, "", "  ")
			if err != nil {
				return err
			}

			if output == "" || output == "-" {
				fmt.Println(string(data))
				return nil
			}
			if err := os.WriteFile(output, data, 0644); err != nil {
				return fmt.Errorf("failed to write %s: %w", output, err)
			}
			if !quiet {
				successColor.Printf("Exported %d tabs to %s\n", len(snap.Tabs), output)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file (default stdout)")
	return cmd
}

func newPruneCmd() *cobra.Command {
	var keep int

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete all but the newest snapshots",
		RunE: func(cmd *cobra.Command, args []string) error {
			if keep < 1 {
				return fmt.Errorf("--keep must be at least 1")
			}

			storage, err := openStorage()
			if err != nil {
				return err
			}
			defer storage.Close()

			ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
			defer cancel()

			removed, err := storage.Prune(ctx, keep)
			if err != nil {
				errorColor.Fprintf(os.Stderr, "Prune failed: %v\n", err)
				return err
			}

			if outputJSON {
				return json.NewEncoder(os.Stdout).Encode(map[string]int64{"removed": removed})
			}
			successColor.Printf("Removed %d snapshots, kept newest %d\n", removed, keep)
			return nil
		},
	}

	cmd.Flags().IntVar(&keep, "keep", 10, "Snapshots to keep")
	return cmd
}
