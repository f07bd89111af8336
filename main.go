// Package main is the entry point for the browserd session runtime.
package main

import (
	"context"
	"fmt"
	"os"

	"browserd/bootstrap"
	"browserd/cmd"
)

// run initializes and starts the browserd runtime.
func run() error {
	ctx := context.Background()

	app, err := bootstrap.NewApp(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}

	if err := app.Start(ctx); err != nil {
		app.Shutdown()
		return fmt.Errorf("failed to start application: %w", err)
	}

	if app.Config.IsMainProcess() {
		if err := app.ShowAddonsScreen(bootstrap.LogScreenHost{Sugar: app.Sugar}, false); err != nil {
			app.Sugar.Errorw("Failed to show add-on management screen", "error", err)
		}
	}

	app.WaitForShutdown()
	app.Shutdown()

	return nil
}

// main is the entry point.
func main() {
	// Check if running as CLI command
	if len(os.Args) > 1 && os.Args[1] == "sessions" {
		// Strip "sessions" from os.Args since the command already knows it's
		// the sessions command
		os.Args = append([]string{os.Args[0]}, os.Args[2:]...)

		sessionsCmd := cmd.NewSessionsCmd()
		if err := sessionsCmd.Execute(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	// Otherwise run as the session runtime
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
