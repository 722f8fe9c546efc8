package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/hellej/hope-graph-updater/internal/launcher"
)

// NewStartCommand creates the "start" cobra command, the container entry
// point that replaces start-application.sh.
func NewStartCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the updater application (container entry point)",
		Long: `Start the configured application command. When RUN_DEV is exactly "True"
the application runs in dev mode with GRAPH_SUBSET=True and loads the graph
subset; otherwise it runs in prod mode on the full graph.

The application inherits stdin, stdout and stderr, and its exit code is
returned as the exit code of this command.

Examples:
  graph-updater start
  RUN_DEV=True graph-updater start`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStart(cmd.Context())
		},
	}
}

func runStart(ctx context.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	l := launcher.New(logger, cfg.App.Command)
	l.Dir = cfg.App.Dir
	VerboseLog("Application command: %v (mode %s)", cfg.App.Command, l.Mode())
	return l.Run(ctx)
}
