package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hellej/hope-graph-updater/internal/docker"
)

type removeFlags struct {
	force bool
}

// NewRemoveCommand creates the "remove" cobra command.
func NewRemoveCommand() *cobra.Command {
	flags := &removeFlags{}

	cmd := &cobra.Command{
		Use:     "remove <tag>",
		Aliases: []string{"rm"},
		Short:   "Remove a locally built image tag",
		Long: `Remove a local tag of the updater image. The argument is a bare tag of the
configured repository or a full repository:tag reference.

Examples:
  graph-updater remove dev
  graph-updater remove 2024-03-01 --force`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRemove(cmd.Context(), args[0], flags)
		},
	}

	cmd.Flags().BoolVarP(&flags.force, "force", "f", false, "Remove even if a stopped container uses the image")
	return cmd
}

func runRemove(ctx context.Context, arg string, flags *removeFlags) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ref, err := resolveRef(cfg, arg)
	if err != nil {
		return err
	}

	cli, err := docker.NewClient()
	if err != nil {
		return err
	}
	defer func() { _ = cli.Close() }()

	VerboseLog("Removing image %s (force=%t)", ref, flags.force)
	if err := docker.RemoveImage(ctx, cli, ref, flags.force); err != nil {
		return err
	}

	if IsJSONOutput() {
		printJSON(map[string]interface{}{"ref": ref.String(), "action": "removed"})
		return nil
	}
	fmt.Printf("Removed %s\n", ref)
	return nil
}
