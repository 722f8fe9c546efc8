package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hellej/hope-graph-updater/internal/docker"
	"github.com/hellej/hope-graph-updater/internal/model"
)

type stopFlags struct {
	remove bool
}

// NewStopCommand creates the "stop" cobra command.
func NewStopCommand() *cobra.Command {
	flags := &stopFlags{}

	cmd := &cobra.Command{
		Use:   "stop [variant]",
		Short: "Stop the local updater container",
		Long: `Stop the updater container started by "run" for a variant (default prod).
With --remove the container is removed as well; the image is kept.

Examples:
  graph-updater stop
  graph-updater stop dev --remove`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			variant := ""
			if len(args) == 1 {
				variant = args[0]
			}
			return runStop(cmd.Context(), variant, flags)
		},
	}

	cmd.Flags().BoolVar(&flags.remove, "remove", false, "Remove the container after stopping it")
	return cmd
}

func runStop(ctx context.Context, variantArg string, flags *stopFlags) error {
	variant, err := model.ParseVariant(variantArg)
	if err != nil {
		return model.WrapCLIError(model.ExitGeneralError, "invalid variant", err)
	}

	cli, err := docker.NewClient()
	if err != nil {
		return err
	}
	defer func() { _ = cli.Close() }()

	containers, err := docker.ListManagedContainers(ctx, cli)
	if err != nil {
		return err
	}
	c, ok := docker.FindContainer(containers, variant)
	if !ok {
		return model.NewCLIError(model.ExitImageNotFound,
			fmt.Sprintf("container %s not found", docker.ContainerName(variant)))
	}

	VerboseLog("Stopping container %s (%s)", c.ContainerName, shortID(c.ContainerID))
	if err := docker.StopContainer(ctx, cli, c.ContainerID); err != nil {
		return err
	}
	action := "stopped"
	if flags.remove {
		if err := docker.RemoveContainer(ctx, cli, c.ContainerID, false); err != nil {
			return err
		}
		action = "removed"
	}

	if IsJSONOutput() {
		printJSON(map[string]interface{}{
			"containerName": c.ContainerName,
			"variant":       variant.String(),
			"action":        action,
		})
		return nil
	}
	fmt.Printf("Container %s %s\n", c.ContainerName, action)
	return nil
}
