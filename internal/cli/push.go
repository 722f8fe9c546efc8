package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hellej/hope-graph-updater/internal/config"
	"github.com/hellej/hope-graph-updater/internal/docker"
	"github.com/hellej/hope-graph-updater/internal/model"
)

// NewPushCommand creates the "push" cobra command.
func NewPushCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "push <tag>",
		Short: "Push an already built image tag",
		Long: `Push a locally built tag of the updater image. The argument is either a
bare tag, resolved against the configured repository, or a full
repository:tag reference.

Examples:
  graph-updater push latest
  graph-updater push hellej/hope-graph-updater:dev`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPush(cmd.Context(), args[0])
		},
	}
}

func runPush(ctx context.Context, arg string) error {
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
	if err := cli.Ping(ctx); err != nil {
		return err
	}

	digest, err := pushRef(ctx, cli, ref, registryCredentials(cfg))
	if err != nil {
		return err
	}

	if IsJSONOutput() {
		printJSON(pushResultJSON{Ref: ref.String(), Digest: digest})
		return nil
	}
	fmt.Printf("Pushed %s %s\n", ref, digest)
	return nil
}

// resolveRef turns a command argument into an image reference. A bare tag
// refers to the configured repository.
func resolveRef(cfg *config.Config, arg string) (model.ImageRef, error) {
	if strings.ContainsAny(arg, ":/") {
		ref, err := model.ParseImageRef(arg)
		if err != nil {
			return model.ImageRef{}, model.WrapCLIError(model.ExitGeneralError, "invalid image reference", err)
		}
		return ref, nil
	}
	if err := model.ValidateTag(arg); err != nil {
		return model.ImageRef{}, model.WrapCLIError(model.ExitGeneralError, "invalid tag", err)
	}
	return model.NewImageRef(cfg.Repository, arg), nil
}
