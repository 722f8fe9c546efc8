package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hellej/hope-graph-updater/internal/docker"
)

type tagFlags struct {
	push bool
}

// NewTagCommand creates the "tag" cobra command.
func NewTagCommand() *cobra.Command {
	flags := &tagFlags{}

	cmd := &cobra.Command{
		Use:   "tag <source> <target>",
		Short: "Tag an existing updater image",
		Long: `Add a tag to an image that is already present locally. Both arguments are
either bare tags of the configured repository or full repository:tag
references.

Examples:
  graph-updater tag dev 2024-03-01
  graph-updater tag latest v1.4 --push`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTag(cmd.Context(), args[0], args[1], flags)
		},
	}

	cmd.Flags().BoolVar(&flags.push, "push", false, "Push the new tag after tagging")
	return cmd
}

func runTag(ctx context.Context, sourceArg, targetArg string, flags *tagFlags) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	source, err := resolveRef(cfg, sourceArg)
	if err != nil {
		return err
	}
	target, err := resolveRef(cfg, targetArg)
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

	if err := docker.TagImage(ctx, cli, source.String(), target); err != nil {
		return err
	}

	result := map[string]interface{}{"source": source.String(), "target": target.String()}
	if flags.push {
		digest, err := pushRef(ctx, cli, target, registryCredentials(cfg))
		if err != nil {
			return err
		}
		result["digest"] = digest
	}

	if IsJSONOutput() {
		printJSON(result)
		return nil
	}
	fmt.Printf("Tagged %s as %s\n", source, target)
	if d, ok := result["digest"]; ok {
		fmt.Printf("Pushed %s %s\n", target, d)
	}
	return nil
}
