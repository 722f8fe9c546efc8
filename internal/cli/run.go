// run.go implements "graph-updater run", which starts the updater image as
// a detached local container with the cache and update directories bound
// from the host.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/hellej/hope-graph-updater/internal/config"
	"github.com/hellej/hope-graph-updater/internal/deploy"
	"github.com/hellej/hope-graph-updater/internal/docker"
	"github.com/hellej/hope-graph-updater/internal/model"
)

type runFlags struct {
	variant string
	tag     string
	env     []string
	noBind  bool
}

// NewRunCommand creates the "run" cobra command.
func NewRunCommand() *cobra.Command {
	flags := &runFlags{}

	cmd := &cobra.Command{
		Use:   "run [variant]",
		Short: "Run the updater image locally",
		Long: `Start the updater image for a variant as a detached container named
graph-updater-<variant>. The dev variant sets RUN_DEV=True so the
application loads the graph subset.

The cache and update directories are bound from the host so that
exported updates can be inspected. A stopped container from an earlier
run is started again instead.

Examples:
  graph-updater run
  graph-updater run dev --env LOG_LEVEL=debug`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				flags.variant = args[0]
			}
			return runRun(cmd.Context(), flags)
		},
	}

	cmd.Flags().StringVar(&flags.tag, "tag", "", "Image tag to run (default: the variant's primary tag)")
	cmd.Flags().StringArrayVarP(&flags.env, "env", "e", nil, "Extra KEY=VALUE environment variable (repeatable)")
	cmd.Flags().BoolVar(&flags.noBind, "no-bind", false, "Do not bind the cache and update directories")
	return cmd
}

func runRun(ctx context.Context, flags *runFlags) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	variant, err := model.ParseVariant(flags.variant)
	if err != nil {
		return model.WrapCLIError(model.ExitGeneralError, "invalid variant", err)
	}
	ref, err := variantRef(cfg, variant, flags.tag)
	if err != nil {
		return err
	}

	var binds []string
	if !flags.noBind {
		binds, err = hostBinds(cfg)
		if err != nil {
			return err
		}
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
	if existing, ok := docker.FindContainer(containers, variant); ok {
		return restartExisting(ctx, cli, existing)
	}

	var id string
	err = runStep(fmt.Sprintf("Starting %s", docker.ContainerName(variant)), func(_ io.Writer) error {
		id, err = docker.RunContainer(ctx, cli, docker.RunRequest{
			Variant: variant,
			Image:   ref,
			Env:     flags.env,
			Binds:   binds,
		})
		return err
	})
	if err != nil {
		return err
	}

	if IsJSONOutput() {
		printJSON(map[string]interface{}{
			"containerId":   id,
			"containerName": docker.ContainerName(variant),
			"image":         ref.String(),
			"variant":       variant.String(),
		})
		return nil
	}
	fmt.Printf("Started %s from %s (%s)\n", docker.ContainerName(variant), ref, shortID(id))
	return nil
}

// restartExisting starts a stopped updater container again. A running one
// is an error: the container name is fixed per variant.
func restartExisting(ctx context.Context, cli *docker.Client, c model.ContainerInfo) error {
	if c.Status == "running" {
		return model.NewCLIError(model.ExitGeneralError,
			fmt.Sprintf("container %s is already running; stop it with \"graph-updater stop %s --remove\"",
				c.ContainerName, c.Variant))
	}
	VerboseLog("Container %s exists (%s), starting it again", c.ContainerName, c.Status)
	if err := docker.StartContainer(ctx, cli, c.ContainerID); err != nil {
		return err
	}
	if IsJSONOutput() {
		printJSON(map[string]interface{}{
			"containerId":   c.ContainerID,
			"containerName": c.ContainerName,
			"image":         c.Image,
			"variant":       c.Variant.String(),
		})
		return nil
	}
	fmt.Printf("Restarted %s from %s\n", c.ContainerName, c.Image)
	return nil
}

// variantRef returns the image reference for a variant: the explicit tag
// if given, otherwise the variant's primary tag.
func variantRef(cfg *config.Config, variant model.Variant, tag string) (model.ImageRef, error) {
	if tag == "" {
		vc, err := cfg.Variant(variant)
		if err != nil {
			return model.ImageRef{}, model.WrapCLIError(model.ExitConfigInvalid, "invalid variant", err)
		}
		tag = vc.PrimaryTag()
	}
	if err := model.ValidateTag(tag); err != nil {
		return model.ImageRef{}, model.WrapCLIError(model.ExitGeneralError, "invalid tag", err)
	}
	return model.NewImageRef(cfg.Repository, tag), nil
}

// hostBinds binds the configured cache and update directories into the
// application directory of the container, creating them on the host.
func hostBinds(cfg *config.Config) ([]string, error) {
	var binds []string
	for _, dir := range []string{cfg.Updater.AqiCache, cfg.Updater.AqiUpdates} {
		if dir == "" {
			continue
		}
		host, err := filepath.Abs(dir)
		if err != nil {
			return nil, model.WrapCLIError(model.ExitGeneralError, "failed to resolve bind directory", err)
		}
		if err := os.MkdirAll(host, 0o755); err != nil {
			return nil, model.WrapCLIError(model.ExitGeneralError,
				fmt.Sprintf("failed to create %s", host), err)
		}
		target := dir
		if !filepath.IsAbs(dir) {
			target = filepath.ToSlash(filepath.Join(deploy.DefaultWorkDir, dir))
		}
		binds = append(binds, host+":"+target)
	}
	return binds, nil
}
