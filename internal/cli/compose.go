package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/hellej/hope-graph-updater/internal/deploy"
	"github.com/hellej/hope-graph-updater/internal/model"
)

type composeFlags struct {
	output      string
	tag         string
	metricsPort int
	env         []string
}

// NewComposeCommand creates the "compose" cobra command.
func NewComposeCommand() *cobra.Command {
	flags := &composeFlags{}

	cmd := &cobra.Command{
		Use:   "compose [variant]",
		Short: "Render a Docker Compose file for the updater service",
		Long: `Render a Docker Compose file that runs the updater image for a variant
with external Enfuser secrets and named volumes for the cache and update
directories. The file is written to stdout unless --output is given.

Examples:
  graph-updater compose > compose.yaml
  graph-updater compose dev -o deploy/compose.dev.yaml --metrics-port 9108`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			variant := ""
			if len(args) == 1 {
				variant = args[0]
			}
			return runCompose(variant, flags)
		},
	}

	cmd.Flags().StringVarP(&flags.output, "output", "o", "", "Write the compose file to this path")
	cmd.Flags().StringVar(&flags.tag, "tag", "", "Image tag (default: the variant's primary tag)")
	cmd.Flags().IntVar(&flags.metricsPort, "metrics-port", 0, "Publish the metrics endpoint on this port")
	cmd.Flags().StringArrayVarP(&flags.env, "env", "e", nil, "Extra KEY=VALUE environment variable (repeatable)")
	return cmd
}

func runCompose(variantArg string, flags *composeFlags) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	variant, err := model.ParseVariant(variantArg)
	if err != nil {
		return model.WrapCLIError(model.ExitGeneralError, "invalid variant", err)
	}
	ref, err := variantRef(cfg, variant, flags.tag)
	if err != nil {
		return err
	}
	if flags.metricsPort < 0 || flags.metricsPort > 65535 {
		return model.NewCLIError(model.ExitGeneralError, fmt.Sprintf("invalid metrics port %d", flags.metricsPort))
	}

	data, err := deploy.RenderCompose(deploy.ComposeRequest{
		Variant:     variant,
		Image:       ref,
		CacheDir:    cfg.Updater.AqiCache,
		UpdatesDir:  cfg.Updater.AqiUpdates,
		MetricsPort: flags.metricsPort,
		Env:         flags.env,
	})
	if err != nil {
		return err
	}

	if flags.output == "" {
		_, err := os.Stdout.Write(data)
		return err
	}
	if err := deploy.WriteCompose(flags.output, data); err != nil {
		return model.WrapCLIError(model.ExitGeneralError, "failed to write compose file", err)
	}
	if IsJSONOutput() {
		printJSON(map[string]interface{}{"path": flags.output, "variant": variant.String(), "image": ref.String()})
		return nil
	}
	fmt.Printf("Wrote %s\n", flags.output)
	return nil
}
