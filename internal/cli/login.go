package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hellej/hope-graph-updater/internal/docker"
	"github.com/hellej/hope-graph-updater/internal/model"
)

type loginFlags struct {
	username      string
	passwordStdin bool
}

// NewLoginCommand creates the "login" cobra command.
func NewLoginCommand() *cobra.Command {
	flags := &loginFlags{}

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Check registry credentials",
		Long: `Verify registry credentials with the Docker daemon. Credentials come from
the environment variables named in the configuration (DOCKER_USERNAME and
DOCKER_PASSWORD by default), --username, or --password-stdin.

Push commands read the same variables; nothing is written to the Docker
credential store.

Examples:
  DOCKER_USERNAME=me DOCKER_PASSWORD=... graph-updater login
  echo "$TOKEN" | graph-updater login --username me --password-stdin`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLogin(cmd.Context(), flags, cmd.InOrStdin())
		},
	}

	cmd.Flags().StringVarP(&flags.username, "username", "u", "", "Registry username")
	cmd.Flags().BoolVar(&flags.passwordStdin, "password-stdin", false, "Read the password from stdin")
	return cmd
}

func runLogin(ctx context.Context, flags *loginFlags, stdin io.Reader) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	creds := registryCredentials(cfg)
	if flags.username != "" {
		creds.Username = flags.username
	}
	if flags.passwordStdin {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return model.WrapCLIError(model.ExitGeneralError, "failed to read password from stdin", err)
		}
		creds.Password = strings.TrimRight(string(data), "\r\n")
	}
	if creds.Username == "" || creds.Password == "" {
		return model.NewCLIError(model.ExitRegistryAuthFailed,
			fmt.Sprintf("username and password required: set %s and %s or use --username/--password-stdin",
				cfg.Registry.UsernameEnv, cfg.Registry.PasswordEnv))
	}

	cli, err := docker.NewClient()
	if err != nil {
		return err
	}
	defer func() { _ = cli.Close() }()

	creds, status, err := docker.Login(ctx, cli, creds)
	if err != nil {
		return err
	}

	if IsJSONOutput() {
		printJSON(map[string]interface{}{
			"username": creds.Username,
			"server":   creds.ServerAddress,
			"status":   status,
			"token":    creds.IdentityToken != "",
		})
		return nil
	}
	fmt.Fprintln(os.Stdout, status)
	return nil
}
