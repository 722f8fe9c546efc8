// Package cli implements the cobra-based CLI commands for graph-updater.
//
// Each subcommand is defined in its own file within this package. This file
// defines the root command that serves as the parent for all subcommands and
// handles global flags, logging setup and exit codes.
package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/hellej/hope-graph-updater/internal/config"
	"github.com/hellej/hope-graph-updater/internal/logging"
	"github.com/hellej/hope-graph-updater/internal/model"
)

// Global flag variables shared across all subcommands. They are bound to
// cobra persistent flags on the root command.
var (
	// jsonOutput switches command output to JSON for machine consumption.
	jsonOutput bool

	// verbose enables debug logging and shows raw Docker progress output.
	verbose bool

	configPath string
	logLevel   string
	logFile    string
)

// logger is shared by all commands. It is configured in the root
// command's PersistentPreRunE.
var logger = log.New()

// closeLog releases the log file opened by setupLogging.
var closeLog = func() error { return nil }

// Version, Commit and Date are set at build time via ldflags and injected
// from the main package.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// NewRootCommand creates and configures the root cobra command.
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "graph-updater",
		Short: "Build, ship and run the street graph AQI updater",
		Long: `graph-updater builds and publishes the AQI updater Docker image, runs it
locally, and hosts the updater application itself.

The updater downloads the hourly Enfuser air quality forecast, samples it
along the street network and exports edge AQI updates for the routing
service.`,

		// Errors are printed by Execute, in text or JSON.
		SilenceUsage:  true,
		SilenceErrors: true,

		Version: fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, Date),

		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return setupLogging(logFile)
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return closeLog()
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.BoolVar(&jsonOutput, "json", false, "Output in JSON format")
	pf.BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	pf.StringVar(&configPath, "config", "", "Path to the configuration file (default: graph-updater.yaml in the current directory)")
	pf.StringVar(&logLevel, "log-level", "info", "Log level: debug, info, warning, error")
	pf.StringVar(&logFile, "log-file", "", "Append log output to this file")

	rootCmd.AddCommand(NewBuildCommand())
	rootCmd.AddCommand(NewBuildImageCommand())
	rootCmd.AddCommand(NewPushCommand())
	rootCmd.AddCommand(NewTagCommand())
	rootCmd.AddCommand(NewLoginCommand())
	rootCmd.AddCommand(NewListCommand())
	rootCmd.AddCommand(NewRemoveCommand())
	rootCmd.AddCommand(NewRunCommand())
	rootCmd.AddCommand(NewStopCommand())
	rootCmd.AddCommand(NewStartCommand())
	rootCmd.AddCommand(NewUpdaterCommand())
	rootCmd.AddCommand(NewHistoryCommand())
	rootCmd.AddCommand(NewComposeCommand())

	return rootCmd
}

// Execute runs the root command and translates errors into exit codes.
// SIGINT and SIGTERM cancel the command context, which lets the updater
// loop and launched applications shut down cleanly.
func Execute(rootCmd *cobra.Command) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	_ = closeLog()

	if err == nil {
		return
	}
	var cliErr *model.CLIError
	if errors.As(err, &cliErr) {
		printError(cliErr.Message, cliErr.Err)
		os.Exit(int(cliErr.Code))
	}
	printError(err.Error(), nil)
	os.Exit(int(model.ExitGeneralError))
}

// setupLogging configures the shared logger. --verbose implies debug.
func setupLogging(file string) error {
	level := logLevel
	if verbose {
		level = "debug"
	}
	closer, err := logging.Setup(logger, logging.Options{Level: level, File: file})
	closeLog = closer
	if err != nil {
		return model.WrapCLIError(model.ExitConfigInvalid, "failed to set up logging", err)
	}
	return nil
}

// loadConfig resolves the configuration from --config or the current
// directory.
func loadConfig() (*config.Config, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, model.WrapCLIError(model.ExitGeneralError, "failed to get working directory", err)
	}
	cfg, err := config.Resolve(configPath, wd)
	if err != nil {
		return nil, err
	}
	if cfg.Path() != "" {
		VerboseLog("Loaded config from %s", cfg.Path())
	} else {
		VerboseLog("No config file found, using defaults")
	}
	return cfg, nil
}

// printError outputs an error message in text or JSON, on stderr.
func printError(message string, underlying error) {
	if jsonOutput {
		errObj := map[string]interface{}{
			"error": map[string]interface{}{
				"message": message,
			},
		}
		if underlying != nil {
			if errMap, ok := errObj["error"].(map[string]interface{}); ok {
				errMap["detail"] = underlying.Error()
			}
		}
		data, _ := json.MarshalIndent(errObj, "", "  ")
		fmt.Fprintln(os.Stderr, string(data))
		return
	}
	if underlying != nil {
		fmt.Fprintf(os.Stderr, "Error: %s: %v\n", message, underlying)
	} else {
		fmt.Fprintf(os.Stderr, "Error: %s\n", message)
	}
}

// printJSON writes v to stdout with 2-space indentation.
func printJSON(v interface{}) {
	data, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(data))
}

// VerboseLog logs a debug message, shown only with --verbose or
// --log-level debug.
func VerboseLog(format string, args ...interface{}) {
	logger.Debugf(format, args...)
}

// IsJSONOutput returns whether the --json flag is set.
func IsJSONOutput() bool {
	return jsonOutput
}
