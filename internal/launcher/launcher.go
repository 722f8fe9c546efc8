// Package launcher starts the updater application inside the container.
// The RUN_DEV environment variable selects between the full street graph
// and the small development subset.
package launcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/hellej/hope-graph-updater/internal/model"
)

// Environment variables read and written by the launcher.
const (
	EnvRunDev      = "RUN_DEV"
	EnvGraphSubset = "GRAPH_SUBSET"
)

// Mode selects the graph the application loads.
type Mode int

const (
	ModeProd Mode = iota
	ModeDev
)

func (m Mode) String() string {
	if m == ModeDev {
		return "dev"
	}
	return "prod"
}

// Message is the line logged when the application starts in mode m.
func (m Mode) Message() string {
	if m == ModeDev {
		return "Starting AQI updater in dev mode (graph subset)"
	}
	return "Starting AQI updater in prod mode (full graph)"
}

// ResolveMode returns ModeDev only for the exact value "True".
func ResolveMode(runDev string) Mode {
	if runDev == "True" {
		return ModeDev
	}
	return ModeProd
}

// Environ returns base adjusted for mode: dev exports GRAPH_SUBSET=True,
// prod drops any inherited GRAPH_SUBSET.
func Environ(base []string, mode Mode) []string {
	env := make([]string, 0, len(base)+1)
	for _, kv := range base {
		if strings.HasPrefix(kv, EnvGraphSubset+"=") {
			continue
		}
		env = append(env, kv)
	}
	if mode == ModeDev {
		env = append(env, EnvGraphSubset+"=True")
	}
	return env
}

// StopGrace is how long a cancelled application may take to exit after
// SIGTERM before it is killed.
const StopGrace = 10 * time.Second

// Launcher runs the application command with the mode derived from Env.
type Launcher struct {
	Log     log.FieldLogger
	Command []string
	Dir     string

	// Env is the base environment; nil means os.Environ().
	Env []string

	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// New returns a Launcher for command wired to the process stdio.
func New(logger log.FieldLogger, command []string) *Launcher {
	return &Launcher{
		Log:     logger,
		Command: command,
		Stdin:   os.Stdin,
		Stdout:  os.Stdout,
		Stderr:  os.Stderr,
	}
}

// Mode resolves the mode from the launcher environment.
func (l *Launcher) Mode() Mode {
	return ResolveMode(lookupEnv(l.environ(), EnvRunDev))
}

// Run starts the application and waits for it to exit. A non-zero exit is
// returned as a CLIError carrying the application's exit code. Cancelling
// ctx sends SIGTERM and kills the application after StopGrace.
func (l *Launcher) Run(ctx context.Context) error {
	if len(l.Command) == 0 {
		return model.NewCLIError(model.ExitConfigInvalid, "no application command configured")
	}

	mode := l.Mode()
	l.Log.Info(mode.Message())

	cmd := exec.CommandContext(ctx, l.Command[0], l.Command[1:]...)
	cmd.Dir = l.Dir
	cmd.Env = Environ(l.environ(), mode)
	cmd.Stdin, cmd.Stdout, cmd.Stderr = l.Stdin, l.Stdout, l.Stderr
	cmd.Cancel = func() error { return cmd.Process.Signal(syscall.SIGTERM) }
	cmd.WaitDelay = StopGrace

	l.Log.WithField("command", strings.Join(l.Command, " ")).Debug("starting application")
	err := cmd.Run()
	if err == nil {
		return nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		code := exitErr.ExitCode()
		if code <= 0 {
			code = int(model.ExitAppFailed)
		}
		return model.WrapCLIError(model.ExitCode(code),
			fmt.Sprintf("application exited with code %d", exitErr.ExitCode()), err)
	}
	return model.WrapCLIError(model.ExitAppFailed,
		fmt.Sprintf("failed to start %s", l.Command[0]), err)
}

func (l *Launcher) environ() []string {
	if l.Env != nil {
		return l.Env
	}
	return os.Environ()
}

// lookupEnv returns the last value of key in env, as exec does.
func lookupEnv(env []string, key string) string {
	val := ""
	for _, kv := range env {
		if k, v, ok := strings.Cut(kv, "="); ok && k == key {
			val = v
		}
	}
	return val
}
