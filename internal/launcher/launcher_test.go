package launcher

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hellej/hope-graph-updater/internal/model"
)

func TestResolveMode(t *testing.T) {
	tests := []struct {
		value string
		want  Mode
	}{
		{"True", ModeDev},
		{"", ModeProd},
		{"true", ModeProd},
		{"TRUE", ModeProd},
		{"1", ModeProd},
		{"True ", ModeProd},
		{"False", ModeProd},
	}
	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			assert.Equal(t, tt.want, ResolveMode(tt.value))
		})
	}
}

func TestEnviron(t *testing.T) {
	base := []string{"PATH=/usr/bin", "GRAPH_SUBSET=True", "RUN_DEV=True"}

	assert.Equal(t, []string{"PATH=/usr/bin", "RUN_DEV=True", "GRAPH_SUBSET=True"}, Environ(base, ModeDev))
	assert.Equal(t, []string{"PATH=/usr/bin", "RUN_DEV=True"}, Environ(base, ModeProd))
	assert.Equal(t, []string{"PATH=/usr/bin", "GRAPH_SUBSET=True", "RUN_DEV=True"}, base, "base must not be modified")
}

func TestModeMessage(t *testing.T) {
	assert.Equal(t, "Starting AQI updater in dev mode (graph subset)", ModeDev.Message())
	assert.Equal(t, "Starting AQI updater in prod mode (full graph)", ModeProd.Message())
	assert.Equal(t, "dev", ModeDev.String())
	assert.Equal(t, "prod", ModeProd.String())
}

func requireShell(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
}

func newTestLauncher(env []string, script string) (*Launcher, *bytes.Buffer, *test.Hook) {
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	var out bytes.Buffer
	l := &Launcher{
		Log:     logger,
		Command: []string{"sh", "-c", script},
		Env:     env,
		Stdout:  &out,
		Stderr:  &out,
	}
	return l, &out, hook
}

func TestRun_DevExportsGraphSubset(t *testing.T) {
	requireShell(t)
	l, out, hook := newTestLauncher([]string{"PATH=/usr/bin:/bin", "RUN_DEV=True"}, `echo "subset=${GRAPH_SUBSET:-unset}"`)

	require.NoError(t, l.Run(context.Background()))
	assert.Equal(t, "subset=True\n", out.String())
	assert.Equal(t, ModeDev.Message(), hook.AllEntries()[0].Message)
}

func TestRun_ProdClearsGraphSubset(t *testing.T) {
	requireShell(t)
	l, out, hook := newTestLauncher([]string{"PATH=/usr/bin:/bin", "RUN_DEV=yes", "GRAPH_SUBSET=True"}, `echo "subset=${GRAPH_SUBSET:-unset}"`)

	require.NoError(t, l.Run(context.Background()))
	assert.Equal(t, "subset=unset\n", out.String())
	assert.Equal(t, ModeProd.Message(), hook.AllEntries()[0].Message)
}

func TestRun_ForwardsExitCode(t *testing.T) {
	requireShell(t)
	l, _, _ := newTestLauncher([]string{"PATH=/usr/bin:/bin"}, "exit 3")

	err := l.Run(context.Background())
	var cliErr *model.CLIError
	require.True(t, errors.As(err, &cliErr))
	assert.Equal(t, model.ExitCode(3), cliErr.Code)
}

func TestRun_StartFailure(t *testing.T) {
	logger, _ := test.NewNullLogger()
	l := &Launcher{Log: logger, Command: []string{"/nonexistent/aqi-updater"}, Env: []string{}}

	err := l.Run(context.Background())
	var cliErr *model.CLIError
	require.True(t, errors.As(err, &cliErr))
	assert.Equal(t, model.ExitAppFailed, cliErr.Code)
}

func TestRun_NoCommand(t *testing.T) {
	logger, _ := test.NewNullLogger()
	err := (&Launcher{Log: logger}).Run(context.Background())

	var cliErr *model.CLIError
	require.True(t, errors.As(err, &cliErr))
	assert.Equal(t, model.ExitConfigInvalid, cliErr.Code)
}

func TestLookupEnv_LastWins(t *testing.T) {
	assert.Equal(t, "True", lookupEnv([]string{"RUN_DEV=no", "RUN_DEV=True"}, EnvRunDev))
	assert.Equal(t, "", lookupEnv([]string{"RUN_DEVX=True"}, EnvRunDev))
}
