package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetup_LevelAndConsole(t *testing.T) {
	var buf bytes.Buffer
	logger := log.New()

	closeFn, err := Setup(logger, Options{Level: "warning", Output: &buf})
	require.NoError(t, err)
	defer func() { _ = closeFn() }()

	logger.Info("hidden")
	logger.Warn("shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
	assert.Equal(t, log.WarnLevel, logger.GetLevel())
}

func TestSetup_InvalidLevel(t *testing.T) {
	_, err := Setup(log.New(), Options{Level: "loud"})
	assert.Error(t, err)
}

// TestSetup_File verifies that log lines are appended to the file as well
// as the console writer.
func TestSetup_File(t *testing.T) {
	var buf bytes.Buffer
	path := filepath.Join(t.TempDir(), "aqi_updater_app.log")
	logger := log.New()

	closeFn, err := Setup(logger, Options{File: path, Output: &buf})
	require.NoError(t, err)

	logger.Info("AQI fetch & processing succeeded")
	require.NoError(t, closeFn())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "AQI fetch & processing succeeded")
	assert.Contains(t, buf.String(), "AQI fetch & processing succeeded")
}

func TestUTCFormatter(t *testing.T) {
	helsinki := time.FixedZone("EET", 2*60*60)
	entry := &log.Entry{
		Logger:  log.New(),
		Time:    time.Date(2024, 3, 1, 14, 30, 5, 0, helsinki),
		Level:   log.InfoLevel,
		Message: "new AQI data available",
	}

	f := UTCFormatter{&log.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: TimestampFormat,
		DisableColors:   true,
	}}
	out, err := f.Format(entry)
	require.NoError(t, err)

	assert.Contains(t, string(out), `time="24/03/01 12:30:05"`)
	assert.Equal(t, helsinki, entry.Time.Location(), "entry must not be modified")
}

func TestSetup_UTCTimestamps(t *testing.T) {
	logger := log.New()
	_, err := Setup(logger, Options{Output: &bytes.Buffer{}})
	require.NoError(t, err)
	assert.IsType(t, UTCFormatter{}, logger.Formatter)
}
