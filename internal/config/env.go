package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
)

// LoadDockerSecrets exports every file in dir (normally /run/secrets) as an
// environment variable named after the file. Trailing newlines are stripped.
// Only the name and length of each secret are logged.
//
// It returns the number of secrets loaded. A missing or empty directory is
// reported as a warning, not an error, because the updater also runs
// outside of swarm services.
func LoadDockerSecrets(logger log.FieldLogger, dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil && !os.IsNotExist(err) {
		return 0, fmt.Errorf("failed to read secrets dir %s: %w", dir, err)
	}

	count := 0
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			logger.WithError(err).WithField("secret", e.Name()).Warn("failed to read docker secret")
			continue
		}
		value := strings.TrimRight(string(data), "\n")
		if err := os.Setenv(e.Name(), value); err != nil {
			return count, fmt.Errorf("failed to export secret %s: %w", e.Name(), err)
		}
		logger.WithFields(log.Fields{"secret": e.Name(), "len": len(value)}).Info("read docker secret")
		count++
	}

	if count == 0 {
		logger.Warn("no docker secrets found")
	}
	return count, nil
}

// LoadDotEnv reads KEY=VALUE pairs from path with godotenv and exports them,
// overriding variables already present in the environment. A missing file
// is logged as a warning and yields zero variables.
func LoadDotEnv(logger log.FieldLogger, path string) (int, error) {
	vars, err := godotenv.Read(path)
	if err != nil {
		if os.IsNotExist(err) {
			logger.WithField("path", path).Warn("no .env file found")
			return 0, nil
		}
		return 0, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	keys := make([]string, 0, len(vars))
	for k := range vars {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := os.Setenv(k, vars[k]); err != nil {
			return 0, fmt.Errorf("failed to export %s: %w", k, err)
		}
	}
	logger.Infof("read %d variables to env from %s", len(vars), path)
	return len(vars), nil
}
