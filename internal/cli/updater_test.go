package cli

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/hellej/hope-graph-updater/internal/config"
	"github.com/hellej/hope-graph-updater/internal/launcher"
)

func TestEdgesPath(t *testing.T) {
	uc := config.Default().Updater

	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"subset when True", map[string]string{launcher.EnvGraphSubset: "True"}, uc.SubsetEdges},
		{"lower case is not True", map[string]string{launcher.EnvGraphSubset: "true"}, uc.Edges},
		{"empty value", map[string]string{launcher.EnvGraphSubset: ""}, uc.Edges},
		{"unset", map[string]string{}, uc.Edges},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			getenv := func(key string) string { return tt.env[key] }
			assert.Equal(t, tt.want, edgesPath(uc, getenv))
		})
	}
}

func TestEdgesPath_FromEnvironment(t *testing.T) {
	uc := config.Default().Updater

	t.Setenv(launcher.EnvGraphSubset, "True")
	assert.Equal(t, "graph/kumpula_subset_edges.csv", edgesPath(uc, os.Getenv))
}
