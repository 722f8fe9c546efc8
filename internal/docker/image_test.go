package docker

import (
	"archive/tar"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/docker/docker/api/types/image"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hellej/hope-graph-updater/internal/model"
)

func TestBuildOptions(t *testing.T) {
	req := BuildRequest{
		Dockerfile: "docker/Dockerfile.dev",
		Refs: []model.ImageRef{
			model.NewImageRef(model.DefaultRepository, "dev"),
			model.NewImageRef(model.DefaultRepository, "dev-2020"),
		},
		BuildArgs: map[string]string{"CONDA_ENV": "hope"},
		Labels:    map[string]string{LabelVariant: "dev"},
		NoCache:   true,
	}

	opts := buildOptions(req)
	assert.Equal(t, []string{
		"hellej/hope-graph-updater:dev",
		"hellej/hope-graph-updater:dev-2020",
	}, opts.Tags)
	assert.Equal(t, "docker/Dockerfile.dev", opts.Dockerfile)
	require.Contains(t, opts.BuildArgs, "CONDA_ENV")
	assert.Equal(t, "hope", *opts.BuildArgs["CONDA_ENV"])
	assert.Equal(t, "dev", opts.Labels[LabelVariant])
	assert.True(t, opts.NoCache)
	assert.True(t, opts.Remove)
}

func TestBuildOptions_DefaultDockerfile(t *testing.T) {
	opts := buildOptions(BuildRequest{Refs: []model.ImageRef{model.NewImageRef("r", "t")}})
	assert.Equal(t, "Dockerfile", opts.Dockerfile)
	assert.Empty(t, opts.BuildArgs)
}

// tarNames lists the entries of a tar stream.
func tarNames(t *testing.T, r io.Reader) []string {
	t.Helper()
	var names []string
	tr := tar.NewReader(r)
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		names = append(names, strings.TrimSuffix(hdr.Name, "/"))
	}
	sort.Strings(names)
	return names
}

// TestContextArchive_Dockerignore verifies that ignored paths are left out
// of the build context while the Dockerfile is always sent.
func TestContextArchive_Dockerignore(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"Dockerfile":              "FROM continuumio/miniconda3\n",
		"aqi_updater_app.py":      "print('hi')\n",
		"aqi_cache/aqi_x.tif":     "raster",
		".dockerignore":           "aqi_cache\n*.log\nDockerfile\n",
		"aqi_updater_app.log":     "log",
		"graph/kumpula_edges.csv": "id_ig,id_way,geometry\n",
	}
	for name, content := range files {
		p := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	}

	rc, err := contextArchive(dir, "Dockerfile")
	require.NoError(t, err)
	defer func() { _ = rc.Close() }()

	names := tarNames(t, rc)
	assert.Contains(t, names, "Dockerfile")
	assert.Contains(t, names, ".dockerignore")
	assert.Contains(t, names, "aqi_updater_app.py")
	assert.Contains(t, names, "graph/kumpula_edges.csv")
	assert.NotContains(t, names, "aqi_cache/aqi_x.tif")
	assert.NotContains(t, names, "aqi_updater_app.log")
}

func TestContextArchive_NotADirectory(t *testing.T) {
	file := filepath.Join(t.TempDir(), "Dockerfile")
	require.NoError(t, os.WriteFile(file, []byte("FROM scratch\n"), 0o644))

	_, err := contextArchive(file, "Dockerfile")
	assert.Error(t, err)

	_, err = contextArchive(filepath.Join(t.TempDir(), "missing"), "Dockerfile")
	assert.Error(t, err)
}

func TestImagesFromSummaries(t *testing.T) {
	older := BuildLabels(ImageMeta{
		Variant: model.VariantProd, Repository: model.DefaultRepository,
		Tags: []string{"latest"}, GitCommit: "aaa",
		BuiltAt: time.Date(2020, 10, 1, 0, 0, 0, 0, time.UTC),
	})
	newer := BuildLabels(ImageMeta{
		Variant: model.VariantDev, Repository: model.DefaultRepository,
		Tags: []string{"dev"}, GitCommit: "bbb",
		BuiltAt: time.Date(2020, 10, 10, 0, 0, 0, 0, time.UTC),
	})

	images := imagesFromSummaries([]image.Summary{
		{ID: "sha256:old", RepoTags: []string{"hellej/hope-graph-updater:latest"}, Labels: older, Size: 100},
		{ID: "sha256:foreign", Labels: map[string]string{"other": "x"}},
		{ID: "sha256:new", RepoTags: []string{"hellej/hope-graph-updater:dev"}, Labels: newer, Size: 200},
	})

	require.Len(t, images, 2, "images with unreadable labels are skipped")
	assert.Equal(t, "sha256:new", images[0].ID, "newest first")
	assert.Equal(t, model.VariantDev, images[0].Variant)
	assert.Equal(t, "bbb", images[0].GitCommit)
	assert.Equal(t, int64(200), images[0].Size)
	assert.Equal(t, "sha256:old", images[1].ID)
}

func TestCredentials(t *testing.T) {
	assert.True(t, Credentials{}.IsZero())
	assert.True(t, Credentials{ServerAddress: "ghcr.io"}.IsZero())
	assert.False(t, Credentials{Username: "hellej"}.IsZero())

	auth := Credentials{Username: "u", Password: "p", ServerAddress: "s"}.authConfig()
	assert.Equal(t, "u", auth.Username)
	assert.Equal(t, "p", auth.Password)
	assert.Equal(t, "s", auth.ServerAddress)
}
