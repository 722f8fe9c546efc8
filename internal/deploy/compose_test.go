package deploy

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/hellej/hope-graph-updater/internal/model"
)

func TestVolumeName(t *testing.T) {
	assert.Equal(t, "aqi_cache_dev", VolumeName("aqi_cache", model.VariantDev))
	assert.Equal(t, "aqi_updates_prod", VolumeName("aqi_updates/", model.VariantProd))
	assert.Equal(t, "data_aqi_cache_prod", VolumeName("/data/aqi_cache", model.VariantProd))
}

func TestRenderCompose_Dev(t *testing.T) {
	data, err := RenderCompose(ComposeRequest{
		Variant:     model.VariantDev,
		Image:       model.NewImageRef("hellej/hope-graph-updater", "dev"),
		CacheDir:    "aqi_cache",
		UpdatesDir:  "/srv/aqi_updates",
		MetricsPort: 9108,
		Env:         []string{"LOG_LEVEL=debug"},
	})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "# Generated by graph-updater for the dev variant\n"))

	var got composeFile
	require.NoError(t, yaml.Unmarshal(data, &got))

	assert.Equal(t, "graph-updater-dev", got.Name)
	require.Contains(t, got.Services, ServiceName)
	svc := got.Services[ServiceName]
	assert.Equal(t, "hellej/hope-graph-updater:dev", svc.Image)
	assert.Equal(t, "graph-updater-dev", svc.ContainerName)
	assert.Equal(t, "unless-stopped", svc.Restart)
	assert.Equal(t, map[string]string{"RUN_DEV": "True", "LOG_LEVEL": "debug"}, svc.Environment)
	assert.Equal(t, []string{"9108:9108"}, svc.Ports)
	assert.Equal(t, []string{
		"aqi_cache_dev:/app/aqi_cache",
		"srv_aqi_updates_dev:/srv/aqi_updates",
	}, svc.Volumes)
	assert.Equal(t, []string{"ENFUSER_S3_ACCESS_KEY_ID", "ENFUSER_S3_SECRET_ACCESS_KEY"}, svc.Secrets)
	assert.Equal(t, "dev", svc.Labels["graph-updater.variant"])

	assert.Contains(t, got.Volumes, "aqi_cache_dev")
	assert.Contains(t, got.Volumes, "srv_aqi_updates_dev")
	assert.True(t, got.Secrets["ENFUSER_S3_ACCESS_KEY_ID"].External)
}

func TestRenderCompose_ProdHasNoDevFlag(t *testing.T) {
	data, err := RenderCompose(ComposeRequest{
		Variant: model.VariantProd,
		Image:   model.NewImageRef("hellej/hope-graph-updater", "latest"),
	})
	require.NoError(t, err)

	var got composeFile
	require.NoError(t, yaml.Unmarshal(data, &got))
	svc := got.Services[ServiceName]
	assert.Empty(t, svc.Environment)
	assert.Empty(t, svc.Ports)
	assert.Empty(t, svc.Volumes)
	assert.NotContains(t, string(data), "RUN_DEV")
}

func TestRenderCompose_InvalidVariant(t *testing.T) {
	_, err := RenderCompose(ComposeRequest{Variant: "staging"})
	assert.Error(t, err)
}

func TestWriteCompose(t *testing.T) {
	path := filepath.Join(t.TempDir(), "deploy", "compose.yaml")
	require.NoError(t, WriteCompose(path, []byte("services: {}\n")))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "services: {}\n", string(data))
}
