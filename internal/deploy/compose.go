// Package deploy renders the Docker Compose file used to run the updater
// service on a host, so deployments do not need a hand maintained compose
// file per variant.
package deploy

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/hellej/hope-graph-updater/internal/aqi"
	"github.com/hellej/hope-graph-updater/internal/docker"
	"github.com/hellej/hope-graph-updater/internal/model"
)

// ServiceName is the compose service running the updater.
const ServiceName = "aqi-updater"

// DefaultWorkDir is the application directory inside the image.
const DefaultWorkDir = "/app"

// Secrets are mounted from the swarm or compose secret store and exported
// to the environment at startup.
var Secrets = []string{aqi.EnvAccessKeyID, aqi.EnvSecretAccessKey}

type composeFile struct {
	Name     string                    `yaml:"name,omitempty"`
	Services map[string]composeService `yaml:"services"`
	Volumes  map[string]composeVolume  `yaml:"volumes,omitempty"`
	Secrets  map[string]composeSecret  `yaml:"secrets,omitempty"`
}

type composeService struct {
	Image         string            `yaml:"image"`
	ContainerName string            `yaml:"container_name,omitempty"`
	Restart       string            `yaml:"restart,omitempty"`
	Environment   map[string]string `yaml:"environment,omitempty"`
	Ports         []string          `yaml:"ports,omitempty"`
	Volumes       []string          `yaml:"volumes,omitempty"`
	Secrets       []string          `yaml:"secrets,omitempty"`
	Labels        map[string]string `yaml:"labels,omitempty"`
}

type composeVolume struct{}

type composeSecret struct {
	External bool `yaml:"external"`
}

// ComposeRequest describes the service to render.
type ComposeRequest struct {
	Variant model.Variant
	Image   model.ImageRef

	// WorkDir is the application directory inside the container. Cache
	// and update directories relative to it become named volumes.
	WorkDir    string
	CacheDir   string
	UpdatesDir string

	// MetricsPort publishes the metrics endpoint when non-zero.
	MetricsPort int

	// Env holds extra KEY=VALUE pairs for the service.
	Env []string
}

// VolumeName returns the named volume holding dir for variant, e.g.
// "aqi_cache_dev".
func VolumeName(dir string, v model.Variant) string {
	base := strings.Trim(filepath.ToSlash(filepath.Clean(dir)), "/")
	base = strings.NewReplacer("/", "_", ".", "_").Replace(base)
	return base + "_" + v.String()
}

// RenderCompose returns the compose YAML for req, headed by a comment
// noting that it is generated.
func RenderCompose(req ComposeRequest) ([]byte, error) {
	if !req.Variant.IsValid() {
		return nil, model.NewCLIError(model.ExitConfigInvalid, fmt.Sprintf("invalid variant %q", req.Variant))
	}
	workDir := req.WorkDir
	if workDir == "" {
		workDir = DefaultWorkDir
	}

	svc := composeService{
		Image:         req.Image.String(),
		ContainerName: docker.ContainerName(req.Variant),
		Restart:       "unless-stopped",
		Environment:   envMap(docker.RunEnv(req.Variant, req.Env)),
		Secrets:       append([]string(nil), Secrets...),
		Labels:        docker.ContainerLabels(req.Variant),
	}
	if req.MetricsPort > 0 {
		p := strconv.Itoa(req.MetricsPort)
		svc.Ports = []string{p + ":" + p}
	}

	out := composeFile{
		Name:     "graph-updater-" + req.Variant.String(),
		Services: map[string]composeService{},
		Volumes:  map[string]composeVolume{},
		Secrets:  map[string]composeSecret{},
	}
	for _, dir := range []string{req.CacheDir, req.UpdatesDir} {
		if dir == "" {
			continue
		}
		name := VolumeName(dir, req.Variant)
		target := dir
		if !filepath.IsAbs(dir) {
			target = filepath.ToSlash(filepath.Join(workDir, dir))
		}
		svc.Volumes = append(svc.Volumes, name+":"+target)
		out.Volumes[name] = composeVolume{}
	}
	for _, s := range Secrets {
		out.Secrets[s] = composeSecret{External: true}
	}
	out.Services[ServiceName] = svc

	body, err := yaml.Marshal(&out)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize compose YAML: %w", err)
	}
	header := fmt.Sprintf("# Generated by graph-updater for the %s variant\n", req.Variant)
	return []byte(header + string(body)), nil
}

// WriteCompose writes data to path, creating parent directories.
func WriteCompose(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// envMap turns KEY=VALUE pairs into a map; later pairs win. yaml.v3 sorts
// map keys, so the rendered environment is deterministic.
func envMap(env []string) map[string]string {
	if len(env) == 0 {
		return nil
	}
	m := make(map[string]string, len(env))
	for _, kv := range env {
		k, v, _ := strings.Cut(kv, "=")
		m[k] = v
	}
	return m
}
