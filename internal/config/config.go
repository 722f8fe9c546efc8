// Package config loads the graph-updater configuration file.
//
// The file describes how the updater image is built and tagged, where it is
// pushed, which command the start command launches, and how the AQI updater
// application finds its data. It may be written as YAML or as JSON with
// comments (JSONC); the latter is parsed by stripping comments with
// github.com/tidwall/jsonc before handing the bytes to encoding/json.
//
// A missing configuration file is not an error: Default reproduces the
// behaviour of the original build and start scripts exactly.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	"github.com/hellej/hope-graph-updater/internal/model"
)

// FileNames lists the configuration file names searched by Find, in order.
var FileNames = []string{
	"graph-updater.yaml",
	"graph-updater.yml",
	"graph-updater.jsonc",
	"graph-updater.json",
}

// Config is the root of the configuration file.
type Config struct {
	// Repository is the image repository every tag is applied to.
	Repository string `yaml:"repository" json:"repository"`

	// Context is the Docker build context directory, relative to the
	// configuration file.
	Context string `yaml:"context" json:"context"`

	// Variants maps a variant name (prod, dev) to its build settings.
	Variants map[model.Variant]VariantConfig `yaml:"variants" json:"variants"`

	Registry RegistryConfig `yaml:"registry" json:"registry"`
	App      AppConfig      `yaml:"app" json:"app"`
	Updater  UpdaterConfig  `yaml:"updater" json:"updater"`

	// path is the file the configuration was loaded from, empty for defaults.
	path string
}

// VariantConfig describes how one variant of the image is built.
type VariantConfig struct {
	// Dockerfile is the path of the Dockerfile within the build context.
	Dockerfile string `yaml:"dockerfile" json:"dockerfile"`

	// Tags are applied to the built image and pushed. The first tag is the
	// variant's primary tag, used by run and compose.
	Tags []string `yaml:"tags" json:"tags"`

	// BuildArgs are passed to the Dockerfile as --build-arg values.
	BuildArgs map[string]string `yaml:"buildArgs,omitempty" json:"buildArgs,omitempty"`
}

// PrimaryTag returns the first configured tag.
func (v VariantConfig) PrimaryTag() string {
	if len(v.Tags) == 0 {
		return model.DefaultTag
	}
	return v.Tags[0]
}

// RegistryConfig names the registry and the environment variables holding
// its credentials. Credentials are never stored in the file itself.
type RegistryConfig struct {
	// Server is the registry address. Empty means Docker Hub.
	Server      string `yaml:"server,omitempty" json:"server,omitempty"`
	UsernameEnv string `yaml:"usernameEnv" json:"usernameEnv"`
	PasswordEnv string `yaml:"passwordEnv" json:"passwordEnv"`
}

// AppConfig is the application launched by the start command.
type AppConfig struct {
	Command []string `yaml:"command" json:"command"`
	Dir     string   `yaml:"dir,omitempty" json:"dir,omitempty"`
}

// UpdaterConfig configures the AQI updater loop.
type UpdaterConfig struct {
	AqiCache    string `yaml:"aqiCache" json:"aqiCache"`
	AqiUpdates  string `yaml:"aqiUpdates" json:"aqiUpdates"`
	Edges       string `yaml:"edges" json:"edges"`
	SubsetEdges string `yaml:"subsetEdges" json:"subsetEdges"`

	Bucket    string `yaml:"bucket" json:"bucket"`
	Region    string `yaml:"region" json:"region"`
	KeyPrefix string `yaml:"keyPrefix" json:"keyPrefix"`

	PollInterval Duration `yaml:"pollInterval" json:"pollInterval"`
	RetryDelay   Duration `yaml:"retryDelay" json:"retryDelay"`

	// MinNodataCount is the number of nodata cells expected in a healthy
	// enfuser grid; it drives the nodata threshold search.
	MinNodataCount int `yaml:"minNodataCount" json:"minNodataCount"`

	HistoryDB   string `yaml:"historyDB" json:"historyDB"`
	MetricsAddr string `yaml:"metricsAddr,omitempty" json:"metricsAddr,omitempty"`
	LogFile     string `yaml:"logFile,omitempty" json:"logFile,omitempty"`
	SecretsDir  string `yaml:"secretsDir" json:"secretsDir"`
	EnvFile     string `yaml:"envFile" json:"envFile"`
}

// Duration is a time.Duration written as a Go duration string ("10s").
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses a duration string.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	return d.set(s)
}

// MarshalYAML writes the duration as a string.
func (d Duration) MarshalYAML() (interface{}, error) {
	return d.String(), nil
}

// UnmarshalJSON parses a duration string.
func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("duration must be a string like \"10s\": %w", err)
	}
	return d.set(s)
}

// MarshalJSON writes the duration as a string.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Duration) set(s string) error {
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	d.Duration = parsed
	return nil
}

// Default returns the configuration equivalent to the original scripts:
// both variants build ./Dockerfile, prod is tagged latest, dev is tagged
// dev, and the start command runs the Python updater app.
func Default() *Config {
	return &Config{
		Repository: model.DefaultRepository,
		Context:    ".",
		Variants: map[model.Variant]VariantConfig{
			model.VariantProd: {Dockerfile: "Dockerfile", Tags: []string{"latest"}},
			model.VariantDev:  {Dockerfile: "Dockerfile", Tags: []string{"dev"}},
		},
		Registry: RegistryConfig{
			UsernameEnv: "DOCKER_USERNAME",
			PasswordEnv: "DOCKER_PASSWORD",
		},
		App: AppConfig{
			Command: []string{"python", "aqi_updater_app.py"},
		},
		Updater: UpdaterConfig{
			AqiCache:       "aqi_cache",
			AqiUpdates:     "aqi_updates",
			Edges:          "graph/kumpula_edges.csv",
			SubsetEdges:    "graph/kumpula_subset_edges.csv",
			Bucket:         "enfusernow2",
			Region:         "eu-central-1",
			KeyPrefix:      "Finland/pks/",
			PollInterval:   Duration{10 * time.Second},
			RetryDelay:     Duration{30 * time.Second},
			MinNodataCount: 180000,
			HistoryDB:      "aqi_updater.db",
			LogFile:        "aqi_updater_app.log",
			SecretsDir:     "/run/secrets",
			EnvFile:        ".env",
		},
	}
}

// Path returns the file the configuration was loaded from, or "" when the
// defaults are in use.
func (c *Config) Path() string {
	return c.path
}

// Variant returns the settings for v, falling back to the default
// settings for that variant when the file does not mention it.
func (c *Config) Variant(v model.Variant) (VariantConfig, error) {
	if vc, ok := c.Variants[v]; ok {
		return vc, nil
	}
	if vc, ok := Default().Variants[v]; ok {
		return vc, nil
	}
	return VariantConfig{}, fmt.Errorf("variant %q is not configured", v)
}

// ContextDir resolves the build context relative to the configuration file.
func (c *Config) ContextDir() string {
	if filepath.IsAbs(c.Context) || c.path == "" {
		return c.Context
	}
	return filepath.Join(filepath.Dir(c.path), c.Context)
}

// Find looks for a configuration file in dir. It returns "" with a nil
// error when none of FileNames exists.
func Find(dir string) (string, error) {
	for _, name := range FileNames {
		p := filepath.Join(dir, name)
		info, err := os.Stat(p)
		if err == nil && !info.IsDir() {
			return p, nil
		}
		if err != nil && !os.IsNotExist(err) {
			return "", fmt.Errorf("failed to stat %s: %w", p, err)
		}
	}
	return "", nil
}

// Load reads the configuration at path on top of Default. The format is
// chosen by extension: .json and .jsonc are JSONC, anything else is YAML.
//
// Returns a CLIError with ExitConfigInvalid when the file is missing,
// malformed or fails validation.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, model.WrapCLIError(model.ExitConfigInvalid,
			fmt.Sprintf("failed to read config %s", path), err)
	}

	cfg := Default()
	cfg.Variants = nil
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".jsonc":
		err = json.Unmarshal(jsonc.ToJSON(data), cfg)
	default:
		err = yaml.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, model.WrapCLIError(model.ExitConfigInvalid,
			fmt.Sprintf("failed to parse config %s", path), err)
	}
	if cfg.Variants == nil {
		cfg.Variants = Default().Variants
	}
	cfg.path = path

	if errs := Validate(cfg); len(errs) > 0 {
		return nil, model.WrapCLIError(model.ExitConfigInvalid,
			fmt.Sprintf("invalid config %s", path), joinValidationErrors(errs))
	}
	return cfg, nil
}

// Resolve loads the configuration at explicit if set, otherwise the first
// file Find locates in dir, otherwise Default.
func Resolve(explicit, dir string) (*Config, error) {
	if explicit != "" {
		return Load(explicit)
	}
	found, err := Find(dir)
	if err != nil {
		return nil, model.WrapCLIError(model.ExitConfigInvalid, "failed to locate config", err)
	}
	if found == "" {
		return Default(), nil
	}
	return Load(found)
}
