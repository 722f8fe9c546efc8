// build.go implements "graph-updater build" and "graph-updater build-image",
// the replacements for the build.sh, build-dev.sh and build-image.sh scripts.
//
// A build labels the image with its variant and source revision, applies
// every configured tag and pushes them unless --no-push is given. Any
// failure aborts the remaining steps.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/hellej/hope-graph-updater/internal/config"
	"github.com/hellej/hope-graph-updater/internal/docker"
	"github.com/hellej/hope-graph-updater/internal/gitinfo"
	"github.com/hellej/hope-graph-updater/internal/model"
)

// buildFlags holds the flag values shared by build and build-image.
type buildFlags struct {
	variant string
	tags    []string
	noPush  bool
	noCache bool
	pull    bool
}

// NewBuildCommand creates the "build" cobra command.
func NewBuildCommand() *cobra.Command {
	flags := &buildFlags{}

	cmd := &cobra.Command{
		Use:   "build [variant]",
		Short: "Build and push the updater image for a variant",
		Long: `Build the updater image for a variant (prod or dev, default prod), tag it
with the variant's configured tags and push every tag.

Examples:
  graph-updater build
  graph-updater build dev
  graph-updater build --tag 2024-03-01 --tag latest --no-push`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				flags.variant = args[0]
			}
			return runBuild(cmd.Context(), flags)
		},
	}

	cmd.Flags().StringArrayVarP(&flags.tags, "tag", "t", nil, "Tag to apply instead of the configured tags (repeatable)")
	addBuildFlags(cmd, flags)
	return cmd
}

// NewBuildImageCommand creates the "build-image" cobra command.
func NewBuildImageCommand() *cobra.Command {
	flags := &buildFlags{}

	cmd := &cobra.Command{
		Use:   "build-image <tag>",
		Short: "Build and push the updater image under a single tag",
		Long: `Build the updater image and tag it only with the given tag, then push it.

Examples:
  graph-updater build-image 2024-03-01
  graph-updater build-image test --variant dev --no-push`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			flags.tags = []string{args[0]}
			return runBuild(cmd.Context(), flags)
		},
	}

	cmd.Flags().StringVar(&flags.variant, "variant", "prod", "Variant to build: prod or dev")
	addBuildFlags(cmd, flags)
	return cmd
}

func addBuildFlags(cmd *cobra.Command, flags *buildFlags) {
	cmd.Flags().BoolVar(&flags.noPush, "no-push", false, "Build and tag only, do not push")
	cmd.Flags().BoolVar(&flags.noCache, "no-cache", false, "Do not use the build cache")
	cmd.Flags().BoolVar(&flags.pull, "pull", false, "Always pull newer base images")
}

// buildResultJSON is the JSON output of build and build-image.
type buildResultJSON struct {
	Variant   string           `json:"variant"`
	ImageID   string           `json:"imageId"`
	GitCommit string           `json:"gitCommit"`
	Tags      []string         `json:"tags"`
	Pushed    []pushResultJSON `json:"pushed"`
}

type pushResultJSON struct {
	Ref    string `json:"ref"`
	Digest string `json:"digest,omitempty"`
}

func runBuild(ctx context.Context, flags *buildFlags) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	variant, err := model.ParseVariant(flags.variant)
	if err != nil {
		return model.WrapCLIError(model.ExitGeneralError, "invalid variant", err)
	}
	vc, err := cfg.Variant(variant)
	if err != nil {
		return model.WrapCLIError(model.ExitConfigInvalid, "invalid variant", err)
	}

	refs, err := buildRefs(cfg, vc, flags.tags)
	if err != nil {
		return err
	}

	contextDir := cfg.ContextDir()
	rev := gitinfo.NewManager().Describe(ctx, contextDir)
	VerboseLog("Building %s from %s (%s)", variant, contextDir, rev.Label())

	tagNames := make([]string, 0, len(refs))
	for _, r := range refs {
		tagNames = append(tagNames, r.Tag)
	}
	labels := docker.BuildLabels(docker.ImageMeta{
		Variant:    variant,
		Repository: cfg.Repository,
		Tags:       tagNames,
		GitCommit:  rev.Label(),
		BuiltAt:    time.Now(),
	})

	cli, err := docker.NewClient()
	if err != nil {
		return err
	}
	defer func() { _ = cli.Close() }()
	if err := cli.Ping(ctx); err != nil {
		return err
	}
	VerboseLog("Connected to Docker daemon")

	var built *docker.BuildResult
	err = runStep(fmt.Sprintf("Building %s", refs[0]), func(progress io.Writer) error {
		built, err = docker.BuildImage(ctx, cli, docker.BuildRequest{
			ContextDir: contextDir,
			Dockerfile: vc.Dockerfile,
			Refs:       refs,
			BuildArgs:  vc.BuildArgs,
			Labels:     labels,
			NoCache:    flags.noCache,
			Pull:       flags.pull,
			Progress:   progress,
		})
		return err
	})
	if err != nil {
		return err
	}

	result := buildResultJSON{
		Variant:   variant.String(),
		ImageID:   built.ImageID,
		GitCommit: rev.Label(),
		Pushed:    []pushResultJSON{},
	}
	for _, r := range built.Refs {
		result.Tags = append(result.Tags, r.String())
	}

	if !flags.noPush {
		creds := registryCredentials(cfg)
		for _, ref := range refs {
			digest, err := pushRef(ctx, cli, ref, creds)
			if err != nil {
				return err
			}
			result.Pushed = append(result.Pushed, pushResultJSON{Ref: ref.String(), Digest: digest})
		}
	}

	if IsJSONOutput() {
		printJSON(result)
		return nil
	}
	fmt.Printf("Built %s image %s\n", variant, shortID(built.ImageID))
	for _, t := range result.Tags {
		fmt.Printf("  tagged %s\n", t)
	}
	for _, p := range result.Pushed {
		fmt.Printf("  pushed %s %s\n", p.Ref, p.Digest)
	}
	return nil
}

// buildRefs returns the image references for a build: the explicit tags
// if any, otherwise the variant's configured tags.
func buildRefs(cfg *config.Config, vc config.VariantConfig, explicit []string) ([]model.ImageRef, error) {
	tags := explicit
	if len(tags) == 0 {
		tags = vc.Tags
	}
	if len(tags) == 0 {
		return nil, model.NewCLIError(model.ExitConfigInvalid, "no tags configured for build")
	}

	refs := make([]model.ImageRef, 0, len(tags))
	seen := make(map[string]bool, len(tags))
	for _, t := range tags {
		if err := model.ValidateTag(t); err != nil {
			return nil, model.WrapCLIError(model.ExitGeneralError, "invalid tag", err)
		}
		if seen[t] {
			continue
		}
		seen[t] = true
		refs = append(refs, model.NewImageRef(cfg.Repository, t))
	}
	return refs, nil
}

// registryCredentials reads the registry login from the environment
// variables named in the configuration.
func registryCredentials(cfg *config.Config) docker.Credentials {
	creds := docker.Credentials{
		Username:      os.Getenv(cfg.Registry.UsernameEnv),
		Password:      os.Getenv(cfg.Registry.PasswordEnv),
		ServerAddress: cfg.Registry.Server,
	}
	if creds.IsZero() {
		VerboseLog("No registry credentials in %s/%s, pushing with daemon defaults",
			cfg.Registry.UsernameEnv, cfg.Registry.PasswordEnv)
	}
	return creds
}

func pushRef(ctx context.Context, cli *docker.Client, ref model.ImageRef, creds docker.Credentials) (string, error) {
	var digest string
	err := runStep(fmt.Sprintf("Pushing %s", ref), func(progress io.Writer) error {
		var err error
		digest, err = docker.PushImage(ctx, cli, ref, creds, progress)
		return err
	})
	return digest, err
}

// shortID trims the "sha256:" prefix and shortens an image ID to 12
// characters, as docker does.
func shortID(id string) string {
	const prefix = "sha256:"
	if len(id) > len(prefix) && id[:len(prefix)] == prefix {
		id = id[len(prefix):]
	}
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
