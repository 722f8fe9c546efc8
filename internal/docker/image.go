// image.go implements the image lifecycle that used to live in the build
// shell scripts: build with every tag, tag, log in, push, and the list and
// remove operations used to inspect what has been built locally.
package docker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"

	cerrdefs "github.com/containerd/errdefs"
	"github.com/docker/docker/api/types/build"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/registry"
	"github.com/docker/docker/pkg/archive"
	"github.com/docker/docker/pkg/jsonmessage"
	ignore "github.com/moby/patternmatcher/ignorefile"

	"github.com/hellej/hope-graph-updater/internal/model"
)

// BuildRequest describes one image build.
type BuildRequest struct {
	// ContextDir is the directory sent to the daemon as build context.
	ContextDir string

	// Dockerfile is the Dockerfile path relative to ContextDir.
	Dockerfile string

	// Refs are applied to the built image, in order.
	Refs []model.ImageRef

	BuildArgs map[string]string
	Labels    map[string]string

	NoCache bool
	Pull    bool

	// Progress receives the build output. Nil discards it.
	Progress io.Writer
}

// BuildResult reports the outcome of a successful build.
type BuildResult struct {
	ImageID string
	Refs    []model.ImageRef
}

// BuildImage builds an image from req and tags it with every ref.
//
// The context directory is archived with its .dockerignore patterns
// applied; the Dockerfile is always included even when ignored. Any error
// reported in the build stream fails the build.
func BuildImage(ctx context.Context, cli *Client, req BuildRequest) (*BuildResult, error) {
	if len(req.Refs) == 0 {
		return nil, model.NewCLIError(model.ExitGeneralError, "no image tags given for build")
	}

	buildCtx, err := contextArchive(req.ContextDir, req.Dockerfile)
	if err != nil {
		return nil, model.WrapCLIError(model.ExitGeneralError,
			fmt.Sprintf("failed to archive build context %s", req.ContextDir), err)
	}
	defer func() { _ = buildCtx.Close() }()

	resp, err := cli.Inner().ImageBuild(ctx, buildCtx, buildOptions(req))
	if err != nil {
		return nil, model.WrapCLIError(model.ExitDockerNotRunning,
			fmt.Sprintf("docker build failed for %s", req.Refs[0]), err)
	}
	defer func() { _ = resp.Body.Close() }()

	res, err := displayStream(resp.Body, req.Progress)
	if err != nil {
		return nil, model.WrapCLIError(model.ExitGeneralError,
			fmt.Sprintf("docker build failed for %s", req.Refs[0]), err)
	}

	return &BuildResult{ImageID: res.ImageID, Refs: req.Refs}, nil
}

// buildOptions converts req into SDK build options. Intermediate
// containers are always removed, matching `docker build` defaults.
func buildOptions(req BuildRequest) build.ImageBuildOptions {
	tags := make([]string, 0, len(req.Refs))
	for _, ref := range req.Refs {
		tags = append(tags, ref.String())
	}

	args := make(map[string]*string, len(req.BuildArgs))
	for k, v := range req.BuildArgs {
		value := v
		args[k] = &value
	}

	dockerfile := req.Dockerfile
	if dockerfile == "" {
		dockerfile = "Dockerfile"
	}

	return build.ImageBuildOptions{
		Tags:        tags,
		Dockerfile:  filepath.ToSlash(dockerfile),
		BuildArgs:   args,
		Labels:      req.Labels,
		NoCache:     req.NoCache,
		PullParent:  req.Pull,
		Remove:      true,
		ForceRemove: true,
	}
}

// contextArchive tars dir for the daemon, honouring .dockerignore.
func contextArchive(dir, dockerfile string) (io.ReadCloser, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", dir)
	}

	excludes, err := readDockerignore(dir)
	if err != nil {
		return nil, err
	}
	if len(excludes) > 0 {
		if dockerfile == "" {
			dockerfile = "Dockerfile"
		}
		excludes = append(excludes, "!"+filepath.ToSlash(dockerfile), "!.dockerignore")
	}

	return archive.TarWithOptions(dir, &archive.TarOptions{ExcludePatterns: excludes})
}

// readDockerignore returns the patterns of dir/.dockerignore, or nil when
// the file does not exist.
func readDockerignore(dir string) ([]string, error) {
	f, err := os.Open(filepath.Join(dir, ".dockerignore"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer func() { _ = f.Close() }()

	patterns, err := ignore.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("failed to parse .dockerignore: %w", err)
	}
	return patterns, nil
}

// TagImage adds target as a tag of source.
func TagImage(ctx context.Context, cli *Client, source string, target model.ImageRef) error {
	if err := cli.Inner().ImageTag(ctx, source, target.String()); err != nil {
		if cerrdefs.IsNotFound(err) {
			return model.WrapCLIError(model.ExitImageNotFound,
				fmt.Sprintf("image %q not found", source), err)
		}
		return model.WrapCLIError(model.ExitDockerNotRunning,
			fmt.Sprintf("failed to tag %s as %s", source, target), err)
	}
	return nil
}

// Credentials authenticate against a registry. A zero value pushes
// anonymously, which only works for registries that allow it.
type Credentials struct {
	Username      string
	Password      string
	ServerAddress string

	// IdentityToken, when set, replaces Username/Password.
	IdentityToken string
}

// IsZero reports whether no credentials are set.
func (c Credentials) IsZero() bool {
	return c.Username == "" && c.Password == "" && c.IdentityToken == ""
}

func (c Credentials) authConfig() registry.AuthConfig {
	return registry.AuthConfig{
		Username:      c.Username,
		Password:      c.Password,
		ServerAddress: c.ServerAddress,
		IdentityToken: c.IdentityToken,
	}
}

// Login verifies creds against the registry. When the registry answers
// with an identity token it is returned in place of the password.
func Login(ctx context.Context, cli *Client, creds Credentials) (Credentials, string, error) {
	resp, err := cli.Inner().RegistryLogin(ctx, creds.authConfig())
	if err != nil {
		server := creds.ServerAddress
		if server == "" {
			server = "Docker Hub"
		}
		return creds, "", model.WrapCLIError(model.ExitRegistryAuthFailed,
			fmt.Sprintf("login to %s failed", server), err)
	}
	if resp.IdentityToken != "" {
		creds.IdentityToken = resp.IdentityToken
		creds.Password = ""
	}
	return creds, resp.Status, nil
}

// PushImage pushes ref to its registry and returns the pushed digest, if
// the daemon reported one.
func PushImage(ctx context.Context, cli *Client, ref model.ImageRef, creds Credentials, progress io.Writer) (string, error) {
	auth, err := registry.EncodeAuthConfig(creds.authConfig())
	if err != nil {
		return "", model.WrapCLIError(model.ExitGeneralError, "failed to encode registry credentials", err)
	}

	body, err := cli.Inner().ImagePush(ctx, ref.String(), image.PushOptions{RegistryAuth: auth})
	if err != nil {
		if cerrdefs.IsNotFound(err) {
			return "", model.WrapCLIError(model.ExitImageNotFound,
				fmt.Sprintf("image %s not found locally", ref), err)
		}
		return "", model.WrapCLIError(model.ExitDockerNotRunning,
			fmt.Sprintf("docker push failed for %s", ref), err)
	}
	defer func() { _ = body.Close() }()

	res, err := displayStream(body, progress)
	if err != nil {
		return "", model.WrapCLIError(pushErrorCode(err),
			fmt.Sprintf("docker push failed for %s", ref), err)
	}
	return res.Digest, nil
}

// authFailureMarkers are fragments of registry errors that mean the
// credentials were missing or rejected.
var authFailureMarkers = []string{
	"unauthorized",
	"authentication required",
	"no basic auth credentials",
	"denied",
	"insufficient_scope",
}

// pushErrorCode maps an error from the push stream to an exit code. Only
// authentication failures are ExitRegistryAuthFailed.
func pushErrorCode(err error) model.ExitCode {
	var jerr *jsonmessage.JSONError
	if errors.As(err, &jerr) && (jerr.Code == http.StatusUnauthorized || jerr.Code == http.StatusForbidden) {
		return model.ExitRegistryAuthFailed
	}
	msg := strings.ToLower(err.Error())
	for _, m := range authFailureMarkers {
		if strings.Contains(msg, m) {
			return model.ExitRegistryAuthFailed
		}
	}
	return model.ExitGeneralError
}

// ListManagedImages returns every local image labelled as built by
// graph-updater, newest first. Images with unreadable labels are skipped.
func ListManagedImages(ctx context.Context, cli *Client) ([]model.ManagedImage, error) {
	summaries, err := cli.Inner().ImageList(ctx, image.ListOptions{
		Filters: filters.NewArgs(filters.Arg("label", ManagedFilter())),
	})
	if err != nil {
		return nil, model.WrapCLIError(model.ExitDockerNotRunning, "failed to list Docker images", err)
	}
	return imagesFromSummaries(summaries), nil
}

// imagesFromSummaries converts SDK summaries into domain records.
func imagesFromSummaries(summaries []image.Summary) []model.ManagedImage {
	result := make([]model.ManagedImage, 0, len(summaries))
	for _, s := range summaries {
		meta, err := ParseLabels(s.Labels)
		if err != nil {
			continue
		}
		result = append(result, model.ManagedImage{
			ID:        s.ID,
			Variant:   meta.Variant,
			RepoTags:  s.RepoTags,
			GitCommit: meta.GitCommit,
			BuiltAt:   meta.BuiltAt,
			Size:      s.Size,
		})
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].BuiltAt.After(result[j].BuiltAt)
	})
	return result
}

// RemoveImage removes the local image ref. With force, tags referenced by
// stopped containers are removed too.
func RemoveImage(ctx context.Context, cli *Client, ref model.ImageRef, force bool) error {
	_, err := cli.Inner().ImageRemove(ctx, ref.String(), image.RemoveOptions{
		Force:         force,
		PruneChildren: true,
	})
	if err != nil {
		if cerrdefs.IsNotFound(err) {
			return model.WrapCLIError(model.ExitImageNotFound,
				fmt.Sprintf("image %s not found", ref), err)
		}
		return model.WrapCLIError(model.ExitDockerNotRunning,
			fmt.Sprintf("failed to remove image %s", ref), err)
	}
	return nil
}
