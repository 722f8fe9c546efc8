// container.go runs the updater image locally. It is the programmatic
// counterpart of `docker run`, with the environment the start command
// expects (RUN_DEV=True for the dev variant) and management labels so the
// container can be found again by stop and list.
package docker

import (
	"context"
	"fmt"
	"sort"
	"strings"

	cerrdefs "github.com/containerd/errdefs"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"

	"github.com/hellej/hope-graph-updater/internal/model"
)

// RunRequest describes a container started from the updater image.
type RunRequest struct {
	Variant model.Variant
	Image   model.ImageRef

	// Env holds extra KEY=VALUE pairs added after the variant defaults.
	Env []string

	// Binds are host:container volume bindings, e.g. "./aqi_updates:/app/aqi_updates".
	Binds []string
}

// ContainerName returns the fixed container name for a variant. There is
// at most one local updater container per variant.
func ContainerName(variant model.Variant) string {
	return "graph-updater-" + variant.String()
}

// RunEnv returns the container environment for variant. The dev variant
// sets RUN_DEV=True, which makes the start command load the graph subset.
func RunEnv(variant model.Variant, extra []string) []string {
	env := make([]string, 0, len(extra)+1)
	if variant == model.VariantDev {
		env = append(env, "RUN_DEV=True")
	}
	return append(env, extra...)
}

// RunContainer creates and starts a detached container for req and returns
// its ID.
func RunContainer(ctx context.Context, cli *Client, req RunRequest) (string, error) {
	name := ContainerName(req.Variant)

	resp, err := cli.Inner().ContainerCreate(ctx,
		&container.Config{
			Image:  req.Image.String(),
			Env:    RunEnv(req.Variant, req.Env),
			Labels: ContainerLabels(req.Variant),
		},
		&container.HostConfig{
			Binds: req.Binds,
			RestartPolicy: container.RestartPolicy{
				Name: container.RestartPolicyUnlessStopped,
			},
		},
		nil, nil, name,
	)
	if err != nil {
		if cerrdefs.IsNotFound(err) {
			return "", model.WrapCLIError(model.ExitImageNotFound,
				fmt.Sprintf("image %s not found locally (build it first)", req.Image), err)
		}
		return "", model.WrapCLIError(model.ExitDockerNotRunning,
			fmt.Sprintf("failed to create container %q", name), err)
	}

	if err := StartContainer(ctx, cli, resp.ID); err != nil {
		return resp.ID, err
	}
	return resp.ID, nil
}

// ListManagedContainers returns all containers, including stopped ones,
// carrying the graph-updater management label.
func ListManagedContainers(ctx context.Context, cli *Client) ([]model.ContainerInfo, error) {
	containers, err := cli.Inner().ContainerList(ctx, container.ListOptions{
		All:     true,
		Filters: filters.NewArgs(filters.Arg("label", ManagedFilter())),
	})
	if err != nil {
		return nil, model.WrapCLIError(model.ExitDockerNotRunning, "failed to list Docker containers", err)
	}

	result := make([]model.ContainerInfo, 0, len(containers))
	for _, c := range containers {
		result = append(result, containerToInfo(c))
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].ContainerName < result[j].ContainerName
	})
	return result, nil
}

// containerToInfo converts an SDK summary into the domain record. Docker
// reports names with a leading "/", which is stripped.
func containerToInfo(c container.Summary) model.ContainerInfo {
	name := ""
	if len(c.Names) > 0 {
		name = strings.TrimPrefix(c.Names[0], "/")
	}
	return model.ContainerInfo{
		ContainerID:   c.ID,
		ContainerName: name,
		Image:         c.Image,
		Variant:       model.Variant(c.Labels[LabelVariant]),
		Status:        string(c.State),
		Labels:        c.Labels,
	}
}

// FindContainer returns the managed container for variant.
func FindContainer(containers []model.ContainerInfo, variant model.Variant) (model.ContainerInfo, bool) {
	for _, c := range containers {
		if c.Variant == variant {
			return c, true
		}
	}
	return model.ContainerInfo{}, false
}

// StartContainer starts a created or stopped container.
func StartContainer(ctx context.Context, cli *Client, containerID string) error {
	if err := cli.Inner().ContainerStart(ctx, containerID, container.StartOptions{}); err != nil {
		return model.WrapCLIError(model.ExitDockerNotRunning,
			fmt.Sprintf("failed to start container %q", containerID), err)
	}
	return nil
}

// StopContainer stops a running container, using the daemon's default
// grace period before SIGKILL.
func StopContainer(ctx context.Context, cli *Client, containerID string) error {
	if err := cli.Inner().ContainerStop(ctx, containerID, container.StopOptions{}); err != nil {
		return model.WrapCLIError(model.ExitDockerNotRunning,
			fmt.Sprintf("failed to stop container %q", containerID), err)
	}
	return nil
}

// RemoveContainer removes a container. With force, a running container
// is killed first.
func RemoveContainer(ctx context.Context, cli *Client, containerID string, force bool) error {
	err := cli.Inner().ContainerRemove(ctx, containerID, container.RemoveOptions{Force: force})
	if err != nil {
		return model.WrapCLIError(model.ExitDockerNotRunning,
			fmt.Sprintf("failed to remove container %q", containerID), err)
	}
	return nil
}
