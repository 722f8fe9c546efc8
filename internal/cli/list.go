// list.go implements the "graph-updater list" command.
//
// The list command shows the updater images built locally and the updater
// containers started by "run", discovered through their
// "graph-updater.managed-by" label.

package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/hellej/hope-graph-updater/internal/docker"
	"github.com/hellej/hope-graph-updater/internal/model"
)

// NewListCommand creates the "list" cobra command.
func NewListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List locally built images and running updater containers",
		Long: `List the updater images built by graph-updater and the updater containers
started with "run".

Examples:
  graph-updater list
  graph-updater list --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(cmd.Context())
		},
	}
}

func runList(ctx context.Context) error {
	cli, err := docker.NewClient()
	if err != nil {
		return err
	}
	defer func() { _ = cli.Close() }()

	VerboseLog("Connected to Docker daemon")

	images, err := docker.ListManagedImages(ctx, cli)
	if err != nil {
		return err
	}
	containers, err := docker.ListManagedContainers(ctx, cli)
	if err != nil {
		return err
	}
	VerboseLog("Found %d managed images and %d containers", len(images), len(containers))

	if IsJSONOutput() {
		printJSON(listResultJSON{Images: nonNilImages(images), Containers: nonNilContainers(containers)})
		return nil
	}
	printListResultText(images, containers, time.Now())
	return nil
}

type listResultJSON struct {
	Images     []model.ManagedImage  `json:"images"`
	Containers []model.ContainerInfo `json:"containers"`
}

func nonNilImages(v []model.ManagedImage) []model.ManagedImage {
	if v == nil {
		return []model.ManagedImage{}
	}
	return v
}

func nonNilContainers(v []model.ContainerInfo) []model.ContainerInfo {
	if v == nil {
		return []model.ContainerInfo{}
	}
	return v
}

// printListResultText prints images and containers as aligned tables:
//
//	IMAGE         VARIANT  TAGS                                COMMIT    BUILT       SIZE
//	3f9a1c2b7d10  prod     hellej/hope-graph-updater:latest    a1b2c3d   2h ago      812.4 MB
func printListResultText(images []model.ManagedImage, containers []model.ContainerInfo, now time.Time) {
	if len(images) == 0 {
		fmt.Println("No graph-updater images found.")
	} else {
		fmt.Printf("%-14s %-8s %-40s %-14s %-10s %s\n", "IMAGE", "VARIANT", "TAGS", "COMMIT", "BUILT", "SIZE")
		for _, img := range images {
			fmt.Printf("%-14s %-8s %-40s %-14s %-10s %s\n",
				shortID(img.ID),
				img.Variant,
				FormatTags(img.RepoTags),
				shortCommit(img.GitCommit),
				FormatAge(img.BuiltAt, now),
				FormatSize(img.Size),
			)
		}
	}

	fmt.Println()
	if len(containers) == 0 {
		fmt.Println("No graph-updater containers found.")
		return
	}
	fmt.Printf("%-24s %-8s %-10s %s\n", "CONTAINER", "VARIANT", "STATUS", "IMAGE")
	for _, c := range containers {
		fmt.Printf("%-24s %-8s %-10s %s\n", c.ContainerName, c.Variant, c.Status, c.Image)
	}
}

// FormatTags joins repository tags with commas, or "-" for an untagged
// image.
func FormatTags(tags []string) string {
	if len(tags) == 0 {
		return "-"
	}
	return strings.Join(tags, ",")
}

// FormatAge renders the time since t in the largest whole unit.
func FormatAge(t, now time.Time) string {
	if t.IsZero() {
		return "-"
	}
	d := now.Sub(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 48*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}

// FormatSize renders a byte count with a decimal unit, as docker does.
func FormatSize(n int64) string {
	const unit = 1000
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(n)/float64(div), "kMGTPE"[exp])
}

// shortCommit shortens a commit label, keeping a "-dirty" suffix.
func shortCommit(c string) string {
	base, dirty := strings.CutSuffix(c, "-dirty")
	if len(base) > 7 {
		base = base[:7]
	}
	if dirty {
		return base + "-dirty"
	}
	return base
}
