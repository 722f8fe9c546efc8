package docker

import (
	"fmt"
	"strings"
	"time"

	"github.com/hellej/hope-graph-updater/internal/model"
)

// Label keys written on every image built and every container run by
// graph-updater. They are the only record of what was built; there is no
// state file.
//
// All keys share the "graph-updater." prefix so that they cannot collide
// with the OCI labels set by base images.
const (
	// LabelPrefix is the common prefix for all graph-updater labels.
	LabelPrefix = "graph-updater."

	// LabelManagedBy marks images and containers created by this tool.
	// It is the label used for filtering.
	LabelManagedBy = LabelPrefix + "managed-by"

	// LabelVariant stores the image variant ("prod" or "dev").
	LabelVariant = LabelPrefix + "variant"

	// LabelRepository stores the repository the tags belong to.
	LabelRepository = LabelPrefix + "repository"

	// LabelTags stores the comma-separated tags applied at build time.
	LabelTags = LabelPrefix + "tags"

	// LabelGitCommit stores the source revision, "-dirty" suffixed when
	// the working tree had uncommitted changes.
	LabelGitCommit = LabelPrefix + "git-commit"

	// LabelBuiltAt stores the RFC3339 UTC build time.
	LabelBuiltAt = LabelPrefix + "built-at"
)

// ManagedByValue is the value of LabelManagedBy.
const ManagedByValue = "graph-updater"

// ImageMeta is the metadata recorded in an image's labels.
type ImageMeta struct {
	Variant    model.Variant
	Repository string
	Tags       []string
	GitCommit  string
	BuiltAt    time.Time
}

// BuildLabels converts meta into a label map for ImageBuild.
func BuildLabels(meta ImageMeta) map[string]string {
	return map[string]string{
		LabelManagedBy:  ManagedByValue,
		LabelVariant:    meta.Variant.String(),
		LabelRepository: meta.Repository,
		LabelTags:       strings.Join(meta.Tags, ","),
		LabelGitCommit:  meta.GitCommit,
		LabelBuiltAt:    meta.BuiltAt.UTC().Format(time.RFC3339),
	}
}

// ParseLabels reconstructs ImageMeta from labels. It is the inverse of
// BuildLabels. Every key is required; all missing keys are reported at once.
func ParseLabels(labels map[string]string) (ImageMeta, error) {
	required := []string{
		LabelManagedBy,
		LabelVariant,
		LabelRepository,
		LabelTags,
		LabelGitCommit,
		LabelBuiltAt,
	}

	var missing []string
	for _, key := range required {
		if _, ok := labels[key]; !ok {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return ImageMeta{}, fmt.Errorf("missing required labels: %s", strings.Join(missing, ", "))
	}

	if labels[LabelManagedBy] != ManagedByValue {
		return ImageMeta{}, fmt.Errorf("label %s has unexpected value %q (expected %q)",
			LabelManagedBy, labels[LabelManagedBy], ManagedByValue)
	}

	variant, err := model.ParseVariant(labels[LabelVariant])
	if err != nil {
		return ImageMeta{}, fmt.Errorf("invalid label %s: %w", LabelVariant, err)
	}

	builtAt, err := time.Parse(time.RFC3339, labels[LabelBuiltAt])
	if err != nil {
		return ImageMeta{}, fmt.Errorf("invalid label %s: %w", LabelBuiltAt, err)
	}

	var tags []string
	if s := labels[LabelTags]; s != "" {
		tags = strings.Split(s, ",")
	}

	return ImageMeta{
		Variant:    variant,
		Repository: labels[LabelRepository],
		Tags:       tags,
		GitCommit:  labels[LabelGitCommit],
		BuiltAt:    builtAt,
	}, nil
}

// ContainerLabels returns the labels for a container started by RunContainer.
func ContainerLabels(variant model.Variant) map[string]string {
	return map[string]string{
		LabelManagedBy: ManagedByValue,
		LabelVariant:   variant.String(),
	}
}

// ManagedFilter is the "label" filter value matching managed objects.
func ManagedFilter() string {
	return LabelManagedBy + "=" + ManagedByValue
}
