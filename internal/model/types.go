package model

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// DefaultRepository is the Docker Hub repository the updater image is
// published to. Tags are appended as "<repository>:<tag>".
const DefaultRepository = "hellej/hope-graph-updater"

// DefaultTag is used when an image reference carries no explicit tag.
const DefaultTag = "latest"

// Variant selects which flavour of the updater image is built or run.
//
// The prod variant processes the full street graph. The dev variant is
// started with RUN_DEV=True, which makes the application load a subset
// of the graph for faster iteration.
type Variant string

const (
	// VariantProd is the production image, conventionally tagged "latest".
	VariantProd Variant = "prod"

	// VariantDev is the development image, conventionally tagged "dev".
	VariantDev Variant = "dev"
)

// String returns the string representation of Variant.
func (v Variant) String() string {
	return string(v)
}

// IsValid checks whether the Variant is one of the predefined values.
func (v Variant) IsValid() bool {
	switch v {
	case VariantProd, VariantDev:
		return true
	default:
		return false
	}
}

// ParseVariant converts a string to a Variant. An empty string selects
// VariantProd, matching the behaviour of the plain build script.
func ParseVariant(s string) (Variant, error) {
	if s == "" {
		return VariantProd, nil
	}
	v := Variant(strings.ToLower(s))
	if !v.IsValid() {
		return "", fmt.Errorf("invalid variant: %q (valid: prod, dev)", s)
	}
	return v, nil
}

// tagRegex is Docker's tag grammar: up to 128 word characters, dots and
// dashes, not starting with a dot or dash.
var tagRegex = regexp.MustCompile(`^[A-Za-z0-9_][A-Za-z0-9_.-]{0,127}$`)

// ValidateTag checks that tag is a valid Docker image tag.
func ValidateTag(tag string) error {
	if tag == "" {
		return fmt.Errorf("image tag must not be empty")
	}
	if !tagRegex.MatchString(tag) {
		return fmt.Errorf("invalid image tag %q: must match [A-Za-z0-9_][A-Za-z0-9_.-]{0,127}", tag)
	}
	return nil
}

// ImageRef is a repository and tag pair, e.g. hellej/hope-graph-updater:dev.
type ImageRef struct {
	Repository string `json:"repository"`
	Tag        string `json:"tag"`
}

// NewImageRef returns the reference for tag in repository.
func NewImageRef(repository, tag string) ImageRef {
	return ImageRef{Repository: repository, Tag: tag}
}

// String formats the reference as "repository:tag".
func (r ImageRef) String() string {
	tag := r.Tag
	if tag == "" {
		tag = DefaultTag
	}
	return r.Repository + ":" + tag
}

// ParseImageRef splits a reference into repository and tag. The tag
// separator is the last colon after the last slash, so registry hosts
// with ports ("localhost:5000/app") are handled. A reference without a
// tag gets DefaultTag.
func ParseImageRef(s string) (ImageRef, error) {
	if s == "" {
		return ImageRef{}, fmt.Errorf("image reference must not be empty")
	}

	repo, tag := s, ""
	slash := strings.LastIndex(s, "/")
	if colon := strings.LastIndex(s, ":"); colon > slash {
		repo, tag = s[:colon], s[colon+1:]
	}
	if repo == "" {
		return ImageRef{}, fmt.Errorf("invalid image reference %q: empty repository", s)
	}
	if tag == "" {
		tag = DefaultTag
	}
	if err := ValidateTag(tag); err != nil {
		return ImageRef{}, fmt.Errorf("invalid image reference %q: %w", s, err)
	}
	return ImageRef{Repository: repo, Tag: tag}, nil
}

// ManagedImage describes a local image built by graph-updater, as
// reconstructed from its labels.
type ManagedImage struct {
	ID        string    `json:"id"`
	Variant   Variant   `json:"variant"`
	RepoTags  []string  `json:"repoTags"`
	GitCommit string    `json:"gitCommit"`
	BuiltAt   time.Time `json:"builtAt"`
	Size      int64     `json:"size"`
}

// ContainerInfo holds runtime information about a container started by
// the run command. It is fetched from the Docker API, not persisted.
type ContainerInfo struct {
	ContainerID   string            `json:"containerId"`
	ContainerName string            `json:"containerName"`
	Image         string            `json:"image"`
	Variant       Variant           `json:"variant"`
	Status        string            `json:"status"`
	Labels        map[string]string `json:"labels,omitempty"`
}

// ExitCode defines the process exit codes of the CLI. Scripts and CI
// jobs can branch on them instead of parsing error text.
type ExitCode int

const (
	// ExitSuccess indicates the command completed successfully.
	ExitSuccess ExitCode = 0

	// ExitGeneralError indicates an unspecified error occurred.
	ExitGeneralError ExitCode = 1

	// ExitConfigInvalid indicates the configuration file could not be
	// read or failed validation.
	ExitConfigInvalid ExitCode = 2

	// ExitDockerNotRunning indicates the Docker daemon is not accessible
	// or a Docker API operation failed.
	ExitDockerNotRunning ExitCode = 3

	// ExitPortUnavailable indicates a listen address is already in use.
	ExitPortUnavailable ExitCode = 4

	// ExitGitError indicates a Git query failed.
	ExitGitError ExitCode = 5

	// ExitImageNotFound indicates the requested image or container does
	// not exist locally.
	ExitImageNotFound ExitCode = 6

	// ExitRegistryAuthFailed indicates the registry rejected the credentials.
	ExitRegistryAuthFailed ExitCode = 7

	// ExitAppFailed indicates the launched application could not be started.
	// When the application starts and exits non-zero, its own exit code is
	// forwarded instead.
	ExitAppFailed ExitCode = 8
)

// CLIError is a custom error type that carries an exit code.
// This allows the CLI layer to translate domain errors into
// appropriate process exit codes.
type CLIError struct {
	// Code is the exit code to return to the OS.
	Code ExitCode

	// Message is the human-readable error description.
	Message string

	// Err is the underlying error, if any.
	Err error
}

// Error satisfies the error interface.
func (e *CLIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the underlying error for use with errors.Is/errors.As.
func (e *CLIError) Unwrap() error {
	return e.Err
}

// NewCLIError creates a new CLIError with the given exit code and message.
func NewCLIError(code ExitCode, message string) *CLIError {
	return &CLIError{Code: code, Message: message}
}

// WrapCLIError creates a new CLIError that wraps an existing error.
func WrapCLIError(code ExitCode, message string, err error) *CLIError {
	return &CLIError{Code: code, Message: message, Err: err}
}
