// Package gitinfo reads source revision details used to label built images.
//
// It shells out to the git CLI rather than linking a Go git implementation:
// the build only needs three read-only queries, and running `git` keeps the
// answers identical to what the developer sees in their terminal.
package gitinfo

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/hellej/hope-graph-updater/internal/model"
)

// UnknownCommit is recorded on images built outside a git checkout.
const UnknownCommit = "unknown"

// Revision describes the checked-out source at build time.
type Revision struct {
	Commit string `json:"commit"`
	Branch string `json:"branch"`
	Dirty  bool   `json:"dirty"`
}

// Label returns the commit, suffixed with "-dirty" when the working tree
// has uncommitted changes.
func (r Revision) Label() string {
	if r.Dirty && r.Commit != UnknownCommit {
		return r.Commit + "-dirty"
	}
	return r.Commit
}

// Manager runs git queries. The zero value uses the "git" binary on PATH.
type Manager struct {
	// Binary overrides the git executable, mainly for tests.
	Binary string
}

// NewManager creates a Manager that uses git from PATH.
func NewManager() *Manager {
	return &Manager{Binary: "git"}
}

// HeadCommit returns the full SHA of HEAD in repoPath.
func (m *Manager) HeadCommit(ctx context.Context, repoPath string) (string, error) {
	out, err := m.run(ctx, repoPath, "rev-parse", "HEAD")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// CurrentBranch returns the short branch name, or "HEAD" when detached.
func (m *Manager) CurrentBranch(ctx context.Context, repoPath string) (string, error) {
	out, err := m.run(ctx, repoPath, "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// IsDirty reports whether the working tree has staged, unstaged or
// untracked changes.
func (m *Manager) IsDirty(ctx context.Context, repoPath string) (bool, error) {
	out, err := m.run(ctx, repoPath, "status", "--porcelain")
	if err != nil {
		return false, err
	}
	return strings.TrimSpace(out) != "", nil
}

// Describe collects a Revision for repoPath. Outside a git checkout it
// returns a Revision with UnknownCommit and no error, so builds from
// exported source trees still work.
func (m *Manager) Describe(ctx context.Context, repoPath string) Revision {
	commit, err := m.HeadCommit(ctx, repoPath)
	if err != nil {
		return Revision{Commit: UnknownCommit}
	}
	rev := Revision{Commit: commit}
	if branch, err := m.CurrentBranch(ctx, repoPath); err == nil {
		rev.Branch = branch
	}
	if dirty, err := m.IsDirty(ctx, repoPath); err == nil {
		rev.Dirty = dirty
	}
	return rev
}

// run executes git with -C repoPath and returns stdout. Failures carry
// stderr in the message and ExitGitError as the exit code.
func (m *Manager) run(ctx context.Context, repoPath string, args ...string) (string, error) {
	bin := m.Binary
	if bin == "" {
		bin = "git"
	}
	fullArgs := append([]string{"-C", repoPath}, args...)

	// #nosec G204 -- args are constructed internally
	cmd := exec.CommandContext(ctx, bin, fullArgs...)

	var stdout, stderr strings.Builder
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		message := fmt.Sprintf("git %s failed", strings.Join(args, " "))
		if s := strings.TrimSpace(stderr.String()); s != "" {
			message = fmt.Sprintf("%s: %s", message, s)
		}
		return "", model.WrapCLIError(model.ExitGitError, message, err)
	}
	return stdout.String(), nil
}
