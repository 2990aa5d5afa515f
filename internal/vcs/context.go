// Package vcs provides context for the `xreposync doctor` preflight check:
// detecting a clone's VCS backend and locating its mapping config before a
// tailer attaches to it.
package vcs

import (
	"context"
	"os/exec"
	"path/filepath"
	"sync"
)

// RepoVCS holds the resolved VCS instance for a repository.
type RepoVCS struct {
	// VCS is the version control system instance (Git or Jujutsu).
	VCS VCS

	// ConfigDir is the .xreposync directory path, if found (holds config.yaml).
	ConfigDir string

	// RepoRoot is the repository root directory.
	RepoRoot string

	// IsColocated indicates this is a colocated jj+git repository.
	IsColocated bool
}

var (
	repoVCS     *RepoVCS
	repoVCSOnce sync.Once
	repoVCSErr  error
)

// GetRepoVCS returns the cached VCS context, initializing it on first call.
// It detects the VCS type and creates the appropriate backend.
func GetRepoVCS() (*RepoVCS, error) {
	repoVCSOnce.Do(func() {
		repoVCS, repoVCSErr = buildRepoVCS()
	})
	return repoVCS, repoVCSErr
}

// GetRepoVCSForPath returns a VCS context for a specific path.
// This doesn't use caching - use for testing or when path varies.
func GetRepoVCSForPath(path string) (*RepoVCS, error) {
	return buildRepoVCSForPath(path)
}

// buildRepoVCS constructs the RepoVCS by detecting VCS and creating backend.
func buildRepoVCS() (*RepoVCS, error) {
	// Start from current working directory
	cwd, err := filepath.Abs(".")
	if err != nil {
		return nil, err
	}
	return buildRepoVCSForPath(cwd)
}

// buildRepoVCSForPath constructs RepoVCS for a specific path.
func buildRepoVCSForPath(startPath string) (*RepoVCS, error) {
	// Detect VCS type
	vcsInstance, err := DetectVCS(startPath)
	if err != nil {
		return nil, err
	}

	repoRoot := vcsInstance.RepoRoot()

	// Look for a .xreposync directory holding this clone's mapping config.
	configDir := findConfigDir(repoRoot)

	return &RepoVCS{
		VCS:         vcsInstance,
		ConfigDir:   configDir,
		RepoRoot:    repoRoot,
		IsColocated: vcsInstance.IsColocated(),
	}, nil
}

// findConfigDir looks for a .xreposync directory starting from the given path.
func findConfigDir(startPath string) string {
	current := startPath
	for {
		candidate := filepath.Join(current, ".xreposync")
		if isDirectory(candidate) {
			return candidate
		}

		parent := filepath.Dir(current)
		if parent == current {
			break
		}
		current = parent
	}
	return ""
}

// ResetVCSCaches clears the cached RepoVCS for testing.
func ResetVCSCaches() {
	repoVCSOnce = sync.Once{}
	repoVCS = nil
	repoVCSErr = nil
}

// --- Methods on RepoVCS for common operations ---

// Command creates an exec.Cmd for VCS operations in the repository.
// This is the primary method for VCS-agnostic command execution.
func (rv *RepoVCS) Command(ctx context.Context, args ...string) *exec.Cmd {
	return rv.VCS.Command(ctx, args...)
}

// Type returns the VCS type (git or jj).
func (rv *RepoVCS) Type() VCSType {
	return rv.VCS.Type()
}

// Status returns the working copy status.
func (rv *RepoVCS) Status(ctx context.Context) ([]StatusEntry, error) {
	return rv.VCS.Status(ctx)
}

// Stage stages files for commit.
func (rv *RepoVCS) Stage(ctx context.Context, paths ...string) error {
	return rv.VCS.Stage(ctx, paths...)
}

// Commit creates a commit with the given message.
func (rv *RepoVCS) Commit(ctx context.Context, message string, opts *CommitOptions) error {
	return rv.VCS.Commit(ctx, message, opts)
}

// Push pushes to remote.
func (rv *RepoVCS) Push(ctx context.Context, remote, branch string) error {
	return rv.VCS.Push(ctx, remote, branch)
}

// Pull fetches and merges from remote.
func (rv *RepoVCS) Pull(ctx context.Context, remote, branch string) error {
	return rv.VCS.Pull(ctx, remote, branch)
}

// Fetch fetches from remote without merging.
func (rv *RepoVCS) Fetch(ctx context.Context, remote, branch string) error {
	return rv.VCS.Fetch(ctx, remote, branch)
}

// CurrentBranch returns the current branch (git) or change ID (jj).
func (rv *RepoVCS) CurrentBranch(ctx context.Context) (string, error) {
	return rv.VCS.CurrentBranch(ctx)
}

// HasRemote checks if a remote is configured.
func (rv *RepoVCS) HasRemote(ctx context.Context) (bool, error) {
	return rv.VCS.HasRemote(ctx)
}

// GetRemote returns the default remote name.
func (rv *RepoVCS) GetRemote(ctx context.Context) (string, error) {
	return rv.VCS.GetRemote(ctx)
}

// HasMergeConflicts checks for unresolved conflicts.
func (rv *RepoVCS) HasMergeConflicts(ctx context.Context) (bool, error) {
	return rv.VCS.HasMergeConflicts(ctx)
}

// --- JJ-specific helpers for colocated repos ---

// IsJujutsu returns true if the VCS is Jujutsu.
func (rv *RepoVCS) IsJujutsu() bool {
	return rv.VCS.Type() == VCSTypeJujutsu
}

// IsGit returns true if the VCS is Git.
func (rv *RepoVCS) IsGit() bool {
	return rv.VCS.Type() == VCSTypeGit
}

// GitExport exports jj changes to git (colocated repos only).
// No-op for pure git repos.
func (rv *RepoVCS) GitExport(ctx context.Context) error {
	if jj, ok := rv.VCS.(*JujutsuVCS); ok {
		return jj.GitExport(ctx)
	}
	return nil
}

// GitImport imports git changes into jj (colocated repos only).
// No-op for pure git repos.
func (rv *RepoVCS) GitImport(ctx context.Context) error {
	if jj, ok := rv.VCS.(*JujutsuVCS); ok {
		return jj.GitImport(ctx)
	}
	return nil
}

// Snapshot forces a working copy snapshot (jj only).
// No-op for git.
func (rv *RepoVCS) Snapshot(ctx context.Context) error {
	if jj, ok := rv.VCS.(*JujutsuVCS); ok {
		return jj.Snapshot(ctx)
	}
	return nil
}

// StackInfo returns information about the current change stack.
// For git, returns unpushed commits. For jj, returns mutable changes.
func (rv *RepoVCS) StackInfo(ctx context.Context) ([]ChangeInfo, error) {
	return rv.VCS.StackInfo(ctx)
}

// --- Workspace/Worktree operations ---

// ListWorkspaces lists all workspaces (jj) or worktrees (git).
func (rv *RepoVCS) ListWorkspaces(ctx context.Context) ([]WorkspaceInfo, error) {
	return rv.VCS.ListWorkspaces(ctx)
}

// CreateWorkspace creates a new workspace (jj) or worktree (git).
func (rv *RepoVCS) CreateWorkspace(ctx context.Context, name, path string) error {
	return rv.VCS.CreateWorkspace(ctx, name, path)
}

// RemoveWorkspace removes a workspace (jj) or worktree (git).
func (rv *RepoVCS) RemoveWorkspace(ctx context.Context, name string) error {
	return rv.VCS.RemoveWorkspace(ctx, name)
}

// --- Doctor-check helpers ---

// ConfigPath returns the path to this clone's mapping config file, or ""
// if no .xreposync directory was found above the repo root.
func (rv *RepoVCS) ConfigPath() string {
	if rv.ConfigDir == "" {
		return ""
	}
	return filepath.Join(rv.ConfigDir, "config.yaml")
}

// RelPath returns a path relative to the repo root.
func (rv *RepoVCS) RelPath(absPath string) (string, error) {
	return filepath.Rel(rv.RepoRoot, absPath)
}
