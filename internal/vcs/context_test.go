package vcs

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestGetRepoVCSForPath_Git(t *testing.T) {
	h := NewTestHelper(t)
	repoPath := h.CreateGitRepo("git-context")

	// Create initial commit
	h.WriteFile(repoPath, "test.txt", "hello")
	h.runCmd(repoPath, "git", "add", ".")
	h.runCmd(repoPath, "git", "commit", "-m", "Initial")

	// Create .xreposync directory
	configDir := filepath.Join(repoPath, ".xreposync")
	if err := os.MkdirAll(configDir, 0755); err != nil {
		t.Fatalf("failed to create .xreposync: %v", err)
	}

	rv, err := GetRepoVCSForPath(repoPath)
	if err != nil {
		t.Fatalf("GetRepoVCSForPath failed: %v", err)
	}

	// Check VCS type
	if rv.Type() != VCSTypeGit {
		t.Errorf("expected VCSTypeGit, got %v", rv.Type())
	}

	// Check repo root
	if rv.RepoRoot != repoPath {
		t.Errorf("expected RepoRoot %s, got %s", repoPath, rv.RepoRoot)
	}

	// Check config dir
	if rv.ConfigDir != configDir {
		t.Errorf("expected ConfigDir %s, got %s", configDir, rv.ConfigDir)
	}

	// Check helper methods
	if !rv.IsGit() {
		t.Error("IsGit should return true")
	}
	if rv.IsJujutsu() {
		t.Error("IsJujutsu should return false")
	}
}

func TestGetRepoVCSForPath_Jujutsu(t *testing.T) {
	if _, err := os.Stat("/root/.cargo/bin/jj"); err != nil {
		t.Skip("jj not installed")
	}

	h := NewTestHelper(t)
	repoPath := h.CreateJJRepo("jj-context")

	// Create .xreposync directory
	configDir := filepath.Join(repoPath, ".xreposync")
	if err := os.MkdirAll(configDir, 0755); err != nil {
		t.Fatalf("failed to create .xreposync: %v", err)
	}

	rv, err := GetRepoVCSForPath(repoPath)
	if err != nil {
		t.Fatalf("GetRepoVCSForPath failed: %v", err)
	}

	// Check VCS type
	if rv.Type() != VCSTypeJujutsu {
		t.Errorf("expected VCSTypeJujutsu, got %v", rv.Type())
	}

	// Check helper methods
	if rv.IsGit() {
		t.Error("IsGit should return false")
	}
	if !rv.IsJujutsu() {
		t.Error("IsJujutsu should return true")
	}
}

func TestRepoVCS_Colocated(t *testing.T) {
	if _, err := os.Stat("/root/.cargo/bin/jj"); err != nil {
		t.Skip("jj not installed")
	}

	h := NewTestHelper(t)
	repoPath := h.CreateColocatedRepo("colocated-context")

	rv, err := GetRepoVCSForPath(repoPath)
	if err != nil {
		t.Fatalf("GetRepoVCSForPath failed: %v", err)
	}

	// Should prefer jj in colocated repo
	if !rv.IsJujutsu() {
		t.Error("expected IsJujutsu() to be true for colocated repo")
	}

	// Should report colocated
	if !rv.IsColocated {
		t.Error("expected IsColocated to be true")
	}

	ctx := context.Background()

	// Test GitExport (should not error)
	err = rv.GitExport(ctx)
	if err != nil {
		t.Errorf("GitExport failed: %v", err)
	}
}

func TestRepoVCS_StackInfo(t *testing.T) {
	if _, err := os.Stat("/root/.cargo/bin/jj"); err != nil {
		t.Skip("jj not installed")
	}

	h := NewTestHelper(t)
	repoPath := h.CreateJJRepo("jj-stack")

	// Create some changes
	h.WriteFile(repoPath, "file1.txt", "content1")
	h.runCmd(repoPath, "jj", "commit", "-m", "First change")
	h.WriteFile(repoPath, "file2.txt", "content2")
	h.runCmd(repoPath, "jj", "commit", "-m", "Second change")

	rv, err := GetRepoVCSForPath(repoPath)
	if err != nil {
		t.Fatalf("GetRepoVCSForPath failed: %v", err)
	}

	ctx := context.Background()

	// Get stack info
	stack, err := rv.StackInfo(ctx)
	if err != nil {
		t.Fatalf("StackInfo failed: %v", err)
	}

	// Should have changes in stack
	if len(stack) < 2 {
		t.Errorf("expected at least 2 changes in stack, got %d", len(stack))
	}
}

func TestRepoVCS_ConfigPaths(t *testing.T) {
	h := NewTestHelper(t)
	repoPath := h.CreateGitRepo("git-paths")

	// Create initial commit
	h.WriteFile(repoPath, "test.txt", "hello")
	h.runCmd(repoPath, "git", "add", ".")
	h.runCmd(repoPath, "git", "commit", "-m", "Initial")

	// Create .xreposync directory
	configDir := filepath.Join(repoPath, ".xreposync")
	if err := os.MkdirAll(configDir, 0755); err != nil {
		t.Fatalf("failed to create .xreposync: %v", err)
	}

	rv, err := GetRepoVCSForPath(repoPath)
	if err != nil {
		t.Fatalf("GetRepoVCSForPath failed: %v", err)
	}

	// Test ConfigPath
	configPath := rv.ConfigPath()
	expected := filepath.Join(configDir, "config.yaml")
	if configPath != expected {
		t.Errorf("expected %s, got %s", expected, configPath)
	}

	// Test RelPath
	relPath, err := rv.RelPath(filepath.Join(repoPath, ".xreposync/config.yaml"))
	if err != nil {
		t.Fatalf("RelPath failed: %v", err)
	}
	if relPath != ".xreposync/config.yaml" {
		t.Errorf("expected .xreposync/config.yaml, got %s", relPath)
	}
}

func TestRepoVCS_NoConfigDir(t *testing.T) {
	h := NewTestHelper(t)
	repoPath := h.CreateGitRepo("git-no-config")

	h.WriteFile(repoPath, "test.txt", "hello")
	h.runCmd(repoPath, "git", "add", ".")
	h.runCmd(repoPath, "git", "commit", "-m", "Initial")

	rv, err := GetRepoVCSForPath(repoPath)
	if err != nil {
		t.Fatalf("GetRepoVCSForPath failed: %v", err)
	}

	if rv.ConfigPath() != "" {
		t.Errorf("expected empty ConfigPath with no .xreposync dir, got %s", rv.ConfigPath())
	}
}

func TestRepoVCS_Workspace(t *testing.T) {
	if _, err := os.Stat("/root/.cargo/bin/jj"); err != nil {
		t.Skip("jj not installed")
	}

	h := NewTestHelper(t)
	repoPath := h.CreateJJRepo("jj-workspace")

	rv, err := GetRepoVCSForPath(repoPath)
	if err != nil {
		t.Fatalf("GetRepoVCSForPath failed: %v", err)
	}

	ctx := context.Background()

	// List workspaces (should have default)
	workspaces, err := rv.ListWorkspaces(ctx)
	if err != nil {
		t.Fatalf("ListWorkspaces failed: %v", err)
	}
	if len(workspaces) != 1 {
		t.Errorf("expected 1 workspace, got %d", len(workspaces))
	}

	// Create workspace
	wsPath := filepath.Join(h.tempDir, "feature-ws")
	err = rv.CreateWorkspace(ctx, "feature", wsPath)
	if err != nil {
		t.Fatalf("CreateWorkspace failed: %v", err)
	}

	// Verify
	workspaces, err = rv.ListWorkspaces(ctx)
	if err != nil {
		t.Fatalf("ListWorkspaces failed: %v", err)
	}
	if len(workspaces) != 2 {
		t.Errorf("expected 2 workspaces, got %d", len(workspaces))
	}

	// Remove workspace
	err = rv.RemoveWorkspace(ctx, "feature")
	if err != nil {
		t.Fatalf("RemoveWorkspace failed: %v", err)
	}

	// Verify
	workspaces, err = rv.ListWorkspaces(ctx)
	if err != nil {
		t.Fatalf("ListWorkspaces failed: %v", err)
	}
	if len(workspaces) != 1 {
		t.Errorf("expected 1 workspace after removal, got %d", len(workspaces))
	}
}

func TestResetVCSCaches(t *testing.T) {
	// This test just ensures ResetVCSCaches doesn't panic
	ResetVCSCaches()

	// After reset, next GetRepoVCS should rebuild
	// (We can't test this fully without being in a repo)
}
