package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/steveyegge/xreposync/internal/vcs"
)

// newDoctorCmd implements the "New: Doctor check" supplemented feature: a
// preflight sanity check on a repo clone before a tailer attaches to it.
// This is diagnostic tooling only, not a CORE correctness component.
func newDoctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor <path>",
		Short: "Check a repo clone's VCS state before attaching a tailer to it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDoctor(cmd, args[0])
		},
	}
}

func runDoctor(cmd *cobra.Command, path string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = newCLIContext()
	}

	rv, err := vcs.GetRepoVCSForPath(path)
	if err != nil {
		fmt.Fprintf(cmd.OutOrStdout(), "FAIL  detect VCS: %v\n", err)
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "OK    VCS type: %s (colocated: %v)\n", rv.Type(), rv.IsColocated)
	fmt.Fprintf(cmd.OutOrStdout(), "OK    repo root: %s\n", rv.RepoRoot)

	if configPath := rv.ConfigPath(); configPath != "" {
		fmt.Fprintf(cmd.OutOrStdout(), "OK    mapping config: %s\n", configPath)
	} else {
		fmt.Fprintf(cmd.OutOrStdout(), "WARN  no .xreposync directory found above %s\n", path)
	}

	hasRemote, err := rv.HasRemote(ctx)
	if err != nil {
		fmt.Fprintf(cmd.OutOrStdout(), "WARN  check remote: %v\n", err)
	} else if hasRemote {
		fmt.Fprintf(cmd.OutOrStdout(), "OK    remote configured\n")
	} else {
		fmt.Fprintf(cmd.OutOrStdout(), "WARN  no remote configured; a tailer here can never push upstream\n")
	}

	hasConflicts, err := rv.HasMergeConflicts(ctx)
	if err != nil {
		fmt.Fprintf(cmd.OutOrStdout(), "WARN  check merge conflicts: %v\n", err)
	} else if hasConflicts {
		fmt.Fprintf(cmd.OutOrStdout(), "FAIL  working copy has unresolved merge conflicts\n")
	} else {
		fmt.Fprintf(cmd.OutOrStdout(), "OK    no unresolved merge conflicts\n")
	}

	if rv.IsJujutsu() {
		if _, err := rv.ListWorkspaces(ctx); err != nil {
			fmt.Fprintf(cmd.OutOrStdout(), "WARN  list workspaces: %v\n", err)
		} else {
			fmt.Fprintf(cmd.OutOrStdout(), "OK    workspace metadata readable\n")
		}
	}

	return nil
}
