package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/steveyegge/xreposync/internal/xrs/config"
	"github.com/steveyegge/xreposync/internal/xrs/mapping"
	"github.com/steveyegge/xreposync/internal/xrs/rewriter"
	"github.com/steveyegge/xreposync/internal/xrs/syncer"
	"github.com/steveyegge/xreposync/internal/xrs/types"
)

func newSyncCommitCmd() *cobra.Command {
	var (
		configPath  string
		mappingDSN  string
		fixturePath string
		smallRepo   int32
		largeRepo   int32
		label       string
	)
	cmd := &cobra.Command{
		Use:   "sync-commit",
		Short: "Sync a single labeled changeset from a fixture into the target repo",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.NewFromFile(configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			mappingStore, err := mapping.Open(mappingDSN)
			if err != nil {
				return fmt.Errorf("open mapping store: %w", err)
			}
			defer mappingStore.Close()

			fx, err := loadFixture(fixturePath)
			if err != nil {
				return err
			}
			cs, ok := fx.CSByLabel[label]
			if !ok {
				return fmt.Errorf("fixture has no changeset labeled %q", label)
			}

			pair := config.RepoPair{Small: types.RepoId(smallRepo), Large: types.RepoId(largeRepo)}
			s := syncer.New(pair, cfg, mappingStore, fx.Changesets, syncer.ModeRecursive, rewriter.Options{})

			result, err := s.Sync(newCLIContext(), types.RepoId(smallRepo), cs, types.RepoId(largeRepo), nil)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "outcome=%d target_cs=%s version=%s\n", result.Kind, result.TargetCS, result.Version)
			return nil
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "path to the mapping config YAML file")
	cmd.Flags().StringVar(&mappingDSN, "mapping-db", "file::memory:?cache=shared", "mapping store DSN")
	cmd.Flags().StringVar(&fixturePath, "fixture", "", "path to a changeset/bookmark fixture JSON file")
	cmd.Flags().Int32Var(&smallRepo, "small-repo", 0, "small repo id")
	cmd.Flags().Int32Var(&largeRepo, "large-repo", 0, "large repo id")
	cmd.Flags().StringVar(&label, "changeset", "", "fixture message label of the changeset to sync")
	cmd.MarkFlagRequired("config")
	cmd.MarkFlagRequired("fixture")
	cmd.MarkFlagRequired("changeset")
	return cmd
}
