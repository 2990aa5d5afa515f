package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/steveyegge/xreposync/internal/xrs/config"
	"github.com/steveyegge/xreposync/internal/xrs/mover"
	"github.com/steveyegge/xreposync/internal/xrs/types"
	"github.com/steveyegge/xreposync/internal/xrs/verifier"
)

func newVerifyCmd() *cobra.Command {
	var (
		configPath  string
		fixturePath string
		smallRepo   int32
		largeRepo   int32
		sourceLabel string
		targetLabel string
	)
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Diff a small-repo and large-repo manifest from a fixture under the configured mover",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.NewFromFile(configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			fx, err := loadFixture(fixturePath)
			if err != nil {
				return err
			}
			sourceCS, ok := fx.CSByLabel[sourceLabel]
			if !ok {
				return fmt.Errorf("fixture has no changeset labeled %q", sourceLabel)
			}
			targetCS, ok := fx.CSByLabel[targetLabel]
			if !ok {
				return fmt.Errorf("fixture has no changeset labeled %q", targetLabel)
			}

			pair := config.RepoPair{Small: types.RepoId(smallRepo), Large: types.RepoId(largeRepo)}
			versionName, err := cfg.CurrentVersion(pair)
			if err != nil {
				return err
			}
			version, err := cfg.GetConfig(versionName)
			if err != nil {
				return err
			}
			entry, ok := version.SmallRepos[types.RepoId(smallRepo)]
			if !ok {
				return fmt.Errorf("version %s has no entry for small repo %d", versionName, smallRepo)
			}
			mv, err := mover.New(entry)
			if err != nil {
				return fmt.Errorf("build mover: %w", err)
			}

			report, err := verifier.Verify(newCLIContext(), fx.Manifests, mv, types.RepoId(smallRepo), sourceCS, types.RepoId(largeRepo), targetCS)
			if err != nil {
				return err
			}
			if report.OK {
				fmt.Fprintln(cmd.OutOrStdout(), "OK: working copies match under the mover")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "MISMATCH: %+v\n", report.Divergence)
			return fmt.Errorf("verification failed: %v", report.Divergence.Kind)
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "path to the mapping config YAML file")
	cmd.Flags().StringVar(&fixturePath, "fixture", "", "path to a changeset/manifest fixture JSON file")
	cmd.Flags().Int32Var(&smallRepo, "small-repo", 0, "small repo id")
	cmd.Flags().Int32Var(&largeRepo, "large-repo", 0, "large repo id")
	cmd.Flags().StringVar(&sourceLabel, "source-changeset", "", "fixture label of the small-repo changeset")
	cmd.Flags().StringVar(&targetLabel, "target-changeset", "", "fixture label of the large-repo changeset")
	cmd.MarkFlagRequired("config")
	cmd.MarkFlagRequired("fixture")
	cmd.MarkFlagRequired("source-changeset")
	cmd.MarkFlagRequired("target-changeset")
	return cmd
}
