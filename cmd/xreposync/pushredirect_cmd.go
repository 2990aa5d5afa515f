package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/steveyegge/xreposync/internal/xrs/config"
	"github.com/steveyegge/xreposync/internal/xrs/mapping"
	"github.com/steveyegge/xreposync/internal/xrs/pushredirect"
	"github.com/steveyegge/xreposync/internal/xrs/rewriter"
	"github.com/steveyegge/xreposync/internal/xrs/store"
	"github.com/steveyegge/xreposync/internal/xrs/types"
)

// landingPushrebaser is a fixture-scale stand-in for the real pushrebase
// primitive (spec.md names the hook engine and wire protocol servers out of
// scope): it simply appends the submitted stack onto the current bookmark
// position on the source-of-truth repo, storing each changeset as given.
type landingPushrebaser struct {
	changesets store.ChangesetStore
	bookmarks  store.BookmarkStore
}

func (p *landingPushrebaser) Pushrebase(ctx context.Context, repo types.RepoId, bookmark store.Bookmark, stack []*types.BonsaiChangeset) (pushredirect.PushrebaseResult, error) {
	onto, _, err := p.bookmarks.Get(ctx, repo, bookmark)
	if err != nil {
		return pushredirect.PushrebaseResult{}, err
	}
	result := pushredirect.PushrebaseResult{RebasedCS: make([]types.CS, 0, len(stack))}
	parent := onto
	for _, bonsai := range stack {
		rebased := *bonsai
		if !parent.IsZero() {
			rebased.Parents = []types.CS{parent}
		}
		cs, err := p.changesets.Store(ctx, repo, &rebased)
		if err != nil {
			return pushredirect.PushrebaseResult{}, err
		}
		result.RebasedCS = append(result.RebasedCS, cs)
		parent = cs
	}
	result.NewBookmarkCS = parent
	return result, nil
}

func newPushredirectCmd() *cobra.Command {
	var (
		configPath     string
		mappingDSN     string
		fixturePath    string
		smallRepo      int32
		largeRepo      int32
		redirectedFrom int32
		bookmarkName   string
		labels         []string
	)
	cmd := &cobra.Command{
		Use:   "pushredirect",
		Short: "Run a fixture-described push through the pushredirection coordinator",
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

			pair := config.RepoPair{Small: types.RepoId(smallRepo), Large: types.RepoId(largeRepo)}
			redirected := types.RepoId(redirectedFrom)
			sourceOfTruth := pair.Small
			if redirected == pair.Small {
				sourceOfTruth = pair.Large
			}

			stack := make([]*types.BonsaiChangeset, 0, len(labels))
			ctx := newCLIContext()
			for _, label := range labels {
				cs, ok := fx.CSByLabel[label]
				if !ok {
					return fmt.Errorf("fixture has no changeset labeled %q", label)
				}
				bonsai, err := fx.Changesets.Fetch(ctx, redirected, cs)
				if err != nil {
					return fmt.Errorf("fetch stack entry %q: %w", label, err)
				}
				stack = append(stack, bonsai)
			}

			pusher := &landingPushrebaser{changesets: fx.Changesets, bookmarks: fx.Bookmarks}
			coord := pushredirect.New(pair, redirected, sourceOfTruth, cfg, mappingStore, fx.Changesets, fx.Bookmarks, pusher, rewriter.Options{})

			outcome, err := coord.Push(ctx, store.Bookmark(bookmarkName), stack)
			if err != nil {
				return err
			}
			for _, m := range outcome.Mapped {
				fmt.Fprintf(cmd.OutOrStdout(), "redirected=%s source_of_truth=%s\n", m.RedirectedCS, m.SourceOfTruthCS)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "final bookmark on redirected-from repo: %s\n", outcome.FinalBookmark)
			return nil
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "path to the mapping config YAML file")
	cmd.Flags().StringVar(&mappingDSN, "mapping-db", "file::memory:?cache=shared", "mapping store DSN")
	cmd.Flags().StringVar(&fixturePath, "fixture", "", "path to a changeset/bookmark fixture JSON file")
	cmd.Flags().Int32Var(&smallRepo, "small-repo", 0, "small repo id")
	cmd.Flags().Int32Var(&largeRepo, "large-repo", 0, "large repo id")
	cmd.Flags().Int32Var(&redirectedFrom, "redirected-from", 0, "repo id the push arrives on (must be small-repo or large-repo)")
	cmd.Flags().StringVar(&bookmarkName, "bookmark", "main", "bookmark the stack lands on")
	cmd.Flags().StringSliceVar(&labels, "changeset", nil, "fixture message labels of the stack, oldest first")
	cmd.MarkFlagRequired("config")
	cmd.MarkFlagRequired("fixture")
	cmd.MarkFlagRequired("changeset")
	return cmd
}
