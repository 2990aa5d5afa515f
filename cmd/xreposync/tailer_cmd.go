package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/steveyegge/xreposync/internal/xrs/config"
	"github.com/steveyegge/xreposync/internal/xrs/mapping"
	"github.com/steveyegge/xreposync/internal/xrs/rewriter"
	"github.com/steveyegge/xreposync/internal/xrs/retry"
	"github.com/steveyegge/xreposync/internal/xrs/syncer"
	"github.com/steveyegge/xreposync/internal/xrs/tailer"
	"github.com/steveyegge/xreposync/internal/xrs/types"
	"github.com/steveyegge/xreposync/internal/wongdb"
)

type tailerFlags struct {
	configPath    string
	mappingDSN    string
	fixturePath   string
	journalDir    string
	smallRepo     int32
	largeRepo     int32
	counterName   string
	bookmarkPrefix string
	forever       bool
	batchLimit    int
}

func addTailerFlags(cmd *cobra.Command, f *tailerFlags, defaultCounter string) {
	cmd.Flags().StringVar(&f.configPath, "config", "", "path to the mapping config YAML file")
	cmd.Flags().StringVar(&f.mappingDSN, "mapping-db", "file::memory:?cache=shared", "mapping store DSN")
	cmd.Flags().StringVar(&f.fixturePath, "fixture", "", "path to a changeset/bookmark fixture JSON file")
	cmd.Flags().StringVar(&f.journalDir, "journal-dir", "", "directory for the counter journal (defaults to an ephemeral temp dir)")
	cmd.Flags().Int32Var(&f.smallRepo, "small-repo", 0, "small repo id")
	cmd.Flags().Int32Var(&f.largeRepo, "large-repo", 0, "large repo id")
	cmd.Flags().StringVar(&f.counterName, "counter", defaultCounter, "mutable counter name this tailer owns")
	cmd.Flags().StringVar(&f.bookmarkPrefix, "bookmark-prefix", "small/", "bookmark prefix added/stripped when mirroring")
	cmd.Flags().BoolVar(&f.forever, "forever", false, "poll forever instead of draining once and exiting")
	cmd.Flags().IntVar(&f.batchLimit, "batch-limit", 100, "max log entries fetched per poll")
	cmd.MarkFlagRequired("config")
	cmd.MarkFlagRequired("fixture")
}

func runTailer(cmd *cobra.Command, f *tailerFlags, reverse bool) error {
	cfg, err := config.NewFromFile(f.configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	mappingStore, err := mapping.Open(f.mappingDSN)
	if err != nil {
		return fmt.Errorf("open mapping store: %w", err)
	}
	defer mappingStore.Close()

	fx, err := loadFixture(f.fixturePath)
	if err != nil {
		return err
	}

	journalDir := f.journalDir
	if journalDir == "" {
		journalDir, err = os.MkdirTemp("", "xreposync-journal-")
		if err != nil {
			return fmt.Errorf("create ephemeral journal dir: %w", err)
		}
	}
	journal, err := wongdb.Open(journalDir)
	if err != nil {
		return fmt.Errorf("open counter journal: %w", err)
	}

	sourceRepo, targetRepo := types.RepoId(f.smallRepo), types.RepoId(f.largeRepo)
	if reverse {
		sourceRepo, targetRepo = targetRepo, sourceRepo
	}

	pair := config.RepoPair{Small: types.RepoId(f.smallRepo), Large: types.RepoId(f.largeRepo)}
	s := syncer.New(pair, cfg, mappingStore, fx.Changesets, syncer.ModeRecursive, rewriter.Options{})

	mode := tailer.Catchup
	if f.forever {
		mode = tailer.Forever
	}
	t := tailer.New(sourceRepo, targetRepo, fx.Bookmarks, journal, s, tailer.Options{
		Mode:                 mode,
		CounterName:          f.counterName,
		BatchLimit:           f.batchLimit,
		EntryTimeout:         30 * time.Second,
		PollPolicy:           retry.PollPolicy,
		WritePolicy:          retry.DefaultPolicy,
		TargetBookmarkPrefix: f.bookmarkPrefix,
		Reverse:              reverse,
	})

	ctx := cmd.Context()
	if ctx == nil {
		ctx = newCLIContext()
	}
	if err := t.Run(ctx); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "tailer drained")
	return nil
}

func newRunForwardCmd() *cobra.Command {
	f := &tailerFlags{}
	cmd := &cobra.Command{
		Use:   "run-forward",
		Short: "Drive the small-to-large forward tailer over a fixture's bookmark log",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTailer(cmd, f, false)
		},
	}
	addTailerFlags(cmd, f, "xreposync_from_small")
	return cmd
}

func newRunBacksyncCmd() *cobra.Command {
	f := &tailerFlags{}
	cmd := &cobra.Command{
		Use:   "run-backsync",
		Short: "Drive the large-to-small back tailer over a fixture's bookmark log",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTailer(cmd, f, true)
		},
	}
	addTailerFlags(cmd, f, "backsync_from_large")
	return cmd
}
