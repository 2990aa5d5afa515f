package tailer

import (
	"context"
	"testing"
	"time"

	"github.com/steveyegge/xreposync/internal/xrs/config"
	"github.com/steveyegge/xreposync/internal/xrs/mapping"
	"github.com/steveyegge/xreposync/internal/xrs/retry"
	"github.com/steveyegge/xreposync/internal/xrs/rewriter"
	"github.com/steveyegge/xreposync/internal/xrs/store"
	"github.com/steveyegge/xreposync/internal/xrs/store/memstore"
	"github.com/steveyegge/xreposync/internal/xrs/syncer"
	"github.com/steveyegge/xreposync/internal/xrs/types"
)

const (
	smallRepo types.RepoId = 1
	largeRepo types.RepoId = 2
)

func testProvider() *config.Provider {
	pair := config.RepoPair{Small: smallRepo, Large: largeRepo}
	v := &types.MappingVersion{
		Name:      "v0",
		LargeRepo: largeRepo,
		SmallRepos: map[types.RepoId]types.SmallRepoEntry{
			smallRepo: {
				RepoId:        smallRepo,
				DefaultAction: types.DefaultAction{Kind: types.DefaultActionPreserve},
				Direction:     types.DirectionSmallToLarge,
			},
		},
	}
	return config.NewFromDocument([]*types.MappingVersion{v}, map[config.RepoPair]string{pair: "v0"})
}

func openMappingStore(t *testing.T) *mapping.Store {
	t.Helper()
	s, err := mapping.Open("file:" + t.Name() + "?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("mapping.Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func fastPolicy() retry.Policy {
	return retry.Policy{InitialInterval: time.Millisecond, MaxInterval: 5 * time.Millisecond, MaxElapsed: 200 * time.Millisecond}
}

func TestTailer_CatchupDrainsAndAdvancesCounter(t *testing.T) {
	ctx := context.Background()
	cfg := testProvider()
	mstore := openMappingStore(t)
	changesets := memstore.NewChangesets()
	bookmarks := memstore.NewBookmarks()
	counters := memstore.NewCounters()

	commit := &types.BonsaiChangeset{Changes: map[string]types.FileChange{"a": {Kind: types.ChangeKindChange, ContentId: "c1"}}}
	commitCS, err := changesets.Store(ctx, smallRepo, commit)
	if err != nil {
		t.Fatalf("Store: %v", err)
	}

	if _, err := bookmarks.Set(ctx, smallRepo, "main", nil, commitCS, store.ReasonPush); err != nil {
		t.Fatalf("bookmarks.Set: %v", err)
	}

	s := syncer.New(config.RepoPair{Small: smallRepo, Large: largeRepo}, cfg, mstore, changesets, syncer.ModeRecursive, rewriter.Options{})
	tl := New(smallRepo, largeRepo, bookmarks, counters, s, Options{
		Mode:        Catchup,
		CounterName: "xreposync_from_small",
		BatchLimit:  10,
		PollPolicy:  fastPolicy(),
		WritePolicy: fastPolicy(),
	})

	if err := tl.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}

	n, ok, err := counters.Get(ctx, smallRepo, "xreposync_from_small")
	if err != nil {
		t.Fatalf("counters.Get: %v", err)
	}
	if !ok || n != 1 {
		t.Fatalf("counter = (%d, %v), want (1, true)", n, ok)
	}

	targetCS, ok, err := bookmarks.Get(ctx, largeRepo, "main")
	if err != nil {
		t.Fatalf("bookmarks.Get: %v", err)
	}
	if !ok {
		t.Fatalf("target bookmark main not set")
	}
	target, err := changesets.Fetch(ctx, largeRepo, targetCS)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if _, ok := target.Changes["a"]; !ok {
		t.Fatalf("target Changes = %+v, want path a", target.Changes)
	}
}

func TestTailer_CatchupWithNoEntriesReturnsImmediately(t *testing.T) {
	ctx := context.Background()
	cfg := testProvider()
	mstore := openMappingStore(t)
	changesets := memstore.NewChangesets()
	bookmarks := memstore.NewBookmarks()
	counters := memstore.NewCounters()

	s := syncer.New(config.RepoPair{Small: smallRepo, Large: largeRepo}, cfg, mstore, changesets, syncer.ModeRecursive, rewriter.Options{})
	tl := New(smallRepo, largeRepo, bookmarks, counters, s, Options{
		Mode:        Catchup,
		CounterName: "xreposync_from_small",
		PollPolicy:  fastPolicy(),
		WritePolicy: fastPolicy(),
	})

	done := make(chan error, 1)
	go func() { done <- tl.Run(ctx) }()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("Run did not return promptly for an empty log in Catchup mode")
	}
}

func TestTailer_ForeverStopsOnCancel(t *testing.T) {
	cfg := testProvider()
	mstore := openMappingStore(t)
	changesets := memstore.NewChangesets()
	bookmarks := memstore.NewBookmarks()
	counters := memstore.NewCounters()

	s := syncer.New(config.RepoPair{Small: smallRepo, Large: largeRepo}, cfg, mstore, changesets, syncer.ModeRecursive, rewriter.Options{})
	tl := New(smallRepo, largeRepo, bookmarks, counters, s, Options{
		Mode:        Forever,
		CounterName: "xreposync_from_small",
		PollPolicy:  fastPolicy(),
		WritePolicy: fastPolicy(),
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- tl.Run(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err == nil {
			t.Fatalf("Run: expected cancellation error, got nil")
		}
	case <-time.After(time.Second):
		t.Fatalf("Run did not stop after cancellation")
	}
}

func TestTailer_BookmarkDeletionMirrored(t *testing.T) {
	ctx := context.Background()
	cfg := testProvider()
	mstore := openMappingStore(t)
	changesets := memstore.NewChangesets()
	bookmarks := memstore.NewBookmarks()
	counters := memstore.NewCounters()

	commit := &types.BonsaiChangeset{Changes: map[string]types.FileChange{"a": {Kind: types.ChangeKindChange, ContentId: "c1"}}}
	commitCS, err := changesets.Store(ctx, smallRepo, commit)
	if err != nil {
		t.Fatalf("Store: %v", err)
	}
	if _, err := bookmarks.Set(ctx, smallRepo, "feature", nil, commitCS, store.ReasonPush); err != nil {
		t.Fatalf("bookmarks.Set: %v", err)
	}

	s := syncer.New(config.RepoPair{Small: smallRepo, Large: largeRepo}, cfg, mstore, changesets, syncer.ModeRecursive, rewriter.Options{})
	tl := New(smallRepo, largeRepo, bookmarks, counters, s, Options{
		Mode:        Catchup,
		CounterName: "xreposync_from_small",
		PollPolicy:  fastPolicy(),
		WritePolicy: fastPolicy(),
	})
	if err := tl.Run(ctx); err != nil {
		t.Fatalf("Run (create): %v", err)
	}

	if _, err := bookmarks.Delete(ctx, smallRepo, "feature", nil, store.ReasonManual); err != nil {
		t.Fatalf("bookmarks.Delete: %v", err)
	}
	if err := tl.Run(ctx); err != nil {
		t.Fatalf("Run (delete): %v", err)
	}

	if _, ok, err := bookmarks.Get(ctx, largeRepo, "feature"); err != nil || ok {
		t.Fatalf("target bookmark feature = (ok=%v, err=%v), want deleted", ok, err)
	}
}
