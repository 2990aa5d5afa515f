package syncer

import (
	"context"
	"crypto/sha256"
	"testing"

	"github.com/steveyegge/xreposync/internal/xrs"
	"github.com/steveyegge/xreposync/internal/xrs/config"
	"github.com/steveyegge/xreposync/internal/xrs/mapping"
	"github.com/steveyegge/xreposync/internal/xrs/rewriter"
	"github.com/steveyegge/xreposync/internal/xrs/store/memstore"
	"github.com/steveyegge/xreposync/internal/xrs/types"
)

const (
	smallRepo types.RepoId = 1
	largeRepo types.RepoId = 2
)

func csFor(seed string) types.CS {
	return sha256.Sum256([]byte(seed))
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

func prependPrefixProvider() *config.Provider {
	v := &types.MappingVersion{
		Name:      "v0",
		LargeRepo: largeRepo,
		SmallRepos: map[types.RepoId]types.SmallRepoEntry{
			smallRepo: {
				RepoId:        smallRepo,
				DefaultAction: types.DefaultAction{Kind: types.DefaultActionPrependPrefix, Prefix: "smallrepofolder"},
				Overrides:     map[string]types.OverrideTarget{"non_mapped": {Removed: true}},
				Direction:     types.DirectionSmallToLarge,
			},
		},
	}
	pair := config.RepoPair{Small: smallRepo, Large: largeRepo}
	return config.NewFromDocument([]*types.MappingVersion{v}, map[config.RepoPair]string{pair: "v0"})
}

func preserveProvider() *config.Provider {
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
	pair := config.RepoPair{Small: smallRepo, Large: largeRepo}
	return config.NewFromDocument([]*types.MappingVersion{v}, map[config.RepoPair]string{pair: "v0"})
}

func TestSync_BasicPreserve(t *testing.T) {
	ctx := context.Background()
	cfg := preserveProvider()
	mstore := openMappingStore(t)
	changesets := memstore.NewChangesets()

	source := &types.BonsaiChangeset{
		Changes: map[string]types.FileChange{"a": {Kind: types.ChangeKindChange, ContentId: "c1"}},
		Author:  "alice",
		Message: "edit a",
	}
	sourceCS, err := changesets.Store(ctx, smallRepo, source)
	if err != nil {
		t.Fatalf("Store: %v", err)
	}

	s := New(config.RepoPair{Small: smallRepo, Large: largeRepo}, cfg, mstore, changesets, ModeRecursive, rewriter.Options{})

	out, err := s.Sync(ctx, smallRepo, sourceCS, largeRepo, nil)
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if out.Kind != Synced {
		t.Fatalf("Kind = %v, want Synced", out.Kind)
	}

	target, err := changesets.Fetch(ctx, largeRepo, out.TargetCS)
	if err != nil {
		t.Fatalf("Fetch target: %v", err)
	}
	if _, ok := target.Changes["a"]; !ok {
		t.Fatalf("target Changes = %+v, want path a", target.Changes)
	}

	// Idempotence: a second Sync call returns AlreadyDoneSynced.
	again, err := s.Sync(ctx, smallRepo, sourceCS, largeRepo, nil)
	if err != nil {
		t.Fatalf("Sync (again): %v", err)
	}
	if again.Kind != AlreadyDoneSynced || again.TargetCS != out.TargetCS {
		t.Fatalf("Sync (again) = %+v, want AlreadyDoneSynced(%s)", again, out.TargetCS)
	}
}

func TestSync_PrependPrefix(t *testing.T) {
	ctx := context.Background()
	cfg := prependPrefixProvider()
	mstore := openMappingStore(t)
	changesets := memstore.NewChangesets()

	source := &types.BonsaiChangeset{
		Changes: map[string]types.FileChange{"file.txt": {Kind: types.ChangeKindChange, ContentId: "c1"}},
	}
	sourceCS, err := changesets.Store(ctx, smallRepo, source)
	if err != nil {
		t.Fatalf("Store: %v", err)
	}

	s := New(config.RepoPair{Small: smallRepo, Large: largeRepo}, cfg, mstore, changesets, ModeRecursive, rewriter.Options{})
	out, err := s.Sync(ctx, smallRepo, sourceCS, largeRepo, nil)
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}

	target, err := changesets.Fetch(ctx, largeRepo, out.TargetCS)
	if err != nil {
		t.Fatalf("Fetch target: %v", err)
	}
	if _, ok := target.Changes["smallrepofolder/file.txt"]; !ok {
		t.Fatalf("target Changes = %+v, want smallrepofolder/file.txt", target.Changes)
	}
}

func TestSync_ParentChainAndNoSyncCandidate(t *testing.T) {
	ctx := context.Background()
	cfg := prependPrefixProvider()
	mstore := openMappingStore(t)
	changesets := memstore.NewChangesets()

	root := &types.BonsaiChangeset{
		Changes: map[string]types.FileChange{"file.txt": {Kind: types.ChangeKindChange, ContentId: "c1"}},
	}
	rootCS, err := changesets.Store(ctx, smallRepo, root)
	if err != nil {
		t.Fatalf("Store root: %v", err)
	}

	emptyChild := &types.BonsaiChangeset{
		Parents: []types.CS{rootCS},
		Changes: map[string]types.FileChange{"non_mapped/x": {Kind: types.ChangeKindChange, ContentId: "c2"}},
	}
	emptyChildCS, err := changesets.Store(ctx, smallRepo, emptyChild)
	if err != nil {
		t.Fatalf("Store emptyChild: %v", err)
	}

	grandchild := &types.BonsaiChangeset{
		Parents: []types.CS{emptyChildCS},
		Changes: map[string]types.FileChange{"file2.txt": {Kind: types.ChangeKindChange, ContentId: "c3"}},
	}
	grandchildCS, err := changesets.Store(ctx, smallRepo, grandchild)
	if err != nil {
		t.Fatalf("Store grandchild: %v", err)
	}

	s := New(config.RepoPair{Small: smallRepo, Large: largeRepo}, cfg, mstore, changesets, ModeRecursive, rewriter.Options{})

	rootOut, err := s.Sync(ctx, smallRepo, rootCS, largeRepo, nil)
	if err != nil {
		t.Fatalf("Sync root: %v", err)
	}
	if rootOut.Kind != Synced {
		t.Fatalf("root Kind = %v, want Synced", rootOut.Kind)
	}

	// root is already synced, so emptyChild's parent resolves from the
	// mapping store; its only change (non_mapped/x) is removed by the mover,
	// so it collapses to NoSyncCandidate.
	emptyOut, err := s.Sync(ctx, smallRepo, emptyChildCS, largeRepo, nil)
	if err != nil {
		t.Fatalf("Sync emptyChild: %v", err)
	}
	if emptyOut.Kind != NoSyncCandidate || emptyOut.NearestAncestor != rootOut.TargetCS {
		t.Fatalf("emptyChild = %+v, want NoSyncCandidate(%s)", emptyOut, rootOut.TargetCS)
	}

	// grandchild's parent resolution must follow through emptyChild's
	// no-sync-candidate row to root's target rewrite.
	grandOut, err := s.Sync(ctx, smallRepo, grandchildCS, largeRepo, nil)
	if err != nil {
		t.Fatalf("Sync grandchild: %v", err)
	}
	if grandOut.Kind != Synced {
		t.Fatalf("grandchild Kind = %v, want Synced", grandOut.Kind)
	}
	target, err := changesets.Fetch(ctx, largeRepo, grandOut.TargetCS)
	if err != nil {
		t.Fatalf("Fetch grandchild target: %v", err)
	}
	if len(target.Parents) != 1 || target.Parents[0] != rootOut.TargetCS {
		t.Fatalf("grandchild target Parents = %v, want [%s]", target.Parents, rootOut.TargetCS)
	}
}

func TestSync_ModeBulkFailsOnMissingParent(t *testing.T) {
	ctx := context.Background()
	cfg := preserveProvider()
	mstore := openMappingStore(t)
	changesets := memstore.NewChangesets()

	parent := &types.BonsaiChangeset{Changes: map[string]types.FileChange{"a": {Kind: types.ChangeKindChange, ContentId: "c1"}}}
	parentCS, err := changesets.Store(ctx, smallRepo, parent)
	if err != nil {
		t.Fatalf("Store parent: %v", err)
	}
	child := &types.BonsaiChangeset{
		Parents: []types.CS{parentCS},
		Changes: map[string]types.FileChange{"b": {Kind: types.ChangeKindChange, ContentId: "c2"}},
	}
	childCS, err := changesets.Store(ctx, smallRepo, child)
	if err != nil {
		t.Fatalf("Store child: %v", err)
	}

	s := New(config.RepoPair{Small: smallRepo, Large: largeRepo}, cfg, mstore, changesets, ModeBulk, rewriter.Options{})
	_, err = s.Sync(ctx, smallRepo, childCS, largeRepo, nil)
	if err == nil {
		t.Fatalf("Sync: expected error, got nil")
	}
	if kind, ok := xrs.KindOf(err); !ok || kind != xrs.KindParentsNotSynced {
		t.Fatalf("Sync: got kind %v, want ParentsNotSynced", kind)
	}
}

func TestSync_ExplicitVersionOverride(t *testing.T) {
	ctx := context.Background()
	pair := config.RepoPair{Small: smallRepo, Large: largeRepo}
	v0 := &types.MappingVersion{
		Name:      "v0",
		LargeRepo: largeRepo,
		SmallRepos: map[types.RepoId]types.SmallRepoEntry{
			smallRepo: {RepoId: smallRepo, DefaultAction: types.DefaultAction{Kind: types.DefaultActionPrependPrefix, Prefix: "old"}, Direction: types.DirectionSmallToLarge},
		},
	}
	v1 := &types.MappingVersion{
		Name:      "v1",
		LargeRepo: largeRepo,
		SmallRepos: map[types.RepoId]types.SmallRepoEntry{
			smallRepo: {RepoId: smallRepo, DefaultAction: types.DefaultAction{Kind: types.DefaultActionPrependPrefix, Prefix: "new"}, Direction: types.DirectionSmallToLarge},
		},
	}
	cfg := config.NewFromDocument([]*types.MappingVersion{v0, v1}, map[config.RepoPair]string{pair: "v0"})

	mstore := openMappingStore(t)
	changesets := memstore.NewChangesets()
	source := &types.BonsaiChangeset{Changes: map[string]types.FileChange{"f": {Kind: types.ChangeKindChange, ContentId: "c1"}}}
	sourceCS, err := changesets.Store(ctx, smallRepo, source)
	if err != nil {
		t.Fatalf("Store: %v", err)
	}

	s := New(pair, cfg, mstore, changesets, ModeRecursive, rewriter.Options{})
	override := "v1"
	out, err := s.Sync(ctx, smallRepo, sourceCS, largeRepo, &override)
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if out.Version != "v1" {
		t.Fatalf("Version = %q, want v1", out.Version)
	}
	target, err := changesets.Fetch(ctx, largeRepo, out.TargetCS)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if _, ok := target.Changes["new/f"]; !ok {
		t.Fatalf("target Changes = %+v, want new/f", target.Changes)
	}
}
