package rewriter

import (
	"crypto/sha256"
	"testing"

	"github.com/steveyegge/xreposync/internal/xrs"
	"github.com/steveyegge/xreposync/internal/xrs/mover"
	"github.com/steveyegge/xreposync/internal/xrs/types"
)

func csFor(seed string) types.CS {
	return sha256.Sum256([]byte(seed))
}

func identityResolver(known map[types.CS]types.CS) ParentResolver {
	return func(p types.CS) (types.CS, error) {
		if t, ok := known[p]; ok {
			return t, nil
		}
		return p, nil
	}
}

func prependMover(t *testing.T, prefix string) *mover.Mover {
	t.Helper()
	m, err := mover.New(types.SmallRepoEntry{
		RepoId:        1,
		DefaultAction: types.DefaultAction{Kind: types.DefaultActionPrependPrefix, Prefix: prefix},
		Direction:     types.DirectionSmallToLarge,
	})
	if err != nil {
		t.Fatalf("mover.New: %v", err)
	}
	return m
}

func TestRewrite_PrependPrefix(t *testing.T) {
	mv := prependMover(t, "smallrepofolder")
	parent := csFor("parent-large")

	b := &types.BonsaiChangeset{
		Parents: []types.CS{csFor("parent-small")},
		Changes: map[string]types.FileChange{
			"file.txt": {Kind: types.ChangeKindChange, ContentId: "c1"},
		},
		Author:  "alice",
		Message: "edit file.txt",
	}

	out, err := Rewrite(b, mv, identityResolver(map[types.CS]types.CS{b.Parents[0]: parent}), Options{})
	if err != nil {
		t.Fatalf("Rewrite: %v", err)
	}
	if out.Kind != Rewritten {
		t.Fatalf("Kind = %v, want Rewritten", out.Kind)
	}
	if _, ok := out.Bonsai.Changes["smallrepofolder/file.txt"]; !ok {
		t.Fatalf("Changes = %+v, want smallrepofolder/file.txt", out.Bonsai.Changes)
	}
	if len(out.Bonsai.Parents) != 1 || out.Bonsai.Parents[0] != parent {
		t.Fatalf("Parents = %v, want [%s]", out.Bonsai.Parents, parent)
	}
}

func TestRewrite_DoNothingDropsPath(t *testing.T) {
	mv, err := mover.New(types.SmallRepoEntry{
		RepoId:        1,
		DefaultAction: types.DefaultAction{Kind: types.DefaultActionDoNothing},
		Direction:     types.DirectionSmallToLarge,
	})
	if err != nil {
		t.Fatalf("mover.New: %v", err)
	}
	parent := csFor("parent-large")

	b := &types.BonsaiChangeset{
		Parents: []types.CS{csFor("parent-small")},
		Changes: map[string]types.FileChange{
			"non_mapped/x": {Kind: types.ChangeKindChange, ContentId: "c1"},
		},
	}

	out, err := Rewrite(b, mv, identityResolver(map[types.CS]types.CS{b.Parents[0]: parent}), Options{})
	if err != nil {
		t.Fatalf("Rewrite: %v", err)
	}
	if out.Kind != NoSyncCandidateOutcome {
		t.Fatalf("Kind = %v, want NoSyncCandidateOutcome", out.Kind)
	}
	if out.NearestAncestor != parent {
		t.Fatalf("NearestAncestor = %s, want %s", out.NearestAncestor, parent)
	}
}

func TestRewrite_PreserveOrdinaryEmptyCommits(t *testing.T) {
	mv, err := mover.New(types.SmallRepoEntry{
		RepoId:        1,
		DefaultAction: types.DefaultAction{Kind: types.DefaultActionDoNothing},
		Direction:     types.DirectionSmallToLarge,
	})
	if err != nil {
		t.Fatalf("mover.New: %v", err)
	}
	parent := csFor("parent-large")

	b := &types.BonsaiChangeset{
		Parents: []types.CS{csFor("parent-small")},
		Changes: map[string]types.FileChange{
			"non_mapped/x": {Kind: types.ChangeKindChange, ContentId: "c1"},
		},
	}

	out, err := Rewrite(b, mv, identityResolver(map[types.CS]types.CS{b.Parents[0]: parent}), Options{PreserveOrdinaryEmptyCommits: true})
	if err != nil {
		t.Fatalf("Rewrite: %v", err)
	}
	if out.Kind != Rewritten {
		t.Fatalf("Kind = %v, want Rewritten", out.Kind)
	}
	if len(out.Bonsai.Changes) != 0 {
		t.Fatalf("Changes = %+v, want empty", out.Bonsai.Changes)
	}
	if len(out.Bonsai.Parents) != 1 || out.Bonsai.Parents[0] != parent {
		t.Fatalf("Parents = %v, want [%s]", out.Bonsai.Parents, parent)
	}
}

func TestRewrite_MergeDegeneracy(t *testing.T) {
	mv := prependMover(t, "smallrepofolder")
	commonParent := csFor("common-large-parent")

	sourceParent1 := csFor("branch-a")
	sourceParent2 := csFor("branch-b")

	b := &types.BonsaiChangeset{
		Parents: []types.CS{sourceParent1, sourceParent2},
	}

	resolver := identityResolver(map[types.CS]types.CS{
		sourceParent1: commonParent,
		sourceParent2: commonParent,
	})

	out, err := Rewrite(b, mv, resolver, Options{})
	if err != nil {
		t.Fatalf("Rewrite: %v", err)
	}
	if out.Kind != NoSyncCandidateOutcome {
		t.Fatalf("Kind = %v, want NoSyncCandidateOutcome", out.Kind)
	}
	if out.NearestAncestor != commonParent {
		t.Fatalf("NearestAncestor = %s, want %s", out.NearestAncestor, commonParent)
	}
}

func TestRewrite_CopyFromRemappedAcrossParents(t *testing.T) {
	mv := prependMover(t, "smallrepofolder")

	parent0Target := csFor("parent0-large")
	parent1Target := csFor("parent1-large")
	sourceParent0 := csFor("parent0-small")
	sourceParent1 := csFor("parent1-small")

	b := &types.BonsaiChangeset{
		Parents: []types.CS{sourceParent0, sourceParent1},
		Changes: map[string]types.FileChange{
			"dest.txt": {
				Kind:      types.ChangeKindChange,
				ContentId: "c1",
				CopyFrom:  &types.CopyInfo{Path: "source.txt", ParentIndex: 1},
			},
		},
	}

	resolver := identityResolver(map[types.CS]types.CS{
		sourceParent0: parent0Target,
		sourceParent1: parent1Target,
	})

	out, err := Rewrite(b, mv, resolver, Options{})
	if err != nil {
		t.Fatalf("Rewrite: %v", err)
	}
	change, ok := out.Bonsai.Changes["smallrepofolder/dest.txt"]
	if !ok {
		t.Fatalf("Changes = %+v, want smallrepofolder/dest.txt", out.Bonsai.Changes)
	}
	if change.CopyFrom == nil {
		t.Fatalf("CopyFrom = nil, want non-nil")
	}
	if change.CopyFrom.Path != "smallrepofolder/source.txt" {
		t.Fatalf("CopyFrom.Path = %q, want smallrepofolder/source.txt", change.CopyFrom.Path)
	}
	if change.CopyFrom.ParentIndex != 1 {
		t.Fatalf("CopyFrom.ParentIndex = %d, want 1", change.CopyFrom.ParentIndex)
	}
}

func TestRewrite_CopyFromDroppedWhenSourceNotMoved(t *testing.T) {
	mv, err := mover.New(types.SmallRepoEntry{
		RepoId:        1,
		DefaultAction: types.DefaultAction{Kind: types.DefaultActionPreserve},
		Direction:     types.DirectionSmallToLarge,
		Overrides: map[string]types.OverrideTarget{
			"excluded": {Removed: true},
		},
	})
	if err != nil {
		t.Fatalf("mover.New: %v", err)
	}
	parent := csFor("parent-large")

	b := &types.BonsaiChangeset{
		Parents: []types.CS{csFor("parent-small")},
		Changes: map[string]types.FileChange{
			"dest.txt": {
				Kind:      types.ChangeKindChange,
				ContentId: "c1",
				CopyFrom:  &types.CopyInfo{Path: "excluded/source.txt", ParentIndex: 0},
			},
		},
	}

	out, err := Rewrite(b, mv, identityResolver(map[types.CS]types.CS{b.Parents[0]: parent}), Options{})
	if err != nil {
		t.Fatalf("Rewrite: %v", err)
	}
	change := out.Bonsai.Changes["dest.txt"]
	if change.CopyFrom != nil {
		t.Fatalf("CopyFrom = %+v, want nil", change.CopyFrom)
	}
	if change.ContentId != "c1" {
		t.Fatalf("ContentId = %q, want c1 (content change kept)", change.ContentId)
	}
}

func TestRewrite_PathConflictWhenTwoPathsCollide(t *testing.T) {
	mv, err := mover.New(types.SmallRepoEntry{
		RepoId:        1,
		DefaultAction: types.DefaultAction{Kind: types.DefaultActionPreserve},
		Direction:     types.DirectionSmallToLarge,
		Overrides: map[string]types.OverrideTarget{
			"a.txt": {Path: "shared.txt"},
			"b.txt": {Path: "shared.txt"},
		},
	})
	if err != nil {
		t.Fatalf("mover.New: %v", err)
	}

	b := &types.BonsaiChangeset{
		Changes: map[string]types.FileChange{
			"a.txt": {Kind: types.ChangeKindChange, ContentId: "c1"},
			"b.txt": {Kind: types.ChangeKindChange, ContentId: "c2"},
		},
	}

	_, err = Rewrite(b, mv, identityResolver(nil), Options{})
	if err == nil {
		t.Fatalf("Rewrite: expected error, got nil")
	}
	if kind, ok := xrs.KindOf(err); !ok || kind != xrs.KindPathConflict {
		t.Fatalf("Rewrite: got kind %v, want PathConflict", kind)
	}
}

func TestRewrite_RecordProvenance(t *testing.T) {
	mv, err := mover.New(types.SmallRepoEntry{
		RepoId:        1,
		DefaultAction: types.DefaultAction{Kind: types.DefaultActionPreserve},
		Direction:     types.DirectionSmallToLarge,
	})
	if err != nil {
		t.Fatalf("mover.New: %v", err)
	}

	b := &types.BonsaiChangeset{
		Changes: map[string]types.FileChange{
			"a.txt": {Kind: types.ChangeKindChange, ContentId: "c1"},
		},
	}

	out, err := Rewrite(b, mv, identityResolver(nil), Options{RecordProvenance: true})
	if err != nil {
		t.Fatalf("Rewrite: %v", err)
	}
	sourceCS := b.Hash()
	if string(out.Bonsai.Extra[ProvenanceExtraKey]) != sourceCS.String() {
		t.Fatalf("Extra[%s] = %q, want %q", ProvenanceExtraKey, out.Bonsai.Extra[ProvenanceExtraKey], sourceCS.String())
	}
}
