package verifier

import (
	"context"
	"crypto/sha256"
	"testing"

	"github.com/steveyegge/xreposync/internal/xrs/mover"
	"github.com/steveyegge/xreposync/internal/xrs/store"
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

func prependMover(t *testing.T) *mover.Mover {
	t.Helper()
	m, err := mover.New(types.SmallRepoEntry{
		RepoId:        smallRepo,
		DefaultAction: types.DefaultAction{Kind: types.DefaultActionPrependPrefix, Prefix: "smallrepofolder"},
		Direction:     types.DirectionSmallToLarge,
	})
	if err != nil {
		t.Fatalf("mover.New: %v", err)
	}
	return m
}

func TestVerify_AllIsWell(t *testing.T) {
	manifests := memstore.NewManifests()
	sourceCS, targetCS := csFor("s"), csFor("t")
	manifests.Put(smallRepo, sourceCS, map[string]store.ManifestEntry{
		"a.txt": {ContentId: "c1", FileType: types.FileTypeRegular},
	})
	manifests.Put(largeRepo, targetCS, map[string]store.ManifestEntry{
		"smallrepofolder/a.txt": {ContentId: "c1", FileType: types.FileTypeRegular},
	})

	report, err := Verify(context.Background(), manifests, prependMover(t), smallRepo, sourceCS, largeRepo, targetCS)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if !report.OK {
		t.Fatalf("report = %+v, want OK", report)
	}
}

func TestVerify_MissingOnTarget(t *testing.T) {
	manifests := memstore.NewManifests()
	sourceCS, targetCS := csFor("s"), csFor("t")
	manifests.Put(smallRepo, sourceCS, map[string]store.ManifestEntry{
		"a.txt": {ContentId: "c1", FileType: types.FileTypeRegular},
	})
	manifests.Put(largeRepo, targetCS, map[string]store.ManifestEntry{})

	report, err := Verify(context.Background(), manifests, prependMover(t), smallRepo, sourceCS, largeRepo, targetCS)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if report.OK || report.Divergence.Kind != MissingOnTarget {
		t.Fatalf("report = %+v, want MissingOnTarget", report)
	}
}

func TestVerify_ContentMismatch(t *testing.T) {
	manifests := memstore.NewManifests()
	sourceCS, targetCS := csFor("s"), csFor("t")
	manifests.Put(smallRepo, sourceCS, map[string]store.ManifestEntry{
		"a.txt": {ContentId: "c1", FileType: types.FileTypeRegular},
	})
	manifests.Put(largeRepo, targetCS, map[string]store.ManifestEntry{
		"smallrepofolder/a.txt": {ContentId: "c2", FileType: types.FileTypeRegular},
	})

	report, err := Verify(context.Background(), manifests, prependMover(t), smallRepo, sourceCS, largeRepo, targetCS)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if report.OK || report.Divergence.Kind != ContentMismatch {
		t.Fatalf("report = %+v, want ContentMismatch", report)
	}
}

func TestVerify_ExtraOnTarget(t *testing.T) {
	manifests := memstore.NewManifests()
	sourceCS, targetCS := csFor("s"), csFor("t")
	manifests.Put(smallRepo, sourceCS, map[string]store.ManifestEntry{
		"a.txt": {ContentId: "c1", FileType: types.FileTypeRegular},
	})
	manifests.Put(largeRepo, targetCS, map[string]store.ManifestEntry{
		"smallrepofolder/a.txt": {ContentId: "c1", FileType: types.FileTypeRegular},
		"smallrepofolder/b.txt": {ContentId: "c2", FileType: types.FileTypeRegular},
	})

	report, err := Verify(context.Background(), manifests, prependMover(t), smallRepo, sourceCS, largeRepo, targetCS)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if report.OK || report.Divergence.Kind != ExtraOnTarget {
		t.Fatalf("report = %+v, want ExtraOnTarget", report)
	}
}

func TestVerify_DirectoryConflict(t *testing.T) {
	manifests := memstore.NewManifests()
	sourceCS, targetCS := csFor("s"), csFor("t")
	manifests.Put(smallRepo, sourceCS, map[string]store.ManifestEntry{
		"a": {ContentId: "c1", FileType: types.FileTypeRegular},
	})
	manifests.Put(largeRepo, targetCS, map[string]store.ManifestEntry{
		"smallrepofolder/a/nested.txt": {ContentId: "c1", FileType: types.FileTypeRegular},
	})

	report, err := Verify(context.Background(), manifests, prependMover(t), smallRepo, sourceCS, largeRepo, targetCS)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if report.OK || report.Divergence.Kind != DirectoryConflict {
		t.Fatalf("report = %+v, want DirectoryConflict", report)
	}
}
