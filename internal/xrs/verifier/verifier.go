// Package verifier implements C8, the working-copy verifier (spec §4.8): it
// compares a source changeset's full manifest against a target changeset's,
// under a Mover, and reports the first divergence found.
package verifier

import (
	"context"
	"sort"
	"strings"

	"github.com/steveyegge/xreposync/internal/xrs"
	"github.com/steveyegge/xreposync/internal/xrs/mover"
	"github.com/steveyegge/xreposync/internal/xrs/store"
	"github.com/steveyegge/xreposync/internal/xrs/types"
)

// DivergenceKind discriminates why a working-copy comparison failed.
type DivergenceKind int

const (
	// NoDivergence means the two working copies agree under the mover.
	NoDivergence DivergenceKind = iota
	MissingOnTarget
	ExtraOnTarget
	DirectoryConflict
	ContentMismatch
)

// Divergence describes one disagreement between source and target.
type Divergence struct {
	Kind       DivergenceKind
	SourcePath string
	TargetPath string
}

// Report is the result of Verify.
type Report struct {
	OK         bool
	Divergence Divergence // meaningful iff !OK
}

// Verify implements spec §4.8's algorithm. targetManifest is expected to
// already be scoped to the region this Mover's rewrites land in (e.g. the
// small repo's prefix subtree within the large repo's manifest); the CORE
// has no generic reverse-path enumeration of "everything a mover could have
// produced", so a caller comparing against a full mega-repo manifest must
// pre-filter it (typically by the mover's own prefix).
func Verify(ctx context.Context, manifests store.ManifestProvider, mv *mover.Mover, sourceRepo types.RepoId, sourceCS types.CS, targetRepo types.RepoId, targetCS types.CS) (Report, error) {
	sourceManifest, err := manifests.Manifest(ctx, sourceRepo, sourceCS)
	if err != nil {
		return Report{}, xrs.Wrap(xrs.KindStoreError, err, "fetch source manifest for %s", sourceCS)
	}
	targetManifest, err := manifests.Manifest(ctx, targetRepo, targetCS)
	if err != nil {
		return Report{}, xrs.Wrap(xrs.KindStoreError, err, "fetch target manifest for %s", targetCS)
	}

	return compare(mv, sourceManifest, targetManifest), nil
}

func compare(mv *mover.Mover, sourceManifest, targetManifest map[string]store.ManifestEntry) Report {
	sourcePaths := make([]string, 0, len(sourceManifest))
	for p := range sourceManifest {
		sourcePaths = append(sourcePaths, p)
	}
	sort.Strings(sourcePaths)

	matched := make(map[string]bool, len(sourceManifest))

	for _, p := range sourcePaths {
		res := mv.MovePath(p)
		if res.Kind == mover.NotMoved {
			continue
		}

		if isDirectoryPrefix(targetManifest, res.Target) {
			return Report{OK: false, Divergence: Divergence{Kind: DirectoryConflict, SourcePath: p, TargetPath: res.Target}}
		}

		tEntry, ok := targetManifest[res.Target]
		if !ok {
			return Report{OK: false, Divergence: Divergence{Kind: MissingOnTarget, SourcePath: p, TargetPath: res.Target}}
		}

		sEntry := sourceManifest[p]
		if sEntry.ContentId != tEntry.ContentId || sEntry.FileType != tEntry.FileType {
			return Report{OK: false, Divergence: Divergence{Kind: ContentMismatch, SourcePath: p, TargetPath: res.Target}}
		}

		matched[res.Target] = true
	}

	targetPaths := make([]string, 0, len(targetManifest))
	for p := range targetManifest {
		targetPaths = append(targetPaths, p)
	}
	sort.Strings(targetPaths)

	for _, p := range targetPaths {
		if !matched[p] {
			return Report{OK: false, Divergence: Divergence{Kind: ExtraOnTarget, TargetPath: p}}
		}
	}

	return Report{OK: true}
}

// isDirectoryPrefix reports whether path is used as a directory prefix by
// some other entry in manifest (a leaf-file/directory shape conflict).
func isDirectoryPrefix(manifest map[string]store.ManifestEntry, path string) bool {
	prefix := path + "/"
	for k := range manifest {
		if k != path && strings.HasPrefix(k, prefix) {
			return true
		}
	}
	return false
}
