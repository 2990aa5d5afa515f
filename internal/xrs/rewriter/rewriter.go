// Package rewriter implements C4, the commit rewriting engine (spec §4.4):
// it turns a source-repo BonsaiChangeset into a target-repo one under a
// Mover, resolving parents through a caller-supplied ParentResolver (backed
// by C1 in production) and collapsing changesets that rewrite to nothing
// into NoSyncCandidate outcomes.
package rewriter

import (
	"github.com/steveyegge/xreposync/internal/xrs"
	"github.com/steveyegge/xreposync/internal/xrs/mover"
	"github.com/steveyegge/xreposync/internal/xrs/types"
)

// ProvenanceExtraKey is the BonsaiChangeset.Extra key used to record the
// source changeset id when Options.RecordProvenance is set.
const ProvenanceExtraKey = "xrs.sync.source_cs"

// OutcomeKind discriminates a Rewrite result.
type OutcomeKind int

const (
	// Rewritten means the changeset produced real content in the target repo.
	Rewritten OutcomeKind = iota
	// NoSyncCandidateOutcome means the changeset rewrote to nothing; the
	// caller should record a no-sync-candidate row pointing at NearestAncestor
	// (spec invariant I5).
	NoSyncCandidateOutcome
)

// Outcome is the result of Rewrite.
type Outcome struct {
	Kind            OutcomeKind
	Bonsai          *types.BonsaiChangeset // meaningful iff Kind == Rewritten
	NearestAncestor types.CS               // meaningful iff Kind == NoSyncCandidateOutcome
}

// ParentResolver resolves a source-repo parent CS to its already-synced
// target-repo CS. By the time C4 is invoked, C5 guarantees every parent has
// a rewrite (NoSyncCandidate parents are resolved to their nearest
// rewriting ancestor beforehand, per spec §4.4 step 1 and invariant I5), so
// this never needs to represent "no rewrite exists".
type ParentResolver func(sourceParent types.CS) (types.CS, error)

// Options configures policy decisions the rewriter must make that the
// MappingVersion itself doesn't determine.
type Options struct {
	// PreserveOrdinaryEmptyCommits keeps a changeset whose rewritten
	// file-change set is empty as an explicit empty commit in the target
	// repo, rather than collapsing it to a NoSyncCandidate working-copy
	// equivalence row. Spec §9 open question; default false (drop).
	PreserveOrdinaryEmptyCommits bool
	// RecordProvenance injects ProvenanceExtraKey into the rewritten
	// bonsai's Extra, recording the source changeset id (spec §4.4 step 4,
	// "an optional policy may inject extras recording the source CS").
	RecordProvenance bool
}

// Rewrite implements spec §4.4's algorithm.
func Rewrite(b *types.BonsaiChangeset, mv *mover.Mover, resolveParent ParentResolver, opts Options) (Outcome, error) {
	targetParents, sourceIdxToTargetIdx, err := resolveParents(b.Parents, resolveParent)
	if err != nil {
		return Outcome{}, err
	}

	changes, err := rewriteChanges(b.Changes, mv, sourceIdxToTargetIdx)
	if err != nil {
		return Outcome{}, err
	}

	if len(changes) == 0 && len(targetParents) > 0 && !opts.PreserveOrdinaryEmptyCommits {
		// Collapses both the "ordinary empty commit" case (one parent, no
		// surviving changes) and the merge-degeneracy case (spec §4.4's tie-
		// break: parents that rewrite to the same target cs were already
		// deduplicated to a single entry by resolveParents below). A true
		// merge of two still-distinct target lines with no new content falls
		// back to its first parent as the nearest ancestor; there is no
		// single correct choice here, so we pick deterministically rather
		// than guess at intent (spec §9 leaves this orthogonal).
		return Outcome{Kind: NoSyncCandidateOutcome, NearestAncestor: targetParents[0]}, nil
	}

	out := &types.BonsaiChangeset{
		Parents: targetParents,
		Changes: changes,
		Author:  b.Author,
		Date:    b.Date,
		Message: b.Message,
	}
	if opts.RecordProvenance {
		out.Extra = make(map[string][]byte, len(b.Extra)+1)
		for k, v := range b.Extra {
			out.Extra[k] = v
		}
		out.Extra[ProvenanceExtraKey] = []byte(b.Hash().String())
	} else if len(b.Extra) > 0 {
		out.Extra = make(map[string][]byte, len(b.Extra))
		for k, v := range b.Extra {
			out.Extra[k] = v
		}
	}

	return Outcome{Kind: Rewritten, Bonsai: out}, nil
}

// resolveParents resolves each source parent to its target-repo rewrite,
// deduplicating repeated targets (two source parents collapsing onto the
// same target commit, e.g. after a merge whose branches were already in
// sync) and recording, for each source parent index, its index in the
// deduplicated target-parent list — needed to remap copy_from.parent_index.
func resolveParents(sourceParents []types.CS, resolveParent ParentResolver) ([]types.CS, []int, error) {
	targetParents := make([]types.CS, 0, len(sourceParents))
	sourceIdxToTargetIdx := make([]int, len(sourceParents))
	seen := make(map[types.CS]int, len(sourceParents))

	for i, p := range sourceParents {
		t, err := resolveParent(p)
		if err != nil {
			return nil, nil, xrs.Wrap(xrs.KindStoreError, err, "resolve parent %s", p)
		}
		if idx, ok := seen[t]; ok {
			sourceIdxToTargetIdx[i] = idx
			continue
		}
		idx := len(targetParents)
		targetParents = append(targetParents, t)
		seen[t] = idx
		sourceIdxToTargetIdx[i] = idx
	}

	return targetParents, sourceIdxToTargetIdx, nil
}

// rewriteChanges applies mv to every (path, change) pair, per spec §4.4 step 2.
func rewriteChanges(source map[string]types.FileChange, mv *mover.Mover, sourceIdxToTargetIdx []int) (map[string]types.FileChange, error) {
	changes := make(map[string]types.FileChange, len(source))
	sourceForTarget := make(map[string]string, len(source))

	for p, fc := range source {
		res := mv.MovePath(p)
		if res.Kind == mover.NotMoved {
			continue
		}

		if existingSource, ok := sourceForTarget[res.Target]; ok {
			return nil, xrs.Errorf(xrs.KindPathConflict,
				"paths %q and %q both rewrite to %q", existingSource, p, res.Target)
		}
		sourceForTarget[res.Target] = p

		rewritten := fc
		if fc.CopyFrom != nil {
			rewritten.CopyFrom = rewriteCopyFrom(fc.CopyFrom, mv, sourceIdxToTargetIdx)
		}
		changes[res.Target] = rewritten
	}

	return changes, nil
}

// rewriteCopyFrom transforms a FileChange's copy_from under mv, per spec
// §4.4 step 2: the copied-from path is itself moved (dropped entirely if
// NotMoved, keeping the content change but losing the copy relationship),
// and its parent_index is remapped to the corresponding target parent.
func rewriteCopyFrom(copyFrom *types.CopyInfo, mv *mover.Mover, sourceIdxToTargetIdx []int) *types.CopyInfo {
	res := mv.MovePath(copyFrom.Path)
	if res.Kind == mover.NotMoved {
		return nil
	}
	parentIdx := copyFrom.ParentIndex
	if parentIdx < 0 || parentIdx >= len(sourceIdxToTargetIdx) {
		// A malformed source changeset; keep the content change but drop the
		// copy relationship rather than index out of range.
		return nil
	}
	return &types.CopyInfo{Path: res.Target, ParentIndex: sourceIdxToTargetIdx[parentIdx]}
}
