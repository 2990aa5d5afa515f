// Package syncer implements C5, the commit syncer (spec §4.5): it
// orchestrates a single commit's sync from a source repo to a target repo,
// selecting a MappingVersion, ensuring parents are synced first, invoking
// the rewriter (C4), and recording the outcome in the mapping store (C1).
package syncer

import (
	"context"
	"fmt"

	"github.com/steveyegge/xreposync/internal/xrs"
	"github.com/steveyegge/xreposync/internal/xrs/config"
	"github.com/steveyegge/xreposync/internal/xrs/mapping"
	"github.com/steveyegge/xreposync/internal/xrs/metrics"
	"github.com/steveyegge/xreposync/internal/xrs/mover"
	"github.com/steveyegge/xreposync/internal/xrs/rewriter"
	"github.com/steveyegge/xreposync/internal/xrs/store"
	"github.com/steveyegge/xreposync/internal/xrs/types"
	"github.com/steveyegge/xreposync/internal/xrs/xlog"
)

// Mode selects how Sync handles a parent that has not yet been synced.
type Mode int

const (
	// ModeRecursive (the default) recurses into each missing parent inline.
	ModeRecursive Mode = iota
	// ModeBulk never recurses; missing parents fail the call with
	// xrs.KindParentsNotSynced so the caller can enqueue them itself (spec
	// §4.5 step 2's "alternative bulk mode").
	ModeBulk
)

// OutcomeKind discriminates a Sync result.
type OutcomeKind int

const (
	// Synced means source_cs was rewritten and freshly recorded.
	Synced OutcomeKind = iota
	// AlreadyDoneSynced means source_cs was already mapped to TargetCS.
	AlreadyDoneSynced
	// NoSyncCandidate means source_cs rewrote to nothing and was freshly
	// recorded as such.
	NoSyncCandidate
	// AlreadyDoneNoSyncCandidate means source_cs was already recorded as a
	// no-sync-candidate.
	AlreadyDoneNoSyncCandidate
)

// Outcome is the result of Sync.
type Outcome struct {
	Kind            OutcomeKind
	TargetCS        types.CS // meaningful iff Kind is one of the *Synced variants
	NearestAncestor types.CS // meaningful iff Kind is one of the NoSyncCandidate variants
	Version         string
}

// Syncer is C5, scoped to one (small repo, large repo) pair.
type Syncer struct {
	pair        config.RepoPair
	cfg         *config.Provider
	mapping     *mapping.Store
	changesets  store.ChangesetStore
	mode        Mode
	rewriteOpts rewriter.Options
	log         interface {
		Debugf(format string, args ...any)
		Infof(format string, args ...any)
	}
}

// New builds a Syncer for pair.
func New(pair config.RepoPair, cfg *config.Provider, mappingStore *mapping.Store, changesets store.ChangesetStore, mode Mode, rewriteOpts rewriter.Options) *Syncer {
	return &Syncer{
		pair:        pair,
		cfg:         cfg,
		mapping:     mappingStore,
		changesets:  changesets,
		mode:        mode,
		rewriteOpts: rewriteOpts,
		log:         xlog.For("syncer", fmt.Sprintf("%d<->%d", pair.Small, pair.Large)),
	}
}

// Sync implements spec §4.5's sync(source_cs, target_bookmark_hint) contract
// (the bookmark hint itself is applied by the caller, typically a tailer,
// after Sync returns — C5 only resolves the commit-level rewrite).
// versionOverride, if non-nil and non-empty, takes precedence over both
// sticky inheritance and the config provider's current_version (spec §4.5
// step 3c: "an explicit override may be supplied by the caller").
func (s *Syncer) Sync(ctx context.Context, sourceRepo types.RepoId, sourceCS types.CS, targetRepo types.RepoId, versionOverride *string) (Outcome, error) {
	if err := ctx.Err(); err != nil {
		return Outcome{}, xrs.Wrap(xrs.KindCancelled, err, "sync %s", sourceCS)
	}

	eq, err := s.mapping.GetEquivalentWorkingCopy(ctx, sourceRepo, sourceCS, targetRepo)
	if err != nil {
		return Outcome{}, err
	}
	switch eq.Kind {
	case mapping.WorkingCopyEquivalence, mapping.Preserved:
		return Outcome{Kind: AlreadyDoneSynced, TargetCS: eq.CS, Version: eq.Version}, nil
	case mapping.NoSyncCandidate:
		return Outcome{Kind: AlreadyDoneNoSyncCandidate, NearestAncestor: eq.CS, Version: eq.Version}, nil
	}

	bonsai, err := s.changesets.Fetch(ctx, sourceRepo, sourceCS)
	if err != nil {
		return Outcome{}, xrs.Wrap(xrs.KindStoreError, err, "fetch source changeset %s", sourceCS)
	}

	targetParentCS, inheritedVersion, err := s.resolveParents(ctx, sourceRepo, bonsai.Parents, targetRepo, versionOverride)
	if err != nil {
		return Outcome{}, err
	}

	version, err := s.selectVersion(inheritedVersion, versionOverride)
	if err != nil {
		return Outcome{}, err
	}

	mv, smallEntry, err := s.moverFor(version, sourceRepo, targetRepo)
	if err != nil {
		return Outcome{}, err
	}

	resolveParent := func(p types.CS) (types.CS, error) {
		t, ok := targetParentCS[p]
		if !ok {
			return types.CS{}, fmt.Errorf("no resolved target parent for %s", p)
		}
		return t, nil
	}

	out, err := rewriter.Rewrite(bonsai, mv, resolveParent, s.rewriteOpts)
	if err != nil {
		return Outcome{}, err
	}

	switch out.Kind {
	case rewriter.NoSyncCandidateOutcome:
		if err := s.mapping.InsertNoSyncCandidate(ctx, sourceRepo, sourceCS, version, out.NearestAncestor); err != nil {
			return Outcome{}, err
		}
		metrics.RewriteOutcomes.WithLabelValues(metrics.RepoLabel(s.pair.Small), metrics.RepoLabel(s.pair.Large), "no_sync_candidate").Inc()
		return Outcome{Kind: NoSyncCandidate, NearestAncestor: out.NearestAncestor, Version: version}, nil
	default:
		targetCS, err := s.changesets.Store(ctx, targetRepo, out.Bonsai)
		if err != nil {
			return Outcome{}, xrs.Wrap(xrs.KindStoreError, err, "store rewritten changeset for %s", sourceCS)
		}

		entry := s.mappingEntry(sourceRepo, sourceCS, targetRepo, targetCS, version, smallEntry)
		if err := s.mapping.Add(ctx, entry); err != nil && err != mapping.ErrAlreadyExists {
			// A MappingConflict (I2 violation) is fatal and must abort the
			// whole batch without retry, per spec §4.5 failure semantics.
			// The just-written target changeset is left in place: it is
			// content-addressed, so a future correct attempt can reuse it.
			return Outcome{}, err
		}

		metrics.RewriteOutcomes.WithLabelValues(metrics.RepoLabel(s.pair.Small), metrics.RepoLabel(s.pair.Large), "synced").Inc()
		s.log.Infof("synced %s -> %s under version %s", sourceCS, targetCS, version)
		return Outcome{Kind: Synced, TargetCS: targetCS, Version: version}, nil
	}
}

// resolveParents ensures every parent of the changeset being synced has a
// target-repo equivalent, recursing (ModeRecursive) or failing fast
// (ModeBulk) for any that don't yet. It also returns the first encountered
// inherited version, implementing the "sticky inheritance" rule of spec
// §4.5 step 3a.
func (s *Syncer) resolveParents(ctx context.Context, sourceRepo types.RepoId, parents []types.CS, targetRepo types.RepoId, versionOverride *string) (map[types.CS]types.CS, string, error) {
	targetParentCS := make(map[types.CS]types.CS, len(parents))
	var inheritedVersion string
	var missing []types.CS

	for _, p := range parents {
		parentEq, err := s.mapping.GetEquivalentWorkingCopy(ctx, sourceRepo, p, targetRepo)
		if err != nil {
			return nil, "", err
		}

		switch parentEq.Kind {
		case mapping.WorkingCopyEquivalence, mapping.Preserved, mapping.NoSyncCandidate:
			targetParentCS[p] = parentEq.CS
			if inheritedVersion == "" {
				inheritedVersion = parentEq.Version
			}
			continue
		}

		if s.mode == ModeBulk {
			missing = append(missing, p)
			continue
		}

		parentOutcome, err := s.Sync(ctx, sourceRepo, p, targetRepo, versionOverride)
		if err != nil {
			return nil, "", err
		}
		switch parentOutcome.Kind {
		case Synced, AlreadyDoneSynced:
			targetParentCS[p] = parentOutcome.TargetCS
		case NoSyncCandidate, AlreadyDoneNoSyncCandidate:
			targetParentCS[p] = parentOutcome.NearestAncestor
		}
		if inheritedVersion == "" {
			inheritedVersion = parentOutcome.Version
		}
	}

	if len(missing) > 0 {
		return nil, "", xrs.Errorf(xrs.KindParentsNotSynced, "%d parent(s) not yet synced: %v", len(missing), missing)
	}

	return targetParentCS, inheritedVersion, nil
}

func (s *Syncer) selectVersion(inherited string, override *string) (string, error) {
	if override != nil && *override != "" {
		return *override, nil
	}
	if inherited != "" {
		return inherited, nil
	}
	return s.cfg.CurrentVersion(s.pair)
}

// moverFor builds the Mover that rewrites sourceRepo paths into targetRepo
// paths under version. A SmallRepoEntry's path-mapping rules are always
// authored small-repo-relative; the entry's own Direction field records
// which way is the "primary" sync direction for tailer wiring (spec §4.6),
// not which way MovePath runs, so this always builds the forward mover from
// small->large and reverses it when sourceRepo is the large repo.
func (s *Syncer) moverFor(version string, sourceRepo, targetRepo types.RepoId) (*mover.Mover, types.SmallRepoEntry, error) {
	mv, err := s.cfg.GetConfig(version)
	if err != nil {
		return nil, types.SmallRepoEntry{}, err
	}
	entry, ok := mv.SmallRepo(s.pair.Small)
	if !ok {
		return nil, types.SmallRepoEntry{}, xrs.Errorf(xrs.KindConfigError, "version %s has no entry for small repo %d", version, s.pair.Small)
	}

	forward, err := mover.New(entry)
	if err != nil {
		return nil, types.SmallRepoEntry{}, err
	}

	switch {
	case sourceRepo == s.pair.Small && targetRepo == s.pair.Large:
		return forward, entry, nil
	case sourceRepo == s.pair.Large && targetRepo == s.pair.Small:
		rev, err := forward.Reverse()
		if err != nil {
			return nil, types.SmallRepoEntry{}, err
		}
		return rev, entry, nil
	default:
		return nil, types.SmallRepoEntry{}, xrs.Errorf(xrs.KindConfigError,
			"repo pair (%d, %d) does not match configured pair (small=%d, large=%d)",
			sourceRepo, targetRepo, s.pair.Small, s.pair.Large)
	}
}

// mappingEntry builds the SyncedCommitMappingEntry row for a freshly
// rewritten commit. A version whose default action is Preserve with no
// overrides rewrites every path identically, so the resulting pair is an
// identity mapping: spec §3's source_repo = NotApplicable case, surfaced by
// the mapping store as Preserved rather than WorkingCopyEquivalence.
func (s *Syncer) mappingEntry(sourceRepo types.RepoId, sourceCS types.CS, targetRepo types.RepoId, targetCS types.CS, version string, entry types.SmallRepoEntry) mapping.Entry {
	isIdentity := entry.DefaultAction.Kind == types.DefaultActionPreserve && len(entry.Overrides) == 0

	source := types.SourceSmall
	if sourceRepo == s.pair.Large {
		source = types.SourceLarge
	}
	if isIdentity {
		source = types.SourceNotApplicable
	}

	e := mapping.Entry{Version: version, Source: source}
	if sourceRepo == s.pair.Small {
		e.SmallRepo, e.SmallCS = sourceRepo, sourceCS
		e.LargeRepo, e.LargeCS = targetRepo, targetCS
	} else {
		e.SmallRepo, e.SmallCS = targetRepo, targetCS
		e.LargeRepo, e.LargeCS = sourceRepo, sourceCS
	}
	return e
}
