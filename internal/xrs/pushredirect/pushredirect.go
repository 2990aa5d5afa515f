// Package pushredirect implements C7, the pushredirection coordinator (spec
// §4.7): it intercepts a push aimed at a redirected-from repo, rewrites and
// pushrebases it onto the current source-of-truth repo, rewrites the
// rebased result back, and mirrors the bookmark move on both sides before
// acknowledging the client.
package pushredirect

import (
	"context"

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

// PushrebaseResult is what the out-of-scope pushrebase primitive reports
// back: the landed, post-rebase CSs of the submitted stack (same order as
// submitted) and the destination bookmark's new position on the
// source-of-truth repo.
type PushrebaseResult struct {
	RebasedCS     []types.CS
	NewBookmarkCS types.CS
}

// Pushrebaser is the consumed collaborator that performs the actual
// server-side rebase-on-push (spec §1 names the hook engine and wire
// protocol servers as out of scope; the pushrebase primitive they sit on
// top of is this boundary). A hook rejection on the source-of-truth repo
// must be returned as an *xrs.Error with Kind == xrs.KindHookRejection and
// Context set to the rejected path on the source-of-truth side, so the
// coordinator can rewrite it back to the client's original path.
type Pushrebaser interface {
	Pushrebase(ctx context.Context, repo types.RepoId, bookmark store.Bookmark, stack []*types.BonsaiChangeset) (PushrebaseResult, error)
}

// Outcome is the result of a successful Push.
type Outcome struct {
	// Mapped lists each (redirected-from cs, source-of-truth cs) pair
	// produced by this push, in stack order.
	Mapped        []MappedPair
	FinalBookmark types.CS // the redirected-from repo's new bookmark position
}

// MappedPair is one landed commit's cross-repo correspondence.
type MappedPair struct {
	RedirectedCS    types.CS
	SourceOfTruthCS types.CS
}

// Coordinator is C7, scoped to one redirected-from/source-of-truth pair.
type Coordinator struct {
	pair           config.RepoPair
	redirectedFrom types.RepoId
	sourceOfTruth  types.RepoId
	cfg            *config.Provider
	mapping        *mapping.Store
	changesets     store.ChangesetStore
	bookmarks      store.BookmarkStore
	pushrebaser    Pushrebaser
	rewriteOpts    rewriter.Options
	log            interface {
		Infof(format string, args ...any)
	}
}

// New builds a Coordinator. redirectedFrom and sourceOfTruth must both be
// pair.Small or pair.Large (in either order); which one is "redirected
// from" is an operational choice, not fixed by the mapping config.
func New(pair config.RepoPair, redirectedFrom, sourceOfTruth types.RepoId, cfg *config.Provider, mappingStore *mapping.Store, changesets store.ChangesetStore, bookmarks store.BookmarkStore, pushrebaser Pushrebaser, rewriteOpts rewriter.Options) *Coordinator {
	return &Coordinator{
		pair:           pair,
		redirectedFrom: redirectedFrom,
		sourceOfTruth:  sourceOfTruth,
		cfg:            cfg,
		mapping:        mappingStore,
		changesets:     changesets,
		bookmarks:      bookmarks,
		pushrebaser:    pushrebaser,
		rewriteOpts:    rewriteOpts,
		log:            xlog.For("pushredirect", ""),
	}
}

// Push implements spec §4.7's four steps for a client push of stack
// (ordered oldest-first) onto bookmark on the redirected-from repo.
func (c *Coordinator) Push(ctx context.Context, bookmark store.Bookmark, stack []*types.BonsaiChangeset) (Outcome, error) {
	version, err := c.cfg.CurrentVersion(c.pair)
	if err != nil {
		return Outcome{}, err
	}

	forwardMover, sourceEntry, err := c.moverFor(version, c.redirectedFrom, c.sourceOfTruth)
	if err != nil {
		return Outcome{}, err
	}

	// Step 1: rewrite the client's proposed stack onto the source of truth.
	rewrittenStack, _, err := c.rewriteStack(ctx, stack, forwardMover, c.redirectedFrom, c.sourceOfTruth)
	if err != nil {
		return Outcome{}, err
	}

	destBookmark, err := rewriteBookmarkName(bookmark, sourceEntry.BookmarkPrefix, c.redirectedFrom == c.pair.Small)
	if err != nil {
		return Outcome{}, err
	}

	// Step 2: pushrebase the rewritten stack onto the source of truth.
	result, err := c.pushrebaser.Pushrebase(ctx, c.sourceOfTruth, destBookmark, rewrittenStack)
	if err != nil {
		return Outcome{}, c.translateHookFailure(err, forwardMover)
	}

	reverseMover, err := forwardMover.Reverse()
	if err != nil {
		return Outcome{}, err
	}

	// Step 3: rewrite the rebased, landed commits back onto the
	// redirected-from repo.
	mapped := make([]MappedPair, 0, len(result.RebasedCS))
	var finalRedirectedCS types.CS
	landedByOriginal := make(map[types.CS]types.CS, len(result.RebasedCS))
	for i, landedCS := range result.RebasedCS {
		landedBonsai, err := c.changesets.Fetch(ctx, c.sourceOfTruth, landedCS)
		if err != nil {
			return Outcome{}, xrs.Wrap(xrs.KindStoreError, err, "fetch landed changeset %s", landedCS)
		}

		resolveParent := func(p types.CS) (types.CS, error) {
			if t, ok := landedByOriginal[p]; ok {
				return t, nil
			}
			eq, err := c.mapping.GetEquivalentWorkingCopy(ctx, c.sourceOfTruth, p, c.redirectedFrom)
			if err != nil {
				return types.CS{}, err
			}
			switch eq.Kind {
			case mapping.WorkingCopyEquivalence, mapping.Preserved, mapping.NoSyncCandidate:
				return eq.CS, nil
			default:
				return types.CS{}, xrs.Errorf(xrs.KindParentsNotSynced, "parent %s of landed commit has no rewrite back onto %d", p, c.redirectedFrom)
			}
		}

		out, err := rewriter.Rewrite(landedBonsai, reverseMover, resolveParent, c.rewriteOpts)
		if err != nil {
			return Outcome{}, err
		}

		var redirectedCS types.CS
		switch out.Kind {
		case rewriter.NoSyncCandidateOutcome:
			redirectedCS = out.NearestAncestor
			if err := c.mapping.InsertNoSyncCandidate(ctx, c.sourceOfTruth, landedCS, version, redirectedCS); err != nil {
				return Outcome{}, err
			}
		default:
			redirectedCS, err = c.changesets.Store(ctx, c.redirectedFrom, out.Bonsai)
			if err != nil {
				return Outcome{}, xrs.Wrap(xrs.KindStoreError, err, "store rewritten-back changeset for %s", landedCS)
			}
			entry := c.mappingEntryForSourceOfTruth(landedCS, redirectedCS, version, sourceEntry)
			if err := c.mapping.Add(ctx, entry); err != nil && err != mapping.ErrAlreadyExists {
				return Outcome{}, err
			}
		}

		landedByOriginal[landedCS] = redirectedCS
		mapped = append(mapped, MappedPair{RedirectedCS: redirectedCS, SourceOfTruthCS: landedCS})
		if i == len(result.RebasedCS)-1 {
			finalRedirectedCS = redirectedCS
		}
	}

	// Step 4 (continued): mirror the bookmark move on the redirected-from
	// repo with the same reason, before acknowledging the client.
	if _, err := c.bookmarks.Set(ctx, c.redirectedFrom, bookmark, nil, finalRedirectedCS, store.ReasonPushrebase); err != nil {
		return Outcome{}, xrs.Wrap(xrs.KindStoreError, err, "mirror bookmark %s onto repo %d", bookmark, c.redirectedFrom)
	}

	metrics.PushredirectLandings.WithLabelValues(metrics.RepoLabel(c.redirectedFrom), metrics.RepoLabel(c.sourceOfTruth)).Add(float64(len(mapped)))
	c.log.Infof("pushredirect landed %d commit(s) from repo %d onto repo %d under version %s", len(mapped), c.redirectedFrom, c.sourceOfTruth, version)
	return Outcome{Mapped: mapped, FinalBookmark: finalRedirectedCS}, nil
}

// translateHookFailure rewrites a hook-rejection error's path context from
// the source-of-truth repo's path back to the client's original path (spec
// §4.7 "preserve provenance; rewrite paths in error messages using the
// reverse mover"). Any other error passes through unchanged.
func (c *Coordinator) translateHookFailure(err error, forwardMover *mover.Mover) error {
	xe, ok := err.(*xrs.Error)
	if !ok || xe.Kind != xrs.KindHookRejection {
		return err
	}
	reverse, revErr := forwardMover.Reverse()
	if revErr != nil {
		return err
	}
	res := reverse.MovePath(xe.Context)
	if res.Kind != mover.Moved {
		return err
	}
	return xrs.Wrap(xrs.KindHookRejection, xe.Err, "%s", res.Target)
}

// rewriteStack rewrites stack (oldest-first) under mv, resolving parents
// either within the stack itself or, for the stack's base, via the mapping
// store. It mirrors rewriter usage in package syncer but keeps rewritten
// bonsais in memory rather than persisting each one, since a rejected
// pushrebase must not leave partial state behind.
func (c *Coordinator) rewriteStack(ctx context.Context, stack []*types.BonsaiChangeset, mv *mover.Mover, sourceRepo, targetRepo types.RepoId) ([]*types.BonsaiChangeset, map[types.CS]types.CS, error) {
	localTarget := make(map[types.CS]types.CS, len(stack))
	rewrittenStack := make([]*types.BonsaiChangeset, 0, len(stack))

	for _, b := range stack {
		sourceCS := b.Hash()
		resolveParent := func(p types.CS) (types.CS, error) {
			if t, ok := localTarget[p]; ok {
				return t, nil
			}
			eq, err := c.mapping.GetEquivalentWorkingCopy(ctx, sourceRepo, p, targetRepo)
			if err != nil {
				return types.CS{}, err
			}
			switch eq.Kind {
			case mapping.WorkingCopyEquivalence, mapping.Preserved, mapping.NoSyncCandidate:
				return eq.CS, nil
			default:
				return types.CS{}, xrs.Errorf(xrs.KindParentsNotSynced, "parent %s is not yet synced", p)
			}
		}

		out, err := rewriter.Rewrite(b, mv, resolveParent, c.rewriteOpts)
		if err != nil {
			return nil, nil, err
		}
		if out.Kind == rewriter.NoSyncCandidateOutcome {
			localTarget[sourceCS] = out.NearestAncestor
			continue
		}
		localTarget[sourceCS] = out.Bonsai.Hash()
		rewrittenStack = append(rewrittenStack, out.Bonsai)
	}

	return rewrittenStack, localTarget, nil
}

func (c *Coordinator) moverFor(version string, sourceRepo, targetRepo types.RepoId) (*mover.Mover, types.SmallRepoEntry, error) {
	mv, err := c.cfg.GetConfig(version)
	if err != nil {
		return nil, types.SmallRepoEntry{}, err
	}
	entry, ok := mv.SmallRepo(c.pair.Small)
	if !ok {
		return nil, types.SmallRepoEntry{}, xrs.Errorf(xrs.KindConfigError, "version %s has no entry for small repo %d", version, c.pair.Small)
	}

	forward, err := mover.New(entry)
	if err != nil {
		return nil, types.SmallRepoEntry{}, err
	}

	switch {
	case sourceRepo == c.pair.Small && targetRepo == c.pair.Large:
		return forward, entry, nil
	case sourceRepo == c.pair.Large && targetRepo == c.pair.Small:
		rev, err := forward.Reverse()
		if err != nil {
			return nil, types.SmallRepoEntry{}, err
		}
		return rev, entry, nil
	default:
		return nil, types.SmallRepoEntry{}, xrs.Errorf(xrs.KindConfigError,
			"repo pair (%d, %d) does not match configured pair (small=%d, large=%d)",
			sourceRepo, targetRepo, c.pair.Small, c.pair.Large)
	}
}

func (c *Coordinator) mappingEntryForSourceOfTruth(sourceOfTruthCS, redirectedCS types.CS, version string, entry types.SmallRepoEntry) mapping.Entry {
	isIdentity := entry.DefaultAction.Kind == types.DefaultActionPreserve && len(entry.Overrides) == 0

	source := types.SourceLarge
	if c.sourceOfTruth == c.pair.Small {
		source = types.SourceSmall
	}
	if isIdentity {
		source = types.SourceNotApplicable
	}

	e := mapping.Entry{Version: version, Source: source}
	if c.redirectedFrom == c.pair.Small {
		e.SmallRepo, e.SmallCS = c.redirectedFrom, redirectedCS
		e.LargeRepo, e.LargeCS = c.sourceOfTruth, sourceOfTruthCS
	} else {
		e.SmallRepo, e.SmallCS = c.sourceOfTruth, sourceOfTruthCS
		e.LargeRepo, e.LargeCS = c.redirectedFrom, redirectedCS
	}
	return e
}

// rewriteBookmarkName applies the small-repo entry's bookmark_prefix
// convention: a small-to-large push adds the prefix, a large-to-small push
// strips it.
func rewriteBookmarkName(b store.Bookmark, prefix string, redirectedFromIsSmall bool) (store.Bookmark, error) {
	if prefix == "" {
		return b, nil
	}
	if redirectedFromIsSmall {
		return store.Bookmark(prefix + string(b)), nil
	}
	name := string(b)
	if len(name) < len(prefix) || name[:len(prefix)] != prefix {
		return "", xrs.Errorf(xrs.KindConfigError, "bookmark %q does not carry expected prefix %q", name, prefix)
	}
	return store.Bookmark(name[len(prefix):]), nil
}
