// Package tailer implements C6, the forward/back tailer loop (spec §4.6): a
// single-threaded, cooperative loop that consumes one repo's
// bookmark-update log in order and drives the syncer (C5) on each new
// commit, advancing a durable counter only after an entry is fully applied.
package tailer

import (
	"context"
	"strings"
	"time"

	"github.com/steveyegge/xreposync/internal/xrs"
	"github.com/steveyegge/xreposync/internal/xrs/metrics"
	"github.com/steveyegge/xreposync/internal/xrs/retry"
	"github.com/steveyegge/xreposync/internal/xrs/store"
	"github.com/steveyegge/xreposync/internal/xrs/syncer"
	"github.com/steveyegge/xreposync/internal/xrs/types"
	"github.com/steveyegge/xreposync/internal/xrs/xlog"
)

// Mode selects whether a Tailer exits once the log is drained or polls forever.
type Mode int

const (
	// Catchup processes every currently-available entry, then returns.
	Catchup Mode = iota
	// Forever polls indefinitely, sleeping with backoff between empty passes.
	Forever
)

// Options configures a Tailer instance.
type Options struct {
	Mode Mode
	// CounterName is the MutableCounterStore key this tailer owns
	// exclusively (spec §5's single-writer-per-counter discipline), e.g.
	// "xreposync_from_small" or "backsync_from_large".
	CounterName string
	// BatchLimit bounds how many log entries a single poll fetches.
	BatchLimit int
	// EntryTimeout bounds the wall-clock budget for processing one log
	// entry; exceeding it fails the entry the same way a store error would
	// (spec §4.6 "Timeouts").
	EntryTimeout time.Duration
	// PollPolicy governs the sleep between empty poll passes (Forever mode)
	// and between a failed entry and the next retry.
	PollPolicy retry.Policy
	// WritePolicy governs retries of a single entry's target-repo write.
	WritePolicy retry.Policy
	// TargetBookmarkPrefix is added (forward) or stripped (reverse) from a
	// bookmark name when mirroring a move to the target repo.
	TargetBookmarkPrefix string
	// Reverse indicates this tailer strips TargetBookmarkPrefix instead of
	// adding it — set for a large-to-small backsync tailer.
	Reverse bool
	// VersionOverride, if set, is passed through to every Syncer.Sync call.
	VersionOverride *string
}

// Tailer is one C6 loop instance, scoped to one (source repo, target repo)
// direction.
type Tailer struct {
	sourceRepo types.RepoId
	targetRepo types.RepoId
	bookmarks  store.BookmarkStore
	counters   store.MutableCounterStore
	syncer     *syncer.Syncer
	opts       Options
	log        interface {
		Infof(format string, args ...any)
		Warnf(format string, args ...any)
	}
}

// New builds a Tailer. sourceRepo's bookmark-update log is consumed;
// sourceRepo's counter named opts.CounterName is the durable cursor.
func New(sourceRepo, targetRepo types.RepoId, bookmarks store.BookmarkStore, counters store.MutableCounterStore, s *syncer.Syncer, opts Options) *Tailer {
	if opts.BatchLimit <= 0 {
		opts.BatchLimit = 100
	}
	return &Tailer{
		sourceRepo: sourceRepo,
		targetRepo: targetRepo,
		bookmarks:  bookmarks,
		counters:   counters,
		syncer:     s,
		opts:       opts,
		log:        xlog.For("tailer", opts.CounterName),
	}
}

// Run drives the loop until ctx is cancelled (Forever mode), the log is
// drained (Catchup mode), or an unrecoverable error occurs.
func (t *Tailer) Run(ctx context.Context) error {
	backoffState := retry.PollBackoff(t.pollPolicy())

	for {
		if err := ctx.Err(); err != nil {
			return xrs.Wrap(xrs.KindCancelled, err, "tailer %s", t.opts.CounterName)
		}

		drained, err := t.step(ctx)
		if err != nil {
			if kind, ok := xrs.KindOf(err); ok && kind == xrs.KindCancelled {
				return err
			}
			if t.opts.Mode == Catchup {
				return err
			}
			if kind, ok := xrs.KindOf(err); ok {
				metrics.ErrorsByKind.WithLabelValues(string(kind)).Inc()
			}
			metrics.TailerEntryFailures.WithLabelValues(t.opts.CounterName).Inc()
			t.log.Warnf("step failed, backing off: %v", err)
			if sleepErr := t.sleep(ctx, backoffState.NextBackOff()); sleepErr != nil {
				return sleepErr
			}
			continue
		}

		if !drained {
			backoffState.Reset()
			continue
		}

		if t.opts.Mode == Catchup {
			return nil
		}
		if sleepErr := t.sleep(ctx, backoffState.NextBackOff()); sleepErr != nil {
			return sleepErr
		}
	}
}

// step performs one read-log/process-batch pass. drained is true iff no new
// entries were found. A non-nil error means the first failing entry's
// error; the counter was not advanced past it (spec invariant I3).
func (t *Tailer) step(ctx context.Context) (drained bool, err error) {
	n, _, err := t.counters.Get(ctx, t.sourceRepo, t.opts.CounterName)
	if err != nil {
		return false, xrs.Wrap(xrs.KindStoreError, err, "read counter %s", t.opts.CounterName)
	}

	entries, err := t.bookmarks.Log(ctx, t.sourceRepo, n, t.opts.BatchLimit)
	if err != nil {
		return false, xrs.Wrap(xrs.KindStoreError, err, "fetch bookmark-update log for repo %d", t.sourceRepo)
	}
	if len(entries) == 0 {
		return true, nil
	}

	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return false, xrs.Wrap(xrs.KindCancelled, err, "tailer %s", t.opts.CounterName)
		}

		entryCtx := ctx
		var cancel context.CancelFunc
		if t.opts.EntryTimeout > 0 {
			entryCtx, cancel = context.WithTimeout(ctx, t.opts.EntryTimeout)
		}
		procErr := t.processEntry(entryCtx, entry)
		if cancel != nil {
			cancel()
		}
		if procErr != nil {
			return false, procErr
		}

		if err := t.counters.Set(ctx, t.sourceRepo, t.opts.CounterName, entry.Id); err != nil {
			return false, xrs.Wrap(xrs.KindStoreError, err, "advance counter %s to %d", t.opts.CounterName, entry.Id)
		}
		metrics.TailerCounter.WithLabelValues(t.opts.CounterName).Set(float64(entry.Id))
	}

	return false, nil
}

// processEntry syncs the commit(s) a bookmark move adds and mirrors the
// move on the target repo (spec §4.6 steps 3a-3c). Syncing entry.ToCS is
// sufficient to cover "all new commits in topological order": the syncer
// (C5) already walks back through any not-yet-synced parents before
// rewriting a commit, in causal order, which is the same traversal spec
// §4.6 step 3a describes computing explicitly.
func (t *Tailer) processEntry(ctx context.Context, entry store.BookmarkUpdateLogEntry) error {
	targetBookmark, err := t.rewriteBookmark(entry.Bookmark)
	if err != nil {
		return err
	}

	if !entry.HasTo() {
		_, err := retryableBool(ctx, t.writePolicy(), func() (bool, error) {
			return t.bookmarks.Delete(ctx, t.targetRepo, targetBookmark, nil, store.ReasonXRepoSync)
		})
		return err
	}

	var targetToCS types.CS
	if err := retry.Do(ctx, t.writePolicy(), func() error {
		out, err := t.syncer.Sync(ctx, t.sourceRepo, entry.ToCS, t.targetRepo, t.opts.VersionOverride)
		if err != nil {
			return err
		}
		switch out.Kind {
		case syncer.Synced, syncer.AlreadyDoneSynced:
			targetToCS = out.TargetCS
		default:
			targetToCS = out.NearestAncestor
		}
		return nil
	}); err != nil {
		return err
	}

	_, err = retryableBool(ctx, t.writePolicy(), func() (bool, error) {
		return t.bookmarks.Set(ctx, t.targetRepo, targetBookmark, nil, targetToCS, store.ReasonXRepoSync)
	})
	return err
}

// rewriteBookmark applies the configured bookmark-prefix convention (spec
// §4.6 step 3c): a forward tailer adds TargetBookmarkPrefix, a backsync
// tailer (Reverse) strips it.
func (t *Tailer) rewriteBookmark(b store.Bookmark) (store.Bookmark, error) {
	if t.opts.TargetBookmarkPrefix == "" {
		return b, nil
	}
	if !t.opts.Reverse {
		return store.Bookmark(t.opts.TargetBookmarkPrefix + string(b)), nil
	}
	name := string(b)
	if !strings.HasPrefix(name, t.opts.TargetBookmarkPrefix) {
		return "", xrs.Errorf(xrs.KindConfigError, "bookmark %q does not carry expected prefix %q", name, t.opts.TargetBookmarkPrefix)
	}
	return store.Bookmark(strings.TrimPrefix(name, t.opts.TargetBookmarkPrefix)), nil
}

func (t *Tailer) pollPolicy() retry.Policy {
	if t.opts.PollPolicy == (retry.Policy{}) {
		return retry.PollPolicy
	}
	return t.opts.PollPolicy
}

func (t *Tailer) writePolicy() retry.Policy {
	if t.opts.WritePolicy == (retry.Policy{}) {
		return retry.DefaultPolicy
	}
	return t.opts.WritePolicy
}

func (t *Tailer) sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return xrs.Wrap(xrs.KindCancelled, ctx.Err(), "tailer %s", t.opts.CounterName)
	case <-timer.C:
		return nil
	}
}

// retryableBool adapts a (bool, error) bookmark-store call to retry.Do's
// error-only shape, retrying only on err != nil; a clean false (CAS
// rejected, or delete/set target not found) is returned as-is without retry
// since retrying it would not change the outcome.
func retryableBool(ctx context.Context, policy retry.Policy, fn func() (bool, error)) (bool, error) {
	var result bool
	err := retry.Do(ctx, policy, func() error {
		ok, err := fn()
		result = ok
		return err
	})
	return result, err
}
