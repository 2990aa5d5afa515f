// Package store declares the CORE's consumed collaborator interfaces (spec
// §6): the blob store, bookmark store, and changeset store. The CORE never
// implements these for production use — that is explicitly out of scope
// (spec §1) — but it does ship an in-memory reference implementation,
// package memstore, used by tests and the `xreposync demo` command.
package store

import (
	"context"

	"github.com/steveyegge/xreposync/internal/xrs/types"
)

// BlobStore is the content-addressed blob collaborator. Writes are
// idempotent: the same key with the same value is a no-op.
type BlobStore interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Put(ctx context.Context, key string, value []byte) error
}

// Bookmark identifies a named mutable pointer to a changeset within a repo.
type Bookmark string

// BookmarkUpdateReason records why a bookmark move happened, carried through
// to the BookmarkUpdateLogEntry for audit/debugging purposes.
type BookmarkUpdateReason string

const (
	ReasonPush        BookmarkUpdateReason = "push"
	ReasonPushrebase  BookmarkUpdateReason = "pushrebase"
	ReasonXRepoSync    BookmarkUpdateReason = "xrepo_sync"
	ReasonManual      BookmarkUpdateReason = "manual"
)

// BookmarkUpdateLogEntry is one row of a repo's bookmark-update log (spec §3).
type BookmarkUpdateLogEntry struct {
	Id        uint64
	Repo      types.RepoId
	Bookmark  Bookmark
	FromCS    types.CS // zero value means "bookmark did not previously exist"
	ToCS      types.CS // zero value means "bookmark was deleted"
	Reason    BookmarkUpdateReason
	Timestamp int64 // unix nanos
}

// HasFrom reports whether this entry records a previous position for the bookmark.
func (e BookmarkUpdateLogEntry) HasFrom() bool { return !e.FromCS.IsZero() }

// HasTo reports whether this entry records a new (non-deleted) position.
func (e BookmarkUpdateLogEntry) HasTo() bool { return !e.ToCS.IsZero() }

// BookmarkStore is the bookmark collaborator: set/get/log over one repo's
// named pointers and their update history.
type BookmarkStore interface {
	// Set moves bookmark to to, optionally compare-and-swapping against
	// fromCS (if fromCS is non-nil). Returns false, nil if the CAS failed.
	Set(ctx context.Context, repo types.RepoId, bookmark Bookmark, fromCS *types.CS, to types.CS, reason BookmarkUpdateReason) (bool, error)
	Get(ctx context.Context, repo types.RepoId, bookmark Bookmark) (types.CS, bool, error)
	Delete(ctx context.Context, repo types.RepoId, bookmark Bookmark, fromCS *types.CS, reason BookmarkUpdateReason) (bool, error)
	// Log returns entries with id > fromID, in ascending id order, up to limit.
	Log(ctx context.Context, repo types.RepoId, fromID uint64, limit int) ([]BookmarkUpdateLogEntry, error)
}

// ChangesetStore is the bonsai changeset collaborator.
type ChangesetStore interface {
	Fetch(ctx context.Context, repo types.RepoId, cs types.CS) (*types.BonsaiChangeset, error)
	// Store persists bonsai and returns its content-addressed id. Storing an
	// already-stored (identical) bonsai is a no-op and returns the same id.
	Store(ctx context.Context, repo types.RepoId, bonsai *types.BonsaiChangeset) (types.CS, error)
}

// ManifestEntry is one path's content identity within a full repo manifest.
type ManifestEntry struct {
	ContentId string
	FileType  types.FileType
}

// ManifestProvider materializes a commit's full manifest (path -> entry).
// The CORE treats manifest derivation itself as out of scope (spec §1 names
// "derived-data derivation frameworks (file manifests...)" as an external
// collaborator); C8 only consumes the result.
type ManifestProvider interface {
	Manifest(ctx context.Context, repo types.RepoId, cs types.CS) (map[string]ManifestEntry, error)
}

// MutableCounterStore is the (repo, name) -> u64 counter collaborator used to
// track "last consumed bookmark-update-log id" per consumer (spec §3).
type MutableCounterStore interface {
	Get(ctx context.Context, repo types.RepoId, name string) (uint64, bool, error)
	// Set advances the counter to value. Implementations must reject a
	// regression (value less than the current stored value) since counters
	// only move forward in steady state (spec invariant I3).
	Set(ctx context.Context, repo types.RepoId, name string, value uint64) error
}
