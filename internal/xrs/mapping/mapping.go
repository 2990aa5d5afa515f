// Package mapping implements C1, the durable, transactional store of
// SyncedCommitMappingEntry rows and working-copy-equivalence rows (spec
// §4.1), backed by a real SQL engine (jmoiron/sqlx over modernc.org/sqlite)
// rather than a hand-rolled file format.
package mapping

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/steveyegge/xreposync/internal/xrs"
	"github.com/steveyegge/xreposync/internal/xrs/store"
	"github.com/steveyegge/xreposync/internal/xrs/types"
)

// EquivalenceKind discriminates the outcome of GetEquivalentWorkingCopy.
type EquivalenceKind int

const (
	NotFound EquivalenceKind = iota
	NoSyncCandidate
	WorkingCopyEquivalence
	Preserved
)

// Equivalence is the result of GetEquivalentWorkingCopy (spec §4.1).
type Equivalence struct {
	Kind    EquivalenceKind
	CS      types.CS // meaningful for NoSyncCandidate (points at nearest rewriting ancestor) and WorkingCopyEquivalence/Preserved (target cs)
	Version string
}

// Entry mirrors SyncedCommitMappingEntry (spec §3), plus the no-sync-candidate
// rows recorded via InsertNoSyncCandidate (NoSyncCandidate == true, LargeCS
// is the zero value and instead NearestAncestor holds the rewriting ancestor).
type Entry struct {
	SmallRepo       types.RepoId
	SmallCS         types.CS
	LargeRepo       types.RepoId
	LargeCS         types.CS
	Version         string
	Source          types.SourceRepo
	NoSyncCandidate bool
	NearestAncestor types.CS // meaningful iff NoSyncCandidate
}

// Store is C1: the mapping store.
type Store struct {
	db *sqlx.DB
}

// Open opens (creating if necessary) a sqlite-backed mapping store at dsn,
// e.g. "file:/var/lib/xreposync/mapping.db?_pragma=busy_timeout(5000)" or
// "file::memory:?cache=shared" for tests.
func Open(dsn string) (*Store, error) {
	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, xrs.Wrap(xrs.KindStoreError, err, "open mapping store %q", dsn)
	}
	db.SetMaxOpenConns(1) // sqlite: single-writer discipline, spec §5.
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

const schema = `
CREATE TABLE IF NOT EXISTS synced_commit_mapping (
	small_repo  INTEGER NOT NULL,
	small_cs    TEXT    NOT NULL,
	large_repo  INTEGER NOT NULL,
	large_cs    TEXT    NOT NULL,
	version     TEXT    NOT NULL,
	source_repo TEXT    NOT NULL,
	PRIMARY KEY (small_repo, small_cs, large_repo, version)
);

CREATE TABLE IF NOT EXISTS no_sync_candidate (
	small_repo       INTEGER NOT NULL,
	small_cs         TEXT    NOT NULL,
	version          TEXT    NOT NULL,
	nearest_ancestor TEXT    NOT NULL,
	PRIMARY KEY (small_repo, small_cs, version)
);

CREATE TABLE IF NOT EXISTS mutable_counter (
	repo  INTEGER NOT NULL,
	name  TEXT    NOT NULL,
	value INTEGER NOT NULL,
	PRIMARY KEY (repo, name)
);

CREATE INDEX IF NOT EXISTS idx_mapping_large ON synced_commit_mapping(large_repo, large_cs);

CREATE UNIQUE INDEX IF NOT EXISTS idx_mapping_small_unique
	ON synced_commit_mapping(small_repo, small_cs, version);
`

func (s *Store) migrate() error {
	if _, err := s.db.Exec(schema); err != nil {
		return xrs.Wrap(xrs.KindStoreError, err, "migrate mapping store schema")
	}
	return nil
}

// ErrAlreadyExists is returned by Add when an identical row already exists.
var ErrAlreadyExists = errors.New("mapping: row already exists")

// Add inserts a SyncedCommitMappingEntry. It is idempotent: inserting an
// identical row returns ErrAlreadyExists (not a hard failure — callers
// generally treat this as success, per spec §4.1). Inserting a row that
// conflicts with an existing one (same small_repo/small_cs/version but a
// different large_cs) fails with xrs.KindMappingConflict (invariant I2).
//
// The existing-row check and the insert run inside one transaction so two
// concurrent Add calls for the same (small_repo, small_cs, version) can't
// both observe "no existing row": sqlite's single-writer lock (db is opened
// with SetMaxOpenConns(1)) serializes the two transactions, and
// idx_mapping_small_unique turns a race that slips through anyway into a
// classified KindMappingConflict instead of a raw constraint error.
func (s *Store) Add(ctx context.Context, e Entry) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return xrs.Wrap(xrs.KindStoreError, err, "begin mapping tx for small_cs=%s", e.SmallCS)
	}
	defer tx.Rollback()

	var existingLargeCS string
	err = tx.GetContext(ctx, &existingLargeCS, `
		SELECT large_cs FROM synced_commit_mapping
		WHERE small_repo = ? AND small_cs = ? AND version = ?`,
		e.SmallRepo, e.SmallCS.String(), e.Version)
	switch {
	case err == nil:
		if existingLargeCS == e.LargeCS.String() {
			return ErrAlreadyExists
		}
		return xrs.Errorf(xrs.KindMappingConflict,
			"small_repo=%d small_cs=%s version=%s already maps to large_cs=%s, refusing to also map to %s",
			e.SmallRepo, e.SmallCS, e.Version, existingLargeCS, e.LargeCS)
	case errors.Is(err, sql.ErrNoRows):
		// no conflict, proceed to insert
	default:
		return xrs.Wrap(xrs.KindStoreError, err, "check existing mapping for small_cs=%s", e.SmallCS)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO synced_commit_mapping (small_repo, small_cs, large_repo, large_cs, version, source_repo)
		VALUES (?, ?, ?, ?, ?, ?)`,
		e.SmallRepo, e.SmallCS.String(), e.LargeRepo, e.LargeCS.String(), e.Version, string(e.Source))
	if err != nil {
		if isUniqueConstraintErr(err) {
			return xrs.Errorf(xrs.KindMappingConflict,
				"concurrent insert for small_repo=%d small_cs=%s version=%s lost the race, retry GetEquivalentWorkingCopy",
				e.SmallRepo, e.SmallCS, e.Version)
		}
		return xrs.Wrap(xrs.KindStoreError, err, "insert mapping for small_cs=%s", e.SmallCS)
	}
	if err := tx.Commit(); err != nil {
		return xrs.Wrap(xrs.KindStoreError, err, "commit mapping insert for small_cs=%s", e.SmallCS)
	}
	return nil
}

// isUniqueConstraintErr reports whether err is a sqlite UNIQUE constraint
// violation. modernc.org/sqlite doesn't export a typed error for this, so
// callers match on the driver's standard message text.
func isUniqueConstraintErr(err error) bool {
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// InsertNoSyncCandidate records that sourceCS rewrites to nothing under
// version, with nearestAncestor as the closest rewriting ancestor (spec §4.1,
// invariant I5).
func (s *Store) InsertNoSyncCandidate(ctx context.Context, repo types.RepoId, sourceCS types.CS, version string, nearestAncestor types.CS) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO no_sync_candidate (small_repo, small_cs, version, nearest_ancestor)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(small_repo, small_cs, version) DO UPDATE SET nearest_ancestor = excluded.nearest_ancestor`,
		repo, sourceCS.String(), version, nearestAncestor.String())
	if err != nil {
		return xrs.Wrap(xrs.KindStoreError, err, "insert no-sync-candidate for cs=%s", sourceCS)
	}
	return nil
}

// GetEquivalentWorkingCopy implements spec §4.1's core read: given a
// changeset in sourceRepo, find its equivalence in targetRepo.
func (s *Store) GetEquivalentWorkingCopy(ctx context.Context, sourceRepo types.RepoId, sourceCS types.CS, targetRepo types.RepoId) (Equivalence, error) {
	// A direct rewrite mapping, in either direction. source_repo ==
	// NotApplicable marks an identity (Preserve) mapping, per spec §4.1's
	// Preserved(target_cs, version) outcome; anything else is a genuine
	// cross-repo rewrite, reported as WorkingCopyEquivalence.
	type row struct {
		CS     string `db:"cs"`
		Version string `db:"version"`
		Source string `db:"source_repo"`
	}
	kindFor := func(source string) EquivalenceKind {
		if types.SourceRepo(source) == types.SourceNotApplicable {
			return Preserved
		}
		return WorkingCopyEquivalence
	}

	var r row
	err := s.db.GetContext(ctx, &r, `
		SELECT large_cs AS cs, version, source_repo FROM synced_commit_mapping
		WHERE small_repo = ? AND small_cs = ? AND large_repo = ?`,
		sourceRepo, sourceCS.String(), targetRepo)
	if err == nil {
		cs, perr := types.ParseCS(r.CS)
		if perr != nil {
			return Equivalence{}, xrs.Wrap(xrs.KindStoreError, perr, "parse stored cs %q", r.CS)
		}
		return Equivalence{Kind: kindFor(r.Source), CS: cs, Version: r.Version}, nil
	} else if !errors.Is(err, sql.ErrNoRows) {
		return Equivalence{}, xrs.Wrap(xrs.KindStoreError, err, "lookup mapping for cs=%s", sourceCS)
	}

	err = s.db.GetContext(ctx, &r, `
		SELECT small_cs AS cs, version, source_repo FROM synced_commit_mapping
		WHERE large_repo = ? AND large_cs = ? AND small_repo = ?`,
		sourceRepo, sourceCS.String(), targetRepo)
	if err == nil {
		cs, perr := types.ParseCS(r.CS)
		if perr != nil {
			return Equivalence{}, xrs.Wrap(xrs.KindStoreError, perr, "parse stored cs %q", r.CS)
		}
		return Equivalence{Kind: kindFor(r.Source), CS: cs, Version: r.Version}, nil
	} else if !errors.Is(err, sql.ErrNoRows) {
		return Equivalence{}, xrs.Wrap(xrs.KindStoreError, err, "lookup reverse mapping for cs=%s", sourceCS)
	}

	var ns struct {
		NearestAncestor string `db:"nearest_ancestor"`
		Version         string `db:"version"`
	}
	err = s.db.GetContext(ctx, &ns, `
		SELECT nearest_ancestor, version FROM no_sync_candidate
		WHERE small_repo = ? AND small_cs = ?`,
		sourceRepo, sourceCS.String())
	if err == nil {
		cs, perr := types.ParseCS(ns.NearestAncestor)
		if perr != nil {
			return Equivalence{}, xrs.Wrap(xrs.KindStoreError, perr, "parse stored ancestor cs %q", ns.NearestAncestor)
		}
		return Equivalence{Kind: NoSyncCandidate, CS: cs, Version: ns.Version}, nil
	} else if !errors.Is(err, sql.ErrNoRows) {
		return Equivalence{}, xrs.Wrap(xrs.KindStoreError, err, "lookup no-sync-candidate for cs=%s", sourceCS)
	}

	return Equivalence{Kind: NotFound}, nil
}

// GetVersions returns the set of versions under which cs (in repo) has been
// mapped, as either a small-repo or large-repo side.
func (s *Store) GetVersions(ctx context.Context, repo types.RepoId, cs types.CS) ([]string, error) {
	var versions []string
	err := s.db.SelectContext(ctx, &versions, `
		SELECT DISTINCT version FROM synced_commit_mapping
		WHERE (small_repo = ? AND small_cs = ?) OR (large_repo = ? AND large_cs = ?)`,
		repo, cs.String(), repo, cs.String())
	if err != nil {
		return nil, xrs.Wrap(xrs.KindStoreError, err, "get versions for cs=%s", cs)
	}
	return versions, nil
}

// CounterGet and CounterSet keep mutable counters in the mapping database,
// so a single-process deployment needs no second store for counters;
// Counters wraps them as a store.MutableCounterStore.
func (s *Store) CounterGet(ctx context.Context, repo types.RepoId, name string) (uint64, bool, error) {
	var value uint64
	err := s.db.GetContext(ctx, &value, `SELECT value FROM mutable_counter WHERE repo = ? AND name = ?`, repo, name)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, xrs.Wrap(xrs.KindStoreError, err, "get counter %d/%s", repo, name)
	}
	return value, true, nil
}

func (s *Store) CounterSet(ctx context.Context, repo types.RepoId, name string, value uint64) error {
	current, ok, err := s.CounterGet(ctx, repo, name)
	if err != nil {
		return err
	}
	if ok && value < current {
		return xrs.Errorf(xrs.KindStoreError, "counter %d/%s regression: %d -> %d", repo, name, current, value)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO mutable_counter (repo, name, value) VALUES (?, ?, ?)
		ON CONFLICT(repo, name) DO UPDATE SET value = excluded.value`,
		repo, name, value)
	if err != nil {
		return xrs.Wrap(xrs.KindStoreError, err, "set counter %d/%s", repo, name)
	}
	return nil
}

// counterAdapter satisfies store.MutableCounterStore by forwarding to a
// Store's CounterGet/CounterSet, letting callers pass a mapping Store
// wherever a MutableCounterStore is expected without a naming collision on
// the mapping Store's own public API.
type counterAdapter struct{ s *Store }

func (c counterAdapter) Get(ctx context.Context, repo types.RepoId, name string) (uint64, bool, error) {
	return c.s.CounterGet(ctx, repo, name)
}

func (c counterAdapter) Set(ctx context.Context, repo types.RepoId, name string, value uint64) error {
	return c.s.CounterSet(ctx, repo, name, value)
}

// Counters returns a store.MutableCounterStore backed by this mapping
// database, so a single-process deployment needs no second store for
// tailer cursors.
func (s *Store) Counters() store.MutableCounterStore {
	return counterAdapter{s: s}
}
