// Package wongdb is the embedded single-writer key/value journal backing
// store.MutableCounterStore in single-process and test deployments that
// don't want a SQL dependency just to track tailer cursors. A real
// multi-node deployment backs counters with a transactional store instead;
// this one is for the common case where one process owns one counter file.
//
// Each (repo, name) counter is one JSON file under the journal directory.
// Writes are serialized with an exclusive flock the same way the original
// wong-db squash-into-branch change guarded concurrent workspace writers:
// only one writer advances a counter at a time, and a stale reader never
// sees a half-written file because writes land via temp-file-then-rename.
package wongdb

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"syscall"

	"github.com/steveyegge/xreposync/internal/xrs"
	"github.com/steveyegge/xreposync/internal/xrs/types"
)

// Journal is a directory of one-file-per-counter JSON records.
type Journal struct {
	mu  sync.Mutex // serializes this process's own writers; flock covers other processes
	dir string
}

type record struct {
	Value uint64 `json:"value"`
}

// Open returns a Journal rooted at dir, creating dir if necessary.
func Open(dir string) (*Journal, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, xrs.Wrap(xrs.KindStoreError, err, "create counter journal dir %s", dir)
	}
	return &Journal{dir: dir}, nil
}

func (j *Journal) path(repo types.RepoId, name string) string {
	return filepath.Join(j.dir, fmt.Sprintf("%d_%s.json", repo, sanitize(name)))
}

// sanitize replaces path separators in a counter name so it can never escape
// the journal directory via "../" or an embedded slash.
func sanitize(name string) string {
	out := make([]rune, 0, len(name))
	for _, r := range name {
		if r == '/' || r == os.PathSeparator {
			out = append(out, '_')
			continue
		}
		out = append(out, r)
	}
	return string(out)
}

// lockPath returns the path to the whole-journal exclusive lock, held for
// the duration of every Get/Set so two processes never interleave a
// read-modify-write on the same counter file.
func (j *Journal) lockPath() string {
	return filepath.Join(j.dir, ".journal.lock")
}

func (j *Journal) withLock(fn func() error) error {
	lockFile, err := os.OpenFile(j.lockPath(), os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return xrs.Wrap(xrs.KindStoreError, err, "open journal lock %s", j.lockPath())
	}
	defer lockFile.Close()

	if err := syscall.Flock(int(lockFile.Fd()), syscall.LOCK_EX); err != nil {
		return xrs.Wrap(xrs.KindStoreError, err, "acquire journal lock")
	}
	defer syscall.Flock(int(lockFile.Fd()), syscall.LOCK_UN)

	return fn()
}

// Get implements store.MutableCounterStore.
func (j *Journal) Get(_ context.Context, repo types.RepoId, name string) (uint64, bool, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	var value uint64
	var found bool
	err := j.withLock(func() error {
		data, err := os.ReadFile(j.path(repo, name))
		if os.IsNotExist(err) {
			return nil
		}
		if err != nil {
			return xrs.Wrap(xrs.KindStoreError, err, "read counter %d/%s", repo, name)
		}
		var r record
		if err := json.Unmarshal(data, &r); err != nil {
			return xrs.Wrap(xrs.KindStoreError, err, "parse counter %d/%s", repo, name)
		}
		value, found = r.Value, true
		return nil
	})
	return value, found, err
}

// Set implements store.MutableCounterStore. A regression (value less than
// the current stored value) is rejected, per invariant I3.
func (j *Journal) Set(_ context.Context, repo types.RepoId, name string, value uint64) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	return j.withLock(func() error {
		path := j.path(repo, name)
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
			// first write, nothing to compare against
		case err != nil:
			return xrs.Wrap(xrs.KindStoreError, err, "read counter %d/%s", repo, name)
		default:
			var current record
			if err := json.Unmarshal(data, &current); err != nil {
				return xrs.Wrap(xrs.KindStoreError, err, "parse counter %d/%s", repo, name)
			}
			if value < current.Value {
				return xrs.Errorf(xrs.KindStoreError, "counter %d/%s regression: %d -> %d", repo, name, current.Value, value)
			}
		}

		out, err := json.Marshal(record{Value: value})
		if err != nil {
			return xrs.Wrap(xrs.KindStoreError, err, "marshal counter %d/%s", repo, name)
		}
		return atomicWrite(path, out)
	})
}

// atomicWrite writes data to a temp file in the same directory and renames
// it into place, so a crash mid-write never leaves a truncated counter file.
func atomicWrite(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return xrs.Wrap(xrs.KindStoreError, err, "write temp file for %s", path)
	}
	if err := os.Rename(tmp, path); err != nil {
		return xrs.Wrap(xrs.KindStoreError, err, "rename temp file into %s", path)
	}
	return nil
}
