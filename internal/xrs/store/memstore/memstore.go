// Package memstore is an in-memory reference implementation of the CORE's
// store interfaces (internal/xrs/store), used by the CORE's own tests and by
// the `xreposync demo` command. It is explicitly not production-grade: no
// persistence, a single global mutex per store, and unbounded memory growth.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/steveyegge/xreposync/internal/xrs/store"
	"github.com/steveyegge/xreposync/internal/xrs/types"
)

// Blob is an in-memory store.BlobStore.
type Blob struct {
	mu   sync.Mutex
	data map[string][]byte
}

func NewBlob() *Blob {
	return &Blob{data: make(map[string][]byte)}
}

func (b *Blob) Get(_ context.Context, key string) ([]byte, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	v, ok := b.data[key]
	return v, ok, nil
}

func (b *Blob) Put(_ context.Context, key string, value []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if existing, ok := b.data[key]; ok {
		if string(existing) == string(value) {
			return nil // idempotent no-op
		}
	}
	b.data[key] = value
	return nil
}

// Bookmarks is an in-memory store.BookmarkStore.
type Bookmarks struct {
	mu      sync.Mutex
	current map[types.RepoId]map[store.Bookmark]types.CS
	log     map[types.RepoId][]store.BookmarkUpdateLogEntry
	nextID  map[types.RepoId]uint64
}

func NewBookmarks() *Bookmarks {
	return &Bookmarks{
		current: make(map[types.RepoId]map[store.Bookmark]types.CS),
		log:     make(map[types.RepoId][]store.BookmarkUpdateLogEntry),
		nextID:  make(map[types.RepoId]uint64),
	}
}

func (b *Bookmarks) Set(_ context.Context, repo types.RepoId, bookmark store.Bookmark, fromCS *types.CS, to types.CS, reason store.BookmarkUpdateReason) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	repoMap := b.repoMap(repo)
	current, exists := repoMap[bookmark]

	if fromCS != nil {
		if !exists || current != *fromCS {
			return false, nil
		}
	}

	var from types.CS
	if exists {
		from = current
	}
	repoMap[bookmark] = to
	b.appendLog(repo, bookmark, from, to, reason)
	return true, nil
}

func (b *Bookmarks) Get(_ context.Context, repo types.RepoId, bookmark store.Bookmark) (types.CS, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	cs, ok := b.repoMap(repo)[bookmark]
	return cs, ok, nil
}

func (b *Bookmarks) Delete(_ context.Context, repo types.RepoId, bookmark store.Bookmark, fromCS *types.CS, reason store.BookmarkUpdateReason) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	repoMap := b.repoMap(repo)
	current, exists := repoMap[bookmark]
	if !exists {
		return false, nil
	}
	if fromCS != nil && current != *fromCS {
		return false, nil
	}
	delete(repoMap, bookmark)
	b.appendLog(repo, bookmark, current, types.CS{}, reason)
	return true, nil
}

func (b *Bookmarks) Log(_ context.Context, repo types.RepoId, fromID uint64, limit int) ([]store.BookmarkUpdateLogEntry, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	entries := b.log[repo]
	idx := sort.Search(len(entries), func(i int) bool { return entries[i].Id > fromID })
	end := len(entries)
	if limit > 0 && idx+limit < end {
		end = idx + limit
	}
	out := make([]store.BookmarkUpdateLogEntry, end-idx)
	copy(out, entries[idx:end])
	return out, nil
}

func (b *Bookmarks) repoMap(repo types.RepoId) map[store.Bookmark]types.CS {
	m, ok := b.current[repo]
	if !ok {
		m = make(map[store.Bookmark]types.CS)
		b.current[repo] = m
	}
	return m
}

func (b *Bookmarks) appendLog(repo types.RepoId, bookmark store.Bookmark, from, to types.CS, reason store.BookmarkUpdateReason) {
	b.nextID[repo]++
	id := b.nextID[repo]
	b.log[repo] = append(b.log[repo], store.BookmarkUpdateLogEntry{
		Id:       id,
		Repo:     repo,
		Bookmark: bookmark,
		FromCS:   from,
		ToCS:     to,
		Reason:   reason,
	})
}

// Changesets is an in-memory store.ChangesetStore.
type Changesets struct {
	mu   sync.Mutex
	data map[types.RepoId]map[types.CS]*types.BonsaiChangeset
}

func NewChangesets() *Changesets {
	return &Changesets{data: make(map[types.RepoId]map[types.CS]*types.BonsaiChangeset)}
}

func (c *Changesets) Fetch(_ context.Context, repo types.RepoId, cs types.CS) (*types.BonsaiChangeset, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	repoMap, ok := c.data[repo]
	if !ok {
		return nil, fmt.Errorf("memstore: changeset %s not found in repo %d", cs, repo)
	}
	b, ok := repoMap[cs]
	if !ok {
		return nil, fmt.Errorf("memstore: changeset %s not found in repo %d", cs, repo)
	}
	return b, nil
}

func (c *Changesets) Store(_ context.Context, repo types.RepoId, bonsai *types.BonsaiChangeset) (types.CS, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	cs := bonsai.Hash()
	repoMap, ok := c.data[repo]
	if !ok {
		repoMap = make(map[types.CS]*types.BonsaiChangeset)
		c.data[repo] = repoMap
	}
	repoMap[cs] = bonsai
	return cs, nil
}

// Manifests is an in-memory store.ManifestProvider, populated directly by
// tests rather than derived from changesets (real manifest derivation is
// out of scope for the CORE; see package store's ManifestProvider doc).
type Manifests struct {
	mu   sync.Mutex
	data map[types.RepoId]map[types.CS]map[string]store.ManifestEntry
}

func NewManifests() *Manifests {
	return &Manifests{data: make(map[types.RepoId]map[types.CS]map[string]store.ManifestEntry)}
}

// Put registers cs's full manifest for repo.
func (m *Manifests) Put(repo types.RepoId, cs types.CS, manifest map[string]store.ManifestEntry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	repoMap, ok := m.data[repo]
	if !ok {
		repoMap = make(map[types.CS]map[string]store.ManifestEntry)
		m.data[repo] = repoMap
	}
	repoMap[cs] = manifest
}

func (m *Manifests) Manifest(_ context.Context, repo types.RepoId, cs types.CS) (map[string]store.ManifestEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	repoMap, ok := m.data[repo]
	if !ok {
		return nil, fmt.Errorf("memstore: no manifests registered for repo %d", repo)
	}
	manifest, ok := repoMap[cs]
	if !ok {
		return nil, fmt.Errorf("memstore: manifest %s not found in repo %d", cs, repo)
	}
	return manifest, nil
}

// Counters is an in-memory store.MutableCounterStore.
type Counters struct {
	mu   sync.Mutex
	data map[types.RepoId]map[string]uint64
}

func NewCounters() *Counters {
	return &Counters{data: make(map[types.RepoId]map[string]uint64)}
}

func (c *Counters) Get(_ context.Context, repo types.RepoId, name string) (uint64, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	repoMap, ok := c.data[repo]
	if !ok {
		return 0, false, nil
	}
	v, ok := repoMap[name]
	return v, ok, nil
}

func (c *Counters) Set(_ context.Context, repo types.RepoId, name string, value uint64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	repoMap, ok := c.data[repo]
	if !ok {
		repoMap = make(map[string]uint64)
		c.data[repo] = repoMap
	}
	if current, ok := repoMap[name]; ok && value < current {
		return fmt.Errorf("memstore: counter %d/%s regression: %d -> %d", repo, name, current, value)
	}
	repoMap[name] = value
	return nil
}
