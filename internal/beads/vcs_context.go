// Package beads is the CLI's small-repo/large-repo pairing context cache.
// A single xreposync invocation (sync-commit, run-forward, doctor, ...)
// typically touches the same pair of repo paths repeatedly across its
// lifetime; this package resolves each path's vcs.RepoVCS once and hands
// back the cached value on subsequent lookups instead of re-running VCS
// detection and root discovery every time.
package beads

import (
	"fmt"
	"sync"

	"github.com/steveyegge/xreposync/internal/vcs"
)

// PairContext holds the resolved VCS context for both sides of a sync pair.
type PairContext struct {
	SmallPath string
	LargePath string
	Small     *vcs.RepoVCS
	Large     *vcs.RepoVCS
}

// Cache resolves and memoizes vcs.RepoVCS lookups by repo root path.
type Cache struct {
	mu   sync.Mutex
	byRoot map[string]*vcs.RepoVCS
}

// NewCache returns an empty cache.
func NewCache() *Cache {
	return &Cache{byRoot: make(map[string]*vcs.RepoVCS)}
}

// Resolve returns the RepoVCS for path, computing and caching it on first
// lookup.
func (c *Cache) Resolve(path string) (*vcs.RepoVCS, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if rv, ok := c.byRoot[path]; ok {
		return rv, nil
	}
	rv, err := vcs.GetRepoVCSForPath(path)
	if err != nil {
		return nil, fmt.Errorf("resolve vcs context for %s: %w", path, err)
	}
	c.byRoot[path] = rv
	return rv, nil
}

// ResolvePair resolves both sides of a sync pair in one call.
func (c *Cache) ResolvePair(smallPath, largePath string) (*PairContext, error) {
	small, err := c.Resolve(smallPath)
	if err != nil {
		return nil, err
	}
	large, err := c.Resolve(largePath)
	if err != nil {
		return nil, err
	}
	return &PairContext{
		SmallPath: smallPath,
		LargePath: largePath,
		Small:     small,
		Large:     large,
	}, nil
}

// Forget drops any cached entry for path, forcing the next Resolve to
// re-detect it. Useful after a doctor-check repair step changes a clone's
// VCS state out from under a long-lived Cache.
func (c *Cache) Forget(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.byRoot, path)
}
