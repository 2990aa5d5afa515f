// Fixture loading shared by the sync-commit, run-forward, run-backsync,
// pushredirect and verify subcommands. Because implementing a real
// blob/bookmark-store backend is out of scope (spec.md's stated non-goal of
// "implementing the full repository runtime"), every subcommand that needs
// changeset/bookmark state loads it from a JSON fixture file into the
// in-process store/memstore reference implementations.
package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/steveyegge/xreposync/internal/xrs/store"
	"github.com/steveyegge/xreposync/internal/xrs/store/memstore"
	"github.com/steveyegge/xreposync/internal/xrs/types"
)

// fixtureChangeset is the JSON wire shape for one BonsaiChangeset entry in a
// fixture file.
type fixtureChangeset struct {
	Repo    types.RepoId              `json:"repo"`
	Parents []string                  `json:"parents"`
	Changes map[string]types.FileChange `json:"changes"`
	Author  string                    `json:"author"`
	Message string                    `json:"message"`
}

type fixtureBookmark struct {
	Repo     types.RepoId `json:"repo"`
	Name     string       `json:"name"`
	Target   string       `json:"target"`
}

type fixtureManifest struct {
	Repo     types.RepoId                    `json:"repo"`
	CS       string                          `json:"cs"`
	Entries  map[string]store.ManifestEntry `json:"entries"`
}

// fixtureDocument is the top-level shape of a fixture JSON file.
type fixtureDocument struct {
	Changesets []fixtureChangeset `json:"changesets"`
	Bookmarks  []fixtureBookmark  `json:"bookmarks"`
	Manifests  []fixtureManifest  `json:"manifests"`
}

// loadedFixture is the in-memory stores built from a fixtureDocument, plus
// a lookup from each fixture changeset's message label to the real
// content-hashed CS value assigned when that changeset was stored.
type loadedFixture struct {
	Changesets *memstore.Changesets
	Bookmarks  *memstore.Bookmarks
	Manifests  *memstore.Manifests
	CSByLabel  map[string]types.CS
}

func loadFixture(path string) (*loadedFixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture %s: %w", path, err)
	}
	var doc fixtureDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse fixture %s: %w", path, err)
	}

	lf := &loadedFixture{
		Changesets: memstore.NewChangesets(),
		Bookmarks:  memstore.NewBookmarks(),
		Manifests:  memstore.NewManifests(),
		CSByLabel:  make(map[string]types.CS),
	}

	ctx := newCLIContext()
	for _, fc := range doc.Changesets {
		parents := make([]types.CS, 0, len(fc.Parents))
		for _, p := range fc.Parents {
			cs, ok := lf.CSByLabel[p]
			if !ok {
				return nil, fmt.Errorf("fixture: parent label %q not yet defined", p)
			}
			parents = append(parents, cs)
		}
		bonsai := &types.BonsaiChangeset{
			Parents: parents,
			Changes: fc.Changes,
			Author:  fc.Author,
			Message: fc.Message,
		}
		cs, err := lf.Changesets.Store(ctx, fc.Repo, bonsai)
		if err != nil {
			return nil, fmt.Errorf("fixture: store changeset %q: %w", fc.Message, err)
		}
		lf.CSByLabel[fc.Message] = cs
	}

	for _, fb := range doc.Bookmarks {
		cs, ok := lf.CSByLabel[fb.Target]
		if !ok {
			return nil, fmt.Errorf("fixture: bookmark %q targets unknown changeset label %q", fb.Name, fb.Target)
		}
		if _, err := lf.Bookmarks.Set(ctx, fb.Repo, store.Bookmark(fb.Name), nil, cs, store.ReasonManual); err != nil {
			return nil, fmt.Errorf("fixture: set bookmark %q: %w", fb.Name, err)
		}
	}

	for _, fm := range doc.Manifests {
		cs, ok := lf.CSByLabel[fm.CS]
		if !ok {
			return nil, fmt.Errorf("fixture: manifest targets unknown changeset label %q", fm.CS)
		}
		lf.Manifests.Put(fm.Repo, cs, fm.Entries)
	}

	return lf, nil
}
