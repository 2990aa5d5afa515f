// Package config implements C2, the commit-sync configuration provider
// (spec §4.2, §6). Configuration documents are authored as YAML and loaded
// into an immutable snapshot; a file watcher atomically swaps in a new
// snapshot on change, per the §9 design note ("no global mutable state
// beyond a single atomic pointer to the current snapshot").
package config

import (
	"context"
	"fmt"
	"os"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/steveyegge/xreposync/internal/xrs"
	"github.com/steveyegge/xreposync/internal/xrs/store"
	"github.com/steveyegge/xreposync/internal/xrs/types"
	"github.com/steveyegge/xreposync/internal/xrs/xlog"
)

// document is the on-disk YAML schema (spec §6 "Config schema (semantic)").
type document struct {
	LargeRepoId                int               `yaml:"large_repo_id"`
	CommonPushrebaseBookmarks  []string          `yaml:"common_pushrebase_bookmarks"`
	SmallRepos                 []smallRepoYAML   `yaml:"small_repos"`
	VersionName                string            `yaml:"version_name"`
}

type smallRepoYAML struct {
	RepoId         int               `yaml:"repoid"`
	BookmarkPrefix string            `yaml:"bookmark_prefix"`
	DefaultAction  string            `yaml:"default_action"`
	DefaultPrefix  string            `yaml:"default_prefix"`
	Direction      string            `yaml:"direction"`
	Mapping        map[string]string `yaml:"mapping"`
}

// allVersionsDocument is the append-only "all versions" file: one document
// per published version, oldest first. Versions are never mutated after
// publication (spec §6).
type allVersionsDocument struct {
	Versions []document `yaml:"versions"`
}

// snapshot is the atomically-swapped, immutable view of configuration at a
// point in time.
type snapshot struct {
	current    map[RepoPair]string // repo pair -> current version name
	versions   map[string]*types.MappingVersion
	order      map[RepoPair][]string // repo pair -> versions in publication order
	pushrebaseBookmarks map[RepoPair]map[store.Bookmark]struct{}
}

// RepoPair identifies a (small repo, large repo) relationship.
type RepoPair struct {
	Small types.RepoId
	Large types.RepoId
}

// Provider is C2: a hot-reloadable commit-sync configuration provider.
type Provider struct {
	snap    atomic.Pointer[snapshot]
	watcher *fsnotify.Watcher
	path    string
	log     logrusEntry
	cancel  context.CancelFunc
}

// logrusEntry avoids importing logrus directly into this file's public
// surface; xlog.For already returns *logrus.Entry, which satisfies it.
type logrusEntry interface {
	Warnf(format string, args ...any)
	Infof(format string, args ...any)
}

// NewFromFile loads path once and starts watching it for changes. Callers
// must call Close when done to stop the watcher goroutine.
func NewFromFile(path string) (*Provider, error) {
	p := &Provider{path: path, log: xlog.For("config", "")}

	snap, err := loadSnapshot(path)
	if err != nil {
		return nil, err
	}
	p.snap.Store(snap)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, xrs.Wrap(xrs.KindConfigError, err, "create config watcher for %s", path)
	}
	if err := watcher.Add(path); err != nil {
		watcher.Close()
		return nil, xrs.Wrap(xrs.KindConfigError, err, "watch config file %s", path)
	}
	p.watcher = watcher

	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	go p.watchLoop(ctx)

	return p, nil
}

// NewFromDocument builds a Provider from an in-memory, already-parsed set of
// versions without any file watching — used by tests and by the `demo`
// command, which construct configuration programmatically.
func NewFromDocument(versions []*types.MappingVersion, current map[RepoPair]string) *Provider {
	snap := &snapshot{
		current:             current,
		versions:            make(map[string]*types.MappingVersion, len(versions)),
		order:               make(map[RepoPair][]string),
		pushrebaseBookmarks: make(map[RepoPair]map[store.Bookmark]struct{}),
	}
	for _, v := range versions {
		snap.versions[v.Name] = v
		for repo := range v.SmallRepos {
			pair := RepoPair{Small: repo, Large: v.LargeRepo}
			snap.order[pair] = append(snap.order[pair], v.Name)
		}
	}
	p := &Provider{}
	p.snap.Store(snap)
	return p
}

func (p *Provider) watchLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-p.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			newSnap, err := loadSnapshot(p.path)
			if err != nil {
				if p.log != nil {
					p.log.Warnf("config reload failed, keeping previous snapshot: %v", err)
				}
				continue
			}
			p.snap.Store(newSnap)
			if p.log != nil {
				p.log.Infof("config reloaded from %s", p.path)
			}
		case err, ok := <-p.watcher.Errors:
			if !ok {
				return
			}
			if p.log != nil {
				p.log.Warnf("config watcher error: %v", err)
			}
		}
	}
}

// Close stops the background file watcher, if any.
func (p *Provider) Close() error {
	if p.cancel != nil {
		p.cancel()
	}
	if p.watcher != nil {
		return p.watcher.Close()
	}
	return nil
}

func loadSnapshot(path string) (*snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, xrs.Wrap(xrs.KindConfigError, err, "read config file %s", path)
	}

	var all allVersionsDocument
	if err := yaml.Unmarshal(data, &all); err != nil {
		return nil, xrs.Wrap(xrs.KindConfigError, err, "parse config file %s", path)
	}
	if len(all.Versions) == 0 {
		return nil, xrs.Errorf(xrs.KindConfigError, "config file %s declares no versions", path)
	}

	snap := &snapshot{
		current:             make(map[RepoPair]string),
		versions:            make(map[string]*types.MappingVersion),
		order:               make(map[RepoPair][]string),
		pushrebaseBookmarks: make(map[RepoPair]map[store.Bookmark]struct{}),
	}

	for _, doc := range all.Versions {
		v, err := toMappingVersion(doc)
		if err != nil {
			return nil, err
		}
		if _, dup := snap.versions[v.Name]; dup {
			return nil, xrs.Errorf(xrs.KindConfigError, "duplicate version_name %q in %s", v.Name, path)
		}
		snap.versions[v.Name] = v

		bookmarks := make(map[store.Bookmark]struct{}, len(doc.CommonPushrebaseBookmarks))
		for _, b := range doc.CommonPushrebaseBookmarks {
			bookmarks[store.Bookmark(b)] = struct{}{}
		}

		for repo := range v.SmallRepos {
			pair := RepoPair{Small: repo, Large: v.LargeRepo}
			snap.order[pair] = append(snap.order[pair], v.Name)
			snap.current[pair] = v.Name // last document listed wins as "current"
			snap.pushrebaseBookmarks[pair] = bookmarks
		}
	}

	return snap, nil
}

func toMappingVersion(doc document) (*types.MappingVersion, error) {
	if doc.VersionName == "" {
		return nil, xrs.Errorf(xrs.KindConfigError, "version document missing version_name")
	}

	v := &types.MappingVersion{
		Name:       doc.VersionName,
		LargeRepo:  types.RepoId(doc.LargeRepoId),
		SmallRepos: make(map[types.RepoId]types.SmallRepoEntry, len(doc.SmallRepos)),
	}

	for _, sr := range doc.SmallRepos {
		entry, err := toSmallRepoEntry(sr)
		if err != nil {
			return nil, xrs.Wrap(xrs.KindConfigError, err, "version %s repo %d", doc.VersionName, sr.RepoId)
		}
		v.SmallRepos[types.RepoId(sr.RepoId)] = entry
	}

	return v, nil
}

func toSmallRepoEntry(sr smallRepoYAML) (types.SmallRepoEntry, error) {
	var entry types.SmallRepoEntry
	entry.RepoId = types.RepoId(sr.RepoId)
	entry.BookmarkPrefix = sr.BookmarkPrefix

	switch sr.Direction {
	case "large_to_small":
		entry.Direction = types.DirectionLargeToSmall
	case "small_to_large":
		entry.Direction = types.DirectionSmallToLarge
	default:
		return entry, fmt.Errorf("unknown direction %q", sr.Direction)
	}

	switch sr.DefaultAction {
	case "prepend_prefix":
		if sr.DefaultPrefix == "" {
			return entry, fmt.Errorf("default_action=prepend_prefix requires default_prefix")
		}
		entry.DefaultAction = types.DefaultAction{Kind: types.DefaultActionPrependPrefix, Prefix: sr.DefaultPrefix}
	case "preserve":
		entry.DefaultAction = types.DefaultAction{Kind: types.DefaultActionPreserve}
	case "do_nothing":
		entry.DefaultAction = types.DefaultAction{Kind: types.DefaultActionDoNothing}
	default:
		return entry, fmt.Errorf("unknown default_action %q", sr.DefaultAction)
	}

	if len(sr.Mapping) > 0 {
		entry.Overrides = make(map[string]types.OverrideTarget, len(sr.Mapping))
		for src, tgt := range sr.Mapping {
			if tgt == "" {
				entry.Overrides[src] = types.OverrideTarget{Removed: true}
			} else {
				entry.Overrides[src] = types.OverrideTarget{Path: tgt}
			}
		}
	}

	return entry, nil
}

// CurrentVersion returns the version name currently in effect for pair.
func (p *Provider) CurrentVersion(pair RepoPair) (string, error) {
	snap := p.snap.Load()
	v, ok := snap.current[pair]
	if !ok {
		return "", xrs.Errorf(xrs.KindConfigError, "no current version for repo pair %+v", pair)
	}
	return v, nil
}

// AllVersions returns every published version name for pair, oldest first.
func (p *Provider) AllVersions(pair RepoPair) ([]string, error) {
	snap := p.snap.Load()
	versions, ok := snap.order[pair]
	if !ok {
		return nil, xrs.Errorf(xrs.KindConfigError, "no versions for repo pair %+v", pair)
	}
	out := make([]string, len(versions))
	copy(out, versions)
	return out, nil
}

// GetConfig returns the full MappingVersion for name. A caller that asks for
// a version this snapshot doesn't know about gets a ConfigError, never a
// silent NoSyncCandidate. A known version that lacks the requested small
// repo is rejected as a ConfigError by the callers' MappingVersion.SmallRepo
// lookup (syncer and pushredirect), not here.
func (p *Provider) GetConfig(name string) (*types.MappingVersion, error) {
	snap := p.snap.Load()
	v, ok := snap.versions[name]
	if !ok {
		return nil, xrs.Errorf(xrs.KindConfigError, "unknown mapping version %q", name)
	}
	return v, nil
}

// CommonPushrebaseBookmarks returns the set of bookmarks shared by pair's
// pushrebase configuration.
func (p *Provider) CommonPushrebaseBookmarks(pair RepoPair) (map[store.Bookmark]struct{}, error) {
	snap := p.snap.Load()
	bookmarks, ok := snap.pushrebaseBookmarks[pair]
	if !ok {
		return nil, xrs.Errorf(xrs.KindConfigError, "no pushrebase bookmarks for repo pair %+v", pair)
	}
	return bookmarks, nil
}
