// Package types defines the core data model of the cross-repo commit
// synchronizer: changeset identifiers, bonsai changesets, file changes, and
// mapping-version configuration. These are plain value types; the logic that
// operates on them lives in the sibling mover/rewriter/syncer packages.
package types

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"time"
)

// CS is a 32-byte content-addressed changeset identifier.
type CS [32]byte

// String returns the hex encoding of the changeset id.
func (c CS) String() string {
	return hex.EncodeToString(c[:])
}

// IsZero reports whether c is the zero value (used as a "no changeset" sentinel).
func (c CS) IsZero() bool {
	return c == CS{}
}

// ParseCS parses a hex-encoded changeset id.
func ParseCS(s string) (CS, error) {
	var cs CS
	b, err := hex.DecodeString(s)
	if err != nil {
		return cs, fmt.Errorf("types: parse changeset id %q: %w", s, err)
	}
	if len(b) != len(cs) {
		return cs, fmt.Errorf("types: changeset id %q has %d bytes, want %d", s, len(b), len(cs))
	}
	copy(cs[:], b)
	return cs, nil
}

// RepoId is a small stable integer identifying a repository.
type RepoId int32

// FileType describes the kind of file content referenced by a Change.
type FileType string

const (
	FileTypeRegular    FileType = "regular"
	FileTypeExecutable FileType = "executable"
	FileTypeSymlink    FileType = "symlink"
)

// CopyInfo records that a Change was copied/moved from another path in one
// of the changeset's parents.
type CopyInfo struct {
	Path        string `json:"path"`
	ParentIndex int    `json:"parent_index"`
}

// ChangeKind discriminates the FileChange variants of spec §3.
type ChangeKind string

const (
	ChangeKindChange           ChangeKind = "change"
	ChangeKindDeletion         ChangeKind = "deletion"
	ChangeKindUntrackedChange  ChangeKind = "untracked_change"
	ChangeKindUntrackedDeleted ChangeKind = "untracked_deletion"
	ChangeKindMissing          ChangeKind = "missing"
)

// FileChange is the per-path change recorded in a BonsaiChangeset.
//
// Only the fields relevant to Kind are meaningful; e.g. ContentId/FileType/
// Size/CopyFrom are all zero for a Deletion.
type FileChange struct {
	Kind      ChangeKind `json:"kind"`
	ContentId string     `json:"content_id,omitempty"`
	FileType  FileType   `json:"file_type,omitempty"`
	Size      int64      `json:"size,omitempty"`
	CopyFrom  *CopyInfo  `json:"copy_from,omitempty"`
}

// IsDeletion reports whether this change removes the path.
func (fc FileChange) IsDeletion() bool {
	return fc.Kind == ChangeKindDeletion || fc.Kind == ChangeKindUntrackedDeleted
}

// BonsaiChangeset is the server's canonical, repo-internal commit representation.
type BonsaiChangeset struct {
	Parents []CS                  `json:"parents"`
	Changes map[string]FileChange `json:"changes"`
	Author  string                `json:"author"`
	Date    time.Time             `json:"date"`
	Message string                `json:"message"`
	Extra   map[string][]byte     `json:"extra,omitempty"`
}

// Hash computes the content-addressed CS for this changeset. Two bonsais
// with identical normalized representations hash identically, which is what
// lets the rewriter/syncer treat retries as safe (spec §5 (c)).
func (b *BonsaiChangeset) Hash() CS {
	norm := b.normalize()
	data, err := json.Marshal(norm)
	if err != nil {
		// BonsaiChangeset only contains JSON-marshalable fields; a marshal
		// failure here indicates a programming error, not a runtime condition.
		panic(fmt.Sprintf("types: bonsai changeset failed to marshal: %v", err))
	}
	return sha256.Sum256(data)
}

// normalizedChangeset is the canonical, order-independent encoding used for
// hashing: map iteration order is not stable in Go, so paths are sorted
// explicitly before hashing.
type normalizedChangeset struct {
	Parents []string          `json:"parents"`
	Paths   []string          `json:"paths"`
	Changes []FileChange      `json:"changes"`
	Author  string            `json:"author"`
	Date    int64             `json:"date"`
	Message string            `json:"message"`
	Extra   map[string]string `json:"extra,omitempty"`
}

func (b *BonsaiChangeset) normalize() normalizedChangeset {
	parents := make([]string, len(b.Parents))
	for i, p := range b.Parents {
		parents[i] = p.String()
	}

	paths := make([]string, 0, len(b.Changes))
	for p := range b.Changes {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	changes := make([]FileChange, len(paths))
	for i, p := range paths {
		changes[i] = b.Changes[p]
	}

	var extra map[string]string
	if len(b.Extra) > 0 {
		extra = make(map[string]string, len(b.Extra))
		for k, v := range b.Extra {
			extra[k] = hex.EncodeToString(v)
		}
	}

	return normalizedChangeset{
		Parents: parents,
		Paths:   paths,
		Changes: changes,
		Author:  b.Author,
		Date:    b.Date.UTC().UnixNano(),
		Message: b.Message,
		Extra:   extra,
	}
}

// SourceRepo identifies which side of a mapping a row was rewritten from.
type SourceRepo string

const (
	SourceSmall         SourceRepo = "small"
	SourceLarge         SourceRepo = "large"
	SourceNotApplicable SourceRepo = "not_applicable"
)

// Direction is the rewrite direction a MappingVersion's small-repo entry declares.
type Direction string

const (
	DirectionLargeToSmall Direction = "large_to_small"
	DirectionSmallToLarge Direction = "small_to_large"
)

// DefaultActionKind discriminates a SmallRepoEntry's default path action.
type DefaultActionKind string

const (
	DefaultActionPrependPrefix DefaultActionKind = "prepend_prefix"
	DefaultActionPreserve      DefaultActionKind = "preserve"
	DefaultActionDoNothing     DefaultActionKind = "do_nothing"
)

// DefaultAction is the small-repo entry's fallback path-rewrite behavior,
// consulted when no override matches (spec §4.3 composition rule).
type DefaultAction struct {
	Kind   DefaultActionKind
	Prefix string // meaningful iff Kind == DefaultActionPrependPrefix
}

// OverrideTarget is the right-hand side of a mapping override: either a
// rewritten path, or removal (the source path maps to nothing).
type OverrideTarget struct {
	Removed bool
	Path    string // meaningful iff !Removed
}

// SmallRepoEntry is one small-repo's configuration within a MappingVersion.
type SmallRepoEntry struct {
	RepoId         RepoId
	BookmarkPrefix string
	DefaultAction  DefaultAction
	Direction      Direction
	// Overrides maps source path -> target path or removal. The most
	// specific (longest-prefix) override wins; see mover package.
	Overrides map[string]OverrideTarget
}

// MappingVersion is a named, immutable commit-sync configuration snapshot.
type MappingVersion struct {
	Name      string
	LargeRepo RepoId
	// SmallRepos is keyed by RepoId for O(1) lookup of "the entry for this repo".
	SmallRepos map[RepoId]SmallRepoEntry
}

// SmallRepo returns the SmallRepoEntry for repo, or false if repo is not
// part of this version (spec §9 open question: callers treat this as a
// ConfigError, never silently as NoSyncCandidate).
func (v MappingVersion) SmallRepo(repo RepoId) (SmallRepoEntry, bool) {
	e, ok := v.SmallRepos[repo]
	return e, ok
}
