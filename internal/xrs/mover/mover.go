// Package mover implements C3, the pure path-rewriting function built from a
// MappingVersion and a direction: spec §4.3.
package mover

import (
	"path"
	"strings"

	"github.com/steveyegge/xreposync/internal/xrs"
	"github.com/steveyegge/xreposync/internal/xrs/types"
)

// ResultKind discriminates a Mover.MovePath outcome.
type ResultKind int

const (
	// Moved indicates a single, unambiguous rewrite.
	Moved ResultKind = iota
	// NotMoved indicates the path was deliberately dropped.
	NotMoved
)

// Result is the outcome of Mover.MovePath.
type Result struct {
	Kind   ResultKind
	Target string // meaningful iff Kind == Moved
}

// defaultKind is mover's own, slightly richer default-action enum: it adds
// stripPrefix, which only ever appears on a Mover built by Reverse() to
// invert a forward PrependPrefix action. types.DefaultActionKind has no
// such variant because no MappingVersion is ever authored with it directly.
type defaultKind int

const (
	defaultPreserve defaultKind = iota
	defaultPrependPrefix
	defaultDoNothing
	defaultStripPrefix
)

// Mover is a pure, deterministic path-rewriting function for one small repo
// under one MappingVersion.
type Mover struct {
	repo          types.RepoId
	defaultKind   defaultKind
	defaultPrefix string // meaningful for defaultPrependPrefix / defaultStripPrefix
	overrides     []overrideRule
}

type overrideRule struct {
	source string
	target types.OverrideTarget
}

// New builds a Mover for the given small-repo entry.
func New(entry types.SmallRepoEntry) (*Mover, error) {
	if entry.DefaultAction.Kind == types.DefaultActionPrependPrefix && entry.DefaultAction.Prefix == "" {
		return nil, xrs.Errorf(xrs.KindInvalidMapping, "prepend_prefix default action requires a non-empty prefix (repo %d)", entry.RepoId)
	}

	m := &Mover{repo: entry.RepoId}
	switch entry.DefaultAction.Kind {
	case types.DefaultActionPreserve:
		m.defaultKind = defaultPreserve
	case types.DefaultActionPrependPrefix:
		m.defaultKind = defaultPrependPrefix
		m.defaultPrefix = entry.DefaultAction.Prefix
	case types.DefaultActionDoNothing:
		m.defaultKind = defaultDoNothing
	default:
		return nil, xrs.Errorf(xrs.KindInvalidMapping, "unknown default action %q (repo %d)", entry.DefaultAction.Kind, entry.RepoId)
	}

	for src, tgt := range entry.Overrides {
		m.overrides = append(m.overrides, overrideRule{source: src, target: tgt})
	}
	return m, nil
}

// MovePath computes the target-repo path for a source-repo path, applying
// the most-specific matching override, falling back to the default action.
func (m *Mover) MovePath(sourcePath string) Result {
	if best, ok := m.bestOverride(sourcePath); ok {
		if best.target.Removed {
			return Result{Kind: NotMoved}
		}
		return Result{Kind: Moved, Target: rewritePrefix(sourcePath, best.source, best.target.Path)}
	}

	switch m.defaultKind {
	case defaultPreserve:
		return Result{Kind: Moved, Target: sourcePath}
	case defaultPrependPrefix:
		return Result{Kind: Moved, Target: path.Join(m.defaultPrefix, sourcePath)}
	case defaultStripPrefix:
		if sourcePath == m.defaultPrefix {
			return Result{Kind: Moved, Target: ""}
		}
		if strings.HasPrefix(sourcePath, m.defaultPrefix+"/") {
			return Result{Kind: Moved, Target: strings.TrimPrefix(sourcePath, m.defaultPrefix+"/")}
		}
		return Result{Kind: NotMoved}
	case defaultDoNothing:
		return Result{Kind: NotMoved}
	default:
		return Result{Kind: NotMoved}
	}
}

// bestOverride finds the override whose source path is a prefix of (or
// equal to) sourcePath, preferring the longest (most specific) match. Since
// entry.Overrides is a Go map, two rules can never share an identical source
// key, so no two candidate matches can tie at the same length — the
// "Conflict" outcome named in spec §4.3 only arises when comparing two
// independently-authored mappings (e.g. forward vs. reverse), which is
// handled by Reverse below, not by ambiguity within a single override set.
func (m *Mover) bestOverride(sourcePath string) (overrideRule, bool) {
	var best overrideRule
	found := false
	bestLen := -1
	for _, rule := range m.overrides {
		if !isPrefixOrEqual(rule.source, sourcePath) {
			continue
		}
		if len(rule.source) > bestLen {
			best = rule
			bestLen = len(rule.source)
			found = true
		}
	}
	return best, found
}

func isPrefixOrEqual(prefix, p string) bool {
	if prefix == p {
		return true
	}
	return strings.HasPrefix(p, prefix+"/")
}

// rewritePrefix replaces the matched override prefix of p with target,
// preserving the remainder of the path.
func rewritePrefix(p, prefix, target string) string {
	if p == prefix {
		return target
	}
	rest := strings.TrimPrefix(p, prefix+"/")
	if target == "" {
		return rest
	}
	return path.Join(target, rest)
}

// Reverse constructs the reverse Mover: for every path s with
// m.MovePath(s) == Moved(t), reverse.MovePath(t) must equal Moved(s). If the
// forward mover's overrides cannot be inverted into such a bijection,
// Reverse returns xrs.KindInvalidMapping (spec §4.3).
func (m *Mover) Reverse() (*Mover, error) {
	rev := &Mover{repo: m.repo}

	switch m.defaultKind {
	case defaultPreserve:
		rev.defaultKind = defaultPreserve
	case defaultPrependPrefix:
		rev.defaultKind = defaultStripPrefix
		rev.defaultPrefix = m.defaultPrefix
	case defaultStripPrefix:
		rev.defaultKind = defaultPrependPrefix
		rev.defaultPrefix = m.defaultPrefix
	case defaultDoNothing:
		rev.defaultKind = defaultDoNothing
	}

	seen := make(map[string]string, len(m.overrides))
	for _, rule := range m.overrides {
		if rule.target.Removed {
			// A removed path has no target to reverse-map from.
			continue
		}
		if existingSrc, ok := seen[rule.target.Path]; ok && existingSrc != rule.source {
			return nil, xrs.Errorf(xrs.KindInvalidMapping,
				"override target %q claimed by both %q and %q: not a bijection", rule.target.Path, existingSrc, rule.source)
		}
		seen[rule.target.Path] = rule.source
		rev.overrides = append(rev.overrides, overrideRule{
			source: rule.target.Path,
			target: types.OverrideTarget{Path: rule.source},
		})
	}

	return rev, nil
}
