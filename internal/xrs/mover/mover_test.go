package mover

import (
	"testing"

	"github.com/steveyegge/xreposync/internal/xrs/types"
)

func TestMovePath_PrependPrefix(t *testing.T) {
	m, err := New(types.SmallRepoEntry{
		RepoId:        1,
		DefaultAction: types.DefaultAction{Kind: types.DefaultActionPrependPrefix, Prefix: "smallrepofolder"},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	got := m.MovePath("file.txt")
	if got.Kind != Moved || got.Target != "smallrepofolder/file.txt" {
		t.Fatalf("MovePath(file.txt) = %+v, want Moved(smallrepofolder/file.txt)", got)
	}
}

func TestMovePath_Preserve(t *testing.T) {
	m, err := New(types.SmallRepoEntry{
		RepoId:        1,
		DefaultAction: types.DefaultAction{Kind: types.DefaultActionPreserve},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	got := m.MovePath("a/b/c.txt")
	if got.Kind != Moved || got.Target != "a/b/c.txt" {
		t.Fatalf("MovePath(a/b/c.txt) = %+v, want Moved(a/b/c.txt)", got)
	}
}

func TestMovePath_DoNothing(t *testing.T) {
	m, err := New(types.SmallRepoEntry{
		RepoId:        1,
		DefaultAction: types.DefaultAction{Kind: types.DefaultActionDoNothing},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	got := m.MovePath("anything")
	if got.Kind != NotMoved {
		t.Fatalf("MovePath(anything) = %+v, want NotMoved", got)
	}
}

func TestMovePath_OverrideWinsOverDefault(t *testing.T) {
	m, err := New(types.SmallRepoEntry{
		RepoId:        1,
		DefaultAction: types.DefaultAction{Kind: types.DefaultActionPrependPrefix, Prefix: "smallrepofolder"},
		Overrides: map[string]types.OverrideTarget{
			"special": {Path: "top-level/special"},
		},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	got := m.MovePath("special/nested.txt")
	if got.Kind != Moved || got.Target != "top-level/special/nested.txt" {
		t.Fatalf("MovePath(special/nested.txt) = %+v, want Moved(top-level/special/nested.txt)", got)
	}

	// Unrelated path still gets the default action.
	got = m.MovePath("other.txt")
	if got.Kind != Moved || got.Target != "smallrepofolder/other.txt" {
		t.Fatalf("MovePath(other.txt) = %+v, want Moved(smallrepofolder/other.txt)", got)
	}
}

func TestMovePath_RemovedOverride(t *testing.T) {
	m, err := New(types.SmallRepoEntry{
		RepoId:        1,
		DefaultAction: types.DefaultAction{Kind: types.DefaultActionPreserve},
		Overrides: map[string]types.OverrideTarget{
			"secrets": {Removed: true},
		},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	got := m.MovePath("secrets/key.pem")
	if got.Kind != NotMoved {
		t.Fatalf("MovePath(secrets/key.pem) = %+v, want NotMoved", got)
	}
}

func TestReverse_RoundTrip_PrependPrefix(t *testing.T) {
	entry := types.SmallRepoEntry{
		RepoId:        1,
		DefaultAction: types.DefaultAction{Kind: types.DefaultActionPrependPrefix, Prefix: "smallrepofolder"},
	}
	fwd, err := New(entry)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	rev, err := fwd.Reverse()
	if err != nil {
		t.Fatalf("Reverse: %v", err)
	}

	for _, src := range []string{"file.txt", "a/b/c.txt"} {
		fres := fwd.MovePath(src)
		if fres.Kind != Moved {
			t.Fatalf("forward MovePath(%s) = %+v, want Moved", src, fres)
		}
		rres := rev.MovePath(fres.Target)
		if rres.Kind != Moved || rres.Target != src {
			t.Fatalf("reverse.MovePath(%s) = %+v, want Moved(%s)", fres.Target, rres, src)
		}
	}
}

func TestReverse_RoundTrip_Preserve(t *testing.T) {
	fwd, err := New(types.SmallRepoEntry{
		RepoId:        1,
		DefaultAction: types.DefaultAction{Kind: types.DefaultActionPreserve},
		Overrides: map[string]types.OverrideTarget{
			"vendor": {Path: "third_party/vendor"},
		},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	rev, err := fwd.Reverse()
	if err != nil {
		t.Fatalf("Reverse: %v", err)
	}

	for _, src := range []string{"main.go", "vendor/lib/x.go"} {
		fres := fwd.MovePath(src)
		if fres.Kind != Moved {
			t.Fatalf("forward MovePath(%s) = %+v, want Moved", src, fres)
		}
		rres := rev.MovePath(fres.Target)
		if rres.Kind != Moved || rres.Target != src {
			t.Fatalf("reverse.MovePath(%s) = %+v, want Moved(%s), got %+v", fres.Target, src, src, rres)
		}
	}
}

func TestReverse_NonBijectiveOverridesRejected(t *testing.T) {
	fwd, err := New(types.SmallRepoEntry{
		RepoId:        1,
		DefaultAction: types.DefaultAction{Kind: types.DefaultActionPreserve},
		Overrides: map[string]types.OverrideTarget{
			"a": {Path: "shared"},
			"b": {Path: "shared"},
		},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := fwd.Reverse(); err == nil {
		t.Fatalf("Reverse: expected InvalidMapping error for colliding override targets, got nil")
	}
}

func TestNew_EmptyPrefixRejected(t *testing.T) {
	_, err := New(types.SmallRepoEntry{
		RepoId:        1,
		DefaultAction: types.DefaultAction{Kind: types.DefaultActionPrependPrefix, Prefix: ""},
	})
	if err == nil {
		t.Fatalf("New: expected error for empty prepend_prefix, got nil")
	}
}
