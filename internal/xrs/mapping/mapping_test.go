package mapping

import (
	"context"
	"crypto/sha256"
	"fmt"
	"testing"

	"github.com/steveyegge/xreposync/internal/xrs"
	"github.com/steveyegge/xreposync/internal/xrs/types"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	s, err := Open(dsn)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func csFor(seed string) types.CS {
	return sha256.Sum256([]byte(seed))
}

func TestAdd_IdempotentAndConflict(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	e := Entry{
		SmallRepo: 1, SmallCS: csFor("s1"),
		LargeRepo: 2, LargeCS: csFor("l1"),
		Version: "v0", Source: types.SourceSmall,
	}
	if err := s.Add(ctx, e); err != nil {
		t.Fatalf("Add: %v", err)
	}

	// Re-adding the identical row is idempotent.
	if err := s.Add(ctx, e); err != ErrAlreadyExists {
		t.Fatalf("Add (dup): got %v, want ErrAlreadyExists", err)
	}

	// Conflicting large_cs under the same version is a hard failure.
	conflicting := e
	conflicting.LargeCS = csFor("l-other")
	err := s.Add(ctx, conflicting)
	if err == nil {
		t.Fatalf("Add (conflict): expected error, got nil")
	}
	if kind, ok := xrs.KindOf(err); !ok || kind != xrs.KindMappingConflict {
		t.Fatalf("Add (conflict): got kind %v, want MappingConflict", kind)
	}
}

func TestGetEquivalentWorkingCopy_DirectMapping(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	small, large := csFor("small"), csFor("large")
	if err := s.Add(ctx, Entry{
		SmallRepo: 1, SmallCS: small,
		LargeRepo: 2, LargeCS: large,
		Version: "v0", Source: types.SourceSmall,
	}); err != nil {
		t.Fatalf("Add: %v", err)
	}

	eq, err := s.GetEquivalentWorkingCopy(ctx, 1, small, 2)
	if err != nil {
		t.Fatalf("GetEquivalentWorkingCopy: %v", err)
	}
	if eq.Kind != WorkingCopyEquivalence || eq.CS != large || eq.Version != "v0" {
		t.Fatalf("GetEquivalentWorkingCopy = %+v, want WorkingCopyEquivalence(%s, v0)", eq, large)
	}

	// Reverse direction lookup also resolves.
	eq, err = s.GetEquivalentWorkingCopy(ctx, 2, large, 1)
	if err != nil {
		t.Fatalf("GetEquivalentWorkingCopy (reverse): %v", err)
	}
	if eq.Kind != WorkingCopyEquivalence || eq.CS != small {
		t.Fatalf("GetEquivalentWorkingCopy (reverse) = %+v, want WorkingCopyEquivalence(%s, ...)", eq, small)
	}
}

func TestGetEquivalentWorkingCopy_Preserved(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	small, large := csFor("identical-content"), csFor("identical-content")
	if err := s.Add(ctx, Entry{
		SmallRepo: 1, SmallCS: small,
		LargeRepo: 2, LargeCS: large,
		Version: "v0", Source: types.SourceNotApplicable,
	}); err != nil {
		t.Fatalf("Add: %v", err)
	}

	eq, err := s.GetEquivalentWorkingCopy(ctx, 1, small, 2)
	if err != nil {
		t.Fatalf("GetEquivalentWorkingCopy: %v", err)
	}
	if eq.Kind != Preserved {
		t.Fatalf("GetEquivalentWorkingCopy = %+v, want Preserved", eq)
	}
}

func TestGetEquivalentWorkingCopy_NoSyncCandidate(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	cs := csFor("empty-rewrite")
	ancestor := csFor("ancestor")
	if err := s.InsertNoSyncCandidate(ctx, 1, cs, "v0", ancestor); err != nil {
		t.Fatalf("InsertNoSyncCandidate: %v", err)
	}

	eq, err := s.GetEquivalentWorkingCopy(ctx, 1, cs, 2)
	if err != nil {
		t.Fatalf("GetEquivalentWorkingCopy: %v", err)
	}
	if eq.Kind != NoSyncCandidate || eq.CS != ancestor {
		t.Fatalf("GetEquivalentWorkingCopy = %+v, want NoSyncCandidate(%s)", eq, ancestor)
	}
}

func TestGetEquivalentWorkingCopy_NotFound(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	eq, err := s.GetEquivalentWorkingCopy(ctx, 1, csFor("unknown"), 2)
	if err != nil {
		t.Fatalf("GetEquivalentWorkingCopy: %v", err)
	}
	if eq.Kind != NotFound {
		t.Fatalf("GetEquivalentWorkingCopy = %+v, want NotFound", eq)
	}
}

func TestCounters_MonotonicAdvance(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.CounterSet(ctx, 1, "xreposync_from_small", 5); err != nil {
		t.Fatalf("CounterSet: %v", err)
	}
	if err := s.CounterSet(ctx, 1, "xreposync_from_small", 10); err != nil {
		t.Fatalf("CounterSet: %v", err)
	}
	if err := s.CounterSet(ctx, 1, "xreposync_from_small", 3); err == nil {
		t.Fatalf("CounterSet (regression): expected error, got nil")
	}

	v, ok, err := s.CounterGet(ctx, 1, "xreposync_from_small")
	if err != nil {
		t.Fatalf("CounterGet: %v", err)
	}
	if !ok || v != 10 {
		t.Fatalf("CounterGet = (%d, %v), want (10, true)", v, ok)
	}
}
