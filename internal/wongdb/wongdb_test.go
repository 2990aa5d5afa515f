package wongdb

import (
	"context"
	"testing"

	"github.com/steveyegge/xreposync/internal/xrs"
	"github.com/steveyegge/xreposync/internal/xrs/types"
)

func TestGet_MissingReturnsNotFound(t *testing.T) {
	j, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	_, ok, err := j.Get(context.Background(), types.RepoId(1), "xreposync_from_small")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if ok {
		t.Fatalf("Get: found = true, want false")
	}
}

func TestSetThenGet_RoundTrips(t *testing.T) {
	ctx := context.Background()
	j, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := j.Set(ctx, types.RepoId(1), "xreposync_from_small", 5); err != nil {
		t.Fatalf("Set: %v", err)
	}
	value, ok, err := j.Get(ctx, types.RepoId(1), "xreposync_from_small")
	if err != nil || !ok {
		t.Fatalf("Get: value=%d ok=%v err=%v", value, ok, err)
	}
	if value != 5 {
		t.Fatalf("value = %d, want 5", value)
	}
}

func TestSet_RejectsRegression(t *testing.T) {
	ctx := context.Background()
	j, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := j.Set(ctx, types.RepoId(1), "c", 10); err != nil {
		t.Fatalf("Set: %v", err)
	}
	err = j.Set(ctx, types.RepoId(1), "c", 3)
	if err == nil {
		t.Fatalf("Set: expected regression error, got nil")
	}
	if kind, ok := xrs.KindOf(err); !ok || kind != xrs.KindStoreError {
		t.Fatalf("Set: got kind %v, want KindStoreError", kind)
	}
}

func TestSet_NameWithSlashDoesNotEscapeDir(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	j, err := Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := j.Set(ctx, types.RepoId(1), "a/../../escape", 1); err != nil {
		t.Fatalf("Set: %v", err)
	}
	value, ok, err := j.Get(ctx, types.RepoId(1), "a/../../escape")
	if err != nil || !ok || value != 1 {
		t.Fatalf("round trip failed: value=%d ok=%v err=%v", value, ok, err)
	}
}

func TestCounters_IndependentPerRepo(t *testing.T) {
	ctx := context.Background()
	j, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := j.Set(ctx, types.RepoId(1), "c", 1); err != nil {
		t.Fatalf("Set repo 1: %v", err)
	}
	if err := j.Set(ctx, types.RepoId(2), "c", 99); err != nil {
		t.Fatalf("Set repo 2: %v", err)
	}
	v1, _, _ := j.Get(ctx, types.RepoId(1), "c")
	v2, _, _ := j.Get(ctx, types.RepoId(2), "c")
	if v1 != 1 || v2 != 99 {
		t.Fatalf("v1=%d v2=%d, want 1 and 99", v1, v2)
	}
}
