package history

import (
	"path/filepath"
	"testing"
	"time"
)

const testBuildID = "3f0c1e4a-5b6d-4e7f-8a9b-0c1d2e3f4a5b"

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestAppendAndGetByBuildID(t *testing.T) {
	store := newTestStore(t)
	ctx := t.Context()
	started := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	rec := Record{
		BuildID:   testBuildID,
		Package:   "foo",
		Version:   "1.0",
		Release:   "1",
		Status:    StatusDone,
		Archive:   "foo-1.0-1-x86_64.pkg.tar",
		StartedAt: started,
		Duration:  1500 * time.Millisecond,
		Stages:    map[string]time.Duration{"build": time.Second, "archive": 20 * time.Millisecond},
	}
	if err := store.Append(ctx, rec); err != nil {
		t.Fatalf("failed to append record: %v", err)
	}

	got, err := store.GetByBuildID(ctx, testBuildID)
	if err != nil {
		t.Fatalf("failed to get record: %v", err)
	}
	if got.Package != "foo" || got.Status != StatusDone || got.Archive != rec.Archive {
		t.Errorf("unexpected record: %+v", got)
	}
	if !got.StartedAt.Equal(started) {
		t.Errorf("expected started_at %s, got %s", started, got.StartedAt)
	}
	if got.Duration != rec.Duration {
		t.Errorf("expected duration %s, got %s", rec.Duration, got.Duration)
	}
	if got.Stages["build"] != time.Second {
		t.Errorf("expected build stage 1s, got %s", got.Stages["build"])
	}
}

func TestGetByBuildIDNotFound(t *testing.T) {
	store := newTestStore(t)
	_, err := store.GetByBuildID(t.Context(), "missing")
	if !IsNotFound(err) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRecentNewestFirstAndFiltered(t *testing.T) {
	store := newTestStore(t)
	ctx := t.Context()
	for i, pkg := range []string{"foo", "bar", "foo"} {
		rec := Record{
			BuildID:   pkg + string(rune('a'+i)),
			Package:   pkg,
			Status:    StatusFailed,
			StartedAt: time.Now(),
		}
		if err := store.Append(ctx, rec); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	all, err := store.Recent(ctx, "", 0)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(all) != 3 || all[0].BuildID != "fooc" {
		t.Fatalf("expected 3 records newest first, got %+v", all)
	}

	foos, err := store.Recent(ctx, "foo", 1)
	if err != nil {
		t.Fatalf("recent foo: %v", err)
	}
	if len(foos) != 1 || foos[0].BuildID != "fooc" {
		t.Fatalf("expected latest foo build, got %+v", foos)
	}
}

func TestDuplicateBuildIDRejected(t *testing.T) {
	store := newTestStore(t)
	rec := Record{BuildID: testBuildID, Package: "foo", Status: StatusDone, StartedAt: time.Now()}
	if err := store.Append(t.Context(), rec); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := store.Append(t.Context(), rec); err == nil {
		t.Fatal("expected unique constraint violation")
	}
}

func TestPersistentStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "history.db")
	store, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := store.Append(t.Context(), Record{BuildID: testBuildID, Package: "foo", Status: StatusDone, StartedAt: time.Now()}); err != nil {
		t.Fatalf("append: %v", err)
	}
	_ = store.Close()

	reopened, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer func() { _ = reopened.Close() }()
	recs, err := reopened.Recent(t.Context(), "", 10)
	if err != nil || len(recs) != 1 {
		t.Fatalf("expected persisted record, got %v (%v)", recs, err)
	}
}
