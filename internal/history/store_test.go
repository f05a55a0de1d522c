package history

import (
	"context"
	"path/filepath"
	"testing"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestRecordAndRecent(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	entries := []Entry{
		{JobID: "a", Path: "/media/one.mkv", Source: "scan", Outcome: "normalized", PeakDBFS: -6.0, GainDB: 5.9, Encoder: "ac3", BitrateBPS: 576000, DurationMS: 1200},
		{JobID: "b", Path: "/media/two.mkv", Source: "watch", Outcome: "skipped"},
		{JobID: "c", Path: "/media/one.mkv", Source: "scan", Outcome: "failed", Error: "exit status 1"},
	}
	for _, entry := range entries {
		if err := store.Record(ctx, entry); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	recent, err := store.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(recent) != 3 {
		t.Fatalf("len(recent) = %d, want 3", len(recent))
	}
	if recent[0].JobID != "c" || recent[2].JobID != "a" {
		t.Fatalf("unexpected order: %q then %q", recent[0].JobID, recent[2].JobID)
	}
	if recent[2].Encoder != "ac3" || recent[2].BitrateBPS != 576000 {
		t.Fatalf("encode fields lost: %+v", recent[2])
	}
	if recent[0].Error != "exit status 1" {
		t.Fatalf("error message lost: %+v", recent[0])
	}
	if recent[1].CreatedAt.IsZero() {
		t.Fatal("created_at not populated")
	}
}

func TestForPath(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	for _, entry := range []Entry{
		{JobID: "a", Path: "/media/one.mkv", Source: "scan", Outcome: "normalized"},
		{JobID: "b", Path: "/media/two.mkv", Source: "scan", Outcome: "normalized"},
		{JobID: "c", Path: "/media/one.mkv", Source: "watch", Outcome: "skipped"},
	} {
		if err := store.Record(ctx, entry); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	entries, err := store.ForPath(ctx, "/media/one.mkv", 10)
	if err != nil {
		t.Fatalf("ForPath: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("len = %d, want 2", len(entries))
	}
	if entries[0].JobID != "c" {
		t.Fatalf("order wrong: %+v", entries[0])
	}
}

func TestStats(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	for _, outcome := range []string{"normalized", "normalized", "failed"} {
		if err := store.Record(ctx, Entry{JobID: "x", Path: "/p", Source: "scan", Outcome: outcome}); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats["normalized"] != 2 || stats["failed"] != 1 {
		t.Fatalf("stats = %v", stats)
	}
}
