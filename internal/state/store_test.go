package state_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"evenkeel/internal/fingerprint"
	"evenkeel/internal/state"
)

func sig(size, mtime int64) fingerprint.Signature {
	return fingerprint.Signature{Size: size, MTimeNS: mtime}
}

func TestCommitAndReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "state.json")

	store := state.Open(path, nil)
	rec := state.FileRecord{
		Signature:   sig(100, 200),
		Fingerprint: "abc123",
		ProcessedAt: time.Now().UTC().Truncate(time.Second),
	}
	if err := store.Commit("/media/a.mkv", rec); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}

	reloaded := state.Open(path, nil)
	got, ok := reloaded.Lookup("/media/a.mkv")
	if !ok {
		t.Fatal("record missing after reload")
	}
	if got.Signature != rec.Signature || got.Fingerprint != rec.Fingerprint {
		t.Fatalf("record mismatch: %+v vs %+v", got, rec)
	}
	if !got.ProcessedAt.Equal(rec.ProcessedAt) {
		t.Fatalf("processed_at mismatch: %v vs %v", got.ProcessedAt, rec.ProcessedAt)
	}
}

func TestCommitLeavesNoTempFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "state.json")

	store := state.Open(path, nil)
	if err := store.Commit("/media/a.mkv", state.FileRecord{Fingerprint: "x"}); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Fatalf("temp file left behind: %v", err)
	}
}

func TestOpenToleratesCorruptDocument(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "state.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}

	store := state.Open(path, nil)
	if store.Len() != 0 {
		t.Fatalf("expected empty store, got %d records", store.Len())
	}
	// Corrupt document must not block future commits.
	if err := store.Commit("/media/a.mkv", state.FileRecord{Fingerprint: "x"}); err != nil {
		t.Fatalf("Commit after corrupt load failed: %v", err)
	}
}

func TestIsUpToDate(t *testing.T) {
	store := state.Open(filepath.Join(t.TempDir(), "state.json"), nil)
	if err := store.Commit("/media/a.mkv", state.FileRecord{Signature: sig(10, 20), Fingerprint: "fp"}); err != nil {
		t.Fatal(err)
	}

	if !store.IsUpToDate("/media/a.mkv", sig(10, 20), "fp") {
		t.Fatal("expected up-to-date for matching signature and fingerprint")
	}
	if store.IsUpToDate("/media/a.mkv", sig(10, 21), "fp") {
		t.Fatal("signature mismatch must not be up-to-date")
	}
	if store.IsUpToDate("/media/a.mkv", sig(10, 20), "other") {
		t.Fatal("fingerprint mismatch must not be up-to-date")
	}
	if store.IsUpToDate("/media/b.mkv", sig(10, 20), "fp") {
		t.Fatal("unknown path must not be up-to-date")
	}
}

func TestRefreshSignatureKeepsProcessedAt(t *testing.T) {
	store := state.Open(filepath.Join(t.TempDir(), "state.json"), nil)
	processed := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	if err := store.Commit("/media/a.mkv", state.FileRecord{Signature: sig(10, 20), Fingerprint: "fp", ProcessedAt: processed}); err != nil {
		t.Fatal(err)
	}

	if err := store.RefreshSignature("/media/a.mkv", sig(10, 99)); err != nil {
		t.Fatalf("RefreshSignature failed: %v", err)
	}

	rec, _ := store.Lookup("/media/a.mkv")
	if rec.Signature != sig(10, 99) {
		t.Fatalf("signature not refreshed: %+v", rec)
	}
	if !rec.ProcessedAt.Equal(processed) {
		t.Fatalf("processed_at should be preserved, got %v", rec.ProcessedAt)
	}

	if err := store.RefreshSignature("/media/missing.mkv", sig(1, 2)); err == nil {
		t.Fatal("expected error refreshing unknown path")
	}
}

func TestForgetAndClear(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	store := state.Open(path, nil)
	for _, p := range []string{"/media/a.mkv", "/media/b.mkv"} {
		if err := store.Commit(p, state.FileRecord{Fingerprint: "fp"}); err != nil {
			t.Fatal(err)
		}
	}

	if err := store.Forget("/media/a.mkv"); err != nil {
		t.Fatal(err)
	}
	if _, ok := store.Lookup("/media/a.mkv"); ok {
		t.Fatal("record survived Forget")
	}
	if store.Len() != 1 {
		t.Fatalf("expected 1 record, got %d", store.Len())
	}

	if err := store.Clear(); err != nil {
		t.Fatal(err)
	}
	if state.Open(path, nil).Len() != 0 {
		t.Fatal("Clear not persisted")
	}
}

func TestSnapshotIsACopy(t *testing.T) {
	store := state.Open(filepath.Join(t.TempDir(), "state.json"), nil)
	if err := store.Commit("/media/a.mkv", state.FileRecord{Fingerprint: "fp"}); err != nil {
		t.Fatal(err)
	}

	snap := store.Snapshot()
	delete(snap, "/media/a.mkv")
	if _, ok := store.Lookup("/media/a.mkv"); !ok {
		t.Fatal("mutating a snapshot affected the store")
	}
}
