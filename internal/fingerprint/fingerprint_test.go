package fingerprint_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"evenkeel/internal/fingerprint"
)

func writeFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestComputeDeterministic(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "a.bin", []byte("some media payload"))

	first, err := fingerprint.Compute(path)
	if err != nil {
		t.Fatalf("Compute failed: %v", err)
	}
	second, err := fingerprint.Compute(path)
	if err != nil {
		t.Fatal(err)
	}
	if first != second {
		t.Fatalf("fingerprint not deterministic: %q vs %q", first, second)
	}
	if len(first) != 32 {
		t.Fatalf("unexpected digest length: %d", len(first))
	}
}

func TestComputeIgnoresMTime(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "a.bin", []byte("identical content"))

	before, err := fingerprint.Compute(path)
	if err != nil {
		t.Fatal(err)
	}

	// Touch without a content change.
	future := time.Now().Add(time.Hour)
	if err := os.Chtimes(path, future, future); err != nil {
		t.Fatal(err)
	}

	after, err := fingerprint.Compute(path)
	if err != nil {
		t.Fatal(err)
	}
	if before != after {
		t.Fatal("fingerprint changed on mtime-only touch")
	}
}

func TestComputeDetectsContentChange(t *testing.T) {
	dir := t.TempDir()
	original := writeFile(t, dir, "a.bin", []byte("aaaaaaaaaaaaaaaa"))
	changed := writeFile(t, dir, "b.bin", []byte("aaaaaaaabaaaaaaa"))

	fpA, err := fingerprint.Compute(original)
	if err != nil {
		t.Fatal(err)
	}
	fpB, err := fingerprint.Compute(changed)
	if err != nil {
		t.Fatal(err)
	}
	if fpA == fpB {
		t.Fatal("same-size content edit produced an equal fingerprint")
	}
}

func TestComputeEmptyFile(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "empty.bin", nil)

	fp, err := fingerprint.Compute(path)
	if err != nil {
		t.Fatal(err)
	}
	if fp != "00000000000000000000000000000000" {
		t.Fatalf("unexpected empty-file fingerprint: %q", fp)
	}
}

func TestComputeMissingFile(t *testing.T) {
	if _, err := fingerprint.Compute(filepath.Join(t.TempDir(), "absent.bin")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestStat(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "a.bin", []byte("1234"))

	sig, err := fingerprint.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if sig.Size != 4 {
		t.Fatalf("unexpected size: %d", sig.Size)
	}
	if sig.MTimeNS == 0 {
		t.Fatal("expected non-zero mtime")
	}
}
