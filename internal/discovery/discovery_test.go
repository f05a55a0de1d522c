package discovery_test

import (
	"os"
	"path/filepath"
	"testing"

	"evenkeel/internal/config"
	"evenkeel/internal/discovery"
)

func testConfig(roots ...string) *config.Config {
	cfg := config.Default()
	cfg.Paths.Roots = roots
	cfg.Normalize.MinFileSizeMB = 0
	return &cfg
}

func TestEligible(t *testing.T) {
	cfg := testConfig("/media")
	cfg.Normalize.MinFileSizeMB = 1

	cases := []struct {
		name string
		path string
		size int64
		want bool
	}{
		{"eligible mkv", "/media/movie.mkv", 2 << 20, true},
		{"eligible mp4 uppercase ext", "/media/movie.MP4", 2 << 20, true},
		{"wrong extension", "/media/movie.avi", 2 << 20, false},
		{"sample token", "/media/movie.sample.mkv", 2 << 20, false},
		{"trailer token", "/media/Trailer.mkv", 2 << 20, false},
		{"below minimum size", "/media/short.mkv", 1 << 10, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := discovery.Eligible(cfg, tc.path, tc.size); got != tc.want {
				t.Fatalf("Eligible(%q, %d) = %v, want %v", tc.path, tc.size, got, tc.want)
			}
		})
	}
}

func TestEligibleSkipSamplesDisabled(t *testing.T) {
	cfg := testConfig("/media")
	cfg.Normalize.SkipSamples = false
	cfg.Normalize.MinFileSizeMB = 50

	// With sample skipping off, tokens and size are ignored.
	if !discovery.Eligible(cfg, "/media/sample.mkv", 10) {
		t.Fatal("expected eligibility with skip_samples disabled")
	}
}

func TestCollectWalksRecursively(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "show", "season 1")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{
		filepath.Join(root, "movie.mkv"),
		filepath.Join(nested, "episode.mp4"),
		filepath.Join(nested, "notes.txt"),
	} {
		if err := os.WriteFile(name, []byte("data"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	got, err := discovery.Collect(testConfig(root), nil)
	if err != nil {
		t.Fatalf("Collect failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 candidates, got %v", got)
	}
}

func TestCollectSkipsMissingRoot(t *testing.T) {
	present := t.TempDir()
	if err := os.WriteFile(filepath.Join(present, "a.mkv"), []byte("data"), 0o644); err != nil {
		t.Fatal(err)
	}

	got, err := discovery.Collect(testConfig(filepath.Join(present, "absent"), present), nil)
	if err != nil {
		t.Fatalf("Collect failed: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 candidate from surviving root, got %v", got)
	}
}
