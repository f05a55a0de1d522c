package main

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"evenkeel/internal/state"
	"evenkeel/internal/testsupport"
)

// installMediaTools shadows the inert stubs with scripts that behave enough
// like the real tools to drive a scan end to end: ffprobe reports one video
// and one audio stream, ffmpeg answers volumedetect with a fixed peak and
// otherwise copies its input to its output.
func installMediaTools(t *testing.T) {
	t.Helper()
	dir := t.TempDir()

	probe := `#!/bin/sh
cat <<'JSON'
{"streams":[{"index":0,"codec_name":"h264","codec_type":"video"},{"index":1,"codec_name":"aac","codec_type":"audio","bit_rate":"128000","channels":2,"disposition":{"default":1}}],"format":{"nb_streams":2,"duration":"60.0"}}
JSON
`
	ffmpeg := `#!/bin/sh
case "$*" in
*volumedetect*)
	echo "[Parsed_volumedetect_0 @ 0x0] max_volume: -6.0 dB" >&2
	exit 0
	;;
esac
in=""
prev=""
out=""
for a in "$@"; do
	if [ "$prev" = "-i" ]; then in="$a"; fi
	prev="$a"
	out="$a"
done
cp "$in" "$out"
`
	for name, script := range map[string]string{"ffprobe": probe, "ffmpeg": ffmpeg} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(script), 0o755); err != nil {
			t.Fatalf("write %s stub: %v", name, err)
		}
	}
	t.Setenv("PATH", dir+string(os.PathListSeparator)+os.Getenv("PATH"))
}

func TestScanEmptyLibrary(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"scan"}, env.configPath)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	requireContains(t, out, "Discovered")
	requireContains(t, out, "0")
}

func TestScanRejectsMissingRoot(t *testing.T) {
	env := setupCLITestEnv(t)

	if _, _, err := runCLI(t, []string{"scan", "/definitely/not/a/root"}, env.configPath); err == nil {
		t.Fatal("expected error for missing root")
	}
}

func TestScanProcessesMoreFilesThanQueueHolds(t *testing.T) {
	env := setupCLITestEnv(t)
	installMediaTools(t)

	// Well past workers plus queue capacity; the walk must wait for a slot
	// rather than lose the overflow.
	const files = 18
	root := testsupport.LibraryRoot(env.cfg)
	paths := make([]string, 0, files)
	for i := 0; i < files; i++ {
		path := filepath.Join(root, fmt.Sprintf("e%02d.mkv", i))
		testsupport.WriteFile(t, path, 4096)
		paths = append(paths, path)
	}

	if _, _, err := runCLI(t, []string{"scan"}, env.configPath); err != nil {
		t.Fatalf("scan: %v", err)
	}

	st := state.Open(env.cfg.Paths.StateFile, nil)
	snapshot := st.Snapshot()
	for _, path := range paths {
		if _, ok := snapshot[path]; !ok {
			t.Fatalf("%s was never processed", path)
		}
	}
}

func TestScanToleratesOverlappingRoots(t *testing.T) {
	env := setupCLITestEnv(t)
	installMediaTools(t)

	root := testsupport.LibraryRoot(env.cfg)
	path := filepath.Join(root, "movie.mkv")
	testsupport.WriteFile(t, path, 4096)

	// The same root twice yields every candidate twice; the duplicate is
	// either rejected while the first copy is in flight or skipped once it
	// has been committed.
	out, _, err := runCLI(t, []string{"scan", root, root}, env.configPath)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	requireContains(t, out, "Discovered")

	st := state.Open(env.cfg.Paths.StateFile, nil)
	if _, ok := st.Snapshot()[path]; !ok {
		t.Fatal("file was never processed")
	}
}
