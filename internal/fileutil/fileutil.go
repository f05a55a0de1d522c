package fileutil

import (
	"fmt"
	"os"
	"time"

	"evenkeel/internal/services"
)

const (
	// minOutputBytes rejects outputs that are obviously truncated.
	minOutputBytes = 1024
	// minOutputFraction guards against an encode that "succeeded" but wrote
	// a fraction of the expected container.
	minOutputFraction = 0.5

	replaceRetries        = 6
	replaceInitialBackoff = 500 * time.Millisecond
)

// CheckOutputSanity verifies a freshly encoded output is plausible before it
// is allowed to replace the original: it must exist, be at least 1 KiB, and
// be no smaller than half the source. Audio is a small share of a video
// container, so a legitimate re-encode never shrinks a file that far.
func CheckOutputSanity(outputPath string, sourceSize int64) error {
	info, err := os.Stat(outputPath)
	if err != nil {
		return services.Wrap(services.ErrReplace, "replacer", "stat output", "", err)
	}
	if info.Size() < minOutputBytes {
		return services.Wrap(services.ErrReplace, "replacer", "sanity check",
			fmt.Sprintf("output %d bytes, below the %d byte minimum", info.Size(), minOutputBytes), nil)
	}
	if sourceSize > 0 && float64(info.Size()) < float64(sourceSize)*minOutputFraction {
		return services.Wrap(services.ErrReplace, "replacer", "sanity check",
			fmt.Sprintf("output %d bytes suspiciously small against %d byte source", info.Size(), sourceSize), nil)
	}
	return nil
}

// ReplaceFile atomically swaps originalPath for tempPath. Both must live on
// the same filesystem so the rename is a single atomic operation; the
// original is either fully replaced or untouched. Transient failures (an
// indexer or scanner briefly holding the file) are retried with backoff. On
// permanent failure the temp output is discarded.
func ReplaceFile(originalPath, tempPath string) error {
	var lastErr error
	backoff := replaceInitialBackoff
	for attempt := 1; attempt <= replaceRetries; attempt++ {
		if err := os.Rename(tempPath, originalPath); err == nil {
			return nil
		} else {
			lastErr = err
		}
		if _, err := os.Stat(tempPath); err != nil {
			// Temp vanished mid-swap; nothing left to retry with.
			return services.Wrap(services.ErrReplace, "replacer", "rename", "temp output missing", lastErr)
		}
		if attempt < replaceRetries {
			time.Sleep(backoff)
			backoff = backoff * 3 / 2
		}
	}
	_ = os.Remove(tempPath)
	return services.Wrap(services.ErrReplace, "replacer", "rename",
		fmt.Sprintf("gave up after %d attempts", replaceRetries), lastErr)
}
