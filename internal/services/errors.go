package services

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel markers for job failure classification. Every error that crosses a
// component boundary wraps exactly one of these so the pipeline can decide
// whether a path is skipped for the cycle, failed, or fatal to startup.
var (
	// ErrIO marks unreadable files or disk problems. The path is skipped this
	// cycle and never recorded as processed.
	ErrIO = errors.New("io error")
	// ErrProbe marks ffprobe/volumedetect failures. The job fails for the
	// cycle with no in-run retry.
	ErrProbe = errors.New("probe error")
	// ErrEncode marks transcode failures after the fallback sequence is
	// exhausted. The original file is untouched.
	ErrEncode = errors.New("encode error")
	// ErrReplace marks rename or output sanity-check failures.
	ErrReplace = errors.New("replace error")
	// ErrConfiguration marks cannot-proceed conditions detected at startup,
	// such as missing external binaries or absent library roots.
	ErrConfiguration = errors.New("configuration error")
)

// Wrap builds an error message that includes component context while tagging it
// with the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrIO
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Classify returns the sentinel a wrapped error carries, or nil for errors
// outside the taxonomy.
func Classify(err error) error {
	for _, marker := range []error{ErrIO, ErrProbe, ErrEncode, ErrReplace, ErrConfiguration} {
		if errors.Is(err, marker) {
			return marker
		}
	}
	return nil
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
