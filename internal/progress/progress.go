// Package progress wraps the terminal progress bar used by one-shot scans.
// All methods are no-ops when the bar is disabled, so callers never branch
// on TTY detection themselves.
package progress

import (
	"fmt"
	"os"
	"time"

	"github.com/schollz/progressbar/v3"
)

const updateInterval = 50 * time.Millisecond

// Bar wraps progressbar with enabled/disabled handling.
type Bar struct {
	bar *progressbar.ProgressBar
}

// New creates a progress bar over total items. If enabled is false, every
// method is a no-op.
func New(enabled bool, total int64) *Bar {
	if !enabled {
		return &Bar{}
	}
	opts := []progressbar.Option{
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionThrottle(updateInterval),
		progressbar.OptionClearOnFinish(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
	}
	return &Bar{bar: progressbar.NewOptions64(total, opts...)}
}

// Add advances the bar by n items.
func (b *Bar) Add(n int) {
	if b.bar != nil {
		_ = b.bar.Add(n)
	}
}

// Describe updates the progress bar description.
func (b *Bar) Describe(s string) {
	if b.bar != nil {
		b.bar.Describe(s)
	}
}

// Finish completes the bar and prints a final message.
func (b *Bar) Finish(message string) {
	if b.bar != nil {
		_ = b.bar.Finish()
		fmt.Fprintln(os.Stderr, message)
	}
}
