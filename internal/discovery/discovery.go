package discovery

import (
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"evenkeel/internal/config"
	"evenkeel/internal/logging"
)

// videoExtensions are the container types eligible for normalization.
var videoExtensions = map[string]struct{}{
	".mkv": {},
	".mp4": {},
	".mov": {},
	".m4v": {},
}

// sampleTokens mark bundled promo material skipped when skip_samples is on.
var sampleTokens = []string{"sample", "trailer", "teaser"}

// HasVideoExtension reports whether path carries a container extension the
// pipeline understands.
func HasVideoExtension(path string) bool {
	_, ok := videoExtensions[strings.ToLower(filepath.Ext(path))]
	return ok
}

// Eligible applies the full candidacy filter: extension, sample-name tokens,
// and minimum size. It is shared by the batch scan and the watcher so a path
// becomes a job the same way in both modes.
func Eligible(cfg *config.Config, path string, size int64) bool {
	if !HasVideoExtension(path) {
		return false
	}
	if !cfg.Normalize.SkipSamples {
		return true
	}
	name := strings.ToLower(filepath.Base(path))
	for _, token := range sampleTokens {
		if strings.Contains(name, token) {
			return false
		}
	}
	return size >= cfg.MinFileSizeBytes()
}

// Collect walks the configured roots and returns eligible candidate paths in
// walk order. Missing roots are logged and skipped; a batch run should still
// cover the roots that do exist.
func Collect(cfg *config.Config, logger *slog.Logger) ([]string, error) {
	if logger == nil {
		logger = logging.NewNop()
	}

	var candidates []string
	for _, root := range cfg.Paths.Roots {
		if _, err := os.Stat(root); err != nil {
			logger.Warn("library root unavailable", logging.String("root", root), logging.Error(err))
			continue
		}
		err := filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
			if err != nil {
				logger.Warn("walk error", logging.String("path", path), logging.Error(err))
				return nil
			}
			if entry.IsDir() || !HasVideoExtension(path) {
				return nil
			}
			info, err := entry.Info()
			if err != nil {
				logger.Warn("stat during walk", logging.String("path", path), logging.Error(err))
				return nil
			}
			if Eligible(cfg, path, info.Size()) {
				candidates = append(candidates, path)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return candidates, nil
}
