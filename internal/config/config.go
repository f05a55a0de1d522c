package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and state-file configuration.
type Paths struct {
	// Roots are the library directories scanned and watched recursively.
	Roots []string `toml:"roots"`
	// StateFile is the JSON document recording processed files.
	StateFile string `toml:"state_file"`
	// LogDir receives the append-only log file and the daemon lock.
	LogDir string `toml:"log_dir"`
	// HistoryDB is the SQLite ledger of job outcomes.
	HistoryDB string `toml:"history_db"`
}

// Normalize contains the peak-normalization targets and eligibility rules.
type Normalize struct {
	TargetPeakDBFS float64 `toml:"target_peak_dbfs"`
	// MinBitrate is the floor for lossy re-encodes, e.g. "192k". The floor is
	// scaled by channel count relative to stereo.
	MinBitrate    string `toml:"min_bitrate"`
	Faststart     bool   `toml:"faststart"`
	SkipSamples   bool   `toml:"skip_samples"`
	MinFileSizeMB int    `toml:"min_file_size_mb"`
}

// Scheduler contains worker-pool and subprocess limits.
type Scheduler struct {
	Workers                  int `toml:"workers"`
	FFmpegThreads            int `toml:"ffmpeg_threads"`
	SubprocessTimeoutSeconds int `toml:"subprocess_timeout_seconds"`
}

// Watcher contains the readiness-gate timing for newly arrived files.
type Watcher struct {
	SettleSeconds int `toml:"settle_seconds"`
	PollSeconds   int `toml:"poll_seconds"`
	StableChecks  int `toml:"stable_checks"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for evenkeel.
//
// Configuration sections by subsystem:
//   - Paths: library roots, state file, log directory, history database
//   - Normalize: target peak, bitrate floor, container and sample handling
//   - Scheduler: worker pool size and per-job ffmpeg limits
//   - Watcher: settle delay and size-stability polling
//   - Logging: log format and level
type Config struct {
	Paths     Paths     `toml:"paths"`
	Normalize Normalize `toml:"normalize"`
	Scheduler Scheduler `toml:"scheduler"`
	Watcher   Watcher   `toml:"watcher"`
	Logging   Logging   `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/evenkeel/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config
// has all path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("evenkeel.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

func (c *Config) normalize() error {
	for i, root := range c.Paths.Roots {
		expanded, err := expandPath(root)
		if err != nil {
			return err
		}
		c.Paths.Roots[i] = expanded
	}
	for _, field := range []*string{&c.Paths.StateFile, &c.Paths.LogDir, &c.Paths.HistoryDB} {
		expanded, err := expandPath(*field)
		if err != nil {
			return err
		}
		*field = expanded
	}
	c.Normalize.MinBitrate = strings.TrimSpace(c.Normalize.MinBitrate)
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	return nil
}

// Validate reports configuration values the pipeline cannot run with.
func (c *Config) Validate() error {
	if len(c.Paths.Roots) == 0 {
		return errors.New("config: at least one library root is required")
	}
	if strings.TrimSpace(c.Paths.StateFile) == "" {
		return errors.New("config: state_file is required")
	}
	if _, err := ParseBitrate(c.Normalize.MinBitrate); err != nil {
		return fmt.Errorf("config: min_bitrate: %w", err)
	}
	if c.Normalize.TargetPeakDBFS > 0 {
		return fmt.Errorf("config: target_peak_dbfs must be at or below full scale, got %v", c.Normalize.TargetPeakDBFS)
	}
	if c.Scheduler.Workers < 1 {
		return fmt.Errorf("config: workers must be positive, got %d", c.Scheduler.Workers)
	}
	if c.Scheduler.FFmpegThreads < 1 {
		return fmt.Errorf("config: ffmpeg_threads must be positive, got %d", c.Scheduler.FFmpegThreads)
	}
	if c.Watcher.SettleSeconds < 0 || c.Watcher.PollSeconds < 1 || c.Watcher.StableChecks < 1 {
		return errors.New("config: watcher timing values must be positive")
	}
	return nil
}

// EnsureDirectories creates the directories the daemon writes into.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.Paths.LogDir, filepath.Dir(c.Paths.StateFile), filepath.Dir(c.Paths.HistoryDB)}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// FFmpegBinary returns the ffmpeg executable name.
func (c *Config) FFmpegBinary() string {
	return "ffmpeg"
}

// FFprobeBinary returns the ffprobe executable name.
func (c *Config) FFprobeBinary() string {
	return "ffprobe"
}

// MinFileSizeBytes returns the minimum eligible file size in bytes.
func (c *Config) MinFileSizeBytes() int64 {
	return int64(c.Normalize.MinFileSizeMB) * 1024 * 1024
}

// MinBitrateBPS returns the configured bitrate floor in bits per second.
func (c *Config) MinBitrateBPS() int64 {
	bps, err := ParseBitrate(c.Normalize.MinBitrate)
	if err != nil {
		return 0
	}
	return bps
}

// ParseBitrate converts values like "192k" or "1.5m" to bits per second.
func ParseBitrate(value string) (int64, error) {
	cleaned := strings.ToLower(strings.TrimSpace(value))
	if cleaned == "" {
		return 0, errors.New("empty bitrate")
	}
	multiplier := int64(1)
	switch {
	case strings.HasSuffix(cleaned, "k"):
		multiplier = 1000
		cleaned = strings.TrimSuffix(cleaned, "k")
	case strings.HasSuffix(cleaned, "m"):
		multiplier = 1000 * 1000
		cleaned = strings.TrimSuffix(cleaned, "m")
	}
	parsed, err := strconv.ParseFloat(cleaned, 64)
	if err != nil || parsed <= 0 {
		return 0, fmt.Errorf("invalid bitrate %q", value)
	}
	return int64(parsed * float64(multiplier)), nil
}

// SampleConfig returns the embedded sample configuration document.
func SampleConfig() string {
	return sampleConfig
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}
