// Package deps verifies the external tools and paths evenkeel needs.
package deps

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"evenkeel/internal/config"
	"evenkeel/internal/services"
)

// Requirement defines an external dependency evenkeel relies on.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

// Status reports the availability of a dependency.
type Status struct {
	Name        string
	Command     string
	Description string
	Optional    bool
	Available   bool
	Detail      string
}

// Requirements returns the binaries evenkeel invokes.
func Requirements(cfg *config.Config) []Requirement {
	return []Requirement{
		{Name: "FFmpeg", Command: cfg.FFmpegBinary(), Description: "Peak measurement and audio transcoding"},
		{Name: "FFprobe", Command: cfg.FFprobeBinary(), Description: "Stream inspection"},
	}
}

// CheckBinaries evaluates the provided requirements and reports availability.
func CheckBinaries(requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		cmd := strings.TrimSpace(req.Command)
		status := Status{
			Name:        req.Name,
			Command:     cmd,
			Description: strings.TrimSpace(req.Description),
			Optional:    req.Optional,
		}
		if cmd == "" {
			status.Available = false
			status.Detail = "command not configured"
			results = append(results, status)
			continue
		}
		if _, err := exec.LookPath(cmd); err != nil {
			status.Available = false
			status.Detail = fmt.Sprintf("binary %q not found", cmd)
			results = append(results, status)
			continue
		}
		status.Available = true
		results = append(results, status)
	}
	return results
}

// CheckRoots reports which configured library roots are missing or not
// directories.
func CheckRoots(cfg *config.Config) []Status {
	results := make([]Status, 0, len(cfg.Paths.Roots))
	for _, root := range cfg.Paths.Roots {
		status := Status{Name: "Library root", Command: root}
		info, err := os.Stat(root)
		switch {
		case err != nil:
			status.Detail = "directory not found"
		case !info.IsDir():
			status.Detail = "not a directory"
		default:
			status.Available = true
		}
		results = append(results, status)
	}
	return results
}

// Verify returns an error when any required dependency is unavailable.
func Verify(cfg *config.Config) error {
	var missing []string
	for _, status := range CheckBinaries(Requirements(cfg)) {
		if !status.Available && !status.Optional {
			missing = append(missing, status.Command)
		}
	}
	for _, status := range CheckRoots(cfg) {
		if !status.Available {
			missing = append(missing, status.Command)
		}
	}
	if len(missing) > 0 {
		return services.Wrap(services.ErrConfiguration, "deps", "verify",
			strings.Join(missing, ", "), errors.New("missing dependencies"))
	}
	return nil
}
