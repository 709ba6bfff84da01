package preflight

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"golang.org/x/sys/unix"

	"reelpack/internal/config"
	"reelpack/internal/deps"
	"reelpack/internal/encoders"
)

// MinScratchFree is the free space below which the scratch check fails.
const MinScratchFree = 1 << 30

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes the directory checks for cfg.
func RunAll(_ context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}
	results := []Result{
		CheckDirectoryAccess("Scratch directory", cfg.Paths.ScratchDir),
		CheckDirectoryAccess("Preview directory", cfg.Paths.PreviewDir),
		CheckFreeSpace("Scratch free space", cfg.Paths.ScratchDir, MinScratchFree),
	}
	if cfg.Paths.LogDir != "" {
		results = append(results, CheckDirectoryAccess("Log directory", cfg.Paths.LogDir))
	}
	return results
}

// Failed returns the results that did not pass.
func Failed(results []Result) []Result {
	var out []Result
	for _, r := range results {
		if !r.Passed {
			out = append(out, r)
		}
	}
	return out
}

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckFreeSpace verifies that the filesystem holding path has at least min
// bytes available to unprivileged users.
func CheckFreeSpace(name, path string, min uint64) Result {
	free, err := FreeBytes(path)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: statfs: %v)", path, err)}
	}
	detail := fmt.Sprintf("%s free on %s", humanize.IBytes(free), path)
	if free < min {
		return Result{Name: name, Detail: fmt.Sprintf("%s (need %s)", detail, humanize.IBytes(min))}
	}
	return Result{Name: name, Passed: true, Detail: detail}
}

// FreeBytes returns the space available on the filesystem holding path. A
// missing path is resolved to its nearest existing parent.
func FreeBytes(path string) (uint64, error) {
	for {
		if _, err := os.Stat(path); err == nil {
			break
		}
		parent := filepath.Dir(path)
		if parent == path {
			break
		}
		path = parent
	}
	var st unix.Statfs_t
	if err := unix.Statfs(path, &st); err != nil {
		return 0, err
	}
	return st.Bavail * uint64(st.Bsize), nil
}

// CheckSystemDeps evaluates the external binaries and reports whether the
// configured encoder is compiled into ffmpeg.
func CheckSystemDeps(ctx context.Context, cfg *config.Config) []deps.Status {
	statuses := deps.CheckBinaries(deps.CodecRequirements(cfg.FFmpegBinary(), cfg.FFprobeBinary()))
	if !statuses[0].Available {
		return statuses
	}
	settings, err := cfg.EncoderSettings()
	if err != nil {
		return append(statuses, deps.Status{Name: "Encoder", Detail: err.Error()})
	}
	status := deps.Status{
		Name:        "Encoder",
		Command:     string(settings.Encoder),
		Description: fmt.Sprintf("Configured %s/%s encoder", cfg.Encoder.Family, cfg.Encoder.Hardware),
	}
	available, err := deps.AvailableEncoders(ctx, statuses[0].Command)
	switch {
	case err != nil:
		status.Detail = err.Error()
	case !available[settings.Encoder]:
		status.Detail = fmt.Sprintf("ffmpeg build lacks %s", settings.Encoder)
		status.Detail += alternatives(available)
	default:
		status.Available = true
	}
	return append(statuses, status)
}

func alternatives(available map[encoders.ID]bool) string {
	var names []string
	for _, spec := range encoders.Specs() {
		if available[spec.ID] {
			names = append(names, string(spec.ID))
		}
	}
	if len(names) == 0 {
		return ""
	}
	return fmt.Sprintf(" (available: %v)", names)
}
