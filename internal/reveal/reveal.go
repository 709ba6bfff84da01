// Package reveal shows finished archives and unpack folders in the desktop
// file browser.
package reveal

import (
	"context"
	"log/slog"
	"os/exec"
	"path/filepath"
	"runtime"

	"reelpack/internal/logging"
	"reelpack/internal/services"
)

var commandContext = exec.CommandContext

// Revealer surfaces a path to the user after an operation completes.
type Revealer interface {
	Reveal(ctx context.Context, path string) error
}

// Nop ignores every reveal request.
type Nop struct{}

// Reveal implements Revealer.
func (Nop) Reveal(context.Context, string) error { return nil }

// Desktop launches the platform file browser.
type Desktop struct {
	GOOS   string
	logger *slog.Logger
}

// NewDesktop returns a Desktop revealer for the running platform.
func NewDesktop(logger *slog.Logger) *Desktop {
	return &Desktop{GOOS: runtime.GOOS, logger: logging.NewComponentLogger(logger, "reveal")}
}

// Reveal opens the containing folder of path (selecting the file where the
// platform supports it). The launcher is started but not awaited.
func (d *Desktop) Reveal(ctx context.Context, path string) error {
	name, args := Command(d.GOOS, path)
	cmd := commandContext(ctx, name, args...)
	if err := cmd.Start(); err != nil {
		return services.Wrap(services.ErrExternalTool, "reveal", name, "start file browser", err)
	}
	go func() {
		if err := cmd.Wait(); err != nil && d.logger != nil {
			d.logger.Debug("file browser exited", logging.String("path", path), logging.Error(err))
		}
	}()
	return nil
}

// Command returns the launcher invocation used on goos.
func Command(goos, path string) (string, []string) {
	switch goos {
	case "darwin":
		return "open", []string{"-R", path}
	case "windows":
		return "explorer", []string{"/select," + path}
	default:
		return "xdg-open", []string{filepath.Dir(path)}
	}
}
