// Package ffmpeg runs declarative ffmpeg jobs and streams their machine
// readable progress.
//
// A Job lists inputs and outputs with their per-file options; the CLI engine
// renders it into an argument vector, reads "-progress pipe:1" key=value blocks
// from stdout, keeps a bounded tail of stderr for error reporting, and kills the
// process when the context is cancelled.
package ffmpeg

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"reelpack/internal/logging"
	"reelpack/internal/services"
)

var commandContext = exec.CommandContext

// Input is one "-i" source with the options that must precede it.
type Input struct {
	Path    string
	Options []string
}

// Output is one destination with the options that must precede it.
type Output struct {
	Path    string
	Options []string
}

// Job is a single ffmpeg invocation.
type Job struct {
	// Label identifies the job in logs and errors, e.g. "encode track 0".
	Label         string
	GlobalOptions []string
	Inputs        []Input
	Outputs       []Output
}

// Args renders the job as an ffmpeg argument vector.
func (j Job) Args() []string {
	args := []string{"-hide_banner", "-nostdin", "-y", "-v", "error", "-nostats", "-progress", "pipe:1"}
	args = append(args, j.GlobalOptions...)
	for _, in := range j.Inputs {
		args = append(args, in.Options...)
		args = append(args, "-i", in.Path)
	}
	for _, out := range j.Outputs {
		args = append(args, out.Options...)
		args = append(args, out.Path)
	}
	return args
}

// Progress is one "-progress" block reported by ffmpeg.
type Progress struct {
	Frame       int64
	FPS         float64
	BitrateKbps float64
	TotalSize   int64
	OutTime     string
	Speed       string
	// Done is set on the final block (progress=end).
	Done bool
}

// Engine executes jobs. Run blocks until the process exits and returns an
// error tagged services.ErrCancelled when ctx was cancelled, or
// services.ErrExternalTool when ffmpeg failed.
type Engine interface {
	Run(ctx context.Context, job Job, onProgress func(Progress)) error
}

// Option configures the CLI engine.
type Option func(*CLI)

// WithLogger attaches a logger for job start and failure records.
func WithLogger(logger *slog.Logger) Option {
	return func(c *CLI) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithStderrTail overrides how many bytes of stderr are kept for errors.
func WithStderrTail(n int) Option {
	return func(c *CLI) {
		if n > 0 {
			c.tailSize = n
		}
	}
}

// CLI runs jobs with the ffmpeg binary.
type CLI struct {
	binary   string
	logger   *slog.Logger
	tailSize int
}

// NewCLI constructs a CLI engine for binary (defaults to "ffmpeg").
func NewCLI(binary string, opts ...Option) *CLI {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		binary = "ffmpeg"
	}
	c := &CLI{binary: binary, logger: logging.NewNop(), tailSize: 4096}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run executes job, invoking onProgress for every progress block.
func (c *CLI) Run(ctx context.Context, job Job, onProgress func(Progress)) error {
	if len(job.Outputs) == 0 {
		return services.Wrap(services.ErrValidation, "ffmpeg", job.Label, "job has no outputs", nil)
	}
	if err := ctx.Err(); err != nil {
		return services.Cancelled("ffmpeg", job.Label, err)
	}

	args := job.Args()
	logger := logging.WithContext(ctx, c.logger)
	logger.Debug("ffmpeg starting", logging.String("job", job.Label), logging.String("args", strings.Join(args, " ")))

	cmd := commandContext(ctx, c.binary, args...) //nolint:gosec
	cmd.WaitDelay = 5 * time.Second
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("stdout pipe: %w", err)
	}
	tail := newTailBuffer(c.tailSize)
	cmd.Stderr = tail

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return services.Wrap(services.ErrExternalTool, "ffmpeg", job.Label, "start "+c.binary, err)
	}

	scanErr := scanProgress(stdout, onProgress)
	if scanErr != nil {
		_, _ = io.Copy(io.Discard, stdout)
	}
	waitErr := cmd.Wait()

	if ctxErr := ctx.Err(); ctxErr != nil {
		logger.Info("ffmpeg cancelled", logging.String("job", job.Label))
		return services.Cancelled("ffmpeg", job.Label, ctxErr)
	}
	if waitErr != nil {
		detail := tail.String()
		logging.ErrorWithContext(logger, "ffmpeg failed", "ffmpeg_failed",
			logging.String("job", job.Label),
			logging.String("stderr", detail),
			logging.Error(waitErr),
			logging.String(logging.FieldErrorHint, "rerun with logging.level=debug to see the full command"),
		)
		return services.Wrap(services.ErrExternalTool, "ffmpeg", job.Label, detail, waitErr)
	}
	if scanErr != nil {
		return fmt.Errorf("read ffmpeg progress: %w", scanErr)
	}
	logger.Debug("ffmpeg finished", logging.String("job", job.Label), logging.Duration("elapsed", time.Since(start)))
	return nil
}

func scanProgress(r io.Reader, onProgress func(Progress)) error {
	scanner := bufio.NewScanner(r)
	var current Progress
	for scanner.Scan() {
		key, value, ok := strings.Cut(strings.TrimSpace(scanner.Text()), "=")
		if !ok {
			continue
		}
		value = strings.TrimSpace(value)
		switch key {
		case "frame":
			current.Frame, _ = strconv.ParseInt(value, 10, 64)
		case "fps":
			current.FPS, _ = strconv.ParseFloat(value, 64)
		case "bitrate":
			current.BitrateKbps = parseBitrate(value)
		case "total_size":
			current.TotalSize, _ = strconv.ParseInt(value, 10, 64)
		case "out_time":
			current.OutTime = value
		case "speed":
			current.Speed = value
		case "progress":
			current.Done = value == "end"
			if onProgress != nil {
				onProgress(current)
			}
			current = Progress{}
		}
	}
	return scanner.Err()
}

// parseBitrate converts values such as "1234.5kbits/s" to kbit/s; "N/A" is 0.
func parseBitrate(value string) float64 {
	value = strings.TrimSuffix(strings.TrimSpace(value), "kbits/s")
	v, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0
	}
	return v
}

// tailBuffer keeps the last size bytes written to it.
type tailBuffer struct {
	mu   sync.Mutex
	size int
	buf  []byte
}

func newTailBuffer(size int) *tailBuffer {
	return &tailBuffer{size: size}
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buf = append(t.buf, p...)
	if over := len(t.buf) - t.size; over > 0 {
		t.buf = append(t.buf[:0], t.buf[over:]...)
	}
	return len(p), nil
}

func (t *tailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return strings.TrimSpace(string(t.buf))
}

var _ Engine = (*CLI)(nil)
