// Package unpack restores the original image files from an archive.
//
// The embedded index is read first (or taken from the caller), every video
// stream is decoded to an image sequence in a scratch directory inside the
// destination, and the frames are then moved to the paths recorded in the
// index. The scratch directory is removed on every exit path.
package unpack

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"reelpack/internal/archiveindex"
	"reelpack/internal/encoders"
	"reelpack/internal/fileutil"
	"reelpack/internal/logging"
	"reelpack/internal/media/ffmpeg"
	"reelpack/internal/media/imagefmt"
	"reelpack/internal/progress"
	"reelpack/internal/reveal"
	"reelpack/internal/services"
)

// State is a step of the unpack state machine.
type State string

const (
	StateIdle           State = "idle"
	StateReadIndex      State = "read_index"
	StatePerTrackDecode State = "per_track_decode"
	StateRelocate       State = "relocate"
	StateCleanup        State = "cleanup"
	StateDone           State = "done"
	StateFailed         State = "failed"
	StateCancelled      State = "cancelled"
)

// ScratchPrefix names the per-run working directory created in the destination.
const ScratchPrefix = ".reelpack-"

// Request describes one unpack run.
type Request struct {
	Archive     string
	Destination string
	// Index skips reading the embedded attachment when set.
	Index *archiveindex.Index
	// Output converts every frame to one format; nil keeps each track's type.
	Output *encoders.ImageOutput
}

// Option configures an Unpacker.
type Option func(*Unpacker)

// WithRevealer reveals the destination folder after a successful run.
func WithRevealer(r reveal.Revealer) Option {
	return func(u *Unpacker) {
		if r != nil {
			u.revealer = r
		}
	}
}

// WithStateObserver receives every state transition.
func WithStateObserver(fn func(State)) Option {
	return func(u *Unpacker) { u.observe = fn }
}

// Unpacker runs the unpack pipeline.
type Unpacker struct {
	engine   ffmpeg.Engine
	revealer reveal.Revealer
	logger   *slog.Logger
	observe  func(State)
}

// New constructs an Unpacker.
func New(engine ffmpeg.Engine, logger *slog.Logger, opts ...Option) *Unpacker {
	u := &Unpacker{
		engine:   engine,
		revealer: reveal.Nop{},
		logger:   logging.NewComponentLogger(logger, "unpack"),
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

// ReadIndex extracts and validates the embedded index without decoding any
// frames.
func (u *Unpacker) ReadIndex(ctx context.Context, archive string) (archiveindex.Index, error) {
	if err := checkArchive(archive); err != nil {
		return archiveindex.Index{}, err
	}
	dir, err := os.MkdirTemp("", "reelpack-index-")
	if err != nil {
		return archiveindex.Index{}, fmt.Errorf("create temp directory: %w", err)
	}
	defer os.RemoveAll(dir)
	return u.dumpIndex(ctx, archive, dir)
}

// Unpack restores every image in req.Archive under req.Destination and
// returns the destination directory.
func (u *Unpacker) Unpack(ctx context.Context, req Request, emit progress.Sink) (string, error) {
	logger := logging.WithContext(ctx, u.logger)
	if u.engine == nil {
		return "", services.Wrap(services.ErrConfiguration, "unpack", "", "codec engine not configured", nil)
	}
	if strings.TrimSpace(req.Destination) == "" {
		return "", services.Wrap(services.ErrValidation, "unpack", "", "destination directory is required", nil)
	}
	if err := checkArchive(req.Archive); err != nil {
		return "", err
	}
	var frameOpts []string
	if req.Output != nil {
		opts, err := encoders.ImageOptions(*req.Output)
		if err != nil {
			return "", err
		}
		frameOpts = opts
	}

	dest, err := filepath.Abs(req.Destination)
	if err != nil {
		return "", fmt.Errorf("resolve destination: %w", err)
	}
	if err := os.MkdirAll(dest, 0o755); err != nil {
		return "", fmt.Errorf("create destination: %w", err)
	}

	run := &unpackRun{
		unpacker:  u,
		logger:    logger,
		emit:      emit,
		state:     StateIdle,
		dest:      dest,
		scratch:   filepath.Join(dest, ScratchPrefix+uuid.NewString()),
		output:    req.Output,
		frameOpts: frameOpts,
	}
	start := time.Now()
	err = run.execute(ctx, req)

	run.transition(StateCleanup)
	if rmErr := os.RemoveAll(run.scratch); rmErr != nil {
		logger.Warn("scratch cleanup failed", logging.String("path", run.scratch), logging.Error(rmErr))
	}

	switch {
	case err == nil:
		run.transition(StateDone)
		logger.Info("archive unpacked",
			logging.String("archive", req.Archive),
			logging.String("destination", dest),
			logging.Int("images", run.restored),
			logging.Duration("elapsed", time.Since(start)),
		)
		if revealErr := u.revealer.Reveal(ctx, dest); revealErr != nil {
			logger.Warn("reveal failed", logging.String("path", dest), logging.Error(revealErr))
		}
		return dest, nil
	case services.IsCancellation(err) || ctx.Err() != nil:
		run.transition(StateCancelled)
		if !services.IsCancellation(err) {
			err = services.Wrap(services.ErrCancelled, "unpack", "", "operation cancelled", err)
		}
		return "", err
	default:
		run.transition(StateFailed)
		return "", err
	}
}

type unpackRun struct {
	unpacker  *Unpacker
	logger    *slog.Logger
	emit      progress.Sink
	state     State
	dest      string
	scratch   string
	output    *encoders.ImageOutput
	frameOpts []string
	restored  int
}

func (r *unpackRun) transition(next State) {
	r.logger.Debug("unpack state", logging.String("from", string(r.state)), logging.String("to", string(next)))
	r.state = next
	if r.unpacker.observe != nil {
		r.unpacker.observe(next)
	}
}

func (r *unpackRun) execute(ctx context.Context, req Request) error {
	if err := os.MkdirAll(r.scratch, 0o755); err != nil {
		return fmt.Errorf("create scratch directory: %w", err)
	}

	r.transition(StateReadIndex)
	var idx archiveindex.Index
	if req.Index != nil {
		if err := req.Index.Validate(); err != nil {
			return err
		}
		idx = *req.Index
	} else {
		var err error
		if idx, err = r.unpacker.dumpIndex(ctx, req.Archive, r.scratch); err != nil {
			return err
		}
	}
	for _, entry := range idx.ImageList {
		if _, err := entry.Resolve(r.dest); err != nil {
			return err
		}
	}

	r.transition(StatePerTrackDecode)
	counts := idx.TrackCounts()
	for track := range idx.TrackList {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := r.decodeTrack(ctx, req.Archive, idx, track, counts[track], len(counts)); err != nil {
			return err
		}
	}

	r.transition(StateRelocate)
	for track := range idx.TrackList {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := r.relocate(idx, track); err != nil {
			return err
		}
	}
	return nil
}

func (r *unpackRun) trackType(idx archiveindex.Index, track int) imagefmt.Type {
	if r.output != nil {
		return r.output.Type
	}
	t, _ := idx.TrackType(track)
	return t
}

func framePattern(dir string, track int, t imagefmt.Type) string {
	return filepath.Join(dir, fmt.Sprintf("track_%d_%%d.%s", track, t.Extension()))
}

func framePath(dir string, track, file int, t imagefmt.Type) string {
	return filepath.Join(dir, fmt.Sprintf("track_%d_%d.%s", track, file, t.Extension()))
}

func (r *unpackRun) decodeTrack(ctx context.Context, archive string, idx archiveindex.Index, track, frames, trackCount int) error {
	imageType := r.trackType(idx, track)
	opts := []string{"-map", fmt.Sprintf("0:v:%d", track), "-frames:v", fmt.Sprint(frames)}
	if r.output != nil {
		opts = append(opts, r.frameOpts...)
	} else {
		opts = append(opts, encoders.DefaultFrameOptions...)
	}
	opts = append(opts, "-f", "image2")
	job := ffmpeg.Job{
		Label:   fmt.Sprintf("decode track %d", track),
		Inputs:  []ffmpeg.Input{{Path: archive}},
		Outputs: []ffmpeg.Output{{Path: framePattern(r.scratch, track, imageType), Options: opts}},
	}
	r.logger.Info("decoding track",
		logging.Track(track),
		logging.Int("track_count", trackCount),
		logging.Int("frames", frames),
		logging.String("image_type", string(imageType)),
	)

	ref := progress.TrackRef(track)
	message := fmt.Sprintf("decoding track %d/%d", track+1, trackCount)
	sampler := logging.NewProgressSampler(0)
	return r.unpacker.engine.Run(ctx, job, func(p ffmpeg.Progress) {
		event := progress.Event{
			Message:         message,
			FrameCount:      p.Frame,
			TotalFrames:     int64(frames),
			CurrentFPS:      p.FPS,
			CurrentKbps:     p.BitrateKbps,
			TargetSizeBytes: p.TotalSize,
			Timemark:        p.OutTime,
			Phase:           progress.PhaseUnzipping,
			Track:           ref,
			TrackCount:      trackCount,
		}
		r.emit.Emit(event)
		if pct := event.Percent(); sampler.ShouldLog(pct, string(event.Phase)) {
			r.logger.Info("unpack progress", logging.Track(track), logging.Float64("percent", pct), logging.Int64("frame", p.Frame))
		}
	})
}

func (r *unpackRun) relocate(idx archiveindex.Index, track int) error {
	imageType := r.trackType(idx, track)
	for _, entry := range idx.Entries(track) {
		src := framePath(r.scratch, track, entry.FrameFile(), imageType)
		dst, err := entry.Resolve(r.dest)
		if err != nil {
			return err
		}
		if r.output != nil {
			dst = imageType.ReplaceExtension(dst)
		}
		if _, err := os.Stat(src); err != nil {
			return services.Wrap(services.ErrExternalTool, "unpack", fmt.Sprintf("track %d", track),
				fmt.Sprintf("decoder did not produce frame %d", entry.Index), err)
		}
		if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
			return fmt.Errorf("create %s: %w", filepath.Dir(dst), err)
		}
		if err := fileutil.MoveFile(src, dst); err != nil {
			return fmt.Errorf("move frame to %s: %w", dst, err)
		}
		r.restored++
	}
	return nil
}

func (u *Unpacker) dumpIndex(ctx context.Context, archive, dir string) (archiveindex.Index, error) {
	target := filepath.Join(dir, archiveindex.FileName)
	job := ffmpeg.Job{
		Label: "read index",
		Inputs: []ffmpeg.Input{{
			Path:    archive,
			Options: []string{"-dump_attachment:t:0", target},
		}},
		Outputs: []ffmpeg.Output{{Path: "-", Options: []string{"-map", "0:v:0", "-frames:v", "1", "-f", "null"}}},
	}
	runErr := u.engine.Run(ctx, job, nil)
	if services.IsCancellation(runErr) {
		return archiveindex.Index{}, runErr
	}
	defer os.Remove(target)

	data, err := os.ReadFile(target)
	if err != nil {
		if runErr != nil {
			return archiveindex.Index{}, fmt.Errorf("%w: %w", archiveindex.ErrIndexMissing, runErr)
		}
		return archiveindex.Index{}, fmt.Errorf("%w: %w", archiveindex.ErrIndexMissing, err)
	}
	if runErr != nil {
		u.logger.Debug("index dumped despite ffmpeg error", logging.Error(runErr))
	}
	return archiveindex.Parse(data)
}

func checkArchive(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return services.Wrap(services.ErrNotFound, "unpack", "", "archive "+path, err)
		}
		return fmt.Errorf("stat archive: %w", err)
	}
	if info.IsDir() {
		return services.Wrap(services.ErrValidation, "unpack", "", path+" is a directory", nil)
	}
	return nil
}
