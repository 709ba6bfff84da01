package pack

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
	"reelpack/internal/logging"
	"reelpack/internal/media/ffmpeg"
	"reelpack/internal/progress"
	"reelpack/internal/reveal"
	"reelpack/internal/services"
	"reelpack/internal/tracks"
)

// State is a step of the pack state machine.
type State string

const (
	StateIdle           State = "idle"
	StatePreparing      State = "preparing"
	StatePerTrackEncode State = "per_track_encode"
	StateMux            State = "mux"
	StateFinalize       State = "finalize"
	StateDone           State = "done"
	StateFailed         State = "failed"
	StateCancelled      State = "cancelled"
)

// ArchiveExtension is forced onto every destination path.
const ArchiveExtension = ".mkv"

// Request describes one pack run.
type Request struct {
	Tracks      []tracks.Track
	Destination string
	// Encoder overrides the packer's default settings when Encoder.Encoder is set.
	Encoder encoders.Settings
	// Version is stored in the index; empty uses archiveindex.FormatVersion.
	Version string
}

// Option configures a Packer.
type Option func(*Packer)

// WithRevealer reveals the finished archive.
func WithRevealer(r reveal.Revealer) Option {
	return func(p *Packer) {
		if r != nil {
			p.revealer = r
		}
	}
}

// WithStateObserver receives every state transition.
func WithStateObserver(fn func(State)) Option {
	return func(p *Packer) { p.observe = fn }
}

// Packer runs the pack pipeline.
type Packer struct {
	engine      ffmpeg.Engine
	scratchRoot string
	settings    encoders.Settings
	revealer    reveal.Revealer
	logger      *slog.Logger
	observe     func(State)
}

// New constructs a Packer that stages work under scratchRoot.
func New(engine ffmpeg.Engine, scratchRoot string, settings encoders.Settings, logger *slog.Logger, opts ...Option) *Packer {
	p := &Packer{
		engine:      engine,
		scratchRoot: scratchRoot,
		settings:    settings,
		revealer:    reveal.Nop{},
		logger:      logging.NewComponentLogger(logger, "pack"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// DestinationPath returns dest with its extension replaced by .mkv.
func DestinationPath(dest string) string {
	return strings.TrimSuffix(dest, filepath.Ext(dest)) + ArchiveExtension
}

// Pack encodes req.Tracks into one archive and returns its final path.
func (p *Packer) Pack(ctx context.Context, req Request, emit progress.Sink) (string, error) {
	logger := logging.WithContext(ctx, p.logger)
	run := &packRun{packer: p, logger: logger, emit: emit, state: StateIdle}

	if p.engine == nil {
		return "", services.Wrap(services.ErrConfiguration, "pack", "", "codec engine not configured", nil)
	}
	if len(req.Tracks) == 0 {
		return "", services.Wrap(services.ErrValidation, "pack", "", "no images to pack", nil)
	}
	for i, t := range req.Tracks {
		if len(t.Images) == 0 {
			return "", services.Wrap(services.ErrValidation, "pack", fmt.Sprintf("track %d", i), "track has no images", nil)
		}
	}
	if strings.TrimSpace(req.Destination) == "" {
		return "", services.Wrap(services.ErrValidation, "pack", "", "destination path is required", nil)
	}
	settings := p.settings
	if req.Encoder.Encoder != "" {
		settings = req.Encoder
	}
	encodeOpts, err := encoders.OutputOptions(settings)
	if err != nil {
		return "", err
	}

	dest, err := filepath.Abs(DestinationPath(req.Destination))
	if err != nil {
		return "", fmt.Errorf("resolve destination: %w", err)
	}
	run.scratch = filepath.Join(p.scratchRoot, uuid.NewString())
	run.temp = filepath.Join(filepath.Dir(dest), ".pack-"+filepath.Base(dest)+".tmp")

	start := time.Now()
	defer run.cleanup()

	output, err := run.execute(ctx, req, dest, settings.Encoder, encodeOpts)
	switch {
	case err == nil:
		run.transition(StateDone)
		logger.Info("archive written",
			logging.String("output", output),
			logging.Int("tracks", len(req.Tracks)),
			logging.Duration("elapsed", time.Since(start)),
		)
		if revealErr := p.revealer.Reveal(ctx, output); revealErr != nil {
			logger.Warn("reveal failed", logging.String("path", output), logging.Error(revealErr))
		}
		return output, nil
	case services.IsCancellation(err) || ctx.Err() != nil:
		stage := run.state
		run.transition(StateCancelled)
		logger.Info("pack cancelled", logging.String("state", string(stage)))
		if !services.IsCancellation(err) {
			err = services.Wrap(services.ErrCancelled, "pack", string(stage), "operation cancelled", err)
		}
		return "", err
	default:
		run.transition(StateFailed)
		return "", err
	}
}

type packRun struct {
	packer  *Packer
	logger  *slog.Logger
	emit    progress.Sink
	state   State
	scratch string
	temp    string
}

func (r *packRun) transition(next State) {
	r.logger.Debug("pack state", logging.String("from", string(r.state)), logging.String("to", string(next)))
	r.state = next
	if r.packer.observe != nil {
		r.packer.observe(next)
	}
}

func (r *packRun) cleanup() {
	if err := os.RemoveAll(r.scratch); err != nil {
		r.logger.Warn("scratch cleanup failed", logging.String("path", r.scratch), logging.Error(err))
	}
	if err := os.Remove(r.temp); err != nil && !errors.Is(err, os.ErrNotExist) {
		r.logger.Warn("temp cleanup failed", logging.String("path", r.temp), logging.Error(err))
	}
}

func (r *packRun) execute(ctx context.Context, req Request, dest string, encoder encoders.ID, encodeOpts []string) (string, error) {
	r.transition(StatePreparing)
	manifests, indexPath, err := r.prepare(req)
	if err != nil {
		return "", err
	}

	r.transition(StatePerTrackEncode)
	intermediates := make([]string, len(req.Tracks))
	for i, track := range req.Tracks {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		out, err := r.encodeTrack(ctx, i, len(req.Tracks), track, manifests[i], encoder, encodeOpts)
		if err != nil {
			return "", err
		}
		intermediates[i] = out
	}

	r.transition(StateMux)
	total := 0
	for _, t := range req.Tracks {
		total += len(t.Images)
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return "", fmt.Errorf("create destination directory: %w", err)
	}
	if err := r.mux(ctx, intermediates, indexPath, int64(total), len(req.Tracks)); err != nil {
		return "", err
	}

	r.transition(StateFinalize)
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := os.Rename(r.temp, dest); err != nil {
		return "", services.Wrap(services.ErrTransient, "pack", "finalize", "move archive into place", err)
	}
	return dest, nil
}

func (r *packRun) prepare(req Request) ([]string, string, error) {
	if err := os.MkdirAll(r.scratch, 0o755); err != nil {
		return nil, "", fmt.Errorf("create scratch directory: %w", err)
	}
	manifests := make([]string, len(req.Tracks))
	for i, track := range req.Tracks {
		path := filepath.Join(r.scratch, fmt.Sprintf("content_%d.txt", i))
		if err := os.WriteFile(path, []byte(Manifest(track.Images)), 0o644); err != nil {
			return nil, "", fmt.Errorf("write manifest for track %d: %w", i, err)
		}
		manifests[i] = path
	}
	indexPath := filepath.Join(r.scratch, archiveindex.FileName)
	if err := archiveindex.WriteFile(indexPath, archiveindex.Build(req.Version, req.Tracks)); err != nil {
		return nil, "", err
	}
	r.logger.Debug("pack prepared", logging.String("scratch", r.scratch), logging.Int("tracks", len(req.Tracks)))
	return manifests, indexPath, nil
}

func (r *packRun) encodeTrack(ctx context.Context, track, trackCount int, t tracks.Track, manifest string, encoder encoders.ID, encodeOpts []string) (string, error) {
	out := filepath.Join(r.scratch, fmt.Sprintf("content_%d.mkv", track))
	frames := len(t.Images)
	outOpts := []string{"-map", "0:v:0", "-an", "-c:v", string(encoder)}
	outOpts = append(outOpts, encodeOpts...)
	outOpts = append(outOpts, "-r", "1", "-frames:v", fmt.Sprint(frames))
	job := ffmpeg.Job{
		Label:   fmt.Sprintf("encode track %d", track),
		Inputs:  []ffmpeg.Input{{Path: manifest, Options: []string{"-f", "concat", "-safe", "0"}}},
		Outputs: []ffmpeg.Output{{Path: out, Options: outOpts}},
	}

	r.logger.Info("encoding track",
		logging.Track(track),
		logging.Int("track_count", trackCount),
		logging.Int("frames", frames),
		logging.String("image_type", string(t.ImageType)),
		logging.String("encoder", string(encoder)),
	)
	forward := r.forwarder(progress.PhaseZipping, progress.TrackRef(track), trackCount, int64(frames),
		fmt.Sprintf("encoding track %d/%d", track+1, trackCount))
	if err := r.packer.engine.Run(ctx, job, forward); err != nil {
		return "", err
	}
	if _, err := os.Stat(out); err != nil {
		return "", services.Wrap(services.ErrExternalTool, "pack", job.Label, "encoder produced no output", err)
	}
	return out, nil
}

func (r *packRun) mux(ctx context.Context, intermediates []string, indexPath string, totalFrames int64, trackCount int) error {
	inputs := make([]ffmpeg.Input, len(intermediates))
	opts := make([]string, 0, 2*len(intermediates)+12)
	for i, path := range intermediates {
		inputs[i] = ffmpeg.Input{Path: path}
		opts = append(opts, "-map", fmt.Sprintf("%d:v", i))
	}
	opts = append(opts,
		"-c:v", "copy",
		"-attach", indexPath,
		"-metadata:s:t", "mimetype="+archiveindex.MimeType,
		"-metadata:s:t", "filename="+archiveindex.FileName,
		"-f", "matroska",
	)
	job := ffmpeg.Job{
		Label:   "mux archive",
		Inputs:  inputs,
		Outputs: []ffmpeg.Output{{Path: r.temp, Options: opts}},
	}
	r.logger.Info("muxing archive", logging.Int("tracks", len(intermediates)), logging.String("temp", r.temp))
	forward := r.forwarder(progress.PhaseMerging, nil, trackCount, totalFrames, "merging tracks")
	return r.packer.engine.Run(ctx, job, forward)
}

func (r *packRun) forwarder(phase progress.Phase, track *int, trackCount int, total int64, message string) func(ffmpeg.Progress) {
	sampler := logging.NewProgressSampler(0)
	return func(p ffmpeg.Progress) {
		event := progress.Event{
			Message:         message,
			FrameCount:      p.Frame,
			TotalFrames:     total,
			CurrentFPS:      p.FPS,
			CurrentKbps:     p.BitrateKbps,
			TargetSizeBytes: p.TotalSize,
			Timemark:        p.OutTime,
			Phase:           phase,
			Track:           track,
			TrackCount:      trackCount,
		}
		r.emit.Emit(event)
		if pct := event.Percent(); sampler.ShouldLog(pct, string(phase)) {
			r.logger.Info("pack progress",
				logging.Phase(string(phase)),
				logging.Float64("percent", pct),
				logging.Int64("frame", p.Frame),
				logging.Float64("fps", p.FPS),
			)
		}
	}
}

// Manifest renders an ffconcat manifest showing each image for one second.
// The last entry is listed twice so the concat demuxer honours its duration.
func Manifest(images []tracks.Image) string {
	var b strings.Builder
	b.WriteString("ffconcat version 1.0\n")
	for _, img := range images {
		fmt.Fprintf(&b, "file %s\nduration 1\n", quoteConcatPath(img.AbsolutePath))
	}
	if n := len(images); n > 0 {
		fmt.Fprintf(&b, "file %s\n", quoteConcatPath(images[n-1].AbsolutePath))
	}
	return b.String()
}

func quoteConcatPath(path string) string {
	return "'" + strings.ReplaceAll(filepath.ToSlash(path), "'", `'\''`) + "'"
}
