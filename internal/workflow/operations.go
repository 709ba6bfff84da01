package workflow

import (
	"context"
	"fmt"
	"strings"

	"reelpack/internal/archiveindex"
	"reelpack/internal/encoders"
	"reelpack/internal/logging"
	"reelpack/internal/operation"
	"reelpack/internal/pack"
	"reelpack/internal/preview"
	"reelpack/internal/progress"
	"reelpack/internal/services"
	"reelpack/internal/unpack"
)

// PackRequest names the sources and destination of one pack.
type PackRequest struct {
	// Sources are directories or image files.
	Sources     []string
	Destination string
	// Encoder overrides the configured encoder when Encoder.Encoder is set.
	Encoder encoders.Settings
}

// UnpackRequest names the archive and destination of one unpack.
type UnpackRequest struct {
	Archive     string
	Destination string
	// Index skips reading the embedded index when set.
	Index *archiveindex.Index
	// Output overrides the configured output format when set.
	Output *encoders.ImageOutput
}

// StartPack scans, classifies, and packs the sources.
func (m *Manager) StartPack(ctx context.Context, req PackRequest) *operation.Handle {
	target := strings.Join(req.Sources, ", ")
	return m.run(ctx, operation.CategoryPack, target, func(ctx context.Context, id string, emit progress.Sink) (string, error) {
		result, err := m.Classify(ctx, req.Sources...)
		if err != nil {
			return "", err
		}
		if len(result.Tracks) == 0 {
			return "", services.Wrap(services.ErrValidation, "pack", "classify", "no supported images found", nil)
		}
		m.record(ctx, m.logger, "counts", func(bg context.Context) error {
			return m.history.SetCounts(bg, id, result.ImageCount(), len(result.Tracks))
		})
		if n := len(result.Skipped); n > 0 {
			emit.Emit(progress.Event{
				Message:    fmt.Sprintf("skipped %d unsupported image(s)", n),
				Phase:      progress.PhaseZipping,
				TrackCount: len(result.Tracks),
			})
		}
		return m.packer.Pack(ctx, pack.Request{
			Tracks:      result.Tracks,
			Destination: req.Destination,
			Encoder:     req.Encoder,
		}, emit)
	})
}

// StartUnpack restores the archive's images under the destination.
func (m *Manager) StartUnpack(ctx context.Context, req UnpackRequest) *operation.Handle {
	return m.run(ctx, operation.CategoryUnpack, req.Archive, func(ctx context.Context, id string, emit progress.Sink) (string, error) {
		output := req.Output
		if output == nil {
			if configured, ok := m.cfg.ImageOutput(); ok {
				output = &configured
			}
		}
		if req.Index != nil {
			m.record(ctx, m.logger, "counts", func(bg context.Context) error {
				return m.history.SetCounts(bg, id, len(req.Index.ImageList), len(req.Index.TrackList))
			})
		}
		return m.unpacker.Unpack(ctx, unpack.Request{
			Archive:     req.Archive,
			Destination: req.Destination,
			Index:       req.Index,
			Output:      output,
		}, emit)
	})
}

// Preview resolves one frame through the preview cache. The handle's output
// is the cached frame path. Previews are not recorded in history.
func (m *Manager) Preview(ctx context.Context, req preview.Request) *operation.Handle {
	return m.registry.Start(ctx, operation.CategoryPreview, func(ctx context.Context, emit progress.Sink) (string, error) {
		m.previewSink.Store(&emit)
		defer m.previewSink.CompareAndSwap(&emit, nil)

		frame, err := m.previews.Frame(ctx, req)
		if err != nil {
			return "", err
		}
		logging.WithContext(ctx, m.logger).Debug("preview frame ready",
			logging.Track(frame.Track),
			logging.Int("index", frame.Index),
			logging.Bool("cached", frame.Cached),
		)
		return frame.Path, nil
	})
}

// PreviewKey returns the cache key for archive. Passing it as Request.Hash
// skips re-hashing the archive on every preview request.
func (m *Manager) PreviewKey(archive string) (string, error) {
	return m.previews.Key(archive)
}

// PurgePreviews removes every cached preview frame.
func (m *Manager) PurgePreviews() error {
	return m.previews.Purge()
}
