package workflow

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"reelpack/internal/archiveindex"
	"reelpack/internal/config"
	"reelpack/internal/encoders"
	"reelpack/internal/history"
	"reelpack/internal/logging"
	"reelpack/internal/media/ffmpeg"
	"reelpack/internal/operation"
	"reelpack/internal/pack"
	"reelpack/internal/preview"
	"reelpack/internal/progress"
	"reelpack/internal/reveal"
	"reelpack/internal/scan"
	"reelpack/internal/services"
	"reelpack/internal/staging"
	"reelpack/internal/tracks"
	"reelpack/internal/unpack"
)

// Manager coordinates pipelines, the operation registry, and history.
type Manager struct {
	cfg      *config.Config
	logger   *slog.Logger
	settings encoders.Settings

	registry   *operation.Registry
	classifier *tracks.Classifier
	packer     *pack.Packer
	unpacker   *unpack.Unpacker
	previews   *preview.Cache
	history    *history.Store

	previewSink atomic.Pointer[progress.Sink]

	shutdownOnce sync.Once
}

// Option configures optional Manager collaborators.
type Option func(*managerOptions)

type managerOptions struct {
	engine   ffmpeg.Engine
	reader   tracks.MetadataReader
	revealer reveal.Revealer
	noHist   bool
}

// WithEngine replaces the ffmpeg command-line engine.
func WithEngine(engine ffmpeg.Engine) Option {
	return func(o *managerOptions) { o.engine = engine }
}

// WithMetadataReader replaces the ffprobe image reader.
func WithMetadataReader(reader tracks.MetadataReader) Option {
	return func(o *managerOptions) { o.reader = reader }
}

// WithRevealer shows finished archives and destinations in the file browser.
func WithRevealer(r reveal.Revealer) Option {
	return func(o *managerOptions) { o.revealer = r }
}

// WithoutHistory skips opening the history database.
func WithoutHistory() Option {
	return func(o *managerOptions) { o.noHist = true }
}

// NewManager validates cfg, removes stale scratch directories left by
// crashed runs, and opens the history store.
func NewManager(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts ...Option) (*Manager, error) {
	if cfg == nil {
		return nil, services.Wrap(services.ErrConfiguration, "workflow", "init", "config is required", nil)
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	options := managerOptions{}
	for _, opt := range opts {
		opt(&options)
	}
	if options.engine == nil {
		options.engine = ffmpeg.NewCLI(cfg.FFmpegBinary(), ffmpeg.WithLogger(logger))
	}
	if options.reader == nil {
		options.reader = tracks.NewProbeReader(cfg.FFprobeBinary())
	}
	if options.revealer == nil {
		options.revealer = reveal.Nop{}
	}

	settings, err := cfg.EncoderSettings()
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "workflow", "init", "resolve encoder", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "workflow", "init", "create directories", err)
	}

	m := &Manager{
		cfg:        cfg,
		logger:     logging.NewComponentLogger(logger, "workflow-manager"),
		settings:   settings,
		registry:   operation.NewRegistry(logger),
		classifier: tracks.NewClassifier(options.reader, logger),
		packer:     pack.New(options.engine, cfg.PackScratchDir(), settings, logger, pack.WithRevealer(options.revealer)),
		unpacker:   unpack.New(options.engine, logger, unpack.WithRevealer(options.revealer)),
	}
	m.previews = preview.New(options.engine, preview.Options{
		Dir:             cfg.Paths.PreviewDir,
		WindowBefore:    cfg.Preview.WindowBefore,
		WindowAfter:     cfg.Preview.WindowAfter,
		ExtractSeconds:  cfg.Preview.ExtractSeconds,
		HashPrefixBytes: cfg.Preview.HashPrefixBytes,
		LockRetry:       cfg.LockRetryInterval(),
		Progress:        m.forwardPreview,
	}, logger)

	if age := cfg.StaleScratchAge(); age > 0 {
		staging.CleanStale(ctx, cfg.PackScratchDir(), age, m.logger)
	}

	if !options.noHist && strings.TrimSpace(cfg.Paths.HistoryDB) != "" {
		store, err := history.Open(ctx, cfg.Paths.HistoryDB)
		if err != nil {
			m.previews.Close()
			return nil, err
		}
		m.history = store
	}
	return m, nil
}

// Config returns the manager configuration.
func (m *Manager) Config() *config.Config { return m.cfg }

// EncoderSettings returns the resolved default encoder.
func (m *Manager) EncoderSettings() encoders.Settings { return m.settings }

// History returns the history store, or nil when disabled.
func (m *Manager) History() *history.Store { return m.history }

// Active returns the in-flight handle of category, or nil.
func (m *Manager) Active(category operation.Category) *operation.Handle {
	return m.registry.Active(category)
}

// Classify scans roots and groups the supported images into tracks.
func (m *Manager) Classify(ctx context.Context, roots ...string) (tracks.Result, error) {
	images, err := scan.Images(ctx, roots...)
	if err != nil {
		return tracks.Result{}, err
	}
	return m.classifier.Classify(ctx, images)
}

// ReadIndex returns the index embedded in archive without unpacking it.
func (m *Manager) ReadIndex(ctx context.Context, archive string) (archiveindex.Index, error) {
	return m.unpacker.ReadIndex(ctx, archive)
}

// Shutdown cancels in-flight operations, waits for them to clean up, purges
// the preview cache, and closes the history store.
func (m *Manager) Shutdown() error {
	var errs []error
	m.shutdownOnce.Do(func() {
		m.registry.CancelAll()
		m.registry.Wait()
		if err := m.previews.Purge(); err != nil {
			errs = append(errs, err)
		}
		if m.history != nil {
			if err := m.history.Close(); err != nil {
				errs = append(errs, err)
			}
		}
		m.logger.Debug("workflow manager stopped")
	})
	return errors.Join(errs...)
}

// run starts fn under category and records its outcome in history.
func (m *Manager) run(ctx context.Context, category operation.Category, target string, fn func(ctx context.Context, id string, emit progress.Sink) (string, error)) *operation.Handle {
	return m.registry.Start(ctx, category, func(ctx context.Context, emit progress.Sink) (string, error) {
		id, _ := services.OperationIDFromContext(ctx)
		logger := logging.WithContext(ctx, m.logger)
		started := time.Now()
		m.record(ctx, logger, "begin", func(bg context.Context) error {
			return m.history.Begin(bg, id, string(category), target, started)
		})

		output, err := fn(ctx, id, emit)

		m.record(ctx, logger, "finish", func(bg context.Context) error {
			return m.history.Finish(bg, id, output, err, time.Now())
		})
		switch {
		case err == nil:
			logger.Info("operation complete",
				logging.String("target", target),
				logging.String("output", output),
				logging.Duration("elapsed", time.Since(started)),
			)
		case services.IsCancellation(err) || ctx.Err() != nil:
			logger.Info("operation cancelled", logging.String("target", target))
		default:
			logging.ErrorWithContext(logger, "operation failed", string(category)+"_failed",
				logging.String("target", target),
				logging.String("error_kind", services.FailureKind(err)),
				logging.Error(err),
			)
		}
		return output, err
	})
}

func (m *Manager) record(ctx context.Context, logger *slog.Logger, step string, fn func(context.Context) error) {
	if m.history == nil {
		return
	}
	if err := fn(context.WithoutCancel(ctx)); err != nil {
		logging.WarnWithContext(logger, "history update failed", "history_write_failed",
			logging.String("step", step),
			logging.Error(err),
			logging.String(logging.FieldImpact, "operation is missing from history"),
		)
	}
}

func (m *Manager) forwardPreview(e progress.Event) {
	if sink := m.previewSink.Load(); sink != nil {
		sink.Emit(e)
	}
}
