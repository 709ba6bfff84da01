package preview

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"reelpack/internal/contenthash"
	"reelpack/internal/logging"
	"reelpack/internal/media/ffmpeg"
	"reelpack/internal/progress"
	"reelpack/internal/services"
)

// LockFileName is the per-folder lock shared with other processes.
const LockFileName = ".extract.lock"

// maxExtractRounds bounds how many extractions one request may wait on.
const maxExtractRounds = 3

// Options tunes a Cache.
type Options struct {
	Dir             string
	WindowBefore    int
	WindowAfter     int
	ExtractSeconds  int
	HashPrefixBytes int64
	LockRetry       time.Duration
	// Progress receives previewing events from extractions.
	Progress progress.Sink
}

// Request identifies one frame.
type Request struct {
	ArchivePath string
	// Hash is the cache key; computed from the archive when empty.
	Hash        string
	Track       int
	Index       int
	TotalFrames int
}

// Frame is a cached image on disk.
type Frame struct {
	Path  string
	Hash  string
	Track int
	Index int
	// Cached is true when the frame existed before the request.
	Cached bool
}

type extraction struct {
	track int
	start int
	done  chan struct{}
	err   error
}

// Cache is the on-disk frame cache.
type Cache struct {
	opts   Options
	engine ffmpeg.Engine
	hasher func(string, int64) (string, error)
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.Mutex
	inflight map[string]*extraction
}

// New constructs a Cache rooted at opts.Dir.
func New(engine ffmpeg.Engine, opts Options, logger *slog.Logger) *Cache {
	if opts.ExtractSeconds <= 0 {
		opts.ExtractSeconds = 15
	}
	if opts.LockRetry <= 0 {
		opts.LockRetry = 100 * time.Millisecond
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Cache{
		opts:     opts,
		engine:   engine,
		hasher:   contenthash.PrefixHash,
		logger:   logging.NewComponentLogger(logger, "preview"),
		ctx:      ctx,
		cancel:   cancel,
		inflight: make(map[string]*extraction),
	}
}

// Window returns the first and last frame a request for index should find
// cached. total <= 0 means the frame count is unknown.
func Window(index, total, before, after int) (pre, next int) {
	pre = max(0, index-before)
	next = index + after
	if total > 0 {
		next = min(total-1, next)
	}
	return pre, next
}

// FramePath is the cache file for one frame.
func FramePath(folder string, track, index int) string {
	return filepath.Join(folder, fmt.Sprintf("track_%d_%d.jpg", track, index))
}

// Folder returns the cache folder for hash.
func (c *Cache) Folder(hash string) string {
	return filepath.Join(c.opts.Dir, hash)
}

// Key hashes the archive prefix into the cache key that Request.Hash accepts.
func (c *Cache) Key(archive string) (string, error) {
	return c.hasher(archive, c.opts.HashPrefixBytes)
}

// Frame returns the cached image for req, extracting it when necessary.
func (c *Cache) Frame(ctx context.Context, req Request) (Frame, error) {
	if req.Track < 0 || req.Index < 0 {
		return Frame{}, services.Wrap(services.ErrValidation, "preview", "frame", "track and index must be non-negative", nil)
	}
	if req.TotalFrames > 0 && req.Index >= req.TotalFrames {
		return Frame{}, services.Wrap(services.ErrValidation, "preview", "frame",
			fmt.Sprintf("index %d outside track of %d frames", req.Index, req.TotalFrames), nil)
	}
	if c.ctx.Err() != nil {
		return Frame{}, services.Wrap(services.ErrCancelled, "preview", "frame", "cache closed", nil)
	}

	hash := req.Hash
	if hash == "" {
		var err error
		if hash, err = c.Key(req.ArchivePath); err != nil {
			return Frame{}, err
		}
	}
	folder := c.Folder(hash)
	if err := os.MkdirAll(folder, 0o755); err != nil {
		return Frame{}, fmt.Errorf("create cache folder: %w", err)
	}

	frame := Frame{Path: FramePath(folder, req.Track, req.Index), Hash: hash, Track: req.Track, Index: req.Index}
	pre, next := Window(req.Index, req.TotalFrames, c.opts.WindowBefore, c.opts.WindowAfter)
	edges := []string{FramePath(folder, req.Track, pre), FramePath(folder, req.Track, next)}
	if !allExist(edges) {
		c.extract(folder, req.ArchivePath, req.Track, pre, edges...)
	}
	if exists(frame.Path) {
		frame.Cached = true
		return frame, nil
	}

	logger := logging.WithContext(ctx, c.logger)
	for range maxExtractRounds {
		ext := c.extract(folder, req.ArchivePath, req.Track, pre, frame.Path)
		select {
		case <-ext.done:
		case <-ctx.Done():
			return Frame{}, services.Cancelled("preview", "frame", ctx.Err())
		}
		if exists(frame.Path) {
			return frame, nil
		}
		if ext.err != nil {
			return Frame{}, ext.err
		}
		logger.Debug("frame not in finished extraction",
			logging.Track(req.Track),
			logging.Int("index", req.Index),
			logging.Int("extracted_from", ext.start),
		)
	}
	return Frame{}, services.Wrap(services.ErrNotFound, "preview", "frame",
		fmt.Sprintf("track %d frame %d not produced", req.Track, req.Index), nil)
}

var settled = func() chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}()

// extract joins the extraction running for folder or starts one covering
// start..start+ExtractSeconds-1 on track. Nothing starts when every wanted
// path already exists.
func (c *Cache) extract(folder, archive string, track, start int, want ...string) *extraction {
	c.mu.Lock()
	defer c.mu.Unlock()
	if ext, ok := c.inflight[folder]; ok {
		return ext
	}
	if allExist(want) {
		return &extraction{track: track, start: start, done: settled}
	}
	ext := &extraction{track: track, start: start, done: make(chan struct{})}
	c.inflight[folder] = ext
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		ext.err = c.runExtraction(c.ctx, folder, archive, track, start)
		c.mu.Lock()
		delete(c.inflight, folder)
		c.mu.Unlock()
		close(ext.done)
	}()
	return ext
}

func (c *Cache) runExtraction(ctx context.Context, folder, archive string, track, start int) error {
	logger := c.logger.With(logging.Track(track), logging.Int("start", start), logging.String("folder", folder))

	lock := flock.New(filepath.Join(folder, LockFileName))
	locked, err := lock.TryLockContext(ctx, c.opts.LockRetry)
	if err != nil {
		if ctx.Err() != nil {
			return services.Cancelled("preview", "lock", ctx.Err())
		}
		return fmt.Errorf("lock cache folder: %w", err)
	}
	if !locked {
		return services.Wrap(services.ErrTransient, "preview", "lock", "cache folder is locked", nil)
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			logger.Warn("release preview lock failed", logging.Error(err))
		}
	}()

	staging := filepath.Join(folder, ".extract-"+uuid.NewString())
	if err := os.MkdirAll(staging, 0o755); err != nil {
		return fmt.Errorf("create extraction dir: %w", err)
	}
	defer os.RemoveAll(staging)

	seconds := c.opts.ExtractSeconds
	job := ffmpeg.Job{
		Label: fmt.Sprintf("preview track %d from %d", track, start),
		Inputs: []ffmpeg.Input{{
			Path:    archive,
			Options: []string{"-ss", strconv.Itoa(start), "-t", strconv.Itoa(seconds)},
		}},
		Outputs: []ffmpeg.Output{{
			Path: filepath.Join(staging, fmt.Sprintf("track_%d_%%d.jpg", track)),
			Options: []string{
				"-map", fmt.Sprintf("0:v:%d", track),
				"-start_number", strconv.Itoa(start),
				"-qscale:v", "2",
				"-f", "image2",
			},
		}},
	}

	began := time.Now()
	ref := progress.TrackRef(track)
	err = c.engine.Run(ctx, job, func(p ffmpeg.Progress) {
		c.opts.Progress.Emit(progress.Event{
			Message:     fmt.Sprintf("extracting preview frames %d-%d", start, start+seconds-1),
			FrameCount:  p.Frame,
			TotalFrames: int64(seconds),
			CurrentFPS:  p.FPS,
			Timemark:    p.OutTime,
			Phase:       progress.PhasePreviewing,
			Track:       ref,
		})
	})
	if err != nil {
		if !services.IsCancellation(err) {
			logging.WarnWithContext(logger, "preview extraction failed", "preview_extract_failed",
				logging.Error(err),
				logging.String(logging.FieldImpact, "frame is not shown"),
			)
		}
		return err
	}

	moved, err := publish(staging, folder)
	if err != nil {
		return err
	}
	logger.Debug("preview frames extracted", logging.Int("frames", moved), logging.Duration("elapsed", time.Since(began)))
	return nil
}

// publish renames every extracted frame from staging into folder.
func publish(staging, folder string) (int, error) {
	entries, err := os.ReadDir(staging)
	if err != nil {
		return 0, fmt.Errorf("read extraction dir: %w", err)
	}
	moved := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if err := os.Rename(filepath.Join(staging, entry.Name()), filepath.Join(folder, entry.Name())); err != nil {
			return moved, fmt.Errorf("publish %s: %w", entry.Name(), err)
		}
		moved++
	}
	return moved, nil
}

// Close stops in-flight extractions and waits for them to exit.
func (c *Cache) Close() {
	c.cancel()
	c.wg.Wait()
}

// Purge stops in-flight extractions and removes the whole cache directory.
func (c *Cache) Purge() error {
	c.Close()
	if c.opts.Dir == "" {
		return nil
	}
	if err := os.RemoveAll(c.opts.Dir); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("purge preview cache: %w", err)
	}
	c.logger.Debug("preview cache purged", logging.String("dir", c.opts.Dir))
	return nil
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func allExist(paths []string) bool {
	for _, p := range paths {
		if !exists(p) {
			return false
		}
	}
	return true
}
