package testsupport

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"reelpack/internal/media/ffmpeg"
)

// FakeEngine records jobs instead of running ffmpeg. Without a Handler every
// plain output file is created and a single final progress block is reported.
type FakeEngine struct {
	mu      sync.Mutex
	jobs    []ffmpeg.Job
	Handler func(ctx context.Context, job ffmpeg.Job, onProgress func(ffmpeg.Progress)) error
}

// Run implements ffmpeg.Engine.
func (f *FakeEngine) Run(ctx context.Context, job ffmpeg.Job, onProgress func(ffmpeg.Progress)) error {
	f.mu.Lock()
	f.jobs = append(f.jobs, job)
	handler := f.Handler
	f.mu.Unlock()

	if handler != nil {
		return handler(ctx, job, onProgress)
	}
	return TouchOutputs(job, onProgress)
}

// Jobs returns a copy of the recorded jobs.
func (f *FakeEngine) Jobs() []ffmpeg.Job {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]ffmpeg.Job(nil), f.jobs...)
}

// TouchOutputs creates each output that names a single file and reports one
// completed progress block. Image sequence patterns and "-" are skipped.
func TouchOutputs(job ffmpeg.Job, onProgress func(ffmpeg.Progress)) error {
	for _, out := range job.Outputs {
		if out.Path == "-" || strings.Contains(out.Path, "%d") {
			continue
		}
		if err := os.MkdirAll(filepath.Dir(out.Path), 0o755); err != nil {
			return err
		}
		if err := os.WriteFile(out.Path, []byte(job.Label), 0o644); err != nil {
			return err
		}
	}
	if onProgress != nil {
		onProgress(ffmpeg.Progress{Frame: 1, FPS: 1, Done: true})
	}
	return nil
}

// OptionValue returns the value following flag in opts.
func OptionValue(opts []string, flag string) (string, bool) {
	for i := 0; i+1 < len(opts); i++ {
		if opts[i] == flag {
			return opts[i+1], true
		}
	}
	return "", false
}
