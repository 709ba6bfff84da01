package pack_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"testing"

	"reelpack/internal/archiveindex"
	"reelpack/internal/encoders"
	"reelpack/internal/media/ffmpeg"
	"reelpack/internal/media/imagefmt"
	"reelpack/internal/pack"
	"reelpack/internal/progress"
	"reelpack/internal/services"
	"reelpack/internal/testsupport"
	"reelpack/internal/tracks"
)

var x265 = encoders.Settings{Encoder: encoders.Libx265, Quality: 23, Preset: 4}

type recordingRevealer struct {
	mu    sync.Mutex
	paths []string
}

func (r *recordingRevealer) Reveal(_ context.Context, path string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.paths = append(r.paths, path)
	return nil
}

func scenarioTracks(t *testing.T) []tracks.Track {
	t.Helper()
	root := t.TempDir()
	var jpegs, pngs []string
	for i := range 10 {
		jpegs = append(jpegs, "album/j"+string(rune('a'+i))+".jpg")
	}
	for i := range 5 {
		pngs = append(pngs, "album/p"+string(rune('a'+i))+".png")
	}
	return []tracks.Track{
		{ImageType: imagefmt.JPEG, Images: testsupport.Images(t, root, jpegs...)},
		{ImageType: imagefmt.PNG, Images: testsupport.Images(t, root, pngs...)},
	}
}

func TestPackProducesArchiveAndCleansScratch(t *testing.T) {
	scratch := t.TempDir()
	outDir := t.TempDir()
	engine := &testsupport.FakeEngine{}
	revealer := &recordingRevealer{}
	var states []pack.State
	p := pack.New(engine, scratch, x265, nil,
		pack.WithRevealer(revealer),
		pack.WithStateObserver(func(s pack.State) { states = append(states, s) }),
	)

	var mu sync.Mutex
	var events []progress.Event
	sink := func(e progress.Event) {
		mu.Lock()
		events = append(events, e)
		mu.Unlock()
	}

	var indexSeen archiveindex.Index
	engine.Handler = func(ctx context.Context, job ffmpeg.Job, onProgress func(ffmpeg.Progress)) error {
		if job.Label == "mux archive" {
			attach, ok := testsupport.OptionValue(job.Outputs[0].Options, "-attach")
			if !ok {
				t.Fatalf("mux job missing -attach: %v", job.Outputs[0].Options)
			}
			idx, err := archiveindex.ReadFile(attach)
			if err != nil {
				t.Fatalf("read attached index: %v", err)
			}
			indexSeen = idx
		}
		return testsupport.TouchOutputs(job, onProgress)
	}

	out, err := p.Pack(context.Background(), pack.Request{
		Tracks:      scenarioTracks(t),
		Destination: filepath.Join(outDir, "photos.zip"),
	}, sink)
	if err != nil {
		t.Fatalf("Pack: %v", err)
	}

	if want := filepath.Join(outDir, "photos.mkv"); out != want {
		t.Fatalf("output = %q, want %q", out, want)
	}
	if _, err := os.Stat(out); err != nil {
		t.Fatalf("archive missing: %v", err)
	}
	entries, _ := os.ReadDir(scratch)
	if len(entries) != 0 {
		t.Fatalf("expected scratch emptied, found %d entries", len(entries))
	}
	leftovers, _ := filepath.Glob(filepath.Join(outDir, ".pack-*"))
	if len(leftovers) != 0 {
		t.Fatalf("temp file left behind: %v", leftovers)
	}

	jobs := engine.Jobs()
	if len(jobs) != 3 {
		t.Fatalf("expected 2 encodes and 1 mux, got %d jobs", len(jobs))
	}
	if got, _ := testsupport.OptionValue(jobs[0].Outputs[0].Options, "-frames:v"); got != "10" {
		t.Fatalf("track 0 frames = %q, want 10", got)
	}
	if got, _ := testsupport.OptionValue(jobs[1].Outputs[0].Options, "-frames:v"); got != "5" {
		t.Fatalf("track 1 frames = %q, want 5", got)
	}
	if got, _ := testsupport.OptionValue(jobs[0].Outputs[0].Options, "-c:v"); got != "libx265" {
		t.Fatalf("encoder = %q", got)
	}
	if !slices.Equal(jobs[0].Inputs[0].Options, []string{"-f", "concat", "-safe", "0"}) {
		t.Fatalf("unexpected concat input options %v", jobs[0].Inputs[0].Options)
	}
	mux := jobs[2]
	if len(mux.Inputs) != 2 {
		t.Fatalf("mux inputs = %d", len(mux.Inputs))
	}
	muxArgs := strings.Join(mux.Outputs[0].Options, " ")
	for _, want := range []string{"-map 0:v", "-map 1:v", "-c:v copy", "mimetype=application/json", "filename=index.json", "-f matroska"} {
		if !strings.Contains(muxArgs, want) {
			t.Fatalf("mux options %q missing %q", muxArgs, want)
		}
	}

	if len(indexSeen.TrackList) != 2 || len(indexSeen.ImageList) != 15 {
		t.Fatalf("unexpected index: %d tracks, %d images", len(indexSeen.TrackList), len(indexSeen.ImageList))
	}
	if counts := indexSeen.TrackCounts(); !slices.Equal(counts, []int{10, 5}) {
		t.Fatalf("track counts = %v", counts)
	}

	wantStates := []pack.State{pack.StatePreparing, pack.StatePerTrackEncode, pack.StateMux, pack.StateFinalize, pack.StateDone}
	if !slices.Equal(states, wantStates) {
		t.Fatalf("states = %v, want %v", states, wantStates)
	}
	if len(revealer.paths) != 1 || revealer.paths[0] != out {
		t.Fatalf("reveal calls = %v", revealer.paths)
	}

	var zipping, merging int
	for _, e := range events {
		switch e.Phase {
		case progress.PhaseZipping:
			zipping++
			if e.Track == nil {
				t.Fatal("zipping event without track")
			}
		case progress.PhaseMerging:
			merging++
		}
	}
	if zipping != 2 || merging != 1 {
		t.Fatalf("events zipping=%d merging=%d", zipping, merging)
	}
}

func TestPackEncodesTracksSequentially(t *testing.T) {
	engine := &testsupport.FakeEngine{}
	var running, maxRunning int
	var mu sync.Mutex
	engine.Handler = func(ctx context.Context, job ffmpeg.Job, onProgress func(ffmpeg.Progress)) error {
		mu.Lock()
		running++
		maxRunning = max(maxRunning, running)
		mu.Unlock()
		defer func() {
			mu.Lock()
			running--
			mu.Unlock()
		}()
		for _, in := range job.Inputs {
			if strings.HasSuffix(in.Path, ".mkv") {
				if _, err := os.Stat(in.Path); err != nil {
					t.Errorf("mux input %s not present before mux: %v", in.Path, err)
				}
			}
		}
		return testsupport.TouchOutputs(job, onProgress)
	}
	p := pack.New(engine, t.TempDir(), x265, nil)
	if _, err := p.Pack(context.Background(), pack.Request{Tracks: scenarioTracks(t), Destination: filepath.Join(t.TempDir(), "a.mkv")}, nil); err != nil {
		t.Fatalf("Pack: %v", err)
	}
	if maxRunning != 1 {
		t.Fatalf("expected one job at a time, saw %d", maxRunning)
	}
}

func TestPackFailureCleansUp(t *testing.T) {
	scratch := t.TempDir()
	outDir := t.TempDir()
	engine := &testsupport.FakeEngine{}
	engine.Handler = func(ctx context.Context, job ffmpeg.Job, onProgress func(ffmpeg.Progress)) error {
		if job.Label == "mux archive" {
			_ = os.WriteFile(job.Outputs[0].Path, []byte("partial"), 0o644)
			return services.Wrap(services.ErrExternalTool, "ffmpeg", job.Label, "Invalid data found", errors.New("exit status 1"))
		}
		return testsupport.TouchOutputs(job, onProgress)
	}
	var states []pack.State
	p := pack.New(engine, scratch, x265, nil, pack.WithStateObserver(func(s pack.State) { states = append(states, s) }))

	_, err := p.Pack(context.Background(), pack.Request{Tracks: scenarioTracks(t), Destination: filepath.Join(outDir, "a.mkv")}, nil)
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected external tool error, got %v", err)
	}
	if !strings.Contains(err.Error(), "Invalid data found") {
		t.Fatalf("expected stderr detail in error, got %v", err)
	}
	if entries, _ := os.ReadDir(scratch); len(entries) != 0 {
		t.Fatalf("scratch not cleaned: %d entries", len(entries))
	}
	if entries, _ := os.ReadDir(outDir); len(entries) != 0 {
		t.Fatalf("destination dir should be empty, found %d entries", len(entries))
	}
	if states[len(states)-1] != pack.StateFailed {
		t.Fatalf("final state = %s", states[len(states)-1])
	}
}

func TestPackCancellationCleansUp(t *testing.T) {
	scratch := t.TempDir()
	engine := &testsupport.FakeEngine{}
	ctx, cancel := context.WithCancel(context.Background())
	engine.Handler = func(ctx context.Context, job ffmpeg.Job, onProgress func(ffmpeg.Progress)) error {
		cancel()
		<-ctx.Done()
		return services.Cancelled("ffmpeg", job.Label, ctx.Err())
	}
	p := pack.New(engine, scratch, x265, nil)

	_, err := p.Pack(ctx, pack.Request{Tracks: scenarioTracks(t), Destination: filepath.Join(t.TempDir(), "a.mkv")}, nil)
	if !errors.Is(err, services.ErrCancelled) {
		t.Fatalf("expected ErrCancelled, got %v", err)
	}
	if entries, _ := os.ReadDir(scratch); len(entries) != 0 {
		t.Fatalf("scratch not cleaned after cancel: %d entries", len(entries))
	}
	if n := len(engine.Jobs()); n != 1 {
		t.Fatalf("expected no further jobs after cancel, got %d", n)
	}
}

func TestPackRejectsEmptyInput(t *testing.T) {
	p := pack.New(&testsupport.FakeEngine{}, t.TempDir(), x265, nil)
	_, err := p.Pack(context.Background(), pack.Request{Destination: "x.mkv"}, nil)
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestPackRejectsOutOfRangeEncoderSettings(t *testing.T) {
	p := pack.New(&testsupport.FakeEngine{}, t.TempDir(), encoders.Settings{Encoder: encoders.Libx265, Quality: 99, Preset: 4}, nil)
	_, err := p.Pack(context.Background(), pack.Request{Tracks: scenarioTracks(t), Destination: filepath.Join(t.TempDir(), "a.mkv")}, nil)
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestManifest(t *testing.T) {
	got := pack.Manifest([]tracks.Image{
		{AbsolutePath: "/photos/a.jpg"},
		{AbsolutePath: "/photos/it's.jpg"},
	})
	want := "ffconcat version 1.0\n" +
		"file '/photos/a.jpg'\nduration 1\n" +
		"file '/photos/it'\\''s.jpg'\nduration 1\n" +
		"file '/photos/it'\\''s.jpg'\n"
	if got != want {
		t.Fatalf("manifest mismatch:\n%s\nwant:\n%s", got, want)
	}
}

func TestDestinationPath(t *testing.T) {
	tests := map[string]string{
		"out/archive":     "out/archive.mkv",
		"out/archive.mp4": "out/archive.mkv",
		"out/archive.mkv": "out/archive.mkv",
	}
	for in, want := range tests {
		if got := pack.DestinationPath(in); got != want {
			t.Fatalf("DestinationPath(%q) = %q, want %q", in, got, want)
		}
	}
}
