package operation

import (
	"context"
	"errors"
	"testing"
	"time"

	"reelpack/internal/logging"
	"reelpack/internal/progress"
	"reelpack/internal/services"
)

func waitResult(t *testing.T, h *Handle) Result {
	t.Helper()
	select {
	case <-h.Done():
		return h.Wait()
	case <-time.After(5 * time.Second):
		t.Fatalf("operation %s did not settle", h.ID())
		return Result{}
	}
}

func TestStartDoneOutcome(t *testing.T) {
	r := NewRegistry(logging.NewNop())
	h := r.Start(context.Background(), CategoryPack, func(ctx context.Context, emit progress.Sink) (string, error) {
		if id, ok := services.OperationIDFromContext(ctx); !ok || id == "" {
			t.Errorf("expected operation id in context")
		}
		emit(progress.Event{Phase: progress.PhaseZipping, FrameCount: 1})
		return "/out/archive.mkv", nil
	})

	res := waitResult(t, h)
	if res.Outcome != OutcomeDone || res.Output != "/out/archive.mkv" || res.Err != nil {
		t.Fatalf("unexpected result %+v", res)
	}
	var events []progress.Event
	for e := range h.Events() {
		events = append(events, e)
	}
	if len(events) != 1 || events[0].Phase != progress.PhaseZipping {
		t.Fatalf("unexpected events %+v", events)
	}
	if r.Active(CategoryPack) != nil {
		t.Fatal("settled handle should leave the registry")
	}
}

func TestFailedOutcome(t *testing.T) {
	r := NewRegistry(nil)
	boom := services.Wrap(services.ErrExternalTool, "pack", "mux", "exit 1", nil)
	h := r.Start(context.Background(), CategoryUnpack, func(context.Context, progress.Sink) (string, error) {
		return "/partial", boom
	})
	res := waitResult(t, h)
	if res.Outcome != OutcomeFailed || !errors.Is(res.Err, services.ErrExternalTool) {
		t.Fatalf("unexpected result %+v", res)
	}
	if res.Output != "" {
		t.Fatalf("failed operations should not report output, got %q", res.Output)
	}
}

func TestNewCallSupersedesSameCategory(t *testing.T) {
	r := NewRegistry(nil)
	firstStarted := make(chan struct{})
	firstCleaned := make(chan struct{})

	first := r.Start(context.Background(), CategoryPack, func(ctx context.Context, _ progress.Sink) (string, error) {
		close(firstStarted)
		<-ctx.Done()
		close(firstCleaned)
		return "", services.Cancelled("pack", "encode", ctx.Err())
	})
	<-firstStarted

	second := r.Start(context.Background(), CategoryPack, func(ctx context.Context, _ progress.Sink) (string, error) {
		select {
		case <-firstCleaned:
		default:
			t.Error("second operation started before the first settled")
		}
		return "/out/second.mkv", nil
	})

	if res := waitResult(t, first); res.Outcome != OutcomeCancelled {
		t.Fatalf("first outcome = %s, want cancelled", res.Outcome)
	}
	if res := waitResult(t, second); res.Outcome != OutcomeDone || res.Output != "/out/second.mkv" {
		t.Fatalf("second result = %+v", res)
	}
	r.Wait()
}

func TestCategoriesAreIndependent(t *testing.T) {
	r := NewRegistry(nil)
	release := make(chan struct{})
	pack := r.Start(context.Background(), CategoryPack, func(ctx context.Context, _ progress.Sink) (string, error) {
		select {
		case <-release:
			return "pack", nil
		case <-ctx.Done():
			return "", ctx.Err()
		}
	})
	preview := r.Start(context.Background(), CategoryPreview, func(context.Context, progress.Sink) (string, error) {
		return "frame", nil
	})
	if res := waitResult(t, preview); res.Outcome != OutcomeDone {
		t.Fatalf("preview outcome = %s", res.Outcome)
	}
	if r.Active(CategoryPack) != pack {
		t.Fatal("pack should still be active")
	}
	close(release)
	if res := waitResult(t, pack); res.Outcome != OutcomeDone {
		t.Fatalf("pack outcome = %s", res.Outcome)
	}
}

func TestCancelAllAndContextErrorsClassifyAsCancelled(t *testing.T) {
	r := NewRegistry(nil)
	h := r.Start(context.Background(), CategoryUnpack, func(ctx context.Context, _ progress.Sink) (string, error) {
		<-ctx.Done()
		return "", errors.New("decode interrupted")
	})
	r.CancelAll()
	if res := waitResult(t, h); res.Outcome != OutcomeCancelled {
		t.Fatalf("outcome = %s, want cancelled", res.Outcome)
	}
}

func TestEventsDropWhenReaderLags(t *testing.T) {
	r := NewRegistry(nil)
	h := r.Start(context.Background(), CategoryPack, func(_ context.Context, emit progress.Sink) (string, error) {
		for i := range eventBuffer + 10 {
			emit(progress.Event{FrameCount: int64(i)})
		}
		return "", nil
	})
	waitResult(t, h)
	if h.DroppedEvents() != 10 {
		t.Fatalf("expected 10 dropped events, got %d", h.DroppedEvents())
	}
	count := 0
	for range h.Events() {
		count++
	}
	if count != eventBuffer {
		t.Fatalf("expected %d buffered events, got %d", eventBuffer, count)
	}
}
