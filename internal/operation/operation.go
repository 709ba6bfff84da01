// Package operation tracks in-flight pack, unpack, and preview operations.
//
// Each call returns an explicit Handle that streams progress events and
// settles in exactly one outcome. A Registry keeps at most one active handle
// per category: starting a new operation cancels the previous one of the same
// category and waits for it to settle before the new work begins. Different
// categories run independently.
package operation

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"reelpack/internal/logging"
	"reelpack/internal/progress"
	"reelpack/internal/services"
)

// Category groups operations that supersede each other.
type Category string

const (
	CategoryPack    Category = "pack"
	CategoryUnpack  Category = "unpack"
	CategoryPreview Category = "preview"
)

// Outcome is the terminal state of an operation.
type Outcome string

const (
	OutcomeDone      Outcome = "done"
	OutcomeFailed    Outcome = "failed"
	OutcomeCancelled Outcome = "cancelled"
)

// Result is what a settled operation produced.
type Result struct {
	Outcome Outcome
	// Output is the produced archive or destination directory on success.
	Output   string
	Err      error
	Started  time.Time
	Finished time.Time
}

// Func is the body of an operation. It must return promptly once ctx is done.
type Func func(ctx context.Context, emit progress.Sink) (output string, err error)

const eventBuffer = 64

// Handle is a caller-facing reference to one operation.
type Handle struct {
	id       string
	category Category
	cancel   context.CancelFunc
	events   chan progress.Event
	done     chan struct{}
	result   Result
	dropped  atomic.Int64
	closed   atomic.Bool
	mu       sync.Mutex
}

// ID returns the unique operation identifier.
func (h *Handle) ID() string { return h.id }

// Category returns the operation category.
func (h *Handle) Category() Category { return h.category }

// Events streams progress. The channel is closed once the operation settles.
// Events are dropped rather than blocking the pipeline when the reader lags.
func (h *Handle) Events() <-chan progress.Event { return h.events }

// Cancel requests termination. It is safe to call repeatedly.
func (h *Handle) Cancel() { h.cancel() }

// Done is closed when the operation has settled.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Wait blocks until the operation settles and returns its result.
func (h *Handle) Wait() Result {
	<-h.done
	return h.result
}

// DroppedEvents reports how many progress events were discarded.
func (h *Handle) DroppedEvents() int64 { return h.dropped.Load() }

func (h *Handle) emit(e progress.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed.Load() {
		return
	}
	select {
	case h.events <- e:
	default:
		h.dropped.Add(1)
	}
}

func (h *Handle) settle(result Result) {
	h.mu.Lock()
	h.closed.Store(true)
	close(h.events)
	h.mu.Unlock()
	h.result = result
	close(h.done)
}

// Registry holds the active handle for each category.
type Registry struct {
	mu     sync.Mutex
	active map[Category]*Handle
	wg     sync.WaitGroup
	logger *slog.Logger
}

// NewRegistry constructs an empty registry.
func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		active: make(map[Category]*Handle),
		logger: logging.NewComponentLogger(logger, "operations"),
	}
}

// Start launches fn as the new active operation of category. Any operation
// already active in that category is cancelled; fn starts only after it has
// settled.
func (r *Registry) Start(parent context.Context, category Category, fn Func) *Handle {
	id := uuid.NewString()
	ctx, cancel := context.WithCancel(parent)
	ctx = services.WithOperationID(ctx, id)
	ctx = services.WithCategory(ctx, string(category))

	h := &Handle{
		id:       id,
		category: category,
		cancel:   cancel,
		events:   make(chan progress.Event, eventBuffer),
		done:     make(chan struct{}),
	}

	r.mu.Lock()
	previous := r.active[category]
	r.active[category] = h
	r.wg.Add(1)
	r.mu.Unlock()

	logger := logging.WithContext(ctx, r.logger)
	if previous != nil {
		logger.Info("superseding active operation", logging.String("previous_id", previous.id))
		previous.Cancel()
	}

	go func() {
		defer r.wg.Done()
		defer cancel()
		if previous != nil {
			<-previous.Done()
		}

		started := time.Now()
		output, err := fn(ctx, h.emit)
		result := Result{
			Output:   output,
			Err:      err,
			Outcome:  classify(ctx, err),
			Started:  started,
			Finished: time.Now(),
		}
		if result.Outcome != OutcomeDone {
			result.Output = ""
		}

		r.mu.Lock()
		if r.active[category] == h {
			delete(r.active, category)
		}
		r.mu.Unlock()

		h.settle(result)
		logger.Debug("operation settled",
			logging.String("outcome", string(result.Outcome)),
			logging.Duration("elapsed", result.Finished.Sub(started)),
			logging.Int64("dropped_events", h.DroppedEvents()),
		)
	}()

	return h
}

// Active returns the in-flight handle for category, or nil.
func (r *Registry) Active(category Category) *Handle {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active[category]
}

// CancelAll cancels every active operation.
func (r *Registry) CancelAll() {
	r.mu.Lock()
	handles := make([]*Handle, 0, len(r.active))
	for _, h := range r.active {
		handles = append(handles, h)
	}
	r.mu.Unlock()
	for _, h := range handles {
		h.Cancel()
	}
}

// Wait blocks until every started operation has settled.
func (r *Registry) Wait() {
	r.wg.Wait()
}

func classify(ctx context.Context, err error) Outcome {
	switch {
	case err == nil:
		return OutcomeDone
	case services.IsCancellation(err), ctx.Err() != nil:
		return OutcomeCancelled
	default:
		return OutcomeFailed
	}
}
