package pushback

import (
	"context"
	"errors"
	"sync"
	"time"
)

// Sentinel errors reported in Result.Err.
var (
	// ErrQueueFull means the delivery was dropped because every worker was
	// busy and the queue had no room.
	ErrQueueFull = errors.New("pushback queue full")

	// ErrShutdown means the dispatcher no longer accepts deliveries.
	ErrShutdown = errors.New("pushback dispatcher shut down")

	// ErrInvalidTarget means the rendered URL is not an absolute http(s) URL.
	ErrInvalidTarget = errors.New("invalid pushback target")

	// ErrRender means the pushback templates failed to render.
	ErrRender = errors.New("pushback render failed")
)

// Meta identifies the resolution a pushback belongs to.
type Meta struct {
	EndpointID  string
	CandidateID string
}

// Result is the outcome of one pushback.
type Result struct {
	ID          string        `json:"id"`
	EndpointID  string        `json:"endpointId,omitempty"`
	CandidateID string        `json:"candidateId,omitempty"`
	Method      string        `json:"method,omitempty"`
	URL         string        `json:"url,omitempty"`
	StatusCode  int           `json:"statusCode,omitempty"`
	Attempts    int           `json:"attempts"`
	Duration    time.Duration `json:"duration"`
	Dropped     bool          `json:"dropped,omitempty"`
	Err         error         `json:"-"`
}

// OK reports whether the target accepted the delivery.
func (r Result) OK() bool {
	return r.Err == nil
}

// Handle tracks a dispatched pushback.
type Handle struct {
	id     string
	done   chan struct{}
	result Result

	mu      sync.Mutex
	waiters []func(Result)
}

func newHandle(id string) *Handle {
	return &Handle{id: id, done: make(chan struct{})}
}

// ID returns the delivery ID, also sent as the X-Pushback-Id header.
func (h *Handle) ID() string { return h.id }

// Done is closed once the delivery has finished, failed or been dropped.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Result returns the outcome and whether it is final.
func (h *Handle) Result() (Result, bool) {
	select {
	case <-h.done:
		return h.result, true
	default:
		return Result{}, false
	}
}

// Wait blocks until the delivery finishes or ctx ends.
func (h *Handle) Wait(ctx context.Context) (Result, error) {
	select {
	case <-h.done:
		return h.result, nil
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

// OnDone registers fn to receive the final Result. fn runs on the goroutine
// that completes the delivery, or immediately if it already has.
func (h *Handle) OnDone(fn func(Result)) {
	h.mu.Lock()
	select {
	case <-h.done:
		h.mu.Unlock()
		fn(h.result)
		return
	default:
	}
	h.waiters = append(h.waiters, fn)
	h.mu.Unlock()
}

func (h *Handle) complete(r Result) {
	h.mu.Lock()
	h.result = r
	close(h.done)
	waiters := h.waiters
	h.waiters = nil
	h.mu.Unlock()

	for _, fn := range waiters {
		fn(r)
	}
}
