package pushback

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/getmockd/mockresolver/pkg/logging"
	"github.com/getmockd/mockresolver/pkg/mock"
	"github.com/getmockd/mockresolver/pkg/template"
	"github.com/getmockd/mockresolver/pkg/util"
)

// Renderer renders a template source against a context.
type Renderer interface {
	RenderString(source string, ctx *template.Context) (string, error)
}

// HTTPDoer sends HTTP requests. *http.Client implements it.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Config holds dispatcher settings.
type Config struct {
	// Workers is the number of delivery goroutines (default: 4).
	Workers int `yaml:"workers" json:"workers"`
	// QueueSize is the number of deliveries waiting for a worker (default: 256).
	QueueSize int `yaml:"queueSize" json:"queueSize"`
	// RatePerSecond limits deliveries across all workers. Zero disables the limit.
	RatePerSecond float64 `yaml:"ratePerSecond,omitempty" json:"ratePerSecond,omitempty"`
	// Burst is the token bucket size when RatePerSecond is set (default: 1).
	Burst int `yaml:"burst,omitempty" json:"burst,omitempty"`
	// Timeout applies to each attempt when the PushbackSpec sets none (default: 5s).
	Timeout time.Duration `yaml:"timeout,omitempty" json:"timeout,omitempty"`
	// ShutdownGrace is how long Shutdown lets queued deliveries drain (default: 5s).
	ShutdownGrace time.Duration `yaml:"shutdownGrace,omitempty" json:"shutdownGrace,omitempty"`
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Workers:       4,
		QueueSize:     256,
		Burst:         1,
		Timeout:       5 * time.Second,
		ShutdownGrace: 5 * time.Second,
	}
}

func (c *Config) applyDefaults() {
	d := DefaultConfig()
	if c.Workers <= 0 {
		c.Workers = d.Workers
	}
	if c.QueueSize <= 0 {
		c.QueueSize = d.QueueSize
	}
	if c.Burst <= 0 {
		c.Burst = d.Burst
	}
	if c.Timeout <= 0 {
		c.Timeout = d.Timeout
	}
	if c.ShutdownGrace <= 0 {
		c.ShutdownGrace = d.ShutdownGrace
	}
}

// Stats counts outcomes since the dispatcher started.
type Stats struct {
	Queued    int64 `json:"queued"`
	Delivered int64 `json:"delivered"`
	Failed    int64 `json:"failed"`
	Dropped   int64 `json:"dropped"`
	Pending   int   `json:"pending"`
}

type job struct {
	handle  *Handle
	meta    Meta
	method  string
	url     string
	header  http.Header
	body    []byte
	timeout time.Duration
	retry   *mock.RetryPolicy
	queued  time.Time
}

// Dispatcher delivers pushbacks on a bounded worker pool.
//
// Thread Safety: Safe for concurrent use.
type Dispatcher struct {
	cfg      Config
	renderer Renderer
	client   HTTPDoer
	limiter  *rate.Limiter
	log      *slog.Logger
	hook     func(Result)

	queue chan *job

	mu     sync.RWMutex
	closed bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	queued    atomic.Int64
	delivered atomic.Int64
	failed    atomic.Int64
	dropped   atomic.Int64
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithHTTPClient sets the transport used for deliveries.
func WithHTTPClient(c HTTPDoer) Option {
	return func(d *Dispatcher) {
		if c != nil {
			d.client = c
		}
	}
}

// WithLogger sets the operational logger.
func WithLogger(log *slog.Logger) Option {
	return func(d *Dispatcher) {
		if log != nil {
			d.log = log
		}
	}
}

// WithHook installs a callback that receives every Result. It is called
// synchronously and must not block; panics are recovered.
func WithHook(fn func(Result)) Option {
	return func(d *Dispatcher) {
		d.hook = fn
	}
}

// New creates a dispatcher and starts its workers.
func New(renderer Renderer, cfg Config, opts ...Option) *Dispatcher {
	cfg.applyDefaults()
	ctx, cancel := context.WithCancel(context.Background())
	d := &Dispatcher{
		cfg:      cfg,
		renderer: renderer,
		client:   &http.Client{},
		log:      logging.Nop(),
		queue:    make(chan *job, cfg.QueueSize),
		ctx:      ctx,
		cancel:   cancel,
	}
	if cfg.RatePerSecond > 0 {
		d.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSecond), cfg.Burst)
	}
	for _, opt := range opts {
		opt(d)
	}

	for range cfg.Workers {
		d.wg.Add(1)
		go d.worker()
	}
	return d
}

// Dispatch renders spec against ctx and queues the delivery. It never
// blocks on the network. ctx must not be used by the caller afterwards;
// pass a Clone.
func (d *Dispatcher) Dispatch(spec *mock.PushbackSpec, ctx *template.Context, meta Meta) *Handle {
	h := newHandle(uuid.NewString())
	j, err := d.build(spec, ctx, meta, h)
	if err != nil {
		d.finish(j, Result{Err: err})
		return h
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		d.finish(j, Result{Err: ErrShutdown, Dropped: true})
		return h
	}
	select {
	case d.queue <- j:
		d.queued.Add(1)
	default:
		d.finish(j, Result{Err: ErrQueueFull, Dropped: true})
	}
	return h
}

// build renders the outbound request. The returned job is never nil so
// failures can still be reported against it.
func (d *Dispatcher) build(spec *mock.PushbackSpec, ctx *template.Context, meta Meta, h *Handle) (*job, error) {
	j := &job{handle: h, meta: meta, header: make(http.Header), queued: time.Now()}

	target, err := d.renderer.RenderString(spec.URL, ctx)
	if err != nil {
		return j, fmt.Errorf("%w: url: %w", ErrRender, err)
	}
	j.url = target
	j.method = strings.ToUpper(spec.Method)
	if j.method == "" {
		j.method = http.MethodPost
	}
	u, err := url.Parse(target)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return j, fmt.Errorf("%w: %q", ErrInvalidTarget, target)
	}

	for i, ht := range spec.Headers {
		v, err := d.renderer.RenderString(ht.Value, ctx)
		if err != nil {
			return j, fmt.Errorf("%w: headers[%d]: %w", ErrRender, i, err)
		}
		j.header.Add(ht.Name, v)
	}
	if spec.Body != "" {
		body, err := d.renderer.RenderString(spec.Body, ctx)
		if err != nil {
			return j, fmt.Errorf("%w: body: %w", ErrRender, err)
		}
		j.body = []byte(body)
		if j.header.Get("Content-Type") == "" {
			j.header.Set("Content-Type", util.SniffContentType(body))
		}
	}
	j.header.Set("X-Pushback-Id", h.id)

	j.timeout = d.cfg.Timeout
	if spec.TimeoutMs > 0 {
		j.timeout = time.Duration(spec.TimeoutMs) * time.Millisecond
	}
	j.retry = spec.Retry
	return j, nil
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for j := range d.queue {
		d.deliver(j)
	}
}

// deliver sends j, retrying on transport errors and 5xx responses when the
// spec allows it.
func (d *Dispatcher) deliver(j *job) {
	res := Result{}
	attempts := j.retry.Attempts()
	var backoff time.Duration
	if j.retry != nil {
		backoff = time.Duration(j.retry.BackoffMs) * time.Millisecond
	}

	for attempt := 1; attempt <= attempts; attempt++ {
		res.Attempts = attempt
		if err := d.wait(attempt, backoff); err != nil {
			res.Err = err
			break
		}
		status, err := d.send(j)
		res.StatusCode, res.Err = status, err
		if err == nil || !retryable(status) {
			break
		}
		d.log.Debug("pushback attempt failed", "id", j.handle.id, "attempt", attempt, "error", err)
	}
	d.finish(j, res)
}

// wait applies the rate limit and, after the first attempt, the backoff.
func (d *Dispatcher) wait(attempt int, backoff time.Duration) error {
	if attempt > 1 && backoff > 0 {
		t := time.NewTimer(backoff)
		select {
		case <-t.C:
		case <-d.ctx.Done():
			t.Stop()
			return d.ctx.Err()
		}
	}
	if d.limiter != nil {
		return d.limiter.Wait(d.ctx)
	}
	return d.ctx.Err()
}

func (d *Dispatcher) send(j *job) (int, error) {
	ctx, cancel := context.WithTimeout(d.ctx, j.timeout)
	defer cancel()

	var body io.Reader
	if j.body != nil {
		body = bytes.NewReader(j.body)
	}
	req, err := http.NewRequestWithContext(ctx, j.method, j.url, body)
	if err != nil {
		return 0, err
	}
	req.Header = j.header.Clone()

	resp, err := d.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<16))

	if resp.StatusCode >= 400 {
		return resp.StatusCode, fmt.Errorf("target returned %d", resp.StatusCode)
	}
	return resp.StatusCode, nil
}

// retryable reports whether a failed attempt may be repeated. Client errors
// are final; transport errors and server errors are not.
func retryable(status int) bool {
	return status == 0 || status >= 500
}

// finish updates counters, reports the result and completes the handle.
func (d *Dispatcher) finish(j *job, res Result) {
	res.ID = j.handle.id
	res.EndpointID = j.meta.EndpointID
	res.CandidateID = j.meta.CandidateID
	res.Method = j.method
	res.URL = j.url
	res.Duration = time.Since(j.queued)

	switch {
	case res.Dropped:
		d.dropped.Add(1)
		d.log.Warn("pushback dropped", "id", res.ID, "url", res.URL, "error", res.Err)
	case res.Err != nil:
		d.failed.Add(1)
		d.log.Warn("pushback failed",
			"id", res.ID,
			"url", res.URL,
			"attempts", res.Attempts,
			"status", res.StatusCode,
			"error", res.Err,
			"body", util.TruncateBody(string(j.body), 512),
		)
	default:
		d.delivered.Add(1)
		d.log.Debug("pushback delivered", "id", res.ID, "url", res.URL, "status", res.StatusCode)
	}

	d.report(res)
	j.handle.complete(res)
}

func (d *Dispatcher) report(res Result) {
	if d.hook == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			d.log.Error("pushback hook panicked", "panic", r)
		}
	}()
	d.hook(res)
}

// Stats returns outcome counters.
func (d *Dispatcher) Stats() Stats {
	return Stats{
		Queued:    d.queued.Load(),
		Delivered: d.delivered.Load(),
		Failed:    d.failed.Load(),
		Dropped:   d.dropped.Load(),
		Pending:   len(d.queue),
	}
}

// Shutdown stops accepting deliveries and waits for queued ones to drain.
// When ctx ends first, in-flight requests are cancelled and anything still
// queued fails with the context error.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		d.cancel()
		return nil
	case <-ctx.Done():
		d.cancel()
		return ctx.Err()
	}
}

// Grace returns the configured shutdown grace period.
func (d *Dispatcher) Grace() time.Duration {
	return d.cfg.ShutdownGrace
}
