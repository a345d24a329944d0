package pushback

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/getmockd/mockresolver/pkg/mock"
	"github.com/getmockd/mockresolver/pkg/template"
	"github.com/getmockd/mockresolver/pkg/template/builtin"
)

type testRenderer struct {
	eval *template.Evaluator
}

func (r testRenderer) RenderString(source string, ctx *template.Context) (string, error) {
	expr, err := template.ParserFor(r.eval.Registry()).Parse(source)
	if err != nil {
		return "", err
	}
	return r.eval.Evaluate(expr, ctx)
}

func newRenderer(t *testing.T) testRenderer {
	t.Helper()
	reg, err := builtin.NewRegistry(builtin.Options{})
	require.NoError(t, err)
	return testRenderer{eval: template.NewEvaluator(reg)}
}

type captured struct {
	method string
	path   string
	header http.Header
	body   string
}

func captureServer(t *testing.T, status int) (*httptest.Server, <-chan captured) {
	t.Helper()
	ch := make(chan captured, 16)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		ch <- captured{method: r.Method, path: r.URL.Path, header: r.Header.Clone(), body: string(b)}
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)
	return srv, ch
}

func waitResult(t *testing.T, h *Handle) Result {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	res, err := h.Wait(ctx)
	require.NoError(t, err)
	return res
}

func TestDispatch_Delivers(t *testing.T) {
	srv, got := captureServer(t, http.StatusAccepted)

	var hooked atomic.Int32
	d := New(newRenderer(t), Config{Workers: 2}, WithHook(func(Result) { hooked.Add(1) }))
	defer d.Shutdown(context.Background())

	ctx := template.NewEmptyContext()
	ctx.SetVar("orderId", "o-42")
	spec := &mock.PushbackSpec{
		URL:     srv.URL + "/hooks/${var:orderId}",
		Method:  "put",
		Headers: mock.HeaderList{{Name: "X-Order", Value: "${upper(var:orderId)}"}},
		Body:    `{"order":"${var:orderId}"}`,
	}

	h := d.Dispatch(spec, ctx, Meta{EndpointID: "ep", CandidateID: "ok"})
	res := waitResult(t, h)

	require.True(t, res.OK(), "err: %v", res.Err)
	assert.Equal(t, http.StatusAccepted, res.StatusCode)
	assert.Equal(t, 1, res.Attempts)
	assert.Equal(t, "ep", res.EndpointID)
	assert.Equal(t, "ok", res.CandidateID)
	assert.Equal(t, h.ID(), res.ID)

	c := <-got
	assert.Equal(t, http.MethodPut, c.method)
	assert.Equal(t, "/hooks/o-42", c.path)
	assert.Equal(t, "O-42", c.header.Get("X-Order"))
	assert.Equal(t, "application/json", c.header.Get("Content-Type"))
	assert.Equal(t, h.ID(), c.header.Get("X-Pushback-Id"))
	assert.Equal(t, `{"order":"o-42"}`, c.body)

	assert.Equal(t, int32(1), hooked.Load())
	assert.Equal(t, int64(1), d.Stats().Delivered)
}

func TestHandle_OnDone(t *testing.T) {
	srv, _ := captureServer(t, http.StatusOK)
	d := New(newRenderer(t), Config{})
	defer d.Shutdown(context.Background())

	tests := []struct {
		name string
		spec *mock.PushbackSpec
		ok   bool
	}{
		{name: "delivered", spec: &mock.PushbackSpec{URL: srv.URL}, ok: true},
		{name: "render failure completes before registration", spec: &mock.PushbackSpec{URL: srv.URL, Body: "${nope()}"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := d.Dispatch(tt.spec, template.NewEmptyContext(), Meta{EndpointID: "ep"})

			got := make(chan Result, 2)
			h.OnDone(func(r Result) { got <- r })
			h.OnDone(func(r Result) { got <- r })

			for range 2 {
				select {
				case r := <-got:
					assert.Equal(t, h.ID(), r.ID)
					assert.Equal(t, "ep", r.EndpointID)
					assert.Equal(t, tt.ok, r.OK())
				case <-time.After(5 * time.Second):
					t.Fatal("OnDone callback not called")
				}
			}
		})
	}
}

func TestDispatch_DefaultMethodPost(t *testing.T) {
	srv, got := captureServer(t, http.StatusOK)
	d := New(newRenderer(t), Config{})
	defer d.Shutdown(context.Background())

	res := waitResult(t, d.Dispatch(&mock.PushbackSpec{URL: srv.URL}, template.NewEmptyContext(), Meta{}))
	require.NoError(t, res.Err)
	assert.Equal(t, http.MethodPost, (<-got).method)
}

func TestDispatch_RenderFailure(t *testing.T) {
	var results []Result
	var mu sync.Mutex
	d := New(newRenderer(t), Config{}, WithHook(func(r Result) {
		mu.Lock()
		results = append(results, r)
		mu.Unlock()
	}))
	defer d.Shutdown(context.Background())

	h := d.Dispatch(&mock.PushbackSpec{URL: "http://example.invalid", Body: "${nope()}"}, template.NewEmptyContext(), Meta{})

	select {
	case <-h.Done():
	default:
		t.Fatal("render failure should complete the handle immediately")
	}
	res, ok := h.Result()
	require.True(t, ok)
	assert.ErrorIs(t, res.Err, ErrRender)
	assert.ErrorIs(t, res.Err, template.ErrUnknownFunction)
	assert.Equal(t, 0, res.Attempts)

	mu.Lock()
	assert.Len(t, results, 1)
	mu.Unlock()
	assert.Equal(t, int64(1), d.Stats().Failed)
}

func TestDispatch_InvalidTarget(t *testing.T) {
	d := New(newRenderer(t), Config{})
	defer d.Shutdown(context.Background())

	for _, target := range []string{"not a url", "ftp://example.com/x", "/relative"} {
		res := waitResult(t, d.Dispatch(&mock.PushbackSpec{URL: target}, template.NewEmptyContext(), Meta{}))
		assert.ErrorIs(t, res.Err, ErrInvalidTarget, target)
	}
}

func TestDispatch_SingleAttemptWithoutRetry(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	d := New(newRenderer(t), Config{})
	defer d.Shutdown(context.Background())

	res := waitResult(t, d.Dispatch(&mock.PushbackSpec{URL: srv.URL}, template.NewEmptyContext(), Meta{}))
	require.Error(t, res.Err)
	assert.Equal(t, http.StatusServiceUnavailable, res.StatusCode)
	assert.Equal(t, 1, res.Attempts)
	assert.Equal(t, int32(1), calls.Load())
}

func TestDispatch_RetryUntilSuccess(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	d := New(newRenderer(t), Config{})
	defer d.Shutdown(context.Background())

	spec := &mock.PushbackSpec{URL: srv.URL, Retry: &mock.RetryPolicy{MaxAttempts: 4, BackoffMs: 1}}
	res := waitResult(t, d.Dispatch(spec, template.NewEmptyContext(), Meta{}))
	require.NoError(t, res.Err)
	assert.Equal(t, 3, res.Attempts)
}

func TestDispatch_RetryCapped(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	d := New(newRenderer(t), Config{})
	defer d.Shutdown(context.Background())

	spec := &mock.PushbackSpec{URL: srv.URL, Retry: &mock.RetryPolicy{MaxAttempts: 50}}
	res := waitResult(t, d.Dispatch(spec, template.NewEmptyContext(), Meta{}))
	require.Error(t, res.Err)
	assert.Equal(t, mock.MaxRetryAttempts, res.Attempts)
	assert.Equal(t, int32(mock.MaxRetryAttempts), calls.Load())
}

func TestDispatch_ClientErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	d := New(newRenderer(t), Config{})
	defer d.Shutdown(context.Background())

	spec := &mock.PushbackSpec{URL: srv.URL, Retry: &mock.RetryPolicy{MaxAttempts: 3}}
	res := waitResult(t, d.Dispatch(spec, template.NewEmptyContext(), Meta{}))
	require.Error(t, res.Err)
	assert.Equal(t, 1, res.Attempts)
	assert.Equal(t, int32(1), calls.Load())
}

// blockingDoer parks every request until release is closed.
type blockingDoer struct {
	started chan struct{}
	release chan struct{}
}

func (b *blockingDoer) Do(req *http.Request) (*http.Response, error) {
	b.started <- struct{}{}
	select {
	case <-b.release:
		return &http.Response{StatusCode: http.StatusOK, Body: io.NopCloser(http.NoBody)}, nil
	case <-req.Context().Done():
		return nil, req.Context().Err()
	}
}

func TestDispatch_QueueFullDropsWithoutBlocking(t *testing.T) {
	doer := &blockingDoer{started: make(chan struct{}, 4), release: make(chan struct{})}
	d := New(newRenderer(t), Config{Workers: 1, QueueSize: 1}, WithHTTPClient(doer))
	defer d.Shutdown(context.Background())

	spec := &mock.PushbackSpec{URL: "http://target.test/x"}
	first := d.Dispatch(spec, template.NewEmptyContext(), Meta{})
	<-doer.started // worker busy

	second := d.Dispatch(spec, template.NewEmptyContext(), Meta{}) // fills the queue

	start := time.Now()
	third := d.Dispatch(spec, template.NewEmptyContext(), Meta{})
	assert.Less(t, time.Since(start), time.Second)

	res, ok := third.Result()
	require.True(t, ok)
	assert.True(t, res.Dropped)
	assert.ErrorIs(t, res.Err, ErrQueueFull)

	close(doer.release)
	assert.NoError(t, waitResult(t, first).Err)
	assert.NoError(t, waitResult(t, second).Err)
	assert.Equal(t, int64(1), d.Stats().Dropped)
}

func TestDispatch_RateLimited(t *testing.T) {
	srv, _ := captureServer(t, http.StatusOK)
	d := New(newRenderer(t), Config{Workers: 4, RatePerSecond: 20, Burst: 1})
	defer d.Shutdown(context.Background())

	start := time.Now()
	var handles []*Handle
	for range 4 {
		handles = append(handles, d.Dispatch(&mock.PushbackSpec{URL: srv.URL}, template.NewEmptyContext(), Meta{}))
	}
	for _, h := range handles {
		require.NoError(t, waitResult(t, h).Err)
	}
	// Three waits of 50ms after the first token.
	assert.GreaterOrEqual(t, time.Since(start), 120*time.Millisecond)
}

func TestShutdown_DrainsQueued(t *testing.T) {
	srv, _ := captureServer(t, http.StatusOK)
	d := New(newRenderer(t), Config{Workers: 1, QueueSize: 8})

	var handles []*Handle
	for range 5 {
		handles = append(handles, d.Dispatch(&mock.PushbackSpec{URL: srv.URL}, template.NewEmptyContext(), Meta{}))
	}
	require.NoError(t, d.Shutdown(context.Background()))
	for _, h := range handles {
		res, ok := h.Result()
		require.True(t, ok)
		assert.NoError(t, res.Err)
	}

	res := waitResult(t, d.Dispatch(&mock.PushbackSpec{URL: srv.URL}, template.NewEmptyContext(), Meta{}))
	assert.ErrorIs(t, res.Err, ErrShutdown)
	assert.True(t, res.Dropped)
}

func TestShutdown_GraceExpiredCancelsInFlight(t *testing.T) {
	doer := &blockingDoer{started: make(chan struct{}, 1), release: make(chan struct{})}
	d := New(newRenderer(t), Config{Workers: 1}, WithHTTPClient(doer))

	h := d.Dispatch(&mock.PushbackSpec{URL: "http://target.test/"}, template.NewEmptyContext(), Meta{})
	<-doer.started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := d.Shutdown(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	res := waitResult(t, h)
	assert.True(t, errors.Is(res.Err, context.Canceled))
}

func TestHookPanicRecovered(t *testing.T) {
	srv, _ := captureServer(t, http.StatusOK)
	d := New(newRenderer(t), Config{}, WithHook(func(Result) { panic("boom") }))
	defer d.Shutdown(context.Background())

	res := waitResult(t, d.Dispatch(&mock.PushbackSpec{URL: srv.URL}, template.NewEmptyContext(), Meta{}))
	assert.NoError(t, res.Err)
}

func TestHandle_WaitContext(t *testing.T) {
	h := newHandle("x")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := h.Wait(ctx)
	assert.ErrorIs(t, err, context.Canceled)

	_, ok := h.Result()
	assert.False(t, ok)
}
