package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/getmockd/mockresolver/pkg/engine"
	"github.com/getmockd/mockresolver/pkg/pushback"
)

func TestCounter(t *testing.T) {
	t.Run("without labels", func(t *testing.T) {
		r := NewRegistry()
		c := r.NewCounter("test_counter", "A test counter")

		_ = c.Inc()
		_ = c.Inc()
		_ = c.Add(3)

		if got := c.Value(); got != 5 {
			t.Errorf("expected value 5, got %f", got)
		}
	})

	t.Run("with labels", func(t *testing.T) {
		r := NewRegistry()
		c := r.NewCounter("http_requests", "Total HTTP requests", "method", "status")

		_ = c.Inc("GET", "200")
		_ = c.Inc("GET", "200")
		_ = c.Add(5, "POST", "201")

		if got := c.Value("GET", "200"); got != 2 {
			t.Errorf("expected GET 200=2, got %f", got)
		}
		if got := c.Value("POST", "201"); got != 5 {
			t.Errorf("expected POST 201=5, got %f", got)
		}
		if got := c.Value("DELETE", "204"); got != 0 {
			t.Errorf("expected untouched series to read 0, got %f", got)
		}
	})

	t.Run("wrong label count returns error", func(t *testing.T) {
		r := NewRegistry()
		c := r.NewCounter("test", "test", "label1", "label2")
		err := c.Inc("only_one")
		if !errors.Is(err, ErrLabelCountMismatch) {
			t.Errorf("expected ErrLabelCountMismatch, got %v", err)
		}
	})

	t.Run("negative add returns error", func(t *testing.T) {
		r := NewRegistry()
		c := r.NewCounter("test", "test")
		err := c.Add(-1)
		if !errors.Is(err, ErrNegativeCounterValue) {
			t.Errorf("expected ErrNegativeCounterValue, got %v", err)
		}
	})
}

func TestGauge(t *testing.T) {
	r := NewRegistry()
	g := r.NewGauge("queue_depth", "Queue depth", "queue")

	_ = g.Set(10, "a")
	_ = g.Add(-3, "a")
	_ = g.Add(2, "b")

	if got := g.Value("a"); got != 7 {
		t.Errorf("expected a=7, got %f", got)
	}
	if got := g.Value("b"); got != 2 {
		t.Errorf("expected b=2, got %f", got)
	}
}

func TestHistogram(t *testing.T) {
	r := NewRegistry()
	h := r.NewHistogram("latency", "Latency", []float64{1, 0.1})

	for _, v := range []float64{0.05, 0.1, 0.5, 3} {
		_ = h.Observe(v)
	}
	if got := h.Count(); got != 4 {
		t.Fatalf("expected count 4, got %d", got)
	}

	var b strings.Builder
	if err := r.WriteText(&b); err != nil {
		t.Fatal(err)
	}
	out := b.String()
	for _, want := range []string{
		`latency_bucket{le="0.1"} 2`,
		`latency_bucket{le="1"} 3`,
		`latency_bucket{le="+Inf"} 4`,
		"latency_sum 3.65",
		"latency_count 4",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestRegistry_Handler(t *testing.T) {
	r := NewRegistry()

	c := r.NewCounter("test_requests_total", "Total requests", "method")
	g := r.NewGauge("test_active", "Active items")
	r.NewGauge("test_unused", "Never set")

	_ = c.Inc("POST")
	_ = c.Inc("GET")
	_ = g.Set(42)

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	resp := rec.Result()
	body, _ := io.ReadAll(resp.Body)
	output := string(body)

	if ct := resp.Header.Get("Content-Type"); ct != ContentType {
		t.Errorf("unexpected Content-Type: %s", ct)
	}

	want := "# HELP test_requests_total Total requests\n" +
		"# TYPE test_requests_total counter\n" +
		"test_requests_total{method=\"GET\"} 1\n" +
		"test_requests_total{method=\"POST\"} 1\n" +
		"# HELP test_active Active items\n" +
		"# TYPE test_active gauge\n" +
		"test_active 42\n"
	if output != want {
		t.Errorf("unexpected output:\n%s\nwant:\n%s", output, want)
	}
}

func TestRegistry_DuplicatePanics(t *testing.T) {
	r := NewRegistry()
	r.NewCounter("dup", "first")

	defer func() {
		if recover() == nil {
			t.Error("expected panic on duplicate registration")
		}
	}()
	r.NewGauge("dup", "second")
}

func TestConcurrency(t *testing.T) {
	r := NewRegistry()
	c := r.NewCounter("concurrent_counter", "Test counter", "worker")
	h := r.NewHistogram("concurrent_histogram", "Test histogram", []float64{1, 10, 100})

	var wg sync.WaitGroup
	workers, iterations := 50, 500
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range iterations {
				_ = c.Inc("w")
				_ = h.Observe(float64(j % 50))
			}
		}()
	}
	wg.Wait()

	expected := float64(workers * iterations)
	if got := c.Value("w"); got != expected {
		t.Errorf("expected counter %f, got %f", expected, got)
	}
	if got := h.Count(); got != uint64(expected) {
		t.Errorf("expected histogram count %f, got %d", expected, got)
	}
}

func TestFormatFloat(t *testing.T) {
	tests := map[float64]string{
		0:    "0",
		42:   "42",
		0.25: "0.25",
		-1.5: "-1.5",
	}
	for in, want := range tests {
		if got := formatFloat(in); got != want {
			t.Errorf("formatFloat(%v) = %q, want %q", in, got, want)
		}
	}
}

func TestEscapeLabelValue(t *testing.T) {
	if got := escapeLabelValue("a\"b\\c\nd"); got != `a\"b\\c\nd` {
		t.Errorf("unexpected escape: %s", got)
	}
}

func TestCollector_Hooks(t *testing.T) {
	c := NewCollector()

	c.OnResolved(engine.ResolutionOutcome{EndpointID: "orders", Status: engine.StatusMatched, Duration: 3 * time.Millisecond})
	c.OnResolved(engine.ResolutionOutcome{EndpointID: "orders", Status: engine.StatusMatched})
	c.OnResolved(engine.ResolutionOutcome{EndpointID: "orders", Status: engine.StatusNoMatch})

	c.OnPushback(pushback.Result{EndpointID: "orders", Attempts: 1})
	c.OnPushback(pushback.Result{EndpointID: "orders", Attempts: 3, Err: errors.New("status 503")})
	c.OnPushback(pushback.Result{EndpointID: "orders", Dropped: true, Err: pushback.ErrQueueFull})

	if got := c.Resolutions.Value("orders", "matched"); got != 2 {
		t.Errorf("matched = %f, want 2", got)
	}
	if got := c.Resolutions.Value("orders", "no_match"); got != 1 {
		t.Errorf("no_match = %f, want 1", got)
	}
	if got := c.ResolutionDuration.Count("orders"); got != 3 {
		t.Errorf("duration count = %d, want 3", got)
	}
	for outcome, want := range map[string]float64{PushbackDelivered: 1, PushbackFailed: 1, PushbackDropped: 1} {
		if got := c.Pushbacks.Value("orders", outcome); got != want {
			t.Errorf("pushbacks %s = %f, want %f", outcome, got, want)
		}
	}
	if got := c.PushbackAttempts.Value("orders"); got != 4 {
		t.Errorf("attempts = %f, want 4", got)
	}
}

func TestCollector_Handler(t *testing.T) {
	c := NewCollector()
	c.ObserveHTTP("GET", 200, 10*time.Millisecond)
	c.SetEndpoints(3)

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest("GET", engine.MetricsPath, nil))
	out := rec.Body.String()

	for _, want := range []string{
		`mockresolver_http_requests_total{method="GET",status="200"} 1`,
		"mockresolver_endpoints 3",
		"# TYPE go_goroutines gauge",
		"mockresolver_uptime_seconds",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q", want)
		}
	}
}
