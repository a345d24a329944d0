package metrics

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
)

// ErrLabelCountMismatch is returned when the number of label values doesn't match the defined labels.
var ErrLabelCountMismatch = errors.New("label count mismatch")

// ErrNegativeCounterValue is returned when attempting to add a negative value to a counter.
var ErrNegativeCounterValue = errors.New("counter cannot be decreased")

// ErrDuplicateMetric is returned when registering a metric with a name that is already registered.
var ErrDuplicateMetric = errors.New("duplicate metric name")

// ContentType is the Prometheus text exposition format served by Handler.
const ContentType = "text/plain; version=0.0.4; charset=utf-8"

// DefaultBuckets are histogram bounds for durations in seconds, 1ms to 10s.
var DefaultBuckets = []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}

// Kind is the Prometheus metric type.
type Kind string

const (
	KindCounter   Kind = "counter"
	KindGauge     Kind = "gauge"
	KindHistogram Kind = "histogram"
)

// atomicFloat64 stores float64 bits for lock-free updates.
type atomicFloat64 struct {
	bits atomic.Uint64
}

func (a *atomicFloat64) Load() float64 {
	return math.Float64frombits(a.bits.Load())
}

func (a *atomicFloat64) Store(v float64) {
	a.bits.Store(math.Float64bits(v))
}

func (a *atomicFloat64) Add(delta float64) {
	for {
		old := a.bits.Load()
		if a.bits.CompareAndSwap(old, math.Float64bits(math.Float64frombits(old)+delta)) {
			return
		}
	}
}

// series is one label combination of a family.
type series struct {
	values []string
	value  atomicFloat64

	// histogram only
	counts []atomic.Uint64
	count  atomic.Uint64
}

// family is the state shared by every metric kind.
type family struct {
	name    string
	help    string
	kind    Kind
	labels  []string
	buckets []float64

	mu     sync.RWMutex
	series map[string]*series
}

func newFamily(name, help string, kind Kind, labels []string) *family {
	return &family{
		name:   name,
		help:   help,
		kind:   kind,
		labels: labels,
		series: make(map[string]*series),
	}
}

// with returns the series for values, creating it on first use.
func (f *family) with(values []string) (*series, error) {
	if len(values) != len(f.labels) {
		return nil, fmt.Errorf("%w: %s %s expected %d labels, got %d", ErrLabelCountMismatch, f.kind, f.name, len(f.labels), len(values))
	}
	key := strings.Join(values, "\x00")

	f.mu.RLock()
	s, ok := f.series[key]
	f.mu.RUnlock()
	if ok {
		return s, nil
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if s, ok = f.series[key]; !ok {
		s = &series{values: slices.Clone(values)}
		if f.kind == KindHistogram {
			s.counts = make([]atomic.Uint64, len(f.buckets))
		}
		f.series[key] = s
	}
	return s, nil
}

// lookup returns an existing series without creating it.
func (f *family) lookup(values []string) (*series, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	s, ok := f.series[strings.Join(values, "\x00")]
	return s, ok
}

// sorted returns the series ordered by label values.
func (f *family) sorted() []*series {
	f.mu.RLock()
	out := make([]*series, 0, len(f.series))
	for _, s := range f.series {
		out = append(out, s)
	}
	f.mu.RUnlock()
	slices.SortFunc(out, func(a, b *series) int {
		return slices.Compare(a.values, b.values)
	})
	return out
}

// Counter is a monotonically increasing metric.
type Counter struct{ f *family }

// Inc adds 1 to the series named by labels.
func (c *Counter) Inc(labels ...string) error {
	return c.Add(1, labels...)
}

// Add adds delta, which must not be negative.
func (c *Counter) Add(delta float64, labels ...string) error {
	if delta < 0 {
		return fmt.Errorf("%w: counter %s", ErrNegativeCounterValue, c.f.name)
	}
	s, err := c.f.with(labels)
	if err != nil {
		return err
	}
	s.value.Add(delta)
	return nil
}

// Value returns the current value, 0 for a series never touched.
func (c *Counter) Value(labels ...string) float64 {
	if s, ok := c.f.lookup(labels); ok {
		return s.value.Load()
	}
	return 0
}

// Gauge is a metric that can arbitrarily go up and down.
type Gauge struct{ f *family }

// Set replaces the value.
func (g *Gauge) Set(v float64, labels ...string) error {
	s, err := g.f.with(labels)
	if err != nil {
		return err
	}
	s.value.Store(v)
	return nil
}

// Add adds delta, which may be negative.
func (g *Gauge) Add(delta float64, labels ...string) error {
	s, err := g.f.with(labels)
	if err != nil {
		return err
	}
	s.value.Add(delta)
	return nil
}

// Value returns the current value, 0 for a series never touched.
func (g *Gauge) Value(labels ...string) float64 {
	if s, ok := g.f.lookup(labels); ok {
		return s.value.Load()
	}
	return 0
}

// Histogram counts observations into cumulative buckets.
type Histogram struct{ f *family }

// Observe records v. The sum is kept in value.
func (h *Histogram) Observe(v float64, labels ...string) error {
	s, err := h.f.with(labels)
	if err != nil {
		return err
	}
	if i, _ := slices.BinarySearch(h.f.buckets, v); i < len(s.counts) {
		s.counts[i].Add(1)
	}
	s.value.Add(v)
	s.count.Add(1)
	return nil
}

// Count returns the number of observations.
func (h *Histogram) Count(labels ...string) uint64 {
	if s, ok := h.f.lookup(labels); ok {
		return s.count.Load()
	}
	return 0
}

// Registry holds registered metric families in registration order.
type Registry struct {
	mu       sync.RWMutex
	families []*family
	names    map[string]struct{}
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{names: make(map[string]struct{})}
}

// NewCounter creates and registers a counter.
func (r *Registry) NewCounter(name, help string, labels ...string) *Counter {
	return &Counter{f: r.register(newFamily(name, help, KindCounter, labels))}
}

// NewGauge creates and registers a gauge.
func (r *Registry) NewGauge(name, help string, labels ...string) *Gauge {
	return &Gauge{f: r.register(newFamily(name, help, KindGauge, labels))}
}

// NewHistogram creates and registers a histogram. A +Inf bucket is added
// when missing.
func (r *Registry) NewHistogram(name, help string, buckets []float64, labels ...string) *Histogram {
	f := newFamily(name, help, KindHistogram, labels)
	f.buckets = slices.Sorted(slices.Values(buckets))
	if len(f.buckets) == 0 || !math.IsInf(f.buckets[len(f.buckets)-1], 1) {
		f.buckets = append(f.buckets, math.Inf(1))
	}
	return &Histogram{f: r.register(f)}
}

// register panics on duplicate names since they produce invalid output.
func (r *Registry) register(f *family) *family {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.names[f.name]; exists {
		panic(fmt.Sprintf("%s: %s", ErrDuplicateMetric, f.name))
	}
	r.names[f.name] = struct{}{}
	r.families = append(r.families, f)
	return f
}

// Handler serves the registry in the Prometheus text format.
func (r *Registry) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", ContentType)
		_ = r.WriteText(w)
	})
}

// WriteText writes every family that has at least one series.
func (r *Registry) WriteText(w io.Writer) error {
	r.mu.RLock()
	families := slices.Clone(r.families)
	r.mu.RUnlock()

	bw := bufio.NewWriter(w)
	for _, f := range families {
		all := f.sorted()
		if len(all) == 0 {
			continue
		}
		fmt.Fprintf(bw, "# HELP %s %s\n", f.name, escapeHelp(f.help))
		fmt.Fprintf(bw, "# TYPE %s %s\n", f.name, f.kind)
		for _, s := range all {
			if f.kind != KindHistogram {
				writeSample(bw, f.name, f.labels, s.values, "", s.value.Load())
				continue
			}
			var cumulative uint64
			for i, bound := range f.buckets {
				cumulative += s.counts[i].Load()
				writeSample(bw, f.name+"_bucket", f.labels, s.values, formatFloat(bound), float64(cumulative))
			}
			writeSample(bw, f.name+"_sum", f.labels, s.values, "", s.value.Load())
			writeSample(bw, f.name+"_count", f.labels, s.values, "", float64(s.count.Load()))
		}
	}
	return bw.Flush()
}

func writeSample(w io.Writer, name string, labels, values []string, le string, v float64) {
	pairs := make([]string, 0, len(labels)+1)
	for i, l := range labels {
		pairs = append(pairs, l+`="`+escapeLabelValue(values[i])+`"`)
	}
	if le != "" {
		pairs = append(pairs, `le="`+le+`"`)
	}
	if len(pairs) == 0 {
		fmt.Fprintf(w, "%s %s\n", name, formatFloat(v))
		return
	}
	fmt.Fprintf(w, "%s{%s} %s\n", name, strings.Join(pairs, ","), formatFloat(v))
}

// formatFloat formats a float64 for Prometheus output.
func formatFloat(v float64) string {
	switch {
	case math.IsNaN(v):
		return "NaN"
	case math.IsInf(v, 1):
		return "+Inf"
	case math.IsInf(v, -1):
		return "-Inf"
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func escapeHelp(s string) string {
	return strings.NewReplacer(`\`, `\\`, "\n", `\n`).Replace(s)
}

func escapeLabelValue(s string) string {
	return strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`).Replace(s)
}
