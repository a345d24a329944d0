package metrics

import (
	"runtime"
	"time"
)

// RuntimeCollector samples Go runtime gauges. Collector refreshes it on
// every scrape, so no background goroutine is needed.
type RuntimeCollector struct {
	goroutines *Gauge
	heapAlloc  *Gauge
	heapInuse  *Gauge
	gcPause    *Gauge
	numGC      *Gauge
	uptime     *Gauge

	startTime time.Time
}

// NewRuntimeCollector registers the runtime gauges on r.
func NewRuntimeCollector(r *Registry) *RuntimeCollector {
	rc := &RuntimeCollector{
		startTime:  time.Now(),
		goroutines: r.NewGauge("go_goroutines", "Number of goroutines that currently exist"),
		heapAlloc:  r.NewGauge("go_memstats_heap_alloc_bytes", "Number of heap bytes allocated and still in use"),
		heapInuse:  r.NewGauge("go_memstats_heap_inuse_bytes", "Number of heap bytes that are in use"),
		gcPause:    r.NewGauge("go_gc_duration_seconds", "Total GC pause duration in seconds"),
		numGC:      r.NewGauge("go_gc_cycles_total", "Total number of completed GC cycles"),
		uptime:     r.NewGauge("mockresolver_uptime_seconds", "Process uptime in seconds"),
	}
	info := r.NewGauge("go_info", "Information about the Go environment", "version")
	_ = info.Set(1, runtime.Version())
	return rc
}

// Collect updates every gauge with current values.
func (rc *RuntimeCollector) Collect() {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	_ = rc.uptime.Set(time.Since(rc.startTime).Seconds())
	_ = rc.goroutines.Set(float64(runtime.NumGoroutine()))
	_ = rc.heapAlloc.Set(float64(mem.HeapAlloc))
	_ = rc.heapInuse.Set(float64(mem.HeapInuse))
	// PauseTotalNs is cumulative; the PauseNs ring buffer wraps after 256 cycles.
	_ = rc.gcPause.Set(float64(mem.PauseTotalNs) / 1e9)
	_ = rc.numGC.Set(float64(mem.NumGC))
}
