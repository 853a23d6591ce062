package cli

import (
	"context"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/matzehuels/overview/pkg/observability"
)

// =============================================================================
// Prometheus Hooks
// =============================================================================

// metrics implements every observability hook set on one registry.
type metrics struct {
	ticks       *prometheus.CounterVec
	layoutNodes *prometheus.GaugeVec
	heat        *prometheus.GaugeVec
	velocity    *prometheus.GaugeVec
	cooled      *prometheus.CounterVec
	drags       *prometheus.CounterVec

	scanBatches  *prometheus.CounterVec
	scanMessages *prometheus.CounterVec
	scanDuration *prometheus.HistogramVec
	scanDirs     *prometheus.GaugeVec
	watchEvents  *prometheus.CounterVec

	cacheRequests *prometheus.CounterVec
	cacheBytes    *prometheus.CounterVec

	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
}

func newMetrics(reg prometheus.Registerer) *metrics {
	f := promauto.With(reg)
	return &metrics{
		ticks: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "overview", Subsystem: "layout", Name: "ticks_total",
			Help: "Layout ticks run on hot trees",
		}, []string{"tree"}),
		layoutNodes: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "overview", Subsystem: "layout", Name: "nodes",
			Help: "Nodes laid out in the last tick",
		}, []string{"tree"}),
		heat: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "overview", Subsystem: "layout", Name: "heat",
			Help: "Remaining heat of a tree",
		}, []string{"tree"}),
		velocity: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "overview", Subsystem: "layout", Name: "max_velocity",
			Help: "Largest node speed in the last tick",
		}, []string{"tree"}),
		cooled: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "overview", Subsystem: "layout", Name: "cooled_total",
			Help: "Times a tree came to rest",
		}, []string{"tree"}),
		drags: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "overview", Subsystem: "layout", Name: "drag_events_total",
			Help: "Drag protocol events by phase",
		}, []string{"phase"}),

		scanBatches: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "overview", Subsystem: "scan", Name: "batches_total",
			Help: "Message batches applied to trees",
		}, []string{"root"}),
		scanMessages: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "overview", Subsystem: "scan", Name: "messages_total",
			Help: "Scanner messages applied to trees",
		}, []string{"root"}),
		scanDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "overview", Subsystem: "scan", Name: "duration_seconds",
			Help:    "Time to walk a folder hierarchy",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
		}, []string{"status"}),
		scanDirs: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "overview", Subsystem: "scan", Name: "dirs",
			Help: "Folders found by the last scan",
		}, []string{"root"}),
		watchEvents: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "overview", Subsystem: "watch", Name: "events_total",
			Help: "File system events by operation",
		}, []string{"op"}),

		cacheRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "overview", Subsystem: "cache", Name: "requests_total",
			Help: "Snapshot cache lookups and writes",
		}, []string{"backend", "result"}),
		cacheBytes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "overview", Subsystem: "cache", Name: "written_bytes_total",
			Help: "Bytes written to the snapshot cache",
		}, []string{"backend"}),

		requests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "overview", Subsystem: "http", Name: "requests_total",
			Help: "HTTP requests by route and status",
		}, []string{"method", "route", "status"}),
		requestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "overview", Subsystem: "http", Name: "request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
}

// install registers m as the process-wide hook implementation.
func (m *metrics) install() {
	observability.SetLayoutHooks(m)
	observability.SetScanHooks(m)
	observability.SetCacheHooks(m)
	observability.SetServerHooks(m)
}

func (m *metrics) OnTick(tree string, nodes, heat int, maxVelocity float64) {
	m.ticks.WithLabelValues(tree).Inc()
	m.layoutNodes.WithLabelValues(tree).Set(float64(nodes))
	m.heat.WithLabelValues(tree).Set(float64(heat))
	m.velocity.WithLabelValues(tree).Set(maxVelocity)
}

func (m *metrics) OnCooled(tree string) {
	m.cooled.WithLabelValues(tree).Inc()
	m.heat.WithLabelValues(tree).Set(0)
}

func (m *metrics) OnDrag(_ string, phase string) {
	m.drags.WithLabelValues(phase).Inc()
}

func (m *metrics) OnScanBatch(_ context.Context, root string, messages int) {
	m.scanBatches.WithLabelValues(root).Inc()
	m.scanMessages.WithLabelValues(root).Add(float64(messages))
}

func (m *metrics) OnScanComplete(_ context.Context, root string, dirs int, d time.Duration, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.scanDuration.WithLabelValues(status).Observe(d.Seconds())
	m.scanDirs.WithLabelValues(root).Set(float64(dirs))
}

func (m *metrics) OnWatchEvent(_ context.Context, _ string, op string) {
	m.watchEvents.WithLabelValues(op).Inc()
}

func (m *metrics) OnCacheHit(_ context.Context, backend string) {
	m.cacheRequests.WithLabelValues(backend, "hit").Inc()
}

func (m *metrics) OnCacheMiss(_ context.Context, backend string) {
	m.cacheRequests.WithLabelValues(backend, "miss").Inc()
}

func (m *metrics) OnCacheSet(_ context.Context, backend string, size int) {
	m.cacheRequests.WithLabelValues(backend, "set").Inc()
	m.cacheBytes.WithLabelValues(backend).Add(float64(size))
}

func (m *metrics) OnRequest(_ context.Context, method, route string, status int, d time.Duration) {
	m.requests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(method, route).Observe(d.Seconds())
}
