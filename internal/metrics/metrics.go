package metrics

import (
	"fmt"
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var durationBuckets = []float64{1, 5, 10, 20, 50, 100, 200, 500, 1000, 5000}

// Metrics groups the collectors of one map. Layer counters carry a
// "layer" label, source collectors a "source" label.
type Metrics struct {
	TileRequests  *prometheus.CounterVec
	TileLoaded    *prometheus.CounterVec
	TileFailed    *prometheus.CounterVec
	TileCanceled  *prometheus.CounterVec
	TileStale     *prometheus.CounterVec
	TileEvicted   *prometheus.CounterVec
	TilesResident *prometheus.GaugeVec
	TilesPending  *prometheus.GaugeVec

	FetchDurationMs *prometheus.HistogramVec
	CacheHits       *prometheus.CounterVec
	CacheMisses     *prometheus.CounterVec

	CameraUpdates prometheus.Counter
	Animations    *prometheus.CounterVec

	mu     sync.Mutex
	labels map[string]int
}

// New creates the collectors and registers them on reg. A nil reg leaves
// them unregistered.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		TileRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "geoview_tile_requests_total",
			Help: "Tile requests issued to a source",
		}, []string{"layer"}),
		TileLoaded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "geoview_tile_loaded_total",
			Help: "Tiles inserted into the index",
		}, []string{"layer"}),
		TileFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "geoview_tile_failed_total",
			Help: "Tile fetches that failed",
		}, []string{"layer"}),
		TileCanceled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "geoview_tile_canceled_total",
			Help: "Pending tile requests cancelled",
		}, []string{"layer"}),
		TileStale: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "geoview_tile_stale_total",
			Help: "Tile replies discarded because the view moved on",
		}, []string{"layer"}),
		TileEvicted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "geoview_tile_evicted_total",
			Help: "Resident tiles removed from the index",
		}, []string{"layer"}),
		TilesResident: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "geoview_tiles_resident",
			Help: "Tiles currently held by a layer",
		}, []string{"layer"}),
		TilesPending: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "geoview_tiles_pending",
			Help: "Tile requests currently in flight",
		}, []string{"layer"}),
		FetchDurationMs: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "geoview_tile_fetch_duration_ms",
			Help:    "Tile fetch duration in milliseconds",
			Buckets: durationBuckets,
		}, []string{"source"}),
		CacheHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "geoview_tile_cache_hits_total",
			Help: "Tile responses revalidated or served from the response cache",
		}, []string{"source"}),
		CacheMisses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "geoview_tile_cache_misses_total",
			Help: "Tile responses fetched in full",
		}, []string{"source"}),
		CameraUpdates: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "geoview_camera_updates_total",
			Help: "Camera changes delivered to layers",
		}),
		Animations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "geoview_animations_total",
			Help: "Camera animations started",
		}, []string{"kind"}),
	}
	if reg != nil {
		reg.MustRegister(
			m.TileRequests, m.TileLoaded, m.TileFailed, m.TileCanceled,
			m.TileStale, m.TileEvicted, m.TilesResident, m.TilesPending,
			m.FetchDurationMs, m.CacheHits, m.CacheMisses,
			m.CameraUpdates, m.Animations,
		)
	}
	return m
}

// LayerLabel reserves a unique "layer" label value derived from name. The
// first caller gets name itself, later ones name#2, name#3 and so on.
func (m *Metrics) LayerLabel(name string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.labels == nil {
		m.labels = make(map[string]int)
	}
	m.labels[name]++
	if n := m.labels[name]; n > 1 {
		return fmt.Sprintf("%s#%d", name, n)
	}
	return name
}

// Handler serves the collectors of g on /metrics.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
