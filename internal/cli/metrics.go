package cli

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/telariq/loomgraph/pkg/observability"
)

var (
	// deltaRecordsTotal counts records admitted into deltas.
	deltaRecordsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "loomgraph_delta_records_total",
			Help: "Records admitted into built deltas",
		},
		[]string{"kind"},
	)

	// deltaWarningsTotal counts records dropped during delta building.
	deltaWarningsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "loomgraph_delta_warnings_total",
			Help: "Records dropped while building deltas",
		},
	)

	// graphVersion tracks the latest merged snapshot version.
	graphVersion = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "loomgraph_graph_version",
			Help: "Version of the most recently merged snapshot",
		},
	)

	// stageSeconds observes per-stage pipeline latency.
	stageSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "loomgraph_stage_seconds",
			Help:    "Duration of pipeline stages",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"stage"},
	)

	// layoutRunsTotal counts layout computations by engine and mode.
	layoutRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "loomgraph_layout_runs_total",
			Help: "Layout computations by engine and mode",
		},
		[]string{"engine", "mode"},
	)

	// checkpointsTotal counts checkpoint events.
	checkpointsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "loomgraph_checkpoints_total",
			Help: "Snapshot checkpoints written",
		},
	)

	// cacheOpsTotal counts cache hits, misses, and writes by artifact class.
	cacheOpsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "loomgraph_cache_ops_total",
			Help: "Cache operations by artifact class and outcome",
		},
		[]string{"class", "op"},
	)
)

var registerMetricsOnce sync.Once

// registerMetrics installs the Prometheus-backed hook implementations.
// Safe to call more than once; registration happens on the first call.
func registerMetrics() {
	registerMetricsOnce.Do(func() {
		prometheus.MustRegister(
			deltaRecordsTotal,
			deltaWarningsTotal,
			graphVersion,
			stageSeconds,
			layoutRunsTotal,
			checkpointsTotal,
			cacheOpsTotal,
		)
		observability.SetEngineHooks(promEngineHooks{})
		observability.SetCacheHooks(promCacheHooks{})
	})
}

// promEngineHooks forwards pipeline events to Prometheus.
type promEngineHooks struct{}

func (promEngineHooks) OnDeltaBuilt(_ context.Context, addedEntities, addedRelations, warnings int, duration time.Duration) {
	deltaRecordsTotal.WithLabelValues("entity").Add(float64(addedEntities))
	deltaRecordsTotal.WithLabelValues("relation").Add(float64(addedRelations))
	deltaWarningsTotal.Add(float64(warnings))
	stageSeconds.WithLabelValues("build").Observe(duration.Seconds())
}

func (promEngineHooks) OnMergeComplete(_ context.Context, version int, _ int, duration time.Duration) {
	graphVersion.Set(float64(version))
	stageSeconds.WithLabelValues("merge").Observe(duration.Seconds())
}

func (promEngineHooks) OnLayoutStart(context.Context, string, int) {}

func (promEngineHooks) OnLayoutComplete(_ context.Context, engine string, incremental bool, duration time.Duration, _ int) {
	mode := "full"
	if incremental {
		mode = "incremental"
	}
	layoutRunsTotal.WithLabelValues(engine, mode).Inc()
	stageSeconds.WithLabelValues("layout").Observe(duration.Seconds())
}

func (promEngineHooks) OnCheckpoint(context.Context, int) {
	checkpointsTotal.Inc()
}

// promCacheHooks forwards cache events to Prometheus.
type promCacheHooks struct{}

func (promCacheHooks) OnCacheHit(_ context.Context, keyType string) {
	cacheOpsTotal.WithLabelValues(keyType, "hit").Inc()
}

func (promCacheHooks) OnCacheMiss(_ context.Context, keyType string) {
	cacheOpsTotal.WithLabelValues(keyType, "miss").Inc()
}

func (promCacheHooks) OnCacheSet(_ context.Context, keyType string, _ int) {
	cacheOpsTotal.WithLabelValues(keyType, "set").Inc()
}
