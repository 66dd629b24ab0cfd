// Package pipeline provides the staged apply path of the engine.
//
// One call runs build → merge → layout: the extraction batch becomes a
// delta against the given snapshot, the delta reduces to the next snapshot,
// and the layout engine positions the result. Layout results are cached by
// content hash, so replaying the same stream is cheap, and every stage emits
// observability events and timing stats.
//
// # Usage
//
// Create a Runner and apply batches:
//
//	runner := pipeline.NewRunner(cache, nil, logger, pipeline.Options{})
//	result, err := runner.Apply(ctx, snapshot, batch, previousPositions)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	snapshot = result.Snapshot
package pipeline

import (
	"encoding/json"
	"io"
	"time"

	"github.com/charmbracelet/log"

	"github.com/telariq/loomgraph/pkg/cache"
	"github.com/telariq/loomgraph/pkg/delta"
	"github.com/telariq/loomgraph/pkg/graph"
	"github.com/telariq/loomgraph/pkg/layout"
	"github.com/telariq/loomgraph/pkg/merge"
	"github.com/telariq/loomgraph/pkg/resolve"
)

// Defaults for runner options.
const (
	// DefaultCheckpointEvery is how many versions pass between checkpoint
	// events.
	DefaultCheckpointEvery = 10

	// DefaultGraphName scopes checkpoint cache keys when the caller does
	// not name the stream.
	DefaultGraphName = "default"
)

// Engine names accepted by Options.Engine.
const (
	EngineForce   = "force"
	EngineLayered = "layered"
)

// Options configures a pipeline runner.
type Options struct {
	// FuzzyThreshold for entity resolution. Zero means the default.
	FuzzyThreshold float64 `json:"fuzzy_threshold,omitempty"`

	// Policy for version-mismatch handling during merge.
	Policy merge.Policy `json:"policy,omitempty"`

	// Engine selects the layout strategy, EngineForce by default.
	Engine string `json:"engine,omitempty"`

	// LayoutConfig holds the layout tunables. The zero value means
	// layout.DefaultConfig.
	LayoutConfig layout.Config `json:"layout_config,omitempty"`

	// CheckpointEvery fires a checkpoint every Nth version; negative
	// disables, zero means DefaultCheckpointEvery.
	CheckpointEvery int `json:"checkpoint_every,omitempty"`

	// GraphName scopes checkpoint cache keys.
	GraphName string `json:"graph_name,omitempty"`

	// Refresh bypasses the layout cache on read (results are still written).
	Refresh bool `json:"refresh,omitempty"`

	// Logger for stage summaries. Defaults to a silent logger.
	Logger *log.Logger `json:"-"`
}

// validateAndSetDefaults fills zero values in place.
func (o *Options) validateAndSetDefaults() {
	if o.FuzzyThreshold == 0 {
		o.FuzzyThreshold = resolve.DefaultFuzzyThreshold
	}
	if o.Engine == "" {
		o.Engine = EngineForce
	}
	if (o.LayoutConfig == layout.Config{}) {
		o.LayoutConfig = layout.DefaultConfig()
	}
	if o.CheckpointEvery == 0 {
		o.CheckpointEvery = DefaultCheckpointEvery
	}
	if o.CheckpointEvery < 0 {
		o.CheckpointEvery = 0
	}
	if o.GraphName == "" {
		o.GraphName = DefaultGraphName
	}
	if o.Logger == nil {
		o.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}
}

// Result contains the outputs of one pipeline application.
type Result struct {
	// Delta built from the batch.
	Delta graph.Delta

	// Snapshot after the merge.
	Snapshot graph.Snapshot

	// SnapshotHash is the content hash of the merged snapshot.
	SnapshotHash string

	// Positions for the merged snapshot.
	Positions layout.Positions

	// Incremental reports whether layout took the incremental path.
	// Always false on a layout cache hit.
	Incremental bool

	// Per-stage warnings.
	BuildWarnings  []delta.Warning
	MergeWarnings  []merge.Warning
	LayoutWarnings []layout.Warning

	// Stats contains timing and size information.
	Stats Stats

	// CacheInfo tracks which stages hit the cache.
	CacheInfo CacheInfo
}

// Stats contains pipeline execution statistics.
type Stats struct {
	EntityCount   int
	RelationCount int
	BuildTime     time.Duration
	MergeTime     time.Duration
	LayoutTime    time.Duration
}

// CacheInfo tracks cache hits for cacheable stages.
type CacheInfo struct {
	LayoutHit bool // Whether the position map came from cache
}

// configHash fingerprints the layout configuration for cache keys.
func configHash(cfg layout.Config) string {
	data, _ := json.Marshal(cfg)
	return cache.Hash(data)
}
