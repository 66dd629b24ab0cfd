package pipeline

import (
	"context"
	"encoding/json"
	"time"

	"github.com/charmbracelet/log"

	"github.com/telariq/loomgraph/pkg/cache"
	"github.com/telariq/loomgraph/pkg/delta"
	"github.com/telariq/loomgraph/pkg/errors"
	"github.com/telariq/loomgraph/pkg/graph"
	"github.com/telariq/loomgraph/pkg/layout"
	"github.com/telariq/loomgraph/pkg/merge"
	"github.com/telariq/loomgraph/pkg/observability"
)

// Runner executes the staged apply path with caching.
//
// The Runner reuses the delta builder's and layout engine's internal buffers
// across calls and is therefore NOT safe for concurrent use; give each
// goroutine its own, or serialize calls (the engine's single-writer model
// does this naturally).
type Runner struct {
	Cache  cache.Cache
	Keyer  cache.Keyer
	Logger *log.Logger

	opts    Options
	builder *delta.Builder
	engine  layout.Engine
	cfgHash string
}

// NewRunner creates a runner with the given cache and keyer.
// If keyer is nil, a DefaultKeyer is used.
// If c is nil, a NullCache is used (caching disabled).
func NewRunner(c cache.Cache, keyer cache.Keyer, logger *log.Logger, opts Options) *Runner {
	if keyer == nil {
		keyer = cache.NewDefaultKeyer()
	}
	if c == nil {
		c = cache.NewNullCache()
	}
	if logger == nil {
		logger = log.Default()
	}
	opts.Logger = logger
	opts.validateAndSetDefaults()

	var engine layout.Engine
	if opts.Engine == EngineLayered {
		engine = layout.NewLayeredEngine(opts.LayoutConfig)
	} else {
		engine = layout.NewForceEngine(opts.LayoutConfig)
	}

	return &Runner{
		Cache:   c,
		Keyer:   keyer,
		Logger:  logger,
		opts:    opts,
		builder: delta.NewWithThreshold(opts.FuzzyThreshold),
		engine:  engine,
		cfgHash: configHash(opts.LayoutConfig),
	}
}

// Apply runs the complete build → merge → layout pipeline for one extraction
// batch against the given snapshot.
func (r *Runner) Apply(ctx context.Context, snapshot graph.Snapshot, batch graph.ExtractionResult, previous layout.Positions) (*Result, error) {
	result := &Result{}

	// Stage 1: Build
	buildStart := time.Now()
	built := r.builder.Build(batch, snapshot)
	result.Delta = built.Delta
	result.BuildWarnings = built.Warnings
	result.Stats.BuildTime = time.Since(buildStart)
	observability.Engine().OnDeltaBuilt(ctx,
		len(built.Delta.AddedEntities), len(built.Delta.AddedRelations),
		len(built.Warnings), result.Stats.BuildTime)

	for _, w := range built.Warnings {
		r.Logger.Warn("dropped record", "code", w.Code, "msg", w.Message)
	}
	r.Logger.Info("built delta",
		"addedEntities", len(built.Delta.AddedEntities),
		"addedRelations", len(built.Delta.AddedRelations),
		"updatedEntities", len(built.Delta.UpdatedEntities),
		"duration", result.Stats.BuildTime)

	// Stage 2: Merge
	mergeStart := time.Now()
	merged, err := merge.ApplyWithPolicy(snapshot, built.Delta, r.opts.Policy)
	if err != nil {
		return nil, errors.Wrap(errors.GetCode(err), err, "merge version %d", built.Delta.ToVersion)
	}
	result.Snapshot = merged.Snapshot
	result.MergeWarnings = merged.Warnings
	result.Stats.MergeTime = time.Since(mergeStart)
	result.Stats.EntityCount = len(merged.Snapshot.Entities)
	result.Stats.RelationCount = len(merged.Snapshot.Relations)
	observability.Engine().OnMergeComplete(ctx, merged.Snapshot.Version,
		len(merged.Warnings), result.Stats.MergeTime)

	for _, w := range merged.Warnings {
		r.Logger.Warn("merge", "code", w.Code, "msg", w.Message)
	}
	r.Logger.Info("merged delta",
		"version", merged.Snapshot.Version,
		"entities", result.Stats.EntityCount,
		"relations", result.Stats.RelationCount,
		"duration", result.Stats.MergeTime)

	snapData, err := graph.MarshalSnapshot(merged.Snapshot)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "serialize snapshot %d", merged.Snapshot.Version)
	}
	result.SnapshotHash = cache.Hash(snapData)

	r.maybeCheckpoint(ctx, merged.Snapshot.Version, snapData)

	// Stage 3: Layout
	layoutStart := time.Now()
	positions, incremental, warnings, hit := r.computeLayout(ctx, merged.Snapshot, result.SnapshotHash, previous)
	result.Positions = positions
	result.Incremental = incremental
	result.LayoutWarnings = warnings
	result.Stats.LayoutTime = time.Since(layoutStart)
	result.CacheInfo.LayoutHit = hit

	r.Logger.Info("computed layout",
		"positions", len(positions),
		"incremental", incremental,
		"cached", hit,
		"duration", result.Stats.LayoutTime)

	return result, nil
}

// computeLayout returns positions for the snapshot, consulting the cache
// first. The key covers the snapshot content, the engine, its configuration,
// and the previous positions, so a hit is always byte-correct.
func (r *Runner) computeLayout(ctx context.Context, snap graph.Snapshot, snapHash string, previous layout.Positions) (layout.Positions, bool, []layout.Warning, bool) {
	prevData, _ := json.Marshal(previous)
	key := r.Keyer.LayoutKey(snapHash, cache.LayoutKeyOpts{
		Engine:       r.opts.Engine,
		ConfigHash:   r.cfgHash,
		PreviousHash: cache.Hash(prevData),
	})

	if !r.opts.Refresh {
		if data, hit, err := r.Cache.Get(ctx, key); err == nil && hit {
			var cached layout.Positions
			if err := json.Unmarshal(data, &cached); err == nil {
				observability.Cache().OnCacheHit(ctx, "layout")
				return cached, false, nil, true
			}
			// Corrupt entry: fall through and recompute.
		}
	}
	observability.Cache().OnCacheMiss(ctx, "layout")

	observability.Engine().OnLayoutStart(ctx, r.opts.Engine, len(snap.Entities))
	start := time.Now()
	res := r.engine.Layout(snap.Entities, snap.Relations, previous)
	observability.Engine().OnLayoutComplete(ctx, r.opts.Engine, res.Incremental,
		time.Since(start), len(res.Warnings))

	for _, w := range res.Warnings {
		r.Logger.Warn("layout", "code", w.Code, "msg", w.Message)
	}

	if data, err := json.Marshal(res.Positions); err == nil {
		if err := r.Cache.Set(ctx, key, data, cache.TTLLayout); err == nil {
			observability.Cache().OnCacheSet(ctx, "layout", len(data))
		}
	}
	return res.Positions, res.Incremental, res.Warnings, false
}

// maybeCheckpoint stores the serialized snapshot and fires the checkpoint
// hook every Nth version.
func (r *Runner) maybeCheckpoint(ctx context.Context, version int, snapData []byte) {
	if r.opts.CheckpointEvery <= 0 || version == 0 || version%r.opts.CheckpointEvery != 0 {
		return
	}
	key := r.Keyer.CheckpointKey(r.opts.GraphName, version)
	if err := r.Cache.Set(ctx, key, snapData, cache.TTLCheckpoint); err != nil {
		r.Logger.Warn("checkpoint write failed", "version", version, "err", err)
		return
	}
	observability.Cache().OnCacheSet(ctx, "checkpoint", len(snapData))
	observability.Engine().OnCheckpoint(ctx, version)
	r.Logger.Debug("checkpointed snapshot", "version", version)
}

// LoadCheckpoint fetches a checkpointed snapshot by version, if present.
func (r *Runner) LoadCheckpoint(ctx context.Context, version int) (graph.Snapshot, bool, error) {
	key := r.Keyer.CheckpointKey(r.opts.GraphName, version)
	data, hit, err := r.Cache.Get(ctx, key)
	if err != nil || !hit {
		return graph.Snapshot{}, false, err
	}
	snap, err := graph.UnmarshalSnapshot(data)
	if err != nil {
		return graph.Snapshot{}, false, errors.Wrap(errors.ErrCodeCache, err, "decode checkpoint %d", version)
	}
	return snap, true, nil
}

// Close releases resources held by the runner (primarily the cache).
func (r *Runner) Close() error {
	if r.Cache != nil {
		return r.Cache.Close()
	}
	return nil
}
