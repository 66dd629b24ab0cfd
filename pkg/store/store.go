// Package store owns the client-side canonical graph state.
//
// The store is the stateful shell around the pure engine components: it holds
// the canonical snapshot, feeds deltas through the merge engine, feeds merge
// results to the layout engine, and exposes a render-ready projection of
// positioned nodes and edges.
//
// # Writer Model
//
// The store is single-writer: one inbound delta is fully applied before the
// next. SetSnapshot, ApplyDelta, Reorganize, and Reset must not be called
// concurrently with each other. Readers (Snapshot, Positions, Projection) may
// run concurrently with a writer; layout computation happens outside the
// write lock so a long force pass never blocks reads, and its result is
// discarded if a Reset or a newer snapshot superseded it in the meantime.
//
// # Highlighting
//
// Newly added entities and relations carry a transient "new" flag in the
// projection for a fixed highlight duration, then the flag clears on its own.
// The canonical snapshot is never altered by highlighting.
package store

import (
	"context"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/telariq/loomgraph/pkg/graph"
	"github.com/telariq/loomgraph/pkg/layout"
	"github.com/telariq/loomgraph/pkg/merge"
	"github.com/telariq/loomgraph/pkg/observability"
)

// DefaultHighlightDuration is how long a newly added node or edge keeps its
// "new" flag in the projection.
const DefaultHighlightDuration = 3 * time.Second

// Options configures a Store. The zero value gets sensible defaults.
type Options struct {
	// Engine computes positions. Defaults to a force engine with the
	// standard configuration.
	Engine layout.Engine

	// Policy controls version-mismatch handling in the merge step.
	Policy merge.Policy

	// HighlightDuration overrides DefaultHighlightDuration when positive.
	HighlightDuration time.Duration

	// Logger receives warnings about dropped relations, version mismatches,
	// and discarded layout results. Defaults to a silent logger.
	Logger *log.Logger
}

// Store holds the canonical snapshot, the derived position map, and the
// transient highlight flags.
type Store struct {
	mu        sync.RWMutex
	snapshot  graph.Snapshot
	positions layout.Positions

	// id -> highlight expiry, epoch millis. Expired entries are swept
	// lazily when the projection is read.
	newEntities  map[string]int64
	newRelations map[string]int64

	engine    layout.Engine
	policy    merge.Policy
	highlight time.Duration
	logger    *log.Logger
	now       func() int64
}

// New creates an empty store at snapshot version 0.
func New(opts Options) *Store {
	engine := opts.Engine
	if engine == nil {
		engine = layout.NewForceEngine(layout.DefaultConfig())
	}
	highlight := opts.HighlightDuration
	if highlight <= 0 {
		highlight = DefaultHighlightDuration
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Store{
		snapshot:     graph.NewSnapshot(),
		positions:    layout.Positions{},
		newEntities:  make(map[string]int64),
		newRelations: make(map[string]int64),
		engine:       engine,
		policy:       opts.Policy,
		highlight:    highlight,
		logger:       logger,
		now:          graph.NowMillis,
	}
}

// ApplyResult reports what a delta application did.
type ApplyResult struct {
	// Version of the snapshot after the call.
	Version int
	// Committed is false when the layout result was discarded because a
	// Reset or newer snapshot superseded the merge while layout ran.
	Committed bool
	// Incremental reports whether the layout engine took the incremental
	// path.
	Incremental bool

	MergeWarnings  []merge.Warning
	LayoutWarnings []layout.Warning
}

// SetSnapshot replaces all state with the given snapshot and computes a full
// layout from scratch. Highlight flags are cleared.
func (s *Store) SetSnapshot(snap graph.Snapshot) []layout.Warning {
	snap = snap.Clone()
	res := s.runLayout(snap, nil, false)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshot = snap
	s.positions = res.Positions
	s.newEntities = make(map[string]int64)
	s.newRelations = make(map[string]int64)
	return res.Warnings
}

// ApplyDelta reduces the delta onto the canonical snapshot, recomputes
// positions (incrementally for small additions), and flags the additions for
// highlighting. Under a strict merge policy a version mismatch returns an
// error and leaves the store unchanged.
func (s *Store) ApplyDelta(d graph.Delta) (ApplyResult, error) {
	s.mu.RLock()
	base := s.snapshot.Clone()
	prev := s.positions.Clone()
	s.mu.RUnlock()

	mergeStart := time.Now()
	merged, err := merge.ApplyWithPolicy(base, d, s.policy)
	if err != nil {
		return ApplyResult{Version: base.Version}, err
	}
	observability.Engine().OnMergeComplete(context.Background(),
		merged.Snapshot.Version, len(merged.Warnings), time.Since(mergeStart))
	for _, w := range merged.Warnings {
		s.logger.Warn("merge", "code", w.Code, "msg", w.Message)
	}

	lay := s.runLayout(merged.Snapshot, prev, false)

	deadline := s.now() + s.highlight.Milliseconds()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.snapshot.Version != base.Version {
		// Superseded while layout ran; the result is harmlessly dropped.
		s.logger.Warn("discarding stale layout result",
			"computedFor", merged.Snapshot.Version, "current", s.snapshot.Version)
		return ApplyResult{
			Version:       s.snapshot.Version,
			MergeWarnings: merged.Warnings,
		}, nil
	}
	s.snapshot = merged.Snapshot
	s.positions = lay.Positions
	for _, e := range d.AddedEntities {
		if s.snapshot.HasEntity(e.ID) {
			s.newEntities[e.ID] = deadline
		}
	}
	for _, r := range d.AddedRelations {
		if _, ok := s.snapshot.Relation(r.ID); ok {
			s.newRelations[r.ID] = deadline
		}
	}
	return ApplyResult{
		Version:        s.snapshot.Version,
		Committed:      true,
		Incremental:    lay.Incremental,
		MergeWarnings:  merged.Warnings,
		LayoutWarnings: lay.Warnings,
	}, nil
}

// Reorganize re-runs a full layout pass with the current positions as a soft
// prior, so the arrangement improves without a jarring jump. The canonical
// snapshot is untouched.
func (s *Store) Reorganize() []layout.Warning {
	s.mu.RLock()
	snap := s.snapshot.Clone()
	prev := s.positions.Clone()
	s.mu.RUnlock()

	res := s.runLayout(snap, prev, true)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.snapshot.Version != snap.Version {
		return nil
	}
	s.positions = res.Positions
	return res.Warnings
}

// runLayout invokes the engine with observability events and warning logs
// around it, so store-driven layouts are visible to registered hooks the same
// way pipeline-driven ones are.
func (s *Store) runLayout(snap graph.Snapshot, prev layout.Positions, reorganize bool) layout.Result {
	ctx := context.Background()
	observability.Engine().OnLayoutStart(ctx, s.engine.Name(), len(snap.Entities))
	start := time.Now()
	var res layout.Result
	if reorganize {
		res = s.engine.Reorganize(snap.Entities, snap.Relations, prev)
	} else {
		res = s.engine.Layout(snap.Entities, snap.Relations, prev)
	}
	observability.Engine().OnLayoutComplete(ctx, s.engine.Name(), res.Incremental,
		time.Since(start), len(res.Warnings))
	for _, w := range res.Warnings {
		s.logger.Warn("layout", "code", w.Code, "msg", w.Message)
	}
	return res
}

// Reset clears all state back to an empty version-0 snapshot.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshot = graph.NewSnapshot()
	s.positions = layout.Positions{}
	s.newEntities = make(map[string]int64)
	s.newRelations = make(map[string]int64)
}

// Snapshot returns a copy of the canonical snapshot.
func (s *Store) Snapshot() graph.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot.Clone()
}

// Positions returns a copy of the current position map.
func (s *Store) Positions() layout.Positions {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.positions.Clone()
}

// Version returns the canonical snapshot version.
func (s *Store) Version() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot.Version
}

// =============================================================================
// Render projection
// =============================================================================

// NodeData is an entity plus its render flags.
type NodeData struct {
	graph.Entity
	New bool `json:"isNew,omitempty"`
}

// Node is one render-ready positioned entity.
type Node struct {
	ID       string       `json:"id"`
	Position layout.Point `json:"position"`
	Data     NodeData     `json:"data"`
}

// EdgeData is a relation plus its render flags.
type EdgeData struct {
	graph.Relation
	New bool `json:"isNew,omitempty"`
}

// Edge is one render-ready relation.
type Edge struct {
	ID     string   `json:"id"`
	Source string   `json:"source"`
	Target string   `json:"target"`
	Label  string   `json:"label"`
	Data   EdgeData `json:"data"`
}

// Projection is the render-ready view of the store, ordered by id.
type Projection struct {
	Version int    `json:"version"`
	Nodes   []Node `json:"nodes"`
	Edges   []Edge `json:"edges"`
}

// Projection builds the current render projection and lazily expires stale
// highlight flags.
func (s *Store) Projection() Projection {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	for id, deadline := range s.newEntities {
		if deadline <= now {
			delete(s.newEntities, id)
		}
	}
	for id, deadline := range s.newRelations {
		if deadline <= now {
			delete(s.newRelations, id)
		}
	}

	p := Projection{
		Version: s.snapshot.Version,
		Nodes:   make([]Node, 0, len(s.snapshot.Entities)),
		Edges:   make([]Edge, 0, len(s.snapshot.Relations)),
	}
	for _, e := range s.snapshot.Entities {
		_, isNew := s.newEntities[e.ID]
		p.Nodes = append(p.Nodes, Node{
			ID:       e.ID,
			Position: s.positions[e.ID],
			Data:     NodeData{Entity: e, New: isNew},
		})
	}
	for _, r := range s.snapshot.Relations {
		_, isNew := s.newRelations[r.ID]
		p.Edges = append(p.Edges, Edge{
			ID:     r.ID,
			Source: r.Source,
			Target: r.Target,
			Label:  r.Label,
			Data:   EdgeData{Relation: r, New: isNew},
		})
	}
	sort.Slice(p.Nodes, func(i, j int) bool { return p.Nodes[i].ID < p.Nodes[j].ID })
	sort.Slice(p.Edges, func(i, j int) bool { return p.Edges[i].ID < p.Edges[j].ID })
	return p
}
