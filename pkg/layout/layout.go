// Package layout computes 2D positions for graph entities.
//
// The engine must never place two entity bounding boxes overlapping, must
// keep directly related entities closer together than unrelated ones, and
// must preserve the previous position of entities that did not change, so an
// update does not destroy the viewer's mental map.
//
// # Pipeline
//
// A full layout pass runs in four stages: connected-component detection over
// the undirected relation graph, per-component placement (force simulation or
// layered ranking, selectable per engine), greedy multi-component packing
// toward a target aspect ratio, and isolated-node grid placement beyond the
// packed bounding box. An optional edge-length relaxation post-pass pulls
// overstretched edges together and re-resolves any overlap it introduces.
//
// # Incremental Mode
//
// When only a few entities were added to an already-positioned graph, the
// engine skips the full pass: new entities are seeded near the centroid of
// their positioned neighbors with an id-derived angular jitter, then nudged
// out of any overlap while every previously positioned entity stays fixed.
//
// # Determinism
//
// Identical inputs produce identical outputs. Seeding uses a golden-angle
// spiral ordered by descending degree then id, and the only jitter source is
// a hash of the entity id.
package layout

import (
	"math"

	"github.com/telariq/loomgraph/pkg/errors"
	"github.com/telariq/loomgraph/pkg/graph"
)

// Point is a 2D position.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Positions maps entity ids to positions. It is transient derived state, not
// part of the canonical graph.
type Positions map[string]Point

// Clone returns a copy of the position map.
func (p Positions) Clone() Positions {
	out := make(Positions, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Warning describes a non-fatal layout quality problem.
type Warning struct {
	Code    errors.Code
	Message string
}

// Result is the outcome of a layout pass. Positions is always usable; a
// LAYOUT_NONCONVERGENCE warning means residual overlaps remained after the
// iteration budget and the best-effort result is returned as-is.
type Result struct {
	Positions   Positions
	Incremental bool
	Warnings    []Warning
}

// Engine positions entities given the relation set and optional previous
// positions. Implementations are pure: previous is never modified and the
// returned map is always fresh.
//
// Layout chooses incremental placement on its own when previous positions
// cover most of the graph. Reorganize always runs the full pipeline, treating
// previous positions as a soft prior rather than a constraint, so connected
// nodes drift toward a better arrangement without a jarring jump.
type Engine interface {
	// Name identifies the strategy ("force", "layered") in logs, metrics,
	// and cache keys.
	Name() string

	Layout(entities []graph.Entity, relations []graph.Relation, previous Positions) Result
	Reorganize(entities []graph.Entity, relations []graph.Relation, previous Positions) Result
}

// =============================================================================
// Configuration
// =============================================================================

// Config holds the layout tunables. All values are implementation
// configuration, not protocol; any sane values must still satisfy the
// no-overlap and related-nodes-closer invariants.
type Config struct {
	NodeWidth  float64 `toml:"node_width"`
	NodeHeight float64 `toml:"node_height"`
	Margin     float64 `toml:"margin"`

	// Force simulation
	IdealEdgeLength float64 `toml:"ideal_edge_length"`
	Iterations      int     `toml:"iterations"`
	InitialStep     float64 `toml:"initial_step"`
	StepDecay       float64 `toml:"step_decay"`
	HubDegree       int     `toml:"hub_degree"`
	HubRadiusFactor float64 `toml:"hub_radius_factor"`
	HubRadiusCap    float64 `toml:"hub_radius_cap"`

	// Layered placement
	RankSpacing float64 `toml:"rank_spacing"`
	NodeSpacing float64 `toml:"node_spacing"`

	// Incremental mode
	IncrementalMaxAdded   int `toml:"incremental_max_added"`
	IncrementalSmallGraph int `toml:"incremental_small_graph"`

	// Edge relaxation
	MaxEdgeLength float64 `toml:"max_edge_length"`
	RelaxPull     float64 `toml:"relax_pull"`
	RelaxRounds   int     `toml:"relax_rounds"`

	// Packing and isolated placement
	PackAspect      float64 `toml:"pack_aspect"`
	IsolatedColumns int     `toml:"isolated_columns"`
}

// DefaultConfig returns the standard tunables.
func DefaultConfig() Config {
	return Config{
		NodeWidth:  160,
		NodeHeight: 48,
		Margin:     24,

		IdealEdgeLength: 220,
		Iterations:      300,
		InitialStep:     24,
		StepDecay:       0.98,
		HubDegree:       4,
		HubRadiusFactor: 0.15,
		HubRadiusCap:    2.0,

		RankSpacing: 120,
		NodeSpacing: 40,

		IncrementalMaxAdded:   5,
		IncrementalSmallGraph: 20,

		MaxEdgeLength: 420,
		RelaxPull:     0.2,
		RelaxRounds:   8,

		PackAspect:      1.4,
		IsolatedColumns: 4,
	}
}

// MinSeparation is the minimum center-to-center distance between any two
// positioned entities.
func (c Config) MinSeparation() float64 { return c.NodeWidth + c.Margin }

// =============================================================================
// Engines
// =============================================================================

// componentFunc lays out one connected component of size >= 2 around the
// origin. seed carries previous positions for nodes that have them, as a soft
// prior; it may be empty.
type componentFunc func(cfg Config, comp *component, seed Positions) Positions

// ForceEngine positions connected components with an iterative force
// simulation: pairwise repulsion, attraction along edges toward an ideal
// length, and a collision force enforcing the minimum separation. Hub nodes
// get proportionally larger repulsion and collision radii so they end up
// central.
type ForceEngine struct {
	cfg Config
	ws  *simWorkspace
}

// NewForceEngine creates a force-directed engine. An engine reuses internal
// simulation buffers and is NOT safe for concurrent use.
func NewForceEngine(cfg Config) *ForceEngine {
	return &ForceEngine{cfg: cfg, ws: newSimWorkspace(0)}
}

// Name implements [Engine].
func (e *ForceEngine) Name() string { return "force" }

// Layout implements [Engine].
func (e *ForceEngine) Layout(entities []graph.Entity, relations []graph.Relation, previous Positions) Result {
	return run(e.cfg, entities, relations, previous, e.place, true, true)
}

// Reorganize implements [Engine]: a full force pass seeded from the previous
// positions.
func (e *ForceEngine) Reorganize(entities []graph.Entity, relations []graph.Relation, previous Positions) Result {
	return run(e.cfg, entities, relations, previous, e.place, true, false)
}

func (e *ForceEngine) place(cfg Config, comp *component, seed Positions) Positions {
	return forceComponent(cfg, comp, seed, e.ws)
}

// LayeredEngine positions connected components deterministically by ranking
// nodes along relation direction and assigning coordinates by rank and order
// within rank. No iteration, no residual overlap by construction.
type LayeredEngine struct {
	cfg Config
}

// NewLayeredEngine creates a layered placement engine.
func NewLayeredEngine(cfg Config) *LayeredEngine {
	return &LayeredEngine{cfg: cfg}
}

// Name implements [Engine].
func (e *LayeredEngine) Name() string { return "layered" }

// Layout implements [Engine].
func (e *LayeredEngine) Layout(entities []graph.Entity, relations []graph.Relation, previous Positions) Result {
	return run(e.cfg, entities, relations, previous, layeredComponent, false, true)
}

// Reorganize implements [Engine]. Layered placement is already a pure
// function of structure, so this is a full recomputation.
func (e *LayeredEngine) Reorganize(entities []graph.Entity, relations []graph.Relation, previous Positions) Result {
	return run(e.cfg, entities, relations, previous, layeredComponent, false, false)
}

// =============================================================================
// Shared orchestration
// =============================================================================

// run is the common pipeline behind both engines: incremental short-circuit,
// component split, per-component strategy, packing, isolated grid, and the
// relaxation post-pass.
func run(cfg Config, entities []graph.Entity, relations []graph.Relation, previous Positions, place componentFunc, relax, allowIncremental bool) Result {
	if len(entities) == 0 {
		return Result{Positions: Positions{}}
	}

	if allowIncremental && useIncremental(cfg, entities, previous) {
		return incrementalLayout(cfg, entities, relations, previous)
	}

	comps := connectedComponents(entities, relations)

	var connected []*component
	var isolated []*component
	for _, c := range comps {
		if c.isolated() {
			isolated = append(isolated, c)
		} else {
			connected = append(connected, c)
		}
	}

	laid := make([]*placedComponent, 0, len(connected))
	for _, c := range connected {
		pos := place(cfg, c, previous)
		laid = append(laid, newPlacedComponent(cfg, c, pos))
	}

	positions := packComponents(cfg, laid)
	if relax {
		relaxEdges(cfg, positions, relations, nil)
	}
	placeIsolated(cfg, isolated, positionBounds(cfg, positions), positions)

	var warnings []Warning
	if overlaps := countOverlaps(cfg, positions); overlaps > 0 {
		warnings = append(warnings, Warning{
			Code: errors.ErrCodeLayoutNonconvergence,
			Message: errors.New(errors.ErrCodeLayoutNonconvergence,
				"%d overlapping pairs remain after iteration budget", overlaps).Message,
		})
	}

	return Result{Positions: positions, Warnings: warnings}
}

// useIncremental reports whether the engine should keep existing positions
// fixed and only place the newly added entities. This applies when previous
// positions cover part of the graph and either only a handful of entities are
// new or the whole graph is still small.
func useIncremental(cfg Config, entities []graph.Entity, previous Positions) bool {
	if len(previous) == 0 {
		return false
	}
	added := 0
	for _, e := range entities {
		if _, ok := previous[e.ID]; !ok {
			added++
		}
	}
	if added == 0 {
		// Nothing new; keep every position as-is.
		return true
	}
	return added <= cfg.IncrementalMaxAdded || len(entities) < cfg.IncrementalSmallGraph
}

// =============================================================================
// Geometry helpers
// =============================================================================

func distance(a, b Point) float64 {
	return math.Hypot(a.X-b.X, a.Y-b.Y)
}

// countOverlaps returns the number of entity pairs closer than the minimum
// separation.
func countOverlaps(cfg Config, positions Positions) int {
	ids := sortedIDs(positions)
	minSep := cfg.MinSeparation()
	n := 0
	for i := 0; i < len(ids); i++ {
		for j := i + 1; j < len(ids); j++ {
			if distance(positions[ids[i]], positions[ids[j]]) < minSep-overlapEpsilon {
				n++
			}
		}
	}
	return n
}

// overlapEpsilon absorbs floating-point noise in separation checks.
const overlapEpsilon = 1e-6

type bounds struct {
	minX, minY, maxX, maxY float64
}

func (b *bounds) width() float64  { return b.maxX - b.minX }
func (b *bounds) height() float64 { return b.maxY - b.minY }

func (b *bounds) extend(p Point, halfW, halfH float64) {
	if p.X-halfW < b.minX {
		b.minX = p.X - halfW
	}
	if p.X+halfW > b.maxX {
		b.maxX = p.X + halfW
	}
	if p.Y-halfH < b.minY {
		b.minY = p.Y - halfH
	}
	if p.Y+halfH > b.maxY {
		b.maxY = p.Y + halfH
	}
}

func newBounds() bounds {
	return bounds{
		minX: math.Inf(1), minY: math.Inf(1),
		maxX: math.Inf(-1), maxY: math.Inf(-1),
	}
}

// positionBounds computes the bounding box of all positions including node
// extents.
func positionBounds(cfg Config, positions Positions) bounds {
	b := newBounds()
	if len(positions) == 0 {
		return bounds{}
	}
	for _, p := range positions {
		b.extend(p, cfg.NodeWidth/2, cfg.NodeHeight/2)
	}
	return b
}
