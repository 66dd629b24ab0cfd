package layout

import (
	"hash/fnv"
	"math"
	"sort"

	"github.com/telariq/loomgraph/pkg/errors"
	"github.com/telariq/loomgraph/pkg/graph"
)

// incrementalLayout places only the entities that have no previous position,
// leaving every already-positioned entity exactly where it was. New entities
// seed at the centroid of their positioned neighbors, offset along an
// id-derived angle, then a bounded collision pass nudges only the new nodes
// out of any overlap.
func incrementalLayout(cfg Config, entities []graph.Entity, relations []graph.Relation, previous Positions) Result {
	present := make(map[string]bool, len(entities))
	for _, e := range entities {
		present[e.ID] = true
	}

	out := make(Positions, len(entities))
	for id, p := range previous {
		if present[id] {
			out[id] = p
		}
	}

	var newIDs []string
	for _, e := range entities {
		if _, ok := out[e.ID]; !ok {
			newIDs = append(newIDs, e.ID)
		}
	}
	sort.Strings(newIDs)
	if len(newIDs) == 0 {
		return Result{Positions: out, Incremental: true}
	}

	neighbors := make(map[string][]string)
	for _, r := range relations {
		if !present[r.Source] || !present[r.Target] || r.Source == r.Target {
			continue
		}
		neighbors[r.Source] = append(neighbors[r.Source], r.Target)
		neighbors[r.Target] = append(neighbors[r.Target], r.Source)
	}

	minSep := cfg.MinSeparation()
	b := positionBounds(cfg, out)
	overflow := 0

	for _, id := range newIDs {
		cx, cy, n := 0.0, 0.0, 0
		for _, nb := range neighbors[id] {
			if p, ok := out[nb]; ok {
				cx += p.X
				cy += p.Y
				n++
			}
		}
		theta := idAngle(id)
		if n > 0 {
			out[id] = Point{
				X: cx/float64(n) + minSep*math.Cos(theta),
				Y: cy/float64(n) + minSep*math.Sin(theta),
			}
		} else if len(out) > 0 {
			// No positioned neighbor: stage below the current bounding box.
			out[id] = Point{
				X: b.minX + cfg.NodeWidth/2 + float64(overflow)*minSep,
				Y: b.maxY + minSep,
			}
			overflow++
		} else {
			out[id] = Point{X: float64(overflow) * minSep}
			overflow++
		}
	}

	warnings := nudgeNewNodes(cfg, out, newIDs)
	return Result{Positions: out, Incremental: true, Warnings: warnings}
}

// nudgeNewNodes resolves overlaps by moving only the listed nodes; everything
// else stays fixed. Returns a nonconvergence warning if overlaps involving a
// new node survive the pass budget.
func nudgeNewNodes(cfg Config, positions Positions, newIDs []string) []Warning {
	isNew := make(map[string]bool, len(newIDs))
	for _, id := range newIDs {
		isNew[id] = true
	}
	all := sortedIDs(positions)
	minSep := cfg.MinSeparation()

	for pass := 0; pass < 60; pass++ {
		moved := false
		for _, id := range newIDs {
			p := positions[id]
			for _, other := range all {
				if other == id {
					continue
				}
				q := positions[other]
				dx, dy := p.X-q.X, p.Y-q.Y
				d := math.Hypot(dx, dy)
				if d >= minSep {
					continue
				}
				if d < 1e-9 {
					theta := idAngle(id)
					dx, dy, d = math.Cos(theta), math.Sin(theta), 1
				}
				// A fixed node never moves; a pair of new nodes split the push.
				push := minSep - d
				if isNew[other] {
					push /= 2
					positions[other] = Point{X: q.X - dx/d*push, Y: q.Y - dy/d*push}
				}
				p = Point{X: p.X + dx/d*push, Y: p.Y + dy/d*push}
				positions[id] = p
				moved = true
			}
		}
		if !moved {
			return nil
		}
	}

	remaining := 0
	for _, id := range newIDs {
		for _, other := range all {
			if other != id && distance(positions[id], positions[other]) < minSep-overlapEpsilon {
				remaining++
			}
		}
	}
	if remaining == 0 {
		return nil
	}
	return []Warning{{
		Code: errors.ErrCodeLayoutNonconvergence,
		Message: errors.New(errors.ErrCodeLayoutNonconvergence,
			"%d overlaps remain after incremental nudge budget", remaining).Message,
	}}
}

// idAngle derives a stable angle in [0, 2pi) from an entity id. This is the
// only "random" offset in the engine; hashing the id keeps layouts
// reproducible across runs.
func idAngle(id string) float64 {
	h := fnv.New32a()
	h.Write([]byte(id))
	return float64(h.Sum32()%3600) / 3600 * 2 * math.Pi
}
