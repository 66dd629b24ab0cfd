package layout

import (
	"math"

	"github.com/telariq/loomgraph/pkg/graph"
)

// relaxEdges shortens overstretched edges after layout: any edge longer than
// the configured maximum pulls both endpoints a fraction toward its midpoint.
// Rounds are bounded and each round re-resolves the overlaps the pulling
// introduced. Ids in fixed (may be nil) are never moved.
func relaxEdges(cfg Config, positions Positions, relations []graph.Relation, fixed map[string]bool) {
	if cfg.MaxEdgeLength <= 0 || cfg.RelaxRounds <= 0 {
		return
	}
	for round := 0; round < cfg.RelaxRounds; round++ {
		stretched := false
		for _, r := range relations {
			if r.Source == r.Target {
				continue
			}
			a, okA := positions[r.Source]
			b, okB := positions[r.Target]
			if !okA || !okB {
				continue
			}
			if distance(a, b) <= cfg.MaxEdgeLength {
				continue
			}
			stretched = true
			mid := Point{X: (a.X + b.X) / 2, Y: (a.Y + b.Y) / 2}
			if !fixed[r.Source] {
				positions[r.Source] = Point{
					X: a.X + (mid.X-a.X)*cfg.RelaxPull,
					Y: a.Y + (mid.Y-a.Y)*cfg.RelaxPull,
				}
			}
			if !fixed[r.Target] {
				positions[r.Target] = Point{
					X: b.X + (mid.X-b.X)*cfg.RelaxPull,
					Y: b.Y + (mid.Y-b.Y)*cfg.RelaxPull,
				}
			}
		}
		if !stretched {
			return
		}
		resolveOverlaps(cfg, positions, fixed)
	}
}

// resolveOverlaps symmetrically pushes apart any pair closer than the minimum
// separation, skipping fixed nodes, until clean or the pass budget runs out.
func resolveOverlaps(cfg Config, positions Positions, fixed map[string]bool) {
	ids := sortedIDs(positions)
	minSep := cfg.MinSeparation()

	for pass := 0; pass < 50; pass++ {
		moved := false
		for i := 0; i < len(ids); i++ {
			for j := i + 1; j < len(ids); j++ {
				a, b := ids[i], ids[j]
				if fixed[a] && fixed[b] {
					continue
				}
				pa, pb := positions[a], positions[b]
				dx, dy := pa.X-pb.X, pa.Y-pb.Y
				d := math.Hypot(dx, dy)
				if d >= minSep {
					continue
				}
				if d < 1e-9 {
					theta := idAngle(a)
					dx, dy, d = math.Cos(theta), math.Sin(theta), 1
				}
				push := minSep - d
				switch {
				case fixed[a]:
					positions[b] = Point{X: pb.X - dx/d*push, Y: pb.Y - dy/d*push}
				case fixed[b]:
					positions[a] = Point{X: pa.X + dx/d*push, Y: pa.Y + dy/d*push}
				default:
					positions[a] = Point{X: pa.X + dx/d*push/2, Y: pa.Y + dy/d*push/2}
					positions[b] = Point{X: pb.X - dx/d*push/2, Y: pb.Y - dy/d*push/2}
				}
				moved = true
			}
		}
		if !moved {
			return
		}
	}
}
