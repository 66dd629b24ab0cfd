package layout

import (
	"math"
	"sort"
)

// goldenAngle spreads spiral seeds evenly around the origin.
// pi*(3-sqrt5), with sqrt5 written via the golden ratio.
const goldenAngle = math.Pi * (4 - 2*math.Phi)

// simWorkspace holds the reusable buffers of one force simulation. Passing
// the buffers explicitly keeps the layout functions pure from the caller's
// point of view while avoiding per-call allocation on hot paths.
type simWorkspace struct {
	pos    []Point
	disp   []Point
	radius []float64
}

func newSimWorkspace(n int) *simWorkspace {
	return &simWorkspace{
		pos:    make([]Point, n),
		disp:   make([]Point, n),
		radius: make([]float64, n),
	}
}

// grow ensures capacity for n nodes.
func (ws *simWorkspace) grow(n int) {
	if cap(ws.pos) < n {
		ws.pos = make([]Point, n)
		ws.disp = make([]Point, n)
		ws.radius = make([]float64, n)
	}
	ws.pos = ws.pos[:n]
	ws.disp = ws.disp[:n]
	ws.radius = ws.radius[:n]
}

// forceComponent runs the iterative force simulation for one connected
// component. Seeding is deterministic: nodes with a seed position keep it as
// a soft prior; the rest go onto a golden-angle spiral ordered by descending
// degree then id, which puts hubs near the center from the start.
func forceComponent(cfg Config, comp *component, seed Positions, ws *simWorkspace) Positions {
	ids := hubOrder(comp)
	n := len(ids)
	ws.grow(n)

	index := make(map[string]int, n)
	for i, id := range ids {
		index[id] = i
	}

	base := cfg.MinSeparation() / 2
	for i, id := range ids {
		ws.radius[i] = base * hubScale(cfg, comp.degree[id])
	}

	spiral := 0
	for i, id := range ids {
		if p, ok := seed[id]; ok {
			ws.pos[i] = p
			continue
		}
		r := cfg.MinSeparation() * math.Sqrt(float64(spiral))
		theta := float64(spiral) * goldenAngle
		ws.pos[i] = Point{X: r * math.Cos(theta), Y: r * math.Sin(theta)}
		spiral++
	}

	type edge struct{ a, b int }
	var edges []edge
	for _, id := range comp.ids {
		for _, next := range comp.adjacency[id] {
			if id < next {
				edges = append(edges, edge{index[id], index[next]})
			}
		}
	}

	k := cfg.IdealEdgeLength
	step := cfg.InitialStep
	for iter := 0; iter < cfg.Iterations; iter++ {
		for i := range ws.disp {
			ws.disp[i] = Point{}
		}

		// Repulsion between all pairs, inversely proportional to distance and
		// scaled by the pair's radii so hubs carve out more room.
		for i := 0; i < n; i++ {
			for j := i + 1; j < n; j++ {
				dx := ws.pos[i].X - ws.pos[j].X
				dy := ws.pos[i].Y - ws.pos[j].Y
				d := math.Hypot(dx, dy)
				if d < 1e-9 {
					// Coincident nodes split along a deterministic angle.
					theta := float64(i*n+j) * goldenAngle
					dx, dy, d = math.Cos(theta), math.Sin(theta), 1
				}
				scale := (ws.radius[i] + ws.radius[j]) / (2 * base)
				f := k * k / d * scale
				ws.disp[i].X += dx / d * f
				ws.disp[i].Y += dy / d * f
				ws.disp[j].X -= dx / d * f
				ws.disp[j].Y -= dy / d * f
			}
		}

		// Attraction along edges toward the ideal edge length.
		for _, e := range edges {
			dx := ws.pos[e.a].X - ws.pos[e.b].X
			dy := ws.pos[e.a].Y - ws.pos[e.b].Y
			d := math.Hypot(dx, dy)
			if d < 1e-9 {
				continue
			}
			f := d * d / k
			ws.disp[e.a].X -= dx / d * f
			ws.disp[e.a].Y -= dy / d * f
			ws.disp[e.b].X += dx / d * f
			ws.disp[e.b].Y += dy / d * f
		}

		// Apply displacements, capped at the current step.
		for i := 0; i < n; i++ {
			d := math.Hypot(ws.disp[i].X, ws.disp[i].Y)
			if d < 1e-9 {
				continue
			}
			limited := math.Min(d, step)
			ws.pos[i].X += ws.disp[i].X / d * limited
			ws.pos[i].Y += ws.disp[i].Y / d * limited
		}

		// Hard collision pass: enforce the pairwise minimum distance given by
		// the node radii every iteration, not just at the end.
		collidePass(ws, n)

		step *= cfg.StepDecay
	}

	// Final sweeps to clear any residual overlap the decayed step left behind.
	for sweep := 0; sweep < 50; sweep++ {
		if collidePass(ws, n) == 0 {
			break
		}
	}

	out := make(Positions, n)
	for i, id := range ids {
		out[id] = ws.pos[i]
	}
	return out
}

// collidePass pushes each overlapping pair apart symmetrically and returns
// the number of overlaps found.
func collidePass(ws *simWorkspace, n int) int {
	overlaps := 0
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			minDist := ws.radius[i] + ws.radius[j]
			dx := ws.pos[i].X - ws.pos[j].X
			dy := ws.pos[i].Y - ws.pos[j].Y
			d := math.Hypot(dx, dy)
			if d >= minDist {
				continue
			}
			overlaps++
			if d < 1e-9 {
				theta := float64(i*n+j) * goldenAngle
				dx, dy, d = math.Cos(theta), math.Sin(theta), 1
			}
			push := (minDist - d) / 2
			ws.pos[i].X += dx / d * push
			ws.pos[i].Y += dy / d * push
			ws.pos[j].X -= dx / d * push
			ws.pos[j].Y -= dy / d * push
		}
	}
	return overlaps
}

// hubScale returns the radius multiplier for a node of the given degree.
// Hubs get proportionally larger radii, capped so a single mega-hub cannot
// blow up the layout.
func hubScale(cfg Config, degree int) float64 {
	if degree < cfg.HubDegree {
		return 1
	}
	scale := 1 + cfg.HubRadiusFactor*float64(degree-cfg.HubDegree+1)
	return math.Min(scale, cfg.HubRadiusCap)
}

// hubOrder returns the component's ids ordered by descending degree, ties
// broken by ascending id.
func hubOrder(comp *component) []string {
	ids := make([]string, len(comp.ids))
	copy(ids, comp.ids)
	sort.SliceStable(ids, func(i, j int) bool {
		di, dj := comp.degree[ids[i]], comp.degree[ids[j]]
		if di != dj {
			return di > dj
		}
		return ids[i] < ids[j]
	})
	return ids
}
