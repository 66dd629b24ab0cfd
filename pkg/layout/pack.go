package layout

import (
	"math"
	"sort"
)

// placedComponent is an independently laid-out component, normalized so its
// bounding box starts at the origin.
type placedComponent struct {
	ids       []string
	positions Positions
	w, h      float64
}

func newPlacedComponent(cfg Config, comp *component, pos Positions) *placedComponent {
	b := positionBounds(cfg, pos)
	normalized := make(Positions, len(pos))
	for id, p := range pos {
		normalized[id] = Point{X: p.X - b.minX, Y: p.Y - b.minY}
	}
	return &placedComponent{
		ids:       comp.ids,
		positions: normalized,
		w:         b.width(),
		h:         b.height(),
	}
}

// packComponents tiles independently laid-out components into one coordinate
// space without overlap. Components go into rows greedily, largest first,
// against a target width derived from the total area and the configured
// aspect ratio, so the overall result lands near that aspect.
func packComponents(cfg Config, comps []*placedComponent) Positions {
	out := Positions{}
	if len(comps) == 0 {
		return out
	}

	sort.SliceStable(comps, func(i, j int) bool {
		ai, aj := comps[i].w*comps[i].h, comps[j].w*comps[j].h
		if ai != aj {
			return ai > aj
		}
		return comps[i].ids[0] < comps[j].ids[0]
	})

	gap := cfg.MinSeparation()
	totalArea := 0.0
	for _, c := range comps {
		totalArea += (c.w + gap) * (c.h + gap)
	}
	targetWidth := math.Sqrt(totalArea * cfg.PackAspect)
	if w := comps[0].w; targetWidth < w {
		targetWidth = w
	}

	x, y, rowHeight := 0.0, 0.0, 0.0
	for _, c := range comps {
		if x > 0 && x+c.w > targetWidth {
			x = 0
			y += rowHeight + gap
			rowHeight = 0
		}
		for id, p := range c.positions {
			out[id] = Point{X: p.X + x, Y: p.Y + y}
		}
		x += c.w + gap
		if c.h > rowHeight {
			rowHeight = c.h
		}
	}
	return out
}

// placeIsolated arranges relation-less entities in a grid below the packed
// bounding box, visually apart from the connected structure. Positions are
// written into out.
func placeIsolated(cfg Config, isolated []*component, packed bounds, out Positions) {
	if len(isolated) == 0 {
		return
	}
	ids := make([]string, 0, len(isolated))
	for _, c := range isolated {
		ids = append(ids, c.ids[0])
	}
	sort.Strings(ids)

	cell := cfg.MinSeparation()
	startX, startY := 0.0, 0.0
	if len(out) > 0 {
		startX = packed.minX + cfg.NodeWidth/2
		startY = packed.maxY + cell
	}

	cols := cfg.IsolatedColumns
	if cols < 1 {
		cols = 1
	}
	for i, id := range ids {
		out[id] = Point{
			X: startX + float64(i%cols)*cell,
			Y: startY + float64(i/cols)*cell,
		}
	}
}
