package layout

import "sort"

// layeredComponent places one connected component deterministically: nodes
// are ranked along relation direction (longest path from any root), each rank
// becomes a row, and nodes within a row are ordered by id. Previous positions
// are ignored; the placement is a pure function of the component structure.
//
// Cycles cannot be ranked by peeling alone, so when no zero-in-degree node
// remains the smallest remaining id is forced out next. This keeps the result
// total and deterministic on cyclic inputs.
func layeredComponent(cfg Config, comp *component, _ Positions) Positions {
	rank := assignRanks(comp)

	byRank := make(map[int][]string)
	maxRank := 0
	for id, r := range rank {
		byRank[r] = append(byRank[r], id)
		if r > maxRank {
			maxRank = r
		}
	}

	// Ranks sit at least the minimum separation apart so stacked nodes can
	// never violate the center-to-center invariant.
	rankGap := cfg.RankSpacing
	if min := cfg.MinSeparation(); rankGap < min {
		rankGap = min
	}
	colGap := cfg.NodeWidth + cfg.NodeSpacing
	if min := cfg.MinSeparation(); colGap < min {
		colGap = min
	}

	out := make(Positions, len(comp.ids))
	for r := 0; r <= maxRank; r++ {
		row := byRank[r]
		sort.Strings(row)
		width := float64(len(row)-1) * colGap
		for i, id := range row {
			out[id] = Point{
				X: float64(i)*colGap - width/2,
				Y: float64(r) * rankGap,
			}
		}
	}
	return out
}

// assignRanks computes a longest-path layering of the component's directed
// edges via repeated zero-in-degree peeling.
func assignRanks(comp *component) map[string]int {
	inDegree := make(map[string]int, len(comp.ids))
	for _, id := range comp.ids {
		inDegree[id] = 0
	}
	for _, targets := range comp.out {
		for _, t := range targets {
			inDegree[t]++
		}
	}

	rank := make(map[string]int, len(comp.ids))
	remaining := make(map[string]bool, len(comp.ids))
	for _, id := range comp.ids {
		remaining[id] = true
	}

	var ready []string
	for _, id := range comp.ids {
		if inDegree[id] == 0 {
			ready = append(ready, id)
		}
	}
	sort.Strings(ready)

	for len(remaining) > 0 {
		if len(ready) == 0 {
			// Cycle: break it at the smallest remaining id.
			var pick string
			for id := range remaining {
				if pick == "" || id < pick {
					pick = id
				}
			}
			ready = append(ready, pick)
		}
		id := ready[0]
		ready = ready[1:]
		if !remaining[id] {
			continue
		}
		delete(remaining, id)

		for _, t := range comp.out[id] {
			if !remaining[t] {
				continue
			}
			if r := rank[id] + 1; r > rank[t] {
				rank[t] = r
			}
			inDegree[t]--
			if inDegree[t] == 0 {
				ready = insertSorted(ready, t)
			}
		}
	}
	return rank
}

// insertSorted inserts id into a sorted slice, keeping it sorted.
func insertSorted(s []string, id string) []string {
	i := sort.SearchStrings(s, id)
	s = append(s, "")
	copy(s[i+1:], s[i:])
	s[i] = id
	return s
}
