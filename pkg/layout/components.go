package layout

import (
	"sort"

	"github.com/telariq/loomgraph/pkg/graph"
)

// component is a maximal set of entities reachable from one another via
// relations, ignoring direction.
type component struct {
	// ids in ascending order.
	ids []string
	// adjacency is the undirected neighbor set, each list sorted.
	adjacency map[string][]string
	// degree counts undirected neighbors (parallel edges collapse).
	degree map[string]int
	// out lists directed successors within the component, for ranking.
	out map[string][]string
}

func (c *component) size() int { return len(c.ids) }

// isolated reports whether this is a single entity with no relations.
func (c *component) isolated() bool {
	return len(c.ids) == 1 && c.degree[c.ids[0]] == 0
}

// connectedComponents splits the graph into components via breadth-first
// traversal. Traversal starts from ids in ascending order and visits sorted
// neighbor lists, so the component list and the id order within each
// component are stable for a given input.
func connectedComponents(entities []graph.Entity, relations []graph.Relation) []*component {
	ids := make([]string, 0, len(entities))
	known := make(map[string]bool, len(entities))
	for _, e := range entities {
		ids = append(ids, e.ID)
		known[e.ID] = true
	}
	sort.Strings(ids)

	neighbors := make(map[string]map[string]bool, len(entities))
	out := make(map[string][]string)
	for _, r := range relations {
		if !known[r.Source] || !known[r.Target] {
			continue
		}
		if neighbors[r.Source] == nil {
			neighbors[r.Source] = make(map[string]bool)
		}
		if neighbors[r.Target] == nil {
			neighbors[r.Target] = make(map[string]bool)
		}
		if r.Source != r.Target {
			neighbors[r.Source][r.Target] = true
			neighbors[r.Target][r.Source] = true
		}
		out[r.Source] = append(out[r.Source], r.Target)
	}

	adjacency := make(map[string][]string, len(entities))
	for id, set := range neighbors {
		list := make([]string, 0, len(set))
		for n := range set {
			list = append(list, n)
		}
		sort.Strings(list)
		adjacency[id] = list
	}

	visited := make(map[string]bool, len(entities))
	var comps []*component
	for _, start := range ids {
		if visited[start] {
			continue
		}
		comp := &component{
			adjacency: make(map[string][]string),
			degree:    make(map[string]int),
			out:       make(map[string][]string),
		}
		queue := []string{start}
		visited[start] = true
		for len(queue) > 0 {
			id := queue[0]
			queue = queue[1:]
			comp.ids = append(comp.ids, id)
			comp.adjacency[id] = adjacency[id]
			comp.degree[id] = len(adjacency[id])
			for _, next := range adjacency[id] {
				if !visited[next] {
					visited[next] = true
					queue = append(queue, next)
				}
			}
		}
		sort.Strings(comp.ids)
		for _, id := range comp.ids {
			if succ := out[id]; len(succ) > 0 {
				inComp := make([]string, 0, len(succ))
				for _, t := range succ {
					if _, ok := comp.degree[t]; ok {
						inComp = append(inComp, t)
					}
				}
				sort.Strings(inComp)
				comp.out[id] = inComp
			}
		}
		comps = append(comps, comp)
	}
	return comps
}

// sortedIDs returns the position map's keys in ascending order.
func sortedIDs(positions Positions) []string {
	ids := make([]string, 0, len(positions))
	for id := range positions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
