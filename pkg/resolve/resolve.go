// Package resolve decides whether a newly extracted entity mention refers to
// an entity already present in the graph.
//
// Resolution is a pure function over the candidate and the existing entity
// set; it holds no state and is safe to call from any goroutine. Matching
// rules are applied in strict priority order, first match wins:
//
//  1. Normalized exact match (type is ignored)
//  2. Identity passthrough: the candidate carries an ID that already exists
//  3. Substring containment with type agreement
//  4. Fuzzy match with type agreement (Levenshtein similarity above threshold)
//
// Candidates whose label normalizes to the empty string never match and must
// never be auto-created; callers reject those upstream.
//
// # Determinism
//
// Existing entities are scanned in ascending ID order regardless of the order
// the caller passes them in, so similarity ties always break the same way and
// resolution is reproducible across runs and environments.
package resolve

import (
	"slices"
	"strings"

	"github.com/telariq/loomgraph/pkg/graph"
)

// DefaultFuzzyThreshold is the minimum normalized Levenshtein similarity
// (1 - distance/longer length) for a same-type fuzzy match.
const DefaultFuzzyThreshold = 0.8

// MinContainmentLength is the minimum normalized label length for substring
// containment matching. Below this, containment is too cheap to be meaningful
// ("a" is a substring of almost everything).
const MinContainmentLength = 3

// Resolver matches extracted entity mentions against existing entities.
// The zero value is not usable; use New.
type Resolver struct {
	threshold float64
	ws        *levenshteinWorkspace
}

// New creates a resolver with the given fuzzy similarity threshold.
// Thresholds outside (0, 1] fall back to DefaultFuzzyThreshold.
//
// A Resolver reuses internal buffers across calls and is therefore NOT safe
// for concurrent use; each goroutine should have its own, or use the
// package-level [Resolve] which allocates per call.
func New(threshold float64) *Resolver {
	if threshold <= 0 || threshold > 1 {
		threshold = DefaultFuzzyThreshold
	}
	return &Resolver{
		threshold: threshold,
		ws:        newLevenshteinWorkspace(64),
	}
}

// Resolve is a convenience wrapper that allocates a resolver with the default
// threshold for a single call. Prefer creating a [Resolver] when resolving
// batches.
func Resolve(candidate graph.ExtractedEntity, existing []graph.Entity) (graph.Entity, bool) {
	return New(DefaultFuzzyThreshold).Resolve(candidate, existing)
}

// Resolve returns the existing entity the candidate refers to, if any.
// The boolean result reports whether a match was found; a false result means
// the candidate should become a new entity.
//
// The existing slice is never modified.
func (r *Resolver) Resolve(candidate graph.ExtractedEntity, existing []graph.Entity) (graph.Entity, bool) {
	normalized := graph.NormalizeLabel(candidate.Label)
	if normalized == "" {
		return graph.Entity{}, false
	}
	candidateType := graph.ParseEntityType(candidate.Type)

	// Stable scan order: sort a copy by entity ID so ties are deterministic.
	ordered := slices.Clone(existing)
	slices.SortFunc(ordered, func(a, b graph.Entity) int {
		if a.ID < b.ID {
			return -1
		}
		if a.ID > b.ID {
			return 1
		}
		return 0
	})

	// 1. Normalized exact match, regardless of type.
	for _, e := range ordered {
		if graph.NormalizeLabel(e.Label) == normalized {
			return e, true
		}
	}

	// 2. Identity passthrough: the extractor reused a known entity ID.
	for _, e := range ordered {
		if e.ID == candidate.ID {
			return e, true
		}
	}

	// 3. Substring containment with type agreement. Handles abbreviation and
	// short-form cases such as "Acme" vs "Acme Corp".
	if len([]rune(normalized)) >= MinContainmentLength {
		for _, e := range ordered {
			if e.Type != candidateType {
				continue
			}
			en := graph.NormalizeLabel(e.Label)
			if len([]rune(en)) < MinContainmentLength {
				continue
			}
			if strings.Contains(en, normalized) || strings.Contains(normalized, en) {
				return e, true
			}
		}
	}

	// 4. Fuzzy match with type agreement: best similarity above threshold.
	best := graph.Entity{}
	bestScore := 0.0
	for _, e := range ordered {
		if e.Type != candidateType {
			continue
		}
		score := r.similarity(normalized, graph.NormalizeLabel(e.Label))
		if score > r.threshold && score > bestScore {
			best = e
			bestScore = score
		}
	}
	if bestScore > 0 {
		return best, true
	}

	return graph.Entity{}, false
}

// similarity computes normalized Levenshtein similarity between two already
// normalized labels: 1 - distance/max(len). Empty strings never match.
func (r *Resolver) similarity(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	ra, rb := []rune(a), []rune(b)
	longer := len(ra)
	if len(rb) > longer {
		longer = len(rb)
	}
	dist := r.ws.distance(ra, rb)
	return float64(longer-dist) / float64(longer)
}
