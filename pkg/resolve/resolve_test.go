package resolve

import (
	"fmt"
	"testing"

	"github.com/telariq/loomgraph/pkg/graph"
)

func entity(id, label string, t graph.EntityType) graph.Entity {
	return graph.Entity{ID: id, Label: label, Type: t}
}

func TestResolvePriorityOrder(t *testing.T) {
	existing := []graph.Entity{
		entity("e1", "Acme", graph.TypeOrganization),
		entity("e2", "Acme Corporation Holdings", graph.TypeOrganization),
		entity("e3", "Alice", graph.TypePerson),
	}

	tests := []struct {
		name      string
		candidate graph.ExtractedEntity
		wantID    string
		wantMatch bool
	}{
		{
			name:      "normalized exact match ignores type",
			candidate: graph.ExtractedEntity{ID: "t1", Label: "  ACME!  ", Type: "PERSON"},
			wantID:    "e1",
			wantMatch: true,
		},
		{
			name:      "identity passthrough",
			candidate: graph.ExtractedEntity{ID: "e3", Label: "completely different", Type: "PERSON"},
			wantID:    "e3",
			wantMatch: true,
		},
		{
			name:      "substring containment with same type",
			candidate: graph.ExtractedEntity{ID: "t2", Label: "Acme Corporation", Type: "ORGANIZATION"},
			wantID:    "e1", // "acme" ⊂ "acmecorporation", e1 wins by ID order
			wantMatch: true,
		},
		{
			name:      "substring containment requires type agreement",
			candidate: graph.ExtractedEntity{ID: "t3", Label: "Alice Smith", Type: "ORGANIZATION"},
			wantMatch: false,
		},
		{
			name:      "fuzzy match same type",
			candidate: graph.ExtractedEntity{ID: "t4", Label: "Allice", Type: "PERSON"},
			wantID:    "e3", // levenshtein(allice, alice) = 1, similarity 5/6 ≈ 0.83
			wantMatch: true,
		},
		{
			name:      "fuzzy below threshold is no match",
			candidate: graph.ExtractedEntity{ID: "t5", Label: "Bob", Type: "PERSON"},
			wantMatch: false,
		},
		{
			name:      "empty after normalization never matches",
			candidate: graph.ExtractedEntity{ID: "t6", Label: "!!!", Type: "PERSON"},
			wantMatch: false,
		},
	}

	r := New(DefaultFuzzyThreshold)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := r.Resolve(tt.candidate, existing)
			if ok != tt.wantMatch {
				t.Fatalf("Resolve() match = %v, want %v (got %+v)", ok, tt.wantMatch, got)
			}
			if ok && got.ID != tt.wantID {
				t.Errorf("Resolve() = %s, want %s", got.ID, tt.wantID)
			}
		})
	}
}

// An entity always matches itself after normalization.
func TestResolveIdempotent(t *testing.T) {
	entities := []graph.Entity{
		entity("e1", "Acme Corp", graph.TypeOrganization),
		entity("e2", "Alice", graph.TypePerson),
		entity("e3", "서울", graph.TypeLocation),
		entity("e4", "GPT-4", graph.TypeTechnology),
	}

	r := New(DefaultFuzzyThreshold)
	for _, e := range entities {
		candidate := graph.ExtractedEntity{ID: "tmp", Label: e.Label, Type: string(e.Type)}
		got, ok := r.Resolve(candidate, entities)
		if !ok || got.ID != e.ID {
			t.Errorf("entity %s did not resolve to itself: got %+v, ok=%v", e.ID, got, ok)
		}
	}
}

// Ties break toward the lowest entity ID regardless of input order.
func TestResolveDeterministicTieBreak(t *testing.T) {
	forward := []graph.Entity{
		entity("e1", "Acme", graph.TypeOrganization),
		entity("e2", "Acme", graph.TypeOrganization),
	}
	reversed := []graph.Entity{forward[1], forward[0]}

	candidate := graph.ExtractedEntity{ID: "t1", Label: "acme", Type: "ORGANIZATION"}
	r := New(DefaultFuzzyThreshold)

	a, _ := r.Resolve(candidate, forward)
	b, _ := r.Resolve(candidate, reversed)
	if a.ID != "e1" || b.ID != "e1" {
		t.Errorf("tie-break not deterministic: forward=%s reversed=%s, want e1 both", a.ID, b.ID)
	}
}

func TestResolveDoesNotMutateInput(t *testing.T) {
	existing := []graph.Entity{
		entity("e2", "Beta", graph.TypeConcept),
		entity("e1", "Alpha", graph.TypeConcept),
	}
	r := New(DefaultFuzzyThreshold)
	r.Resolve(graph.ExtractedEntity{ID: "t", Label: "Gamma", Type: "CONCEPT"}, existing)

	if existing[0].ID != "e2" || existing[1].ID != "e1" {
		t.Error("Resolve reordered the caller's slice")
	}
}

func TestLevenshteinDistance(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"", "", 0},
		{"abc", "", 3},
		{"", "abc", 3},
		{"kitten", "sitting", 3},
		{"flaw", "lawn", 2},
		{"acme", "acme", 0},
		{"서울", "서울시", 1},
	}

	ws := newLevenshteinWorkspace(8)
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s_%s", tt.a, tt.b), func(t *testing.T) {
			if got := ws.distance([]rune(tt.a), []rune(tt.b)); got != tt.want {
				t.Errorf("distance(%q, %q) = %d, want %d", tt.a, tt.b, got, tt.want)
			}
		})
	}
}
