package merge

import (
	"testing"

	"github.com/telariq/loomgraph/pkg/errors"
	"github.com/telariq/loomgraph/pkg/graph"
)

func baseSnapshot() graph.Snapshot {
	return graph.Snapshot{
		Version: 2,
		Entities: []graph.Entity{
			{ID: "e1", Label: "Alice", Type: graph.TypePerson},
			{ID: "e2", Label: "Acme", Type: graph.TypeOrganization},
			{ID: "e5", Label: "Seoul", Type: graph.TypeLocation},
		},
		Relations: []graph.Relation{
			{ID: "r1", Source: "e1", Target: "e2", Label: "works at"},
			{ID: "r7", Source: "e2", Target: "e5", Label: "based in"},
		},
		LastUpdated: 1000,
	}
}

func TestApplyAdditionsAndUpdates(t *testing.T) {
	snap := baseSnapshot()
	delta := graph.Delta{
		AddedEntities:   []graph.Entity{{ID: "e9", Label: "Bob", Type: graph.TypePerson}},
		AddedRelations:  []graph.Relation{{ID: "r9", Source: "e9", Target: "e2", Label: "works at"}},
		UpdatedEntities: []graph.Entity{{ID: "e2", Label: "Acme Corp", Type: graph.TypeOrganization}},
		FromVersion:     2,
		ToVersion:       3,
	}

	res := Apply(snap, delta)
	got := res.Snapshot

	if got.Version != 3 {
		t.Errorf("version = %d, want 3", got.Version)
	}
	if len(res.Warnings) != 0 {
		t.Errorf("warnings = %v, want none", res.Warnings)
	}
	if e, _ := got.Entity("e2"); e.Label != "Acme Corp" {
		t.Errorf("updated label = %q, want %q", e.Label, "Acme Corp")
	}
	if !got.HasEntity("e9") {
		t.Error("added entity e9 missing")
	}
	if _, ok := got.Relation("r9"); !ok {
		t.Error("added relation r9 missing")
	}
	if err := got.Validate(); err != nil {
		t.Errorf("result snapshot invalid: %v", err)
	}
}

func TestApplyDoesNotMutateInput(t *testing.T) {
	snap := baseSnapshot()
	delta := graph.Delta{
		AddedEntities:    []graph.Entity{{ID: "e9", Label: "Bob", Type: graph.TypePerson}},
		UpdatedEntities:  []graph.Entity{{ID: "e1", Label: "Alice Kim", Type: graph.TypePerson}},
		RemovedEntityIDs: []string{"e5"},
		FromVersion:      2,
		ToVersion:        3,
	}

	Apply(snap, delta)

	if snap.Version != 2 || len(snap.Entities) != 3 || len(snap.Relations) != 2 {
		t.Errorf("input snapshot mutated: %+v", snap)
	}
	if e, _ := snap.Entity("e1"); e.Label != "Alice" {
		t.Errorf("input entity mutated: %+v", e)
	}
}

// Removing an entity also drops relations that reference it, even when those
// relation IDs are not listed for removal.
func TestApplyEntityRemovalCascades(t *testing.T) {
	snap := baseSnapshot()
	delta := graph.Delta{
		RemovedEntityIDs: []string{"e5"},
		FromVersion:      2,
		ToVersion:        3,
	}

	res := Apply(snap, delta)
	got := res.Snapshot

	if got.HasEntity("e5") {
		t.Error("removed entity e5 still present")
	}
	if _, ok := got.Relation("r7"); ok {
		t.Error("dangling relation r7 survived entity removal")
	}
	if _, ok := got.Relation("r1"); !ok {
		t.Error("unrelated relation r1 was dropped")
	}
	if err := got.Validate(); err != nil {
		t.Errorf("result snapshot invalid: %v", err)
	}
}

func TestApplyRelationRemoval(t *testing.T) {
	snap := baseSnapshot()
	delta := graph.Delta{
		RemovedRelationIDs: []string{"r1"},
		FromVersion:        2,
		ToVersion:          3,
	}

	got := Apply(snap, delta).Snapshot
	if _, ok := got.Relation("r1"); ok {
		t.Error("relation r1 should have been removed")
	}
	if len(got.Relations) != 1 {
		t.Errorf("relations = %d, want 1", len(got.Relations))
	}
}

func TestApplyVersionMismatch(t *testing.T) {
	snap := baseSnapshot()
	delta := graph.Delta{FromVersion: 7, ToVersion: 8}

	t.Run("best effort merges with warning", func(t *testing.T) {
		res, err := ApplyWithPolicy(snap, delta, PolicyBestEffort)
		if err != nil {
			t.Fatalf("ApplyWithPolicy: %v", err)
		}
		if res.Snapshot.Version != 8 {
			t.Errorf("version = %d, want 8", res.Snapshot.Version)
		}
		found := false
		for _, w := range res.Warnings {
			if w.Code == errors.ErrCodeVersionMismatch {
				found = true
			}
		}
		if !found {
			t.Error("expected a VERSION_MISMATCH warning")
		}
	})

	t.Run("strict rejects", func(t *testing.T) {
		_, err := ApplyWithPolicy(snap, delta, PolicyStrict)
		if !errors.Is(err, errors.ErrCodeVersionMismatch) {
			t.Errorf("error = %v, want VERSION_MISMATCH", err)
		}
	})
}

// Replaying the same delta twice must not duplicate entities or relations.
func TestApplyDuplicateDeltaIsSafe(t *testing.T) {
	snap := baseSnapshot()
	delta := graph.Delta{
		AddedEntities:  []graph.Entity{{ID: "e9", Label: "Bob", Type: graph.TypePerson}},
		AddedRelations: []graph.Relation{{ID: "r9", Source: "e9", Target: "e1", Label: "knows"}},
		FromVersion:    2,
		ToVersion:      3,
	}

	first := Apply(snap, delta).Snapshot
	res := Apply(first, delta)
	second := res.Snapshot

	if len(second.Entities) != len(first.Entities) {
		t.Errorf("replay duplicated entities: %d vs %d", len(second.Entities), len(first.Entities))
	}
	if len(second.Relations) != len(first.Relations) {
		t.Errorf("replay duplicated relations: %d vs %d", len(second.Relations), len(first.Relations))
	}
	if len(res.Warnings) == 0 {
		t.Error("replay should surface warnings")
	}
	if err := second.Validate(); err != nil {
		t.Errorf("result snapshot invalid: %v", err)
	}
}

func TestApplyDropsRelationWithMissingEndpoint(t *testing.T) {
	snap := baseSnapshot()
	delta := graph.Delta{
		AddedRelations: []graph.Relation{{ID: "rX", Source: "e1", Target: "ghost", Label: "haunts"}},
		FromVersion:    2,
		ToVersion:      3,
	}

	res := Apply(snap, delta)
	if _, ok := res.Snapshot.Relation("rX"); ok {
		t.Error("relation with missing endpoint was applied")
	}
	found := false
	for _, w := range res.Warnings {
		if w.Code == errors.ErrCodeMissingEndpoint {
			found = true
		}
	}
	if !found {
		t.Error("expected a MISSING_ENDPOINT warning")
	}
}

// Version strictly increases by 1 across a chain of applies.
func TestVersionMonotonicity(t *testing.T) {
	snap := graph.NewSnapshot()
	for i := 0; i < 10; i++ {
		delta := graph.Delta{
			AddedEntities: []graph.Entity{{ID: graphID(i), Label: graphID(i), Type: graph.TypeConcept}},
			FromVersion:   snap.Version,
			ToVersion:     snap.Version + 1,
		}
		res := Apply(snap, delta)
		if res.Snapshot.Version != snap.Version+1 {
			t.Fatalf("version after apply = %d, want %d", res.Snapshot.Version, snap.Version+1)
		}
		snap = res.Snapshot
	}
	if snap.Version != 10 {
		t.Errorf("final version = %d, want 10", snap.Version)
	}
}

func graphID(i int) string {
	return string(rune('a' + i))
}
