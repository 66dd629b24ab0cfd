package graph

import (
	"bytes"
	"errors"
	"testing"
)

func testSnapshot() Snapshot {
	return Snapshot{
		Version: 3,
		Entities: []Entity{
			{ID: "e2", Label: "Acme Corp", Type: TypeOrganization, CreatedAt: 100, UpdatedAt: 200},
			{ID: "e1", Label: "Alice", Type: TypePerson, CreatedAt: 100, UpdatedAt: 100},
		},
		Relations: []Relation{
			{ID: "r1", Source: "e1", Target: "e2", Label: "works at", CreatedAt: 150},
		},
		LastUpdated: 200,
	}
}

func TestSnapshotValidate(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		s := testSnapshot()
		if err := s.Validate(); err != nil {
			t.Fatalf("Validate() = %v, want nil", err)
		}
	})

	t.Run("empty entity id", func(t *testing.T) {
		s := testSnapshot()
		s.Entities[0].ID = ""
		if err := s.Validate(); !errors.Is(err, ErrInvalidEntityID) {
			t.Errorf("Validate() = %v, want ErrInvalidEntityID", err)
		}
	})

	t.Run("duplicate entity id", func(t *testing.T) {
		s := testSnapshot()
		s.Entities = append(s.Entities, Entity{ID: "e1", Label: "Alice again"})
		if err := s.Validate(); !errors.Is(err, ErrDuplicateEntityID) {
			t.Errorf("Validate() = %v, want ErrDuplicateEntityID", err)
		}
	})

	t.Run("missing relation endpoint", func(t *testing.T) {
		s := testSnapshot()
		s.Relations = append(s.Relations, Relation{ID: "r2", Source: "e1", Target: "ghost"})
		if err := s.Validate(); !errors.Is(err, ErrInvalidRelationEndpoint) {
			t.Errorf("Validate() = %v, want ErrInvalidRelationEndpoint", err)
		}
	})

	t.Run("duplicate relation id", func(t *testing.T) {
		s := testSnapshot()
		s.Relations = append(s.Relations, Relation{ID: "r1", Source: "e2", Target: "e1"})
		if err := s.Validate(); !errors.Is(err, ErrDuplicateRelationID) {
			t.Errorf("Validate() = %v, want ErrDuplicateRelationID", err)
		}
	})
}

func TestMarshalSnapshotDeterministic(t *testing.T) {
	a := testSnapshot()

	// Same content, different slice order.
	b := testSnapshot()
	b.Entities[0], b.Entities[1] = b.Entities[1], b.Entities[0]

	dataA, err := MarshalSnapshot(a)
	if err != nil {
		t.Fatalf("MarshalSnapshot(a): %v", err)
	}
	dataB, err := MarshalSnapshot(b)
	if err != nil {
		t.Fatalf("MarshalSnapshot(b): %v", err)
	}
	if !bytes.Equal(dataA, dataB) {
		t.Error("marshaling the same graph in different entity order produced different bytes")
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	orig := testSnapshot()
	data, err := MarshalSnapshot(orig)
	if err != nil {
		t.Fatalf("MarshalSnapshot: %v", err)
	}

	got, err := UnmarshalSnapshot(data)
	if err != nil {
		t.Fatalf("UnmarshalSnapshot: %v", err)
	}

	if got.Version != orig.Version {
		t.Errorf("version = %d, want %d", got.Version, orig.Version)
	}
	if len(got.Entities) != len(orig.Entities) || len(got.Relations) != len(orig.Relations) {
		t.Errorf("size = %d/%d, want %d/%d",
			len(got.Entities), len(got.Relations), len(orig.Entities), len(orig.Relations))
	}
	if e, ok := got.Entity("e2"); !ok || e.Label != "Acme Corp" {
		t.Errorf("Entity(e2) = %+v, %v", e, ok)
	}
}

func TestSnapshotClone(t *testing.T) {
	orig := testSnapshot()
	orig.Entities[0].Metadata = map[string]any{"source": "stt"}

	clone := orig.Clone()
	clone.Entities[0].Label = "mutated"
	clone.Entities[0].Metadata["source"] = "changed"
	clone.Relations[0].Label = "mutated"

	if orig.Entities[0].Label == "mutated" {
		t.Error("Clone shares entity storage with original")
	}
	if orig.Relations[0].Label == "mutated" {
		t.Error("Clone shares relation storage with original")
	}
	if orig.Entities[0].Metadata["source"] != "stt" {
		t.Error("Clone shares metadata map with original")
	}
}

func TestUnmarshalDelta(t *testing.T) {
	t.Run("valid single step", func(t *testing.T) {
		d, err := UnmarshalDelta([]byte(`{"addedEntities":[],"addedRelations":[],"updatedEntities":[],"removedEntityIds":[],"removedRelationIds":[],"fromVersion":4,"toVersion":5}`))
		if err != nil {
			t.Fatalf("UnmarshalDelta: %v", err)
		}
		if d.FromVersion != 4 || d.ToVersion != 5 {
			t.Errorf("versions = %d -> %d, want 4 -> 5", d.FromVersion, d.ToVersion)
		}
	})

	t.Run("rejects version jump", func(t *testing.T) {
		if _, err := UnmarshalDelta([]byte(`{"fromVersion":4,"toVersion":6}`)); err == nil {
			t.Error("UnmarshalDelta accepted a two-version jump")
		}
	})
}

func TestEntityTypeDecoding(t *testing.T) {
	tests := []struct {
		in   string
		want EntityType
	}{
		{"PERSON", TypePerson},
		{"ORGANIZATION", TypeOrganization},
		{"SPACESHIP", TypeUnknown},
		{"", TypeUnknown},
	}
	for _, tt := range tests {
		if got := ParseEntityType(tt.in); got != tt.want {
			t.Errorf("ParseEntityType(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestDeltaEmpty(t *testing.T) {
	var d Delta
	if !d.Empty() {
		t.Error("zero delta should be empty")
	}
	d.AddedEntities = []Entity{{ID: "a"}}
	d.AddedRelations = []Relation{{ID: "r"}}
	if d.Empty() {
		t.Error("delta with additions should not be empty")
	}
}
