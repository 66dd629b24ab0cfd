package graph

import (
	"encoding/json"
	"time"
)

// =============================================================================
// EntityType - Closed Category Enum
// =============================================================================

// EntityType classifies an entity into one of a closed set of categories.
// Unknown or unrecognized values decode to [TypeUnknown] rather than failing,
// so a newer extractor cannot break an older engine.
type EntityType string

// Entity categories produced by the extraction step.
const (
	TypePerson       EntityType = "PERSON"
	TypeOrganization EntityType = "ORGANIZATION"
	TypeLocation     EntityType = "LOCATION"
	TypeConcept      EntityType = "CONCEPT"
	TypeEvent        EntityType = "EVENT"
	TypeProduct      EntityType = "PRODUCT"
	TypeTechnology   EntityType = "TECHNOLOGY"
	TypeDate         EntityType = "DATE"
	TypeMetric       EntityType = "METRIC"
	TypeAction       EntityType = "ACTION"
	TypeUnknown      EntityType = "UNKNOWN"
)

// entityTypes is the set of valid categories, used by ParseEntityType.
var entityTypes = map[EntityType]bool{
	TypePerson: true, TypeOrganization: true, TypeLocation: true,
	TypeConcept: true, TypeEvent: true, TypeProduct: true,
	TypeTechnology: true, TypeDate: true, TypeMetric: true,
	TypeAction: true, TypeUnknown: true,
}

// ParseEntityType maps a string to an EntityType.
// Unrecognized values map to TypeUnknown.
func ParseEntityType(s string) EntityType {
	t := EntityType(s)
	if entityTypes[t] {
		return t
	}
	return TypeUnknown
}

// Valid reports whether t is one of the closed categories.
func (t EntityType) Valid() bool { return entityTypes[t] }

// UnmarshalJSON decodes an entity type, mapping unknown values to TypeUnknown.
func (t *EntityType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*t = ParseEntityType(s)
	return nil
}

// =============================================================================
// Entity - Graph Node
// =============================================================================

// Entity is a node in the knowledge graph.
//
// The ID is the identity: labels may be refined over time (a later extraction
// can replace a label with a longer, more specific one) but the ID never
// changes. Metadata is opaque to the engine and carried through merges
// untouched.
type Entity struct {
	ID        string         `json:"id"`
	Label     string         `json:"label"`
	Type      EntityType     `json:"type"`
	CreatedAt int64          `json:"createdAt"`
	UpdatedAt int64          `json:"updatedAt"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// =============================================================================
// Relation - Directed Labeled Edge
// =============================================================================

// Relation is a directed, labeled edge between two entities.
//
// Multiple relations between the same ordered pair are allowed as long as
// their normalized labels differ; a relation is a duplicate only when source,
// target, and normalized label all match. The wire name of the label field is
// "relation" for compatibility with extraction output.
type Relation struct {
	ID        string  `json:"id"`
	Source    string  `json:"source"`
	Target    string  `json:"target"`
	Label     string  `json:"relation"`
	Weight    float64 `json:"weight,omitempty"`
	CreatedAt int64   `json:"createdAt"`
}

// =============================================================================
// Snapshot - Versioned Graph State
// =============================================================================

// Snapshot is the full canonical state of the graph at a given version.
// Versions increase by exactly one per applied delta. Entity and relation IDs
// are unique within a snapshot at all times.
//
// Snapshot values are treated as immutable by the engine: the merge engine
// returns a fresh snapshot rather than mutating its input. Use [Snapshot.Clone]
// before handing a snapshot to code that may modify it.
type Snapshot struct {
	Version     int        `json:"version"`
	Entities    []Entity   `json:"entities"`
	Relations   []Relation `json:"relations"`
	LastUpdated int64      `json:"lastUpdated"`
}

// NewSnapshot returns an empty snapshot at version 0.
func NewSnapshot() Snapshot {
	return Snapshot{
		Version:     0,
		Entities:    []Entity{},
		Relations:   []Relation{},
		LastUpdated: NowMillis(),
	}
}

// Entity returns the entity with the given ID, if present.
func (s *Snapshot) Entity(id string) (Entity, bool) {
	for _, e := range s.Entities {
		if e.ID == id {
			return e, true
		}
	}
	return Entity{}, false
}

// HasEntity reports whether an entity with the given ID exists.
func (s *Snapshot) HasEntity(id string) bool {
	_, ok := s.Entity(id)
	return ok
}

// Relation returns the relation with the given ID, if present.
func (s *Snapshot) Relation(id string) (Relation, bool) {
	for _, r := range s.Relations {
		if r.ID == id {
			return r, true
		}
	}
	return Relation{}, false
}

// EntityIndex builds an ID-keyed lookup map over the snapshot's entities.
// Use this instead of repeated Entity calls when processing a batch.
func (s *Snapshot) EntityIndex() map[string]Entity {
	idx := make(map[string]Entity, len(s.Entities))
	for _, e := range s.Entities {
		idx[e.ID] = e
	}
	return idx
}

// Clone returns a deep copy of the snapshot. Entity metadata maps are copied
// shallowly (values are shared), which is safe because the engine never
// modifies metadata contents.
func (s *Snapshot) Clone() Snapshot {
	out := Snapshot{
		Version:     s.Version,
		Entities:    make([]Entity, len(s.Entities)),
		Relations:   make([]Relation, len(s.Relations)),
		LastUpdated: s.LastUpdated,
	}
	for i, e := range s.Entities {
		if e.Metadata != nil {
			meta := make(map[string]any, len(e.Metadata))
			for k, v := range e.Metadata {
				meta[k] = v
			}
			e.Metadata = meta
		}
		out.Entities[i] = e
	}
	copy(out.Relations, s.Relations)
	return out
}

// =============================================================================
// Delta - Version Transition
// =============================================================================

// Delta is a minimal, versioned description of the changes between two
// consecutive snapshots. ToVersion is always FromVersion+1. A delta is a
// transition descriptor, not a snapshot: it is produced once, applied once,
// and then discarded.
type Delta struct {
	AddedEntities      []Entity   `json:"addedEntities"`
	AddedRelations     []Relation `json:"addedRelations"`
	UpdatedEntities    []Entity   `json:"updatedEntities"`
	RemovedEntityIDs   []string   `json:"removedEntityIds"`
	RemovedRelationIDs []string   `json:"removedRelationIds"`
	FromVersion        int        `json:"fromVersion"`
	ToVersion          int        `json:"toVersion"`
}

// Empty reports whether the delta describes no changes at all.
func (d *Delta) Empty() bool {
	return len(d.AddedEntities) == 0 &&
		len(d.AddedRelations) == 0 &&
		len(d.UpdatedEntities) == 0 &&
		len(d.RemovedEntityIDs) == 0 &&
		len(d.RemovedRelationIDs) == 0
}

// =============================================================================
// Extraction Input - Upstream Boundary Shapes
// =============================================================================

// ExtractedEntity is one entity record from the extraction step, before
// resolution. Its ID is scoped to a single batch and may collide with or
// duplicate IDs already present in the snapshot.
type ExtractedEntity struct {
	ID    string `json:"id" validate:"required"`
	Label string `json:"label" validate:"required"`
	Type  string `json:"type" validate:"required"`
}

// ExtractedRelation is one relation record from the extraction step. Source
// and target reference batch-local entity IDs, snapshot entity IDs, or (from
// some extractors) entity labels.
type ExtractedRelation struct {
	Source string `json:"source" validate:"required"`
	Target string `json:"target" validate:"required"`
	Label  string `json:"relation" validate:"required"`
}

// ExtractionResult is one batch of raw extraction output.
type ExtractionResult struct {
	Entities  []ExtractedEntity   `json:"entities"`
	Relations []ExtractedRelation `json:"relations"`
}

// NowMillis returns the current time as Unix epoch milliseconds, the
// timestamp unit used throughout the wire protocol.
func NowMillis() int64 { return time.Now().UnixMilli() }
