// Package graph defines the canonical data model for the loomgraph engine:
// entities, relations, versioned snapshots, and deltas.
//
// # Model
//
// A [Snapshot] is the full state of a knowledge graph at a given version.
// Entities are nodes (a person, organization, concept, ...), relations are
// directed labeled edges between them. A [Delta] describes the transition
// between two consecutive versions: it is produced once by the delta builder,
// applied once by the merge engine, and then discarded.
//
// Identity is carried by the entity/relation ID. Labels are mutable (a later
// extraction may refine "Acme" to "Acme Corp"); types are fixed at creation.
// Timestamps are Unix epoch milliseconds to match the wire protocol consumed
// by visualization clients.
//
// # Serialization
//
// Snapshots and deltas serialize to JSON with camelCase field names. Snapshot
// output is deterministic: entities and relations are sorted by ID, so
// identical graphs always produce identical bytes. This property is what the
// cache layer's content hashing relies on.
//
// # Normalization
//
// [NormalizeLabel] and [NormalizeRelation] implement the shared normalization
// used by entity resolution and duplicate detection. Word characters are
// Unicode letters and digits, so non-Latin scripts (Hangul, CJK) normalize
// correctly.
package graph
