package graph

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
)

var (
	// ErrInvalidEntityID is returned by [Snapshot.Validate] when an entity
	// has an empty ID. All entities must have non-empty identifiers.
	ErrInvalidEntityID = errors.New("entity ID must not be empty")

	// ErrDuplicateEntityID is returned by [Snapshot.Validate] when two
	// entities share an ID. Entity IDs must be unique within a snapshot.
	ErrDuplicateEntityID = errors.New("duplicate entity ID")

	// ErrDuplicateRelationID is returned by [Snapshot.Validate] when two
	// relations share an ID.
	ErrDuplicateRelationID = errors.New("duplicate relation ID")

	// ErrInvalidRelationEndpoint is returned by [Snapshot.Validate] when a
	// relation references an entity that does not exist in the snapshot.
	// This indicates a broken merge, not recoverable input.
	ErrInvalidRelationEndpoint = errors.New("invalid relation endpoint")
)

// =============================================================================
// Snapshot Integrity
// =============================================================================

// Validate checks snapshot integrity and returns nil if valid.
// It verifies three invariants:
//
//  1. Every entity and relation has a non-empty, unique ID
//  2. Every relation's source exists in the entity set
//  3. Every relation's target exists in the entity set
//
// A snapshot produced by the merge engine always validates; use this after
// deserializing snapshots received from an external source.
func (s *Snapshot) Validate() error {
	entities := make(map[string]bool, len(s.Entities))
	for _, e := range s.Entities {
		if e.ID == "" {
			return ErrInvalidEntityID
		}
		if entities[e.ID] {
			return fmt.Errorf("%w: %s", ErrDuplicateEntityID, e.ID)
		}
		entities[e.ID] = true
	}

	relations := make(map[string]bool, len(s.Relations))
	for _, r := range s.Relations {
		if relations[r.ID] {
			return fmt.Errorf("%w: %s", ErrDuplicateRelationID, r.ID)
		}
		relations[r.ID] = true
		if !entities[r.Source] {
			return fmt.Errorf("%w: relation %s source %s", ErrInvalidRelationEndpoint, r.ID, r.Source)
		}
		if !entities[r.Target] {
			return fmt.Errorf("%w: relation %s target %s", ErrInvalidRelationEndpoint, r.ID, r.Target)
		}
	}
	return nil
}

// =============================================================================
// Snapshot Serialization API
// =============================================================================

// MarshalSnapshot converts a snapshot to JSON bytes.
// Entities and relations are sorted by ID for deterministic output, so the
// same graph always hashes to the same cache key.
func MarshalSnapshot(s Snapshot) ([]byte, error) {
	var buf bytes.Buffer
	if err := writeSnapshotTo(s, &buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteSnapshot writes a snapshot as JSON to an io.Writer.
func WriteSnapshot(s Snapshot, w io.Writer) error {
	return writeSnapshotTo(s, w)
}

// WriteSnapshotFile writes a snapshot to a JSON file.
// The file is created with 0644 permissions.
func WriteSnapshotFile(s Snapshot, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()
	return writeSnapshotTo(s, f)
}

// ReadSnapshot decodes a JSON snapshot from an io.Reader and validates it.
func ReadSnapshot(r io.Reader) (Snapshot, error) {
	var s Snapshot
	if err := json.NewDecoder(r).Decode(&s); err != nil {
		return Snapshot{}, fmt.Errorf("decode: %w", err)
	}
	if err := s.Validate(); err != nil {
		return Snapshot{}, err
	}
	return s, nil
}

// ReadSnapshotFile reads a JSON file and returns the decoded snapshot.
// Returns validation errors for malformed snapshots.
func ReadSnapshotFile(path string) (Snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return Snapshot{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return ReadSnapshot(f)
}

// UnmarshalSnapshot deserializes JSON bytes into a validated snapshot.
func UnmarshalSnapshot(data []byte) (Snapshot, error) {
	return ReadSnapshot(bytes.NewReader(data))
}

// MarshalDelta serializes a delta to JSON bytes. Deltas preserve their
// insertion order: unlike snapshots they are transition records, and the
// order of added entities can matter to consumers that animate changes.
func MarshalDelta(d Delta) ([]byte, error) {
	return json.Marshal(d)
}

// UnmarshalDelta deserializes JSON bytes into a delta.
// Returns an error if the version fields do not describe a single step.
func UnmarshalDelta(data []byte) (Delta, error) {
	var d Delta
	if err := json.Unmarshal(data, &d); err != nil {
		return Delta{}, fmt.Errorf("unmarshal delta: %w", err)
	}
	if d.ToVersion != d.FromVersion+1 {
		return Delta{}, fmt.Errorf("delta must describe a single version step, got %d -> %d", d.FromVersion, d.ToVersion)
	}
	return d, nil
}

// =============================================================================
// Internal Implementation
// =============================================================================

func writeSnapshotTo(s Snapshot, w io.Writer) error {
	out := s
	out.Entities = slices.Clone(s.Entities)
	out.Relations = slices.Clone(s.Relations)
	slices.SortFunc(out.Entities, func(a, b Entity) int {
		return compareID(a.ID, b.ID)
	})
	slices.SortFunc(out.Relations, func(a, b Relation) int {
		return compareID(a.ID, b.ID)
	})

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	return nil
}

func compareID(a, b string) int {
	if a < b {
		return -1
	}
	if a > b {
		return 1
	}
	return 0
}
