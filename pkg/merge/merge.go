// Package merge applies deltas to versioned graph snapshots.
//
// Apply is a pure reducer: it never mutates its inputs and returns a fresh
// snapshot. Rules are applied in a fixed order - entity updates, entity
// additions, entity removals (cascading to dangling relations), relation
// additions, relation removals - so the result is fully determined by the
// inputs.
//
// # Version Sequencing
//
// A delta names the snapshot version it was built against (FromVersion). When
// that does not match the snapshot being reduced, the system has seen a
// reconnect race, a duplicate, or an out-of-order delivery. The policy for
// this case is explicit and configurable:
//
//   - [PolicyBestEffort] (default): apply anyway and surface the mismatch as
//     a warning, favoring availability over strict ordering
//   - [PolicyStrict]: reject the delta with a VERSION_MISMATCH error
//
// Either way the mismatch is observable; the transport layer decides whether
// to request a full resync.
package merge

import (
	"github.com/telariq/loomgraph/pkg/errors"
	"github.com/telariq/loomgraph/pkg/graph"
)

// Policy controls how Apply treats a delta whose FromVersion does not match
// the snapshot's current version.
type Policy int

const (
	// PolicyBestEffort applies mismatched deltas anyway and reports the
	// discrepancy as a warning. This tolerates reconnect races where a
	// duplicate or stale delta arrives.
	PolicyBestEffort Policy = iota

	// PolicyStrict rejects mismatched deltas with a VERSION_MISMATCH error.
	PolicyStrict
)

// Warning describes a non-fatal condition encountered during a merge.
type Warning struct {
	Code    errors.Code
	Message string
}

// Result carries the merged snapshot together with any warnings.
type Result struct {
	Snapshot graph.Snapshot
	Warnings []Warning
}

// Apply reduces a delta onto a snapshot under [PolicyBestEffort].
func Apply(snapshot graph.Snapshot, delta graph.Delta) Result {
	res, _ := ApplyWithPolicy(snapshot, delta, PolicyBestEffort)
	return res
}

// ApplyWithPolicy reduces a delta onto a snapshot, producing a new snapshot
// at delta.ToVersion. Neither input is modified.
//
// Under PolicyStrict a version mismatch returns an error and the zero Result.
// Under PolicyBestEffort the merge proceeds and the mismatch is reported in
// Result.Warnings.
func ApplyWithPolicy(snapshot graph.Snapshot, delta graph.Delta, policy Policy) (Result, error) {
	var warnings []Warning

	if delta.FromVersion != snapshot.Version {
		if policy == PolicyStrict {
			return Result{}, errors.New(errors.ErrCodeVersionMismatch,
				"delta fromVersion %d does not match snapshot version %d",
				delta.FromVersion, snapshot.Version)
		}
		warnings = append(warnings, Warning{
			Code: errors.ErrCodeVersionMismatch,
			Message: errors.New(errors.ErrCodeVersionMismatch,
				"delta fromVersion %d does not match snapshot version %d, merging best-effort",
				delta.FromVersion, snapshot.Version).Message,
		})
	}

	next := snapshot.Clone()

	// 1. Apply entity updates by ID replacement.
	if len(delta.UpdatedEntities) > 0 {
		updates := make(map[string]graph.Entity, len(delta.UpdatedEntities))
		for _, e := range delta.UpdatedEntities {
			updates[e.ID] = e
		}
		for i, e := range next.Entities {
			if u, ok := updates[e.ID]; ok {
				next.Entities[i] = u
			}
		}
	}

	// 2. Append added entities, skipping IDs that already exist so a
	// duplicated delta cannot break ID uniqueness.
	existing := make(map[string]bool, len(next.Entities))
	for _, e := range next.Entities {
		existing[e.ID] = true
	}
	for _, e := range delta.AddedEntities {
		if existing[e.ID] {
			warnings = append(warnings, Warning{
				Code:    errors.ErrCodeDuplicateID,
				Message: "entity " + e.ID + " already present, skipping add",
			})
			continue
		}
		next.Entities = append(next.Entities, e)
		existing[e.ID] = true
	}

	// 3. Remove entities, cascading to any relation that now dangles even if
	// its ID was not explicitly listed for removal.
	if len(delta.RemovedEntityIDs) > 0 {
		removed := make(map[string]bool, len(delta.RemovedEntityIDs))
		for _, id := range delta.RemovedEntityIDs {
			removed[id] = true
		}
		entities := next.Entities[:0]
		for _, e := range next.Entities {
			if !removed[e.ID] {
				entities = append(entities, e)
			} else {
				delete(existing, e.ID)
			}
		}
		next.Entities = entities

		relations := next.Relations[:0]
		for _, r := range next.Relations {
			if removed[r.Source] || removed[r.Target] {
				continue
			}
			relations = append(relations, r)
		}
		next.Relations = relations
	}

	// 4. Append added relations; endpoints must exist after steps 2-3.
	relationIDs := make(map[string]bool, len(next.Relations))
	for _, r := range next.Relations {
		relationIDs[r.ID] = true
	}
	for _, r := range delta.AddedRelations {
		if relationIDs[r.ID] {
			warnings = append(warnings, Warning{
				Code:    errors.ErrCodeDuplicateID,
				Message: "relation " + r.ID + " already present, skipping add",
			})
			continue
		}
		if !existing[r.Source] || !existing[r.Target] {
			warnings = append(warnings, Warning{
				Code:    errors.ErrCodeMissingEndpoint,
				Message: "relation " + r.ID + " references a missing endpoint, dropped",
			})
			continue
		}
		next.Relations = append(next.Relations, r)
		relationIDs[r.ID] = true
	}

	// 5. Remove explicitly listed relations.
	if len(delta.RemovedRelationIDs) > 0 {
		removed := make(map[string]bool, len(delta.RemovedRelationIDs))
		for _, id := range delta.RemovedRelationIDs {
			removed[id] = true
		}
		relations := next.Relations[:0]
		for _, r := range next.Relations {
			if !removed[r.ID] {
				relations = append(relations, r)
			}
		}
		next.Relations = relations
	}

	next.Version = delta.ToVersion
	next.LastUpdated = graph.NowMillis()

	return Result{Snapshot: next, Warnings: warnings}, nil
}
