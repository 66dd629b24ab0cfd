// Package delta turns raw extraction batches into minimal, validated deltas
// against a graph snapshot.
//
// The builder is where batch-local chaos gets cleaned up: near-duplicate
// entities in the same batch collapse onto a single id, temporary extraction
// ids are rewritten to canonical ones, malformed records are dropped one at a
// time without aborting the batch, and relations whose endpoints cannot be
// found anywhere are discarded with a warning. The snapshot passed in is never
// modified.
package delta

import (
	"slices"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/telariq/loomgraph/pkg/errors"
	"github.com/telariq/loomgraph/pkg/graph"
	"github.com/telariq/loomgraph/pkg/resolve"
)

// Warning describes a record-level problem the builder recovered from.
type Warning struct {
	Code    errors.Code
	Message string
}

// Result carries the built delta together with per-record warnings.
type Result struct {
	Delta    graph.Delta
	Warnings []Warning
}

// Builder converts extraction output into deltas. A Builder reuses the
// resolver's internal buffers across calls and is NOT safe for concurrent
// use; each goroutine should have its own.
type Builder struct {
	validate *validator.Validate
	resolver *resolve.Resolver

	// Overridable in tests for reproducible ids and timestamps.
	newID func() string
	now   func() int64
}

// New creates a builder using the default fuzzy resolution threshold.
func New() *Builder {
	return NewWithThreshold(resolve.DefaultFuzzyThreshold)
}

// NewWithThreshold creates a builder whose resolver uses the given fuzzy
// similarity threshold.
func NewWithThreshold(threshold float64) *Builder {
	return &Builder{
		validate: validator.New(validator.WithRequiredStructEnabled()),
		resolver: resolve.New(threshold),
		newID:    uuid.NewString,
		now:      graph.NowMillis,
	}
}

// Build produces a delta that transitions snapshot to the next version.
//
// Entities are resolved against the snapshot plus the entities already added
// earlier in the same batch. A resolved mention whose label is strictly longer
// than the current one refines the existing entity's label; an unresolved
// mention becomes a new entity with a freshly minted id. Relation endpoints
// are rewritten from batch-local ids to canonical ids, with a label fallback
// for extractors that emit labels in the id position.
func (b *Builder) Build(result graph.ExtractionResult, snapshot graph.Snapshot) Result {
	var warnings []Warning
	now := b.now()

	// pool is the resolution universe: snapshot entities with this batch's
	// label refinements applied, plus entities added so far in this batch.
	pool := make([]graph.Entity, len(snapshot.Entities))
	copy(pool, snapshot.Entities)
	poolIndex := make(map[string]int, len(pool))
	for i, e := range pool {
		poolIndex[e.ID] = i
	}

	var added []graph.Entity
	updated := make(map[string]graph.Entity)
	idMap := make(map[string]string, len(result.Entities))

	for i, cand := range result.Entities {
		if err := b.validate.Struct(cand); err != nil {
			warnings = append(warnings, Warning{
				Code:    errors.ErrCodeInvalidRecord,
				Message: errors.Wrap(errors.ErrCodeInvalidRecord, err, "entity record %d", i).Error(),
			})
			continue
		}
		if graph.NormalizeLabel(cand.Label) == "" {
			warnings = append(warnings, Warning{
				Code:    errors.ErrCodeInvalidRecord,
				Message: errors.New(errors.ErrCodeInvalidRecord, "entity record %d: label %q is empty after normalization", i, cand.Label).Error(),
			})
			continue
		}

		if match, ok := b.resolver.Resolve(cand, pool); ok {
			idMap[cand.ID] = match.ID
			// A strictly longer label refines the entity. Rune count, so
			// multi-byte scripts are not penalized.
			current := pool[poolIndex[match.ID]]
			if len([]rune(cand.Label)) > len([]rune(current.Label)) {
				current.Label = cand.Label
				current.UpdatedAt = now
				pool[poolIndex[match.ID]] = current
				updated[current.ID] = current
			}
			continue
		}

		entity := graph.Entity{
			ID:        b.newID(),
			Label:     cand.Label,
			Type:      graph.ParseEntityType(cand.Type),
			CreatedAt: now,
			UpdatedAt: now,
		}
		added = append(added, entity)
		poolIndex[entity.ID] = len(pool)
		pool = append(pool, entity)
		idMap[cand.ID] = entity.ID
	}

	// Label fallback index: some extractors put a label where an id belongs.
	// Smallest entity id wins on label collisions so the mapping is stable.
	byLabel := make(map[string]string, len(pool))
	for _, e := range pool {
		n := graph.NormalizeLabel(e.Label)
		if n == "" {
			continue
		}
		if prev, ok := byLabel[n]; !ok || e.ID < prev {
			byLabel[n] = e.ID
		}
	}

	// Duplicate detection: exact (source, target, normalized label) triple
	// against snapshot relations and relations added earlier in this batch.
	type triple struct{ source, target, label string }
	seen := make(map[triple]bool, len(snapshot.Relations))
	for _, r := range snapshot.Relations {
		seen[triple{r.Source, r.Target, graph.NormalizeRelation(r.Label)}] = true
	}

	var addedRelations []graph.Relation
	for i, cand := range result.Relations {
		if err := b.validate.Struct(cand); err != nil {
			warnings = append(warnings, Warning{
				Code:    errors.ErrCodeInvalidRecord,
				Message: errors.Wrap(errors.ErrCodeInvalidRecord, err, "relation record %d", i).Error(),
			})
			continue
		}

		source, ok := b.resolveEndpoint(cand.Source, idMap, poolIndex, byLabel)
		if !ok {
			warnings = append(warnings, Warning{
				Code:    errors.ErrCodeMissingEndpoint,
				Message: errors.New(errors.ErrCodeMissingEndpoint, "relation record %d: source %q matches no entity", i, cand.Source).Error(),
			})
			continue
		}
		target, ok := b.resolveEndpoint(cand.Target, idMap, poolIndex, byLabel)
		if !ok {
			warnings = append(warnings, Warning{
				Code:    errors.ErrCodeMissingEndpoint,
				Message: errors.New(errors.ErrCodeMissingEndpoint, "relation record %d: target %q matches no entity", i, cand.Target).Error(),
			})
			continue
		}

		key := triple{source, target, graph.NormalizeRelation(cand.Label)}
		if seen[key] {
			continue
		}
		seen[key] = true

		addedRelations = append(addedRelations, graph.Relation{
			ID:        b.newID(),
			Source:    source,
			Target:    target,
			Label:     cand.Label,
			CreatedAt: now,
		})
	}

	updatedEntities := make([]graph.Entity, 0, len(updated))
	for _, e := range updated {
		updatedEntities = append(updatedEntities, e)
	}
	slices.SortFunc(updatedEntities, func(a, b graph.Entity) int {
		if a.ID < b.ID {
			return -1
		}
		if a.ID > b.ID {
			return 1
		}
		return 0
	})

	return Result{
		Delta: graph.Delta{
			AddedEntities:   added,
			AddedRelations:  addedRelations,
			UpdatedEntities: updatedEntities,
			FromVersion:     snapshot.Version,
			ToVersion:       snapshot.Version + 1,
		},
		Warnings: warnings,
	}
}

// resolveEndpoint maps a raw relation endpoint to a canonical entity id.
// Priority: batch-local id mapping, then an id already in the resolution
// pool, then a normalized-label match.
func (b *Builder) resolveEndpoint(raw string, idMap map[string]string, poolIndex map[string]int, byLabel map[string]string) (string, bool) {
	if id, ok := idMap[raw]; ok {
		return id, true
	}
	if _, ok := poolIndex[raw]; ok {
		return raw, true
	}
	if id, ok := byLabel[graph.NormalizeLabel(raw)]; ok {
		return id, true
	}
	return "", false
}
