// Package cache provides content-addressed caching for derived engine
// results.
//
// The engine's expensive products are derived data: a layout for a given
// snapshot, or a checkpointed snapshot at a given version. Both are keyed by
// content hash so the cache can never serve a result for the wrong input.
// The canonical graph itself is never persisted here; the cache holds only
// recomputable artifacts.
//
// # Backends
//
//   - FileCache: per-user cache directory, suited to CLI replay runs
//   - RedisCache: shared cache for the dev server
//   - NullCache: caching disabled, every lookup misses
package cache

import (
	"context"
	"time"
)

// TTLs for the different artifact classes. Layouts are cheap to recompute
// and tied to exact content hashes, so they can live long; checkpoints are
// kept shorter since replay produces them continuously.
const (
	TTLLayout     = 7 * 24 * time.Hour
	TTLCheckpoint = 24 * time.Hour
)

// Cache is a byte-oriented key-value store with per-entry TTLs.
type Cache interface {
	// Get retrieves a value. The bool reports whether the key was found.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores a value. A non-positive ttl means no expiration.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Delete removes a value. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases backend resources.
	Close() error
}

// LayoutKeyOpts are the layout parameters that must be part of a layout
// cache key: the same snapshot laid out with a different engine, different
// tunables, or different previous positions is a different artifact.
type LayoutKeyOpts struct {
	Engine       string `json:"engine"`
	ConfigHash   string `json:"configHash"`
	PreviousHash string `json:"previousHash"`
}

// Keyer generates cache keys for the engine's artifact classes.
type Keyer interface {
	// LayoutKey keys a computed position map by the content hash of the
	// snapshot it was computed for.
	LayoutKey(snapshotHash string, opts LayoutKeyOpts) string

	// CheckpointKey keys a serialized snapshot checkpoint by graph name and
	// version.
	CheckpointKey(name string, version int) string
}

// DefaultKeyer hashes key components with SHA-256 under a per-class prefix.
type DefaultKeyer struct{}

// NewDefaultKeyer creates the standard keyer.
func NewDefaultKeyer() Keyer {
	return &DefaultKeyer{}
}

// LayoutKey implements [Keyer].
func (k *DefaultKeyer) LayoutKey(snapshotHash string, opts LayoutKeyOpts) string {
	return hashKey("layout", snapshotHash, opts)
}

// CheckpointKey implements [Keyer].
func (k *DefaultKeyer) CheckpointKey(name string, version int) string {
	return hashKey("checkpoint", name, version)
}

// ScopedKeyer wraps a Keyer with a prefix so multiple graph streams can share
// one backend without key collisions.
type ScopedKeyer struct {
	inner  Keyer
	prefix string
}

// NewScopedKeyer creates a keyer that prepends prefix to every generated key.
func NewScopedKeyer(inner Keyer, prefix string) Keyer {
	if inner == nil {
		inner = NewDefaultKeyer()
	}
	return &ScopedKeyer{inner: inner, prefix: prefix}
}

// LayoutKey generates a prefixed layout key.
func (k *ScopedKeyer) LayoutKey(snapshotHash string, opts LayoutKeyOpts) string {
	return k.prefix + k.inner.LayoutKey(snapshotHash, opts)
}

// CheckpointKey generates a prefixed checkpoint key.
func (k *ScopedKeyer) CheckpointKey(name string, version int) string {
	return k.prefix + k.inner.CheckpointKey(name, version)
}
