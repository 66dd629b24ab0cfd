// Package observability provides hooks for metrics and instrumentation.
//
// The engine stays free of hard dependencies on observability backends:
// hook interfaces are defined here with no-op defaults, and a backend (the
// dev server registers a Prometheus implementation) is plugged in once at
// startup.
//
// # Usage
//
// Register hooks at application startup:
//
//	func main() {
//	    observability.SetEngineHooks(&promEngineHooks{})
//	    observability.SetCacheHooks(&promCacheHooks{})
//	    // ... run application
//	}
//
// Libraries emit events through the registry:
//
//	observability.Engine().OnLayoutStart(ctx, "force", nodeCount)
//	// ... compute layout ...
//	observability.Engine().OnLayoutComplete(ctx, "force", incremental, duration, warnings)
package observability

import (
	"context"
	"sync"
	"time"
)

// =============================================================================
// Engine Hooks
// =============================================================================

// EngineHooks receives events from the delta/merge/layout pipeline.
type EngineHooks interface {
	// Delta building
	OnDeltaBuilt(ctx context.Context, addedEntities, addedRelations, warnings int, duration time.Duration)

	// Merging
	OnMergeComplete(ctx context.Context, version int, warnings int, duration time.Duration)

	// Layout
	OnLayoutStart(ctx context.Context, engine string, nodeCount int)
	OnLayoutComplete(ctx context.Context, engine string, incremental bool, duration time.Duration, warnings int)

	// OnCheckpoint fires when the pipeline reaches a checkpoint version
	// (every Nth applied delta). The caller decides what checkpointing
	// means; the engine itself does not persist.
	OnCheckpoint(ctx context.Context, version int)
}

// =============================================================================
// Cache Hooks
// =============================================================================

// CacheHooks receives events from cache operations.
type CacheHooks interface {
	// OnCacheHit records a cache hit.
	OnCacheHit(ctx context.Context, keyType string)

	// OnCacheMiss records a cache miss.
	OnCacheMiss(ctx context.Context, keyType string)

	// OnCacheSet records a cache write.
	OnCacheSet(ctx context.Context, keyType string, size int)
}

// =============================================================================
// No-op Implementations
// =============================================================================

// NoopEngineHooks is a no-op implementation of EngineHooks.
type NoopEngineHooks struct{}

func (NoopEngineHooks) OnDeltaBuilt(context.Context, int, int, int, time.Duration)          {}
func (NoopEngineHooks) OnMergeComplete(context.Context, int, int, time.Duration)            {}
func (NoopEngineHooks) OnLayoutStart(context.Context, string, int)                          {}
func (NoopEngineHooks) OnLayoutComplete(context.Context, string, bool, time.Duration, int)  {}
func (NoopEngineHooks) OnCheckpoint(context.Context, int)                                   {}

// NoopCacheHooks is a no-op implementation of CacheHooks.
type NoopCacheHooks struct{}

func (NoopCacheHooks) OnCacheHit(context.Context, string)      {}
func (NoopCacheHooks) OnCacheMiss(context.Context, string)     {}
func (NoopCacheHooks) OnCacheSet(context.Context, string, int) {}

// =============================================================================
// Global Hook Registry
// =============================================================================

var (
	engineHooks EngineHooks = NoopEngineHooks{}
	cacheHooks  CacheHooks  = NoopCacheHooks{}
	hooksMu     sync.RWMutex
)

// SetEngineHooks registers custom engine hooks.
// Call once at application startup before any pipeline operations.
func SetEngineHooks(h EngineHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		engineHooks = h
	}
}

// SetCacheHooks registers custom cache hooks.
// Call once at application startup before any cache operations.
func SetCacheHooks(h CacheHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		cacheHooks = h
	}
}

// Engine returns the registered engine hooks.
func Engine() EngineHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return engineHooks
}

// Cache returns the registered cache hooks.
func Cache() CacheHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return cacheHooks
}

// Reset restores all hooks to their no-op defaults.
// Primarily useful for testing.
func Reset() {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	engineHooks = NoopEngineHooks{}
	cacheHooks = NoopCacheHooks{}
}
