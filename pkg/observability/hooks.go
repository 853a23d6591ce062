// Package observability provides hooks for metrics and tracing.
//
// Libraries in this module emit events through hook interfaces without
// depending on a metrics backend. The CLI registers a Prometheus
// implementation at startup; everything else sees the no-op defaults.
//
// # Architecture
//
//   - Hook interfaces per event category (layout, scan, cache, server)
//   - No-op default implementations
//   - Registration once at startup, read on every event
//
// # Usage
//
// Register hooks at application startup:
//
//	func main() {
//	    observability.SetLayoutHooks(&promLayoutHooks{})
//	    observability.SetScanHooks(&promScanHooks{})
//	    // ... run application
//	}
//
// Libraries call hooks to emit events:
//
//	observability.Layout().OnTick(treeID, nodes, heat, maxVelocity)
//	observability.Scan().OnScanComplete(ctx, root, dirs, time.Since(start), err)
package observability

import (
	"context"
	"sync"
	"time"
)

// =============================================================================
// Layout Hooks
// =============================================================================

// LayoutHooks receives events from the layout engine's frame loop.
//
// Ticks run on the frame goroutine with no request scope, so these methods
// take no context.
type LayoutHooks interface {
	// OnTick records one integrator step for a hot tree.
	OnTick(tree string, nodes, heat int, maxVelocity float64)

	// OnCooled records a tree whose heat reached zero.
	OnCooled(tree string)

	// OnDrag records a drag protocol event ("start", "move", "end").
	OnDrag(tree, phase string)
}

// =============================================================================
// Scan Hooks
// =============================================================================

// ScanHooks receives events from the directory scanner and watcher.
type ScanHooks interface {
	// OnScanBatch records a batch of messages applied to a tree.
	OnScanBatch(ctx context.Context, root string, messages int)

	// OnScanComplete records the end of a full directory walk.
	OnScanComplete(ctx context.Context, root string, dirs int, duration time.Duration, err error)

	// OnWatchEvent records a file-system event seen by the watcher.
	OnWatchEvent(ctx context.Context, root, op string)
}

// =============================================================================
// Cache Hooks
// =============================================================================

// CacheHooks receives events from snapshot cache operations.
type CacheHooks interface {
	// OnCacheHit records a cache hit.
	OnCacheHit(ctx context.Context, backend string)

	// OnCacheMiss records a cache miss.
	OnCacheMiss(ctx context.Context, backend string)

	// OnCacheSet records a cache write.
	OnCacheSet(ctx context.Context, backend string, size int)
}

// =============================================================================
// Server Hooks
// =============================================================================

// ServerHooks receives events from the HTTP API.
type ServerHooks interface {
	// OnRequest records a served request by route pattern.
	OnRequest(ctx context.Context, method, route string, status int, duration time.Duration)
}

// =============================================================================
// No-op Implementations
// =============================================================================

// NoopLayoutHooks is a no-op implementation of LayoutHooks.
type NoopLayoutHooks struct{}

func (NoopLayoutHooks) OnTick(string, int, int, float64) {}
func (NoopLayoutHooks) OnCooled(string)                  {}
func (NoopLayoutHooks) OnDrag(string, string)            {}

// NoopScanHooks is a no-op implementation of ScanHooks.
type NoopScanHooks struct{}

func (NoopScanHooks) OnScanBatch(context.Context, string, int)                           {}
func (NoopScanHooks) OnScanComplete(context.Context, string, int, time.Duration, error) {}
func (NoopScanHooks) OnWatchEvent(context.Context, string, string)                       {}

// NoopCacheHooks is a no-op implementation of CacheHooks.
type NoopCacheHooks struct{}

func (NoopCacheHooks) OnCacheHit(context.Context, string)      {}
func (NoopCacheHooks) OnCacheMiss(context.Context, string)     {}
func (NoopCacheHooks) OnCacheSet(context.Context, string, int) {}

// NoopServerHooks is a no-op implementation of ServerHooks.
type NoopServerHooks struct{}

func (NoopServerHooks) OnRequest(context.Context, string, string, int, time.Duration) {}

// =============================================================================
// Global Hook Registry
// =============================================================================

var (
	layoutHooks LayoutHooks = NoopLayoutHooks{}
	scanHooks   ScanHooks   = NoopScanHooks{}
	cacheHooks  CacheHooks  = NoopCacheHooks{}
	serverHooks ServerHooks = NoopServerHooks{}
	hooksMu     sync.RWMutex
)

// SetLayoutHooks registers custom layout hooks.
// This should be called once at application startup before any ticks run.
func SetLayoutHooks(h LayoutHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		layoutHooks = h
	}
}

// SetScanHooks registers custom scan hooks.
func SetScanHooks(h ScanHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		scanHooks = h
	}
}

// SetCacheHooks registers custom cache hooks.
// This should be called once at application startup before any cache operations.
func SetCacheHooks(h CacheHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		cacheHooks = h
	}
}

// SetServerHooks registers custom server hooks.
func SetServerHooks(h ServerHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		serverHooks = h
	}
}

// Layout returns the registered layout hooks.
func Layout() LayoutHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return layoutHooks
}

// Scan returns the registered scan hooks.
func Scan() ScanHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return scanHooks
}

// Cache returns the registered cache hooks.
func Cache() CacheHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return cacheHooks
}

// Server returns the registered server hooks.
func Server() ServerHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return serverHooks
}

// Reset restores all hooks to their no-op defaults.
// This is primarily useful for testing.
func Reset() {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	layoutHooks = NoopLayoutHooks{}
	scanHooks = NoopScanHooks{}
	cacheHooks = NoopCacheHooks{}
	serverHooks = NoopServerHooks{}
}
