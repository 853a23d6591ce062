// Package overview ties trees, the layout engine and the scanner together.
//
// An [Overview] owns every open tree, one layout engine shared by all of
// them, and one message queue per tree. Scanner and watcher goroutines only
// push into the queues; everything that touches a tree runs under the
// overview's mutex, either inside [Overview.Run] or in callers that take
// [Overview.Lock] themselves (HTTP handlers, the TUI update loop):
//
//	ov, err := overview.New(overview.Options{Config: cfg, Logger: logger})
//	t, err := ov.Open("/src/project")
//	go ov.Scan(ctx, t)
//	err = ov.Run(ctx) // drains queues and ticks the engine until ctx ends
//
// Each drain pass applies at most Drain.BatchSize messages per tree, so a
// large scan reaches the tree over many frames and the layout animates
// while it grows.
package overview
