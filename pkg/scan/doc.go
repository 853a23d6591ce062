// Package scan feeds file-system structure and measurements into a tree.
//
// A [Scanner] walks a directory and emits one [Message] per observation:
// a folder exists, a folder is too large to show and becomes a collection,
// or a folder's own metrics were measured. A [Watcher] keeps emitting
// messages as the directory changes. Scanning and watching happen on their
// own goroutines; messages are handed over through a [Queue] and applied to
// the tree in bounded batches by [Apply] on the goroutine that owns the
// tree.
//
//	q := scan.NewQueue()
//	go scanner.Scan(ctx, root, q.Push)
//	// on the tree goroutine, every drain interval:
//	scan.Apply(t, q.Pop(64))
//
// Message paths are relative to the scanned root and "/"-delimited.
package scan
