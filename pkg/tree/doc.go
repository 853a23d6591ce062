// Package tree provides the folder hierarchy behind an overview: an arena of
// nodes addressed by stable [NodeID] handles, a path-based mutation API, and
// the flat node and link lists a renderer reads every frame.
//
// # Structure
//
// A [Tree] owns every [Node] in an arena keyed by [NodeID]. Children are
// stored as ordered ID lists and the parent as a plain ID, so there are no
// pointer cycles and removing a node is a matter of dropping its subtree
// from the arena. IDs are never reused within a tree.
//
// # Mutation
//
// All mutation goes through the tree:
//
//	t := tree.New("/home/me/src", tree.Options{Observer: engine, Logger: logger})
//	t.AddByPath("overview/pkg/tree", nil)
//	t.SetMetrics("overview/pkg", metric.Set{metric.KindSize: &metric.Sum{S: 4096}})
//	t.RemoveByPath("overview/pkg/tree")
//
// Paths are relative to the tree root and "/"-delimited. A path that does not
// resolve is not an error: the call does nothing and reports false (or an
// empty result). Paths from an asynchronous scanner routinely name folders
// that have already gone away.
//
// A folder marked as a collection stands in for an elided subtree. Nothing
// can be inserted beneath it.
//
// # Aggregation
//
// Every node keeps its own metrics and a recursive set equal to its own
// merged with the recursive sets of its children. [Tree.SetMetrics] refreshes
// the recursive sets from the node up to the root. A metric kind that the
// registry cannot create or merge is logged and skipped for that node; other
// kinds still merge.
//
// # Notifications
//
// The tree reports structural changes to an [Observer] (the layout engine)
// and presentation changes to a [Listener] (the renderer). Bulk operations
// notify once after the whole batch.
//
// # Concurrency
//
// A Tree is not safe for concurrent use. The owner is expected to apply
// scanner messages and advance the layout from a single goroutine.
package tree
