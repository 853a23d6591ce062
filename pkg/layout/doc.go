// Package layout positions the nodes of a [tree.Tree] in columns and animates
// them with a damped spring integrator.
//
// # Strategies
//
// An [Engine] is built from a [Config] whose Strategy field selects one of
// the entries of an explicit table:
//
//   - [StrategySpringColumn]: children are stacked vertically around their
//     parent, one column per depth. Dragging moves nodes vertically and
//     reorders siblings.
//   - [StrategySpringColumnExtended]: as above, plus horizontal dragging that
//     is kept after the drag ends and tighter packing of adjacent leaves.
//
// # Passes
//
// A structural change marks the tree dirty. On the next tick the engine
// computes every subtree's bound (the vertical space it needs), derives the
// column x offsets from the largest bound per depth, and then, on every hot
// tick, centres each node's children around the parent's current y. The
// integrator moves nodes toward those targets:
//
//	accel = stiffness·(target − position) − damping·velocity
//
// with per-axis constants and a small random jitter.
//
// # Heat
//
// Each tree carries a heat counter. A tick in which no node moves faster
// than Config.MinAlpha cools the tree by one; any other tick warms it up to
// Config.CoolDown. Structural changes and drags reset heat to the cap. A
// cold tree costs nothing per frame.
//
// # Side tables
//
// Layout state lives in tables keyed by tree ID and node ID, never on the
// nodes themselves. The engine learns about nodes through the
// [tree.Observer] methods and drops their state on removal. A node the engine
// has not seen yet is skipped until the next bounds pass picks it up.
//
// # Concurrency
//
// An Engine is not safe for concurrent use. Call it from the goroutine that
// mutates the trees.
package layout
