package tree

import "github.com/matzehuels/overview/pkg/metric"

// NodeID is a stable handle to a node within one tree.
type NodeID uint64

// NoNode is the zero handle. It is the parent of the root.
const NoNode NodeID = 0

// Collection summarizes a subtree that is not materialized as nodes.
type Collection struct {
	Size  int // number of children the folder holds
	Depth int // depth of the elided subtree, 0 when unknown
}

// Node is one folder.
type Node struct {
	ID    NodeID
	Name  string
	Depth int

	Own       metric.Set
	Recursive metric.Set

	// Collection is non-nil when the node stands in for an elided subtree.
	Collection *Collection

	// X and Y are the current simulated position, written by the layout engine.
	X, Y float64

	Parent   NodeID
	Children []NodeID
}

// IsCollection reports whether the node is a collection placeholder.
func (n *Node) IsCollection() bool { return n.Collection != nil }

// IsRoot reports whether the node has no parent.
func (n *Node) IsRoot() bool { return n.Parent == NoNode }

// Link connects a parent to one of its children.
type Link struct {
	Parent NodeID
	Child  NodeID
}

// MetricUpdate installs own metrics at a path.
type MetricUpdate struct {
	Path    string
	Metrics metric.Set
}
