package tree

// Observer receives structural changes. The layout engine implements it.
// Calls happen synchronously from inside the mutating method, after the
// tree's lists are consistent again (except NodeAdded, which fires per node
// while a path is still being built).
type Observer interface {
	NodeAdded(t *Tree, id NodeID)
	NodesAdded(t *Tree, ids []NodeID)
	NodeRemoved(t *Tree, id NodeID)
	NodesUpdated(t *Tree)
	NodesRemovedChildren(t *Tree, id NodeID)
	TreeUpdated(t *Tree)
}

// Listener receives the changes a renderer needs to re-derive presentation
// state (colour, visibility). It never sees layout internals.
type Listener interface {
	NodeAdded(t *Tree, id NodeID)
	NodesAdded(t *Tree, ids []NodeID)
	NodesUpdated(t *Tree)
	FeaturesUpdated(t *Tree)
}

// NoopObserver is a no-op implementation of Observer.
type NoopObserver struct{}

func (NoopObserver) NodeAdded(*Tree, NodeID)            {}
func (NoopObserver) NodesAdded(*Tree, []NodeID)         {}
func (NoopObserver) NodeRemoved(*Tree, NodeID)          {}
func (NoopObserver) NodesUpdated(*Tree)                 {}
func (NoopObserver) NodesRemovedChildren(*Tree, NodeID) {}
func (NoopObserver) TreeUpdated(*Tree)                  {}

// NoopListener is a no-op implementation of Listener.
type NoopListener struct{}

func (NoopListener) NodeAdded(*Tree, NodeID)    {}
func (NoopListener) NodesAdded(*Tree, []NodeID) {}
func (NoopListener) NodesUpdated(*Tree)         {}
func (NoopListener) FeaturesUpdated(*Tree)      {}
