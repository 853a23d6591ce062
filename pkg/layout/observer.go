package layout

import "github.com/matzehuels/overview/pkg/tree"

// NodeAdded creates coord state for a new node and places it on its parent
// so it grows out of the existing layout.
func (e *springColumn) NodeAdded(t *tree.Tree, id tree.NodeID) {
	st := e.state(t)
	n, ok := t.Node(id)
	if !ok {
		return
	}
	e.ensureCoord(t, st, n)
	st.dirty = true
	e.reheat(st)
}

func (e *springColumn) NodesAdded(t *tree.Tree, _ []tree.NodeID) {
	st := e.state(t)
	st.dirty = true
	e.reheat(st)
}

// NodeRemoved purges the node's coord state. Removing the node being
// dragged cancels the drag.
func (e *springColumn) NodeRemoved(t *tree.Tree, id tree.NodeID) {
	st, ok := e.trees[t.ID()]
	if !ok {
		return
	}
	delete(st.coords, id)
	if st.drag != nil && st.drag.node == id {
		for _, p := range st.drag.pinned {
			if c := st.coords[p]; c != nil {
				c.pinned = false
			}
		}
		st.drag = nil
	}
	st.dirty = true
	e.reheat(st)
}

func (e *springColumn) NodesUpdated(t *tree.Tree) {
	st := e.state(t)
	st.dirty = true
	e.reheat(st)
}

func (e *springColumn) NodesRemovedChildren(t *tree.Tree, _ tree.NodeID) {
	st := e.state(t)
	st.dirty = true
	e.reheat(st)
}

// TreeUpdated resynchronizes the side table with the whole tree: nodes
// inserted without notification get coord state, stale entries are dropped.
func (e *springColumn) TreeUpdated(t *tree.Tree) {
	st := e.state(t)
	live := make(map[tree.NodeID]struct{}, t.Len())
	for _, id := range t.Nodes() {
		live[id] = struct{}{}
		if n, ok := t.Node(id); ok {
			e.ensureCoord(t, st, n)
		}
	}
	for id := range st.coords {
		if _, ok := live[id]; !ok {
			delete(st.coords, id)
		}
	}
	if st.drag != nil && st.coords[st.drag.node] == nil {
		st.drag = nil
	}
	st.dirty = true
	e.reheat(st)
}

// ensureCoord returns n's coord, creating it if needed. A new non-root node
// starts at its parent's position when the parent is already laid out.
func (e *springColumn) ensureCoord(t *tree.Tree, st *treeState, n *tree.Node) *coord {
	if c := st.coords[n.ID]; c != nil {
		return c
	}
	c := &coord{index: st.nextIndex}
	st.nextIndex++
	if n.IsRoot() {
		n.X, n.Y = st.anchor.X, st.anchor.Y
	} else if p, ok := t.Node(n.Parent); ok && st.coords[p.ID] != nil {
		n.X, n.Y = p.X, p.Y
	}
	c.targetX, c.targetY = n.X, n.Y
	st.coords[n.ID] = c
	return c
}
