package layout

import (
	"github.com/matzehuels/overview/pkg/observability"
	"github.com/matzehuels/overview/pkg/tree"
)

// NodeDragged implements the drag protocol.
//
// Start pins the node and its subtree at their current positions. Move
// places the pinned nodes at their start position plus the pointer offset
// divided by zoom (vertical only for the base strategy) and reorders the
// siblings by their current y. End releases the pins and commits the new
// sibling order. Every phase reheats the tree.
//
// Only pinned nodes are moved directly; everything else follows through the
// next target pass.
func (e *springColumn) NodeDragged(t *tree.Tree, id tree.NodeID, phase DragPhase, offset Point, zoom float64) {
	st, ok := e.trees[t.ID()]
	if !ok {
		return
	}
	if _, ok := t.Node(id); !ok || st.coords[id] == nil {
		return
	}
	if zoom <= 0 {
		zoom = 1
	}

	switch phase {
	case DragStart:
		e.startDrag(t, st, id)
	case DragMove:
		if st.drag == nil || st.drag.node != id {
			e.startDrag(t, st, id)
		}
		e.moveDrag(t, st, Point{X: offset.X / zoom, Y: offset.Y / zoom})
	case DragEnd:
		if st.drag == nil || st.drag.node != id {
			return
		}
		e.endDrag(t, st)
	default:
		return
	}
	e.reheat(st)
	observability.Layout().OnDrag(t.ID().String(), phase.String())
}

func (e *springColumn) startDrag(t *tree.Tree, st *treeState, id tree.NodeID) {
	if st.drag != nil {
		e.endDrag(t, st)
	}
	ids := append([]tree.NodeID{id}, t.Descendants(id)...)
	pinned := ids[:0]
	for _, p := range ids {
		c := st.coords[p]
		n, ok := t.Node(p)
		if c == nil || !ok {
			continue
		}
		c.pinned = true
		c.vx, c.vy = 0, 0
		c.startX, c.startY = n.X, n.Y
		pinned = append(pinned, p)
	}
	st.drag = &dragState{node: id, pinned: pinned}
}

func (e *springColumn) moveDrag(t *tree.Tree, st *treeState, d Point) {
	for _, p := range st.drag.pinned {
		c := st.coords[p]
		n, ok := t.Node(p)
		if c == nil || !ok {
			continue
		}
		n.Y = c.startY + d.Y
		if e.extended {
			n.X = c.startX + d.X
		}
	}

	// Siblings are ordered by where they are now, so the dragged node
	// slots in between the neighbours it was moved past.
	n, _ := t.Node(st.drag.node)
	if parent, ok := t.Node(n.Parent); ok {
		for _, s := range parent.Children {
			if c := st.coords[s]; c != nil {
				if sn, ok := t.Node(s); ok {
					c.index = sn.Y
				}
			}
		}
	}
}

func (e *springColumn) endDrag(t *tree.Tree, st *treeState) {
	drag := st.drag
	st.drag = nil

	var dx float64
	if n, ok := t.Node(drag.node); ok {
		if c := st.coords[drag.node]; c != nil {
			dx = n.X - c.startX
		}
		if n.IsRoot() {
			st.anchor.Y = n.Y
			if e.extended {
				st.anchor.X = n.X
			}
		} else if parent, ok := t.Node(n.Parent); ok {
			for rank, s := range sortedChildren(st, parent) {
				st.coords[s].index = float64(rank)
			}
		}
	}

	for _, p := range drag.pinned {
		c := st.coords[p]
		if c == nil {
			continue
		}
		c.pinned = false
		if e.extended && p != t.Root().ID && drag.node != t.Root().ID {
			c.offsetX += dx
		}
	}
}
