package layout

import (
	"math"
	"time"

	"github.com/matzehuels/overview/pkg/observability"
	"github.com/matzehuels/overview/pkg/tree"
)

// maxStep caps the integration step, in frames, so a stalled frame loop does
// not make the simulation explode.
const maxStep = 2.0

// Tick advances every hot tree by one integration step scaled by delta.
// Cold trees only get their spatial index refreshed when the structure
// changed.
func (e *springColumn) Tick(trees []*tree.Tree, delta time.Duration) {
	dt := 1.0
	if delta > 0 {
		dt = min(float64(delta)/float64(e.cfg.Frame), maxStep)
	}

	for _, t := range trees {
		st, ok := e.trees[t.ID()]
		if !ok || st.heat <= 0 {
			if t.IndexStale() {
				t.RebuildIndex()
			}
			continue
		}

		if st.dirty {
			e.bounds(t, st)
			e.columns(st)
			st.dirty = false
		}
		e.targets(t, st)
		maxV := e.integrate(t, st, dt)

		if maxV < e.cfg.MinAlpha {
			st.heat--
			if st.heat == 0 {
				e.logger.Debug("layout settled", "tree", t.ID(), "nodes", t.Len())
				observability.Layout().OnCooled(t.ID().String())
			}
		} else {
			st.heat = min(st.heat+1, e.cfg.CoolDown)
		}
		t.RebuildIndex()
		observability.Layout().OnTick(t.ID().String(), t.Len(), st.heat, maxV)
	}
}

// =============================================================================
// Bounds and columns
// =============================================================================

// bounds computes every subtree's bound bottom-up and records the largest
// bound per depth. Nodes without coord state get one here.
func (e *springColumn) bounds(t *tree.Tree, st *treeState) {
	st.maxBound = st.maxBound[:0]

	var walk func(n *tree.Node) float64
	walk = func(n *tree.Node) float64 {
		c := e.ensureCoord(t, st, n)
		b := e.cfg.LeafBound
		if len(n.Children) > 0 {
			for _, id := range n.Children {
				if child, ok := t.Node(id); ok {
					walk(child)
				}
			}
			if e.extended {
				e.compactLeaves(t, st, n)
			}
			b = 0
			for _, id := range n.Children {
				if cc := st.coords[id]; cc != nil {
					b += cc.bound
				}
			}
		}
		c.bound = b

		for len(st.maxBound) <= n.Depth {
			st.maxBound = append(st.maxBound, 0)
		}
		st.maxBound[n.Depth] = max(st.maxBound[n.Depth], b)
		return b
	}
	walk(t.Root())
}

// compactLeaves shrinks childless siblings that sit next to another
// childless sibling, as long as their bound is still the default leaf bound.
func (e *springColumn) compactLeaves(t *tree.Tree, st *treeState, n *tree.Node) {
	kids := sortedChildren(st, n)
	leaf := func(i int) bool {
		if i < 0 || i >= len(kids) {
			return false
		}
		child, ok := t.Node(kids[i])
		return ok && len(child.Children) == 0
	}
	for i, id := range kids {
		c := st.coords[id]
		if !leaf(i) || c.bound != e.cfg.LeafBound {
			continue
		}
		if leaf(i-1) || leaf(i+1) {
			c.bound = e.cfg.LeafBound * e.cfg.CompactLeafFactor
		}
	}
}

// columns turns the per-depth maximum bounds into column x offsets. The gap
// after column d is wide enough that a fan of height maxBound[d] stays
// within MaxAngle of the horizontal.
func (e *springColumn) columns(st *treeState) {
	tan := math.Tan(e.cfg.MaxAngle * math.Pi / 180)
	st.columns = st.columns[:0]
	x := 0.0
	for d := range st.maxBound {
		st.columns = append(st.columns, x)
		x += max(st.maxBound[d]/(2*tan), e.cfg.MinColumnWidth)
	}
}

func (st *treeState) column(depth int) float64 {
	switch {
	case depth < len(st.columns):
		return st.columns[depth]
	case len(st.columns) == 0:
		return 0
	}
	return st.columns[len(st.columns)-1]
}

// =============================================================================
// Targets and integration
// =============================================================================

// targets centres each node's children on the parent's current y, giving
// each child a slot as tall as its bound.
func (e *springColumn) targets(t *tree.Tree, st *treeState) {
	root := t.Root()
	if rc := st.coords[root.ID]; rc != nil {
		rc.targetX, rc.targetY = st.anchor.X, st.anchor.Y
	}

	var walk func(n *tree.Node)
	walk = func(n *tree.Node) {
		kids := sortedChildren(st, n)
		total := 0.0
		for _, id := range kids {
			total += st.coords[id].bound
		}
		y := n.Y - total/2
		x := st.anchor.X + st.column(n.Depth+1)
		for _, id := range kids {
			c := st.coords[id]
			c.targetY = y + c.bound/2
			c.targetX = x
			if e.extended {
				c.targetX += c.offsetX
			}
			y += c.bound
			if child, ok := t.Node(id); ok {
				walk(child)
			}
		}
	}
	walk(root)
}

// integrate applies one spring-damper step and returns the largest speed.
func (e *springColumn) integrate(t *tree.Tree, st *treeState, dt float64) float64 {
	maxV := 0.0
	for _, id := range t.Nodes() {
		c := st.coords[id]
		n, ok := t.Node(id)
		if c == nil || !ok {
			continue
		}
		if c.pinned {
			c.vx, c.vy = 0, 0
			continue
		}

		ax := e.cfg.StiffnessX*(c.targetX-n.X) - e.cfg.DampingX*c.vx
		ay := e.cfg.StiffnessY*(c.targetY-n.Y) - e.cfg.DampingY*c.vy
		ax *= e.jitter()
		ay *= e.jitter()

		c.vx += ax * dt
		c.vy += ay * dt
		n.X += c.vx * dt
		n.Y += c.vy * dt

		maxV = max(maxV, math.Hypot(c.vx, c.vy))
	}
	return maxV
}

func (e *springColumn) jitter() float64 {
	return 1 + e.cfg.Jitter*(2*e.rng.Float64()-1)
}
