package tree

import (
	"slices"

	"github.com/matzehuels/overview/pkg/metric"
)

// AddChild appends a new child to parent and reports it to the observer and
// listener. It does not refresh Nodes or Links; callers that add several
// nodes do that once at the end. Returns nil when parent does not exist.
func (t *Tree) AddChild(parent NodeID, name string) *Node {
	n := t.InsertChild(parent, name)
	if n == nil {
		return nil
	}
	t.observer.NodeAdded(t, n.ID)
	t.listener.NodeAdded(t, n.ID)
	return n
}

// InsertChild appends a new child to parent without notifying anyone. It is
// meant for loaders that rebuild a tree from a snapshot and then call
// Initialize.
func (t *Tree) InsertChild(parent NodeID, name string) *Node {
	p, ok := t.arena[parent]
	if !ok {
		return nil
	}
	n := t.alloc(name, parent, p.Depth+1)
	p.Children = append(p.Children, n.ID)
	return n
}

// AddByPath creates every missing node along path and returns the IDs it
// created, outermost first. When the last segment is created and coll is
// non-nil, the new node becomes a collection.
//
// Nothing is created when the path would descend into a collection.
func (t *Tree) AddByPath(path string, coll *Collection) []NodeID {
	segs := splitPath(path)
	if len(segs) == 0 {
		return nil
	}

	var created []NodeID
	cur := t.Root()
	for i, seg := range segs {
		if cur.IsCollection() {
			// Only pre-existing nodes can be collections here, so nothing
			// has been created yet.
			return nil
		}
		next := t.child(cur, seg)
		if next == nil {
			next = t.AddChild(cur.ID, seg)
			created = append(created, next.ID)
			if i == len(segs)-1 && coll != nil {
				c := *coll
				next.Collection = &c
			}
		}
		cur = next
	}

	if len(created) > 0 {
		t.rebuild()
		t.observer.NodesAdded(t, created)
		t.listener.NodesAdded(t, created)
	}
	return created
}

// RemoveByPath detaches the node at path together with its subtree. The root
// cannot be removed. Ancestors' recursive metrics are refreshed.
func (t *Tree) RemoveByPath(path string) bool {
	n, ok := t.GetByPath(path)
	if !ok || n.IsRoot() {
		return false
	}

	parent := t.arena[n.Parent]
	parent.Children = slices.DeleteFunc(parent.Children, func(c NodeID) bool { return c == n.ID })
	t.drop(n.ID)

	t.recompute(parent.ID)
	t.rebuild()
	t.observer.TreeUpdated(t)
	t.listener.NodesUpdated(t)
	t.listener.FeaturesUpdated(t)
	return true
}

// drop removes id and its descendants from the arena and purges observer
// state for each of them.
func (t *Tree) drop(id NodeID) {
	ids := append(t.Descendants(id), id)
	for _, d := range ids {
		delete(t.arena, d)
	}
	for _, d := range ids {
		t.observer.NodeRemoved(t, d)
	}
}

// Collapse replaces the subtree below path with a collection placeholder.
func (t *Tree) Collapse(path string, coll Collection) bool {
	n, ok := t.GetByPath(path)
	if !ok {
		return false
	}
	for _, c := range n.Children {
		t.drop(c)
	}
	n.Children = nil
	n.Collection = &coll

	t.recompute(n.ID)
	t.rebuild()
	t.observer.NodesRemovedChildren(t, n.ID)
	t.listener.NodesUpdated(t)
	t.listener.FeaturesUpdated(t)
	return true
}

// Rename gives the node at oldPath the last segment of newPath as its name.
// The node keeps its parent. Renaming onto an existing sibling's name is
// refused.
func (t *Tree) Rename(oldPath, newPath string) bool {
	n, ok := t.GetByPath(oldPath)
	if !ok {
		return false
	}
	segs := splitPath(newPath)
	if len(segs) == 0 {
		return false
	}
	name := segs[len(segs)-1]
	if name == n.Name {
		return true
	}
	if p, ok := t.arena[n.Parent]; ok {
		if other := t.child(p, name); other != nil {
			t.logger.Debug("rename refused, sibling exists", "from", oldPath, "to", newPath)
			return false
		}
	}

	n.Name = name
	t.observer.NodesUpdated(t)
	t.listener.NodesUpdated(t)
	return true
}

// SetMetrics installs own metrics at path and refreshes recursive metrics
// from that node up to the root.
func (t *Tree) SetMetrics(path string, metrics metric.Set) bool {
	if !t.setMetrics(path, metrics) {
		return false
	}
	t.listener.FeaturesUpdated(t)
	return true
}

// SetMetricsBatch applies every update and notifies once at the end. It
// returns the number of updates whose path resolved.
func (t *Tree) SetMetricsBatch(updates []MetricUpdate) int {
	applied := 0
	for _, u := range updates {
		if t.setMetrics(u.Path, u.Metrics) {
			applied++
		}
	}
	if applied > 0 {
		t.listener.FeaturesUpdated(t)
	}
	return applied
}

func (t *Tree) setMetrics(path string, metrics metric.Set) bool {
	n, ok := t.GetByPath(path)
	if !ok {
		return false
	}
	n.Own = metrics.Clone()
	t.recompute(n.ID)
	return true
}

// recompute rebuilds the recursive metrics of id and of every ancestor.
func (t *Tree) recompute(id NodeID) {
	for n, ok := t.arena[id]; ok; n, ok = t.arena[n.Parent] {
		children := make([]metric.Set, 0, len(n.Children))
		for _, c := range n.Children {
			if child, ok := t.arena[c]; ok {
				children = append(children, child.Recursive)
			}
		}
		n.Recursive = metric.Aggregate(t.registry, n.Own, children, func(k metric.Kind, err error) {
			t.logger.Error("metric aggregation skipped", "kind", k, "path", t.PathOf(n.ID), "err", err)
		})
	}
}

// Initialize re-derives depths, lists and the spatial index after a loader
// rebuilt the arena with InsertChild. Recursive metrics are kept as loaded.
func (t *Tree) Initialize() {
	var walk func(n *Node, depth int)
	walk = func(n *Node, depth int) {
		n.Depth = depth
		for _, c := range n.Children {
			if child, ok := t.arena[c]; ok {
				child.Parent = n.ID
				walk(child, depth+1)
			}
		}
	}
	walk(t.Root(), 0)

	t.rebuild()
	t.RebuildIndex()
	t.observer.TreeUpdated(t)
}
