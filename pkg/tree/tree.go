package tree

import (
	"path/filepath"
	"slices"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/matzehuels/overview/pkg/metric"
	"github.com/matzehuels/overview/pkg/spatial"
)

// DefaultHitRadius is the hit-test radius at zoom 1 when Options leaves it unset.
const DefaultHitRadius = 12.0

// Options configures a Tree. Every field is optional.
type Options struct {
	// Observer receives structural changes (usually a layout engine).
	Observer Observer
	// Listener receives presentation changes (usually a renderer).
	Listener Listener
	// Registry creates and merges metric values. Defaults to metric.DefaultRegistry().
	Registry *metric.Registry
	// Logger reports aggregation configuration errors. Defaults to log.Default().
	Logger *log.Logger
	// HitRadius is the hit-test search radius at zoom 1.
	HitRadius float64
}

// Tree is one visualized root folder and all of its descendants.
//
// The zero value is not usable; create trees with New.
type Tree struct {
	id   uuid.UUID
	path string
	root NodeID
	next NodeID

	arena map[NodeID]*Node
	nodes []NodeID
	links []Link

	index      *spatial.Index
	indexIDs   []NodeID
	indexStale bool

	observer  Observer
	listener  Listener
	registry  *metric.Registry
	logger    *log.Logger
	hitRadius float64
}

// New creates a tree holding only a root node named after the last element
// of path. The root is reported to the observer.
func New(path string, opts Options) *Tree {
	t := &Tree{
		id:        uuid.New(),
		path:      path,
		arena:     make(map[NodeID]*Node),
		observer:  opts.Observer,
		listener:  opts.Listener,
		registry:  opts.Registry,
		logger:    opts.Logger,
		hitRadius: opts.HitRadius,
	}
	if t.observer == nil {
		t.observer = NoopObserver{}
	}
	if t.listener == nil {
		t.listener = NoopListener{}
	}
	if t.registry == nil {
		t.registry = metric.DefaultRegistry()
	}
	if t.logger == nil {
		t.logger = log.Default()
	}
	if t.hitRadius <= 0 {
		t.hitRadius = DefaultHitRadius
	}

	root := t.alloc(rootName(path), NoNode, 0)
	t.root = root.ID
	t.rebuild()
	t.observer.NodeAdded(t, root.ID)
	return t
}

func rootName(path string) string {
	name := filepath.Base(path)
	if name == "/" || name == "." || name == "" {
		return path
	}
	return name
}

// ID returns the tree's identity.
func (t *Tree) ID() uuid.UUID { return t.id }

// Path returns the absolute path node paths are relative to.
func (t *Tree) Path() string { return t.path }

// Registry returns the metric registry used for aggregation.
func (t *Tree) Registry() *metric.Registry { return t.registry }

// Root returns the root node.
func (t *Tree) Root() *Node { return t.arena[t.root] }

// Node returns the node with the given ID.
func (t *Tree) Node(id NodeID) (*Node, bool) {
	n, ok := t.arena[id]
	return n, ok
}

// Len returns the number of live nodes.
func (t *Tree) Len() int { return len(t.arena) }

// Nodes returns every node ID in pre-order. The slice is owned by the tree
// and replaced on the next structural change; treat it as read-only.
func (t *Tree) Nodes() []NodeID { return t.nodes }

// Links returns every parent→child pair in pre-order of the child. The slice
// is owned by the tree; treat it as read-only.
func (t *Tree) Links() []Link { return t.links }

// GetByPath resolves a "/"-delimited path relative to the root. Empty and
// "." segments are ignored, so "" resolves to the root.
func (t *Tree) GetByPath(path string) (*Node, bool) {
	cur := t.Root()
	for _, seg := range splitPath(path) {
		cur = t.child(cur, seg)
		if cur == nil {
			return nil, false
		}
	}
	return cur, true
}

// PathOf returns the path of a node relative to the root, or "" for the root
// and for unknown IDs.
func (t *Tree) PathOf(id NodeID) string {
	var segs []string
	for n, ok := t.arena[id]; ok && !n.IsRoot(); n, ok = t.arena[n.Parent] {
		segs = append(segs, n.Name)
	}
	slices.Reverse(segs)
	return strings.Join(segs, "/")
}

// Ancestors returns the IDs above a node, nearest first.
func (t *Tree) Ancestors(id NodeID) []NodeID {
	var out []NodeID
	n, ok := t.arena[id]
	for ok && !n.IsRoot() {
		out = append(out, n.Parent)
		n, ok = t.arena[n.Parent]
	}
	return out
}

// Descendants returns the IDs below a node in pre-order, excluding the node.
func (t *Tree) Descendants(id NodeID) []NodeID {
	n, ok := t.arena[id]
	if !ok {
		return nil
	}
	var out []NodeID
	var walk func(*Node)
	walk = func(n *Node) {
		for _, c := range n.Children {
			if child, ok := t.arena[c]; ok {
				out = append(out, c)
				walk(child)
			}
		}
	}
	walk(n)
	return out
}

// child returns the first child of n named name.
func (t *Tree) child(n *Node, name string) *Node {
	for _, c := range n.Children {
		if child := t.arena[c]; child != nil && child.Name == name {
			return child
		}
	}
	return nil
}

func (t *Tree) alloc(name string, parent NodeID, depth int) *Node {
	t.next++
	n := &Node{
		ID:        t.next,
		Name:      name,
		Depth:     depth,
		Own:       metric.Set{},
		Recursive: metric.Set{},
		Parent:    parent,
	}
	t.arena[n.ID] = n
	return n
}

// rebuild derives the pre-order node and link lists from the arena.
func (t *Tree) rebuild() {
	nodes := make([]NodeID, 0, len(t.arena))
	links := make([]Link, 0, max(len(t.arena)-1, 0))

	var walk func(*Node)
	walk = func(n *Node) {
		nodes = append(nodes, n.ID)
		for _, c := range n.Children {
			if child, ok := t.arena[c]; ok {
				links = append(links, Link{Parent: n.ID, Child: c})
				walk(child)
			}
		}
	}
	walk(t.Root())

	t.nodes, t.links = nodes, links
	t.indexStale = true
}

// RebuildIndex re-indexes the current node positions. The layout engine
// calls it once per tick; the index is never updated incrementally.
func (t *Tree) RebuildIndex() {
	pts := make([]spatial.Point, len(t.nodes))
	ids := make([]NodeID, len(t.nodes))
	for i, id := range t.nodes {
		n := t.arena[id]
		pts[i] = spatial.Point{X: n.X, Y: n.Y}
		ids[i] = id
	}
	t.index = spatial.Build(pts)
	t.indexIDs = ids
	t.indexStale = false
}

// IndexStale reports whether the structure changed since the last RebuildIndex.
func (t *Tree) IndexStale() bool { return t.indexStale || t.index == nil }

// HitTest returns the node nearest to (x, y) within the hit radius scaled by
// 1/zoom, as of the last RebuildIndex. Nodes removed since then never match.
func (t *Tree) HitTest(x, y, zoom float64) (NodeID, bool) {
	if t.index == nil {
		return NoNode, false
	}
	if zoom <= 0 {
		zoom = 1
	}
	i, ok := t.index.Nearest(x, y, t.hitRadius/zoom)
	if !ok {
		return NoNode, false
	}
	id := t.indexIDs[i]
	if _, live := t.arena[id]; !live {
		return NoNode, false
	}
	return id, true
}

func splitPath(path string) []string {
	parts := strings.Split(path, "/")
	out := parts[:0]
	for _, p := range parts {
		if p != "" && p != "." {
			out = append(out, p)
		}
	}
	return out
}
