package tree

import (
	"bytes"
	"slices"
	"strings"
	"testing"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/overview/pkg/metric"
)

type recorder struct {
	added, removed      []NodeID
	bulkAdded           [][]NodeID
	collapsed           []NodeID
	updated, treeUpdate int
}

func (r *recorder) NodeAdded(_ *Tree, id NodeID) { r.added = append(r.added, id) }
func (r *recorder) NodesAdded(_ *Tree, ids []NodeID) { r.bulkAdded = append(r.bulkAdded, ids) }
func (r *recorder) NodeRemoved(_ *Tree, id NodeID) { r.removed = append(r.removed, id) }
func (r *recorder) NodesUpdated(*Tree) { r.updated++ }
func (r *recorder) NodesRemovedChildren(_ *Tree, id NodeID) { r.collapsed = append(r.collapsed, id) }
func (r *recorder) TreeUpdated(*Tree) { r.treeUpdate++ }

type listenerRecorder struct {
	added, bulk, updated, features int
}

func (l *listenerRecorder) NodeAdded(*Tree, NodeID) { l.added++ }
func (l *listenerRecorder) NodesAdded(*Tree, []NodeID) { l.bulk++ }
func (l *listenerRecorder) NodesUpdated(*Tree) { l.updated++ }
func (l *listenerRecorder) FeaturesUpdated(*Tree) { l.features++ }

func size(s float64) metric.Set { return metric.Set{metric.KindSize: &metric.Sum{S: s}} }

func newTestTree(opts Options) *Tree {
	if opts.Logger == nil {
		opts.Logger = log.New(&bytes.Buffer{})
	}
	return New("/data/root", opts)
}

// checkSync verifies the flat lists match the live arena.
func checkSync(t *testing.T, tr *Tree) {
	t.Helper()
	if got, want := len(tr.Nodes()), tr.Len(); got != want {
		t.Fatalf("len(Nodes) = %d, arena has %d", got, want)
	}
	if got, want := len(tr.Links()), tr.Len()-1; got != want {
		t.Fatalf("len(Links) = %d, want %d", got, want)
	}
	seen := map[NodeID]bool{}
	for _, id := range tr.Nodes() {
		if seen[id] {
			t.Fatalf("node %d listed twice", id)
		}
		seen[id] = true
		n, ok := tr.Node(id)
		if !ok {
			t.Fatalf("listed node %d not in arena", id)
		}
		if n.IsRoot() {
			continue
		}
		p, ok := tr.Node(n.Parent)
		if !ok || !slices.Contains(p.Children, id) {
			t.Fatalf("node %q not among its parent's children", tr.PathOf(id))
		}
		if n.Depth != p.Depth+1 {
			t.Fatalf("node %q depth = %d, parent depth %d", tr.PathOf(id), n.Depth, p.Depth)
		}
	}
}

func TestNewTree(t *testing.T) {
	obs := &recorder{}
	tr := newTestTree(Options{Observer: obs})

	if tr.Root().Name != "root" {
		t.Errorf("root name = %q, want root", tr.Root().Name)
	}
	if len(obs.added) != 1 || obs.added[0] != tr.Root().ID {
		t.Errorf("observer saw %v, want root added", obs.added)
	}
	checkSync(t, tr)

	if n, ok := tr.GetByPath(""); !ok || n != tr.Root() {
		t.Error("GetByPath(\"\") should return root")
	}
	if n, ok := tr.GetByPath("/"); !ok || n != tr.Root() {
		t.Error("GetByPath(\"/\") should return root")
	}
	if _, ok := tr.GetByPath("missing"); ok {
		t.Error("GetByPath(missing) should fail")
	}
}

func TestAddByPath(t *testing.T) {
	obs := &recorder{}
	lis := &listenerRecorder{}
	tr := newTestTree(Options{Observer: obs, Listener: lis})

	created := tr.AddByPath("a/b/c", nil)
	if len(created) != 3 {
		t.Fatalf("created %d nodes, want 3", len(created))
	}
	checkSync(t, tr)

	c, ok := tr.GetByPath("a/b/c")
	if !ok || c.ID != created[2] || c.Depth != 3 {
		t.Fatalf("a/b/c = %+v, %v", c, ok)
	}
	if got := tr.PathOf(c.ID); got != "a/b/c" {
		t.Errorf("PathOf = %q, want a/b/c", got)
	}

	// Per-node and bulk notifications.
	if len(obs.added) != 4 {
		t.Errorf("observer NodeAdded calls = %d, want 4 (root + 3)", len(obs.added))
	}
	if len(obs.bulkAdded) != 1 || len(obs.bulkAdded[0]) != 3 {
		t.Errorf("observer NodesAdded = %v, want one batch of 3", obs.bulkAdded)
	}
	if lis.bulk != 1 || lis.added != 3 {
		t.Errorf("listener bulk=%d added=%d, want 1 and 3", lis.bulk, lis.added)
	}

	// Existing path creates nothing and does not notify.
	if again := tr.AddByPath("a/b", nil); len(again) != 0 {
		t.Errorf("re-adding existing path created %v", again)
	}
	if len(obs.bulkAdded) != 1 {
		t.Errorf("NodesAdded fired for empty creation")
	}

	// Partial overlap creates only the tail.
	if tail := tr.AddByPath("a/x/y", nil); len(tail) != 2 {
		t.Errorf("created %d, want 2", len(tail))
	}
	checkSync(t, tr)
}

func TestAddByPathCollection(t *testing.T) {
	tr := newTestTree(Options{})

	created := tr.AddByPath("big/node_modules", &Collection{Size: 900})
	if len(created) != 2 {
		t.Fatalf("created %d, want 2", len(created))
	}
	nm, _ := tr.GetByPath("big/node_modules")
	if !nm.IsCollection() || nm.Collection.Size != 900 {
		t.Fatalf("node_modules collection = %+v", nm.Collection)
	}
	big, _ := tr.GetByPath("big")
	if big.IsCollection() {
		t.Error("intermediate node should not be a collection")
	}

	before := tr.Len()
	refused := tr.AddByPath("big/node_modules/react/lib", nil)
	if len(refused) != 0 {
		t.Errorf("insert under collection created %v", refused)
	}
	if tr.Len() != before || len(nm.Children) != 0 {
		t.Error("insert under collection changed tree shape")
	}
	checkSync(t, tr)
}

func TestRemoveByPath(t *testing.T) {
	obs := &recorder{}
	tr := newTestTree(Options{Observer: obs})
	tr.AddByPath("a/b/c", nil)
	tr.AddByPath("a/d", nil)
	tr.SetMetrics("a/b/c", size(3))
	tr.SetMetrics("a/d", size(4))

	if !tr.RemoveByPath("a/b") {
		t.Fatal("RemoveByPath(a/b) = false")
	}
	checkSync(t, tr)
	if tr.Len() != 3 {
		t.Errorf("Len = %d, want 3", tr.Len())
	}
	if len(obs.removed) != 2 {
		t.Errorf("observer removed %v, want 2 nodes", obs.removed)
	}
	if _, ok := tr.GetByPath("a/b/c"); ok {
		t.Error("descendant still reachable")
	}
	if got := tr.Root().Recursive.Sum(metric.KindSize); got != 4 {
		t.Errorf("root size after remove = %v, want 4", got)
	}

	if tr.RemoveByPath("") {
		t.Error("root must not be removable")
	}
	if tr.RemoveByPath("nope") {
		t.Error("removing missing path should report false")
	}
	checkSync(t, tr)
}

func TestAggregation(t *testing.T) {
	tr := newTestTree(Options{})
	tr.AddByPath("A", nil)
	tr.AddByPath("B/C", nil)
	tr.SetMetrics("A", size(10))
	tr.SetMetrics("B", size(5))
	tr.SetMetrics("B/C", size(3))

	if got := tr.Root().Recursive.Sum(metric.KindSize); got != 18 {
		t.Errorf("root recursive = %v, want 18", got)
	}
	b, _ := tr.GetByPath("B")
	if got := b.Recursive.Sum(metric.KindSize); got != 8 {
		t.Errorf("B recursive = %v, want 8", got)
	}
	if got := b.Own.Sum(metric.KindSize); got != 5 {
		t.Errorf("B own = %v, want 5", got)
	}
}

func TestAggregationMatchesOwnSums(t *testing.T) {
	tr := newTestTree(Options{})
	paths := []string{"a", "a/b", "a/b/c", "a/d", "e", "e/f/g", "e/f/h"}
	for i, p := range paths {
		tr.AddByPath(p, nil)
		tr.SetMetrics(p, size(float64(i+1)))
	}
	tr.SetMetrics("", size(100))

	for _, id := range tr.Nodes() {
		want := 0.0
		for _, d := range append(tr.Descendants(id), id) {
			n, _ := tr.Node(d)
			want += n.Own.Sum(metric.KindSize)
		}
		n, _ := tr.Node(id)
		if got := n.Recursive.Sum(metric.KindSize); got != want {
			t.Errorf("%q recursive = %v, want %v", tr.PathOf(id), got, want)
		}
	}
}

func TestSetMetricsIdempotent(t *testing.T) {
	tr := newTestTree(Options{})
	tr.AddByPath("a/b", nil)
	m := metric.Set{
		metric.KindSize:         &metric.Sum{S: 7},
		metric.KindLastModified: &metric.Median{Mean: 100, Count: 3},
		metric.KindFileTypes:    &metric.Histogram{Counts: map[string]uint64{".go": 2}},
	}

	tr.SetMetrics("a/b", m)
	first := tr.Root().Recursive.Clone()
	tr.SetMetrics("a/b", m)
	second := tr.Root().Recursive

	if first.Sum(metric.KindSize) != second.Sum(metric.KindSize) {
		t.Errorf("size changed: %v -> %v", first.Sum(metric.KindSize), second.Sum(metric.KindSize))
	}
	if *first.Median(metric.KindLastModified) != *second.Median(metric.KindLastModified) {
		t.Errorf("median changed: %+v -> %+v", first.Median(metric.KindLastModified), second.Median(metric.KindLastModified))
	}
	if first.Histogram(metric.KindFileTypes).Counts[".go"] != second.Histogram(metric.KindFileTypes).Counts[".go"] {
		t.Error("histogram changed")
	}
}

func TestSetMetricsCopiesInput(t *testing.T) {
	tr := newTestTree(Options{})
	tr.AddByPath("a", nil)
	m := size(1)
	tr.SetMetrics("a", m)
	m[metric.KindSize].(*metric.Sum).S = 1000

	if got := tr.Root().Recursive.Sum(metric.KindSize); got != 1 {
		t.Errorf("caller mutation leaked into tree: %v", got)
	}
}

func TestSetMetricsMissingPath(t *testing.T) {
	lis := &listenerRecorder{}
	tr := newTestTree(Options{Listener: lis})
	if tr.SetMetrics("ghost", size(1)) {
		t.Error("SetMetrics on missing path should report false")
	}
	if lis.features != 0 {
		t.Error("missing path should not notify")
	}
}

func TestSetMetricsBatchNotifiesOnce(t *testing.T) {
	lis := &listenerRecorder{}
	tr := newTestTree(Options{Listener: lis})
	tr.AddByPath("a", nil)
	tr.AddByPath("b", nil)

	n := tr.SetMetricsBatch([]MetricUpdate{
		{Path: "a", Metrics: size(1)},
		{Path: "b", Metrics: size(2)},
		{Path: "gone", Metrics: size(3)},
	})
	if n != 2 {
		t.Errorf("applied = %d, want 2", n)
	}
	if lis.features != 1 {
		t.Errorf("FeaturesUpdated fired %d times, want 1", lis.features)
	}
	if got := tr.Root().Recursive.Sum(metric.KindSize); got != 3 {
		t.Errorf("root size = %v, want 3", got)
	}
}

func TestMissingFactoryIsLoggedAndSkipped(t *testing.T) {
	reg := metric.NewRegistry()
	reg.Register(metric.KindSize, func() metric.Value { return &metric.Sum{} }, metric.MergeSum)

	var buf bytes.Buffer
	tr := New("/r", Options{Registry: reg, Logger: log.New(&buf)})
	tr.AddByPath("a", nil)
	tr.SetMetrics("a", metric.Set{
		metric.KindSize:     &metric.Sum{S: 2},
		metric.KindQuantity: &metric.Sum{S: 9},
	})

	root := tr.Root()
	if got := root.Recursive.Sum(metric.KindSize); got != 2 {
		t.Errorf("size = %v, want 2", got)
	}
	if _, ok := root.Recursive[metric.KindQuantity]; ok {
		t.Error("quantity should be skipped at the root")
	}
	if !strings.Contains(buf.String(), "metric aggregation skipped") {
		t.Errorf("expected error log, got %q", buf.String())
	}
}

func TestRename(t *testing.T) {
	obs := &recorder{}
	lis := &listenerRecorder{}
	tr := newTestTree(Options{Observer: obs, Listener: lis})
	tr.AddByPath("src/old", nil)
	tr.AddByPath("src/taken", nil)
	old, _ := tr.GetByPath("src/old")

	if !tr.Rename("src/old", "src/new") {
		t.Fatal("Rename failed")
	}
	if n, ok := tr.GetByPath("src/new"); !ok || n.ID != old.ID {
		t.Error("renamed node not reachable under new name")
	}
	if obs.updated != 1 || lis.updated != 1 {
		t.Errorf("updates: observer=%d listener=%d, want 1 each", obs.updated, lis.updated)
	}

	if tr.Rename("src/new", "src/taken") {
		t.Error("rename onto existing sibling should be refused")
	}
	if tr.Rename("src/ghost", "src/x") {
		t.Error("rename of missing path should report false")
	}
	checkSync(t, tr)
}

func TestCollapse(t *testing.T) {
	obs := &recorder{}
	tr := newTestTree(Options{Observer: obs})
	tr.AddByPath("vendor/a/b", nil)
	tr.AddByPath("vendor/c", nil)
	tr.SetMetrics("vendor/a/b", size(50))

	if !tr.Collapse("vendor", Collection{Size: 2, Depth: 2}) {
		t.Fatal("Collapse failed")
	}
	checkSync(t, tr)

	v, _ := tr.GetByPath("vendor")
	if !v.IsCollection() || len(v.Children) != 0 {
		t.Errorf("vendor = %+v", v)
	}
	if len(obs.removed) != 3 {
		t.Errorf("removed %d nodes, want 3", len(obs.removed))
	}
	if len(obs.collapsed) != 1 || obs.collapsed[0] != v.ID {
		t.Errorf("NodesRemovedChildren = %v", obs.collapsed)
	}
	if got := tr.Root().Recursive.Sum(metric.KindSize); got != 0 {
		t.Errorf("root size = %v after collapsing the only sized node", got)
	}
	if created := tr.AddByPath("vendor/a", nil); len(created) != 0 {
		t.Error("collapsed node should refuse inserts")
	}
}

func TestInitializeAfterLoad(t *testing.T) {
	obs := &recorder{}
	tr := newTestTree(Options{Observer: obs})
	a := tr.InsertChild(tr.Root().ID, "a")
	b := tr.InsertChild(a.ID, "b")
	b.Recursive = size(5)

	if len(obs.added) != 1 {
		t.Fatalf("InsertChild should not notify, saw %v", obs.added)
	}
	tr.Initialize()
	checkSync(t, tr)
	if obs.treeUpdate != 1 {
		t.Errorf("TreeUpdated = %d, want 1", obs.treeUpdate)
	}
	if b.Depth != 2 {
		t.Errorf("b depth = %d, want 2", b.Depth)
	}
	if tr.IndexStale() {
		t.Error("Initialize should prime the spatial index")
	}
	if b.Recursive.Sum(metric.KindSize) != 5 {
		t.Error("Initialize should keep loaded recursive metrics")
	}
}

func TestNavigation(t *testing.T) {
	tr := newTestTree(Options{})
	tr.AddByPath("a/b/c", nil)
	tr.AddByPath("a/d", nil)
	c, _ := tr.GetByPath("a/b/c")
	a, _ := tr.GetByPath("a")

	anc := tr.Ancestors(c.ID)
	if len(anc) != 3 || anc[2] != tr.Root().ID {
		t.Errorf("Ancestors = %v", anc)
	}
	var names []string
	for _, id := range tr.Descendants(a.ID) {
		n, _ := tr.Node(id)
		names = append(names, n.Name)
	}
	if strings.Join(names, ",") != "b,c,d" {
		t.Errorf("Descendants = %v, want b,c,d", names)
	}
}

func TestHitTest(t *testing.T) {
	tr := newTestTree(Options{HitRadius: 10})
	tr.AddByPath("a", nil)
	a, _ := tr.GetByPath("a")
	a.X, a.Y = 100, 50

	if _, ok := tr.HitTest(100, 50, 1); ok {
		t.Error("hit test before any index build should miss")
	}
	tr.RebuildIndex()

	if id, ok := tr.HitTest(105, 52, 1); !ok || id != a.ID {
		t.Errorf("HitTest near a = %v, %v", id, ok)
	}
	// At zoom 4 the radius shrinks to 2.5.
	if _, ok := tr.HitTest(105, 52, 4); ok {
		t.Error("zoomed-in hit test should miss")
	}

	tr.RemoveByPath("a")
	if _, ok := tr.HitTest(100, 50, 1); ok {
		t.Error("removed node must not be hit before the next rebuild")
	}
}
