package layout

import (
	"io"
	"math"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/overview/pkg/errors"
	"github.com/matzehuels/overview/pkg/tree"
)

const frame = 16 * time.Millisecond

func newEngine(t *testing.T, s Strategy) *springColumn {
	t.Helper()
	eng, err := New(Config{Strategy: s, Logger: log.New(io.Discard)})
	if err != nil {
		t.Fatalf("New(%q): %v", s, err)
	}
	return eng.(*springColumn)
}

func newTree(e Engine, paths ...string) *tree.Tree {
	tr := tree.New("/r", tree.Options{Observer: e, Logger: log.New(io.Discard)})
	for _, p := range paths {
		tr.AddByPath(p, nil)
	}
	return tr
}

// settle ticks until the tree is cold and returns the number of ticks used.
func settle(e Engine, tr *tree.Tree, limit int) int {
	for i := 0; i < limit; i++ {
		if e.Heat(tr) == 0 {
			return i
		}
		e.Tick([]*tree.Tree{tr}, frame)
	}
	return limit
}

func node(t *testing.T, tr *tree.Tree, path string) *tree.Node {
	t.Helper()
	n, ok := tr.GetByPath(path)
	if !ok {
		t.Fatalf("path %q not found", path)
	}
	return n
}

func target(t *testing.T, e Engine, tr *tree.Tree, path string) Point {
	t.Helper()
	p, ok := e.Target(tr, node(t, tr, path).ID)
	if !ok {
		t.Fatalf("no target for %q", path)
	}
	return p
}

func TestNew(t *testing.T) {
	tests := []struct {
		strategy Strategy
		want     Strategy
		wantErr  bool
	}{
		{"", StrategySpringColumn, false},
		{StrategySpringColumn, StrategySpringColumn, false},
		{StrategySpringColumnExtended, StrategySpringColumnExtended, false},
		{"force-directed", "", true},
	}
	for _, tt := range tests {
		t.Run(string(tt.strategy), func(t *testing.T) {
			eng, err := New(Config{Strategy: tt.strategy})
			if tt.wantErr {
				if !errors.Is(err, errors.ErrCodeInvalidConfig) {
					t.Fatalf("err = %v, want INVALID_CONFIG", err)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if eng.Strategy() != tt.want {
				t.Errorf("Strategy() = %q, want %q", eng.Strategy(), tt.want)
			}
		})
	}
}

func TestDragPhaseString(t *testing.T) {
	for _, p := range []DragPhase{DragStart, DragMove, DragEnd} {
		got, ok := ParseDragPhase(p.String())
		if !ok || got != p {
			t.Errorf("ParseDragPhase(%q) = %v, %v", p.String(), got, ok)
		}
	}
	if _, ok := ParseDragPhase("hover"); ok {
		t.Error("ParseDragPhase(hover) should fail")
	}
}

func TestConvergence(t *testing.T) {
	for _, s := range Strategies() {
		t.Run(string(s), func(t *testing.T) {
			e := newEngine(t, s)
			tr := newTree(e, "a/b/c", "a/d", "e", "f/g/h/i", "f/j")
			if e.Heat(tr) != e.cfg.CoolDown {
				t.Fatalf("heat after adds = %d, want %d", e.Heat(tr), e.cfg.CoolDown)
			}

			start := map[tree.NodeID]float64{}
			e.Tick([]*tree.Tree{tr}, frame)
			for _, id := range tr.Nodes() {
				start[id] = distance(t, e, tr, id)
			}

			ticks := settle(e, tr, 3000)
			if e.Heat(tr) != 0 {
				t.Fatalf("tree still hot after %d ticks", ticks)
			}
			for _, id := range tr.Nodes() {
				d := distance(t, e, tr, id)
				if d > 1 {
					t.Errorf("%q is %.3f from its target", tr.PathOf(id), d)
				}
				if d > start[id]+1e-9 && start[id] > 1 {
					t.Errorf("%q moved away from its target: %.3f -> %.3f", tr.PathOf(id), start[id], d)
				}
			}

			// Cold ticks are no-ops.
			before := positions(tr)
			for i := 0; i < 50; i++ {
				e.Tick([]*tree.Tree{tr}, frame)
			}
			for id, p := range positions(tr) {
				if p != before[id] {
					t.Errorf("%q moved while cold", tr.PathOf(id))
				}
			}
			if e.Heat(tr) != 0 {
				t.Error("cold tree warmed up without a change")
			}
		})
	}
}

func distance(t *testing.T, e Engine, tr *tree.Tree, id tree.NodeID) float64 {
	t.Helper()
	p, ok := e.Position(tr, id)
	if !ok {
		t.Fatalf("no position for %q", tr.PathOf(id))
	}
	g, _ := e.Target(tr, id)
	return math.Hypot(g.X-p.X, g.Y-p.Y)
}

func positions(tr *tree.Tree) map[tree.NodeID]Point {
	out := map[tree.NodeID]Point{}
	for _, id := range tr.Nodes() {
		n, _ := tr.Node(id)
		out[id] = Point{n.X, n.Y}
	}
	return out
}

func TestStructuralChangeReheats(t *testing.T) {
	e := newEngine(t, StrategySpringColumn)
	tr := newTree(e, "a", "b")
	settle(e, tr, 3000)
	if e.Heat(tr) != 0 {
		t.Fatal("tree did not settle")
	}

	tr.AddByPath("c", nil)
	if e.Heat(tr) != e.cfg.CoolDown {
		t.Errorf("heat after add = %d, want %d", e.Heat(tr), e.cfg.CoolDown)
	}
	settle(e, tr, 3000)

	tr.RemoveByPath("a")
	if e.Heat(tr) != e.cfg.CoolDown {
		t.Errorf("heat after remove = %d, want %d", e.Heat(tr), e.cfg.CoolDown)
	}
}

func TestSiblingSlots(t *testing.T) {
	tests := []struct {
		strategy Strategy
		slot     float64
	}{
		{StrategySpringColumn, 24},
		{StrategySpringColumnExtended, 24 * 0.6},
	}
	for _, tt := range tests {
		t.Run(string(tt.strategy), func(t *testing.T) {
			e := newEngine(t, tt.strategy)
			tr := newTree(e, "a", "b", "c")
			e.Tick([]*tree.Tree{tr}, frame)

			// The root never leaves the anchor, so targets are exact.
			for i, p := range []string{"a", "b", "c"} {
				want := float64(i-1) * tt.slot
				if got := target(t, e, tr, p).Y; math.Abs(got-want) > 1e-9 {
					t.Errorf("%s target y = %v, want %v", p, got, want)
				}
			}
		})
	}
}

func TestCompactLeavesKeepsLoneLeaf(t *testing.T) {
	e := newEngine(t, StrategySpringColumnExtended)
	tr := newTree(e, "a/x", "b", "c/y")
	e.Tick([]*tree.Tree{tr}, frame)

	b := e.trees[tr.ID()].coords[node(t, tr, "b").ID]
	if b.bound != e.cfg.LeafBound {
		t.Errorf("lone leaf bound = %v, want %v", b.bound, e.cfg.LeafBound)
	}
}

func TestColumns(t *testing.T) {
	e := newEngine(t, StrategySpringColumn)
	paths := []string{"deep/x"}
	for _, name := range []string{"a", "b", "c", "d", "e", "f", "g", "h", "i", "j", "k", "l"} {
		paths = append(paths, name)
	}
	tr := newTree(e, paths...)
	e.Tick([]*tree.Tree{tr}, frame)

	tan := math.Tan(60 * math.Pi / 180)
	rootBound := 13 * 24.0
	col1 := max(rootBound/(2*tan), 80)
	if got := target(t, e, tr, "a").X; math.Abs(got-col1) > 1e-9 {
		t.Errorf("depth 1 column = %v, want %v", got, col1)
	}
	// Depth 1 holds only single-slot subtrees, so the minimum width applies.
	if got := target(t, e, tr, "deep/x").X; math.Abs(got-(col1+80)) > 1e-9 {
		t.Errorf("depth 2 column = %v, want %v", got, col1+80)
	}
}

func TestRemovePurgesState(t *testing.T) {
	e := newEngine(t, StrategySpringColumn)
	tr := newTree(e, "a/b", "c")
	a := node(t, tr, "a")
	b := node(t, tr, "a/b")

	tr.RemoveByPath("a")
	st := e.trees[tr.ID()]
	if st.coords[a.ID] != nil || st.coords[b.ID] != nil {
		t.Error("coord state leaked after removal")
	}
	if len(st.coords) != tr.Len() {
		t.Errorf("coords = %d, live nodes = %d", len(st.coords), tr.Len())
	}
	if _, ok := e.Position(tr, a.ID); ok {
		t.Error("Position of removed node should fail")
	}

	e.Forget(tr)
	if e.Heat(tr) != 0 {
		t.Error("forgotten tree should report zero heat")
	}
}

func TestTreeUpdatedAfterLoad(t *testing.T) {
	e := newEngine(t, StrategySpringColumn)
	tr := tree.New("/r", tree.Options{Observer: e, Logger: log.New(io.Discard)})
	a := tr.InsertChild(tr.Root().ID, "a")
	b := tr.InsertChild(a.ID, "b")

	if _, ok := e.Position(tr, b.ID); ok {
		t.Fatal("engine should not know silently inserted nodes")
	}
	tr.Initialize()
	if _, ok := e.Position(tr, b.ID); !ok {
		t.Error("TreeUpdated should create coord state")
	}
	settle(e, tr, 3000)
	if e.Heat(tr) != 0 {
		t.Error("loaded tree did not settle")
	}
}

func TestTickRebuildsIndex(t *testing.T) {
	e := newEngine(t, StrategySpringColumn)
	tr := newTree(e, "a", "b")
	settle(e, tr, 3000)

	b := node(t, tr, "b")
	if id, ok := tr.HitTest(b.X, b.Y, 1); !ok || id != b.ID {
		t.Errorf("HitTest at b = %v, %v", id, ok)
	}

	// A cold tree still refreshes a stale index.
	tr.RemoveByPath("b")
	e.trees[tr.ID()].heat = 0
	e.Tick([]*tree.Tree{tr}, frame)
	if tr.IndexStale() {
		t.Error("index should be rebuilt for a cold tree after a change")
	}
}

func TestTickIgnoresUnknownTree(t *testing.T) {
	e := newEngine(t, StrategySpringColumn)
	other := tree.New("/other", tree.Options{Logger: log.New(io.Discard)})
	other.AddByPath("x", nil)
	e.Tick([]*tree.Tree{other}, frame)
	if _, ok := e.Position(other, other.Root().ID); ok {
		t.Error("engine should hold no state for an unobserved tree")
	}
}

func TestDragUnknownNodeIgnored(t *testing.T) {
	e := newEngine(t, StrategySpringColumn)
	tr := newTree(e, "a")
	settle(e, tr, 3000)
	e.NodeDragged(tr, 9999, DragStart, Point{}, 1)
	if e.Heat(tr) != 0 || e.trees[tr.ID()].drag != nil {
		t.Error("drag of unknown node should be ignored")
	}
}
