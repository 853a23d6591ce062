package scan

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/overview/pkg/metric"
	"github.com/matzehuels/overview/pkg/tree"
)

func quiet() *log.Logger { return log.New(&bytes.Buffer{}) }

func writeFile(t *testing.T, path string, size int) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, bytes.Repeat([]byte("x"), size), 0o644); err != nil {
		t.Fatal(err)
	}
}

// fixture builds:
//
//	a.txt (5)
//	.git/config (ignored)
//	big/d0..d2/x.md (1 each)  -> collection with MaxChildren 2
//	src/main.go (10), src/util.go (3)
func fixture(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.txt"), 5)
	writeFile(t, filepath.Join(root, ".git", "config"), 100)
	for _, d := range []string{"d0", "d1", "d2"} {
		writeFile(t, filepath.Join(root, "big", d, "x.md"), 1)
	}
	writeFile(t, filepath.Join(root, "src", "main.go"), 10)
	writeFile(t, filepath.Join(root, "src", "util.go"), 3)
	return root
}

func newScanner() *Scanner {
	return New(Options{MaxChildren: 2, Ignore: []string{".git"}, Workers: 2, Logger: quiet()})
}

func TestScan(t *testing.T) {
	root := fixture(t)
	q := NewQueue()

	st, err := newScanner().Scan(context.Background(), root, q.Push)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if st.Dirs != 3 || st.Collections != 1 || st.Files != 6 || st.Bytes != 21 {
		t.Errorf("stats = %+v", st)
	}

	msgs := q.Pop(q.Len())
	var ops []string
	for _, m := range msgs {
		ops = append(ops, m.Op.String()+":"+m.Path)
	}
	want := []string{"metrics:", "collection:big", "metrics:big", "add:src", "metrics:src"}
	if len(ops) != len(want) {
		t.Fatalf("messages = %v, want %v", ops, want)
	}
	for i := range want {
		if ops[i] != want[i] {
			t.Errorf("message %d = %s, want %s", i, ops[i], want[i])
		}
	}
	if msgs[1].ChildCount != 3 || msgs[1].Depth != 1 {
		t.Errorf("collection = %+v", msgs[1])
	}
	if got := msgs[4].Metrics.Histogram(metric.KindFileTypes).Counts[".go"]; got != 2 {
		t.Errorf("src .go count = %d, want 2", got)
	}
}

func TestScanIntoTree(t *testing.T) {
	root := fixture(t)
	q := NewQueue()
	if _, err := newScanner().Scan(context.Background(), root, q.Push); err != nil {
		t.Fatal(err)
	}

	tr := tree.New(root, tree.Options{Logger: quiet()})
	for q.Len() > 0 {
		Apply(tr, q.Pop(2))
	}

	rec := tr.Root().Recursive
	if got := rec.Sum(metric.KindSize); got != 21 {
		t.Errorf("root size = %v, want 21", got)
	}
	if got := rec.Sum(metric.KindQuantity); got != 6 {
		t.Errorf("root quantity = %v, want 6", got)
	}
	big, ok := tr.GetByPath("big")
	if !ok || !big.IsCollection() || big.Collection.Size != 3 {
		t.Fatalf("big = %+v, %v", big, ok)
	}
	if _, ok := tr.GetByPath(".git"); ok {
		t.Error("ignored folder reached the tree")
	}
	if tr.Len() != 3 {
		t.Errorf("tree has %d nodes, want 3", tr.Len())
	}
}

func TestScanMissingRoot(t *testing.T) {
	_, err := newScanner().Scan(context.Background(), filepath.Join(t.TempDir(), "nope"), func(...Message) {})
	if err == nil {
		t.Error("scanning a missing root should fail")
	}
}

func TestScanCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newScanner().Scan(ctx, fixture(t), func(...Message) {})
	if err != context.Canceled {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestMeasure(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.TXT"), 4)
	writeFile(t, filepath.Join(dir, "b.txt"), 6)
	writeFile(t, filepath.Join(dir, "Makefile"), 1)
	writeFile(t, filepath.Join(dir, "sub", "ignored.txt"), 50)

	set, err := newScanner().Measure(dir)
	if err != nil {
		t.Fatal(err)
	}
	if got := set.Sum(metric.KindSize); got != 11 {
		t.Errorf("size = %v, want 11", got)
	}
	h := set.Histogram(metric.KindFileTypes)
	if h.Counts[".txt"] != 2 || h.Counts["(none)"] != 1 {
		t.Errorf("types = %v", h.Counts)
	}
	if m := set.Median(metric.KindLastModified); m.Count != 3 || m.Mean <= 0 {
		t.Errorf("last modified = %+v", m)
	}
}

func TestQueue(t *testing.T) {
	q := NewQueue()
	if got := q.Pop(3); got != nil {
		t.Errorf("Pop on empty queue = %v", got)
	}
	q.Push(Message{Path: "a"}, Message{Path: "b"})
	q.Push(Message{Path: "c"})

	first := q.Pop(2)
	if len(first) != 2 || first[0].Path != "a" || first[1].Path != "b" {
		t.Errorf("Pop(2) = %v", first)
	}
	if q.Len() != 1 {
		t.Errorf("Len = %d, want 1", q.Len())
	}
	if rest := q.Pop(10); len(rest) != 1 || rest[0].Path != "c" {
		t.Errorf("Pop(10) = %v", rest)
	}
}

func TestApply(t *testing.T) {
	lis := &countingListener{}
	tr := tree.New("/r", tree.Options{Listener: lis, Logger: quiet()})
	size := func(s float64) metric.Set { return metric.Set{metric.KindSize: &metric.Sum{S: s}} }

	res := Apply(tr, []Message{
		{Op: OpAdd, Path: "a/b"},
		{Op: OpMetrics, Path: "a/b", Metrics: size(4)},
		{Op: OpMetrics, Path: "a", Metrics: size(1)},
		{Op: OpCollection, Path: "vendor", ChildCount: 900, Depth: 3},
		{Op: OpAdd, Path: "vendor/x"},
		{Op: OpAdd, Path: "old"},
		{Op: OpRename, Path: "old", NewPath: "new"},
		{Op: OpRemove, Path: "ghost"},
	})

	if res.Created != 4 || res.Metrics != 2 || res.Renamed != 1 || res.Removed != 0 {
		t.Errorf("Apply = %+v", res)
	}
	if got := tr.Root().Recursive.Sum(metric.KindSize); got != 5 {
		t.Errorf("root size = %v, want 5", got)
	}
	if _, ok := tr.GetByPath("new"); !ok {
		t.Error("rename not applied")
	}
	if _, ok := tr.GetByPath("vendor/x"); ok {
		t.Error("insert under collection should be refused")
	}
	if lis.features != 1 {
		t.Errorf("FeaturesUpdated fired %d times, want 1", lis.features)
	}

	// A collection message for an existing folder collapses it.
	Apply(tr, []Message{{Op: OpCollection, Path: "a", ChildCount: 1, Depth: 1}})
	a, _ := tr.GetByPath("a")
	if !a.IsCollection() || len(a.Children) != 0 {
		t.Errorf("a = %+v", a)
	}
}

type countingListener struct {
	tree.NoopListener
	features int
}

func (l *countingListener) FeaturesUpdated(*tree.Tree) { l.features++ }
