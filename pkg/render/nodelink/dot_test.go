package nodelink

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/overview/pkg/metric"
	"github.com/matzehuels/overview/pkg/tree"
)

var now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func set(size float64, mtime time.Time) metric.Set {
	return metric.Set{
		metric.KindSize:         &metric.Sum{S: size},
		metric.KindQuantity:     &metric.Sum{S: 2},
		metric.KindLastModified: &metric.Median{Mean: float64(mtime.Unix()), Count: 2},
		metric.KindFileTypes:    &metric.Histogram{Counts: map[string]uint64{".go": 2}},
	}
}

func sample(t *testing.T) *tree.Tree {
	t.Helper()
	tr := tree.New("/work/proj", tree.Options{Logger: log.New(&bytes.Buffer{})})
	tr.AddByPath("src", nil)
	tr.AddByPath("vendor", &tree.Collection{Size: 300})
	tr.SetMetrics("src", set(10000, now.Add(-time.Hour)))
	tr.SetMetrics("vendor", set(5000, now.Add(-400*24*time.Hour)))

	src, _ := tr.GetByPath("src")
	src.X, src.Y = 80, 12.5
	return tr
}

func TestToDOT(t *testing.T) {
	tr := sample(t)
	dot := ToDOT(tr, Options{Now: now})

	src, _ := tr.GetByPath("src")
	vendor, _ := tr.GetByPath("vendor")

	for _, want := range []string{
		"graph G {",
		`pos="80.00,-12.50!"`,
		`src\n10 kB`,
		`vendor\n5.0 kB\n(300 folders)`,
		`style="filled,dashed"`,
		`fillcolor="#08589e"`,
		`fillcolor="#e0f3db"`,
	} {
		if !strings.Contains(dot, want) {
			t.Errorf("DOT missing %q:\n%s", want, dot)
		}
	}
	for _, id := range []tree.NodeID{src.ID, vendor.ID} {
		edge := fmt.Sprintf("n%d -- n%d;", tr.Root().ID, id)
		if !strings.Contains(dot, edge) {
			t.Errorf("DOT missing edge %q", edge)
		}
	}
	if strings.Count(dot, "[label=") != tr.Len() {
		t.Errorf("want %d node statements:\n%s", tr.Len(), dot)
	}
}

func TestToDOTDetailed(t *testing.T) {
	dot := ToDOT(sample(t), Options{Now: now, Detailed: true})
	for _, want := range []string{`4 files`, `mostly .go`} {
		if !strings.Contains(dot, want) {
			t.Errorf("detailed DOT missing %q", want)
		}
	}
}

func TestRadius(t *testing.T) {
	opts := Options{}.withDefaults()
	tests := []struct {
		name      string
		size, max float64
		want      float64
	}{
		{"empty tree", 0, 0, opts.MinRadius},
		{"empty node", 0, 100, opts.MinRadius},
		{"largest", 100, 100, opts.MaxRadius},
		{"quarter area", 25, 100, opts.MinRadius + 0.5*(opts.MaxRadius-opts.MinRadius)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := radius(tt.size, tt.max, opts); got != tt.want {
				t.Errorf("radius = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestShade(t *testing.T) {
	tests := []struct {
		age  time.Duration
		want string
	}{
		{time.Hour, "#08589e"},
		{10 * 24 * time.Hour, "#4eb3d3"},
		{100 * 24 * time.Hour, "#a8ddb5"},
		{2 * 365 * 24 * time.Hour, oldShade},
	}
	for _, tt := range tests {
		m := &metric.Median{Mean: float64(now.Add(-tt.age).Unix()), Count: 1}
		if got := shade(m, now); got != tt.want {
			t.Errorf("shade(%v) = %s, want %s", tt.age, got, tt.want)
		}
	}
	if got := shade(&metric.Median{}, now); got != oldShade {
		t.Errorf("shade(empty) = %s, want %s", got, oldShade)
	}
}

func TestRenderSVG(t *testing.T) {
	svg, err := RenderSVG(context.Background(), ToDOT(sample(t), Options{Now: now}))
	if err != nil {
		t.Fatalf("RenderSVG: %v", err)
	}
	if !bytes.Contains(svg, []byte("<svg")) || !bytes.Contains(svg, []byte("src")) {
		t.Errorf("unexpected SVG output: %.200s", svg)
	}
}
