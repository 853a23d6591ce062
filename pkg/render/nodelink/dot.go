package nodelink

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/goccy/go-graphviz"

	"github.com/matzehuels/overview/pkg/metric"
	"github.com/matzehuels/overview/pkg/tree"
)

// Options configures diagram generation.
type Options struct {
	// Detailed adds file count and dominant file type to labels.
	Detailed bool
	// Now is the reference time for age shading. Zero means time.Now().
	Now time.Time
	// MinRadius and MaxRadius bound node radii in points.
	MinRadius, MaxRadius float64
}

func (o Options) withDefaults() Options {
	if o.Now.IsZero() {
		o.Now = time.Now()
	}
	if o.MinRadius <= 0 {
		o.MinRadius = 6
	}
	if o.MaxRadius <= o.MinRadius {
		o.MaxRadius = o.MinRadius * 5
	}
	return o
}

// ageShades maps maximum age to fill colour, newest first.
var ageShades = []struct {
	maxAge time.Duration
	color  string
}{
	{7 * 24 * time.Hour, "#08589e"},
	{30 * 24 * time.Hour, "#4eb3d3"},
	{365 * 24 * time.Hour, "#a8ddb5"},
}

const oldShade = "#e0f3db"

// ToDOT converts t to Graphviz DOT, positioning each node where the layout
// engine currently has it.
func ToDOT(t *tree.Tree, opts Options) string {
	opts = opts.withDefaults()
	maxSize := t.Root().Recursive.Sum(metric.KindSize)

	var buf bytes.Buffer
	buf.WriteString("graph G {\n")
	buf.WriteString("  bgcolor=\"transparent\";\n")
	buf.WriteString("  splines=false;\n")
	buf.WriteString("  node [shape=circle, style=filled, fixedsize=true, fontsize=10, labelloc=b];\n")
	buf.WriteString("  edge [color=\"#999999\"];\n")
	buf.WriteString("\n")

	for _, id := range t.Nodes() {
		n, _ := t.Node(id)
		fmt.Fprintf(&buf, "  n%d [%s];\n", id, strings.Join(fmtAttrs(n, maxSize, opts), ", "))
	}

	buf.WriteString("\n")
	for _, l := range t.Links() {
		fmt.Fprintf(&buf, "  n%d -- n%d;\n", l.Parent, l.Child)
	}

	buf.WriteString("}\n")
	return buf.String()
}

func fmtAttrs(n *tree.Node, maxSize float64, opts Options) []string {
	r := radius(n.Recursive.Sum(metric.KindSize), maxSize, opts)
	attrs := []string{
		fmt.Sprintf("label=%q", fmtLabel(n, opts.Detailed)),
		fmt.Sprintf("pos=\"%.2f,%.2f!\"", n.X, -n.Y),
		fmt.Sprintf("width=%.3f", 2*r/72),
		fmt.Sprintf("fillcolor=%q", shade(n.Recursive.Median(metric.KindLastModified), opts.Now)),
	}
	if n.IsCollection() {
		attrs = append(attrs, "style=\"filled,dashed\"")
	}
	return attrs
}

func fmtLabel(n *tree.Node, detailed bool) string {
	size := uint64(max(n.Recursive.Sum(metric.KindSize), 0))
	label := n.Name + "\n" + humanize.Bytes(size)
	if n.IsCollection() {
		label += fmt.Sprintf("\n(%d folders)", n.Collection.Size)
	}
	if !detailed {
		return label
	}
	files := uint64(max(n.Recursive.Sum(metric.KindQuantity), 0))
	label += "\n" + humanize.Comma(int64(files)) + " files"
	if ext, share := dominant(n.Recursive.Histogram(metric.KindFileTypes)); ext != "" {
		label += fmt.Sprintf("\nmostly %s (%.0f%%)", ext, share*100)
	}
	return label
}

// radius scales with the square root of size so area tracks bytes.
func radius(size, maxSize float64, opts Options) float64 {
	if maxSize <= 0 || size <= 0 {
		return opts.MinRadius
	}
	f := math.Sqrt(min(size/maxSize, 1))
	return opts.MinRadius + f*(opts.MaxRadius-opts.MinRadius)
}

func shade(m *metric.Median, now time.Time) string {
	if m == nil || m.Count == 0 {
		return oldShade
	}
	age := now.Sub(time.Unix(int64(m.Mean), 0))
	for _, s := range ageShades {
		if age <= s.maxAge {
			return s.color
		}
	}
	return oldShade
}

// dominant returns the most frequent extension and its share of all files.
func dominant(h *metric.Histogram) (string, float64) {
	if h == nil || h.Total() == 0 {
		return "", 0
	}
	var best string
	var count uint64
	for ext, c := range h.Counts {
		if c > count || (c == count && ext < best) {
			best, count = ext, c
		}
	}
	return best, float64(count) / float64(h.Total())
}

// RenderSVG lays out dot with neato, honouring pinned positions, and
// returns SVG bytes ready for display or conversion.
func RenderSVG(ctx context.Context, dot string) ([]byte, error) {
	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("init graphviz: %w", err)
	}
	defer gv.Close()
	gv.SetLayout(graphviz.NEATO)

	g, err := graphviz.ParseBytes([]byte(dot))
	if err != nil {
		return nil, fmt.Errorf("parse DOT: %w", err)
	}
	defer g.Close()

	var buf bytes.Buffer
	if err := gv.Render(ctx, g, graphviz.SVG, &buf); err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	return normalizeViewBox(buf.Bytes()), nil
}

var (
	svgTagRe  = regexp.MustCompile(`<svg[^>]*>`)
	viewBoxRe = regexp.MustCompile(`viewBox="([0-9.-]+)\s+([0-9.-]+)\s+([0-9.]+)\s+([0-9.]+)"`)
)

func normalizeViewBox(svg []byte) []byte {
	match := viewBoxRe.FindSubmatch(svg)
	if match == nil {
		return svg
	}

	w, _ := strconv.ParseFloat(string(match[3]), 64)
	h, _ := strconv.ParseFloat(string(match[4]), 64)
	if w == 0 || h == 0 {
		return svg
	}

	tag := fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 %.2f %.2f" width="%.0f" height="%.0f">`,
		w, h, w, h)
	return svgTagRe.ReplaceAll(svg, []byte(tag))
}
