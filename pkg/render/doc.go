// Package render turns laid-out folder trees into images.
//
// The [nodelink] subpackage writes Graphviz DOT with every node pinned at
// the position the layout engine gave it, then renders SVG in-process.
// [ToPDF] and [ToPNG] convert that SVG with the external rsvg-convert tool
// (from librsvg):
//
//	dot := nodelink.ToDOT(t, nodelink.Options{})
//	svg, err := nodelink.RenderSVG(ctx, dot)
//	png, err := render.ToPNG(ctx, svg, 2.0)
//
// [nodelink]: github.com/matzehuels/overview/pkg/render/nodelink
package render
