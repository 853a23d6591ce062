// Package nodelink renders a folder tree as a node-link diagram.
//
// [ToDOT] emits one circle per node at its simulated position (pinned with
// pos="x,y!"), sized by recursive size and shaded by how recently the files
// below it changed. Collections are drawn dashed with their child count.
// [RenderSVG] runs Graphviz's neato engine over that source, which keeps
// pinned positions and only routes the edges.
//
// Layout y grows downward while Graphviz y grows upward, so ToDOT flips y.
package nodelink
