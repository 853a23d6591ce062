// Package spatial provides a disposable 2-D point index for hit testing.
//
// An [Index] is built in one pass from a slice of points and never modified
// afterwards. Callers rebuild it whenever the points move, which for an
// animated overview means once per frame. There is no insert or remove.
//
//	idx := spatial.Build(points)
//	if i, ok := idx.Nearest(x, y, radius); ok {
//	    // points[i] is the closest point within radius
//	}
package spatial

import (
	"math"
	"slices"
)

// Point is a 2-D coordinate.
type Point struct {
	X, Y float64
}

// Index is a static k-d tree over a set of points. The zero value is an
// empty index.
type Index struct {
	pts   []Point
	order []int // permutation of point indices, arranged as an implicit tree
}

// Build returns an index over pts. The slice is copied.
func Build(pts []Point) *Index {
	idx := &Index{
		pts:   slices.Clone(pts),
		order: make([]int, len(pts)),
	}
	for i := range idx.order {
		idx.order[i] = i
	}
	idx.build(0, len(idx.order), 0)
	return idx
}

// Len returns the number of indexed points.
func (idx *Index) Len() int {
	if idx == nil {
		return 0
	}
	return len(idx.pts)
}

// build arranges order[lo:hi] so that the median on the split axis sits at
// the middle, with smaller coordinates to its left.
func (idx *Index) build(lo, hi, depth int) {
	if hi-lo <= 1 {
		return
	}
	axis := depth % 2
	sub := idx.order[lo:hi]
	slices.SortFunc(sub, func(a, b int) int {
		return cmpFloat(idx.coord(a, axis), idx.coord(b, axis))
	})
	mid := lo + (hi-lo)/2
	idx.build(lo, mid, depth+1)
	idx.build(mid+1, hi, depth+1)
}

func (idx *Index) coord(i, axis int) float64 {
	if axis == 0 {
		return idx.pts[i].X
	}
	return idx.pts[i].Y
}

// Nearest returns the index (into the slice given to Build) of the point
// closest to (x, y) whose distance is at most radius. Ties resolve to the
// lower index.
func (idx *Index) Nearest(x, y, radius float64) (int, bool) {
	if idx.Len() == 0 || radius < 0 || math.IsNaN(radius) {
		return -1, false
	}
	best, bestD := -1, radius*radius
	idx.search(0, len(idx.order), 0, x, y, &best, &bestD)
	return best, best >= 0
}

func (idx *Index) search(lo, hi, depth int, x, y float64, best *int, bestD *float64) {
	if lo >= hi {
		return
	}
	mid := lo + (hi-lo)/2
	i := idx.order[mid]
	p := idx.pts[i]

	dx, dy := p.X-x, p.Y-y
	if d := dx*dx + dy*dy; d < *bestD || (d == *bestD && (*best < 0 || i < *best)) {
		*best, *bestD = i, d
	}

	axis := depth % 2
	q := x
	if axis == 1 {
		q = y
	}
	diff := q - idx.coord(i, axis)

	near, far := [2]int{lo, mid}, [2]int{mid + 1, hi}
	if diff > 0 {
		near, far = far, near
	}
	idx.search(near[0], near[1], depth+1, x, y, best, bestD)
	if diff*diff <= *bestD {
		idx.search(far[0], far[1], depth+1, x, y, best, bestD)
	}
}

func cmpFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
