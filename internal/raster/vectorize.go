package raster

import (
	"sort"

	"github.com/paulmach/orb"
)

// Shape is one vectorized region: the label it came from and its polygon in
// CRS coordinates (pixel-aligned, exterior ring first, then holes).
type Shape struct {
	Value   int32
	Polygon orb.Polygon
}

type vedge struct {
	fx, fy int
	tx, ty int
}

// Vectorize traces every labelled region of the raster into one or more
// polygons whose edges follow pixel boundaries. Boundary edges are oriented
// with the region interior on the left; contours are chained by always
// taking the rightmost turn, which keeps rings simple even where a region
// touches itself at a pixel corner. Output order follows the scan order of
// each label's first pixel.
func Vectorize(labels *Raster[int32]) []Shape {
	w, h := labels.GB.Width, labels.GB.Height

	edgesByLabel := make(map[int32][]vedge)
	var labelOrder []int32

	at := func(x, y int) int32 {
		if x < 0 || x >= w || y < 0 || y >= h {
			return 0
		}
		return labels.Pix[y*w+x]
	}

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := labels.Pix[y*w+x]
			if v == 0 {
				continue
			}
			if _, seen := edgesByLabel[v]; !seen {
				labelOrder = append(labelOrder, v)
			}
			// One directed edge per exposed cell side, traversing the
			// cell clockwise in row/col space: top, right, bottom, left.
			if at(x, y-1) != v {
				edgesByLabel[v] = append(edgesByLabel[v], vedge{x, y, x + 1, y})
			}
			if at(x+1, y) != v {
				edgesByLabel[v] = append(edgesByLabel[v], vedge{x + 1, y, x + 1, y + 1})
			}
			if at(x, y+1) != v {
				edgesByLabel[v] = append(edgesByLabel[v], vedge{x + 1, y + 1, x, y + 1})
			}
			if at(x-1, y) != v {
				edgesByLabel[v] = append(edgesByLabel[v], vedge{x, y + 1, x, y})
			}
		}
	}

	var shapes []Shape
	for _, label := range labelOrder {
		for _, poly := range assemble(edgesByLabel[label], labels.GB.PixelToWorld) {
			shapes = append(shapes, Shape{Value: label, Polygon: poly})
		}
	}
	return shapes
}

type tracedRing struct {
	pts  [][2]int
	area float64 // signed, pixel units, positive = exterior
}

// assemble chains directed boundary edges into rings and groups them into
// polygons (exterior + contained holes).
func assemble(edges []vedge, toWorld func(px, py float64) (float64, float64)) []orb.Polygon {
	outgoing := make(map[[2]int][]int)
	for i, e := range edges {
		k := [2]int{e.fx, e.fy}
		outgoing[k] = append(outgoing[k], i)
	}
	used := make([]bool, len(edges))

	var rings []tracedRing
	for start := range edges {
		if used[start] {
			continue
		}
		ring := traceRing(edges, outgoing, used, start)
		rings = append(rings, ring)
	}

	var exteriors, holes []tracedRing
	for _, r := range rings {
		if r.area > 0 {
			exteriors = append(exteriors, r)
		} else {
			holes = append(holes, r)
		}
	}

	polys := make([]orb.Polygon, len(exteriors))
	for i, ext := range exteriors {
		polys[i] = orb.Polygon{worldRing(ext.pts, toWorld)}
	}
	for _, hole := range holes {
		px, py := cavityPoint(hole.pts)
		idx := 0
		if len(exteriors) > 1 {
			// smallest containing exterior owns the hole
			best := -1
			for j, ext := range exteriors {
				if pointInRing(px, py, ext.pts) && (best < 0 || ext.area < exteriors[best].area) {
					best = j
				}
			}
			if best < 0 {
				continue
			}
			idx = best
		}
		polys[idx] = append(polys[idx], worldRing(hole.pts, toWorld))
	}
	return polys
}

func traceRing(edges []vedge, outgoing map[[2]int][]int, used []bool, start int) tracedRing {
	first := edges[start]
	pts := [][2]int{{first.fx, first.fy}}
	cur := start

	for {
		e := edges[cur]
		used[cur] = true
		pts = append(pts, [2]int{e.tx, e.ty})
		if e.tx == first.fx && e.ty == first.fy {
			break
		}
		dx, dy := e.tx-e.fx, e.ty-e.fy
		next := -1
		var bestTurn int
		for _, cand := range outgoing[[2]int{e.tx, e.ty}] {
			if used[cand] {
				continue
			}
			c := edges[cand]
			ux, uy := c.tx-c.fx, c.ty-c.fy
			cross := dx*uy - dy*ux
			// prefer the rightmost turn: right (-1), straight (0), left (+1)
			turn := 0
			if cross < 0 {
				turn = -1
			} else if cross > 0 {
				turn = 1
			}
			if next == -1 || turn < bestTurn {
				next = cand
				bestTurn = turn
			}
		}
		if next == -1 {
			break
		}
		cur = next
	}

	return tracedRing{pts: pts, area: shoelace(pts)}
}

// shoelace returns the signed area of a closed ring in pixel row/col space.
// With edges oriented interior-on-left, exteriors come out positive.
func shoelace(pts [][2]int) float64 {
	var sum int
	for i := 0; i < len(pts)-1; i++ {
		sum += pts[i][0]*pts[i+1][1] - pts[i+1][0]*pts[i][1]
	}
	return float64(sum) / 2
}

// cavityPoint returns a point strictly inside the cavity a hole ring
// encloses: the midpoint of the first edge nudged toward its right-hand
// side (the non-region side).
func cavityPoint(pts [][2]int) (float64, float64) {
	ax, ay := pts[0][0], pts[0][1]
	bx, by := pts[1][0], pts[1][1]
	mx := float64(ax+bx) / 2
	my := float64(ay+by) / 2
	dx, dy := bx-ax, by-ay
	return mx + 0.5*float64(dy), my - 0.5*float64(dx)
}

// pointInRing is an even-odd ray-crossing test in pixel space. The query
// point always has half-integer coordinates so the ray never passes through
// a ring vertex.
func pointInRing(px, py float64, pts [][2]int) bool {
	inside := false
	for i := 0; i < len(pts)-1; i++ {
		x1, y1 := float64(pts[i][0]), float64(pts[i][1])
		x2, y2 := float64(pts[i+1][0]), float64(pts[i+1][1])
		if (y1 > py) != (y2 > py) {
			xc := x1 + (py-y1)/(y2-y1)*(x2-x1)
			if xc > px {
				inside = !inside
			}
		}
	}
	return inside
}

func worldRing(pts [][2]int, toWorld func(px, py float64) (float64, float64)) orb.Ring {
	ring := make(orb.Ring, len(pts))
	for i, p := range pts {
		x, y := toWorld(float64(p[0]), float64(p[1]))
		ring[i] = orb.Point{x, y}
	}
	return ring
}

// SortShapes orders shapes by label value; used where a stable cross-run
// ordering matters more than scan order.
func SortShapes(shapes []Shape) {
	sort.Slice(shapes, func(i, j int) bool { return shapes[i].Value < shapes[j].Value })
}
