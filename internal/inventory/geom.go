package inventory

import (
	"math"
	"sort"

	"github.com/paulmach/orb"
)

// geom.go: planar measures over polygons in a metre CRS. Signed ring areas
// follow the shoelace formula, so holes traced opposite the exterior
// subtract on their own.

func ringArea(r orb.Ring) float64 {
	var sum float64
	for i := 0; i < len(r)-1; i++ {
		sum += r[i][0]*r[i+1][1] - r[i+1][0]*r[i][1]
	}
	return sum / 2
}

// Area returns the polygon area: exterior minus holes.
func Area(p orb.Polygon) float64 {
	if len(p) == 0 {
		return 0
	}
	a := math.Abs(ringArea(p[0]))
	for _, hole := range p[1:] {
		a -= math.Abs(ringArea(hole))
	}
	return a
}

// Perimeter returns the total boundary length, holes included.
func Perimeter(p orb.Polygon) float64 {
	var sum float64
	for _, r := range p {
		for i := 0; i < len(r)-1; i++ {
			sum += math.Hypot(r[i+1][0]-r[i][0], r[i+1][1]-r[i][1])
		}
	}
	return sum
}

// Centroid returns the area-weighted centroid. Holes subtract through the
// signed ring sums as long as they are traced opposite the exterior.
func Centroid(p orb.Polygon) orb.Point {
	var a, cx, cy float64
	for ri, r := range p {
		sign := 1.0
		if (ri == 0) != (ringArea(r) > 0) {
			// normalise so the exterior contributes positively
			sign = -1.0
		}
		for i := 0; i < len(r)-1; i++ {
			cross := r[i][0]*r[i+1][1] - r[i+1][0]*r[i][1]
			a += sign * cross
			cx += sign * (r[i][0] + r[i+1][0]) * cross
			cy += sign * (r[i][1] + r[i+1][1]) * cross
		}
	}
	if a == 0 {
		return p.Bound().Center()
	}
	return orb.Point{cx / (3 * a), cy / (3 * a)}
}

// Length returns the long side of the polygon's minimum rotated rectangle.
func Length(p orb.Polygon) float64 {
	if len(p) == 0 || len(p[0]) < 3 {
		return 0
	}
	hull := convexHull(p[0])
	if len(hull) < 2 {
		return 0
	}
	if len(hull) == 2 {
		return math.Hypot(hull[1][0]-hull[0][0], hull[1][1]-hull[0][1])
	}

	best := math.Inf(1)
	var long float64
	for i := 0; i < len(hull); i++ {
		j := (i + 1) % len(hull)
		ex, ey := hull[j][0]-hull[i][0], hull[j][1]-hull[i][1]
		n := math.Hypot(ex, ey)
		if n == 0 {
			continue
		}
		ex, ey = ex/n, ey/n

		minU, maxU := math.Inf(1), math.Inf(-1)
		minV, maxV := math.Inf(1), math.Inf(-1)
		for _, pt := range hull {
			u := pt[0]*ex + pt[1]*ey
			v := -pt[0]*ey + pt[1]*ex
			minU, maxU = math.Min(minU, u), math.Max(maxU, u)
			minV, maxV = math.Min(minV, v), math.Max(maxV, v)
		}
		w, h := maxU-minU, maxV-minV
		if w*h < best {
			best = w * h
			long = math.Max(w, h)
		}
	}
	return long
}

// convexHull is Andrew's monotone chain over a ring's vertices.
func convexHull(r orb.Ring) []orb.Point {
	pts := make([]orb.Point, len(r))
	copy(pts, r)
	sort.Slice(pts, func(i, j int) bool {
		if pts[i][0] != pts[j][0] {
			return pts[i][0] < pts[j][0]
		}
		return pts[i][1] < pts[j][1]
	})
	// dedupe
	uniq := pts[:0]
	for i, p := range pts {
		if i == 0 || p != pts[i-1] {
			uniq = append(uniq, p)
		}
	}
	pts = uniq
	if len(pts) < 3 {
		return pts
	}

	cross := func(o, a, b orb.Point) float64 {
		return (a[0]-o[0])*(b[1]-o[1]) - (a[1]-o[1])*(b[0]-o[0])
	}
	var hull []orb.Point
	for _, p := range pts {
		for len(hull) >= 2 && cross(hull[len(hull)-2], hull[len(hull)-1], p) <= 0 {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, p)
	}
	lower := len(hull) + 1
	for i := len(pts) - 2; i >= 0; i-- {
		p := pts[i]
		for len(hull) >= lower && cross(hull[len(hull)-2], hull[len(hull)-1], p) <= 0 {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, p)
	}
	return hull[:len(hull)-1]
}
