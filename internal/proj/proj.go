// Package proj converts between the grid CRS (EPSG:6933, equal-area
// cylindrical on WGS84, standard parallel 30N) and geographic EPSG:4326
// coordinates. Formulas follow Snyder's Map Projections: A Working Manual,
// which is also what PROJ implements for cea.
package proj

import (
	"math"

	"github.com/paulmach/orb"
)

const (
	a  = 6378137.0           // WGS84 semi-major axis
	f  = 1 / 298.257223563   // WGS84 flattening
	sp = 30 * math.Pi / 180  // standard parallel
)

var (
	e2 = f * (2 - f)
	e  = math.Sqrt(e2)
	e4 = e2 * e2
	e6 = e4 * e2

	k0 = math.Cos(sp) / math.Sqrt(1-e2*math.Sin(sp)*math.Sin(sp))
	qp = authalicQ(math.Pi / 2)
)

// authalicQ is Snyder's q term for a geodetic latitude.
func authalicQ(phi float64) float64 {
	s := math.Sin(phi)
	return (1 - e2) * (s/(1-e2*s*s) - (1/(2*e))*math.Log((1-e*s)/(1+e*s)))
}

// Forward maps a lon/lat point (degrees) to projected metres.
func Forward(lonlat orb.Point) orb.Point {
	lon := lonlat[0] * math.Pi / 180
	lat := lonlat[1] * math.Pi / 180
	x := a * k0 * lon
	y := a * authalicQ(lat) / (2 * k0)
	return orb.Point{x, y}
}

// Inverse maps projected metres back to lon/lat degrees.
func Inverse(xy orb.Point) orb.Point {
	q := 2 * xy[1] * k0 / a
	beta := math.Asin(clamp(q/qp, -1, 1))
	phi := beta +
		(e2/3+31*e4/180+517*e6/5040)*math.Sin(2*beta) +
		(23*e4/360+251*e6/3780)*math.Sin(4*beta) +
		(761*e6/45360)*math.Sin(6*beta)
	lon := xy[0] / (a * k0)
	return orb.Point{lon * 180 / math.Pi, phi * 180 / math.Pi}
}

// ForwardPolygon projects every ring vertex of a lon/lat polygon.
func ForwardPolygon(p orb.Polygon) orb.Polygon {
	return mapPolygon(p, Forward)
}

// InversePolygon unprojects every ring vertex of a projected polygon.
func InversePolygon(p orb.Polygon) orb.Polygon {
	return mapPolygon(p, Inverse)
}

func mapPolygon(p orb.Polygon, fn func(orb.Point) orb.Point) orb.Polygon {
	out := make(orb.Polygon, len(p))
	for i, ring := range p {
		r := make(orb.Ring, len(ring))
		for j, pt := range ring {
			r[j] = fn(pt)
		}
		out[i] = r
	}
	return out
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
