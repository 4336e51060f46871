package raster

import (
	"math"
	"sort"

	"github.com/paulmach/orb"
)

// Rasterize burns a polygon (in CRS coordinates) into the label raster with
// the given value. A pixel is burned when its centre falls inside the
// polygon under the even-odd rule, so pixel-aligned polygons rasterize back
// to exactly the pixels they were traced from.
func Rasterize(poly orb.Polygon, out *Raster[int32], value int32) {
	gb := out.GB
	b := poly.Bound()

	px0, py0 := gb.WorldToPixel(b.Min[0], b.Max[1])
	px1, py1 := gb.WorldToPixel(b.Max[0], b.Min[1])
	y0 := clampInt(int(math.Floor(math.Min(py0, py1))), 0, gb.Height)
	y1 := clampInt(int(math.Ceil(math.Max(py0, py1))), 0, gb.Height)
	x0 := clampInt(int(math.Floor(math.Min(px0, px1))), 0, gb.Width)
	x1 := clampInt(int(math.Ceil(math.Max(px0, px1))), 0, gb.Width)

	var crossings []float64
	for y := y0; y < y1; y++ {
		_, cy := gb.PixelToWorld(0, float64(y)+0.5)

		crossings = crossings[:0]
		for _, ring := range poly {
			for i := 0; i < len(ring)-1; i++ {
				ay, by := ring[i][1], ring[i+1][1]
				if (ay > cy) == (by > cy) {
					continue
				}
				ax, bx := ring[i][0], ring[i+1][0]
				crossings = append(crossings, ax+(cy-ay)/(by-ay)*(bx-ax))
			}
		}
		if len(crossings) < 2 {
			continue
		}
		sort.Float64s(crossings)

		for k := 0; k+1 < len(crossings); k += 2 {
			sx, _ := gb.WorldToPixel(crossings[k], 0)
			ex, _ := gb.WorldToPixel(crossings[k+1], 0)
			// first pixel whose centre is right of the entry crossing
			cs := clampInt(int(math.Ceil(sx-0.5)), x0, x1)
			ce := clampInt(int(math.Ceil(ex-0.5)), x0, x1)
			for x := cs; x < ce; x++ {
				out.Set(x, y, value)
			}
		}
	}
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
