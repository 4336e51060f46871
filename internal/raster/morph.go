package raster

import "math"

// morph.go: binary morphology and the Euclidean distance transform.

// Disk returns the offsets of a disk-shaped footprint of the given radius.
func Disk(radius int) [][2]int {
	var offs [][2]int
	r2 := radius * radius
	for dy := -radius; dy <= radius; dy++ {
		for dx := -radius; dx <= radius; dx++ {
			if dx*dx+dy*dy <= r2 {
				offs = append(offs, [2]int{dx, dy})
			}
		}
	}
	return offs
}

// Erode performs binary erosion with a disk footprint: a pixel stays set
// only when every footprint offset lands on a set pixel. Pixels outside the
// raster count as unset, so regions shrink away from the edges too.
func Erode(mask *Raster[uint8], radius int) *Raster[uint8] {
	if radius <= 0 {
		return mask.Clone()
	}
	offs := Disk(radius)
	w, h := mask.GB.Width, mask.GB.Height
	out := New[uint8](mask.GB)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if mask.At(x, y) == 0 {
				continue
			}
			keep := true
			for _, d := range offs {
				nx, ny := x+d[0], y+d[1]
				if nx < 0 || nx >= w || ny < 0 || ny >= h || mask.At(nx, ny) == 0 {
					keep = false
					break
				}
			}
			if keep {
				out.Set(x, y, 1)
			}
		}
	}
	return out
}

// DistanceTransform returns, per pixel, the Euclidean distance to the
// nearest zero pixel of the mask (0 for pixels outside the mask). Uses the
// Felzenszwalb-Huttenlocher two-pass squared-distance algorithm.
func DistanceTransform(mask *Raster[uint8]) *Raster[float64] {
	w, h := mask.GB.Width, mask.GB.Height
	d := New[float64](mask.GB)

	// Large but finite so parabola intersections stay well-defined when a
	// whole row or column has no background pixel.
	const inf = 1e20
	for i, v := range mask.Pix {
		if v != 0 {
			d.Pix[i] = inf
		}
	}

	f := make([]float64, max(w, h))
	dd := make([]float64, max(w, h))
	vv := make([]int, max(w, h))
	zz := make([]float64, max(w, h)+1)

	// columns
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			f[y] = d.At(x, y)
		}
		dt1d(f[:h], dd[:h], vv[:h], zz[:h+1])
		for y := 0; y < h; y++ {
			d.Set(x, y, dd[y])
		}
	}
	// rows
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			f[x] = d.At(x, y)
		}
		dt1d(f[:w], dd[:w], vv[:w], zz[:w+1])
		for x := 0; x < w; x++ {
			d.Set(x, y, dd[x])
		}
	}

	for i := range d.Pix {
		d.Pix[i] = math.Sqrt(d.Pix[i])
	}
	return d
}

// dt1d computes the 1-D squared distance transform of sampled function f
// (Felzenszwalb & Huttenlocher, lower envelope of parabolas).
func dt1d(f, d []float64, v []int, z []float64) {
	n := len(f)
	k := 0
	v[0] = 0
	z[0] = math.Inf(-1)
	z[1] = math.Inf(1)
	for q := 1; q < n; q++ {
		var s float64
		for {
			p := v[k]
			s = ((f[q] + float64(q*q)) - (f[p] + float64(p*p))) / float64(2*q-2*p)
			if s > z[k] {
				break
			}
			k--
		}
		k++
		v[k] = q
		z[k] = s
		z[k+1] = math.Inf(1)
	}
	k = 0
	for q := 0; q < n; q++ {
		for z[k+1] < float64(q) {
			k++
		}
		p := v[k]
		d[q] = float64((q-p)*(q-p)) + f[p]
	}
}
