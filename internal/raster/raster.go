// Package raster implements the pixel-grid operations the pipeline is built
// on: connected-component labelling, morphology, watershed segmentation,
// vectorization and rasterization. Rasters are georeferenced by a grid.GeoBox
// and addressed (x, y) with row 0 at the geobox origin (north edge).
package raster

import "github.com/hydrosight/waterbodies/internal/grid"

// Pixel is the set of sample types a Raster can hold.
type Pixel interface {
	~uint8 | ~int16 | ~int32 | ~float32 | ~float64
}

// Raster is a dense pixel grid with georeferencing.
type Raster[T Pixel] struct {
	GB  grid.GeoBox
	Pix []T
}

// New allocates a zero-filled raster covering the geobox.
func New[T Pixel](gb grid.GeoBox) *Raster[T] {
	return &Raster[T]{GB: gb, Pix: make([]T, gb.Width*gb.Height)}
}

func (r *Raster[T]) At(x, y int) T {
	return r.Pix[y*r.GB.Width+x]
}

func (r *Raster[T]) Set(x, y int, v T) {
	r.Pix[y*r.GB.Width+x] = v
}

func (r *Raster[T]) Fill(v T) {
	for i := range r.Pix {
		r.Pix[i] = v
	}
}

func (r *Raster[T]) Clone() *Raster[T] {
	out := &Raster[T]{GB: r.GB, Pix: make([]T, len(r.Pix))}
	copy(out.Pix, r.Pix)
	return out
}

// CountNonZero returns the number of pixels with a non-zero value.
func (r *Raster[T]) CountNonZero() int {
	n := 0
	var zero T
	for _, v := range r.Pix {
		if v != zero {
			n++
		}
	}
	return n
}
