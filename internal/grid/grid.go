// Package grid defines the fixed tiling scheme used by every pipeline stage.
//
// The grid lives in EPSG:6933 (equal-area cylindrical), tiles are 96 km
// squares at 30 m resolution (3200x3200 pixels). Tile indices are pure
// coordinates: the same extent always maps to the same tile set.
package grid

import (
	"math"

	"github.com/paulmach/orb"
)

const (
	// CRS is the projected coordinate system the grid is defined in.
	CRS = "EPSG:6933"

	// TileSize is the tile edge length in metres.
	TileSize = 96000.0

	// Resolution is the pixel edge length in metres.
	Resolution = 30.0

	// TilePixels is the tile edge length in pixels.
	TilePixels = int(TileSize / Resolution)
)

// TileIndex addresses one cell of the grid.
type TileIndex struct {
	X int
	Y int
}

// GeoBox is the georeferenced pixel grid of a raster: a top-left origin in
// CRS units, a pixel shape and a signed resolution (ResY is negative, rows
// run north to south).
type GeoBox struct {
	OriginX float64
	OriginY float64
	Width   int
	Height  int
	ResX    float64
	ResY    float64
}

// TileGeoBox returns the exact bounding pixel grid of a tile.
func TileGeoBox(tile TileIndex) GeoBox {
	return GeoBox{
		OriginX: float64(tile.X) * TileSize,
		OriginY: float64(tile.Y+1) * TileSize,
		Width:   TilePixels,
		Height:  TilePixels,
		ResX:    Resolution,
		ResY:    -Resolution,
	}
}

// TileBound returns the tile extent in CRS units.
func TileBound(tile TileIndex) orb.Bound {
	return orb.Bound{
		Min: orb.Point{float64(tile.X) * TileSize, float64(tile.Y) * TileSize},
		Max: orb.Point{float64(tile.X+1) * TileSize, float64(tile.Y+1) * TileSize},
	}
}

// Tiles returns the ordered list of tile indices whose extent intersects the
// given bound. Ordering is row-major by (Y, X) and stable across calls.
func Tiles(extent orb.Bound) []TileIndex {
	x0, x1 := tileRange(extent.Min[0], extent.Max[0])
	y0, y1 := tileRange(extent.Min[1], extent.Max[1])

	tiles := make([]TileIndex, 0, (x1-x0+1)*(y1-y0+1))
	for y := y0; y <= y1; y++ {
		for x := x0; x <= x1; x++ {
			tiles = append(tiles, TileIndex{X: x, Y: y})
		}
	}
	return tiles
}

// tileRange maps a 1-D interval to the inclusive range of tile indices it
// touches. An interval ending exactly on a tile edge does not touch the
// next tile.
func tileRange(lo, hi float64) (int, int) {
	a := int(math.Floor(lo / TileSize))
	b := int(math.Floor(hi / TileSize))
	if hi == float64(b)*TileSize && hi > lo {
		b--
	}
	return a, b
}

// Bound returns the extent covered by the geobox in CRS units.
func (g GeoBox) Bound() orb.Bound {
	x0 := g.OriginX
	x1 := g.OriginX + float64(g.Width)*g.ResX
	y0 := g.OriginY
	y1 := g.OriginY + float64(g.Height)*g.ResY
	return orb.Bound{
		Min: orb.Point{math.Min(x0, x1), math.Min(y0, y1)},
		Max: orb.Point{math.Max(x0, x1), math.Max(y0, y1)},
	}
}

// PixelToWorld maps fractional pixel coordinates to CRS coordinates.
// Integer coordinates are pixel corners; (px+0.5, py+0.5) is a pixel centre.
func (g GeoBox) PixelToWorld(px, py float64) (float64, float64) {
	return g.OriginX + px*g.ResX, g.OriginY + py*g.ResY
}

// WorldToPixel is the inverse of PixelToWorld.
func (g GeoBox) WorldToPixel(x, y float64) (float64, float64) {
	return (x - g.OriginX) / g.ResX, (y - g.OriginY) / g.ResY
}

// Contains reports whether the integer pixel (px, py) is inside the geobox.
func (g GeoBox) Contains(px, py int) bool {
	return px >= 0 && px < g.Width && py >= 0 && py < g.Height
}
