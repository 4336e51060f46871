// Package stitch merges the per-tile polygon sets into one continental set.
// Tiles are processed independently, so a waterbody crossing a tile edge
// arrives as two or more fragments; because every fragment is traced on the
// same 30 m pixel grid, the merge is a union in pixel space: rasterise the
// fragments that touch a tile edge, relabel the combined pixels and trace
// the merged outlines back out. Fragments away from every edge pass through
// untouched, and an edge-touching fragment with no neighbour across the edge
// round-trips to exactly itself.
package stitch

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/rs/zerolog"

	"github.com/hydrosight/waterbodies/internal/grid"
	"github.com/hydrosight/waterbodies/internal/objstore"
	"github.com/hydrosight/waterbodies/internal/raster"
)

// Stitch reads every tile polygon set under the store's tile-key prefix and
// returns the merged continental polygon list in a deterministic order.
func Stitch(ctx context.Context, store objstore.Store, log zerolog.Logger) ([]orb.Polygon, error) {
	keys, err := store.List(ctx, "waterbodies_")
	if err != nil {
		return nil, fmt.Errorf("list tile polygon sets: %w", err)
	}

	var interior, edge []orb.Polygon
	for _, key := range keys {
		tile, err := tileFromKey(key)
		if err != nil {
			log.Warn().Str("key", key).Msg("skipping object with unparseable tile id")
			continue
		}
		body, err := store.Get(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", key, err)
		}
		fc, err := geojson.UnmarshalFeatureCollection(body)
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", key, err)
		}
		tb := grid.TileBound(tile)
		for _, f := range fc.Features {
			poly, ok := f.Geometry.(orb.Polygon)
			if !ok {
				return nil, fmt.Errorf("%s: feature geometry is %T, want polygon", key, f.Geometry)
			}
			if touchesEdge(poly.Bound(), tb) {
				edge = append(edge, poly)
			} else {
				interior = append(interior, poly)
			}
		}
	}
	log.Info().Int("interior", len(interior)).Int("edge", len(edge)).Msg("stitching tile fragments")

	merged := unionPixels(edge)
	out := append(interior, merged...)
	sortPolygons(out)
	return out, nil
}

func tileFromKey(key string) (grid.TileIndex, error) {
	var x, y int
	if _, err := fmt.Sscanf(key, "waterbodies_x%03d_y%03d.geojson", &x, &y); err != nil {
		return grid.TileIndex{}, err
	}
	return grid.TileIndex{X: x, Y: y}, nil
}

// touchesEdge reports whether the polygon comes within one pixel of its
// tile's boundary.
func touchesEdge(b, tile orb.Bound) bool {
	return b.Min[0] <= tile.Min[0]+grid.Resolution ||
		b.Min[1] <= tile.Min[1]+grid.Resolution ||
		b.Max[0] >= tile.Max[0]-grid.Resolution ||
		b.Max[1] >= tile.Max[1]-grid.Resolution
}

// cell is a pixel on the global 30 m grid: x index east, y index north.
type cell struct{ x, y int }

// unionPixels rasterises the polygons onto the shared global pixel grid,
// finds the 4-connected components of the combined pixel set and vectorises
// each component.
func unionPixels(polys []orb.Polygon) []orb.Polygon {
	set := make(map[cell]bool)
	for _, p := range polys {
		for _, c := range cells(p) {
			set[c] = true
		}
	}

	// deterministic component order
	all := make([]cell, 0, len(set))
	for c := range set {
		all = append(all, c)
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].y != all[j].y {
			return all[i].y < all[j].y
		}
		return all[i].x < all[j].x
	})

	visited := make(map[cell]bool, len(set))
	var out []orb.Polygon
	for _, start := range all {
		if visited[start] {
			continue
		}
		comp := flood(set, visited, start)
		out = append(out, vectorizeComponent(comp)...)
	}
	return out
}

// cells returns the global pixel cells covered by a pixel-aligned polygon.
func cells(p orb.Polygon) []cell {
	gb := snapGeoBox(p.Bound())
	r := raster.New[int32](gb)
	raster.Rasterize(p, r, 1)
	ox := int(math.Round(gb.OriginX / grid.Resolution))
	oy := int(math.Round(gb.OriginY / grid.Resolution))
	var out []cell
	for y := 0; y < gb.Height; y++ {
		for x := 0; x < gb.Width; x++ {
			if r.At(x, y) != 0 {
				out = append(out, cell{x: ox + x, y: oy - 1 - y})
			}
		}
	}
	return out
}

func flood(set, visited map[cell]bool, start cell) []cell {
	comp := []cell{start}
	visited[start] = true
	for i := 0; i < len(comp); i++ {
		c := comp[i]
		for _, n := range [4]cell{{c.x + 1, c.y}, {c.x - 1, c.y}, {c.x, c.y + 1}, {c.x, c.y - 1}} {
			if set[n] && !visited[n] {
				visited[n] = true
				comp = append(comp, n)
			}
		}
	}
	return comp
}

func vectorizeComponent(comp []cell) []orb.Polygon {
	minX, minY := comp[0].x, comp[0].y
	maxX, maxY := comp[0].x, comp[0].y
	for _, c := range comp[1:] {
		minX, maxX = min(minX, c.x), max(maxX, c.x)
		minY, maxY = min(minY, c.y), max(maxY, c.y)
	}
	gb := grid.GeoBox{
		OriginX: float64(minX) * grid.Resolution,
		OriginY: float64(maxY+1) * grid.Resolution,
		Width:   maxX - minX + 1,
		Height:  maxY - minY + 1,
		ResX:    grid.Resolution,
		ResY:    -grid.Resolution,
	}
	r := raster.New[int32](gb)
	for _, c := range comp {
		r.Set(c.x-minX, maxY-c.y, 1)
	}
	shapes := raster.Vectorize(r)
	raster.SortShapes(shapes)
	out := make([]orb.Polygon, len(shapes))
	for i, s := range shapes {
		out[i] = s.Polygon
	}
	return out
}

// snapGeoBox expands a bound outward to the global 30 m pixel grid.
func snapGeoBox(b orb.Bound) grid.GeoBox {
	x0 := math.Floor(b.Min[0] / grid.Resolution)
	y0 := math.Floor(b.Min[1] / grid.Resolution)
	x1 := math.Ceil(b.Max[0] / grid.Resolution)
	y1 := math.Ceil(b.Max[1] / grid.Resolution)
	return grid.GeoBox{
		OriginX: x0 * grid.Resolution,
		OriginY: y1 * grid.Resolution,
		Width:   int(x1 - x0),
		Height:  int(y1 - y0),
		ResX:    grid.Resolution,
		ResY:    -grid.Resolution,
	}
}

func sortPolygons(ps []orb.Polygon) {
	sort.Slice(ps, func(i, j int) bool {
		bi, bj := ps[i].Bound(), ps[j].Bound()
		if bi.Min[0] != bj.Min[0] {
			return bi.Min[0] < bj.Min[0]
		}
		if bi.Min[1] != bj.Min[1] {
			return bi.Min[1] < bj.Min[1]
		}
		if bi.Max[0] != bj.Max[0] {
			return bi.Max[0] < bj.Max[0]
		}
		return bi.Max[1] < bj.Max[1]
	})
}
