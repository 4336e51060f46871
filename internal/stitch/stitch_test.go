package stitch

import (
	"context"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/rs/zerolog"

	"github.com/hydrosight/waterbodies/internal/grid"
	"github.com/hydrosight/waterbodies/internal/inventory"
	"github.com/hydrosight/waterbodies/internal/objstore"
	"github.com/hydrosight/waterbodies/internal/raster"
)

func rect(x0, y0, x1, y1 float64) orb.Polygon {
	return orb.Polygon{{{x0, y0}, {x1, y0}, {x1, y1}, {x0, y1}, {x0, y0}}}
}

func writeTile(t *testing.T, store objstore.Store, tile grid.TileIndex, polys ...orb.Polygon) {
	t.Helper()
	fc := geojson.NewFeatureCollection()
	for _, p := range polys {
		fc.Append(geojson.NewFeature(p))
	}
	body, err := fc.MarshalJSON()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	key := "waterbodies_" + grid.TileID(tile) + ".geojson"
	if err := store.Put(context.Background(), key, body); err != nil {
		t.Fatalf("put %s: %v", key, err)
	}
}

func area(t *testing.T, p orb.Polygon) int {
	t.Helper()
	gb := snapGeoBox(p.Bound())
	r := raster.New[int32](gb)
	raster.Rasterize(p, r, 1)
	return r.CountNonZero()
}

func TestStitchMergesAcrossTileEdge(t *testing.T) {
	store := objstore.NewFS(t.TempDir())
	edge := grid.TileSize // shared vertical edge of x000 and x001

	// two halves of one waterbody meeting at the edge
	left := rect(edge-3*grid.Resolution, 300, edge, 450)
	right := rect(edge, 300, edge+3*grid.Resolution, 450)
	writeTile(t, store, grid.TileIndex{X: 0, Y: 0}, left)
	writeTile(t, store, grid.TileIndex{X: 1, Y: 0}, right)

	got, err := Stitch(context.Background(), store, zerolog.Nop())
	if err != nil {
		t.Fatalf("stitch: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d polygons, want 1 merged", len(got))
	}
	b := got[0].Bound()
	if b.Min[0] != edge-3*grid.Resolution || b.Max[0] != edge+3*grid.Resolution {
		t.Fatalf("merged bound %v", b)
	}
	if got := area(t, got[0]); got != 30 {
		t.Fatalf("merged polygon covers %d pixels, want 30", got)
	}
}

func TestStitchPassesInteriorThrough(t *testing.T) {
	store := objstore.NewFS(t.TempDir())
	inner := rect(3000, 3000, 3090, 3090)
	writeTile(t, store, grid.TileIndex{X: 0, Y: 0}, inner)

	got, err := Stitch(context.Background(), store, zerolog.Nop())
	if err != nil {
		t.Fatalf("stitch: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d polygons, want 1", len(got))
	}
	// interior polygons are not reprocessed
	if len(got[0][0]) != len(inner[0]) {
		t.Fatalf("interior polygon was rewritten: %v", got[0])
	}
}

func TestStitchKeepsStandaloneEdgePolygon(t *testing.T) {
	store := objstore.NewFS(t.TempDir())
	// touches the tile's west edge, nothing across it
	lone := rect(0, 600, 4*grid.Resolution, 750)
	writeTile(t, store, grid.TileIndex{X: 0, Y: 0}, lone)

	got, err := Stitch(context.Background(), store, zerolog.Nop())
	if err != nil {
		t.Fatalf("stitch: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d polygons, want 1", len(got))
	}
	if got[0].Bound() != lone.Bound() {
		t.Fatalf("standalone edge polygon changed: %v vs %v", got[0].Bound(), lone.Bound())
	}
	if a := area(t, got[0]); a != 20 {
		t.Fatalf("standalone polygon covers %d pixels, want 20", a)
	}
}

func TestStitchMergesAcrossTileCorner(t *testing.T) {
	store := objstore.NewFS(t.TempDir())
	cx, cy := grid.TileSize, grid.TileSize // corner shared by four tiles
	d := 2 * grid.Resolution

	// one lake split into quarters by the tile corner
	writeTile(t, store, grid.TileIndex{X: 0, Y: 0}, rect(cx-d, cy-d, cx, cy))
	writeTile(t, store, grid.TileIndex{X: 1, Y: 0}, rect(cx, cy-d, cx+d, cy))
	writeTile(t, store, grid.TileIndex{X: 0, Y: 1}, rect(cx-d, cy, cx, cy+d))
	writeTile(t, store, grid.TileIndex{X: 1, Y: 1}, rect(cx, cy, cx+d, cy+d))

	got, err := Stitch(context.Background(), store, zerolog.Nop())
	if err != nil {
		t.Fatalf("stitch: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d polygons, want 1 merged lake", len(got))
	}
	if a := area(t, got[0]); a != 16 {
		t.Fatalf("merged lake covers %d pixels, want 16", a)
	}
}

// clipRect intersects an axis-aligned rectangle with a tile bound.
func clipRect(p orb.Polygon, tb orb.Bound) (orb.Polygon, bool) {
	b := p.Bound()
	x0, y0 := max(b.Min[0], tb.Min[0]), max(b.Min[1], tb.Min[1])
	x1, y1 := min(b.Max[0], tb.Max[0]), min(b.Max[1], tb.Max[1])
	if x1 <= x0 || y1 <= y0 {
		return orb.Polygon{}, false
	}
	return rect(x0, y0, x1, y1), true
}

func TestStitchMergesLakeAcrossNineTiles(t *testing.T) {
	store := objstore.NewFS(t.TempDir())
	ts := grid.TileSize
	a, b := ts-300.0, 2*ts+300.0
	w := 4 * grid.Resolution

	// one lake threading through every tile of a 3x3 block: an open frame
	// around the centre tile plus a spur into it
	bars := []orb.Polygon{
		rect(a, a, b, a+w),                // south
		rect(b-w, a, b, b),                // east
		rect(a, b-w, b, b),                // north
		rect(a, a, a+w, 1.5*ts),           // west, lower piece
		rect(a, 1.5*ts+300, a+w, b),       // west, upper piece: frame stays open
		rect(1.5*ts, a, 1.5*ts+w, 1.5*ts), // spur into the centre tile
	}
	for ty := 0; ty < 3; ty++ {
		for tx := 0; tx < 3; tx++ {
			tile := grid.TileIndex{X: tx, Y: ty}
			tb := grid.TileBound(tile)
			var frags []orb.Polygon
			for _, bar := range bars {
				if clip, ok := clipRect(bar, tb); ok {
					frags = append(frags, clip)
				}
			}
			if len(frags) == 0 {
				t.Fatalf("tile %v holds no fragment", tile)
			}
			writeTile(t, store, tile, frags...)
		}
	}

	got, err := Stitch(context.Background(), store, zerolog.Nop())
	if err != nil {
		t.Fatalf("stitch: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d polygons, want 1 merged lake", len(got))
	}
	if bd := got[0].Bound(); bd.Min[0] != a || bd.Min[1] != a || bd.Max[0] != b || bd.Max[1] != b {
		t.Fatalf("merged bound %v", bd)
	}

	ws, err := inventory.Build(got, inventory.Filters{MinAreaM2: 4500, MaxLengthM: 150000}, zerolog.Nop())
	if err != nil {
		t.Fatalf("build inventory: %v", err)
	}
	if len(ws) != 1 {
		t.Fatalf("inventory holds %d waterbodies, want 1", len(ws))
	}

	// a rerun over the same tiles reproduces the identity
	again, err := Stitch(context.Background(), store, zerolog.Nop())
	if err != nil {
		t.Fatalf("restitch: %v", err)
	}
	ws2, err := inventory.Build(again, inventory.Filters{MinAreaM2: 4500, MaxLengthM: 150000}, zerolog.Nop())
	if err != nil {
		t.Fatalf("rebuild inventory: %v", err)
	}
	if len(ws2) != 1 || ws2[0].UID != ws[0].UID {
		t.Fatalf("rerun gave uid %q, want %q", ws2[0].UID, ws[0].UID)
	}
}

func TestStitchSeparateComponentsStaySeparate(t *testing.T) {
	store := objstore.NewFS(t.TempDir())
	edge := grid.TileSize
	// both touch the shared edge but at different rows
	a := rect(edge-2*grid.Resolution, 300, edge, 390)
	b := rect(edge, 600, edge+2*grid.Resolution, 690)
	writeTile(t, store, grid.TileIndex{X: 0, Y: 0}, a)
	writeTile(t, store, grid.TileIndex{X: 1, Y: 0}, b)

	got, err := Stitch(context.Background(), store, zerolog.Nop())
	if err != nil {
		t.Fatalf("stitch: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d polygons, want 2", len(got))
	}
}

func TestStitchDeterministicOrder(t *testing.T) {
	run := func() []orb.Polygon {
		store := objstore.NewFS(t.TempDir())
		writeTile(t, store, grid.TileIndex{X: 0, Y: 0},
			rect(3000, 3000, 3090, 3090),
			rect(600, 600, 660, 690),
			rect(0, 900, 60, 960))
		got, err := Stitch(context.Background(), store, zerolog.Nop())
		if err != nil {
			t.Fatalf("stitch: %v", err)
		}
		return got
	}
	first, second := run(), run()
	if len(first) != 3 || len(second) != 3 {
		t.Fatalf("got %d and %d polygons", len(first), len(second))
	}
	for i := range first {
		if first[i].Bound() != second[i].Bound() {
			t.Fatalf("order differs at %d", i)
		}
	}
}
