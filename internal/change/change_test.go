package change

import (
	"context"
	"testing"

	"github.com/rs/zerolog"

	"github.com/hydrosight/waterbodies/internal/grid"
	"github.com/hydrosight/waterbodies/internal/inventory"
	"github.com/hydrosight/waterbodies/internal/metrics"
	"github.com/hydrosight/waterbodies/internal/objstore"
	"github.com/hydrosight/waterbodies/internal/proj"
	"github.com/hydrosight/waterbodies/internal/raster"
	"github.com/hydrosight/waterbodies/internal/rastersrc"
	"github.com/hydrosight/waterbodies/internal/store"
	"github.com/hydrosight/waterbodies/internal/tasks"

	"github.com/google/uuid"
	"github.com/paulmach/orb"
)

func testGB(w, h int) grid.GeoBox {
	return grid.GeoBox{OriginX: 0, OriginY: float64(h) * grid.Resolution,
		Width: w, Height: h, ResX: grid.Resolution, ResY: -grid.Resolution}
}

func TestExtractFractions(t *testing.T) {
	gb := testGB(10, 10)
	labels := raster.New[int32](gb)
	scene := raster.New[uint8](gb)
	scene.Fill(rastersrc.SceneNoData)

	// one 100-pixel waterbody: 80 wet, 15 dry, 5 invalid
	i := 0
	for y := 0; y < 10; y++ {
		for x := 0; x < 10; x++ {
			labels.Set(x, y, 7)
			switch {
			case i < 80:
				scene.Set(x, y, rastersrc.SceneClearWet)
			case i < 95:
				scene.Set(x, y, rastersrc.SceneClearDry)
			default:
				scene.Set(x, y, 64) // cloud
			}
			i++
		}
	}

	obs := Extract("2020-01-01/x001/y002", "2020-01-01", labels, map[int32]string{7: "abc"}, scene)
	if len(obs) != 1 {
		t.Fatalf("got %d observations, want 1", len(obs))
	}
	o := obs[0]
	if o.OBSID != "2020-01-01/x001/y002_abc" || o.UID != "abc" {
		t.Fatalf("identity %q %q", o.OBSID, o.UID)
	}
	if o.PxTotal != 100 || o.PxWet != 80 || o.PxDry != 15 || o.PxInvalid != 5 {
		t.Fatalf("counts %+v", o)
	}
	if o.FracWet != 0.8 || o.FracDry != 0.15 || o.FracInvalid != 0.05 {
		t.Fatalf("fractions %+v", o)
	}
	if o.AreaWetM2 != 80*900 || o.AreaDryM2 != 15*900 || o.AreaInvalidM2 != 5*900 {
		t.Fatalf("areas %+v", o)
	}
}

func TestExtractNoValidPixels(t *testing.T) {
	gb := testGB(4, 4)
	labels := raster.New[int32](gb)
	labels.Fill(3)
	scene := raster.New[uint8](gb)
	scene.Fill(rastersrc.SceneNoData)

	obs := Extract("2020-01-01/x000/y000", "2020-01-01", labels, map[int32]string{3: "xyz"}, scene)
	if len(obs) != 1 {
		t.Fatalf("got %d observations", len(obs))
	}
	o := obs[0]
	if o.FracInvalid != 1 || o.FracWet != 0 || o.FracDry != 0 {
		t.Fatalf("no-valid observation %+v", o)
	}
	if o.PxInvalid != 16 {
		t.Fatalf("invalid count %d", o.PxInvalid)
	}
}

func TestExtractSortedByUID(t *testing.T) {
	gb := testGB(4, 1)
	labels := raster.New[int32](gb)
	labels.Set(0, 0, 2)
	labels.Set(1, 0, 1)
	labels.Set(2, 0, 9) // no uid mapping, skipped
	scene := raster.New[uint8](gb)
	scene.Fill(rastersrc.SceneClearWet)

	obs := Extract("t", "2020-01-01", labels, map[int32]string{1: "bbb", 2: "aaa"}, scene)
	if len(obs) != 2 {
		t.Fatalf("got %d observations", len(obs))
	}
	if obs[0].UID != "aaa" || obs[1].UID != "bbb" {
		t.Fatalf("order %q %q", obs[0].UID, obs[1].UID)
	}
}

// inventoryWaterbody builds a pixel-aligned waterbody inside tile (1,2).
func inventoryWaterbody() inventory.Waterbody {
	poly := orb.Polygon{{
		{100000, 200000}, {100300, 200000}, {100300, 200300}, {100000, 200300}, {100000, 200000},
	}}
	return inventory.Waterbody{
		UID:      "abc",
		WBID:     1,
		Geometry: proj.InversePolygon(poly),
		AreaM2:   100 * 900,
	}
}

func TestRasterizeInventory(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	if err := st.UpsertWaterbodies(ctx, []inventory.Waterbody{inventoryWaterbody()}, true); err != nil {
		t.Fatalf("seed store: %v", err)
	}
	out := objstore.NewFS(t.TempDir())

	if err := RasterizeInventory(ctx, st, out, zerolog.Nop()); err != nil {
		t.Fatalf("rasterize: %v", err)
	}

	tile := grid.TileIndex{X: 1, Y: 2}
	body, err := out.Get(ctx, ExtentRasterKey(tile))
	if err != nil {
		t.Fatalf("read raster: %v", err)
	}
	labels, err := raster.Decode[int32](body)
	if err != nil {
		t.Fatalf("decode raster: %v", err)
	}
	if got := labels.CountNonZero(); got != 100 {
		t.Fatalf("burned %d pixels, want 100", got)
	}

	tiles, err := ExtentTiles(ctx, out)
	if err != nil {
		t.Fatalf("list tiles: %v", err)
	}
	if len(tiles) != 1 || tiles[0] != tile {
		t.Fatalf("extent tiles %v", tiles)
	}
}

func TestExtractorEndToEnd(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	if err := st.UpsertWaterbodies(ctx, []inventory.Waterbody{inventoryWaterbody()}, true); err != nil {
		t.Fatalf("seed store: %v", err)
	}
	rasters := objstore.NewFS(t.TempDir())
	if err := RasterizeInventory(ctx, st, rasters, zerolog.Nop()); err != nil {
		t.Fatalf("rasterize: %v", err)
	}

	tile := grid.TileIndex{X: 1, Y: 2}
	scene := raster.New[uint8](grid.TileGeoBox(tile))
	scene.Fill(rastersrc.SceneClearWet)
	id := uuid.New()
	src := rastersrc.NewMemorySource()
	src.AddScene(id, scene)

	e, err := NewExtractor(st, src, rasters, false, 4, zerolog.Nop(), metrics.Init())
	if err != nil {
		t.Fatalf("new extractor: %v", err)
	}
	task := tasks.Task{SolarDay: "2020-01-01", TileX: 1, TileY: 2, DatasetIDs: []uuid.UUID{id}}
	if err := e.ProcessTask(ctx, task); err != nil {
		t.Fatalf("process: %v", err)
	}

	obs := st.Observations()
	if len(obs) != 1 {
		t.Fatalf("got %d observations", len(obs))
	}
	o := obs[0]
	if o.OBSID != "2020-01-01/x001/y002_abc" {
		t.Fatalf("obs id %q", o.OBSID)
	}
	if o.PxTotal != 100 || o.PxWet != 100 || o.FracWet != 1 {
		t.Fatalf("observation %+v", o)
	}

	// a rerun with different pixels replaces, not duplicates
	e2, err := NewExtractor(st, src, rasters, true, 4, zerolog.Nop(), metrics.Init())
	if err != nil {
		t.Fatalf("new extractor: %v", err)
	}
	scene.Fill(rastersrc.SceneClearDry)
	if err := e2.ProcessTask(ctx, task); err != nil {
		t.Fatalf("reprocess: %v", err)
	}
	obs = st.Observations()
	if len(obs) != 1 || obs[0].PxDry != 100 {
		t.Fatalf("rerun gave %+v", obs)
	}
}

func TestExtractorSkipsProcessedTask(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	seed := store.Observation{OBSID: "2020-01-01/x001/y002_abc", UID: "abc", SolarDay: "2020-01-01"}
	if err := st.UpsertObservations(ctx, []store.Observation{seed}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	// empty raster store: a real attempt would fail, a skip will not
	e, err := NewExtractor(st, rastersrc.NewMemorySource(), objstore.NewFS(t.TempDir()), false, 4, zerolog.Nop(), metrics.Init())
	if err != nil {
		t.Fatalf("new extractor: %v", err)
	}
	task := tasks.Task{SolarDay: "2020-01-01", TileX: 1, TileY: 2}
	if err := e.ProcessTask(ctx, task); err != nil {
		t.Fatalf("expected skip, got %v", err)
	}
}
