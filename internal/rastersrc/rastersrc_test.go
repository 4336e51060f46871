package rastersrc

import (
	"context"
	"math"
	"testing"

	"github.com/google/uuid"

	"github.com/hydrosight/waterbodies/internal/grid"
	"github.com/hydrosight/waterbodies/internal/objstore"
	"github.com/hydrosight/waterbodies/internal/raster"
)

func testGB(w, h int) grid.GeoBox {
	return grid.GeoBox{OriginX: 0, OriginY: float64(h) * grid.Resolution,
		Width: w, Height: h, ResX: grid.Resolution, ResY: -grid.Resolution}
}

func TestStoreSourceSummaryFuses(t *testing.T) {
	ctx := context.Background()
	store := objstore.NewFS(t.TempDir())
	src := NewStoreSource(store)
	gb := testGB(4, 4)

	a, b := uuid.New(), uuid.New()

	// dataset a covers the left half, b the right half
	fa := raster.New[float32](gb)
	fa.Fill(float32(math.NaN()))
	ca := raster.New[int16](gb)
	ca.Fill(ClearCountNoData)
	for y := 0; y < 4; y++ {
		for x := 0; x < 2; x++ {
			fa.Set(x, y, 0.25)
			ca.Set(x, y, 100)
		}
	}
	fb := raster.New[float32](gb)
	fb.Fill(float32(math.NaN()))
	cb := raster.New[int16](gb)
	cb.Fill(ClearCountNoData)
	for y := 0; y < 4; y++ {
		for x := 2; x < 4; x++ {
			fb.Set(x, y, 0.75)
			cb.Set(x, y, 50)
		}
	}
	for _, p := range []struct {
		id uuid.UUID
		f  *raster.Raster[float32]
		c  *raster.Raster[int16]
	}{{a, fa, ca}, {b, fb, cb}} {
		if err := PutBand(ctx, store, p.id, BandFrequency, p.f); err != nil {
			t.Fatalf("put frequency: %v", err)
		}
		if err := PutBand(ctx, store, p.id, BandClearCount, p.c); err != nil {
			t.Fatalf("put clear count: %v", err)
		}
	}

	sum, err := src.Summary(ctx, gb, []uuid.UUID{a, b})
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if got := sum.Frequency.At(0, 0); got != 0.25 {
		t.Fatalf("left frequency = %v, want 0.25", got)
	}
	if got := sum.Frequency.At(3, 0); got != 0.75 {
		t.Fatalf("right frequency = %v, want 0.75", got)
	}
	if got := sum.ClearCount.At(3, 3); got != 50 {
		t.Fatalf("right clear count = %v, want 50", got)
	}
}

func TestStoreSourceSceneClearWins(t *testing.T) {
	ctx := context.Background()
	store := objstore.NewFS(t.TempDir())
	src := NewStoreSource(store)
	gb := testGB(2, 1)

	a, b := uuid.New(), uuid.New()

	// first scene invalid everywhere, second clear wet
	ra := raster.New[uint8](gb)
	ra.Fill(64)
	rb := raster.New[uint8](gb)
	rb.Fill(SceneClearWet)
	if err := PutBand(ctx, store, a, BandWater, ra); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := PutBand(ctx, store, b, BandWater, rb); err != nil {
		t.Fatalf("put: %v", err)
	}

	got, err := src.Scene(ctx, gb, []uuid.UUID{a, b})
	if err != nil {
		t.Fatalf("scene: %v", err)
	}
	if got.At(0, 0) != SceneClearWet {
		t.Fatalf("fused pixel = %d, want clear wet", got.At(0, 0))
	}

	// once a pixel is clear, a later invalid scene does not clobber it
	got, err = src.Scene(ctx, gb, []uuid.UUID{b, a})
	if err != nil {
		t.Fatalf("scene: %v", err)
	}
	if got.At(0, 0) != SceneClearWet {
		t.Fatalf("clear pixel clobbered: %d", got.At(0, 0))
	}
}

func TestStoreSourceLandSeaMissing(t *testing.T) {
	src := NewStoreSource(objstore.NewFS(t.TempDir()))
	if _, err := src.LandSea(context.Background(), grid.TileIndex{X: 1, Y: 2}); err == nil {
		t.Fatal("expected error for missing land/sea mask")
	}
}

func TestMemorySourceGeoBoxMismatch(t *testing.T) {
	src := NewMemorySource()
	id := uuid.New()
	src.AddScene(id, raster.New[uint8](testGB(2, 2)))
	if _, err := src.Scene(context.Background(), testGB(3, 3), []uuid.UUID{id}); err == nil {
		t.Fatal("expected geobox mismatch error")
	}
}
