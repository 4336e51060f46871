// Package rastersrc loads pipeline input rasters for a tile: water-frequency
// summaries, per-scene water classifications and the land/sea mask. A Source
// fuses the datasets the catalog resolved for a task into single tile-shaped
// rasters.
package rastersrc

import (
	"context"
	"math"

	"github.com/google/uuid"

	"github.com/hydrosight/waterbodies/internal/grid"
	"github.com/hydrosight/waterbodies/internal/raster"
)

const (
	// ClearCountNoData marks pixels with no valid observation count.
	ClearCountNoData int16 = -999

	// Scene classification values. Anything else is an invalid observation.
	SceneClearWet uint8 = 128
	SceneClearDry uint8 = 0
	SceneNoData   uint8 = 1

	// Land/sea mask classes.
	LandSeaLand       uint8 = 1
	LandSeaOceanSink  uint8 = 2
	LandSeaInlandSink uint8 = 3
	LandSeaNoData     uint8 = 255
)

// Summary holds the all-time water statistics for one tile.
type Summary struct {
	// Frequency is the fraction of clear observations that were wet,
	// NaN where no data exists.
	Frequency *raster.Raster[float32]
	// ClearCount is the number of clear observations per pixel.
	ClearCount *raster.Raster[int16]
}

type Source interface {
	// Summary loads and fuses the summary datasets onto the tile geobox.
	Summary(ctx context.Context, gb grid.GeoBox, datasetIDs []uuid.UUID) (*Summary, error)
	// Scene loads and fuses one solar day of scene datasets onto the tile
	// geobox. Clear pixels win over invalid ones when scenes overlap.
	Scene(ctx context.Context, gb grid.GeoBox, datasetIDs []uuid.UUID) (*raster.Raster[uint8], error)
	// LandSea loads the land/sea mask for a tile.
	LandSea(ctx context.Context, tile grid.TileIndex) (*raster.Raster[uint8], error)
}

// SceneClear reports whether a scene pixel is a usable observation.
func SceneClear(v uint8) bool {
	return v == SceneClearWet || v == SceneClearDry
}

func fuseFrequency(dst, src *raster.Raster[float32]) {
	for i, v := range src.Pix {
		if math.IsNaN(float64(dst.Pix[i])) && !math.IsNaN(float64(v)) {
			dst.Pix[i] = v
		}
	}
}

func fuseClearCount(dst, src *raster.Raster[int16]) {
	for i, v := range src.Pix {
		if dst.Pix[i] == ClearCountNoData && v != ClearCountNoData {
			dst.Pix[i] = v
		}
	}
}

func fuseScene(dst, src *raster.Raster[uint8]) {
	for i, v := range src.Pix {
		if SceneClear(dst.Pix[i]) {
			continue
		}
		if SceneClear(v) || dst.Pix[i] == SceneNoData {
			dst.Pix[i] = v
		}
	}
}

func sameShape(a, b grid.GeoBox) bool {
	return a.Width == b.Width && a.Height == b.Height &&
		a.OriginX == b.OriginX && a.OriginY == b.OriginY
}
