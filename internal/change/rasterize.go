// Package change tracks each waterbody's surface over time. A one-off pass
// burns the frozen inventory into per-tile label rasters; workers then read
// one scene at a time and count wet, dry and invalid pixels inside each
// label, appending an observation row per waterbody per solar day.
package change

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/hydrosight/waterbodies/internal/grid"
	"github.com/hydrosight/waterbodies/internal/objstore"
	"github.com/hydrosight/waterbodies/internal/proj"
	"github.com/hydrosight/waterbodies/internal/raster"
	"github.com/hydrosight/waterbodies/internal/store"
)

// ExtentRasterKey is the object-store key of a tile's wb_id label raster.
func ExtentRasterKey(tile grid.TileIndex) string {
	return fmt.Sprintf("historical_extent_%s.wbr", grid.TileID(tile))
}

// ExtentIndexKey is the key of the wb_id-to-uid sidecar for a tile.
func ExtentIndexKey(tile grid.TileIndex) string {
	return fmt.Sprintf("historical_extent_%s.json", grid.TileID(tile))
}

// RasterizeInventory burns every stored waterbody into the label rasters of
// the tiles it touches and writes them with their uid sidecars. Labels are
// wb_ids, so they are dense, stable and fit an int32 raster.
func RasterizeInventory(ctx context.Context, st store.Store, out objstore.Store, log zerolog.Logger) error {
	ws, err := st.LoadWaterbodies(ctx)
	if err != nil {
		return fmt.Errorf("load inventory: %w", err)
	}

	type tileData struct {
		labels *raster.Raster[int32]
		uids   map[int32]string
	}
	tiles := make(map[grid.TileIndex]*tileData)

	uidByWBID := make(map[int32]string, len(ws))
	for _, w := range ws {
		uidByWBID[w.WBID] = w.UID
		poly := proj.ForwardPolygon(w.Geometry)
		for _, tile := range grid.Tiles(poly.Bound()) {
			td, ok := tiles[tile]
			if !ok {
				td = &tileData{
					labels: raster.New[int32](grid.TileGeoBox(tile)),
					uids:   make(map[int32]string),
				}
				tiles[tile] = td
			}
			raster.Rasterize(poly, td.labels, w.WBID)
		}
	}

	for tile, td := range tiles {
		// the sidecar lists only the labels that actually cover pixels
		// in this tile
		for _, v := range td.labels.Pix {
			if v != 0 {
				td.uids[v] = uidByWBID[v]
			}
		}
		if len(td.uids) == 0 {
			continue
		}
		if err := out.Put(ctx, ExtentRasterKey(tile), raster.Encode(td.labels)); err != nil {
			return fmt.Errorf("write extent raster for %s: %w", grid.TileID(tile), err)
		}
		body, err := json.Marshal(td.uids)
		if err != nil {
			return err
		}
		if err := out.Put(ctx, ExtentIndexKey(tile), body); err != nil {
			return fmt.Errorf("write extent index for %s: %w", grid.TileID(tile), err)
		}
	}
	log.Info().Int("waterbodies", len(ws)).Int("tiles", len(tiles)).Msg("inventory rasterised")
	return nil
}

// ExtentTiles lists the tiles that have a burned inventory raster.
func ExtentTiles(ctx context.Context, st objstore.Store) ([]grid.TileIndex, error) {
	keys, err := st.List(ctx, "historical_extent_")
	if err != nil {
		return nil, err
	}
	var out []grid.TileIndex
	for _, key := range keys {
		var x, y int
		if _, err := fmt.Sscanf(key, "historical_extent_x%03d_y%03d.wbr", &x, &y); err != nil {
			continue
		}
		out = append(out, grid.TileIndex{X: x, Y: y})
	}
	return out, nil
}
