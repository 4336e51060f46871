package rastersrc

import (
	"context"
	"fmt"
	"math"

	"github.com/google/uuid"

	"github.com/hydrosight/waterbodies/internal/grid"
	"github.com/hydrosight/waterbodies/internal/objstore"
	"github.com/hydrosight/waterbodies/internal/raster"
)

const (
	BandFrequency  = "frequency"
	BandClearCount = "clear_count"
	BandWater      = "water"
)

// DatasetKey is the object-store key for one band of one dataset.
func DatasetKey(id uuid.UUID, band string) string {
	return fmt.Sprintf("rasters/%s/%s.wbr", id, band)
}

// LandSeaKey is the object-store key for a tile's land/sea mask.
func LandSeaKey(tile grid.TileIndex) string {
	return fmt.Sprintf("ancillary/landsea/%s.wbr", grid.TileID(tile))
}

// StoreSource reads tile-aligned rasters from an object store. Each dataset
// band is one encoded raster covering exactly one tile geobox; ingestion
// writes them, the pipeline only reads. The land/sea masks may live in a
// separate store.
type StoreSource struct {
	store   objstore.Store
	landSea objstore.Store
}

func NewStoreSource(store objstore.Store) *StoreSource {
	return &StoreSource{store: store, landSea: store}
}

func NewStoreSourceWithLandSea(store, landSea objstore.Store) *StoreSource {
	return &StoreSource{store: store, landSea: landSea}
}

func (s *StoreSource) Summary(ctx context.Context, gb grid.GeoBox, datasetIDs []uuid.UUID) (*Summary, error) {
	freq := raster.New[float32](gb)
	freq.Fill(float32(math.NaN()))
	clear := raster.New[int16](gb)
	clear.Fill(ClearCountNoData)
	for _, id := range datasetIDs {
		f, err := loadBand[float32](ctx, s.store, id, BandFrequency, gb)
		if err != nil {
			return nil, err
		}
		c, err := loadBand[int16](ctx, s.store, id, BandClearCount, gb)
		if err != nil {
			return nil, err
		}
		fuseFrequency(freq, f)
		fuseClearCount(clear, c)
	}
	return &Summary{Frequency: freq, ClearCount: clear}, nil
}

func (s *StoreSource) Scene(ctx context.Context, gb grid.GeoBox, datasetIDs []uuid.UUID) (*raster.Raster[uint8], error) {
	out := raster.New[uint8](gb)
	out.Fill(SceneNoData)
	for _, id := range datasetIDs {
		r, err := loadBand[uint8](ctx, s.store, id, BandWater, gb)
		if err != nil {
			return nil, err
		}
		fuseScene(out, r)
	}
	return out, nil
}

func (s *StoreSource) LandSea(ctx context.Context, tile grid.TileIndex) (*raster.Raster[uint8], error) {
	body, err := s.landSea.Get(ctx, LandSeaKey(tile))
	if err != nil {
		return nil, fmt.Errorf("land/sea mask for %s: %w", grid.TileID(tile), err)
	}
	return raster.Decode[uint8](body)
}

// PutBand encodes and stores one dataset band, for ingestion and tests.
func PutBand[T raster.Pixel](ctx context.Context, store objstore.Store, id uuid.UUID, band string, r *raster.Raster[T]) error {
	return store.Put(ctx, DatasetKey(id, band), raster.Encode(r))
}

// PutLandSea encodes and stores a tile's land/sea mask.
func PutLandSea(ctx context.Context, store objstore.Store, tile grid.TileIndex, r *raster.Raster[uint8]) error {
	return store.Put(ctx, LandSeaKey(tile), raster.Encode(r))
}

func loadBand[T raster.Pixel](ctx context.Context, store objstore.Store, id uuid.UUID, band string, gb grid.GeoBox) (*raster.Raster[T], error) {
	body, err := store.Get(ctx, DatasetKey(id, band))
	if err != nil {
		return nil, fmt.Errorf("dataset %s band %s: %w", id, band, err)
	}
	r, err := raster.Decode[T](body)
	if err != nil {
		return nil, fmt.Errorf("dataset %s band %s: %w", id, band, err)
	}
	if !sameShape(r.GB, gb) {
		return nil, fmt.Errorf("dataset %s band %s: geobox mismatch", id, band)
	}
	return r, nil
}
