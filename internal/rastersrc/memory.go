package rastersrc

import (
	"context"
	"fmt"
	"math"

	"github.com/google/uuid"

	"github.com/hydrosight/waterbodies/internal/grid"
	"github.com/hydrosight/waterbodies/internal/raster"
)

// MemorySource serves rasters held in memory, for tests and small runs.
type MemorySource struct {
	summaries map[uuid.UUID]*Summary
	scenes    map[uuid.UUID]*raster.Raster[uint8]
	landSea   map[grid.TileIndex]*raster.Raster[uint8]
}

func NewMemorySource() *MemorySource {
	return &MemorySource{
		summaries: make(map[uuid.UUID]*Summary),
		scenes:    make(map[uuid.UUID]*raster.Raster[uint8]),
		landSea:   make(map[grid.TileIndex]*raster.Raster[uint8]),
	}
}

func (m *MemorySource) AddSummary(id uuid.UUID, s *Summary) { m.summaries[id] = s }

func (m *MemorySource) AddScene(id uuid.UUID, r *raster.Raster[uint8]) { m.scenes[id] = r }

func (m *MemorySource) AddLandSea(tile grid.TileIndex, r *raster.Raster[uint8]) {
	m.landSea[tile] = r
}

func (m *MemorySource) Summary(_ context.Context, gb grid.GeoBox, datasetIDs []uuid.UUID) (*Summary, error) {
	freq := raster.New[float32](gb)
	freq.Fill(float32(math.NaN()))
	clear := raster.New[int16](gb)
	clear.Fill(ClearCountNoData)
	for _, id := range datasetIDs {
		s, ok := m.summaries[id]
		if !ok {
			return nil, fmt.Errorf("no summary for dataset %s", id)
		}
		if !sameShape(s.Frequency.GB, gb) {
			return nil, fmt.Errorf("summary %s: geobox mismatch", id)
		}
		fuseFrequency(freq, s.Frequency)
		fuseClearCount(clear, s.ClearCount)
	}
	return &Summary{Frequency: freq, ClearCount: clear}, nil
}

func (m *MemorySource) Scene(_ context.Context, gb grid.GeoBox, datasetIDs []uuid.UUID) (*raster.Raster[uint8], error) {
	out := raster.New[uint8](gb)
	out.Fill(SceneNoData)
	for _, id := range datasetIDs {
		r, ok := m.scenes[id]
		if !ok {
			return nil, fmt.Errorf("no scene for dataset %s", id)
		}
		if !sameShape(r.GB, gb) {
			return nil, fmt.Errorf("scene %s: geobox mismatch", id)
		}
		fuseScene(out, r)
	}
	return out, nil
}

func (m *MemorySource) LandSea(_ context.Context, tile grid.TileIndex) (*raster.Raster[uint8], error) {
	r, ok := m.landSea[tile]
	if !ok {
		return nil, fmt.Errorf("no land/sea mask for tile %s", grid.TileID(tile))
	}
	return r, nil
}
