// Package extent turns all-time water-frequency summaries into per-tile
// waterbody polygons. A low threshold fixes the polygon outline and a higher
// one decides which outlines are real water, so noisy fringe pixels widen a
// waterbody without inventing new ones. Oversized regions are split along
// the distance-transform watershed before vectorising.
package extent

import (
	"context"
	"fmt"
	"math"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/rs/zerolog"

	"github.com/hydrosight/waterbodies/internal/grid"
	"github.com/hydrosight/waterbodies/internal/metrics"
	"github.com/hydrosight/waterbodies/internal/objstore"
	"github.com/hydrosight/waterbodies/internal/raster"
	"github.com/hydrosight/waterbodies/internal/rastersrc"
	"github.com/hydrosight/waterbodies/internal/tasks"
)

const (
	// markerErosionPx shrinks the detection mask before marker labelling
	// so thin bridges between basins do not seed joint markers.
	markerErosionPx = 1
	// minMarkerPx drops noise markers that would oversegment a region.
	minMarkerPx = 100
)

// Params are the raster-to-polygon extraction knobs.
type Params struct {
	DetectionThreshold   float64
	ExtentThreshold      float64
	MinValidObservations int
	MinPolygonSize       int
	MaxPolygonSize       int
	LandMaskErosionM     float64
}

// Processor extracts waterbody polygons for one tile at a time.
type Processor struct {
	params    Params
	src       rastersrc.Source
	out       objstore.Store
	overwrite bool
	masks     *lru.Cache[grid.TileIndex, *raster.Raster[uint8]]
	log       zerolog.Logger
	met       *metrics.Provider
}

func NewProcessor(params Params, src rastersrc.Source, out objstore.Store, overwrite bool, maskCacheSize int, log zerolog.Logger, met *metrics.Provider) (*Processor, error) {
	if maskCacheSize <= 0 {
		maskCacheSize = 1
	}
	masks, err := lru.New[grid.TileIndex, *raster.Raster[uint8]](maskCacheSize)
	if err != nil {
		return nil, err
	}
	return &Processor{
		params:    params,
		src:       src,
		out:       out,
		overwrite: overwrite,
		masks:     masks,
		log:       log,
		met:       met,
	}, nil
}

// TileKey is the object-store key for a tile's polygon set.
func TileKey(tile grid.TileIndex) string {
	return fmt.Sprintf("waterbodies_%s.geojson", grid.TileID(tile))
}

// ProcessTask extracts and stores the polygons for one tile. Existing output
// is left alone unless the processor was built with overwrite.
func (p *Processor) ProcessTask(ctx context.Context, t tasks.Task) error {
	key := TileKey(t.Tile())
	if !p.overwrite {
		ok, err := p.out.Exists(ctx, key)
		if err != nil {
			return fmt.Errorf("check %s: %w", key, err)
		}
		if ok {
			p.log.Debug().Str("task", t.ID()).Msg("output exists, skipping")
			return nil
		}
	}

	gb := grid.TileGeoBox(t.Tile())
	sum, err := p.src.Summary(ctx, gb, t.DatasetIDs)
	if err != nil {
		return fmt.Errorf("load summary for %s: %w", t.ID(), err)
	}
	land, err := p.landMask(ctx, t.Tile())
	if err != nil {
		return err
	}

	polys := p.extract(sum, land)
	if len(polys) == 0 {
		// nothing written for an empty tile, so a later run with more
		// data picks it up again
		p.log.Info().Str("task", t.ID()).Msg("no polygons, nothing written")
		return nil
	}
	fc := geojson.NewFeatureCollection()
	for _, poly := range polys {
		fc.Append(geojson.NewFeature(poly))
	}
	body, err := fc.MarshalJSON()
	if err != nil {
		return fmt.Errorf("encode polygons for %s: %w", t.ID(), err)
	}
	if err := p.out.Put(ctx, key, body); err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	p.met.PolygonsWritten.Add(float64(len(polys)))
	p.log.Info().Str("task", t.ID()).Int("polygons", len(polys)).Msg("tile processed")
	return nil
}

// landMask loads, filters and erodes the land/sea mask for a tile, caching
// the result. Land and inland-sink classes count as land; the mask is eroded
// so coastal water never produces polygons.
func (p *Processor) landMask(ctx context.Context, tile grid.TileIndex) (*raster.Raster[uint8], error) {
	if m, ok := p.masks.Get(tile); ok {
		return m, nil
	}
	raw, err := p.src.LandSea(ctx, tile)
	if err != nil {
		return nil, err
	}
	land := raster.New[uint8](raw.GB)
	for i, v := range raw.Pix {
		if v == rastersrc.LandSeaLand || v == rastersrc.LandSeaInlandSink {
			land.Pix[i] = 1
		}
	}
	radius := int(p.params.LandMaskErosionM / grid.Resolution)
	eroded := raster.Erode(land, radius)
	p.masks.Add(tile, eroded)
	return eroded, nil
}

// extract runs the raster pipeline: threshold, size filters, watershed split
// of oversized regions, detection containment, vectorise.
func (p *Processor) extract(sum *rastersrc.Summary, land *raster.Raster[uint8]) []orb.Polygon {
	gb := sum.Frequency.GB
	detection := raster.New[uint8](gb)
	extentMask := raster.New[uint8](gb)
	for i, f := range sum.Frequency.Pix {
		if land.Pix[i] == 0 || math.IsNaN(float64(f)) {
			continue
		}
		c := sum.ClearCount.Pix[i]
		if c == rastersrc.ClearCountNoData || int(c) < p.params.MinValidObservations {
			continue
		}
		if float64(f) > p.params.ExtentThreshold {
			extentMask.Pix[i] = 1
		}
		if float64(f) > p.params.DetectionThreshold {
			detection.Pix[i] = 1
		}
	}

	labels := raster.Label(extentMask)
	raster.RemoveSmall(labels, p.params.MinPolygonSize)

	large := raster.LargeMask(labels, p.params.MaxPolygonSize)
	if large.CountNonZero() > 0 {
		p.splitLarge(labels, large, detection)
	}

	hits := raster.OverlapCount(labels, detection)
	keep := make(map[int32]bool, len(hits))
	for l, n := range hits {
		if n > 0 {
			keep[l] = true
		}
	}
	raster.KeepLabels(labels, keep)
	// splitting can leave a segment under the minimum size
	raster.RemoveSmall(labels, p.params.MinPolygonSize)

	shapes := raster.Vectorize(labels)
	raster.SortShapes(shapes)
	polys := make([]orb.Polygon, len(shapes))
	for i, s := range shapes {
		polys[i] = s.Polygon
	}
	return polys
}

// splitLarge resegments the oversized regions in place. Markers come from
// the eroded detection mask; pixels the watershed cannot reach from any
// marker are dropped.
func (p *Processor) splitLarge(labels *raster.Raster[int32], large, detection *raster.Raster[uint8]) {
	markerMask := raster.New[uint8](large.GB)
	for i := range markerMask.Pix {
		if large.Pix[i] != 0 && detection.Pix[i] != 0 {
			markerMask.Pix[i] = 1
		}
	}
	markers := raster.Label(raster.Erode(markerMask, markerErosionPx))
	raster.RemoveSmall(markers, minMarkerPx)

	dist := raster.DistanceTransform(large)
	heights := raster.New[float64](large.GB)
	for i, d := range dist.Pix {
		heights.Pix[i] = -d
	}
	segments := raster.Watershed(heights, markers, large)

	var offset int32
	for _, v := range labels.Pix {
		if v > offset {
			offset = v
		}
	}
	for i := range labels.Pix {
		if large.Pix[i] == 0 {
			continue
		}
		if s := segments.Pix[i]; s > 0 {
			labels.Pix[i] = offset + s
		} else {
			labels.Pix[i] = 0
		}
	}
}
