// Package inventory assigns attributes and stable identities to the stitched
// continental polygon set. Every waterbody gets a uid derived from where it
// sits on the planet, so reruns over the same landscape mint the same ids,
// and a dense ordinal for compact joins.
package inventory

import (
	"errors"
	"fmt"
	"sort"

	"github.com/mmcloughlin/geohash"
	"github.com/paulmach/orb"
	"github.com/rs/zerolog"

	"github.com/hydrosight/waterbodies/internal/proj"
)

// UIDPrecision is the geohash length of a waterbody uid: 10 characters
// resolves to about a metre, far below the 30 m pixel.
const UIDPrecision = 10

// ErrUIDCollision means two distinct waterbodies hashed to the same uid.
// The identity scheme cannot tell them apart, so the run must stop rather
// than silently merge their histories.
var ErrUIDCollision = errors.New("inventory: uid collision")

// Waterbody is one inventory entry. Geometry and centroid are in EPSG:4326;
// the measures were taken in the equal-area working CRS.
type Waterbody struct {
	UID        string
	WBID       int32
	Geometry   orb.Polygon
	Centroid   orb.Point
	AreaM2     float64
	PerimeterM float64
	LengthM    float64
}

// Filters bound which polygons make the inventory.
type Filters struct {
	MinAreaM2  float64
	MaxLengthM float64
}

// Build computes attributes for the stitched polygons (in the working CRS),
// applies the area and length filters, reprojects to EPSG:4326 and assigns
// identities. The result is sorted by uid with wb_ids following that order.
func Build(polys []orb.Polygon, f Filters, log zerolog.Logger) ([]Waterbody, error) {
	byUID := make(map[string]int)
	var out []Waterbody
	dropped := struct{ degenerate, small, long int }{}

	for _, p := range polys {
		area := Area(p)
		if area <= 0 || len(p) == 0 || len(p[0]) < 4 {
			dropped.degenerate++
			log.Warn().Float64("area_m2", area).Msg("dropping degenerate polygon")
			continue
		}
		if area <= f.MinAreaM2 {
			dropped.small++
			continue
		}
		length := Length(p)
		if length > f.MaxLengthM {
			dropped.long++
			continue
		}

		centroid := proj.Inverse(Centroid(p))
		uid := geohash.EncodeWithPrecision(centroid[1], centroid[0], UIDPrecision)
		if prev, ok := byUID[uid]; ok {
			return nil, fmt.Errorf("%w: %s claimed by polygons %d and %d",
				ErrUIDCollision, uid, prev, len(out))
		}
		byUID[uid] = len(out)

		out = append(out, Waterbody{
			UID:        uid,
			Geometry:   proj.InversePolygon(p),
			Centroid:   centroid,
			AreaM2:     area,
			PerimeterM: Perimeter(p),
			LengthM:    length,
		})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].UID < out[j].UID })
	for i := range out {
		out[i].WBID = int32(i + 1)
	}
	log.Info().
		Int("waterbodies", len(out)).
		Int("dropped_degenerate", dropped.degenerate).
		Int("dropped_small", dropped.small).
		Int("dropped_long", dropped.long).
		Msg("inventory built")
	return out, nil
}
