// Package catalog indexes the rasters available to the pipeline. Every
// dataset is one product granule with a footprint in the working CRS and an
// acquisition timestamp; the task builder queries the catalog to decide
// which tiles have data and which datasets contribute to each task.
package catalog

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/paulmach/orb"
)

// Dataset is one indexed granule.
type Dataset struct {
	ID              uuid.UUID `json:"id"`
	Product         string    `json:"product"`
	Footprint       orb.Bound `json:"footprint"`
	AcquisitionTime time.Time `json:"acquisition_time"`
	CreationTime    time.Time `json:"creation_time"`
}

// Query selects datasets by product and, optionally, footprint overlap and
// time windows. Zero-valued fields are not filtered on.
type Query struct {
	Product string
	// Bound filters to datasets whose footprint intersects it.
	Bound orb.Bound
	// AcquiredAfter and AcquiredBefore bound the acquisition time
	// (inclusive start, exclusive end).
	AcquiredAfter  time.Time
	AcquiredBefore time.Time
	// CreatedAfter filters to datasets indexed after it, for gap-filling
	// runs that only want what is new.
	CreatedAfter time.Time
}

type Catalog interface {
	Find(ctx context.Context, q Query) ([]Dataset, error)
}

func (q Query) matches(d Dataset) bool {
	if q.Product != "" && d.Product != q.Product {
		return false
	}
	if !q.Bound.IsZero() && !q.Bound.Intersects(d.Footprint) {
		return false
	}
	if !q.AcquiredAfter.IsZero() && d.AcquisitionTime.Before(q.AcquiredAfter) {
		return false
	}
	if !q.AcquiredBefore.IsZero() && !d.AcquisitionTime.Before(q.AcquiredBefore) {
		return false
	}
	if !q.CreatedAfter.IsZero() && !d.CreationTime.After(q.CreatedAfter) {
		return false
	}
	return true
}
