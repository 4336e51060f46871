// Package store persists the canonical waterbody inventory and the per-scene
// observation time series. Writes are idempotent upserts keyed on uid and
// obs_id, so a retried task never duplicates rows.
package store

import (
	"context"

	"github.com/hydrosight/waterbodies/internal/inventory"
)

// Observation is one waterbody's wet/dry/invalid breakdown for one scene
// task. Fractions are of the waterbody's pixel count; areas are in square
// metres.
type Observation struct {
	OBSID    string
	UID      string
	SolarDay string

	PxTotal   int32
	PxWet     int32
	PxDry     int32
	PxInvalid int32

	FracWet     float64
	FracDry     float64
	FracInvalid float64

	AreaWetM2     float64
	AreaDryM2     float64
	AreaInvalidM2 float64
}

type Store interface {
	// UpsertWaterbodies writes inventory rows. With update set, existing
	// uids are refreshed in place; otherwise they are left untouched.
	UpsertWaterbodies(ctx context.Context, ws []inventory.Waterbody, update bool) error
	// LoadWaterbodies returns the whole inventory ordered by uid.
	LoadWaterbodies(ctx context.Context) ([]inventory.Waterbody, error)
	// UpsertObservations writes observation rows, replacing rows that
	// share an obs_id.
	UpsertObservations(ctx context.Context, obs []Observation) error
	// TaskObservationsExist reports whether any observation from the
	// given task id is already stored.
	TaskObservationsExist(ctx context.Context, taskID string) (bool, error)
	// LastObservationDay returns the most recent solar day with stored
	// observations, or "" when there are none.
	LastObservationDay(ctx context.Context) (string, error)
}
