package store

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkt"

	"github.com/hydrosight/waterbodies/internal/inventory"
)

// Postgres stores the inventory and observations in PostGIS. Geometries are
// kept in EPSG:4326 to match the published inventory.
type Postgres struct {
	pool *pgxpool.Pool
}

func NewPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect to store: %w", err)
	}
	return &Postgres{pool: pool}, nil
}

func (p *Postgres) Close() {
	p.pool.Close()
}

// EnsureSchema creates the tables when missing. It never migrates existing
// ones.
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	_, err := p.pool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS waterbodies (
	uid         text PRIMARY KEY,
	wb_id       integer NOT NULL,
	area_m2     double precision NOT NULL,
	perimeter_m double precision NOT NULL,
	length_m    double precision NOT NULL,
	geometry    geometry(Polygon, 4326) NOT NULL
);
CREATE INDEX IF NOT EXISTS waterbodies_geometry_idx ON waterbodies USING gist (geometry);

CREATE TABLE IF NOT EXISTS waterbody_observations (
	obs_id          text PRIMARY KEY,
	uid             text NOT NULL,
	solar_day       date NOT NULL,
	px_total        integer NOT NULL,
	px_wet          integer NOT NULL,
	px_dry          integer NOT NULL,
	px_invalid      integer NOT NULL,
	frac_wet        double precision NOT NULL,
	frac_dry        double precision NOT NULL,
	frac_invalid    double precision NOT NULL,
	area_wet_m2     double precision NOT NULL,
	area_dry_m2     double precision NOT NULL,
	area_invalid_m2 double precision NOT NULL
);
CREATE INDEX IF NOT EXISTS waterbody_observations_uid_day_idx
	ON waterbody_observations (uid, solar_day);
`)
	if err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

func (p *Postgres) UpsertWaterbodies(ctx context.Context, ws []inventory.Waterbody, update bool) error {
	conflict := "ON CONFLICT (uid) DO NOTHING"
	if update {
		conflict = `ON CONFLICT (uid) DO UPDATE SET
			wb_id = excluded.wb_id,
			area_m2 = excluded.area_m2,
			perimeter_m = excluded.perimeter_m,
			length_m = excluded.length_m,
			geometry = excluded.geometry`
	}
	batch := &pgx.Batch{}
	for _, w := range ws {
		batch.Queue(`INSERT INTO waterbodies
			(uid, wb_id, area_m2, perimeter_m, length_m, geometry)
			VALUES ($1, $2, $3, $4, $5, ST_GeomFromText($6, 4326)) `+conflict,
			w.UID, w.WBID, w.AreaM2, w.PerimeterM, w.LengthM,
			wkt.MarshalString(w.Geometry))
	}
	return p.sendBatch(ctx, batch, "upsert waterbodies")
}

func (p *Postgres) LoadWaterbodies(ctx context.Context) ([]inventory.Waterbody, error) {
	rows, err := p.pool.Query(ctx, `SELECT
		uid, wb_id, area_m2, perimeter_m, length_m, ST_AsText(geometry)
		FROM waterbodies ORDER BY uid`)
	if err != nil {
		return nil, fmt.Errorf("load waterbodies: %w", err)
	}
	defer rows.Close()

	var out []inventory.Waterbody
	for rows.Next() {
		var w inventory.Waterbody
		var geomText string
		if err := rows.Scan(&w.UID, &w.WBID, &w.AreaM2, &w.PerimeterM, &w.LengthM, &geomText); err != nil {
			return nil, fmt.Errorf("scan waterbody: %w", err)
		}
		geom, err := wkt.Unmarshal(geomText)
		if err != nil {
			return nil, fmt.Errorf("decode geometry for %s: %w", w.UID, err)
		}
		poly, ok := geom.(orb.Polygon)
		if !ok {
			return nil, fmt.Errorf("waterbody %s: geometry is %T, want polygon", w.UID, geom)
		}
		w.Geometry = poly
		w.Centroid = inventory.Centroid(poly)
		out = append(out, w)
	}
	return out, rows.Err()
}

func (p *Postgres) UpsertObservations(ctx context.Context, obs []Observation) error {
	batch := &pgx.Batch{}
	for _, o := range obs {
		batch.Queue(`INSERT INTO waterbody_observations
			(obs_id, uid, solar_day,
			 px_total, px_wet, px_dry, px_invalid,
			 frac_wet, frac_dry, frac_invalid,
			 area_wet_m2, area_dry_m2, area_invalid_m2)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
			ON CONFLICT (obs_id) DO UPDATE SET
				px_total = excluded.px_total,
				px_wet = excluded.px_wet,
				px_dry = excluded.px_dry,
				px_invalid = excluded.px_invalid,
				frac_wet = excluded.frac_wet,
				frac_dry = excluded.frac_dry,
				frac_invalid = excluded.frac_invalid,
				area_wet_m2 = excluded.area_wet_m2,
				area_dry_m2 = excluded.area_dry_m2,
				area_invalid_m2 = excluded.area_invalid_m2`,
			o.OBSID, o.UID, o.SolarDay,
			o.PxTotal, o.PxWet, o.PxDry, o.PxInvalid,
			o.FracWet, o.FracDry, o.FracInvalid,
			o.AreaWetM2, o.AreaDryM2, o.AreaInvalidM2)
	}
	return p.sendBatch(ctx, batch, "upsert observations")
}

func (p *Postgres) TaskObservationsExist(ctx context.Context, taskID string) (bool, error) {
	var exists bool
	// escape the underscore so LIKE treats it literally
	err := p.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM waterbody_observations WHERE obs_id LIKE $1 || '\_%')`,
		taskID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check task %s: %w", taskID, err)
	}
	return exists, nil
}

func (p *Postgres) LastObservationDay(ctx context.Context) (string, error) {
	var day *string
	err := p.pool.QueryRow(ctx,
		`SELECT to_char(max(solar_day), 'YYYY-MM-DD') FROM waterbody_observations`).Scan(&day)
	if err != nil {
		return "", fmt.Errorf("last observation day: %w", err)
	}
	if day == nil {
		return "", nil
	}
	return *day, nil
}

// maxBatchRetries bounds how often a failed batch is resent before the task
// is surfaced as failed.
const maxBatchRetries = 3

func (p *Postgres) sendBatch(ctx context.Context, batch *pgx.Batch, what string) error {
	if batch.Len() == 0 {
		return nil
	}
	// resending is safe: every queued statement is an upsert
	err := withRetry(ctx, maxBatchRetries, func() error {
		br := p.pool.SendBatch(ctx, batch)
		defer br.Close()
		for i := 0; i < batch.Len(); i++ {
			if _, err := br.Exec(); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%s: %w", what, err)
	}
	return nil
}

// withRetry runs op until it succeeds, waiting with capped exponential
// backoff between attempts.
func withRetry(ctx context.Context, attempts int, op func() error) error {
	var lastErr error
	for attempt := 0; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if attempt < attempts {
			backoff := time.Duration(math.Pow(2, float64(attempt))) * 100 * time.Millisecond
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
		}
	}
	return lastErr
}
