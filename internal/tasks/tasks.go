// Package tasks turns catalog query results into the unit of work the
// pipeline distributes: one tile (extent runs) or one tile on one solar day
// (change runs), together with the dataset ids that cover it.
package tasks

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/paulmach/orb"

	"github.com/hydrosight/waterbodies/internal/catalog"
	"github.com/hydrosight/waterbodies/internal/grid"
	"github.com/hydrosight/waterbodies/internal/proj"
)

// Task is one unit of work. SolarDay is empty for extent tasks.
type Task struct {
	SolarDay   string      `json:"solar_day,omitempty"`
	TileX      int         `json:"tile_index_x"`
	TileY      int         `json:"tile_index_y"`
	DatasetIDs []uuid.UUID `json:"task_datasets_ids"`
}

func (t Task) Tile() grid.TileIndex {
	return grid.TileIndex{X: t.TileX, Y: t.TileY}
}

// ID is the task's stable identifier: "solar-day/x###/y###" for change
// tasks, the bare tile id for extent tasks.
func (t Task) ID() string {
	if t.SolarDay == "" {
		return grid.TileID(t.Tile())
	}
	return grid.TaskID(t.SolarDay, t.Tile())
}

// Builder groups datasets into tasks. With BySolarDay set, datasets are
// binned by the local solar day of their acquisition; otherwise all datasets
// touching a tile form one task. TileFilter, when non-nil, keeps only the
// listed tiles.
type Builder struct {
	BySolarDay bool
	TileFilter map[grid.TileIndex]bool
}

func (b Builder) Build(datasets []catalog.Dataset) []Task {
	type key struct {
		day  string
		tile grid.TileIndex
	}
	groups := make(map[key][]uuid.UUID)
	for _, d := range datasets {
		day := ""
		if b.BySolarDay {
			day = SolarDay(d.AcquisitionTime, d.Footprint)
		}
		for _, tile := range grid.Tiles(d.Footprint) {
			if b.TileFilter != nil && !b.TileFilter[tile] {
				continue
			}
			groups[key{day, tile}] = append(groups[key{day, tile}], d.ID)
		}
	}

	out := make([]Task, 0, len(groups))
	for k, ids := range groups {
		sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
		out = append(out, Task{SolarDay: k.day, TileX: k.tile.X, TileY: k.tile.Y, DatasetIDs: ids})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].SolarDay != out[j].SolarDay {
			return out[i].SolarDay < out[j].SolarDay
		}
		if out[i].TileY != out[j].TileY {
			return out[i].TileY < out[j].TileY
		}
		return out[i].TileX < out[j].TileX
	})
	return out
}

// SolarDay is the local solar date of an acquisition: UTC shifted by the
// footprint centre's longitude at 240 seconds per degree.
func SolarDay(t time.Time, footprint orb.Bound) string {
	lonlat := proj.Inverse(footprint.Center())
	offset := time.Duration(lonlat[0]*240) * time.Second
	return t.UTC().Add(offset).Format("2006-01-02")
}

// SolarDays returns the sorted distinct solar days of the datasets'
// acquisitions.
func SolarDays(datasets []catalog.Dataset) []string {
	seen := make(map[string]bool)
	out := make([]string, 0, len(datasets))
	for _, d := range datasets {
		day := SolarDay(d.AcquisitionTime, d.Footprint)
		if !seen[day] {
			seen[day] = true
			out = append(out, day)
		}
	}
	sort.Strings(out)
	return out
}

// GapFillDatasets resolves the datasets a gap-filling run must process.
// Candidates are selected by indexing time, not acquisition time: a dataset
// indexed late can carry an arbitrarily old acquisition date, and an
// acquisition-time query would never see it. Each affected solar day is then
// re-queried by acquisition time so the day's tasks carry the complete
// dataset set, not just the late arrivals. The returned day set limits task
// building to the affected days.
func GapFillDatasets(ctx context.Context, cat catalog.Catalog, product, lastDay string) ([]catalog.Dataset, map[string]bool, error) {
	since, err := time.Parse("2006-01-02", lastDay)
	if err != nil {
		return nil, nil, fmt.Errorf("parse last observation day %q: %w", lastDay, err)
	}
	// back up one day: lastDay is a solar date, indexing times are UTC
	fresh, err := cat.Find(ctx, catalog.Query{Product: product, CreatedAfter: since.AddDate(0, 0, -1)})
	if err != nil {
		return nil, nil, fmt.Errorf("find new datasets: %w", err)
	}

	days := SolarDays(fresh)
	daySet := make(map[string]bool, len(days))
	seen := make(map[uuid.UUID]bool)
	var out []catalog.Dataset
	for _, day := range days {
		daySet[day] = true
		start, err := time.Parse("2006-01-02", day)
		if err != nil {
			return nil, nil, fmt.Errorf("parse solar day %q: %w", day, err)
		}
		// a solar day reaches into both neighbouring UTC dates
		got, err := cat.Find(ctx, catalog.Query{
			Product:        product,
			AcquiredAfter:  start.AddDate(0, 0, -1),
			AcquiredBefore: start.AddDate(0, 0, 2),
		})
		if err != nil {
			return nil, nil, fmt.Errorf("find datasets for %s: %w", day, err)
		}
		for _, d := range got {
			if !seen[d.ID] {
				seen[d.ID] = true
				out = append(out, d)
			}
		}
	}
	return out, daySet, nil
}

// FilterDays keeps only the tasks on the listed solar days.
func FilterDays(ts []Task, days map[string]bool) []Task {
	out := make([]Task, 0, len(ts))
	for _, t := range ts {
		if days[t.SolarDay] {
			out = append(out, t)
		}
	}
	return out
}

// Chunk splits tasks into n near-equal contiguous chunks. Leading chunks are
// one element longer when the split is uneven; empty chunks appear when
// n exceeds the task count.
func Chunk(ts []Task, n int) [][]Task {
	if n <= 0 {
		n = 1
	}
	out := make([][]Task, n)
	base, extra := len(ts)/n, len(ts)%n
	pos := 0
	for i := 0; i < n; i++ {
		size := base
		if i < extra {
			size++
		}
		out[i] = ts[pos : pos+size]
		pos += size
	}
	return out
}
