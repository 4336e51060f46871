// change-tasks prepares a surface-area-change run: burns the inventory into
// per-tile label rasters when asked, then builds the manifest of
// (solar day, tile) scene tasks. With -gapfill only the solar days touched
// by datasets indexed since the last stored observation are rebuilt.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/hydrosight/waterbodies/internal/catalog"
	"github.com/hydrosight/waterbodies/internal/change"
	"github.com/hydrosight/waterbodies/internal/config"
	"github.com/hydrosight/waterbodies/internal/grid"
	"github.com/hydrosight/waterbodies/internal/logger"
	"github.com/hydrosight/waterbodies/internal/objstore"
	"github.com/hydrosight/waterbodies/internal/store"
	"github.com/hydrosight/waterbodies/internal/tasks"
)

func main() {
	os.Exit(run())
}

func run() int {
	manifestKey := flag.String("manifest", "change-tasks.json", "manifest key in the tasks store")
	rasterize := flag.Bool("rasterize", false, "burn the inventory into label rasters first")
	gapfill := flag.Bool("gapfill", false, "only days touched by datasets indexed since the last stored observation")
	flag.Parse()

	cfg := config.FromEnv()
	log := logger.Build(logger.Config{
		Level:     cfg.LogLevel,
		Console:   cfg.LogConsole,
		Component: "change-tasks",
	}, os.Stdout)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := store.NewPostgres(ctx, cfg.StoreDSN)
	if err != nil {
		log.Error().Err(err).Msg("connect to store")
		return 1
	}
	defer st.Close()

	extentStore, err := objstore.Open(ctx, cfg.ExtentRastersLocation)
	if err != nil {
		log.Error().Err(err).Msg("open extent rasters store")
		return 1
	}
	if *rasterize {
		if err := change.RasterizeInventory(ctx, st, extentStore, log); err != nil {
			log.Error().Err(err).Msg("rasterize inventory")
			return 1
		}
	}

	tiles, err := change.ExtentTiles(ctx, extentStore)
	if err != nil {
		log.Error().Err(err).Msg("list extent tiles")
		return 1
	}
	if len(tiles) == 0 {
		log.Error().Msg("no extent rasters found; run with -rasterize first")
		return 1
	}
	filter := make(map[grid.TileIndex]bool, len(tiles))
	for _, t := range tiles {
		filter[t] = true
	}

	catStore, err := objstore.Open(ctx, cfg.CatalogLocation)
	if err != nil {
		log.Error().Err(err).Msg("open catalog store")
		return 1
	}
	cat, err := catalog.Load(ctx, catStore, cfg.CatalogKey)
	if err != nil {
		log.Error().Err(err).Msg("load catalog")
		return 1
	}

	var datasets []catalog.Dataset
	var gapDays map[string]bool
	full := true
	if *gapfill {
		day, err := st.LastObservationDay(ctx)
		if err != nil {
			log.Error().Err(err).Msg("find last observation")
			return 1
		}
		if day != "" {
			datasets, gapDays, err = tasks.GapFillDatasets(ctx, cat, cfg.SceneProduct, day)
			if err != nil {
				log.Error().Err(err).Msg("resolve gap-fill datasets")
				return 1
			}
			full = false
			log.Info().Str("last_day", day).Int("days", len(gapDays)).Msg("gap filling")
		}
	}
	if full {
		datasets, err = cat.Find(ctx, catalog.Query{Product: cfg.SceneProduct})
		if err != nil {
			log.Error().Err(err).Msg("query catalog")
			return 1
		}
	}
	ts := tasks.Builder{BySolarDay: true, TileFilter: filter}.Build(datasets)
	if gapDays != nil {
		ts = tasks.FilterDays(ts, gapDays)
	}

	taskStore, err := objstore.Open(ctx, cfg.TasksLocation)
	if err != nil {
		log.Error().Err(err).Msg("open tasks store")
		return 1
	}
	m, err := tasks.WriteManifest(ctx, taskStore, *manifestKey, ts)
	if err != nil {
		log.Error().Err(err).Msg("write manifest")
		return 1
	}
	log.Info().
		Str("manifest", *manifestKey).
		Str("fingerprint", m.Fingerprint).
		Int("datasets", len(datasets)).
		Int("tiles", len(tiles)).
		Int("tasks", len(ts)).
		Msg("change manifest written")
	return 0
}
