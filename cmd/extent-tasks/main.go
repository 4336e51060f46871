// extent-tasks builds the task manifest for a historical-extent run: one
// task per grid tile covered by a water-summary dataset.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/hydrosight/waterbodies/internal/catalog"
	"github.com/hydrosight/waterbodies/internal/config"
	"github.com/hydrosight/waterbodies/internal/logger"
	"github.com/hydrosight/waterbodies/internal/objstore"
	"github.com/hydrosight/waterbodies/internal/tasks"
)

func main() {
	os.Exit(run())
}

func run() int {
	manifestKey := flag.String("manifest", "extent-tasks.json", "manifest key in the tasks store")
	flag.Parse()

	cfg := config.FromEnv()
	log := logger.Build(logger.Config{
		Level:     cfg.LogLevel,
		Console:   cfg.LogConsole,
		Component: "extent-tasks",
	}, os.Stdout)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

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
	datasets, err := cat.Find(ctx, catalog.Query{Product: cfg.SummaryProduct})
	if err != nil {
		log.Error().Err(err).Msg("query catalog")
		return 1
	}
	ts := tasks.Builder{}.Build(datasets)

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
		Int("tasks", len(ts)).
		Msg("extent manifest written")
	return 0
}
