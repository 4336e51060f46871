// extent-merge stitches the per-tile polygon sets into the continental
// inventory: merge across tile edges, filter, attribute, assign identities
// and upsert into the waterbodies store.
package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/hydrosight/waterbodies/internal/config"
	"github.com/hydrosight/waterbodies/internal/inventory"
	"github.com/hydrosight/waterbodies/internal/logger"
	"github.com/hydrosight/waterbodies/internal/objstore"
	"github.com/hydrosight/waterbodies/internal/stitch"
	"github.com/hydrosight/waterbodies/internal/store"
)

func main() {
	os.Exit(run())
}

func run() int {
	flag.Parse()

	cfg := config.FromEnv()
	log := logger.Build(logger.Config{
		Level:     cfg.LogLevel,
		Console:   cfg.LogConsole,
		Component: "extent-merge",
	}, os.Stdout)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	polyStore, err := objstore.Open(ctx, cfg.PolygonsLocation)
	if err != nil {
		log.Error().Err(err).Msg("open polygons store")
		return 1
	}
	polys, err := stitch.Stitch(ctx, polyStore, log)
	if err != nil {
		log.Error().Err(err).Msg("stitch tiles")
		return 1
	}

	ws, err := inventory.Build(polys, inventory.Filters{
		MinAreaM2:  cfg.MinAreaM2,
		MaxLengthM: cfg.MaxLengthM,
	}, log)
	if err != nil {
		if errors.Is(err, inventory.ErrUIDCollision) {
			log.Error().Err(err).Msg("uid collision, refusing to write a corrupt inventory")
		} else {
			log.Error().Err(err).Msg("build inventory")
		}
		return 1
	}

	st, err := store.NewPostgres(ctx, cfg.StoreDSN)
	if err != nil {
		log.Error().Err(err).Msg("connect to store")
		return 1
	}
	defer st.Close()
	if err := st.EnsureSchema(ctx); err != nil {
		log.Error().Err(err).Msg("ensure schema")
		return 1
	}
	if err := st.UpsertWaterbodies(ctx, ws, cfg.UpdateRows); err != nil {
		log.Error().Err(err).Msg("upsert inventory")
		return 1
	}
	log.Info().Int("waterbodies", len(ws)).Bool("update_rows", cfg.UpdateRows).Msg("inventory upserted")
	return 0
}
