// change-worker processes one chunk of a change manifest: for every
// (solar day, tile) task it loads the scene, counts each waterbody's wet,
// dry and invalid pixels and upserts the observation rows.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/hydrosight/waterbodies/internal/change"
	"github.com/hydrosight/waterbodies/internal/config"
	"github.com/hydrosight/waterbodies/internal/logger"
	"github.com/hydrosight/waterbodies/internal/metrics"
	"github.com/hydrosight/waterbodies/internal/objstore"
	"github.com/hydrosight/waterbodies/internal/pipeline"
	"github.com/hydrosight/waterbodies/internal/rastersrc"
	"github.com/hydrosight/waterbodies/internal/store"
	"github.com/hydrosight/waterbodies/internal/tasks"
)

func main() {
	os.Exit(run())
}

func run() int {
	manifestKey := flag.String("manifest", "change-tasks.json", "manifest key in the tasks store")
	chunk := flag.Int("chunk", 0, "chunk index this worker owns")
	chunks := flag.Int("chunks", 1, "total number of chunks")
	flag.Parse()

	cfg := config.FromEnv()
	log := logger.Build(logger.Config{
		Level:     cfg.LogLevel,
		Console:   cfg.LogConsole,
		Component: "change-worker",
	}, os.Stdout)

	met := metrics.Init()
	if cfg.MetricsEnabled {
		go func() {
			if err := met.Serve(cfg.MetricsAddr, cfg.MetricsPath); err != nil {
				log.Error().Err(err).Msg("metrics endpoint failed")
			}
		}()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	taskStore, err := objstore.Open(ctx, cfg.TasksLocation)
	if err != nil {
		log.Error().Err(err).Msg("open tasks store")
		return 1
	}
	m, err := tasks.ReadManifest(ctx, taskStore, *manifestKey)
	if err != nil {
		log.Error().Err(err).Msg("read manifest")
		return 1
	}
	if *chunk < 0 || *chunk >= *chunks {
		log.Error().Int("chunk", *chunk).Int("chunks", *chunks).Msg("chunk index out of range")
		return 1
	}
	mine := tasks.Chunk(m.Tasks, *chunks)[*chunk]
	log.Info().Int("tasks", len(mine)).Int("chunk", *chunk).Msg("chunk claimed")

	st, err := store.NewPostgres(ctx, cfg.StoreDSN)
	if err != nil {
		log.Error().Err(err).Msg("connect to store")
		return 1
	}
	defer st.Close()

	rasterStore, err := objstore.Open(ctx, cfg.RastersLocation)
	if err != nil {
		log.Error().Err(err).Msg("open rasters store")
		return 1
	}
	extentStore, err := objstore.Open(ctx, cfg.ExtentRastersLocation)
	if err != nil {
		log.Error().Err(err).Msg("open extent rasters store")
		return 1
	}

	ext, err := change.NewExtractor(st, rastersrc.NewStoreSource(rasterStore), extentStore,
		cfg.Overwrite, cfg.MaskCacheSize, log, met)
	if err != nil {
		log.Error().Err(err).Msg("build extractor")
		return 1
	}

	failed := pipeline.Run(ctx, log, met, "change", mine, cfg.Workers, ext.ProcessTask)
	failedKey := fmt.Sprintf("failed/change/chunk-%04d", *chunk)
	if err := tasks.WriteFailed(ctx, taskStore, failedKey, failed); err != nil {
		log.Error().Err(err).Msg("record failed tasks")
		return 1
	}
	if len(failed) > 0 {
		log.Warn().Int("failed", len(failed)).Str("key", failedKey).Msg("chunk finished with failures")
		return 1
	}
	log.Info().Int("tasks", len(mine)).Msg("chunk finished")
	return 0
}
