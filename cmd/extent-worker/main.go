// extent-worker processes one chunk of an extent manifest, writing a
// polygon set per tile. Array jobs run many workers over disjoint chunks;
// every worker records the tasks it could not finish so a retry manifest can
// be built afterwards.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/hydrosight/waterbodies/internal/config"
	"github.com/hydrosight/waterbodies/internal/extent"
	"github.com/hydrosight/waterbodies/internal/logger"
	"github.com/hydrosight/waterbodies/internal/metrics"
	"github.com/hydrosight/waterbodies/internal/objstore"
	"github.com/hydrosight/waterbodies/internal/pipeline"
	"github.com/hydrosight/waterbodies/internal/rastersrc"
	"github.com/hydrosight/waterbodies/internal/tasks"
)

func main() {
	os.Exit(run())
}

func run() int {
	manifestKey := flag.String("manifest", "extent-tasks.json", "manifest key in the tasks store")
	chunk := flag.Int("chunk", 0, "chunk index this worker owns")
	chunks := flag.Int("chunks", 1, "total number of chunks")
	flag.Parse()

	cfg := config.FromEnv()
	log := logger.Build(logger.Config{
		Level:     cfg.LogLevel,
		Console:   cfg.LogConsole,
		Component: "extent-worker",
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

	rasterStore, err := objstore.Open(ctx, cfg.RastersLocation)
	if err != nil {
		log.Error().Err(err).Msg("open rasters store")
		return 1
	}
	src := rastersrc.NewStoreSource(rasterStore)
	if cfg.LandSeaMaskLocation != "" {
		landSea, err := objstore.Open(ctx, cfg.LandSeaMaskLocation)
		if err != nil {
			log.Error().Err(err).Msg("open land/sea mask store")
			return 1
		}
		src = rastersrc.NewStoreSourceWithLandSea(rasterStore, landSea)
	}
	polyStore, err := objstore.Open(ctx, cfg.PolygonsLocation)
	if err != nil {
		log.Error().Err(err).Msg("open polygons store")
		return 1
	}

	proc, err := extent.NewProcessor(extent.Params{
		DetectionThreshold:   cfg.DetectionThreshold,
		ExtentThreshold:      cfg.ExtentThreshold,
		MinValidObservations: cfg.MinValidObservations,
		MinPolygonSize:       cfg.MinPolygonSize,
		MaxPolygonSize:       cfg.MaxPolygonSize,
		LandMaskErosionM:     cfg.LandMaskErosionM,
	}, src, polyStore, cfg.Overwrite, cfg.MaskCacheSize, log, met)
	if err != nil {
		log.Error().Err(err).Msg("build processor")
		return 1
	}

	failed := pipeline.Run(ctx, log, met, "extent", mine, cfg.Workers, proc.ProcessTask)
	failedKey := fmt.Sprintf("failed/extent/chunk-%04d", *chunk)
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
