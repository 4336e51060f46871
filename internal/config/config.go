// Package config loads pipeline configuration from the environment.
package config

import (
	"os"
	"strconv"
	"strings"
)

type Config struct {
	LogLevel   string
	LogConsole bool

	// raster-to-polygon extraction
	DetectionThreshold   float64
	ExtentThreshold      float64
	MinValidObservations int
	MinPolygonSize       int
	MaxPolygonSize       int
	LandMaskErosionM     float64

	// attribute filters
	MinAreaM2  float64
	MaxLengthM float64

	// object storage locations; s3:// or local paths
	CatalogLocation       string
	CatalogKey            string
	LandSeaMaskLocation   string
	PolygonsLocation      string
	RastersLocation       string
	ExtentRastersLocation string
	TasksLocation         string

	SummaryProduct string
	SceneProduct   string

	StoreDSN   string
	UpdateRows bool

	Workers          int
	Overwrite        bool
	MaxParallelSteps int
	MaskCacheSize    int

	MetricsEnabled bool
	MetricsAddr    string
	MetricsPath    string
}

func FromEnv() Config {
	return Config{
		LogLevel:   getenv("LOG_LEVEL", "info"),
		LogConsole: getbool("LOG_CONSOLE", false),

		DetectionThreshold:   getfloat("DETECTION_THRESHOLD", 0.1),
		ExtentThreshold:      getfloat("EXTENT_THRESHOLD", 0.05),
		MinValidObservations: getint("MIN_VALID_OBSERVATIONS", 60),
		MinPolygonSize:       getint("MIN_POLYGON_SIZE", 6),
		MaxPolygonSize:       getint("MAX_POLYGON_SIZE", 1000),
		LandMaskErosionM:     getfloat("LAND_MASK_EROSION_M", 500),

		MinAreaM2:  getfloat("MIN_AREA_M2", 4500),
		MaxLengthM: getfloat("MAX_LENGTH_M", 150*1000),

		CatalogLocation:       getenv("CATALOG_LOCATION", "/tmp/waterbodies/catalog"),
		CatalogKey:            getenv("CATALOG_KEY", "datasets.json"),
		LandSeaMaskLocation:   getenv("LAND_SEA_MASK_LOCATION", ""),
		PolygonsLocation:      getenv("POLYGONS_LOCATION", "/tmp/waterbodies/polygons"),
		RastersLocation:       getenv("RASTERS_LOCATION", ""),
		ExtentRastersLocation: getenv("EXTENT_RASTERS_LOCATION", "/tmp/waterbodies/extent-rasters"),
		TasksLocation:         getenv("TASKS_LOCATION", "/tmp/waterbodies/tasks"),

		SummaryProduct: getenv("SUMMARY_PRODUCT", "wofs_summary_alltime"),
		SceneProduct:   getenv("SCENE_PRODUCT", "wofs_scene"),

		StoreDSN:   getenv("STORE_DSN", ""),
		UpdateRows: getbool("UPDATE_ROWS", true),

		Workers:          getint("WORKERS", 4),
		Overwrite:        getbool("OVERWRITE", false),
		MaxParallelSteps: getint("MAX_PARALLEL_STEPS", 7000),
		MaskCacheSize:    getint("MASK_CACHE_SIZE", 32),

		MetricsEnabled: getbool("METRICS_ENABLED", false),
		MetricsAddr:    getenv("METRICS_ADDR", ":9090"),
		MetricsPath:    getenv("METRICS_PATH", "/metrics"),
	}
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getint(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v := os.Getenv(k); v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "t", "true", "y", "yes":
			return true
		case "0", "f", "false", "n", "no":
			return false
		}
	}
	return def
}

func getfloat(k string, def float64) float64 {
	if v := os.Getenv(k); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}
