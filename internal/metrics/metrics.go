// Package metrics exposes Prometheus metrics for the pipeline binaries.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Provider struct {
	reg *prometheus.Registry

	TasksProcessed *prometheus.CounterVec
	TasksFailed    *prometheus.CounterVec
	TaskDuration   *prometheus.HistogramVec

	PolygonsWritten     prometheus.Counter
	ObservationsWritten prometheus.Counter
}

func Init() *Provider {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	p := &Provider{
		reg: reg,
		TasksProcessed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "waterbodies_tasks_processed_total",
				Help: "Units of work completed, by pipeline stage.",
			},
			[]string{"stage"},
		),
		TasksFailed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "waterbodies_tasks_failed_total",
				Help: "Units of work that failed, by pipeline stage.",
			},
			[]string{"stage"},
		),
		TaskDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "waterbodies_task_duration_seconds",
				Help:    "Wall time per unit of work, by pipeline stage.",
				Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
			},
			[]string{"stage"},
		),
		PolygonsWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "waterbodies_polygons_written_total",
			Help: "Waterbody polygons persisted to intermediate storage.",
		}),
		ObservationsWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "waterbodies_observations_written_total",
			Help: "Scene observations upserted into the store.",
		}),
	}
	reg.MustRegister(
		p.TasksProcessed, p.TasksFailed, p.TaskDuration,
		p.PolygonsWritten, p.ObservationsWritten,
	)
	return p
}

func (p *Provider) Handler() http.Handler {
	return promhttp.HandlerFor(p.reg, promhttp.HandlerOpts{})
}

// Serve starts a metrics endpoint on addr; it never returns unless the
// listener fails.
func (p *Provider) Serve(addr, path string) error {
	mux := http.NewServeMux()
	mux.Handle(path, p.Handler())
	return http.ListenAndServe(addr, mux)
}
