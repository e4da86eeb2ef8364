package observability

import (
	"context"
	"net/http"

	"github.com/kmol-editor/kmol/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics records lifecycle events on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	Mutations      *prometheus.CounterVec
	Saves          *prometheus.CounterVec
	SaveDuration   prometheus.Histogram
	OpenProjects   prometheus.Gauge
	Scripts        *prometheus.CounterVec
	ScriptDuration prometheus.Histogram
}

// NewMetrics creates and registers the kmol collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		Mutations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kmol_mutations_total",
				Help: "Total number of tree mutations applied through the project store",
			},
			[]string{"op"},
		),
		Saves: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kmol_saves_total",
				Help: "Total number of project saves by result",
			},
			[]string{"result"},
		),
		SaveDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "kmol_save_duration_seconds",
			Help:    "Duration of project saves",
			Buckets: prometheus.DefBuckets,
		}),
		OpenProjects: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "kmol_open_projects",
			Help: "Number of currently open projects",
		}),
		Scripts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kmol_scripts_total",
				Help: "Total number of script executions by result",
			},
			[]string{"result"},
		),
		ScriptDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "kmol_script_duration_seconds",
			Help:    "Duration of script executions",
			Buckets: prometheus.DefBuckets,
		}),
	}
	m.registry.MustRegister(m.Mutations, m.Saves, m.SaveDuration, m.OpenProjects, m.Scripts, m.ScriptDuration)
	return m
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Hooks returns lifecycle hooks that update the collectors.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnMutate: func(_ context.Context, e *domain.MutationEvent) {
			m.Mutations.WithLabelValues(string(e.Op)).Inc()
		},
		OnOpen: func(_ context.Context, _ *domain.ProjectEvent) {
			m.OpenProjects.Inc()
		},
		OnClose: func(_ context.Context, _ *domain.ProjectEvent) {
			m.OpenProjects.Dec()
		},
		OnSave: func(_ context.Context, e *domain.ProjectEvent) {
			m.Saves.WithLabelValues(result(e.Err)).Inc()
			m.SaveDuration.Observe(e.Duration.Seconds())
		},
		OnScript: func(_ context.Context, e *domain.ScriptEvent) {
			res := result(e.Err)
			if e.TimedOut {
				res = "timeout"
			}
			m.Scripts.WithLabelValues(res).Inc()
			m.ScriptDuration.Observe(e.Duration.Seconds())
		},
	}
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
