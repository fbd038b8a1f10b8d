// Package metrics exposes engine activity as Prometheus collectors.
//
// Collectors live in a dedicated registry so tests and multiple engines in
// one process never collide on the global default registry.
package metrics

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MarkStefanovic/ketl-sub000/internal/task/state"
)

const namespace = "ketl"

type Metrics struct {
	reg *prometheus.Registry

	results    *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	admissions *prometheus.CounterVec
	running    prometheus.Gauge
	queueLen   prometheus.Gauge
}

func New() *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		results: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "job_results_total",
			Help:      "Finished job runs by outcome.",
		}, []string{"job", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "job_duration_seconds",
			Help:      "Wall time of finished job runs, all attempts included.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 14),
		}, []string{"job"}),
		admissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "job_admissions_total",
			Help:      "Times the scheduler queued a job.",
		}, []string{"job"}),
		running: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "jobs_running",
			Help:      "Jobs currently in the running state.",
		}),
		queueLen: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "queue_length",
			Help:      "Jobs waiting in the queue.",
		}),
	}
	m.reg.MustRegister(
		m.results, m.duration, m.admissions, m.running, m.queueLen,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry { return m.reg }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}

func (m *Metrics) ObserveResult(r state.Result) {
	info := r.Info()
	m.results.WithLabelValues(info.Job, state.OutcomeOf(r)).Inc()
	if !info.Start.IsZero() && !info.End.Before(info.Start) {
		m.duration.WithLabelValues(info.Job).Observe(info.ExecutionSeconds())
	}
}

func (m *Metrics) ObserveStatuses(snap map[string]state.Status) {
	n := 0
	for _, st := range snap {
		if _, ok := st.(state.StatusRunning); ok {
			n++
		}
	}
	m.running.Set(float64(n))
}

func (m *Metrics) SetQueueLength(n int) { m.queueLen.Set(float64(n)) }

// Admitted is meant to be installed as the scheduler's admit hook.
func (m *Metrics) Admitted(name string) { m.admissions.WithLabelValues(name).Inc() }

// Forget drops per-job series, e.g. for jobs removed by a reload.
func (m *Metrics) Forget(name string) {
	m.results.DeletePartialMatch(prometheus.Labels{"job": name})
	m.duration.DeleteLabelValues(name)
	m.admissions.DeleteLabelValues(name)
}

// Feed consumes engine streams until ctx is done. Closed channels are
// ignored so callers may pass nil for streams they do not have.
func (m *Metrics) Feed(ctx context.Context, results <-chan state.Result, snapshots <-chan map[string]state.Status, queue <-chan []string) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case r, ok := <-results:
			if !ok {
				results = nil
				continue
			}
			m.ObserveResult(r)
		case snap, ok := <-snapshots:
			if !ok {
				snapshots = nil
				continue
			}
			m.ObserveStatuses(snap)
		case names, ok := <-queue:
			if !ok {
				queue = nil
				continue
			}
			m.SetQueueLength(len(names))
		}
	}
}
