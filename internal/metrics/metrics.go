// Package metrics exposes engine activity as Prometheus collectors.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "cosmetic_filters"

// Metrics records resolver and enforcer events. It satisfies
// enforcer.Recorder.
type Metrics struct {
	registry *prometheus.Registry

	resolves     *prometheus.CounterVec
	entries      prometheus.Histogram
	stylesheets  prometheus.Counter
	scans        *prometheus.CounterVec
	hidden       prometheus.Counter
	headStalls   prometheus.Counter
	pageDuration prometheus.Histogram
	reloads      *prometheus.CounterVec
}

// New registers every collector on a fresh registry
func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		resolves: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "resolves_total",
			Help:      "Host resolutions, by whether any page-specific rule matched.",
		}, []string{"page_specific"}),
		entries: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "resolved_entries",
			Help:      "Entries returned per resolution.",
			Buckets:   []float64{1, 2, 4, 8, 16, 32},
		}),
		stylesheets: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stylesheets_injected_total",
			Help:      "Style elements injected into documents.",
		}),
		scans: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scans_total",
			Help:      "Rescan checkpoints, by outcome.",
		}, []string{"outcome"}),
		hidden: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "elements_hidden_total",
			Help:      "Elements that had the hidden style forced inline.",
		}),
		headStalls: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "head_stalls_total",
			Help:      "Documents whose head never appeared before the timeout.",
		}),
		pageDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "page_filter_seconds",
			Help:      "Wall time spent filtering one page.",
			Buckets:   prometheus.DefBuckets,
		}),
		reloads: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "table_reloads_total",
			Help:      "Rule table reloads, by result.",
		}, []string{"result"}),
	}
}

// Registry returns the registry holding the collectors
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) ObserveResolve(entries int, pageSpecific bool) {
	label := "false"
	if pageSpecific {
		label = "true"
	}
	m.resolves.WithLabelValues(label).Inc()
	m.entries.Observe(float64(entries))
}

func (m *Metrics) ObserveInjection(sheets int) {
	m.stylesheets.Add(float64(sheets))
}

func (m *Metrics) ObserveScan(hidden int, skipped bool) {
	if skipped {
		m.scans.WithLabelValues("skipped").Inc()
		return
	}
	m.scans.WithLabelValues("scanned").Inc()
	m.hidden.Add(float64(hidden))
}

func (m *Metrics) ObserveHeadStall() {
	m.headStalls.Inc()
}

func (m *Metrics) ObservePage(d time.Duration) {
	m.pageDuration.Observe(d.Seconds())
}

// ObserveReload counts a table reload attempt
func (m *Metrics) ObserveReload(err error) {
	if err != nil {
		m.reloads.WithLabelValues("error").Inc()
		return
	}
	m.reloads.WithLabelValues("ok").Inc()
}
