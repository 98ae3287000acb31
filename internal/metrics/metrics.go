// Package metrics exposes Prometheus instrumentation for the tracker service.
package metrics

import (
	"log"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Collector struct {
	reg *prometheus.Registry

	ReportsAccepted *prometheus.CounterVec // source label: bot|user
	ReportsRejected *prometheus.CounterVec // reason label: upper_bound|lower_bound
	PositionsServed prometheus.Counter

	ActiveTrains    prometheus.Gauge
	DatasetRevision prometheus.Gauge
	StoreHealthy    prometheus.Gauge

	SweepDuration      prometheus.Histogram
	PrecomputeDuration prometheus.Histogram

	EventsPublished   prometheus.Counter
	EventPublishErrs  prometheus.Counter
	EventBusConnected prometheus.Gauge
}

func NewCollector(revision int) *Collector {
	reg := prometheus.NewRegistry()

	c := &Collector{
		reg: reg,
		ReportsAccepted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tracker_reports_accepted_total",
			Help: "Accepted position reports.",
		}, []string{"source"}),
		ReportsRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tracker_reports_rejected_total",
			Help: "Rejected position reports.",
		}, []string{"reason"}),
		PositionsServed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tracker_positions_served_total",
			Help: "Consensus positions served to clients.",
		}),
		ActiveTrains: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tracker_active_trains",
			Help: "Trains with reports inside the live window.",
		}),
		DatasetRevision: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tracker_dataset_revision",
			Help: "Loaded timetable dataset revision.",
		}),
		StoreHealthy: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tracker_store_healthy",
			Help: "1 if the position store is reachable, 0 otherwise.",
		}),
		SweepDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "tracker_sweep_duration_seconds",
			Help:    "Duration of aggregator sweep cycles.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12),
		}),
		PrecomputeDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "tracker_route_precompute_duration_seconds",
			Help:    "Duration of interchange route precomputation.",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		}),
		EventsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tracker_events_published_total",
			Help: "Position events published to the event bus.",
		}),
		EventPublishErrs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tracker_event_publish_errors_total",
			Help: "Event bus publish errors.",
		}),
		EventBusConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tracker_event_bus_connected",
			Help: "1 if the event bus connection is established, 0 otherwise.",
		}),
	}

	reg.MustRegister(
		c.ReportsAccepted, c.ReportsRejected, c.PositionsServed,
		c.ActiveTrains, c.DatasetRevision, c.StoreHealthy,
		c.SweepDuration, c.PrecomputeDuration,
		c.EventsPublished, c.EventPublishErrs, c.EventBusConnected,
	)

	c.DatasetRevision.Set(float64(revision))
	return c
}

// EventPublished and EventError satisfy the publisher metrics interface.
func (c *Collector) EventPublished() { c.EventsPublished.Inc() }
func (c *Collector) EventError() { c.EventPublishErrs.Inc() }

func (c *Collector) Handler() http.Handler { return promhttp.HandlerFor(c.reg, promhttp.HandlerOpts{}) }

// Serve starts an HTTP server exposing /metrics on the given address.
func (c *Collector) Serve(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("metrics server error: %v", err)
		}
	}()
	log.Printf("metrics listening on %s", addr)
	return srv
}
