package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector bundles the application metrics on a private registry.
type Collector struct {
	reg *prometheus.Registry

	SamplesIngested *prometheus.CounterVec // feed label: trackapp|websocket
	SamplesDropped  prometheus.Counter
	JourneysStarted prometheus.Counter
	JourneysEnded   *prometheus.CounterVec // reason label: idle|stale
	JourneysMerged  prometheus.Counter
	FeedErrors      *prometheus.CounterVec // feed label: trackapp|websocket
	MatchRequests   *prometheus.CounterVec // result label: ok|fallback
	PushConnected   prometheus.Gauge
}

// NewCollector creates and registers all metrics.
func NewCollector() *Collector {
	reg := prometheus.NewRegistry()

	c := &Collector{
		reg: reg,
		SamplesIngested: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fleet_samples_ingested_total",
			Help: "Position samples accepted from the feeds.",
		}, []string{"feed"}),
		SamplesDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fleet_samples_dropped_total",
			Help: "Samples dropped because the vehicle was parked with no journey.",
		}),
		JourneysStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fleet_journeys_started_total",
			Help: "Journeys opened by the state machine.",
		}),
		JourneysEnded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fleet_journeys_ended_total",
			Help: "Journeys closed, by reason.",
		}, []string{"reason"}),
		JourneysMerged: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fleet_journeys_merged_total",
			Help: "Split journeys merged by the corrector.",
		}),
		FeedErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fleet_feed_errors_total",
			Help: "Feed fetch/parse failures, by feed.",
		}, []string{"feed"}),
		MatchRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fleet_match_requests_total",
			Help: "Map-matching batches, by result.",
		}, []string{"result"}),
		PushConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "fleet_push_feeds_connected",
			Help: "Currently connected push-feed listeners.",
		}),
	}

	reg.MustRegister(
		c.SamplesIngested, c.SamplesDropped,
		c.JourneysStarted, c.JourneysEnded, c.JourneysMerged,
		c.FeedErrors, c.MatchRequests, c.PushConnected,
	)
	return c
}

// Handler exposes the registry for scraping.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.reg, promhttp.HandlerOpts{})
}
