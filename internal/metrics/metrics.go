package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	FeedConnected = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "wildfire_feed_connected",
		Help: "1 while the live feed connection is open",
	})
	FeedReconnectsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "wildfire_feed_reconnects_total",
		Help: "Total scheduled feed reconnect attempts",
	})
	FeedMessagesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "wildfire_feed_messages_total",
		Help: "Total decoded feed messages by action",
	}, []string{"action"})
	FeedDroppedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "wildfire_feed_dropped_total",
		Help: "Total malformed feed payloads dropped",
	})
	IncidentRecordsDroppedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "wildfire_incident_records_dropped_total",
		Help: "Total incident records dropped because they could not be parsed",
	})
	HotspotsCurrent = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "wildfire_hotspots_current",
		Help: "Hotspots in the current view",
	})
	IncidentsCurrent = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "wildfire_incidents_current",
		Help: "Incidents in the current view",
	})
	ReplayFetchesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "wildfire_replay_fetches_total",
		Help: "Replay snapshot fetches by result",
	}, []string{"result"})
	BackendRequestDurationMs = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "wildfire_backend_request_duration_ms",
		Help:    "Backend API call duration in milliseconds",
		Buckets: []float64{10, 50, 100, 250, 500, 1000, 2500, 5000, 10000},
	}, []string{"endpoint"})
	AlertsPublishedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "wildfire_alerts_published_total",
		Help: "Total alerts published",
	})
	AlertPublishFailTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "wildfire_alert_publish_fail_total",
		Help: "Total alerts that failed to publish",
	})
	WatchHotspots = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "wildfire_watch_hotspots",
		Help: "Hotspots inside each watch location radius",
	}, []string{"location_id"})
)

func init() {
	prometheus.MustRegister(FeedConnected)
	prometheus.MustRegister(FeedReconnectsTotal)
	prometheus.MustRegister(FeedMessagesTotal)
	prometheus.MustRegister(FeedDroppedTotal)
	prometheus.MustRegister(IncidentRecordsDroppedTotal)
	prometheus.MustRegister(HotspotsCurrent)
	prometheus.MustRegister(IncidentsCurrent)
	prometheus.MustRegister(ReplayFetchesTotal)
	prometheus.MustRegister(BackendRequestDurationMs)
	prometheus.MustRegister(AlertsPublishedTotal)
	prometheus.MustRegister(AlertPublishFailTotal)
	prometheus.MustRegister(WatchHotspots)
}

// Handler exposes the registered collectors for scraping.
func Handler() http.Handler { return promhttp.Handler() }
