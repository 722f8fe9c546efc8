package aqi

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics are the Prometheus instruments of the updater app.
type Metrics struct {
	fetches      *prometheus.CounterVec
	updates      *prometheus.CounterVec
	filledCells  prometheus.Gauge
	validRatio   prometheus.Gauge
	lastUpdate   prometheus.Gauge
	stepDuration *prometheus.HistogramVec
}

// NewMetrics registers the updater metrics with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		fetches: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "aqi_fetches_total",
				Help: "Total number of AQI fetch attempts by status",
			},
			[]string{"status"},
		),
		updates: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "aqi_updates_total",
				Help: "Total number of edge AQI update attempts by status",
			},
			[]string{"status"},
		),
		filledCells: f.NewGauge(prometheus.GaugeOpts{
			Name: "aqi_filled_cells",
			Help: "Number of nodata cells filled in the latest AQI raster",
		}),
		validRatio: f.NewGauge(prometheus.GaugeOpts{
			Name: "aqi_valid_sample_ratio",
			Help: "Share of edges with a valid AQI value in the latest update",
		}),
		lastUpdate: f.NewGauge(prometheus.GaugeOpts{
			Name: "aqi_last_update_timestamp_seconds",
			Help: "Unix time of the latest successful edge AQI update",
		}),
		stepDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "aqi_step_duration_seconds",
				Help:    "Duration of fetch and update steps in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"step"},
		),
	}
}
