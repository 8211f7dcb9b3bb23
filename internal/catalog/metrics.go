package catalog

import "github.com/prometheus/client_golang/prometheus"

var (
	refreshesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalog_refreshes_total",
			Help: "Catalog refresh attempts by result",
		},
		[]string{"result"},
	)

	refreshDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "catalog_refresh_duration_seconds",
			Help:    "Duration of catalog refresh scans",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
		},
	)

	catalogItems = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "catalog_items",
			Help: "Number of items in the served catalog",
		},
	)

	runtimeLookupsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalog_runtime_lookups_total",
			Help: "Runtime requests by source",
		},
		[]string{"source"},
	)
)

func init() {
	prometheus.MustRegister(refreshesTotal)
	prometheus.MustRegister(refreshDuration)
	prometheus.MustRegister(catalogItems)
	prometheus.MustRegister(runtimeLookupsTotal)
}
