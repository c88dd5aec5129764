// Package metrics holds the Prometheus collectors shared by the export
// pipeline, the storage backends and the HTTP server.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var ExportsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
	Name: "album_exports_total",
	Help: "Bulk and single photo exports by strategy and result.",
}, []string{"strategy", "result"})

var ExportItemsTotal = prometheus.NewCounter(prometheus.CounterOpts{
	Name: "album_export_items_total",
	Help: "Photos fully processed by an export.",
})

var SignedURLsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
	Name: "album_signed_urls_total",
	Help: "Signed download URLs requested from the object store.",
}, []string{"result"})

var FetchedBytesTotal = prometheus.NewCounter(prometheus.CounterOpts{
	Name: "album_fetched_bytes_total",
	Help: "Photo bytes fetched through issued URLs.",
})

var OperationsInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
	Name: "album_operations_in_flight",
	Help: "Export operations currently running on the server worker pool.",
})

func init() {
	prometheus.MustRegister(ExportsTotal)
	prometheus.MustRegister(ExportItemsTotal)
	prometheus.MustRegister(SignedURLsTotal)
	prometheus.MustRegister(FetchedBytesTotal)
	prometheus.MustRegister(OperationsInFlight)
}
