package livemap

import "github.com/prometheus/client_golang/prometheus"

var (
	connectedClients = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "ubus_livemap_connected_clients",
		Help: "Maps currently connected to the live feed.",
	})
	broadcastsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ubus_livemap_broadcasts_total",
		Help: "Vehicle snapshots pushed to connected maps.",
	})
)

func init() {
	prometheus.MustRegister(connectedClients, broadcastsTotal)
}
