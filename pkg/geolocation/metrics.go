package geolocation

import "github.com/prometheus/client_golang/prometheus"

var recenterTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "ubus_geolocation_recenter_requests_total",
		Help: "Recenter requests by outcome.",
	},
	[]string{"result"},
)

func init() {
	prometheus.MustRegister(recenterTotal)
}
