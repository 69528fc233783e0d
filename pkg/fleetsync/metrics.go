package fleetsync

import "github.com/prometheus/client_golang/prometheus"

var (
	fetchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ubus_fleetsync_fetches_total",
			Help: "Full position fetches by result (applied, failed, discarded).",
		},
		[]string{"result"},
	)

	changeNotificationsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ubus_fleetsync_change_notifications_total",
			Help: "Change notifications received from the position feed.",
		},
	)

	rejectedRecordsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ubus_fleetsync_rejected_records_total",
			Help: "Position rows skipped because they failed validation.",
		},
	)

	trackedVehicles = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "ubus_fleetsync_tracked_vehicles",
			Help: "Vehicles in the position store after the last applied fetch.",
		},
	)
)

func init() {
	prometheus.MustRegister(fetchesTotal)
	prometheus.MustRegister(changeNotificationsTotal)
	prometheus.MustRegister(rejectedRecordsTotal)
	prometheus.MustRegister(trackedVehicles)
}
