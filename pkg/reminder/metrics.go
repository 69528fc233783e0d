package reminder

import "github.com/prometheus/client_golang/prometheus"

var deliveriesTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "ubus_reminder_deliveries_total",
		Help: "Class reminders handed to the notification sink, by kind and result.",
	},
	[]string{"kind", "result"},
)

func init() {
	prometheus.MustRegister(deliveriesTotal)
}
