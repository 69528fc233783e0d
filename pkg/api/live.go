package api

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/ubus-campus/ubus/pkg/consumer"
	"github.com/ubus-campus/ubus/pkg/livemap"
)

// NewLiveHandler serves the live map feed next to the health and metrics endpoints
func NewLiveHandler(hub *livemap.Hub) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/live", hub)
	mux.Handle("/health", consumer.NewHealthHandler())
	mux.Handle("/metrics", promhttp.Handler())

	return mux
}
