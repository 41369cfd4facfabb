package httpd

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	apiRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cadenza_api_requests_total",
		Help: "API requests by method and outcome.",
	}, []string{"method", "outcome"})

	apiTimeouts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cadenza_api_timeouts_total",
		Help: "API requests that timed out waiting for the idle loop.",
	})

	notificationsSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cadenza_ws_notifications_total",
		Help: "WebSocket notifications delivered to clients.",
	})

	wsConnections = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cadenza_ws_connections_total",
		Help: "WebSocket connections accepted.",
	})

	coverRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cadenza_cover_requests_total",
		Help: "Cover-art requests by resolution source.",
	}, []string{"source"})
)
