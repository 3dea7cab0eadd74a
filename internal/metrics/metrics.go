// Package metrics declares the prometheus collectors shared by the API and
// consumer processes.
package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "parkgate_http_requests_total",
		Help: "HTTP requests by route, method and status",
	}, []string{"route", "method", "status"})

	HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "parkgate_http_request_duration_seconds",
		Help:    "HTTP request latency by route",
		Buckets: prometheus.DefBuckets,
	}, []string{"route", "method"})

	Checkins = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "parkgate_checkins_total",
		Help: "Check-ins by ticket type and outcome",
	}, []string{"type", "outcome"})

	Checkouts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "parkgate_checkouts_total",
		Help: "Checkouts by final ticket type",
	}, []string{"type"})

	Revenue = promauto.NewCounter(prometheus.CounterOpts{
		Name: "parkgate_revenue_total",
		Help: "Sum of checkout amounts",
	})

	CounterClamps = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "parkgate_counter_clamps_total",
		Help: "Zone counters clamped at zero instead of going negative",
	}, []string{"field"})

	ReconciledZones = promauto.NewCounter(prometheus.CounterOpts{
		Name: "parkgate_reconciled_zones_total",
		Help: "Zones whose counters were corrected by the reconciliation job",
	})

	WebSocketClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "parkgate_websocket_clients",
		Help: "Connected live feed clients",
	})

	ConsumedMessages = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "parkgate_consumed_messages_total",
		Help: "Bus messages handled by consumers",
	}, []string{"subject", "outcome"})
)

// Middleware records request counts and latency per matched route
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		HTTPRequests.WithLabelValues(route, c.Request.Method, strconv.Itoa(c.Writer.Status())).Inc()
		HTTPDuration.WithLabelValues(route, c.Request.Method).Observe(time.Since(start).Seconds())
	}
}

// RecordClamps counts every counter that was clamped during a mutation
func RecordClamps(fields []string) {
	for _, f := range fields {
		CounterClamps.WithLabelValues(f).Inc()
	}
}
