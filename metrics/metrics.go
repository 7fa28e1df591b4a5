package metrics

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

var (
	// Connection metrics
	ActiveConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "presence_connections_active",
		Help: "The current number of active WebSocket connections.",
	})
	TotalConnections = promauto.NewCounter(prometheus.CounterOpts{
		Name: "presence_connections_total",
		Help: "The total number of WebSocket connections accepted.",
	})
	StaleConnectionsCleaned = promauto.NewCounter(prometheus.CounterOpts{
		Name: "presence_stale_connections_cleaned_total",
		Help: "The total number of gone connections unbound during fan-out.",
	})

	// Trigger metrics
	HeartbeatsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "presence_heartbeats_total",
		Help: "The total number of heartbeats processed.",
	})
	ActivityUpdatesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "presence_activity_updates_total",
		Help: "The total number of explicit activity updates processed.",
	})
	DisconnectsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "presence_disconnects_total",
		Help: "The total number of explicit disconnects processed.",
	})
	EvictionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "presence_evictions_total",
		Help: "The total number of users evicted by the expiry sweeper.",
	})

	// Fan-out metrics
	NotificationsSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "presence_notifications_sent_total",
		Help: "The total number of presence notifications pushed, by result.",
	}, []string{"result"})

	// Auth metrics
	AuthSuccess = promauto.NewCounter(prometheus.CounterOpts{
		Name: "presence_auth_success_total",
		Help: "The total number of successful authentications.",
	})
	AuthFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "presence_auth_failures_total",
		Help: "The total number of failed authentications.",
	}, []string{"reason"})
)

// StartServer starts the HTTP server exposing Prometheus metrics.
func StartServer(port int, path string, log zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle(path, promhttp.Handler())

	addr := fmt.Sprintf(":%d", port)
	log.Info().Str("addr", addr).Str("path", path).Msg("starting metrics server")

	go func() {
		if err := http.ListenAndServe(addr, mux); err != nil {
			log.Error().Err(err).Msg("metrics server stopped")
		}
	}()
}
