package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Session metrics
	SessionJoins = promauto.NewCounter(prometheus.CounterOpts{
		Name: "call_session_joins_total",
		Help: "The total number of create-or-join session operations.",
	})
	ConnectionUpserts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "call_connection_upserts_total",
		Help: "The total number of connection upserts (joins and rejoins).",
	})

	// Recovery metrics
	RecoveryChecks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "call_recovery_checks_total",
		Help: "The total number of recovery checks by outcome.",
	}, []string{"outcome"})

	// Signaling relay metrics
	SignalPeers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "signal_peers_active",
		Help: "The current number of connected signaling peers.",
	})
	SignalFramesRelayed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "signal_frames_relayed_total",
		Help: "The total number of signaling frames relayed between peers.",
	})
)
