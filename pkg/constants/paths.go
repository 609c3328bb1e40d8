package constants

// Service-wide HTTP paths (health, ready, metrics).
const (
	PathHealth  = "/health"
	PathReady   = "/ready"
	PathMetrics = "/metrics"
)
