package resilience

import (
	"github.com/go-i2p/connpool/lib/metrics"
)

// Breaker metrics
var (
	// BreakerState is the state of the creation breaker.
	// 0 = closed, 1 = open, 2 = half-open
	BreakerState = metrics.NewGauge(
		"connpool_breaker_state",
		"State of the resource creation circuit breaker (0=closed, 1=open, 2=half-open)",
	)
	// BreakerTrips counts transitions to open.
	BreakerTrips = metrics.NewCounter(
		"connpool_breaker_trips_total",
		"Total number of times the creation circuit breaker opened",
	)
	// BreakerRejections counts creations refused while open.
	BreakerRejections = metrics.NewCounter(
		"connpool_breaker_rejections_total",
		"Total resource creations rejected by the open circuit breaker",
	)
)
