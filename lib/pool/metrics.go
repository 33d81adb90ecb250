package pool

import "github.com/go-i2p/connpool/lib/metrics"

// Pool utilization metrics
var (
	// PoolMinimumSize is the configured minimum pool size.
	PoolMinimumSize = metrics.NewGauge(
		"connpool_pool_resources_min",
		"Configured minimum number of resources",
	)
	// PoolMaximumSize is the configured maximum pool size.
	PoolMaximumSize = metrics.NewGauge(
		"connpool_pool_resources_max",
		"Configured maximum number of resources",
	)
	// PoolResourcesOpen is the current number of resources.
	PoolResourcesOpen = metrics.NewGauge(
		"connpool_pool_resources_open",
		"Current number of resources, idle and checked out",
	)
	// PoolResourcesAvailable is the current number of idle resources.
	PoolResourcesAvailable = metrics.NewGauge(
		"connpool_pool_resources_available",
		"Current number of idle resources",
	)
	// PoolResourcesInUse is the number of resources currently checked out.
	PoolResourcesInUse = metrics.NewGauge(
		"connpool_pool_resources_in_use",
		"Number of resources currently checked out",
	)
	// PoolWaiting is the number of blocked checkouts.
	PoolWaiting = metrics.NewGauge(
		"connpool_pool_waiting",
		"Number of checkouts waiting for a resource",
	)
	// PoolRequestsTotal counts checkout requests.
	PoolRequestsTotal = metrics.NewCounter(
		"connpool_pool_requests_total",
		"Total number of checkout requests",
	)
	// PoolDelayedTotal counts checkouts that had to wait.
	PoolDelayedTotal = metrics.NewCounter(
		"connpool_pool_delayed_requests_total",
		"Total number of checkout requests that had to wait",
	)
	// PoolCreatedTotal counts created resources.
	PoolCreatedTotal = metrics.NewCounter(
		"connpool_pool_created_total",
		"Total number of resources created",
	)
	// PoolDestroyedTotal counts destroyed resources.
	PoolDestroyedTotal = metrics.NewCounter(
		"connpool_pool_destroyed_total",
		"Total number of resources destroyed",
	)
	// PoolCreationFailuresTotal counts factory failures.
	PoolCreationFailuresTotal = metrics.NewCounter(
		"connpool_pool_creation_failures_total",
		"Total number of failed resource creations",
	)
	// PoolRequestsPerSecond is the sampled checkout rate.
	PoolRequestsPerSecond = metrics.NewFloatGauge(
		"connpool_pool_requests_per_second",
		"Checkout requests per second over the last sample window",
	)
	// PoolDelayedRequestsPerSecond is the sampled delayed checkout rate.
	PoolDelayedRequestsPerSecond = metrics.NewFloatGauge(
		"connpool_pool_delayed_requests_per_second",
		"Delayed checkout requests per second over the last sample window",
	)
	// PoolCheckoutLatency tracks time spent in successful checkouts.
	PoolCheckoutLatency = metrics.NewHistogram(
		"connpool_pool_checkout_duration_seconds",
		"Time spent checking out a resource from the pool",
		metrics.DefaultLatencyBuckets,
	)
)

// UpdateMetrics updates the pool gauges from stats. The rate sampler calls
// it every statistics interval.
func UpdateMetrics(stats Statistics) {
	PoolMinimumSize.Set(int64(stats.MinimumSize))
	PoolMaximumSize.Set(int64(stats.MaximumSize))
	PoolResourcesOpen.Set(int64(stats.Size))
	PoolResourcesAvailable.Set(int64(stats.Available))
	PoolResourcesInUse.Set(int64(stats.InUse))
	PoolWaiting.Set(int64(stats.Waiting))
	PoolRequestsPerSecond.Set(stats.RequestsPerSecond)
	PoolDelayedRequestsPerSecond.Set(stats.DelayedRequestsPerSecond)
}
