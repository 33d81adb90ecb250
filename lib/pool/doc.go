// Package pool provides a bounded pool of expensive, stateful resources such
// as database connections.
//
// The pool supports:
//   - Minimum and maximum sizes, adjustable at runtime
//   - Checkout with a bounded wait when the pool is saturated
//   - Validation on checkin, with replacement of dead resources
//   - Periodic eviction of idle resources down to the minimum size
//   - Cumulative counters, sampled rates and occupancy snapshots
//   - Enable/disable and a terminal close
//
// # Basic Usage
//
//	factory := pool.FactoryFunc(func(ctx context.Context, cred pool.Credential) (pool.Resource, error) {
//	    return openConnection(ctx, cred.User, cred.Secret)
//	})
//
//	cfg := pool.DefaultConfig()
//	cfg.MinimumSize = 2
//	cfg.MaximumSize = 10
//
//	p, err := pool.New(factory, pool.Credential{User: "scott", Secret: "tiger"}, cfg)
//	if err != nil {
//	    return err
//	}
//	defer p.Close()
//
//	res, err := p.Checkout(ctx)
//	if err != nil {
//	    return err
//	}
//	defer p.Checkin(res)
//
// Resources are validated when they are checked in, not when they are
// checked out. A resource returned with an open transaction is rejected with
// ErrTransactionOpen; the caller must commit or roll back first.
//
// # Statistics
//
// Statistics returns counters (requests, created, destroyed, delayed),
// occupancy, request rates sampled every StatisticsInterval and, when
// fine-grained collection is on, occupancy snapshots. ResetStatistics zeroes
// the counters without touching occupancy.
//
// # Metrics
//
// Pool metrics are registered with the metrics package:
//   - connpool_pool_resources_{min,max,open,available,in_use}
//   - connpool_pool_waiting
//   - connpool_pool_requests_total, connpool_pool_delayed_requests_total
//   - connpool_pool_created_total, connpool_pool_destroyed_total
//   - connpool_pool_creation_failures_total
//   - connpool_pool_requests_per_second, connpool_pool_delayed_requests_per_second
//   - connpool_pool_checkout_duration_seconds
package pool
