package pool

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/samber/oops"
)

// idleResource is an available resource and the time it was returned.
type idleResource struct {
	res      Resource
	lastUsed time.Time
}

// Pool is a bounded pool of resources created by a Factory.
type Pool struct {
	factory Factory

	mu      sync.Mutex
	cond    *sync.Cond
	cred    Credential
	config  Config
	idle    []idleResource         // LIFO stack, top is the most recently returned
	out     map[Resource]time.Time // checked out resources and their checkout time
	pending int                    // creations in flight, counted toward the size
	waiters int
	enabled bool
	closed  bool
	size    int // last size reported through events

	stats  *collector
	events *eventEmitter

	cleanup *scheduler
	sampler *scheduler
}

// New creates a pool, opens cfg.MinimumSize resources and starts the cleanup
// and statistics tasks. Zero intervals in cfg are replaced by defaults.
func New(factory Factory, cred Credential, cfg Config) (*Pool, error) {
	if factory == nil {
		return nil, oops.In("pool").Wrapf(ErrInvalidConfiguration, "factory is required")
	}
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	now := time.Now()
	p := &Pool{
		factory: factory,
		cred:    cred,
		config:  cfg,
		idle:    make([]idleResource, 0, cfg.MaximumSize),
		out:     make(map[Resource]time.Time),
		enabled: true,
		stats:   newCollector(now, cfg.SnapshotCapacity, cfg.CollectFineGrainedStatistics),
		events:  newEventEmitter(cfg.EventBuffer),
	}
	p.cond = sync.NewCond(&p.mu)

	for i := 0; i < cfg.MinimumSize; i++ {
		r, err := factory.Create(context.Background(), cred)
		if err != nil {
			for _, ir := range p.idle {
				p.destroy(ir.res)
			}
			return nil, creationError(err, cred)
		}
		p.idle = append(p.idle, idleResource{res: r, lastUsed: time.Now()})
		p.stats.onCreated()
	}
	p.mu.Lock()
	p.recordLocked(now)
	p.mu.Unlock()

	p.cleanup = startScheduler("cleanup", cfg.CleanupInterval, func() { p.evictIdle() })
	p.sampler = startScheduler("statistics", cfg.StatisticsInterval, p.sampleRates)

	log.WithField("user", cred.User).
		WithField("minimumSize", cfg.MinimumSize).
		WithField("maximumSize", cfg.MaximumSize).
		Info("pool created")
	return p, nil
}

// Checkout borrows a resource. An idle resource is returned when one is
// available, otherwise a new one is created while the pool is below its
// maximum size, after NewResourceThreshold or MaximumCheckoutWait,
// whichever comes first. A saturated pool blocks the caller until a resource
// is returned, MaximumCheckoutWait elapses (ErrNoResourceAvailable) or ctx
// is done.
func (p *Pool) Checkout(ctx context.Context) (Resource, error) {
	start := time.Now()

	p.mu.Lock()
	if err := p.usableLocked(); err != nil {
		p.mu.Unlock()
		return nil, err
	}
	p.stats.onRequest()

	var deadline time.Time
	delayed := false
	for {
		if err := p.usableLocked(); err != nil {
			p.mu.Unlock()
			return nil, err
		}

		if r, ok := p.popIdleLocked(); ok {
			now := time.Now()
			p.out[r] = now
			p.recordLocked(now)
			p.mu.Unlock()
			PoolCheckoutLatency.ObserveDuration(now.Sub(start))
			return r, nil
		}

		threshold := p.config.NewResourceThreshold
		below := p.sizeLocked() < p.config.MaximumSize
		if below && (threshold <= 0 || (delayed && time.Since(start) >= threshold)) {
			return p.createLocked(ctx, start)
		}

		if !delayed {
			delayed = true
			p.stats.onDelayed()
			deadline = start.Add(p.config.MaximumCheckoutWait)
		}
		now := time.Now()
		if !now.Before(deadline) {
			// the wait budget caps the threshold: a pool with room creates
			if below {
				return p.createLocked(ctx, start)
			}
			p.mu.Unlock()
			log.WithField("waited", now.Sub(start)).Debug("checkout timed out waiting for a resource")
			return nil, ErrNoResourceAvailable
		}
		if err := ctx.Err(); err != nil {
			p.mu.Unlock()
			if errors.Is(err, context.DeadlineExceeded) {
				return nil, fmt.Errorf("%w: %w", ErrNoResourceAvailable, err)
			}
			return nil, err
		}

		wake := deadline
		if below && start.Add(threshold).Before(wake) {
			wake = start.Add(threshold)
		}
		p.waitLocked(ctx, wake)
	}
}

// createLocked reserves a slot, creates a resource with the lock released
// and hands it to the caller. Called with p.mu held; returns with it released.
func (p *Pool) createLocked(ctx context.Context, start time.Time) (Resource, error) {
	p.pending++
	cred := p.cred
	p.mu.Unlock()

	r, err := p.factory.Create(ctx, cred)

	p.mu.Lock()
	p.pending--
	if err != nil {
		p.stats.onCreationFailure()
		p.cond.Signal()
		p.mu.Unlock()
		log.WithError(err).WithField("user", cred.User).Warn("failed to create resource")
		return nil, creationError(err, cred)
	}

	p.stats.onCreated()
	now := time.Now()
	if p.closed {
		p.stats.onDestroyed(1)
		p.mu.Unlock()
		p.destroy(r)
		return nil, ErrPoolClosed
	}
	p.out[r] = now
	p.recordLocked(now)
	p.mu.Unlock()

	PoolCheckoutLatency.ObserveDuration(now.Sub(start))
	log.Debug("created new resource")
	return r, nil
}

// waitLocked blocks on the condition variable until a checkin or capacity
// change signals it, until is reached or ctx is done.
func (p *Pool) waitLocked(ctx context.Context, until time.Time) {
	p.waiters++
	timer := time.AfterFunc(time.Until(until), p.wakeAll)
	stop := context.AfterFunc(ctx, p.wakeAll)

	p.cond.Wait()

	stop()
	timer.Stop()
	p.waiters--
}

func (p *Pool) wakeAll() {
	p.mu.Lock()
	p.cond.Broadcast()
	p.mu.Unlock()
}

// Checkin returns a resource obtained from Checkout. Valid resources go back
// on the idle stack and wake one waiter; invalid ones are destroyed and,
// while the pool is below its minimum size, replaced.
//
// A resource with an open transaction is rejected with ErrTransactionOpen
// and stays with the caller, as it does while the pool is disabled. On a
// closed pool the resource is destroyed and ErrPoolClosed returned.
func (p *Pool) Checkin(r Resource) error {
	if r == nil {
		return ErrForeignResource
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		p.destroyOrphan(r)
		return ErrPoolClosed
	}
	if !p.enabled {
		p.mu.Unlock()
		return ErrPoolDisabled
	}
	if _, ok := p.out[r]; !ok {
		p.mu.Unlock()
		return ErrForeignResource
	}
	p.mu.Unlock()

	if r.HasOpenTransaction() {
		log.Warn("rejected checkin of resource with an open transaction")
		return ErrTransactionOpen
	}
	valid := r.Valid()

	p.mu.Lock()
	if _, ok := p.out[r]; !ok {
		p.mu.Unlock()
		return ErrForeignResource
	}
	delete(p.out, r)
	now := time.Now()

	switch {
	case p.closed:
		p.stats.onDestroyed(1)
		p.mu.Unlock()
		p.destroy(r)
		return ErrPoolClosed

	case !valid:
		log.Debug("destroying invalid resource")
		p.discardLocked(r, now)
		return nil

	case p.sizeLocked() >= p.config.MaximumSize:
		log.Debug("destroying resource above maximum size")
		p.stats.onDestroyed(1)
		p.recordLocked(now)
		p.mu.Unlock()
		p.destroy(r)
		return nil

	default:
		p.idle = append(p.idle, idleResource{res: r, lastUsed: now})
		p.cond.Signal()
		p.recordLocked(now)
		p.mu.Unlock()
		return nil
	}
}

// Discard destroys a checked out resource the caller knows to be broken,
// without probing it.
func (p *Pool) Discard(r Resource) error {
	if r == nil {
		return ErrForeignResource
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		p.destroyOrphan(r)
		return ErrPoolClosed
	}
	if _, ok := p.out[r]; !ok {
		p.mu.Unlock()
		return ErrForeignResource
	}
	delete(p.out, r)
	log.Debug("discarding resource")
	p.discardLocked(r, time.Now())
	return nil
}

// discardLocked destroys r, which the caller already removed from the
// checked out set, and restores the minimum size. Called with p.mu held;
// returns with it released.
func (p *Pool) discardLocked(r Resource, now time.Time) {
	p.stats.onDestroyed(1)
	replace := p.enabled && p.sizeLocked() < p.config.MinimumSize
	if replace {
		p.pending++
	}
	p.cond.Signal()
	p.recordLocked(now)
	cred := p.cred
	p.mu.Unlock()

	p.destroy(r)
	if replace {
		p.replenish(cred)
	}
}

// replenish creates a resource for a slot already reserved in p.pending and
// puts it on the idle stack.
func (p *Pool) replenish(cred Credential) {
	r, err := p.factory.Create(context.Background(), cred)

	p.mu.Lock()
	p.pending--
	if err != nil {
		p.stats.onCreationFailure()
		p.cond.Signal()
		p.mu.Unlock()
		log.WithError(err).WithField("user", cred.User).Warn("failed to create replacement resource")
		return
	}

	p.stats.onCreated()
	if p.closed {
		p.stats.onDestroyed(1)
		p.mu.Unlock()
		p.destroy(r)
		return
	}
	now := time.Now()
	p.idle = append(p.idle, idleResource{res: r, lastUsed: now})
	p.cond.Signal()
	p.recordLocked(now)
	p.mu.Unlock()
	log.Debug("created replacement resource")
}

// destroyOrphan destroys r if it was checked out from this closed pool.
func (p *Pool) destroyOrphan(r Resource) {
	p.mu.Lock()
	_, ok := p.out[r]
	if ok {
		delete(p.out, r)
		p.stats.onDestroyed(1)
	}
	p.mu.Unlock()

	if ok {
		p.destroy(r)
	}
}

func (p *Pool) destroy(r Resource) {
	if err := p.factory.Destroy(r); err != nil {
		log.WithError(err).Warn("failed to destroy resource")
	}
}

// popIdleLocked takes the most recently returned resource.
func (p *Pool) popIdleLocked() (Resource, bool) {
	n := len(p.idle)
	if n == 0 {
		return nil, false
	}
	ir := p.idle[n-1]
	p.idle[n-1] = idleResource{}
	p.idle = p.idle[:n-1]
	return ir.res, true
}

func (p *Pool) usableLocked() error {
	if p.closed {
		return ErrPoolClosed
	}
	if !p.enabled {
		return ErrPoolDisabled
	}
	return nil
}

// sizeLocked counts slots held against the maximum, including creations in
// flight.
func (p *Pool) sizeLocked() int {
	return p.liveLocked() + p.pending
}

// liveLocked counts resources that exist: available plus in use.
func (p *Pool) liveLocked() int {
	return len(p.idle) + len(p.out)
}

// recordLocked appends an occupancy snapshot and reports size changes.
func (p *Pool) recordLocked(now time.Time) {
	size := p.liveLocked()
	p.stats.record(Snapshot{Time: now, Size: size, InUse: len(p.out)})
	if size != p.size {
		p.size = size
		p.events.emit(Event{Type: EventSizeChanged, Timestamp: now, Size: size, InUse: len(p.out)})
	}
}

// SetEnabled enables or disables the pool. A disabled pool rejects checkout
// and checkin but keeps its resources.
func (p *Pool) SetEnabled(enabled bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrPoolClosed
	}
	if p.enabled == enabled {
		return nil
	}
	p.enabled = enabled

	ev := Event{Type: EventEnabled, Size: p.liveLocked(), InUse: len(p.out)}
	if !enabled {
		ev.Type = EventDisabled
		// waiters must observe the new state
		p.cond.Broadcast()
	}
	p.events.emit(ev)
	log.WithField("enabled", enabled).Info("pool state changed")
	return nil
}

// Enabled reports whether the pool accepts checkouts.
func (p *Pool) Enabled() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.enabled
}

// Closed reports whether the pool has been closed.
func (p *Pool) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// Close destroys all idle resources, stops the background tasks and makes
// the pool permanently unusable. Checked out resources are destroyed when
// they are checked in. Closing twice returns ErrPoolClosed.
func (p *Pool) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrPoolClosed
	}
	p.closed = true

	idle := p.idle
	p.idle = nil
	p.stats.onDestroyed(len(idle))
	now := time.Now()
	p.recordLocked(now)
	p.events.emit(Event{Type: EventClosed, Timestamp: now, Size: p.liveLocked(), InUse: len(p.out)})
	p.events.close()
	p.cond.Broadcast()
	p.mu.Unlock()

	p.cleanup.halt()
	p.sampler.halt()

	for _, ir := range idle {
		p.destroy(ir.res)
	}

	log.WithField("destroyed", len(idle)).Info("pool closed")
	return nil
}

// SetCredential replaces the credential used for new resources. Existing
// resources are kept.
func (p *Pool) SetCredential(cred Credential) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrPoolClosed
	}
	p.cred = cred
	log.WithField("user", cred.User).Info("pool credential updated")
	return nil
}

// Credential returns the credential used for new resources.
func (p *Pool) Credential() Credential {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cred
}

// Config returns a copy of the current configuration.
func (p *Pool) Config() Config {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.config
}

// SetMinimumSize sets the size below which cleanup never shrinks the pool.
func (p *Pool) SetMinimumSize(n int) error {
	return p.updateConfig(func(c *Config) { c.MinimumSize = n })
}

// SetMaximumSize sets the maximum number of resources. Lowering it below the
// current size destroys excess resources as they are checked in.
func (p *Pool) SetMaximumSize(n int) error {
	return p.updateConfig(func(c *Config) { c.MaximumSize = n })
}

// SetCleanupInterval sets the period of the idle eviction sweep.
func (p *Pool) SetCleanupInterval(d time.Duration) error {
	return p.updateConfig(func(c *Config) { c.CleanupInterval = d })
}

// SetResourceTimeout sets how long a resource may stay idle.
func (p *Pool) SetResourceTimeout(d time.Duration) error {
	return p.updateConfig(func(c *Config) { c.ResourceTimeout = d })
}

// SetMaximumCheckoutWait sets how long a checkout waits on a saturated pool.
func (p *Pool) SetMaximumCheckoutWait(d time.Duration) error {
	return p.updateConfig(func(c *Config) { c.MaximumCheckoutWait = d })
}

// SetNewResourceThreshold sets how long a checkout waits for a returned
// resource before creating one below the maximum size.
func (p *Pool) SetNewResourceThreshold(d time.Duration) error {
	return p.updateConfig(func(c *Config) { c.NewResourceThreshold = d })
}

// SetStatisticsInterval sets the rate sampling period.
func (p *Pool) SetStatisticsInterval(d time.Duration) error {
	return p.updateConfig(func(c *Config) { c.StatisticsInterval = d })
}

// SetCollectFineGrainedStatistics turns occupancy snapshots on or off.
// Turning them off discards the retained snapshots.
func (p *Pool) SetCollectFineGrainedStatistics(on bool) error {
	return p.updateConfig(func(c *Config) { c.CollectFineGrainedStatistics = on })
}

// updateConfig validates a modified copy of the configuration and swaps it
// in, so a rejected update leaves the previous values untouched.
func (p *Pool) updateConfig(apply func(*Config)) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrPoolClosed
	}

	next := p.config
	apply(&next)
	if err := next.Validate(); err != nil {
		p.mu.Unlock()
		log.WithError(err).Debug("rejected pool configuration")
		return err
	}
	prev := p.config
	p.config = next

	if next.CollectFineGrainedStatistics != prev.CollectFineGrainedStatistics {
		p.stats.setFineGrained(next.CollectFineGrainedStatistics)
	}
	// a larger maximum or shorter threshold may let waiters create
	p.cond.Broadcast()
	p.events.emit(Event{Type: EventConfigChanged, Size: p.liveLocked(), InUse: len(p.out)})
	p.mu.Unlock()

	if next.CleanupInterval != prev.CleanupInterval {
		p.cleanup.setInterval(next.CleanupInterval)
	}
	if next.StatisticsInterval != prev.StatisticsInterval {
		p.sampler.setInterval(next.StatisticsInterval)
	}
	return nil
}

func creationError(err error, cred Credential) error {
	return oops.
		In("pool").
		With("user", cred.User).
		Wrapf(fmt.Errorf("%w: %w", ErrResourceCreation, err), "creating resource")
}
