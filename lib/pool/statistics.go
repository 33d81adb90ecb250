package pool

import "time"

// Snapshot is a point-in-time record of pool occupancy.
type Snapshot struct {
	Time  time.Time `json:"time"`
	Size  int       `json:"size"`
	InUse int       `json:"in_use"`
}

// Statistics is a coherent view of the pool counters and occupancy.
type Statistics struct {
	Timestamp   time.Time `json:"timestamp"`
	ResetTime   time.Time `json:"reset_time"`
	MinimumSize int       `json:"minimum_size"`
	MaximumSize int       `json:"maximum_size"`
	// Size is Available plus InUse. Creations still in flight are counted
	// separately in Creating.
	Size      int `json:"size"`
	Available int `json:"available"`
	InUse     int `json:"in_use"`
	Creating  int `json:"creating"`
	Waiting   int `json:"waiting"`

	Requests         uint64 `json:"requests"`
	Created          uint64 `json:"created"`
	Destroyed        uint64 `json:"destroyed"`
	Delayed          uint64 `json:"delayed"`
	CreationFailures uint64 `json:"creation_failures"`

	RequestsPerSecond        float64 `json:"requests_per_second"`
	DelayedRequestsPerSecond float64 `json:"delayed_requests_per_second"`

	// Snapshots holds fine-grained occupancy records newer than the time
	// passed to Pool.Statistics. Empty when fine-grained collection is off.
	Snapshots []Snapshot `json:"snapshots,omitempty"`
}

// counters are the resettable lifetime counters.
type counters struct {
	requests         uint64
	created          uint64
	destroyed        uint64
	delayed          uint64
	creationFailures uint64
}

// collector accumulates counters, sampled rates and snapshots.
// It is guarded by the owning pool's mutex.
type collector struct {
	lifetime  counters
	resetTime time.Time

	// working counters, zeroed by every sample
	windowRequests uint64
	windowDelayed  uint64
	windowStart    time.Time

	requestsPerSecond float64
	delayedPerSecond  float64

	fineGrained bool
	ring        []Snapshot
	head        int
	count       int
}

func newCollector(now time.Time, capacity int, fineGrained bool) *collector {
	return &collector{
		resetTime:   now,
		windowStart: now,
		ring:        make([]Snapshot, capacity),
		fineGrained: fineGrained,
	}
}

func (c *collector) onRequest() {
	c.lifetime.requests++
	c.windowRequests++
	PoolRequestsTotal.Inc()
}

func (c *collector) onDelayed() {
	c.lifetime.delayed++
	c.windowDelayed++
	PoolDelayedTotal.Inc()
}

func (c *collector) onCreated() {
	c.lifetime.created++
	PoolCreatedTotal.Inc()
}

func (c *collector) onDestroyed(n int) {
	c.lifetime.destroyed += uint64(n)
	PoolDestroyedTotal.Add(uint64(n))
}

func (c *collector) onCreationFailure() {
	c.lifetime.creationFailures++
	PoolCreationFailuresTotal.Inc()
}

// sample derives per-second rates from the working counters and starts a
// new window.
func (c *collector) sample(now time.Time) {
	elapsed := now.Sub(c.windowStart).Seconds()
	if elapsed > 0 {
		c.requestsPerSecond = float64(c.windowRequests) / elapsed
		c.delayedPerSecond = float64(c.windowDelayed) / elapsed
	}
	c.windowRequests = 0
	c.windowDelayed = 0
	c.windowStart = now
}

func (c *collector) reset(now time.Time) {
	c.lifetime = counters{}
	c.resetTime = now
}

// record appends a snapshot when fine-grained collection is on, overwriting
// the oldest one once the ring is full.
func (c *collector) record(s Snapshot) {
	if !c.fineGrained {
		return
	}
	c.ring[c.head] = s
	c.head = (c.head + 1) % len(c.ring)
	if c.count < len(c.ring) {
		c.count++
	}
}

func (c *collector) setFineGrained(on bool) {
	c.fineGrained = on
	if !on {
		clear(c.ring)
		c.head = 0
		c.count = 0
	}
}

// snapshotsSince returns retained snapshots taken after since, oldest first.
func (c *collector) snapshotsSince(since time.Time) []Snapshot {
	var out []Snapshot
	start := (c.head - c.count + len(c.ring)) % len(c.ring)
	for i := 0; i < c.count; i++ {
		s := c.ring[(start+i)%len(c.ring)]
		if s.Time.After(since) {
			out = append(out, s)
		}
	}
	return out
}

// Statistics returns the pool statistics. Snapshots are limited to those
// taken after since; pass the zero time for all retained snapshots.
func (p *Pool) Statistics(since time.Time) Statistics {
	p.mu.Lock()
	defer p.mu.Unlock()

	stats := p.statisticsLocked(time.Now())
	stats.Snapshots = p.stats.snapshotsSince(since)
	return stats
}

func (p *Pool) statisticsLocked(now time.Time) Statistics {
	c := p.stats
	return Statistics{
		Timestamp:                now,
		ResetTime:                c.resetTime,
		MinimumSize:              p.config.MinimumSize,
		MaximumSize:              p.config.MaximumSize,
		Size:                     p.liveLocked(),
		Available:                len(p.idle),
		InUse:                    len(p.out),
		Creating:                 p.pending,
		Waiting:                  p.waiters,
		Requests:                 c.lifetime.requests,
		Created:                  c.lifetime.created,
		Destroyed:                c.lifetime.destroyed,
		Delayed:                  c.lifetime.delayed,
		CreationFailures:         c.lifetime.creationFailures,
		RequestsPerSecond:        c.requestsPerSecond,
		DelayedRequestsPerSecond: c.delayedPerSecond,
	}
}

// ResetStatistics zeroes the request, creation, destruction and delay
// counters and stamps a new reset time. Occupancy is not affected.
func (p *Pool) ResetStatistics() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrPoolClosed
	}
	now := time.Now()
	p.stats.reset(now)
	p.events.emit(Event{Type: EventStatisticsReset, Timestamp: now})
	log.Debug("pool statistics reset")
	return nil
}

// sampleRates is the periodic task of the rate sampler.
func (p *Pool) sampleRates() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	now := time.Now()
	p.stats.sample(now)
	stats := p.statisticsLocked(now)
	p.mu.Unlock()

	UpdateMetrics(stats)
}
