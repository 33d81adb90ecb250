package pool

import (
	"time"
)

// scheduler runs a task on a fixed, adjustable period on its own goroutine.
type scheduler struct {
	name  string
	task  func()
	reset chan time.Duration
	stop  chan struct{}
	done  chan struct{}
}

func startScheduler(name string, interval time.Duration, task func()) *scheduler {
	s := &scheduler{
		name:  name,
		task:  task,
		reset: make(chan time.Duration, 1),
		stop:  make(chan struct{}),
		done:  make(chan struct{}),
	}
	go s.loop(interval)
	return s
}

func (s *scheduler) loop(interval time.Duration) {
	defer close(s.done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case d := <-s.reset:
			ticker.Reset(d)
			log.WithField("task", s.name).WithField("interval", d).Debug("rescheduled pool task")
		case <-ticker.C:
			s.task()
		}
	}
}

// setInterval changes the period. It never blocks; a pending change that
// the loop has not picked up yet is replaced.
func (s *scheduler) setInterval(d time.Duration) {
	for {
		select {
		case s.reset <- d:
			return
		default:
		}
		select {
		case <-s.reset:
		default:
		}
	}
}

// halt stops the loop and waits for a running task to finish.
func (s *scheduler) halt() {
	close(s.stop)
	<-s.done
}

// evictIdle destroys resources idle for longer than the resource timeout,
// oldest first, without shrinking the pool below its minimum size.
// It returns the number of resources evicted.
func (p *Pool) evictIdle() int {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return 0
	}

	now := time.Now()
	// a creation in flight may still fail, so it does not hold up the floor
	excess := p.liveLocked() - p.config.MinimumSize
	var evicted []Resource
	kept := p.idle[:0]
	// idle is a stack, so the oldest entries are at the bottom
	for _, ir := range p.idle {
		if excess > 0 && now.Sub(ir.lastUsed) > p.config.ResourceTimeout {
			evicted = append(evicted, ir.res)
			excess--
			continue
		}
		kept = append(kept, ir)
	}
	clear(p.idle[len(kept):])
	p.idle = kept

	if len(evicted) > 0 {
		p.stats.onDestroyed(len(evicted))
		p.recordLocked(now)
	}
	p.mu.Unlock()

	for _, r := range evicted {
		p.destroy(r)
	}
	if len(evicted) > 0 {
		log.WithField("evicted", len(evicted)).Debug("cleanup removed idle resources")
	}
	return len(evicted)
}
