package pool

import (
	"sync/atomic"
	"time"
)

// EventType categorizes pool events.
type EventType int

const (
	// EventSizeChanged is emitted when the number of resources changes.
	EventSizeChanged EventType = iota
	// EventEnabled is emitted when a disabled pool is enabled.
	EventEnabled
	// EventDisabled is emitted when an enabled pool is disabled.
	EventDisabled
	// EventClosed is emitted once when the pool closes. It is the last event.
	EventClosed
	// EventConfigChanged is emitted after a successful configuration update.
	EventConfigChanged
	// EventStatisticsReset is emitted after ResetStatistics.
	EventStatisticsReset
)

// String returns a human-readable name for the event type.
func (t EventType) String() string {
	switch t {
	case EventSizeChanged:
		return "size_changed"
	case EventEnabled:
		return "enabled"
	case EventDisabled:
		return "disabled"
	case EventClosed:
		return "closed"
	case EventConfigChanged:
		return "config_changed"
	case EventStatisticsReset:
		return "statistics_reset"
	default:
		return "unknown"
	}
}

// Event is a pool state notification.
type Event struct {
	Type      EventType
	Timestamp time.Time
	// Size and InUse are the occupancy when the event was emitted.
	Size  int
	InUse int
}

// eventEmitter delivers events on a buffered channel.
// It is guarded by the owning pool's mutex.
type eventEmitter struct {
	events       chan Event
	closed       bool
	droppedCount atomic.Uint64
}

func newEventEmitter(bufferSize int) *eventEmitter {
	return &eventEmitter{events: make(chan Event, bufferSize)}
}

// emit never blocks: when the consumer falls behind the event is dropped
// and counted.
func (e *eventEmitter) emit(event Event) {
	if e.closed {
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	select {
	case e.events <- event:
	default:
		e.droppedCount.Add(1)
	}
}

func (e *eventEmitter) close() {
	if !e.closed {
		e.closed = true
		close(e.events)
	}
}

// Events returns the channel on which pool events are delivered. The channel
// is closed after EventClosed. Events are dropped when it is full.
func (p *Pool) Events() <-chan Event {
	return p.events.events
}

// DroppedEvents returns the number of events dropped because the Events
// channel was full.
func (p *Pool) DroppedEvents() uint64 {
	return p.events.droppedCount.Load()
}
