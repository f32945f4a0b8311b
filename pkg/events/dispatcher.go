package events

import (
	"errors"
	"sync"
	"sync/atomic"

	"github.com/picogrid/swarm-nav/pkg/logger"
)

// ErrQueueFull is reported when an event is dropped because the dispatcher
// buffer is full
var ErrQueueFull = errors.New("event queue is full")

// Sink consumes events off the control loop
type Sink interface {
	Handle(Event) error
}

// SinkFunc adapts a function to Sink
type SinkFunc func(Event) error

func (f SinkFunc) Handle(e Event) error { return f(e) }

// Dispatcher hands events to sinks on a background goroutine. Emit never
// blocks: when the buffer is full the event is dropped and counted.
type Dispatcher struct {
	ch      chan Event
	sinks   []Sink
	log     logger.Logger
	dropped atomic.Uint64
	done    chan struct{}

	mu     sync.RWMutex
	closed bool
}

// NewDispatcher starts a dispatcher with the given buffer size
func NewDispatcher(buffer int, log logger.Logger, sinks ...Sink) *Dispatcher {
	if buffer <= 0 {
		buffer = 256
	}
	d := &Dispatcher{
		ch:    make(chan Event, buffer),
		sinks: sinks,
		log:   logger.OrDefault(log).WithPrefix("events"),
		done:  make(chan struct{}),
	}
	go d.run()
	return d
}

// Emit queues an event for the sinks
func (d *Dispatcher) Emit(e Event) {
	if err := d.TryEmit(e); err != nil {
		d.dropped.Add(1)
	}
}

// TryEmit is Emit with the drop reported to the caller
func (d *Dispatcher) TryEmit(e Event) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrQueueFull
	}
	select {
	case d.ch <- e:
		return nil
	default:
		return ErrQueueFull
	}
}

// Dropped is the number of events lost to a full buffer
func (d *Dispatcher) Dropped() uint64 {
	return d.dropped.Load()
}

// Close stops accepting events, drains the queue and waits for the sinks
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.ch)
	}
	d.mu.Unlock()
	<-d.done
}

func (d *Dispatcher) run() {
	defer close(d.done)
	for e := range d.ch {
		for _, s := range d.sinks {
			if err := s.Handle(e); err != nil {
				d.log.WithField("kind", e.Kind).Warnf("Sink failed: %v", err)
			}
		}
	}
}
