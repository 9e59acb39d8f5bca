package events

import (
	"context"
	"sync"
	"time"

	"finflare/internal/log"
)

// Publisher sends activity events somewhere.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// Noop drops every event. It is used when AMQP is not configured.
type Noop struct{}

func (Noop) Publish(context.Context, Event) error { return nil }

// Dispatcher publishes events from a bounded queue on a background
// goroutine so request handlers never wait on the broker. Events are
// dropped when the queue is full.
type Dispatcher struct {
	next    Publisher
	logger  *log.Logger
	queue   chan Event
	done    chan struct{}
	stopped chan struct{}
	once    sync.Once
	timeout time.Duration

	mu      sync.Mutex
	dropped int
}

func NewDispatcher(next Publisher, size int, logger *log.Logger) *Dispatcher {
	if logger == nil {
		logger = log.Default()
	}
	if size < 1 {
		size = 256
	}
	d := &Dispatcher{
		next:    next,
		logger:  logger.WithComponent(log.ComponentEvents),
		queue:   make(chan Event, size),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
		timeout: publishTimeout,
	}
	go d.run()
	return d
}

// Publish enqueues ev. It never blocks.
func (d *Dispatcher) Publish(_ context.Context, ev Event) error {
	select {
	case <-d.done:
		return nil
	default:
	}
	select {
	case d.queue <- ev:
	default:
		d.mu.Lock()
		d.dropped++
		d.mu.Unlock()
		d.logger.Warn("Event queue full, dropping event", log.FieldEvent, string(ev.Type))
	}
	return nil
}

// Dropped is the number of events discarded because the queue was full.
func (d *Dispatcher) Dropped() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dropped
}

func (d *Dispatcher) run() {
	defer close(d.stopped)
	for {
		select {
		case ev := <-d.queue:
			d.send(ev)
		case <-d.done:
			// Flush what is already queued.
			for {
				select {
				case ev := <-d.queue:
					d.send(ev)
				default:
					return
				}
			}
		}
	}
}

func (d *Dispatcher) send(ev Event) {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()
	if err := d.next.Publish(ctx, ev); err != nil {
		d.logger.Warn("Publish event failed", log.FieldEvent, string(ev.Type), log.FieldError, err.Error())
	}
}

// Close stops accepting events and flushes the queue.
func (d *Dispatcher) Close() {
	d.once.Do(func() { close(d.done) })
	<-d.stopped
}
