package authgate

import (
	"context"
	"sync"
	"sync/atomic"
)

// auditDispatcher hands events to the sink on a single worker goroutine so
// request handlers never wait on sink I/O.
type auditDispatcher struct {
	sink       AuditSink
	dropIfFull bool

	queue   chan AuditEvent
	stop    chan struct{}
	drain   chan struct{}
	stopped chan struct{}
	once    sync.Once

	// mu is held shared by every Emit; Close takes it exclusively so that no
	// send can land after the final flush.
	mu     sync.RWMutex
	closed bool

	dropped atomic.Uint64
}

// newAuditDispatcher returns nil when auditing is off; every method accepts a
// nil receiver.
func newAuditDispatcher(cfg AuditConfig, sink AuditSink) *auditDispatcher {
	if !cfg.Enabled {
		return nil
	}
	if sink == nil {
		sink = NoOpSink{}
	}
	size := cfg.BufferSize
	if size < 1 {
		size = 1
	}

	d := &auditDispatcher{
		sink:       sink,
		dropIfFull: cfg.DropIfFull,
		queue:      make(chan AuditEvent, size),
		stop:       make(chan struct{}),
		drain:      make(chan struct{}),
		stopped:    make(chan struct{}),
	}
	go d.work()
	return d
}

func (d *auditDispatcher) work() {
	defer close(d.stopped)

	ctx := context.Background()
	for {
		select {
		case event := <-d.queue:
			d.sink.Emit(ctx, event)
		case <-d.drain:
			// No sender is left; flush what was queued.
			for n := len(d.queue); n > 0; n-- {
				d.sink.Emit(ctx, <-d.queue)
			}
			return
		}
	}
}

// Emit queues event. A full queue drops the event when dropIfFull is set and
// otherwise waits for room, for ctx, or for Close. Every event that never
// reaches the sink counts as dropped, including those refused after Close.
func (d *auditDispatcher) Emit(ctx context.Context, event AuditEvent) {
	if d == nil {
		return
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		d.dropped.Add(1)
		return
	}

	if d.dropIfFull {
		select {
		case d.queue <- event:
		default:
			d.dropped.Add(1)
		}
		return
	}

	if ctx == nil {
		ctx = context.Background()
	}
	select {
	case d.queue <- event:
	case <-ctx.Done():
		d.dropped.Add(1)
	case <-d.stop:
		d.dropped.Add(1)
	}
}

// Close refuses new events, flushes the queue and waits for the worker.
// Repeated calls are no-ops.
func (d *auditDispatcher) Close() {
	if d == nil {
		return
	}
	d.once.Do(func() {
		// Release blocked senders before waiting for them.
		close(d.stop)
		d.mu.Lock()
		d.closed = true
		d.mu.Unlock()
		close(d.drain)
	})
	<-d.stopped
}

func (d *auditDispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}
