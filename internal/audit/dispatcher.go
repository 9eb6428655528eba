package audit

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	logging "github.com/ipfs/go-log/v2"
)

var log = logging.Logger("authcore/audit")

// dropLogEvery spaces out the "buffer full" warning under sustained overload.
const dropLogEvery = 1000

// Config controls dispatcher buffering behavior.
type Config struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// Dispatcher hands events to a single delivery goroutine so a slow sink
// never sits on the login path. A nil *Dispatcher discards everything,
// which is what NewDispatcher returns when auditing is off.
type Dispatcher struct {
	sink       Sink
	queue      chan Event
	dropIfFull bool

	stopping chan struct{}
	stopped  chan struct{}
	stopOnce sync.Once
	shut     atomic.Bool
	dropped  atomic.Uint64
}

// NewDispatcher starts the delivery goroutine, or returns nil when cfg is
// disabled. A nil sink discards events.
func NewDispatcher(cfg Config, sink Sink) *Dispatcher {
	if !cfg.Enabled {
		return nil
	}
	if sink == nil {
		sink = NoOpSink{}
	}
	d := &Dispatcher{
		sink:       sink,
		queue:      make(chan Event, max(cfg.BufferSize, 1)),
		dropIfFull: cfg.DropIfFull,
		stopping:   make(chan struct{}),
		stopped:    make(chan struct{}),
	}
	go d.loop()
	return d
}

func (d *Dispatcher) loop() {
	defer close(d.stopped)
	for {
		select {
		case ev := <-d.queue:
			d.deliver(ev)
		case <-d.stopping:
			d.drain()
			return
		}
	}
}

// drain flushes whatever is still queued once Close has been called.
func (d *Dispatcher) drain() {
	for {
		select {
		case ev := <-d.queue:
			d.deliver(ev)
		default:
			return
		}
	}
}

// deliver isolates the dispatcher from a panicking sink.
func (d *Dispatcher) deliver(ev Event) {
	defer func() {
		if r := recover(); r != nil {
			log.Errorw("audit sink panicked", "type", ev.Type, "panic", r)
		}
	}()
	d.sink.Emit(context.Background(), ev)
}

// Emit queues event, stamping it with the current UTC time when unset. With
// DropIfFull a full queue drops and counts the event; otherwise Emit waits
// for room, for ctx, or for Close.
func (d *Dispatcher) Emit(ctx context.Context, event Event) {
	if d == nil || d.shut.Load() {
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	if d.dropIfFull {
		d.offer(event)
		return
	}

	var ctxDone <-chan struct{}
	if ctx != nil {
		ctxDone = ctx.Done()
	}
	select {
	case d.queue <- event:
	case <-ctxDone:
	case <-d.stopping:
	}
}

func (d *Dispatcher) offer(event Event) {
	select {
	case d.queue <- event:
		return
	case <-d.stopping:
		return
	default:
	}
	n := d.dropped.Add(1)
	if n == 1 || n%dropLogEvery == 0 {
		log.Warnw("audit queue full, events dropped", "dropped", n)
	}
}

// Close refuses further events, waits for queued ones to reach the sink,
// and is safe to call more than once.
func (d *Dispatcher) Close() {
	if d == nil {
		return
	}
	d.stopOnce.Do(func() {
		d.shut.Store(true)
		close(d.stopping)
	})
	<-d.stopped
}

// Dropped reports how many events DropIfFull discarded.
func (d *Dispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}
