package activity

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultBuffer is the queue depth of an [Async] sink.
const DefaultBuffer = 256

// Async decouples callers from a slow sink. Record never blocks; when the
// buffer is full the entry is dropped and counted.
type Async struct {
	sink    Sink
	entries chan Entry
	dropped atomic.Uint64
	done    chan struct{}

	mu       sync.RWMutex
	closed   bool
	closeErr error
}

var _ Sink = (*Async)(nil)

// NewAsync starts a goroutine writing to sink. A buffer of zero or less uses
// [DefaultBuffer].
func NewAsync(sink Sink, buffer int) *Async {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	a := &Async{
		sink:    sink,
		entries: make(chan Entry, buffer),
		done:    make(chan struct{}),
	}
	go a.run()
	return a
}

func (a *Async) run() {
	defer close(a.done)
	for e := range a.entries {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := a.sink.Record(ctx, e); err != nil {
			slog.Warn("activity: record failed", "event", e.Event, "err", err)
		}
		cancel()
	}
}

// Record queues e. It returns nil even when e is dropped.
func (a *Async) Record(_ context.Context, e Entry) error {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		a.dropped.Add(1)
		return nil
	}
	select {
	case a.entries <- e:
	default:
		if a.dropped.Add(1) == 1 {
			slog.Warn("activity: buffer full, dropping entries")
		}
	}
	return nil
}

// Dropped returns the number of entries discarded so far.
func (a *Async) Dropped() uint64 { return a.dropped.Load() }

// Close flushes queued entries and closes the underlying sink. It is
// idempotent.
func (a *Async) Close() error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		<-a.done
		return a.closeErr
	}
	a.closed = true
	close(a.entries)
	a.mu.Unlock()

	<-a.done
	err := a.sink.Close()
	a.mu.Lock()
	a.closeErr = err
	a.mu.Unlock()
	return err
}
