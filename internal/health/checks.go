package health

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Runner is anything that can report whether its background loop is alive,
// such as the capture worker.
type Runner interface {
	Running() bool
}

// Pinger is anything that can probe a backing store.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Running fails while r reports it is not running.
func Running(name string, r Runner) Checker {
	return Checker{Name: name, Check: func(context.Context) error {
		if !r.Running() {
			return errors.New("not running")
		}
		return nil
	}}
}

// Ping fails when p.Ping fails.
func Ping(name string, p Pinger) Checker {
	return Checker{Name: name, Check: p.Ping}
}

// Fresh fails when last reports a time older than maxAge, or the zero time.
// It detects a stalled loop that is still nominally running.
func Fresh(name string, last func() time.Time, maxAge time.Duration, now func() time.Time) Checker {
	if now == nil {
		now = time.Now
	}
	return Checker{Name: name, Check: func(context.Context) error {
		t := last()
		if t.IsZero() {
			return errors.New("no activity yet")
		}
		if age := now().Sub(t); age > maxAge {
			return fmt.Errorf("last activity %s ago", age.Truncate(time.Millisecond))
		}
		return nil
	}}
}
