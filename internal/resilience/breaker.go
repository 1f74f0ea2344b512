// Package resilience protects NubaGuard from flaky cloud backends.
//
// A [Breaker] stops calling a backend that keeps failing and probes it again
// after a cool-off. A [Group] chains several backends of the same kind, each
// behind its own breaker, and uses the first one that answers. The LLM, STT
// and TTS wrappers make a Group satisfy the matching provider interface.
//
// All types are safe for concurrent use.
package resilience

import (
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrCircuitOpen is returned by [Breaker.Do] while the breaker refuses calls.
var ErrCircuitOpen = errors.New("resilience: circuit open")

// State is the operating mode of a [Breaker].
type State int

const (
	// Closed forwards every call.
	Closed State = iota

	// Open rejects calls with [ErrCircuitOpen] until the cool-off elapses.
	Open

	// HalfOpen lets a bounded number of probe calls through.
	HalfOpen
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// BreakerConfig tunes a [Breaker]. Zero fields take defaults.
type BreakerConfig struct {
	// Name labels log lines and state-change callbacks.
	Name string `yaml:"-"`

	// MaxFailures is how many consecutive failures open the breaker.
	// Default: 5.
	MaxFailures int `yaml:"max_failures"`

	// Cooloff is how long the breaker stays open before probing.
	// Default: 30s.
	Cooloff time.Duration `yaml:"cooloff"`

	// Probes is how many successful half-open calls close the breaker.
	// Default: 1.
	Probes int `yaml:"probes"`

	// OnStateChange, if set, is called after every transition. It runs with
	// the breaker unlocked.
	OnStateChange func(name string, from, to State) `yaml:"-"`

	// Now overrides the clock. Tests only.
	Now func() time.Time `yaml:"-"`
}

func (c BreakerConfig) withDefaults() BreakerConfig {
	if c.MaxFailures <= 0 {
		c.MaxFailures = 5
	}
	if c.Cooloff <= 0 {
		c.Cooloff = 30 * time.Second
	}
	if c.Probes <= 0 {
		c.Probes = 1
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	return c
}

// Breaker is a three-state circuit breaker.
type Breaker struct {
	cfg BreakerConfig

	mu       sync.Mutex
	state    State
	failures int
	openedAt time.Time
	inflight int // probes admitted in half-open
	passed   int // probes that succeeded in half-open
}

// NewBreaker returns a closed breaker.
func NewBreaker(cfg BreakerConfig) *Breaker {
	return &Breaker{cfg: cfg.withDefaults()}
}

// Name returns the configured label.
func (b *Breaker) Name() string { return b.cfg.Name }

// Do runs fn unless the breaker is open. fn's error is returned unchanged and
// counted as a failure; context cancellation by the caller is not counted.
func (b *Breaker) Do(fn func() error) error {
	probe, err := b.admit()
	if err != nil {
		return err
	}
	err = fn()
	b.settle(probe, err)
	return err
}

func (b *Breaker) admit() (probe bool, err error) {
	b.mu.Lock()
	var changed bool
	from := b.state
	switch b.state {
	case Open:
		if b.cfg.Now().Sub(b.openedAt) < b.cfg.Cooloff {
			b.mu.Unlock()
			return false, ErrCircuitOpen
		}
		b.state, b.inflight, b.passed = HalfOpen, 0, 0
		changed = true
		fallthrough
	case HalfOpen:
		if b.inflight >= b.cfg.Probes {
			b.mu.Unlock()
			b.notify(changed, from, HalfOpen)
			return false, ErrCircuitOpen
		}
		b.inflight++
		probe = true
	}
	to := b.state
	b.mu.Unlock()
	b.notify(changed, from, to)
	return probe, nil
}

func (b *Breaker) settle(probe bool, err error) {
	if isCanceled(err) {
		if probe {
			b.mu.Lock()
			b.inflight--
			b.mu.Unlock()
		}
		return
	}

	b.mu.Lock()
	from := b.state
	switch {
	case err != nil && probe:
		b.trip()
	case err != nil:
		b.failures++
		if b.failures >= b.cfg.MaxFailures {
			b.trip()
		}
	case probe:
		b.passed++
		if b.passed >= b.cfg.Probes {
			b.state, b.failures = Closed, 0
		}
	default:
		b.failures = 0
	}
	to := b.state
	failures := b.failures
	b.mu.Unlock()

	if from != to {
		if to == Open {
			slog.Warn("circuit opened", "name", b.cfg.Name, "consecutive_failures", failures)
		} else {
			slog.Info("circuit closed", "name", b.cfg.Name)
		}
	}
	b.notify(from != to, from, to)
}

// trip must be called with b.mu held.
func (b *Breaker) trip() {
	b.state = Open
	b.openedAt = b.cfg.Now()
	b.inflight, b.passed = 0, 0
}

func (b *Breaker) notify(changed bool, from, to State) {
	if changed && b.cfg.OnStateChange != nil {
		b.cfg.OnStateChange(b.cfg.Name, from, to)
	}
}

// State reports the current mode. An open breaker whose cool-off has elapsed
// reports [HalfOpen]; the transition itself happens on the next call.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == Open && b.cfg.Now().Sub(b.openedAt) >= b.cfg.Cooloff {
		return HalfOpen
	}
	return b.state
}

// Reset forces the breaker closed.
func (b *Breaker) Reset() {
	b.mu.Lock()
	from := b.state
	b.state, b.failures, b.inflight, b.passed = Closed, 0, 0, 0
	b.mu.Unlock()
	b.notify(from != Closed, from, Closed)
}
