package resilience

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

var errBoom = errors.New("boom")

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock { return &fakeClock{now: time.Unix(1_700_000_000, 0)} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func fail() error { return errBoom }
func ok() error   { return nil }

func TestBreaker_Defaults(t *testing.T) {
	b := NewBreaker(BreakerConfig{Name: "llm"})
	if b.cfg.MaxFailures != 5 || b.cfg.Cooloff != 30*time.Second || b.cfg.Probes != 1 {
		t.Errorf("defaults = %+v", b.cfg)
	}
	if b.State() != Closed {
		t.Errorf("initial state = %v", b.State())
	}
	if b.Name() != "llm" {
		t.Errorf("Name = %q", b.Name())
	}
}

func TestBreaker_OpensAfterConsecutiveFailures(t *testing.T) {
	clk := newFakeClock()
	b := NewBreaker(BreakerConfig{MaxFailures: 3, Now: clk.Now})

	for range 3 {
		if err := b.Do(fail); !errors.Is(err, errBoom) {
			t.Fatalf("Do = %v, want errBoom", err)
		}
	}
	if b.State() != Open {
		t.Fatalf("state = %v, want open", b.State())
	}

	called := false
	err := b.Do(func() error { called = true; return nil })
	if !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("Do while open = %v, want ErrCircuitOpen", err)
	}
	if called {
		t.Error("fn ran while the circuit was open")
	}
}

func TestBreaker_SuccessResetsCount(t *testing.T) {
	b := NewBreaker(BreakerConfig{MaxFailures: 3})
	_ = b.Do(fail)
	_ = b.Do(fail)
	_ = b.Do(ok)
	_ = b.Do(fail)
	_ = b.Do(fail)
	if b.State() != Closed {
		t.Fatalf("state = %v, want closed", b.State())
	}
}

func TestBreaker_HalfOpenProbe(t *testing.T) {
	tests := []struct {
		name  string
		probe func() error
		want  State
	}{
		{name: "success closes", probe: ok, want: Closed},
		{name: "failure reopens", probe: fail, want: Open},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clk := newFakeClock()
			b := NewBreaker(BreakerConfig{MaxFailures: 1, Cooloff: time.Minute, Now: clk.Now})
			_ = b.Do(fail)

			clk.Advance(time.Minute)
			if b.State() != HalfOpen {
				t.Fatalf("state after cool-off = %v, want half-open", b.State())
			}
			_ = b.Do(tt.probe)
			if got := b.State(); got != tt.want {
				t.Errorf("state after probe = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestBreaker_HalfOpenAdmitsBoundedProbes(t *testing.T) {
	clk := newFakeClock()
	b := NewBreaker(BreakerConfig{MaxFailures: 1, Cooloff: time.Second, Now: clk.Now})
	_ = b.Do(fail)
	clk.Advance(time.Second)

	release := make(chan struct{})
	started := make(chan struct{})
	go func() {
		_ = b.Do(func() error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started

	if err := b.Do(ok); !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("second probe = %v, want ErrCircuitOpen", err)
	}
	close(release)
}

func TestBreaker_CancellationIsNotAFailure(t *testing.T) {
	b := NewBreaker(BreakerConfig{MaxFailures: 1})
	err := b.Do(func() error { return fmt.Errorf("wrapped: %w", context.Canceled) })
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Do = %v", err)
	}
	if b.State() != Closed {
		t.Errorf("state = %v, want closed", b.State())
	}
}

func TestBreaker_StateChangeCallback(t *testing.T) {
	clk := newFakeClock()
	var (
		mu   sync.Mutex
		seen []string
	)
	b := NewBreaker(BreakerConfig{
		Name:        "tts",
		MaxFailures: 1,
		Cooloff:     time.Second,
		Now:         clk.Now,
		OnStateChange: func(name string, from, to State) {
			mu.Lock()
			seen = append(seen, name+":"+from.String()+"->"+to.String())
			mu.Unlock()
		},
	})
	_ = b.Do(fail)
	clk.Advance(time.Second)
	_ = b.Do(ok)
	b.Reset()

	want := []string{"tts:closed->open", "tts:open->half-open", "tts:half-open->closed"}
	mu.Lock()
	defer mu.Unlock()
	if fmt.Sprint(seen) != fmt.Sprint(want) {
		t.Errorf("transitions = %v, want %v", seen, want)
	}
}

func TestBreaker_Reset(t *testing.T) {
	b := NewBreaker(BreakerConfig{MaxFailures: 1, Cooloff: time.Hour})
	_ = b.Do(fail)
	b.Reset()
	if b.State() != Closed {
		t.Fatalf("state = %v after Reset", b.State())
	}
	if err := b.Do(ok); err != nil {
		t.Errorf("Do after Reset = %v", err)
	}
}
