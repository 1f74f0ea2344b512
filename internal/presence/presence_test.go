package presence

import (
	"testing"
	"time"

	"github.com/elaichix/NubaGuard-AI/pkg/types"
)

var t0 = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

const frame = 100 * time.Millisecond

func at(d time.Duration) time.Time { return t0.Add(d) }

func sample(d time.Duration, significant bool) types.MotionSample {
	return types.MotionSample{At: at(d), Significant: significant}
}

// feed sends one sample per frame in [from, to] and returns the first
// transition that changed state, if any.
func feed(m *Machine, from, to time.Duration, significant bool) (Transition, bool) {
	for d := from; d <= to; d += frame {
		if tr := m.Observe(sample(d, significant)); tr.Changed {
			return tr, true
		}
	}
	return Transition{}, false
}

func TestMachine_InitialState(t *testing.T) {
	t.Parallel()
	m := New(Config{})
	if m.State() != types.Sleeping {
		t.Fatalf("initial state = %v, want sleeping", m.State())
	}
	cfg := m.Config()
	if cfg.MotionDuration != DefaultMotionDuration || cfg.InactivityTimeout != DefaultInactivityTimeout {
		t.Errorf("defaults not applied: %+v", cfg)
	}
}

func TestMachine_ShortMotionNeverWakes(t *testing.T) {
	t.Parallel()
	m := New(Config{MotionDuration: 2 * time.Second, GapTolerance: 500 * time.Millisecond})

	// 1.9s of motion, then a long still period, then another 1.9s burst.
	if _, changed := feed(m, 0, 1900*time.Millisecond, true); changed {
		t.Fatal("woke after 1.9s of motion")
	}
	if _, changed := feed(m, 2*time.Second, 5*time.Second, false); changed {
		t.Fatal("transitioned during stillness")
	}
	if _, running := m.MotionStartedAt(); running {
		t.Error("motion accumulation should be cleared after stillness")
	}
	if _, changed := feed(m, 5100*time.Millisecond, 7*time.Second, true); changed {
		t.Fatal("woke after a second 1.9s burst")
	}
	if m.State() != types.Sleeping {
		t.Fatalf("state = %v, want sleeping", m.State())
	}
}

func TestMachine_ContinuousMotionWakesAtThreshold(t *testing.T) {
	t.Parallel()
	m := New(Config{MotionDuration: 2 * time.Second})

	tr, changed := feed(m, 0, 3*time.Second, true)
	if !changed || !tr.Woke() {
		t.Fatalf("expected wake, got %+v (changed=%v)", tr, changed)
	}
	if !tr.At.Equal(at(2 * time.Second)) {
		t.Errorf("woke at %v, want exactly 2s after motion start", tr.At.Sub(t0))
	}
}

func TestMachine_GapWithinToleranceIsContinuous(t *testing.T) {
	t.Parallel()
	m := New(Config{MotionDuration: 2 * time.Second, GapTolerance: 500 * time.Millisecond})

	m.Observe(sample(0, true))
	m.Observe(sample(400*time.Millisecond, false))
	m.Observe(sample(800*time.Millisecond, true)) // 0.8s gap since last motion would exceed tolerance
	start, _ := m.MotionStartedAt()
	if !start.Equal(at(800 * time.Millisecond)) {
		t.Fatalf("accumulation should restart after a gap over tolerance, started at %v", start.Sub(t0))
	}

	m.Observe(sample(1200*time.Millisecond, true)) // 0.4s gap: tolerated
	start, _ = m.MotionStartedAt()
	if !start.Equal(at(800 * time.Millisecond)) {
		t.Fatalf("tolerated gap restarted accumulation at %v", start.Sub(t0))
	}

	tr := m.Observe(sample(2800*time.Millisecond, true)) // 1.6s gap: restart
	if tr.Changed {
		t.Fatal("a gap beyond tolerance must not count toward the threshold")
	}
}

func TestMachine_SleepsAtExactlyInactivityTimeout(t *testing.T) {
	t.Parallel()
	m := New(Config{MotionDuration: 2 * time.Second, InactivityTimeout: 15 * time.Second})
	feed(m, 0, 2*time.Second, true)
	if m.State() != types.Awake {
		t.Fatal("setup: expected awake")
	}

	last, _ := m.LastMotionAt()
	if tr := m.Observe(types.MotionSample{At: last.Add(15*time.Second - time.Millisecond)}); tr.Changed {
		t.Fatal("slept before the inactivity timeout")
	}
	tr := m.Observe(types.MotionSample{At: last.Add(15 * time.Second)})
	if !tr.FellAsleep() {
		t.Fatalf("expected sleep at exactly the timeout, got %+v", tr)
	}
	if _, running := m.MotionStartedAt(); running {
		t.Error("motion accumulation should be cleared on sleep")
	}
}

func TestMachine_MotionKeepsAwake(t *testing.T) {
	t.Parallel()
	m := New(Config{MotionDuration: time.Second, InactivityTimeout: 3 * time.Second})
	feed(m, 0, time.Second, true)

	// Short bursts every 2s keep resetting the inactivity clock.
	for i := 1; i <= 5; i++ {
		d := time.Second + time.Duration(i)*2*time.Second
		if tr := m.Observe(sample(d, true)); tr.Changed {
			t.Fatalf("transition at %v", d)
		}
		if tr := m.Observe(sample(d+time.Second, false)); tr.Changed {
			t.Fatalf("transition at %v", d+time.Second)
		}
	}
	if m.State() != types.Awake {
		t.Fatalf("state = %v, want awake", m.State())
	}
}

func TestMachine_WakeAgainAfterSleep(t *testing.T) {
	t.Parallel()
	m := New(Config{MotionDuration: time.Second, InactivityTimeout: 2 * time.Second})
	feed(m, 0, time.Second, true)
	feed(m, 1100*time.Millisecond, 4*time.Second, false)
	if m.State() != types.Sleeping {
		t.Fatal("setup: expected sleeping")
	}
	tr, changed := feed(m, 5*time.Second, 7*time.Second, true)
	if !changed || !tr.Woke() || !tr.At.Equal(at(6*time.Second)) {
		t.Fatalf("expected second wake at 6s, got %+v", tr)
	}
}

func TestConfig_GapToleranceClamped(t *testing.T) {
	t.Parallel()
	m := New(Config{MotionDuration: time.Second, GapTolerance: 5 * time.Second})
	if got := m.Config().GapTolerance; got != time.Second {
		t.Errorf("GapTolerance = %v, want clamped to 1s", got)
	}
}
