// Package presence derives the subject's SLEEPING/AWAKE state from a stream
// of per-frame motion samples.
//
// The machine is a level-triggered debounce: only motion that persists for at
// least the configured duration wakes the subject, and only sustained
// stillness puts it back to sleep. A [Machine] is owned by a single goroutine
// and is not safe for concurrent use.
package presence

import (
	"time"

	"github.com/elaichix/NubaGuard-AI/pkg/types"
)

// Default thresholds.
const (
	DefaultMotionDuration    = 2 * time.Second
	DefaultGapTolerance      = time.Second
	DefaultInactivityTimeout = 15 * time.Second
)

// Config holds the debounce thresholds.
type Config struct {
	// MotionDuration is how long significant motion must persist before the
	// subject is considered awake.
	MotionDuration time.Duration

	// GapTolerance is the longest run of non-significant frames that still
	// counts as continuous motion. Longer stillness restarts the
	// accumulation. Values above MotionDuration are clamped to it.
	GapTolerance time.Duration

	// InactivityTimeout is how long without significant motion an awake
	// subject needs before being considered asleep.
	InactivityTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.MotionDuration <= 0 {
		c.MotionDuration = DefaultMotionDuration
	}
	if c.GapTolerance <= 0 {
		c.GapTolerance = DefaultGapTolerance
	}
	if c.GapTolerance > c.MotionDuration {
		c.GapTolerance = c.MotionDuration
	}
	if c.InactivityTimeout <= 0 {
		c.InactivityTimeout = DefaultInactivityTimeout
	}
	return c
}

// Transition describes the outcome of one [Machine.Observe] call.
type Transition struct {
	From    types.PresenceState
	To      types.PresenceState
	Changed bool

	// At is the sample time that caused the transition.
	At time.Time
}

// Woke reports whether the transition was SLEEPING to AWAKE.
func (t Transition) Woke() bool {
	return t.Changed && t.To == types.Awake
}

// FellAsleep reports whether the transition was AWAKE to SLEEPING.
func (t Transition) FellAsleep() bool {
	return t.Changed && t.To == types.Sleeping
}

// Machine tracks presence state. The zero value is not usable; call [New].
type Machine struct {
	cfg   Config
	state types.PresenceState

	motionStartedAt time.Time // zero when no accumulation is running
	lastMotionAt    time.Time // zero until the first significant sample
}

// New returns a Machine in the SLEEPING state.
func New(cfg Config) *Machine {
	return &Machine{cfg: cfg.withDefaults(), state: types.Sleeping}
}

// State returns the current presence state.
func (m *Machine) State() types.PresenceState { return m.state }

// Config returns the effective thresholds after defaults were applied.
func (m *Machine) Config() Config { return m.cfg }

// SetConfig replaces the thresholds. Accumulated motion timing is kept.
func (m *Machine) SetConfig(cfg Config) { m.cfg = cfg.withDefaults() }

// MotionStartedAt returns the start of the current motion accumulation and
// whether one is running.
func (m *Machine) MotionStartedAt() (time.Time, bool) {
	return m.motionStartedAt, !m.motionStartedAt.IsZero()
}

// LastMotionAt returns the time of the most recent significant sample and
// whether one was ever observed.
func (m *Machine) LastMotionAt() (time.Time, bool) {
	return m.lastMotionAt, !m.lastMotionAt.IsZero()
}

// Observe feeds one motion sample and applies at most one state transition.
// Samples must arrive in non-decreasing time order.
func (m *Machine) Observe(s types.MotionSample) Transition {
	tr := Transition{From: m.state, To: m.state, At: s.At}

	if s.Significant {
		if m.motionStartedAt.IsZero() || s.At.Sub(m.lastMotionAt) > m.cfg.GapTolerance {
			m.motionStartedAt = s.At
		}
		m.lastMotionAt = s.At

		if m.state == types.Sleeping && s.At.Sub(m.motionStartedAt) >= m.cfg.MotionDuration {
			m.state = types.Awake
		}
	} else {
		if !m.motionStartedAt.IsZero() && s.At.Sub(m.lastMotionAt) > m.cfg.GapTolerance {
			m.motionStartedAt = time.Time{}
		}
		if m.state == types.Awake && s.At.Sub(m.lastMotionAt) >= m.cfg.InactivityTimeout {
			m.state = types.Sleeping
			m.motionStartedAt = time.Time{}
		}
	}

	tr.To = m.state
	tr.Changed = tr.From != tr.To
	return tr
}
