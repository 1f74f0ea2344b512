// Package gate provides the per-action cooldown primitive used by the
// arbitration engine.
//
// A [Gate] answers one question: has at least the configured interval passed
// since it last fired? Each rate-limited action class owns its own Gate, so
// independent classes never block one another.
//
// Gates are not safe for concurrent use. They are owned by a single goroutine
// (the arbitration tick loop).
package gate

import (
	"fmt"
	"time"
)

// Gate rate-limits one action class to at most one firing per interval.
// The zero value is a never-fired gate with a zero interval (always eligible).
type Gate struct {
	name        string
	minInterval time.Duration
	lastFiredAt time.Time
	fired       bool
}

// New returns a never-fired Gate that allows one firing per minInterval.
// name is used only in diagnostics.
func New(name string, minInterval time.Duration) *Gate {
	return &Gate{name: name, minInterval: minInterval}
}

// Name returns the diagnostic name given to [New].
func (g *Gate) Name() string { return g.name }

// Interval returns the current minimum interval between firings.
func (g *Gate) Interval() time.Duration { return g.minInterval }

// SetInterval changes the minimum interval. The last firing time is kept, so
// a shorter interval may make the gate eligible immediately.
func (g *Gate) SetInterval(d time.Duration) { g.minInterval = d }

// Eligible reports whether [Gate.TryFire] would succeed at now, without
// changing any state.
func (g *Gate) Eligible(now time.Time) bool {
	if !g.fired {
		return true
	}
	elapsed := now.Sub(g.lastFiredAt)
	if elapsed < 0 {
		panic(fmt.Sprintf("gate %q: clock went backwards: now %s is before last firing %s",
			g.name, now.Format(time.RFC3339Nano), g.lastFiredAt.Format(time.RFC3339Nano)))
	}
	return elapsed >= g.minInterval
}

// TryFire fires the gate if it is eligible at now and reports whether it did.
// An elapsed time exactly equal to the interval counts as eligible. On
// failure the gate is left unchanged.
func (g *Gate) TryFire(now time.Time) bool {
	if !g.Eligible(now) {
		return false
	}
	g.lastFiredAt = now
	g.fired = true
	return true
}

// LastFired returns the time of the last successful firing and whether the
// gate has fired at all.
func (g *Gate) LastFired() (time.Time, bool) {
	return g.lastFiredAt, g.fired
}

// Reset returns the gate to its never-fired state.
func (g *Gate) Reset() {
	g.lastFiredAt = time.Time{}
	g.fired = false
}
