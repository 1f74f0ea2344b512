// Package activity records what NubaGuard observed and did.
//
// Every state transition, dispatched action, failed output call and process
// start or stop becomes an [Entry]. Entries are written to one or more
// [Sink]s: an append-only CSV file, a sqlite store that can be queried
// later, and the live notification feed.
package activity

import (
	"context"
	"errors"
	"time"
)

// Event types. The spellings match the columns of existing activity logs.
const (
	EventSystemStart = "System_Start"
	EventSystemStop  = "System_Stop"
	EventWoke        = "Nuba_Woke_Up"
	EventAsleep      = "Nuba_Asleep"
	EventCry         = "Cry_Detected"
	EventFace        = "Face_Recognized"
	EventHeard       = "STT_Recognition"
	EventSpoke       = "AI_Speak"
	EventAlert       = "Alert_Sound"
	EventError       = "Error"
	EventConfig      = "Config_Reloaded"
)

// Entry is one line of the activity record.
type Entry struct {
	// ID is assigned by the store that persists the entry, or carries the
	// action ID for dispatch entries.
	ID string `json:"id,omitempty"`

	At      time.Time `json:"at"`
	Event   string    `json:"event"`
	State   string    `json:"state"`
	Details string    `json:"details,omitempty"`

	// Kind is the action kind for dispatch entries.
	Kind string `json:"kind,omitempty"`
}

// Sink persists or forwards entries. Implementations must be safe for
// concurrent use.
type Sink interface {
	Record(ctx context.Context, e Entry) error
	Close() error
}

// Multi fans entries out to several sinks. Every sink sees every entry even
// when an earlier one fails.
type Multi []Sink

var _ Sink = Multi(nil)

// Record implements [Sink].
func (m Multi) Record(ctx context.Context, e Entry) error {
	var errs []error
	for _, s := range m {
		if err := s.Record(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close closes every sink.
func (m Multi) Close() error {
	var errs []error
	for _, s := range m {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Discard drops every entry.
type Discard struct{}

// Record implements [Sink].
func (Discard) Record(context.Context, Entry) error { return nil }

// Close implements [Sink].
func (Discard) Close() error { return nil }
