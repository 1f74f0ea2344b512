// Package mailbox provides the two handoff structures that cross the
// boundary between the capture worker and the arbitration tick loop:
//
//   - [Mailbox], a single-slot latest-value-wins box for transcripts.
//   - [Queue], a bounded non-blocking queue for urgent events such as cries.
//
// Both are safe for one producer and one consumer running concurrently. No
// operation blocks waiting for the other side.
package mailbox

import (
	"sync"
	"sync/atomic"
)

// Mailbox holds at most one pending value. Publishing overwrites any unread
// value; the overwritten value is lost. Only the newest value matters to the
// consumer, so this is not a queue.
type Mailbox[T any] struct {
	mu      sync.Mutex
	value   T
	present bool

	published   atomic.Uint64
	overwritten atomic.Uint64
}

// New returns an empty Mailbox.
func New[T any]() *Mailbox[T] {
	return &Mailbox[T]{}
}

// Publish stores v, replacing any value that was not yet taken. It never
// blocks on the consumer.
func (m *Mailbox[T]) Publish(v T) {
	m.mu.Lock()
	if m.present {
		m.overwritten.Add(1)
	}
	m.value = v
	m.present = true
	m.mu.Unlock()
	m.published.Add(1)
}

// TakeIfPresent returns the pending value and clears the slot. When the slot
// is empty it returns the zero value and false immediately.
func (m *Mailbox[T]) TakeIfPresent() (T, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var zero T
	if !m.present {
		return zero, false
	}
	v := m.value
	m.value = zero
	m.present = false
	return v, true
}

// Stats reports how many values were published and how many of those were
// overwritten before the consumer took them.
func (m *Mailbox[T]) Stats() (published, overwritten uint64) {
	return m.published.Load(), m.overwritten.Load()
}
