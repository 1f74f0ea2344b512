// Package mock provides in-memory test doubles for the [audio.Recorder] and
// [audio.Mixer] interfaces. All mocks are safe for concurrent use and record
// every call for later assertions.
package mock

import (
	"context"
	"sync"
	"time"

	"github.com/elaichix/NubaGuard-AI/pkg/audio"
)

var (
	_ audio.Recorder = (*Recorder)(nil)
	_ audio.Mixer    = (*Mixer)(nil)
)

// CaptureResult is one scripted return value of [Recorder.Capture].
type CaptureResult struct {
	Segment audio.Segment
	Err     error
}

// Recorder replays a script of capture results. When the script is
// exhausted it keeps returning the last entry. Delay, when set, is slept
// before each return (respecting ctx).
type Recorder struct {
	mu sync.Mutex

	Script []CaptureResult
	Delay  time.Duration

	// Calls counts Capture invocations.
	Calls int
}

// Capture implements [audio.Recorder].
func (r *Recorder) Capture(ctx context.Context) (audio.Segment, error) {
	r.mu.Lock()
	idx := r.Calls
	r.Calls++
	delay := r.Delay
	var res CaptureResult
	if n := len(r.Script); n > 0 {
		if idx >= n {
			idx = n - 1
		}
		res = r.Script[idx]
	}
	r.mu.Unlock()

	if delay > 0 {
		select {
		case <-ctx.Done():
			return audio.Segment{}, ctx.Err()
		case <-time.After(delay):
		}
	}
	return res.Segment, res.Err
}

// CallCount returns the number of Capture calls so far.
func (r *Recorder) CallCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.Calls
}

// EnqueueCall records one [Mixer.Enqueue] invocation.
type EnqueueCall struct {
	Clip     *audio.Clip
	Priority int

	// Chunks holds everything read from the clip's audio channel.
	Chunks [][]byte
}

// Mixer records enqueued clips and drains their audio synchronously.
type Mixer struct {
	mu sync.Mutex

	EnqueueCalls   []EnqueueCall
	InterruptCalls []bool
	Gap            time.Duration
}

// Enqueue implements [audio.Mixer].
func (m *Mixer) Enqueue(clip *audio.Clip, priority int) {
	var chunks [][]byte
	for c := range clip.Audio {
		chunks = append(chunks, c)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.EnqueueCalls = append(m.EnqueueCalls, EnqueueCall{Clip: clip, Priority: priority, Chunks: chunks})
}

// Interrupt implements [audio.Mixer].
func (m *Mixer) Interrupt(clearQueue bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.InterruptCalls = append(m.InterruptCalls, clearQueue)
}

// SetGap implements [audio.Mixer].
func (m *Mixer) SetGap(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Gap = d
}

// Enqueued returns a copy of the recorded Enqueue calls.
func (m *Mixer) Enqueued() []EnqueueCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]EnqueueCall(nil), m.EnqueueCalls...)
}
