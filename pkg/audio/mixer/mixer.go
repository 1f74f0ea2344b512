// Package mixer schedules speech and chime clips for a single audio output.
// Clips play one at a time in priority order; a more urgent clip cuts off
// the one playing.
package mixer

import (
	"container/heap"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/elaichix/NubaGuard-AI/pkg/audio"
)

var _ audio.Mixer = (*PriorityMixer)(nil)

// DefaultGap is the silence inserted between consecutive clips unless
// overridden with [WithGap].
const DefaultGap = 250 * time.Millisecond

// Output receives PCM chunks for playback in the format of the clip they
// came from. It is called sequentially from the dispatch goroutine.
type Output func(chunk []byte, sampleRate, channels int)

// Option configures a [PriorityMixer].
type Option func(*PriorityMixer)

// WithGap sets the base silence between clips. Jitter of up to one sixth of
// the gap is applied in either direction. Zero disables the gap.
func WithGap(d time.Duration) Option {
	return func(m *PriorityMixer) { m.gap = d }
}

// PriorityMixer schedules clips on a single output using a priority queue.
// All exported methods are safe for concurrent use.
type PriorityMixer struct {
	output Output

	mu            sync.Mutex
	queue         clipQueue
	seq           uint64
	gap           time.Duration
	playing       *audio.Clip
	playingPri    int
	cancelPlaying chan struct{}

	notify chan struct{}
	done   chan struct{}
	closed bool
}

// New starts a mixer delivering audio to output. output must not be nil and
// should not block for long. Call [PriorityMixer.Close] to stop it.
func New(output Output, opts ...Option) *PriorityMixer {
	m := &PriorityMixer{
		output: output,
		queue:  make(clipQueue, 0, 8),
		gap:    DefaultGap,
		notify: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	for _, o := range opts {
		o(m)
	}
	heap.Init(&m.queue)
	go m.dispatch()
	return m
}

// Enqueue schedules clip at priority. A clip with a higher priority than the
// one playing interrupts it; the interrupted clip is discarded.
func (m *PriorityMixer) Enqueue(clip *audio.Clip, priority int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		go audio.Drain(clip.Audio)
		return
	}

	m.seq++
	heap.Push(&m.queue, queued{clip: clip, priority: priority, seq: m.seq})

	if m.playing != nil && priority > m.playingPri {
		m.interruptLocked(false)
	}

	select {
	case m.notify <- struct{}{}:
	default:
	}
}

// Interrupt stops the current clip. With clearQueue, pending clips are
// dropped as well.
func (m *PriorityMixer) Interrupt(clearQueue bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.interruptLocked(clearQueue)
}

// SetGap changes the inter-clip silence before the next clip starts.
func (m *PriorityMixer) SetGap(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gap = d
}

// Playing returns the ID of the clip currently playing, or "".
func (m *PriorityMixer) Playing() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.playing == nil {
		return ""
	}
	return m.playing.ID
}

// Pending returns the number of queued clips not yet started.
func (m *PriorityMixer) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.queue.Len()
}

// Close stops playback, discards queued clips and stops the dispatch
// goroutine. It is idempotent.
func (m *PriorityMixer) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.interruptLocked(true)
	m.mu.Unlock()

	close(m.done)
	return nil
}

// interruptLocked must be called with m.mu held.
func (m *PriorityMixer) interruptLocked(clearQueue bool) {
	if m.cancelPlaying != nil {
		close(m.cancelPlaying)
		m.cancelPlaying = nil
	}
	m.playing = nil

	if clearQueue {
		for m.queue.Len() > 0 {
			e := heap.Pop(&m.queue).(queued)
			go audio.Drain(e.clip.Audio)
		}
	}
}

func (m *PriorityMixer) dispatch() {
	played := false

	for {
		select {
		case <-m.done:
			return
		case <-m.notify:
		}

		for {
			clip, cancel, ok := m.next()
			if !ok {
				break
			}

			if played {
				if d := m.gapWithJitter(); d > 0 {
					timer := time.NewTimer(d)
					select {
					case <-m.done:
						timer.Stop()
						go audio.Drain(clip.Audio)
						return
					case <-cancel:
						timer.Stop()
						go audio.Drain(clip.Audio)
						continue
					case <-timer.C:
					}
				}
			}

			m.play(clip, cancel)
			played = true

			m.mu.Lock()
			if m.playing == clip {
				m.playing = nil
				m.cancelPlaying = nil
			}
			m.mu.Unlock()
		}
	}
}

// next pops the highest-priority clip and marks it as playing.
func (m *PriorityMixer) next() (*audio.Clip, chan struct{}, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.queue.Len() == 0 {
		return nil, nil, false
	}
	e := heap.Pop(&m.queue).(queued)
	cancel := make(chan struct{})
	m.playing = e.clip
	m.playingPri = e.priority
	m.cancelPlaying = cancel
	return e.clip, cancel, true
}

func (m *PriorityMixer) play(clip *audio.Clip, cancel chan struct{}) {
	for {
		select {
		case <-m.done:
			go audio.Drain(clip.Audio)
			return
		case <-cancel:
			go audio.Drain(clip.Audio)
			return
		case chunk, ok := <-clip.Audio:
			if !ok {
				return
			}
			m.output(chunk, clip.SampleRate, clip.Channels)
		}
	}
}

func (m *PriorityMixer) gapWithJitter() time.Duration {
	m.mu.Lock()
	base := m.gap
	m.mu.Unlock()

	if base <= 0 {
		return 0
	}
	j := base / 6
	if j <= 0 {
		return base
	}
	return base + time.Duration(rand.Int64N(int64(2*j+1))) - j
}
