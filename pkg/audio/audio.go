// Package audio defines the audio types shared by the capture side (microphone
// segments fed to the cry classifier and the transcriber) and the playback
// side (synthesized speech clips scheduled through a [Mixer]).
//
// All PCM handled by this package is signed 16-bit little-endian.
package audio

import (
	"context"
	"errors"
	"time"
)

// ErrSilence is returned by a [Recorder] when a segment contained nothing
// above the configured noise floor. Callers treat it like a listen timeout.
var ErrSilence = errors.New("audio: no sound above noise floor")

// Segment is one captured stretch of microphone audio.
type Segment struct {
	// PCM holds interleaved signed 16-bit little-endian samples.
	PCM []byte

	// SampleRate in Hz (e.g. 16000).
	SampleRate int

	// Channels is 1 for mono, 2 for stereo.
	Channels int

	// StartedAt and EndedAt bracket the recording.
	StartedAt time.Time
	EndedAt   time.Time
}

// Duration returns the playback length implied by the PCM size.
func (s Segment) Duration() time.Duration {
	if s.SampleRate <= 0 || s.Channels <= 0 {
		return 0
	}
	frames := len(s.PCM) / (2 * s.Channels)
	return time.Duration(frames) * time.Second / time.Duration(s.SampleRate)
}

// Recorder captures one audio segment per call. Capture blocks for roughly
// one segment duration.
type Recorder interface {
	Capture(ctx context.Context) (Segment, error)
}

// Clip is a unit of synthesized speech submitted to a [Mixer]. Audio chunks
// arrive incrementally so playback can start before synthesis finishes.
type Clip struct {
	// ID correlates the clip with the action that produced it.
	ID string

	// Audio carries PCM chunks and is closed by the producer when the clip
	// ends.
	Audio <-chan []byte

	// SampleRate in Hz of the PCM on Audio.
	SampleRate int

	// Channels of the PCM on Audio.
	Channels int
}

// Mixer schedules clips onto a single monophonic output. Only one clip plays
// at a time; a clip with higher priority than the one playing interrupts it.
//
// Implementations must be safe for concurrent use.
type Mixer interface {
	// Enqueue schedules clip at the given priority. Equal priorities play in
	// FIFO order.
	Enqueue(clip *Clip, priority int)

	// Interrupt stops the currently playing clip, if any. When clearQueue is
	// true, all pending clips are discarded too.
	Interrupt(clearQueue bool)

	// SetGap sets the silence inserted between consecutive clips.
	SetGap(d time.Duration)
}

// Drain reads from ch until it is closed, discarding all values. Use it to
// release a producer blocked on a channel nobody will read.
func Drain[T any](ch <-chan T) {
	for range ch {
	}
}
