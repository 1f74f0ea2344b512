// Package tts defines the Provider interface for the speech synthesis
// backends that voice NubaGuard's phrases.
//
// Synthesis is streamed: the returned channel yields PCM chunks as the
// backend produces them so playback can start before the whole phrase is
// rendered.
//
// Implementations must be safe for concurrent use.
package tts

import (
	"context"

	"github.com/elaichix/NubaGuard-AI/pkg/types"
)

// Format describes the PCM a provider emits. Samples are always signed
// 16-bit little-endian.
type Format struct {
	SampleRate int
	Channels   int
}

// Provider is the abstraction over any TTS backend.
type Provider interface {
	// Synthesize renders text in the given voice. The returned channel is
	// closed when synthesis completes, fails midway, or ctx is cancelled;
	// callers must drain it. A non-nil error means synthesis never started.
	Synthesize(ctx context.Context, text string, voice types.VoiceProfile) (<-chan []byte, error)

	// Format reports the PCM format of the chunks returned by Synthesize.
	Format() Format
}
