// Package stt defines the speech-to-text contract consumed by the capture
// worker. A provider turns one captured audio segment into a transcript.
//
// Implementations live in sub-packages (whisper) and a test double in mock.
package stt

import (
	"context"
	"errors"

	"github.com/elaichix/NubaGuard-AI/pkg/audio"
	"github.com/elaichix/NubaGuard-AI/pkg/types"
)

// ErrUnintelligible is returned when the backend processed the audio but
// recognised no speech in it.
var ErrUnintelligible = errors.New("stt: speech not intelligible")

// Provider transcribes audio segments.
//
// Implementations must be safe for concurrent use.
type Provider interface {
	// Transcribe returns the speech in seg. It returns an error wrapping
	// [ErrUnintelligible] when no words were recognised; transport and
	// backend failures are returned as other errors.
	Transcribe(ctx context.Context, seg audio.Segment) (types.Transcript, error)
}
