package capture

import (
	"context"
	"errors"

	"github.com/elaichix/NubaGuard-AI/pkg/audio"
	"github.com/elaichix/NubaGuard-AI/pkg/provider/stt"
)

var (
	// ErrTimeout is returned when a listen window closed without usable
	// audio.
	ErrTimeout = errors.New("capture: listen timed out")

	// ErrService wraps failures of the transcription backend.
	ErrService = errors.New("capture: transcription service failed")
)

// ErrorKind is the closed set of failure classes a capture iteration can
// end with. Every kind is handled the same way: log, count, continue.
type ErrorKind int

const (
	// Other is any failure not covered by a more specific kind.
	Other ErrorKind = iota

	// Timeout means no audio was captured within the listen window.
	Timeout

	// Unintelligible means audio was captured but contained no speech.
	Unintelligible

	// Service means the transcription backend failed or was unreachable.
	Service
)

// String returns the metric label for k.
func (k ErrorKind) String() string {
	switch k {
	case Timeout:
		return "timeout"
	case Unintelligible:
		return "unintelligible"
	case Service:
		return "service"
	default:
		return "other"
	}
}

// Classify maps err to its ErrorKind.
func Classify(err error) ErrorKind {
	switch {
	case err == nil:
		return Other
	case errors.Is(err, ErrTimeout),
		errors.Is(err, audio.ErrCaptureTimeout),
		errors.Is(err, audio.ErrSilence),
		errors.Is(err, context.DeadlineExceeded):
		return Timeout
	case errors.Is(err, stt.ErrUnintelligible):
		return Unintelligible
	case errors.Is(err, ErrService):
		return Service
	default:
		return Other
	}
}
