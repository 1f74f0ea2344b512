// Package sensor binds the camera and microphone signal sources to the
// engine's inputs: motion samples, face identities, nearby object labels and
// cry verdicts.
//
// Detectors are stateless from the caller's point of view except
// [MotionDetector], which compares each frame with the previous one and must
// therefore be fed frames in capture order from a single goroutine.
package sensor

import (
	"context"
	"errors"
	"image"
	"time"

	"github.com/elaichix/NubaGuard-AI/pkg/audio"
	"github.com/elaichix/NubaGuard-AI/pkg/types"
)

// ErrNoFrame is returned by a [FrameSource] that has no image available yet.
var ErrNoFrame = errors.New("sensor: no frame available")

// Frame is one camera snapshot. JPEG holds the encoded bytes as received;
// Image is the decoded picture.
type Frame struct {
	At    time.Time
	JPEG  []byte
	Image image.Image
}

// FrameSource produces camera frames on demand.
type FrameSource interface {
	Snapshot(ctx context.Context) (Frame, error)
}

// MotionDetector decides whether a frame shows subject movement compared to
// the frame before it. The first frame after construction or [Reset] is never
// significant.
type MotionDetector interface {
	Detect(frame Frame) types.MotionSample
	Reset()
}

// FaceRecognizer names the faces visible in a frame. Unrecognized faces are
// reported with [types.UnknownIdentity].
type FaceRecognizer interface {
	Recognize(ctx context.Context, frame Frame) ([]types.FaceEvent, error)
}

// ObjectDetector labels the objects visible in a frame.
type ObjectDetector interface {
	DetectObjects(ctx context.Context, frame Frame) ([]types.Detection, error)
}

// CryClassifier decides whether an audio segment is infant distress.
type CryClassifier interface {
	IsCry(seg audio.Segment) bool
}

// Labels returns the distinct labels of dets in first-seen order.
func Labels(dets []types.Detection) []string {
	seen := make(map[string]bool, len(dets))
	out := make([]string, 0, len(dets))
	for _, d := range dets {
		if d.Label == "" || seen[d.Label] {
			continue
		}
		seen[d.Label] = true
		out = append(out, d.Label)
	}
	return out
}
