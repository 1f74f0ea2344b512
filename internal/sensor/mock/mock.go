// Package mock provides test doubles for the sensor interfaces.
package mock

import (
	"context"
	"sync"
	"time"

	"github.com/elaichix/NubaGuard-AI/internal/sensor"
	"github.com/elaichix/NubaGuard-AI/pkg/audio"
	"github.com/elaichix/NubaGuard-AI/pkg/types"
)

var (
	_ sensor.FrameSource    = (*Camera)(nil)
	_ sensor.MotionDetector = (*Motion)(nil)
	_ sensor.FaceRecognizer = (*Faces)(nil)
	_ sensor.ObjectDetector = (*Objects)(nil)
	_ sensor.CryClassifier  = (*Cry)(nil)
)

// Camera returns blank frames stamped by Now, or Err.
type Camera struct {
	mu    sync.Mutex
	Now   func() time.Time
	Err   error
	Calls int
}

// Snapshot implements sensor.FrameSource.
func (c *Camera) Snapshot(context.Context) (sensor.Frame, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Calls++
	if c.Err != nil {
		return sensor.Frame{}, c.Err
	}
	now := time.Now
	if c.Now != nil {
		now = c.Now
	}
	return sensor.Frame{At: now(), JPEG: []byte{0xff, 0xd8}}, nil
}

// Motion reports Significant for every frame.
type Motion struct {
	mu          sync.Mutex
	Significant bool
	Frames      []sensor.Frame
	Resets      int
}

// Detect implements sensor.MotionDetector.
func (m *Motion) Detect(frame sensor.Frame) types.MotionSample {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Frames = append(m.Frames, frame)
	return types.MotionSample{At: frame.At, Significant: m.Significant}
}

// Reset implements sensor.MotionDetector.
func (m *Motion) Reset() {
	m.mu.Lock()
	m.Resets++
	m.mu.Unlock()
}

// Faces returns the configured identities for every frame.
type Faces struct {
	mu         sync.Mutex
	Identities []string
	Err        error
	Calls      int
}

// Recognize implements sensor.FaceRecognizer.
func (f *Faces) Recognize(_ context.Context, frame sensor.Frame) ([]types.FaceEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls++
	if f.Err != nil {
		return nil, f.Err
	}
	out := make([]types.FaceEvent, len(f.Identities))
	for i, id := range f.Identities {
		out[i] = types.FaceEvent{At: frame.At, Identity: id}
	}
	return out, nil
}

// Objects returns the configured detections for every frame.
type Objects struct {
	mu         sync.Mutex
	Detections []types.Detection
	Err        error
	Calls      int
}

// DetectObjects implements sensor.ObjectDetector.
func (o *Objects) DetectObjects(context.Context, sensor.Frame) ([]types.Detection, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.Calls++
	if o.Err != nil {
		return nil, o.Err
	}
	return append([]types.Detection(nil), o.Detections...), nil
}

// Cry returns scripted verdicts in order; once exhausted the last repeats.
// An empty script always answers false.
type Cry struct {
	mu       sync.Mutex
	Script   []bool
	Segments []audio.Segment
}

// IsCry implements sensor.CryClassifier.
func (c *Cry) IsCry(seg audio.Segment) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	idx := len(c.Segments)
	c.Segments = append(c.Segments, seg)
	if len(c.Script) == 0 {
		return false
	}
	return c.Script[min(idx, len(c.Script)-1)]
}
