//go:build !gocv

package sensor

import "errors"

// ErrNoVision is returned by constructors that need the OpenCV build.
var ErrNoVision = errors.New("sensor: built without gocv; rebuild with -tags gocv")

// NewMotionDetector returns the motion detector for this build: the pure-Go
// [FrameDiff].
func NewMotionDetector(cfg MotionConfig) MotionDetector {
	return NewFrameDiff(cfg)
}

// NewYOLO is unavailable without the gocv build tag.
func NewYOLO(YOLOConfig) (ObjectDetector, error) {
	return nil, ErrNoVision
}
