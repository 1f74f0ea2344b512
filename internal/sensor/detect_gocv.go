//go:build gocv

package sensor

import (
	"context"
	"errors"
	"fmt"
	"image"
	"os"
	"sync"

	"gocv.io/x/gocv"

	"github.com/elaichix/NubaGuard-AI/pkg/types"
)

// NewMotionDetector returns the motion detector for this build: the OpenCV
// contour detector.
func NewMotionDetector(cfg MotionConfig) MotionDetector {
	return &ContourMotion{cfg: cfg.withDefaults()}
}

var _ MotionDetector = (*ContourMotion)(nil)

// ContourMotion is the OpenCV equivalent of [FrameDiff]: Gaussian blur,
// absolute difference, binary threshold, dilation, then the largest external
// contour area.
type ContourMotion struct {
	cfg MotionConfig

	mu      sync.Mutex
	prev    gocv.Mat
	hasPrev bool
}

// Detect implements MotionDetector.
func (d *ContourMotion) Detect(frame Frame) types.MotionSample {
	sample := types.MotionSample{At: frame.At}
	if len(frame.JPEG) == 0 {
		return sample
	}
	img, err := gocv.IMDecode(frame.JPEG, gocv.IMReadGrayScale)
	if err != nil || img.Empty() {
		return sample
	}
	defer img.Close()

	cur := gocv.NewMat()
	k := 2*d.cfg.BlurRadius + 1
	gocv.GaussianBlur(img, &cur, image.Pt(k, k), 0, 0, gocv.BorderDefault)

	d.mu.Lock()
	prev, hadPrev := d.prev, d.hasPrev
	d.prev, d.hasPrev = cur, true
	d.mu.Unlock()

	if !hadPrev {
		return sample
	}
	defer prev.Close()
	if prev.Empty() || prev.Rows() != cur.Rows() || prev.Cols() != cur.Cols() {
		return sample
	}

	delta := gocv.NewMat()
	defer delta.Close()
	gocv.AbsDiff(prev, cur, &delta)
	gocv.Threshold(delta, &delta, float32(d.cfg.PixelThreshold), 255, gocv.ThresholdBinary)
	kernel := gocv.NewMat()
	defer kernel.Close()
	for range d.cfg.DilateIterations {
		gocv.Dilate(delta, &delta, kernel)
	}

	contours := gocv.FindContours(delta, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()
	for i := range contours.Size() {
		if gocv.ContourArea(contours.At(i)) >= float64(d.cfg.MinArea) {
			sample.Significant = true
			break
		}
	}
	return sample
}

// Reset implements MotionDetector.
func (d *ContourMotion) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.hasPrev {
		d.prev.Close()
	}
	d.hasPrev = false
}

var _ ObjectDetector = (*YOLO)(nil)

// YOLO runs a YOLOv8 ONNX model locally through OpenCV's DNN module.
type YOLO struct {
	cfg YOLOConfig

	mu  sync.Mutex
	net gocv.Net
}

// NewYOLO loads the model at cfg.ModelPath.
func NewYOLO(cfg YOLOConfig) (ObjectDetector, error) {
	cfg = cfg.withDefaults()
	if _, err := os.Stat(cfg.ModelPath); err != nil {
		return nil, fmt.Errorf("sensor: yolo model: %w", err)
	}
	net := gocv.ReadNetFromONNX(cfg.ModelPath)
	if net.Empty() {
		return nil, fmt.Errorf("sensor: failed to load yolo model from %s", cfg.ModelPath)
	}
	net.SetPreferableBackend(gocv.NetBackendDefault)
	net.SetPreferableTarget(gocv.NetTargetCPU)
	return &YOLO{cfg: cfg, net: net}, nil
}

// DetectObjects implements ObjectDetector.
func (y *YOLO) DetectObjects(_ context.Context, frame Frame) ([]types.Detection, error) {
	if len(frame.JPEG) == 0 {
		return nil, ErrNoFrame
	}
	img, err := gocv.IMDecode(frame.JPEG, gocv.IMReadColor)
	if err != nil {
		return nil, fmt.Errorf("sensor: yolo decode: %w", err)
	}
	defer img.Close()
	if img.Empty() {
		return nil, errors.New("sensor: yolo: empty image")
	}

	size := image.Pt(y.cfg.InputSize, y.cfg.InputSize)
	blob := gocv.BlobFromImage(img, 1.0/255.0, size, gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	y.mu.Lock()
	y.net.SetInput(blob, "")
	out := y.net.Forward("")
	y.mu.Unlock()
	defer out.Close()

	data, err := out.DataPtrFloat32()
	if err != nil {
		return nil, fmt.Errorf("sensor: yolo output: %w", err)
	}

	// Output is [1, 84, N]: 4 box values then one score per class.
	n, rows := out.Size()[2], out.Size()[1]
	scaleX := float32(img.Cols()) / float32(y.cfg.InputSize)
	scaleY := float32(img.Rows()) / float32(y.cfg.InputSize)

	var boxes []image.Rectangle
	var scores []float32
	var classes []int
	for i := range n {
		best, cls := float32(0), 0
		for c := 4; c < rows; c++ {
			if s := data[c*n+i]; s > best {
				best, cls = s, c-4
			}
		}
		if best < y.cfg.ConfidenceThresh {
			continue
		}
		cx, cy, w, h := data[i], data[n+i], data[2*n+i], data[3*n+i]
		boxes = append(boxes, image.Rect(
			int((cx-w/2)*scaleX), int((cy-h/2)*scaleY),
			int((cx+w/2)*scaleX), int((cy+h/2)*scaleY),
		))
		scores = append(scores, best)
		classes = append(classes, cls)
	}
	if len(boxes) == 0 {
		return nil, nil
	}

	var dets []types.Detection
	for _, idx := range gocv.NMSBoxes(boxes, scores, y.cfg.ConfidenceThresh, y.cfg.NMSThresh) {
		if classes[idx] < len(cocoClasses) {
			dets = append(dets, types.Detection{Label: cocoClasses[classes[idx]], Confidence: float64(scores[idx])})
		}
	}
	return dets, nil
}

// Close releases the network.
func (y *YOLO) Close() error {
	y.mu.Lock()
	defer y.mu.Unlock()
	return y.net.Close()
}
