package sensor

import (
	"image"
	"image/color"
	"sync"

	"github.com/elaichix/NubaGuard-AI/pkg/types"
)

// MotionConfig tunes frame-difference motion detection.
type MotionConfig struct {
	// PixelThreshold is the minimum grey-level change for a pixel to count as
	// changed.
	PixelThreshold uint8 `yaml:"pixel_threshold"`

	// MinArea is the pixel area the largest changed region must reach for the
	// frame to be significant.
	MinArea int `yaml:"min_area"`

	// BlurRadius is the smoothing radius applied before differencing.
	BlurRadius int `yaml:"blur_radius"`

	// DilateIterations grows changed regions so nearby fragments merge.
	DilateIterations int `yaml:"dilate_iterations"`
}

// DefaultMotionConfig returns thresholds tuned for a 640x480 cot camera.
func DefaultMotionConfig() MotionConfig {
	return MotionConfig{
		PixelThreshold:   25,
		MinArea:          800,
		BlurRadius:       10,
		DilateIterations: 2,
	}
}

func (c MotionConfig) withDefaults() MotionConfig {
	d := DefaultMotionConfig()
	if c.PixelThreshold == 0 {
		c.PixelThreshold = d.PixelThreshold
	}
	if c.MinArea <= 0 {
		c.MinArea = d.MinArea
	}
	if c.BlurRadius < 0 {
		c.BlurRadius = 0
	}
	if c.DilateIterations < 0 {
		c.DilateIterations = 0
	}
	return c
}

var _ MotionDetector = (*FrameDiff)(nil)

// FrameDiff detects motion by differencing consecutive blurred greyscale
// frames and measuring the largest connected changed region.
type FrameDiff struct {
	cfg MotionConfig

	mu   sync.Mutex
	prev *grey
}

// NewFrameDiff returns a FrameDiff detector. Zero fields in cfg take the
// defaults from [DefaultMotionConfig].
func NewFrameDiff(cfg MotionConfig) *FrameDiff {
	return &FrameDiff{cfg: cfg.withDefaults()}
}

// Detect implements MotionDetector.
func (d *FrameDiff) Detect(frame Frame) types.MotionSample {
	sample := types.MotionSample{At: frame.At}
	if frame.Image == nil {
		return sample
	}
	cur := toGrey(frame.Image).blur(d.cfg.BlurRadius)

	d.mu.Lock()
	prev := d.prev
	d.prev = cur
	d.mu.Unlock()

	if prev == nil || prev.w != cur.w || prev.h != cur.h {
		return sample
	}

	mask := make([]bool, len(cur.pix))
	for i := range cur.pix {
		a, b := cur.pix[i], prev.pix[i]
		diff := a - b
		if b > a {
			diff = b - a
		}
		mask[i] = diff > d.cfg.PixelThreshold
	}
	for range d.cfg.DilateIterations {
		mask = dilate(mask, cur.w, cur.h)
	}
	sample.Significant = largestRegion(mask, cur.w, cur.h) >= d.cfg.MinArea
	return sample
}

// Reset implements MotionDetector.
func (d *FrameDiff) Reset() {
	d.mu.Lock()
	d.prev = nil
	d.mu.Unlock()
}

type grey struct {
	w, h int
	pix  []uint8
}

func toGrey(img image.Image) *grey {
	b := img.Bounds()
	g := &grey{w: b.Dx(), h: b.Dy(), pix: make([]uint8, b.Dx()*b.Dy())}
	if src, ok := img.(*image.Gray); ok {
		for y := range g.h {
			copy(g.pix[y*g.w:(y+1)*g.w], src.Pix[y*src.Stride:y*src.Stride+g.w])
		}
		return g
	}
	for y := range g.h {
		for x := range g.w {
			g.pix[y*g.w+x] = color.GrayModel.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.Gray).Y
		}
	}
	return g
}

// blur applies a separable box blur of the given radius.
func (g *grey) blur(radius int) *grey {
	if radius <= 0 || g.w == 0 || g.h == 0 {
		return g
	}
	tmp := make([]uint8, len(g.pix))
	out := &grey{w: g.w, h: g.h, pix: make([]uint8, len(g.pix))}
	boxPass(g.pix, tmp, g.w, g.h, radius, 1, g.w)
	boxPass(tmp, out.pix, g.h, g.w, radius, g.w, 1)
	return out
}

// boxPass averages along lines of length n; step moves along a line and
// lineStep moves between lines.
func boxPass(src, dst []uint8, n, lines, radius, step, lineStep int) {
	for l := range lines {
		base := l * lineStep
		sum, count := 0, 0
		for i := 0; i <= radius && i < n; i++ {
			sum += int(src[base+i*step])
			count++
		}
		for i := range n {
			dst[base+i*step] = uint8(sum / count)
			if add := i + radius + 1; add < n {
				sum += int(src[base+add*step])
				count++
			}
			if rem := i - radius; rem >= 0 {
				sum -= int(src[base+rem*step])
				count--
			}
		}
	}
}

func dilate(mask []bool, w, h int) []bool {
	out := make([]bool, len(mask))
	for y := range h {
		for x := range w {
			if !mask[y*w+x] {
				continue
			}
			for dy := -1; dy <= 1; dy++ {
				for dx := -1; dx <= 1; dx++ {
					nx, ny := x+dx, y+dy
					if nx >= 0 && nx < w && ny >= 0 && ny < h {
						out[ny*w+nx] = true
					}
				}
			}
		}
	}
	return out
}

// largestRegion returns the pixel count of the biggest 4-connected region of
// set cells in mask.
func largestRegion(mask []bool, w, h int) int {
	seen := make([]bool, len(mask))
	best := 0
	var stack []int
	for start := range mask {
		if !mask[start] || seen[start] {
			continue
		}
		area := 0
		seen[start] = true
		stack = append(stack[:0], start)
		for len(stack) > 0 {
			i := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			area++
			x, y := i%w, i/w
			for _, n := range [4][2]int{{x - 1, y}, {x + 1, y}, {x, y - 1}, {x, y + 1}} {
				if n[0] < 0 || n[0] >= w || n[1] < 0 || n[1] >= h {
					continue
				}
				j := n[1]*w + n[0]
				if mask[j] && !seen[j] {
					seen[j] = true
					stack = append(stack, j)
				}
			}
		}
		best = max(best, area)
	}
	return best
}
