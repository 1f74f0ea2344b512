package sensor

import (
	"math"
	"math/cmplx"

	"github.com/elaichix/NubaGuard-AI/pkg/audio"
)

const (
	fftSize   = 2048
	hopSize   = 512
	pitchSize = 1024

	// Pitch search range, C2 to C7.
	pitchMinHz = 65.41
	pitchMaxHz = 2093.0

	voicedCorrelation = 0.6
)

// CryThresholds are the feature levels a segment must exceed to count as
// crying.
type CryThresholds struct {
	RMS           float64 `yaml:"rms"`
	CentroidHz    float64 `yaml:"centroid_hz"`
	PitchVariance float64 `yaml:"pitch_variance"`
}

// DefaultCryThresholds returns the thresholds used when none are configured.
func DefaultCryThresholds() CryThresholds {
	return CryThresholds{RMS: 0.02, CentroidHz: 2500, PitchVariance: 150}
}

// CryFeatures summarises one audio segment.
type CryFeatures struct {
	// RMS is the mean frame RMS level in [0, 1].
	RMS float64

	// CentroidHz is the mean spectral centroid.
	CentroidHz float64

	// PitchVariance is the variance, in squared semitones, of the voiced
	// fundamental frequency track.
	PitchVariance float64

	// VoicedFrames counts the frames with a detected pitch.
	VoicedFrames int
}

var _ CryClassifier = (*FeatureCry)(nil)

// FeatureCry classifies a segment as crying when it is loud, bright and
// strongly pitch-modulated at the same time.
type FeatureCry struct {
	th CryThresholds
}

// NewFeatureCry returns a classifier with th.
func NewFeatureCry(th CryThresholds) *FeatureCry {
	return &FeatureCry{th: th}
}

// IsCry implements CryClassifier.
func (c *FeatureCry) IsCry(seg audio.Segment) bool {
	f := Analyze(seg)
	return f.RMS > c.th.RMS && f.CentroidHz > c.th.CentroidHz && f.PitchVariance > c.th.PitchVariance
}

// Analyze extracts the cry features of seg.
func Analyze(seg audio.Segment) CryFeatures {
	x := audio.Samples(seg.PCM, seg.Channels)
	if len(x) == 0 || seg.SampleRate <= 0 {
		return CryFeatures{}
	}
	sr := float64(seg.SampleRate)

	var f CryFeatures
	var rmsSum, centSum float64
	frames := 0
	window := hann(fftSize)
	buf := make([]complex128, fftSize)
	for start := 0; start == 0 || start+fftSize <= len(x); start += hopSize {
		frame := x[start:min(start+fftSize, len(x))]
		rmsSum += audio.RMS(frame)

		for i := range buf {
			buf[i] = 0
			if i < len(frame) {
				buf[i] = complex(frame[i]*window[i], 0)
			}
		}
		fft(buf)
		var num, den float64
		for k := 0; k <= fftSize/2; k++ {
			mag := cmplx.Abs(buf[k])
			num += float64(k) * sr / fftSize * mag
			den += mag
		}
		if den > 0 {
			centSum += num / den
		}
		frames++
		if start+fftSize >= len(x) {
			break
		}
	}
	f.RMS = rmsSum / float64(frames)
	f.CentroidHz = centSum / float64(frames)

	var semis []float64
	for start := 0; start+pitchSize <= len(x); start += hopSize {
		if hz, ok := pitch(x[start:start+pitchSize], sr); ok {
			semis = append(semis, 12*math.Log2(hz/100.0+1e-10))
		}
	}
	f.VoicedFrames = len(semis)
	if len(semis) > 1 {
		f.PitchVariance = variance(semis)
	}
	return f
}

// pitch estimates the fundamental of frame by normalised autocorrelation.
// It reports false for unvoiced frames.
func pitch(frame []float64, sr float64) (float64, bool) {
	minLag := int(math.Ceil(sr / pitchMaxHz))
	maxLag := int(math.Floor(sr / pitchMinHz))
	if maxLag >= len(frame)/2 {
		maxLag = len(frame)/2 - 1
	}
	if minLag < 1 || minLag >= maxLag || audio.RMS(frame) < 1e-3 {
		return 0, false
	}

	corr := make([]float64, maxLag+1)
	best := 0.0
	for lag := minLag; lag <= maxLag; lag++ {
		var xy, xx, yy float64
		for i := 0; i+lag < len(frame); i++ {
			a, b := frame[i], frame[i+lag]
			xy += a * b
			xx += a * a
			yy += b * b
		}
		if xx > 0 && yy > 0 {
			corr[lag] = xy / math.Sqrt(xx*yy)
		}
		best = max(best, corr[lag])
	}
	if best < voicedCorrelation {
		return 0, false
	}
	// First local peak close to the global best avoids octave-down errors.
	for lag := minLag + 1; lag < maxLag; lag++ {
		if corr[lag] >= 0.9*best && corr[lag] >= corr[lag-1] && corr[lag] >= corr[lag+1] {
			return sr / float64(lag), true
		}
	}
	return 0, false
}

func variance(v []float64) float64 {
	var mean float64
	for _, x := range v {
		mean += x
	}
	mean /= float64(len(v))
	var s float64
	for _, x := range v {
		s += (x - mean) * (x - mean)
	}
	return s / float64(len(v))
}

func hann(n int) []float64 {
	w := make([]float64, n)
	for i := range w {
		w[i] = 0.5 - 0.5*math.Cos(2*math.Pi*float64(i)/float64(n))
	}
	return w
}

// fft is an in-place iterative radix-2 transform; len(a) must be a power of
// two.
func fft(a []complex128) {
	n := len(a)
	for i, j := 1, 0; i < n; i++ {
		bit := n >> 1
		for ; j&bit != 0; bit >>= 1 {
			j ^= bit
		}
		j ^= bit
		if i < j {
			a[i], a[j] = a[j], a[i]
		}
	}
	for size := 2; size <= n; size <<= 1 {
		step := cmplx.Exp(complex(0, -2*math.Pi/float64(size)))
		for start := 0; start < n; start += size {
			w := complex(1, 0)
			for k := range size / 2 {
				u := a[start+k]
				v := a[start+k+size/2] * w
				a[start+k] = u + v
				a[start+k+size/2] = u - v
				w *= step
			}
		}
	}
}
