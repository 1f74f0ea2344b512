package sensor

import (
	"encoding/binary"
	"math"
	"math/cmplx"
	"testing"

	"github.com/elaichix/NubaGuard-AI/pkg/audio"
)

const testRate = 16000

// synth renders freq(t) as a sine with amplitude amp over secs seconds.
func synth(secs, amp float64, freq func(t float64) float64) audio.Segment {
	n := int(secs * testRate)
	pcm := make([]byte, 2*n)
	phase := 0.0
	for i := range n {
		t := float64(i) / testRate
		phase += 2 * math.Pi * freq(t) / testRate
		binary.LittleEndian.PutUint16(pcm[2*i:], uint16(int16(amp*32767*math.Sin(phase))))
	}
	return audio.Segment{PCM: pcm, SampleRate: testRate, Channels: 1}
}

func TestAnalyze_Silence(t *testing.T) {
	f := Analyze(audio.Segment{PCM: make([]byte, 2*testRate), SampleRate: testRate, Channels: 1})
	if f.RMS != 0 || f.VoicedFrames != 0 || f.PitchVariance != 0 {
		t.Errorf("silence features = %+v", f)
	}
}

func TestAnalyze_EmptySegment(t *testing.T) {
	if f := Analyze(audio.Segment{}); f != (CryFeatures{}) {
		t.Errorf("empty features = %+v", f)
	}
}

func TestAnalyze_ToneCentroidAndLevel(t *testing.T) {
	f := Analyze(synth(1, 0.5, func(float64) float64 { return 3000 }))
	if f.CentroidHz < 2700 || f.CentroidHz > 3300 {
		t.Errorf("centroid = %.1f, want about 3000", f.CentroidHz)
	}
	if f.RMS < 0.3 || f.RMS > 0.4 {
		t.Errorf("rms = %.3f, want about 0.354", f.RMS)
	}
}

func TestAnalyze_GlidePitchVaries(t *testing.T) {
	f := Analyze(synth(2, 0.5, func(t float64) float64 { return 200 + 300*t }))
	if f.VoicedFrames == 0 {
		t.Fatal("no voiced frames detected")
	}
	if f.PitchVariance <= 10 {
		t.Errorf("pitch variance = %.1f, want > 10", f.PitchVariance)
	}
}

func TestFeatureCry(t *testing.T) {
	tone := synth(1, 0.5, func(float64) float64 { return 3000 })

	tests := []struct {
		name string
		th   CryThresholds
		seg  audio.Segment
		want bool
	}{
		{"silence", DefaultCryThresholds(), audio.Segment{PCM: make([]byte, 3200), SampleRate: testRate, Channels: 1}, false},
		{"steady tone lacks pitch movement", DefaultCryThresholds(), tone, false},
		{"loud bright tone without pitch gate", CryThresholds{RMS: 0.02, CentroidHz: 2500, PitchVariance: -1}, tone, true},
		{"quiet tone", CryThresholds{RMS: 0.5, CentroidHz: 2500, PitchVariance: -1}, tone, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := NewFeatureCry(tc.th).IsCry(tc.seg); got != tc.want {
				t.Errorf("IsCry = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestFFT_SingleBin(t *testing.T) {
	const n = 64
	a := make([]complex128, n)
	for i := range a {
		a[i] = complex(math.Cos(2*math.Pi*5*float64(i)/n), 0)
	}
	fft(a)
	for k := range n {
		mag := cmplx.Abs(a[k])
		want := 0.0
		if k == 5 || k == n-5 {
			want = n / 2
		}
		if math.Abs(mag-want) > 1e-6 {
			t.Errorf("bin %d magnitude = %.4f, want %.1f", k, mag, want)
		}
	}
}
