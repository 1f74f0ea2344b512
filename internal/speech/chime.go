package speech

import (
	"encoding/binary"
	"math"
	"time"

	"github.com/elaichix/NubaGuard-AI/pkg/audio"
)

// Tone is one note of a chime.
type Tone struct {
	Hz       float64       `yaml:"hz"`
	Duration time.Duration `yaml:"duration"`
}

// Chime is a short sequence of sine tones rendered as mono 16-bit PCM.
type Chime struct {
	SampleRate int
	Tones      []Tone

	// Volume is the peak amplitude in (0, 1].
	Volume float64
}

// DefaultChime is a rising two-note alert at 16 kHz.
func DefaultChime() Chime {
	return Chime{
		SampleRate: 16000,
		Tones: []Tone{
			{Hz: 880, Duration: 150 * time.Millisecond},
			{Hz: 1320, Duration: 250 * time.Millisecond},
		},
		Volume: 0.4,
	}
}

// PCM renders the chime. Each tone fades in and out over 5 ms to avoid
// clicks.
func (c Chime) PCM() []byte {
	var out []byte
	fade := c.SampleRate / 200
	for _, t := range c.Tones {
		n := int(int64(t.Duration) * int64(c.SampleRate) / int64(time.Second))
		for i := range n {
			env := 1.0
			if i < fade {
				env = float64(i) / float64(fade)
			} else if n-i < fade {
				env = float64(n-i) / float64(fade)
			}
			v := c.Volume * env * math.Sin(2*math.Pi*t.Hz*float64(i)/float64(c.SampleRate))
			out = binary.LittleEndian.AppendUint16(out, uint16(int16(v*math.MaxInt16)))
		}
	}
	return out
}

// Clip wraps the rendered chime in a single-chunk clip.
func (c Chime) Clip(id string) *audio.Clip {
	ch := make(chan []byte, 1)
	ch <- c.PCM()
	close(ch)
	return &audio.Clip{ID: id, Audio: ch, SampleRate: c.SampleRate, Channels: 1}
}
