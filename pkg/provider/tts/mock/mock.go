// Package mock provides a test double for the tts.Provider interface.
//
// Example:
//
//	p := &mock.Provider{Chunks: [][]byte{[]byte("audio")}}
//	ch, _ := p.Synthesize(ctx, "Hello, Nuba!", voice)
package mock

import (
	"context"
	"sync"

	"github.com/elaichix/NubaGuard-AI/pkg/provider/tts"
	"github.com/elaichix/NubaGuard-AI/pkg/types"
)

var _ tts.Provider = (*Provider)(nil)

// SynthesizeCall records a single invocation of Synthesize.
type SynthesizeCall struct {
	Text  string
	Voice types.VoiceProfile
}

// Provider is a mock implementation of tts.Provider.
type Provider struct {
	mu sync.Mutex

	// Chunks are emitted on every returned channel.
	Chunks [][]byte

	// Err, if non-nil, is returned by Synthesize.
	Err error

	// OutFormat is returned by Format. The zero value reports 16 kHz mono.
	OutFormat tts.Format

	// SynthesizeCalls records every call.
	SynthesizeCalls []SynthesizeCall
}

// Synthesize implements tts.Provider.
func (p *Provider) Synthesize(_ context.Context, text string, voice types.VoiceProfile) (<-chan []byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.SynthesizeCalls = append(p.SynthesizeCalls, SynthesizeCall{Text: text, Voice: voice})
	if p.Err != nil {
		return nil, p.Err
	}
	ch := make(chan []byte, len(p.Chunks))
	for _, c := range p.Chunks {
		ch <- append([]byte(nil), c...)
	}
	close(ch)
	return ch, nil
}

// Format implements tts.Provider.
func (p *Provider) Format() tts.Format {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.OutFormat.SampleRate == 0 {
		return tts.Format{SampleRate: 16000, Channels: 1}
	}
	return p.OutFormat
}

// Calls returns a copy of the recorded calls.
func (p *Provider) Calls() []SynthesizeCall {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]SynthesizeCall(nil), p.SynthesizeCalls...)
}
