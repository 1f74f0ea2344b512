// Package mock provides a test double for the [stt.Provider] interface.
//
// Results are scripted in order; once exhausted the last entry repeats.
package mock

import (
	"context"
	"sync"

	"github.com/elaichix/NubaGuard-AI/pkg/audio"
	"github.com/elaichix/NubaGuard-AI/pkg/provider/stt"
	"github.com/elaichix/NubaGuard-AI/pkg/types"
)

var _ stt.Provider = (*Provider)(nil)

// Result is one scripted Transcribe outcome.
type Result struct {
	Transcript types.Transcript
	Err        error
}

// Provider is a mock implementation of [stt.Provider].
type Provider struct {
	mu sync.Mutex

	// Script holds the outcomes returned by successive calls.
	Script []Result

	// TranscribeCalls records every segment passed to Transcribe.
	TranscribeCalls []audio.Segment
}

// Transcribe implements [stt.Provider].
func (p *Provider) Transcribe(_ context.Context, seg audio.Segment) (types.Transcript, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	idx := len(p.TranscribeCalls)
	p.TranscribeCalls = append(p.TranscribeCalls, seg)
	if len(p.Script) == 0 {
		return types.Transcript{}, stt.ErrUnintelligible
	}
	if idx >= len(p.Script) {
		idx = len(p.Script) - 1
	}
	r := p.Script[idx]
	return r.Transcript, r.Err
}

// CallCount returns how many times Transcribe was called.
func (p *Provider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.TranscribeCalls)
}
