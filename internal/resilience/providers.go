package resilience

import (
	"context"
	"errors"

	"github.com/elaichix/NubaGuard-AI/pkg/audio"
	"github.com/elaichix/NubaGuard-AI/pkg/provider/llm"
	"github.com/elaichix/NubaGuard-AI/pkg/provider/stt"
	"github.com/elaichix/NubaGuard-AI/pkg/provider/tts"
	"github.com/elaichix/NubaGuard-AI/pkg/types"
)

var (
	_ llm.Provider = (*LLM)(nil)
	_ stt.Provider = (*STT)(nil)
	_ tts.Provider = (*TTS)(nil)
)

// LLM fails over between language-model backends.
type LLM struct{ *Group[llm.Provider] }

// NewLLM returns an LLM with primary as the preferred backend.
func NewLLM(name string, primary llm.Provider, cfg BreakerConfig) *LLM {
	return &LLM{NewGroup(name, primary, cfg)}
}

// Complete asks the first healthy backend.
func (l *LLM) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	return Call(ctx, l.Group, func(p llm.Provider) (*llm.CompletionResponse, error) {
		return p.Complete(ctx, req)
	})
}

// Capabilities reports the primary's limits.
func (l *LLM) Capabilities() types.ModelCapabilities { return l.Primary().Capabilities() }

// STT fails over between transcribers. An unintelligible segment is an
// answer, not a failure, so it is returned without trying the next backend.
type STT struct{ *Group[stt.Provider] }

// NewSTT returns an STT with primary as the preferred backend.
func NewSTT(name string, primary stt.Provider, cfg BreakerConfig) *STT {
	return &STT{NewGroup(name, primary, cfg)}
}

// Transcribe asks the first healthy backend.
func (s *STT) Transcribe(ctx context.Context, seg audio.Segment) (types.Transcript, error) {
	type result struct {
		tr             types.Transcript
		unintelligible bool
	}
	r, err := Call(ctx, s.Group, func(p stt.Provider) (result, error) {
		tr, err := p.Transcribe(ctx, seg)
		if errors.Is(err, stt.ErrUnintelligible) {
			return result{unintelligible: true}, nil
		}
		return result{tr: tr}, err
	})
	if err != nil {
		return types.Transcript{}, err
	}
	if r.unintelligible {
		return types.Transcript{}, stt.ErrUnintelligible
	}
	return r.tr, nil
}

// TTS fails over between synthesisers. Only starting synthesis is covered;
// a stream that breaks midway ends early.
//
// Every backend in a TTS group must emit the same [tts.Format] as the
// primary, since Format reports the primary's.
type TTS struct{ *Group[tts.Provider] }

// NewTTS returns a TTS with primary as the preferred backend.
func NewTTS(name string, primary tts.Provider, cfg BreakerConfig) *TTS {
	return &TTS{NewGroup(name, primary, cfg)}
}

// Synthesize starts synthesis on the first healthy backend.
func (t *TTS) Synthesize(ctx context.Context, text string, voice types.VoiceProfile) (<-chan []byte, error) {
	return Call(ctx, t.Group, func(p tts.Provider) (<-chan []byte, error) {
		return p.Synthesize(ctx, text, voice)
	})
}

// Format reports the primary's PCM format.
func (t *TTS) Format() tts.Format { return t.Primary().Format() }
