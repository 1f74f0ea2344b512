// Package speech voices utterances through a TTS provider and schedules the
// audio on the shared priority mixer.
package speech

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/elaichix/NubaGuard-AI/internal/observe"
	"github.com/elaichix/NubaGuard-AI/pkg/audio"
	"github.com/elaichix/NubaGuard-AI/pkg/provider/tts"
	"github.com/elaichix/NubaGuard-AI/pkg/types"
)

// DefaultLang is used to pick a voice when an utterance has no language or
// no voice is configured for it.
const DefaultLang = "en"

// Option configures a [Speaker].
type Option func(*Speaker)

// WithMetrics overrides the metrics sink.
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Speaker) { s.metrics = m }
}

// WithProviderName sets the provider label used in metrics. Default "tts".
func WithProviderName(name string) Option {
	return func(s *Speaker) { s.providerName = name }
}

// WithChime replaces the alert chime.
func WithChime(c Chime) Option {
	return func(s *Speaker) { s.chime = c }
}

// Speaker synthesises utterances and enqueues them on a mixer. It is safe
// for concurrent use.
type Speaker struct {
	tts          tts.Provider
	mixer        audio.Mixer
	metrics      *observe.Metrics
	providerName string
	chime        Chime

	mu     sync.RWMutex
	voices map[string]types.VoiceProfile
}

// New returns a Speaker. voices maps a language code to the voice that
// speaks it.
func New(provider tts.Provider, mixer audio.Mixer, voices map[string]types.VoiceProfile, opts ...Option) *Speaker {
	s := &Speaker{
		tts:          provider,
		mixer:        mixer,
		metrics:      observe.DefaultMetrics(),
		providerName: "tts",
		chime:        DefaultChime(),
	}
	for _, o := range opts {
		o(s)
	}
	s.SetVoices(voices)
	return s
}

// SetVoices replaces the language to voice mapping.
func (s *Speaker) SetVoices(voices map[string]types.VoiceProfile) {
	m := make(map[string]types.VoiceProfile, len(voices))
	for k, v := range voices {
		m[k] = v
	}
	s.mu.Lock()
	s.voices = m
	s.mu.Unlock()
}

// Voice returns the voice used for lang.
func (s *Speaker) Voice(lang string) types.VoiceProfile {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if v, ok := s.voices[lang]; ok {
		return v
	}
	return s.voices[DefaultLang]
}

// Speak starts synthesis of u and enqueues the audio under id at priority.
// It returns once audio is flowing to the mixer; playback continues in the
// background.
func (s *Speaker) Speak(ctx context.Context, id string, u types.Utterance, priority int) error {
	if u.Empty() {
		return nil
	}
	lang := u.Lang
	if lang == "" {
		lang = DefaultLang
	}
	voice := s.Voice(lang)

	start := time.Now()
	spanCtx, endSpan := observe.ProviderSpan(ctx, "tts.synthesize", s.providerName)
	ch, err := s.tts.Synthesize(spanCtx, u.Text, voice)
	endSpan(err)
	s.metrics.TTSDuration.Record(ctx, time.Since(start).Seconds())
	if err != nil {
		s.metrics.RecordProviderRequest(ctx, s.providerName, "tts", "error")
		s.metrics.RecordProviderError(ctx, s.providerName, "tts")
		return fmt.Errorf("speech: synthesize %q: %w", u.Text, err)
	}
	s.metrics.RecordProviderRequest(ctx, s.providerName, "tts", "ok")

	format := s.tts.Format()
	s.mixer.Enqueue(&audio.Clip{
		ID:         id,
		Audio:      ch,
		SampleRate: format.SampleRate,
		Channels:   format.Channels,
	}, priority)
	slog.Debug("speech: enqueued", "id", id, "lang", lang, "voice", voice.ID, "priority", priority)
	return nil
}

// Chime enqueues the alert chime under id at priority.
func (s *Speaker) Chime(_ context.Context, id string, priority int) error {
	s.mixer.Enqueue(s.chime.Clip(id), priority)
	return nil
}
