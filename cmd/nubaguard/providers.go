package main

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/elaichix/NubaGuard-AI/internal/app"
	"github.com/elaichix/NubaGuard-AI/internal/config"
	"github.com/elaichix/NubaGuard-AI/internal/resilience"
	"github.com/elaichix/NubaGuard-AI/internal/sensor"
	"github.com/elaichix/NubaGuard-AI/pkg/provider/llm"
	"github.com/elaichix/NubaGuard-AI/pkg/provider/llm/anyllm"
	oallm "github.com/elaichix/NubaGuard-AI/pkg/provider/llm/openai"
	"github.com/elaichix/NubaGuard-AI/pkg/provider/stt"
	"github.com/elaichix/NubaGuard-AI/pkg/provider/stt/whisper"
	"github.com/elaichix/NubaGuard-AI/pkg/provider/tts"
	"github.com/elaichix/NubaGuard-AI/pkg/provider/tts/elevenlabs"
	oatts "github.com/elaichix/NubaGuard-AI/pkg/provider/tts/openai"
)

// remoteTimeout bounds one face or object recognition request unless the
// entry sets options.timeout.
const remoteTimeout = 3 * time.Second

// registerBuiltinProviders wires all built-in provider factories into reg.
// Each factory receives a config.ProviderEntry and constructs the appropriate
// provider from the real implementation packages.
func registerBuiltinProviders(reg *config.Registry) {
	// ── LLM ───────────────────────────────────────────────────────────────────

	reg.RegisterLLM("openai", func(entry config.ProviderEntry) (llm.Provider, error) {
		var opts []oallm.Option
		if entry.BaseURL != "" {
			opts = append(opts, oallm.WithBaseURL(entry.BaseURL))
		}
		if d := optDuration(entry.Options, "timeout"); d > 0 {
			opts = append(opts, oallm.WithTimeout(d))
		}
		return oallm.New(entry.APIKey, entry.Model, opts...)
	})

	// gemini, anthropic and ollama go through any-llm. ollama is a local
	// server and usually has no API key.
	for _, backend := range []string{"gemini", "anthropic", "ollama"} {
		reg.RegisterLLM(backend, func(entry config.ProviderEntry) (llm.Provider, error) {
			var opts []anyllmlib.Option
			if entry.APIKey != "" {
				opts = append(opts, anyllmlib.WithAPIKey(entry.APIKey))
			}
			if entry.BaseURL != "" {
				opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
			}
			return anyllm.New(backend, entry.Model, opts...)
		})
	}

	// ── STT ───────────────────────────────────────────────────────────────────

	reg.RegisterSTT("whisper", func(entry config.ProviderEntry) (stt.Provider, error) {
		var opts []whisper.Option
		if entry.Model != "" {
			opts = append(opts, whisper.WithModel(entry.Model))
		}
		if lang := optString(entry.Options, "language"); lang != "" {
			opts = append(opts, whisper.WithLanguage(lang))
		}
		return whisper.New(entry.BaseURL, opts...)
	})

	// ── TTS ───────────────────────────────────────────────────────────────────

	reg.RegisterTTS("elevenlabs", func(entry config.ProviderEntry) (tts.Provider, error) {
		var opts []elevenlabs.Option
		if entry.Model != "" {
			opts = append(opts, elevenlabs.WithModel(entry.Model))
		}
		if outputFmt := optString(entry.Options, "output_format"); outputFmt != "" {
			opts = append(opts, elevenlabs.WithOutputFormat(outputFmt))
		}
		if entry.BaseURL != "" {
			opts = append(opts, elevenlabs.WithEndpoint(entry.BaseURL))
		}
		return elevenlabs.New(entry.APIKey, opts...)
	})

	reg.RegisterTTS("openai", func(entry config.ProviderEntry) (tts.Provider, error) {
		var opts []oatts.Option
		if entry.BaseURL != "" {
			opts = append(opts, oatts.WithBaseURL(entry.BaseURL))
		}
		if d := optDuration(entry.Options, "timeout"); d > 0 {
			opts = append(opts, oatts.WithTimeout(d))
		}
		return oatts.New(entry.APIKey, entry.Model, opts...)
	})

	// ── Vision ────────────────────────────────────────────────────────────────

	reg.RegisterFaces("http", func(entry config.ProviderEntry) (sensor.FaceRecognizer, error) {
		return sensor.NewRemoteFaces(entry.BaseURL, remoteOptions(entry)...)
	})

	reg.RegisterObjects("http", func(entry config.ProviderEntry) (sensor.ObjectDetector, error) {
		return sensor.NewRemoteObjects(entry.BaseURL, remoteOptions(entry)...)
	})

	// yolo runs an ONNX export in-process; only gocv builds provide it.
	reg.RegisterObjects("yolo", func(entry config.ProviderEntry) (sensor.ObjectDetector, error) {
		return sensor.NewYOLO(sensor.YOLOConfig{
			ModelPath:        entry.Model,
			ConfidenceThresh: float32(optFloat(entry.Options, "confidence")),
			NMSThresh:        float32(optFloat(entry.Options, "nms")),
			InputSize:        int(optFloat(entry.Options, "input_size")),
		})
	})

	for kind, names := range reg.Names() {
		for _, name := range names {
			slog.Debug("registered provider", "kind", kind, "name", name)
		}
	}
}

func remoteOptions(entry config.ProviderEntry) []sensor.RemoteOption {
	timeout := remoteTimeout
	if d := optDuration(entry.Options, "timeout"); d > 0 {
		timeout = d
	}
	opts := []sensor.RemoteOption{
		sensor.WithRemoteHTTPClient(&http.Client{Timeout: timeout}),
	}
	if entry.APIKey != "" {
		opts = append(opts, sensor.WithRemoteAPIKey(entry.APIKey))
	}
	if c := optFloat(entry.Options, "min_confidence"); c > 0 {
		opts = append(opts, sensor.WithMinConfidence(c))
	}
	return opts
}

// buildProviders instantiates all providers named in cfg using the registry
// and returns them in an [app.Providers] struct for the application to consume.
// LLM, STT and TTS are wrapped in circuit breakers with their configured
// fallbacks behind them.
func buildProviders(cfg *config.Config, reg *config.Registry) (*app.Providers, error) {
	ps := &app.Providers{}
	pc := cfg.Providers

	if name := pc.LLM.Name; name != "" {
		p, err := reg.CreateLLM(pc.LLM)
		if err != nil {
			return nil, fmt.Errorf("create llm provider %q: %w", name, err)
		}
		group := resilience.NewLLM(name, p, pc.Breaker)
		for _, fb := range pc.LLMFallbacks {
			fp, err := reg.CreateLLM(fb)
			if err != nil {
				return nil, fmt.Errorf("create llm fallback %q: %w", fb.Name, err)
			}
			group.Add(fb.Name, fp)
		}
		ps.LLM = group
		slog.Info("provider created", "kind", "llm", "name", name, "fallbacks", len(pc.LLMFallbacks))
	}

	if name := pc.STT.Name; name != "" {
		p, err := reg.CreateSTT(pc.STT)
		if err != nil {
			return nil, fmt.Errorf("create stt provider %q: %w", name, err)
		}
		ps.STT = resilience.NewSTT(name, p, pc.Breaker)
		slog.Info("provider created", "kind", "stt", "name", name)
	}

	if name := pc.TTS.Name; name != "" {
		p, err := reg.CreateTTS(pc.TTS)
		if err != nil {
			return nil, fmt.Errorf("create tts provider %q: %w", name, err)
		}
		group := resilience.NewTTS(name, p, pc.Breaker)
		for _, fb := range pc.TTSFallbacks {
			fp, err := reg.CreateTTS(fb)
			if err != nil {
				return nil, fmt.Errorf("create tts fallback %q: %w", fb.Name, err)
			}
			group.Add(fb.Name, fp)
		}
		ps.TTS = group
		slog.Info("provider created", "kind", "tts", "name", name, "fallbacks", len(pc.TTSFallbacks))
	}

	// Vision providers are optional: a missing factory or a build without
	// gocv degrades to no identities or no objects.
	if name := pc.Faces.Name; name != "" {
		p, err := reg.CreateFaces(pc.Faces)
		switch {
		case errors.Is(err, config.ErrProviderNotRegistered):
			slog.Warn("face provider not available; skipping", "name", name)
		case err != nil:
			return nil, fmt.Errorf("create faces provider %q: %w", name, err)
		default:
			ps.Faces = p
			slog.Info("provider created", "kind", "faces", "name", name)
		}
	}

	if name := pc.Objects.Name; name != "" {
		p, err := reg.CreateObjects(pc.Objects)
		switch {
		case errors.Is(err, config.ErrProviderNotRegistered), errors.Is(err, sensor.ErrNoVision):
			slog.Warn("object provider not available; skipping", "name", name, "err", err)
		case err != nil:
			return nil, fmt.Errorf("create objects provider %q: %w", name, err)
		default:
			ps.Objects = p
			slog.Info("provider created", "kind", "objects", "name", name)
		}
	}

	return ps, nil
}

// ── Helpers ───────────────────────────────────────────────────────────────────

// optString extracts a string value from a provider Options map[string]any.
// Returns "" if the map is nil, the key is absent, or the value is not a string.
func optString(opts map[string]any, key string) string {
	if opts == nil {
		return ""
	}
	v, ok := opts[key]
	if !ok {
		return ""
	}
	s, ok := v.(string)
	if !ok {
		return ""
	}
	return s
}

// optFloat extracts a number. YAML decodes integers as int and decimals as
// float64; both are accepted.
func optFloat(opts map[string]any, key string) float64 {
	switch v := opts[key].(type) {
	case int:
		return float64(v)
	case float64:
		return v
	default:
		return 0
	}
}

// optDuration parses a duration string such as "5s". Invalid values yield 0.
func optDuration(opts map[string]any, key string) time.Duration {
	d, err := time.ParseDuration(optString(opts, key))
	if err != nil {
		return 0
	}
	return d
}
