package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/elaichix/NubaGuard-AI/internal/phrase"
	"github.com/elaichix/NubaGuard-AI/internal/sensor"
	"github.com/elaichix/NubaGuard-AI/pkg/audio"
)

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"llm":     {"openai", "gemini", "anthropic", "ollama"},
	"stt":     {"whisper"},
	"tts":     {"elevenlabs", "openai"},
	"faces":   {"http"},
	"objects": {"http", "yolo"},
}

// Defaults for the monitor section.
const (
	DefaultTickInterval         = 100 * time.Millisecond
	DefaultMotionDuration       = 2 * time.Second
	DefaultGapTolerance         = 500 * time.Millisecond
	DefaultInactivityTimeout    = 15 * time.Second
	DefaultIdleInterval         = 10 * time.Second
	DefaultRecognitionCooldown  = 15 * time.Second
	DefaultCryCooldown          = 30 * time.Second
	DefaultConversationCooldown = 5 * time.Second
	DefaultListenDuration       = 3 * time.Second
	DefaultPacing               = time.Second
	DefaultConversationTimeout  = 8 * time.Second
	DefaultSampleRate           = 16000
	DefaultCameraTimeout        = 2 * time.Second
)

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, fills defaults, expands
// ${VAR} references in provider credentials and validates the result.
// An empty document yields the defaults.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	ApplyDefaults(cfg)
	expandEnv(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyDefaults fills every unset field that has a default.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.LogLevel == "" {
		cfg.Server.LogLevel = LogInfo
	}

	m := &cfg.Monitor
	setDuration(&m.TickInterval, DefaultTickInterval)
	setDuration(&m.MotionDuration, DefaultMotionDuration)
	setDuration(&m.GapTolerance, DefaultGapTolerance)
	setDuration(&m.InactivityTimeout, DefaultInactivityTimeout)
	setDuration(&m.IdleInterval, DefaultIdleInterval)
	setDuration(&m.RecognitionCooldown, DefaultRecognitionCooldown)
	setDuration(&m.CryCooldown, DefaultCryCooldown)
	setDuration(&m.ConversationCooldown, DefaultConversationCooldown)
	setDuration(&m.ListenDuration, DefaultListenDuration)
	setDuration(&m.Pacing, DefaultPacing)
	setDuration(&m.ConversationTimeout, DefaultConversationTimeout)

	setDuration(&cfg.Camera.Timeout, DefaultCameraTimeout)
	if cfg.Camera.Motion == (sensor.MotionConfig{}) {
		cfg.Camera.Motion = sensor.DefaultMotionConfig()
	}

	if cfg.Audio.SampleRate == 0 {
		cfg.Audio.SampleRate = DefaultSampleRate
	}
	if len(cfg.Audio.RecordCommand) == 0 {
		cfg.Audio.RecordCommand = audio.DefaultRecordCommand(cfg.Audio.SampleRate, 1, cfg.Monitor.ListenDuration)
	}
	if len(cfg.Audio.PlayCommand) == 0 {
		cfg.Audio.PlayCommand = audio.DefaultPlayCommand(cfg.Audio.SampleRate)
	}
	if cfg.Audio.Cry == (sensor.CryThresholds{}) {
		cfg.Audio.Cry = sensor.DefaultCryThresholds()
	}
}

// setDuration sets *d to def when it is zero. Negative values are left for
// [Validate] to reject.
func setDuration(d *time.Duration, def time.Duration) {
	if *d == 0 {
		*d = def
	}
}

func expandEnv(cfg *Config) {
	expand := func(e *ProviderEntry) {
		e.APIKey = os.ExpandEnv(e.APIKey)
		e.BaseURL = os.ExpandEnv(e.BaseURL)
	}
	p := &cfg.Providers
	expand(&p.LLM)
	expand(&p.STT)
	expand(&p.TTS)
	expand(&p.Faces)
	expand(&p.Objects)
	for i := range p.LLMFallbacks {
		expand(&p.LLMFallbacks[i])
	}
	for i := range p.TTSFallbacks {
		expand(&p.TTSFallbacks[i])
	}
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	// Providers
	p := cfg.Providers
	if !p.STT.Configured() {
		errs = append(errs, errors.New("providers.stt.name is required"))
	}
	if !p.TTS.Configured() {
		errs = append(errs, errors.New("providers.tts.name is required"))
	}
	if !p.LLM.Configured() {
		slog.Warn("no llm provider configured; speech replies will use keyword and canned phrases only")
	}
	if p.STT.Name == "whisper" && p.STT.BaseURL == "" {
		errs = append(errs, errors.New("providers.stt.base_url is required for whisper"))
	}
	for _, slot := range []struct {
		kind  string
		entry ProviderEntry
	}{
		{"faces", p.Faces},
		{"objects", p.Objects},
	} {
		if slot.entry.Name == "http" && slot.entry.BaseURL == "" {
			errs = append(errs, fmt.Errorf("providers.%s.base_url is required for http", slot.kind))
		}
	}
	validateProviderName("llm", p.LLM.Name)
	validateProviderName("stt", p.STT.Name)
	validateProviderName("tts", p.TTS.Name)
	validateProviderName("faces", p.Faces.Name)
	validateProviderName("objects", p.Objects.Name)
	for i, fb := range p.LLMFallbacks {
		if fb.Name == "" {
			errs = append(errs, fmt.Errorf("providers.llm_fallbacks[%d].name is required", i))
		}
		validateProviderName("llm", fb.Name)
	}
	for i, fb := range p.TTSFallbacks {
		if fb.Name == "" {
			errs = append(errs, fmt.Errorf("providers.tts_fallbacks[%d].name is required", i))
		}
		validateProviderName("tts", fb.Name)
	}
	if p.Breaker.MaxFailures < 0 {
		errs = append(errs, fmt.Errorf("providers.breaker.max_failures %d must not be negative", p.Breaker.MaxFailures))
	}
	if p.Breaker.Cooloff < 0 {
		errs = append(errs, fmt.Errorf("providers.breaker.cooloff %s must not be negative", p.Breaker.Cooloff))
	}

	// Monitor
	m := cfg.Monitor
	for _, d := range []struct {
		name string
		v    time.Duration
	}{
		{"tick_interval", m.TickInterval},
		{"motion_duration", m.MotionDuration},
		{"gap_tolerance", m.GapTolerance},
		{"inactivity_timeout", m.InactivityTimeout},
		{"idle_interval", m.IdleInterval},
		{"recognition_cooldown", m.RecognitionCooldown},
		{"cry_cooldown", m.CryCooldown},
		{"conversation_cooldown", m.ConversationCooldown},
		{"listen_duration", m.ListenDuration},
		{"pacing", m.Pacing},
		{"conversation_timeout", m.ConversationTimeout},
	} {
		if d.v < 0 {
			errs = append(errs, fmt.Errorf("monitor.%s %s must not be negative", d.name, d.v))
		}
	}
	if m.GapTolerance > m.MotionDuration {
		slog.Warn("monitor.gap_tolerance exceeds motion_duration; it will be clamped",
			"gap_tolerance", m.GapTolerance, "motion_duration", m.MotionDuration)
	}

	// Camera
	if cfg.Camera.SnapshotURL == "" {
		errs = append(errs, errors.New("camera.snapshot_url is required"))
	}
	if cfg.Camera.Timeout < 0 {
		errs = append(errs, fmt.Errorf("camera.timeout %s must not be negative", cfg.Camera.Timeout))
	}

	// Audio
	if cfg.Audio.SampleRate < 0 {
		errs = append(errs, fmt.Errorf("audio.sample_rate %d must be positive", cfg.Audio.SampleRate))
	}
	if cfg.Audio.NoiseFloor < 0 || cfg.Audio.NoiseFloor >= 1 {
		errs = append(errs, fmt.Errorf("audio.noise_floor %.3f is out of range [0, 1)", cfg.Audio.NoiseFloor))
	}
	if cfg.Audio.MixerGap < 0 {
		errs = append(errs, fmt.Errorf("audio.mixer_gap %s must not be negative", cfg.Audio.MixerGap))
	}
	cry := cfg.Audio.Cry
	if cry.RMS < 0 || cry.CentroidHz < 0 || cry.PitchVariance < 0 {
		errs = append(errs, errors.New("audio.cry thresholds must not be negative"))
	}

	// Phrases
	if err := phrase.Default().Merge(cfg.Phrases.Book).Validate(); err != nil {
		errs = append(errs, err)
	}
	for lang, v := range cfg.Phrases.Voices {
		if v.SpeedFactor != 0 && (v.SpeedFactor < 0.5 || v.SpeedFactor > 2.0) {
			errs = append(errs, fmt.Errorf("phrases.voices[%s].speed_factor %.2f is out of range [0.5, 2.0]", lang, v.SpeedFactor))
		}
	}

	return errors.Join(errs...)
}

// validateProviderName logs a warning if name is non-empty and not in the
// known list for kind. Unknown names are not hard errors because a custom
// factory may have been registered.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok {
		return
	}
	if !slices.Contains(known, name) {
		slog.Warn("unknown provider name; it must be registered before use",
			"kind", kind,
			"name", name,
			"known", known,
		)
	}
}
