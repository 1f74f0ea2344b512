// Package config provides the configuration schema, loader, hot-reload
// watcher and provider registry for the NubaGuard monitor.
package config

import (
	"log/slog"
	"time"

	"github.com/elaichix/NubaGuard-AI/internal/phrase"
	"github.com/elaichix/NubaGuard-AI/internal/resilience"
	"github.com/elaichix/NubaGuard-AI/internal/sensor"
	"github.com/elaichix/NubaGuard-AI/pkg/types"
)

// LogLevel controls log verbosity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// SlogLevel maps l to the slog level. Unknown values map to Info.
func (l LogLevel) SlogLevel() slog.Level {
	switch l {
	case LogDebug:
		return slog.LevelDebug
	case LogWarn:
		return slog.LevelWarn
	case LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Config is the root configuration structure.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Providers ProvidersConfig `yaml:"providers"`
	Monitor   MonitorConfig   `yaml:"monitor"`
	Camera    CameraConfig    `yaml:"camera"`
	Audio     AudioConfig     `yaml:"audio"`
	Phrases   PhrasesConfig   `yaml:"phrases"`
	Activity  ActivityConfig  `yaml:"activity"`
}

// ServerConfig holds the HTTP listener and logging settings.
type ServerConfig struct {
	// ListenAddr serves /metrics, /healthz, /readyz and /ws. Empty disables
	// the HTTP server.
	ListenAddr string `yaml:"listen_addr"`

	LogLevel LogLevel `yaml:"log_level"`
}

// ProvidersConfig selects the backend for each external collaborator.
type ProvidersConfig struct {
	LLM ProviderEntry `yaml:"llm"`

	// LLMFallbacks are tried in order when the primary LLM fails or its
	// breaker is open.
	LLMFallbacks []ProviderEntry `yaml:"llm_fallbacks"`

	STT          ProviderEntry   `yaml:"stt"`
	TTS          ProviderEntry   `yaml:"tts"`
	TTSFallbacks []ProviderEntry `yaml:"tts_fallbacks"`

	// Faces and Objects are optional. Without them no identities are
	// reported and the conversation hint lists no objects. Objects may name
	// "yolo" to run an ONNX model in-process (gocv builds only); Model is
	// then the model path.
	Faces   ProviderEntry `yaml:"faces"`
	Objects ProviderEntry `yaml:"objects"`

	// Breaker tunes the circuit breaker wrapped around every provider.
	Breaker resilience.BreakerConfig `yaml:"breaker"`
}

// ProviderEntry is the common configuration shape for every provider slot.
type ProviderEntry struct {
	// Name selects the implementation (e.g., "openai", "gemini", "whisper").
	Name string `yaml:"name"`

	// APIKey may reference an environment variable as ${VAR}.
	APIKey string `yaml:"api_key"`

	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"`

	// Options carries provider-specific settings not covered above.
	Options map[string]any `yaml:"options"`
}

// Configured reports whether the slot names a provider.
func (e ProviderEntry) Configured() bool { return e.Name != "" }

// MonitorConfig holds the behavioural timings of the arbitration loop.
type MonitorConfig struct {
	// TickInterval is the period of the arbitration loop. Default: 100ms.
	TickInterval time.Duration `yaml:"tick_interval"`

	// MotionDuration is how long motion must be sustained to wake.
	// Default: 2s.
	MotionDuration time.Duration `yaml:"motion_duration"`

	// GapTolerance is the longest run of still frames that does not break a
	// motion run. Default: 0.5s.
	GapTolerance time.Duration `yaml:"gap_tolerance"`

	// InactivityTimeout is how long without motion before sleeping.
	// Default: 15s.
	InactivityTimeout time.Duration `yaml:"inactivity_timeout"`

	IdleInterval         time.Duration `yaml:"idle_interval"`
	RecognitionCooldown  time.Duration `yaml:"recognition_cooldown"`
	CryCooldown          time.Duration `yaml:"cry_cooldown"`
	ConversationCooldown time.Duration `yaml:"conversation_cooldown"`

	// ListenDuration is the length of each recorded audio segment.
	// Default: 3s.
	ListenDuration time.Duration `yaml:"listen_duration"`

	// Pacing is the pause between capture iterations. Default: 1s.
	Pacing time.Duration `yaml:"pacing"`

	// ConversationTimeout bounds one conversational backend call.
	// Default: 8s.
	ConversationTimeout time.Duration `yaml:"conversation_timeout"`

	// SystemPrompt overrides the built-in conversation instruction. It may
	// contain {state} and {objects} placeholders.
	SystemPrompt string `yaml:"system_prompt"`
}

// CameraConfig describes the frame source and motion detector.
type CameraConfig struct {
	// SnapshotURL returns one JPEG or PNG frame per GET.
	SnapshotURL string `yaml:"snapshot_url"`

	// Timeout bounds one snapshot fetch. Default: 2s.
	Timeout time.Duration `yaml:"timeout"`

	Motion sensor.MotionConfig `yaml:"motion"`
}

// AudioConfig describes audio capture, playback and cry detection.
type AudioConfig struct {
	// RecordCommand is argv for a process that records one segment of raw
	// s16le mono PCM at SampleRate to stdout and exits. Default: arecord.
	RecordCommand []string `yaml:"record_command"`

	// PlayCommand is argv for a long-running process reading raw s16le mono
	// PCM at SampleRate from stdin. Default: aplay.
	PlayCommand []string `yaml:"play_command"`

	// SampleRate of captured and played audio. Default: 16000.
	SampleRate int `yaml:"sample_rate"`

	// NoiseFloor drops captured segments quieter than this RMS level (0..1)
	// before transcription. 0 keeps everything.
	NoiseFloor float64 `yaml:"noise_floor"`

	// MixerGap is the silence inserted between queued clips.
	MixerGap time.Duration `yaml:"mixer_gap"`

	Cry sensor.CryThresholds `yaml:"cry"`
}

// PhrasesConfig overrides entries of the built-in phrase book and selects a
// synthesis voice per language.
type PhrasesConfig struct {
	phrase.Book `yaml:",inline"`

	// Voices maps a language code ("en", "bn") to a voice. "en" is the
	// fallback for languages without an entry.
	Voices map[string]types.VoiceProfile `yaml:"voices"`
}

// ActivityConfig locates the activity record. Empty paths disable the
// corresponding sink.
type ActivityConfig struct {
	CSVPath    string `yaml:"csv_path"`
	SQLitePath string `yaml:"sqlite_path"`
}
