package config_test

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/elaichix/NubaGuard-AI/internal/config"
	"github.com/elaichix/NubaGuard-AI/internal/sensor"
	sensormock "github.com/elaichix/NubaGuard-AI/internal/sensor/mock"
	"github.com/elaichix/NubaGuard-AI/pkg/provider/llm"
	llmmock "github.com/elaichix/NubaGuard-AI/pkg/provider/llm/mock"
	"github.com/elaichix/NubaGuard-AI/pkg/provider/stt"
	sttmock "github.com/elaichix/NubaGuard-AI/pkg/provider/stt/mock"
	"github.com/elaichix/NubaGuard-AI/pkg/provider/tts"
	ttsmock "github.com/elaichix/NubaGuard-AI/pkg/provider/tts/mock"
)

// ── helpers ──────────────────────────────────────────────────────────────────

const sampleYAML = `
server:
  listen_addr: ":8080"
  log_level: info

providers:
  llm:
    name: gemini
    api_key: ${NUBAGUARD_TEST_GEMINI_KEY}
    model: gemini-2.0-flash
  llm_fallbacks:
    - name: ollama
      base_url: http://localhost:11434
      model: llama3.2
  stt:
    name: whisper
    base_url: http://localhost:8081
  tts:
    name: elevenlabs
    api_key: el-test
  faces:
    name: http
    base_url: http://localhost:5000/faces
  breaker:
    max_failures: 3
    cooloff: 10s

monitor:
  motion_duration: 2s
  idle_interval: 12s

camera:
  snapshot_url: http://localhost:8554/snapshot.jpg

audio:
  sample_rate: 16000
  cry:
    rms: 0.03
    centroid_hz: 2600
    pitch_variance: 120

phrases:
  goodnight:
    text: Sleep tight, Nuba.
    lang: en
  voices:
    en:
      id: voice-en
    bn:
      id: voice-bn

activity:
  csv_path: /var/lib/nubaguard/activity.csv
  sqlite_path: /var/lib/nubaguard/activity.db
`

// minimalYAML carries only the required fields.
const minimalYAML = `
providers:
  stt:
    name: whisper
    base_url: http://localhost:8081
  tts:
    name: openai
camera:
  snapshot_url: http://cam/snap
`

func load(t *testing.T, yaml string) (*config.Config, error) {
	t.Helper()
	return config.LoadFromReader(strings.NewReader(yaml))
}

// ── YAML loading ──────────────────────────────────────────────────────────────

func TestLoadFromReader_Valid(t *testing.T) {
	t.Setenv("NUBAGUARD_TEST_GEMINI_KEY", "g-secret")

	cfg, err := load(t, sampleYAML)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.ListenAddr != ":8080" {
		t.Errorf("listen_addr: got %q, want %q", cfg.Server.ListenAddr, ":8080")
	}
	if cfg.Providers.LLM.APIKey != "g-secret" {
		t.Errorf("llm api_key: got %q, want expanded %q", cfg.Providers.LLM.APIKey, "g-secret")
	}
	if len(cfg.Providers.LLMFallbacks) != 1 || cfg.Providers.LLMFallbacks[0].Name != "ollama" {
		t.Errorf("llm_fallbacks: got %+v", cfg.Providers.LLMFallbacks)
	}
	if cfg.Providers.Breaker.MaxFailures != 3 || cfg.Providers.Breaker.Cooloff != 10*time.Second {
		t.Errorf("breaker: got %+v", cfg.Providers.Breaker)
	}
	if cfg.Monitor.IdleInterval != 12*time.Second {
		t.Errorf("idle_interval: got %s, want 12s", cfg.Monitor.IdleInterval)
	}
	if cfg.Audio.Cry.CentroidHz != 2600 {
		t.Errorf("cry centroid: got %v, want 2600", cfg.Audio.Cry.CentroidHz)
	}
	if cfg.Phrases.Goodnight.Text != "Sleep tight, Nuba." {
		t.Errorf("goodnight: got %q", cfg.Phrases.Goodnight.Text)
	}
	if cfg.Phrases.Voices["bn"].ID != "voice-bn" {
		t.Errorf("bn voice: got %+v", cfg.Phrases.Voices["bn"])
	}
	if cfg.Activity.SQLitePath == "" {
		t.Error("sqlite_path should be set")
	}
}

func TestLoadFromReader_Defaults(t *testing.T) {
	t.Parallel()
	cfg, err := load(t, minimalYAML)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	durations := []struct {
		name string
		got  time.Duration
		want time.Duration
	}{
		{"tick_interval", cfg.Monitor.TickInterval, 100 * time.Millisecond},
		{"motion_duration", cfg.Monitor.MotionDuration, 2 * time.Second},
		{"gap_tolerance", cfg.Monitor.GapTolerance, 500 * time.Millisecond},
		{"inactivity_timeout", cfg.Monitor.InactivityTimeout, 15 * time.Second},
		{"idle_interval", cfg.Monitor.IdleInterval, 10 * time.Second},
		{"recognition_cooldown", cfg.Monitor.RecognitionCooldown, 15 * time.Second},
		{"cry_cooldown", cfg.Monitor.CryCooldown, 30 * time.Second},
		{"conversation_cooldown", cfg.Monitor.ConversationCooldown, 5 * time.Second},
		{"listen_duration", cfg.Monitor.ListenDuration, 3 * time.Second},
		{"pacing", cfg.Monitor.Pacing, time.Second},
	}
	for _, d := range durations {
		if d.got != d.want {
			t.Errorf("%s: got %s, want %s", d.name, d.got, d.want)
		}
	}
	if cfg.Server.LogLevel != config.LogInfo {
		t.Errorf("log_level: got %q, want %q", cfg.Server.LogLevel, config.LogInfo)
	}
	if cfg.Audio.SampleRate != 16000 {
		t.Errorf("sample_rate: got %d, want 16000", cfg.Audio.SampleRate)
	}
	if cfg.Audio.Cry != sensor.DefaultCryThresholds() {
		t.Errorf("cry thresholds: got %+v", cfg.Audio.Cry)
	}
	if len(cfg.Audio.RecordCommand) == 0 || cfg.Audio.RecordCommand[0] != "arecord" {
		t.Errorf("record_command: got %v", cfg.Audio.RecordCommand)
	}
	if len(cfg.Audio.PlayCommand) == 0 || cfg.Audio.PlayCommand[0] != "aplay" {
		t.Errorf("play_command: got %v", cfg.Audio.PlayCommand)
	}
	if cfg.Camera.Motion != sensor.DefaultMotionConfig() {
		t.Errorf("motion: got %+v", cfg.Camera.Motion)
	}
}

func TestLoadFromReader_UnknownField(t *testing.T) {
	t.Parallel()
	_, err := load(t, minimalYAML+"\nnpcs: []\n")
	if err == nil {
		t.Fatal("expected error for unknown top-level field")
	}
}

func TestLoadFromReader_EmptyReportsRequiredFields(t *testing.T) {
	t.Parallel()
	_, err := load(t, "")
	if err == nil {
		t.Fatal("expected validation error for empty config")
	}
	for _, want := range []string{"providers.stt.name", "providers.tts.name", "camera.snapshot_url"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q should mention %s", err, want)
		}
	}
}

// ── Validation ────────────────────────────────────────────────────────────────

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		doc     string
		wantErr string
	}{
		{
			name:    "invalid log level",
			doc:     minimalYAML + "server:\n  log_level: verbose\n",
			wantErr: "server.log_level",
		},
		{
			name:    "negative cooldown",
			doc:     minimalYAML + "monitor:\n  cry_cooldown: -1s\n",
			wantErr: "monitor.cry_cooldown",
		},
		{
			name:    "speed factor out of range",
			doc:     minimalYAML + "phrases:\n  voices:\n    en:\n      id: v\n      speed_factor: 3.5\n",
			wantErr: "speed_factor",
		},
		{
			name:    "blank play phrase",
			doc:     minimalYAML + "phrases:\n  play:\n    - text: \"\"\n",
			wantErr: "play[0] is blank",
		},
		{
			name:    "noise floor out of range",
			doc:     minimalYAML + "audio:\n  noise_floor: 1.5\n",
			wantErr: "audio.noise_floor",
		},
		{
			name:    "http faces without base_url",
			doc:     strings.Replace(minimalYAML, "  tts:\n", "  faces:\n    name: http\n  tts:\n", 1),
			wantErr: "providers.faces.base_url",
		},
		{
			name:    "whisper without base_url",
			doc:     strings.Replace(minimalYAML, "    base_url: http://localhost:8081\n", "", 1),
			wantErr: "providers.stt.base_url",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := load(t, tc.doc)
			if err == nil {
				t.Fatalf("expected error containing %q, got nil", tc.wantErr)
			}
			if !strings.Contains(err.Error(), tc.wantErr) {
				t.Errorf("error %q should contain %q", err, tc.wantErr)
			}
		})
	}
}

func TestValidate_MultipleErrors(t *testing.T) {
	t.Parallel()
	cfg := &config.Config{
		Server: config.ServerConfig{LogLevel: "bananas"},
		Monitor: config.MonitorConfig{
			Pacing: -time.Second,
		},
	}
	err := config.Validate(cfg)
	if err == nil {
		t.Fatal("expected errors")
	}
	msg := err.Error()
	for _, want := range []string{"server.log_level", "providers.stt.name", "monitor.pacing"} {
		if !strings.Contains(msg, want) {
			t.Errorf("joined error should mention %s, got: %s", want, msg)
		}
	}
}

func TestValidProviderNames(t *testing.T) {
	t.Parallel()
	for _, kind := range []string{"llm", "stt", "tts", "faces", "objects"} {
		if len(config.ValidProviderNames[kind]) == 0 {
			t.Errorf("ValidProviderNames[%q] is empty", kind)
		}
	}
}

// ── Registry ─────────────────────────────────────────────────────────────────

func TestRegistry_Unknown(t *testing.T) {
	t.Parallel()
	reg := config.NewRegistry()
	entry := config.ProviderEntry{Name: "nonexistent"}

	errs := map[string]error{}
	_, errs["llm"] = reg.CreateLLM(entry)
	_, errs["stt"] = reg.CreateSTT(entry)
	_, errs["tts"] = reg.CreateTTS(entry)
	_, errs["faces"] = reg.CreateFaces(entry)
	_, errs["objects"] = reg.CreateObjects(entry)

	for kind, err := range errs {
		if !errors.Is(err, config.ErrProviderNotRegistered) {
			t.Errorf("%s: expected ErrProviderNotRegistered, got %v", kind, err)
		}
	}
}

func TestRegistry_Registered(t *testing.T) {
	t.Parallel()
	reg := config.NewRegistry()

	wantLLM := &llmmock.Provider{}
	wantSTT := &sttmock.Provider{}
	wantTTS := &ttsmock.Provider{}
	wantFaces := &sensormock.Faces{}
	wantObjects := &sensormock.Objects{}

	reg.RegisterLLM("stub", func(config.ProviderEntry) (llm.Provider, error) { return wantLLM, nil })
	reg.RegisterSTT("stub", func(config.ProviderEntry) (stt.Provider, error) { return wantSTT, nil })
	reg.RegisterTTS("stub", func(config.ProviderEntry) (tts.Provider, error) { return wantTTS, nil })
	reg.RegisterFaces("stub", func(config.ProviderEntry) (sensor.FaceRecognizer, error) { return wantFaces, nil })
	reg.RegisterObjects("stub", func(config.ProviderEntry) (sensor.ObjectDetector, error) { return wantObjects, nil })

	entry := config.ProviderEntry{Name: "stub"}
	if got, err := reg.CreateLLM(entry); err != nil || got != wantLLM {
		t.Errorf("CreateLLM: got %v, %v", got, err)
	}
	if got, err := reg.CreateSTT(entry); err != nil || got != wantSTT {
		t.Errorf("CreateSTT: got %v, %v", got, err)
	}
	if got, err := reg.CreateTTS(entry); err != nil || got != wantTTS {
		t.Errorf("CreateTTS: got %v, %v", got, err)
	}
	if got, err := reg.CreateFaces(entry); err != nil || got != wantFaces {
		t.Errorf("CreateFaces: got %v, %v", got, err)
	}
	if got, err := reg.CreateObjects(entry); err != nil || got != wantObjects {
		t.Errorf("CreateObjects: got %v, %v", got, err)
	}

	names := reg.Names()
	if len(names["llm"]) != 1 || names["llm"][0] != "stub" {
		t.Errorf("Names()[llm] = %v, want [stub]", names["llm"])
	}
}

func TestRegistry_FactoryError(t *testing.T) {
	t.Parallel()
	reg := config.NewRegistry()
	wantErr := errors.New("factory boom")
	reg.RegisterLLM("broken", func(config.ProviderEntry) (llm.Provider, error) {
		return nil, wantErr
	})
	_, err := reg.CreateLLM(config.ProviderEntry{Name: "broken"})
	if !errors.Is(err, wantErr) {
		t.Errorf("expected factory error %v, got %v", wantErr, err)
	}
}

func TestLoad_ExampleConfig(t *testing.T) {
	t.Parallel()

	cfg, err := config.Load(filepath.Join("..", "..", "configs", "example.yaml"))
	if err != nil {
		t.Fatalf("configs/example.yaml does not load: %v", err)
	}
	if cfg.Camera.Motion != sensor.DefaultMotionConfig() {
		t.Errorf("camera.motion = %+v, want the defaults it documents", cfg.Camera.Motion)
	}
	if cfg.Audio.Cry != sensor.DefaultCryThresholds() {
		t.Errorf("audio.cry = %+v, want the defaults it documents", cfg.Audio.Cry)
	}
	if cfg.Monitor.GapTolerance != config.DefaultGapTolerance {
		t.Errorf("monitor.gap_tolerance = %v, want %v", cfg.Monitor.GapTolerance, config.DefaultGapTolerance)
	}
	if cfg.Activity.SQLitePath == "" {
		t.Error("activity.sqlite_path should be set so the activity command works")
	}
}
