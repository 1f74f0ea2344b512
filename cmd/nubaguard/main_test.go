package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/elaichix/NubaGuard-AI/internal/activity"
	"github.com/elaichix/NubaGuard-AI/internal/config"
	"github.com/elaichix/NubaGuard-AI/internal/resilience"
	"github.com/elaichix/NubaGuard-AI/internal/sensor"
	sensormock "github.com/elaichix/NubaGuard-AI/internal/sensor/mock"
	"github.com/elaichix/NubaGuard-AI/pkg/provider/llm"
	llmmock "github.com/elaichix/NubaGuard-AI/pkg/provider/llm/mock"
	"github.com/elaichix/NubaGuard-AI/pkg/provider/stt"
	sttmock "github.com/elaichix/NubaGuard-AI/pkg/provider/stt/mock"
	"github.com/elaichix/NubaGuard-AI/pkg/provider/tts"
	ttsmock "github.com/elaichix/NubaGuard-AI/pkg/provider/tts/mock"
)

func TestOptHelpers(t *testing.T) {
	t.Parallel()

	opts := map[string]any{
		"language":   "bn",
		"count":      3,
		"confidence": 0.4,
		"timeout":    "1500ms",
		"bad":        "soon",
	}

	if got := optString(opts, "language"); got != "bn" {
		t.Errorf("optString(language) = %q, want bn", got)
	}
	if got := optString(opts, "count"); got != "" {
		t.Errorf("optString(count) = %q, want empty", got)
	}
	if got := optString(nil, "language"); got != "" {
		t.Errorf("optString(nil) = %q, want empty", got)
	}
	if got := optFloat(opts, "count"); got != 3 {
		t.Errorf("optFloat(count) = %v, want 3", got)
	}
	if got := optFloat(opts, "confidence"); got != 0.4 {
		t.Errorf("optFloat(confidence) = %v, want 0.4", got)
	}
	if got := optFloat(opts, "language"); got != 0 {
		t.Errorf("optFloat(language) = %v, want 0", got)
	}
	if got := optDuration(opts, "timeout"); got != 1500*time.Millisecond {
		t.Errorf("optDuration(timeout) = %v, want 1.5s", got)
	}
	if got := optDuration(opts, "bad"); got != 0 {
		t.Errorf("optDuration(bad) = %v, want 0", got)
	}
}

func TestRegisterBuiltinProviders_Names(t *testing.T) {
	t.Parallel()

	reg := config.NewRegistry()
	registerBuiltinProviders(reg)
	names := reg.Names()

	for kind, want := range config.ValidProviderNames {
		got := strings.Join(names[kind], ",")
		for _, n := range want {
			if !strings.Contains(","+got+",", ","+n+",") {
				t.Errorf("kind %s: %q not registered (have %s)", kind, n, got)
			}
		}
	}
}

func mockRegistry() *config.Registry {
	reg := config.NewRegistry()
	reg.RegisterLLM("mock", func(config.ProviderEntry) (llm.Provider, error) { return &llmmock.Provider{}, nil })
	reg.RegisterSTT("mock", func(config.ProviderEntry) (stt.Provider, error) { return &sttmock.Provider{}, nil })
	reg.RegisterTTS("mock", func(config.ProviderEntry) (tts.Provider, error) { return &ttsmock.Provider{}, nil })
	reg.RegisterFaces("mock", func(config.ProviderEntry) (sensor.FaceRecognizer, error) { return &sensormock.Faces{}, nil })
	reg.RegisterObjects("novision", func(config.ProviderEntry) (sensor.ObjectDetector, error) { return nil, sensor.ErrNoVision })
	return reg
}

func TestBuildProviders_WrapsWithFallbacks(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{Providers: config.ProvidersConfig{
		LLM:          config.ProviderEntry{Name: "mock"},
		LLMFallbacks: []config.ProviderEntry{{Name: "mock"}},
		STT:          config.ProviderEntry{Name: "mock"},
		TTS:          config.ProviderEntry{Name: "mock"},
		Faces:        config.ProviderEntry{Name: "mock"},
		Objects:      config.ProviderEntry{Name: "novision"},
	}}

	ps, err := buildProviders(cfg, mockRegistry())
	if err != nil {
		t.Fatalf("buildProviders() returned error: %v", err)
	}
	group, ok := ps.LLM.(*resilience.LLM)
	if !ok {
		t.Fatalf("LLM is %T, want *resilience.LLM", ps.LLM)
	}
	if n := len(group.Names()); n != 2 {
		t.Errorf("llm group has %d members, want 2", n)
	}
	if _, ok := ps.STT.(*resilience.STT); !ok {
		t.Errorf("STT is %T, want *resilience.STT", ps.STT)
	}
	if ps.Faces == nil {
		t.Error("Faces should be set")
	}
	if ps.Objects != nil {
		t.Error("Objects should be skipped when vision is unavailable")
	}
}

func TestBuildProviders_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		pc   config.ProvidersConfig
	}{
		{
			name: "unknown stt",
			pc: config.ProvidersConfig{
				STT: config.ProviderEntry{Name: "nope"},
				TTS: config.ProviderEntry{Name: "mock"},
			},
		},
		{
			name: "unknown tts fallback",
			pc: config.ProvidersConfig{
				STT:          config.ProviderEntry{Name: "mock"},
				TTS:          config.ProviderEntry{Name: "mock"},
				TTSFallbacks: []config.ProviderEntry{{Name: "nope"}},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := buildProviders(&config.Config{Providers: tt.pc}, mockRegistry())
			if !errors.Is(err, config.ErrProviderNotRegistered) {
				t.Errorf("err = %v, want ErrProviderNotRegistered", err)
			}
		})
	}
}

func TestPrintEntries(t *testing.T) {
	t.Parallel()

	at := time.Date(2026, 5, 1, 7, 0, 0, 0, time.Local)
	var buf bytes.Buffer
	err := printEntries(&buf, []activity.Entry{
		{At: at, Event: activity.EventCry, State: "awake", Details: "1 event(s)"},
	})
	if err != nil {
		t.Fatalf("printEntries() returned error: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"EVENT", "Cry_Detected", "2026-05-01 07:00:00", "1 event(s)"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestValidateCommand(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := `
providers:
  stt:
    name: whisper
    base_url: http://localhost:9000
  tts:
    name: elevenlabs
camera:
  snapshot_url: http://camera.local/snapshot.jpg
`
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"validate", "--config", path, "--env-file", filepath.Join(dir, "missing.env")})
	t.Cleanup(func() { rootCmd.SetArgs(nil); rootCmd.SetOut(nil) })

	// An explicitly named env file that does not exist is an error.
	if err := rootCmd.Execute(); err == nil {
		t.Fatal("expected error for missing --env-file")
	}

	envPath := filepath.Join(dir, "test.env")
	if err := os.WriteFile(envPath, []byte("NUBAGUARD_VALIDATE_TEST=1\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("NUBAGUARD_VALIDATE_TEST", "")
	out.Reset()
	rootCmd.SetArgs([]string{"validate", "--config", path, "--env-file", envPath})
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("validate returned error: %v", err)
	}
	got := out.String()
	for _, want := range []string{path + ": ok", "whisper", "elevenlabs", "built in"} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q:\n%s", want, got)
		}
	}
}
