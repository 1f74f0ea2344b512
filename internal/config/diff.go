package config

import (
	"maps"
	"reflect"
	"slices"

	"github.com/elaichix/NubaGuard-AI/internal/phrase"
	"github.com/elaichix/NubaGuard-AI/pkg/types"
)

// ConfigDiff describes what changed between two configs.
// Only fields that can be safely hot-reloaded are tracked; everything else
// needs a restart.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	// CooldownsChanged covers idle, recognition, cry and conversation.
	CooldownsChanged bool

	// PresenceChanged covers motion_duration, gap_tolerance and
	// inactivity_timeout.
	PresenceChanged bool

	PhrasesChanged bool
	VoicesChanged  bool

	// RestartRequired lists sections that changed but are only read at
	// startup.
	RestartRequired []string
}

// Changed reports whether anything at all differs.
func (d ConfigDiff) Changed() bool {
	return d.LogLevelChanged || d.CooldownsChanged || d.PresenceChanged ||
		d.PhrasesChanged || d.VoicesChanged || len(d.RestartRequired) > 0
}

// Diff compares old and new configs and returns what changed.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	// Log level
	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}

	om, nm := old.Monitor, new.Monitor
	d.CooldownsChanged = om.IdleInterval != nm.IdleInterval ||
		om.RecognitionCooldown != nm.RecognitionCooldown ||
		om.CryCooldown != nm.CryCooldown ||
		om.ConversationCooldown != nm.ConversationCooldown
	d.PresenceChanged = om.MotionDuration != nm.MotionDuration ||
		om.GapTolerance != nm.GapTolerance ||
		om.InactivityTimeout != nm.InactivityTimeout

	d.PhrasesChanged = !booksEqual(old.Phrases.Book, new.Phrases.Book)
	d.VoicesChanged = !maps.Equal(old.Phrases.Voices, new.Phrases.Voices)

	if old.Server.ListenAddr != new.Server.ListenAddr {
		d.RestartRequired = append(d.RestartRequired, "server.listen_addr")
	}
	if !providersEqual(old.Providers, new.Providers) {
		d.RestartRequired = append(d.RestartRequired, "providers")
	}
	if om.TickInterval != nm.TickInterval || om.ListenDuration != nm.ListenDuration ||
		om.Pacing != nm.Pacing || om.ConversationTimeout != nm.ConversationTimeout ||
		om.SystemPrompt != nm.SystemPrompt {
		d.RestartRequired = append(d.RestartRequired, "monitor")
	}
	if old.Camera != new.Camera {
		d.RestartRequired = append(d.RestartRequired, "camera")
	}
	if !audioEqual(old.Audio, new.Audio) {
		d.RestartRequired = append(d.RestartRequired, "audio")
	}
	if old.Activity != new.Activity {
		d.RestartRequired = append(d.RestartRequired, "activity")
	}

	return d
}

func booksEqual(a, b phrase.Book) bool {
	return slices.Equal(a.Play, b.Play) &&
		maps.EqualFunc(a.Identities, b.Identities, slices.Equal[[]types.Utterance]) &&
		a.Cry == b.Cry &&
		a.Goodnight == b.Goodnight &&
		maps.Equal(a.Keywords, b.Keywords) &&
		a.Canned == b.Canned
}

func providersEqual(a, b ProvidersConfig) bool {
	return entryEqual(a.LLM, b.LLM) &&
		entryEqual(a.STT, b.STT) &&
		entryEqual(a.TTS, b.TTS) &&
		entryEqual(a.Faces, b.Faces) &&
		entryEqual(a.Objects, b.Objects) &&
		slices.EqualFunc(a.LLMFallbacks, b.LLMFallbacks, entryEqual) &&
		slices.EqualFunc(a.TTSFallbacks, b.TTSFallbacks, entryEqual) &&
		a.Breaker.MaxFailures == b.Breaker.MaxFailures &&
		a.Breaker.Cooloff == b.Breaker.Cooloff &&
		a.Breaker.Probes == b.Breaker.Probes
}

func entryEqual(a, b ProviderEntry) bool {
	return a.Name == b.Name && a.APIKey == b.APIKey && a.BaseURL == b.BaseURL &&
		a.Model == b.Model && reflect.DeepEqual(a.Options, b.Options)
}

func audioEqual(a, b AudioConfig) bool {
	return slices.Equal(a.RecordCommand, b.RecordCommand) &&
		slices.Equal(a.PlayCommand, b.PlayCommand) &&
		a.SampleRate == b.SampleRate &&
		a.NoiseFloor == b.NoiseFloor &&
		a.MixerGap == b.MixerGap &&
		a.Cry == b.Cry
}
