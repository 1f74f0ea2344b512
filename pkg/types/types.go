// Package types defines the shared value types used across NubaGuard packages.
//
// Sensor samples, transcripts and utterances cross package boundaries
// (sensors, the capture worker, the arbitration engine, providers), so they
// live here to avoid circular imports. Each package still owns its own
// domain-specific types.
package types

import (
	"strings"
	"time"
)

// UnknownIdentity is the identity reported for a detected face that does not
// match any enrolled person.
const UnknownIdentity = "Unknown"

// PresenceState is the coarse status of the monitored subject.
type PresenceState int

const (
	// Sleeping is the initial state: no sustained motion has been observed.
	Sleeping PresenceState = iota

	// Awake means sustained significant motion was observed recently.
	Awake
)

// String returns the lower-case name used in logs and the activity record.
func (s PresenceState) String() string {
	switch s {
	case Sleeping:
		return "sleeping"
	case Awake:
		return "awake"
	default:
		return "unknown"
	}
}

// MotionSample is the motion detector's verdict for one processed frame.
type MotionSample struct {
	// At is when the frame was captured.
	At time.Time

	// Significant reports whether the frame differs enough from the previous
	// one to count as subject movement.
	Significant bool
}

// FaceEvent is a single face observed in a frame.
type FaceEvent struct {
	At time.Time

	// Identity is the enrolled person's name, or [UnknownIdentity].
	Identity string
}

// Known reports whether the event carries a usable, enrolled identity.
func (e FaceEvent) Known() bool {
	return e.Identity != "" && e.Identity != UnknownIdentity
}

// CryEvent marks an audio segment classified as distress.
type CryEvent struct {
	At time.Time
}

// Transcript is a speech-to-text result for one captured audio segment.
type Transcript struct {
	// At is when the underlying audio segment finished recording.
	At time.Time

	// Text is the recognised speech.
	Text string

	// Lang is the BCP-47 language hint reported by the transcriber, if any.
	Lang string

	// Confidence is the transcriber's confidence in [0, 1], or 0 if not
	// reported.
	Confidence float64
}

// Utterance is a phrase to be spoken together with its speech language.
type Utterance struct {
	Text string `json:"text" yaml:"text"`

	// Lang is a short language code such as "en" or "bn".
	Lang string `json:"lang" yaml:"lang"`
}

// Empty reports whether the utterance has nothing to say.
func (u Utterance) Empty() bool {
	return strings.TrimSpace(u.Text) == ""
}

// Detection is a labelled object found in a frame by an object detector.
type Detection struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

// Message is a single turn in a conversation with a language model.
type Message struct {
	// Role is one of "system", "user" or "assistant".
	Role string

	Content string
}

// ModelCapabilities describes the static limits of a language model.
type ModelCapabilities struct {
	ContextWindow     int
	MaxOutputTokens   int
	SupportsStreaming bool
}

// VoiceProfile selects a synthesis voice.
type VoiceProfile struct {
	// ID is the provider-specific voice identifier.
	ID string `yaml:"id"`

	// Name is a human-readable label.
	Name string `yaml:"name"`

	// Provider names the TTS backend the voice belongs to.
	Provider string `yaml:"provider"`

	// SpeedFactor scales speaking rate. 1.0 is normal; 0 means unset.
	SpeedFactor float64 `yaml:"speed_factor"`
}

// ContextHint describes the scene around the subject when it spoke, so a
// conversational reply can refer to it.
type ContextHint struct {
	State PresenceState

	// Objects are the labels of objects detected nearby, deduplicated.
	Objects []string
}
