package arbiter

import (
	"time"

	"github.com/elaichix/NubaGuard-AI/pkg/types"
)

// Kind names an action class.
type Kind string

// Action kinds.
const (
	KindCry       Kind = "cry_alert"
	KindGoodnight Kind = "goodnight"
	KindWake      Kind = "wake_greeting"
	KindIdentity  Kind = "identity_greeting"
	KindRespond   Kind = "respond_to_speech"
	KindIdle      Kind = "idle_chatter"
	KindChime     Kind = "alert_chime"
)

// Priority orders competing candidates; higher wins. It is also the mixer
// priority the action's audio is played at, so the chime, which always
// accompanies a wake, is never cut off by the greeting that follows it.
func (k Kind) Priority() int {
	switch k {
	case KindChime:
		return 7
	case KindCry:
		return 6
	case KindGoodnight:
		return 5
	case KindWake:
		return 4
	case KindIdentity:
		return 3
	case KindRespond:
		return 2
	case KindIdle:
		return 1
	default:
		return 0
	}
}

// Spoken reports whether the action produces synthesized speech. At most one
// spoken action is dispatched per tick.
func (k Kind) Spoken() bool {
	return k != KindChime && k.Priority() > 0
}

// Action is a dispatched decision.
type Action struct {
	// ID is unique per action and tags the audio clip and activity entries
	// it produces.
	ID string

	Kind     Kind
	Priority int
	Spoken   bool

	// Utterance is what will be said. It is empty for [KindRespond], whose
	// reply is generated after dispatch, and for [KindChime].
	Utterance types.Utterance

	// Identity is the greeted person for [KindIdentity].
	Identity string

	// Prompt is the transcribed speech being answered for [KindRespond].
	Prompt string

	At time.Time
}
