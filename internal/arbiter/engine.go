// Package arbiter decides, tick by tick, what NubaGuard says or does.
//
// The [Engine] fuses the latest motion sample, the faces in view, pending cry
// events and the newest transcript into candidate actions, keeps the one
// with the highest priority, fires its cooldown gate and hands it to the
// output collaborators on a goroutine. Tick never blocks on output and never
// returns a collaborator's error.
//
// All engine state is owned by the goroutine calling Tick. Only
// [Engine.CurrentState] and [Engine.Wait] may be called from elsewhere.
package arbiter

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/elaichix/NubaGuard-AI/internal/activity"
	"github.com/elaichix/NubaGuard-AI/internal/gate"
	"github.com/elaichix/NubaGuard-AI/internal/mailbox"
	"github.com/elaichix/NubaGuard-AI/internal/observe"
	"github.com/elaichix/NubaGuard-AI/internal/presence"
	"github.com/elaichix/NubaGuard-AI/pkg/types"
)

// Speaker voices utterances and plays the alert chime. Both calls may block
// on network or audio I/O.
type Speaker interface {
	Speak(ctx context.Context, id string, u types.Utterance, priority int) error
	Chime(ctx context.Context, id string, priority int) error
}

// Conversation produces a reply to transcribed speech. A reply may be
// returned together with an error describing a degraded path.
type Conversation interface {
	Converse(ctx context.Context, prompt string, hint types.ContextHint) (types.Utterance, error)
}

// Phrases supplies the fixed lines.
type Phrases interface {
	Play() types.Utterance
	Greeting(identity string) (types.Utterance, bool)
	Cry() types.Utterance
	Goodnight() types.Utterance
}

// forgetter is implemented by conversations that keep history.
type forgetter interface{ Forget() }

// Cooldowns are the minimum intervals between actions of each gated class.
type Cooldowns struct {
	Cry          time.Duration
	Identity     time.Duration
	Idle         time.Duration
	Conversation time.Duration
}

// DefaultCooldowns returns the stock intervals.
func DefaultCooldowns() Cooldowns {
	return Cooldowns{
		Cry:          30 * time.Second,
		Identity:     15 * time.Second,
		Idle:         10 * time.Second,
		Conversation: 5 * time.Second,
	}
}

// Deps are the engine's collaborators. Sink may be nil.
type Deps struct {
	Speaker      Speaker
	Conversation Conversation
	Phrases      Phrases
	Transcripts  *mailbox.Mailbox[types.Transcript]
	Cries        *mailbox.Queue[types.CryEvent]
	Sink         activity.Sink
}

// Option configures an [Engine].
type Option func(*Engine)

// WithContext sets the context output goroutines run under. Cancelling it
// aborts in-flight output calls.
func WithContext(ctx context.Context) Option {
	return func(e *Engine) { e.ctx = ctx }
}

// WithMetrics overrides the metrics sink.
func WithMetrics(m *observe.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithIDs replaces the action ID generator.
func WithIDs(next func() string) Option {
	return func(e *Engine) { e.newID = next }
}

// Engine is the arbitration loop state.
type Engine struct {
	deps    Deps
	ctx     context.Context
	metrics *observe.Metrics
	newID   func() string

	presence     *presence.Machine
	cryGate      *gate.Gate
	identityGate *gate.Gate
	idleGate     *gate.Gate
	convGate     *gate.Gate

	greetedOnWake bool
	saidGoodnight bool
	lastGreeted   string
	objects       []string

	state    atomic.Int32
	inflight sync.WaitGroup
}

// New returns an Engine in the SLEEPING state with every gate never fired
// and no goodnight owed.
func New(cooldowns Cooldowns, pcfg presence.Config, deps Deps, opts ...Option) (*Engine, error) {
	switch {
	case deps.Speaker == nil:
		return nil, fmt.Errorf("arbiter: speaker is required")
	case deps.Conversation == nil:
		return nil, fmt.Errorf("arbiter: conversation is required")
	case deps.Phrases == nil:
		return nil, fmt.Errorf("arbiter: phrases are required")
	case deps.Transcripts == nil || deps.Cries == nil:
		return nil, fmt.Errorf("arbiter: transcript mailbox and cry queue are required")
	}
	if deps.Sink == nil {
		deps.Sink = activity.Discard{}
	}

	e := &Engine{
		deps:         deps,
		ctx:          context.Background(),
		metrics:      observe.DefaultMetrics(),
		newID:        uuid.NewString,
		presence:     presence.New(pcfg),
		cryGate:      gate.New(string(KindCry), cooldowns.Cry),
		identityGate: gate.New(string(KindIdentity), cooldowns.Identity),
		idleGate:     gate.New(string(KindIdle), cooldowns.Idle),
		convGate:     gate.New(string(KindRespond), cooldowns.Conversation),

		// Starting asleep is not falling asleep.
		saidGoodnight: true,
	}
	for _, o := range opts {
		o(e)
	}
	e.state.Store(int32(types.Sleeping))
	return e, nil
}

// CurrentState returns the presence state. It is safe to call from any
// goroutine.
func (e *Engine) CurrentState() types.PresenceState {
	return types.PresenceState(e.state.Load())
}

// SetCooldowns replaces the gate intervals. Last firing times are kept.
func (e *Engine) SetCooldowns(c Cooldowns) {
	e.cryGate.SetInterval(c.Cry)
	e.identityGate.SetInterval(c.Identity)
	e.idleGate.SetInterval(c.Idle)
	e.convGate.SetInterval(c.Conversation)
}

// SetPresence replaces the presence thresholds.
func (e *Engine) SetPresence(cfg presence.Config) { e.presence.SetConfig(cfg) }

// SetScene records the labels of objects currently in view. They are passed
// to the conversation as context.
func (e *Engine) SetScene(objects []string) {
	e.objects = append(e.objects[:0], objects...)
}

// Wait blocks until every output goroutine started so far has finished.
func (e *Engine) Wait() { e.inflight.Wait() }

// Tick runs one arbitration round at now and returns the dispatched actions:
// at most one spoken action plus the chime on a wake.
func (e *Engine) Tick(now time.Time, motion types.MotionSample, faces []types.FaceEvent) []Action {
	start := time.Now()
	defer func() { e.metrics.TickDuration.Record(e.ctx, time.Since(start).Seconds()) }()

	if motion.At.IsZero() {
		motion.At = now
	}
	tr := e.presence.Observe(motion)
	if tr.Changed {
		e.applyTransition(now, tr)
	}
	state := e.presence.State()

	var cands []Action
	if c, ok := e.identityCandidate(now, faces); ok {
		cands = append(cands, c)
	}

	if cries := e.deps.Cries.Drain(); len(cries) > 0 {
		e.record(activity.Entry{At: now, Event: activity.EventCry, Details: fmt.Sprintf("%d event(s)", len(cries))})
		if e.cryGate.Eligible(now) {
			cands = append(cands, e.candidate(KindCry, now))
		} else {
			e.metrics.RecordSuppressed(e.ctx, string(KindCry), "cooldown")
		}
	}

	switch {
	case state == types.Awake && !e.greetedOnWake:
		cands = append(cands, e.candidate(KindWake, now))
	case state == types.Awake && e.idleGate.Eligible(now):
		cands = append(cands, e.candidate(KindIdle, now))
	}

	if t, ok := e.deps.Transcripts.TakeIfPresent(); ok {
		if text := strings.TrimSpace(t.Text); text != "" {
			e.record(activity.Entry{At: now, Event: activity.EventHeard, Details: text})
			if e.convGate.Eligible(now) {
				c := e.candidate(KindRespond, now)
				c.Prompt = text
				cands = append(cands, c)
			} else {
				e.metrics.RecordSuppressed(e.ctx, string(KindRespond), "cooldown")
			}
		}
	}

	// Pending until it wins, so a cry on the falling-asleep tick only
	// delays it.
	if state == types.Sleeping && !e.saidGoodnight {
		cands = append(cands, e.candidate(KindGoodnight, now))
	}

	var out []Action
	if tr.Woke() {
		chime := e.candidate(KindChime, now)
		chime.ID = e.newID()
		out = append(out, chime)
	}
	if winner, ok := e.choose(cands); ok {
		e.commit(now, &winner)
		out = append(out, winner)
	}

	for _, a := range out {
		e.dispatch(a, state)
	}
	return out
}

func (e *Engine) applyTransition(now time.Time, tr presence.Transition) {
	e.state.Store(int32(tr.To))
	e.greetedOnWake = false
	e.saidGoodnight = false
	e.metrics.RecordTransition(e.ctx, tr.From.String(), tr.To.String())

	event := activity.EventWoke
	if tr.FellAsleep() {
		event = activity.EventAsleep
		if f, ok := e.deps.Conversation.(forgetter); ok {
			f.Forget()
		}
	}
	e.record(activity.Entry{At: now, Event: event, Details: tr.From.String() + " -> " + tr.To.String()})
	slog.Info("arbiter: presence changed", "from", tr.From.String(), "to", tr.To.String())
}

// identityCandidate returns a greeting for the first known face that is
// either new or whose gate has reopened. Unknown faces and identities
// without greetings are dropped.
func (e *Engine) identityCandidate(now time.Time, faces []types.FaceEvent) (Action, bool) {
	for _, f := range faces {
		if !f.Known() {
			continue
		}
		id := strings.ToLower(strings.TrimSpace(f.Identity))
		if id == "" || (id == e.lastGreeted && !e.identityGate.Eligible(now)) {
			continue
		}
		u, ok := e.deps.Phrases.Greeting(id)
		if !ok {
			continue
		}
		c := e.candidate(KindIdentity, now)
		c.Identity = id
		c.Utterance = u
		return c, true
	}
	return Action{}, false
}

func (e *Engine) candidate(k Kind, now time.Time) Action {
	return Action{Kind: k, Priority: k.Priority(), Spoken: k.Spoken(), At: now}
}

// choose returns the highest-priority candidate and counts the rest as
// outranked.
func (e *Engine) choose(cands []Action) (Action, bool) {
	if len(cands) == 0 {
		return Action{}, false
	}
	best := 0
	for i := 1; i < len(cands); i++ {
		if cands[i].Priority > cands[best].Priority {
			best = i
		}
	}
	for i, c := range cands {
		if i != best {
			e.metrics.RecordSuppressed(e.ctx, string(c.Kind), "outranked")
		}
	}
	return cands[best], true
}

// commit fires the winner's gate and one-shot flag and fills in its text.
// It runs before any output call is issued.
func (e *Engine) commit(now time.Time, a *Action) {
	a.ID = e.newID()
	switch a.Kind {
	case KindCry:
		e.cryGate.TryFire(now)
		a.Utterance = e.deps.Phrases.Cry()
	case KindGoodnight:
		e.saidGoodnight = true
		a.Utterance = e.deps.Phrases.Goodnight()
	case KindWake:
		e.greetedOnWake = true
		// The wake greeting opens the chatter cadence.
		forceFire(e.idleGate, now)
		a.Utterance = e.deps.Phrases.Play()
	case KindIdentity:
		forceFire(e.identityGate, now)
		e.lastGreeted = a.Identity
	case KindRespond:
		e.convGate.TryFire(now)
	case KindIdle:
		e.idleGate.TryFire(now)
		a.Utterance = e.deps.Phrases.Play()
	}
}

// forceFire records a firing at now whether or not g was eligible.
func forceFire(g *gate.Gate, now time.Time) {
	if !g.TryFire(now) {
		g.Reset()
		g.TryFire(now)
	}
}

// record stamps entry with the current state and writes it. Tick loop only.
func (e *Engine) record(entry activity.Entry) {
	if entry.State == "" {
		entry.State = e.presence.State().String()
	}
	e.write(e.ctx, entry)
}

// write hands entry to the sink and logs a failure. Safe from output
// goroutines.
func (e *Engine) write(ctx context.Context, entry activity.Entry) {
	if err := e.deps.Sink.Record(ctx, entry); err != nil {
		observe.Logger(ctx).Warn("arbiter: activity record failed", "event", entry.Event, "err", err)
	}
}
