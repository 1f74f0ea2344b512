package arbiter

import (
	"context"

	"github.com/elaichix/NubaGuard-AI/internal/activity"
	"github.com/elaichix/NubaGuard-AI/internal/observe"
	"github.com/elaichix/NubaGuard-AI/pkg/types"
)

// dispatch issues a's output call on a goroutine and returns immediately.
func (e *Engine) dispatch(a Action, state types.PresenceState) {
	e.metrics.RecordAction(e.ctx, string(a.Kind))
	hint := types.ContextHint{State: state, Objects: append([]string(nil), e.objects...)}

	switch a.Kind {
	case KindChime:
		e.record(activity.Entry{ID: a.ID, At: a.At, Event: activity.EventAlert, Kind: string(a.Kind)})
	case KindRespond:
		// Recorded once the reply is known.
	default:
		e.record(activity.Entry{ID: a.ID, At: a.At, Event: activity.EventSpoke, Kind: string(a.Kind), Details: a.Utterance.Text})
	}

	e.inflight.Add(1)
	go func() {
		defer e.inflight.Done()
		e.metrics.SpeechInFlight.Add(e.ctx, 1)
		defer e.metrics.SpeechInFlight.Add(e.ctx, -1)

		ctx := e.ctx
		log := observe.Logger(ctx).With("action", string(a.Kind), "id", a.ID)

		var err error
		switch a.Kind {
		case KindChime:
			err = e.deps.Speaker.Chime(ctx, a.ID, a.Priority)
		case KindRespond:
			err = e.respond(ctx, a, hint)
		default:
			err = e.deps.Speaker.Speak(ctx, a.ID, a.Utterance, a.Priority)
		}
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Warn("arbiter: output call failed", "err", err)
			e.write(ctx, activity.Entry{
				ID: a.ID, At: a.At, Event: activity.EventError, State: state.String(),
				Kind: string(a.Kind), Details: err.Error(),
			})
		}
	}()
}

func (e *Engine) respond(ctx context.Context, a Action, hint types.ContextHint) error {
	reply, convErr := e.deps.Conversation.Converse(ctx, a.Prompt, hint)
	if convErr != nil {
		observe.Logger(ctx).Warn("arbiter: conversation degraded", "id", a.ID, "err", convErr)
	}
	if reply.Empty() {
		return convErr
	}
	e.write(ctx, activity.Entry{
		ID: a.ID, At: a.At, Event: activity.EventSpoke, State: hint.State.String(),
		Kind: string(a.Kind), Details: reply.Text,
	})
	return e.deps.Speaker.Speak(ctx, a.ID, reply, a.Priority)
}
