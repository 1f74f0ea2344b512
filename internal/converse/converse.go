// Package converse turns a transcribed utterance into a short spoken reply.
//
// A [Responder] asks a language model first. When the model fails, is
// unreachable, or answers with nothing, it falls back to a keyword reply
// from the phrase book and then to a canned line, so the subject always
// hears something.
package converse

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/elaichix/NubaGuard-AI/internal/observe"
	"github.com/elaichix/NubaGuard-AI/internal/phrase"
	"github.com/elaichix/NubaGuard-AI/internal/resilience"
	"github.com/elaichix/NubaGuard-AI/pkg/provider/llm"
	"github.com/elaichix/NubaGuard-AI/pkg/types"
)

const (
	// DefaultTimeout bounds one model call.
	DefaultTimeout = 8 * time.Second

	// DefaultHistory is how many past messages are replayed to the model.
	DefaultHistory = 6

	defaultMaxTokens   = 32
	defaultTemperature = 0.8
)

var (
	// ErrEmptyPrompt is returned when there is nothing to reply to.
	ErrEmptyPrompt = errors.New("converse: empty prompt")

	// ErrNoModel is reported when the Responder was built without a model.
	// Replies then come from the phrase book alone.
	ErrNoModel = errors.New("converse: no model configured")
)

// Source says where a reply came from.
type Source string

const (
	// SourceModel is a reply generated by the language model.
	SourceModel   Source = "model"
	SourceKeyword Source = "keyword"
	SourceCanned  Source = "canned"
)

// Option configures a [Responder].
type Option func(*Responder)

// WithTimeout bounds each model call. Zero disables the bound.
func WithTimeout(d time.Duration) Option {
	return func(r *Responder) { r.timeout = d }
}

// WithSystemPrompt replaces [DefaultSystemPrompt].
func WithSystemPrompt(tmpl string) Option {
	return func(r *Responder) { r.systemPrompt = tmpl }
}

// WithHistory sets how many past messages are replayed. Zero disables
// history.
func WithHistory(n int) Option {
	return func(r *Responder) { r.historyLen = n }
}

// WithMetrics overrides the metrics sink.
func WithMetrics(m *observe.Metrics) Option {
	return func(r *Responder) { r.metrics = m }
}

// WithProviderName sets the provider label used in metrics. Default "llm".
func WithProviderName(name string) Option {
	return func(r *Responder) { r.providerName = name }
}

// Responder produces conversational replies. It is safe for concurrent use.
type Responder struct {
	model        llm.Provider
	phrases      *phrase.Picker
	timeout      time.Duration
	systemPrompt string
	historyLen   int
	metrics      *observe.Metrics
	providerName string

	mu      sync.Mutex
	history []types.Message
}

// New returns a Responder backed by model with fallbacks from phrases.
func New(model llm.Provider, phrases *phrase.Picker, opts ...Option) *Responder {
	r := &Responder{
		model:        model,
		phrases:      phrases,
		timeout:      DefaultTimeout,
		systemPrompt: DefaultSystemPrompt,
		historyLen:   DefaultHistory,
		metrics:      observe.DefaultMetrics(),
		providerName: "llm",
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Reply is a spoken answer and where it came from.
type Reply struct {
	Utterance types.Utterance
	Source    Source
}

// Converse answers prompt. It always returns a speakable reply unless prompt
// is blank or ctx is done. A non-nil error alongside a reply reports why the
// model was not used.
func (r *Responder) Converse(ctx context.Context, prompt string, hint types.ContextHint) (types.Utterance, error) {
	rep, err := r.Respond(ctx, prompt, hint)
	return rep.Utterance, err
}

// Respond is [Responder.Converse] with the reply's source.
func (r *Responder) Respond(ctx context.Context, prompt string, hint types.ContextHint) (Reply, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return Reply{}, ErrEmptyPrompt
	}

	text, err := r.ask(ctx, prompt, hint)
	if ctx.Err() != nil {
		return Reply{}, ctx.Err()
	}
	if err == nil && text != "" {
		return Reply{Utterance: types.Utterance{Text: text, Lang: DetectLang(text)}, Source: SourceModel}, nil
	}

	if u, ok := r.phrases.Keyword(prompt); ok {
		return Reply{Utterance: u, Source: SourceKeyword}, err
	}

	canned := r.phrases.Canned()
	switch {
	case err == nil:
		return Reply{Utterance: canned.Empty, Source: SourceCanned}, nil
	case errors.Is(err, resilience.ErrCircuitOpen), errors.Is(err, ErrNoModel):
		return Reply{Utterance: canned.Resting, Source: SourceCanned}, err
	default:
		return Reply{Utterance: canned.Failed, Source: SourceCanned}, err
	}
}

func (r *Responder) ask(ctx context.Context, prompt string, hint types.ContextHint) (string, error) {
	if r.model == nil {
		return "", ErrNoModel
	}
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	user := types.Message{Role: "user", Content: prompt}
	req := llm.CompletionRequest{
		SystemPrompt: BuildSystemPrompt(r.systemPrompt, hint),
		Messages:     append(r.recent(), user),
		Temperature:  defaultTemperature,
		MaxTokens:    defaultMaxTokens,
	}

	start := time.Now()
	spanCtx, endSpan := observe.ProviderSpan(ctx, "llm.complete", r.providerName)
	resp, err := r.model.Complete(spanCtx, req)
	endSpan(err)
	r.metrics.LLMDuration.Record(ctx, time.Since(start).Seconds())

	if err != nil {
		r.metrics.RecordProviderRequest(ctx, r.providerName, "llm", "error")
		r.metrics.RecordProviderError(ctx, r.providerName, "llm")
		observe.Logger(ctx).Warn("converse: model call failed", "err", err)
		return "", fmt.Errorf("converse: %w", err)
	}
	r.metrics.RecordProviderRequest(ctx, r.providerName, "llm", "ok")

	text := strings.TrimSpace(resp.Content)
	if text == "" {
		slog.Debug("converse: model returned an empty reply")
		return "", nil
	}
	r.remember(user, types.Message{Role: "assistant", Content: text})
	return text, nil
}

func (r *Responder) recent() []types.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]types.Message(nil), r.history...)
}

func (r *Responder) remember(msgs ...types.Message) {
	if r.historyLen <= 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.history = append(r.history, msgs...)
	if over := len(r.history) - r.historyLen; over > 0 {
		r.history = append(r.history[:0:0], r.history[over:]...)
	}
}

// Forget clears the conversation history. The subject falling asleep ends a
// conversation.
func (r *Responder) Forget() {
	r.mu.Lock()
	r.history = nil
	r.mu.Unlock()
}
