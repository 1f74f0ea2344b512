package converse

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/elaichix/NubaGuard-AI/internal/phrase"
	"github.com/elaichix/NubaGuard-AI/internal/resilience"
	"github.com/elaichix/NubaGuard-AI/pkg/provider/llm"
	llmmock "github.com/elaichix/NubaGuard-AI/pkg/provider/llm/mock"
	"github.com/elaichix/NubaGuard-AI/pkg/types"
)

func newResponder(model llm.Provider, opts ...Option) *Responder {
	return New(model, phrase.NewPicker(phrase.Default()), opts...)
}

func TestBuildSystemPrompt(t *testing.T) {
	got := BuildSystemPrompt(DefaultSystemPrompt, types.ContextHint{
		State:   types.Awake,
		Objects: []string{"teddy bear", "bottle"},
	})
	if !strings.Contains(got, "Current Nuba's state is AWAKE.") {
		t.Errorf("state not injected: %q", got)
	}
	if !strings.Contains(got, "objects nearby: teddy bear, bottle.") {
		t.Errorf("objects not injected: %q", got)
	}

	empty := BuildSystemPrompt("{state}/{objects}", types.ContextHint{})
	if empty != "SLEEPING/nothing in particular" {
		t.Errorf("empty hint = %q", empty)
	}
}

func TestDetectLang(t *testing.T) {
	tests := []struct {
		text string
		want string
	}{
		{"Coo! Hello Nuba!", "en"},
		{"হ্যাঁ নূবা", "bn"},
		{"", "en"},
		{"Hi নূবা মা", "bn"},
	}
	for _, tt := range tests {
		if got := DetectLang(tt.text); got != tt.want {
			t.Errorf("DetectLang(%q) = %q, want %q", tt.text, got, tt.want)
		}
	}
}

func TestRespond_ModelReply(t *testing.T) {
	model := &llmmock.Provider{Response: &llm.CompletionResponse{Content: "  Boop! Hi Nuba!  "}}
	r := newResponder(model)

	rep, err := r.Respond(context.Background(), "ba ba", types.ContextHint{State: types.Awake, Objects: []string{"ball"}})
	if err != nil {
		t.Fatalf("Respond: %v", err)
	}
	if rep.Source != SourceModel || rep.Utterance.Text != "Boop! Hi Nuba!" || rep.Utterance.Lang != "en" {
		t.Errorf("reply = %+v", rep)
	}

	calls := model.Calls()
	if len(calls) != 1 {
		t.Fatalf("model called %d times", len(calls))
	}
	req := calls[0]
	if !strings.Contains(req.SystemPrompt, "ball") {
		t.Errorf("system prompt lacks objects: %q", req.SystemPrompt)
	}
	if n := len(req.Messages); n != 1 || req.Messages[0].Content != "ba ba" {
		t.Errorf("messages = %+v", req.Messages)
	}
}

func TestRespond_Fallbacks(t *testing.T) {
	openErr := fmt.Errorf("%w: %w", resilience.ErrAllFailed, resilience.ErrCircuitOpen)
	canned := phrase.Default().Canned

	tests := []struct {
		name       string
		model      *llmmock.Provider
		prompt     string
		wantText   string
		wantSource Source
		wantErr    bool
	}{
		{
			name:       "failure with keyword",
			model:      &llmmock.Provider{Err: errors.New("503")},
			prompt:     "mama",
			wantText:   "Mama loves you very much, Nuba!",
			wantSource: SourceKeyword,
			wantErr:    true,
		},
		{
			name:       "failure without keyword",
			model:      &llmmock.Provider{Err: errors.New("503")},
			prompt:     "gaga",
			wantText:   canned.Failed.Text,
			wantSource: SourceCanned,
			wantErr:    true,
		},
		{
			name:       "circuit open",
			model:      &llmmock.Provider{Err: openErr},
			prompt:     "gaga",
			wantText:   canned.Resting.Text,
			wantSource: SourceCanned,
			wantErr:    true,
		},
		{
			name:       "empty reply",
			model:      &llmmock.Provider{},
			prompt:     "gaga",
			wantText:   canned.Empty.Text,
			wantSource: SourceCanned,
		},
		{
			name:       "empty reply with keyword",
			model:      &llmmock.Provider{},
			prompt:     "I love it",
			wantText:   "I love you too, Nuba!",
			wantSource: SourceKeyword,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rep, err := newResponder(tt.model).Respond(context.Background(), tt.prompt, types.ContextHint{})
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if rep.Utterance.Text != tt.wantText || rep.Source != tt.wantSource {
				t.Errorf("reply = %+v, want %q from %s", rep, tt.wantText, tt.wantSource)
			}
		})
	}
}

func TestRespond_EmptyPrompt(t *testing.T) {
	model := &llmmock.Provider{}
	_, err := newResponder(model).Respond(context.Background(), "  ", types.ContextHint{})
	if !errors.Is(err, ErrEmptyPrompt) {
		t.Fatalf("err = %v, want ErrEmptyPrompt", err)
	}
	if len(model.Calls()) != 0 {
		t.Error("model called for an empty prompt")
	}
}

func TestRespond_Timeout(t *testing.T) {
	model := &llmmock.Provider{Delay: time.Second}
	r := newResponder(model, WithTimeout(10*time.Millisecond))

	rep, err := r.Respond(context.Background(), "gaga", types.ContextHint{})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want DeadlineExceeded", err)
	}
	if rep.Utterance.Empty() {
		t.Error("timed-out call produced no fallback")
	}
}

func TestRespond_CallerCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	rep, err := newResponder(&llmmock.Provider{Delay: time.Second}).Respond(ctx, "gaga", types.ContextHint{})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want Canceled", err)
	}
	if !rep.Utterance.Empty() {
		t.Errorf("cancelled call produced %+v", rep)
	}
}

func TestRespond_HistoryIsBounded(t *testing.T) {
	model := &llmmock.Provider{Response: &llm.CompletionResponse{Content: "Coo!"}}
	r := newResponder(model, WithHistory(2))

	for _, p := range []string{"one", "two", "three"} {
		if _, err := r.Respond(context.Background(), p, types.ContextHint{}); err != nil {
			t.Fatalf("Respond(%q): %v", p, err)
		}
	}
	calls := model.Calls()
	last := calls[len(calls)-1].Messages
	if len(last) != 3 {
		t.Fatalf("last request carried %d messages, want 2 history + 1", len(last))
	}
	if last[0].Content != "two" || last[1].Content != "Coo!" || last[2].Content != "three" {
		t.Errorf("messages = %+v", last)
	}

	r.Forget()
	_, _ = r.Respond(context.Background(), "four", types.ContextHint{})
	calls = model.Calls()
	if n := len(calls[len(calls)-1].Messages); n != 1 {
		t.Errorf("after Forget request carried %d messages", n)
	}
}

func TestConverse_ReturnsUtterance(t *testing.T) {
	model := &llmmock.Provider{Response: &llm.CompletionResponse{Content: "হ্যাঁ নূবা!"}}
	u, err := newResponder(model).Converse(context.Background(), "মা", types.ContextHint{})
	if err != nil {
		t.Fatalf("Converse: %v", err)
	}
	if u.Lang != "bn" {
		t.Errorf("Lang = %q, want bn", u.Lang)
	}
}

func TestRespond_NoModel(t *testing.T) {
	r := New(nil, phrase.NewPicker(phrase.Default()))

	rep, err := r.Respond(context.Background(), "I love you", types.ContextHint{})
	if !errors.Is(err, ErrNoModel) {
		t.Errorf("err = %v, want ErrNoModel", err)
	}
	if rep.Source != SourceKeyword {
		t.Errorf("source = %q, want keyword", rep.Source)
	}

	rep, _ = r.Respond(context.Background(), "good morning", types.ContextHint{})
	if rep.Utterance != phrase.Default().Canned.Resting {
		t.Errorf("reply = %+v, want the resting line", rep.Utterance)
	}
}
