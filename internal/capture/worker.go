// Package capture runs the continuously-listening audio worker. Each
// iteration records one segment, checks it for crying, transcribes it and
// hands the results to the decision loop: cry events through an urgent
// queue, transcripts through a latest-wins mailbox.
//
// The worker never blocks on the decision loop and the decision loop never
// waits for the worker.
package capture

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/elaichix/NubaGuard-AI/internal/mailbox"
	"github.com/elaichix/NubaGuard-AI/internal/observe"
	"github.com/elaichix/NubaGuard-AI/internal/sensor"
	"github.com/elaichix/NubaGuard-AI/pkg/audio"
	"github.com/elaichix/NubaGuard-AI/pkg/provider/stt"
	"github.com/elaichix/NubaGuard-AI/pkg/types"
)

const (
	// DefaultPacing separates consecutive iterations.
	DefaultPacing = time.Second

	// DefaultListenDuration is the length of one recorded segment.
	DefaultListenDuration = 3 * time.Second

	// stopMargin is added to the listen duration to bound shutdown.
	stopMargin = 2 * time.Second

	stageCapture    = "capture"
	stageTranscribe = "transcribe"
)

// WithProviderName labels transcription failures in provider metrics.
func WithProviderName(name string) Option {
	return func(w *Worker) {
		if name != "" {
			w.providerName = name
		}
	}
}

// Option configures a Worker.
type Option func(*Worker)

// WithPacing sets the delay between iterations. Non-positive values keep
// the default.
func WithPacing(d time.Duration) Option {
	return func(w *Worker) {
		if d > 0 {
			w.pacing = d
		}
	}
}

// WithListenDuration tells the worker how long one capture lasts so it can
// bound shutdown.
func WithListenDuration(d time.Duration) Option {
	return func(w *Worker) {
		if d > 0 {
			w.listen = d
		}
	}
}

// WithClock overrides the time source used to stamp events.
func WithClock(now func() time.Time) Option {
	return func(w *Worker) { w.now = now }
}

// WithMetrics records iteration, error and cry counts on m.
func WithMetrics(m *observe.Metrics) Option {
	return func(w *Worker) { w.metrics = m }
}

// WithCryClassifier enables cry detection on every captured segment.
func WithCryClassifier(c sensor.CryClassifier) Option {
	return func(w *Worker) { w.cry = c }
}

// Worker is the capture and transcription producer.
type Worker struct {
	rec         audio.Recorder
	transcriber stt.Provider
	cry         sensor.CryClassifier
	transcripts *mailbox.Mailbox[types.Transcript]
	cries       *mailbox.Queue[types.CryEvent]

	pacing       time.Duration
	listen       time.Duration
	now          func() time.Time
	metrics      *observe.Metrics
	providerName string

	started  atomic.Bool
	stopping atomic.Bool
	stopOnce sync.Once
	stopCh   chan struct{}
	done     chan struct{}

	iterations atomic.Uint64
}

// New returns a Worker that records from rec, transcribes with transcriber
// and publishes into transcripts and cries.
func New(rec audio.Recorder, transcriber stt.Provider, transcripts *mailbox.Mailbox[types.Transcript], cries *mailbox.Queue[types.CryEvent], opts ...Option) (*Worker, error) {
	if rec == nil {
		return nil, errors.New("capture: recorder must not be nil")
	}
	if transcriber == nil {
		return nil, errors.New("capture: transcriber must not be nil")
	}
	if transcripts == nil || cries == nil {
		return nil, errors.New("capture: mailbox and cry queue must not be nil")
	}
	w := &Worker{
		rec:          rec,
		transcriber:  transcriber,
		transcripts:  transcripts,
		cries:        cries,
		pacing:       DefaultPacing,
		listen:       DefaultListenDuration,
		now:          time.Now,
		metrics:      observe.DefaultMetrics(),
		providerName: "stt",
		stopCh:       make(chan struct{}),
		done:         make(chan struct{}),
	}
	for _, o := range opts {
		o(w)
	}
	return w, nil
}

// Start launches the worker loop. It returns an error if called twice. The
// loop ends after [Worker.RequestStop] or when ctx is cancelled.
func (w *Worker) Start(ctx context.Context) error {
	if !w.started.CompareAndSwap(false, true) {
		return errors.New("capture: worker already started")
	}
	go w.run(ctx)
	return nil
}

// RequestStop asks the loop to exit at its next check. An in-flight capture
// is allowed to finish. Safe to call more than once.
func (w *Worker) RequestStop() {
	w.stopOnce.Do(func() {
		w.stopping.Store(true)
		close(w.stopCh)
	})
}

// Done is closed when the loop has exited.
func (w *Worker) Done() <-chan struct{} {
	return w.done
}

// Running reports whether the loop has started and not yet exited.
func (w *Worker) Running() bool {
	if !w.started.Load() {
		return false
	}
	select {
	case <-w.done:
		return false
	default:
		return true
	}
}

// Iterations returns the number of completed iterations.
func (w *Worker) Iterations() uint64 {
	return w.iterations.Load()
}

// StopTimeout is the longest a stop request may take to be honoured: one
// full listen window plus a safety margin.
func (w *Worker) StopTimeout() time.Duration {
	return w.listen + stopMargin
}

// AwaitStopped waits up to timeout for the loop to exit and reports whether
// it did. A worker that was never started counts as stopped.
func (w *Worker) AwaitStopped(timeout time.Duration) bool {
	if !w.started.Load() {
		return true
	}
	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case <-w.done:
		return true
	case <-t.C:
		slog.Warn("capture: worker did not stop in time", "timeout", timeout)
		return false
	}
}

func (w *Worker) run(ctx context.Context) {
	defer close(w.done)
	slog.Info("capture: worker started", "pacing", w.pacing, "listen", w.listen)
	defer slog.Info("capture: worker stopped", "iterations", w.iterations.Load())

	for {
		if w.stopping.Load() || ctx.Err() != nil {
			return
		}
		w.iterate(ctx)
		w.iterations.Add(1)

		select {
		case <-time.After(w.pacing):
		case <-w.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (w *Worker) iterate(ctx context.Context) {
	start := time.Now()
	defer func() {
		w.metrics.CaptureIterations.Add(ctx, 1)
		w.metrics.CaptureDuration.Record(ctx, time.Since(start).Seconds())
	}()

	seg, err := w.rec.Capture(ctx)
	if err != nil {
		w.handleError(ctx, stageCapture, err)
		return
	}

	if w.cry != nil && w.cry.IsCry(seg) {
		at := seg.EndedAt
		if at.IsZero() {
			at = w.now()
		}
		w.cries.Push(types.CryEvent{At: at})
		w.metrics.CryEvents.Add(ctx, 1)
		slog.Info("capture: cry detected", "at", at)
	}

	sttStart := time.Now()
	spanCtx, endSpan := observe.ProviderSpan(ctx, "stt.transcribe", w.providerName)
	tr, err := w.transcriber.Transcribe(spanCtx, seg)
	if errors.Is(err, stt.ErrUnintelligible) {
		endSpan(nil)
	} else {
		endSpan(err)
	}
	w.metrics.STTDuration.Record(ctx, time.Since(sttStart).Seconds())
	if err != nil {
		if k := Classify(err); k != Timeout && k != Unintelligible {
			err = fmt.Errorf("%w: %w", ErrService, err)
		}
		w.handleError(ctx, stageTranscribe, err)
		return
	}

	tr.Text = strings.TrimSpace(tr.Text)
	if tr.Text == "" {
		w.handleError(ctx, stageTranscribe, stt.ErrUnintelligible)
		return
	}
	if tr.At.IsZero() {
		tr.At = w.now()
	}
	w.transcripts.Publish(tr)
	slog.Debug("capture: transcript published", "text", tr.Text, "lang", tr.Lang)
}

func (w *Worker) handleError(ctx context.Context, stage string, err error) {
	if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
		return
	}
	kind := Classify(err)
	w.metrics.RecordCaptureError(ctx, kind.String())
	if kind == Service {
		w.metrics.RecordProviderError(ctx, w.providerName, "stt")
	}

	level := slog.LevelDebug
	if kind == Service || kind == Other {
		level = slog.LevelWarn
	}
	slog.Log(ctx, level, "capture: iteration failed", "stage", stage, "kind", kind.String(), "err", err)
}
