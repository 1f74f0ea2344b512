// Package app wires the NubaGuard subsystems into a running monitor.
//
// The App struct owns the full lifecycle: New creates and connects all
// subsystems, Run executes the sensing, capture and arbitration loops, and
// Shutdown tears everything down in order.
//
// For testing, inject doubles via functional options (WithMixer,
// WithRecorder, WithCamera, ...). When an option is not provided, New creates
// the real implementation from the config.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/elaichix/NubaGuard-AI/internal/activity"
	"github.com/elaichix/NubaGuard-AI/internal/arbiter"
	"github.com/elaichix/NubaGuard-AI/internal/capture"
	"github.com/elaichix/NubaGuard-AI/internal/config"
	"github.com/elaichix/NubaGuard-AI/internal/converse"
	"github.com/elaichix/NubaGuard-AI/internal/health"
	"github.com/elaichix/NubaGuard-AI/internal/mailbox"
	"github.com/elaichix/NubaGuard-AI/internal/notify"
	"github.com/elaichix/NubaGuard-AI/internal/observe"
	"github.com/elaichix/NubaGuard-AI/internal/phrase"
	"github.com/elaichix/NubaGuard-AI/internal/presence"
	"github.com/elaichix/NubaGuard-AI/internal/sensor"
	"github.com/elaichix/NubaGuard-AI/internal/speech"
	"github.com/elaichix/NubaGuard-AI/pkg/audio"
	audiomixer "github.com/elaichix/NubaGuard-AI/pkg/audio/mixer"
	"github.com/elaichix/NubaGuard-AI/pkg/provider/llm"
	"github.com/elaichix/NubaGuard-AI/pkg/provider/stt"
	"github.com/elaichix/NubaGuard-AI/pkg/provider/tts"
	"github.com/elaichix/NubaGuard-AI/pkg/types"
)

// cryQueueSize bounds cry events waiting for the next tick.
const cryQueueSize = 16

// Providers holds one interface value per provider slot. Populated by
// main.go via the config registry. LLM, Faces and Objects may be nil.
type Providers struct {
	LLM     llm.Provider
	STT     stt.Provider
	TTS     tts.Provider
	Faces   sensor.FaceRecognizer
	Objects sensor.ObjectDetector
}

// App owns all subsystem lifetimes.
type App struct {
	cfg       *config.Config
	providers *Providers
	metrics   *observe.Metrics
	level     *slog.LevelVar
	now       func() time.Time

	// Subsystems, initialised in New and torn down in Shutdown.
	phrases  *phrase.Picker
	speaker  *speech.Speaker
	mixer    audio.Mixer
	recorder audio.Recorder
	cry      sensor.CryClassifier
	worker   *capture.Worker
	engine   *arbiter.Engine
	camera   sensor.FrameSource
	motion   sensor.MotionDetector
	store    *activity.Store
	hub      *notify.Hub
	extra    []activity.Sink
	sink     *activity.Async
	health   *health.Handler
	server   *http.Server

	// Handoffs between the loops.
	transcripts *mailbox.Mailbox[types.Transcript]
	cries       *mailbox.Queue[types.CryEvent]
	motions     *mailbox.Mailbox[types.MotionSample]
	frames      *mailbox.Mailbox[sensor.Frame]
	scenes      *mailbox.Mailbox[scene]
	reloads     *mailbox.Mailbox[*config.Config]

	// Owned by the tick loop.
	applied        *config.Config
	lastMotion     types.MotionSample
	hold           time.Duration
	seenOverwrites uint64

	lastTick atomic.Int64

	outCtx    context.Context
	outCancel context.CancelFunc

	// closers are called in order during Shutdown.
	closers []func() error

	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithMixer injects an audio mixer instead of starting the play command.
func WithMixer(m audio.Mixer) Option {
	return func(a *App) { a.mixer = m }
}

// WithRecorder injects an audio recorder instead of the record command.
func WithRecorder(r audio.Recorder) Option {
	return func(a *App) { a.recorder = r }
}

// WithCamera injects a frame source instead of the HTTP snapshot camera.
func WithCamera(c sensor.FrameSource) Option {
	return func(a *App) { a.camera = c }
}

// WithMotionDetector injects a motion detector.
func WithMotionDetector(d sensor.MotionDetector) Option {
	return func(a *App) { a.motion = d }
}

// WithCryClassifier injects a cry classifier instead of the feature
// thresholds from config.
func WithCryClassifier(c sensor.CryClassifier) Option {
	return func(a *App) { a.cry = c }
}

// WithSink adds an activity sink next to the configured ones.
func WithSink(s activity.Sink) Option {
	return func(a *App) { a.extra = append(a.extra, s) }
}

// WithLevel lets config reloads change the log level.
func WithLevel(v *slog.LevelVar) Option {
	return func(a *App) { a.level = v }
}

// WithMetrics overrides the metrics instance.
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// WithClock overrides the time source of the tick loop.
func WithClock(now func() time.Time) Option {
	return func(a *App) { a.now = now }
}

// ─── New ─────────────────────────────────────────────────────────────────────

// New creates an App by wiring all subsystems together. The providers struct
// comes from main.go (populated via the config registry). ctx bounds the
// playback process and every output call.
func New(ctx context.Context, cfg *config.Config, providers *Providers, opts ...Option) (*App, error) {
	if providers == nil || providers.STT == nil || providers.TTS == nil {
		return nil, errors.New("app: stt and tts providers are required")
	}
	a := &App{
		cfg:         cfg,
		providers:   providers,
		metrics:     observe.DefaultMetrics(),
		now:         time.Now,
		transcripts: mailbox.New[types.Transcript](),
		cries:       mailbox.NewQueue[types.CryEvent](cryQueueSize),
		motions:     mailbox.New[types.MotionSample](),
		frames:      mailbox.New[sensor.Frame](),
		scenes:      mailbox.New[scene](),
		reloads:     mailbox.New[*config.Config](),
		applied:     cfg,
		hold:        cfg.Monitor.GapTolerance,
	}
	for _, o := range opts {
		o(a)
	}
	a.outCtx, a.outCancel = context.WithCancel(ctx)

	// ── 1. Activity record ───────────────────────────────────────────────
	if err := a.initActivity(); err != nil {
		a.closeAll()
		return nil, fmt.Errorf("app: init activity: %w", err)
	}

	// ── 2. Audio output ──────────────────────────────────────────────────
	if err := a.initOutput(a.outCtx); err != nil {
		a.closeAll()
		return nil, fmt.Errorf("app: init output: %w", err)
	}

	// ── 3. Capture worker ────────────────────────────────────────────────
	if err := a.initCapture(); err != nil {
		a.closeAll()
		return nil, fmt.Errorf("app: init capture: %w", err)
	}

	// ── 4. Camera ────────────────────────────────────────────────────────
	if err := a.initCamera(); err != nil {
		a.closeAll()
		return nil, fmt.Errorf("app: init camera: %w", err)
	}

	// ── 5. Arbitration engine ────────────────────────────────────────────
	if err := a.initEngine(); err != nil {
		a.closeAll()
		return nil, fmt.Errorf("app: init engine: %w", err)
	}

	// ── 6. HTTP surface ──────────────────────────────────────────────────
	a.initHTTP()

	return a, nil
}

// ─── Init helpers ────────────────────────────────────────────────────────────

// initActivity opens the CSV file and sqlite store and puts them, the live
// feed and any injected sinks behind one asynchronous sink.
func (a *App) initActivity() error {
	var sinks activity.Multi
	if path := a.cfg.Activity.CSVPath; path != "" {
		c, err := activity.OpenCSV(path)
		if err != nil {
			return err
		}
		sinks = append(sinks, c)
		slog.Info("activity csv enabled", "path", path)
	}
	if path := a.cfg.Activity.SQLitePath; path != "" {
		s, err := activity.OpenStore(path)
		if err != nil {
			_ = sinks.Close()
			return err
		}
		a.store = s
		sinks = append(sinks, s)
		slog.Info("activity store enabled", "path", path)
	}
	if a.cfg.Server.ListenAddr != "" {
		a.hub = notify.NewHub(notify.WithMetrics(a.metrics))
		sinks = append(sinks, a.hub)
	}
	sinks = append(sinks, a.extra...)

	a.sink = activity.NewAsync(sinks, activity.DefaultBuffer)
	a.closers = append(a.closers, a.sink.Close)
	return nil
}

// initOutput builds the mixer, starting the play command when no mixer was
// injected, and the speaker on top of it.
func (a *App) initOutput(ctx context.Context) error {
	if a.mixer == nil {
		rate := a.cfg.Audio.SampleRate
		player, err := audio.StartCommandPlayer(ctx, a.cfg.Audio.PlayCommand, rate)
		if err != nil {
			return err
		}
		pm := audiomixer.New(func(chunk []byte, sampleRate, channels int) {
			player.Play(audio.Normalize(chunk, sampleRate, channels, rate))
		}, audiomixer.WithGap(a.cfg.Audio.MixerGap))
		a.mixer = pm
		// The mixer stops feeding the player before the player closes.
		a.closers = append([]func() error{pm.Close, player.Close}, a.closers...)
	}

	a.speaker = speech.New(a.providers.TTS, a.mixer, a.cfg.Phrases.Voices,
		speech.WithMetrics(a.metrics),
		speech.WithProviderName(a.cfg.Providers.TTS.Name),
	)
	return nil
}

func (a *App) initCapture() error {
	if a.recorder == nil {
		rec, err := audio.NewCommandRecorder(a.cfg.Audio.RecordCommand, a.cfg.Audio.SampleRate, 1,
			a.cfg.Monitor.ListenDuration, audio.WithNoiseFloor(a.cfg.Audio.NoiseFloor))
		if err != nil {
			return err
		}
		a.recorder = rec
	}
	if a.cry == nil {
		a.cry = sensor.NewFeatureCry(a.cfg.Audio.Cry)
	}

	w, err := capture.New(a.recorder, a.providers.STT, a.transcripts, a.cries,
		capture.WithPacing(a.cfg.Monitor.Pacing),
		capture.WithListenDuration(a.cfg.Monitor.ListenDuration),
		capture.WithCryClassifier(a.cry),
		capture.WithMetrics(a.metrics),
		capture.WithProviderName(a.cfg.Providers.STT.Name),
	)
	if err != nil {
		return err
	}
	a.worker = w
	return nil
}

func (a *App) initCamera() error {
	if a.camera == nil {
		cam, err := sensor.NewHTTPCamera(a.cfg.Camera.SnapshotURL,
			sensor.WithCameraHTTPClient(&http.Client{Timeout: a.cfg.Camera.Timeout}))
		if err != nil {
			return err
		}
		a.camera = cam
	}
	if a.motion == nil {
		a.motion = sensor.NewMotionDetector(a.cfg.Camera.Motion)
	}
	return nil
}

func (a *App) initEngine() error {
	a.phrases = phrase.NewPicker(phraseBook(a.cfg))

	convOpts := []converse.Option{
		converse.WithTimeout(a.cfg.Monitor.ConversationTimeout),
		converse.WithMetrics(a.metrics),
		converse.WithProviderName(a.cfg.Providers.LLM.Name),
	}
	if a.cfg.Monitor.SystemPrompt != "" {
		convOpts = append(convOpts, converse.WithSystemPrompt(a.cfg.Monitor.SystemPrompt))
	}
	responder := converse.New(a.providers.LLM, a.phrases, convOpts...)

	eng, err := arbiter.New(cooldownsFrom(a.cfg.Monitor), presenceFrom(a.cfg.Monitor), arbiter.Deps{
		Speaker:      a.speaker,
		Conversation: responder,
		Phrases:      a.phrases,
		Transcripts:  a.transcripts,
		Cries:        a.cries,
		Sink:         a.sink,
	}, arbiter.WithContext(a.outCtx), arbiter.WithMetrics(a.metrics))
	if err != nil {
		return err
	}
	a.engine = eng
	return nil
}

// initHTTP builds /metrics, /healthz, /readyz and /ws behind the tracing
// middleware. Without a listen address there is no server.
func (a *App) initHTTP() {
	checkers := []health.Checker{
		health.Running("capture", a.worker),
		health.Fresh("tick_loop", a.LastTick, tickStaleAfter(a.cfg.Monitor.TickInterval), a.now),
	}
	if a.store != nil {
		checkers = append(checkers, health.Ping("activity_store", a.store))
	}
	a.health = health.New(checkers, health.WithStatus(a.status))

	if a.cfg.Server.ListenAddr == "" {
		return
	}
	mux := http.NewServeMux()
	a.health.Register(mux)
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.Handle("GET /ws", a.hub)

	a.server = &http.Server{
		Addr:              a.cfg.Server.ListenAddr,
		Handler:           observe.Middleware(a.metrics)(mux),
		ReadHeaderTimeout: 5 * time.Second,
	}
}

// ─── Run ─────────────────────────────────────────────────────────────────────

// Run starts the capture worker and the sensing, arbitration and HTTP loops
// and blocks until ctx is cancelled or a loop fails.
func (a *App) Run(ctx context.Context) error {
	a.record(activity.Entry{Event: activity.EventSystemStart, Details: "monitor started"})

	if err := a.worker.Start(ctx); err != nil {
		return fmt.Errorf("app: start capture: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return a.frameLoop(gctx) })
	if a.providers.Faces != nil || a.providers.Objects != nil {
		g.Go(func() error { return a.sceneLoop(gctx) })
	}
	g.Go(func() error { return a.tickLoop(gctx) })

	if a.server != nil {
		g.Go(func() error {
			slog.Info("http server listening", "addr", a.server.Addr)
			if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("app: http server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return a.server.Shutdown(shutdownCtx)
		})
	}

	slog.Info("app running",
		"tick_interval", a.cfg.Monitor.TickInterval,
		"faces", a.providers.Faces != nil,
		"objects", a.providers.Objects != nil,
	)
	if err := g.Wait(); err != nil && ctx.Err() == nil {
		return err
	}
	return ctx.Err()
}

// ─── Shutdown ────────────────────────────────────────────────────────────────

// Shutdown stops the capture worker, lets in-flight speech finish, records
// the stop and tears down all subsystems. It respects the context deadline:
// output still running at the deadline is cancelled.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		slog.Info("shutting down", "closers", len(a.closers))

		a.worker.RequestStop()
		if !a.worker.AwaitStopped(a.worker.StopTimeout()) {
			slog.Warn("capture worker still running at shutdown")
		}

		idle := make(chan struct{})
		go func() {
			a.engine.Wait()
			close(idle)
		}()
		select {
		case <-idle:
		case <-ctx.Done():
			slog.Warn("shutdown deadline exceeded; cancelling speech")
			shutdownErr = ctx.Err()
		}
		a.outCancel()

		a.record(activity.Entry{Event: activity.EventSystemStop, Details: "monitor stopped"})
		a.closeAll()
		slog.Info("shutdown complete")
	})
	return shutdownErr
}

func (a *App) closeAll() {
	for i, closer := range a.closers {
		if err := closer(); err != nil {
			slog.Warn("closer error", "index", i, "err", err)
		}
	}
	a.closers = nil
	if a.outCancel != nil {
		a.outCancel()
	}
}

// ─── Accessors ───────────────────────────────────────────────────────────────

// Engine returns the arbitration engine.
func (a *App) Engine() *arbiter.Engine { return a.engine }

// Handler returns the HTTP handler, or nil when no listen address is set.
func (a *App) Handler() http.Handler {
	if a.server == nil {
		return nil
	}
	return a.server.Handler
}

// LastTick returns when the tick loop last completed a round.
func (a *App) LastTick() time.Time {
	n := a.lastTick.Load()
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n)
}

// OnConfigChange queues cfg for the tick loop. It is shaped to be the
// config watcher's callback.
func (a *App) OnConfigChange(_, cfg *config.Config) {
	a.reloads.Publish(cfg)
}

func (a *App) status() map[string]string {
	return map[string]string{
		"state":              a.engine.CurrentState().String(),
		"capture_iterations": fmt.Sprint(a.worker.Iterations()),
	}
}

func (a *App) record(e activity.Entry) {
	if e.At.IsZero() {
		e.At = a.now()
	}
	if e.State == "" {
		e.State = a.engine.CurrentState().String()
	}
	if err := a.sink.Record(context.Background(), e); err != nil {
		slog.Warn("activity record failed", "event", e.Event, "err", err)
	}
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

func cooldownsFrom(m config.MonitorConfig) arbiter.Cooldowns {
	return arbiter.Cooldowns{
		Cry:          m.CryCooldown,
		Identity:     m.RecognitionCooldown,
		Idle:         m.IdleInterval,
		Conversation: m.ConversationCooldown,
	}
}

func presenceFrom(m config.MonitorConfig) presence.Config {
	return presence.Config{
		MotionDuration:    m.MotionDuration,
		GapTolerance:      m.GapTolerance,
		InactivityTimeout: m.InactivityTimeout,
	}
}

// phraseBook is the built-in book with the configured overrides applied.
func phraseBook(cfg *config.Config) phrase.Book {
	return phrase.Default().Merge(cfg.Phrases.Book)
}

// tickStaleAfter is how long the tick loop may go silent before /readyz
// fails.
func tickStaleAfter(interval time.Duration) time.Duration {
	return max(20*interval, 2*time.Second)
}
