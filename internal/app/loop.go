package app

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/elaichix/NubaGuard-AI/internal/activity"
	"github.com/elaichix/NubaGuard-AI/internal/config"
	"github.com/elaichix/NubaGuard-AI/internal/sensor"
	"github.com/elaichix/NubaGuard-AI/pkg/types"
)

// logEvery limits repeated failure logs of the sensing loops to the first
// occurrence and then one in logEvery.
const logEvery = 100

// scene is the latest result of face recognition and object detection.
type scene struct {
	faces   []types.FaceEvent
	objects []string
}

// frameLoop samples the camera once per tick interval, runs the motion
// detector and hands the verdict and the frame to the other loops.
func (a *App) frameLoop(ctx context.Context) error {
	ticker := time.NewTicker(a.cfg.Monitor.TickInterval)
	defer ticker.Stop()

	var failures int
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		frame, err := a.camera.Snapshot(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			failures++
			switch {
			case errors.Is(err, sensor.ErrNoFrame):
				slog.Debug("camera has no frame yet")
			case failures == 1 || failures%logEvery == 0:
				slog.Warn("camera snapshot failed", "err", err, "failures", failures)
			}
			continue
		}
		if failures > 0 {
			slog.Info("camera recovered", "failures", failures)
			failures = 0
		}

		a.motions.Publish(a.motion.Detect(frame))
		a.frames.Publish(frame)
	}
}

// sceneLoop runs face recognition and object detection on the newest frame.
// Both are slow compared with the tick, so frames that arrive while a scan is
// running are skipped.
func (a *App) sceneLoop(ctx context.Context) error {
	ticker := time.NewTicker(a.cfg.Monitor.TickInterval)
	defer ticker.Stop()

	var failures int
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		frame, ok := a.frames.TakeIfPresent()
		if !ok {
			continue
		}
		sc, err := a.scan(ctx, frame)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			failures++
			if failures == 1 || failures%logEvery == 0 {
				slog.Warn("scene analysis failed", "err", err, "failures", failures)
			}
		}
		a.scenes.Publish(sc)
	}
}

// scan runs the configured recognizers concurrently. A failing recognizer
// leaves its half of the scene empty.
func (a *App) scan(ctx context.Context, frame sensor.Frame) (scene, error) {
	var sc scene
	g, gctx := errgroup.WithContext(ctx)
	if a.providers.Faces != nil {
		g.Go(func() error {
			faces, err := a.providers.Faces.Recognize(gctx, frame)
			if err != nil {
				return err
			}
			sc.faces = faces
			return nil
		})
	}
	if a.providers.Objects != nil {
		g.Go(func() error {
			dets, err := a.providers.Objects.DetectObjects(gctx, frame)
			if err != nil {
				return err
			}
			sc.objects = sensor.Labels(dets)
			return nil
		})
	}
	err := g.Wait()
	return sc, err
}

// tickLoop drives the arbitration engine at the configured interval.
func (a *App) tickLoop(ctx context.Context) error {
	ticker := time.NewTicker(a.cfg.Monitor.TickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			a.tick(a.now())
		}
	}
}

// tick performs one arbitration round. It must only be called from the tick
// loop (or a test standing in for it).
func (a *App) tick(now time.Time) {
	if cfg, ok := a.reloads.TakeIfPresent(); ok {
		a.applyReload(cfg)
	}

	var faces []types.FaceEvent
	if sc, ok := a.scenes.TakeIfPresent(); ok {
		faces = sc.faces
		a.engine.SetScene(sc.objects)
	}

	actions := a.engine.Tick(now, a.currentMotion(now), faces)
	for _, act := range actions {
		slog.Debug("action dispatched", "kind", act.Kind, "id", act.ID)
	}

	a.lastTick.Store(now.UnixNano())
	if _, overwritten := a.transcripts.Stats(); overwritten > a.seenOverwrites {
		a.metrics.MailboxOverwrites.Add(context.Background(), int64(overwritten-a.seenOverwrites))
		a.seenOverwrites = overwritten
	}
}

// currentMotion returns the newest motion verdict. The camera samples at the
// tick rate, so a tick without a fresh frame repeats the last verdict for up
// to the gap tolerance rather than reporting stillness.
func (a *App) currentMotion(now time.Time) types.MotionSample {
	if m, ok := a.motions.TakeIfPresent(); ok {
		a.lastMotion = m
		return types.MotionSample{At: now, Significant: m.Significant}
	}
	if a.lastMotion.Significant && now.Sub(a.lastMotion.At) <= a.hold {
		return types.MotionSample{At: now, Significant: true}
	}
	return types.MotionSample{At: now}
}

// applyReload applies the hot-reloadable parts of cfg.
func (a *App) applyReload(cfg *config.Config) {
	d := config.Diff(a.applied, cfg)
	if !d.Changed() {
		return
	}

	if d.LogLevelChanged && a.level != nil {
		a.level.Set(d.NewLogLevel.SlogLevel())
	}
	if d.CooldownsChanged {
		a.engine.SetCooldowns(cooldownsFrom(cfg.Monitor))
	}
	if d.PresenceChanged {
		a.engine.SetPresence(presenceFrom(cfg.Monitor))
		a.hold = cfg.Monitor.GapTolerance
	}
	if d.PhrasesChanged {
		a.phrases.SetBook(phraseBook(cfg))
	}
	if d.VoicesChanged {
		a.speaker.SetVoices(cfg.Phrases.Voices)
	}
	if len(d.RestartRequired) > 0 {
		slog.Warn("config changes need a restart to take effect", "sections", d.RestartRequired)
	}

	a.applied = cfg
	slog.Info("config reloaded",
		"log_level", d.LogLevelChanged,
		"cooldowns", d.CooldownsChanged,
		"presence", d.PresenceChanged,
		"phrases", d.PhrasesChanged,
		"voices", d.VoicesChanged,
	)
	a.record(activity.Entry{Event: activity.EventConfig, Details: "configuration reloaded"})
}
