package capture

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/elaichix/NubaGuard-AI/internal/mailbox"
	"github.com/elaichix/NubaGuard-AI/internal/observe"
	sensormock "github.com/elaichix/NubaGuard-AI/internal/sensor/mock"
	"github.com/elaichix/NubaGuard-AI/pkg/audio"
	audiomock "github.com/elaichix/NubaGuard-AI/pkg/audio/mock"
	"github.com/elaichix/NubaGuard-AI/pkg/provider/stt"
	sttmock "github.com/elaichix/NubaGuard-AI/pkg/provider/stt/mock"
	"github.com/elaichix/NubaGuard-AI/pkg/types"
)

var t0 = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func segment() audio.Segment {
	return audio.Segment{PCM: make([]byte, 320), SampleRate: 16000, Channels: 1, EndedAt: t0}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func testMetrics(t *testing.T) (*observe.Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	m, err := observe.NewMetrics(mp)
	if err != nil {
		t.Fatal(err)
	}
	return m, reader
}

func captureErrors(t *testing.T, reader *sdkmetric.ManualReader) map[string]int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatal(err)
	}
	out := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != "nubaguard.capture.errors" {
				continue
			}
			for _, dp := range m.Data.(metricdata.Sum[int64]).DataPoints {
				v, _ := dp.Attributes.Value("kind")
				out[v.AsString()] = dp.Value
			}
		}
	}
	return out
}

type fixture struct {
	rec         *audiomock.Recorder
	stt         *sttmock.Provider
	cry         *sensormock.Cry
	transcripts *mailbox.Mailbox[types.Transcript]
	cries       *mailbox.Queue[types.CryEvent]
}

func newFixture() *fixture {
	return &fixture{
		rec:         &audiomock.Recorder{Script: []audiomock.CaptureResult{{Segment: segment()}}},
		stt:         &sttmock.Provider{},
		cry:         &sensormock.Cry{},
		transcripts: mailbox.New[types.Transcript](),
		cries:       mailbox.NewQueue[types.CryEvent](mailbox.DefaultQueueCapacity),
	}
}

func (f *fixture) worker(t *testing.T, opts ...Option) *Worker {
	t.Helper()
	opts = append([]Option{WithPacing(time.Millisecond), WithCryClassifier(f.cry)}, opts...)
	w, err := New(f.rec, f.stt, f.transcripts, f.cries, opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() {
		w.RequestStop()
		w.AwaitStopped(2 * time.Second)
	})
	return w
}

func TestClassify(t *testing.T) {
	tests := []struct {
		err  error
		want ErrorKind
	}{
		{audio.ErrCaptureTimeout, Timeout},
		{audio.ErrSilence, Timeout},
		{fmt.Errorf("wrapped: %w", context.DeadlineExceeded), Timeout},
		{ErrTimeout, Timeout},
		{fmt.Errorf("whisper: %w", stt.ErrUnintelligible), Unintelligible},
		{fmt.Errorf("%w: %w", ErrService, errors.New("503")), Service},
		{errors.New("boom"), Other},
		{nil, Other},
	}
	for _, tc := range tests {
		if got := Classify(tc.err); got != tc.want {
			t.Errorf("Classify(%v) = %v, want %v", tc.err, got, tc.want)
		}
	}
}

func TestNew_Validation(t *testing.T) {
	f := newFixture()
	if _, err := New(nil, f.stt, f.transcripts, f.cries); err == nil {
		t.Error("expected error for nil recorder")
	}
	if _, err := New(f.rec, nil, f.transcripts, f.cries); err == nil {
		t.Error("expected error for nil transcriber")
	}
	if _, err := New(f.rec, f.stt, nil, f.cries); err == nil {
		t.Error("expected error for nil mailbox")
	}
}

func TestStopTimeout(t *testing.T) {
	f := newFixture()
	w := f.worker(t, WithListenDuration(3*time.Second))
	if got := w.StopTimeout(); got != 5*time.Second {
		t.Errorf("StopTimeout = %v, want 5s", got)
	}
}

func TestWorker_PublishesTranscriptAndCry(t *testing.T) {
	f := newFixture()
	f.stt.Script = []sttmock.Result{{Transcript: types.Transcript{Text: " mama ", Lang: "en"}}}
	f.cry.Script = []bool{true, false}
	w := f.worker(t)

	if err := w.Start(context.Background()); err != nil {
		t.Fatal(err)
	}

	var got types.Transcript
	waitFor(t, "transcript", func() bool {
		var ok bool
		got, ok = f.transcripts.TakeIfPresent()
		return ok
	})
	if got.Text != "mama" || got.Lang != "en" {
		t.Errorf("transcript = %+v", got)
	}
	if got.At.IsZero() {
		t.Error("transcript not timestamped")
	}

	waitFor(t, "cry event", func() bool { return f.cries.Len() > 0 })
	cries := f.cries.Drain()
	if !cries[0].At.Equal(t0) {
		t.Errorf("cry at %v, want segment end %v", cries[0].At, t0)
	}

	w.RequestStop()
	if !w.AwaitStopped(time.Second) {
		t.Fatal("worker did not stop")
	}
	if w.Running() {
		t.Error("Running after stop")
	}
}

func TestWorker_ErrorsAreCountedAndLoopContinues(t *testing.T) {
	f := newFixture()
	f.rec.Script = []audiomock.CaptureResult{
		{Err: audio.ErrCaptureTimeout},
		{Segment: segment()},
	}
	f.stt.Script = []sttmock.Result{
		{Err: stt.ErrUnintelligible},
		{Err: errors.New("connection refused")},
		{Transcript: types.Transcript{Text: "   "}},
		{Transcript: types.Transcript{Text: "play", At: t0}},
	}
	m, reader := testMetrics(t)
	w := f.worker(t, WithMetrics(m), WithProviderName("whisper"))

	if err := w.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	var got types.Transcript
	waitFor(t, "transcript after errors", func() bool {
		var ok bool
		got, ok = f.transcripts.TakeIfPresent()
		return ok
	})
	if got.Text != "play" || !got.At.Equal(t0) {
		t.Errorf("transcript = %+v", got)
	}

	w.RequestStop()
	w.AwaitStopped(time.Second)

	errs := captureErrors(t, reader)
	if errs["timeout"] != 1 {
		t.Errorf("timeout errors = %d, want 1", errs["timeout"])
	}
	if errs["unintelligible"] != 2 {
		t.Errorf("unintelligible errors = %d, want 2", errs["unintelligible"])
	}
	if errs["service"] != 1 {
		t.Errorf("service errors = %d, want 1", errs["service"])
	}
}

func TestWorker_StopInterruptsPacing(t *testing.T) {
	f := newFixture()
	w := f.worker(t, WithPacing(time.Hour))
	if err := w.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	waitFor(t, "first iteration", func() bool { return w.Iterations() == 1 })

	w.RequestStop()
	w.RequestStop()
	if !w.AwaitStopped(time.Second) {
		t.Fatal("stop during pacing not honoured")
	}
}

func TestWorker_AwaitStoppedTimesOut(t *testing.T) {
	f := newFixture()
	f.rec.Delay = 300 * time.Millisecond
	w := f.worker(t)
	if err := w.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	waitFor(t, "capture in flight", func() bool { return f.rec.CallCount() == 1 })

	w.RequestStop()
	if w.AwaitStopped(10 * time.Millisecond) {
		t.Fatal("AwaitStopped returned true while capture was in flight")
	}
	if !w.AwaitStopped(2 * time.Second) {
		t.Fatal("worker never stopped")
	}
	if n := f.rec.CallCount(); n != 1 {
		t.Errorf("captures = %d, want 1 (no new iteration after stop)", n)
	}
}

func TestWorker_ContextCancelStops(t *testing.T) {
	f := newFixture()
	w := f.worker(t)
	ctx, cancel := context.WithCancel(context.Background())
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	cancel()
	select {
	case <-w.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("worker ignored context cancellation")
	}
}

func TestWorker_StartTwice(t *testing.T) {
	f := newFixture()
	w := f.worker(t)
	if err := w.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := w.Start(context.Background()); err == nil {
		t.Fatal("second Start should fail")
	}
}

func TestAwaitStopped_NeverStarted(t *testing.T) {
	f := newFixture()
	w := f.worker(t)
	if !w.AwaitStopped(time.Millisecond) {
		t.Error("unstarted worker should count as stopped")
	}
}
