// Package observe provides application-wide observability primitives for
// NubaGuard: OpenTelemetry metrics, tracing, trace-correlated logging, and
// HTTP middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API and exported to
// Prometheus by [InitProvider]. A package-level default [Metrics] instance
// ([DefaultMetrics]) is provided for convenience; tests should use
// [NewMetrics] with a custom [metric.MeterProvider] to avoid cross-test
// pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all NubaGuard metrics.
const meterName = "github.com/elaichix/NubaGuard-AI"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use.
type Metrics struct {
	// --- Latency histograms ---

	// TickDuration tracks how long one arbitration tick takes.
	TickDuration metric.Float64Histogram

	// CaptureDuration tracks one capture worker iteration (record, classify,
	// transcribe).
	CaptureDuration metric.Float64Histogram

	// STTDuration tracks transcription latency.
	STTDuration metric.Float64Histogram

	// LLMDuration tracks conversational backend latency.
	LLMDuration metric.Float64Histogram

	// TTSDuration tracks time to first synthesized audio chunk.
	TTSDuration metric.Float64Histogram

	// --- Counters ---

	// ProviderRequests counts provider API calls. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("kind", ...), attribute.String("status", ...)
	ProviderRequests metric.Int64Counter

	// ProviderErrors counts provider errors. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("kind", ...)
	ProviderErrors metric.Int64Counter

	// ActionsDispatched counts dispatched actions. Use with attribute:
	//   attribute.String("kind", ...)
	ActionsDispatched metric.Int64Counter

	// CandidatesSuppressed counts candidate actions that were not dispatched.
	// Use with attributes:
	//   attribute.String("kind", ...), attribute.String("reason", ...)
	CandidatesSuppressed metric.Int64Counter

	// PresenceTransitions counts state changes. Use with attributes:
	//   attribute.String("from", ...), attribute.String("to", ...)
	PresenceTransitions metric.Int64Counter

	// CaptureIterations counts completed capture loop iterations.
	CaptureIterations metric.Int64Counter

	// CaptureErrors counts swallowed capture errors. Use with attribute:
	//   attribute.String("kind", ...)
	CaptureErrors metric.Int64Counter

	// CryEvents counts segments classified as crying.
	CryEvents metric.Int64Counter

	// MailboxOverwrites counts transcripts replaced before the tick loop took
	// them.
	MailboxOverwrites metric.Int64Counter

	// --- Gauges ---

	// SpeechInFlight tracks output calls issued but not yet completed.
	SpeechInFlight metric.Int64UpDownCounter

	// NotifyClients tracks connected notification feed subscribers.
	NotifyClients metric.Int64UpDownCounter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds) covering a
// sub-millisecond tick up to a slow remote model call.
var latencyBuckets = []float64{
	0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	hist := func(name, desc string) (metric.Float64Histogram, error) {
		return m.Float64Histogram(name,
			metric.WithDescription(desc),
			metric.WithUnit("s"),
			metric.WithExplicitBucketBoundaries(latencyBuckets...),
		)
	}

	// Histograms.
	if met.TickDuration, err = hist("nubaguard.tick.duration", "Duration of one arbitration tick."); err != nil {
		return nil, err
	}
	if met.CaptureDuration, err = hist("nubaguard.capture.duration", "Duration of one capture worker iteration."); err != nil {
		return nil, err
	}
	if met.STTDuration, err = hist("nubaguard.stt.duration", "Latency of speech-to-text transcription."); err != nil {
		return nil, err
	}
	if met.LLMDuration, err = hist("nubaguard.llm.duration", "Latency of the conversational backend."); err != nil {
		return nil, err
	}
	if met.TTSDuration, err = hist("nubaguard.tts.duration", "Latency to the first synthesized audio chunk."); err != nil {
		return nil, err
	}

	// Counters.
	if met.ProviderRequests, err = m.Int64Counter("nubaguard.provider.requests",
		metric.WithDescription("Total provider API requests by provider, kind, and status."),
	); err != nil {
		return nil, err
	}
	if met.ProviderErrors, err = m.Int64Counter("nubaguard.provider.errors",
		metric.WithDescription("Total provider errors by provider and kind."),
	); err != nil {
		return nil, err
	}
	if met.ActionsDispatched, err = m.Int64Counter("nubaguard.actions.dispatched",
		metric.WithDescription("Total dispatched actions by kind."),
	); err != nil {
		return nil, err
	}
	if met.CandidatesSuppressed, err = m.Int64Counter("nubaguard.candidates.suppressed",
		metric.WithDescription("Candidate actions not dispatched, by kind and reason."),
	); err != nil {
		return nil, err
	}
	if met.PresenceTransitions, err = m.Int64Counter("nubaguard.presence.transitions",
		metric.WithDescription("Presence state transitions by source and target state."),
	); err != nil {
		return nil, err
	}
	if met.CaptureIterations, err = m.Int64Counter("nubaguard.capture.iterations",
		metric.WithDescription("Completed capture worker iterations."),
	); err != nil {
		return nil, err
	}
	if met.CaptureErrors, err = m.Int64Counter("nubaguard.capture.errors",
		metric.WithDescription("Swallowed capture worker errors by kind."),
	); err != nil {
		return nil, err
	}
	if met.CryEvents, err = m.Int64Counter("nubaguard.cry.events",
		metric.WithDescription("Audio segments classified as crying."),
	); err != nil {
		return nil, err
	}
	if met.MailboxOverwrites, err = m.Int64Counter("nubaguard.mailbox.overwrites",
		metric.WithDescription("Transcripts overwritten before the tick loop consumed them."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.SpeechInFlight, err = m.Int64UpDownCounter("nubaguard.speech.in_flight",
		metric.WithDescription("Output calls issued and not yet completed."),
	); err != nil {
		return nil, err
	}
	if met.NotifyClients, err = m.Int64UpDownCounter("nubaguard.notify.clients",
		metric.WithDescription("Connected notification feed subscribers."),
	); err != nil {
		return nil, err
	}

	// HTTP middleware histogram.
	if met.HTTPRequestDuration, err = m.Float64Histogram("nubaguard.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// defaultMetrics is the lazily-initialised package-level Metrics instance.
var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Panics if instrument creation
// fails (should not happen with the global provider).
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// Attr is a convenience alias for [attribute.String] to reduce verbosity at
// call sites.
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordProviderRequest records a provider request with the standard
// attribute set.
func (m *Metrics) RecordProviderRequest(ctx context.Context, provider, kind, status string) {
	m.ProviderRequests.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
			attribute.String("status", status),
		),
	)
}

// RecordProviderError records a provider error.
func (m *Metrics) RecordProviderError(ctx context.Context, provider, kind string) {
	m.ProviderErrors.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
		),
	)
}

// RecordAction records one dispatched action of the given kind.
func (m *Metrics) RecordAction(ctx context.Context, kind string) {
	m.ActionsDispatched.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
}

// RecordSuppressed records a candidate that lost to cooldown or priority.
func (m *Metrics) RecordSuppressed(ctx context.Context, kind, reason string) {
	m.CandidatesSuppressed.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("kind", kind),
			attribute.String("reason", reason),
		),
	)
}

// RecordTransition records a presence state change.
func (m *Metrics) RecordTransition(ctx context.Context, from, to string) {
	m.PresenceTransitions.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("from", from),
			attribute.String("to", to),
		),
	)
}

// RecordCaptureError records a swallowed capture error of the given kind.
func (m *Metrics) RecordCaptureError(ctx context.Context, kind string) {
	m.CaptureErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
}
