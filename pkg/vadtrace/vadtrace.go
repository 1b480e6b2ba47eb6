// Package vadtrace wraps a *vad.Engine with OpenTelemetry spans: one
// span per PushBytes call and one span per utterance, closed on
// end/misfire and tagged with the frameProcessed/chunk counts observed
// along the way.
//
// The core engine never imports this package, so it stays allocation-
// careful and free of tracing dependencies. vadtrace is an additive
// decorator any caller can choose to wrap an Engine in.
package vadtrace

import (
	"context"
	"fmt"
	"log"
	"os"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/vadstream/vadstream/pkg/vad"
)

// TracerName is the instrumentation scope name used for every span this
// package creates.
const TracerName = "github.com/vadstream/vadstream/pkg/vad"

var (
	tracerProvider *sdktrace.TracerProvider
	tracer         trace.Tracer
	mu             sync.RWMutex
)

// Config mirrors the teacher's tracing configuration shape, scoped down
// to what a VAD engine needs to name itself in a trace backend.
type Config struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	// ExporterType is "stdout", "otlp", or "none".
	ExporterType string
	OTLPEndpoint string
	SamplingRate float64
}

// DefaultConfig returns a stdout-exporting, fully-sampled configuration.
func DefaultConfig() *Config {
	return &Config{
		ServiceName:    "vadstream",
		ServiceVersion: "0.1.0",
		Environment:    getEnv("ENVIRONMENT", "development"),
		ExporterType:   getEnv("TRACE_EXPORTER", "stdout"),
		OTLPEndpoint:   getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
		SamplingRate:   1.0,
	}
}

// Initialize sets up the global tracer provider used by Wrap. Calling it
// more than once without an intervening Shutdown is an error.
func Initialize(ctx context.Context, cfg *Config) error {
	mu.Lock()
	defer mu.Unlock()

	if tracerProvider != nil {
		return fmt.Errorf("vadtrace: tracer provider already initialized")
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.ServiceVersion),
			attribute.String("environment", cfg.Environment),
		),
	)
	if err != nil {
		return fmt.Errorf("vadtrace: build resource: %w", err)
	}

	var exporter sdktrace.SpanExporter
	switch cfg.ExporterType {
	case "stdout":
		exporter, err = stdouttrace.New(stdouttrace.WithPrettyPrint())
		if err != nil {
			return fmt.Errorf("vadtrace: stdout exporter: %w", err)
		}
	case "otlp":
		client := otlptracegrpc.NewClient(
			otlptracegrpc.WithEndpoint(cfg.OTLPEndpoint),
			otlptracegrpc.WithInsecure(),
		)
		exporter, err = otlptrace.New(ctx, client)
		if err != nil {
			return fmt.Errorf("vadtrace: otlp exporter: %w", err)
		}
	case "none":
		exporter = &noopExporter{}
	default:
		return fmt.Errorf("vadtrace: unsupported exporter type %q", cfg.ExporterType)
	}

	sampler := sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SamplingRate))
	tracerProvider = sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithBatcher(exporter),
		sdktrace.WithSampler(sampler),
	)

	otel.SetTracerProvider(tracerProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	tracer = tracerProvider.Tracer(TracerName)
	log.Printf("vadtrace: initialized with exporter %s", cfg.ExporterType)
	return nil
}

// Shutdown flushes and tears down the global tracer provider. It is a
// no-op if Initialize was never called.
func Shutdown(ctx context.Context) error {
	mu.Lock()
	defer mu.Unlock()

	if tracerProvider == nil {
		return nil
	}
	if err := tracerProvider.Shutdown(ctx); err != nil {
		return fmt.Errorf("vadtrace: shutdown: %w", err)
	}
	tracerProvider = nil
	tracer = nil
	return nil
}

func getTracer() trace.Tracer {
	mu.RLock()
	defer mu.RUnlock()
	if tracer == nil {
		return otel.Tracer(TracerName)
	}
	return tracer
}

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

type noopExporter struct{}

func (e *noopExporter) ExportSpans(ctx context.Context, spans []sdktrace.ReadOnlySpan) error { return nil }
func (e *noopExporter) Shutdown(ctx context.Context) error                                   { return nil }

// Engine decorates a *vad.Engine with spans. It implements the same
// PushBytes/ForceEndSpeech/Reset/Release surface, so it is a drop-in
// substitute anywhere a *vad.Engine is used.
type Engine struct {
	ctx    context.Context
	engine *vad.Engine

	mu            sync.Mutex
	utteranceSpan trace.Span
	frameCount    int
	chunkCount    int
}

// Wrap returns a traced decorator around e. ctx supplies the parent span
// context for every span this decorator creates.
func Wrap(ctx context.Context, e *vad.Engine) *Engine {
	return &Engine{ctx: ctx, engine: e}
}

// PushBytes instruments the underlying Engine.PushBytes call with one
// span per call and tracks per-utterance span lifecycle from the
// returned events.
func (w *Engine) PushBytes(data []byte) ([]vad.Event, error) {
	ctx, span := getTracer().Start(w.ctx, "vad.processAudioData",
		trace.WithAttributes(attribute.Int("bytes", len(data))))
	defer span.End()

	events, err := w.engine.PushBytes(data)
	span.SetAttributes(attribute.Int("events", len(events)))
	if err != nil {
		span.RecordError(err)
		return events, err
	}

	w.trackUtterance(ctx, events)
	return events, nil
}

// ForceEndSpeech instruments Engine.ForceEndSpeech and, like PushBytes,
// closes any open utterance span based on the events it returns.
func (w *Engine) ForceEndSpeech() []vad.Event {
	ctx, span := getTracer().Start(w.ctx, "vad.forceEndSpeech")
	defer span.End()

	events := w.engine.ForceEndSpeech()
	span.SetAttributes(attribute.Int("events", len(events)))
	w.trackUtterance(ctx, events)
	return events
}

func (w *Engine) trackUtterance(ctx context.Context, events []vad.Event) {
	w.mu.Lock()
	defer w.mu.Unlock()

	for _, ev := range events {
		switch ev.Type {
		case vad.EventStart:
			w.frameCount, w.chunkCount = 0, 0
			_, span := getTracer().Start(ctx, "vad.utterance",
				trace.WithAttributes(attribute.String("utterance_id", ev.UtteranceID.String())))
			w.utteranceSpan = span
		case vad.EventFrameProcessed:
			w.frameCount++
		case vad.EventChunk:
			w.chunkCount++
		case vad.EventEnd, vad.EventMisfire:
			if w.utteranceSpan != nil {
				w.utteranceSpan.SetAttributes(
					attribute.String("outcome", ev.Type.String()),
					attribute.Int("frame_count", w.frameCount),
					attribute.Int("chunk_count", w.chunkCount),
				)
				w.utteranceSpan.End()
				w.utteranceSpan = nil
			}
		}
	}
}

// Reset delegates to the underlying Engine, discarding any open
// utterance span without closing it as ended (the utterance itself
// never reached end/misfire).
func (w *Engine) Reset() error {
	w.mu.Lock()
	if w.utteranceSpan != nil {
		w.utteranceSpan.SetAttributes(attribute.String("outcome", "reset"))
		w.utteranceSpan.End()
		w.utteranceSpan = nil
	}
	w.mu.Unlock()
	return w.engine.Reset()
}

// Release delegates to the underlying Engine.
func (w *Engine) Release() error { return w.engine.Release() }

// Close satisfies io.Closer as an alias for Release.
func (w *Engine) Close() error { return w.Release() }

// ProcessFrame delegates to the underlying Engine without adding a
// span; it is the low-level, wrong-size-guarded entry point and is
// expected to be called at per-frame rates where span overhead would
// dominate.
func (w *Engine) ProcessFrame(frame []float32) []vad.Event { return w.engine.ProcessFrame(frame) }
