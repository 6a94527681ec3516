// Package telemetry exports one trace span per displayed notification.
package telemetry

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"
	oteltrace "go.opentelemetry.io/otel/trace"

	"github.com/jmylchreest/bigsnackbar/internal/snackbar"
)

const (
	spanName           = "snackbar.display"
	instrumentationKey = "github.com/jmylchreest/bigsnackbar"
	defaultService     = "bigsnackbar"
)

// Attribute keys.
const (
	AttrRequestID     = attribute.Key("snackbar.request.id")
	AttrActions       = attribute.Key("snackbar.actions")
	AttrDismissReason = attribute.Key("snackbar.dismiss.reason")
	AttrQueuedFor     = attribute.Key("snackbar.queued_for_ms")
)

// Tracer turns queue events into spans. A nil *Tracer is valid and does
// nothing.
type Tracer struct {
	provider *sdktrace.TracerProvider // owned, nil when injected
	tracer   oteltrace.Tracer
	logger   *slog.Logger

	mu    sync.Mutex
	spans map[string]oteltrace.Span
}

// NewFromEnv creates an OTLP/HTTP exporting Tracer when
// OTEL_EXPORTER_OTLP_ENDPOINT is set. It returns nil when tracing is disabled.
func NewFromEnv(ctx context.Context, logger *slog.Logger) (*Tracer, error) {
	endpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	if endpoint == "" {
		return nil, nil
	}

	exporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpoint(endpoint),
		otlptracehttp.WithInsecure(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create otlp exporter: %w", err)
	}

	serviceName := os.Getenv("OTEL_SERVICE_NAME")
	if serviceName == "" {
		serviceName = defaultService
	}

	res := resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceNameKey.String(serviceName),
	)
	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)

	t := New(provider, logger)
	t.provider = provider
	t.logger.Debug("tracing enabled", "endpoint", endpoint, "service", serviceName)
	return t, nil
}

// New creates a Tracer on an existing provider.
func New(tp oteltrace.TracerProvider, logger *slog.Logger) *Tracer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracer{
		tracer: tp.Tracer(instrumentationKey),
		logger: logger,
		spans:  make(map[string]oteltrace.Span),
	}
}

// Listener returns a queue listener that starts a span when a notification
// is shown and ends it when it is dismissed.
func (t *Tracer) Listener() snackbar.Listener {
	if t == nil {
		return func(snackbar.Event) {}
	}
	return t.handle
}

func (t *Tracer) handle(ev snackbar.Event) {
	id := ev.Request.ID
	switch ev.Kind {
	case snackbar.EventShown:
		_, span := t.tracer.Start(context.Background(), spanName,
			oteltrace.WithTimestamp(ev.At),
			oteltrace.WithAttributes(
				AttrRequestID.String(id),
				AttrActions.Int(len(ev.Request.Actions)),
				AttrQueuedFor.Int64(ev.At.Sub(ev.SubmittedAt).Milliseconds()),
			),
		)
		t.mu.Lock()
		t.spans[id] = span
		t.mu.Unlock()

	case snackbar.EventDismissing:
		t.mu.Lock()
		span, ok := t.spans[id]
		t.mu.Unlock()
		if ok {
			span.AddEvent("dismissing", oteltrace.WithTimestamp(ev.At))
		}

	case snackbar.EventDismissed:
		t.mu.Lock()
		span, ok := t.spans[id]
		delete(t.spans, id)
		t.mu.Unlock()
		if !ok {
			return
		}
		span.SetAttributes(AttrDismissReason.String(ev.Reason.String()))
		span.End(oteltrace.WithTimestamp(ev.At))
	}
}

// Shutdown ends open spans and flushes the exporter.
func (t *Tracer) Shutdown(ctx context.Context) error {
	if t == nil {
		return nil
	}

	t.mu.Lock()
	for id, span := range t.spans {
		span.End()
		delete(t.spans, id)
	}
	t.mu.Unlock()

	if t.provider == nil {
		return nil
	}
	if err := t.provider.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shut down tracer provider: %w", err)
	}
	return nil
}
