package observability

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace/noop"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func resetProvider(t *testing.T) {
	t.Helper()
	t.Cleanup(func() { otel.SetTracerProvider(noop.NewTracerProvider()) })
}

func TestInitDisabled(t *testing.T) {
	resetProvider(t)

	shutdown, err := Init(context.Background(), Config{}, discardLogger())
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Errorf("shutdown: %v", err)
	}

	_, span := otel.Tracer("test").Start(context.Background(), "noop")
	defer span.End()
	if span.SpanContext().IsValid() {
		t.Error("disabled tracing produced a valid span context")
	}
}

func TestInitStdout(t *testing.T) {
	resetProvider(t)

	var buf bytes.Buffer
	cfg := Config{
		Enabled:     true,
		ServiceName: "sattrack-test",
		Exporter:    "stdout",
		SampleRatio: 1,
		Writer:      &buf,
	}
	shutdown, err := Init(context.Background(), cfg, discardLogger())
	if err != nil {
		t.Fatalf("Init: %v", err)
	}

	_, span := otel.Tracer("test").Start(context.Background(), "passes.Find")
	if !span.SpanContext().IsValid() {
		t.Error("expected a sampled span")
	}
	span.End()

	Shutdown(context.Background(), shutdown, discardLogger())

	out := buf.String()
	if !strings.Contains(out, "passes.Find") {
		t.Errorf("exporter output missing span name: %q", out)
	}
	if !strings.Contains(out, "sattrack-test") {
		t.Errorf("exporter output missing service name: %q", out)
	}
}

func TestInitUnsupportedExporter(t *testing.T) {
	resetProvider(t)

	_, err := Init(context.Background(), Config{Enabled: true, Exporter: "zipkin"}, discardLogger())
	if err == nil {
		t.Fatal("expected error for unsupported exporter")
	}
}

func TestShutdownNil(t *testing.T) {
	Shutdown(context.Background(), nil, discardLogger())
}
