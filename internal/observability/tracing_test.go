package observability

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace/noop"
)

func resetTracerProvider(t *testing.T) {
	t.Helper()
	t.Cleanup(func() { otel.SetTracerProvider(noop.NewTracerProvider()) })
}

func TestTracingConfigFromEnv(t *testing.T) {
	t.Setenv("LEOSIM_TRACING_ENABLED", "TRUE")
	t.Setenv("LEOSIM_TRACING_EXPORTER", "OTLP")
	t.Setenv("LEOSIM_TRACING_SERVICE_NAME", "")
	t.Setenv("LEOSIM_TRACING_SAMPLE_RATIO", "0.25")
	t.Setenv("LEOSIM_OTLP_ENDPOINT", "collector:4317")

	cfg := TracingConfigFromEnv()
	if !cfg.Enabled || cfg.Exporter != "otlp" || cfg.Endpoint != "collector:4317" {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if cfg.ServiceName != "leo-transcode-sim" {
		t.Fatalf("default service name = %q", cfg.ServiceName)
	}
	if cfg.SampleRatio != 0.25 {
		t.Fatalf("sample ratio = %v, want 0.25", cfg.SampleRatio)
	}
}

func TestTracingConfigIgnoresBadRatio(t *testing.T) {
	t.Setenv("LEOSIM_TRACING_SAMPLE_RATIO", "7")
	if cfg := TracingConfigFromEnv(); cfg.SampleRatio != 1 {
		t.Fatalf("sample ratio = %v, want fallback 1", cfg.SampleRatio)
	}
}

func TestInitTracingDisabled(t *testing.T) {
	resetTracerProvider(t)
	shutdown, err := InitTracing(context.Background(), TracingConfig{}, nil)
	if err != nil {
		t.Fatalf("InitTracing: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}

func TestInitTracingStdoutExportsSpans(t *testing.T) {
	resetTracerProvider(t)
	var buf bytes.Buffer
	ctx := context.Background()

	shutdown, err := InitTracing(ctx, TracingConfig{
		Enabled:     true,
		ServiceName: "leosim-test",
		Exporter:    "stdout",
		SampleRatio: 1,
		RunID:       "run-42",
		GridRows:    5,
		GridCols:    6,
		Writer:      &buf,
	}, nil)
	if err != nil {
		t.Fatalf("InitTracing: %v", err)
	}

	_, span := otel.Tracer("test").Start(ctx, "simulation.slot")
	span.End()
	ShutdownWithTimeout(ctx, shutdown, nil)

	if !strings.Contains(buf.String(), "simulation.slot") {
		t.Fatalf("exported spans missing slot span: %s", buf.String())
	}
	for _, want := range []string{"leosim.run_id", "run-42", "leosim.grid.regions"} {
		if !strings.Contains(buf.String(), want) {
			t.Fatalf("exported resource missing %q: %s", want, buf.String())
		}
	}
}

func TestResourceAttributesTagRun(t *testing.T) {
	base := TracingConfig{ServiceName: "leosim-test"}
	if got := len(resourceAttributes(base)); got != 2 {
		t.Fatalf("untagged config yields %d attributes, want 2", got)
	}

	attrs := map[string]attribute.Value{}
	for _, kv := range resourceAttributes(base.ForRun("abc", 5, 6)) {
		attrs[string(kv.Key)] = kv.Value
	}
	if attrs["leosim.run_id"].AsString() != "abc" {
		t.Fatalf("run id attribute = %v", attrs["leosim.run_id"])
	}
	if attrs["leosim.grid.rows"].AsInt64() != 5 || attrs["leosim.grid.cols"].AsInt64() != 6 {
		t.Fatalf("grid attributes = %v, %v", attrs["leosim.grid.rows"], attrs["leosim.grid.cols"])
	}
	if attrs["leosim.grid.regions"].AsInt64() != 30 {
		t.Fatalf("regions attribute = %v, want 30", attrs["leosim.grid.regions"])
	}
}

func TestInitTracingUnknownExporter(t *testing.T) {
	resetTracerProvider(t)
	_, err := InitTracing(context.Background(), TracingConfig{Enabled: true, Exporter: "zipkin"}, nil)
	if err == nil {
		t.Fatalf("expected error for unsupported exporter")
	}
}
