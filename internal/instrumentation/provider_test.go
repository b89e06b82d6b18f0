package instrumentation

import (
	"context"
	"testing"
	"time"
)

func TestNewProvider_Disabled(t *testing.T) {
	provider, err := NewProvider(context.Background(), Config{
		ServiceName:    "test-service",
		ServiceVersion: "1.0.0",
		Enabled:        false,
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if provider.Enabled() {
		t.Error("expected provider to be disabled")
	}
	if provider.Metrics() == nil {
		t.Error("expected metrics to be non-nil even when disabled")
	}
	if provider.ServesPrometheus() {
		t.Error("disabled provider must not serve prometheus")
	}
	if provider.Tracer("test") == nil {
		t.Error("expected a no-op tracer")
	}
	if err := provider.Shutdown(context.Background()); err != nil {
		t.Errorf("expected no error on shutdown, got %v", err)
	}
}

func TestNewProvider_Exporters(t *testing.T) {
	tests := []struct {
		name            string
		metricsExporter string
		tracingExporter string
		wantPrometheus  bool
	}{
		{"prometheus", ExporterPrometheus, ExporterNone, true},
		{"stdout", ExporterStdout, ExporterStdout, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			provider, err := NewProvider(ctx, Config{
				ServiceName:     "test-service",
				ServiceVersion:  "1.0.0",
				Enabled:         true,
				MetricsExporter: tt.metricsExporter,
				TracingExporter: tt.tracingExporter,
			})
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			defer func() { _ = provider.Shutdown(ctx) }()

			if !provider.Enabled() {
				t.Error("expected provider to be enabled")
			}
			if provider.ServesPrometheus() != tt.wantPrometheus {
				t.Errorf("ServesPrometheus() = %v, want %v", provider.ServesPrometheus(), tt.wantPrometheus)
			}
			if provider.Config().ServiceName != "test-service" {
				t.Errorf("unexpected config service name %q", provider.Config().ServiceName)
			}
		})
	}
}

func TestNewProvider_InvalidConfig(t *testing.T) {
	tests := []struct {
		name   string
		config Config
	}{
		{"invalid metrics exporter", Config{Enabled: true, MetricsExporter: "invalid", TracingExporter: ExporterNone}},
		{"invalid tracing exporter", Config{Enabled: true, MetricsExporter: ExporterPrometheus, TracingExporter: "invalid"}},
		{"otlp tracing without endpoint", Config{Enabled: true, MetricsExporter: ExporterPrometheus, TracingExporter: ExporterOTLP}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			tt.config.ServiceName = "test-service"
			if _, err := NewProvider(ctx, tt.config); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestNewResource_InstanceID(t *testing.T) {
	res, err := newResource(context.Background(), Config{
		ServiceName:       "dida365-mcp",
		ServiceVersion:    "1.0.0",
		ServiceInstanceID: "pod-1",
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	got := map[string]string{}
	for _, kv := range res.Attributes() {
		got[string(kv.Key)] = kv.Value.Emit()
	}
	if got["service.name"] != "dida365-mcp" {
		t.Errorf("service.name = %q", got["service.name"])
	}
	if got["service.instance.id"] != "pod-1" {
		t.Errorf("service.instance.id = %q", got["service.instance.id"])
	}
}

func TestNewMetricReader_PrometheusIsReturnedSeparately(t *testing.T) {
	reader, prom, err := newMetricReader(context.Background(), Config{MetricsExporter: ExporterStdout})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if reader == nil || prom != nil {
		t.Fatalf("stdout exporter: reader=%v prometheus=%v", reader, prom)
	}
	_ = reader.Shutdown(context.Background())

	if _, _, err := newMetricReader(context.Background(), Config{MetricsExporter: ExporterOTLP}); err == nil {
		t.Error("expected an error for OTLP without endpoint")
	}
}
