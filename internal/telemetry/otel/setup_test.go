package otel

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func TestNewProviders_EmptyEndpoint(t *testing.T) {
	ctx := context.Background()
	for _, endpoint := range []string{"", "   "} {
		providers, err := NewProviders(ctx, Config{Endpoint: endpoint, ServiceName: "chatdesk-test"})
		if err != nil {
			t.Fatalf("NewProviders(%q): %v", endpoint, err)
		}
		if providers.TracerProvider == nil || providers.MeterProvider == nil || providers.LoggerProvider == nil {
			t.Fatalf("NewProviders(%q) left a provider nil", endpoint)
		}
		if err := providers.Shutdown(ctx); err != nil {
			t.Errorf("Shutdown: %v", err)
		}
	}
}

func TestParseEndpoint(t *testing.T) {
	testCases := []struct {
		name     string
		endpoint string
		insecure bool
		want     Target
	}{
		{"bare host", "collector:4317", false, Target{"collector:4317", true}},
		{"http", "http://collector:4317", false, Target{"collector:4317", true}},
		{"https", "https://collector:4317", false, Target{"collector:4317", false}},
		{"https forced insecure", "https://collector:4317", true, Target{"collector:4317", true}},
		{"path dropped", "http://collector:4317/v1/traces", false, Target{"collector:4317", true}},
		{"surrounding space", "  collector:4317 ", false, Target{"collector:4317", true}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseEndpoint(tc.endpoint, tc.insecure)
			if err != nil {
				t.Fatalf("ParseEndpoint: %v", err)
			}
			if got != tc.want {
				t.Errorf("ParseEndpoint = %+v, want %+v", got, tc.want)
			}
		})
	}
}

func TestParseEndpoint_Invalid(t *testing.T) {
	for _, endpoint := range []string{"http://", "http://[invalid", "://"} {
		if _, err := ParseEndpoint(endpoint, false); err == nil {
			t.Errorf("ParseEndpoint(%q) should fail", endpoint)
		}
	}
}

func TestNewProviders_InvalidEndpoint(t *testing.T) {
	providers, err := NewProviders(context.Background(), Config{Endpoint: "http://", ServiceName: "chatdesk-test"})
	if err == nil {
		t.Fatal("NewProviders should reject an endpoint without host")
	}
	if providers != nil {
		t.Error("providers should be nil on error")
	}
}

func TestNewProviders_WithEndpoint(t *testing.T) {
	ctx := context.Background()
	// Exporters dial lazily, so construction succeeds without a collector.
	providers, err := NewProviders(ctx, Config{Endpoint: "localhost:4317", ServiceName: "chatdesk-test"})
	if err != nil {
		t.Fatalf("NewProviders: %v", err)
	}
	if providers.TracerProvider == nil || providers.MeterProvider == nil || providers.LoggerProvider == nil {
		t.Fatal("NewProviders left a provider nil")
	}
	shutdownCtx, cancel := context.WithCancel(ctx)
	cancel()
	_ = providers.Shutdown(shutdownCtx)
}

func TestSetGlobal(t *testing.T) {
	prev := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	tp := sdktrace.NewTracerProvider()
	(&Providers{TracerProvider: tp}).SetGlobal()
	if otel.GetTracerProvider() != tp {
		t.Error("global tracer provider was not set")
	}
	if otel.GetTextMapPropagator() == nil {
		t.Error("propagator should be set")
	}

	(&Providers{}).SetGlobal()
	if otel.GetTracerProvider() != tp {
		t.Error("nil providers should leave the globals alone")
	}
}
