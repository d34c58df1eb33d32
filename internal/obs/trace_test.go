package obs

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel"
)

func TestInitTracingWithoutEndpointIsNoop(t *testing.T) {
	before := otel.GetTracerProvider()
	shutdown, err := InitTracing(context.Background(), TracingOptions{ServiceName: "test"})
	if err != nil {
		t.Fatalf("InitTracing: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	if otel.GetTracerProvider() != before {
		t.Fatal("tracer provider replaced without an endpoint")
	}
}
