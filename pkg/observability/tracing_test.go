package observability

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestInitializeAndShutdown(t *testing.T) {
	config := TracingConfig{
		ServiceName:    "test-sleuth",
		ServiceVersion: "1.0.0-test",
		Environment:    "test",
		SamplingRate:   1.0, // Sample everything for tests
		ExporterType:   "stdout",
		BatchTimeout:   1 * time.Second,
		MaxExportBatch: 100,
		MaxQueueSize:   1000,
	}

	if err := Initialize(config); err != nil {
		t.Fatalf("Failed to initialize tracing: %v", err)
	}

	// Second call is a no-op
	if err := Initialize(config); err != nil {
		t.Fatalf("Re-initialize returned error: %v", err)
	}

	ctx, span := NewSpan(context.Background(), "test_operation")
	span.SetAttribute("test.key", "value")
	span.SetAttribute("test.count", 42)
	span.End()

	if ctx == nil {
		t.Fatal("NewSpan returned nil context")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := Shutdown(shutdownCtx); err != nil {
		t.Fatalf("Shutdown failed: %v", err)
	}
}

func TestScanTracerTraceUnit(t *testing.T) {
	st := NewScanTracer("postgres", "scan-123")

	err := st.TraceUnit(context.Background(), "public.users", func(ctx context.Context) error {
		return nil
	})
	if err != nil {
		t.Fatalf("TraceUnit returned unexpected error: %v", err)
	}

	wantErr := errors.New("query failed")
	err = st.TraceUnit(context.Background(), "public.orders", func(ctx context.Context) error {
		return wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("TraceUnit swallowed the error: got %v", err)
	}
}

func TestScanTracerTraceBatch(t *testing.T) {
	st := NewScanTracer("mysql", "scan-456")

	var sawCtx bool
	err := st.TraceBatch(context.Background(), "shop.customers", 10000, func(ctx context.Context) error {
		sawCtx = ctx != nil
		return nil
	})
	if err != nil {
		t.Fatalf("TraceBatch returned unexpected error: %v", err)
	}
	if !sawCtx {
		t.Fatal("TraceBatch did not pass a context to fn")
	}
}
