// Package observability provides tracing for scan runs. Spans cover
// the scan phases (connect, unit listing, per-unit streaming) so slow
// sources can be diagnosed without reading debug logs. Logging lives
// in pkg/logger and Prometheus metrics in pkg/metrics.
package observability

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	sdkresource "go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
)

var (
	// Global tracer instance
	tracer trace.Tracer

	// Initialization lock
	initOnce sync.Once
)

// TracingConfig contains tracing configuration
type TracingConfig struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	SamplingRate   float64
	ExporterType   string // "stdout"
	BatchTimeout   time.Duration
	MaxExportBatch int
	MaxQueueSize   int
}

// DefaultTracingConfig returns a default tracing configuration
func DefaultTracingConfig() TracingConfig {
	return TracingConfig{
		ServiceName:    "sleuth",
		ServiceVersion: "1.0.0",
		Environment:    "development",
		SamplingRate:   0.1,
		ExporterType:   "stdout",
		BatchTimeout:   5 * time.Second,
		MaxExportBatch: 512,
		MaxQueueSize:   2048,
	}
}

// Initialize sets up the tracing provider. Safe to call more than
// once; only the first call takes effect.
func Initialize(config TracingConfig) error {
	var err error

	initOnce.Do(func() {
		err = initTracing(config)
		if err != nil {
			return
		}

		otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
			propagation.TraceContext{},
			propagation.Baggage{},
		))
	})

	return err
}

// initTracing initializes the tracing provider
func initTracing(config TracingConfig) error {
	res, err := sdkresource.New(context.Background(),
		sdkresource.WithAttributes(
			semconv.ServiceNameKey.String(config.ServiceName),
			semconv.ServiceVersionKey.String(config.ServiceVersion),
			semconv.DeploymentEnvironmentKey.String(config.Environment),
		),
	)
	if err != nil {
		return fmt.Errorf("failed to create resource: %w", err)
	}

	// stdout is the only exporter wired today; spans are a debugging
	// aid for slow sources, not a production telemetry path
	exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
	if err != nil {
		return fmt.Errorf("failed to create stdout exporter: %w", err)
	}

	var sampler sdktrace.Sampler
	if config.SamplingRate <= 0 {
		sampler = sdktrace.NeverSample()
	} else if config.SamplingRate >= 1.0 {
		sampler = sdktrace.AlwaysSample()
	} else {
		sampler = sdktrace.TraceIDRatioBased(config.SamplingRate)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler),
		sdktrace.WithBatcher(exporter,
			sdktrace.WithBatchTimeout(config.BatchTimeout),
			sdktrace.WithMaxExportBatchSize(config.MaxExportBatch),
			sdktrace.WithMaxQueueSize(config.MaxQueueSize),
		),
	)

	otel.SetTracerProvider(tp)

	tracer = tp.Tracer(config.ServiceName)

	return nil
}

// Tracer returns the global tracer. Before Initialize it returns a
// no-op tracer so instrumented code works without setup.
func Tracer() trace.Tracer {
	if tracer == nil {
		return otel.Tracer("sleuth")
	}
	return tracer
}

// Shutdown flushes and stops the tracing provider
func Shutdown(ctx context.Context) error {
	if tp, ok := otel.GetTracerProvider().(*sdktrace.TracerProvider); ok {
		if err := tp.Shutdown(ctx); err != nil {
			return fmt.Errorf("failed to shutdown tracer: %w", err)
		}
	}
	return nil
}

// Span wraps a trace span and batches attribute writes until End
type Span struct {
	span       trace.Span
	startTime  time.Time
	attributes []attribute.KeyValue
}

// NewSpan creates a new span under the global tracer
func NewSpan(ctx context.Context, operationName string) (context.Context, *Span) {
	ctx, span := Tracer().Start(ctx, operationName)

	return ctx, &Span{
		span:      span,
		startTime: time.Now(),
	}
}

// SetAttribute adds an attribute to the span (batched until End)
func (s *Span) SetAttribute(key string, value interface{}) {
	var attr attribute.KeyValue

	switch v := value.(type) {
	case string:
		attr = attribute.String(key, v)
	case int:
		attr = attribute.Int(key, v)
	case int64:
		attr = attribute.Int64(key, v)
	case float64:
		attr = attribute.Float64(key, v)
	case bool:
		attr = attribute.Bool(key, v)
	default:
		attr = attribute.String(key, fmt.Sprintf("%v", v))
	}

	s.attributes = append(s.attributes, attr)
}

// AddEvent adds an event to the span
func (s *Span) AddEvent(name string, attrs ...attribute.KeyValue) {
	s.span.AddEvent(name, trace.WithAttributes(attrs...))
}

// SetStatus sets the span status
func (s *Span) SetStatus(code codes.Code, description string) {
	s.span.SetStatus(code, description)
}

// End flushes batched attributes and ends the span
func (s *Span) End() {
	if len(s.attributes) > 0 {
		s.span.SetAttributes(s.attributes...)
	}
	s.span.End()
}

// ScanTracer provides scan-specific tracing utilities. Each scan run
// creates one and threads it through the coordinator.
type ScanTracer struct {
	adapter string
	scanID  string
}

// NewScanTracer creates a tracer for one scan run
func NewScanTracer(adapter, scanID string) *ScanTracer {
	return &ScanTracer{
		adapter: adapter,
		scanID:  scanID,
	}
}

// StartSpan starts a span named after the adapter and operation
func (st *ScanTracer) StartSpan(ctx context.Context, operation string) (context.Context, *Span) {
	ctx, span := NewSpan(ctx, fmt.Sprintf("%s.%s", st.adapter, operation))

	span.SetAttribute("scan.adapter", st.adapter)
	span.SetAttribute("scan.id", st.scanID)
	span.SetAttribute("scan.operation", operation)

	return ctx, span
}

// TraceUnit runs fn inside a span covering one unit scan
func (st *ScanTracer) TraceUnit(ctx context.Context, unit string, fn func(context.Context) error) error {
	ctx, span := st.StartSpan(ctx, "scan_unit")
	defer span.End()

	span.SetAttribute("scan.unit", unit)

	err := fn(ctx)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.SetAttribute("error", true)
	} else {
		span.SetStatus(codes.Ok, "")
	}

	return err
}

// TraceBatch runs fn inside a span covering one batch
func (st *ScanTracer) TraceBatch(ctx context.Context, unit string, batchSize int, fn func(context.Context) error) error {
	ctx, span := st.StartSpan(ctx, "scan_batch")
	defer span.End()

	span.SetAttribute("scan.unit", unit)
	span.SetAttribute("batch.size", batchSize)

	err := fn(ctx)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.SetAttribute("error", true)
	} else {
		span.SetStatus(codes.Ok, "")
	}

	return err
}
