// Copyright © 2025 jackelyj <dreamerlyj@gmail.com>
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE.
//

package tracing

import (
	"context"
	"fmt"
	"io"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	oteltrace "go.opentelemetry.io/otel/trace"
)

// TracingManager defines the interface for tracing management
type TracingManager interface {
	// Initialize initializes the tracer with the given configuration
	Initialize(ctx context.Context, config *TracingConfig) error

	// StartSpan creates a new span with the given operation name
	StartSpan(ctx context.Context, operationName string, opts ...SpanOption) (context.Context, Span)

	// Shutdown flushes pending spans and releases the exporter
	Shutdown(ctx context.Context) error
}

// Span defines the interface for a tracing span
type Span interface {
	SetAttribute(key string, value interface{})
	AddEvent(name string, opts ...oteltrace.EventOption)
	SetStatus(code codes.Code, description string)
	RecordError(err error, opts ...oteltrace.EventOption)
	End(opts ...oteltrace.SpanEndOption)
	SpanContext() oteltrace.SpanContext
}

// SpanOption configures a span at start.
type SpanOption func(*spanConfig)

type spanConfig struct {
	spanKind   oteltrace.SpanKind
	attributes []attribute.KeyValue
}

// WithSpanKind sets the span kind
func WithSpanKind(kind oteltrace.SpanKind) SpanOption {
	return func(c *spanConfig) {
		c.spanKind = kind
	}
}

// WithAttributes sets initial span attributes
func WithAttributes(attrs ...attribute.KeyValue) SpanOption {
	return func(c *spanConfig) {
		c.attributes = append(c.attributes, attrs...)
	}
}

type tracingManager struct {
	mu       sync.RWMutex
	provider *trace.TracerProvider
	tracer   oteltrace.Tracer
	writer   io.Writer
}

// NewTracingManager creates a tracing manager. Until Initialize is called every span is a no-op.
func NewTracingManager() TracingManager {
	return &tracingManager{}
}

// NewTracingManagerWithWriter creates a tracing manager whose console exporter writes to w.
func NewTracingManagerWithWriter(w io.Writer) TracingManager {
	return &tracingManager{writer: w}
}

// Initialize initializes the tracer with the given configuration
func (tm *tracingManager) Initialize(ctx context.Context, config *TracingConfig) error {
	if config == nil {
		return fmt.Errorf("tracing config cannot be nil")
	}
	if err := config.Validate(); err != nil {
		return fmt.Errorf("invalid tracing config: %w", err)
	}

	tm.mu.Lock()
	defer tm.mu.Unlock()

	if !config.Enabled {
		tm.tracer = otel.Tracer(config.ServiceName)
		return nil
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(semconv.SchemaURL, semconv.ServiceName(config.ServiceName)),
	)
	if err != nil {
		return fmt.Errorf("failed to create resource: %w", err)
	}

	exporter, err := newSpanExporter(ctx, config, tm.writer)
	if err != nil {
		return fmt.Errorf("failed to create exporter: %w", err)
	}

	var processor trace.SpanProcessor
	if config.Exporter == ExporterConsole {
		processor = trace.NewSimpleSpanProcessor(exporter)
	} else {
		processor = trace.NewBatchSpanProcessor(exporter)
	}

	tm.provider = trace.NewTracerProvider(
		trace.WithResource(res),
		trace.WithSpanProcessor(processor),
		trace.WithSampler(trace.ParentBased(trace.TraceIDRatioBased(config.SamplingRate))),
	)
	otel.SetTracerProvider(tm.provider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))
	tm.tracer = tm.provider.Tracer(config.ServiceName)
	return nil
}

// StartSpan creates a new span with the given operation name
func (tm *tracingManager) StartSpan(ctx context.Context, operationName string, opts ...SpanOption) (context.Context, Span) {
	tm.mu.RLock()
	tracer := tm.tracer
	tm.mu.RUnlock()
	if tracer == nil {
		return ctx, noOpSpan{}
	}

	config := &spanConfig{spanKind: oteltrace.SpanKindInternal}
	for _, opt := range opts {
		opt(config)
	}

	spanOpts := []oteltrace.SpanStartOption{oteltrace.WithSpanKind(config.spanKind)}
	if len(config.attributes) > 0 {
		spanOpts = append(spanOpts, oteltrace.WithAttributes(config.attributes...))
	}

	ctx, otelSpan := tracer.Start(ctx, operationName, spanOpts...)
	return ctx, &spanWrapper{span: otelSpan}
}

// Shutdown flushes pending spans and releases the exporter
func (tm *tracingManager) Shutdown(ctx context.Context) error {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	if tm.provider == nil {
		return nil
	}
	err := tm.provider.Shutdown(ctx)
	tm.provider = nil
	tm.tracer = nil
	return err
}

type spanWrapper struct {
	span oteltrace.Span
}

func (s *spanWrapper) SetAttribute(key string, value interface{}) {
	switch v := value.(type) {
	case string:
		s.span.SetAttributes(attribute.String(key, v))
	case int:
		s.span.SetAttributes(attribute.Int(key, v))
	case int64:
		s.span.SetAttributes(attribute.Int64(key, v))
	case float64:
		s.span.SetAttributes(attribute.Float64(key, v))
	case bool:
		s.span.SetAttributes(attribute.Bool(key, v))
	default:
		s.span.SetAttributes(attribute.String(key, fmt.Sprintf("%v", v)))
	}
}

func (s *spanWrapper) AddEvent(name string, opts ...oteltrace.EventOption) {
	s.span.AddEvent(name, opts...)
}

func (s *spanWrapper) SetStatus(code codes.Code, description string) {
	s.span.SetStatus(code, description)
}

func (s *spanWrapper) RecordError(err error, opts ...oteltrace.EventOption) {
	s.span.RecordError(err, opts...)
}

func (s *spanWrapper) End(opts ...oteltrace.SpanEndOption) {
	s.span.End(opts...)
}

func (s *spanWrapper) SpanContext() oteltrace.SpanContext {
	return s.span.SpanContext()
}

type noOpSpan struct{}

func (noOpSpan) SetAttribute(string, interface{}) {}

func (noOpSpan) AddEvent(string, ...oteltrace.EventOption) {}

func (noOpSpan) SetStatus(codes.Code, string) {}

func (noOpSpan) RecordError(error, ...oteltrace.EventOption) {}

func (noOpSpan) End(...oteltrace.SpanEndOption) {}

func (noOpSpan) SpanContext() oteltrace.SpanContext { return oteltrace.SpanContext{} }
