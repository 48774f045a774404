package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"goa.design/clue/log"
)

type (
	// ClueLogger delegates to goa.design/clue/log. Formatting and debug
	// settings are read from the context (log.Context, log.WithFormat,
	// log.WithDebug).
	ClueLogger struct{}

	// ClueMetrics delegates to the global OTEL MeterProvider.
	ClueMetrics struct {
		meter metric.Meter
	}

	// ClueTracer delegates to the global OTEL TracerProvider.
	ClueTracer struct {
		tracer trace.Tracer
	}

	clueSpan struct {
		span trace.Span
	}
)

// NewClueLogger constructs a Logger backed by goa.design/clue/log.
func NewClueLogger() Logger { return ClueLogger{} }

// NewClueMetrics constructs a Metrics recorder backed by OTEL metrics.
func NewClueMetrics() Metrics {
	return &ClueMetrics{meter: otel.Meter("github.com/xLillium/rip")}
}

// NewClueTracer constructs a Tracer backed by OTEL tracing.
func NewClueTracer() Tracer {
	return &ClueTracer{tracer: otel.Tracer("github.com/xLillium/rip")}
}

func (ClueLogger) Debug(ctx context.Context, msg string, keyvals ...any) {
	log.Debug(ctx, append([]log.Fielder{log.KV{K: "msg", V: msg}}, kvToClue(keyvals)...)...)
}

func (ClueLogger) Info(ctx context.Context, msg string, keyvals ...any) {
	log.Info(ctx, append([]log.Fielder{log.KV{K: "msg", V: msg}}, kvToClue(keyvals)...)...)
}

func (ClueLogger) Warn(ctx context.Context, msg string, keyvals ...any) {
	fielders := []log.Fielder{log.KV{K: "msg", V: msg}, log.KV{K: "severity", V: "warning"}}
	log.Warn(ctx, append(fielders, kvToClue(keyvals)...)...)
}

func (ClueLogger) Error(ctx context.Context, msg string, keyvals ...any) {
	log.Error(ctx, nil, append([]log.Fielder{log.KV{K: "msg", V: msg}}, kvToClue(keyvals)...)...)
}

func (m *ClueMetrics) IncCounter(name string, value float64, tags ...string) {
	counter, err := m.meter.Float64Counter(name)
	if err != nil {
		return
	}
	counter.Add(context.Background(), value, metric.WithAttributes(tagsToAttrs(tags)...))
}

func (m *ClueMetrics) RecordTimer(name string, duration time.Duration, tags ...string) {
	histogram, err := m.meter.Float64Histogram(name)
	if err != nil {
		return
	}
	histogram.Record(context.Background(), duration.Seconds(), metric.WithAttributes(tagsToAttrs(tags)...))
}

func (m *ClueMetrics) RecordGauge(name string, value float64, tags ...string) {
	histogram, err := m.meter.Float64Histogram(name + "_gauge")
	if err != nil {
		return
	}
	histogram.Record(context.Background(), value, metric.WithAttributes(tagsToAttrs(tags)...))
}

func (t *ClueTracer) Start(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, Span) {
	newCtx, span := t.tracer.Start(ctx, name, opts...)
	return newCtx, &clueSpan{span: span}
}

func (t *ClueTracer) Span(ctx context.Context) Span {
	return &clueSpan{span: trace.SpanFromContext(ctx)}
}

func (s *clueSpan) End(opts ...trace.SpanEndOption)                  { s.span.End(opts...) }
func (s *clueSpan) SetStatus(code codes.Code, description string)    { s.span.SetStatus(code, description) }
func (s *clueSpan) RecordError(err error, opts ...trace.EventOption) { s.span.RecordError(err, opts...) }

func (s *clueSpan) AddEvent(name string, attrs ...any) {
	s.span.AddEvent(name, trace.WithAttributes(kvToAttrs(attrs)...))
}

func kvToClue(keyvals []any) []log.Fielder {
	var fielders []log.Fielder
	for i := 0; i < len(keyvals); i += 2 {
		key, ok := keyvals[i].(string)
		if !ok {
			continue
		}
		var v any
		if i+1 < len(keyvals) {
			v = keyvals[i+1]
		}
		fielders = append(fielders, log.KV{K: key, V: v})
	}
	return fielders
}

func tagsToAttrs(tags []string) []attribute.KeyValue {
	var attrs []attribute.KeyValue
	for i := 0; i < len(tags); i += 2 {
		v := ""
		if i+1 < len(tags) {
			v = tags[i+1]
		}
		attrs = append(attrs, attribute.String(tags[i], v))
	}
	return attrs
}

func kvToAttrs(keyvals []any) []attribute.KeyValue {
	var attrs []attribute.KeyValue
	for i := 0; i < len(keyvals); i += 2 {
		key, _ := keyvals[i].(string)
		var v any
		if i+1 < len(keyvals) {
			v = keyvals[i+1]
		}
		switch val := v.(type) {
		case string:
			attrs = append(attrs, attribute.String(key, val))
		case int:
			attrs = append(attrs, attribute.Int(key, val))
		case int64:
			attrs = append(attrs, attribute.Int64(key, val))
		case float64:
			attrs = append(attrs, attribute.Float64(key, val))
		case bool:
			attrs = append(attrs, attribute.Bool(key, val))
		default:
			attrs = append(attrs, attribute.String(key, ""))
		}
	}
	return attrs
}
