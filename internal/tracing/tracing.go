package tracing

import (
	"context"
	"fmt"
	"io"

	"github.com/opentracing/opentracing-go"
	"github.com/uber/jaeger-client-go"
	jaegercfg "github.com/uber/jaeger-client-go/config"

	"github.com/therealutkarshpriyadarshi/liturgia/internal/config"
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// InitTracer initializes the Jaeger tracer. When tracing is disabled the
// global no-op tracer is kept and a no-op closer returned.
func InitTracer(cfg config.TracingConfig) (opentracing.Tracer, io.Closer, error) {
	if !cfg.Enabled {
		return opentracing.GlobalTracer(), nopCloser{}, nil
	}

	sampleRate := cfg.SampleRate
	samplerType := jaeger.SamplerTypeProbabilistic
	if sampleRate >= 1 {
		samplerType = jaeger.SamplerTypeConst
		sampleRate = 1
	}

	jcfg := &jaegercfg.Configuration{
		ServiceName: cfg.ServiceName,
		Sampler: &jaegercfg.SamplerConfig{
			Type:  samplerType,
			Param: sampleRate,
		},
		Reporter: &jaegercfg.ReporterConfig{
			LogSpans:           false,
			LocalAgentHostPort: fmt.Sprintf("%s:%d", cfg.AgentHost, cfg.AgentPort),
		},
	}

	tracer, closer, err := jcfg.NewTracer()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize tracer: %w", err)
	}

	opentracing.SetGlobalTracer(tracer)
	return tracer, closer, nil
}

// StartSpan starts a new span with the given operation name
func StartSpan(ctx context.Context, operationName string) (opentracing.Span, context.Context) {
	span, ctx := opentracing.StartSpanFromContext(ctx, operationName)
	return span, ctx
}

// FinishSpan finishes a span
func FinishSpan(span opentracing.Span) {
	if span != nil {
		span.Finish()
	}
}

// LogError logs an error to the span
func LogError(span opentracing.Span, err error) {
	if span != nil && err != nil {
		span.SetTag("error", true)
		span.LogKV("error", err.Error())
	}
}

// SetTag sets a tag on the span
func SetTag(span opentracing.Span, key string, value interface{}) {
	if span != nil {
		span.SetTag(key, value)
	}
}
