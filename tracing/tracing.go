// Package tracing configures OpenTelemetry span export and instruments
// incoming HTTP requests with server spans.
package tracing

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// DefaultServiceName is reported when Options.ServiceName is empty.
const DefaultServiceName = "xupload"

// Options controls tracing initialization.
type Options struct {
	Enabled     bool    `mapstructure:"enabled" yaml:"enabled"`
	Endpoint    string  `mapstructure:"endpoint" yaml:"endpoint"`                                      // OTLP collector, host:port or URL
	Protocol    string  `mapstructure:"protocol" yaml:"protocol" validate:"omitempty,oneof=grpc http"` // "grpc" (default) or "http"
	SampleRatio float64 `mapstructure:"sample_ratio" yaml:"sample_ratio" validate:"min=0,max=1"`
	ServiceName string  `mapstructure:"service_name" yaml:"service_name"`
}

// Init configures the global tracer provider and propagator.
// The returned function flushes pending spans and must be called on shutdown.
func Init(ctx context.Context, opt Options) (func(context.Context) error, error) {
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{}, propagation.Baggage{},
	))

	if !opt.Enabled {
		otel.SetTracerProvider(noop.NewTracerProvider())
		return func(context.Context) error { return nil }, nil
	}

	svc := strings.TrimSpace(opt.ServiceName)
	if svc == "" {
		svc = DefaultServiceName
	}
	res, err := resource.New(ctx,
		resource.WithProcess(),
		resource.WithHost(),
		resource.WithAttributes(attribute.String("service.name", svc)),
	)
	if err != nil {
		slog.Warn("tracing: resource init failed", "err", err)
		res = resource.Empty()
	}

	exp, err := newExporter(ctx, opt)
	if err != nil {
		return nil, err
	}

	opts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
		sdktrace.WithSampler(Sampler(opt.SampleRatio)),
	}
	if exp != nil {
		opts = append(opts, sdktrace.WithBatcher(exp,
			sdktrace.WithBatchTimeout(5*time.Second),
			sdktrace.WithMaxExportBatchSize(512),
		))
	} else {
		slog.Info("tracing: enabled without endpoint; spans will not be exported")
	}

	tp := sdktrace.NewTracerProvider(opts...)
	otel.SetTracerProvider(tp)

	return tp.Shutdown, nil
}

func newExporter(ctx context.Context, opt Options) (sdktrace.SpanExporter, error) {
	endpoint := strings.TrimSpace(opt.Endpoint)
	if endpoint == "" {
		return nil, nil
	}

	switch strings.ToLower(strings.TrimSpace(opt.Protocol)) {
	case "http":
		httpOpts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(stripScheme(endpoint))}
		if isInsecure(endpoint) {
			httpOpts = append(httpOpts, otlptracehttp.WithInsecure())
		}
		return otlptracehttp.New(ctx, httpOpts...)
	default:
		grpcOpts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(stripScheme(endpoint))}
		if isInsecure(endpoint) {
			grpcOpts = append(grpcOpts, otlptracegrpc.WithInsecure())
		}
		return otlptracegrpc.New(ctx, grpcOpts...)
	}
}

// Sampler maps a ratio onto a sampler. Ratios at or above one sample
// everything, at or below zero nothing.
func Sampler(ratio float64) sdktrace.Sampler {
	switch {
	case ratio >= 1.0:
		return sdktrace.AlwaysSample()
	case ratio <= 0:
		return sdktrace.NeverSample()
	default:
		return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))
	}
}

// Middleware starts a server span per request, continuing a trace passed in
// by the client. Object paths are recorded as the http.target attribute, the
// span name only carries the method so that uploads do not explode
// cardinality.
func Middleware(next http.Handler) http.Handler {
	tracer := otel.Tracer("github.com/sagarc03/xupload/http")
	propagator := otel.GetTextMapPropagator()

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := propagator.Extract(r.Context(), propagation.HeaderCarrier(r.Header))
		ctx, span := tracer.Start(ctx, "HTTP "+r.Method, trace.WithSpanKind(trace.SpanKindServer))
		defer span.End()

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r.WithContext(ctx))

		span.SetAttributes(
			attribute.String("http.method", r.Method),
			attribute.String("http.target", r.URL.Path),
			attribute.Int("http.status_code", rec.status),
			attribute.Int64("http.request_content_length", r.ContentLength),
			attribute.String("user_agent.original", r.UserAgent()),
		)
		if rec.status >= http.StatusInternalServerError {
			span.SetStatus(codes.Error, http.StatusText(rec.status))
		}
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// isInsecure decides whether to use plaintext transport based on endpoint hints.
func isInsecure(endpoint string) bool {
	ep := strings.ToLower(endpoint)
	if strings.HasPrefix(ep, "http://") {
		return true
	}
	return strings.Contains(ep, "localhost") || strings.Contains(ep, "127.0.0.1")
}

func stripScheme(endpoint string) string {
	lower := strings.ToLower(endpoint)
	for _, scheme := range []string{"http://", "https://"} {
		if strings.HasPrefix(lower, scheme) {
			return endpoint[len(scheme):]
		}
	}
	return endpoint
}
