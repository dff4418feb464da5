// Package tracing устанавливает OpenTelemetry SDK: provider span-ов с
// экспортом в OTLP/HTTP коллектор и W3C-пропагацию контекста.
package tracing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// DefaultServiceName — service.name в ресурсе трасс.
const DefaultServiceName = "ims-inventory-service"

const (
	exportTimeout = 10 * time.Second
	maxQueueSize  = 2048
)

// Config описывает экспорт трасс.
type Config struct {
	// Endpoint — host:port коллектора OTLP/HTTP. Пустое значение выключает SDK.
	Endpoint string
	// URLPath переопределяет путь /v1/traces.
	URLPath  string
	Insecure bool

	ServiceName    string
	ServiceVersion string

	// SampleRatio — доля корневых трасс, попадающих в выборку, от 0 до 1.
	SampleRatio float64
}

// Enabled сообщает, нужно ли устанавливать SDK.
func (c Config) Enabled() bool {
	return strings.TrimSpace(c.Endpoint) != ""
}

// Validate проверяет долю выборки.
func (c Config) Validate() error {
	if c.SampleRatio < 0 || c.SampleRatio > 1 {
		return fmt.Errorf("trace sample ratio must be within [0, 1], got %v", c.SampleRatio)
	}
	return nil
}

// ShutdownFunc сбрасывает буфер span-ов и останавливает экспорт.
type ShutdownFunc func(context.Context) error

func noopShutdown(context.Context) error { return nil }

// Setup устанавливает глобальный TracerProvider и пропагатор. При выключенной
// трассировке возвращает nil provider: глобальный provider остаётся no-op.
func Setup(ctx context.Context, cfg Config, logger *log.Entry) (*sdktrace.TracerProvider, ShutdownFunc, error) {
	if logger == nil {
		logger = log.WithField("component", "tracing")
	}
	if !cfg.Enabled() {
		logger.Debug("tracing disabled: no collector endpoint")
		return nil, noopShutdown, nil
	}
	if err := cfg.Validate(); err != nil {
		return nil, noopShutdown, err
	}

	opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(cfg.Endpoint)}
	if cfg.URLPath != "" {
		opts = append(opts, otlptracehttp.WithURLPath(cfg.URLPath))
	}
	if cfg.Insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}
	exporter, err := otlptracehttp.New(ctx, opts...)
	if err != nil {
		return nil, noopShutdown, fmt.Errorf("otlp trace exporter: %w", err)
	}

	res, err := newResource(cfg)
	if err != nil {
		return nil, noopShutdown, errors.Join(err, exporter.Shutdown(ctx))
	}

	tp := NewProvider(cfg, res, sdktrace.WithBatcher(exporter,
		sdktrace.WithExportTimeout(exportTimeout),
		sdktrace.WithMaxQueueSize(maxQueueSize),
	))
	Install(tp)

	logger.WithFields(log.Fields{
		"endpoint":     cfg.Endpoint,
		"sample_ratio": cfg.SampleRatio,
	}).Info("tracing enabled")
	return tp, tp.Shutdown, nil
}

// NewProvider собирает provider с выборкой по cfg.SampleRatio. Дочерние span-ы
// наследуют решение родителя.
func NewProvider(cfg Config, res *resource.Resource, opts ...sdktrace.TracerProviderOption) *sdktrace.TracerProvider {
	base := []sdktrace.TracerProviderOption{sdktrace.WithSampler(newSampler(cfg.SampleRatio))}
	if res != nil {
		base = append(base, sdktrace.WithResource(res))
	}
	return sdktrace.NewTracerProvider(append(base, opts...)...)
}

// Install делает tp глобальным и включает W3C TraceContext и Baggage.
func Install(tp *sdktrace.TracerProvider) {
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
}

func newSampler(ratio float64) sdktrace.Sampler {
	if ratio >= 1 {
		return sdktrace.ParentBased(sdktrace.AlwaysSample())
	}
	return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))
}

func newResource(cfg Config) (*resource.Resource, error) {
	name := cfg.ServiceName
	if name == "" {
		name = DefaultServiceName
	}
	// Атрибуты без schema URL: иначе Merge конфликтует со схемой resource.Default.
	res, err := resource.Merge(
		resource.Default(),
		resource.NewSchemaless(
			semconv.ServiceName(name),
			semconv.ServiceVersion(cfg.ServiceVersion),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("trace resource: %w", err)
	}
	return res, nil
}
