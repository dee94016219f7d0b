package telemetry

import (
	"context"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"google.golang.org/grpc/credentials/insecure"
)

// Manager owns the TracerProvider of one restbackup process, from
// Initialize to Shutdown.
type Manager struct {
	enabled        bool
	tracerProvider *sdktrace.TracerProvider
	config         Config
}

// Config holds OpenTelemetry settings.
type Config struct {
	Enabled bool

	// Endpoint is the OTLP gRPC collector address, e.g. "localhost:4317".
	Endpoint string

	// Insecure disables TLS towards the collector.
	Insecure bool

	// SamplingRate is the fraction of traces kept, from 0.0 to 1.0.
	SamplingRate float64

	ServiceName    string
	ServiceVersion string

	// ServiceEndpoint is the RestBackup host the client talks to, recorded
	// as peer.service.
	ServiceEndpoint string

	// Exporter replaces the OTLP exporter when set. Spans are then exported
	// synchronously, which suits short-lived commands and tests.
	Exporter sdktrace.SpanExporter
}

// NewManager returns a Manager for cfg. Nothing is set up before Initialize.
func NewManager(cfg Config) *Manager {
	return &Manager{
		enabled: cfg.Enabled,
		config:  cfg,
	}
}

// Initialize builds the TracerProvider and registers it, with W3C trace
// context and baggage propagation, as the otel globals.
//
// A failure to build the exporter or the resource disables the manager and
// is logged, not returned: the client keeps working without traces.
func (m *Manager) Initialize(ctx context.Context) error {
	if !m.config.Enabled {
		logrus.Debug("OpenTelemetry is disabled in configuration")
		return nil
	}

	res, err := m.createResource()
	if err != nil {
		logrus.Warnf("Failed to create OpenTelemetry resource: %v. Continuing without tracing.", err)
		m.enabled = false
		return nil
	}

	var processor sdktrace.TracerProviderOption
	if m.config.Exporter != nil {
		processor = sdktrace.WithSyncer(m.config.Exporter)
	} else {
		exporter, err := m.createExporter(ctx)
		if err != nil {
			logrus.Warnf("Failed to initialize OpenTelemetry: %v. Continuing without tracing.", err)
			m.enabled = false
			return nil
		}
		processor = sdktrace.WithBatcher(exporter)
	}

	m.tracerProvider = sdktrace.NewTracerProvider(
		processor,
		sdktrace.WithResource(res),
		sdktrace.WithSampler(m.createSampler()),
	)

	otel.SetTracerProvider(m.tracerProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	logrus.Infof("OpenTelemetry initialized (endpoint: %s, sampling: %.2f)",
		m.config.Endpoint, m.config.SamplingRate)
	return nil
}

func (m *Manager) createExporter(ctx context.Context) (sdktrace.SpanExporter, error) {
	opts := []otlptracegrpc.Option{
		otlptracegrpc.WithEndpoint(m.config.Endpoint),
	}
	if m.config.Insecure {
		opts = append(opts, otlptracegrpc.WithTLSCredentials(insecure.NewCredentials()))
	}

	exporter, err := otlptracegrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP exporter: %w", err)
	}
	return exporter, nil
}

// createResource describes this process: service, host and, when known, the
// RestBackup host as peer service.
func (m *Manager) createResource() (*resource.Resource, error) {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}

	attrs := []resource.Option{
		resource.WithAttributes(
			semconv.ServiceNameKey.String(m.config.ServiceName),
			semconv.ServiceVersionKey.String(m.config.ServiceVersion),
			semconv.HostNameKey.String(hostname),
			semconv.ProcessPIDKey.Int(os.Getpid()),
		),
	}
	if m.config.ServiceEndpoint != "" {
		attrs = append(attrs, resource.WithAttributes(
			semconv.PeerServiceKey.String(m.config.ServiceEndpoint),
		))
	}

	return resource.New(context.Background(), attrs...)
}

func (m *Manager) createSampler() sdktrace.Sampler {
	if m.config.SamplingRate >= 1.0 {
		return sdktrace.AlwaysSample()
	}
	// Respect the caller's decision when a command runs inside a traced job.
	return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(m.config.SamplingRate))
}

// Shutdown flushes pending spans. Commands call it before exiting, or the
// spans of their last calls are lost.
func (m *Manager) Shutdown(ctx context.Context) error {
	if !m.enabled || m.tracerProvider == nil {
		logrus.Debug("OpenTelemetry shutdown skipped (not enabled or not initialized)")
		return nil
	}

	if err := m.tracerProvider.Shutdown(ctx); err != nil {
		logrus.Errorf("Error during OpenTelemetry shutdown: %v", err)
		return fmt.Errorf("failed to shutdown TracerProvider: %w", err)
	}
	logrus.Debug("OpenTelemetry shutdown completed")
	return nil
}

// IsEnabled reports whether tracing is operational. It is false when
// disabled by configuration or after a failed Initialize.
func (m *Manager) IsEnabled() bool {
	return m != nil && m.enabled
}

// TracerProvider returns the provider for restbackup.WithTracerProvider, or
// nil when tracing is not operational.
func (m *Manager) TracerProvider() trace.TracerProvider {
	// A typed nil would defeat the nil checks of callers.
	if m == nil || m.tracerProvider == nil {
		return nil
	}
	return m.tracerProvider
}

// Tracer returns a named tracer, a noop one when tracing is not operational.
func (m *Manager) Tracer(name string) trace.Tracer {
	if tp := m.TracerProvider(); tp != nil {
		return tp.Tracer(name)
	}
	return noop.NewTracerProvider().Tracer(name)
}
