// Package metrics configures the OTLP meter provider and the engine's
// application-level instruments.
package metrics

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Config configures the metrics provider.
type Config struct {
	Enabled          bool
	ExporterEndpoint string
	ExporterProtocol string
	ServiceName      string
	Environment      string
}

// Metrics exposes application-level instruments for the calculation engine.
type Metrics struct {
	runsStarted   metric.Int64Counter
	runsCompleted metric.Int64Counter
	runsFailed    metric.Int64Counter
	resultRows    metric.Int64Counter
	payoutTotal   metric.Float64Counter
	factsImported metric.Int64Counter
}

// NewProvider configures and registers the meter provider.
func NewProvider(lc fx.Lifecycle, cfg Config, log *zap.Logger) (metric.MeterProvider, error) {
	if !cfg.Enabled {
		provider := noop.NewMeterProvider()
		otel.SetMeterProvider(provider)
		return provider, nil
	}

	exporter, err := newExporter(cfg.ExporterProtocol, cfg.ExporterEndpoint)
	if err != nil {
		return nil, err
	}

	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(10*time.Second))
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	otel.SetMeterProvider(provider)

	if lc != nil {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				if log != nil {
					log.Info("shutting down meter provider")
				}
				return provider.Shutdown(ctx)
			},
		})
	}

	if log != nil {
		log.Info("metrics initialized",
			zap.String("endpoint", cfg.ExporterEndpoint),
			zap.String("protocol", cfg.ExporterProtocol),
		)
	}

	return provider, nil
}

// New configures the domain metrics instruments.
func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "incento"
	}
	meter := provider.Meter(name)

	runsStarted, err := meter.Int64Counter("incento_calculation_runs_started_total")
	if err != nil {
		return nil, err
	}
	runsCompleted, err := meter.Int64Counter("incento_calculation_runs_completed_total")
	if err != nil {
		return nil, err
	}
	runsFailed, err := meter.Int64Counter("incento_calculation_runs_failed_total")
	if err != nil {
		return nil, err
	}
	resultRows, err := meter.Int64Counter("incento_calculation_result_rows_total")
	if err != nil {
		return nil, err
	}
	payoutTotal, err := meter.Float64Counter("incento_calculation_payout_total")
	if err != nil {
		return nil, err
	}
	factsImported, err := meter.Int64Counter("incento_facts_imported_total")
	if err != nil {
		return nil, err
	}

	return &Metrics{
		runsStarted:   runsStarted,
		runsCompleted: runsCompleted,
		runsFailed:    runsFailed,
		resultRows:    resultRows,
		payoutTotal:   payoutTotal,
		factsImported: factsImported,
	}, nil
}

// RunStarted records the start of a calculation run.
func (m *Metrics) RunStarted(ctx context.Context, period string) {
	if m == nil {
		return
	}
	m.runsStarted.Add(ctx, 1, metric.WithAttributes(attribute.String("period", period)))
}

// RunCompleted records a committed run with its row count and payout total.
func (m *Metrics) RunCompleted(ctx context.Context, period string, rows int, payout float64) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("period", period))
	m.runsCompleted.Add(ctx, 1, attrs)
	m.resultRows.Add(ctx, int64(rows), attrs)
	m.payoutTotal.Add(ctx, payout, attrs)
}

// RunFailed records an aborted run.
func (m *Metrics) RunFailed(ctx context.Context, period string) {
	if m == nil {
		return
	}
	m.runsFailed.Add(ctx, 1, metric.WithAttributes(attribute.String("period", period)))
}

// FactsImported records rows accepted by the fact import boundary.
func (m *Metrics) FactsImported(ctx context.Context, period string, rows int) {
	if m == nil {
		return
	}
	m.factsImported.Add(ctx, int64(rows), metric.WithAttributes(attribute.String("period", period)))
}

func newExporter(protocol, endpoint string) (sdkmetric.Exporter, error) {
	switch strings.ToLower(strings.TrimSpace(protocol)) {
	case "", "grpc":
		return otlpmetricgrpc.New(context.Background(),
			otlpmetricgrpc.WithEndpoint(endpoint),
			otlpmetricgrpc.WithInsecure(),
		)
	case "http", "http/protobuf":
		return otlpmetrichttp.New(context.Background(),
			otlpmetrichttp.WithEndpoint(endpoint),
			otlpmetrichttp.WithInsecure(),
		)
	default:
		return nil, fmt.Errorf("unsupported otlp protocol %q", protocol)
	}
}
