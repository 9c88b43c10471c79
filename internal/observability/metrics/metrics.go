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

// Metrics exposes application-level instruments.
type Metrics struct {
	ordersIngested    metric.Int64Counter
	rowsWritten       metric.Int64Counter
	writeRetries      metric.Int64Counter
	duplicateOrders   metric.Int64Counter
	signatureFailures metric.Int64Counter
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
		name = "orderlake"
	}
	meter := provider.Meter(name)

	ordersIngested, err := meter.Int64Counter("orderlake_orders_ingested_total")
	if err != nil {
		return nil, err
	}
	rowsWritten, err := meter.Int64Counter("orderlake_rows_written_total")
	if err != nil {
		return nil, err
	}
	writeRetries, err := meter.Int64Counter("orderlake_write_retries_total")
	if err != nil {
		return nil, err
	}
	duplicateOrders, err := meter.Int64Counter("orderlake_duplicate_orders_total")
	if err != nil {
		return nil, err
	}
	signatureFailures, err := meter.Int64Counter("orderlake_signature_failures_total")
	if err != nil {
		return nil, err
	}

	return &Metrics{
		ordersIngested:    ordersIngested,
		rowsWritten:       rowsWritten,
		writeRetries:      writeRetries,
		duplicateOrders:   duplicateOrders,
		signatureFailures: signatureFailures,
	}, nil
}

// RecordOrderIngested increments accepted order counts.
func (m *Metrics) RecordOrderIngested(ctx context.Context, status string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("status", strings.TrimSpace(status)))
	m.ordersIngested.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordRowsWritten increments per-table written row counts.
func (m *Metrics) RecordRowsWritten(ctx context.Context, table string, rows int) {
	if m == nil || rows <= 0 {
		return
	}
	attrs := FilterAttributes(attribute.String("table", strings.TrimSpace(table)))
	m.rowsWritten.Add(ctx, int64(rows), metric.WithAttributes(attrs...))
}

// RecordWriteRetry increments per-table insert retry counts.
func (m *Metrics) RecordWriteRetry(ctx context.Context, table string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("table", strings.TrimSpace(table)))
	m.writeRetries.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordDuplicateOrder increments duplicate short-circuit counts.
func (m *Metrics) RecordDuplicateOrder(ctx context.Context) {
	if m == nil {
		return
	}
	m.duplicateOrders.Add(ctx, 1)
}

// RecordSignatureFailure increments rejected signature counts.
func (m *Metrics) RecordSignatureFailure(ctx context.Context, reason string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("reason", strings.TrimSpace(reason)))
	m.signatureFailures.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func newExporter(protocol, endpoint string) (sdkmetric.Exporter, error) {
	protocol = strings.ToLower(strings.TrimSpace(protocol))
	switch protocol {
	case "http", "http/protobuf":
		opts := []otlpmetrichttp.Option{}
		if endpoint != "" {
			opts = append(opts, otlpmetrichttp.WithEndpoint(endpoint))
		}
		return otlpmetrichttp.New(context.Background(), opts...)
	case "grpc", "grpc/protobuf", "":
		opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithInsecure()}
		if endpoint != "" {
			opts = append(opts, otlpmetricgrpc.WithEndpoint(endpoint))
		}
		return otlpmetricgrpc.New(context.Background(), opts...)
	default:
		return nil, fmt.Errorf("unsupported OTLP protocol %q", protocol)
	}
}

var allowedLabelKeys = map[attribute.Key]struct{}{
	"status": {},
	"table":  {},
	"reason": {},
}

// FilterAttributes strips disallowed labels to keep metrics low-cardinality.
func FilterAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	filtered := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		if _, ok := allowedLabelKeys[attr.Key]; !ok {
			continue
		}
		filtered = append(filtered, attr)
	}
	return filtered
}
