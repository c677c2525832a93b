package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/abgdnv/catalog/pkg/config"
	"github.com/abgdnv/catalog/pkg/kafka"
	"github.com/abgdnv/catalog/pkg/messaging"
	"github.com/abgdnv/catalog/pkg/nats"
	"github.com/abgdnv/catalog/pkg/telemetry"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

// SetupPublisher connects the configured event driver. The returned close function
// flushes and releases the connection.
func SetupPublisher(ctx context.Context, cfg config.EventsConfig, logger *slog.Logger) (messaging.Publisher, func(), error) {
	switch cfg.Driver {
	case config.EventsDriverNATS:
		nc, err := nats.NewClient(cfg.Nats.Url, cfg.Nats.Timeout)
		if err != nil {
			return nil, nil, err
		}
		js, err := nats.NewJetStreamContext(nc)
		if err != nil {
			return nil, nil, err
		}
		if err := nats.EnsureStream(ctx, js, cfg.Nats.Stream); err != nil {
			nc.Close()
			return nil, nil, err
		}
		logger.Info("Publishing events to NATS JetStream", "stream", cfg.Nats.Stream)
		closeFn := func() {
			if err := nc.Drain(); err != nil {
				logger.Warn("Failed to drain NATS connection", "error", err)
			}
		}
		return messaging.WithTimeout(nats.NewNatsPublisher(js), cfg.PublishTimeout), closeFn, nil

	case config.EventsDriverKafka:
		writer := kafka.NewWriter(cfg.Kafka.BrokerList(), cfg.Kafka.Topic, cfg.Kafka.BatchTimeout)
		publisher := kafka.NewKafkaPublisher(writer)
		logger.Info("Publishing events to Kafka", "topic", cfg.Kafka.Topic)
		closeFn := func() {
			if err := publisher.Close(); err != nil {
				logger.Warn("Failed to close Kafka writer", "error", err)
			}
		}
		return messaging.WithTimeout(publisher, cfg.PublishTimeout), closeFn, nil

	case config.EventsDriverNone, "":
		logger.Info("Event publishing disabled")
		return messaging.NoopPublisher{}, func() {}, nil

	default:
		return nil, nil, fmt.Errorf("unknown events driver: %q", cfg.Driver)
	}
}

var (
	newTracerProvider = telemetry.NewTracerProvider
	newMeterProvider  = telemetry.NewMeterProvider
)

// Telemetry holds the meter used by the service, the /metrics handler and the shutdown of both providers.
type Telemetry struct {
	Meter          metric.Meter
	MetricsHandler http.Handler
	Shutdown       func(ctx context.Context) error
}

// SetupTelemetry installs tracing and metrics according to cfg. Disabled parts fall back to no-ops.
func SetupTelemetry(ctx context.Context, serviceName string, cfg config.TelemetryConfig) (*Telemetry, error) {
	var shutdowns []func(context.Context) error
	t := &Telemetry{Meter: noop.NewMeterProvider().Meter(serviceName)}

	if cfg.Traces.Enabled {
		tp, err := newTracerProvider(ctx, serviceName, cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to create tracer provider: %w", err)
		}
		shutdowns = append(shutdowns, tp.Shutdown)
	}
	if cfg.Metrics.Enabled {
		mp, handler, err := newMeterProvider(serviceName)
		if err != nil {
			// release the tracer provider installed above
			for _, fn := range shutdowns {
				_ = fn(ctx)
			}
			return nil, fmt.Errorf("failed to create meter provider: %w", err)
		}
		t.Meter = mp.Meter(serviceName)
		t.MetricsHandler = handler
		shutdowns = append(shutdowns, mp.Shutdown)
	}

	t.Shutdown = func(ctx context.Context) error {
		var firstErr error
		for _, fn := range shutdowns {
			if err := fn(ctx); err != nil && firstErr == nil {
				firstErr = err
			}
		}
		return firstErr
	}
	return t, nil
}
