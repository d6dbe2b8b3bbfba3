package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/marcelsud/zoom-relay/relay"
	"github.com/marcelsud/zoom-relay/relay/forwarder"
)

// OTelExporter provides OpenTelemetry metrics export following OTel standards.
// It implements relay.Observer.
type OTelExporter struct {
	meterProvider *sdkmetric.MeterProvider
	registry      *prometheus.Registry
	collector     Collector

	// OTel meters and instruments
	meter              metric.Meter
	inboundRequests    metric.Int64Counter
	inboundRetried     metric.Int64Counter
	forwardDuration    metric.Float64Histogram
	forwardFailures    metric.Int64Counter
	publishFailures    metric.Int64Counter
	deadLetters        metric.Int64Counter
	queueLengthGauge   metric.Int64ObservableGauge
	deadLetterGauge    metric.Int64ObservableGauge
	activeWorkersGauge metric.Int64ObservableGauge
}

var _ relay.Observer = (*OTelExporter)(nil)

// NewOTelExporter creates a new OpenTelemetry metrics exporter with Prometheus format.
// collector may be nil when no Redis queue is configured; the queue gauges are then skipped.
func NewOTelExporter(collector Collector) (*OTelExporter, error) {
	registry := prometheus.NewRegistry()

	// Create Prometheus exporter
	exporter, err := otelprom.New(otelprom.WithRegisterer(registry))
	if err != nil {
		return nil, fmt.Errorf("creating prometheus exporter: %w", err)
	}

	// Create meter provider
	meterProvider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(exporter),
	)
	otel.SetMeterProvider(meterProvider)

	// Create meter with service info
	meter := meterProvider.Meter(
		"zoom-relay",
		metric.WithInstrumentationVersion("1.0.0"),
	)

	oe := &OTelExporter{
		meterProvider: meterProvider,
		registry:      registry,
		collector:     collector,
		meter:         meter,
	}

	// Register metrics instruments
	if err := oe.registerInstruments(); err != nil {
		return nil, fmt.Errorf("registering instruments: %w", err)
	}

	return oe, nil
}

// registerInstruments creates and registers all OpenTelemetry metric instruments
func (oe *OTelExporter) registerInstruments() error {
	var err error

	oe.inboundRequests, err = oe.meter.Int64Counter(
		"relay.inbound.requests",
		metric.WithDescription("Zoom deliveries handled, by final state and status"),
		metric.WithUnit("{requests}"),
	)
	if err != nil {
		return fmt.Errorf("creating inbound requests counter: %w", err)
	}

	oe.inboundRetried, err = oe.meter.Int64Counter(
		"relay.inbound.retried",
		metric.WithDescription("Zoom deliveries carrying x-zoom-retry-num"),
		metric.WithUnit("{requests}"),
	)
	if err != nil {
		return fmt.Errorf("creating inbound retried counter: %w", err)
	}

	oe.forwardDuration, err = oe.meter.Float64Histogram(
		"relay.forward.duration",
		metric.WithDescription("Time from dispatch to full response read for downstream forwards"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return fmt.Errorf("creating forward duration histogram: %w", err)
	}

	oe.forwardFailures, err = oe.meter.Int64Counter(
		"relay.forward.failures",
		metric.WithDescription("Downstream forwards that failed"),
		metric.WithUnit("{forwards}"),
	)
	if err != nil {
		return fmt.Errorf("creating forward failures counter: %w", err)
	}

	oe.publishFailures, err = oe.meter.Int64Counter(
		"relay.queue.publish.failures",
		metric.WithDescription("Events that could not be handed to the queue"),
		metric.WithUnit("{events}"),
	)
	if err != nil {
		return fmt.Errorf("creating publish failures counter: %w", err)
	}

	oe.deadLetters, err = oe.meter.Int64Counter(
		"relay.deadletters",
		metric.WithDescription("Tasks that exhausted the queue's retries"),
		metric.WithUnit("{tasks}"),
	)
	if err != nil {
		return fmt.Errorf("creating dead letters counter: %w", err)
	}

	if oe.collector == nil {
		return nil
	}

	// Queue length gauge
	oe.queueLengthGauge, err = oe.meter.Int64ObservableGauge(
		"relay.queue.length",
		metric.WithDescription("Number of tasks waiting in the Redis stream"),
		metric.WithUnit("{tasks}"),
		metric.WithInt64Callback(oe.observeQueueLength),
	)
	if err != nil {
		return fmt.Errorf("creating queue length gauge: %w", err)
	}

	// Stored dead letters gauge
	oe.deadLetterGauge, err = oe.meter.Int64ObservableGauge(
		"relay.deadletters.stored",
		metric.WithDescription("Number of dead letters kept in Redis"),
		metric.WithUnit("{tasks}"),
		metric.WithInt64Callback(oe.observeDeadLetters),
	)
	if err != nil {
		return fmt.Errorf("creating dead letter gauge: %w", err)
	}

	// Active workers gauge (per status)
	oe.activeWorkersGauge, err = oe.meter.Int64ObservableGauge(
		"relay.workers.active",
		metric.WithDescription("Number of queue workers with a live heartbeat"),
		metric.WithUnit("{workers}"),
		metric.WithInt64Callback(oe.observeActiveWorkers),
	)
	if err != nil {
		return fmt.Errorf("creating active workers gauge: %w", err)
	}

	return nil
}

// InboundHandled counts a handled Zoom delivery
func (oe *OTelExporter) InboundHandled(ctx context.Context, state relay.State, status int) {
	oe.inboundRequests.Add(ctx, 1, metric.WithAttributes(
		attribute.String("relay.state", state.String()),
		attribute.Int("http.status_code", status),
	))
}

// InboundRetried counts a delivery Zoom retried
func (oe *OTelExporter) InboundRetried(ctx context.Context) {
	oe.inboundRetried.Add(ctx, 1)
}

// Forwarded records the duration and outcome of a forward
func (oe *OTelExporter) Forwarded(ctx context.Context, result forwarder.Result, err error) {
	success := err == nil
	oe.forwardDuration.Record(ctx, float64(result.DurationMs()), metric.WithAttributes(
		attribute.Bool("forward.success", success),
	))
	if success {
		return
	}

	reason := "network"
	var se *forwarder.StatusError
	if errors.As(err, &se) {
		reason = "status"
	}
	oe.forwardFailures.Add(ctx, 1, metric.WithAttributes(
		attribute.String("failure.reason", reason),
	))
}

// PublishFailed counts an event the queue did not accept
func (oe *OTelExporter) PublishFailed(ctx context.Context) {
	oe.publishFailures.Add(ctx, 1)
}

// DeadLettered counts a dead-lettered task
func (oe *OTelExporter) DeadLettered(ctx context.Context) {
	oe.deadLetters.Add(ctx, 1)
}

// observeQueueLength is a callback that reports the stream length
func (oe *OTelExporter) observeQueueLength(ctx context.Context, observer metric.Int64Observer) error {
	length, err := oe.collector.GetQueueLength(ctx)
	if err != nil {
		return err
	}
	observer.Observe(length)
	return nil
}

// observeDeadLetters is a callback that reports stored dead letters
func (oe *OTelExporter) observeDeadLetters(ctx context.Context, observer metric.Int64Observer) error {
	count, err := oe.collector.GetDeadLetterCount(ctx)
	if err != nil {
		return err
	}
	observer.Observe(count)
	return nil
}

// observeActiveWorkers is a callback that reports active worker counts
func (oe *OTelExporter) observeActiveWorkers(ctx context.Context, observer metric.Int64Observer) error {
	workers, err := oe.collector.GetActiveWorkers(ctx)
	if err != nil {
		return err
	}

	byStatus := make(map[string]int64)
	for _, w := range workers {
		byStatus[w.Status]++
	}
	for status, count := range byStatus {
		observer.Observe(count, metric.WithAttributes(
			attribute.String("worker.status", status),
		))
	}

	return nil
}

// ServeHTTP serves Prometheus-formatted metrics
func (oe *OTelExporter) ServeHTTP() http.Handler {
	return promhttp.HandlerFor(oe.registry, promhttp.HandlerOpts{})
}

// Shutdown gracefully shuts down the meter provider
func (oe *OTelExporter) Shutdown(ctx context.Context) error {
	if oe.meterProvider != nil {
		return oe.meterProvider.Shutdown(ctx)
	}
	return nil
}
